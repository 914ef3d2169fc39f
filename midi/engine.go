package midi

import (
	"log/slog"

	"github.com/prism-vj/prism/uniform"
)

// SlotCount is the number of logical slider and button slots.
const SlotCount = 32

// ControlKind selects which slot family a binding targets.
type ControlKind int

const (
	ControlButton ControlKind = iota
	ControlSlider
)

// Key identifies a physical control: the port it arrived on, the MIDI
// channel, and the note or controller number.
type Key struct {
	Port    string
	Channel uint8
	Number  uint8
}

// EventKind classifies the raw messages the engine cares about.
type EventKind int

const (
	NoteOn EventKind = iota
	NoteOff
	KeyPressure
	ControlChange
)

// Event is one physical MIDI event, already parsed by the device layer.
type Event struct {
	Kind  EventKind
	Key   Key
	Value uint8 // velocity, pressure or controller value
}

// Button is the per-slot timing state exposed to shaders as one vec4.
type Button struct {
	Intensity float32
	SinceOn   float32
	SinceOff  float32
	Count     uint32
}

type mode int

const (
	modeNormal mode = iota
	modeBinding
)

// Engine maps physical MIDI events onto logical slider and button slots.
//
// It has two states: Normal, where events update slot state through the
// binding table, and Binding, where the first qualifying event is captured
// as a new table entry. All mutation happens on the tick goroutine via
// HandleEvent and Advance; the device layer only enqueues.
type Engine struct {
	queue chan Event

	mode     mode
	bindKind ControlKind
	bindSlot int

	Sliders [SlotCount]float32
	Buttons [SlotCount]Button

	buttonBindings map[Key]int
	sliderBindings map[Key]int

	buttonsPacked [SlotCount * 4]float32
}

func NewEngine() *Engine {
	return &Engine{
		queue:          make(chan Event, 256),
		buttonBindings: make(map[Key]int),
		sliderBindings: make(map[Key]int),
	}
}

// Enqueue pushes an event from a device listener goroutine. Never blocks; a
// full queue drops the event with a warning.
func (e *Engine) Enqueue(ev Event) {
	select {
	case e.queue <- ev:
	default:
		slog.Warn("midi: event queue full, dropping event")
	}
}

// Drain processes all pending events. Called once per tick; never blocks.
func (e *Engine) Drain() {
	for {
		select {
		case ev := <-e.queue:
			e.HandleEvent(ev)
		default:
			return
		}
	}
}

// BeginBind enters Binding mode targeting the given slot. The next
// qualifying event is captured into the binding table.
func (e *Engine) BeginBind(kind ControlKind, slot int) {
	if slot < 0 || slot >= SlotCount {
		return
	}
	e.mode = modeBinding
	e.bindKind = kind
	e.bindSlot = slot
}

// CancelBind leaves Binding mode without touching the table.
func (e *Engine) CancelBind() {
	e.mode = modeNormal
}

// Binding reports whether the engine is waiting to capture a bind event.
func (e *Engine) Binding() bool { return e.mode == modeBinding }

// HandleEvent applies one event to the engine state.
func (e *Engine) HandleEvent(ev Event) {
	if e.mode == modeBinding {
		if e.captureBinding(ev) {
			e.mode = modeNormal
		}
		return
	}

	switch ev.Kind {
	case NoteOn:
		if id, ok := e.buttonBindings[ev.Key]; ok {
			b := &e.Buttons[id]
			b.Intensity = float32(ev.Value) / 127
			b.SinceOn = 0
			b.Count++
		}
	case NoteOff:
		if id, ok := e.buttonBindings[ev.Key]; ok {
			b := &e.Buttons[id]
			b.Intensity = 0
			b.SinceOff = 0
		}
	case KeyPressure:
		if id, ok := e.buttonBindings[ev.Key]; ok {
			e.Buttons[id].Intensity = float32(ev.Value) / 127
		}
	case ControlChange:
		if id, ok := e.sliderBindings[ev.Key]; ok {
			e.Sliders[id] = float32(ev.Value) / 127
		}
	}
}

// captureBinding records a table entry for a qualifying event and reports
// whether binding completed.
func (e *Engine) captureBinding(ev Event) bool {
	switch {
	case e.bindKind == ControlButton && ev.Kind == NoteOn:
		e.buttonBindings[ev.Key] = e.bindSlot
	case e.bindKind == ControlSlider && ev.Kind == ControlChange:
		e.sliderBindings[ev.Key] = e.bindSlot
	default:
		return false
	}
	slog.Info("midi: bound control", "port", ev.Key.Port,
		"channel", ev.Key.Channel, "number", ev.Key.Number, "slot", e.bindSlot)
	return true
}

// Advance moves every button's time-since fields forward by the tick's
// elapsed time, independent of event arrival.
func (e *Engine) Advance(dt float32) {
	for i := range e.Buttons {
		e.Buttons[i].SinceOn += dt
		e.Buttons[i].SinceOff += dt
	}
}

// Publish writes the slider and button arrays into the store.
func (e *Engine) Publish(store *uniform.Store) {
	for i, b := range e.Buttons {
		e.buttonsPacked[i*4+0] = b.Intensity
		e.buttonsPacked[i*4+1] = b.SinceOn
		e.buttonsPacked[i*4+2] = b.SinceOff
		e.buttonsPacked[i*4+3] = float32(b.Count)
	}
	store.Set("sliders", uniform.FloatArray(e.Sliders[:]))
	store.Set("buttons", uniform.Vec4Array(e.buttonsPacked[:]))
}
