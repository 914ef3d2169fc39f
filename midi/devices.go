package midi

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const rescanInterval = time.Second

// Devices keeps connections to every MIDI input whose name matches one of
// the configured substrings (or all inputs when none are configured),
// forwarding parsed events into the Engine's queue.
//
// A device that disappears mid-session is a warning, not an error; the next
// enumeration pass reconnects whatever is available again.
type Devices struct {
	mu           sync.Mutex
	drv          *rtmididrv.Driver
	engine       *Engine
	patterns     []string
	open         map[string]func()
	lastRescanAt time.Time
}

// NewDevices initializes the rtmidi driver. patterns are case-insensitive
// name substrings; empty means connect to everything.
func NewDevices(engine *Engine, patterns []string) (*Devices, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &Devices{
		drv:      drv,
		engine:   engine,
		patterns: patterns,
		open:     make(map[string]func()),
	}, nil
}

// Rescan enumerates inputs and reconciles connections. Called periodically
// from the tick loop; it rate-limits itself to one pass per second.
func (d *Devices) Rescan() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if !d.lastRescanAt.IsZero() && now.Sub(d.lastRescanAt) < rescanInterval {
		return
	}
	d.lastRescanAt = now

	ins, err := d.drv.Ins()
	if err != nil {
		slog.Error("midi: list inputs failed", "err", err)
		return
	}

	present := make(map[string]bool, len(ins))
	for _, in := range ins {
		name := in.String()
		present[name] = true
		if !d.wanted(name) {
			continue
		}
		if _, ok := d.open[name]; ok {
			continue
		}
		if err := d.connect(in); err != nil {
			slog.Warn("midi: connect failed", "device", name, "err", err)
		}
	}

	// Drop connections whose device disappeared.
	for name, stop := range d.open {
		if !present[name] {
			slog.Warn("midi: device disappeared", "device", name)
			stop()
			delete(d.open, name)
		}
	}
}

func (d *Devices) wanted(name string) bool {
	if len(d.patterns) == 0 {
		return true
	}
	for _, pat := range d.patterns {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

func (d *Devices) connect(in drivers.In) error {
	name := in.String()
	if err := in.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}

	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		if ev, ok := parseMessage(name, msg); ok {
			d.engine.Enqueue(ev)
		}
	}, midi.HandleError(func(listenErr error) {
		slog.Warn("midi: listener error", "device", name, "err", listenErr)
	}))
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("listen %q: %w", name, err)
	}

	d.open[name] = func() {
		stop()
		_ = in.Close()
	}
	slog.Info("midi: connected", "device", name)
	return nil
}

// parseMessage maps a gomidi message to an engine event.
func parseMessage(port string, msg midi.Message) (Event, bool) {
	var ch, key, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &val):
		return Event{Kind: NoteOn, Key: Key{port, ch, key}, Value: val}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Kind: NoteOff, Key: Key{port, ch, key}}, true
	case msg.GetPolyAfterTouch(&ch, &key, &val):
		return Event{Kind: KeyPressure, Key: Key{port, ch, key}, Value: val}, true
	case msg.GetControlChange(&ch, &key, &val):
		return Event{Kind: ControlChange, Key: Key{port, ch, key}, Value: val}, true
	}
	return Event{}, false
}

// Close shuts down all connections and the driver.
func (d *Devices) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, stop := range d.open {
		stop()
		delete(d.open, name)
	}
	d.drv.Close()
}
