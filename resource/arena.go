package resource

import (
	"fmt"
	"log/slog"
)

// Arena owns every render target, keyed by stable name. Acquisition is
// transactional: a pipeline compile stages its wanted targets in a Tx and
// only a successful Commit touches GL state, so a failed reload leaves the
// running graph's resources intact.
//
// A reload swaps the set of live targets instead of mutating any target in
// place: a name whose spec changed gets a fresh Target with an incremented
// generation, and the previous allocation is freed once no graph references
// it anymore.
type Arena struct {
	targets map[string]*Target
	gens    map[string]uint64
	orphans []*Target

	screenW, screenH int

	// Swappable for tests; default to GL allocation.
	alloc func(*Target) error
	free  func(*Target)
}

func NewArena(screenW, screenH int) *Arena {
	return &Arena{
		targets: make(map[string]*Target),
		gens:    make(map[string]uint64),
		screenW: screenW,
		screenH: screenH,
		alloc:   allocate,
		free:    release,
	}
}

// ScreenSize returns the current display surface resolution.
func (a *Arena) ScreenSize() (int, int) { return a.screenW, a.screenH }

// Lookup returns the live target under name, if any.
func (a *Arena) Lookup(name string) (*Target, bool) {
	t, ok := a.targets[name]
	return t, ok
}

// Tx stages a set of named acquisitions. Nothing is allocated or freed
// until Commit.
type Tx struct {
	a    *Arena
	want map[string]Spec
}

// Begin starts a new acquisition transaction.
func (a *Arena) Begin() *Tx {
	return &Tx{a: a, want: make(map[string]Spec)}
}

// Acquire declares that the next graph needs a target under name with the
// given spec. Repeated acquisitions of one name within a transaction must
// agree on the spec.
func (tx *Tx) Acquire(name string, spec Spec) error {
	if prev, ok := tx.want[name]; ok {
		if prev != spec {
			return fmt.Errorf("target %q declared twice with different specs", name)
		}
		return nil
	}
	tx.want[name] = spec
	return nil
}

// Commit reconciles the arena against the transaction: unchanged targets
// are reused, changed ones reallocated under a new generation, and targets
// no longer named are released once unreferenced. On error the arena is
// left exactly as before.
func (tx *Tx) Commit() (map[string]*Target, error) {
	a := tx.a

	// Phase 1: allocate everything new before touching the live table.
	fresh := make(map[string]*Target)
	for name, spec := range tx.want {
		if cur, ok := a.targets[name]; ok && cur.Spec == spec {
			continue
		}
		t := &Target{Name: name, Spec: spec, Generation: a.gens[name] + 1}
		if err := a.alloc(t); err != nil {
			for _, nt := range fresh {
				a.free(nt)
			}
			return nil, fmt.Errorf("allocating target %q: %w", name, err)
		}
		fresh[name] = t
	}

	// Phase 2: swap the table.
	out := make(map[string]*Target, len(tx.want))
	for name := range tx.want {
		if t, ok := fresh[name]; ok {
			if old, ok := a.targets[name]; ok {
				a.orphan(old)
			}
			a.targets[name] = t
			a.gens[name] = t.Generation
		}
		out[name] = a.targets[name]
	}

	// Release targets no longer referenced by any stage.
	for name, t := range a.targets {
		if _, ok := tx.want[name]; !ok {
			a.orphan(t)
			delete(a.targets, name)
		}
	}
	return out, nil
}

// orphan detaches a target from the name table; its storage is freed as
// soon as its reference count drops to zero.
func (a *Arena) orphan(t *Target) {
	t.dead = true
	if t.refs <= 0 {
		a.free(t)
		return
	}
	a.orphans = append(a.orphans, t)
}

// Retain marks a graph's reference to a target.
func (a *Arena) Retain(t *Target) { t.refs++ }

// Release drops a graph's reference, freeing orphaned storage at zero.
func (a *Arena) Release(t *Target) {
	t.refs--
	if t.refs <= 0 && t.dead {
		a.free(t)
		for i, o := range a.orphans {
			if o == t {
				a.orphans = append(a.orphans[:i], a.orphans[i+1:]...)
				break
			}
		}
	}
}

// Resize reallocates every screen-sized target to the new display surface
// resolution, bumping generations so dependents notice.
func (a *Arena) Resize(w, h int) {
	if w == a.screenW && h == a.screenH {
		return
	}
	a.screenW, a.screenH = w, h

	for name, t := range a.targets {
		if !t.Spec.ScreenSized {
			continue
		}
		spec := t.Spec
		spec.Width, spec.Height = w, h
		next := &Target{Name: name, Spec: spec, Generation: a.gens[name] + 1}
		if err := a.alloc(next); err != nil {
			slog.Error("resource: resize failed", "target", name, "err", err)
			continue
		}
		a.orphan(t)
		a.targets[name] = next
		a.gens[name] = next.Generation
	}
}

// Destroy frees every allocation the arena still owns.
func (a *Arena) Destroy() {
	for name, t := range a.targets {
		a.free(t)
		delete(a.targets, name)
	}
	for _, t := range a.orphans {
		a.free(t)
	}
	a.orphans = nil
}
