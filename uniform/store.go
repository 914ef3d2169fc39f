package uniform

import "sort"

// Store is the keyed table of per-tick values consumed read-only by stage
// execution. Only the tick goroutine touches it: audio and MIDI results are
// drained into the store at the top of each tick, before the executor runs.
type Store struct {
	values map[string]Value
	names  []string
	dirty  bool
}

func NewStore() *Store {
	return &Store{values: make(map[string]Value)}
}

// Set inserts or replaces the value under name.
func (s *Store) Set(name string, v Value) {
	if _, ok := s.values[name]; !ok {
		s.dirty = true
	}
	s.values[name] = v
}

// Get returns the value under name, if any.
func (s *Store) Get(name string) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Delete removes the value under name.
func (s *Store) Delete(name string) {
	if _, ok := s.values[name]; ok {
		delete(s.values, name)
		s.dirty = true
	}
}

// Names returns all keys in sorted order. The slice is reused across calls;
// callers must not hold on to it.
func (s *Store) Names() []string {
	if s.dirty || len(s.names) != len(s.values) {
		s.names = s.names[:0]
		for name := range s.values {
			s.names = append(s.names, name)
		}
		sort.Strings(s.names)
		s.dirty = false
	}
	return s.names
}

// Len reports the number of entries.
func (s *Store) Len() int { return len(s.values) }
