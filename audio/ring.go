package audio

import "sync"

// Ring is a fixed-size buffer of the most recent samples of one channel.
// The producer goroutine writes, the tick goroutine snapshots; Snapshot
// never blocks and never consumes, so a tick without fresh data simply sees
// the same window again.
type Ring struct {
	mu  sync.Mutex
	buf []float32
	pos int
}

func NewRing(size int) *Ring {
	return &Ring{buf: make([]float32, size)}
}

// Write appends samples, overwriting the oldest.
func (r *Ring) Write(samples []float32) {
	r.mu.Lock()
	for _, s := range samples {
		r.buf[r.pos] = s
		r.pos = (r.pos + 1) % len(r.buf)
	}
	r.mu.Unlock()
}

// Snapshot copies the most recent len(dst) samples into dst, oldest first.
func (r *Ring) Snapshot(dst []float32) {
	r.mu.Lock()
	n := len(r.buf)
	for i := range dst {
		dst[i] = r.buf[(r.pos-len(dst)+i+2*n)%n]
	}
	r.mu.Unlock()
}

// Size returns the ring capacity.
func (r *Ring) Size() int { return len(r.buf) }
