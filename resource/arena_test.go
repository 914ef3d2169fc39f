package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestArena swaps GL allocation for bookkeeping counters.
func newTestArena(w, h int) (*Arena, *allocLog) {
	log := &allocLog{}
	a := NewArena(w, h)
	a.alloc = func(t *Target) error {
		log.allocs++
		log.liveStorage++
		return nil
	}
	a.free = func(t *Target) {
		log.frees++
		log.liveStorage--
	}
	return a, log
}

type allocLog struct {
	allocs, frees, liveStorage int
}

func specFor(w, h int) Spec {
	return Spec{Width: w, Height: h, Kind: Framebuffer2D, Wrap: WrapClamp, Filter: FilterLinear}
}

func TestAcquireIsIdempotentForUnchangedSpec(t *testing.T) {
	a, log := newTestArena(1280, 720)

	tx := a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(256, 256)))
	targets, err := tx.Commit()
	require.NoError(t, err)
	first := targets["a"]
	assert.Equal(t, uint64(1), first.Generation)

	// Same spec on the next reload reuses the allocation.
	tx = a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(256, 256)))
	targets, err = tx.Commit()
	require.NoError(t, err)
	assert.Same(t, first, targets["a"])
	assert.Equal(t, 1, log.allocs)
}

func TestRepeatedNameResolvesToOneHandle(t *testing.T) {
	a, _ := newTestArena(1280, 720)

	tx := a.Begin()
	require.NoError(t, tx.Acquire("shared", specFor(128, 128)))
	require.NoError(t, tx.Acquire("shared", specFor(128, 128)))
	targets, err := tx.Commit()
	require.NoError(t, err)
	assert.Len(t, targets, 1)

	// Conflicting specs for one name within a graph are rejected.
	tx = a.Begin()
	require.NoError(t, tx.Acquire("shared", specFor(128, 128)))
	assert.Error(t, tx.Acquire("shared", specFor(64, 64)))
}

func TestSpecChangeBumpsGenerationAndFreesOldAllocation(t *testing.T) {
	a, log := newTestArena(1280, 720)

	tx := a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(256, 256)))
	targets, _ := tx.Commit()
	old := targets["a"]
	a.Retain(old) // the active graph holds a reference

	tx = a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(512, 512)))
	targets, err := tx.Commit()
	require.NoError(t, err)
	next := targets["a"]

	assert.NotSame(t, old, next)
	assert.Equal(t, uint64(2), next.Generation)

	// Old storage survives until the prior graph lets go of it.
	assert.Equal(t, 2, log.liveStorage)
	a.Release(old)
	assert.Equal(t, 1, log.liveStorage)
}

func TestUnreferencedTargetsReleasedAfterCommit(t *testing.T) {
	a, log := newTestArena(1280, 720)

	tx := a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(64, 64)))
	require.NoError(t, tx.Acquire("b", specFor(64, 64)))
	_, err := tx.Commit()
	require.NoError(t, err)

	// Next graph only names "a"; "b" is freed immediately (no references).
	tx = a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(64, 64)))
	_, err = tx.Commit()
	require.NoError(t, err)

	_, ok := a.Lookup("b")
	assert.False(t, ok)
	assert.Equal(t, 1, log.liveStorage)
}

func TestCommitIsDeterministic(t *testing.T) {
	build := func() map[string]*Target {
		a, _ := newTestArena(1920, 1080)
		tx := a.Begin()
		require.NoError(t, tx.Acquire("a", specFor(256, 128)))
		require.NoError(t, tx.Acquire("b", Spec{Width: 64, Kind: Image1D, Wrap: WrapClamp, Filter: FilterNearest, Float: true}))
		targets, err := tx.Commit()
		require.NoError(t, err)
		return targets
	}

	first := build()
	second := build()
	require.Len(t, second, len(first))
	for name, ft := range first {
		st := second[name]
		require.NotNil(t, st, name)
		assert.Equal(t, ft.Spec, st.Spec, name)
		assert.Equal(t, ft.Generation, st.Generation, name)
	}
}

func TestFailedCommitLeavesArenaUntouched(t *testing.T) {
	a, log := newTestArena(1280, 720)

	tx := a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(64, 64)))
	_, err := tx.Commit()
	require.NoError(t, err)
	before, _ := a.Lookup("a")

	a.alloc = func(t *Target) error {
		log.allocs++
		return assert.AnError
	}
	tx = a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(999, 999)))
	require.NoError(t, tx.Acquire("c", specFor(64, 64)))
	_, err = tx.Commit()
	require.Error(t, err)

	after, ok := a.Lookup("a")
	assert.True(t, ok)
	assert.Same(t, before, after)
	_, ok = a.Lookup("c")
	assert.False(t, ok)
}

func TestResizeReallocatesOnlyScreenSizedTargets(t *testing.T) {
	a, _ := newTestArena(1280, 720)

	screen := specFor(1280, 720)
	screen.ScreenSized = true
	fixed := specFor(256, 256)

	tx := a.Begin()
	require.NoError(t, tx.Acquire("screen", screen))
	require.NoError(t, tx.Acquire("fixed", fixed))
	_, err := tx.Commit()
	require.NoError(t, err)
	fixedBefore, _ := a.Lookup("fixed")

	a.Resize(1920, 1080)

	resized, _ := a.Lookup("screen")
	assert.Equal(t, 1920, resized.Spec.Width)
	assert.Equal(t, 1080, resized.Spec.Height)
	assert.Equal(t, uint64(2), resized.Generation)

	same, _ := a.Lookup("fixed")
	assert.Same(t, fixedBefore, same)
}

func TestDestroyFreesEverything(t *testing.T) {
	a, log := newTestArena(1280, 720)

	tx := a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(64, 64)))
	require.NoError(t, tx.Acquire("b", specFor(32, 32)))
	targets, err := tx.Commit()
	require.NoError(t, err)

	// Orphan one by respeccing it while referenced.
	a.Retain(targets["a"])
	tx = a.Begin()
	require.NoError(t, tx.Acquire("a", specFor(128, 128)))
	require.NoError(t, tx.Acquire("b", specFor(32, 32)))
	_, err = tx.Commit()
	require.NoError(t, err)

	a.Destroy()
	assert.Equal(t, 0, log.liveStorage)
}
