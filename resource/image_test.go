package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache swaps GL texture upload for bookkeeping. Each fake load
// hands out a distinct texture id; freed ids are recorded.
func newTestCache() (*ImageCache, *imageLog) {
	log := &imageLog{}
	c := NewImageCache()
	c.load = func(name, path string) (*Image, error) {
		log.loads++
		log.nextTex++
		return &Image{Name: name, Path: path, Tex: log.nextTex}, nil
	}
	c.free = func(img *Image) {
		log.freed = append(log.freed, img.Tex)
	}
	return c, log
}

type imageLog struct {
	loads   int
	nextTex uint32
	freed   []uint32
}

func TestImageUnchangedPathReusesCachedTexture(t *testing.T) {
	c, log := newTestCache()

	tx := c.Begin()
	first, err := tx.Acquire("logo", "logo.png")
	require.NoError(t, err)
	tx.Commit(map[string]bool{"logo": true})

	tx = c.Begin()
	again, err := tx.Acquire("logo", "logo.png")
	require.NoError(t, err)
	tx.Commit(map[string]bool{"logo": true})

	assert.Same(t, first, again)
	assert.Equal(t, 1, log.loads)
	assert.Empty(t, log.freed)
}

func TestImageRollbackKeepsServedTextureLive(t *testing.T) {
	c, log := newTestCache()

	tx := c.Begin()
	old, err := tx.Acquire("logo", "logo.png")
	require.NoError(t, err)
	tx.Commit(map[string]bool{"logo": true})

	// Path change staged, then the reload dies later (shader error,
	// commit failure). The active graph still samples old.Tex.
	tx = c.Begin()
	fresh, err := tx.Acquire("logo", "other.png")
	require.NoError(t, err)
	tx.Rollback()

	assert.Equal(t, []uint32{fresh.Tex}, log.freed)
	assert.NotContains(t, log.freed, old.Tex)
	assert.Same(t, old, c.images["logo"])
}

func TestImagePathChangeFreesOldOnlyAtCommit(t *testing.T) {
	c, log := newTestCache()

	tx := c.Begin()
	old, err := tx.Acquire("logo", "logo.png")
	require.NoError(t, err)
	tx.Commit(map[string]bool{"logo": true})

	tx = c.Begin()
	fresh, err := tx.Acquire("logo", "other.png")
	require.NoError(t, err)
	assert.Empty(t, log.freed)

	tx.Commit(map[string]bool{"logo": true})
	assert.Equal(t, []uint32{old.Tex}, log.freed)
	assert.Same(t, fresh, c.images["logo"])
}

func TestImageCommitSweepsUndeclaredEntries(t *testing.T) {
	c, log := newTestCache()

	tx := c.Begin()
	_, err := tx.Acquire("logo", "logo.png")
	require.NoError(t, err)
	stale, err := tx.Acquire("mask", "mask.png")
	require.NoError(t, err)
	tx.Commit(map[string]bool{"logo": true, "mask": true})

	tx = c.Begin()
	_, err = tx.Acquire("logo", "logo.png")
	require.NoError(t, err)
	tx.Commit(map[string]bool{"logo": true})

	assert.Equal(t, []uint32{stale.Tex}, log.freed)
	_, ok := c.images["mask"]
	assert.False(t, ok)
}
