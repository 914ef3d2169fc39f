package uniform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreSetGet(t *testing.T) {
	s := NewStore()
	s.Set("time", Float(1.5))
	s.Set("frameCount", Int(42))

	v, ok := s.Get("time")
	assert.True(t, ok)
	assert.Equal(t, Float(1.5), v)

	s.Set("time", Float(2.0))
	v, _ = s.Get("time")
	assert.Equal(t, Float(2.0), v)
	assert.Equal(t, 2, s.Len())
}

func TestStoreNamesSorted(t *testing.T) {
	s := NewStore()
	s.Set("zeta", Float(0))
	s.Set("alpha", Float(0))
	s.Set("mid", Float(0))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.Names())

	s.Delete("mid")
	assert.Equal(t, []string{"alpha", "zeta"}, s.Names())

	s.Set("beta", Float(0))
	assert.Equal(t, []string{"alpha", "beta", "zeta"}, s.Names())
}

func TestStoreDeleteMissing(t *testing.T) {
	s := NewStore()
	s.Set("a", Int(1))
	s.Delete("nope")
	assert.Equal(t, 1, s.Len())
}
