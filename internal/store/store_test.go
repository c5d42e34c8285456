package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{0, 1, -1, 0.5, math.MaxFloat32, float32(math.Inf(1))}
	b := EncodeVector(v)
	assert.Len(t, b, 4*len(v))
	assert.Equal(t, v, DecodeVector(b))

	// 1.0f little-endian.
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, EncodeVector([]float32{1}))
	assert.Equal(t, []float32{1}, DecodeVector([]byte{0x00, 0x00, 0x80, 0x3f, 0xff}))
	assert.Empty(t, DecodeVector(nil))
}

func TestCloneVector(t *testing.T) {
	assert.Nil(t, CloneVector(nil))

	v := []float32{1, 2}
	c := CloneVector(v)
	c[0] = 9
	assert.Equal(t, float32(1), v[0])
}

func TestRegisterAndOpen(t *testing.T) {
	Register("test-driver", func(cfg Config) (Store, error) {
		return nil, nil
	})
	assert.Contains(t, Drivers(), "test-driver")

	_, err := Open(Config{Driver: "test-driver"})
	require.NoError(t, err)

	_, err = Open(Config{Driver: "nope"})
	assert.ErrorContains(t, err, "unknown store driver")

	assert.Panics(t, func() {
		Register("test-driver", func(cfg Config) (Store, error) { return nil, nil })
	})
	assert.Panics(t, func() { Register("nil-driver", nil) })
}
