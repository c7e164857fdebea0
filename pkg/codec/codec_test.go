package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeflate_RoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x05, 0x00, 0x00, 0x00}, 10) // ten int32 values of 5

	for _, level := range []int{0, 1, 5, 9} {
		d, err := NewDeflate(level)
		require.NoError(t, err)

		encoded, mask, err := d.Encode(raw)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), mask, "caller-side deflate still counts as the declared filter")
		assert.LessOrEqual(t, len(encoded), DeflateBound(len(raw)))

		decoded, err := d.Decode(encoded, len(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, decoded)
	}
}

func TestDeflate_InvalidLevel(t *testing.T) {
	for _, level := range []int{-1, 10, 100} {
		_, err := NewDeflate(level)
		assert.ErrorIs(t, err, ErrInvalidLevel, "level %d", level)
	}
}

func TestDeflate_CompressesRepetitiveData(t *testing.T) {
	raw := bytes.Repeat([]byte{0x2a}, 4096)

	d, err := NewDeflate(5)
	require.NoError(t, err)

	encoded, _, err := d.Encode(raw)
	require.NoError(t, err)
	assert.Less(t, len(encoded), len(raw))
}

func TestDeflate_IncompressibleStaysWithinBound(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	raw := make([]byte, 4096)
	rng.Read(raw)

	d, err := NewDeflate(9)
	require.NoError(t, err)

	encoded, _, err := d.Encode(raw)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(encoded), DeflateBound(len(raw)))
}

func TestDeflate_DecodeCorrupt(t *testing.T) {
	d, err := NewDeflate(5)
	require.NoError(t, err)

	_, err = d.Decode([]byte{0xde, 0xad, 0xbe, 0xef}, 40)
	assert.ErrorIs(t, err, ErrCorruptPayload)
}

func TestDeflate_DecodeWrongRawLen(t *testing.T) {
	raw := bytes.Repeat([]byte{7}, 40)

	d, err := NewDeflate(5)
	require.NoError(t, err)

	encoded, _, err := d.Encode(raw)
	require.NoError(t, err)

	// Asking for fewer bytes than were encoded leaves trailing data
	_, err = d.Decode(encoded, 20)
	assert.ErrorIs(t, err, ErrCorruptPayload)
}

func TestIdentity_RoundTrip(t *testing.T) {
	raw := []byte("ten bytes!")

	var id Identity
	encoded, mask, err := id.Encode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), mask)
	assert.Equal(t, raw, encoded)

	decoded, err := id.Decode(encoded, len(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	_, err = id.Decode(encoded, len(raw)+1)
	assert.ErrorIs(t, err, ErrCorruptPayload)
}

func TestSnappy_RoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0x01, 0x02}, 512)

	var s Snappy
	encoded, mask, err := s.Encode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), mask)
	assert.LessOrEqual(t, len(encoded), SnappyBound(len(raw)))

	decoded, err := s.Decode(encoded, len(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestSnappy_DecodeCorrupt(t *testing.T) {
	var s Snappy
	_, err := s.Decode([]byte{0xff, 0xff, 0xff}, 10)
	assert.ErrorIs(t, err, ErrCorruptPayload)
}

func TestDeflateBound(t *testing.T) {
	// The compress2 bound: ceil(n * 1.001) + 12
	assert.Equal(t, 12, DeflateBound(0))
	assert.Equal(t, 53, DeflateBound(40))
	assert.Equal(t, 1014, DeflateBound(1000))
}
