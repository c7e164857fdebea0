package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

// Snappy compresses chunks with snappy block encoding. It trades ratio for
// speed and has no levels. Incompressible chunks encode larger than the raw
// buffer and are rejected by the store's size check.
type Snappy struct{}

// Name returns the codec identifier.
func (Snappy) Name() string { return "snappy" }

// SnappyBound returns the worst-case encoded size for n input bytes.
func SnappyBound(n int) int {
	return snappy.MaxEncodedLen(n)
}

// Encode compresses the raw chunk with filter mask 0.
func (Snappy) Encode(raw []byte) ([]byte, uint32, error) {
	return snappy.Encode(nil, raw), 0, nil
}

// Decode decompresses an encoded chunk and verifies the decoded length.
func (Snappy) Decode(encoded []byte, rawLen int) ([]byte, error) {
	raw, err := snappy.Decode(nil, encoded)
	if err != nil {
		return nil, fmt.Errorf("snappy decode: %w", ErrCorruptPayload)
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("snappy decode: got %d bytes, want %d: %w", len(raw), rawLen, ErrCorruptPayload)
	}
	return raw, nil
}
