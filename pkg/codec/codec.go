// Package codec provides chunk payload transforms for the direct-write path.
//
// A codec runs the dataset's declared transform on the caller's side so the
// encoded bytes can be handed to the store as-is. The store never inspects
// payload bytes; it only records the filter mask the codec reports.
package codec

import "errors"

// Common sentinel errors
var (
	ErrInvalidLevel   = errors.New("compression level out of range")
	ErrCorruptPayload = errors.New("corrupt encoded payload")
)

// Filter mask bits. A set bit means the corresponding declared transform was
// skipped when the chunk was written. Mask 0 means every declared transform
// was applied.
const (
	MaskSkipCompression uint32 = 1 << 0
)

// Codec encodes a raw fixed-size chunk buffer into an opaquely-sized payload.
type Codec interface {
	// Name returns a short identifier for logs and metrics.
	Name() string

	// Encode transforms a raw chunk buffer. The returned filter mask is
	// recorded verbatim with the chunk. Encode never truncates: an encoding
	// larger than the chunk's raw size is returned as-is and rejected by the
	// store.
	Encode(raw []byte) (encoded []byte, filterMask uint32, err error)

	// Decode reverses Encode. rawLen is the expected decoded size in bytes.
	Decode(encoded []byte, rawLen int) ([]byte, error)
}

// Identity passes chunk bytes through untouched with filter mask 0. It is the
// variant to use when the store's own pipeline should run instead of a
// caller-side transform.
type Identity struct{}

// Name returns the codec identifier.
func (Identity) Name() string { return "identity" }

// Encode returns the input unchanged.
func (Identity) Encode(raw []byte) ([]byte, uint32, error) {
	return raw, 0, nil
}

// Decode returns the input unchanged.
func (Identity) Decode(encoded []byte, rawLen int) ([]byte, error) {
	if len(encoded) != rawLen {
		return nil, ErrCorruptPayload
	}
	return encoded, nil
}
