package codec

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"
)

// Deflate compresses chunks with zlib/deflate at a fixed level, the same
// transform HDF5's deflate filter applies. Running it caller-side lets the
// store accept pre-compressed payloads without its own filter pipeline.
type Deflate struct {
	level int
}

// NewDeflate creates a deflate codec with a compression level in [0, 9].
func NewDeflate(level int) (*Deflate, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("deflate level %d: %w", level, ErrInvalidLevel)
	}
	return &Deflate{level: level}, nil
}

// Name returns the codec identifier.
func (d *Deflate) Name() string { return "deflate" }

// Level returns the configured compression level.
func (d *Deflate) Level() int { return d.level }

// DeflateBound returns the worst-case encoded size for n input bytes,
// per the standard zlib compress bound.
func DeflateBound(n int) int {
	return int(math.Ceil(float64(n)*1.001)) + 12
}

// Encode compresses the raw chunk. The filter mask is 0: the declared
// transform was applied, merely by the caller instead of the store.
func (d *Deflate) Encode(raw []byte) ([]byte, uint32, error) {
	var buf bytes.Buffer
	buf.Grow(DeflateBound(len(raw)))

	zw, err := zlib.NewWriterLevel(&buf, d.level)
	if err != nil {
		return nil, 0, fmt.Errorf("deflate encode: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		zw.Close()
		return nil, 0, fmt.Errorf("deflate encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, 0, fmt.Errorf("deflate encode: %w", err)
	}

	return buf.Bytes(), 0, nil
}

// Decode decompresses an encoded chunk. The result must be exactly rawLen
// bytes; anything else means the payload does not match the chunk it claims
// to be.
func (d *Deflate) Decode(encoded []byte, rawLen int) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("deflate decode: %w", ErrCorruptPayload)
	}
	defer zr.Close()

	raw := make([]byte, rawLen)
	if _, err := io.ReadFull(zr, raw); err != nil {
		return nil, fmt.Errorf("deflate decode: %w", ErrCorruptPayload)
	}
	// Trailing bytes mean the encoded payload was for a larger chunk
	if n, _ := zr.Read(make([]byte, 1)); n != 0 {
		return nil, fmt.Errorf("deflate decode: oversized payload: %w", ErrCorruptPayload)
	}

	return raw, nil
}
