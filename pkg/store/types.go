// Package store implements a chunked, extensible one-dimensional array store
// with a direct chunk-write path and single-writer/multiple-reader
// consistency.
//
// A dataset grows by fixed-size chunks. The writer appends already-encoded
// chunk payloads to an append-only chunk log and makes them visible to
// readers by atomically replacing the dataset superblock (Publish). Readers
// never look at log bytes past the published tail, so a torn append is
// unobservable; logical positions not yet covered by a written chunk read
// back as the dataset's fill value.
package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

const (
	// File and directory permissions
	dirPermissions  = 0755
	filePermissions = 0644

	superblockFile = "superblock.json"
	chunkLogFile   = "chunks.log"
	writerLockFile = "writer.lock"
)

// ElementType is a fixed-width scalar element descriptor.
type ElementType uint8

const (
	Int8 ElementType = iota + 1
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

// Size returns the element width in bytes.
func (t ElementType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}

// String returns the type name used in configs and the superblock.
func (t ElementType) String() string {
	switch t {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Int64:
		return "int64"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}

// ParseElementType converts a type name to an ElementType.
func ParseElementType(s string) (ElementType, error) {
	for t := Int8; t <= Float64; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown element type %q: %w", s, ErrInvalidConfig)
}

// MarshalYAML implements yaml.Marshaler.
func (t ElementType) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *ElementType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseElementType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler for the superblock.
func (t ElementType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for the superblock.
func (t *ElementType) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("element type: %w", ErrInvalidConfig)
	}
	parsed, err := ParseElementType(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// fillBytes encodes the fill value as one little-endian element.
// Integer types take the value directly; float types take the converted value.
func fillBytes(t ElementType, fill int64) []byte {
	buf := make([]byte, t.Size())
	switch t {
	case Int8, Uint8:
		buf[0] = byte(fill)
	case Int16, Uint16:
		binary.LittleEndian.PutUint16(buf, uint16(fill))
	case Int32, Uint32:
		binary.LittleEndian.PutUint32(buf, uint32(fill))
	case Int64, Uint64:
		binary.LittleEndian.PutUint64(buf, uint64(fill))
	case Float32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(fill)))
	case Float64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(float64(fill)))
	}
	return buf
}

// ChunkEntry locates one encoded chunk payload inside the chunk log.
type ChunkEntry struct {
	Position   int64  // Byte position of the payload in the chunk log
	Length     uint32 // Encoded payload length in bytes
	FilterMask uint32 // Declared transforms skipped when the chunk was written
}
