package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint32(key string, value uint32) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Component field helpers for common component names
func Component(name string) Field {
	return String("component", name)
}

func Operation(op string) Field {
	return String("operation", op)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Path(p string) Field {
	return String("path", p)
}

// Dataset names the dataset directory an operation touches.
func Dataset(dir string) Field {
	return String("dataset", dir)
}

// Offset is the logical element offset of a chunk.
func Offset(off uint64) Field {
	return Uint64("offset", off)
}

// ChunkIdx is the chunk ordinal (offset / chunk size).
func ChunkIdx(idx uint64) Field {
	return Uint64("chunk_idx", idx)
}

// FilterMask records which declared filters were skipped for a chunk.
func FilterMask(mask uint32) Field {
	return Uint32("filter_mask", mask)
}

// Bytes is a payload size in bytes.
func Bytes(n int) Field {
	return Int("bytes", n)
}

// LogicalLength is the dataset length in elements.
func LogicalLength(n uint64) Field {
	return Uint64("logical_length", n)
}

// Session identifies a writer session.
func Session(id string) Field {
	return String("session", id)
}
