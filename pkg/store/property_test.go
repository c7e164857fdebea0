package store

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/dd0wney/cluso-chunkstore/pkg/codec"
)

// newPropertyTestWriter creates a fresh demo-shaped dataset for one property
// iteration.
func newPropertyTestWriter(t *testing.T) *Writer {
	w, err := Create(&DatasetConfig{
		DataDir:     t.TempDir(),
		ChunkSize:   10,
		ElementType: Int32,
		FillValue:   -1,
	})
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}
	return w
}

// TestStoreInvariants uses property-based testing to verify the laws the
// store guarantees for any input.
func TestStoreInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	// Property 1: a published chunk reads back byte-for-byte with its mask
	properties.Property("write then publish round-trips payload and mask", prop.ForAll(
		func(chunkIdx uint64, payloadLen int, fillByte uint8, mask uint32) bool {
			w := newPropertyTestWriter(t)
			defer w.Close()

			payload := bytes.Repeat([]byte{fillByte}, payloadLen)
			offset := chunkIdx * 10

			if err := w.Extend((chunkIdx + 1) * 10); err != nil {
				return false
			}
			if err := w.WriteChunk(offset, payload, mask); err != nil {
				return false
			}
			if err := w.Publish(); err != nil {
				return false
			}

			r, err := OpenReader(w.dir)
			if err != nil {
				return false
			}
			defer r.Close()

			got, gotMask, present, err := r.Chunk(offset)
			if err != nil || !present {
				return false
			}
			return bytes.Equal(got, payload) && gotMask == mask
		},
		gen.UInt64Range(0, 7),
		gen.IntRange(0, 40),
		gen.UInt8(),
		gen.UInt32(),
	))

	// Property 2: extend is idempotent
	properties.Property("extending twice to the same length equals extending once", prop.ForAll(
		func(length uint64) bool {
			w := newPropertyTestWriter(t)
			defer w.Close()

			if err := w.Extend(length); err != nil {
				return false
			}
			if err := w.Extend(length); err != nil {
				return false
			}
			return w.LogicalLength() == length
		},
		gen.UInt64Range(0, 1000),
	))

	// Property 3: every unwritten aligned chunk inside the length is fill
	properties.Property("unwritten chunks synthesize the fill value", prop.ForAll(
		func(numChunks uint64, probeIdx uint64) bool {
			w := newPropertyTestWriter(t)
			defer w.Close()

			if err := w.Extend(numChunks * 10); err != nil {
				return false
			}
			if err := w.Publish(); err != nil {
				return false
			}

			r, err := OpenReader(w.dir)
			if err != nil {
				return false
			}
			defer r.Close()

			offset := (probeIdx % numChunks) * 10
			raw, err := r.ReadChunk(offset, codec.Identity{})
			if err != nil {
				return false
			}
			want := bytes.Repeat(fillBytes(Int32, -1), 10)
			return bytes.Equal(raw, want)
		},
		gen.UInt64Range(1, 16),
		gen.UInt64Range(0, 1<<32),
	))

	// Property 4: oversized payloads are always rejected, never truncated
	properties.Property("oversized payloads are rejected without mutation", prop.ForAll(
		func(excess int) bool {
			w := newPropertyTestWriter(t)
			defer w.Close()

			if err := w.Extend(10); err != nil {
				return false
			}
			err := w.WriteChunk(0, make([]byte, 40+excess), 0)
			return err != nil && w.ChunkCount() == 0
		},
		gen.IntRange(1, 100),
	))

	// Property 5: shrinking always fails and leaves the length alone
	properties.Property("shrink is rejected and length is unchanged", prop.ForAll(
		func(length uint64, shrinkBy uint64) bool {
			w := newPropertyTestWriter(t)
			defer w.Close()

			if err := w.Extend(length); err != nil {
				return false
			}
			cut := shrinkBy%length + 1
			if err := w.Extend(length - cut); err == nil {
				return false
			}
			return w.LogicalLength() == length
		},
		gen.UInt64Range(1, 1000),
		gen.UInt64Range(0, 1<<32),
	))

	properties.TestingRun(t)
}
