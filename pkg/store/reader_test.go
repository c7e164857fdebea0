package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-chunkstore/pkg/codec"
)

func TestOpenReader_NoDataset(t *testing.T) {
	_, err := OpenReader(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSuperblock)
}

func TestReader_EmptyDataset(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint64(0), r.LogicalLength())
	assert.Equal(t, 0, r.ChunkCount())

	_, _, present, err := r.Chunk(0)
	require.NoError(t, err)
	assert.False(t, present)

	// Reading any chunk of an empty dataset is out of range
	_, err = r.ReadChunk(0, codec.Identity{})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReader_StaleUntilRefresh(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Extend(10))
	require.NoError(t, w.WriteChunk(0, int32Chunk(10, 0), 0))
	require.NoError(t, w.Publish())

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, uint64(10), r.LogicalLength())

	// Writer publishes a second chunk; the reader's snapshot is unaffected
	require.NoError(t, w.Extend(20))
	require.NoError(t, w.WriteChunk(10, int32Chunk(10, 1), 0))
	require.NoError(t, w.Publish())

	assert.Equal(t, uint64(10), r.LogicalLength(), "reader stays on its snapshot")
	_, _, present, err := r.Chunk(10)
	require.NoError(t, err)
	assert.False(t, present, "unrefreshed reader must not see the new chunk")

	require.NoError(t, r.Refresh())
	assert.Equal(t, uint64(20), r.LogicalLength())
	_, _, present, err = r.Chunk(10)
	require.NoError(t, err)
	assert.True(t, present)
}

func TestReader_RefreshNoopWhenUnchanged(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	defer r.Close()

	seq := r.PublishSeq()
	require.NoError(t, r.Refresh())
	assert.Equal(t, seq, r.PublishSeq())
}

func TestReader_WriterNeverBlockedByReaders(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()

	// Several readers hold open snapshots while the writer keeps going
	var readers []*Reader
	for i := 0; i < 3; i++ {
		r, err := OpenReader(cfg.DataDir)
		require.NoError(t, err)
		readers = append(readers, r)
	}
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()

	for n := uint64(0); n < 3; n++ {
		require.NoError(t, w.Extend((n+1)*10))
		require.NoError(t, w.WriteChunk(n*10, int32Chunk(10, int32(n)), 0))
		require.NoError(t, w.Publish())
	}

	for _, r := range readers {
		require.NoError(t, r.Refresh())
		assert.Equal(t, uint64(30), r.LogicalLength())
	}
}

func TestReader_RoundTripPayloadAndMask(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()

	payload := []byte{0x00, 0xff, 0x10, 0x20, 0x30}
	require.NoError(t, w.Extend(10))
	require.NoError(t, w.WriteChunk(0, payload, 0x5))
	require.NoError(t, w.Publish())

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	defer r.Close()

	got, mask, present, err := r.Chunk(0)
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, payload, got, "payload must round-trip byte-for-byte")
	assert.Equal(t, uint32(0x5), mask, "filter mask must round-trip")
}

func TestReader_FillSynthesisForFloatType(t *testing.T) {
	cfg := &DatasetConfig{
		DataDir:     t.TempDir(),
		ChunkSize:   4,
		ElementType: Float64,
		FillValue:   -1,
	}
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Extend(4))
	require.NoError(t, w.Publish())

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	defer r.Close()

	raw, err := r.ReadChunk(0, codec.Identity{})
	require.NoError(t, err)
	require.Len(t, raw, 32)

	// -1 as float64, repeated four times
	expected := fillBytes(Float64, -1)
	for i := 0; i < 4; i++ {
		assert.Equal(t, expected, raw[i*8:(i+1)*8], "element %d", i)
	}
}

func TestReader_UnalignedReadRejected(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Extend(10))
	require.NoError(t, w.Publish())

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadChunk(3, codec.Identity{})
	assert.ErrorIs(t, err, ErrUnalignedOffset)
}

func TestReader_CorruptPayloadDetected(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)

	require.NoError(t, w.Extend(10))
	require.NoError(t, w.WriteChunk(0, int32Chunk(10, 5), 0))
	require.NoError(t, w.Publish())
	require.NoError(t, w.Close())

	// Flip a payload byte behind the reader's back
	logPath := filepath.Join(cfg.DataDir, chunkLogFile)
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	data[recordHeaderSize] ^= 0xff
	require.NoError(t, os.WriteFile(logPath, data, filePermissions))

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	defer r.Close()

	_, _, _, err = r.Chunk(0)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestReader_ClosedRejectsOperations(t *testing.T) {
	cfg := testConfig(t)
	w, err := Create(cfg)
	require.NoError(t, err)
	defer w.Close()

	r, err := OpenReader(cfg.DataDir)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "close is idempotent")

	assert.ErrorIs(t, r.Refresh(), ErrClosed)
	_, _, _, err = r.Chunk(0)
	assert.ErrorIs(t, err, ErrClosed)
}
