package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dd0wney/cluso-chunkstore/pkg/codec"
	"github.com/dd0wney/cluso-chunkstore/pkg/logging"
	"github.com/dd0wney/cluso-chunkstore/pkg/metrics"
)

// Reader is a read-only, point-in-time view of a dataset. It observes the
// latest published superblock at open time and again at each Refresh; it
// takes no locks and never blocks the writer. Between refreshes a Reader may
// be stale relative to newer publishes, which is expected behavior.
type Reader struct {
	dir     string
	file    *os.File
	sb      *Superblock
	index   *ChunkIndex
	scanned int64 // chunk-log bytes already indexed
	logger  logging.Logger
	metrics *metrics.Registry
	closed  bool
	mu      sync.Mutex
}

// OpenReader opens a snapshot of the latest published dataset state.
func OpenReader(dir string, opts ...Option) (*Reader, error) {
	o := applyOptions(opts)

	sb, err := readSuperblock(dir)
	if err != nil {
		return nil, opError("OpenReader", dir, err)
	}

	file, err := os.Open(filepath.Join(dir, chunkLogFile))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, opError("OpenReader", dir, err)
		}
		// Dataset created but no chunk ever written
		file = nil
	}

	r := &Reader{
		dir:     dir,
		file:    file,
		sb:      sb,
		index:   NewChunkIndex(),
		logger:  o.logger.With(logging.Component("reader"), logging.Dataset(dir)),
		metrics: o.metrics,
	}
	if err := r.scanTo(sb.LogTail); err != nil {
		r.Close()
		return nil, opError("OpenReader", dir, err)
	}

	r.logger.Debug("reader opened",
		logging.LogicalLength(sb.LogicalLength),
		logging.Uint64("publish_seq", sb.PublishSeq),
	)
	return r, nil
}

// scanTo indexes published chunk records up to tail.
func (r *Reader) scanTo(tail int64) error {
	if tail == r.scanned {
		return nil
	}
	if r.file == nil {
		file, err := os.Open(filepath.Join(r.dir, chunkLogFile))
		if err != nil {
			return fmt.Errorf("failed to open chunk log: %w", err)
		}
		r.file = file
	}
	if err := scanChunkLog(r.file, r.scanned, tail, func(offset uint64, entry ChunkEntry) error {
		r.index.Upsert(offset, entry)
		return nil
	}); err != nil {
		return err
	}
	r.scanned = tail
	return nil
}

// Refresh advances the view to the latest published snapshot. Published
// records are strictly appended, so only the delta since the last scan is
// indexed.
func (r *Reader) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return opError("Refresh", r.dir, ErrClosed)
	}

	sb, err := readSuperblock(r.dir)
	if err != nil {
		return opError("Refresh", r.dir, err)
	}
	if sb.PublishSeq == r.sb.PublishSeq {
		return nil
	}
	if sb.PublishSeq < r.sb.PublishSeq || sb.LogTail < r.scanned {
		// Dataset was recreated underneath us; a fresh Reader is required
		return opError("Refresh", r.dir, fmt.Errorf("published state went backwards: %w", ErrCorruptRecord))
	}

	if err := r.scanTo(sb.LogTail); err != nil {
		return opError("Refresh", r.dir, err)
	}
	r.sb = sb

	if r.metrics != nil {
		r.metrics.ReaderRefreshesTotal.Inc()
	}
	r.logger.Debug("refreshed",
		logging.LogicalLength(sb.LogicalLength),
		logging.Uint64("publish_seq", sb.PublishSeq),
	)
	return nil
}

// Chunk returns the encoded payload and filter mask of the chunk at offset.
// present is false when no chunk has been published there, which means the
// range reads back as fill values.
func (r *Reader) Chunk(offset uint64) (payload []byte, filterMask uint32, present bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, 0, false, opError("Chunk", r.dir, ErrClosed)
	}

	entry, ok := r.index.Lookup(offset)
	if !ok {
		return nil, 0, false, nil
	}

	payload, err = readRecordPayload(r.file, entry)
	if err != nil {
		return nil, 0, false, chunkError("Chunk", r.dir, offset, err)
	}
	if r.metrics != nil {
		r.metrics.ReaderChunksRead.Inc()
	}
	return payload, entry.FilterMask, true, nil
}

// ReadChunk returns the raw (decoded) bytes of the chunk at offset. An
// unwritten chunk inside the logical length is synthesized from the fill
// value. dec must reverse the transform the chunk was encoded with; for
// chunks written without one, pass codec.Identity.
func (r *Reader) ReadChunk(offset uint64, dec codec.Codec) ([]byte, error) {
	if offset%r.sb.ChunkSize != 0 {
		return nil, chunkError("ReadChunk", r.dir, offset, ErrUnalignedOffset)
	}

	payload, _, present, err := r.Chunk(offset)
	if err != nil {
		return nil, err
	}
	if !present {
		r.mu.Lock()
		defer r.mu.Unlock()
		if offset+r.sb.ChunkSize > r.sb.LogicalLength {
			return nil, chunkError("ReadChunk", r.dir, offset, ErrOutOfRange)
		}
		return r.sb.fillChunk(), nil
	}

	raw, err := dec.Decode(payload, r.sb.RawChunkBytes())
	if err != nil {
		return nil, chunkError("ReadChunk", r.dir, offset, err)
	}
	return raw, nil
}

// LogicalLength returns the dataset length of the current snapshot.
func (r *Reader) LogicalLength() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sb.LogicalLength
}

// PublishSeq returns the publish sequence number of the current snapshot.
func (r *Reader) PublishSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sb.PublishSeq
}

// ChunkSize returns the number of elements per chunk.
func (r *Reader) ChunkSize() uint64 { return r.sb.ChunkSize }

// ElementType returns the dataset's element type.
func (r *Reader) ElementType() ElementType { return r.sb.ElementType }

// ChunkCount returns the number of published chunks in the snapshot.
func (r *Reader) ChunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.Len()
}

// Close releases the reader's file handle. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.file != nil {
		if err := r.file.Close(); err != nil {
			return opError("Close", r.dir, err)
		}
	}
	return nil
}
