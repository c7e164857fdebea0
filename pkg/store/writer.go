package store

import (
	"errors"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/dd0wney/cluso-chunkstore/pkg/logging"
	"github.com/dd0wney/cluso-chunkstore/pkg/metrics"
)

// Option configures a Writer or Reader.
type Option func(*options)

type options struct {
	logger  logging.Logger
	metrics *metrics.Registry
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics wires operation metrics into the given registry.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) { o.metrics = r }
}

func applyOptions(opts []Option) options {
	o := options{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Writer is the single mutating session over a dataset. It owns the chunk
// index and dataset metadata for the session's duration; everything it does
// stays invisible to readers until Publish.
//
// A Writer is meant for a single goroutine (the production loop); the
// internal mutex only guards against accidental concurrent use.
type Writer struct {
	dir     string
	sb      *Superblock // last published state
	curLen  uint64      // working logical length, unpublished
	index   *ChunkIndex // published + pending entries
	log     *chunkLog
	lock    *sessionLock
	logger  logging.Logger
	metrics *metrics.Registry
	failed  bool
	closed  bool
	mu      sync.Mutex
}

// Create initializes a new dataset and opens the first writer session.
// The chunk size and element type are fixed from here on.
func Create(cfg *DatasetConfig, opts ...Option) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, opError("Create", cfg.DataDir, err)
	}
	if err := EnsureDir(cfg.DataDir); err != nil {
		return nil, opError("Create", cfg.DataDir, err)
	}
	if FileExists(filepath.Join(cfg.DataDir, superblockFile)) {
		return nil, opError("Create", cfg.DataDir, ErrDatasetExists)
	}

	sb := &Superblock{
		Version:          superblockVersion,
		ElementType:      cfg.ElementType,
		ChunkSize:        cfg.ChunkSize,
		FillValue:        cfg.FillValue,
		MaxLogicalLength: cfg.MaxLogicalLength,
		LogicalLength:    0,
		LogTail:          0,
		PublishSeq:       0,
		PublishedAt:      time.Now().UTC(),
	}
	if err := writeSuperblock(cfg.DataDir, sb); err != nil {
		return nil, opError("Create", cfg.DataDir, err)
	}

	return OpenWriter(cfg.DataDir, opts...)
}

// OpenWriter opens a writer session over an existing dataset. At most one
// session can be live per dataset; a second attempt fails with ErrAlreadyOpen.
// Chunk-log bytes past the published tail (a crashed session's uncommitted
// work) are discarded.
func OpenWriter(dir string, opts ...Option) (*Writer, error) {
	o := applyOptions(opts)

	sb, err := readSuperblock(dir)
	if err != nil {
		return nil, opError("OpenWriter", dir, err)
	}

	lock, err := acquireSessionLock(dir)
	if err != nil {
		return nil, opError("OpenWriter", dir, err)
	}

	log, err := openChunkLog(filepath.Join(dir, chunkLogFile), sb.LogTail)
	if err != nil {
		lock.Release()
		return nil, opError("OpenWriter", dir, err)
	}

	index := NewChunkIndex()
	if err := scanChunkLog(log.file, 0, sb.LogTail, func(offset uint64, entry ChunkEntry) error {
		index.Upsert(offset, entry)
		return nil
	}); err != nil {
		log.Close()
		lock.Release()
		return nil, opError("OpenWriter", dir, err)
	}

	logger := o.logger.With(
		logging.Component("store"),
		logging.Dataset(dir),
		logging.Session(lock.id),
	)
	logger.Info("writer session opened",
		logging.LogicalLength(sb.LogicalLength),
		logging.Int("chunks", index.Len()),
	)

	return &Writer{
		dir:     dir,
		sb:      sb,
		curLen:  sb.LogicalLength,
		index:   index,
		log:     log,
		lock:    lock,
		logger:  logger,
		metrics: o.metrics,
	}, nil
}

// guard rejects operations on a closed or poisoned session.
func (w *Writer) guard(op string) error {
	if w.closed {
		return opError(op, w.dir, ErrClosed)
	}
	if w.failed {
		return opError(op, w.dir, ErrSessionFailed)
	}
	return nil
}

// Extend grows the dataset's logical length. The newly covered range reads
// back as fill values until chunks are written there. Extending to the
// current length is a no-op; anything smaller is rejected. The new length is
// visible to readers only after Publish.
func (w *Writer) Extend(newLength uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("Extend"); err != nil {
		return err
	}
	if newLength < w.curLen {
		w.rejection("shrink")
		return opError("Extend", w.dir, ErrShrinkNotAllowed)
	}
	if w.sb.MaxLogicalLength != 0 && newLength > w.sb.MaxLogicalLength {
		w.rejection("out_of_range")
		return opError("Extend", w.dir, ErrOutOfRange)
	}
	if newLength == w.curLen {
		return nil
	}

	w.curLen = newLength
	if w.metrics != nil {
		w.metrics.ExtendsTotal.Inc()
	}
	w.logger.Debug("dataset extended", logging.LogicalLength(newLength))
	return nil
}

// WriteChunk records an already-encoded payload for the chunk at offset,
// replacing any existing chunk there. The offset must be chunk-aligned and
// the chunk fully inside the current logical length; the store never
// auto-extends, so extension and data publication stay separable steps.
// Validation happens strictly before any mutation.
func (w *Writer) WriteChunk(offset uint64, payload []byte, filterMask uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("WriteChunk"); err != nil {
		return err
	}
	if offset%w.sb.ChunkSize != 0 {
		w.rejection("unaligned")
		return chunkError("WriteChunk", w.dir, offset, ErrUnalignedOffset)
	}
	if offset > math.MaxUint64-w.sb.ChunkSize || offset+w.sb.ChunkSize > w.curLen {
		w.rejection("out_of_range")
		return chunkError("WriteChunk", w.dir, offset, ErrOutOfRange)
	}
	if len(payload) > w.sb.RawChunkBytes() {
		w.rejection("payload_too_large")
		return chunkError("WriteChunk", w.dir, offset, ErrPayloadTooLarge)
	}

	entry, err := w.log.Append(offset, filterMask, payload)
	if err != nil {
		w.failed = true
		w.logger.Error("chunk append failed", logging.Offset(offset), logging.Error(err))
		return chunkError("WriteChunk", w.dir, offset, errors.Join(ErrSessionFailed, err))
	}
	w.index.Upsert(offset, entry)

	if w.metrics != nil {
		w.metrics.ChunksWrittenTotal.Inc()
		w.metrics.ChunkBytesWritten.Add(float64(len(payload)))
	}
	w.logger.Debug("chunk written",
		logging.Offset(offset),
		logging.ChunkIdx(offset/w.sb.ChunkSize),
		logging.Bytes(len(payload)),
		logging.FilterMask(filterMask),
	)
	return nil
}

// Publish durably flushes everything written since the last publish and
// atomically replaces the superblock. A reader opening the dataset afterward
// sees the new logical length together with every chunk it implies; a reader
// holding an older snapshot simply stays stale until it refreshes.
//
// A flush failure is fatal for the session: the last successfully published
// superblock remains the durable truth and every later mutation fails with
// ErrSessionFailed.
func (w *Writer) Publish() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guard("Publish"); err != nil {
		return err
	}

	start := time.Now()

	if err := w.log.Sync(); err != nil {
		return w.publishFailed(err)
	}

	next := *w.sb
	next.LogicalLength = w.curLen
	next.LogTail = w.log.Tail()
	next.PublishSeq++
	next.PublishedAt = time.Now().UTC()

	if err := writeSuperblock(w.dir, &next); err != nil {
		return w.publishFailed(err)
	}
	w.sb = &next

	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.PublishesTotal.WithLabelValues("ok").Inc()
		w.metrics.PublishDuration.Observe(elapsed.Seconds())
		w.metrics.DatasetLogicalLength.Set(float64(next.LogicalLength))
	}
	w.logger.Info("published",
		logging.LogicalLength(next.LogicalLength),
		logging.Uint64("publish_seq", next.PublishSeq),
		logging.Int("chunks", w.index.Len()),
		logging.Latency(elapsed),
	)
	return nil
}

func (w *Writer) publishFailed(cause error) error {
	w.failed = true
	if w.metrics != nil {
		w.metrics.PublishesTotal.WithLabelValues("error").Inc()
	}
	w.logger.Error("publish failed, session poisoned", logging.Error(cause))
	return opError("Publish", w.dir, errors.Join(ErrSessionFailed, cause))
}

func (w *Writer) rejection(reason string) {
	if w.metrics != nil {
		w.metrics.WriteRejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// Close ends the writer session and releases the writer lock. Unpublished
// work is dropped by the next OpenWriter. Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.log.Tail() != w.sb.LogTail || w.curLen != w.sb.LogicalLength {
		w.logger.Warn("closing with unpublished changes",
			logging.LogicalLength(w.curLen),
			logging.Uint64("published_length", w.sb.LogicalLength),
		)
	}

	logErr := w.log.Close()
	lockErr := w.lock.Release()
	w.logger.Info("writer session closed")

	if err := firstErr(logErr, lockErr); err != nil {
		return opError("Close", w.dir, err)
	}
	return nil
}

// LogicalLength returns the working (possibly unpublished) dataset length.
func (w *Writer) LogicalLength() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.curLen
}

// PublishedLength returns the dataset length as of the last publish.
func (w *Writer) PublishedLength() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sb.LogicalLength
}

// ChunkSize returns the number of elements per chunk.
func (w *Writer) ChunkSize() uint64 { return w.sb.ChunkSize }

// ElementType returns the dataset's element type.
func (w *Writer) ElementType() ElementType { return w.sb.ElementType }

// RawChunkBytes returns the byte budget of one uncompressed chunk.
func (w *Writer) RawChunkBytes() int { return w.sb.RawChunkBytes() }

// SessionID returns the unique ID of this writer session.
func (w *Writer) SessionID() string { return w.lock.id }

// Chunk reports the index entry for a chunk offset in the writer's own
// (published plus pending) view.
func (w *Writer) Chunk(offset uint64) (ChunkEntry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index.Lookup(offset)
}

// ChunkCount returns the number of chunks in the writer's view.
func (w *Writer) ChunkCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index.Len()
}
