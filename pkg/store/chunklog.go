package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Chunk log record format:
//
//	[Offset:8][FilterMask:4][PayloadLen:4][Payload:N][Checksum:4]
//
// Big-endian, checksum is CRC32 (IEEE) over the payload. Records are
// append-only; a later record for the same offset replaces the earlier one.
// Nothing in the log is authoritative past the superblock's published tail.
const recordHeaderSize = 16
const recordTrailerSize = 4

// chunkLog is the writer-side handle to the append-only chunk record log.
type chunkLog struct {
	file *os.File
	w    *bufio.Writer
	tail int64 // log size including buffered bytes
}

// openChunkLog opens the log for appending, discarding any bytes past the
// published tail. Unpublished records from a crashed session are dropped
// here; the last published superblock stays the durable truth.
func openChunkLog(path string, publishedTail int64) (*chunkLog, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, filePermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk log: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat chunk log: %w", err)
	}
	if info.Size() < publishedTail {
		file.Close()
		return nil, fmt.Errorf("chunk log shorter than published tail (%d < %d): %w",
			info.Size(), publishedTail, ErrCorruptRecord)
	}
	if info.Size() > publishedTail {
		if err := file.Truncate(publishedTail); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to drop unpublished records: %w", err)
		}
	}
	if _, err := file.Seek(publishedTail, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek chunk log: %w", err)
	}

	return &chunkLog{
		file: file,
		w:    bufio.NewWriter(file),
		tail: publishedTail,
	}, nil
}

// Append writes one chunk record and returns the payload's position and the
// new log tail. The record stays invisible to readers until the tail is
// published.
func (cl *chunkLog) Append(offset uint64, filterMask uint32, payload []byte) (ChunkEntry, error) {
	var header [recordHeaderSize]byte
	binary.BigEndian.PutUint64(header[0:8], offset)
	binary.BigEndian.PutUint32(header[8:12], filterMask)
	binary.BigEndian.PutUint32(header[12:16], uint32(len(payload)))

	if _, err := cl.w.Write(header[:]); err != nil {
		return ChunkEntry{}, err
	}
	if _, err := cl.w.Write(payload); err != nil {
		return ChunkEntry{}, err
	}

	var trailer [recordTrailerSize]byte
	binary.BigEndian.PutUint32(trailer[:], crc32.ChecksumIEEE(payload))
	if _, err := cl.w.Write(trailer[:]); err != nil {
		return ChunkEntry{}, err
	}

	entry := ChunkEntry{
		Position:   cl.tail + recordHeaderSize,
		Length:     uint32(len(payload)),
		FilterMask: filterMask,
	}
	cl.tail += recordHeaderSize + int64(len(payload)) + recordTrailerSize
	return entry, nil
}

// Tail returns the log size including buffered bytes.
func (cl *chunkLog) Tail() int64 {
	return cl.tail
}

// Sync flushes the buffer and fsyncs the file.
func (cl *chunkLog) Sync() error {
	if err := cl.w.Flush(); err != nil {
		return err
	}
	return cl.file.Sync()
}

// Close flushes and closes the log without publishing.
func (cl *chunkLog) Close() error {
	if err := cl.w.Flush(); err != nil {
		cl.file.Close()
		return err
	}
	return cl.file.Close()
}

// scanChunkLog walks records in [from, limit) of a chunk log and calls fn for
// each. limit must be a published tail so it always falls on a record
// boundary; a short record inside the limit means corruption.
func scanChunkLog(r io.ReaderAt, from, limit int64, fn func(offset uint64, entry ChunkEntry) error) error {
	pos := from
	var header [recordHeaderSize]byte

	for pos < limit {
		if pos+recordHeaderSize > limit {
			return fmt.Errorf("truncated record header at %d: %w", pos, ErrCorruptRecord)
		}
		if _, err := r.ReadAt(header[:], pos); err != nil {
			return fmt.Errorf("failed to read record header at %d: %w", pos, err)
		}

		offset := binary.BigEndian.Uint64(header[0:8])
		mask := binary.BigEndian.Uint32(header[8:12])
		payloadLen := binary.BigEndian.Uint32(header[12:16])

		recordEnd := pos + recordHeaderSize + int64(payloadLen) + recordTrailerSize
		if recordEnd > limit {
			return fmt.Errorf("truncated record at %d: %w", pos, ErrCorruptRecord)
		}

		entry := ChunkEntry{
			Position:   pos + recordHeaderSize,
			Length:     payloadLen,
			FilterMask: mask,
		}
		if err := fn(offset, entry); err != nil {
			return err
		}
		pos = recordEnd
	}

	return nil
}

// readRecordPayload reads and checksum-verifies one payload located by entry.
func readRecordPayload(r io.ReaderAt, entry ChunkEntry) ([]byte, error) {
	buf := make([]byte, int(entry.Length)+recordTrailerSize)
	if _, err := r.ReadAt(buf, entry.Position); err != nil {
		return nil, fmt.Errorf("failed to read chunk payload: %w", err)
	}

	payload := buf[:entry.Length]
	want := binary.BigEndian.Uint32(buf[entry.Length:])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, fmt.Errorf("checksum mismatch (got %08x, want %08x): %w", got, want, ErrCorruptRecord)
	}
	return payload, nil
}
