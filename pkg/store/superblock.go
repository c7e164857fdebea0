package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const superblockVersion = 1

// Superblock is the published dataset metadata. It is the only file readers
// trust: logical length and the chunk-log tail advance together, atomically,
// at Publish. Everything in the chunk log past LogTail is unpublished.
type Superblock struct {
	Version          uint32      `json:"version"`
	ElementType      ElementType `json:"element_type"`
	ChunkSize        uint64      `json:"chunk_size"`
	FillValue        int64       `json:"fill_value"`
	MaxLogicalLength uint64      `json:"max_logical_length"`
	LogicalLength    uint64      `json:"logical_length"`
	LogTail          int64       `json:"log_tail"`
	PublishSeq       uint64      `json:"publish_seq"`
	PublishedAt      time.Time   `json:"published_at"`
}

// RawChunkBytes returns the byte budget of one uncompressed chunk.
func (sb *Superblock) RawChunkBytes() int {
	return int(sb.ChunkSize) * sb.ElementType.Size()
}

// fillChunk synthesizes one raw chunk filled with the fill value.
func (sb *Superblock) fillChunk() []byte {
	elem := fillBytes(sb.ElementType, sb.FillValue)
	chunk := make([]byte, sb.RawChunkBytes())
	for i := 0; i < len(chunk); i += len(elem) {
		copy(chunk[i:], elem)
	}
	return chunk
}

// writeSuperblock publishes the superblock atomically (tmp + rename + dir
// fsync).
func writeSuperblock(dir string, sb *Superblock) error {
	data, err := json.MarshalIndent(sb, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal superblock: %w", err)
	}
	return atomicWriteFile(filepath.Join(dir, superblockFile), data)
}

// readSuperblock loads the latest published superblock.
func readSuperblock(dir string) (*Superblock, error) {
	data, err := os.ReadFile(filepath.Join(dir, superblockFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSuperblock
		}
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	var sb Superblock
	if err := json.Unmarshal(data, &sb); err != nil {
		return nil, fmt.Errorf("failed to parse superblock: %w", err)
	}
	if sb.Version != superblockVersion {
		return nil, fmt.Errorf("unsupported superblock version %d", sb.Version)
	}
	return &sb, nil
}
