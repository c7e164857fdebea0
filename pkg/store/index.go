package store

import "sort"

// ChunkIndex maps a chunk's logical offset to its location in the chunk log.
// Keys are unique per dataset and lookup is by offset only. The index is
// owned by exactly one Writer or Reader and is not safe for shared mutation.
type ChunkIndex struct {
	entries map[uint64]ChunkEntry
}

// NewChunkIndex creates an empty index.
func NewChunkIndex() *ChunkIndex {
	return &ChunkIndex{entries: make(map[uint64]ChunkEntry)}
}

// Upsert inserts or replaces the entry for a chunk offset. A chunk write
// always replaces the full encoded payload; there is no read-modify-write.
func (idx *ChunkIndex) Upsert(offset uint64, entry ChunkEntry) {
	idx.entries[offset] = entry
}

// Lookup returns the entry for a chunk offset. Absence is not an error; it
// means the chunk reads back as fill values.
func (idx *ChunkIndex) Lookup(offset uint64) (ChunkEntry, bool) {
	entry, ok := idx.entries[offset]
	return entry, ok
}

// Len returns the number of indexed chunks.
func (idx *ChunkIndex) Len() int {
	return len(idx.entries)
}

// Offsets returns all indexed chunk offsets in ascending order.
func (idx *ChunkIndex) Offsets() []uint64 {
	offsets := make([]uint64, 0, len(idx.entries))
	for off := range idx.entries {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	return offsets
}

// Clone returns an independent copy of the index.
func (idx *ChunkIndex) Clone() *ChunkIndex {
	entries := make(map[uint64]ChunkEntry, len(idx.entries))
	for off, entry := range idx.entries {
		entries[off] = entry
	}
	return &ChunkIndex{entries: entries}
}
