package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-chunkstore/pkg/codec"
	"github.com/dd0wney/cluso-chunkstore/pkg/logging"
	"github.com/dd0wney/cluso-chunkstore/pkg/store"
)

func main() {
	dataDir := flag.String("data", "./data/chunkstore", "Dataset directory")
	interval := flag.Duration("interval", time.Second, "Poll interval")
	level := flag.Int("level", 5, "Deflate level the writer uses")
	flag.Parse()

	fmt.Printf("Cluso ChunkStore - SWMR Reader\n")
	fmt.Printf("==============================\n\n")

	logger := logging.NewDefaultLogger()

	deflate, err := codec.NewDeflate(*level)
	if err != nil {
		log.Fatalf("Invalid compression level: %v", err)
	}

	reader, err := store.OpenReader(*dataDir, store.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer reader.Close()

	fmt.Printf("  Dataset: %s (%s, chunk size %d)\n", *dataDir, reader.ElementType(), reader.ChunkSize())
	fmt.Printf("  Polling every %s, press ctrl-c to stop\n\n", *interval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	lastSeq := uint64(0)
	for {
		if err := reader.Refresh(); err != nil {
			log.Fatalf("Refresh failed: %v", err)
		}

		if seq := reader.PublishSeq(); seq != lastSeq {
			lastSeq = seq
			printLatest(reader, deflate)
		}

		select {
		case <-ctx.Done():
			fmt.Printf("\nDone.\n")
			return
		case <-ticker.C:
		}
	}
}

// printLatest summarizes the newest published chunk.
func printLatest(reader *store.Reader, deflate *codec.Deflate) {
	length := reader.LogicalLength()
	fmt.Printf("snapshot %d: length=%d chunks=%d", reader.PublishSeq(), length, reader.ChunkCount())

	if length >= reader.ChunkSize() {
		offset := length - reader.ChunkSize()
		raw, err := reader.ReadChunk(offset, deflate)
		if err != nil {
			fmt.Printf("  (read failed: %v)\n", err)
			return
		}
		first := int32(binary.LittleEndian.Uint32(raw))
		fmt.Printf("  chunk@%d value=%d", offset, first)
	}
	fmt.Printf("\n")
}
