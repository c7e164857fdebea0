package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dd0wney/cluso-chunkstore/pkg/codec"
	"github.com/dd0wney/cluso-chunkstore/pkg/logging"
	"github.com/dd0wney/cluso-chunkstore/pkg/metrics"
	"github.com/dd0wney/cluso-chunkstore/pkg/store"
)

func main() {
	dataDir := flag.String("data", "./data/chunkstore", "Dataset directory")
	configPath := flag.String("config", "", "Optional dataset YAML config")
	interval := flag.Duration("interval", time.Second, "Chunk production interval")
	level := flag.Int("level", 5, "Deflate compression level (0-9)")
	metricsAddr := flag.String("metrics", "", "Prometheus listen address (e.g. :2112), empty to disable")
	flag.Parse()

	fmt.Printf("Cluso ChunkStore - Direct Chunk Writer\n")
	fmt.Printf("======================================\n\n")

	logger := logging.NewDefaultLogger()

	cfg := &store.DatasetConfig{
		DataDir:     *dataDir,
		ChunkSize:   10,
		ElementType: store.Int32,
		FillValue:   -1,
	}
	if *configPath != "" {
		loaded, err := store.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	registry := metrics.NewRegistry()
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry.GetPrometheusRegistry(), promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", logging.Error(err))
			}
		}()
		fmt.Printf("  Metrics: http://localhost%s/metrics\n", *metricsAddr)
	}

	deflate, err := codec.NewDeflate(*level)
	if err != nil {
		log.Fatalf("Invalid compression level: %v", err)
	}

	writer, err := openOrCreate(cfg, logger, registry)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer writer.Close()

	if writer.ElementType() != store.Int32 {
		log.Fatalf("Synthetic producer only fills int32 datasets, got %s", writer.ElementType())
	}

	fmt.Printf("  Dataset: %s (%s, chunk size %d, deflate level %d)\n",
		cfg.DataDir, cfg.ElementType, cfg.ChunkSize, deflate.Level())
	fmt.Printf("  Producing one chunk every %s\n", *interval)
	fmt.Printf("  Press ctrl-c to stop\n\n")

	// Cancellation is observed only between chunk cycles, so a cycle is
	// never torn: each one either publishes fully or is dropped at reopen.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := produce(ctx, writer, deflate, registry, *interval); err != nil {
		log.Fatalf("Producer failed: %v", err)
	}

	fmt.Printf("\nDone. Published %d elements.\n", writer.PublishedLength())
}

func openOrCreate(cfg *store.DatasetConfig, logger logging.Logger, registry *metrics.Registry) (*store.Writer, error) {
	opts := []store.Option{store.WithLogger(logger), store.WithMetrics(registry)}

	writer, err := store.Create(cfg, opts...)
	if errors.Is(err, store.ErrDatasetExists) {
		return store.OpenWriter(cfg.DataDir, opts...)
	}
	return writer, err
}

// produce runs the {extend, encode, write, publish} cycle until cancelled.
func produce(ctx context.Context, writer *store.Writer, deflate *codec.Deflate, registry *metrics.Registry, interval time.Duration) error {
	chunkSize := writer.ChunkSize()
	elemSize := writer.ElementType().Size()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		chunkIdx := writer.LogicalLength() / chunkSize

		// Synthetic data: every element of chunk n holds the value n,
		// which makes screwups easy to spot.
		raw := make([]byte, int(chunkSize)*elemSize)
		for i := uint64(0); i < chunkSize; i++ {
			binary.LittleEndian.PutUint32(raw[int(i)*elemSize:], uint32(chunkIdx))
		}

		encoded, mask, err := deflate.Encode(raw)
		if err != nil {
			return fmt.Errorf("encode chunk %d: %w", chunkIdx, err)
		}
		registry.RecordEncode(deflate.Name(), len(raw), len(encoded))

		if err := writer.Extend((chunkIdx + 1) * chunkSize); err != nil {
			return fmt.Errorf("extend for chunk %d: %w", chunkIdx, err)
		}
		if err := writer.WriteChunk(chunkIdx*chunkSize, encoded, mask); err != nil {
			return fmt.Errorf("write chunk %d: %w", chunkIdx, err)
		}
		if err := writer.Publish(); err != nil {
			return fmt.Errorf("publish chunk %d: %w", chunkIdx, err)
		}

		fmt.Printf("chunk %d published (%d -> %d bytes)\n", chunkIdx, len(raw), len(encoded))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
