// Package metrics exposes Prometheus metrics for the chunk store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metrics for the application
type Registry struct {
	// Writer metrics
	ChunksWrittenTotal   prometheus.Counter
	ChunkBytesWritten    prometheus.Counter
	ExtendsTotal         prometheus.Counter
	PublishesTotal       *prometheus.CounterVec
	PublishDuration      prometheus.Histogram
	DatasetLogicalLength prometheus.Gauge
	WriteRejectionsTotal *prometheus.CounterVec

	// Reader metrics
	ReaderRefreshesTotal prometheus.Counter
	ReaderChunksRead     prometheus.Counter

	// Codec metrics
	CodecBytesRaw     *prometheus.CounterVec
	CodecBytesEncoded *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{registry: reg}
	r.initWriterMetrics()
	r.initReaderMetrics()
	r.initCodecMetrics()
	return r
}

func (r *Registry) initWriterMetrics() {
	r.ChunksWrittenTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chunkstore_chunks_written_total",
			Help: "Total number of chunks written via the direct path",
		},
	)

	r.ChunkBytesWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chunkstore_chunk_bytes_written_total",
			Help: "Total encoded payload bytes appended to the chunk log",
		},
	)

	r.ExtendsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chunkstore_extends_total",
			Help: "Total number of dataset extensions",
		},
	)

	r.PublishesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunkstore_publishes_total",
			Help: "Total number of publish operations",
		},
		[]string{"status"},
	)

	r.PublishDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chunkstore_publish_duration_seconds",
			Help:    "Publish operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
	)

	r.DatasetLogicalLength = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "chunkstore_dataset_logical_length",
			Help: "Published dataset length in elements",
		},
	)

	r.WriteRejectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunkstore_write_rejections_total",
			Help: "Writer operations rejected before any mutation",
		},
		[]string{"reason"},
	)
}

func (r *Registry) initReaderMetrics() {
	r.ReaderRefreshesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chunkstore_reader_refreshes_total",
			Help: "Reader refreshes that advanced to a newer snapshot",
		},
	)

	r.ReaderChunksRead = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "chunkstore_reader_chunks_read_total",
			Help: "Published chunk payloads served to readers",
		},
	)
}

func (r *Registry) initCodecMetrics() {
	r.CodecBytesRaw = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunkstore_codec_bytes_raw_total",
			Help: "Raw chunk bytes fed to caller-side codecs",
		},
		[]string{"codec"},
	)

	r.CodecBytesEncoded = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "chunkstore_codec_bytes_encoded_total",
			Help: "Encoded chunk bytes produced by caller-side codecs",
		},
		[]string{"codec"},
	)
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// RecordEncode tracks a caller-side encode for compression visibility.
func (r *Registry) RecordEncode(codec string, rawBytes, encodedBytes int) {
	r.CodecBytesRaw.WithLabelValues(codec).Add(float64(rawBytes))
	r.CodecBytesEncoded.WithLabelValues(codec).Add(float64(encodedBytes))
}
