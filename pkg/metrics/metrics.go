// Package metrics exposes Prometheus metrics for document generation runs.
//
// # Basic Usage
//
//	timer := metrics.NewTimer()
//	err := store.Persist(ctx, batch)
//	metrics.ObserveBatch("postgres", len(batch), models.PayloadSize(batch), timer.Stop(), err)
//
// All metrics register with the default Prometheus registry on package
// load and are served by the HTTP API under /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

// Batch status labels
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// RecordsGenerated counts documents built by the generator.
	// Labels: destination (storage driver)
	RecordsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_records_generated_total",
			Help: "Total number of documents generated",
		},
		[]string{"destination"},
	)

	// BatchesPersisted counts persist calls by outcome. For failures the
	// error_type label carries the error taxonomy, "" on success.
	//
	//	metrics.BatchesPersisted.WithLabelValues("sqlite", "failure", "conflict").Inc()
	BatchesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_batches_persisted_total",
			Help: "Total number of batches handed to storage",
		},
		[]string{"destination", "status", "error_type"},
	)

	// PersistLatency is the duration of one persist call in seconds
	PersistLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "docgen_persist_latency_seconds",
			Help: "Latency of one batch persist in seconds",
			Buckets: []float64{
				0.001, // 1ms - in-memory store
				0.005,
				0.01,
				0.05,
				0.1, // 100ms - typical multi-row insert
				0.5,
				1,
				5,
				30, // large COPY batches
			},
		},
		[]string{"destination"},
	)

	// BatchSize is the distribution of records per batch
	BatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgen_batch_size_records",
			Help:    "Number of records per persisted batch",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"destination"},
	)

	// PayloadBytes counts serialized document bytes handed to storage
	PayloadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgen_payload_bytes_total",
			Help: "Total serialized payload bytes handed to storage",
		},
		[]string{"destination"},
	)

	// Throughput tracks records per second of the most recent window
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docgen_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"destination"},
	)

	// ActiveRuns is the number of generation runs in flight
	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgen_active_runs",
			Help: "Number of generation runs in progress",
		},
	)

	// ResidentMemory is the process RSS sampled by MemorySampler
	ResidentMemory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgen_process_resident_memory_bytes",
			Help: "Resident set size of the process in bytes",
		},
	)

	// HeapAlloc is the Go heap in use sampled by MemorySampler
	HeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docgen_heap_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
)

// ObserveBatch records the outcome of one persist call
func ObserveBatch(destination string, records, payloadBytes int, d time.Duration, err error) {
	PersistLatency.WithLabelValues(destination).Observe(d.Seconds())
	if err != nil {
		BatchesPersisted.WithLabelValues(destination, StatusFailure, string(errors.TypeOf(err))).Inc()
		return
	}
	BatchesPersisted.WithLabelValues(destination, StatusSuccess, "").Inc()
	BatchSize.WithLabelValues(destination).Observe(float64(records))
	PayloadBytes.WithLabelValues(destination).Add(float64(payloadBytes))
}

// Timer measures the time since it was created
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time. It can be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker computes records per second over reset windows and
// publishes the value to Throughput. Safe for concurrent use.
type ThroughputTracker struct {
	mu          sync.Mutex
	count       int64
	lastReset   time.Time
	destination string
}

// NewThroughputTracker creates a tracker labelled with destination
func NewThroughputTracker(destination string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:   time.Now(),
		destination: destination,
	}
}

// Increment adds n to the record count
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns the throughput since the last reset, publishes it
// and starts a new window
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.destination).Set(throughput)
	return throughput
}
