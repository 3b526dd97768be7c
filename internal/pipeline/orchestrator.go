// Package pipeline drives a generation run: it plans batches, builds each
// batch's documents, and hands every full batch to storage before the next
// one is generated. At most one batch is held in memory at a time.
//
// # Basic Usage
//
//	builder, _ := generator.NewBuilder(schema.Default(), generator.NewSampler(0), generator.BuilderConfig{})
//	orch, _ := pipeline.NewOrchestrator(builder, store, pipeline.Options{Logger: logger})
//	result, err := orch.Run(ctx, 10000, 100)
//
// On a persistence failure Run stops and returns the partial Result
// together with the error; batches committed before the failure stay
// committed.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/generator"
	"github.com/ajitpratap0/docgen/pkg/logger"
	"github.com/ajitpratap0/docgen/pkg/metrics"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/observability"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

// Options tunes an Orchestrator
type Options struct {
	// MaxDepth is the deepest document level; 0 means generator.DefaultMaxDepth
	MaxDepth int
	// Workers builds the documents of one batch in parallel when above 1.
	// Persists stay sequential either way.
	Workers int
	Logger  *zap.Logger
	// Tracer defaults to the global OpenTelemetry provider
	Tracer trace.Tracer
}

// Result summarizes a run
type Result struct {
	RunID     string
	Requested int
	// Created counts records in committed batches only
	Created  int
	Batches  int
	Duration time.Duration
	// TotalRecords is the store's row count after the run, -1 when the
	// store cannot count or the count failed
	TotalRecords int64
}

// Orchestrator runs generation against one store
type Orchestrator struct {
	builder  *generator.Builder
	store    storage.Store
	maxDepth int
	workers  int
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewOrchestrator validates opts and binds builder to store
func NewOrchestrator(builder *generator.Builder, store storage.Store, opts Options) (*Orchestrator, error) {
	if builder == nil || store == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "orchestrator needs a builder and a store")
	}
	if opts.MaxDepth < 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "max depth must not be negative").
			WithDetail("max_depth", opts.MaxDepth)
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = generator.DefaultMaxDepth
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(observability.TracerName)
	}

	return &Orchestrator{
		builder:  builder,
		store:    store,
		maxDepth: opts.MaxDepth,
		workers:  opts.Workers,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
	}, nil
}

// Plan is the batch layout of a run: Full batches of Size records
// followed by one batch of Rest records when Rest is positive. It is
// constant size whatever the record count.
type Plan struct {
	Size int
	Full int
	Rest int
}

// Batches returns the number of batches in the plan
func (p Plan) Batches() int {
	if p.Rest > 0 {
		return p.Full + 1
	}
	return p.Full
}

// SizeOf returns the record count of batch i
func (p Plan) SizeOf(i int) int {
	if i < p.Full {
		return p.Size
	}
	return p.Rest
}

// PlanBatches splits total into total/size full batches plus the
// remainder, if any
func PlanBatches(total, size int) (Plan, error) {
	if size <= 0 {
		return Plan{}, errors.New(errors.ErrorTypeConfig, "batch size must be positive").
			WithDetail("batch_size", size)
	}
	if total < 0 {
		return Plan{}, errors.New(errors.ErrorTypeConfig, "record count must not be negative").
			WithDetail("records", total)
	}
	return Plan{Size: size, Full: total / size, Rest: total % size}, nil
}

// Run generates total documents in batches of batchSize. Each batch is
// built completely and persisted as one unit before the next is started.
func (o *Orchestrator) Run(ctx context.Context, total, batchSize int) (*Result, error) {
	plan, err := PlanBatches(total, batchSize)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	destination := o.store.Name()
	result := &Result{
		RunID:        uuid.NewString(),
		Requested:    total,
		TotalRecords: -1,
	}

	ctx = context.WithValue(ctx, logger.RunIDKey, result.RunID)
	ctx = context.WithValue(ctx, logger.DestinationKey, destination)
	log := logger.FromContext(ctx, o.logger)

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	ctx, runSpan := observability.StartRun(ctx, o.tracer, destination, total, batchSize)

	log.Info("generation started",
		zap.Int("records", total),
		zap.Int("batch_size", batchSize),
		zap.Int("batches", plan.Batches()),
		zap.Int("max_depth", o.maxDepth),
		zap.Int("workers", o.workers))

	tracker := metrics.NewThroughputTracker(destination)
	for i := 0; i < plan.Batches(); i++ {
		size := plan.SizeOf(i)
		if err := ctx.Err(); err != nil {
			err = storage.Classify(err, "generation", nil)
			return o.fail(log, runSpan, result, start, err)
		}

		if err := o.runBatch(ctx, log, destination, i, size); err != nil {
			return o.fail(log, runSpan, result, start, err)
		}

		result.Created += size
		result.Batches++
		tracker.Increment(int64(size))
	}

	result.TotalRecords = o.count(ctx, log)
	result.Duration = time.Since(start)
	runSpan.SetAttributes(observability.AttrCreated.Int(result.Created))
	observability.End(runSpan, nil)

	log.Info("generation completed",
		zap.Int("created", result.Created),
		zap.Int64("total_records", result.TotalRecords),
		zap.Duration("duration", result.Duration),
		zap.Float64("records_per_second", tracker.GetAndReset()))
	return result, nil
}

func (o *Orchestrator) runBatch(ctx context.Context, log *zap.Logger, destination string, index, size int) (err error) {
	ctx, span := observability.StartBatch(ctx, o.tracer, index, size)
	defer func() { observability.End(span, err) }()

	batch, payloadBytes, err := o.buildBatch(ctx, size)
	if err != nil {
		return err
	}
	metrics.RecordsGenerated.WithLabelValues(destination).Add(float64(len(batch)))

	timer := metrics.NewTimer()
	err = o.store.Persist(ctx, batch)
	elapsed := timer.Stop()
	metrics.ObserveBatch(destination, len(batch), payloadBytes, elapsed, err)
	if err != nil {
		return err
	}

	log.Debug("batch persisted",
		zap.Int("batch", index),
		zap.Int("records", len(batch)),
		zap.Int("payload_bytes", payloadBytes),
		zap.Duration("latency", elapsed))
	return nil
}

// buildBatch generates size documents and serializes them in order
func (o *Orchestrator) buildBatch(ctx context.Context, size int) ([]*models.Record, int, error) {
	acc := NewAccumulator(size)

	if o.workers == 1 || size < 2 {
		for !acc.IsFull() {
			if err := acc.Add(o.builder.Build(1, o.maxDepth)); err != nil {
				return nil, 0, err
			}
		}
		payloadBytes := acc.Bytes()
		return acc.Drain(), payloadBytes, nil
	}

	docs := make([]*generator.Document, size)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < o.workers; w++ {
		worker := w
		g.Go(func() error {
			for i := worker; i < size; i += o.workers {
				if err := gctx.Err(); err != nil {
					return storage.Classify(err, "generation", nil)
				}
				docs[i] = o.builder.Build(1, o.maxDepth)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	for _, doc := range docs {
		if err := acc.Add(doc); err != nil {
			return nil, 0, err
		}
	}
	payloadBytes := acc.Bytes()
	return acc.Drain(), payloadBytes, nil
}

func (o *Orchestrator) count(ctx context.Context, log *zap.Logger) int64 {
	counter, ok := o.store.(storage.Counter)
	if !ok {
		return -1
	}
	n, err := counter.Count(ctx)
	if err != nil {
		log.Warn("failed to count stored records", zap.Error(err))
		return -1
	}
	return n
}

func (o *Orchestrator) fail(log *zap.Logger, span trace.Span, result *Result, start time.Time, err error) (*Result, error) {
	result.Duration = time.Since(start)
	span.SetAttributes(observability.AttrCreated.Int(result.Created))
	observability.End(span, err)

	log.Error("generation stopped",
		zap.Int("created", result.Created),
		zap.Int("batches", result.Batches),
		zap.String("error_type", string(errors.TypeOf(err))),
		zap.Bool("retryable", errors.IsRetryable(err)),
		zap.Error(err))
	return result, err
}
