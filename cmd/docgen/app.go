package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/internal/pipeline"
	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/generator"
	"github.com/ajitpratap0/docgen/pkg/json"
	"github.com/ajitpratap0/docgen/pkg/logger"
	"github.com/ajitpratap0/docgen/pkg/metrics"
	"github.com/ajitpratap0/docgen/pkg/observability"
	"github.com/ajitpratap0/docgen/pkg/schema"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

// app holds everything a generate or serve command needs
type app struct {
	store        storage.Store
	orchestrator *pipeline.Orchestrator
	tracing      *observability.Provider
	logger       *zap.Logger
	stopSampler  context.CancelFunc
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := logger.Init(cfg.Logging.Logger()); err != nil {
		return nil, err
	}
	log := logger.Get()

	tracing, err := observability.Init(cfg.Observability, version, nil)
	if err != nil {
		return nil, err
	}

	s, err := schema.New(cfg.Generator.Attributes)
	if err != nil {
		return nil, err
	}
	sampler := generator.NewSampler(cfg.Generator.Seed)
	builder, err := generator.NewBuilder(s, sampler, generator.BuilderConfig{
		MinStringLength: cfg.Generator.MinStringLength,
		MaxStringLength: cfg.Generator.MaxStringLength,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	orch, err := pipeline.NewOrchestrator(builder, store, pipeline.Options{
		MaxDepth: cfg.Generator.MaxDepth,
		Workers:  cfg.Generator.Workers,
		Logger:   log,
		Tracer:   tracing.Tracer(),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		store:        store,
		orchestrator: orch,
		tracing:      tracing,
		logger:       log,
		stopSampler:  func() {},
	}

	if cfg.Observability.MetricsEnabled {
		if memSampler, err := metrics.NewMemorySampler(log); err != nil {
			log.Warn("memory sampling disabled", zap.Error(err))
		} else {
			samplerCtx, cancel := context.WithCancel(ctx)
			a.stopSampler = cancel
			go memSampler.Run(samplerCtx, cfg.Observability.MemoryInterval)
		}
	}

	log.Info("docgen ready",
		zap.String("driver", store.Name()),
		zap.Int64("seed", sampler.Seed()),
		zap.Int("attributes", s.Count()),
		zap.Int("max_depth", cfg.Generator.MaxDepth))
	return a, nil
}

// Close releases the store and flushes spans and logs
func (a *app) Close() {
	a.stopSampler()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush spans", zap.Error(err))
	}
	_ = logger.Sync()
}

// runQuery prints the record count, or the documents matching value at
// path as JSON lines
func runQuery(ctx context.Context, w io.Writer, store storage.Store, rawPath, value string, limit int) error {
	if value == "" {
		counter, ok := store.(storage.Counter)
		if !ok {
			return storage.Unsupported(store, "count")
		}
		n, err := counter.Count(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%d\n", n)
		return err
	}

	finder, ok := store.(storage.Finder)
	if !ok {
		return storage.Unsupported(store, "search")
	}
	path, err := storage.ParsePath(rawPath)
	if err != nil {
		return err
	}
	found, err := finder.FindByPath(ctx, path, value, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for _, r := range found {
		if err := enc.Encode(struct {
			ID   string          `json:"id"`
			Data json.RawMessage `json:"data"`
		}{r.ID.String(), json.RawMessage(r.Payload)}); err != nil {
			return err
		}
	}
	return nil
}
