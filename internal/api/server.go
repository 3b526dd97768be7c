// Package api serves document generation over HTTP with fiber.
//
//	GET /generate-json?numRecords=10000&bulkSize=100
//	GET /records/count
//	GET /records/search?value=4711&path=attribute_1_4.attribute_2_2&limit=10
//	GET /health
//	GET /metrics
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ajitpratap0/docgen/internal/pipeline"
	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/json"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

// Runner executes a generation run
type Runner interface {
	Run(ctx context.Context, total, batchSize int) (*pipeline.Result, error)
}

// Defaults are the query parameter defaults of /generate-json
type Defaults struct {
	Records   int
	BatchSize int
}

// Server holds the fiber app and its dependencies
type Server struct {
	app      *fiber.App
	runner   Runner
	store    storage.Store
	defaults Defaults
	cfg      config.ServerConfig
	printer  *message.Printer
	logger   *zap.Logger
}

// NewServer wires the routes
func NewServer(cfg config.ServerConfig, defaults Defaults, runner Runner, store storage.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.Records < 0 {
		defaults.Records = 0
	}
	if defaults.BatchSize <= 0 {
		defaults.BatchSize = 100
	}

	app := fiber.New(fiber.Config{
		AppName:               "docgen",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:      app,
		runner:   runner,
		store:    store,
		defaults: defaults,
		cfg:      cfg,
		printer:  message.NewPrinter(language.AmericanEnglish),
		logger:   logger,
	}

	app.Use(recover.New())
	app.Use(s.logRequests)

	app.Get("/generate-json", s.generateJSON)
	app.Get("/records/count", s.countRecords)
	app.Get("/records/search", s.searchRecords)
	app.Get("/health", s.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return s
}

// App exposes the fiber app, mainly for app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address until ctx is done
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("address", s.cfg.Address))
		errCh <- s.app.Listen(s.cfg.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("latency", time.Since(start)))
	return err
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"storage": s.store.Name(),
	})
}
