package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/json"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

// GenerateResponse is the body of a successful /generate-json call
type GenerateResponse struct {
	NewRecords   int    `json:"newRecords"`
	TotalRecords int64  `json:"totalRecords"`
	Message      string `json:"message"`
}

// ErrorResponse is returned for every failed request. NewRecords is set
// when a generation run failed after committing some batches. Retryable
// marks failures worth repeating, such as a lost connection.
type ErrorResponse struct {
	Error      string `json:"error"`
	Type       string `json:"type,omitempty"`
	Retryable  bool   `json:"retryable"`
	NewRecords *int   `json:"newRecords,omitempty"`
}

// SearchHit is one document found by /records/search
type SearchHit struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) generateJSON(c *fiber.Ctx) error {
	total, err := intParam(c, "numRecords", s.defaults.Records)
	if err != nil {
		return s.fail(c, err, nil)
	}
	batchSize, err := intParam(c, "bulkSize", s.defaults.BatchSize)
	if err != nil {
		return s.fail(c, err, nil)
	}
	if s.cfg.MaxRecords > 0 && total > s.cfg.MaxRecords {
		return s.fail(c, errors.New(errors.ErrorTypeValidation, "numRecords exceeds the per-request limit").
			WithDetail("max_records", s.cfg.MaxRecords), nil)
	}

	s.logger.Info("generation requested",
		zap.Int("records", total),
		zap.Int("batch_size", batchSize))

	result, err := s.runner.Run(c.UserContext(), total, batchSize)
	if err != nil {
		var created *int
		if result != nil {
			created = &result.Created
		}
		return s.fail(c, err, created)
	}

	return c.JSON(GenerateResponse{
		NewRecords:   result.Created,
		TotalRecords: result.TotalRecords,
		Message:      s.summary(result.Created, result.TotalRecords),
	})
}

// summary renders the run summary with en-US digit grouping
func (s *Server) summary(created int, total int64) string {
	if total < 0 {
		return s.printer.Sprintf("%d new JSONs were generated and saved to the database.", created)
	}
	return s.printer.Sprintf("%d new JSONs were generated and saved to the database (total records: %d).", created, total)
}

func (s *Server) countRecords(c *fiber.Ctx) error {
	counter, ok := s.store.(storage.Counter)
	if !ok {
		return s.fail(c, storage.Unsupported(s.store, "count"), nil)
	}
	n, err := counter.Count(c.UserContext())
	if err != nil {
		return s.fail(c, err, nil)
	}
	return c.JSON(fiber.Map{"totalRecords": n})
}

func (s *Server) searchRecords(c *fiber.Ctx) error {
	finder, ok := s.store.(storage.Finder)
	if !ok {
		return s.fail(c, storage.Unsupported(s.store, "search"), nil)
	}

	value := c.Query("value")
	if value == "" {
		return s.fail(c, errors.New(errors.ErrorTypeValidation, "value is required"), nil)
	}
	path := storage.DefaultLookupPath
	if raw := c.Query("path"); raw != "" {
		parsed, err := storage.ParsePath(raw)
		if err != nil {
			return s.fail(c, err, nil)
		}
		path = parsed
	}
	limit, err := intParam(c, "limit", storage.DefaultSearchLimit)
	if err != nil {
		return s.fail(c, err, nil)
	}

	found, err := finder.FindByPath(c.UserContext(), path, value, limit)
	if err != nil {
		return s.fail(c, err, nil)
	}

	hits := make([]SearchHit, len(found))
	for i, r := range found {
		hits[i] = SearchHit{ID: r.ID.String(), Data: json.RawMessage(r.Payload)}
	}
	return c.JSON(fiber.Map{
		"path":    path.String(),
		"count":   len(hits),
		"records": hits,
	})
}

func intParam(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeValidation, name+" must be an integer").
			WithDetail("value", raw)
	}
	return n, nil
}

func (s *Server) fail(c *fiber.Ctx, err error, created *int) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:      err.Error(),
		Type:       string(errors.TypeOf(err)),
		Retryable:  errors.IsRetryable(err),
		NewRecords: created,
	})
}

func statusFor(err error) int {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeConfig, errors.ErrorTypeValidation:
		return fiber.StatusBadRequest
	case errors.ErrorTypeCapability:
		return fiber.StatusNotImplemented
	case errors.ErrorTypeTimeout:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
