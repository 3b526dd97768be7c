// Package memstore is an in-memory storage backend. It backs dry runs
// (driver "memory") and gives tests a store whose persist calls can be
// inspected and made to fail.
package memstore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

// DriverName is the registry name of the in-memory store
const DriverName = "memory"

func init() {
	storage.Register(DriverName, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
		return New(), nil
	})
}

// FailFunc decides whether the call-th persist (1-based) fails. A nil
// return lets the batch through.
type FailFunc func(call int, batch []*models.Record) error

// Store keeps committed records in insertion order
type Store struct {
	mu      sync.Mutex
	records []*models.Record
	ids     map[string]struct{}
	calls   []int
	failFn  FailFunc
	closed  bool
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Counter = (*Store)(nil)
	_ storage.Finder  = (*Store)(nil)
)

// New creates an empty store
func New() *Store {
	return &Store{
		ids: make(map[string]struct{}),
	}
}

// FailWhen installs a failure hook consulted on every persist call
func (s *Store) FailWhen(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFn = fn
}

// FailOnCall makes the n-th persist call (1-based) fail with a connection
// error
func (s *Store) FailOnCall(n int) {
	s.FailWhen(func(call int, batch []*models.Record) error {
		if call == n {
			return errors.Newf(errors.ErrorTypeConnection, "injected failure on persist call %d", call)
		}
		return nil
	})
}

// Persist commits batch atomically. Duplicate ids, within the batch or
// against stored records, reject the whole batch.
func (s *Store) Persist(ctx context.Context, batch []*models.Record) error {
	if err := ctx.Err(); err != nil {
		return storage.Classify(err, "memory persist", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrorTypeConnection, "store is closed")
	}

	s.calls = append(s.calls, len(batch))
	if s.failFn != nil {
		if err := s.failFn(len(s.calls), batch); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(batch))
	for _, r := range batch {
		id := r.ID.String()
		_, stored := s.ids[id]
		_, dup := seen[id]
		if stored || dup {
			return errors.New(errors.ErrorTypeConflict, "duplicate record id").WithDetail("id", id)
		}
		seen[id] = struct{}{}
	}

	for id := range seen {
		s.ids[id] = struct{}{}
	}
	s.records = append(s.records, batch...)
	return nil
}

// Count returns the number of committed records
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

// FindByPath scans committed records for a string value at path. Booleans
// match their JSON text form.
func (s *Store) FindByPath(ctx context.Context, path storage.Path, value string, limit int) ([]*models.Record, error) {
	limit = storage.NormalizeLimit(limit)

	s.mu.Lock()
	snapshot := make([]*models.Record, len(s.records))
	copy(snapshot, s.records)
	s.mu.Unlock()

	var out []*models.Record
	for _, r := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, storage.Classify(err, "memory lookup", nil)
		}

		if storage.MatchPath(r.Payload, path, value) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Records returns a copy of the committed records
func (s *Store) Records() []*models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Calls returns the batch size of every persist call, including failed ones
func (s *Store) Calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.calls))
	copy(out, s.calls)
	return out
}

// Name returns the driver name
func (s *Store) Name() string {
	return DriverName
}

// Close marks the store closed; later persists fail
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
