// Package sqlstore persists batches through database/sql. It serves
// PostgreSQL via lib/pq, MySQL via go-sql-driver/mysql and SQLite via the
// pure Go modernc driver. Each batch is one transaction; batches larger
// than a driver's bind parameter ceiling are split into several INSERT
// statements inside that transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

const defaultPingTimeout = 30 * time.Second

func init() {
	for _, name := range []string{DriverPQ, DriverMySQL, DriverSQLite} {
		dialectName := name
		storage.Register(dialectName, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
			d, err := DialectFor(dialectName)
			if err != nil {
				return nil, err
			}
			return Open(ctx, d, cfg, logger)
		})
	}
}

// Options tunes a Store
type Options struct {
	Table  string
	Column string
	// MaxRowsPerStatement caps the rows of one INSERT; 0 derives it from
	// the dialect's parameter ceiling
	MaxRowsPerStatement int
}

// Store is a database/sql backed store
type Store struct {
	db               *sql.DB
	dialect          Dialect
	table            string
	column           string
	rowsPerStatement int
	logger           *zap.Logger
}

var (
	_ storage.Store    = (*Store)(nil)
	_ storage.Migrator = (*Store)(nil)
	_ storage.Counter  = (*Store)(nil)
	_ storage.Finder   = (*Store)(nil)
)

// Open connects to cfg.DSN and verifies the connection
func Open(ctx context.Context, d Dialect, cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "storage.dsn is required").WithDetail("driver", d.Name())
	}

	db, err := sql.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid data source name").WithDetail("driver", d.Name())
	}
	db.SetMaxOpenConns(d.MaxOpenConns(cfg.MaxConns))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect").WithDetail("driver", d.Name())
	}

	return New(db, d, Options{Table: cfg.Table, Column: cfg.Column}, logger)
}

// New wraps an open database
func New(db *sql.DB, d Dialect, opts Options, logger *zap.Logger) (*Store, error) {
	if opts.Table == "" {
		opts.Table = "json_test"
	}
	if opts.Column == "" {
		opts.Column = "data"
	}
	if !config.ValidIdentifier(opts.Table) || !config.ValidIdentifier(opts.Column) {
		return nil, errors.New(errors.ErrorTypeConfig, "table and column must be plain SQL identifiers").
			WithDetail("table", opts.Table).
			WithDetail("column", opts.Column)
	}

	rows := d.MaxParams() / 2
	if opts.MaxRowsPerStatement > 0 && opts.MaxRowsPerStatement < rows {
		rows = opts.MaxRowsPerStatement
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		db:               db,
		dialect:          d,
		table:            opts.Table,
		column:           opts.Column,
		rowsPerStatement: rows,
		logger:           logger,
	}, nil
}

// Migrate creates the table and lookup index when missing
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.CreateStatements(s.table, s.column) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storage.Classify(err, "schema migration", nil)
		}
	}
	return nil
}

// Persist inserts batch in one transaction
func (s *Store) Persist(ctx context.Context, batch []*models.Record) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Classify(err, "begin transaction", s.dialect.IsConflict)
	}

	statements := 0
	for start := 0; start < len(batch); start += s.rowsPerStatement {
		end := min(start+s.rowsPerStatement, len(batch))
		query, args := s.insertStatement(batch[start:end])

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("rollback failed", zap.Error(rbErr))
			}
			return storage.Classify(err, "bulk insert", s.dialect.IsConflict)
		}
		statements++
	}

	if err := tx.Commit(); err != nil {
		return storage.Classify(err, "commit", s.dialect.IsConflict)
	}

	s.logger.Debug("batch committed",
		zap.Int("records", len(batch)),
		zap.Int("statements", statements))
	return nil
}

func (s *Store) insertStatement(rows []*models.Record) (string, []interface{}) {
	var b strings.Builder
	b.Grow(64 + len(rows)*24)
	fmt.Fprintf(&b, "INSERT INTO %s (id, %s) VALUES ", s.table, s.column)

	args := make([]interface{}, 0, len(rows)*2)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		b.WriteString(s.dialect.ValueTuple(s.dialect.Placeholder(n+1), s.dialect.Placeholder(n+2)))
		args = append(args, r.ID.String(), r.Payload)
	}
	return b.String(), args
}

// Count returns the number of rows in the table
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, storage.Classify(err, "count", nil)
	}
	return n, nil
}

// FindByPath returns rows whose document has value at path
func (s *Store) FindByPath(ctx context.Context, path storage.Path, value string, limit int) ([]*models.Record, error) {
	limit = storage.NormalizeLimit(limit)
	query := fmt.Sprintf("SELECT id, %s FROM %s WHERE %s LIMIT %d",
		s.column, s.table,
		s.dialect.PathPredicate(s.column, s.dialect.Placeholder(1), s.dialect.Placeholder(2)),
		limit)

	rows, err := s.db.QueryContext(ctx, query, s.dialect.PathArg(path), value)
	if err != nil {
		return nil, storage.Classify(err, "path lookup", nil)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, storage.Classify(err, "path lookup", nil)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "stored id is not a UUID").WithDetail("id", id)
		}
		out = append(out, &models.Record{ID: parsed, Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify(err, "path lookup", nil)
	}
	return out, nil
}

// Name returns the dialect name
func (s *Store) Name() string {
	return s.dialect.Name()
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}
