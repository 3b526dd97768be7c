// Package postgres persists batches into a PostgreSQL jsonb column through a
// pgx connection pool. Two bulk modes are supported:
//
//   - insert: multi-row INSERT ... VALUES statements, split at the 65535
//     bind parameter ceiling
//   - copy: one COPY FROM STDIN per batch
//
// Either way the whole batch runs in one transaction.
package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
	"github.com/ajitpratap0/docgen/pkg/storage/sqlstore"
)

// DriverName is the registry name of the pgx store
const DriverName = "postgres"

// Bulk modes
const (
	ModeInsert = "insert"
	ModeCopy   = "copy"
)

const maxParams = 65535

func init() {
	storage.Register(DriverName, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
		return Open(ctx, cfg, logger)
	})
}

// DB is the part of *pgxpool.Pool the store uses
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes batches through pgx
type Store struct {
	db               DB
	table            string
	column           string
	mode             string
	rowsPerStatement int
	logger           *zap.Logger
}

var (
	_ storage.Store    = (*Store)(nil)
	_ storage.Migrator = (*Store)(nil)
	_ storage.Counter  = (*Store)(nil)
	_ storage.Finder   = (*Store)(nil)
)

// Open creates a pool from cfg.DSN and pings it
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "storage.dsn is required").WithDetail("driver", DriverName)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid connection string")
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = 10
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to PostgreSQL")
	}

	if logger != nil {
		logger.Info("connected to PostgreSQL",
			zap.Int32("max_connections", poolConfig.MaxConns),
			zap.String("bulk_mode", cfg.BulkMode))
	}

	return New(pool, cfg.Table, cfg.Column, cfg.BulkMode, logger)
}

// New wraps an existing pool
func New(db DB, table, column, mode string, logger *zap.Logger) (*Store, error) {
	if table == "" {
		table = "json_test"
	}
	if column == "" {
		column = "data"
	}
	if !config.ValidIdentifier(table) || !config.ValidIdentifier(column) {
		return nil, errors.New(errors.ErrorTypeConfig, "table and column must be plain SQL identifiers").
			WithDetail("table", table).
			WithDetail("column", column)
	}

	switch mode {
	case "":
		mode = ModeInsert
	case ModeInsert, ModeCopy:
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unknown bulk mode").WithDetail("bulk_mode", mode)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		db:               db,
		table:            table,
		column:           column,
		mode:             mode,
		rowsPerStatement: maxParams / 2,
		logger:           logger,
	}, nil
}

// Migrate creates the table and lookup index when missing
func (s *Store) Migrate(ctx context.Context) error {
	d, err := sqlstore.DialectFor(sqlstore.DriverPQ)
	if err != nil {
		return err
	}
	for _, stmt := range d.CreateStatements(s.table, s.column) {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return classify(err, "schema migration")
		}
	}
	return nil
}

// Persist writes batch in one transaction
func (s *Store) Persist(ctx context.Context, batch []*models.Record) error {
	if len(batch) == 0 {
		return nil
	}

	err := pgx.BeginTxFunc(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if s.mode == ModeCopy {
			return s.copyBatch(ctx, tx, batch)
		}
		return s.insertBatch(ctx, tx, batch)
	})
	if err != nil {
		return classify(err, s.mode)
	}

	s.logger.Debug("batch committed",
		zap.Int("records", len(batch)),
		zap.String("bulk_mode", s.mode))
	return nil
}

func (s *Store) insertBatch(ctx context.Context, tx pgx.Tx, batch []*models.Record) error {
	for start := 0; start < len(batch); start += s.rowsPerStatement {
		end := min(start+s.rowsPerStatement, len(batch))
		query, args := s.insertStatement(batch[start:end])
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertStatement(rows []*models.Record) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (id, %s) VALUES ", s.table, s.column)

	args := make([]any, 0, len(rows)*2)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		n := len(args)
		b.WriteString("($" + strconv.Itoa(n+1) + ", $" + strconv.Itoa(n+2) + "::jsonb)")
		args = append(args, pgtype.UUID{Bytes: [16]byte(r.ID), Valid: true}, r.Payload)
	}
	return b.String(), args
}

func (s *Store) copyBatch(ctx context.Context, tx pgx.Tx, batch []*models.Record) error {
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{s.table},
		[]string{"id", s.column},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			return []any{
				pgtype.UUID{Bytes: [16]byte(batch[i].ID), Valid: true},
				[]byte(batch[i].Payload),
			}, nil
		}),
	)
	if err != nil {
		return err
	}
	if copied != int64(len(batch)) {
		return errors.New(errors.ErrorTypeQuery, "COPY wrote an unexpected row count").
			WithDetail("expected", len(batch)).
			WithDetail("copied", copied)
	}
	return nil
}

// Count returns the number of rows in the table
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0, classify(err, "count")
	}
	return n, nil
}

// FindByPath returns rows whose document has value at path
func (s *Store) FindByPath(ctx context.Context, path storage.Path, value string, limit int) ([]*models.Record, error) {
	limit = storage.NormalizeLimit(limit)
	query := fmt.Sprintf("SELECT id, %s::text FROM %s WHERE %s #>> $1 = $2 LIMIT %d",
		s.column, s.table, s.column, limit)

	rows, err := s.db.Query(ctx, query, []string(path), value)
	if err != nil {
		return nil, classify(err, "path lookup")
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		var id pgtype.UUID
		var payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, classify(err, "path lookup")
		}
		out = append(out, &models.Record{ID: uuid.UUID(id.Bytes), Payload: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "path lookup")
	}
	return out, nil
}

// Name returns the driver name
func (s *Store) Name() string {
	return DriverName
}

// Close closes the pool
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// IsConflict reports a unique_violation (SQLSTATE 23505)
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func classify(err error, op string) error {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return errors.Wrap(err, errors.ErrorTypeConnection, op+" could not connect")
	}
	return storage.Classify(err, op, IsConflict)
}
