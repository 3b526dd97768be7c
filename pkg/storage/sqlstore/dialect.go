package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

// Dialect captures the SQL differences between the supported databases
type Dialect interface {
	// Name is the storage driver name
	Name() string
	// DriverName is the database/sql driver name
	DriverName() string
	// MaxParams is the bind parameter ceiling of one statement
	MaxParams() int
	// MaxOpenConns adjusts the requested pool size
	MaxOpenConns(requested int) int
	// Placeholder returns the n-th (1-based) bind placeholder
	Placeholder(n int) string
	// ValueTuple renders one VALUES row from the id and document placeholders
	ValueTuple(idPh, docPh string) string
	// CreateStatements creates the table and the lookup index
	CreateStatements(table, column string) []string
	// PathPredicate compares the text at a path with a value
	PathPredicate(column, pathPh, valuePh string) string
	// PathArg renders a path as the bind value PathPredicate expects
	PathArg(p storage.Path) string
	// IsConflict reports a primary key violation
	IsConflict(err error) bool
}

// Dialect registry names
const (
	DriverPQ     = "pq"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DialectFor returns the dialect registered as name
func DialectFor(name string) (Dialect, error) {
	switch name {
	case DriverPQ:
		return postgresDialect{}, nil
	case DriverMySQL:
		return mysqlDialect{}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unknown SQL dialect").WithDetail("dialect", name)
	}
}

func lookupIndexName(table string) string {
	return table + "_lookup_idx"
}

type postgresDialect struct{}

func (postgresDialect) Name() string                   { return DriverPQ }
func (postgresDialect) DriverName() string             { return "postgres" }
func (postgresDialect) MaxParams() int                 { return 65535 }
func (postgresDialect) MaxOpenConns(requested int) int { return requested }
func (postgresDialect) Placeholder(n int) string       { return "$" + strconv.Itoa(n) }

func (postgresDialect) ValueTuple(idPh, docPh string) string {
	return "(" + idPh + ", " + docPh + "::jsonb)"
}

func (postgresDialect) CreateStatements(table, column string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id UUID PRIMARY KEY, %s JSONB NOT NULL)`, table, column),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s ((%s #>> '%s'))`,
			lookupIndexName(table), table, column, storage.DefaultLookupPath.PostgresArray()),
	}
}

func (postgresDialect) PathPredicate(column, pathPh, valuePh string) string {
	return fmt.Sprintf("%s #>> %s::text[] = %s", column, pathPh, valuePh)
}

func (postgresDialect) PathArg(p storage.Path) string {
	return p.PostgresArray()
}

func (postgresDialect) IsConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                   { return DriverMySQL }
func (mysqlDialect) DriverName() string             { return "mysql" }
func (mysqlDialect) MaxParams() int                 { return 65535 }
func (mysqlDialect) MaxOpenConns(requested int) int { return requested }
func (mysqlDialect) Placeholder(int) string         { return "?" }

func (mysqlDialect) ValueTuple(idPh, docPh string) string {
	return "(" + idPh + ", " + docPh + ")"
}

func (mysqlDialect) CreateStatements(table, column string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id CHAR(36) NOT NULL PRIMARY KEY, %s JSON NOT NULL)`, table, column),
	}
}

func (mysqlDialect) PathPredicate(column, pathPh, valuePh string) string {
	return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(%s, %s)) = %s", column, pathPh, valuePh)
}

func (mysqlDialect) PathArg(p storage.Path) string {
	return p.JSONPath()
}

func (mysqlDialect) IsConflict(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return DriverSQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }
func (sqliteDialect) MaxParams() int     { return 32766 }

// MaxOpenConns pins SQLite to one connection; an in-memory database is
// private to the connection that created it.
func (sqliteDialect) MaxOpenConns(int) int { return 1 }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) ValueTuple(idPh, docPh string) string {
	return "(" + idPh + ", " + docPh + ")"
}

func (sqliteDialect) CreateStatements(table, column string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, %s TEXT NOT NULL CHECK (json_valid(%s)))`, table, column, column),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (json_extract(%s, '%s'))`,
			lookupIndexName(table), table, column, storage.DefaultLookupPath.JSONPath()),
	}
}

func (sqliteDialect) PathPredicate(column, pathPh, valuePh string) string {
	return fmt.Sprintf("json_extract(%s, %s) = %s", column, pathPh, valuePh)
}

func (sqliteDialect) PathArg(p storage.Path) string {
	return p.JSONPath()
}

func (sqliteDialect) IsConflict(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}
	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// connections without extended result codes only report the base code
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	default:
		return false
	}
}
