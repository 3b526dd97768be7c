// Package storage defines the persistence contract for generated batches and
// a registry of backends.
//
// Every backend commits a batch as one atomic unit: either all records of
// the batch become visible or none do. Backends register themselves from an
// init function and are selected by driver name:
//
//	import _ "github.com/ajitpratap0/docgen/pkg/storage/postgres"
//
//	store, err := storage.Open(ctx, cfg.Storage, log)
//	defer store.Close()
//	err = store.Persist(ctx, batch)
//
// Optional capabilities (schema migration, row counting, path lookups) are
// discovered with type assertions against Migrator, Counter and Finder.
package storage

import (
	"context"
	"strings"

	"github.com/ajitpratap0/docgen/pkg/errors"
	jsonpool "github.com/ajitpratap0/docgen/pkg/json"
	"github.com/ajitpratap0/docgen/pkg/models"
)

const (
	// DefaultSearchLimit is used when a lookup does not set a limit
	DefaultSearchLimit = 100
	// MaxSearchLimit caps the rows returned by one lookup
	MaxSearchLimit = 1000
)

// DefaultLookupPath is the nested path exercised by the original fixture
// query: data -> attribute_1_4 ->> attribute_2_2
var DefaultLookupPath = Path{"attribute_1_4", "attribute_2_2"}

// Persister durably stores one batch as an atomic unit
type Persister interface {
	// Persist writes every record of batch in a single transaction (or the
	// backend's equivalent). On error nothing from the batch is visible.
	Persist(ctx context.Context, batch []*models.Record) error
}

// Store is a Persister bound to a backend connection
type Store interface {
	Persister

	// Name returns the driver name the store was opened with
	Name() string

	// Close releases connections and flushes buffered state
	Close() error
}

// Migrator creates the target table or collection when missing
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Counter reports the number of stored records
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// Finder looks records up by the string value at a nested path
type Finder interface {
	FindByPath(ctx context.Context, path Path, value string, limit int) ([]*models.Record, error)
}

// Path addresses a value inside a stored document, one segment per level
type Path []string

// ParsePath parses a dotted path such as attribute_1_4.attribute_2_2.
// Segments are limited to letters, digits and underscores because some
// backends splice them into a JSON path expression.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "path must not be empty")
	}
	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if !validSegment(seg) {
			return nil, errors.New(errors.ErrorTypeValidation, "invalid path segment").
				WithDetail("path", s).
				WithDetail("segment", seg)
		}
	}
	return Path(segments), nil
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, c := range seg {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}

// String returns the dotted form
func (p Path) String() string {
	return strings.Join(p, ".")
}

// JSONPath returns the $.a.b form used by MySQL and SQLite
func (p Path) JSONPath() string {
	return "$." + p.String()
}

// PostgresArray returns the {a,b} text array used with the #>> operator
func (p Path) PostgresArray() string {
	return "{" + strings.Join(p, ",") + "}"
}

// NormalizeLimit applies DefaultSearchLimit and MaxSearchLimit
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}

// MatchPath reports whether the scalar at path inside payload has the text
// value. Booleans compare by their JSON text; objects never match. Backends
// without a query engine use it to scan stored documents.
func MatchPath(payload string, path Path, value string) bool {
	v, ok := jsonpool.Lookup([]byte(payload), path...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case string:
		return t == value
	case bool:
		if t {
			return value == "true"
		}
		return value == "false"
	default:
		return false
	}
}
