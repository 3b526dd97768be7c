// Package filesink persists each batch as one compressed JSON Lines segment
// in a local directory. A segment is written to a hidden temporary file,
// synced and then renamed into place, so readers only ever see complete
// batches.
package filesink

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/compression"
	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
	"github.com/ajitpratap0/docgen/pkg/storage/segment"
)

// DriverName is the registry name of the file sink
const DriverName = "file"

func init() {
	storage.Register(DriverName, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
		alg, err := compression.Parse(cfg.Compression)
		if err != nil {
			return nil, err
		}
		codec, err := compression.NewCodec(&compression.Config{Algorithm: alg, Level: compression.Default})
		if err != nil {
			return nil, err
		}
		return New(cfg.Directory, codec, logger)
	})
}

// Store writes segments into a directory
type Store struct {
	dir    string
	codec  compression.Codec
	namer  *segment.Namer
	logger *zap.Logger
}

var (
	_ storage.Store    = (*Store)(nil)
	_ storage.Migrator = (*Store)(nil)
	_ storage.Counter  = (*Store)(nil)
	_ storage.Finder   = (*Store)(nil)
)

// New creates a file sink rooted at dir
func New(dir string, codec compression.Codec, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "file sink requires storage.directory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		codec:  codec,
		namer:  segment.NewNamer(),
		logger: logger,
	}, nil
}

// Migrate creates the output directory
func (s *Store) Migrate(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
			WithDetail("directory", s.dir)
	}
	return nil
}

// Persist writes batch as one segment
func (s *Store) Persist(ctx context.Context, batch []*models.Record) error {
	if err := ctx.Err(); err != nil {
		return storage.Classify(err, "segment write", nil)
	}

	tmp, err := os.CreateTemp(s.dir, ".batch-*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create segment").
			WithDetail("directory", s.dir)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := segment.Encode(tmp, s.codec, batch); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to sync segment")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close segment")
	}

	// last chance to abandon the batch before it becomes visible
	if err := ctx.Err(); err != nil {
		return storage.Classify(err, "segment write", nil)
	}

	final := filepath.Join(s.dir, s.namer.Next(s.codec))
	if err := os.Rename(tmpName, final); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to publish segment").
			WithDetail("path", final)
	}
	committed = true

	s.logger.Debug("segment written",
		zap.String("path", final),
		zap.Int("records", len(batch)))
	return nil
}

// Segments returns the published segment paths in write order
func (s *Store) Segments() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list segments")
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !segment.IsSegment(e.Name(), s.codec) {
			continue
		}
		out = append(out, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// Count counts records across all segments
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.scan(ctx, func(*models.Record) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

// FindByPath scans segments for records whose value at path equals value
func (s *Store) FindByPath(ctx context.Context, path storage.Path, value string, limit int) ([]*models.Record, error) {
	limit = storage.NormalizeLimit(limit)

	var out []*models.Record
	err := s.scan(ctx, func(r *models.Record) (bool, error) {
		if storage.MatchPath(r.Payload, path, value) {
			out = append(out, r)
		}
		return len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var errStop = errors.New(errors.ErrorTypeInternal, "scan stopped")

// scan visits every stored record until fn returns false
func (s *Store) scan(ctx context.Context, fn func(*models.Record) (bool, error)) error {
	paths, err := s.Segments()
	if err != nil {
		return err
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return storage.Classify(err, "segment scan", nil)
		}

		f, err := os.Open(p) //nolint:gosec // G304: path comes from our own directory listing
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to open segment").WithDetail("path", p)
		}
		err = segment.Scan(f, s.codec, func(r *models.Record) error {
			more, err := fn(r)
			if err != nil {
				return err
			}
			if !more {
				return errStop
			}
			return nil
		})
		_ = f.Close()

		if err == errStop {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Name returns the driver name
func (s *Store) Name() string {
	return DriverName
}

// Close is a no-op; every segment is closed when its batch commits
func (s *Store) Close() error {
	return nil
}
