// Package objectstore persists each batch as one compressed JSON Lines
// object in an S3 or GCS bucket. Object creation is atomic on both
// services, so a batch is either fully visible or absent.
package objectstore

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/compression"
	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
	"github.com/ajitpratap0/docgen/pkg/storage/segment"
)

// Bucket is the subset of an object service the store needs
type Bucket interface {
	// Put creates key with body in one request
	Put(ctx context.Context, key string, body []byte, metadata map[string]string) error
	// List returns every key under prefix
	List(ctx context.Context, prefix string) ([]string, error)
	// Get opens key for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Close releases the client
	Close() error
}

func init() {
	storage.Register(DriverS3, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
		b, err := NewS3Bucket(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return open(DriverS3, b, cfg, logger)
	})
	storage.Register(DriverGCS, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
		b, err := NewGCSBucket(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return open(DriverGCS, b, cfg, logger)
	})
}

func open(name string, b Bucket, cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	alg, err := compression.Parse(cfg.Compression)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	codec, err := compression.NewCodec(&compression.Config{Algorithm: alg, Level: compression.Default})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return New(name, b, cfg.Prefix, codec, logger), nil
}

// Store writes one object per batch
type Store struct {
	name   string
	bucket Bucket
	prefix string
	codec  compression.Codec
	namer  *segment.Namer
	logger *zap.Logger
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Counter = (*Store)(nil)
	_ storage.Finder  = (*Store)(nil)
)

// New creates a store writing under prefix in bucket
func New(name string, bucket Bucket, prefix string, codec compression.Codec, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		name:   name,
		bucket: bucket,
		prefix: prefix,
		codec:  codec,
		namer:  segment.NewNamer(),
		logger: logger,
	}
}

// Persist uploads batch as one object
func (s *Store) Persist(ctx context.Context, batch []*models.Record) error {
	if err := ctx.Err(); err != nil {
		return storage.Classify(err, "object upload", nil)
	}

	var buf bytes.Buffer
	if err := segment.Encode(&buf, s.codec, batch); err != nil {
		return err
	}

	key := path.Join(s.prefix, s.namer.Next(s.codec))
	metadata := map[string]string{
		"records":     strconv.Itoa(len(batch)),
		"compression": string(s.codec.Algorithm()),
		"created":     time.Now().UTC().Format(time.RFC3339),
	}

	start := time.Now()
	if err := s.bucket.Put(ctx, key, buf.Bytes(), metadata); err != nil {
		return classify(err, "object upload")
	}

	s.logger.Debug("object uploaded",
		zap.String("key", key),
		zap.Int("records", len(batch)),
		zap.Int("bytes", buf.Len()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Keys returns the segment keys in write order
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	listPrefix := s.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	keys, err := s.bucket.List(ctx, listPrefix)
	if err != nil {
		return nil, classify(err, "object listing")
	}

	out := keys[:0]
	for _, k := range keys {
		if segment.IsSegment(k, s.codec) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Count downloads every segment and counts its records
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.scan(ctx, func(*models.Record) bool {
		n++
		return true
	})
	return n, err
}

// FindByPath downloads segments until limit matches are found
func (s *Store) FindByPath(ctx context.Context, p storage.Path, value string, limit int) ([]*models.Record, error) {
	limit = storage.NormalizeLimit(limit)

	var out []*models.Record
	err := s.scan(ctx, func(r *models.Record) bool {
		if storage.MatchPath(r.Payload, p, value) {
			out = append(out, r)
		}
		return len(out) < limit
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

var errStop = errors.New(errors.ErrorTypeInternal, "scan stopped")

func (s *Store) scan(ctx context.Context, fn func(*models.Record) bool) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		body, err := s.bucket.Get(ctx, key)
		if err != nil {
			return classify(err, "object download")
		}
		err = segment.Scan(body, s.codec, func(r *models.Record) error {
			if !fn(r) {
				return errStop
			}
			return nil
		})
		_ = body.Close()

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
	return s.name
}

// Close releases the bucket client
func (s *Store) Close() error {
	return s.bucket.Close()
}

// classify treats service failures as connection errors; object services
// do not reject well-formed uploads on content.
func classify(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return storage.Classify(err, op, nil)
	}
	if errors.TypeOf(err) != "" {
		return err
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, op+" failed")
}
