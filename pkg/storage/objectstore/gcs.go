package objectstore

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
)

// DriverGCS is the registry name of the Google Cloud Storage sink
const DriverGCS = "gcs"

// GCSBucket stores objects in Google Cloud Storage
type GCSBucket struct {
	client *gcs.Client
	handle *gcs.BucketHandle
}

// NewGCSBucket builds a client from application default credentials.
// Endpoint targets an emulator without authentication.
func NewGCSBucket(ctx context.Context, cfg config.StorageConfig) (*GCSBucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "gcs sink requires storage.bucket")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}

	return &GCSBucket{
		client: client,
		handle: client.Bucket(cfg.Bucket),
	}, nil
}

// Put writes body under key. The write is abandoned if it fails midway, so
// no partial object is created.
func (b *GCSBucket) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.handle.Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(wctx)
	w.ContentType = "application/x-ndjson"
	w.Metadata = metadata

	if _, err := w.Write(body); err != nil {
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

// List iterates every key under prefix
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := b.handle.Objects(ctx, &gcs.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Get opens key for reading
func (b *GCSBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.handle.Object(key).NewReader(ctx)
}

// Close releases the client
func (b *GCSBucket) Close() error {
	return b.client.Close()
}
