package objectstore

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/docgen/pkg/compression"
	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

type memBucket struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
	putErr   error
	closed   bool
}

func newMemBucket() *memBucket {
	return &memBucket{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func (b *memBucket) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.putErr != nil {
		return b.putErr
	}
	b.objects[key] = append([]byte(nil), body...)
	b.metadata[key] = metadata
	return nil
}

func (b *memBucket) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *memBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	body, ok := b.objects[key]
	if !ok {
		return nil, stderrors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (b *memBucket) Close() error {
	b.closed = true
	return nil
}

func newStore(t *testing.T, bucket Bucket) *Store {
	t.Helper()
	codec, err := compression.NewCodec(&compression.Config{Algorithm: compression.Gzip})
	require.NoError(t, err)
	return New(DriverS3, bucket, "runs/test", codec, zaptest.NewLogger(t))
}

func records(payloads ...string) []*models.Record {
	out := make([]*models.Record, len(payloads))
	for i, p := range payloads {
		out[i] = models.NewRecord(p)
	}
	return out
}

func TestPersistUploadsOneObjectPerBatch(t *testing.T) {
	ctx := context.Background()
	bucket := newMemBucket()
	s := newStore(t, bucket)

	require.NoError(t, s.Persist(ctx, records(`{"attribute_1_4":{"attribute_2_2":"5"}}`, `{"x":"y"}`)))
	require.NoError(t, s.Persist(ctx, records(`{"attribute_1_4":{"attribute_2_2":"5"}}`)))

	// unrelated objects under the prefix are ignored
	bucket.objects["runs/test/README.txt"] = []byte("notes")

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "runs/test/batch-"), k)
		assert.True(t, strings.HasSuffix(k, ".jsonl.gz"), k)
	}
	assert.Equal(t, "2", bucket.metadata[keys[0]]["records"])
	assert.Equal(t, "gzip", bucket.metadata[keys[0]]["compression"])

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	found, err := s.FindByPath(ctx, storage.DefaultLookupPath, "5", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = s.FindByPath(ctx, storage.DefaultLookupPath, "5", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestPersistFailureIsConnectionError(t *testing.T) {
	bucket := newMemBucket()
	bucket.putErr = stderrors.New("503 slow down")
	s := newStore(t, bucket)

	err := s.Persist(context.Background(), records(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	assert.Empty(t, bucket.objects)
}

func TestPersistInvalidPayloadUploadsNothing(t *testing.T) {
	bucket := newMemBucket()
	s := newStore(t, bucket)

	err := s.Persist(context.Background(), records(`{}`, `not json`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	assert.Empty(t, bucket.objects)
}

func TestPersistCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bucket := newMemBucket()
	err := newStore(t, bucket).Persist(ctx, records(`{}`))
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestCloseClosesBucket(t *testing.T) {
	bucket := newMemBucket()
	s := newStore(t, bucket)
	require.NoError(t, s.Close())
	assert.True(t, bucket.closed)
	assert.Equal(t, DriverS3, s.Name())
}

func TestOpenRejectsUnknownCompression(t *testing.T) {
	bucket := newMemBucket()
	_, err := open(DriverGCS, bucket, config.StorageConfig{Compression: "rar"}, nil)
	require.Error(t, err)
	assert.True(t, bucket.closed)
}

func TestBucketConstructorsRequireBucketName(t *testing.T) {
	_, err := NewS3Bucket(context.Background(), config.StorageConfig{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewGCSBucket(context.Background(), config.StorageConfig{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
