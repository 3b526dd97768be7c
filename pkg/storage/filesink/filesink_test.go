package filesink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/docgen/pkg/compression"
	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
	"github.com/ajitpratap0/docgen/pkg/storage/storagetest"
	"github.com/ajitpratap0/docgen/pkg/storage/segment"
)

func newStore(t *testing.T, alg compression.Algorithm) *Store {
	t.Helper()
	codec, err := compression.NewCodec(&compression.Config{Algorithm: alg})
	require.NoError(t, err)
	s, err := New(filepath.Join(t.TempDir(), "out"), codec, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func records(payloads ...string) []*models.Record {
	out := make([]*models.Record, len(payloads))
	for i, p := range payloads {
		out[i] = models.NewRecord(p)
	}
	return out
}

func TestPersistOneSegmentPerBatch(t *testing.T) {
	for _, alg := range compression.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, alg)

			first := records(`{"attribute_1_4":{"attribute_2_2":"7"}}`, `{"attribute_1_1":"x"}`)
			require.NoError(t, s.Persist(ctx, first))
			require.NoError(t, s.Persist(ctx, records(`{"attribute_1_4":{"attribute_2_2":"7"}}`)))

			paths, err := s.Segments()
			require.NoError(t, err)
			require.Len(t, paths, 2)

			f, err := os.Open(paths[0])
			require.NoError(t, err)
			defer f.Close()
			got, err := segment.Decode(f, s.codec)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, first[0].ID, got[0].ID)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			found, err := s.FindByPath(ctx, storage.DefaultLookupPath, "7", 0)
			require.NoError(t, err)
			assert.Len(t, found, 2)

			found, err = s.FindByPath(ctx, storage.DefaultLookupPath, "7", 1)
			require.NoError(t, err)
			assert.Len(t, found, 1)
		})
	}
}

func TestFailedPersistLeavesNoSegment(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, compression.Gzip)

	err := s.Persist(ctx, records(`{"ok":"1"}`, `{"broken":`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file must be removed")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCancelledPersist(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newStore(t, compression.None)
	err := s.Persist(ctx, records(`{}`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestCountMissingDirectory(t *testing.T) {
	codec, err := compression.NewCodec(nil)
	require.NoError(t, err)
	s, err := New(filepath.Join(t.TempDir(), "never-created"), codec, nil)
	require.NoError(t, err)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewRequiresDirectory(t *testing.T) {
	_, err := New("", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRegisteredDriver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "segments")
	store, err := storage.Open(context.Background(), config.StorageConfig{
		Driver:      DriverName,
		Directory:   dir,
		Compression: "zstd",
		AutoMigrate: true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Persist(context.Background(), records(`{"a":"b"}`)))

	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	_, err = storage.Open(context.Background(), config.StorageConfig{
		Driver:      DriverName,
		Directory:   dir,
		Compression: "rar",
	}, nil)
	assert.Error(t, err)
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, &storagetest.StoreSuite{
		Open: func(t *testing.T, dir string) storage.Store {
			codec, err := compression.NewCodec(&compression.Config{Algorithm: compression.Zstd})
			require.NoError(t, err)
			s, err := New(dir, codec, zaptest.NewLogger(t))
			require.NoError(t, err)
			return s
		},
	})
}
