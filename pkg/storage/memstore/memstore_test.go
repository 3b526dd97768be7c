package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
	"github.com/ajitpratap0/docgen/pkg/storage/storagetest"
)

func records(payloads ...string) []*models.Record {
	out := make([]*models.Record, len(payloads))
	for i, p := range payloads {
		out[i] = models.NewRecord(p)
	}
	return out
}

func TestPersistAndCount(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Persist(ctx, records(`{"a":"1"}`, `{"a":"2"}`)))
	require.NoError(t, s.Persist(ctx, records(`{"a":"3"}`)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []int{2, 1}, s.Calls())
	assert.Len(t, s.Records(), 3)
}

func TestPersistIsAtomicOnDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := records(`{"a":"1"}`)
	require.NoError(t, s.Persist(ctx, first))

	batch := append(records(`{"a":"2"}`), first[0])
	err := s.Persist(ctx, batch)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	n, _ := s.Count(ctx)
	assert.Equal(t, int64(1), n, "no record of the rejected batch is visible")
}

func TestFailOnCall(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.FailOnCall(2)

	require.NoError(t, s.Persist(ctx, records("{}", "{}")))
	err := s.Persist(ctx, records("{}", "{}"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
	require.NoError(t, s.Persist(ctx, records("{}")))

	n, _ := s.Count(ctx)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []int{2, 2, 1}, s.Calls())
}

func TestPersistHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	err := s.Persist(ctx, records("{}"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.Empty(t, s.Calls())
}

func TestFindByPath(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Persist(ctx, records(
		`{"attribute_1_4":{"attribute_2_2":"4711"}}`,
		`{"attribute_1_4":{"attribute_2_2":"12"}}`,
		`{"attribute_1_4":{"attribute_2_2":"4711","attribute_2_7":true}}`,
		`{"attribute_1_1":"4711"}`,
	)))

	found, err := s.FindByPath(ctx, storage.DefaultLookupPath, "4711", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = s.FindByPath(ctx, storage.DefaultLookupPath, "4711", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = s.FindByPath(ctx, storage.Path{"attribute_1_4", "attribute_2_7"}, "true", 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = s.FindByPath(ctx, storage.DefaultLookupPath, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClosedStoreRejectsPersist(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	err := s.Persist(context.Background(), records("{}"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestRegisteredDriver(t *testing.T) {
	store, err := storage.Open(context.Background(), config.StorageConfig{Driver: DriverName}, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, DriverName, store.Name())
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, &storagetest.StoreSuite{
		Open:      func(*testing.T, string) storage.Store { return New() },
		Conflicts: true,
	})
}
