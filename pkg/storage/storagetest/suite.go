// Package storagetest holds the behaviour every storage backend shares,
// packaged as a testify suite that backend tests run against their store.
package storagetest

import (
	"context"
	"os"
	"testing"

	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
	"github.com/ajitpratap0/docgen/pkg/testutil"
)

// StoreSuite exercises Persist, Count and FindByPath on a fresh store per test
type StoreSuite struct {
	testutil.IntegrationTestSuite

	// Open returns an empty store rooted in dir, which is private to the test
	Open func(t *testing.T, dir string) storage.Store

	// Conflicts is set for backends that reject duplicate ids
	Conflicts bool

	store storage.Store
}

func (s *StoreSuite) SetupTest() {
	dir, err := os.MkdirTemp(s.TempDir(), "store-*")
	s.Require().NoError(err)

	s.store = s.Open(s.T(), dir)
	if m, ok := s.store.(storage.Migrator); ok {
		s.Require().NoError(m.Migrate(s.Context()))
	}
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *StoreSuite) count() int64 {
	counter, ok := s.store.(storage.Counter)
	if !ok {
		s.T().Skipf("%s cannot count records", s.store.Name())
	}
	n, err := counter.Count(s.Context())
	s.Require().NoError(err)
	return n
}

func (s *StoreSuite) TestPersistAccumulates() {
	s.Require().NoError(s.store.Persist(s.Context(), testutil.Records(`{"a":"1"}`, `{"a":"2"}`, `{"a":"3"}`)))
	s.Require().NoError(s.store.Persist(s.Context(), testutil.Records(`{"a":"4"}`, `{"a":"5"}`)))

	s.Equal(int64(5), s.count())
}

func (s *StoreSuite) TestFindByPath() {
	finder, ok := s.store.(storage.Finder)
	if !ok {
		s.T().Skipf("%s cannot search records", s.store.Name())
	}

	s.Require().NoError(s.store.Persist(s.Context(), testutil.Records(
		`{"attribute_1_4":{"attribute_2_2":"4711","attribute_2_1":"x"}}`,
		`{"attribute_1_4":{"attribute_2_2":"4711"}}`,
		`{"attribute_1_4":{"attribute_2_2":"12"}}`,
		`{"attribute_1_1":"4711"}`,
	)))

	found, err := finder.FindByPath(s.Context(), storage.DefaultLookupPath, "4711", 0)
	s.Require().NoError(err)
	s.Len(found, 2)
	for _, r := range found {
		s.Contains(r.Payload, "4711")
	}

	found, err = finder.FindByPath(s.Context(), storage.DefaultLookupPath, "4711", 1)
	s.Require().NoError(err)
	s.Len(found, 1)

	found, err = finder.FindByPath(s.Context(), storage.DefaultLookupPath, "missing", 0)
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *StoreSuite) TestDuplicateRejectsWholeBatch() {
	if !s.Conflicts {
		s.T().Skipf("%s does not check ids", s.store.Name())
	}

	first := testutil.Records(`{"a":"1"}`)
	s.Require().NoError(s.store.Persist(s.Context(), first))

	err := s.store.Persist(s.Context(), []*models.Record{models.NewRecord(`{"a":"2"}`), first[0]})
	s.Require().Error(err)
	s.True(errors.IsType(err, errors.ErrorTypeConflict), "got %v", err)
	s.Equal(int64(1), s.count())
}

func (s *StoreSuite) TestCancelledPersistStoresNothing() {
	ctx, cancel := context.WithCancel(s.Context())
	cancel()

	s.Error(s.store.Persist(ctx, testutil.Records(`{"a":"1"}`)))
	s.Zero(s.count())
}
