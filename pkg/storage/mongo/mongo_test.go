package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
	"github.com/ajitpratap0/docgen/pkg/testutil"
)

func TestDocumentRoundTripKeepsFieldOrder(t *testing.T) {
	r := models.NewRecord(`{"attribute_1_1":"abc","attribute_1_4":{"attribute_2_2":"42","attribute_2_3":true}}`)

	doc, err := ToDocument(r)
	require.NoError(t, err)
	require.Len(t, doc, 3)
	assert.Equal(t, "_id", doc[0].Key)
	assert.Equal(t, r.ID.String(), doc[0].Value)
	assert.Equal(t, "attribute_1_1", doc[1].Key)
	assert.Equal(t, "attribute_1_4", doc[2].Key)

	// decode through BSON like a cursor would
	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var decoded bson.D
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	back, err := FromDocument(decoded)
	require.NoError(t, err)
	assert.Equal(t, r.ID, back.ID)
	assert.JSONEq(t, r.Payload, back.Payload)
}

func TestToDocumentRejectsNonObjects(t *testing.T) {
	_, err := ToDocument(models.NewRecord(`[1,2]`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestFromDocumentRejectsBadIDs(t *testing.T) {
	for _, doc := range []bson.D{
		{},
		{{Key: "a", Value: "1"}},
		{{Key: "_id", Value: 7}},
		{{Key: "_id", Value: "not-a-uuid"}},
	} {
		_, err := FromDocument(doc)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	}
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "op"))

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	assert.True(t, errors.IsType(classify(dup, "insert batch"), errors.ErrorTypeConflict))

	assert.True(t, errors.IsType(classify(context.DeadlineExceeded, "count"), errors.ErrorTypeTimeout))
	assert.True(t, isTransactionUnsupported(mongo.CommandError{Code: illegalOperation}))
	assert.False(t, isTransactionUnsupported(nil))
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Open(context.Background(), config.StorageConfig{DSN: "mongodb://localhost"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

// TestLiveRoundTrip runs against a real server when DOCGEN_TEST_MONGO_DSN is set
func TestLiveRoundTrip(t *testing.T) {
	dsn := testutil.RequireEnv(t, "DOCGEN_TEST_MONGO_DSN")

	ctx := context.Background()
	cfg := config.Default().Storage
	cfg.Driver = DriverName
	cfg.DSN = dsn
	cfg.Collection = "docgen_live"

	store, err := storage.Open(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	s := store.(*Store)
	t.Cleanup(func() {
		_ = s.collection.Drop(context.Background())
		s.Close()
	})

	batch := []*models.Record{
		models.NewRecord(`{"attribute_1_4":{"attribute_2_2":"live"}}`),
		models.NewRecord(`{"attribute_1_4":{"attribute_2_2":"other"}}`),
	}
	require.NoError(t, s.Persist(ctx, batch))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	found, err := s.FindByPath(ctx, storage.DefaultLookupPath, "live", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, batch[0].ID, found[0].ID)

	err = s.Persist(ctx, batch[:1])
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}
