// Package mongo stores each document as a MongoDB document keyed by its
// record id. A batch is written with InsertMany inside a session
// transaction, which needs a replica set or sharded cluster; against a
// standalone server the store falls back to one ordered InsertMany and
// logs that batches are no longer atomic.
package mongo

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
	"github.com/ajitpratap0/docgen/pkg/storage"
)

// DriverName is the registry name of the MongoDB store
const DriverName = "mongodb"

// illegalOperation is returned by standalone servers for transactions
const illegalOperation = 20

func init() {
	storage.Register(DriverName, func(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
		return Open(ctx, cfg, logger)
	})
}

// Store writes batches into one collection
type Store struct {
	client        *mongo.Client
	collection    *mongo.Collection
	transactional atomic.Bool
	logger        *zap.Logger
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Counter = (*Store)(nil)
	_ storage.Finder  = (*Store)(nil)
)

// Open connects to cfg.DSN and pings the primary
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "storage.dsn is required").WithDetail("driver", DriverName)
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "storage.database and storage.collection are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOpts := options.Client().ApplyURI(cfg.DSN)
	if cfg.MaxConns > 0 {
		clientOpts.SetMaxPoolSize(uint64(cfg.MaxConns))
	}
	if err := clientOpts.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid connection string")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to MongoDB")
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to ping MongoDB")
	}

	logger.Info("connected to MongoDB",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))

	s := &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}
	s.transactional.Store(true)
	return s, nil
}

// Persist inserts batch. Within a transaction a duplicate id aborts the
// whole batch.
func (s *Store) Persist(ctx context.Context, batch []*models.Record) error {
	if len(batch) == 0 {
		return nil
	}

	docs := make([]interface{}, len(batch))
	for i, r := range batch {
		doc, err := ToDocument(r)
		if err != nil {
			return err
		}
		docs[i] = doc
	}

	if s.transactional.Load() {
		err := s.insertInTransaction(ctx, docs)
		if !isTransactionUnsupported(err) {
			return classify(err, "insert batch")
		}
		s.transactional.Store(false)
		s.logger.Warn("server does not support transactions, batches are no longer atomic", zap.Error(err))
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return classify(err, "insert batch")
}

func (s *Store) insertInTransaction(ctx context.Context, docs []interface{}) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(context.Background())

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.collection.InsertMany(sc, docs, options.InsertMany().SetOrdered(true))
	})
	return err
}

// Count returns the number of documents in the collection
func (s *Store) Count(ctx context.Context) (int64, error) {
	n, err := s.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, classify(err, "count")
	}
	return n, nil
}

// FindByPath matches value against the dotted path. "true" and "false"
// also match stored booleans.
func (s *Store) FindByPath(ctx context.Context, path storage.Path, value string, limit int) ([]*models.Record, error) {
	candidates := bson.A{value}
	switch value {
	case "true":
		candidates = append(candidates, true)
	case "false":
		candidates = append(candidates, false)
	}
	filter := bson.D{{Key: path.String(), Value: bson.D{{Key: "$in", Value: candidates}}}}

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetLimit(int64(storage.NormalizeLimit(limit))))
	if err != nil {
		return nil, classify(err, "path lookup")
	}
	defer cursor.Close(ctx)

	var out []*models.Record
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "undecodable document")
		}
		r, err := FromDocument(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := cursor.Err(); err != nil {
		return nil, classify(err, "path lookup")
	}
	return out, nil
}

// Name returns the driver name
func (s *Store) Name() string {
	return DriverName
}

// Close disconnects the client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ToDocument turns a record into a BSON document with the id as _id and
// the payload's fields after it, in payload order.
func ToDocument(r *models.Record) (bson.D, error) {
	var fields bson.D
	if err := bson.UnmarshalExtJSON([]byte(r.Payload), false, &fields); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "payload is not a JSON object").
			WithDetail("id", r.ID.String())
	}
	doc := make(bson.D, 0, len(fields)+1)
	doc = append(doc, bson.E{Key: "_id", Value: r.ID.String()})
	return append(doc, fields...), nil
}

// FromDocument is the inverse of ToDocument
func FromDocument(doc bson.D) (*models.Record, error) {
	if len(doc) == 0 || doc[0].Key != "_id" {
		return nil, errors.New(errors.ErrorTypeData, "document has no leading _id")
	}
	raw, ok := doc[0].Value.(string)
	if !ok {
		return nil, errors.New(errors.ErrorTypeData, "document _id is not a string")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "document _id is not a UUID").WithDetail("id", raw)
	}

	payload, err := bson.MarshalExtJSON(doc[1:], false, false)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to render document")
	}
	return &models.Record{ID: id, Payload: string(payload)}, nil
}

func isTransactionUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == illegalOperation {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "Transaction numbers are only allowed")
}

func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) {
		return errors.Wrap(err, errors.ErrorTypeConnection, op+" lost the connection")
	}
	return storage.Classify(err, op, mongo.IsDuplicateKeyError)
}
