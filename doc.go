// Package docgen generates large, deeply nested random JSON documents and
// bulk-loads them into a JSON-capable store for load and query testing.
//
// Every document follows one attribute schema. Each level carries the same
// numbered attributes; ordinals with the nested kind hold a child object one
// level down, the rest hold random strings or booleans. Attribute names
// encode their position as attribute_{level}_{ordinal}, so the default
// lookup path attribute_1_4.attribute_2_2 exists in every document.
//
// # Architecture
//
// A run is split into batches. For each batch the pipeline builds the
// documents, serializes them into records with fresh UUIDs and hands the
// batch to a storage backend, which commits it as one transaction:
//
//	schema.Schema -> generator.Builder -> pipeline.Accumulator -> storage.Store
//
// Backends register by driver name and are picked from configuration:
//
//   - postgres (pgx, COPY or multi-row INSERT into JSONB) and pq
//   - mysql and sqlite (database/sql, JSON columns)
//   - mongodb (one InsertMany per batch inside a session transaction)
//   - file, s3, gcs (one compressed segment object per batch)
//   - memory (for tests and dry runs)
//
// # Quick Start
//
//	docgen generate --records 10000 --batch-size 100 --driver sqlite --dsn docgen.db
//	docgen query --driver sqlite --dsn docgen.db --value 4711
//	docgen serve --driver postgres --dsn postgres://localhost/docs
//
// The HTTP server exposes GET /generate-json?numRecords=N&bulkSize=B, which
// runs the same pipeline and reports how many documents were committed.
//
// # Configuration
//
// Settings come from an optional YAML file, DOCGEN_* environment variables
// and command line flags, in increasing precedence. See pkg/config.
package docgen
