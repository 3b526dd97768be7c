// Package models holds the row type shared by the generation pipeline and
// the storage backends.
package models

import (
	"github.com/google/uuid"
)

// Record is one stored document: a client-generated id plus the document
// text. Records are created when a document joins a batch and are dropped
// after the batch is persisted.
type Record struct {
	// ID is a random (v4) UUID assigned at creation
	ID uuid.UUID `json:"id" bson:"_id"`

	// Payload is the serialized JSON document
	Payload string `json:"data" bson:"-"`
}

// NewRecord creates a record with a fresh id
func NewRecord(payload string) *Record {
	return &Record{
		ID:      uuid.New(),
		Payload: payload,
	}
}

// PayloadSize returns the combined payload length of records in bytes
func PayloadSize(records []*Record) int {
	n := 0
	for _, r := range records {
		n += len(r.Payload)
	}
	return n
}
