package pipeline

import (
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/generator"
	"github.com/ajitpratap0/docgen/pkg/json"
	"github.com/ajitpratap0/docgen/pkg/models"
)

// Accumulator serializes documents into records until a batch is full
type Accumulator struct {
	capacity int
	records  []*models.Record
	bytes    int
}

// NewAccumulator creates an accumulator holding at most capacity records
func NewAccumulator(capacity int) *Accumulator {
	if capacity < 0 {
		capacity = 0
	}
	return &Accumulator{
		capacity: capacity,
		records:  make([]*models.Record, 0, capacity),
	}
}

// Add serializes doc and appends it with a fresh id
func (a *Accumulator) Add(doc *generator.Document) error {
	if a.IsFull() {
		return errors.New(errors.ErrorTypeInternal, "batch is already full").
			WithDetail("capacity", a.capacity)
	}
	if doc == nil {
		return errors.New(errors.ErrorTypeInternal, "nil document")
	}

	buf := json.GetBuffer()
	defer json.PutBuffer(buf)
	if err := doc.AppendJSON(buf); err != nil {
		return err
	}

	r := models.NewRecord(buf.String())
	a.records = append(a.records, r)
	a.bytes += len(r.Payload)
	return nil
}

// IsFull reports whether the batch reached its capacity
func (a *Accumulator) IsFull() bool {
	return len(a.records) >= a.capacity
}

// Len returns the number of records held
func (a *Accumulator) Len() int {
	return len(a.records)
}

// Bytes returns the combined payload size held
func (a *Accumulator) Bytes() int {
	return a.bytes
}

// Drain hands the batch over and starts an empty one
func (a *Accumulator) Drain() []*models.Record {
	batch := a.records
	a.records = make([]*models.Record, 0, a.capacity)
	a.bytes = 0
	return batch
}
