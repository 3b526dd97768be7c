// Package schema defines the fixed attribute schema that drives document
// generation. A schema maps each 1-based attribute ordinal to the kind of
// value generated for it; the mapping is a pure function of the ordinal and
// does not depend on the nesting level.
package schema

import (
	"fmt"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

// DefaultAttributeCount is the number of attributes per document level
const DefaultAttributeCount = 20

// Kind is the value kind generated for an attribute
type Kind int

const (
	// KindString is a random lowercase string
	KindString Kind = iota
	// KindNumericString is the decimal form of a random integer
	KindNumericString
	// KindBoolean is a random boolean
	KindBoolean
	// KindNested is a nested document one level deeper
	KindNested
)

// String returns the schema table name of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "STRING"
	case KindNumericString:
		return "NUMERIC_STRING"
	case KindBoolean:
		return "BOOLEAN"
	case KindNested:
		return "NESTED"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// fixedKinds holds ordinals 1..10
var fixedKinds = [...]Kind{
	KindString,        // 1
	KindNumericString, // 2
	KindString,        // 3
	KindNested,        // 4
	KindString,        // 5
	KindNumericString, // 6
	KindBoolean,       // 7
	KindString,        // 8
	KindNested,        // 9
	KindNumericString, // 10
}

// cyclicKinds is indexed by ordinal % 4 for ordinals past the fixed table
var cyclicKinds = [4]Kind{
	KindString,
	KindNumericString,
	KindBoolean,
	KindNested,
}

// KindFor returns the kind of the attribute at ordinal.
// Ordinals start at 1; values below 1 are treated as cyclic as well.
func KindFor(ordinal int) Kind {
	if ordinal >= 1 && ordinal <= len(fixedKinds) {
		return fixedKinds[ordinal-1]
	}
	r := ordinal % 4
	if r < 0 {
		r += 4
	}
	return cyclicKinds[r]
}

// Entry is a single row of the schema table
type Entry struct {
	Ordinal int  `json:"ordinal"`
	Kind    Kind `json:"kind"`
}

// Schema is an immutable ordinal -> kind table. It is built once and is
// safe for concurrent readers.
type Schema struct {
	kinds  []Kind
	nested int
}

// New builds a schema with count attributes
func New(count int) (*Schema, error) {
	if count < 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "attribute count must not be negative").
			WithDetail("attributes", count)
	}

	s := &Schema{kinds: make([]Kind, count)}
	for i := range s.kinds {
		k := KindFor(i + 1)
		s.kinds[i] = k
		if k == KindNested {
			s.nested++
		}
	}
	return s, nil
}

// Default returns the 20-attribute schema
func Default() *Schema {
	s, _ := New(DefaultAttributeCount)
	return s
}

// Count returns the number of attributes per level
func (s *Schema) Count() int {
	return len(s.kinds)
}

// Kind returns the kind at ordinal (1-based). Ordinals outside the table
// fall back to KindFor so the lookup stays total.
func (s *Schema) Kind(ordinal int) Kind {
	if ordinal >= 1 && ordinal <= len(s.kinds) {
		return s.kinds[ordinal-1]
	}
	return KindFor(ordinal)
}

// NestedCount returns how many ordinals are NESTED
func (s *Schema) NestedCount() int {
	return s.nested
}

// LeafCount returns how many ordinals produce a primitive value
func (s *Schema) LeafCount() int {
	return len(s.kinds) - s.nested
}

// NestedOrdinals returns the ordinals of NESTED attributes in order
func (s *Schema) NestedOrdinals() []int {
	out := make([]int, 0, s.nested)
	for i, k := range s.kinds {
		if k == KindNested {
			out = append(out, i+1)
		}
	}
	return out
}

// Entries returns a copy of the table
func (s *Schema) Entries() []Entry {
	out := make([]Entry, len(s.kinds))
	for i, k := range s.kinds {
		out[i] = Entry{Ordinal: i + 1, Kind: k}
	}
	return out
}

// AttributeName returns the emitted name for an attribute at level
func AttributeName(level, ordinal int) string {
	return fmt.Sprintf("attribute_%d_%d", level, ordinal)
}
