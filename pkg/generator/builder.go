// Package generator builds random nested JSON documents from an attribute
// schema.
//
// A Builder walks the schema once per level. Primitive kinds are drawn from
// a shared Sampler and NESTED attributes recurse until the maximum level is
// reached, where they are left out instead of emitted as empty objects:
//
//	b, _ := generator.NewBuilder(schema.Default(), generator.NewSampler(0), generator.BuilderConfig{})
//	doc := b.Build(1, generator.DefaultMaxDepth)
//	payload, _ := doc.MarshalJSON()
package generator

import (
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/schema"
)

const (
	// DefaultMaxDepth is the recursion depth used for stored documents
	DefaultMaxDepth = 4
	// DefaultMinStringLength is the shortest generated string
	DefaultMinStringLength = 50
	// DefaultMaxStringLength is the longest generated string
	DefaultMaxStringLength = 150
)

// BuilderConfig tunes value sampling. Zero fields take the defaults.
type BuilderConfig struct {
	MinStringLength int
	MaxStringLength int
}

func (c BuilderConfig) withDefaults() BuilderConfig {
	if c.MinStringLength == 0 {
		c.MinStringLength = DefaultMinStringLength
	}
	if c.MaxStringLength == 0 {
		c.MaxStringLength = DefaultMaxStringLength
	}
	return c
}

// Validate checks the string length bounds
func (c BuilderConfig) Validate() error {
	c = c.withDefaults()
	if c.MinStringLength < 1 {
		return errors.New(errors.ErrorTypeConfig, "min string length must be positive").
			WithDetail("min_string_length", c.MinStringLength)
	}
	if c.MaxStringLength < c.MinStringLength {
		return errors.New(errors.ErrorTypeConfig, "max string length must not be below min string length").
			WithDetail("min_string_length", c.MinStringLength).
			WithDetail("max_string_length", c.MaxStringLength)
	}
	return nil
}

// Builder assembles documents. It holds no per-document state, so one
// Builder can serve concurrent callers as long as its Sampler does.
type Builder struct {
	schema  *schema.Schema
	sampler *Sampler
	minLen  int
	maxLen  int
}

// NewBuilder creates a builder over s drawing values from sampler
func NewBuilder(s *schema.Schema, sampler *Sampler, cfg BuilderConfig) (*Builder, error) {
	if s == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "schema is required")
	}
	if sampler == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "sampler is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	return &Builder{
		schema:  s,
		sampler: sampler,
		minLen:  cfg.MinStringLength,
		maxLen:  cfg.MaxStringLength,
	}, nil
}

// Schema returns the schema the builder walks
func (b *Builder) Schema() *schema.Schema {
	return b.schema
}

// Build returns the document for level. Levels above maxLevel are empty and
// NESTED attributes are omitted once level reaches maxLevel.
func (b *Builder) Build(level, maxLevel int) *Document {
	if level > maxLevel {
		return NewDocument(0)
	}

	n := b.schema.Count()
	doc := NewDocument(n)
	for ordinal := 1; ordinal <= n; ordinal++ {
		name := schema.AttributeName(level, ordinal)

		switch b.schema.Kind(ordinal) {
		case schema.KindString:
			doc.Set(name, b.sampler.String(b.minLen, b.maxLen))
		case schema.KindNumericString:
			doc.Set(name, b.sampler.NumericString())
		case schema.KindBoolean:
			doc.Set(name, b.sampler.Boolean())
		case schema.KindNested:
			if level < maxLevel {
				doc.Set(name, b.Build(level+1, maxLevel))
			}
		}
	}
	return doc
}
