package generator

import (
	"bytes"
	"fmt"

	"github.com/ajitpratap0/docgen/pkg/errors"
	jsonpool "github.com/ajitpratap0/docgen/pkg/json"
)

// Field is a single name/value pair of a document
type Field struct {
	Name  string
	Value interface{}
}

// Document is an ordered JSON object. Values are string, bool or *Document;
// anything else fails to encode.
type Document struct {
	fields []Field
	index  map[string]int
}

// NewDocument creates an empty document sized for capacity fields
func NewDocument(capacity int) *Document {
	return &Document{
		fields: make([]Field, 0, capacity),
		index:  make(map[string]int, capacity),
	}
}

// Set stores value under name. Replacing an existing name keeps its position.
func (d *Document) Set(name string, value interface{}) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[name]; ok {
		d.fields[i].Value = value
		return
	}
	d.index[name] = len(d.fields)
	d.fields = append(d.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name
func (d *Document) Get(name string) (interface{}, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.fields[i].Value, true
}

// Len returns the number of top-level fields
func (d *Document) Len() int {
	return len(d.fields)
}

// Keys returns the field names in insertion order
func (d *Document) Keys() []string {
	keys := make([]string, len(d.fields))
	for i, f := range d.fields {
		keys[i] = f.Name
	}
	return keys
}

// Fields returns a copy of the fields in insertion order
func (d *Document) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Lookup follows path through nested documents
func (d *Document) Lookup(path ...string) (interface{}, bool) {
	var current interface{} = d
	for _, name := range path {
		doc, ok := current.(*Document)
		if !ok {
			return nil, false
		}
		current, ok = doc.Get(name)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Depth returns the number of document levels that carry fields.
// An empty document has depth 0.
func (d *Document) Depth() int {
	if len(d.fields) == 0 {
		return 0
	}
	deepest := 0
	for _, f := range d.fields {
		if child, ok := f.Value.(*Document); ok {
			if depth := child.Depth(); depth > deepest {
				deepest = depth
			}
		}
	}
	return deepest + 1
}

// LeafCount returns the number of non-document values at every level
func (d *Document) LeafCount() int {
	n := 0
	for _, f := range d.fields {
		if child, ok := f.Value.(*Document); ok {
			n += child.LeafCount()
			continue
		}
		n++
	}
	return n
}

// MarshalJSON encodes the document keeping field order
func (d *Document) MarshalJSON() ([]byte, error) {
	buf := jsonpool.GetBuffer()
	defer jsonpool.PutBuffer(buf)

	if err := d.AppendJSON(buf); err != nil {
		return nil, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// AppendJSON writes the encoded document to buf
func (d *Document) AppendJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, f := range d.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := jsonpool.WriteString(buf, f.Name); err != nil {
			return err
		}
		buf.WriteByte(':')

		switch v := f.Value.(type) {
		case string:
			if err := jsonpool.WriteString(buf, v); err != nil {
				return err
			}
		case bool:
			if v {
				buf.WriteString("true")
			} else {
				buf.WriteString("false")
			}
		case *Document:
			if v == nil {
				return unsupportedValue(f.Name, v)
			}
			if err := v.AppendJSON(buf); err != nil {
				return err
			}
		default:
			return unsupportedValue(f.Name, v)
		}
	}
	buf.WriteByte('}')
	return nil
}

func unsupportedValue(name string, v interface{}) error {
	return errors.New(errors.ErrorTypeInternal, "document value outside the schema value set").
		WithDetail("attribute", name).
		WithDetail("type", fmt.Sprintf("%T", v))
}
