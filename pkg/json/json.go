// Package json provides JSON serialization for docgen backed by goccy/go-json,
// with pooled buffers for the hot document encoding path.
package json

import (
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// RawMessage is a raw encoded JSON value
type RawMessage = gojson.RawMessage

// maxPooledBuffer keeps very large buffers out of the pool
const maxPooledBuffer = 4 * 1024 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64*1024))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for encoding/json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding
func Valid(data []byte) bool {
	return gojson.Valid(data)
}

// NewEncoder returns an encoder that does not escape HTML
func NewEncoder(w io.Writer) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// WriteString writes s as a quoted JSON string to buf
func WriteString(buf *bytes.Buffer, s string) error {
	quoted, err := gojson.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(quoted)
	return nil
}

// Lookup decodes data and follows path through nested objects. It reports
// false when a segment is missing or traverses a non-object value.
func Lookup(data []byte, path ...string) (interface{}, bool) {
	var root interface{}
	if err := gojson.Unmarshal(data, &root); err != nil {
		return nil, false
	}
	return LookupValue(root, path...)
}

// LookupValue follows path through an already decoded value
func LookupValue(v interface{}, path ...string) (interface{}, bool) {
	current := v
	for _, segment := range path {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
