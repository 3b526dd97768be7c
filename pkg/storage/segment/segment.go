// Package segment encodes batches as JSON Lines segments for the file and
// object sinks. Each line is {"id":"<uuid>","data":{...document...}}; a
// segment holds exactly one batch and is written through a compression
// codec.
package segment

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/docgen/pkg/compression"
	"github.com/ajitpratap0/docgen/pkg/errors"
	jsonpool "github.com/ajitpratap0/docgen/pkg/json"
	"github.com/ajitpratap0/docgen/pkg/models"
)

// Extension is the suffix every segment carries before the codec extension
const Extension = ".jsonl"

// maxLine bounds a single decoded line
const maxLine = 64 * 1024 * 1024

type line struct {
	ID   uuid.UUID           `json:"id"`
	Data jsonpool.RawMessage `json:"data"`
}

// Encode writes batch as JSON Lines through codec
func Encode(w io.Writer, codec compression.Codec, batch []*models.Record) error {
	cw, err := codec.NewWriter(w)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open segment writer")
	}
	closed := false
	defer func() {
		if !closed {
			_ = cw.Close()
		}
	}()

	bw := bufio.NewWriterSize(cw, 256*1024)
	enc := jsonpool.NewEncoder(bw)
	for _, r := range batch {
		if !jsonpool.Valid([]byte(r.Payload)) {
			return errors.New(errors.ErrorTypeData, "record payload is not valid JSON").
				WithDetail("id", r.ID.String())
		}
		if err := enc.Encode(line{ID: r.ID, Data: jsonpool.RawMessage(r.Payload)}); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode record").
				WithDetail("id", r.ID.String())
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush segment")
	}
	closed = true
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to finish segment")
	}
	return nil
}

// Scan decodes a segment line by line, calling fn for each record. Scanning
// stops at the first error fn returns.
func Scan(r io.Reader, codec compression.Codec, fn func(*models.Record) error) error {
	cr, err := codec.NewReader(r)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to open segment reader")
	}
	defer cr.Close()

	scanner := bufio.NewScanner(cr)
	scanner.Buffer(make([]byte, 0, 256*1024), maxLine)
	for n := 1; scanner.Scan(); n++ {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := jsonpool.Unmarshal(raw, &l); err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "malformed segment line").
				WithDetail("line", n)
		}
		if err := fn(&models.Record{ID: l.ID, Payload: string(l.Data)}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to read segment")
	}
	return nil
}

// Decode reads every record of a segment
func Decode(r io.Reader, codec compression.Codec) ([]*models.Record, error) {
	var out []*models.Record
	err := Scan(r, codec, func(rec *models.Record) error {
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsSegment reports whether name looks like a segment for codec
func IsSegment(name string, codec compression.Codec) bool {
	return strings.HasSuffix(name, Extension+codec.Extension()) && !strings.HasPrefix(baseName(name), ".")
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Namer hands out segment names that sort in write order
type Namer struct {
	seq atomic.Uint64
	now func() time.Time
}

// NewNamer creates a namer using the wall clock
func NewNamer() *Namer {
	return &Namer{now: time.Now}
}

// Next returns a fresh name such as
// batch-20261018T101500Z-000001-1b4e28ba.jsonl.gz
func (n *Namer) Next(codec compression.Codec) string {
	seq := n.seq.Add(1)
	ts := n.now().UTC().Format("20060102T150405Z")
	return fmt.Sprintf("batch-%s-%06d-%s%s%s", ts, seq, uuid.NewString()[:8], Extension, codec.Extension())
}
