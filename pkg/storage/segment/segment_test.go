package segment

import (
	"bytes"
	stderrors "errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/docgen/pkg/compression"
	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/models"
)

func batch() []*models.Record {
	return []*models.Record{
		models.NewRecord(`{"attribute_1_1":"abc","attribute_1_4":{"attribute_2_2":"17"}}`),
		models.NewRecord(`{"attribute_1_7":false}`),
		models.NewRecord(`{}`),
	}
}

func TestEncodeDecodeEveryCodec(t *testing.T) {
	in := batch()
	for _, alg := range compression.Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			codec, err := compression.NewCodec(&compression.Config{Algorithm: alg})
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, codec, in))

			out, err := Decode(&buf, codec)
			require.NoError(t, err)
			require.Len(t, out, len(in))
			for i := range in {
				assert.Equal(t, in[i].ID, out[i].ID)
				assert.JSONEq(t, in[i].Payload, out[i].Payload)
			}
		})
	}
}

func TestEncodeWritesOneLinePerRecord(t *testing.T) {
	codec, err := compression.NewCodec(&compression.Config{Algorithm: compression.None})
	require.NoError(t, err)

	in := batch()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, codec, in))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], `{"id":"`+in[0].ID.String()+`","data":{`))
}

func TestEncodeRejectsInvalidPayload(t *testing.T) {
	codec, err := compression.NewCodec(&compression.Config{Algorithm: compression.None})
	require.NoError(t, err)

	var buf bytes.Buffer
	err = Encode(&buf, codec, []*models.Record{models.NewRecord(`{"broken":`)})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

// closeCounter wraps a codec and counts writer closes
type closeCounter struct {
	compression.Codec
	closes int
}

type countingWriter struct {
	io.WriteCloser
	c *closeCounter
}

func (w countingWriter) Close() error {
	w.c.closes++
	return w.WriteCloser.Close()
}

func (c *closeCounter) NewWriter(w io.Writer) (io.WriteCloser, error) {
	cw, err := c.Codec.NewWriter(w)
	if err != nil {
		return nil, err
	}
	return countingWriter{WriteCloser: cw, c: c}, nil
}

func TestEncodeClosesWriterOnEveryPath(t *testing.T) {
	zstd, err := compression.NewCodec(&compression.Config{Algorithm: compression.Zstd})
	require.NoError(t, err)

	codec := &closeCounter{Codec: zstd}
	var buf bytes.Buffer
	err = Encode(&buf, codec, []*models.Record{models.NewRecord(`{"a":"1"}`), models.NewRecord(`{"broken":`)})
	require.Error(t, err)
	assert.Equal(t, 1, codec.closes, "writer closed after a rejected payload")

	codec = &closeCounter{Codec: zstd}
	buf.Reset()
	require.NoError(t, Encode(&buf, codec, batch()))
	assert.Equal(t, 1, codec.closes, "writer closed exactly once on success")
}

func TestScanStopsOnCallbackError(t *testing.T) {
	codec, err := compression.NewCodec(&compression.Config{Algorithm: compression.Gzip})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, codec, batch()))

	stop := stderrors.New("stop")
	seen := 0
	err = Scan(&buf, codec, func(*models.Record) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestScanMalformedLine(t *testing.T) {
	codec, err := compression.NewCodec(&compression.Config{Algorithm: compression.None})
	require.NoError(t, err)

	_, err = Decode(strings.NewReader("{\"id\":\"not-a-uuid\",\"data\":{}}\n"), codec)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestNamer(t *testing.T) {
	codec, err := compression.NewCodec(&compression.Config{Algorithm: compression.Zstd})
	require.NoError(t, err)

	n := NewNamer()
	n.now = func() time.Time { return time.Date(2026, 10, 18, 10, 15, 0, 0, time.UTC) }

	first := n.Next(codec)
	second := n.Next(codec)
	assert.True(t, strings.HasPrefix(first, "batch-20261018T101500Z-000001-"), first)
	assert.True(t, strings.HasSuffix(first, ".jsonl.zst"), first)
	assert.Less(t, first, second)

	assert.True(t, IsSegment("out/"+first, codec))
	assert.False(t, IsSegment("out/."+first, codec))
	assert.False(t, IsSegment("out/notes.txt", codec))
}
