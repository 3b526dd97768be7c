package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

var sample = []byte(strings.Repeat(`{"attribute_1_1":"abcdefghijklmnopqrstuvwxyz","attribute_1_7":true}`+"\n", 200))

func compress(t *testing.T, codec Codec, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := codec.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func decompress(t *testing.T, codec Codec, data []byte) []byte {
	t.Helper()
	r, err := codec.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	for _, alg := range Algorithms {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(string(alg), func(t *testing.T) {
				codec, err := NewCodec(&Config{Algorithm: alg, Level: level})
				require.NoError(t, err)
				assert.Equal(t, alg, codec.Algorithm())

				compressed := compress(t, codec, sample)
				if alg != None {
					assert.Less(t, len(compressed), len(sample))
				}

				decompressed := decompress(t, codec, compressed)
				assert.Equal(t, sample, decompressed)
			})
		}
	}
}

func TestCodecStreaming(t *testing.T) {
	codec, err := NewCodec(&Config{Algorithm: LZ4, Level: Default})
	require.NoError(t, err)

	var buf bytes.Buffer
	w, err := codec.NewWriter(&buf)
	require.NoError(t, err)
	for _, line := range bytes.SplitAfter(sample, []byte("\n")) {
		_, err := w.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	r, err := codec.NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, sample, out)
}

func TestExtensions(t *testing.T) {
	want := map[Algorithm]string{
		None:   "",
		Gzip:   ".gz",
		Snappy: ".snappy",
		LZ4:    ".lz4",
		Zstd:   ".zst",
		S2:     ".s2",
	}
	for alg, ext := range want {
		codec, err := NewCodec(&Config{Algorithm: alg})
		require.NoError(t, err)
		assert.Equal(t, ext, codec.Extension(), string(alg))
	}
}

func TestParse(t *testing.T) {
	alg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)

	alg, err = Parse(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)

	_, err = Parse("brotli")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewCodec(&Config{Algorithm: "brotli"})
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	codec, err := NewCodec(nil)
	require.NoError(t, err)
	assert.Equal(t, Gzip, codec.Algorithm())
}
