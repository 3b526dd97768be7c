// Package compression provides the stream codecs used by the file and object
// sinks when writing batch segments.
//
// # Algorithm Selection
//
//   - Snappy/S2: fastest, moderate ratio
//   - LZ4: extremely fast, decent ratio
//   - Zstd: best ratio, good speed
//   - Gzip: readable everywhere (zcat, browsers, object store consoles)
//
// # Basic Usage
//
//	codec, err := compression.NewCodec(&compression.Config{
//	    Algorithm: compression.Zstd,
//	    Level:     compression.Default,
//	})
//
//	w, err := codec.NewWriter(file)
//	// write JSONL
//	err = w.Close()
package compression

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	// None writes segments uncompressed
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Algorithms lists every supported algorithm
var Algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2}

// Level controls the trade-off between speed and ratio
type Level int

const (
	// Fastest prioritizes speed over compression ratio
	Fastest Level = 1
	// Default balances speed and compression
	Default Level = 5
	// Better improves compression at cost of speed
	Better Level = 7
	// Best maximizes compression ratio
	Best Level = 9
)

// Config selects a codec
type Config struct {
	Algorithm Algorithm
	Level     Level
}

// DefaultConfig returns gzip at the default level
func DefaultConfig() *Config {
	return &Config{
		Algorithm: Gzip,
		Level:     Default,
	}
}

// Parse resolves an algorithm name. The empty string means None.
func Parse(name string) (Algorithm, error) {
	if name == "" {
		return None, nil
	}
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Algorithms {
		if alg == known {
			return alg, nil
		}
	}
	return "", errors.New(errors.ErrorTypeConfig, "unsupported compression algorithm").
		WithDetail("algorithm", name)
}

// Codec wraps writers and readers with one algorithm. Codecs hold no
// stream state and are safe for concurrent use.
type Codec interface {
	// Algorithm returns the compression algorithm used
	Algorithm() Algorithm

	// Extension returns the file suffix for segments, including the dot
	Extension() string

	// NewWriter returns a writer compressing into w. Close flushes the
	// stream but does not close w.
	NewWriter(w io.Writer) (io.WriteCloser, error)

	// NewReader returns a reader decompressing r
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// NewCodec creates a codec. A nil config selects DefaultConfig.
func NewCodec(config *Config) (Codec, error) {
	if config == nil {
		config = DefaultConfig()
	}

	alg, err := Parse(string(config.Algorithm))
	if err != nil {
		return nil, err
	}

	switch alg {
	case None:
		return noneCodec{}, nil
	case Gzip:
		return gzipCodec{level: mapGzipLevel(config.Level)}, nil
	case Snappy:
		return snappyCodec{}, nil
	case LZ4:
		return lz4Codec{level: mapLZ4Level(config.Level)}, nil
	case Zstd:
		return zstdCodec{level: mapZstdLevel(config.Level)}, nil
	default:
		return s2Codec{}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

type noneCodec struct{}

func (noneCodec) Algorithm() Algorithm { return None }
func (noneCodec) Extension() string    { return "" }

func (noneCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (noneCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type gzipCodec struct {
	level int
}

func (gzipCodec) Algorithm() Algorithm { return Gzip }
func (gzipCodec) Extension() string    { return ".gz" }

func (c gzipCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, c.level)
}

func (gzipCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}

type snappyCodec struct{}

func (snappyCodec) Algorithm() Algorithm { return Snappy }
func (snappyCodec) Extension() string    { return ".snappy" }

func (snappyCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (snappyCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(r)), nil
}

type s2Codec struct{}

func (s2Codec) Algorithm() Algorithm { return S2 }
func (s2Codec) Extension() string    { return ".s2" }

func (s2Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return s2.NewWriter(w), nil
}

func (s2Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(r)), nil
}

type lz4Codec struct {
	level lz4.CompressionLevel
}

func (lz4Codec) Algorithm() Algorithm { return LZ4 }
func (lz4Codec) Extension() string    { return ".lz4" }

func (c lz4Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(c.level)); err != nil {
		return nil, err
	}
	return zw, nil
}

func (lz4Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

type zstdCodec struct {
	level zstd.EncoderLevel
}

func (zstdCodec) Algorithm() Algorithm { return Zstd }
func (zstdCodec) Extension() string    { return ".zst" }

func (c zstdCodec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(c.level))
}

func (zstdCodec) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}
