package config

import (
	"regexp"
	"time"

	"github.com/ajitpratap0/docgen/pkg/errors"
	"github.com/ajitpratap0/docgen/pkg/logger"
)

// Config is the complete docgen configuration
type Config struct {
	// Generator controls document shape and run size
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator" json:"generator"`

	// Storage selects and configures the persistence backend
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`

	// Server configures the HTTP API
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Logging configures the global zap logger
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Observability toggles metrics and tracing
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability" json:"observability"`
}

// GeneratorConfig controls document generation
type GeneratorConfig struct {
	// Attributes is the number of attributes per document level
	Attributes int `mapstructure:"attributes" yaml:"attributes" json:"attributes"`
	// MaxDepth is the deepest level that carries attributes
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth" json:"max_depth"`
	// MinStringLength bounds generated STRING values
	MinStringLength int `mapstructure:"min_string_length" yaml:"min_string_length" json:"min_string_length"`
	// MaxStringLength bounds generated STRING values
	MaxStringLength int `mapstructure:"max_string_length" yaml:"max_string_length" json:"max_string_length"`
	// Seed makes runs reproducible; 0 picks a random seed
	Seed int64 `mapstructure:"seed" yaml:"seed" json:"seed"`
	// Workers builds the documents of one batch in parallel when above 1
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
	// Records is the default run size for the CLI
	Records int `mapstructure:"records" yaml:"records" json:"records"`
	// BatchSize is the default number of documents per transaction
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
}

// StorageConfig selects a backend. Fields that do not apply to the chosen
// driver are ignored.
type StorageConfig struct {
	Driver      string        `mapstructure:"driver" yaml:"driver" json:"driver"`
	DSN         string        `mapstructure:"dsn" yaml:"dsn" json:"-"`
	Table       string        `mapstructure:"table" yaml:"table" json:"table"`
	Column      string        `mapstructure:"column" yaml:"column" json:"column"`
	BulkMode    string        `mapstructure:"bulk_mode" yaml:"bulk_mode" json:"bulk_mode"`
	MaxConns    int           `mapstructure:"max_conns" yaml:"max_conns" json:"max_conns"`
	AutoMigrate bool          `mapstructure:"auto_migrate" yaml:"auto_migrate" json:"auto_migrate"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`

	// Database and Collection apply to mongodb
	Database   string `mapstructure:"database" yaml:"database" json:"database"`
	Collection string `mapstructure:"collection" yaml:"collection" json:"collection"`

	// Directory applies to the file sink
	Directory string `mapstructure:"directory" yaml:"directory" json:"directory"`

	// Compression applies to the file and object sinks
	Compression string `mapstructure:"compression" yaml:"compression" json:"compression"`

	// Bucket, Prefix, Region and Endpoint apply to s3 and gcs
	Bucket   string `mapstructure:"bucket" yaml:"bucket" json:"bucket"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
	Region   string `mapstructure:"region" yaml:"region" json:"region"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address      string        `mapstructure:"address" yaml:"address" json:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	// MaxRecords caps numRecords on a single request; 0 disables the cap
	MaxRecords int `mapstructure:"max_records" yaml:"max_records" json:"max_records"`
}

// LoggingConfig configures the global logger
type LoggingConfig struct {
	Level       string   `mapstructure:"level" yaml:"level" json:"level"`
	Encoding    string   `mapstructure:"encoding" yaml:"encoding" json:"encoding"`
	Development bool     `mapstructure:"development" yaml:"development" json:"development"`
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths" json:"output_paths"`
}

// Logger converts the section into a logger.Config
func (c LoggingConfig) Logger() logger.Config {
	return logger.Config{
		Level:       c.Level,
		Development: c.Development,
		Encoding:    c.Encoding,
		OutputPaths: c.OutputPaths,
	}
}

// ObservabilityConfig toggles metrics and tracing
type ObservabilityConfig struct {
	MetricsEnabled bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled" json:"metrics_enabled"`
	TracingEnabled bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled" json:"tracing_enabled"`
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	// MemoryInterval is how often process RSS is sampled; 0 disables sampling
	MemoryInterval time.Duration `mapstructure:"memory_interval" yaml:"memory_interval" json:"memory_interval"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Generator: GeneratorConfig{
			Attributes:      20,
			MaxDepth:        4,
			MinStringLength: 50,
			MaxStringLength: 150,
			Workers:         1,
			Records:         10000,
			BatchSize:       100,
		},
		Storage: StorageConfig{
			Driver:      "postgres",
			Table:       "json_test",
			Column:      "data",
			BulkMode:    "insert",
			MaxConns:    10,
			AutoMigrate: true,
			Timeout:     5 * time.Minute,
			Database:    "docgen",
			Collection:  "json_test",
			Directory:   "./out",
			Compression: "gzip",
			Prefix:      "docgen",
		},
		Server: ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			MaxRecords:   1000000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			SampleRate:     1.0,
			ServiceName:    "docgen",
			MemoryInterval: 15 * time.Second,
		},
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether name is safe to splice into SQL as a
// table or column name
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	g := c.Generator
	switch {
	case g.Attributes < 0:
		return invalid("generator.attributes", g.Attributes, "must not be negative")
	case g.MaxDepth < 1:
		return invalid("generator.max_depth", g.MaxDepth, "must be at least 1")
	case g.MinStringLength < 1:
		return invalid("generator.min_string_length", g.MinStringLength, "must be positive")
	case g.MaxStringLength < g.MinStringLength:
		return invalid("generator.max_string_length", g.MaxStringLength, "must not be below min_string_length")
	case g.Workers < 1:
		return invalid("generator.workers", g.Workers, "must be at least 1")
	case g.Records < 0:
		return invalid("generator.records", g.Records, "must not be negative")
	case g.BatchSize < 1:
		return invalid("generator.batch_size", g.BatchSize, "must be positive")
	}

	s := c.Storage
	switch {
	case s.Driver == "":
		return invalid("storage.driver", s.Driver, "is required")
	case !ValidIdentifier(s.Table):
		return invalid("storage.table", s.Table, "must be a plain SQL identifier")
	case !ValidIdentifier(s.Column):
		return invalid("storage.column", s.Column, "must be a plain SQL identifier")
	case s.BulkMode != "insert" && s.BulkMode != "copy":
		return invalid("storage.bulk_mode", s.BulkMode, "must be insert or copy")
	case s.MaxConns < 1:
		return invalid("storage.max_conns", s.MaxConns, "must be at least 1")
	case s.Timeout < 0:
		return invalid("storage.timeout", s.Timeout, "must not be negative")
	}

	if c.Server.MaxRecords < 0 {
		return invalid("server.max_records", c.Server.MaxRecords, "must not be negative")
	}

	o := c.Observability
	if o.SampleRate < 0 || o.SampleRate > 1 {
		return invalid("observability.sample_rate", o.SampleRate, "must be within [0, 1]")
	}
	if o.MemoryInterval < 0 {
		return invalid("observability.memory_interval", o.MemoryInterval, "must not be negative")
	}

	return nil
}

func invalid(key string, value interface{}, reason string) error {
	return errors.New(errors.ErrorTypeConfig, key+" "+reason).
		WithDetail("key", key).
		WithDetail("value", value)
}
