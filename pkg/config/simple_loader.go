package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/docgen/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. DOCGEN_STORAGE_DSN
const EnvPrefix = "DOCGEN"

// Load reads the YAML file at filePath (optional), applies ${VAR}
// substitution and DOCGEN_* environment overrides on top of the defaults,
// and validates the result.
func Load(filePath string) (*Config, error) {
	v := newViper()

	if filePath != "" {
		data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").
				WithDetail("path", filePath)
		}

		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(substituteEnvVars(string(data)))); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
				WithDetail("path", filePath)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to filePath as YAML
func Save(filePath string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()

	d := Default()
	defaults := map[string]interface{}{
		"generator.attributes":          d.Generator.Attributes,
		"generator.max_depth":           d.Generator.MaxDepth,
		"generator.min_string_length":   d.Generator.MinStringLength,
		"generator.max_string_length":   d.Generator.MaxStringLength,
		"generator.seed":                d.Generator.Seed,
		"generator.workers":             d.Generator.Workers,
		"generator.records":             d.Generator.Records,
		"generator.batch_size":          d.Generator.BatchSize,
		"storage.driver":                d.Storage.Driver,
		"storage.dsn":                   d.Storage.DSN,
		"storage.table":                 d.Storage.Table,
		"storage.column":                d.Storage.Column,
		"storage.bulk_mode":             d.Storage.BulkMode,
		"storage.max_conns":             d.Storage.MaxConns,
		"storage.auto_migrate":          d.Storage.AutoMigrate,
		"storage.timeout":               d.Storage.Timeout,
		"storage.database":              d.Storage.Database,
		"storage.collection":            d.Storage.Collection,
		"storage.directory":             d.Storage.Directory,
		"storage.compression":           d.Storage.Compression,
		"storage.bucket":                d.Storage.Bucket,
		"storage.prefix":                d.Storage.Prefix,
		"storage.region":                d.Storage.Region,
		"storage.endpoint":              d.Storage.Endpoint,
		"server.address":                d.Server.Address,
		"server.read_timeout":           d.Server.ReadTimeout,
		"server.write_timeout":          d.Server.WriteTimeout,
		"server.max_records":            d.Server.MaxRecords,
		"logging.level":                 d.Logging.Level,
		"logging.encoding":              d.Logging.Encoding,
		"logging.development":           d.Logging.Development,
		"logging.output_paths":          d.Logging.OutputPaths,
		"observability.metrics_enabled": d.Observability.MetricsEnabled,
		"observability.tracing_enabled": d.Observability.TracingEnabled,
		"observability.sample_rate":     d.Observability.SampleRate,
		"observability.service_name":    d.Observability.ServiceName,
		"observability.memory_interval": d.Observability.MemoryInterval,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Substituted values are not scanned again.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
