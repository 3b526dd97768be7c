// Package config loads the docgen configuration.
//
// Values are resolved in this order, later sources winning:
//
//   - built-in defaults (Default)
//   - the YAML file, after ${VAR_NAME} substitution
//   - DOCGEN_* environment variables, with dots replaced by underscores
//     (DOCGEN_STORAGE_DSN overrides storage.dsn)
//
// # Usage
//
//	cfg, err := config.Load("docgen.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// A minimal file:
//
//	generator:
//	  batch_size: 500
//	storage:
//	  driver: postgres
//	  dsn: ${DATABASE_URL}
package config
