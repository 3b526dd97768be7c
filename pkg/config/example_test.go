package config_test

import (
	"fmt"

	"github.com/ajitpratap0/docgen/pkg/config"
)

// ExampleDefault shows the defaults used when no file is given
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Driver: %s\n", cfg.Storage.Driver)
	fmt.Printf("Table: %s.%s\n", cfg.Storage.Table, cfg.Storage.Column)
	fmt.Printf("Batch Size: %d\n", cfg.Generator.BatchSize)
	fmt.Printf("Max Depth: %d\n", cfg.Generator.MaxDepth)

	// Output:
	// Driver: postgres
	// Table: json_test.data
	// Batch Size: 100
	// Max Depth: 4
}

// ExampleConfig_Validate shows how a bad value is reported
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Generator.BatchSize = 0

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}

	// Output:
	// config: generator.batch_size must be positive
}
