package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ajitpratap0/docgen/internal/api"
	"github.com/ajitpratap0/docgen/pkg/config"
	"github.com/ajitpratap0/docgen/pkg/schema"
	"github.com/ajitpratap0/docgen/pkg/storage"

	// Register the storage drivers
	_ "github.com/ajitpratap0/docgen/pkg/storage/filesink"
	_ "github.com/ajitpratap0/docgen/pkg/storage/memstore"
	_ "github.com/ajitpratap0/docgen/pkg/storage/mongo"
	_ "github.com/ajitpratap0/docgen/pkg/storage/objectstore"
	_ "github.com/ajitpratap0/docgen/pkg/storage/postgres"
	_ "github.com/ajitpratap0/docgen/pkg/storage/sqlstore"
)

var version = "0.1.0"

// flags overlays command line values on the loaded configuration
type flags struct {
	configFile string
	logLevel   string

	records   int
	batchSize int
	depth     int
	workers   int
	seed      int64
	driver    string
	dsn       string
	address   string

	value string
	path  string
	limit int
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	f := &flags{}
	root := &cobra.Command{
		Use:   "docgen",
		Short: "docgen - large random JSON document generator",
		Long: `docgen generates large, deeply nested random JSON documents and bulk-loads
them into a JSON-capable store, one transaction per batch.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&f.configFile, "config", "c", "", "Path to a YAML configuration file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("docgen v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Printf("Storage drivers: %s\n", strings.Join(storage.Drivers(), ", "))
		},
	})

	root.AddCommand(schemaCommand(f))
	root.AddCommand(generateCommand(f))
	root.AddCommand(serveCommand(f))
	root.AddCommand(queryCommand(f))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func schemaCommand(f *flags) *cobra.Command {
	var attributes int
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the attribute schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := schema.New(attributes)
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %-16s %s\n", "ORDINAL", "KIND", "LEVEL 1 NAME")
			for _, e := range s.Entries() {
				fmt.Printf("%-8d %-16s %s\n", e.Ordinal, e.Kind, schema.AttributeName(1, e.Ordinal))
			}
			fmt.Printf("\n%d attributes, %d nested (%v), %d leaves per level\n",
				s.Count(), s.NestedCount(), s.NestedOrdinals(), s.LeafCount())
			return nil
		},
	}
	cmd.Flags().IntVar(&attributes, "attributes", schema.DefaultAttributeCount, "Attributes per level")
	return cmd
}

func generateCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate documents and persist them",
		Long: `Generate documents in batches and persist each batch in one transaction.

Example:
  docgen generate --records 10000 --batch-size 100 --driver sqlite --dsn docgen.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, runErr := a.orchestrator.Run(ctx, cfg.Generator.Records, cfg.Generator.BatchSize)
			if result != nil {
				p := message.NewPrinter(language.AmericanEnglish)
				p.Printf("%d new JSONs were generated and saved in %d batches (%v)", result.Created, result.Batches, result.Duration)
				if result.TotalRecords >= 0 {
					p.Printf(", total records: %d", result.TotalRecords)
				}
				fmt.Println()
			}
			return runErr
		},
	}
	f.generatorFlags(cmd)
	f.storageFlags(cmd)
	return cmd
}

func serveCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := api.NewServer(cfg.Server,
				api.Defaults{Records: cfg.Generator.Records, BatchSize: cfg.Generator.BatchSize},
				a.orchestrator, a.store, a.logger)
			return server.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&f.address, "address", "", "Listen address (default from config, :8080)")
	f.generatorFlags(cmd)
	f.storageFlags(cmd)
	return cmd
}

func queryCommand(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Count stored documents or look them up by a nested value",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			cfg.Storage.AutoMigrate = false

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := storage.Open(ctx, cfg.Storage, zap.NewNop())
			if err != nil {
				return err
			}
			defer store.Close()

			return runQuery(ctx, os.Stdout, store, f.path, f.value, f.limit)
		},
	}
	cmd.Flags().StringVar(&f.value, "value", "", "Value to match; count only when empty")
	cmd.Flags().StringVar(&f.path, "path", storage.DefaultLookupPath.String(), "Dotted path of the value")
	cmd.Flags().IntVar(&f.limit, "limit", storage.DefaultSearchLimit, "Maximum number of documents")
	f.storageFlags(cmd)
	return cmd
}

func (f *flags) generatorFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.records, "records", "n", 0, "Number of documents to generate")
	cmd.Flags().IntVarP(&f.batchSize, "batch-size", "b", 0, "Documents per transaction")
	cmd.Flags().IntVar(&f.depth, "depth", 0, "Deepest document level")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel document builders per batch")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed; 0 picks one")
}

func (f *flags) storageFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.driver, "driver", "", "Storage driver: "+strings.Join(storage.Drivers(), ", "))
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "Data source name of the storage driver")
}

// load reads the configuration and applies the flags that were set
func (f *flags) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("records") {
		cfg.Generator.Records = f.records
	}
	if changed("batch-size") {
		cfg.Generator.BatchSize = f.batchSize
	}
	if changed("depth") {
		cfg.Generator.MaxDepth = f.depth
	}
	if changed("workers") {
		cfg.Generator.Workers = f.workers
	}
	if changed("seed") {
		cfg.Generator.Seed = f.seed
	}
	if changed("driver") {
		cfg.Storage.Driver = f.driver
	}
	if changed("dsn") {
		cfg.Storage.DSN = f.dsn
	}
	if changed("address") {
		cfg.Server.Address = f.address
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
