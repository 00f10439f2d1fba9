package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nlq2sql/nlq2sql/internal/config"
	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
	"github.com/nlq2sql/nlq2sql/internal/logging"
	"github.com/nlq2sql/nlq2sql/internal/schema"
	"github.com/nlq2sql/nlq2sql/internal/storage"
)

var (
	flagDBPath     string
	flagSchemaFile string
	flagLogLevel   string
	flagProvider   string
	flagModel      string
)

var rootCmd = &cobra.Command{
	Use:   "nlq2sql",
	Short: "Ask questions about a movie database in plain English",
	Long: `nlq2sql converts natural-language questions into SQL queries against a
movie dataset stored in DuckDB. Each candidate query is validated against the
database schema, scored, and refined through a bounded feedback loop before
execution, so answers come back with a confidence score and a feedback trail.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints structured errors with their
// suggestions before exiting.
func Execute() error {
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var structErr *apperrors.Error
		if errors.As(err, &structErr) {
			for _, s := range structErr.Suggestions {
				fmt.Fprintf(os.Stderr, "  hint: %s\n", s)
			}
		}
	}

	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db-path", "", "Path to the DuckDB database file")
	rootCmd.PersistentFlags().StringVar(&flagSchemaFile, "schema-file", "", "Path to a static schema descriptor (implies schema source 'file')")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "Generation provider: openai, anthropic, ollama, local")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "Generation model name")
}

// loadConfig builds the effective configuration from file, environment, and
// flags, and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithOverrides(map[string]interface{}{
		"db-path":     flagDBPath,
		"schema-file": flagSchemaFile,
		"log-level":   flagLogLevel,
		"provider":    flagProvider,
		"model":       flagModel,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeConfig, "failed to load configuration")
	}

	cfg.ExpandAllPaths()

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
		logging.Warnf("failed to initialize logger, using fallback: %v", err)
	}

	return cfg, nil
}

// openStore opens the configured database. A missing or unopenable database
// is not fatal for validation-only workflows, so the caller decides.
func openStore(cfg *config.Config) (*storage.Store, error) {
	if _, err := os.Stat(cfg.Database.Path); err != nil {
		return nil, apperrors.Newf(apperrors.ErrTypeDatabase,
			"database not found at %s", cfg.Database.Path).
			WithSuggestion("Set --db-path or NLQ2SQL_DB_PATH to your DuckDB movie database")
	}

	return storage.NewStore(cfg.Database)
}

// buildRegistry loads the schema registry from the configured source. Load
// failures fall back to an empty registry so existence checks fail closed
// while remaining detectable via Loaded().
func buildRegistry(ctx context.Context, cfg *config.Config, store *storage.Store) *schema.Registry {
	dialect := schema.DialectByName(cfg.Schema.Dialect)

	switch cfg.Schema.Source {
	case "file":
		reg, err := schema.LoadDescriptor(cfg.Schema.DescriptorPath, dialect)
		if err != nil {
			logging.Warnf("schema descriptor load failed: %v", err)
			return schema.NewEmpty(dialect)
		}

		return reg

	case "database":
		if store == nil {
			logging.Warnf("schema source is 'database' but no database is available")
			return schema.NewEmpty(dialect)
		}

		reg, err := schema.Introspect(ctx, store, dialect)
		if err != nil {
			logging.Warnf("schema introspection failed: %v", err)
			return schema.NewEmpty(dialect)
		}

		return reg

	default:
		return schema.NewEmpty(dialect)
	}
}
