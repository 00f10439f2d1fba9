package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nlq2sql/nlq2sql/internal/format"
	"github.com/nlq2sql/nlq2sql/internal/logging"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the loaded schema registry",
	Long: `Print every table in the registry with its columns, types, primary keys,
and join relationships, from whichever source is configured (live database
introspection or a static descriptor file).`,
	Args: cobra.NoArgs,
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		logging.Debugf("showing schema without a database: %v", err)
		store = nil
	} else {
		defer store.Close()
	}

	registry := buildRegistry(ctx, cfg, store)

	if !registry.Loaded() {
		cmd.Println("Schema registry is empty: no descriptor file or database schema available.")
		return nil
	}

	for _, name := range registry.Tables() {
		columns, _ := registry.Columns(name)
		format.SchemaTable(cmd.OutOrStdout(), name, columns)

		for _, rel := range registry.Relationships(name) {
			cmd.Printf("  joins %s on %s.%s = %s.%s\n",
				rel.Table, name, rel.FromColumn, rel.Table, rel.ToColumn)
		}

		cmd.Println()
	}

	return nil
}
