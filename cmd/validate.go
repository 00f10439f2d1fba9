package cmd

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/nlq2sql/nlq2sql/internal/logging"
	"github.com/nlq2sql/nlq2sql/internal/validate"
)

var validateQuestion string

var validateCmd = &cobra.Command{
	Use:   "validate <sql>",
	Short: "Validate a SQL query against the movie schema",
	Long: `Run the schema and syntax checks on a SQL string without generation or
execution, printing the confidence score and feedback.

Examples:
  nlq2sql validate "SELECT primaryTitle FROM title_basics"
  nlq2sql validate --question "top rated movies" "SELECT * FROM title_ratings"`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateQuestion, "question", "",
		"Original question, used for advisory intent checks")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		logging.Debugf("validating without a database: %v", err)
		store = nil
	} else {
		defer store.Close()
	}

	registry := buildRegistry(ctx, cfg, store)

	var db *sql.DB
	if store != nil {
		db = store.DB()
	}

	validator := validate.New(registry, db, validate.Weights{
		Syntax:           cfg.Refine.SyntaxPenalty,
		PerMissingColumn: cfg.Refine.ColumnPenalty,
		MissingColumnCap: cfg.Refine.ColumnPenaltyCap,
		PerBadTable:      cfg.Refine.TablePenalty,
		BadTableCap:      cfg.Refine.TablePenaltyCap,
	})

	result := validator.Validate(ctx, args[0], validateQuestion)

	cmd.Printf("Confidence: %d/100\n", result.Confidence)
	cmd.Printf("Feedback: %s\n", result.Feedback)

	return nil
}
