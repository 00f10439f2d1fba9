package cmd

import (
	"database/sql"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
	"github.com/nlq2sql/nlq2sql/internal/format"
	"github.com/nlq2sql/nlq2sql/internal/llm"
	"github.com/nlq2sql/nlq2sql/internal/logging"
	"github.com/nlq2sql/nlq2sql/internal/refine"
	"github.com/nlq2sql/nlq2sql/internal/validate"
)

var (
	askVerbose bool
	askNoExec  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a natural-language question against the movie database",
	Long: `Convert a question into SQL through the validation/refinement loop, then
execute the winning query and print the results.

Examples:
  nlq2sql ask "What are the top 10 highest-rated movies?"
  nlq2sql ask --verbose "How many movies were released in 1994?"
  nlq2sql ask --no-exec "Which directors have the most films?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askVerbose, "verbose", false, "Show the full refinement trajectory")
	askCmd.Flags().BoolVar(&askNoExec, "no-exec", false, "Print the generated SQL without executing it")

	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		logging.Warnf("proceeding without a database: %v", err)
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

	manager, err := llm.NewManagerFromConfig(cfg.LLM)
	if err != nil {
		return err
	}

	loop := refine.NewLoop(manager, validator, registry.Context(), refine.Options{
		Threshold:     cfg.Refine.ConfidenceThreshold,
		MaxIterations: cfg.Refine.MaxIterations,
	})

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	spin.Suffix = " generating SQL..."
	spin.Start()

	outcome, err := loop.Run(ctx, question)
	spin.Stop()

	if err != nil {
		if apperrors.IsType(err, apperrors.ErrTypeInput) {
			// The rejection message is the user-facing answer.
			cmd.Println(apperrors.GetMessage(err))
			return nil
		}

		return err
	}

	format.Outcome(cmd.OutOrStdout(), outcome, askVerbose)

	if askNoExec || store == nil {
		return nil
	}

	result, err := store.ExecuteQuery(ctx, outcome.SQL)
	if err != nil {
		return err
	}

	format.ResultTable(cmd.OutOrStdout(), result)

	return nil
}
