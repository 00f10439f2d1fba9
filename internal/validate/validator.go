package validate

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/nlq2sql/nlq2sql/internal/logging"
	"github.com/nlq2sql/nlq2sql/internal/schema"
)

// Result is the outcome of validating one SQL candidate.
type Result struct {
	Confidence  int    `json:"confidence"`
	Feedback    string `json:"feedback"`
	IssuesFound bool   `json:"issues_found"`
}

const feedbackAllGood = "Query looks good"

// Weights are the penalty magnitudes applied per issue class. They are
// tunable configuration: more issues mean a lower score, bounded at 0/100,
// but the exact values carry no contract.
type Weights struct {
	Syntax           int
	PerMissingColumn int
	MissingColumnCap int
	PerBadTable      int
	BadTableCap      int
}

// DefaultWeights returns the stock penalty configuration.
func DefaultWeights() Weights {
	return Weights{
		Syntax:           40,
		PerMissingColumn: 10,
		MissingColumnCap: 30,
		PerBadTable:      15,
		BadTableCap:      45,
	}
}

// Validator checks SQL candidates against the schema registry and basic
// syntax rules, producing a confidence score and feedback.
type Validator struct {
	registry *schema.Registry
	db       *sql.DB
	weights  Weights
}

// New creates a validator. db is optional; when nil the syntax check falls
// back to static structural rules instead of an engine dry-run.
func New(registry *schema.Registry, db *sql.DB, weights Weights) *Validator {
	return &Validator{registry: registry, db: db, weights: weights}
}

// Validate runs the check battery on sql and combines penalties into a
// confidence score. The question is only used for advisory intent notes.
// Validating the same inputs twice against an unchanged registry yields the
// same result.
func (v *Validator) Validate(ctx context.Context, sqlText, question string) Result {
	var issues []string

	penalty := 0

	if msg := v.checkSyntax(ctx, sqlText); msg != "" {
		issues = append(issues, msg)
		penalty += v.weights.Syntax
	}

	refs := extract(sqlText)

	tableIssue, tablePenalty := v.checkTables(refs)
	if tableIssue != "" {
		issues = append(issues, tableIssue)
		penalty += tablePenalty
	}

	columnIssue, columnPenalty := v.checkColumns(refs)
	if columnIssue != "" {
		issues = append(issues, columnIssue)
		penalty += columnPenalty
	}

	issues = append(issues, v.checkJoins(refs)...)
	issues = append(issues, intentNotes(question, sqlText)...)

	confidence := clamp(100 - penalty)

	feedback := feedbackAllGood
	if len(issues) > 0 {
		feedback = strings.Join(issues, "; ")
	}

	logging.WithFields(map[string]interface{}{
		"confidence": confidence,
		"issues":     len(issues),
	}).Debugf("validated candidate SQL")

	return Result{
		Confidence:  confidence,
		Feedback:    feedback,
		IssuesFound: confidence < 100,
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}

	if score > 100 {
		return 100
	}

	return score
}

var (
	tableErrPattern  = regexp.MustCompile(`(?i)table .*(?:does not exist|not found)|(?:catalog|binder) error.*table`)
	columnErrPattern = regexp.MustCompile(`(?i)column .*(?:does not exist|not found)|(?:binder) error.*column`)
)

// checkSyntax dry-runs the SQL through the engine when a connection is
// available, otherwise applies static structural checks. Returns an empty
// string when the SQL passes.
func (v *Validator) checkSyntax(ctx context.Context, sqlText string) string {
	if v.db != nil {
		rows, err := v.db.QueryContext(ctx, "EXPLAIN "+sqlText)
		if err == nil {
			_ = rows.Close()
			return ""
		}

		return classifyEngineError(err.Error())
	}

	return staticSyntaxCheck(sqlText)
}

func classifyEngineError(msg string) string {
	switch {
	case tableErrPattern.MatchString(msg):
		return fmt.Sprintf("SQL syntax error: %s. Check the table name and qualify it if needed", firstLine(msg))
	case columnErrPattern.MatchString(msg):
		return fmt.Sprintf("SQL syntax error: %s. Check the column name against the schema", firstLine(msg))
	default:
		return "SQL syntax error: " + firstLine(msg)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}

func staticSyntaxCheck(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	upper := strings.ToUpper(trimmed)

	switch {
	case trimmed == "":
		return "SQL syntax error: empty query"
	case !strings.Contains(upper, "SELECT"):
		return "SQL syntax error: missing SELECT clause"
	case !strings.Contains(upper, "FROM"):
		return "SQL syntax error: missing FROM clause"
	case strings.Count(trimmed, "(") != strings.Count(trimmed, ")"):
		return "SQL syntax error: mismatched parentheses"
	case strings.Contains(trimmed, ",,") || regexp.MustCompile(`(?i)select\s*,`).MatchString(trimmed):
		return "SQL syntax error: misplaced comma in select list"
	case regexp.MustCompile(`(?i)where\s+(?:and|or)\b`).MatchString(trimmed):
		return "SQL syntax error: WHERE clause starts with AND/OR"
	case regexp.MustCompile(`(?i),\s*from\b`).MatchString(trimmed):
		return "SQL syntax error: trailing comma before FROM"
	default:
		return ""
	}
}

func (v *Validator) checkTables(refs *references) (string, int) {
	if !v.registry.Loaded() {
		// Fail closed, but as one detectable condition rather than flagging
		// every reference as missing.
		return "Schema registry not loaded: table and column references cannot be verified",
			v.weights.PerBadTable
	}

	dialect := v.registry.Dialect()

	var bad []string

	for _, t := range refs.tables {
		if v.registry.HasTable(t.Name) || refs.isDerived(t.Name) {
			continue
		}

		if resolved, ok := dialect.ResolveTable(t.Name); ok && v.registry.HasTable(resolved) {
			bad = append(bad, fmt.Sprintf("%s (should be %s)", t.Name, resolved))
			continue
		}

		bad = append(bad, t.Name)
	}

	if len(bad) == 0 {
		return "", 0
	}

	penalty := len(bad) * v.weights.PerBadTable
	if penalty > v.weights.BadTableCap {
		penalty = v.weights.BadTableCap
	}

	return "Tables not found in schema: " + strings.Join(bad, ", "), penalty
}

func (v *Validator) checkColumns(refs *references) (string, int) {
	if !v.registry.Loaded() {
		return "", 0
	}

	dialect := v.registry.Dialect()

	var missing []string

	for _, col := range refs.columns {
		if v.registry.HasAnyColumn(col) || refs.isDerived(col) {
			continue
		}

		if resolved, ok := dialect.ResolveAlias(col); ok && v.registry.HasAnyColumn(resolved) {
			missing = append(missing, fmt.Sprintf("%s (should be %s)", col, resolved))
			continue
		}

		missing = append(missing, col)
	}

	if len(missing) == 0 {
		return "", 0
	}

	penalty := len(missing) * v.weights.PerMissingColumn
	if penalty > v.weights.MissingColumnCap {
		penalty = v.weights.MissingColumnCap
	}

	return "Columns not found in schema: " + strings.Join(missing, ", "), penalty
}

// checkJoins verifies JOIN ... ON clauses against known relationship edges.
// Joins outside the declared set are a softer signal than missing columns
// or tables, so they surface as warnings without a score penalty.
func (v *Validator) checkJoins(refs *references) []string {
	if !v.registry.Loaded() {
		return nil
	}

	var warnings []string

	for _, j := range refs.joins {
		if refs.isDerived(j.LeftTable) || refs.isDerived(j.RightTable) {
			continue
		}

		if !v.registry.HasTable(j.LeftTable) || !v.registry.HasTable(j.RightTable) {
			continue
		}

		if v.registry.HasRelationship(j.LeftTable, j.LeftColumn, j.RightTable, j.RightColumn) {
			continue
		}

		warnings = append(warnings, fmt.Sprintf(
			"Join may be incorrect: %s.%s = %s.%s does not match a known relationship",
			j.LeftTable, j.LeftColumn, j.RightTable, j.RightColumn))
	}

	return warnings
}
