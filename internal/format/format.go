package format

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nlq2sql/nlq2sql/internal/refine"
	"github.com/nlq2sql/nlq2sql/internal/schema"
	"github.com/nlq2sql/nlq2sql/internal/storage"
)

// ResultTable renders a result set as a terminal table.
func ResultTable(w io.Writer, rs *storage.ResultSet) {
	if len(rs.Rows) == 0 {
		fmt.Fprintln(w, "No rows returned.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(rs.Columns))
	for i, c := range rs.Columns {
		header[i] = c
	}

	t.AppendHeader(header)

	for _, row := range rs.Rows {
		t.AppendRow(table.Row(row))
	}

	t.Render()
	fmt.Fprintf(w, "%d row(s)\n", len(rs.Rows))
}

// Outcome prints the refinement result: the final SQL with its confidence
// and feedback, plus the full trajectory when verbose.
func Outcome(w io.Writer, out *refine.Outcome, verbose bool) {
	fmt.Fprintf(w, "SQL: %s\n", out.SQL)
	fmt.Fprintf(w, "Confidence: %d/100\n", out.Confidence)
	fmt.Fprintf(w, "Feedback: %s\n", out.Feedback)

	if !out.Accepted {
		fmt.Fprintln(w, "Note: confidence threshold not reached; showing the best attempt.")
	}

	if verbose && len(out.Trajectory) > 0 {
		Trajectory(w, out.Trajectory)
	}
}

// Trajectory renders the attempt history of one refinement run.
func Trajectory(w io.Writer, attempts []refine.Attempt) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Confidence", "SQL", "Feedback"})

	for _, a := range attempts {
		t.AppendRow(table.Row{a.Iteration, a.Confidence, a.SQL, a.Feedback})
	}

	t.Render()
}

// SchemaTable renders one table's columns for the schema command.
func SchemaTable(w io.Writer, name string, columns []schema.Column) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(name)
	t.AppendHeader(table.Row{"Column", "Type", "PK"})

	for _, c := range columns {
		pk := ""
		if c.PrimaryKey {
			pk = "yes"
		}

		t.AppendRow(table.Row{c.Name, c.Type, pk})
	}

	t.Render()
}
