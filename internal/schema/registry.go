package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Column describes one column of a table.
type Column struct {
	Name       string
	Type       string
	PrimaryKey bool
}

// Relationship describes a declared or seeded join edge from the perspective
// of one table: FromColumn on the owning table joins ToColumn on Table.
type Relationship struct {
	Table      string
	FromColumn string
	ToColumn   string
}

type tableEntry struct {
	name    string // verbatim casing for messages
	columns []Column
}

// Registry is a read-only index of table, column, and relationship metadata.
// Lookups are case-insensitive; names are preserved verbatim for messages.
// A Registry is immutable after construction and safe for concurrent reads.
type Registry struct {
	tables        map[string]tableEntry
	relationships map[string][]Relationship
	order         []string
	dialect       Dialect
	loaded        bool
}

// NewEmpty returns a registry with no schema. All existence checks fail
// closed and Loaded reports false so callers can tell "schema unknown"
// apart from "checked and missing".
func NewEmpty(dialect Dialect) *Registry {
	return &Registry{
		tables:        map[string]tableEntry{},
		relationships: map[string][]Relationship{},
		dialect:       dialect,
	}
}

func newRegistry(dialect Dialect, tables map[string][]Column, edges []Edge) *Registry {
	reg := &Registry{
		tables:        make(map[string]tableEntry, len(tables)),
		relationships: map[string][]Relationship{},
		dialect:       dialect,
		loaded:        true,
	}

	for name, cols := range tables {
		reg.tables[strings.ToLower(name)] = tableEntry{name: name, columns: cols}
		reg.order = append(reg.order, name)
	}

	sort.Strings(reg.order)

	seen := map[string]bool{}
	addEdge := func(e Edge) {
		key := strings.ToLower(e.Table1 + "." + e.Column1 + "=" + e.Table2 + "." + e.Column2)
		if seen[key] {
			return
		}

		seen[key] = true
		reg.relationships[strings.ToLower(e.Table1)] = append(reg.relationships[strings.ToLower(e.Table1)],
			Relationship{Table: e.Table2, FromColumn: e.Column1, ToColumn: e.Column2})
		reg.relationships[strings.ToLower(e.Table2)] = append(reg.relationships[strings.ToLower(e.Table2)],
			Relationship{Table: e.Table1, FromColumn: e.Column2, ToColumn: e.Column1})
	}

	for _, e := range edges {
		addEdge(e)
	}

	if len(edges) == 0 && dialect != nil {
		for _, e := range dialect.RelationshipEdges() {
			addEdge(e)
		}
	}

	return reg
}

// Loaded reports whether the registry was populated from a schema source.
func (r *Registry) Loaded() bool { return r.loaded }

// Dialect returns the dialect the registry was constructed with.
func (r *Registry) Dialect() Dialect { return r.dialect }

// Tables returns the verbatim table names in sorted order.
func (r *Registry) Tables() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)

	return out
}

// HasTable reports whether a table exists, case-insensitively.
func (r *Registry) HasTable(name string) bool {
	_, ok := r.tables[strings.ToLower(name)]
	return ok
}

// Columns returns the ordered column list for a table. The second return is
// false when the table is unknown.
func (r *Registry) Columns(table string) ([]Column, bool) {
	entry, ok := r.tables[strings.ToLower(table)]
	if !ok {
		return nil, false
	}

	cols := make([]Column, len(entry.columns))
	copy(cols, entry.columns)

	return cols, true
}

// HasColumn reports whether a table has a column, case-insensitively.
func (r *Registry) HasColumn(table, column string) bool {
	entry, ok := r.tables[strings.ToLower(table)]
	if !ok {
		return false
	}

	for _, col := range entry.columns {
		if strings.EqualFold(col.Name, column) {
			return true
		}
	}

	return false
}

// HasAnyColumn reports whether any table in the registry has the column.
func (r *Registry) HasAnyColumn(column string) bool {
	for _, entry := range r.tables {
		for _, col := range entry.columns {
			if strings.EqualFold(col.Name, column) {
				return true
			}
		}
	}

	return false
}

// Relationships returns the join edges declared for a table.
func (r *Registry) Relationships(table string) []Relationship {
	rels := r.relationships[strings.ToLower(table)]
	out := make([]Relationship, len(rels))
	copy(out, rels)

	return out
}

// HasRelationship reports whether (table1.col1 = table2.col2) or its
// symmetric form matches a known join edge.
func (r *Registry) HasRelationship(table1, col1, table2, col2 string) bool {
	for _, rel := range r.relationships[strings.ToLower(table1)] {
		if strings.EqualFold(rel.Table, table2) &&
			strings.EqualFold(rel.FromColumn, col1) &&
			strings.EqualFold(rel.ToColumn, col2) {
			return true
		}
	}

	return false
}

// Context renders the registry as schema text suitable for embedding in a
// generation prompt: one block per table with its columns and join edges.
func (r *Registry) Context() string {
	if !r.loaded {
		return "(schema unavailable)"
	}

	var b strings.Builder

	for _, name := range r.order {
		entry := r.tables[strings.ToLower(name)]
		fmt.Fprintf(&b, "Table %s:\n", entry.name)

		for _, col := range entry.columns {
			marker := ""
			if col.PrimaryKey {
				marker = " (primary key)"
			}

			fmt.Fprintf(&b, "  %s %s%s\n", col.Name, col.Type, marker)
		}

		for _, rel := range r.relationships[strings.ToLower(name)] {
			fmt.Fprintf(&b, "  joins %s on %s.%s = %s.%s\n",
				rel.Table, entry.name, rel.FromColumn, rel.Table, rel.ToColumn)
		}
	}

	return b.String()
}
