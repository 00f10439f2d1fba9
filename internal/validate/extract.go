package validate

import (
	"regexp"
	"strings"
)

// Identifier extraction is regex-based and therefore approximate: it cannot
// fully parse SQL. False positives (a valid alias flagged as unknown) and
// false negatives (a reference inside a subquery missed) are expected.

var (
	columnRefPattern = regexp.MustCompile(
		`(?i)(?:\b(?:select|where|having|and|or|on)\b|\border\s+by\b|\bgroup\s+by\b|,)\s*(?:([a-zA-Z_]\w*)\.)?([a-zA-Z_]\w*)`)
	tableRefPattern = regexp.MustCompile(
		`(?i)\b(?:from|join)\s+([a-zA-Z_][\w.]*)(?:\s+(?:as\s+)?([a-zA-Z_]\w*))?`)
	joinOnPattern = regexp.MustCompile(
		`(?i)\bjoin\s+([a-zA-Z_][\w.]*)(?:\s+(?:as\s+)?([a-zA-Z_]\w*))?\s+on\s+([a-zA-Z_]\w*)\.([a-zA-Z_]\w*)\s*=\s*([a-zA-Z_]\w*)\.([a-zA-Z_]\w*)`)
	cteHeadPattern = regexp.MustCompile(`(?i)\bwith\s+([a-zA-Z_]\w*)\s+as\s*\(`)
	cteNextPattern = regexp.MustCompile(`(?i)\)\s*,\s*([a-zA-Z_]\w*)\s+as\s*\(`)
	selectAlias    = regexp.MustCompile(`(?i)\bas\s+([a-zA-Z_]\w*)`)
)

// sqlKeywords are identifiers that never count as column references.
var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"on": true, "as": true, "by": true, "order": true, "group": true,
	"having": true, "join": true, "inner": true, "left": true, "right": true,
	"outer": true, "full": true, "cross": true, "limit": true, "offset": true,
	"distinct": true, "case": true, "when": true, "then": true, "else": true,
	"end": true, "not": true, "null": true, "is": true, "in": true,
	"like": true, "ilike": true, "between": true, "asc": true, "desc": true,
	"with": true, "union": true, "all": true, "exists": true, "cast": true,
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
	"coalesce": true, "true": true, "false": true, "interval": true,
}

// aggregatePrefixes mark derived column names produced by engines that
// auto-name aggregate projections (count_x, avg_rating).
var aggregatePrefixes = []string{"count_", "sum_", "avg_", "min_", "max_", "total_"}

type tableRef struct {
	Name  string
	Alias string
}

type joinClause struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
}

// references holds everything extracted from one SQL string.
type references struct {
	columns []string
	tables  []tableRef
	aliases map[string]string // alias (lowered) -> table name
	derived map[string]bool   // CTE names and projected aliases (lowered)
	joins   []joinClause
}

func extract(sql string) *references {
	refs := &references{
		aliases: map[string]string{},
		derived: map[string]bool{},
	}

	for _, m := range cteHeadPattern.FindAllStringSubmatch(sql, -1) {
		refs.derived[strings.ToLower(m[1])] = true
	}

	for _, m := range cteNextPattern.FindAllStringSubmatch(sql, -1) {
		refs.derived[strings.ToLower(m[1])] = true
	}

	for _, m := range selectAlias.FindAllStringSubmatch(sql, -1) {
		refs.derived[strings.ToLower(m[1])] = true
	}

	seenTables := map[string]bool{}

	for _, m := range tableRefPattern.FindAllStringSubmatch(sql, -1) {
		name, alias := m[1], m[2]
		if sqlKeywords[strings.ToLower(alias)] {
			alias = ""
		}

		if alias != "" {
			refs.aliases[strings.ToLower(alias)] = name
		}

		if seenTables[strings.ToLower(name)] {
			continue
		}

		seenTables[strings.ToLower(name)] = true
		refs.tables = append(refs.tables, tableRef{Name: name, Alias: alias})
	}

	refs.extractJoins(sql)
	refs.extractColumns(sql, seenTables)

	return refs
}

func (r *references) extractJoins(sql string) {
	for _, m := range joinOnPattern.FindAllStringSubmatch(sql, -1) {
		left := r.resolveQualifier(m[3])
		right := r.resolveQualifier(m[5])
		r.joins = append(r.joins, joinClause{
			LeftTable:   left,
			LeftColumn:  m[4],
			RightTable:  right,
			RightColumn: m[6],
		})
	}
}

func (r *references) extractColumns(sql string, tables map[string]bool) {
	seen := map[string]bool{}
	matches := columnRefPattern.FindAllStringSubmatchIndex(sql, -1)

	for _, idx := range matches {
		name := sql[idx[4]:idx[5]]
		lowered := strings.ToLower(name)

		// A name directly followed by "(" is a function call.
		if idx[5] < len(sql) && sql[idx[5]] == '(' {
			continue
		}

		if sqlKeywords[lowered] || seen[lowered] {
			continue
		}

		// Unqualified identifiers that are actually tables or aliases are
		// not column references.
		if idx[2] < 0 && (tables[lowered] || r.aliases[lowered] != "") {
			continue
		}

		seen[lowered] = true
		r.columns = append(r.columns, name)
	}
}

// resolveQualifier maps a join qualifier (alias or table name) to its table.
func (r *references) resolveQualifier(qualifier string) string {
	if table, ok := r.aliases[strings.ToLower(qualifier)]; ok {
		return table
	}

	return qualifier
}

// isDerived reports whether a name is a CTE or a projected alias, including
// engine-style aggregate names.
func (r *references) isDerived(name string) bool {
	lowered := strings.ToLower(name)
	if r.derived[lowered] {
		return true
	}

	for _, prefix := range aggregatePrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return true
		}
	}

	return false
}
