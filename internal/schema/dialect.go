package schema

import "strings"

// Edge declares a join relationship between two tables. Edges are
// undirected for lookup purposes but recorded as written.
type Edge struct {
	Table1  string
	Column1 string
	Table2  string
	Column2 string
}

// Dialect captures the naming and qualification conventions of one target
// dataset. It supplies alias resolution for column names the dataset's
// documentation uses but its physical schema does not, table qualification,
// and relationship edges for datasets that declare no foreign keys.
type Dialect interface {
	// Name identifies the dialect ("movie", "generic").
	Name() string

	// ResolveAlias maps a column reference to its physical name. The second
	// return is false when no alias is known.
	ResolveAlias(column string) (string, bool)

	// ResolveTable maps a colloquial table reference ("movies") to its
	// physical table name. The second return is false when no mapping is
	// known.
	ResolveTable(table string) (string, bool)

	// QualifyTable returns the form of a table name suitable for generated SQL.
	QualifyTable(table string) string

	// RelationshipEdges returns join edges to seed into a registry when the
	// schema source declares none.
	RelationshipEdges() []Edge
}

// MovieDialect implements the conventions of the IMDB-derived movie dataset:
// snake_case physical columns frequently referenced by their camelCase
// documentation names, and join paths through tconst/nconst identifiers that
// the dataset never declares as foreign keys.
type MovieDialect struct{}

// movieAliases maps the camelCase spellings seen in generated SQL to the
// snake_case columns the dataset actually has.
var movieAliases = map[string]string{
	"primaryname":       "primary_name",
	"titletype":         "title_type",
	"birthyear":         "birth_year",
	"deathyear":         "death_year",
	"primarytitle":      "primary_title",
	"originaltitle":     "original_title",
	"isadult":           "is_adult",
	"startyear":         "start_year",
	"endyear":           "end_year",
	"runtimeminutes":    "runtime_minutes",
	"primaryprofession": "primary_profession",
	"knownfortitles":    "known_for_titles",
	"averagerating":     "average_rating",
	"numvotes":          "num_votes",
}

// movieTables maps the colloquial table names questions and generated SQL
// reach for to the physical tables.
var movieTables = map[string]string{
	"movies":     "title_basics",
	"movie":      "title_basics",
	"films":      "title_basics",
	"film":       "title_basics",
	"titles":     "title_basics",
	"ratings":    "title_ratings",
	"people":     "name_basics",
	"names":      "name_basics",
	"actors":     "name_basics",
	"directors":  "name_basics",
	"episodes":   "title_episode",
	"crew":       "title_crew",
	"principals": "title_principals",
	"akas":       "title_akas",
}

var movieEdges = []Edge{
	{Table1: "title_ratings", Column1: "tconst", Table2: "title_basics", Column2: "tconst"},
	{Table1: "title_crew", Column1: "tconst", Table2: "title_basics", Column2: "tconst"},
	{Table1: "title_episode", Column1: "tconst", Table2: "title_basics", Column2: "tconst"},
	{Table1: "title_episode", Column1: "parent_tconst", Table2: "title_basics", Column2: "tconst"},
	{Table1: "title_principals", Column1: "tconst", Table2: "title_basics", Column2: "tconst"},
	{Table1: "title_principals", Column1: "nconst", Table2: "name_basics", Column2: "nconst"},
	{Table1: "title_akas", Column1: "title_id", Table2: "title_basics", Column2: "tconst"},
}

func (MovieDialect) Name() string { return "movie" }

func (MovieDialect) ResolveAlias(column string) (string, bool) {
	resolved, ok := movieAliases[strings.ToLower(column)]
	if !ok {
		return "", false
	}

	// The camelCase form and the physical form collapse to the same string
	// for single-word columns; only report a real rename.
	if strings.EqualFold(resolved, column) {
		return "", false
	}

	return resolved, true
}

func (MovieDialect) ResolveTable(table string) (string, bool) {
	resolved, ok := movieTables[strings.ToLower(table)]
	if !ok || strings.EqualFold(resolved, table) {
		return "", false
	}

	return resolved, true
}

func (MovieDialect) QualifyTable(table string) string { return table }

func (MovieDialect) RelationshipEdges() []Edge { return movieEdges }

// GenericDialect applies no dataset-specific conventions.
type GenericDialect struct{}

func (GenericDialect) Name() string { return "generic" }

func (GenericDialect) ResolveAlias(string) (string, bool) { return "", false }

func (GenericDialect) ResolveTable(string) (string, bool) { return "", false }

func (GenericDialect) QualifyTable(table string) string { return table }

func (GenericDialect) RelationshipEdges() []Edge { return nil }

// DialectByName returns the dialect registered under name, defaulting to
// GenericDialect for unrecognized names.
func DialectByName(name string) Dialect {
	switch strings.ToLower(name) {
	case "movie":
		return MovieDialect{}
	default:
		return GenericDialect{}
	}
}
