package schema

import (
	"context"

	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
)

// ForeignKey is one declared foreign-key edge reported by introspection.
type ForeignKey struct {
	FromColumn string
	ToTable    string
	ToColumn   string
}

// Introspector enumerates tables and per-table metadata from a live
// database. The storage layer satisfies this interface.
type Introspector interface {
	Tables(ctx context.Context) ([]string, error)
	TableColumns(ctx context.Context, table string) ([]Column, error)
	ForeignKeys(ctx context.Context, table string) ([]ForeignKey, error)
}

// Introspect builds a registry from a live database connection. Declared
// foreign keys become relationship edges; when none exist, the dialect's
// seeded edges apply.
func Introspect(ctx context.Context, db Introspector, dialect Dialect) (*Registry, error) {
	names, err := db.Tables(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeSchema, "failed to list tables")
	}

	if len(names) == 0 {
		return nil, apperrors.New(apperrors.ErrTypeSchema, "database contains no tables")
	}

	tables := make(map[string][]Column, len(names))

	var edges []Edge

	for _, name := range names {
		cols, err := db.TableColumns(ctx, name)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrTypeSchema,
				"failed to introspect columns of %s", name)
		}

		tables[name] = cols

		fks, err := db.ForeignKeys(ctx, name)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.ErrTypeSchema,
				"failed to introspect foreign keys of %s", name)
		}

		for _, fk := range fks {
			edges = append(edges, Edge{
				Table1:  name,
				Column1: fk.FromColumn,
				Table2:  fk.ToTable,
				Column2: fk.ToColumn,
			})
		}
	}

	return newRegistry(dialect, tables, edges), nil
}
