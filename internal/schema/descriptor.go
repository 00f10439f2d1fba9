package schema

import (
	"encoding/json"
	"os"

	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
)

// descriptorFile is the on-disk shape of a static schema descriptor:
// tables mapped to their column lists plus a flat relationship edge list.
type descriptorFile struct {
	Tables        map[string]descriptorTable `json:"tables"`
	Relationships []descriptorEdge           `json:"relationships"`
}

type descriptorTable struct {
	Columns []descriptorColumn `json:"columns"`
}

type descriptorColumn struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	PrimaryKey  bool   `json:"primary_key,omitempty"`
}

type descriptorEdge struct {
	Table1  string `json:"table1"`
	Column1 string `json:"column1"`
	Table2  string `json:"table2"`
	Column2 string `json:"column2"`
}

// LoadDescriptor builds a registry from a static JSON schema descriptor.
// When the descriptor declares no relationships, the dialect's seeded edges
// apply instead.
func LoadDescriptor(path string, dialect Dialect) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeSchema,
			"failed to read schema descriptor %s", path)
	}

	var desc descriptorFile
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeSchema,
			"failed to parse schema descriptor %s", path)
	}

	if len(desc.Tables) == 0 {
		return nil, apperrors.Newf(apperrors.ErrTypeSchema,
			"schema descriptor %s declares no tables", path)
	}

	tables := make(map[string][]Column, len(desc.Tables))

	for name, table := range desc.Tables {
		cols := make([]Column, 0, len(table.Columns))
		for _, col := range table.Columns {
			cols = append(cols, Column{
				Name:       col.Name,
				Type:       col.Type,
				PrimaryKey: col.PrimaryKey,
			})
		}

		tables[name] = cols
	}

	edges := make([]Edge, 0, len(desc.Relationships))
	for _, rel := range desc.Relationships {
		edges = append(edges, Edge{
			Table1:  rel.Table1,
			Column1: rel.Column1,
			Table2:  rel.Table2,
			Column2: rel.Column2,
		})
	}

	return newRegistry(dialect, tables, edges), nil
}
