package storage

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"strings"
	"time"

	// DuckDB driver registered as "duckdb".
	_ "github.com/marcboeker/go-duckdb"

	"github.com/nlq2sql/nlq2sql/internal/config"
	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
	"github.com/nlq2sql/nlq2sql/internal/logging"
	"github.com/nlq2sql/nlq2sql/internal/schema"
)

// ResultSet holds the rows returned by one query execution.
type ResultSet struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// Store wraps a pooled DuckDB connection for query execution and schema
// introspection.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	maxRows      int
}

// NewStore opens the DuckDB database at the configured path.
func NewStore(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase,
			"failed to open database at %s", cfg.Path)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if lifetime, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
		db.SetConnMaxLifetime(lifetime)
	}

	return NewStoreWithDB(db, cfg), nil
}

// NewStoreWithDB wraps an existing connection. The caller keeps ownership
// of pool settings.
func NewStoreWithDB(db *sql.DB, cfg config.DatabaseConfig) *Store {
	timeout, err := time.ParseDuration(cfg.QueryTimeout)
	if err != nil {
		timeout = 30 * time.Second
	}

	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 1000
	}

	return &Store{db: db, queryTimeout: timeout, maxRows: maxRows}
}

// DB exposes the underlying connection for EXPLAIN dry-runs.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

var (
	limitClausePattern  = regexp.MustCompile(`(?i)\blimit\s+\d+`)
	aggregateCallRegexp = regexp.MustCompile(`(?i)\b(?:count|sum|avg|min|max)\s*\(`)
	groupByRegexp       = regexp.MustCompile(`(?i)\bgroup\s+by\b`)
)

// guardRowLimit appends a LIMIT for unbounded queries. Pure aggregates
// without GROUP BY produce a single row and are left alone.
func (s *Store) guardRowLimit(query string) string {
	if limitClausePattern.MatchString(query) {
		return query
	}

	if aggregateCallRegexp.MatchString(query) && !groupByRegexp.MatchString(query) {
		return query
	}

	return strings.TrimRight(strings.TrimSpace(query), ";") +
		" LIMIT " + strconv.Itoa(s.maxRows)
}

// ExecuteQuery runs a SELECT with the configured timeout and row-limit
// guard, returning all columns and rows.
func (s *Store) ExecuteQuery(ctx context.Context, query string) (*ResultSet, error) {
	guarded := s.guardRowLimit(query)

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	start := time.Now()

	rows, err := s.db.QueryContext(ctx, guarded)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrTypeTimeout, "query timed out")
		}

		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to execute query")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to get columns")
	}

	result := &ResultSet{Columns: columns}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))

		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan row")
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}

		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "row iteration failed")
	}

	logging.WithFields(map[string]interface{}{
		"rows":     len(result.Rows),
		"duration": time.Since(start).String(),
	}).Debugf("query executed")

	return result, nil
}

// Tables lists the user tables in the main schema.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'main' ORDER BY table_name`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to list tables")
	}
	defer rows.Close()

	var tables []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan table name")
		}

		tables = append(tables, name)
	}

	return tables, rows.Err()
}

// TableColumns returns the ordered column list of a table, with primary-key
// columns marked from the declared constraints.
func (s *Store) TableColumns(ctx context.Context, table string) ([]schema.Column, error) {
	pk, err := s.primaryKeyColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_name = ? ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase,
			"failed to list columns of %s", table)
	}
	defer rows.Close()

	var columns []schema.Column

	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan column")
		}

		columns = append(columns, schema.Column{
			Name:       name,
			Type:       dataType,
			PrimaryKey: pk[strings.ToLower(name)],
		})
	}

	return columns, rows.Err()
}

func (s *Store) primaryKeyColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unnest(constraint_column_names) FROM duckdb_constraints()
		 WHERE lower(table_name) = lower(?) AND constraint_type = 'PRIMARY KEY'`, table)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase,
			"failed to read primary key of %s", table)
	}
	defer rows.Close()

	pk := map[string]bool{}

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan constraint")
		}

		pk[strings.ToLower(name)] = true
	}

	return pk, rows.Err()
}

// ForeignKeys returns the declared single-column foreign keys of a table.
func (s *Store) ForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT constraint_column_names[1], referenced_table, referenced_column_names[1]
		 FROM duckdb_constraints()
		 WHERE lower(table_name) = lower(?) AND constraint_type = 'FOREIGN KEY'`, table)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrTypeDatabase,
			"failed to read foreign keys of %s", table)
	}
	defer rows.Close()

	var fks []schema.ForeignKey

	for rows.Next() {
		var from, toTable, toColumn string
		if err := rows.Scan(&from, &toTable, &toColumn); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrTypeDatabase, "failed to scan foreign key")
		}

		fks = append(fks, schema.ForeignKey{
			FromColumn: from,
			ToTable:    toTable,
			ToColumn:   toColumn,
		})
	}

	return fks, rows.Err()
}
