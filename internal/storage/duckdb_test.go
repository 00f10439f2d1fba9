package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlq2sql/nlq2sql/internal/config"
	apperrors "github.com/nlq2sql/nlq2sql/internal/errors"
)

func testConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		QueryTimeout: "5s",
		MaxRows:      1000,
	}
}

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return NewStoreWithDB(db, testConfig()), mock
}

func TestGuardRowLimit(t *testing.T) {
	store := NewStoreWithDB(nil, testConfig())

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			"unbounded select gets a limit",
			"SELECT primary_title FROM title_basics",
			"SELECT primary_title FROM title_basics LIMIT 1000",
		},
		{
			"existing limit preserved",
			"SELECT primary_title FROM title_basics LIMIT 5",
			"SELECT primary_title FROM title_basics LIMIT 5",
		},
		{
			"pure aggregate untouched",
			"SELECT COUNT(*) FROM title_basics",
			"SELECT COUNT(*) FROM title_basics",
		},
		{
			"grouped aggregate gets a limit",
			"SELECT genres, COUNT(*) FROM title_basics GROUP BY genres",
			"SELECT genres, COUNT(*) FROM title_basics GROUP BY genres LIMIT 1000",
		},
		{
			"trailing semicolon stripped",
			"SELECT primary_title FROM title_basics;",
			"SELECT primary_title FROM title_basics LIMIT 1000",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, store.guardRowLimit(tc.query))
		})
	}
}

func TestExecuteQuery(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery(`SELECT primary_title, start_year FROM title_basics LIMIT 1000`).
		WillReturnRows(sqlmock.NewRows([]string{"primary_title", "start_year"}).
			AddRow([]byte("The Matrix"), 1999).
			AddRow([]byte("Heat"), 1995))

	result, err := store.ExecuteQuery(context.Background(),
		"SELECT primary_title, start_year FROM title_basics")
	require.NoError(t, err)

	assert.Equal(t, []string{"primary_title", "start_year"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "The Matrix", result.Rows[0][0])
	assert.Equal(t, int64(1999), result.Rows[0][1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryError(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err := store.ExecuteQuery(context.Background(), "SELECT 1 FROM nowhere")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDatabase))
}

func TestTables(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("name_basics").
			AddRow("title_basics"))

	tables, err := store.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"name_basics", "title_basics"}, tables)
}

func TestTableColumns(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery(`SELECT unnest\(constraint_column_names\)`).
		WithArgs("title_basics").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("tconst"))

	mock.ExpectQuery("SELECT column_name, data_type FROM information_schema.columns").
		WithArgs("title_basics").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type"}).
			AddRow("tconst", "VARCHAR").
			AddRow("primary_title", "VARCHAR"))

	columns, err := store.TableColumns(context.Background(), "title_basics")
	require.NoError(t, err)

	require.Len(t, columns, 2)
	assert.True(t, columns[0].PrimaryKey)
	assert.False(t, columns[1].PrimaryKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForeignKeys(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectQuery(`FOREIGN KEY`).
		WithArgs("title_ratings").
		WillReturnRows(sqlmock.NewRows([]string{"from", "to_table", "to_column"}).
			AddRow("tconst", "title_basics", "tconst"))

	fks, err := store.ForeignKeys(context.Background(), "title_ratings")
	require.NoError(t, err)

	require.Len(t, fks, 1)
	assert.Equal(t, "title_basics", fks[0].ToTable)
	assert.Equal(t, "tconst", fks[0].FromColumn)
}
