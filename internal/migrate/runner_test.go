package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supersave/entity"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewRunnerRejectsDuplicateNames(t *testing.T) {
	db := openDB(t)
	_, err := NewRunner(db, "sqlite", []Migration{
		{Name: "add-index", Run: func(context.Context) error { return nil }},
		{Name: "add-index", Run: func(context.Context) error { return nil }},
	}, nil)
	require.Error(t, err)
	var cfgErr *entity.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestRunAppliesEachMigrationOnce(t *testing.T) {
	db := openDB(t)
	var runs int
	runner, err := NewRunner(db, "sqlite", []Migration{
		{Name: "seed", Run: func(context.Context) error { runs++; return nil }},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background()))
	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, 1, runs)
}

func TestRunSkipsMigrationsScopedToOtherEngine(t *testing.T) {
	db := openDB(t)
	var ran bool
	runner, err := NewRunner(db, "sqlite", []Migration{
		{Name: "mysql-only", Engine: "mysql", Run: func(context.Context) error { ran = true; return nil }},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, runner.Run(context.Background()))
	assert.False(t, ran)
}

func TestRunDoesNotRecordFailedMigration(t *testing.T) {
	db := openDB(t)
	attempts := 0
	runner, err := NewRunner(db, "sqlite", []Migration{
		{Name: "flaky", Run: func(context.Context) error {
			attempts++
			if attempts == 1 {
				return assert.AnError
			}
			return nil
		}},
	}, nil)
	require.NoError(t, err)

	require.Error(t, runner.Run(context.Background()))
	require.NoError(t, runner.Run(context.Background()))
	assert.Equal(t, 2, attempts)
}
