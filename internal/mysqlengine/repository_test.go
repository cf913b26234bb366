package mysqlengine

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"supersave/entity"
	"supersave/internal/baserepo"
	"supersave/query"
)

type testMySQLContainer struct {
	container *mysql.MySQLContainer
	db        *sql.DB
	schema    string
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("supersave"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "multiStatements=true")
	require.NoError(t, err)

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { _ = db.Close() })

	return &testMySQLContainer{container: container, db: db, schema: "supersave"}
}

func mysqlPlanetDef() entity.Definition {
	return entity.Definition{
		Name: "planets",
		FilterSortFields: map[string]entity.FieldKind{
			"name":     entity.FieldKindString,
			"distance": entity.FieldKindNumber,
		},
	}
}

func noMySQLLookup(string, string) (baserepo.Expander, bool) { return nil, false }

func TestMySQLRepositoryCRUDIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	_, err := tc.db.ExecContext(ctx, "CREATE TABLE `planets` (`id` VARCHAR(32) PRIMARY KEY, `contents` JSON NOT NULL)")
	require.NoError(t, err)

	def := mysqlPlanetDef()
	sync := NewSynchronizer(tc.db, tc.schema, nil)
	require.NoError(t, sync.Sync(ctx, def, "planets"))

	repo := NewRepository(tc.db, def, "planets", noMySQLLookup)

	created, err := repo.Create(ctx, map[string]any{"name": "Earth", "distance": 100})
	require.NoError(t, err)
	require.NotEmpty(t, created["id"])

	fetched, err := repo.GetByID(ctx, created["id"].(string))
	require.NoError(t, err)
	require.Equal(t, "Earth", fetched["name"])

	updated, err := repo.Update(ctx, created["id"].(string), map[string]any{"name": "Earth", "distance": 150})
	require.NoError(t, err)
	require.EqualValues(t, 150, updated["distance"])

	q, err := repo.NewQuery().Eq("name", "Earth").Sort("distance", query.Descending).GetWhere()
	require.NoError(t, err)
	results, err := repo.GetByQuery(ctx, q)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, repo.DeleteUsingID(ctx, created["id"].(string)))
	row, err := repo.GetByID(ctx, created["id"].(string))
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestMySQLSyncMigratesLegacyTextColumnIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	_, err := tc.db.ExecContext(ctx, "CREATE TABLE `planets` (`id` VARCHAR(32) PRIMARY KEY, `contents` TEXT NOT NULL)")
	require.NoError(t, err)
	_, err = tc.db.ExecContext(ctx, `INSERT INTO `+"`planets`"+` (`+"`id`, `contents`"+`) VALUES ('p1', '{"name":"Earth"}')`)
	require.NoError(t, err)

	def := mysqlPlanetDef()
	sync := NewSynchronizer(tc.db, tc.schema, nil)
	require.NoError(t, sync.Sync(ctx, def, "planets"))

	repo := NewRepository(tc.db, def, "planets", noMySQLLookup)
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Earth", all[0]["name"])
}

// TestMySQLSyncDoesNotRecreateMariaDBStyleJSONColumnIntegration builds a
// contents column the way MariaDB physically stores a native JSON
// column -- LONGTEXT with a JSON_VALID check constraint, DATA_TYPE never
// "json" -- and asserts Sync recognises it as already-JSON instead of
// running the legacy-migration path on every call.
func TestMySQLSyncDoesNotRecreateMariaDBStyleJSONColumnIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	_, err := tc.db.ExecContext(ctx,
		"CREATE TABLE `planets` (`id` VARCHAR(32) PRIMARY KEY, `contents` LONGTEXT NOT NULL, CHECK (JSON_VALID(`contents`)))")
	require.NoError(t, err)
	_, err = tc.db.ExecContext(ctx, `INSERT INTO `+"`planets`"+` (`+"`id`, `contents`"+`) VALUES ('p1', '{"name":"Earth"}')`)
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core).Sugar()

	def := mysqlPlanetDef()
	sync := NewSynchronizer(tc.db, tc.schema, log)
	require.NoError(t, sync.Sync(ctx, def, "planets"))

	for _, entry := range logs.All() {
		require.NotContains(t, entry.Message, "legacy contents column detected")
	}

	repo := NewRepository(tc.db, def, "planets", noMySQLLookup)
	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "Earth", all[0]["name"])
}

// TestMySQLSyncRecreatesWhenFieldKindChangesIntegration covers the
// column-type mismatch path: a filterSortField keeps its name but
// changes kind, so the physical generated column's type no longer
// matches columnType(newKind), and reconcileColumns must recreate
// rather than leave the stale column in place.
func TestMySQLSyncRecreatesWhenFieldKindChangesIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	_, err := tc.db.ExecContext(ctx, "CREATE TABLE `planets` (`id` VARCHAR(32) PRIMARY KEY, `contents` JSON NOT NULL)")
	require.NoError(t, err)

	numberDef := entity.Definition{
		Name:             "planets",
		FilterSortFields: map[string]entity.FieldKind{"distance": entity.FieldKindNumber},
	}
	require.NoError(t, NewSynchronizer(tc.db, tc.schema, nil).Sync(ctx, numberDef, "planets"))

	repo := NewRepository(tc.db, numberDef, "planets", noMySQLLookup)
	_, err = repo.Create(ctx, map[string]any{"distance": 100})
	require.NoError(t, err)

	stringDef := entity.Definition{
		Name:             "planets",
		FilterSortFields: map[string]entity.FieldKind{"distance": entity.FieldKindString},
	}
	require.NoError(t, NewSynchronizer(tc.db, tc.schema, nil).Sync(ctx, stringDef, "planets"))

	var colType string
	row := tc.db.QueryRowContext(ctx, `
		SELECT COLUMN_TYPE FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = 'planets' AND COLUMN_NAME = 'distance'`, tc.schema)
	require.NoError(t, row.Scan(&colType))
	require.Equal(t, "varchar(255)", colType)
}
