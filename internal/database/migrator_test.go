package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pricechek-rider/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openMemory(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", Name: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestMigrate_EmbeddedSQLite(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db, testLogger()))
	// second run is a no-op
	require.NoError(t, Migrate(ctx, db, testLogger()))

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('customers', 'orders', 'schema_migrations') ORDER BY name`))
	assert.Equal(t, []string{"customers", "orders", "schema_migrations"}, tables)

	var applied int
	require.NoError(t, db.GetContext(ctx, &applied, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, applied)
}

func TestMigrator_AppliesInOrderAndSkipsOthers(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"0002_add.up.sql":      {Data: []byte(`INSERT INTO things (name) VALUES ('second');`)},
		"0001_create.up.sql":   {Data: []byte(`CREATE TABLE things (name TEXT);`)},
		"0001_create.down.sql": {Data: []byte(`DROP TABLE things;`)},
		"0003_empty.up.sql":    {Data: []byte("  \n")},
		"README.md":            {Data: []byte("ignored")},
	}

	require.NoError(t, NewMigrator(db, testLogger()).Apply(ctx, fsys))

	var names []string
	require.NoError(t, db.SelectContext(ctx, &names, `SELECT name FROM things`))
	assert.Equal(t, []string{"second"}, names)
}

func TestMigrator_FailingMigrationIsNotRecorded(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"0001_broken.up.sql": {Data: []byte(`CREATE TABLE oops (`)},
	}

	err := NewMigrator(db, testLogger()).Apply(ctx, fsys)
	require.Error(t, err)

	var applied int
	require.NoError(t, db.GetContext(ctx, &applied, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Zero(t, applied)
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"b.up.sql":     {Data: []byte("x")},
		"a.up.sql":     {Data: []byte("x")},
		"a.down.sql":   {Data: []byte("x")},
		"sub/c.up.sql": {Data: []byte("x")},
	}

	names, err := ListMigrations(fsys, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.up.sql", "b.up.sql"}, names)
}

func TestMigrations_UnknownDriver(t *testing.T) {
	_, err := Migrations("oracle")
	assert.Error(t, err)

	pg, err := Migrations("postgres")
	require.NoError(t, err)
	names, err := ListMigrations(pg, ".")
	require.NoError(t, err)
	assert.NotEmpty(t, names)
}
