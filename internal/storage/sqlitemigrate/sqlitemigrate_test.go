package sqlitemigrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTempDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExtractUp(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	assert.Equal(t, "\nCREATE TABLE a (id INTEGER);\n", ExtractUp(content))

	assert.Equal(t, "CREATE TABLE b (id INTEGER);", ExtractUp("CREATE TABLE b (id INTEGER);"))
	assert.Equal(t, "\nCREATE TABLE c (id INTEGER);", ExtractUp("-- +migrate Up\nCREATE TABLE c (id INTEGER);"))
}

func TestApply_RunsEachFileOnce(t *testing.T) {
	db := openTempDB(t)
	ctx := context.Background()

	migrations := fstest.MapFS{
		"002_second.sql": {Data: []byte("-- +migrate Up\nALTER TABLE things ADD COLUMN label TEXT;\n-- +migrate Down\n")},
		"001_first.sql":  {Data: []byte("-- +migrate Up\nCREATE TABLE things (id INTEGER PRIMARY KEY);\n")},
		"README.md":      {Data: []byte("not a migration")},
	}

	applied, err := Apply(ctx, db, migrations, ".")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	applied, err = Apply(ctx, db, migrations, "")
	require.NoError(t, err)
	assert.Equal(t, 0, applied)

	_, err = db.ExecContext(ctx, "INSERT INTO things (id, label) VALUES (1, 'x')")
	assert.NoError(t, err)
}

func TestApply_FailingMigration(t *testing.T) {
	db := openTempDB(t)

	_, err := Apply(context.Background(), db, fstest.MapFS{
		"001_bad.sql": {Data: []byte("-- +migrate Up\nCREATE TABL nope;\n")},
	}, ".")
	assert.Error(t, err)
}

func TestApply_NilDB(t *testing.T) {
	_, err := Apply(context.Background(), nil, fstest.MapFS{}, ".")
	assert.Error(t, err)
}
