package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- header comment
CREATE TABLE a (x Int64);

CREATE TABLE b (
    y String
)
ENGINE = MergeTree();
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int64)", stmts[0])
	assert.Contains(t, stmts[1], "ENGINE = MergeTree()")
}

func TestCheckSplittable(t *testing.T) {
	assert.NoError(t, checkSplittable("SELECT 'it''s'; SELECT 1;"))
	assert.Error(t, checkSplittable("SELECT 'a;b';"))
}

func TestEmbeddedMigrationsAreSplittable(t *testing.T) {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	pgFiles, err := sqlFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_carbon_credits.sql", "002_sync_cursors.sql"}, pgFiles)

	for _, f := range files {
		data, err := ClickhouseFS.ReadFile("clickhouse/" + f)
		require.NoError(t, err)
		assert.NoError(t, checkSplittable(string(data)), f)
		assert.NotEmpty(t, splitStatements(string(data)), f)
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:pw@localhost:9000/exchange")
	require.NoError(t, err)
	assert.Equal(t, "exchange", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
