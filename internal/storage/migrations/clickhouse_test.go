package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	sql := `
-- header comment
CREATE TABLE a (x Int64) ENGINE = Memory;

CREATE TABLE b (
    y String
) ENGINE = Memory;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "y String")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s fine';`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'a;b';`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:pw@localhost:9000/metrics")
	require.NoError(t, err)
	assert.Equal(t, "metrics", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedFiles(t *testing.T) {
	pg, err := loadFiles(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, pg, 2)
	assert.Equal(t, "001_snapshots.sql", pg[0].Version)
	assert.Equal(t, "002_derived_metrics.sql", pg[1].Version)

	ch, err := loadFiles(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	for _, f := range ch {
		assert.NoError(t, validateNoSemicolonInStrings(f.SQL))
		assert.Len(t, splitStatements(f.SQL), 1)
	}
}
