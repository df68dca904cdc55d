package migration

import (
	"testing"

	"github.com/smallbiznis/paybridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySQLiteSchemaCreatesTables(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, ApplySQLiteSchema(conn))

	for _, table := range []string{
		"gateway_credentials",
		"webhook_events",
		"webhook_endpoints",
		"orders",
		"order_groups",
		"payments",
		"audit_logs",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestActiveCredentialIndexAllowsOnePerEnvironment(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, ApplySQLiteSchema(conn))

	insert := `INSERT INTO gateway_credentials (id, name, client_id, client_secret, environment, is_active) VALUES (?, ?, 'x', 'y', ?, ?)`
	require.NoError(t, conn.Exec(insert, 1, "primary", "sandbox", true).Error)
	require.NoError(t, conn.Exec(insert, 2, "live", "live", true).Error)
	assert.Error(t, conn.Exec(insert, 3, "secondary", "sandbox", true).Error)
	assert.NoError(t, conn.Exec(insert, 4, "backup", "sandbox", false).Error)
}

func TestMigrationsDir(t *testing.T) {
	dir, err := migrationsDir(db.TypeSQLite)
	require.NoError(t, err)
	assert.Equal(t, "sql/sqlite3", dir)

	_, err = migrationsDir("mysql")
	assert.Error(t, err)
}
