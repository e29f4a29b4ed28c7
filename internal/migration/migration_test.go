package migration

import (
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(embeddedMigrations, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(embeddedMigrations, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestApplyOnSQLiteCreatesSchema(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Apply(conn, zap.NewNop()))
	// Second run is a no-op.
	require.NoError(t, Apply(conn, zap.NewNop()))

	for _, table := range []string{"subscriptions", "plan_quotas", "usage_counters", "msisdn_reservations", "domain_events"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("usage_counters", "ux_usage_counters_period"))
}

func TestActivePhoneNumberIsUniqueOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))

	insert := `INSERT INTO subscriptions (id, customer_id, msisdn, status, payment_status, renew_at, created_at, updated_at)
		VALUES (?, 1, '628100', ?, 'ok', '2026-01-01 00:00:00', '2026-01-01 00:00:00', '2026-01-01 00:00:00')`
	require.NoError(t, conn.Exec(insert, 1, "active").Error)
	require.NoError(t, conn.Exec(insert, 2, "cancelled").Error)
	assert.Error(t, conn.Exec(insert, 3, "active").Error)
}
