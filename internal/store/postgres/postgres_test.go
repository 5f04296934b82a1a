package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftstore/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))

	got := DSN(ClientConfig{Host: "db", User: "app", Password: "p@ss", Database: "nftstore"})
	assert.Equal(t, "postgres://app:p%40ss@db:5432/nftstore?sslmode=disable", got)

	got = DSN(ClientConfig{Host: "db", Port: 6543, User: "app", Database: "nft", SSLMode: "require"})
	assert.Equal(t, "postgres://app:@db:6543/nft?sslmode=require", got)
}

func TestListQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	query, args := listQuery("SELECT * FROM activity WHERE account = $1", []any{"0xabc"}, domain.ListOpts{
		Since:  &since,
		Limit:  20,
		Offset: 40,
	})
	assert.Equal(t,
		"SELECT * FROM activity WHERE account = $1 AND created_at >= $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4",
		query)
	assert.Equal(t, []any{"0xabc", since, 20, 40}, args)

	query, args = listQuery("SELECT * FROM audit_log WHERE 1=1", nil, domain.ListOpts{})
	assert.Equal(t, "SELECT * FROM audit_log WHERE 1=1 ORDER BY created_at DESC, id DESC", query)
	assert.Empty(t, args)
}

func TestMigrationFiles(t *testing.T) {
	names, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_init.sql", names[0])

	body, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS activity")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS audit_log")
}
