// Package dbtest provides migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/migrations"
)

// New opens an in-memory SQLite database with every migration applied.
// The database holds the seeded ADMIN and USER roles.
func New(t testing.TB) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	_, err = migrations.Apply(context.Background(), db)
	require.NoError(t, err)
	return db
}

// Role returns the seeded role with the given name.
func Role(t testing.TB, db *bun.DB, name string) *models.Role {
	t.Helper()

	role := new(models.Role)
	require.NoError(t, db.NewSelect().Model(role).Where("name = ?", name).Scan(context.Background()))
	return role
}

// CreateUser inserts a user holding roleName. An empty roleName leaves the user without a role.
func CreateUser(t testing.TB, db *bun.DB, email, roleName string) *models.User {
	t.Helper()

	now := time.Now().UTC()
	user := &models.User{
		ID:        bunx.NewUUIDv7(),
		Email:     email,
		Name:      email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if roleName != "" {
		role := Role(t, db, roleName)
		user.RoleID = &role.ID
	}

	_, err := db.NewInsert().Model(user).Exec(context.Background())
	require.NoError(t, err)
	return user
}

// AuditLogs returns every audit row, oldest first.
func AuditLogs(t testing.TB, db *bun.DB) []models.AuditLog {
	t.Helper()

	var entries []models.AuditLog
	require.NoError(t, db.NewSelect().Model(&entries).Order("timestamp ASC", "id ASC").Scan(context.Background()))
	return entries
}

// ClearDefaultRole unsets the default flag on every role.
func ClearDefaultRole(t testing.TB, db *bun.DB) {
	t.Helper()

	_, err := db.NewUpdate().
		Model((*models.Role)(nil)).
		Set("is_default = ?", false).
		Where("1 = 1").
		Exec(context.Background())
	require.NoError(t, err)
}
