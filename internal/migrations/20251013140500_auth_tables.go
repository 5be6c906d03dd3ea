package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20251013140500, down_20251013140500)
}

// up_20251013140500 creates the users, roles, permissions and login session tables
func up_20251013140500(ctx context.Context, db *bun.DB) error {
	// 1. Create roles table
	fmt.Print(" [up] creating roles table...")
	_, err := db.NewCreateTable().
		Model((*models.Role)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create roles table: %w", err)
	}
	fmt.Println(" OK")

	// 2. Create permissions table
	fmt.Print(" [up] creating permissions table...")
	_, err = db.NewCreateTable().
		Model((*models.Permission)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create permissions table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_permissions_resource_action ON permissions(resource, action)`)
	if err != nil {
		return fmt.Errorf("failed to create permissions resource/action index: %w", err)
	}
	fmt.Println(" OK")

	// 3. Create role_permissions join table
	fmt.Print(" [up] creating role_permissions table...")
	_, err = db.NewCreateTable().
		Model((*models.RolePermission)(nil)).
		IfNotExists().
		ForeignKey(`(role_id) REFERENCES roles(id) ON DELETE CASCADE`).
		ForeignKey(`(permission_id) REFERENCES permissions(id) ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create role_permissions table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_role_permissions_permission ON role_permissions(permission_id)`)
	if err != nil {
		return fmt.Errorf("failed to create role_permissions permission index: %w", err)
	}
	fmt.Println(" OK")

	// 4. Create users table
	fmt.Print(" [up] creating users table...")
	_, err = db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		ForeignKey(`(role_id) REFERENCES roles(id) ON DELETE RESTRICT`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id)`)
	if err != nil {
		return fmt.Errorf("failed to create users role index: %w", err)
	}
	fmt.Println(" OK")

	// 5. Create login_sessions table
	fmt.Print(" [up] creating login_sessions table...")
	_, err = db.NewCreateTable().
		Model((*models.LoginSession)(nil)).
		IfNotExists().
		ForeignKey(`(user_id) REFERENCES users(id) ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create login_sessions table: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_login_sessions_user_id ON login_sessions(user_id)`)
	if err != nil {
		return fmt.Errorf("failed to create login_sessions user index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20251013140500 drops auth tables in reverse dependency order
func down_20251013140500(ctx context.Context, db *bun.DB) error {
	tables := []string{
		"login_sessions",
		"users",
		"role_permissions",
		"permissions",
		"roles",
	}

	for _, table := range tables {
		fmt.Printf(" [down] dropping %s table...", table)
		if _, err := db.ExecContext(ctx, dropTableSQL(db, table)); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}

	return nil
}
