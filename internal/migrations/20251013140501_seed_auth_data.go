package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20251013140501, down_20251013140501)
}

// Seeded role names.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

type seedPermission struct {
	name        string
	resource    string
	action      string
	description string
}

var seedPermissions = []seedPermission{
	{"VIEW_USERS", auth.ResourceUsers, auth.ActionRead, "List users and their roles"},
	{"MANAGE_USER_PERMISSIONS", auth.ResourceUsers, auth.ActionManagePermissions, "Change the role assigned to a user"},
	{"VIEW_ROLES", auth.ResourceRoles, auth.ActionRead, "List roles and their permissions"},
	{"MANAGE_ROLE_PERMISSIONS", auth.ResourceRoles, auth.ActionManagePermissions, "Replace the permission set of a role"},
}

// up_20251013140501 seeds the ADMIN and USER roles and the built-in permission catalog
func up_20251013140501(ctx context.Context, db *bun.DB) error {
	now := time.Now().UTC()

	fmt.Print(" [up] seeding permissions...")
	for _, sp := range seedPermissions {
		perm := &models.Permission{
			ID:          bunx.NewUUIDv7(),
			Name:        sp.name,
			Resource:    sp.resource,
			Action:      sp.action,
			Description: sp.description,
		}
		_, err := db.NewInsert().
			Model(perm).
			On("CONFLICT (name) DO NOTHING"). // Idempotent
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", sp.name, err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] seeding default roles...")
	defaultRoles := []models.Role{
		{Name: RoleAdmin, Description: "Full administrative access"},
		{Name: RoleUser, Description: "Registered user without administrative access", IsDefault: true},
	}
	for i := range defaultRoles {
		role := &defaultRoles[i]
		role.ID = bunx.NewUUIDv7()
		role.CreatedAt = now
		role.UpdatedAt = now
		_, err := db.NewInsert().
			Model(role).
			On("CONFLICT (name) DO NOTHING"). // Idempotent
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}
	}
	fmt.Println(" OK")

	fmt.Print(" [up] granting ADMIN permissions...")
	var admin models.Role
	if err := db.NewSelect().Model(&admin).Where("name = ?", RoleAdmin).Scan(ctx); err != nil {
		return fmt.Errorf("failed to load ADMIN role: %w", err)
	}

	var perms []models.Permission
	if err := db.NewSelect().Model(&perms).Scan(ctx); err != nil {
		return fmt.Errorf("failed to load permissions: %w", err)
	}

	for _, perm := range perms {
		link := &models.RolePermission{RoleID: admin.ID, PermissionID: perm.ID}
		_, err := db.NewInsert().
			Model(link).
			On("CONFLICT (role_id, permission_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to grant %s to ADMIN: %w", perm.Name, err)
		}
	}
	fmt.Println(" OK")

	return nil
}

// down_20251013140501 removes seeded roles and permissions
func down_20251013140501(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing seeded roles and permissions...")

	names := make([]string, 0, len(seedPermissions))
	for _, sp := range seedPermissions {
		names = append(names, sp.name)
	}

	if _, err := db.NewDelete().
		Model((*models.Role)(nil)).
		Where("name IN (?)", bun.In([]string{RoleAdmin, RoleUser})).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete seeded roles: %w", err)
	}

	if _, err := db.NewDelete().
		Model((*models.Permission)(nil)).
		Where("name IN (?)", bun.In(names)).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete seeded permissions: %w", err)
	}

	fmt.Println(" OK")
	return nil
}
