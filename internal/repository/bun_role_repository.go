package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/db/models"
)

// FallbackDefaultRoleName is the role created by EnsureDefault when no default role exists.
const FallbackDefaultRoleName = "USER"

// BunRoleRepository implements RoleRepository using Bun ORM
type BunRoleRepository struct {
	db *bun.DB
}

// NewBunRoleRepository creates a new Bun-based role repository
func NewBunRoleRepository(db *bun.DB) *BunRoleRepository {
	return &BunRoleRepository{db: db}
}

// Create inserts a new role
func (r *BunRoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now

	_, err := r.db.NewInsert().
		Model(role).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// GetByID retrieves a role by ID
func (r *BunRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role := new(models.Role)
	err := r.db.NewSelect().
		Model(role).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("role")
		}
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// GetByName retrieves a role by name
func (r *BunRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role := new(models.Role)
	err := r.db.NewSelect().
		Model(role).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("role")
		}
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	return role, nil
}

// GetDefault retrieves the role assigned to newly registered users
func (r *BunRoleRepository) GetDefault(ctx context.Context) (*models.Role, error) {
	role := new(models.Role)
	err := r.db.NewSelect().
		Model(role).
		Where("is_default = ?", true).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("default role")
		}
		return nil, fmt.Errorf("get default role: %w", err)
	}
	return role, nil
}

// GetWithPermissions retrieves a role and its permission set
func (r *BunRoleRepository) GetWithPermissions(ctx context.Context, id string) (*models.Role, error) {
	role := new(models.Role)
	err := r.db.NewSelect().
		Model(role).
		Relation("Permissions", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("p.resource ASC", "p.action ASC")
		}).
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("role")
		}
		return nil, fmt.Errorf("get role with permissions: %w", err)
	}
	return role, nil
}

// List retrieves all roles with their permissions, ordered by name
func (r *BunRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.NewSelect().
		Model(&roles).
		Relation("Permissions", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("p.resource ASC", "p.action ASC")
		}).
		Order("r.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// SetPermissions replaces the role's permission set. Every pair must exist in the catalog.
func (r *BunRoleRepository) SetPermissions(ctx context.Context, roleID string, perms []auth.Permission) error {
	wanted := auth.NewPermissionSet(perms...)

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Role)(nil)).Where("id = ?", roleID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check role: %w", err)
		}
		if !exists {
			return apperr.NotFound("role")
		}

		var catalog []models.Permission
		if err := tx.NewSelect().Model(&catalog).Scan(ctx); err != nil {
			return fmt.Errorf("load permission catalog: %w", err)
		}

		ids := make([]string, 0, len(wanted))
		found := make(auth.PermissionSet, len(wanted))
		for _, p := range catalog {
			pair := auth.Permission{Resource: p.Resource, Action: p.Action}
			if wanted.Contains(pair.Resource, pair.Action) {
				ids = append(ids, p.ID)
				found[pair] = struct{}{}
			}
		}
		if len(found) != len(wanted) {
			var missing []string
			for _, p := range wanted.Sorted() {
				if !found.Contains(p.Resource, p.Action) {
					missing = append(missing, p.Resource+":"+p.Action)
				}
			}
			return apperr.Invalid("permissions", "unknown permissions: "+strings.Join(missing, ", "))
		}

		if _, err := tx.NewDelete().
			Model((*models.RolePermission)(nil)).
			Where("role_id = ?", roleID).
			Exec(ctx); err != nil {
			return fmt.Errorf("clear role permissions: %w", err)
		}

		if len(ids) > 0 {
			links := make([]models.RolePermission, 0, len(ids))
			for _, id := range ids {
				links = append(links, models.RolePermission{RoleID: roleID, PermissionID: id})
			}
			if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
				return fmt.Errorf("insert role permissions: %w", err)
			}
		}

		if _, err := tx.NewUpdate().
			Model((*models.Role)(nil)).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", roleID).
			Exec(ctx); err != nil {
			return fmt.Errorf("touch role: %w", err)
		}
		return nil
	})
}

// SetDefault marks the named role as the single default role
func (r *BunRoleRepository) SetDefault(ctx context.Context, name string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.Role)(nil)).Where("name = ?", name).Exists(ctx)
		if err != nil {
			return fmt.Errorf("check role: %w", err)
		}
		if !exists {
			return apperr.NotFound("role")
		}

		if _, err := tx.NewUpdate().
			Model((*models.Role)(nil)).
			Set("is_default = ?", false).
			Where("is_default = ?", true).
			Exec(ctx); err != nil {
			return fmt.Errorf("clear default role: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*models.Role)(nil)).
			Set("is_default = ?", true).
			Set("updated_at = ?", time.Now().UTC()).
			Where("name = ?", name).
			Exec(ctx); err != nil {
			return fmt.Errorf("set default role: %w", err)
		}
		return nil
	})
}

// EnsureDefault returns the default role, creating or promoting a USER role when none exists.
// The boolean reports whether anything was written.
func (r *BunRoleRepository) EnsureDefault(ctx context.Context) (*models.Role, bool, error) {
	role, err := r.GetDefault(ctx)
	if err == nil {
		return role, false, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, false, err
	}

	if _, err := r.GetByName(ctx, FallbackDefaultRoleName); err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, false, err
		}
		if err := r.Create(ctx, &models.Role{
			Name:        FallbackDefaultRoleName,
			Description: "Registered user without administrative access",
		}); err != nil {
			return nil, false, err
		}
	}

	if err := r.SetDefault(ctx, FallbackDefaultRoleName); err != nil {
		return nil, false, err
	}
	role, err = r.GetDefault(ctx)
	if err != nil {
		return nil, false, err
	}
	return role, true, nil
}
