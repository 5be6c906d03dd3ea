package repository

import (
	"context"

	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/models"
)

// UserRepository exposes persistence operations for users.
type UserRepository interface {
	auth.GrantStore

	Create(ctx context.Context, user *models.User) error
	// CreateWithDefaultRole assigns the default role and inserts the user in one transaction.
	// It fails with a configuration error, inserting nothing, when no default role exists.
	CreateWithDefaultRole(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
	// GetWithRole loads the user with its Role relation populated (nil when unassigned).
	GetWithRole(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int, error)
	UpdateRole(ctx context.Context, id, roleID string) error
	UpdateLastLogin(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, id, passwordHash string) error
	LinkSubject(ctx context.Context, id, subject string) error
	Disable(ctx context.Context, id string) error
}

// RoleRepository exposes persistence operations for roles and their permission sets.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	GetDefault(ctx context.Context) (*models.Role, error)
	// GetWithPermissions loads the role with its Permissions relation populated.
	GetWithPermissions(ctx context.Context, id string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	// SetPermissions replaces the role's permission set in one transaction.
	SetPermissions(ctx context.Context, roleID string, perms []auth.Permission) error
	SetDefault(ctx context.Context, name string) error
	// EnsureDefault returns the default role, creating a default USER role if none exists.
	EnsureDefault(ctx context.Context) (*models.Role, bool, error)
}

// PermissionRepository exposes the permission catalog.
type PermissionRepository interface {
	Create(ctx context.Context, perm *models.Permission) error
	List(ctx context.Context) ([]models.Permission, error)
}

// LoginSessionRepository exposes persistence operations for login sessions.
type LoginSessionRepository interface {
	Create(ctx context.Context, session *models.LoginSession) error
	GetByID(ctx context.Context, id string) (*models.LoginSession, error)
	Touch(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// AuditLogRepository is append-only: entries are never read back, updated or deleted here.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}
