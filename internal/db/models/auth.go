package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DefaultRoleName is the role name reported for users that hold no role.
const DefaultRoleName = "user"

// User represents a human principal.
// Federated users carry the upstream provider ID in Subject; local users carry a bcrypt PasswordHash.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           string     `bun:"id,pk,type:uuid"`
	Subject      *string    `bun:"subject,unique"` // Optional OIDC subject
	Email        string     `bun:"email,notnull,unique"`
	Name         string     `bun:"name"`
	PasswordHash *string    `bun:"password_hash"`
	RoleID       *string    `bun:"role_id,type:uuid"` // FK to roles(id)
	Role         *Role      `bun:"rel:belongs-to,join:role_id=id"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
	UpdatedAt    time.Time  `bun:"updated_at,notnull"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	DisabledAt   *time.Time `bun:"disabled_at"`
}

// RoleName returns the name of the assigned role, or DefaultRoleName when none is loaded.
func (u *User) RoleName() string {
	if u == nil || u.Role == nil {
		return DefaultRoleName
	}
	return u.Role.Name
}

// Disabled reports whether the user has been soft-disabled.
func (u *User) Disabled() bool {
	return u != nil && u.DisabledAt != nil
}

// Role is a named, flat group of permissions. Exactly one role is the registration default.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID          string        `bun:"id,pk,type:uuid"`
	Name        string        `bun:"name,notnull,unique"`
	Description string        `bun:"description"`
	IsDefault   bool          `bun:"is_default,notnull"`
	Permissions []*Permission `bun:"m2m:role_permissions,join:Role=Permission"`
	CreatedAt   time.Time     `bun:"created_at,notnull"`
	UpdatedAt   time.Time     `bun:"updated_at,notnull"`
}

// Permission is an atomic capability identified by its (resource, action) pair.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID          string `bun:"id,pk,type:uuid"`
	Name        string `bun:"name,notnull,unique"`
	Resource    string `bun:"resource,notnull"`
	Action      string `bun:"action,notnull"`
	Description string `bun:"description"`
}

// RolePermission is the join row between roles and permissions.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	RoleID       string      `bun:"role_id,pk,type:uuid"`
	Role         *Role       `bun:"rel:belongs-to,join:role_id=id"`
	PermissionID string      `bun:"permission_id,pk,type:uuid"`
	Permission   *Permission `bun:"rel:belongs-to,join:permission_id=id"`
}

// LoginSession backs a signed session token. Only the SHA256 hash of the token is stored.
type LoginSession struct {
	bun.BaseModel `bun:"table:login_sessions,alias:ls"`

	ID         string     `bun:"id,pk,type:uuid"`
	UserID     string     `bun:"user_id,notnull,type:uuid"` // FK to users(id)
	TokenHash  string     `bun:"token_hash,notnull,unique"`
	UserAgent  string     `bun:"user_agent"`
	IPAddress  string     `bun:"ip_address"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull"`
	LastUsedAt time.Time  `bun:"last_used_at,notnull"`
	RevokedAt  *time.Time `bun:"revoked_at"`
}

// Active reports whether the session is neither revoked nor expired at now.
func (s *LoginSession) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
