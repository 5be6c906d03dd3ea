package iam

import (
	"context"
	"time"

	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
)

// SystemActorID is recorded as the actor for changes made through the operator CLI.
const SystemActorID = "system"

// Service provides all identity and access management operations.
type Service interface {
	// =========================================================================
	// Registration and Login
	// =========================================================================

	// Register creates a local user holding the default role.
	//
	// Returns:
	//   - validation error: missing fields, bad email, short password
	//   - conflict error: email already registered
	//   - configuration error: no default role exists (no user row is written)
	Register(ctx context.Context, in RegisterInput, client audit.ClientInfo) (*UserSummary, error)

	// Login verifies local credentials and opens a login session.
	// Every failure returns the same InvalidCredentials error and is audited as FAILED_LOGIN.
	Login(ctx context.Context, in LoginInput, client audit.ClientInfo) (*LoginResult, error)

	// FederatedLogin maps a verified IdP identity to a user (by subject, then email),
	// provisioning one with the default role when neither matches.
	FederatedLogin(ctx context.Context, id *auth.FederatedIdentity, client audit.ClientInfo) (*LoginResult, error)

	// Logout revokes the login session behind id. Revoking twice is not an error.
	Logout(ctx context.Context, id auth.Identity, client audit.ClientInfo) error

	// =========================================================================
	// Administration (callers are authorized by the enforcement middleware)
	// =========================================================================

	ListUsers(ctx context.Context) ([]UserView, error)
	ListRoles(ctx context.Context) ([]RoleView, error)

	// ListPermissions returns the permission catalog that role permission sets draw from.
	ListPermissions(ctx context.Context) ([]PermissionView, error)

	// ChangeUserRole assigns roleID to targetID and records PERMISSION_CHANGE
	// with the previous and new role names.
	ChangeUserRole(ctx context.Context, actor *auth.Session, targetID, roleID string, client audit.ClientInfo) (*UserView, error)

	// ReplaceRolePermissions replaces the role's permission set and records
	// PERMISSION_CHANGE with the previous and new permission lists.
	ReplaceRolePermissions(ctx context.Context, actor *auth.Session, roleID string, perms []auth.Permission, client audit.ClientInfo) (*RoleView, error)

	// =========================================================================
	// Operator CLI
	// =========================================================================

	// CreateUser creates a local user with the named role (the default role when empty).
	CreateUser(ctx context.Context, in CreateUserInput) (*UserView, error)
	// AssignRole assigns a role by name to the user with the given email.
	AssignRole(ctx context.Context, email, roleName string) (*UserView, error)
	// SetPassword replaces the user's local password, revokes its login sessions
	// and records PASSWORD_CHANGE. Federated users gain local credentials this way.
	SetPassword(ctx context.Context, email, password string) error
	// DisableUser soft-disables the user and revokes all of its login sessions.
	DisableUser(ctx context.Context, email string) error
	// GetRole returns a role and its permissions by name.
	GetRole(ctx context.Context, name string) (*RoleView, error)
	// SetDefaultRole makes the named role the registration default.
	SetDefaultRole(ctx context.Context, name string) error
}

// RegisterInput is the registration request body.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	Name     string `json:"name" validate:"required,max=200"`
}

// LoginInput is the password login request body.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateUserInput is used by the operator CLI.
type CreateUserInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
	RoleName string `json:"role"`
}

// SetPasswordInput is validated like the password half of registration.
type SetPasswordInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,maxbytes=72"`
}

// UserSummary is the registration response payload.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RoleRef identifies a role inside a UserView.
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserView is a user with its assigned role.
type UserView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        *RoleRef   `json:"role"`
	Federated   bool       `json:"federated"`
	Disabled    bool       `json:"disabled"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// RoleView is a role with its permissions.
type RoleView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	IsDefault   bool              `json:"isDefault"`
	Permissions []auth.Permission `json:"permissions"`
}

// PermissionView is one entry of the permission catalog.
type PermissionView struct {
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

// LoginResult is an opened login session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Session   *auth.Session
}
