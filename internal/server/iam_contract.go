package server

import (
	"context"

	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/services/iam"
)

// iamHandlerService defines the exact IAM methods used by server handlers.
// The CLI-only operations of iam.Service are not part of it.
type iamHandlerService interface {
	Register(ctx context.Context, in iam.RegisterInput, client audit.ClientInfo) (*iam.UserSummary, error)
	Login(ctx context.Context, in iam.LoginInput, client audit.ClientInfo) (*iam.LoginResult, error)
	FederatedLogin(ctx context.Context, id *auth.FederatedIdentity, client audit.ClientInfo) (*iam.LoginResult, error)
	Logout(ctx context.Context, id auth.Identity, client audit.ClientInfo) error

	ListUsers(ctx context.Context) ([]iam.UserView, error)
	ListRoles(ctx context.Context) ([]iam.RoleView, error)
	ListPermissions(ctx context.Context) ([]iam.PermissionView, error)
	ChangeUserRole(ctx context.Context, actor *auth.Session, targetID, roleID string, client audit.ClientInfo) (*iam.UserView, error)
	ReplaceRolePermissions(ctx context.Context, actor *auth.Session, roleID string, perms []auth.Permission, client audit.ClientInfo) (*iam.RoleView, error)
}

var _ iamHandlerService = (iam.Service)(nil)
