package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/repository"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

// AuditRecorder is satisfied by *audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry)
}

// TokenIssuer is satisfied by *auth.TokenIssuer.
type TokenIssuer interface {
	Issue(userID, sessionID string, issuedAt time.Time) (string, time.Time, error)
}

// SessionResolver is satisfied by *auth.Resolver.
type SessionResolver interface {
	Resolve(ctx context.Context, id auth.Identity) (*auth.Session, error)
}

// iamService implements the Service interface.
type iamService struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	sessions    repository.LoginSessionRepository

	tokens   TokenIssuer
	resolver SessionResolver
	audit    AuditRecorder

	metrics *telemetry.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	verifyPassword func(hash, password string) error
}

// IAMServiceDependencies contains all dependencies for IAM service construction.
// Tokens and Resolver are only required by the login operations; the CLI leaves them nil.
type IAMServiceDependencies struct {
	Users       repository.UserRepository
	Roles       repository.RoleRepository
	Permissions repository.PermissionRepository
	Sessions    repository.LoginSessionRepository
	Tokens      TokenIssuer
	Resolver    SessionResolver
	Audit       AuditRecorder
	Metrics     *telemetry.Metrics
	Logger      zerolog.Logger
}

// NewIAMService creates a new IAM service with all dependencies.
func NewIAMService(deps IAMServiceDependencies) (Service, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("iam service requires a user repository")
	case deps.Roles == nil:
		return nil, errors.New("iam service requires a role repository")
	case deps.Permissions == nil:
		return nil, errors.New("iam service requires a permission repository")
	case deps.Sessions == nil:
		return nil, errors.New("iam service requires a login session repository")
	case deps.Audit == nil:
		return nil, errors.New("iam service requires an audit recorder")
	}

	resolver := deps.Resolver
	if resolver == nil {
		resolver = auth.NewResolver(deps.Users)
	}

	return &iamService{
		users:       deps.Users,
		roles:       deps.Roles,
		permissions: deps.Permissions,
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		resolver:    resolver,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		now:         func() time.Time { return time.Now().UTC() },

		verifyPassword: auth.VerifyPassword,
	}, nil
}

// record writes an audit entry on a context detached from request cancellation,
// so a committed change is always followed by its audit entry.
func (s *iamService) record(ctx context.Context, e audit.Entry) {
	s.audit.Record(context.WithoutCancel(ctx), e)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserView(u *models.User) UserView {
	view := UserView{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Federated:   u.Subject != nil,
		Disabled:    u.Disabled(),
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
	if u.Role != nil {
		view.Role = &RoleRef{ID: u.Role.ID, Name: u.Role.Name}
	}
	return view
}

func toRoleView(r *models.Role) RoleView {
	perms := make([]auth.Permission, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, auth.Permission{Resource: p.Resource, Action: p.Action})
	}
	return RoleView{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsDefault:   r.IsDefault,
		Permissions: auth.NewPermissionSet(perms...).Sorted(),
	}
}

// permissionStrings renders permissions as "resource:action" for audit details.
func permissionStrings(perms []auth.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, fmt.Sprintf("%s:%s", p.Resource, p.Action))
	}
	return out
}
