package auth

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

// ErrUserNotFound is returned when a verified identity no longer maps to a user.
// It is an authentication failure so that callers cannot probe for user existence.
var ErrUserNotFound = apperr.Unauthenticated("user not found")

// ErrUserDisabled is returned when the user has been soft-disabled.
var ErrUserDisabled = apperr.Unauthenticated("user disabled")

// Grant is one consistent snapshot of a user, its role and the role's permissions.
type Grant struct {
	UserID      string
	Email       string
	Name        string
	Disabled    bool
	RoleName    string // empty when the user holds no role
	Permissions []Permission
}

// GrantStore is the read contract of the permission store. LoadGrant must read the
// user, role and permissions in one atomic statement and return an apperr NotFound
// error when the user does not exist.
type GrantStore interface {
	LoadGrant(ctx context.Context, userID string) (*Grant, error)
}

// Resolver derives Sessions from the permission store.
type Resolver struct {
	store GrantStore
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store GrantStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve loads the user behind id and flattens its role into a Session.
// A user without a role resolves to an empty permission set and role name "user".
func (r *Resolver) Resolve(ctx context.Context, id Identity) (*Session, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerAuth, "auth.Resolve",
		attribute.String(telemetry.AttrUserID, id.UserID),
	)
	defer span.End()

	if id.UserID == "" {
		return nil, ErrUserNotFound
	}

	grant, err := r.store.LoadGrant(ctx, id.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, ErrUserNotFound
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if grant.Disabled {
		return nil, ErrUserDisabled
	}

	session := SessionFromGrant(grant)
	span.SetAttributes(attribute.String(telemetry.AttrRoleName, session.User.Role.Name))
	return session, nil
}

// SessionFromGrant projects a Grant into a Session.
func SessionFromGrant(g *Grant) *Session {
	roleName := g.RoleName
	if roleName == "" {
		roleName = models.DefaultRoleName
	}
	return &Session{
		User: &SessionUser{
			ID:    g.UserID,
			Email: g.Email,
			Name:  g.Name,
			Role: SessionRole{
				Name:        roleName,
				Permissions: NewPermissionSet(g.Permissions...),
			},
		},
	}
}
