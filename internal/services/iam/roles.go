package iam

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
	"github.com/terraconstructs/gatehouse/internal/validation"
)

func (s *iamService) ListUsers(ctx context.Context) ([]UserView, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, toUserView(&users[i]))
	}
	return views, nil
}

func (s *iamService) ListRoles(ctx context.Context) ([]RoleView, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]RoleView, 0, len(roles))
	for i := range roles {
		views = append(views, toRoleView(&roles[i]))
	}
	return views, nil
}

func (s *iamService) ListPermissions(ctx context.Context) ([]PermissionView, error) {
	perms, err := s.permissions.List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PermissionView, 0, len(perms))
	for _, p := range perms {
		views = append(views, PermissionView{
			Name:        p.Name,
			Resource:    p.Resource,
			Action:      p.Action,
			Description: p.Description,
		})
	}
	return views, nil
}

func (s *iamService) ChangeUserRole(ctx context.Context, actor *auth.Session, targetID, roleID string, client audit.ClientInfo) (*UserView, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.ChangeUserRole",
		attribute.String(telemetry.AttrUserID, targetID),
	)
	defer span.End()

	if err := validation.UUID("id", targetID); err != nil {
		return nil, err
	}
	if err := validation.UUID("roleId", roleID); err != nil {
		return nil, err
	}

	before, err := s.users.GetWithRole(ctx, targetID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, err
	}

	// Nothing has been written yet; an abandoned request stops here. Past this
	// point the write, reload and audit entry complete together.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	if err := s.users.UpdateRole(ctx, targetID, role.ID); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	after, err := s.users.GetWithRole(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("reload user after role change: %w", err)
	}

	details := map[string]any{
		"previousRole": before.RoleName(),
		"newRole":      after.RoleName(),
		"newRoleId":    role.ID,
	}
	if before.RoleID != nil {
		details["previousRoleId"] = *before.RoleID
	}
	s.record(ctx, audit.Entry{
		UserID:   actor.UserID(),
		Action:   audit.ActionPermissionChange,
		Resource: audit.UserResource(targetID),
		Details:  details,
		Client:   client,
	})

	view := toUserView(after)
	return &view, nil
}

func (s *iamService) ReplaceRolePermissions(ctx context.Context, actor *auth.Session, roleID string, perms []auth.Permission, client audit.ClientInfo) (*RoleView, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.ReplaceRolePermissions")
	defer span.End()

	if err := validation.UUID("id", roleID); err != nil {
		return nil, err
	}
	for _, p := range perms {
		if p.Resource == "" || p.Action == "" {
			return nil, apperr.Invalid("permissions", "Please provide all required fields")
		}
	}

	before, err := s.roles.GetWithPermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	if err := s.roles.SetPermissions(ctx, roleID, perms); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	after, err := s.roles.GetWithPermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("reload role after permission change: %w", err)
	}
	beforeView, afterView := toRoleView(before), toRoleView(after)

	s.record(ctx, audit.Entry{
		UserID:   actor.UserID(),
		Action:   audit.ActionPermissionChange,
		Resource: audit.RoleResource(roleID),
		Details: map[string]any{
			"role":                after.Name,
			"previousPermissions": permissionStrings(beforeView.Permissions),
			"newPermissions":      permissionStrings(afterView.Permissions),
		},
		Client: client,
	})
	return &afterView, nil
}

func (s *iamService) AssignRole(ctx context.Context, email, roleName string) (*UserView, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	before, err := s.users.GetWithRole(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateRole(ctx, user.ID, role.ID); err != nil {
		return nil, err
	}

	after, err := s.users.GetWithRole(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.Entry{
		UserID:   SystemActorID,
		Action:   audit.ActionPermissionChange,
		Resource: audit.UserResource(user.ID),
		Details: map[string]any{
			"previousRole": before.RoleName(),
			"newRole":      after.RoleName(),
			"source":       "cli",
		},
		Client: audit.ClientInfoFromRequest(nil),
	})

	view := toUserView(after)
	return &view, nil
}

func (s *iamService) DisableUser(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if err := s.users.Disable(ctx, user.ID); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	s.record(ctx, audit.Entry{
		UserID:   SystemActorID,
		Action:   audit.ActionUpdate,
		Resource: audit.UserResource(user.ID),
		Details:  map[string]any{"disabled": true, "source": "cli"},
		Client:   audit.ClientInfoFromRequest(nil),
	})
	return nil
}

func (s *iamService) GetRole(ctx context.Context, name string) (*RoleView, error) {
	role, err := s.roles.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	role, err = s.roles.GetWithPermissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	view := toRoleView(role)
	return &view, nil
}

func (s *iamService) SetDefaultRole(ctx context.Context, name string) error {
	if err := s.roles.SetDefault(ctx, name); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		UserID:   SystemActorID,
		Action:   audit.ActionAdmin,
		Resource: "role/default",
		Details:  map[string]any{"defaultRole": name, "source": "cli"},
		Client:   audit.ClientInfoFromRequest(nil),
	})
	return nil
}
