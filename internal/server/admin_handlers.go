package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/services/iam"
	"github.com/terraconstructs/gatehouse/internal/validation"
)

// UserRoleUpdateRequest is the body of PUT /api/users/{id}/permissions.
// The nested form {"permissions": {"roleId": ...}} is accepted for older clients.
type UserRoleUpdateRequest struct {
	RoleID      string `json:"roleId"`
	Permissions *struct {
		RoleID string `json:"roleId"`
	} `json:"permissions"`
}

func (req UserRoleUpdateRequest) roleID() string {
	if req.RoleID != "" {
		return req.RoleID
	}
	if req.Permissions != nil {
		return req.Permissions.RoleID
	}
	return ""
}

// RolePermissionsUpdateRequest is the body of PUT /api/roles/{id}/permissions.
type RolePermissionsUpdateRequest struct {
	Permissions []auth.Permission `json:"permissions" validate:"required"`
}

// UsersResponse is returned by GET /api/users.
type UsersResponse struct {
	Users []iam.UserView `json:"users"`
}

// RolesResponse is returned by GET /api/roles. Permissions is the catalog a
// role's permission set may be drawn from.
type RolesResponse struct {
	Roles       []iam.RoleView       `json:"roles"`
	Permissions []iam.PermissionView `json:"permissions"`
}

// adminHandlers serves the administration API. Every handler runs behind
// Enforcer.Require, so sess always holds the route's permission.
type adminHandlers struct {
	iam iamHandlerService
}

func (h *adminHandlers) listUsers(r *http.Request, _ *auth.Session) (any, error) {
	users, err := h.iam.ListUsers(r.Context())
	if err != nil {
		return nil, err
	}
	return UsersResponse{Users: users}, nil
}

func (h *adminHandlers) listRoles(r *http.Request, _ *auth.Session) (any, error) {
	roles, err := h.iam.ListRoles(r.Context())
	if err != nil {
		return nil, err
	}
	catalog, err := h.iam.ListPermissions(r.Context())
	if err != nil {
		return nil, err
	}
	return RolesResponse{Roles: roles, Permissions: catalog}, nil
}

func (h *adminHandlers) updateUserRole(r *http.Request, sess *auth.Session) (any, error) {
	targetID := chi.URLParam(r, "id")
	if err := validation.UUID("id", targetID); err != nil {
		return nil, err
	}

	var req UserRoleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.iam.ChangeUserRole(r.Context(), sess, targetID, req.roleID(), audit.ClientInfoFromRequest(r))
}

func (h *adminHandlers) updateRolePermissions(r *http.Request, sess *auth.Session) (any, error) {
	roleID := chi.URLParam(r, "id")
	if err := validation.UUID("id", roleID); err != nil {
		return nil, err
	}

	var req RolePermissionsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return h.iam.ReplaceRolePermissions(r.Context(), sess, roleID, req.Permissions, audit.ClientInfoFromRequest(r))
}
