package auth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionWith(perms ...Permission) *Session {
	return &Session{User: &SessionUser{
		ID:    "u1",
		Email: "u1@example.com",
		Role:  SessionRole{Name: "ADMIN", Permissions: NewPermissionSet(perms...)},
	}}
}

func TestHasPermission(t *testing.T) {
	manageUsers := Permission{Resource: ResourceUsers, Action: ActionManagePermissions}
	readUsers := Permission{Resource: ResourceUsers, Action: ActionRead}

	tests := []struct {
		name     string
		session  *Session
		resource string
		action   string
		want     bool
	}{
		{"nil session", nil, ResourceUsers, ActionRead, false},
		{"session without user", &Session{}, ResourceUsers, ActionRead, false},
		{"user without permission set", &Session{User: &SessionUser{ID: "u1"}}, ResourceUsers, ActionRead, false},
		{"exact pair granted", sessionWith(readUsers), ResourceUsers, ActionRead, true},
		{"same resource other action", sessionWith(readUsers), ResourceUsers, ActionManagePermissions, false},
		{"same action other resource", sessionWith(readUsers), ResourceRoles, ActionRead, false},
		{"manage does not imply read", sessionWith(manageUsers), ResourceUsers, ActionRead, false},
		{"action match is case sensitive", sessionWith(manageUsers), ResourceUsers, "manage_permissions", false},
		{"empty pair", sessionWith(readUsers), "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.session, tt.resource, tt.action))
		})
	}
}

func TestHasPermission_IsPure(t *testing.T) {
	session := sessionWith(Permission{Resource: ResourceRoles, Action: ActionRead})
	for i := 0; i < 3; i++ {
		assert.True(t, HasPermission(session, ResourceRoles, ActionRead))
		assert.False(t, HasPermission(session, ResourceUsers, ActionRead))
	}
	assert.Len(t, session.User.Role.Permissions, 1)
}

func TestPermissionSet_Dedupes(t *testing.T) {
	p := Permission{Resource: ResourceUsers, Action: ActionRead}
	set := NewPermissionSet(p, p, p)
	assert.Len(t, set, 1)
	assert.True(t, set.Contains(ResourceUsers, ActionRead))

	var nilSet PermissionSet
	assert.False(t, nilSet.Contains(ResourceUsers, ActionRead))
	assert.Empty(t, nilSet.Sorted())
}

func TestPermissionSet_JSON(t *testing.T) {
	set := NewPermissionSet(
		Permission{Resource: ResourceUsers, Action: ActionRead},
		Permission{Resource: ResourceRoles, Action: ActionRead},
		Permission{Resource: ResourceUsers, Action: ActionManagePermissions},
	)

	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"resource":"roles","action":"read"},
		{"resource":"users","action":"MANAGE_PERMISSIONS"},
		{"resource":"users","action":"read"}
	]`, string(data))

	var decoded PermissionSet
	require.NoError(t, json.Unmarshal([]byte(`[{"resource":"users","action":"read"},{"resource":"users","action":"read"}]`), &decoded))
	assert.Len(t, decoded, 1)
	assert.True(t, decoded.Contains(ResourceUsers, ActionRead))
}

func TestSession_JSONShape(t *testing.T) {
	session := sessionWith(Permission{Resource: ResourceUsers, Action: ActionRead})

	data, err := json.Marshal(session)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user":{
		"id":"u1","email":"u1@example.com","name":"",
		"role":{"name":"ADMIN","permissions":[{"resource":"users","action":"read"}]}
	}}`, string(data))
}

func TestSession_Accessors(t *testing.T) {
	var nilSession *Session
	assert.Equal(t, "", nilSession.UserID())
	assert.Equal(t, "user", nilSession.RoleName())
	assert.Equal(t, "user", (&Session{User: &SessionUser{ID: "u2"}}).RoleName())
	assert.Equal(t, "ADMIN", sessionWith().RoleName())
	assert.Equal(t, "u1", sessionWith().UserID())
}
