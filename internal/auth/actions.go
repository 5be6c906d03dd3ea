package auth

// Resources guarded by gatehouse.
const (
	ResourceUsers = "users"
	ResourceRoles = "roles"
)

// Actions used in (resource, action) permission pairs.
// Matching is exact: there is no wildcard or implied action.
const (
	ActionRead              = "read"
	ActionManagePermissions = "MANAGE_PERMISSIONS"
)
