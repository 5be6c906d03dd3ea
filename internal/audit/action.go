// Package audit records privileged actions to the database and to a rotated
// append-only file. Recording never fails the caller.
package audit

// Action is the closed set of audited actions.
type Action string

const (
	ActionLogin            Action = "LOGIN"
	ActionLogout           Action = "LOGOUT"
	ActionCreate           Action = "CREATE"
	ActionUpdate           Action = "UPDATE"
	ActionDelete           Action = "DELETE"
	ActionView             Action = "VIEW"
	ActionExport           Action = "EXPORT"
	ActionAdmin            Action = "ADMIN_ACTION"
	ActionPermissionChange Action = "PERMISSION_CHANGE"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionFailedLogin      Action = "FAILED_LOGIN"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionCreate, ActionUpdate, ActionDelete, ActionView,
		ActionExport, ActionAdmin, ActionPermissionChange, ActionPasswordChange, ActionFailedLogin:
		return true
	}
	return false
}

// AnonymousUserID is recorded when no user could be attributed (failed login for an unknown email).
const AnonymousUserID = "anonymous"

// UserResource formats the audited resource for a user.
func UserResource(id string) string { return "user/" + id }

// RoleResource formats the audited resource for a role.
func RoleResource(id string) string { return "role/" + id }
