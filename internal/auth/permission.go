package auth

import (
	"encoding/json"
	"sort"
)

// Permission is the atomic (resource, action) capability.
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// PermissionSet is a duplicate-free set of permissions.
// It marshals to a JSON array sorted by resource then action.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from pairs, discarding duplicates.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Contains reports whether the exact pair is a member.
func (s PermissionSet) Contains(resource, action string) bool {
	if s == nil {
		return false
	}
	_, ok := s[Permission{Resource: resource, Action: action}]
	return ok
}

// Sorted returns the members ordered by resource then action.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// MarshalJSON encodes the set as [{resource, action}].
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes [{resource, action}] into the set.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var perms []Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		return err
	}
	*s = NewPermissionSet(perms...)
	return nil
}

// HasPermission is the permission predicate. It is pure and fails closed:
// a nil session, a session without a user, or a user without a permission set is denied.
func HasPermission(s *Session, resource, action string) bool {
	if s == nil || s.User == nil {
		return false
	}
	return s.User.Role.Permissions.Contains(resource, action)
}
