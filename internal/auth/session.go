package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/terraconstructs/gatehouse/internal/db/models"
)

// DefaultSessionDuration is the login session lifetime when none is configured (12 hours).
const DefaultSessionDuration = 12 * time.Hour

// Session is the derived authorization context for one request.
// It is recomputed from the user, role and permission rows and is never persisted.
type Session struct {
	User *SessionUser `json:"user"`
}

// SessionUser is the authenticated user view carried by a Session.
type SessionUser struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  SessionRole `json:"role"`
}

// SessionRole is the user's role name and flattened permission set.
type SessionRole struct {
	Name        string        `json:"name"`
	Permissions PermissionSet `json:"permissions"`
}

// UserID returns the session's user id, or "" for a session without a user.
func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// RoleName returns the role name, defaulting to models.DefaultRoleName.
func (s *Session) RoleName() string {
	if s == nil || s.User == nil || s.User.Role.Name == "" {
		return models.DefaultRoleName
	}
	return s.User.Role.Name
}

// HashToken returns the SHA256 hex digest used to look up a login session by token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// CalculateExpiry returns createdAt plus ttl, or plus DefaultSessionDuration when ttl is not positive.
func CalculateExpiry(createdAt time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = DefaultSessionDuration
	}
	return createdAt.Add(ttl)
}
