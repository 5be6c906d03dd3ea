package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/models"
)

// TokenVerifier validates a session token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// LoginSessionStore is the subset of the login session repository used to authenticate requests.
type LoginSessionStore interface {
	GetByID(ctx context.Context, id string) (*models.LoginSession, error)
	Touch(ctx context.Context, id string) error
}

// AuthnDependencies bundles collaborators required by the authentication middleware.
type AuthnDependencies struct {
	Verifier   TokenVerifier
	Sessions   LoginSessionStore
	CookieName string
	Logger     zerolog.Logger
	Now        func() time.Time
}

// NewAuthnMiddleware verifies the bearer header or session cookie and stores the caller's
// Identity on the request context. Requests without a valid token pass through unauthenticated;
// enforcement decides whether that is acceptable for the route.
func NewAuthnMiddleware(deps AuthnDependencies) func(http.Handler) http.Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r, deps.CookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			id, err := deps.Verifier.Verify(token)
			if err != nil {
				deps.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected session token")
				next.ServeHTTP(w, r)
				return
			}

			session, err := deps.Sessions.GetByID(ctx, id.SessionID)
			if err != nil {
				if !apperr.Is(err, apperr.KindNotFound) {
					deps.Logger.Error().Err(err).Str("session_id", id.SessionID).Msg("login session lookup failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			if session.UserID != id.UserID || session.TokenHash != auth.HashToken(token) || !session.Active(now()) {
				next.ServeHTTP(w, r)
				return
			}

			if err := deps.Sessions.Touch(ctx, session.ID); err != nil {
				deps.Logger.Warn().Err(err).Str("session_id", session.ID).Msg("failed to update session last_used")
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(ctx, id)))
		})
	}
}
