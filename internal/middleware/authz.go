package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

// Authorization outcomes reported to metrics.
const (
	OutcomeAllowed         = "allowed"
	OutcomeDenied          = "denied"
	OutcomeUnauthenticated = "unauthenticated"
)

// SessionResolver re-derives the authorization context for a verified identity.
type SessionResolver interface {
	Resolve(ctx context.Context, id auth.Identity) (*auth.Session, error)
}

// Handler is an authorized API handler. It receives the freshly resolved session and
// returns either a value to encode as JSON with status 200 or a domain error.
type Handler func(r *http.Request, sess *auth.Session) (any, error)

// Enforcer is the authoritative server-side permission check for JSON API routes.
type Enforcer struct {
	resolver SessionResolver
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// NewEnforcer creates an Enforcer. metrics may be nil.
func NewEnforcer(resolver SessionResolver, logger zerolog.Logger, metrics *telemetry.Metrics) *Enforcer {
	return &Enforcer{resolver: resolver, logger: logger, metrics: metrics}
}

// Require wraps h so it only runs for callers whose role holds (resource, action).
// The pair is fixed when the route is registered. The session is resolved from the
// store on every request; nothing cached in the token is trusted.
func (e *Enforcer) Require(resource, action string, h Handler) http.Handler {
	return Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, ok := auth.IdentityFromContext(ctx)
		if !ok {
			e.metrics.AuthzDecision(resource, action, OutcomeUnauthenticated)
			WriteError(w, r, apperr.Unauthenticated("no session"))
			return
		}

		sess, err := e.resolver.Resolve(ctx, id)
		if err != nil {
			if apperr.Is(err, apperr.KindAuthentication) {
				e.metrics.AuthzDecision(resource, action, OutcomeUnauthenticated)
			}
			WriteError(w, r, err)
			return
		}

		if !auth.HasPermission(sess, resource, action) {
			e.metrics.AuthzDecision(resource, action, OutcomeDenied)
			e.logger.Warn().
				Str("user_id", sess.UserID()).
				Str("role", sess.RoleName()).
				Str("resource", resource).
				Str("action", action).
				Str("path", r.URL.Path).
				Msg("permission denied")
			WriteError(w, r, apperr.Forbidden())
			return
		}
		e.metrics.AuthzDecision(resource, action, OutcomeAllowed)

		result, err := h(r, sess)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}))
}

// Authenticated wraps h so it only runs for callers with a resolvable session,
// without any permission requirement.
func (e *Enforcer) Authenticated(h Handler) http.Handler {
	return Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			WriteError(w, r, apperr.Unauthenticated("no session"))
			return
		}
		sess, err := e.resolver.Resolve(r.Context(), id)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		result, err := h(r, sess)
		if err != nil {
			WriteError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}))
}
