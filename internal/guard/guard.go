// Package guard protects server-rendered pages. It is advisory: every API the pages
// call is enforced independently by the middleware package.
package guard

import (
	"context"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/auth"
)

// Outcome is what a guarded page shows for a given state.
type Outcome int

const (
	OutcomeLoading Outcome = iota
	OutcomeRedirect
	OutcomeRender
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRedirect:
		return "redirect"
	case OutcomeRender:
		return "render"
	case OutcomeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// State is the guard's view of session resolution.
type State struct {
	Loading bool
	Session *auth.Session
}

// Decide maps a state to an outcome. It performs no I/O.
func Decide(state State, resource, action string) Outcome {
	switch {
	case state.Loading:
		return OutcomeLoading
	case state.Session == nil || state.Session.User == nil:
		return OutcomeRedirect
	case auth.HasPermission(state.Session, resource, action):
		return OutcomeRender
	default:
		return OutcomeFallback
	}
}

// SessionSource produces the session for a page request. A nil session with a nil
// error, or an authentication-kind error, means the caller is not signed in.
type SessionSource interface {
	Session(r *http.Request) (*auth.Session, error)
}

// SessionSourceFunc adapts a function to SessionSource.
type SessionSourceFunc func(r *http.Request) (*auth.Session, error)

func (f SessionSourceFunc) Session(r *http.Request) (*auth.Session, error) { return f(r) }

// SessionResolver is satisfied by *auth.Resolver.
type SessionResolver interface {
	Resolve(ctx context.Context, id auth.Identity) (*auth.Session, error)
}

// IdentitySource resolves the identity placed on the request by the authentication middleware.
func IdentitySource(resolver SessionResolver) SessionSource {
	return SessionSourceFunc(func(r *http.Request) (*auth.Session, error) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			return nil, nil
		}
		return resolver.Resolve(r.Context(), id)
	})
}

// Page renders a guarded page for an authorized session.
type Page func(w http.ResponseWriter, r *http.Request, sess *auth.Session)

// DefaultLoadTimeout bounds session resolution before the loading placeholder is shown.
const DefaultLoadTimeout = 3 * time.Second

type options struct {
	loadTimeout time.Duration
	signInPath  string
	fallback    http.Handler
	logger      zerolog.Logger
}

// Option configures Protect.
type Option func(*options)

// WithLoadTimeout sets how long to wait for the session before rendering the placeholder.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.loadTimeout = d
		}
	}
}

// WithSignInPath overrides the redirect target for unauthenticated visitors.
func WithSignInPath(path string) Option {
	return func(o *options) { o.signInPath = path }
}

// WithFallback replaces the default "Access Denied" page.
func WithFallback(h http.Handler) Option {
	return func(o *options) { o.fallback = h }
}

// WithLogger sets the logger for source failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

type result struct {
	sess *auth.Session
	err  error
}

// Protect adapts Decide to an http.Handler around children.
func Protect(source SessionSource, resource, action string, children Page, opts ...Option) http.Handler {
	o := options{
		loadTimeout: DefaultLoadTimeout,
		signInPath:  "/signin",
		fallback:    http.HandlerFunc(renderAccessDenied),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), o.loadTimeout)
		defer cancel()

		done := make(chan result, 1)
		go func() {
			sess, err := source.Session(r.WithContext(ctx))
			done <- result{sess: sess, err: err}
		}()

		var state State
		select {
		case res := <-done:
			state.Session = res.sess
			if res.err != nil {
				state.Session = nil
				if !apperr.Is(res.err, apperr.KindAuthentication) {
					o.logger.Error().Err(res.err).Str("path", r.URL.Path).Msg("page session resolution failed")
					o.fallback.ServeHTTP(w, r)
					return
				}
			}
		case <-ctx.Done():
			state.Loading = true
		}

		switch Decide(state, resource, action) {
		case OutcomeLoading:
			renderLoading(w, r)
		case OutcomeRedirect:
			target := o.signInPath + "?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
		case OutcomeRender:
			children(w, r, state.Session)
		default:
			o.fallback.ServeHTTP(w, r)
		}
	})
}

var pageTemplates = template.Must(template.New("loading").Parse(
	`<!DOCTYPE html><html><head><title>Loading</title></head><body><div>Loading...</div></body></html>`,
))

func init() {
	template.Must(pageTemplates.New("denied").Parse(
		`<!DOCTYPE html><html><head><title>Access Denied</title></head><body><div>Access Denied</div></body></html>`,
	))
}

func renderLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", "1")
	w.WriteHeader(http.StatusOK)
	_ = pageTemplates.ExecuteTemplate(w, "loading", nil)
}

func renderAccessDenied(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_ = pageTemplates.ExecuteTemplate(w, "denied", nil)
}
