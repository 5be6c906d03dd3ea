package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/guard"
	"github.com/terraconstructs/gatehouse/internal/logging"
	"github.com/terraconstructs/gatehouse/internal/middleware"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

// RouterOptions controls the construction of the gatehouse HTTP router.
type RouterOptions struct {
	IAM          iamHandlerService
	Resolver     middleware.SessionResolver
	AuthnDeps    middleware.AuthnDependencies
	RelyingParty *auth.RelyingParty // nil when federated login is not configured
	RateLimiter  *middleware.RateLimiter
	Metrics      *telemetry.Metrics
	Logger       zerolog.Logger
	CORSOptions  *cors.Options

	SecureCookie     bool
	GuardLoadTimeout time.Duration
	HealthHandler    http.HandlerFunc
}

// DefaultCORSOptions returns the development CORS policy for the JSON API.
func DefaultCORSOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// Pinger is satisfied by *bun.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports 200 when the database answers a ping within two seconds.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check: database ping failed")
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter assembles a chi.Router with shared middleware, the authentication
// surface, the enforced admin API and the guarded pages.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(logging.RequestLogger(opts.Logger))
	r.Use(middleware.Recover)
	r.Use(opts.Metrics.Instrument)

	corsCfg := DefaultCORSOptions(nil)
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))
	r.Use(middleware.NewAuthnMiddleware(opts.AuthnDeps))

	authH := &authHandlers{
		iam:          opts.IAM,
		resolver:     opts.Resolver,
		cookieName:   opts.AuthnDeps.CookieName,
		secureCookie: opts.SecureCookie,
	}
	adminH := &adminHandlers{iam: opts.IAM}
	pageH := &pageHandlers{iam: opts.IAM, sso: opts.RelyingParty != nil}

	limited := func(h http.HandlerFunc) http.Handler {
		if opts.RateLimiter == nil {
			return h
		}
		return opts.RateLimiter.Middleware(h)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Method(http.MethodPost, "/register", limited(authH.HandleRegister))
		r.Method(http.MethodPost, "/login", limited(authH.HandleLogin))
		r.Post("/logout", authH.HandleLogout)
		r.Get("/session", authH.HandleSession)
	})

	enforcer := middleware.NewEnforcer(opts.Resolver, logging.WithComponent(opts.Logger, "authz"), opts.Metrics)
	r.Method(http.MethodGet, "/api/users",
		enforcer.Require(auth.ResourceUsers, auth.ActionRead, adminH.listUsers))
	r.Method(http.MethodPut, "/api/users/{id}/permissions",
		enforcer.Require(auth.ResourceUsers, auth.ActionManagePermissions, adminH.updateUserRole))
	r.Method(http.MethodGet, "/api/roles",
		enforcer.Require(auth.ResourceRoles, auth.ActionRead, adminH.listRoles))
	r.Method(http.MethodPut, "/api/roles/{id}/permissions",
		enforcer.Require(auth.ResourceRoles, auth.ActionManagePermissions, adminH.updateRolePermissions))

	if opts.RelyingParty != nil {
		r.Get("/auth/sso/login", authH.HandleSSOLogin(opts.RelyingParty))
		r.Method(http.MethodGet, "/auth/sso/callback", authH.HandleSSOCallback(opts.RelyingParty))
	}

	r.Get("/signin", pageH.HandleSignIn)
	r.Method(http.MethodGet, "/admin/users", guard.Protect(
		guard.IdentitySource(opts.Resolver),
		auth.ResourceUsers, auth.ActionRead,
		pageH.adminUsers,
		guard.WithLoadTimeout(opts.GuardLoadTimeout),
		guard.WithLogger(logging.WithComponent(opts.Logger, "guard")),
	))

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	return r
}
