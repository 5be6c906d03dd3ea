package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/middleware"
	"github.com/terraconstructs/gatehouse/internal/services/iam"
)

// RegisterResponse is returned by POST /api/auth/register.
type RegisterResponse struct {
	User *iam.UserSummary `json:"user"`
}

// LoginResponse is returned by POST /api/auth/login. The token is also set as a cookie.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Session   *auth.Session `json:"session"`
}

// authHandlers serves the login surface.
type authHandlers struct {
	iam          iamHandlerService
	resolver     middleware.SessionResolver
	cookieName   string
	secureCookie bool
}

// HandleRegister creates a local user with the default role.
func (h *authHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in iam.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	user, err := h.iam.Register(r.Context(), in, audit.ClientInfoFromRequest(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, RegisterResponse{User: user})
}

// HandleLogin verifies local credentials and sets the session cookie.
func (h *authHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in iam.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	result, err := h.iam.Login(r.Context(), in, audit.ClientInfoFromRequest(r))
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	auth.SetSessionCookie(w, h.cookieName, result.Token, result.ExpiresAt, h.secureCookie)
	middleware.WriteJSON(w, http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Session:   result.Session,
	})
}

// HandleLogout revokes the caller's login session and clears the cookie.
func (h *authHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, r, apperr.Unauthenticated("no session"))
		return
	}

	if err := h.iam.Logout(r.Context(), id, audit.ClientInfoFromRequest(r)); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	auth.ClearSessionCookie(w, h.cookieName, h.secureCookie)
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleSession returns the caller's session, or null when there is none.
func (h *authHandlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteJSON(w, http.StatusOK, nil)
		return
	}

	sess, err := h.resolver.Resolve(r.Context(), id)
	if err != nil {
		if apperr.Is(err, apperr.KindAuthentication) {
			middleware.WriteJSON(w, http.StatusOK, nil)
			return
		}
		middleware.WriteError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sess)
}

// HandleSSOLogin remembers the optional callbackUrl and starts the authorization code flow.
func (h *authHandlers) HandleSSOLogin(rp *auth.RelyingParty) http.HandlerFunc {
	login := rp.LoginHandler()
	return func(w http.ResponseWriter, r *http.Request) {
		if callbackURL := r.URL.Query().Get("callbackUrl"); callbackURL != "" {
			auth.SetCallbackURLCookie(w, auth.SafeCallbackURL(callbackURL), h.secureCookie)
		}
		login.ServeHTTP(w, r)
	}
}

// HandleSSOCallback completes federated login, opens a session and returns to the
// remembered local page.
func (h *authHandlers) HandleSSOCallback(rp *auth.RelyingParty) http.Handler {
	return rp.CallbackHandler(func(w http.ResponseWriter, r *http.Request, id *auth.FederatedIdentity) {
		result, err := h.iam.FederatedLogin(r.Context(), id, audit.ClientInfoFromRequest(r))
		if err != nil {
			SSOFailed(w, r, err)
			return
		}

		auth.SetSessionCookie(w, h.cookieName, result.Token, result.ExpiresAt, h.secureCookie)
		http.Redirect(w, r, auth.PopCallbackURLCookie(w, r, h.secureCookie), http.StatusFound)
	})
}

// SSOFailed sends the browser back to the sign-in page with a generic error code.
// It is also the relying party's error handler for failed code exchanges.
func SSOFailed(w http.ResponseWriter, r *http.Request, err error) {
	reason := "sso_failed"
	if apperr.Is(err, apperr.KindConfiguration) {
		reason = "configuration"
	}
	zerolog.Ctx(r.Context()).Warn().Err(err).Str("reason", reason).Msg("federated login failed")

	q := url.Values{"error": {reason}}
	http.Redirect(w, r, "/signin?"+q.Encode(), http.StatusFound)
}
