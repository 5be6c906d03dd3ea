package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/terraconstructs/gatehouse/internal/config"
)

// CallbackURLCookieName remembers the local page to return to after federated login.
const (
	CallbackURLCookieName = "gatehouse.sso_callback"
	ssoCookieLifetime     = 10 * time.Minute
)

// FederatedIdentity is the verified identity returned by the external IdP.
type FederatedIdentity struct {
	Subject string
	Email   string
	Name    string
}

// RelyingParty handles OIDC authentication against an external IdP by wrapping
// the zitadel/oidc RelyingParty implementation.
type RelyingParty struct {
	rp      rp.RelyingParty
	onError func(w http.ResponseWriter, r *http.Request, err error)
}

// NewRelyingParty discovers the issuer and creates a RelyingParty for federated login.
// Failures during the callback are passed to onError.
func NewRelyingParty(ctx context.Context, cfg *config.OIDCConfig, secureCookies bool, onError func(w http.ResponseWriter, r *http.Request, err error)) (*RelyingParty, error) {
	// PKCE verifiers only live for one login round trip, so per-process keys are enough.
	hashKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie hash key: %w", err)
	}
	cryptoKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie crypto key: %w", err)
	}

	var cookieOpts []httphelper.CookieHandlerOpt
	if !secureCookies {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(hashKey, cryptoKey, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
		rp.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, errorType, errorDesc, state string) {
			onError(w, r, fmt.Errorf("%s: %s", errorType, errorDesc))
		}),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI,
		cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty, onError: onError}, nil
}

// LoginHandler redirects to the IdP authorization endpoint. The library stores the
// state nonce and the PKCE verifier in encrypted cookies.
func (r *RelyingParty) LoginHandler() http.Handler {
	return rp.AuthURLHandler(func() string {
		state, err := GenerateNonce()
		if err != nil {
			return ""
		}
		return state
	}, r.rp)
}

// CallbackHandler verifies state, exchanges the authorization code with the PKCE
// verifier and passes the verified identity to onLogin.
func (r *RelyingParty) CallbackHandler(onLogin func(w http.ResponseWriter, req *http.Request, id *FederatedIdentity)) http.Handler {
	return rp.CodeExchangeHandler(func(w http.ResponseWriter, req *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], state string, _ rp.RelyingParty) {
		id, err := identityFromClaims(tokens.IDTokenClaims)
		if err != nil {
			r.onError(w, req, err)
			return
		}
		onLogin(w, req, id)
	}, r.rp)
}

func identityFromClaims(claims *oidc.IDTokenClaims) (*FederatedIdentity, error) {
	if claims == nil || claims.Subject == "" {
		return nil, fmt.Errorf("id token has no subject")
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("id token has no email claim")
	}
	name := claims.Name
	if name == "" {
		name = claims.PreferredUsername
	}
	return &FederatedIdentity{
		Subject: claims.Subject,
		Email:   strings.ToLower(claims.Email),
		Name:    name,
	}, nil
}

func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random URL-safe nonce.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func setShortLivedCookie(w http.ResponseWriter, name, value string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ssoCookieLifetime),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetCallbackURLCookie remembers where to send the user after the callback.
func SetCallbackURLCookie(w http.ResponseWriter, callbackURL string, secure bool) {
	setShortLivedCookie(w, CallbackURLCookieName, callbackURL, secure)
}

// PopCallbackURLCookie returns and clears the remembered callback URL.
// Anything that is not a local path falls back to "/".
func PopCallbackURLCookie(w http.ResponseWriter, r *http.Request, secure bool) string {
	cookie, err := r.Cookie(CallbackURLCookieName)
	if err != nil {
		return "/"
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CallbackURLCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return SafeCallbackURL(cookie.Value)
}

// SafeCallbackURL restricts post-login redirects to local absolute paths.
func SafeCallbackURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return raw
}
