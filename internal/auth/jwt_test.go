package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gatehouse/internal/apperr"
)

var testKey = []byte(strings.Repeat("k", MinSigningKeyLength))

func TestNewTokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer([]byte("short"), "gatehouse", time.Hour)
	assert.Error(t, err)

	issuer, err := NewTokenIssuer(testKey, "gatehouse", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionDuration, issuer.TTL())
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testKey, "gatehouse", time.Hour)
	require.NoError(t, err)

	now := time.Now()
	token, expiresAt, err := issuer.Issue("user-1", "session-1", now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Hour), expiresAt, time.Second)

	id, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user-1", SessionID: "session-1"}, id)
}

func TestTokenIssuer_CarriesNoPermissions(t *testing.T) {
	issuer, err := NewTokenIssuer(testKey, "gatehouse", time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.Issue("user-1", "session-1", time.Now())
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	for key := range claims {
		assert.Contains(t, []string{"iss", "sub", "sid", "iat", "exp"}, key)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer, err := NewTokenIssuer(testKey, "gatehouse", time.Hour)
	require.NoError(t, err)

	other, err := NewTokenIssuer([]byte(strings.Repeat("x", MinSigningKeyLength)), "gatehouse", time.Hour)
	require.NoError(t, err)
	foreignIssuer, err := NewTokenIssuer(testKey, "someone-else", time.Hour)
	require.NoError(t, err)

	wrongKey, _, err := other.Issue("user-1", "session-1", time.Now())
	require.NoError(t, err)
	wrongIss, _, err := foreignIssuer.Issue("user-1", "session-1", time.Now())
	require.NoError(t, err)
	expired, _, err := issuer.Issue("user-1", "session-1", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	noSession, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "gatehouse",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(testKey)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{SessionID: "s"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong key":    wrongKey,
		"wrong issuer": wrongIss,
		"expired":      expired,
		"missing sid":  noSession,
		"alg none":     unsigned,
		"garbage":      "not-a-token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.Verify(token)
			assert.Error(t, err)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", TokenFromRequest(r, "gatehouse.session"))

	r.AddCookie(&http.Cookie{Name: "gatehouse.session", Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r, "gatehouse.session"))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r, "gatehouse.session"))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "from-cookie", TokenFromRequest(r, "gatehouse.session"))
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	expires := time.Now().Add(time.Hour)
	SetSessionCookie(rec, "gatehouse.session", "tok", expires, true)
	ClearSessionCookie(rec, "gatehouse.session", true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, "", cookies[1].Value)
	assert.Equal(t, -1, cookies[1].MaxAge)
}

func TestPasswordHashing(t *testing.T) {
	original := PasswordHashCost
	PasswordHashCost = 4
	t.Cleanup(func() { PasswordHashCost = original })

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, VerifyPassword(hash, "correct horse"))
	assert.Error(t, VerifyPassword(hash, "battery staple"))

	_, err = HashPassword(strings.Repeat("é", 40))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Password must be at most 72 bytes long", apperr.PublicMessage(err))

	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestDummyPasswordHash(t *testing.T) {
	dummy := DummyPasswordHash()
	assert.Equal(t, dummy, DummyPasswordHash())
	for _, candidate := range []string{"", "password123", strings.Repeat("a", MaxPasswordBytes)} {
		assert.Error(t, VerifyPassword(dummy, candidate))
	}
}

func TestHashTokenAndExpiry(t *testing.T) {
	assert.Len(t, HashToken("abc"), 64)
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, created.Add(DefaultSessionDuration), CalculateExpiry(created, 0))
	assert.Equal(t, created.Add(time.Minute), CalculateExpiry(created, time.Minute))
}

func TestIdentityContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := IdentityFromContext(r.Context())
	assert.False(t, ok)

	ctx := WithIdentity(r.Context(), Identity{UserID: "u1", SessionID: "s1"})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)

	_, ok = IdentityFromContext(WithIdentity(r.Context(), Identity{}))
	assert.False(t, ok)
}
