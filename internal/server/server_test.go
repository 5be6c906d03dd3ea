package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/db/dbtest"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/middleware"
	"github.com/terraconstructs/gatehouse/internal/repository"
	"github.com/terraconstructs/gatehouse/internal/services/iam"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

const testCookieName = "gatehouse.session"

// switchableStore fails primary audit writes while failing is set.
type switchableStore struct {
	audit.Store
	failing bool
}

func (s *switchableStore) Create(ctx context.Context, entry *models.AuditLog) error {
	if s.failing {
		return errors.New("audit table unavailable")
	}
	return s.Store.Create(ctx, entry)
}

type testServer struct {
	db         *bun.DB
	router     chi.Router
	tokens     *auth.TokenIssuer
	sessions   *repository.BunLoginSessionRepository
	metrics    *telemetry.Metrics
	auditStore *switchableStore
	auditFile  *bytes.Buffer
}

type serverOption func(*RouterOptions)

func newTestServer(t *testing.T, options ...serverOption) *testServer {
	t.Helper()

	original := auth.PasswordHashCost
	auth.PasswordHashCost = bcrypt.MinCost
	t.Cleanup(func() { auth.PasswordHashCost = original })

	db := dbtest.New(t)
	tokens, err := auth.NewTokenIssuer([]byte(strings.Repeat("s", 32)), "gatehouse-test", time.Hour)
	require.NoError(t, err)

	users := repository.NewBunUserRepository(db)
	sessions := repository.NewBunLoginSessionRepository(db)
	resolver := auth.NewResolver(users)
	metrics := telemetry.NewMetrics()
	store := &switchableStore{Store: repository.NewBunAuditLogRepository(db)}
	file := &bytes.Buffer{}

	svc, err := iam.NewIAMService(iam.IAMServiceDependencies{
		Users:       users,
		Roles:       repository.NewBunRoleRepository(db),
		Permissions: repository.NewBunPermissionRepository(db),
		Sessions:    sessions,
		Tokens:      tokens,
		Resolver:    resolver,
		Audit:       audit.NewRecorder(store, file, zerolog.Nop(), metrics),
		Metrics:     metrics,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)

	opts := RouterOptions{
		IAM:      svc,
		Resolver: resolver,
		AuthnDeps: middleware.AuthnDependencies{
			Verifier:   tokens,
			Sessions:   sessions,
			CookieName: testCookieName,
			Logger:     zerolog.Nop(),
		},
		Metrics:          metrics,
		Logger:           zerolog.Nop(),
		GuardLoadTimeout: 2 * time.Second,
		HealthHandler:    HealthHandler(db),
	}
	for _, o := range options {
		o(&opts)
	}

	return &testServer{
		db:         db,
		router:     NewRouter(opts),
		tokens:     tokens,
		sessions:   sessions,
		metrics:    metrics,
		auditStore: store,
		auditFile:  file,
	}
}

// signIn opens a login session for user directly and returns its bearer token.
func (s *testServer) signIn(t *testing.T, user *models.User) string {
	t.Helper()

	sessionID := bunx.NewUUIDv7()
	token, expiresAt, err := s.tokens.Issue(user.ID, sessionID, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.sessions.Create(context.Background(), &models.LoginSession{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: expiresAt,
	}))
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	r.Header.Set("User-Agent", "server-test")
	r.Header.Set("X-Forwarded-For", "198.51.100.4, 10.0.0.1")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, r)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func (s *testServer) roleOf(t *testing.T, userID string) string {
	t.Helper()

	user, err := repository.NewBunUserRepository(s.db).GetWithRole(context.Background(), userID)
	require.NoError(t, err)
	return user.RoleName()
}
