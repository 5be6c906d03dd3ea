package iam

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/dbtest"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/repository"
)

func TestRegister_AssignsDefaultRoleAndAudits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	summary, err := env.svc.Register(ctx, RegisterInput{
		Email:    "  New.User@Example.com ",
		Password: "password123",
		Name:     "New User",
	}, testClient)
	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", summary.Email)
	assert.Equal(t, "New User", summary.Name)

	user, err := repository.NewBunUserRepository(env.db).GetWithRole(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "USER", user.RoleName())
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "password123", *user.PasswordHash)

	entry := lastAudit(t, env.db)
	assert.Equal(t, string(audit.ActionCreate), entry.Action)
	assert.Equal(t, summary.ID, entry.UserID)
	assert.Equal(t, "user/"+summary.ID, entry.Resource)
	assert.Equal(t, "registration", entry.Details["source"])
	assert.Equal(t, "USER", entry.Details["role"])
	assert.Equal(t, testClient.IPAddress, entry.IPAddress)
	assert.Equal(t, testClient.UserAgent, entry.UserAgent)
}

func TestRegister_ValidationMessages(t *testing.T) {
	tests := []struct {
		name    string
		input   RegisterInput
		message string
	}{
		{
			name:    "missing fields",
			input:   RegisterInput{Email: "a@example.com"},
			message: "Please provide all required fields",
		},
		{
			name:    "bad email",
			input:   RegisterInput{Email: "not-an-email", Password: "password123", Name: "A"},
			message: "Please provide a valid email address",
		},
		{
			name:    "short password",
			input:   RegisterInput{Email: "a@example.com", Password: "short", Name: "A"},
			message: "Password must be at least 8 characters long",
		},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Register(context.Background(), tt.input, testClient)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tt.message, apperr.PublicMessage(err))
		})
	}
	assert.Empty(t, dbtest.AuditLogs(t, env.db))
}

func TestRegister_MultibytePasswordOverByteLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 40 runes, 80 bytes.
	_, err := env.svc.Register(ctx, RegisterInput{
		Email: "accent@example.com", Password: strings.Repeat("é", 40), Name: "Accent",
	}, testClient)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Password must be at most 72 bytes long", apperr.PublicMessage(err))

	count, err := env.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, dbtest.AuditLogs(t, env.db))

	// 36 runes, 72 bytes.
	_, err = env.svc.Register(ctx, RegisterInput{
		Email: "accent@example.com", Password: strings.Repeat("é", 36), Name: "Accent",
	}, testClient)
	require.NoError(t, err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := RegisterInput{Email: "dup@example.com", Password: "password123", Name: "Dup"}
	_, err := env.svc.Register(ctx, in, testClient)
	require.NoError(t, err)

	in.Email = "DUP@example.com"
	_, err = env.svc.Register(ctx, in, testClient)
	require.ErrorIs(t, err, repository.ErrEmailTaken)
	assert.Equal(t, "User with this email already exists", apperr.PublicMessage(err))
	assert.Len(t, dbtest.AuditLogs(t, env.db), 1)
}

func TestRegister_NoDefaultRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dbtest.ClearDefaultRole(t, env.db)

	_, err := env.svc.Register(ctx, RegisterInput{
		Email: "orphan@example.com", Password: "password123", Name: "Orphan",
	}, testClient)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	assert.Equal(t, "System configuration error", apperr.PublicMessage(err))

	count, err := env.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, dbtest.AuditLogs(t, env.db))
}

func TestCreateUser_WithNamedRole(t *testing.T) {
	env := newTestEnv(t)

	view, err := env.svc.CreateUser(context.Background(), CreateUserInput{
		Email: "ops@example.com", Name: "Ops", Password: "password123", RoleName: "ADMIN",
	})
	require.NoError(t, err)
	require.NotNil(t, view.Role)
	assert.Equal(t, "ADMIN", view.Role.Name)

	entry := lastAudit(t, env.db)
	assert.Equal(t, SystemActorID, entry.UserID)
	assert.Equal(t, "cli", entry.Details["source"])
	assert.Equal(t, "unknown", entry.IPAddress)
}

func TestCreateUser_UnknownRole(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateUser(context.Background(), CreateUserInput{
		Email: "ops@example.com", Name: "Ops", Password: "password123", RoleName: "NOPE",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestSetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerUser(t, env, "reset@example.com")
	login, err := env.svc.Login(ctx, LoginInput{Email: "reset@example.com", Password: "password123"}, testClient)
	require.NoError(t, err)

	require.NoError(t, env.svc.SetPassword(ctx, "RESET@example.com", "new-password-456"))

	entry := lastAudit(t, env.db)
	assert.Equal(t, string(audit.ActionPasswordChange), entry.Action)
	assert.Equal(t, SystemActorID, entry.UserID)
	assert.Equal(t, "cli", entry.Details["source"])
	assert.Equal(t, false, entry.Details["addedLocalPassword"])

	// Existing sessions end with the old password.
	id, err := env.tokens.Verify(login.Token)
	require.NoError(t, err)
	row, err := repository.NewBunLoginSessionRepository(env.db).GetByID(ctx, id.SessionID)
	require.NoError(t, err)
	assert.False(t, row.Active(time.Now()))

	_, err = env.svc.Login(ctx, LoginInput{Email: "reset@example.com", Password: "password123"}, testClient)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	_, err = env.svc.Login(ctx, LoginInput{Email: "reset@example.com", Password: "new-password-456"}, testClient)
	assert.NoError(t, err)
}

func TestSetPassword_GivesFederatedUserLocalCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.svc.FederatedLogin(ctx, &auth.FederatedIdentity{
		Subject: "sub-9", Email: "fed@example.com", Name: "Fed",
	}, testClient)
	require.NoError(t, err)

	require.NoError(t, env.svc.SetPassword(ctx, "fed@example.com", "local-password"))
	assert.Equal(t, true, lastAudit(t, env.db).Details["addedLocalPassword"])

	_, err = env.svc.Login(ctx, LoginInput{Email: "fed@example.com", Password: "local-password"}, testClient)
	assert.NoError(t, err)
}

func TestSetPassword_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	registerUser(t, env, "keep@example.com")
	before := len(dbtest.AuditLogs(t, env.db))

	err := env.svc.SetPassword(ctx, "keep@example.com", "short")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = env.svc.SetPassword(ctx, "keep@example.com", strings.Repeat("é", 40))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "Password must be at most 72 bytes long", apperr.PublicMessage(err))

	err = env.svc.SetPassword(ctx, "missing@example.com", "long-enough")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	assert.Len(t, dbtest.AuditLogs(t, env.db), before)
	_, err = env.svc.Login(ctx, LoginInput{Email: "keep@example.com", Password: "password123"}, testClient)
	assert.NoError(t, err)
}
