package iam

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

// Login methods reported to metrics and audit details.
const (
	MethodPassword = "password"
	MethodOIDC     = "oidc"
)

func (s *iamService) Login(ctx context.Context, in LoginInput, client audit.ClientInfo) (*LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Login")
	defer span.End()

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, s.loginFailed(ctx, "", email, "missing_credentials", client)
	}

	// Every rejection below pays for one bcrypt comparison, so response time
	// does not reveal whether the account exists.
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			_ = s.verifyPassword(auth.DummyPasswordHash(), in.Password)
			return nil, s.loginFailed(ctx, "", email, "unknown_email", client)
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("login: %w", err)
	}
	if user.Disabled() {
		_ = s.verifyPassword(auth.DummyPasswordHash(), in.Password)
		return nil, s.loginFailed(ctx, user.ID, email, "disabled", client)
	}
	if user.PasswordHash == nil {
		_ = s.verifyPassword(auth.DummyPasswordHash(), in.Password)
		return nil, s.loginFailed(ctx, user.ID, email, "no_local_credentials", client)
	}
	if err := s.verifyPassword(*user.PasswordHash, in.Password); err != nil {
		return nil, s.loginFailed(ctx, user.ID, email, "bad_password", client)
	}

	result, err := s.startSession(ctx, user, client)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrUserID, user.ID))

	s.metrics.LoginAttempt(MethodPassword, true)
	s.record(ctx, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionLogin,
		Resource: audit.UserResource(user.ID),
		Details:  map[string]any{"method": MethodPassword},
		Client:   client,
	})
	return result, nil
}

// loginFailed audits the attempt and returns the generic credentials error.
func (s *iamService) loginFailed(ctx context.Context, userID, email, reason string, client audit.ClientInfo) error {
	s.metrics.LoginAttempt(MethodPassword, false)

	actor := userID
	resource := audit.UserResource(userID)
	if actor == "" {
		actor = audit.AnonymousUserID
		resource = "user"
	}
	s.record(ctx, audit.Entry{
		UserID:   actor,
		Action:   audit.ActionFailedLogin,
		Resource: resource,
		Details: map[string]any{
			"email":  email,
			"reason": reason,
		},
		Client: client,
	})
	return apperr.InvalidCredentials()
}

func (s *iamService) FederatedLogin(ctx context.Context, id *auth.FederatedIdentity, client audit.ClientInfo) (*LoginResult, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.FederatedLogin")
	defer span.End()

	if id == nil || id.Subject == "" || id.Email == "" {
		s.metrics.LoginAttempt(MethodOIDC, false)
		return nil, apperr.Unauthenticated("incomplete federated identity")
	}

	user, err := s.findOrProvisionFederated(ctx, id, client)
	if err != nil {
		s.metrics.LoginAttempt(MethodOIDC, false)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if user.Disabled() {
		s.metrics.LoginAttempt(MethodOIDC, false)
		s.record(ctx, audit.Entry{
			UserID:   user.ID,
			Action:   audit.ActionFailedLogin,
			Resource: audit.UserResource(user.ID),
			Details:  map[string]any{"provider": MethodOIDC, "reason": "disabled"},
			Client:   client,
		})
		return nil, auth.ErrUserDisabled
	}

	result, err := s.startSession(ctx, user, client)
	if err != nil {
		s.metrics.LoginAttempt(MethodOIDC, false)
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.metrics.LoginAttempt(MethodOIDC, true)
	s.record(ctx, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionLogin,
		Resource: audit.UserResource(user.ID),
		Details:  map[string]any{"provider": MethodOIDC},
		Client:   client,
	})
	return result, nil
}

// findOrProvisionFederated resolves the user by subject, then links by email, then
// provisions a new user with the default role.
func (s *iamService) findOrProvisionFederated(ctx context.Context, id *auth.FederatedIdentity, client audit.ClientInfo) (*models.User, error) {
	user, err := s.users.GetBySubject(ctx, id.Subject)
	if err == nil {
		return user, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, fmt.Errorf("get user by subject: %w", err)
	}

	email := normalizeEmail(id.Email)
	user, err = s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Subject != nil && *user.Subject != id.Subject {
			return nil, apperr.Unauthenticated("email already linked to a different identity")
		}
		if err := s.users.LinkSubject(ctx, user.ID, id.Subject); err != nil {
			return nil, err
		}
		subject := id.Subject
		user.Subject = &subject
		s.logger.Info().Str("user_id", user.ID).Msg("linked federated identity to existing user")
		return user, nil
	case !apperr.Is(err, apperr.KindNotFound):
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	subject := id.Subject
	user = &models.User{Email: email, Name: id.Name, Subject: &subject}
	if err := s.users.CreateWithDefaultRole(ctx, user); err != nil {
		if apperr.Is(err, apperr.KindConfiguration) {
			s.logger.Error().Err(err).Msg("federated provisioning rejected: no default role is configured")
		}
		return nil, err
	}

	s.record(ctx, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionCreate,
		Resource: audit.UserResource(user.ID),
		Details: map[string]any{
			"email":    user.Email,
			"role":     user.RoleName(),
			"provider": MethodOIDC,
			"source":   "jit",
		},
		Client: client,
	})
	return user, nil
}

// startSession persists a login session row and signs its token.
func (s *iamService) startSession(ctx context.Context, user *models.User, client audit.ClientInfo) (*LoginResult, error) {
	if s.tokens == nil {
		return nil, errors.New("login is not available: no token issuer configured")
	}

	now := s.now()
	sessionID := bunx.NewUUIDv7()
	token, expiresAt, err := s.tokens.Issue(user.ID, sessionID, now)
	if err != nil {
		return nil, err
	}

	row := &models.LoginSession{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: auth.HashToken(token),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Create(ctx, row); err != nil {
		return nil, err
	}
	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to update last login")
	}

	sess, err := s.resolver.Resolve(ctx, auth.Identity{UserID: user.ID, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Session: sess}, nil
}

func (s *iamService) Logout(ctx context.Context, id auth.Identity, client audit.ClientInfo) error {
	if err := s.sessions.Revoke(ctx, id.SessionID); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		UserID:   id.UserID,
		Action:   audit.ActionLogout,
		Resource: audit.UserResource(id.UserID),
		Details:  map[string]any{"sessionId": id.SessionID},
		Client:   client,
	})
	return nil
}
