package iam

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/models"
	"github.com/terraconstructs/gatehouse/internal/repository"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
	"github.com/terraconstructs/gatehouse/internal/validation"
)

func (s *iamService) Register(ctx context.Context, in RegisterInput, client audit.ClientInfo) (*UserSummary, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.Register")
	defer span.End()

	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, in.Email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: &hash,
	}
	if err := s.users.CreateWithDefaultRole(ctx, user); err != nil {
		if apperr.Is(err, apperr.KindConfiguration) {
			s.logger.Error().Err(err).Msg("registration rejected: no default role is configured")
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrUserID, user.ID))

	s.record(ctx, audit.Entry{
		UserID:   user.ID,
		Action:   audit.ActionCreate,
		Resource: audit.UserResource(user.ID),
		Details: map[string]any{
			"email":  user.Email,
			"role":   user.RoleName(),
			"source": "registration",
		},
		Client: client,
	})

	return &UserSummary{ID: user.ID, Email: user.Email, Name: user.Name}, nil
}

func (s *iamService) CreateUser(ctx context.Context, in CreateUserInput) (*UserView, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.ensureEmailAvailable(ctx, in.Email); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{Email: in.Email, Name: in.Name, PasswordHash: &hash}

	if in.RoleName == "" {
		err = s.users.CreateWithDefaultRole(ctx, user)
	} else {
		var role *models.Role
		role, err = s.roles.GetByName(ctx, in.RoleName)
		if err != nil {
			return nil, err
		}
		user.RoleID = &role.ID
		user.Role = role
		err = s.users.Create(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.Entry{
		UserID:   SystemActorID,
		Action:   audit.ActionCreate,
		Resource: audit.UserResource(user.ID),
		Details: map[string]any{
			"email":  user.Email,
			"role":   user.RoleName(),
			"source": "cli",
		},
		Client: audit.ClientInfoFromRequest(nil),
	})

	view := toUserView(user)
	return &view, nil
}

func (s *iamService) SetPassword(ctx context.Context, email, password string) error {
	in := SetPasswordInput{Email: normalizeEmail(email), Password: password}
	if err := validation.Struct(in); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return err
	}
	federated := user.PasswordHash == nil
	if err := s.users.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	s.record(ctx, audit.Entry{
		UserID:   SystemActorID,
		Action:   audit.ActionPasswordChange,
		Resource: audit.UserResource(user.ID),
		Details: map[string]any{
			"email":              user.Email,
			"addedLocalPassword": federated,
			"source":             "cli",
		},
		Client: audit.ClientInfoFromRequest(nil),
	})
	return nil
}

func (s *iamService) ensureEmailAvailable(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return repository.ErrEmailTaken
	case apperr.Is(err, apperr.KindNotFound):
		return nil
	default:
		return fmt.Errorf("check email: %w", err)
	}
}
