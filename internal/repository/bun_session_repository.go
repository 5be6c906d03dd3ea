package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/db/models"
)

// BunLoginSessionRepository implements LoginSessionRepository using Bun ORM
type BunLoginSessionRepository struct {
	db *bun.DB
}

// NewBunLoginSessionRepository creates a new Bun-based login session repository
func NewBunLoginSessionRepository(db *bun.DB) *BunLoginSessionRepository {
	return &BunLoginSessionRepository{db: db}
}

// Create inserts a new login session
func (r *BunLoginSessionRepository) Create(ctx context.Context, session *models.LoginSession) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.LastUsedAt = session.CreatedAt

	_, err := r.db.NewInsert().
		Model(session).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID retrieves a login session by ID
func (r *BunLoginSessionRepository) GetByID(ctx context.Context, id string) (*models.LoginSession, error) {
	session := new(models.LoginSession)
	err := r.db.NewSelect().
		Model(session).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("session")
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// Touch updates the last_used_at timestamp for a session
func (r *BunLoginSessionRepository) Touch(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.LoginSession)(nil)).
		Set("last_used_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last used: %w", err)
	}
	return nil
}

// Revoke marks a session as revoked. Revoking an already revoked session is a no-op.
func (r *BunLoginSessionRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.NewUpdate().
		Model((*models.LoginSession)(nil)).
		Set("revoked_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every active session of a user
func (r *BunLoginSessionRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.LoginSession)(nil)).
		Set("revoked_at = ?", time.Now().UTC()).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}
	return nil
}
