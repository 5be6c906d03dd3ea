package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/db/models"
)

// BunAuditLogRepository implements AuditLogRepository using Bun ORM
type BunAuditLogRepository struct {
	db *bun.DB
}

// NewBunAuditLogRepository creates a new Bun-based audit log repository
func NewBunAuditLogRepository(db *bun.DB) *BunAuditLogRepository {
	return &BunAuditLogRepository{db: db}
}

// Create appends an audit entry
func (r *BunAuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = bunx.NewUUIDv7()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Details == nil {
		entry.Details = models.AuditDetails{}
	}

	_, err := r.db.NewInsert().
		Model(entry).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
