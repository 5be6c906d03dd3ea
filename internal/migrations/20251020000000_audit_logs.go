package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20251020000000, down_20251020000000)
}

// up_20251020000000 creates the append-only audit_logs table
func up_20251020000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating audit_logs table...")
	_, err := db.NewCreateTable().
		Model((*models.AuditLog)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_action ON audit_logs(action)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs("timestamp")`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create audit_logs index: %w", err)
		}
	}
	fmt.Println(" OK")

	return nil
}

func down_20251020000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping audit_logs table...")
	if _, err := db.ExecContext(ctx, dropTableSQL(db, "audit_logs")); err != nil {
		return fmt.Errorf("failed to drop audit_logs table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
