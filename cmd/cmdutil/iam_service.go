package cmdutil

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/config"
	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/logging"
	"github.com/terraconstructs/gatehouse/internal/repository"
	"github.com/terraconstructs/gatehouse/internal/services/iam"
)

// IAMServiceBundle bundles the service with its underlying DB connection so callers can
// reuse the connection for other repositories when necessary.
type IAMServiceBundle struct {
	Service iam.Service
	DB      *bun.DB

	auditFile io.Closer
}

// Close releases the audit file and the underlying database connection.
func (b *IAMServiceBundle) Close() {
	if b == nil {
		return
	}
	if b.auditFile != nil {
		b.auditFile.Close()
	}
	if b.DB != nil {
		bunx.Close(b.DB)
	}
}

// NewIAMServiceBundle centralizes IAM service construction for CLI commands.
// Operator changes are audited to the same database table and audit file as the server.
// Login operations are unavailable: the bundle carries no token issuer.
func NewIAMServiceBundle(cfg *config.Config) (*IAMServiceBundle, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger := Logger(cfg)

	var secondary io.WriteCloser
	if cfg.Audit.File != "" {
		secondary, err = audit.NewFileSink(cfg.Audit)
		if err != nil {
			bunx.Close(db)
			return nil, err
		}
	}

	recorder := audit.NewRecorder(repository.NewBunAuditLogRepository(db), secondary, logger, nil)

	svc, err := iam.NewIAMService(iam.IAMServiceDependencies{
		Users:       repository.NewBunUserRepository(db),
		Roles:       repository.NewBunRoleRepository(db),
		Permissions: repository.NewBunPermissionRepository(db),
		Sessions:    repository.NewBunLoginSessionRepository(db),
		Audit:       recorder,
		Logger:      logger,
	})
	if err != nil {
		if secondary != nil {
			secondary.Close()
		}
		bunx.Close(db)
		return nil, fmt.Errorf("failed to create IAM service: %w", err)
	}

	bundle := &IAMServiceBundle{Service: svc, DB: db}
	if secondary != nil {
		bundle.auditFile = secondary
	}
	return bundle, nil
}

// Logger returns the console logger CLI commands report warnings through.
func Logger(cfg *config.Config) zerolog.Logger {
	return logging.WithComponent(logging.New(cfg.Log, os.Stderr), "cli")
}
