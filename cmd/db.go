package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/migrations"
	"github.com/terraconstructs/gatehouse/internal/repository"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing database migrations and checking the access-control seed data.`,
}

// withDB opens a single-connection handle for the duration of fn.
func withDB(fn func(ctx context.Context, db *bun.DB) error) error {
	db, err := bunx.NewDB(cfg.DatabaseURL, 1)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer bunx.Close(db)

	return fn(context.Background(), db)
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize migration tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(ctx context.Context, db *bun.DB) error {
			if err := migrate.NewMigrator(db, migrations.Migrations).Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize migrator: %w", err)
			}
			log.Printf("Migration tables initialized")
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long:  `Initializes the migration tables if needed and applies all pending migrations under the migration lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(ctx context.Context, db *bun.DB) error {
			group, err := migrations.Apply(ctx, db)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Printf("No new migrations to apply")
			} else {
				log.Printf("Applied migration group %d (%s)", group.ID, group.Migrations)
			}
			return nil
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(ctx context.Context, db *bun.DB) error {
			ms, err := migrate.NewMigrator(db, migrations.Migrations).MigrationsWithStatus(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			log.Printf("Migrations:")
			for _, m := range ms {
				status := "pending"
				if m.GroupID > 0 {
					status = fmt.Sprintf("applied (group %d)", m.GroupID)
				}
				log.Printf("  %s: %s", m.Name, status)
			}
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last migration group",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(ctx context.Context, db *bun.DB) error {
			migrator := migrate.NewMigrator(db, migrations.Migrations)
			if err := migrator.Lock(ctx); err != nil {
				return fmt.Errorf("failed to acquire migration lock: %w", err)
			}
			defer func() {
				if err := migrator.Unlock(ctx); err != nil {
					log.Printf("Warning: failed to release migration lock: %v", err)
				}
			}()

			group, err := migrator.Rollback(ctx)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if group.IsZero() {
				log.Printf("No migrations to roll back")
			} else {
				log.Printf("Rolled back migration group %d", group.ID)
			}
			return nil
		})
	},
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify connectivity and the default role",
	Long: `Pings the database, reports the number of users and makes sure a default role exists.
When none is marked default, the USER role is promoted (or created without permissions).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(ctx context.Context, db *bun.DB) error {
			log.Printf("Database connection OK (%s)", bunx.DetectDatabaseType(cfg.DatabaseURL))

			count, err := repository.NewBunUserRepository(db).Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to count users: %w", err)
			}
			log.Printf("Users: %d", count)

			role, created, err := repository.NewBunRoleRepository(db).EnsureDefault(ctx)
			if err != nil {
				return fmt.Errorf("failed to ensure default role: %w", err)
			}
			if created {
				log.Printf("Default role: %s (written)", role.Name)
			} else {
				log.Printf("Default role: %s", role.Name)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	dbCmd.AddCommand(dbCheckCmd)
}
