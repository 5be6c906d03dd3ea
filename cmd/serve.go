package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/gatehouse/internal/apperr"
	"github.com/terraconstructs/gatehouse/internal/audit"
	"github.com/terraconstructs/gatehouse/internal/auth"
	"github.com/terraconstructs/gatehouse/internal/db/bunx"
	"github.com/terraconstructs/gatehouse/internal/logging"
	"github.com/terraconstructs/gatehouse/internal/middleware"
	"github.com/terraconstructs/gatehouse/internal/migrations"
	"github.com/terraconstructs/gatehouse/internal/repository"
	"github.com/terraconstructs/gatehouse/internal/server"
	"github.com/terraconstructs/gatehouse/internal/services/iam"
	"github.com/terraconstructs/gatehouse/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gatehouse server",
	Long:  `Starts the HTTP server with the authentication API, the enforced admin API and the guarded pages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger := logging.New(cfg.Log, os.Stdout)
		ctx := logger.WithContext(cmd.Context())

		shutdownTracing, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				logger.Warn().Err(err).Msg("tracing shutdown failed")
			}
		}()

		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)
		logger.Info().Str("type", string(bunx.DetectDatabaseType(cfg.DatabaseURL))).Msg("connected to database")

		if cfg.AutoMigrate {
			group, err := migrations.Apply(ctx, db)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logger.Info().Msg("no new migrations to apply")
			} else {
				logger.Info().Int64("group", group.ID).Msg("applied migrations")
			}
		}

		// Initialize repositories
		userRepo := repository.NewBunUserRepository(db)
		roleRepo := repository.NewBunRoleRepository(db)
		sessionRepo := repository.NewBunLoginSessionRepository(db)
		auditRepo := repository.NewBunAuditLogRepository(db)

		if _, err := roleRepo.GetDefault(ctx); apperr.Is(err, apperr.KindNotFound) {
			logger.Warn().Msg("no default role configured: registration and federated sign-up will fail until 'gatehouse db check' or 'gatehouse roles set-default' runs")
		} else if err != nil {
			return fmt.Errorf("failed to read default role: %w", err)
		}

		tokens, err := auth.NewTokenIssuer([]byte(cfg.Session.SigningKey), cfg.ServerURL, cfg.Session.TTL)
		if err != nil {
			return fmt.Errorf("failed to create token issuer: %w", err)
		}
		resolver := auth.NewResolver(userRepo)
		metrics := telemetry.NewMetrics()

		auditFile, err := audit.NewFileSink(cfg.Audit)
		if err != nil {
			return err
		}
		defer auditFile.Close()
		recorder := audit.NewRecorder(auditRepo, auditFile, logging.WithComponent(logger, "audit"), metrics)

		iamService, err := iam.NewIAMService(iam.IAMServiceDependencies{
			Users:       userRepo,
			Roles:       roleRepo,
			Permissions: repository.NewBunPermissionRepository(db),
			Sessions:    sessionRepo,
			Tokens:      tokens,
			Resolver:    resolver,
			Audit:       recorder,
			Metrics:     metrics,
			Logger:      logging.WithComponent(logger, "iam"),
		})
		if err != nil {
			return fmt.Errorf("create IAM service: %w", err)
		}

		var relyingParty *auth.RelyingParty
		if cfg.OIDC != nil {
			relyingParty, err = auth.NewRelyingParty(ctx, cfg.OIDC, cfg.Session.SecureCookie, server.SSOFailed)
			if err != nil {
				return fmt.Errorf("failed to create relying party: %w", err)
			}
			logger.Info().Str("issuer", cfg.OIDC.Issuer).Msg("federated login enabled")
		}

		trustedProxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			return fmt.Errorf("invalid ratelimit.trusted_proxies: %w", err)
		}
		rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.Burst).
			WithTrustedProxies(trustedProxies)

		corsOpts := server.DefaultCORSOptions(cfg.CORSOrigins)
		r := server.NewRouter(server.RouterOptions{
			IAM:      iamService,
			Resolver: resolver,
			AuthnDeps: middleware.AuthnDependencies{
				Verifier:   tokens,
				Sessions:   sessionRepo,
				CookieName: cfg.Session.CookieName,
				Logger:     logging.WithComponent(logger, "authn"),
			},
			RelyingParty:     relyingParty,
			RateLimiter:      rateLimiter,
			Metrics:          metrics,
			Logger:           logger,
			CORSOptions:      &corsOpts,
			SecureCookie:     cfg.Session.SecureCookie,
			GuardLoadTimeout: cfg.Guard.LoadTimeout,
			HealthHandler:    server.HealthHandler(db),
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", cfg.ServerAddr).Str("url", cfg.ServerURL).Msg("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			logger.Info().Msg("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
