package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable (GATEHOUSE_DATABASE_URL, GATEHOUSE_SESSION_TTL, ...).
const EnvPrefix = "GATEHOUSE"

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN). postgres:// selects PostgreSQL, anything else SQLite.
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Public base URL, used for cookie security and redirects
	ServerURL string

	// Maximum database connection pool size (PostgreSQL only)
	MaxDBConnections int

	// Apply pending migrations when the server starts
	AutoMigrate bool

	// Enable debug logging
	Debug bool

	Log           LogConfig
	Session       SessionConfig
	Audit         AuditConfig
	RateLimit     RateLimitConfig
	Guard         GuardConfig
	OIDC          *OIDCConfig // nil when federated login is not configured
	Observability ObservabilityConfig

	// Allowed CORS origins for the JSON API
	CORSOrigins []string
}

// LogConfig configures the service logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or console
}

// SessionConfig configures signed session tokens and the session cookie.
type SessionConfig struct {
	SigningKey   string
	TTL          time.Duration
	CookieName   string
	SecureCookie bool
}

// AuditConfig configures the secondary append-only audit file.
type AuditConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// RateLimitConfig bounds login and registration attempts per client IP.
type RateLimitConfig struct {
	LoginPerMinute float64
	Burst          int

	// Reverse proxies (addresses or CIDRs) whose X-Forwarded-For is believed.
	TrustedProxies []string
}

// GuardConfig configures server-rendered page guards.
type GuardConfig struct {
	// LoadTimeout bounds session resolution before the loading placeholder is shown.
	LoadTimeout time.Duration
}

// OIDCConfig holds the external identity provider used for federated login.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// ObservabilityConfig configures OpenTelemetry tracing.
type ObservabilityConfig struct {
	OTLPEndpoint string
	OTLPInsecure bool
	ServiceName  string
	Environment  string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", "localhost:8080")
	v.SetDefault("max_db_connections", 25)
	v.SetDefault("auto_migrate", false)
	v.SetDefault("debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("session.cookie_name", "gatehouse.session")
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("audit.file", "logs/audit.log")
	v.SetDefault("audit.max_size_mb", 100)
	v.SetDefault("audit.max_backups", 10)
	v.SetDefault("ratelimit.login_per_minute", 10)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("guard.load_timeout", "3s")
	v.SetDefault("oidc.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("otel.service_name", "gatehouse")
	v.SetDefault("otel.environment", "development")
}

// Load reads configuration from the global viper instance: defaults, then an optional
// config file (read by the caller), then GATEHOUSE_ prefixed environment variables.
func Load() (*Config, error) {
	v := viper.GetViper()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Nested keys are read with explicit Get calls: AutomaticEnv does not populate
	// nested structs through Unmarshal.
	cfg := &Config{
		DatabaseURL:      v.GetString("database_url"),
		ServerAddr:       v.GetString("server_addr"),
		ServerURL:        v.GetString("server_url"),
		MaxDBConnections: v.GetInt("max_db_connections"),
		AutoMigrate:      v.GetBool("auto_migrate"),
		Debug:            v.GetBool("debug"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Session: SessionConfig{
			SigningKey:   v.GetString("session.signing_key"),
			TTL:          v.GetDuration("session.ttl"),
			CookieName:   v.GetString("session.cookie_name"),
			SecureCookie: v.GetBool("session.secure_cookie"),
		},
		Audit: AuditConfig{
			File:       v.GetString("audit.file"),
			MaxSizeMB:  v.GetInt("audit.max_size_mb"),
			MaxBackups: v.GetInt("audit.max_backups"),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: v.GetFloat64("ratelimit.login_per_minute"),
			Burst:          v.GetInt("ratelimit.burst"),
			TrustedProxies: splitList(v.GetStringSlice("ratelimit.trusted_proxies")),
		},
		Guard: GuardConfig{
			LoadTimeout: v.GetDuration("guard.load_timeout"),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: v.GetString("otel.endpoint"),
			OTLPInsecure: v.GetBool("otel.insecure"),
			ServiceName:  v.GetString("otel.service_name"),
			Environment:  v.GetString("otel.environment"),
		},
		CORSOrigins: splitList(v.GetStringSlice("cors.origins")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (set %s_DATABASE_URL)", EnvPrefix)
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server_url is required (set %s_SERVER_URL)", EnvPrefix)
	}

	oidcCfg, err := loadOIDC(v)
	if err != nil {
		return nil, err
	}
	cfg.OIDC = oidcCfg

	return cfg, nil
}

// loadOIDC returns nil when no issuer is configured.
func loadOIDC(v *viper.Viper) (*OIDCConfig, error) {
	issuer := v.GetString("oidc.issuer")
	if issuer == "" {
		return nil, nil
	}

	oidcCfg := &OIDCConfig{
		Issuer:       issuer,
		ClientID:     v.GetString("oidc.client_id"),
		ClientSecret: v.GetString("oidc.client_secret"),
		RedirectURI:  v.GetString("oidc.redirect_uri"),
		Scopes:       splitList(v.GetStringSlice("oidc.scopes")),
	}

	required := map[string]string{
		"CLIENT_ID":     oidcCfg.ClientID,
		"CLIENT_SECRET": oidcCfg.ClientSecret,
		"REDIRECT_URI":  oidcCfg.RedirectURI,
	}
	for _, key := range []string{"CLIENT_ID", "CLIENT_SECRET", "REDIRECT_URI"} {
		if required[key] == "" {
			return nil, fmt.Errorf("%s_OIDC_%s is required when %s_OIDC_ISSUER is set", EnvPrefix, key, EnvPrefix)
		}
	}
	return oidcCfg, nil
}

// Validate checks settings that are only required to serve traffic.
func (c *Config) Validate() error {
	if len(c.Session.SigningKey) < 32 {
		return fmt.Errorf("session.signing_key must be at least 32 bytes (set %s_SESSION_SIGNING_KEY)", EnvPrefix)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session.ttl must be positive")
	}
	if c.Audit.File == "" {
		return fmt.Errorf("audit.file is required")
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated environment values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
