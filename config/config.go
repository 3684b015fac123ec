// Package config loads the todoauth configuration from a YAML file and
// TODOAUTH_* environment variables.
package config

import (
	"time"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/cache"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/resilience"
	"github.com/jonwraymond/todoauth/store"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Events    EventsConfig    `mapstructure:"events"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Observe   observe.Config  `mapstructure:"observe"`
}

// ServerConfig configures the API and ops listeners.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required,hostname_port"`
	OpsAddr         string        `mapstructure:"ops_addr" validate:"omitempty,hostname_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// AuthConfig configures token issuance and login.
type AuthConfig struct {
	JWT   JWTConfig   `mapstructure:"jwt"`
	Login LoginConfig `mapstructure:"login"`
}

// JWTConfig configures the signing key and token lifetimes.
type JWTConfig struct {
	UseStaticSecret    bool   `mapstructure:"use_static_secret"`
	Secret             string `mapstructure:"secret"`
	SignatureAlgorithm string `mapstructure:"signature_algorithm" validate:"jwtalg"`

	// ExpTime is the token lifetime in minutes.
	ExpTime int `mapstructure:"exp_time" validate:"min=1"`

	// ExpTimeRememberMe is the remember-me lifetime in days. Zero
	// disables remember-me.
	ExpTimeRememberMe int `mapstructure:"exp_time_remember_me" validate:"min=0"`
}

// LoginConfig bounds the credential exchange.
type LoginConfig struct {
	LookupTimeout time.Duration `mapstructure:"lookup_timeout" validate:"min=0"`
	MaxConcurrent int           `mapstructure:"max_concurrent" validate:"min=1"`
	MaxWait       time.Duration `mapstructure:"max_wait" validate:"min=0"`

	// Rate and Burst limit login attempts per client address.
	Rate  float64 `mapstructure:"rate" validate:"gt=0"`
	Burst int     `mapstructure:"burst" validate:"min=1"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	Path        string        `mapstructure:"path" validate:"required"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout" validate:"min=0"`
}

// EventsConfig selects the event broker.
type EventsConfig struct {
	Driver    string `mapstructure:"driver" validate:"oneof=memory redis"`
	RedisAddr string `mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// CacheConfig configures the role catalog cache.
type CacheConfig struct {
	RoleTTL time.Duration `mapstructure:"role_ttl" validate:"min=0"`
}

// BootstrapConfig optionally creates an administrator on startup.
type BootstrapConfig struct {
	AdminUsername string `mapstructure:"admin_username"`
	AdminPassword string `mapstructure:"admin_password"`
	AdminEmail    string `mapstructure:"admin_email" validate:"omitempty,email"`
}

// Enabled reports whether a bootstrap admin is configured.
func (b BootstrapConfig) Enabled() bool {
	return b.AdminUsername != ""
}

// KeyConfig returns the signing key settings.
func (c *Config) KeyConfig() auth.KeyConfig {
	return auth.KeyConfig{
		UseStaticSecret: c.Auth.JWT.UseStaticSecret,
		Secret:          c.Auth.JWT.Secret,
		Algorithm:       c.Auth.JWT.SignatureAlgorithm,
	}
}

// TokenConfig returns the token lifetimes.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Expiration:           time.Duration(c.Auth.JWT.ExpTime) * time.Minute,
		RememberMeExpiration: time.Duration(c.Auth.JWT.ExpTimeRememberMe) * 24 * time.Hour,
	}
}

// CredentialConfig returns the login bounds.
func (c *Config) CredentialConfig() auth.CredentialConfig {
	return auth.CredentialConfig{
		LookupTimeout: c.Auth.Login.LookupTimeout,
		MaxConcurrent: c.Auth.Login.MaxConcurrent,
		MaxWait:       c.Auth.Login.MaxWait,
	}
}

// LoginRateLimit returns the per-client login rate limit.
func (c *Config) LoginRateLimit() resilience.RateLimiterConfig {
	return resilience.RateLimiterConfig{
		Rate:  c.Auth.Login.Rate,
		Burst: c.Auth.Login.Burst,
	}
}

// StoreConfig returns the database settings.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Path:        c.Database.Path,
		BusyTimeout: c.Database.BusyTimeout,
	}
}

// RoleCachePolicy returns the role catalog cache policy.
func (c *Config) RoleCachePolicy() cache.Policy {
	p := cache.DefaultPolicy()
	p.DefaultTTL = c.Cache.RoleTTL
	return p
}
