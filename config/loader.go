package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/jonwraymond/todoauth/secret"
)

// EnvPrefix prefixes every environment override, e.g.
// TODOAUTH_AUTH_JWT_SECRET overrides auth.jwt.secret.
const EnvPrefix = "TODOAUTH"

// FileName is the config file base name searched for.
const FileName = "todoauth"

// SecretsDirEnv names the directory relative secretref:file: keys are
// read from.
const SecretsDirEnv = "TODOAUTH_SECRETS_DIR"

// SearchPaths returns the directories searched for todoauth.yaml, in order.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".todoauth"))
	}
	return append(paths, "/etc/todoauth")
}

// findConfigFile looks for todoauth.yaml or .yml in paths. The explicit
// extension keeps viper from matching a binary named todoauth.
func findConfigFile(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, FileName+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// Loader reads configuration.
type Loader struct {
	v        *viper.Viper
	file     string
	paths    []string
	resolver *secret.Resolver
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFile loads exactly this file instead of searching.
func WithFile(path string) LoaderOption {
	return func(l *Loader) { l.file = path }
}

// WithSearchPaths overrides SearchPaths.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.paths = paths }
}

// WithResolver sets the resolver for secret values. By default the env
// and file providers are available, files relative to SecretsDirEnv.
func WithResolver(r *secret.Resolver) LoaderOption {
	return func(l *Loader) { l.resolver = r }
}

// NewLoader creates a loader with defaults and environment binding.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{v: viper.New(), paths: SearchPaths()}
	for _, opt := range opts {
		opt(l)
	}
	SetDefaults(l.v)
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	return l
}

// Viper exposes the underlying instance, e.g. for binding CLI flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads the config file when one exists, applies environment
// overrides, resolves secret values and validates the result.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	file := l.file
	if file == "" {
		file = findConfigFile(l.paths)
	}
	if file != "" {
		l.v.SetConfigFile(file)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	resolver := l.resolver
	if resolver == nil {
		resolver = secret.Default(os.Getenv(SecretsDirEnv))
	}
	if err := resolver.ResolveFields(ctx, map[string]*string{
		"auth.jwt.secret":          &cfg.Auth.JWT.Secret,
		"bootstrap.admin_password": &cfg.Bootstrap.AdminPassword,
		"events.redis_addr":        &cfg.Events.RedisAddr,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.Auth.JWT.SignatureAlgorithm = strings.ToUpper(cfg.Auth.JWT.SignatureAlgorithm)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFileUsed returns the file Load read, or "".
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load is shorthand for NewLoader(opts...).Load(ctx).
func Load(ctx context.Context, opts ...LoaderOption) (*Config, error) {
	return NewLoader(opts...).Load(ctx)
}

// IsNotFound reports whether err means an explicitly named config file
// does not exist.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, os.ErrNotExist)
}
