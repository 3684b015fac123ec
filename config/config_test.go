package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/todoauth/secret"
	"github.com/jonwraymond/todoauth/validation"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "todoauth.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithSearchPaths(t.TempDir()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != DefaultAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultAddr)
	}
	if cfg.Auth.JWT.SignatureAlgorithm != DefaultAlgorithm {
		t.Errorf("SignatureAlgorithm = %q, want %q", cfg.Auth.JWT.SignatureAlgorithm, DefaultAlgorithm)
	}
	if cfg.Auth.JWT.UseStaticSecret {
		t.Error("UseStaticSecret should default to false")
	}
	if got := cfg.TokenConfig().Expiration; got != 5*time.Minute {
		t.Errorf("TokenConfig().Expiration = %v, want 5m", got)
	}
	if got := cfg.TokenConfig().RememberMeExpiration; got != 0 {
		t.Errorf("RememberMeExpiration = %v, want 0", got)
	}
	if cfg.Events.Driver != "memory" {
		t.Errorf("Events.Driver = %q, want memory", cfg.Events.Driver)
	}
	if cfg.Observe.ServiceName != DefaultServiceName {
		t.Errorf("Observe.ServiceName = %q", cfg.Observe.ServiceName)
	}
	if cfg.Bootstrap.Enabled() {
		t.Error("bootstrap should be disabled by default")
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:8181"
  read_timeout: 3s
auth:
  jwt:
    use_static_secret: true
    secret: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
    signature_algorithm: hs256
    exp_time: 30
    exp_time_remember_me: 7
database:
  path: ":memory:"
`)
	cfg, err := Load(context.Background(), WithFile(path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8181" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	key := cfg.KeyConfig()
	if !key.UseStaticSecret || key.Algorithm != "HS256" {
		t.Errorf("KeyConfig() = %+v", key)
	}
	tc := cfg.TokenConfig()
	if tc.Expiration != 30*time.Minute {
		t.Errorf("Expiration = %v, want 30m", tc.Expiration)
	}
	if tc.RememberMeExpiration != 7*24*time.Hour {
		t.Errorf("RememberMeExpiration = %v, want 168h", tc.RememberMeExpiration)
	}
	if cfg.StoreConfig().Path != ":memory:" {
		t.Errorf("StoreConfig().Path = %q", cfg.StoreConfig().Path)
	}
}

func TestLoad_SearchPath(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \"127.0.0.1:8282\"\n")
	l := NewLoader(WithSearchPaths(t.TempDir(), filepath.Dir(path)))
	cfg, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:8282" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if l.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", l.ConfigFileUsed(), path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), WithFile(filepath.Join(t.TempDir(), "nope.yaml")))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TODOAUTH_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("TODOAUTH_AUTH_JWT_EXP_TIME", "15")
	t.Setenv("TODOAUTH_AUTH_LOGIN_MAX_WAIT", "250ms")
	t.Setenv("TODOAUTH_OBSERVE_LOGGING_LEVEL", "debug")

	cfg, err := Load(context.Background(), WithSearchPaths(t.TempDir()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Auth.JWT.ExpTime != 15 {
		t.Errorf("ExpTime = %d, want 15", cfg.Auth.JWT.ExpTime)
	}
	if cfg.CredentialConfig().MaxWait != 250*time.Millisecond {
		t.Errorf("MaxWait = %v", cfg.CredentialConfig().MaxWait)
	}
	if cfg.Observe.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Observe.Logging.Level)
	}
}

func TestLoad_SecretReferences(t *testing.T) {
	const jwtSecret = "env-provided-secret-env-provided-secret-env-provided-secret-0001"
	t.Setenv("TODOAUTH_TEST_JWT", jwtSecret)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "admin"), []byte("s3cretpass\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, `
auth:
  jwt:
    use_static_secret: true
    secret: "secretref:env:TODOAUTH_TEST_JWT"
bootstrap:
  admin_username: administrator
  admin_email: admin@example.com
  admin_password: "secretref:file:admin"
`)
	resolver := secret.NewResolver(secret.NewEnvProvider(), secret.NewFileProvider(dir))
	cfg, err := Load(context.Background(), WithFile(path), WithResolver(resolver))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWT.Secret != jwtSecret {
		t.Errorf("Secret not resolved: %q", cfg.Auth.JWT.Secret)
	}
	if cfg.Bootstrap.AdminPassword != "s3cretpass" {
		t.Errorf("AdminPassword = %q", cfg.Bootstrap.AdminPassword)
	}
	if !cfg.Bootstrap.Enabled() {
		t.Error("bootstrap should be enabled")
	}
}

func TestLoad_MissingEnvReference(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt:
    use_static_secret: true
    secret: "${TODOAUTH_TEST_UNSET_SECRET}"
`)
	_, err := Load(context.Background(), WithFile(path))
	if !errors.Is(err, secret.ErrMissingEnv) {
		t.Fatalf("Load() error = %v, want ErrMissingEnv", err)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(context.Background(), WithSearchPaths(t.TempDir()))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField bool
	}{
		{name: "static without secret", mutate: func(c *Config) { c.Auth.JWT.UseStaticSecret = true }},
		{name: "unknown algorithm", mutate: func(c *Config) { c.Auth.JWT.SignatureAlgorithm = "RS256" }, wantField: true},
		{name: "zero expiration", mutate: func(c *Config) { c.Auth.JWT.ExpTime = 0 }, wantField: true},
		{name: "negative remember me", mutate: func(c *Config) { c.Auth.JWT.ExpTimeRememberMe = -1 }, wantField: true},
		{name: "bad addr", mutate: func(c *Config) { c.Server.Addr = "not an addr" }, wantField: true},
		{name: "same listeners", mutate: func(c *Config) { c.Server.OpsAddr = c.Server.Addr }},
		{name: "unknown driver", mutate: func(c *Config) { c.Events.Driver = "kafka" }, wantField: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Events.Driver = "redis"; c.Events.RedisAddr = "" }},
		{name: "bootstrap without password", mutate: func(c *Config) {
			c.Bootstrap.AdminUsername = "administrator"
			c.Bootstrap.AdminEmail = "admin@example.com"
		}},
		{name: "zero login burst", mutate: func(c *Config) { c.Auth.Login.Burst = 0 }, wantField: true},
		{name: "missing service name", mutate: func(c *Config) { c.Observe.ServiceName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
			if got := errors.Is(err, validation.ErrInvalid); got != tt.wantField {
				t.Errorf("field error = %v, want %v (%v)", got, tt.wantField, err)
			}
		})
	}
}

func TestRoleCachePolicy(t *testing.T) {
	cfg := validConfig(t)
	cfg.Cache.RoleTTL = 0
	if cfg.RoleCachePolicy().Enabled() {
		t.Error("zero TTL should disable the role cache")
	}
	cfg.Cache.RoleTTL = time.Minute
	if !cfg.RoleCachePolicy().Enabled() {
		t.Error("positive TTL should enable the role cache")
	}
}
