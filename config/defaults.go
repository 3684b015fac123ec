package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultAddr          = ":8080"
	DefaultOpsAddr       = ":9090"
	DefaultAlgorithm     = "HS512"
	DefaultExpTime       = 5
	DefaultDatabasePath  = "todoauth.db"
	DefaultEventsDriver  = "memory"
	DefaultServiceName   = "todoauth"
	DefaultLoginRate     = 1.0
	DefaultLoginBurst    = 5
	DefaultMaxConcurrent = 10
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.ops_addr", DefaultOpsAddr)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("auth.jwt.use_static_secret", false)
	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.signature_algorithm", DefaultAlgorithm)
	v.SetDefault("auth.jwt.exp_time", DefaultExpTime)
	v.SetDefault("auth.jwt.exp_time_remember_me", 0)

	v.SetDefault("auth.login.lookup_timeout", 5*time.Second)
	v.SetDefault("auth.login.max_concurrent", DefaultMaxConcurrent)
	v.SetDefault("auth.login.max_wait", 2*time.Second)
	v.SetDefault("auth.login.rate", DefaultLoginRate)
	v.SetDefault("auth.login.burst", DefaultLoginBurst)

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("events.driver", DefaultEventsDriver)
	v.SetDefault("events.redis_addr", "localhost:6379")
	v.SetDefault("events.key_prefix", "todoauth:events:")

	v.SetDefault("cache.role_ttl", 5*time.Minute)

	v.SetDefault("bootstrap.admin_username", "")
	v.SetDefault("bootstrap.admin_password", "")
	v.SetDefault("bootstrap.admin_email", "")

	v.SetDefault("observe.service_name", DefaultServiceName)
	v.SetDefault("observe.version", "")
	v.SetDefault("observe.tracing.enabled", false)
	v.SetDefault("observe.tracing.exporter", "none")
	v.SetDefault("observe.tracing.sample_pct", 1.0)
	v.SetDefault("observe.metrics.enabled", true)
	v.SetDefault("observe.metrics.exporter", "prometheus")
	v.SetDefault("observe.logging.enabled", true)
	v.SetDefault("observe.logging.level", "info")
}
