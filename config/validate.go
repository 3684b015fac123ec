package config

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/todoauth/validation"
)

// ErrInvalid wraps every configuration validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Validate checks struct rules and cross-field rules.
func (c *Config) Validate() error {
	if err := validation.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateSecret(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateListeners(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateEvents(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.validateBootstrap(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := c.Observe.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// validateSecret requires a secret in static mode. Key strength is
// checked when the key is derived.
func (c *Config) validateSecret() error {
	if c.Auth.JWT.UseStaticSecret && c.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret is required when auth.jwt.use_static_secret is true")
	}
	return nil
}

func (c *Config) validateListeners() error {
	if c.Server.OpsAddr != "" && c.Server.OpsAddr == c.Server.Addr {
		return errors.New("server.ops_addr must differ from server.addr")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.Driver == "redis" && c.Events.RedisAddr == "" {
		return errors.New("events.redis_addr is required when events.driver is redis")
	}
	return nil
}

func (c *Config) validateBootstrap() error {
	b := c.Bootstrap
	if !b.Enabled() {
		return nil
	}
	if b.AdminPassword == "" || b.AdminEmail == "" {
		return errors.New("bootstrap.admin_password and bootstrap.admin_email are required with bootstrap.admin_username")
	}
	return nil
}
