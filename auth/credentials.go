package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/todoauth/resilience"
)

// UserDetails is what the user lookup returns for a login.
type UserDetails struct {
	Username     string
	PasswordHash string
	Authorities  []string
	Disabled     bool
	Locked       bool
}

// UserLookup finds users by username.
//
// Contract:
// - Returns ErrUserNotFound (possibly wrapped) when no user matches.
// - Must honor context cancellation.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*UserDetails, error)
}

// UserLookupFunc adapts a function to UserLookup.
type UserLookupFunc func(ctx context.Context, username string) (*UserDetails, error)

// FindByUsername calls f(ctx, username).
func (f UserLookupFunc) FindByUsername(ctx context.Context, username string) (*UserDetails, error) {
	return f(ctx, username)
}

// PasswordMatcher compares a plaintext password with a stored hash.
type PasswordMatcher interface {
	Matches(password, hash string) (bool, error)
}

// AuthenticationResponse is returned by a successful login.
type AuthenticationResponse struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
}

// CredentialConfig configures the credential authenticator.
type CredentialConfig struct {
	// LookupTimeout bounds the user lookup.
	// Default: 5 seconds
	LookupTimeout time.Duration

	// MaxConcurrent bounds concurrent password comparisons.
	// Default: 10
	MaxConcurrent int

	// MaxWait is how long a login waits for a comparison slot.
	// Default: 0 (fail immediately)
	MaxWait time.Duration
}

// CredentialAuthenticator exchanges a username and password for a token.
type CredentialAuthenticator struct {
	users    UserLookup
	matcher  PasswordMatcher
	codec    *Codec
	lookupTimeout time.Duration
	bulkhead      *resilience.Bulkhead
}

// NewCredentialAuthenticator creates a credential authenticator.
func NewCredentialAuthenticator(users UserLookup, matcher PasswordMatcher, codec *Codec, config CredentialConfig) *CredentialAuthenticator {
	return &CredentialAuthenticator{
		users:         users,
		matcher:       matcher,
		codec:         codec,
		lookupTimeout: config.LookupTimeout,
		bulkhead: resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: config.MaxConcurrent,
			MaxWait:       config.MaxWait,
		}),
	}
}

// Comparisons reports the password comparison bulkhead.
func (a *CredentialAuthenticator) Comparisons() resilience.BulkheadStats {
	return a.bulkhead.Stats()
}

// Authenticate verifies the credentials and issues a token.
//
// An unknown user, a wrong password, or a disabled or locked account all
// return an error wrapping ErrInvalidCredentials. Other errors are
// infrastructure failures (lookup timeout, comparison capacity).
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, username, password string, rememberMe bool) (*AuthenticationResponse, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}

	user, err := resilience.Within(ctx, a.lookupTimeout, func(ctx context.Context) (*UserDetails, error) {
		return a.users.FindByUsername(ctx, username)
	})
	switch {
	case errors.Is(err, ErrUserNotFound):
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	case err != nil:
		return nil, fmt.Errorf("auth: lookup user: %w", err)
	case user == nil:
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidCredentials)
	}

	ok, err := resilience.Isolate(ctx, a.bulkhead, func(context.Context) (bool, error) {
		return a.matcher.Matches(password, user.PasswordHash)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrBulkheadFull) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("auth: compare password: %w", err)
		}
		// A corrupt stored hash is indistinguishable from a wrong password
		// to the caller.
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: bad password", ErrInvalidCredentials)
	}
	if user.Disabled || user.Locked {
		return nil, fmt.Errorf("%w: account unavailable", ErrInvalidCredentials)
	}

	tok, err := a.codec.Issue(user.Username, user.Authorities, rememberMe)
	if err != nil {
		return nil, err
	}
	return &AuthenticationResponse{Token: tok.Value, Expiration: tok.ExpiresAt}, nil
}
