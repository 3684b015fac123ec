package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenExpiration is the token lifetime when none is configured.
const DefaultTokenExpiration = 5 * time.Minute

// rolesSeparator joins authorities inside the roles claim.
const rolesSeparator = ","

// Claims is the token payload.
type Claims struct {
	// Roles is the comma-joined authority list.
	Roles string `json:"roles,omitempty"`

	jwt.RegisteredClaims
}

// Authorities splits the roles claim. An absent or empty claim yields
// an empty slice.
func (c *Claims) Authorities() []string {
	if c == nil || c.Roles == "" {
		return []string{}
	}
	parts := strings.Split(c.Roles, rolesSeparator)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return normalizeAuthorities(parts)
}

// Token is an issued bearer token and the values encoded in it.
type Token struct {
	Value       string
	Subject     string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenConfig configures token lifetimes.
type TokenConfig struct {
	// Expiration is the default lifetime.
	// Default: 5 minutes
	Expiration time.Duration

	// RememberMeExpiration is the lifetime for remember-me logins.
	// Zero disables remember-me and falls back to Expiration.
	RememberMeExpiration time.Duration
}

// TokenError is returned by Codec when a token fails validation. Its
// message is the jwt library message, unchanged.
type TokenError struct {
	// Kind is ErrTokenMalformed, ErrTokenExpired or ErrTokenSignature.
	Kind error

	// Err is the underlying jwt error.
	Err error
}

// Error returns the jwt library message.
func (e *TokenError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes both the kind and the jwt error to errors.Is.
func (e *TokenError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithClock sets the time source used for issuance and validation.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec issues and parses tokens against a single signing key.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	key    *SigningKey
	config TokenConfig
	now    func() time.Time
	parser *jwt.Parser
	lax    *jwt.Parser
}

// NewCodec creates a token codec.
func NewCodec(key *SigningKey, config TokenConfig, opts ...CodecOption) (*Codec, error) {
	if key == nil {
		return nil, errors.New("auth: signing key is required")
	}
	if config.Expiration <= 0 {
		config.Expiration = DefaultTokenExpiration
	}
	if config.RememberMeExpiration < 0 {
		config.RememberMeExpiration = 0
	}

	c := &Codec{
		key:    key,
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	methods := []string{key.Algorithm()}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	c.lax = jwt.NewParser(
		jwt.WithValidMethods(methods),
		jwt.WithoutClaimsValidation(),
	)
	return c, nil
}

// Algorithm returns the signature algorithm in use.
func (c *Codec) Algorithm() string {
	return c.key.Algorithm()
}

// KeyMode returns how the signing key was obtained.
func (c *Codec) KeyMode() KeyMode {
	return c.key.Mode()
}

// RememberMeEnabled reports whether a remember-me lifetime is configured.
func (c *Codec) RememberMeEnabled() bool {
	return c.config.RememberMeExpiration > 0
}

// Issue signs a new token for subject.
//
// The token expires after the remember-me lifetime when rememberMe is set
// and that lifetime is configured, otherwise after the default lifetime.
func (c *Codec) Issue(subject string, authorities []string, rememberMe bool) (*Token, error) {
	lifetime := c.config.Expiration
	if rememberMe && c.RememberMeEnabled() {
		lifetime = c.config.RememberMeExpiration
	}

	now := c.now()
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(lifetime))
	authorities = normalizeAuthorities(authorities)

	claims := &Claims{
		Roles: strings.Join(authorities, rolesSeparator),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(c.key.Method(), claims).SignedString(c.key.key)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}

	return &Token{
		Value:       signed,
		Subject:     subject,
		Authorities: authorities,
		IssuedAt:    iat.Time,
		ExpiresAt:   exp.Time,
	}, nil
}

// Parse verifies the token signature, algorithm, structure and expiry.
// Failures are returned as *TokenError.
func (c *Codec) Parse(tokenString string) (*Claims, error) {
	return c.parse(c.parser, tokenString)
}

// Refresh re-issues a valid token with the same subject and authorities
// and a fresh lifetime.
func (c *Codec) Refresh(tokenString string, rememberMe bool) (*Token, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return c.Issue(claims.Subject, claims.Authorities(), rememberMe)
}

// ExtractSubject returns the sub claim of a valid token.
func (c *Codec) ExtractSubject(tokenString string) (string, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractExpiration returns the exp claim of a valid token.
func (c *Codec) ExtractExpiration(tokenString string) (time.Time, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}

// ExtractAuthorities returns the authorities of a valid token.
// The result is empty when the roles claim is absent.
func (c *Codec) ExtractAuthorities(tokenString string) ([]string, error) {
	claims, err := c.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	return claims.Authorities(), nil
}

// IsExpired reports whether the token's expiration is at or before the
// current time. The signature is still verified; only the expiry check
// is left to this method.
func (c *Codec) IsExpired(tokenString string) (bool, error) {
	claims, err := c.parse(c.lax, tokenString)
	if err != nil {
		return false, err
	}
	if claims.ExpiresAt == nil {
		return true, nil
	}
	return !c.now().Before(claims.ExpiresAt.Time), nil
}

func (c *Codec) parse(p *jwt.Parser, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := p.ParseWithClaims(tokenString, claims, c.key.keyFunc)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if !token.Valid {
		return nil, &TokenError{Kind: ErrTokenMalformed, Err: jwt.ErrTokenUnverifiable}
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: ErrTokenExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &TokenError{Kind: ErrTokenSignature, Err: err}
	default:
		return &TokenError{Kind: ErrTokenMalformed, Err: err}
	}
}
