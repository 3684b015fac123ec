package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// KeyMode describes how a signing key was obtained.
type KeyMode string

const (
	// KeyModeStatic derives the key from an operator-supplied secret.
	// Tokens survive restarts.
	KeyModeStatic KeyMode = "static"

	// KeyModeEphemeral generates a random key at startup.
	// Every restart invalidates previously issued tokens.
	KeyModeEphemeral KeyMode = "ephemeral"
)

// DefaultAlgorithm is used when no signature algorithm is configured.
const DefaultAlgorithm = "HS512"

// KeyConfig configures signing key derivation.
type KeyConfig struct {
	// UseStaticSecret selects static mode.
	UseStaticSecret bool

	// Secret is the passphrase used in static mode.
	Secret string

	// Algorithm is one of HS256, HS384, HS512.
	// Default: HS512
	Algorithm string
}

// SigningKey is the HMAC key shared by issuance and validation.
// It is immutable once constructed.
type SigningKey struct {
	method *jwt.SigningMethodHMAC
	key    []byte
	mode   KeyMode
}

// hmacMethods maps algorithm names to signing methods and minimum key sizes.
var hmacMethods = map[string]struct {
	method  *jwt.SigningMethodHMAC
	minSize int
}{
	"HS256": {jwt.SigningMethodHS256, 32},
	"HS384": {jwt.SigningMethodHS384, 48},
	"HS512": {jwt.SigningMethodHS512, 64},
}

// NewSigningKey derives the process signing key from cfg.
//
// In static mode the key is the standard Base64 encoding of the secret,
// so the same secret always yields the same key. In ephemeral mode the
// key is read from crypto/rand with the size the algorithm calls for.
func NewSigningKey(cfg KeyConfig) (*SigningKey, error) {
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = DefaultAlgorithm
	}
	spec, ok := hmacMethods[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}

	if !cfg.UseStaticSecret {
		key := make([]byte, spec.minSize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("auth: generate signing key: %w", err)
		}
		return &SigningKey{method: spec.method, key: key, mode: KeyModeEphemeral}, nil
	}

	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	key := []byte(base64.StdEncoding.EncodeToString([]byte(cfg.Secret)))
	if len(key) < spec.minSize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrWeakSecret, alg, spec.minSize, len(key))
	}
	return &SigningKey{method: spec.method, key: key, mode: KeyModeStatic}, nil
}

// Algorithm returns the JWS algorithm name.
func (k *SigningKey) Algorithm() string {
	return k.method.Alg()
}

// Mode returns how the key was obtained.
func (k *SigningKey) Mode() KeyMode {
	return k.mode
}

// Method returns the jwt signing method.
func (k *SigningKey) Method() jwt.SigningMethod {
	return k.method
}

// keyFunc returns a jwt.Keyfunc that hands out the key bytes.
func (k *SigningKey) keyFunc(_ *jwt.Token) (any, error) {
	return k.key, nil
}

// String never prints key material.
func (k *SigningKey) String() string {
	return fmt.Sprintf("SigningKey{alg=%s mode=%s}", k.Algorithm(), k.mode)
}
