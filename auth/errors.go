package auth

import (
	"errors"
	"fmt"
)

// Credential and token failures. The transport answers 401 for these.
var (
	ErrMissingCredentials = errors.New("auth: no credentials presented")
	ErrInvalidCredentials = errors.New("auth: bad username or password")
	ErrUserNotFound       = errors.New("auth: no such user")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")
	ErrTokenSignature     = errors.New("auth: token signature does not verify")
)

// Access failures. The transport answers 403 for these.
var (
	ErrForbidden       = errors.New("auth: forbidden")
	ErrElevationDenied = errors.New("auth: only ROLE_ADMIN may grant roles")
)

// Startup failures from key and policy configuration.
var (
	ErrMissingSecret        = errors.New("auth: static signing mode needs a secret")
	ErrWeakSecret           = errors.New("auth: signing key too short for algorithm")
	ErrUnsupportedAlgorithm = errors.New("auth: unsupported signature algorithm")
	ErrRuleShadowed         = errors.New("auth: rule can never match")
	ErrInvalidRule          = errors.New("auth: invalid rule")
)

// Reason phrases written into error bodies.
const (
	ReasonInvalidCredentials = "Invalid Credentials"
	ReasonForbidden          = "Forbidden"
)

// DeniedError is returned by Policy.Authorize. It matches ErrForbidden,
// or ErrMissingCredentials when the caller was anonymous.
type DeniedError struct {
	Username string
	Method   string
	Path     string
	Rule     Rule
}

func (e *DeniedError) Error() string {
	if e.Username == "" {
		return fmt.Sprintf("auth: %s %s needs a token (%s)", e.Method, e.Path, e.Rule)
	}
	return fmt.Sprintf("auth: %s may not %s %s (%s)", e.Username, e.Method, e.Path, e.Rule)
}

func (e *DeniedError) Is(target error) bool {
	if e.Username == "" {
		return target == ErrMissingCredentials
	}
	return target == ErrForbidden
}
