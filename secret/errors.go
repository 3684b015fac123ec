package secret

import "errors"

var (
	// ErrMissingEnv reports ${VAR} references to unset variables.
	ErrMissingEnv = errors.New("secret: missing environment variables")

	// ErrUnknownProvider reports a reference to a provider the resolver
	// does not have.
	ErrUnknownProvider = errors.New("secret: unknown provider")

	// ErrEmptySecret reports a reference that resolved to "".
	ErrEmptySecret = errors.New("secret: empty value")

	// ErrNotFound reports a reference whose target does not exist.
	ErrNotFound = errors.New("secret: not found")
)
