package auth

import (
	"context"
	"net/http"
)

// Credential is the raw credential presented by the transport layer.
type Credential struct {
	// Scheme is the authorization scheme, e.g. "Bearer".
	Scheme string

	// Token is the credential payload.
	Token string
}

// BearerCredential wraps a raw bearer token.
func BearerCredential(token string) *Credential {
	return &Credential{Scheme: "Bearer", Token: token}
}

// Outcome is the terminal state of a token authentication.
type Outcome int

const (
	// OutcomeUnauthorized means no identity could be established.
	// The caller should re-authenticate.
	OutcomeUnauthorized Outcome = iota

	// OutcomeForbidden means the identity carries no authorities.
	// Re-authenticating will not help.
	OutcomeForbidden

	// OutcomeAuthenticated means the principal is established.
	OutcomeAuthenticated
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeForbidden:
		return "forbidden"
	default:
		return "unauthorized"
	}
}

// AuthResult is the result of authenticating a credential.
// Exactly one of Principal (authenticated) or Reason (rejected) is set.
type AuthResult struct {
	Outcome Outcome

	// Principal is set when Outcome is OutcomeAuthenticated.
	Principal *Principal

	// Reason is the human readable rejection reason.
	Reason string

	// Err is the underlying error for Unauthorized results, if any.
	Err error
}

// Authenticated creates a successful result.
func Authenticated(p *Principal) *AuthResult {
	return &AuthResult{Outcome: OutcomeAuthenticated, Principal: p}
}

// Unauthorized creates a result for a credential that established no identity.
func Unauthorized(reason string, err error) *AuthResult {
	return &AuthResult{Outcome: OutcomeUnauthorized, Reason: reason, Err: err}
}

// Forbidden creates a result for an identity without authorities.
func Forbidden(reason string) *AuthResult {
	return &AuthResult{Outcome: OutcomeForbidden, Reason: reason}
}

// OK reports whether the principal was established.
func (r *AuthResult) OK() bool {
	return r != nil && r.Outcome == OutcomeAuthenticated
}

// Status maps the outcome to an HTTP status code.
func (r *AuthResult) Status() int {
	switch r.Outcome {
	case OutcomeAuthenticated:
		return http.StatusOK
	case OutcomeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

// Authenticator turns a credential into an AuthResult.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Authenticate never returns nil.
type Authenticator interface {
	Authenticate(ctx context.Context, cred *Credential) *AuthResult
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, cred *Credential) *AuthResult

// Authenticate calls f(ctx, cred).
func (f AuthenticatorFunc) Authenticate(ctx context.Context, cred *Credential) *AuthResult {
	return f(ctx, cred)
}

// TokenAuthenticator validates bearer tokens issued by a Codec.
//
// The decision is a pure function of the token and the signing key. It
// performs no I/O.
type TokenAuthenticator struct {
	codec *Codec
}

// NewTokenAuthenticator creates a token authenticator.
func NewTokenAuthenticator(codec *Codec) *TokenAuthenticator {
	return &TokenAuthenticator{codec: codec}
}

// Authenticate validates cred and returns the decision.
func (a *TokenAuthenticator) Authenticate(_ context.Context, cred *Credential) *AuthResult {
	if cred == nil || cred.Token == "" {
		return Unauthorized(ReasonInvalidCredentials, ErrMissingCredentials)
	}

	claims, err := a.codec.Parse(cred.Token)
	if err != nil {
		return Unauthorized(err.Error(), err)
	}

	authorities := claims.Authorities()
	if len(authorities) == 0 {
		return Forbidden(ReasonForbidden)
	}

	return Authenticated(&Principal{
		Username:    claims.Subject,
		Authorities: authorities,
	})
}

// Ensure TokenAuthenticator implements Authenticator
var _ Authenticator = (*TokenAuthenticator)(nil)
