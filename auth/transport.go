package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jonwraymond/todoauth/observe"
)

// CredentialFromRequest extracts the bearer credential from the
// Authorization header. It returns nil when the header is absent or
// uses another scheme.
func CredentialFromRequest(r *http.Request) *Credential {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return nil
	}
	return BearerCredential(strings.TrimSpace(token))
}

// ErrorWriter renders a rejection.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, reason string)

// ErrorBody is the JSON shape of a rejection.
type ErrorBody struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// WriteJSONError is the default ErrorWriter.
func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, reason string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="todoauth"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Status:  status,
		Error:   http.StatusText(status),
		Message: reason,
		Path:    r.URL.Path,
	})
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middleware)

// WithLogger sets the fallback logger used when the request context
// carries none.
func WithLogger(l observe.Logger) MiddlewareOption {
	return func(m *middleware) { m.logger = l }
}

// WithMetrics records every decision.
func WithMetrics(am observe.AuthMetrics) MiddlewareOption {
	return func(m *middleware) { m.metrics = am }
}

// WithErrorWriter replaces the rejection renderer.
func WithErrorWriter(ew ErrorWriter) MiddlewareOption {
	return func(m *middleware) { m.writeError = ew }
}

type middleware struct {
	policy     *Policy
	authn      Authenticator
	logger     observe.Logger
	metrics    observe.AuthMetrics
	writeError ErrorWriter
}

// Middleware enforces policy in front of next.
//
// Anonymous rules pass straight through. Every other request must carry
// a credential the authenticator accepts and satisfy the matching rule;
// otherwise a 401 or 403 is written and next never runs. On success the
// principal and raw token are attached to the request context.
func Middleware(policy *Policy, authn Authenticator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	m := &middleware{
		policy:     policy,
		authn:      authn,
		logger:     observe.NopLogger(),
		metrics:    observe.NopAuthMetrics(),
		writeError: WriteJSONError,
	}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.serve(next, w, r)
		})
	}
}

func (m *middleware) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observe.ContextLogger(ctx, m.logger)

	rule, _ := m.policy.Match(r.Method, r.URL.Path)
	if rule.Access == AccessPermitAll {
		next.ServeHTTP(w, r)
		return
	}

	cred := CredentialFromRequest(r)
	result := m.authn.Authenticate(ctx, cred)
	m.metrics.RecordDecision(ctx, result.Outcome.String())

	if !result.OK() {
		logger.Debug(ctx, "authentication rejected",
			observe.Field{Key: "outcome", Value: result.Outcome.String()},
			observe.Field{Key: "reason", Value: result.Reason},
		)
		m.writeError(w, r, result.Status(), result.Reason)
		return
	}

	if err := m.policy.Authorize(result.Principal, r.Method, r.URL.Path); err != nil {
		logger.Info(ctx, "authorization denied", observe.ErrorField(err))
		m.writeError(w, r, http.StatusForbidden, ReasonForbidden)
		return
	}

	ctx = WithPrincipal(ctx, result.Principal)
	ctx = WithToken(ctx, cred.Token)
	ctx = observe.WithLogger(ctx, logger.With(observe.Field{Key: "user", Value: result.Principal.Username}))
	next.ServeHTTP(w, r.WithContext(ctx))
}

// RequireRoles is a handler-level check that the principal attached by
// Middleware holds at least one of roles.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil {
				WriteJSONError(w, r, http.StatusUnauthorized, ReasonInvalidCredentials)
				return
			}
			if !p.HasAnyRole(roles...) {
				WriteJSONError(w, r, http.StatusForbidden, ReasonForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
