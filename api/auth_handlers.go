package api

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/resilience"
)

// LoginRequest is the body of POST /authenticate.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// KeyInfo describes the signing key without exposing it.
type KeyInfo struct {
	Algorithm  string       `json:"algorithm"`
	Mode       auth.KeyMode `json:"mode"`
	RememberMe bool         `json:"rememberMe"`
}

// rememberMe reports whether the rememberme query flag is present. Its
// value is ignored.
func rememberMe(r *http.Request) bool {
	_, ok := r.URL.Query()["rememberme"]
	return ok
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *API) authenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observe.ContextLogger(ctx, a.deps.Logger)

	if wait, ok := a.limiter.Take(clientAddr(r)); !ok {
		a.metrics.LoginsLimited.Inc()
		retry := int(math.Ceil(wait.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
		writeError(w, r, resilience.ErrRateLimitExceeded)
		return
	}

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	resp, err := a.deps.Login.Authenticate(ctx, req.Username, req.Password, rememberMe(r))
	result := "success"
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		result = "invalid"
	case err != nil:
		result = "error"
	}
	a.deps.AuthMetrics.RecordLogin(ctx, result, time.Since(start))

	if err != nil {
		logger.Info(ctx, "login failed",
			observe.Field{Key: "username", Value: req.Username},
			observe.Field{Key: "result", Value: result},
			observe.ErrorField(err),
		)
		writeError(w, r, err)
		return
	}
	logger.Info(ctx, "login succeeded", observe.Field{Key: "username", Value: req.Username})
	writeJSON(w, http.StatusOK, resp)
}

// refresh re-issues the caller's token with a fresh expiration.
func (a *API) refresh(w http.ResponseWriter, r *http.Request) {
	tok, err := a.deps.Codec.Refresh(auth.TokenFromContext(r.Context()), rememberMe(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, auth.AuthenticationResponse{Token: tok.Value, Expiration: tok.ExpiresAt})
}

func (a *API) keyInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, KeyInfo{
		Algorithm:  a.deps.Codec.Algorithm(),
		Mode:       a.deps.Codec.KeyMode(),
		RememberMe: a.deps.Codec.RememberMeEnabled(),
	})
}
