package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/resilience"
	"github.com/jonwraymond/todoauth/todo"
	"github.com/jonwraymond/todoauth/user"
	"github.com/jonwraymond/todoauth/validation"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errBadBody = errors.New("api: malformed request body")

// ValidationBody is the 422 response shape.
type ValidationBody struct {
	auth.ErrorBody
	Errors []validation.FieldError `json:"errors"`
}

// statusOf maps a service error to an HTTP status and a client-safe
// message.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errBadBody):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, todo.ErrNoOwner):
		return http.StatusUnauthorized, "Bad credentials"
	case errors.Is(err, auth.ErrTokenExpired), errors.Is(err, auth.ErrTokenMalformed), errors.Is(err, auth.ErrTokenSignature):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrElevationDenied):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, auth.ReasonForbidden
	case errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, todo.ErrNotFound):
		return http.StatusNotFound, "Todo not found."
	case errors.Is(err, user.ErrUsernameTaken):
		return http.StatusConflict, user.ErrUsernameTaken.Error()
	case errors.Is(err, user.ErrEmailInUse):
		return http.StatusConflict, user.ErrEmailInUse.Error()
	case errors.Is(err, todo.ErrConflict):
		return http.StatusConflict, "Todo was modified concurrently."
	case errors.Is(err, user.ErrConflict):
		return http.StatusConflict, "User was modified concurrently."
	case errors.Is(err, validation.ErrInvalid):
		return http.StatusUnprocessableEntity, "Validation failed"
	case errors.Is(err, resilience.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "Too many requests"
	case errors.Is(err, resilience.ErrBulkheadFull), errors.Is(err, resilience.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Service busy, retry later"
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

// writeError renders err. Server errors are logged with the request
// logger; their detail never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		observe.ContextLogger(r.Context(), observe.NopLogger()).Error(r.Context(), "request failed", observe.ErrorField(err))
	}

	var verr *validation.Error
	if status == http.StatusUnprocessableEntity && errors.As(err, &verr) {
		writeJSON(w, status, ValidationBody{
			ErrorBody: auth.ErrorBody{
				Status:  status,
				Error:   http.StatusText(status),
				Message: msg,
				Path:    r.URL.Path,
			},
			Errors: verr.Fields,
		})
		return
	}
	auth.WriteJSONError(w, r, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// decodeJSON reads exactly one JSON value into dst. An empty body is an
// error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: body is required", errBadBody)
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}
