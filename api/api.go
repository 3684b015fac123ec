package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/events"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/resilience"
	"github.com/jonwraymond/todoauth/todo"
	"github.com/jonwraymond/todoauth/user"
)

// DefaultHeartbeat is the SSE keep-alive interval.
const DefaultHeartbeat = 15 * time.Second

// Deps are the collaborators of the API handler.
type Deps struct {
	Codec      *auth.Codec
	Login      *auth.CredentialAuthenticator
	Users      *user.Service
	Todos      *todo.Service
	AdminTodos *todo.AdminService
	Broker     events.Broker

	// Policy defaults to auth.DefaultPolicy().
	Policy *auth.Policy

	// Logger defaults to a no-op logger.
	Logger observe.Logger

	// Observe adds a span and OpenTelemetry metrics per route when set.
	Observe *observe.Middleware

	// AuthMetrics defaults to no-op metrics.
	AuthMetrics observe.AuthMetrics

	// Registerer receives the Prometheus collectors. Default: a private
	// registry.
	Registerer prometheus.Registerer

	// LoginLimit limits POST /authenticate per client address.
	LoginLimit resilience.RateLimiterConfig

	// Heartbeat is the SSE keep-alive interval. Default: DefaultHeartbeat
	Heartbeat time.Duration
}

// API is the http.Handler of the API listener.
type API struct {
	deps    Deps
	limiter *resilience.KeyedLimiter
	metrics *Metrics
	handler http.Handler
}

var errMissingDeps = errors.New("api: codec, login, users, todos, admin todos and broker are required")

// New wires the routes.
func New(d Deps) (*API, error) {
	if d.Codec == nil || d.Login == nil || d.Users == nil || d.Todos == nil || d.AdminTodos == nil || d.Broker == nil {
		return nil, errMissingDeps
	}
	if d.Policy == nil {
		d.Policy = auth.DefaultPolicy()
	}
	if d.Logger == nil {
		d.Logger = observe.NopLogger()
	}
	if d.AuthMetrics == nil {
		d.AuthMetrics = observe.NopAuthMetrics()
	}
	if d.Registerer == nil {
		d.Registerer = prometheus.NewRegistry()
	}
	if d.Heartbeat <= 0 {
		d.Heartbeat = DefaultHeartbeat
	}

	a := &API{deps: d, limiter: resilience.NewKeyedLimiter(d.LoginLimit, 0)}
	a.metrics = NewMetrics(d.Registerer, a.limiter.Len)

	mux := http.NewServeMux()
	a.routes(mux)

	authn := auth.Middleware(d.Policy, auth.NewTokenAuthenticator(d.Codec),
		auth.WithLogger(d.Logger),
		auth.WithMetrics(d.AuthMetrics),
	)
	a.handler = requestID(d.Logger)(caseInsensitive(authn(mux)))
	return a, nil
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Maintain forgets idle login rate-limit buckets until ctx is done.
func (a *API) Maintain(ctx context.Context) {
	a.limiter.Run(ctx, time.Minute)
}

func (a *API) routes(mux *http.ServeMux) {
	admin := auth.RequireRoles(auth.RoleAdmin)

	a.handle(mux, "POST /authenticate", http.HandlerFunc(a.authenticate))
	a.handle(mux, "POST /api/token/refresh", http.HandlerFunc(a.refresh))
	a.handle(mux, "GET /jwt/key", http.HandlerFunc(a.keyInfo))

	a.handle(mux, "GET /api/users", admin(http.HandlerFunc(a.listUsers)))
	a.handle(mux, "GET /api/users/{email}", admin(http.HandlerFunc(a.getUserByEmail)))
	a.handle(mux, "POST /api/users", admin(http.HandlerFunc(a.createUser)))
	a.handle(mux, "PUT /api/users/{username}", admin(http.HandlerFunc(a.updateUser)))
	a.handle(mux, "PATCH /api/users/{username}", admin(http.HandlerFunc(a.patchUser)))
	a.handle(mux, "DELETE /api/users/{username}", admin(http.HandlerFunc(a.deleteUser)))

	a.handle(mux, "GET /api/todos", http.HandlerFunc(a.listTodos))
	a.handle(mux, "GET /api/todos/events", http.HandlerFunc(a.todoEvents))
	a.handle(mux, "GET /api/todos/{id}", http.HandlerFunc(a.getTodo))
	a.handle(mux, "POST /api/todos", http.HandlerFunc(a.createTodo))
	a.handle(mux, "PUT /api/todos/{id}", http.HandlerFunc(a.updateTodo))
	a.handle(mux, "PATCH /api/todos/{id}", http.HandlerFunc(a.patchTodo))
	a.handle(mux, "DELETE /api/todos/{id}", http.HandlerFunc(a.deleteTodo))

	a.handle(mux, "GET /api/admin/todos", http.HandlerFunc(a.adminListTodos))
	a.handle(mux, "GET /api/admin/todos/{id}", http.HandlerFunc(a.adminGetTodo))
	a.handle(mux, "POST /api/admin/todos", http.HandlerFunc(a.adminCreateTodo))
	a.handle(mux, "PUT /api/admin/todos/{id}", http.HandlerFunc(a.adminUpdateTodo))
	a.handle(mux, "PATCH /api/admin/todos/{id}", http.HandlerFunc(a.adminPatchTodo))
	a.handle(mux, "DELETE /api/admin/todos/{id}", http.HandlerFunc(a.adminDeleteTodo))
	a.handle(mux, "DELETE /api/admin/todos", http.HandlerFunc(a.adminClearTodos))
}

// handle registers h under pattern with per-route instrumentation.
func (a *API) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	if a.deps.Observe != nil {
		h = a.deps.Observe.Handler(pattern, h)
	}
	mux.Handle(pattern, a.metrics.instrument(pattern, h))
}
