package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/todoauth/api"
	"github.com/jonwraymond/todoauth/auth"
	"github.com/jonwraymond/todoauth/config"
	"github.com/jonwraymond/todoauth/events"
	"github.com/jonwraymond/todoauth/health"
	"github.com/jonwraymond/todoauth/observe"
	"github.com/jonwraymond/todoauth/password"
	"github.com/jonwraymond/todoauth/store"
	"github.com/jonwraymond/todoauth/todo"
	"github.com/jonwraymond/todoauth/user"
)

// slowPing marks a dependency degraded.
const slowPing = 250 * time.Millisecond

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API and ops listeners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(ctx, root.loaderOptions()...)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			return a.run(ctx)
		},
	}
}

// app owns every long-lived component of a serve run.
type app struct {
	cfg       *config.Config
	logger    observe.Logger
	telemetry *observe.Telemetry
	registry  *prometheus.Registry
	db        *store.DB
	broker    events.Broker
	api       *api.API
	health    *health.Aggregator
}

// newApp builds the components in dependency order. Any key or storage
// error aborts startup before a listener is opened.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.telemetry, err = observe.New(ctx, cfg.Observe, observe.WithPrometheusRegisterer(a.registry))
	if err != nil {
		return nil, fmt.Errorf("serve: observability: %w", err)
	}
	a.logger = a.telemetry.Logger()

	codec, err := newCodec(ctx, cfg, a.logger)
	if err != nil {
		return nil, err
	}

	a.db, err = store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("serve: %w", err)
	}

	a.broker = newBroker(ctx, cfg.Events, a.logger)

	hasher := password.NewHasher(password.DefaultParams)
	roles := store.NewCachedRoleCatalog(a.db.Roles(), cfg.RoleCachePolicy())
	a.registry.MustRegister(roleCacheCollectors(roles)...)
	users := user.NewService(a.db.Users(), roles, hasher, user.WithLogger(a.logger))
	if err := bootstrapAdmin(ctx, cfg.Bootstrap, users, a.logger); err != nil {
		return nil, err
	}

	authMetrics, err := observe.NewAuthMetrics(a.telemetry.Meter())
	if err != nil {
		return nil, fmt.Errorf("serve: auth metrics: %w", err)
	}
	httpObserve, err := observe.NewMiddleware(a.telemetry)
	if err != nil {
		return nil, fmt.Errorf("serve: http metrics: %w", err)
	}

	login := auth.NewCredentialAuthenticator(a.db.Users(), hasher, codec, cfg.CredentialConfig())
	a.registry.MustRegister(loginCollectors(login)...)

	a.api, err = api.New(api.Deps{
		Codec:       codec,
		Login:       login,
		Users:       users,
		Todos:       todo.NewService(a.db.Todos(), a.broker, todo.WithLogger(a.logger)),
		AdminTodos:  todo.NewAdminService(a.db.Todos(), a.broker, todo.WithLogger(a.logger)),
		Broker:      a.broker,
		Logger:      a.logger,
		Observe:     httpObserve,
		AuthMetrics: authMetrics,
		Registerer:  a.registry,
		LoginLimit:  cfg.LoginRateLimit(),
	})
	if err != nil {
		return nil, fmt.Errorf("serve: %w", err)
	}

	a.health = health.NewAggregator(health.AggregatorConfig{Logger: a.logger, Registerer: a.registry})
	a.health.Register(health.NewPingChecker("database", a.db, slowPing))
	a.health.Register(health.NewPingChecker("events", a.broker, slowPing))
	a.health.Register(health.NewRuntimeChecker(health.RuntimeCheckerConfig{}))
	return a, nil
}

// roleCacheCollectors exports the role cache counters.
func roleCacheCollectors(roles *store.CachedRoleCatalog) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "todoauth",
			Name:      "role_cache_hits_total",
			Help:      "Role catalog lookups served from the cache",
		}, func() float64 { return float64(roles.Stats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "todoauth",
			Name:      "role_cache_misses_total",
			Help:      "Role catalog lookups that went to the database",
		}, func() float64 { return float64(roles.Stats().Misses) }),
	}
}

// loginCollectors exports the password comparison bulkhead.
func loginCollectors(login *auth.CredentialAuthenticator) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "todoauth",
			Name:      "login_comparisons_in_use",
			Help:      "Password comparisons running now",
		}, func() float64 { return float64(login.Comparisons().InUse) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "todoauth",
			Name:      "login_comparisons_rejected_total",
			Help:      "Logins refused because every comparison slot was busy",
		}, func() float64 { return float64(login.Comparisons().Rejected) }),
	}
}

// newCodec derives the signing key once and reports how it was obtained.
func newCodec(ctx context.Context, cfg *config.Config, logger observe.Logger) (*auth.Codec, error) {
	key, err := auth.NewSigningKey(cfg.KeyConfig())
	if err != nil {
		return nil, fmt.Errorf("serve: signing key: %w", err)
	}
	switch key.Mode() {
	case auth.KeyModeStatic:
		logger.Warn(ctx, "using static signing secret; tokens survive restarts",
			observe.Field{Key: "algorithm", Value: key.Algorithm()})
	default:
		logger.Debug(ctx, "generated ephemeral signing key; restarts invalidate tokens",
			observe.Field{Key: "algorithm", Value: key.Algorithm()})
	}

	codec, err := auth.NewCodec(key, cfg.TokenConfig())
	if err != nil {
		return nil, fmt.Errorf("serve: token codec: %w", err)
	}
	if !codec.RememberMeEnabled() {
		logger.Info(ctx, "remember-me disabled; auth.jwt.exp_time_remember_me is unset")
	}
	return codec, nil
}

func newBroker(ctx context.Context, cfg config.EventsConfig, logger observe.Logger) events.Broker {
	if cfg.Driver != "redis" {
		return events.NewMemory(0)
	}
	b := events.NewRedis(events.RedisConfig{Addr: cfg.RedisAddr, KeyPrefix: cfg.KeyPrefix})
	if err := b.Ping(ctx); err != nil {
		// Readiness reports the outage; the API still serves.
		logger.Warn(ctx, "redis unreachable at startup",
			observe.Field{Key: "addr", Value: cfg.RedisAddr}, observe.ErrorField(err))
	}
	return b
}

func bootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig, users *user.Service, logger observe.Logger) error {
	if !cfg.Enabled() {
		return nil
	}
	created, err := users.EnsureAdmin(ctx, user.CreateRequest{
		Username:  cfg.AdminUsername,
		Password:  cfg.AdminPassword,
		Email:     cfg.AdminEmail,
		FirstName: "Admin",
		LastName:  "Account",
	})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if created {
		logger.Info(ctx, "bootstrap admin created", observe.Field{Key: "username", Value: cfg.AdminUsername})
	}
	return nil
}

// run serves until ctx is done or a listener fails, then releases
// everything.
func (a *app) run(ctx context.Context) error {
	defer a.close(context.Background())

	srv := a.cfg.Server
	g, gctx := errgroup.WithContext(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Name:            "api",
		Addr:            srv.Addr,
		ReadTimeout:     srv.ReadTimeout,
		WriteTimeout:    srv.WriteTimeout,
		ShutdownTimeout: srv.ShutdownTimeout,
	}, a.api, a.logger)
	g.Go(func() error { return apiServer.ListenAndServe(gctx) })

	if srv.OpsAddr != "" {
		opsServer := api.NewServer(api.ServerConfig{
			Name:            "ops",
			Addr:            srv.OpsAddr,
			ReadTimeout:     srv.ReadTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
		}, api.NewOpsHandler(a.health, a.registry), a.logger)
		g.Go(func() error { return opsServer.ListenAndServe(gctx) })
	}

	g.Go(func() error {
		a.api.Maintain(gctx)
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) close(ctx context.Context) {
	if a.broker != nil {
		_ = a.broker.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(shutdownCtx); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "observability shutdown failed", observe.ErrorField(err))
		}
	}
}
