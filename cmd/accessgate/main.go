package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/accessgate/pkg/access"
	"github.com/dmitrymomot/accessgate/pkg/billing"
	"github.com/dmitrymomot/accessgate/pkg/config"
	"github.com/dmitrymomot/accessgate/pkg/environment"
	"github.com/dmitrymomot/accessgate/pkg/httpserver"
	"github.com/dmitrymomot/accessgate/pkg/identity"
	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/metrics"
	"github.com/dmitrymomot/accessgate/pkg/pg"
	"github.com/dmitrymomot/accessgate/pkg/planapi"
	"github.com/dmitrymomot/accessgate/pkg/ratelimiter"
	"github.com/dmitrymomot/accessgate/pkg/redis"
	"github.com/dmitrymomot/accessgate/pkg/requestid"
	"github.com/dmitrymomot/accessgate/pkg/subsync"
	"github.com/dmitrymomot/accessgate/svc/gateway"
	"github.com/dmitrymomot/accessgate/svc/history"
)

const serviceName = "accessgate"

type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Used when PG_CONN_URL is empty.
	HistoryCapacity int `env:"HISTORY_MEMORY_CAPACITY" envDefault:"100"`

	HTTP      httpserver.Config
	Redis     redis.Config
	Postgres  pg.Config
	PlanAPI   planapi.Config
	Identity  identity.Config
	Access    access.Config
	Sync      subsync.Config
	Billing   billing.Config
	Gateway   gateway.Config
	RateLimit ratelimiter.Config
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		return err
	}

	env := environment.Parse(cfg.Env)
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := logger.New(
		logger.WithEnvironment(env, serviceName),
		logger.WithLevel(level),
		logger.WithContextExtractors(requestid.LoggerExtractor(), identity.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	if env.IsProduction() && cfg.Billing.PriceID == "" {
		return fmt.Errorf("BILLING_PRICE_ID is required in %s", env)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	checks := []httpserver.Check{{Name: "redis", Fn: redis.Healthcheck(rdb)}}

	var store history.Store
	if cfg.Postgres.Enabled() {
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pg.Migrate(ctx, pool, history.Migrations(), cfg.Postgres.MigrationsTable, log); err != nil {
			return err
		}
		store = history.NewPostgresStore(pool)
		checks = append(checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})
	} else {
		log.WarnContext(ctx, "PG_CONN_URL not set, keeping subscription history in memory")
		store = history.NewMemoryStore(cfg.HistoryCapacity)
	}

	plans, err := planapi.NewFromConfig(cfg.PlanAPI, env, planapi.WithLogger(log))
	if err != nil {
		return err
	}
	users, err := identity.NewClient(cfg.Identity.APIURL, cfg.Identity.APIKey,
		identity.WithTimeout(cfg.Identity.Timeout),
		identity.WithLogger(log),
	)
	if err != nil {
		return err
	}
	verifier, err := identity.NewVerifier(cfg.Identity.SigningSecret, cfg.Identity.Issuer)
	if err != nil {
		return err
	}

	var manager *subsync.Manager
	collector := metrics.New(
		metrics.WithRuntimeMetrics(),
		metrics.WithSessionGauge(func() float64 { return float64(manager.Len()) }),
	)

	evaluator := access.NewFromConfig(plans, cfg.Access,
		access.WithLogger(log),
		access.WithObserver(collector),
	)

	manager = subsync.NewManagerFromConfig(users, cfg.Sync,
		subsync.WithLogger(log),
		subsync.WithPollObserver(collector),
		subsync.WithHook(func(_ context.Context, c subsync.Change) { evaluator.Invalidate(c.UserID) }),
		subsync.WithHook(history.Recorder(store, log)),
		subsync.WithHook(collector.ChangeObserved),
	)
	if err := manager.Initialize(ctx); err != nil {
		return err
	}
	defer manager.Shutdown()

	provider, err := billing.NewProvider(cfg.Billing)
	if err != nil {
		return err
	}
	billingSvc := billing.NewService(provider, cfg.Billing,
		billing.WithNudger(subsync.NewPublisher(rdb, cfg.Sync.NudgeChannel)),
		billing.WithObserver(collector),
		billing.WithLogger(log),
	)

	limiter, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(rdb), cfg.RateLimit)
	if err != nil {
		return err
	}

	gw := gateway.NewFromConfig(cfg.Gateway, evaluator, manager, billingSvc, verifier,
		gateway.WithLogger(log),
		gateway.WithRateLimiter(limiter),
		gateway.WithMetrics(collector),
		gateway.WithHistory(store),
		gateway.WithProfiles(plans),
		gateway.WithHealthChecks(checks...),
		gateway.WithTokenExtractors(identity.BearerToken, identity.CookieToken(cfg.Identity.CookieName)),
	)

	nudger := subsync.NewRedisNudger(rdb, manager,
		subsync.WithNudgeChannel(cfg.Sync.NudgeChannel),
		subsync.WithNudgerLogger(log),
	)
	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return nudger.Run(ctx) })
	g.Go(func() error { return srv.Run(ctx, gw.Router()) })
	g.Go(func() error {
		// Closing the manager ends open event streams so the server can drain.
		<-ctx.Done()
		manager.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("accessgate stopped with error", logger.Error(err))
		return err
	}
	log.Info("accessgate stopped")
	return nil
}
