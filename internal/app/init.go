package app

import (
	"context"
	"fmt"
	"log/slog"

	npCache "github.com/llmgateway/gateway/internal/cache"
	"github.com/llmgateway/gateway/internal/billing"
	"github.com/llmgateway/gateway/internal/catalog"
	"github.com/llmgateway/gateway/internal/datastore"
	"github.com/llmgateway/gateway/internal/logworker"
	"github.com/llmgateway/gateway/internal/metrics"
	"github.com/llmgateway/gateway/internal/proxy"
	"github.com/llmgateway/gateway/internal/queue"
	"github.com/llmgateway/gateway/internal/ratelimit"
)

// initInfra establishes the external connections every deployment needs:
// Redis (auth/credential store, durable queue, auto-topup lock) and
// ClickHouse (the durable log sink C10 drains into). Neither is optional —
// config.Load's validate() already rejects a config missing either.
func (a *App) initInfra(ctx context.Context) error {
	a.log.Info("connecting to redis", slog.String("url", redactURL(a.cfg.Redis.URL)))
	rdb, err := connectRedis(ctx, a.cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	a.rdb = rdb
	a.log.Info("redis connected")

	ch, err := datastore.NewClickHouseStore(datastore.ClickHouseConfig{
		Addr:     a.cfg.ClickHouse.Addr,
		Database: a.cfg.ClickHouse.Database,
		Username: a.cfg.ClickHouse.Username,
		Password: a.cfg.ClickHouse.Password,
	})
	if err != nil {
		return fmt.Errorf("clickhouse: %w", err)
	}
	a.ch = ch
	a.log.Info("clickhouse connected", slog.String("addr", a.cfg.ClickHouse.Addr))

	return nil
}

// initProviders builds the catalog and the provider health-checker map. At
// least one provider must be configured — enforced by config.validate()
// before we reach here.
func (a *App) initProviders(ctx context.Context) error {
	a.cat = catalog.New(catalog.Providers, catalog.Models)

	a.checkers = buildCheckers(ctx, a.cfg)
	if len(a.checkers) == 0 {
		return fmt.Errorf("no provider API keys configured")
	}

	names := make([]string, 0, len(a.checkers))
	for n := range a.checkers {
		names = append(names, n)
	}
	a.log.Info("providers loaded", slog.Any("providers", names))

	return nil
}

// initServices creates the cache backend, the Prometheus metrics registry,
// the Redis-backed credential/auth/billing store, the durable queue, the
// auto-topup loop, and the log-drain worker that ties them all together.
func (a *App) initServices(ctx context.Context) error {
	switch a.cfg.Cache.Mode {
	case "redis":
		a.log.Info("cache backend: redis")
	case "memory":
		a.memCache = npCache.NewMemoryCache(ctx)
		a.log.Info("cache backend: memory (in-process)")
	case "none":
		a.log.Info("cache backend: disabled")
	default:
		return fmt.Errorf("unknown cache mode: %s", a.cfg.Cache.Mode)
	}

	a.prom = metrics.New()
	a.prom.SetBuildInfo(a.version)

	a.store = NewRedisStore(a.rdb)
	a.envCreds = NewEnvCredentials(catalog.Providers)

	a.q = queue.New(a.rdb)
	a.lock = queue.NewLock(a.rdb)

	a.topup = billing.NewLoop(a.store, a.lock, noopPaymentProcessor{}, defaultTopUpFees, a.log)
	a.topup.SetMetrics(a.prom)

	workerCfg := logworker.Config{
		Env:           logworker.Env(a.cfg.Env),
		TickInterval:  a.cfg.LogWorker.TickInterval,
		BatchSize:     a.cfg.LogWorker.BatchSize,
		ShutdownDrain: a.cfg.LogWorker.ShutdownDrain,
	}
	a.wrk = logworker.New(a.q, a.ch, a.store, a.store.RetentionFor, a.topup, workerCfg, a.log)
	a.wrk.SetMetrics(a.prom)

	return nil
}

// initGateway wires together the Gateway with all configured subsystems.
func (a *App) initGateway(_ context.Context) error {
	var cacheImpl npCache.Cache
	var cacheReady func() bool

	switch a.cfg.Cache.Mode {
	case "redis":
		cacheImpl = npCache.NewExactCacheFromClient(a.rdb)
		cacheReady = redisPinger(a.baseCtx, a.rdb)
	case "memory":
		cacheImpl = a.memCache
		cacheReady = func() bool { return true }
	case "none":
		// nil cache — gateway handles nil gracefully (no caching)
	}

	opts := proxy.GatewayOptions{
		Logger:          a.log,
		ProviderTimeout: a.cfg.Failover.ProviderTimeout,
		CacheTTL:        a.cfg.Cache.TTL,
		Metrics:         a.prom,
		CBConfig: proxy.CBConfig{
			ErrorThreshold:  a.cfg.CircuitBreaker.ErrorThreshold,
			TimeWindow:      a.cfg.CircuitBreaker.TimeWindow,
			HalfOpenTimeout: a.cfg.CircuitBreaker.HalfOpenTimeout,
		},
	}

	gw := proxy.NewGateway(
		a.baseCtx,
		a.cat,
		a.checkers,
		a.store,
		a.envCreds,
		a.store,
		cacheImpl,
		a.q,
		cacheReady,
		opts,
	)

	if a.cfg.RateLimit.RPMLimit > 0 {
		gw.SetRateLimiter(ratelimit.NewRPMLimiter(a.rdb, a.cfg.RateLimit.RPMLimit))
		a.log.Info("rate limiting enabled", slog.Int("rpm_limit", a.cfg.RateLimit.RPMLimit))
	}

	gw.SetCORSOrigins(a.cfg.CORSOrigins)

	if len(a.cfg.Cache.ExcludeExact) > 0 || len(a.cfg.Cache.ExcludePatterns) > 0 {
		el, err := npCache.NewExclusionList(a.cfg.Cache.ExcludeExact, a.cfg.Cache.ExcludePatterns)
		if err != nil {
			return fmt.Errorf("cache exclusions: %w", err)
		}
		gw.SetCacheExclusions(el)
		a.log.Info("cache exclusions loaded", slog.Int("rules", el.Len()))
	}

	a.mgmt = &proxy.ManagementRoutes{
		Metrics: a.prom.Handler(),
	}

	a.gw = gw

	return nil
}

// redactURL replaces the userinfo portion of a URL with "***" for safe logging.
// e.g. "redis://:secret@localhost:6379" → "redis://***@localhost:6379"
func redactURL(raw string) string {
	for i, c := range raw {
		if c == '@' {
			// Find the scheme end ("://") and keep only scheme + "***" + @host.
			for j := i - 1; j >= 0; j-- {
				if j+2 < len(raw) && raw[j:j+3] == "://" {
					return raw[:j+3] + "***" + raw[i:]
				}
			}
			return "***" + raw[i:]
		}
	}
	return raw
}
