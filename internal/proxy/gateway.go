// Package proxy is the core LLM request dispatcher: the handler described
// by spec §4.9 that authenticates a request, resolves its route (C6),
// resolves credentials (C5), checks the cache (C4), translates and
// dispatches to the upstream provider (C7/C8), and enqueues a log message
// (C10) before returning. Requests rejected for an invalid body, failed
// authentication, or messages that fail conversion are answered without a
// log row; every request that reaches the rate-limit gate is logged.
//
// Key design constraints carried from the teacher:
//   - Logger, cache, and the durable queue are optional and nil-safe.
//   - All I/O uses context.Context so timeouts propagate correctly.
//   - Streaming responses are pass-through (SSE); they are never cached.
package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/llmgateway/gateway/internal/cache"
	"github.com/llmgateway/gateway/internal/catalog"
	"github.com/llmgateway/gateway/internal/costcalc"
	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/metrics"
	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/router"
	"github.com/llmgateway/gateway/internal/tokenizer"
)

// Enqueuer is the narrow view of *queue.Queue the handler needs to enqueue
// completed-request log messages (spec §4.9 step 10).
type Enqueuer interface {
	Enqueue(ctx context.Context, message []byte) error
}

// RateLimiter is the narrow view of internal/ratelimit.RPMLimiter the
// handler's global rate-limit gate needs.
type RateLimiter interface {
	Allow(ctx context.Context) (bool, error)
}

// GatewayOptions holds optional tuning parameters for a Gateway. All fields
// have sensible defaults and can be omitted.
type GatewayOptions struct {
	// Logger is the structured logger used for request events and dispatch
	// diagnostics. Defaults to slog.Default() when nil.
	Logger *slog.Logger

	// ProviderTimeout is the per-upstream-attempt HTTP request timeout.
	// Default: providers.ProviderTimeout (30s).
	ProviderTimeout time.Duration

	// CBConfig configures the per-provider circuit breaker thresholds.
	// Zero values use the package-level defaults.
	CBConfig CBConfig

	// Metrics enables Prometheus metrics collection. When nil, metrics are
	// disabled.
	Metrics *metrics.Registry

	// CacheTTL controls the default TTL for cached responses. Default: 1h.
	CacheTTL time.Duration
}

// Gateway is the main proxy — all dependencies are injected via the
// constructor so they can be replaced with mock doubles in unit tests.
type Gateway struct {
	cat       *catalog.Catalog
	rt        *router.Router
	credStore credentials.Store
	credEnv   credentials.EnvCredentials
	cred      *credentials.Resolver
	auth      AuthStore

	cache           cache.Cache
	cacheExclusions *cache.ExclusionList
	cacheTTL        time.Duration

	costCalc *costcalc.Calculator
	tok      *tokenizer.Adapter

	queue Enqueuer

	cb      *CircuitBreaker
	health  *HealthChecker
	baseCtx context.Context

	httpClient      *http.Client
	providerTimeout time.Duration

	log     *slog.Logger
	metrics *metrics.Registry

	limiter RateLimiter

	// CORS allowed origins. An empty slice or ["*"] means allow all.
	corsOrigins []string
}

// SetCORSOrigins configures the allowed CORS origins for the gateway.
func (g *Gateway) SetCORSOrigins(origins []string) {
	g.corsOrigins = origins
}

// SetRateLimiter injects the global requests-per-minute limiter (spec
// §4.9's rate-limit gate). Nil disables rate limiting.
func (g *Gateway) SetRateLimiter(rl RateLimiter) {
	g.limiter = rl
}

// NewGateway builds a fully configured Gateway. cat, credStore/credEnv,
// auth, and queueing are the seams spec §4.9 dispatches through; checkers
// feeds the background HealthChecker (spec §4.1's provider readiness
// probe), keyed the same way as cat's provider ids plus any custom
// providers the deployment wants probed.
func NewGateway(
	baseCtx context.Context,
	cat *catalog.Catalog,
	checkers map[string]providers.Checker,
	credStore credentials.Store,
	credEnv credentials.EnvCredentials,
	auth AuthStore,
	c cache.Cache,
	q Enqueuer,
	cacheReady func() bool,
	opts GatewayOptions,
) *Gateway {
	if baseCtx == nil {
		panic("gateway: context must not be nil")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	providerTimeout := opts.ProviderTimeout
	if providerTimeout <= 0 {
		providerTimeout = providers.ProviderTimeout
	}

	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}

	gw := &Gateway{
		cat:             cat,
		rt:              router.New(cat),
		credStore:       credStore,
		credEnv:         credEnv,
		cred:            credentials.New(credStore, credEnv),
		auth:            auth,
		cache:           c,
		cacheTTL:        cacheTTL,
		costCalc:        costcalc.New(cat),
		tok:             tokenizer.New(nil),
		queue:           q,
		cb:              NewCircuitBreakerWithConfig(cat, opts.CBConfig),
		baseCtx:         baseCtx,
		httpClient:      &http.Client{Timeout: providerTimeout},
		providerTimeout: providerTimeout,
		log:             log,
		metrics:         opts.Metrics,
	}

	if gw.metrics != nil && gw.cb != nil {
		for _, id := range cat.ProviderIDs() {
			gw.metrics.SetCircuitBreaker(id, int64(gw.cb.State(id)))
		}
	}

	if len(checkers) > 0 {
		gw.health = NewHealthChecker(baseCtx, checkers, cacheReady, gw.metrics)
	}

	return gw
}

// SetCacheExclusions injects the cache exclusion list. Requests whose model
// name matches any rule skip both cache GET and SET (spec §4.4).
func (g *Gateway) SetCacheExclusions(el *cache.ExclusionList) {
	g.cacheExclusions = el
}
