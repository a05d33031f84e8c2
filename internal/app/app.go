// Package app wires up all subsystems and owns the application lifecycle.
//
// Startup order:
//  1. initInfra     — external connections (Redis, ClickHouse)
//  2. initProviders — catalog and LLM provider health checkers
//  3. initServices  — cache, metrics registry, credential store,
//     durable queue, auto-topup loop, and the log-drain worker
//  4. initGateway   — proxy + management routes
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	npCache "github.com/llmgateway/gateway/internal/cache"
	"github.com/llmgateway/gateway/internal/billing"
	"github.com/llmgateway/gateway/internal/catalog"
	"github.com/llmgateway/gateway/internal/config"
	"github.com/llmgateway/gateway/internal/datastore"
	"github.com/llmgateway/gateway/internal/logworker"
	"github.com/llmgateway/gateway/internal/metrics"
	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/proxy"
	"github.com/llmgateway/gateway/internal/queue"

	anthropicprov "github.com/llmgateway/gateway/internal/providers/anthropic"
	geminiprov "github.com/llmgateway/gateway/internal/providers/gemini"
	mistralprov "github.com/llmgateway/gateway/internal/providers/mistral"
	openaiprov "github.com/llmgateway/gateway/internal/providers/openai"
	openaicompatprov "github.com/llmgateway/gateway/internal/providers/openaicompat"
	vertexaiprov "github.com/llmgateway/gateway/internal/providers/vertexai"
)

// App owns all long-lived resources and exposes Run / Close.
type App struct {
	version string
	cfg     *config.Config
	baseCtx context.Context
	log     *slog.Logger

	rdb *redis.Client
	ch  *datastore.ClickHouseStore

	memCache *npCache.MemoryCache
	prom     *metrics.Registry

	cat      *catalog.Catalog
	checkers map[string]providers.Checker
	store    *RedisStore
	envCreds *EnvCredentials

	q     *queue.Queue
	lock  *queue.Lock
	topup *billing.Loop
	wrk   *logworker.Worker

	mgmt *proxy.ManagementRoutes
	gw   *proxy.Gateway
}

// New initialises all subsystems and returns a ready-to-run App.
// All resources allocated here are released by Close.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, version string) (*App, error) {
	if ctx == nil {
		return nil, fmt.Errorf("app: context must not be nil")
	}

	a := &App{cfg: cfg, version: version, baseCtx: ctx, log: log}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"infra", a.initInfra},
		{"providers", a.initProviders},
		{"services", a.initServices},
		{"gateway", a.initGateway},
	}

	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("app: init %s: %w", s.name, err)
		}
	}

	return a, nil
}

// Run starts the HTTP server and the background log-drain worker, and
// blocks until ctx is cancelled or an error occurs. It closes the app
// gracefully when returning.
func (a *App) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", a.cfg.Port)

	a.log.Info("starting gateway",
		slog.String("version", a.version),
		slog.String("addr", addr),
		slog.String("cache_mode", a.cfg.Cache.Mode),
		slog.Int("providers", len(a.checkers)),
	)

	a.wrk.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.gw.StartWithRoutes(addr, a.mgmt)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Close()
		return nil
	})

	return g.Wait()
}

// Close releases all resources in reverse-init order. Safe to call multiple
// times in sequence; it does no locking, so concurrent calls are not safe.
func (a *App) Close() {
	if a.wrk != nil {
		if err := a.wrk.Close(); err != nil {
			a.log.Error("logworker close error", slog.String("error", err.Error()))
		}
		a.wrk = nil
	}
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.log.Error("clickhouse close error", slog.String("error", err.Error()))
		}
		a.ch = nil
	}
	if a.memCache != nil {
		a.memCache.Close()
		a.memCache = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Error("redis close error", slog.String("error", err.Error()))
		}
		a.rdb = nil
	}
}

// ── Private helpers ──────────────────────────────────────────────────────

// connectRedis parses the URL and verifies connectivity with a PING.
// Returns an error — callers decide whether to fatal or degrade.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return rdb, nil
}

// redisPinger returns a zero-argument probe function suitable for the
// HealthChecker. Reuses the existing client — no new connections.
func redisPinger(ctx context.Context, rdb *redis.Client) func() bool {
	return func() bool {
		pingCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err() == nil
	}
}

// buildCheckers creates a provider health-checker map from non-empty API
// keys / credentials. These are the same collaborators the router resolves
// against via the catalog's provider ids — custom/env-credentialed
// providers not listed here are still reachable through
// credentials.EnvCredentials, just not health-probed.
func buildCheckers(ctx context.Context, cfg *config.Config) map[string]providers.Checker {
	checkers := make(map[string]providers.Checker)

	if cfg.OpenAI.APIKey != "" {
		var opts []openaiprov.Option
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openaiprov.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		checkers["openai"] = openaiprov.New(cfg.OpenAI.APIKey, opts...)
	}
	if cfg.Anthropic.APIKey != "" {
		var opts []anthropicprov.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicprov.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		checkers["anthropic"] = anthropicprov.New(cfg.Anthropic.APIKey, opts...)
	}
	if cfg.Gemini.APIKey != "" {
		var opts []geminiprov.Option
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, geminiprov.WithBaseURL(cfg.Gemini.BaseURL))
		}
		checkers["gemini"] = geminiprov.New(ctx, cfg.Gemini.APIKey, opts...)
	}
	if cfg.Mistral.APIKey != "" {
		var opts []mistralprov.Option
		if cfg.Mistral.BaseURL != "" {
			opts = append(opts, mistralprov.WithBaseURL(cfg.Mistral.BaseURL))
		}
		checkers["mistral"] = mistralprov.New(cfg.Mistral.APIKey, opts...)
	}

	type ocEntry struct {
		key     string
		name    string
		baseURL string
	}
	ocProviders := []ocEntry{
		{cfg.XAI.APIKey, "xai", "https://api.x.ai/v1"},
		{cfg.DeepSeek.APIKey, "deepseek", "https://api.deepseek.com/v1"},
		{cfg.Groq.APIKey, "groq", "https://api.groq.com/openai/v1"},
		{cfg.Together.APIKey, "together", "https://api.together.xyz/v1"},
		{cfg.Perplexity.APIKey, "perplexity", "https://api.perplexity.ai"},
		{cfg.Cerebras.APIKey, "cerebras", "https://api.cerebras.ai/v1"},
		{cfg.Moonshot.APIKey, "moonshot", "https://api.moonshot.cn/v1"},
		{cfg.MiniMax.APIKey, "minimax", "https://api.minimax.chat/v1"},
		{cfg.Qwen.APIKey, "qwen", "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"},
		{cfg.Nebius.APIKey, "nebius", "https://api.studio.nebius.ai/v1"},
		{cfg.NovitaAI.APIKey, "novita", "https://api.novita.ai/v3/openai"},
		{cfg.ByteDance.APIKey, "bytedance", "https://ark.cn-beijing.volces.com/api/v3"},
		{cfg.ZAI.APIKey, "zai", "https://api.z.ai/api/openai/v1"},
		{cfg.CanopyWave.APIKey, "canopywave", "https://api.canopywave.com/v1"},
		{cfg.Inference.APIKey, "inference", "https://api.inference.net/v1"},
		{cfg.NanoGPT.APIKey, "nanogpt", "https://nano-gpt.com/api/v1"},
	}
	for _, e := range ocProviders {
		if e.key != "" {
			checkers[e.name] = openaicompatprov.New(e.name, e.key, e.baseURL)
		}
	}

	if cfg.VertexAI.Project != "" {
		var opts []vertexaiprov.Option
		if cfg.VertexAI.Location != "" {
			opts = append(opts, vertexaiprov.WithLocation(cfg.VertexAI.Location))
		}
		if c, err := vertexaiprov.New(ctx, cfg.VertexAI.Project, opts...); err == nil {
			checkers["vertexai"] = c
		}
	}

	return checkers
}

// defaultTopUpFees is the processor fee structure applied to every
// auto-topup charge until a deployment supplies its own FeeCalculator.
var defaultTopUpFees = billing.NewPercentFeeCalculator(decimal.NewFromFloat(0.029), decimal.NewFromFloat(0.30))
