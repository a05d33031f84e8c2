package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/llmgateway/gateway/internal/cache"
	"github.com/llmgateway/gateway/internal/costcalc"
	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/router"
	"github.com/llmgateway/gateway/pkg/apierr"
)

const customHeaderPrefix = "x-llmgateway-"

// extractCustomHeaders implements spec §4.9 step 2: every request header
// matching "x-llmgateway-*" (case-insensitive) is captured under its
// lowercased suffix for later logging.
func extractCustomHeaders(ctx *fasthttp.RequestCtx) map[string]string {
	var out map[string]string
	ctx.Request.Header.VisitAll(func(key, value []byte) {
		name := strings.ToLower(string(key))
		if suffix, ok := strings.CutPrefix(name, customHeaderPrefix); ok && suffix != "" {
			if out == nil {
				out = make(map[string]string)
			}
			out[suffix] = string(value)
		}
	})
	return out
}

// handleChatCompletions implements the full 10-step pipeline of spec §4.9
// for POST /v1/chat/completions.
func (g *Gateway) handleChatCompletions(ctx *fasthttp.RequestCtx) {
	start := time.Now()
	reqID, _ := ctx.UserValue("request_id").(string)

	if g.metrics != nil {
		g.metrics.IncInFlight()
	}
	streaming := false
	reqBytes := len(ctx.PostBody())
	respBytes := -1
	defer func() {
		if g.metrics == nil || streaming {
			return
		}
		g.metrics.DecInFlight()
		status := ctx.Response.StatusCode()
		dur := time.Since(start)
		if respBytes < 0 {
			respBytes = len(ctx.Response.Body())
		}
		g.metrics.ObserveHTTP("chat_completions", status, dur, reqBytes, respBytes)
	}()

	customHeaders := extractCustomHeaders(ctx)

	// Step 3: parse and validate body.
	var body inboundChatRequest
	if err := json.Unmarshal(ctx.PostBody(), &body); err != nil {
		apierr.WriteKind(ctx, apierr.KindBodyInvalid, fmt.Sprintf("invalid JSON: %v", err), apierr.Details{})
		return
	}
	if body.Model == "" {
		apierr.WriteKind(ctx, apierr.KindBodyInvalid, "field 'model' is required", apierr.Details{})
		return
	}
	if len(body.Messages) == 0 {
		apierr.WriteKind(ctx, apierr.KindBodyInvalid, "'messages' must not be empty", apierr.Details{})
		return
	}

	rl := newRequestLog(reqID, body, customHeaders, start)

	// Step 4-5: authenticate and load project.
	apiKey, proj, apiErr := g.authenticateAndLoadProject(ctx)
	if apiErr != nil {
		apierr.WriteKind(ctx, apiErr.kind, apiErr.message, apierr.Details{})
		return
	}
	rl.withAuth(apiKey.ID, proj)

	if g.limiter != nil {
		allowed, lerr := g.limiter.Allow(ctx)
		if lerr != nil {
			g.log.Error("proxy: rate limit check", slog.String("error", lerr.Error()))
		} else if !allowed {
			if g.metrics != nil {
				g.metrics.RecordRateLimit("rejected")
			}
			apierr.WriteRateLimit(ctx)
			g.finish(ctx, rl, logOutcome{hasError: true, errMessage: "rate limit exceeded", errType: "rate_limited"})
			return
		} else if g.metrics != nil {
			g.metrics.RecordRateLimit("allowed")
		}
	}

	chatReq, params, err := toChatRequest(body, reqID)
	if err != nil {
		apierr.WriteKind(ctx, apierr.KindBodyInvalid, err.Error(), apierr.Details{})
		return
	}

	// Step 6: resolve route (C6).
	avail := availability{ctx: ctx, orgID: proj.OrgID, store: g.credStore, env: g.credEnv}
	route, rerr := g.rt.Resolve(body.Model, router.BillingMode(proj.Mode), avail, g.cb, params, time.Now())
	if rerr != nil {
		var routeErr *router.Error
		d := apierr.Details{RequestedModel: body.Model}
		if errors.As(rerr, &routeErr) {
			apierr.WriteKind(ctx, routerAPIKind(routeErr.Kind), routeErr.Message, d)
		} else {
			apierr.WriteKind(ctx, apierr.KindInternal, rerr.Error(), d)
		}
		g.finish(ctx, rl, logOutcome{hasError: true, errMessage: rerr.Error(), errType: "routing_error"})
		return
	}

	// Resolve credentials (C5).
	credProj := credentials.Project{ID: proj.ID, OrgID: proj.OrgID, Mode: proj.Mode}
	resolved, cerr := g.cred.Resolve(ctx, credProj, route.ProviderID, route.CustomProviderName)
	if cerr != nil {
		var credErr *credentials.Error
		d := apierr.Details{RequestedModel: body.Model, RequestedProvider: route.ProviderID}
		if errors.As(cerr, &credErr) {
			apierr.WriteKind(ctx, credentialsAPIKind(credErr.Kind), cerr.Error(), d)
		} else {
			apierr.WriteKind(ctx, apierr.KindInternal, cerr.Error(), d)
		}
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: cerr.Error(), errType: "credential_error"})
		return
	}

	// Step 7: cache lookup (non-streaming only).
	cacheEligible := !chatReq.Stream && proj.CachingEnabled && g.cache != nil &&
		(g.cacheExclusions == nil || !g.cacheExclusions.Matches(body.Model))
	if g.metrics != nil && !cacheEligible {
		g.metrics.CacheGetBypass()
	}

	var cacheKey string
	if cacheEligible {
		cacheKey = cache.GenerateKey(buildCacheKeyInputs(body))
		if cachedBody, ok := g.cache.Get(ctx, cacheKey); ok {
			if g.metrics != nil {
				g.metrics.CacheGetHit()
			}
			ctx.Response.Header.Set("X-Cache", "HIT")
			ctx.SetContentType("application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBody(cachedBody)
			respBytes = len(cachedBody)

			var cached providers.ChatResponse
			_ = json.Unmarshal(cachedBody, &cachedUnaryView{r: &cached})
			g.finish(ctx, rl, logOutcome{route: route, resp: &cached, respSize: respBytes, status: fasthttp.StatusOK, cached: true})
			return
		}
		if g.metrics != nil {
			g.metrics.CacheGetMiss()
		}
	}

	// Step 7': C7 — translate the request for the resolved family.
	fam, ferr := g.familyFor(route)
	if ferr != nil {
		apierr.WriteKind(ctx, apierr.KindInternal, ferr.Error(), apierr.Details{})
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: ferr.Error(), errType: "dispatch_error"})
		return
	}
	wireBody, wireHeaders, terr := fam.TranslateRequest(chatReq)
	if terr != nil {
		apierr.WriteKind(ctx, apierr.KindInternal, terr.Error(), apierr.Details{})
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: terr.Error(), errType: "translate_error"})
		return
	}

	provCtx, cancel := context.WithTimeout(ctx, g.providerTimeout)
	defer cancel()

	if chatReq.Stream {
		streaming = true
		g.dispatchStream(ctx, provCtx, rl, route, resolved, fam, wireBody, wireHeaders, chatReq)
		return
	}

	g.dispatchUnary(ctx, provCtx, rl, route, resolved, fam, wireBody, wireHeaders, chatReq, cacheEligible, cacheKey)
	respBytes = len(ctx.Response.Body())
}

// cachedUnaryView lets a cached response body (already serialized in the
// outbound chat.completion envelope) be re-parsed enough to recover token
// usage for the log row, without re-implementing outboundResponse's shape
// twice.
type cachedUnaryView struct {
	r *providers.ChatResponse
}

func (v *cachedUnaryView) UnmarshalJSON(data []byte) error {
	var env struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if len(env.Choices) > 0 {
		v.r.Content = env.Choices[0].Message.Content
		v.r.FinishReason = env.Choices[0].FinishReason
	}
	v.r.Usage.PromptTokens = env.Usage.PromptTokens
	v.r.Usage.CompletionTokens = env.Usage.CompletionTokens
	return nil
}

// buildCacheKeyInputs implements spec §4.4's fixed fingerprint field set.
func buildCacheKeyInputs(body inboundChatRequest) cache.KeyInputs {
	msgs := make([]cache.KeyMessage, len(body.Messages))
	for i, m := range body.Messages {
		text, _, _ := flattenContent(m.Content)
		msgs[i] = cache.KeyMessage{Role: m.Role, Content: text}
	}
	in := cache.KeyInputs{
		Model:            body.Model,
		Messages:         msgs,
		MaxTokens:        body.MaxTokens,
		FrequencyPenalty: body.FrequencyPenalty,
		PresencePenalty:  body.PresencePenalty,
	}
	if body.Temperature != nil {
		in.Temperature = body.Temperature
	}
	if body.TopP != nil {
		in.TopP = body.TopP
	}
	if body.ResponseFormat != nil {
		in.ResponseFormat = &cache.ResponseFormat{Type: body.ResponseFormat.Type}
	}
	return in
}

// authError carries a taxonomy kind plus message for step 4/5 failures.
type authError struct {
	kind    apierr.Kind
	message string
}

// authenticateAndLoadProject implements spec §4.9 steps 4-5: require a
// bearer token, look up its api key, and load the owning project.
func (g *Gateway) authenticateAndLoadProject(ctx *fasthttp.RequestCtx) (APIKey, Project, *authError) {
	raw := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if raw == "" {
		return APIKey{}, Project{}, &authError{apierr.KindAuthMissing, "missing Authorization header"}
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return APIKey{}, Project{}, &authError{apierr.KindAuthMalformed, "Authorization header must be 'Bearer <token>'"}
	}
	token := strings.TrimSpace(parts[1])

	key, found, err := g.auth.ResolveAPIKey(ctx, token)
	if err != nil {
		g.log.Error("proxy: resolve api key", slog.String("error", err.Error()))
		return APIKey{}, Project{}, &authError{apierr.KindInternal, "failed to resolve api key"}
	}
	if !found || !key.Active {
		return APIKey{}, Project{}, &authError{apierr.KindAuthInvalid, "invalid or inactive api key"}
	}

	proj, found, err := g.auth.GetProject(ctx, key.ProjectID)
	if err != nil {
		g.log.Error("proxy: load project", slog.String("error", err.Error()))
		return APIKey{}, Project{}, &authError{apierr.KindInternal, "failed to load project"}
	}
	if !found {
		return APIKey{}, Project{}, &authError{apierr.KindInternal, "project not found for api key"}
	}
	return key, proj, nil
}

// finalizeUsage implements spec §4.8's "usage finalization": impute any
// token bucket the provider didn't report using the tokenizer fallback
// estimator, marking the result Estimated so downstream cost accounting
// flags it as approximate.
func (g *Gateway) finalizeUsage(resp *providers.ChatResponse, messages []providers.Message) {
	if resp.Usage.PromptTokens == 0 {
		resp.Usage.PromptTokens = g.tok.CountChat(messages)
		resp.Usage.Estimated = true
	}
	if resp.Usage.CompletionTokens == 0 {
		resp.Usage.CompletionTokens = g.tok.CountText(resp.Content)
		resp.Usage.Estimated = true
	}
	if resp.Usage.TotalTokens == 0 {
		resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	}
}

// costInputFor builds the costcalc.Input for a completed response,
// resolving route's (providerID, providerModelName) back to the catalog's
// canonical model id. Call finalizeUsage first so token counts are never
// zero going into pricing.
func (g *Gateway) costInputFor(route router.Route, resp *providers.ChatResponse) costcalc.Input {
	var modelID string
	if m, ok := g.cat.LookupModelByProviderModelName(route.ProviderID, route.ProviderModelName); ok {
		modelID = m.ID
	}
	return costcalc.Input{
		ModelID:      modelID,
		ProviderID:   route.ProviderID,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		CachedTokens: resp.Usage.CachedTokens,
		Estimated:    resp.Usage.Estimated,
	}
}
