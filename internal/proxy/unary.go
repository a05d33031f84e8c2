package proxy

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"

	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/providers/family"
	"github.com/llmgateway/gateway/internal/router"
	"github.com/llmgateway/gateway/pkg/apierr"
)

// dispatchUnary implements spec §4.9 steps 8-9's non-streaming branch: POST
// the translated body, normalize the response via fam, finalize usage and
// cost, optionally populate the cache, and write the response.
func (g *Gateway) dispatchUnary(
	ctx *fasthttp.RequestCtx,
	provCtx context.Context,
	rl *requestLog,
	route router.Route,
	resolved credentials.Resolved,
	fam family.Family,
	wireBody []byte,
	wireHeaders map[string]string,
	chatReq *providers.ChatRequest,
	cacheEligible bool,
	cacheKey string,
) {
	url, uerr := g.upstreamURL(route, resolved, false)
	if uerr != nil {
		apierr.WriteKind(ctx, apierr.KindInternal, uerr.Error(), apierr.Details{})
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: uerr.Error(), errType: "dispatch_error"})
		return
	}

	up, err := g.doUnary(provCtx, url, wireHeaders, wireBody, route, resolved)
	if err != nil {
		g.cb.RecordFailure(route.ProviderID)
		canceled := errors.Is(provCtx.Err(), context.Canceled)
		g.writeUpstreamError(ctx, err, route)
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: err.Error(), errType: "upstream_error", canceled: canceled})
		return
	}
	g.cb.RecordSuccess(route.ProviderID)

	resp, perr := fam.ParseUnary(up.Body)
	if perr != nil {
		apierr.WriteKind(ctx, apierr.KindInternal, perr.Error(), apierr.Details{})
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: perr.Error(), errType: "parse_error"})
		return
	}
	g.finalizeUsage(resp, chatReq.Messages)
	cost := g.costCalc.Compute(g.costInputFor(route, resp))

	body, merr := json.Marshal(buildChatCompletionEnvelope(chatReq.Model, resp))
	if merr != nil {
		apierr.WriteKind(ctx, apierr.KindInternal, "failed to serialize response", apierr.Details{})
		g.finish(ctx, rl, logOutcome{route: route, resp: resp, cost: cost, hasError: true, errMessage: merr.Error(), errType: "marshal_error"})
		return
	}

	if cacheEligible {
		if serr := g.cache.Set(ctx, cacheKey, body, g.cacheTTL); serr != nil {
			if g.metrics != nil {
				g.metrics.CacheSetError()
			}
		} else if g.metrics != nil {
			g.metrics.CacheSetOK()
		}
	}

	ctx.Response.Header.Set("X-Cache", "MISS")
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)

	if g.metrics != nil {
		g.metrics.AddTokens(route.ProviderID, "chat_completions", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, false)
	}

	g.finish(ctx, rl, logOutcome{
		route: route, resp: resp, cost: cost, respSize: len(body),
		status: fasthttp.StatusOK, estimated: resp.Usage.Estimated,
	})
}

// writeUpstreamError maps a dispatch error onto the response, per spec
// §7's taxonomy: an upstreamResponse carries the provider's own status
// code, a deadline exceeded maps to a timeout, everything else is a
// transport-level failure.
func (g *Gateway) writeUpstreamError(ctx *fasthttp.RequestCtx, err error, route router.Route) {
	d := apierr.Details{RequestedProvider: route.ProviderID, UsedProvider: route.ProviderID}

	var sc providers.StatusCoder
	if errors.As(err, &sc) {
		apierr.WriteProviderError(ctx, sc.HTTPStatus(), err.Error())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		apierr.WriteTimeout(ctx)
		return
	}
	apierr.WriteKind(ctx, apierr.KindUpstreamTransportError, err.Error(), d)
}
