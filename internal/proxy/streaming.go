package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/valyala/fasthttp"

	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/providers/family"
	"github.com/llmgateway/gateway/internal/router"
	"github.com/llmgateway/gateway/pkg/apierr"
)

// dispatchStream implements spec §4.9 steps 8-9's streaming branch and §5's
// cancellation model: open the upstream SSE connection, pull-parse it
// chunk-by-chunk through fam, re-emit normalized chat.completion.chunk
// events, and always finish with a log row carrying the accumulated usage.
func (g *Gateway) dispatchStream(
	ctx *fasthttp.RequestCtx,
	provCtx context.Context,
	rl *requestLog,
	route router.Route,
	resolved credentials.Resolved,
	fam family.Family,
	wireBody []byte,
	wireHeaders map[string]string,
	chatReq *providers.ChatRequest,
) {
	url, uerr := g.upstreamURL(route, resolved, true)
	if uerr != nil {
		apierr.WriteKind(ctx, apierr.KindInternal, uerr.Error(), apierr.Details{})
		if g.metrics != nil {
			g.metrics.DecInFlight()
		}
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: uerr.Error(), errType: "dispatch_error"})
		return
	}

	up, err := g.openStream(provCtx, url, wireHeaders, wireBody, route, resolved)
	if err != nil {
		g.cb.RecordFailure(route.ProviderID)
		g.writeUpstreamError(ctx, err, route)
		if g.metrics != nil {
			g.metrics.DecInFlight()
		}
		canceled := errors.Is(provCtx.Err(), context.Canceled)
		g.finish(ctx, rl, logOutcome{route: route, hasError: true, errMessage: err.Error(), errType: "upstream_error", canceled: canceled})
		return
	}
	g.cb.RecordSuccess(route.ProviderID)

	cancellationSafe := route.IsCustomProvider
	if !route.IsCustomProvider {
		if p, ok := g.cat.FindProvider(route.ProviderID); ok {
			cancellationSafe = p.CancellationSafe
		}
	}

	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.SetStatusCode(fasthttp.StatusOK)

	streamID := "chatcmpl-" + rl.requestID
	final := providers.ChatResponse{}
	var respBytes int

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer up.Body.Close()

		if !cancellationSafe {
			// Let the upstream call run to completion even if the client
			// disconnects; only the client-facing write loop below bails early.
			provCtx = context.WithoutCancel(provCtx)
		}

		parser := fam.NewStreamParser()
		buf := make([]byte, 32*1024)
		canceled := false

		emit := func(chunk providers.StreamChunk) bool {
			accumulate(&final, chunk)
			env := buildChunkEnvelope(streamID, chatReq.Model, chunk)
			b, merr := json.Marshal(env)
			if merr != nil {
				return true
			}
			n, werr := w.Write([]byte("data: "))
			respBytes += n
			if werr == nil {
				n, werr = w.Write(b)
				respBytes += n
			}
			if werr == nil {
				n, werr = w.Write([]byte("\n\n"))
				respBytes += n
			}
			if werr != nil {
				canceled = true
				return false
			}
			if ferr := w.Flush(); ferr != nil {
				canceled = true
				return false
			}
			return true
		}

	readLoop:
		for {
			select {
			case <-ctx.Done():
				canceled = true
				break readLoop
			default:
			}

			n, rerr := up.Body.Read(buf)
			if n > 0 {
				parser.Feed(buf[:n])
				for {
					chunk, ok := parser.Next()
					if !ok {
						break
					}
					if !emit(chunk) {
						break readLoop
					}
				}
			}
			if rerr != nil {
				if rerr != io.EOF {
					g.log.Error("proxy: stream read", slog.String("request_id", rl.requestID), slog.String("error", rerr.Error()))
				}
				break
			}
		}

		if !canceled {
			if chunk, ok := parser.Close(); ok {
				emit(chunk)
			}
		}

		if canceled {
			n, _ := w.Write([]byte("event: canceled\ndata: {}\n\n"))
			respBytes += n
		}
		n, _ := w.Write([]byte("data: [DONE]\n\n"))
		respBytes += n
		_ = w.Flush()

		g.finalizeUsage(&final, chatReq.Messages)
		cost := g.costCalc.Compute(g.costInputFor(route, &final))

		if g.metrics != nil {
			g.metrics.DecInFlight()
			g.metrics.AddTokens(route.ProviderID, "chat_completions", final.Usage.PromptTokens, final.Usage.CompletionTokens, false)
		}

		g.finish(g.baseCtx, rl, logOutcome{
			route: route, resp: &final, cost: cost, respSize: respBytes,
			status: fasthttp.StatusOK, canceled: canceled, estimated: final.Usage.Estimated,
		})
	})
}

// accumulate folds one normalized stream chunk into the running response so
// the final log row can carry the same content/usage a unary call would.
func accumulate(final *providers.ChatResponse, chunk providers.StreamChunk) {
	final.Content += chunk.ContentDelta
	final.ReasoningContent += chunk.ReasoningContentDelta
	if chunk.FinishReason != "" {
		final.FinishReason = chunk.FinishReason
	}
	if chunk.FinalUsage != nil {
		final.Usage = *chunk.FinalUsage
	}
	for _, d := range chunk.ToolCallDeltas {
		found := false
		for i := range final.ToolCalls {
			if final.ToolCalls[i].Index == d.Index {
				final.ToolCalls[i].Arguments += d.Arguments
				found = true
				break
			}
		}
		if !found {
			final.ToolCalls = append(final.ToolCalls, d)
		}
	}
}
