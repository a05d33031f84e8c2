package proxy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/llmgateway/gateway/internal/costcalc"
	"github.com/llmgateway/gateway/internal/datastore"
	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/router"
)

// requestLog accumulates the fields spec §4.9 step 10 stamps onto a
// datastore.Log row as the handler pipeline progresses, so every exit path
// (cache hit, routing error, upstream error, successful unary/stream
// response) can finish it the same way.
type requestLog struct {
	requestID     string
	apiKeyID      string
	orgID         string
	projectID     string
	projectMode   string
	requestedModel string
	customHeaders map[string]string
	messagesJSON  string
	temperature   float64
	maxTokens     int
	topP          float64
	freqPenalty   float64
	presPenalty   float64
	start         time.Time
	streamed      bool
}

func newRequestLog(reqID string, body inboundChatRequest, customHeaders map[string]string, start time.Time) *requestLog {
	msgs, _ := json.Marshal(body.Messages)
	var temperature, topP float64
	if body.Temperature != nil {
		temperature = *body.Temperature
	}
	if body.TopP != nil {
		topP = *body.TopP
	}
	return &requestLog{
		requestID:      reqID,
		requestedModel: body.Model,
		customHeaders:  customHeaders,
		messagesJSON:   string(msgs),
		temperature:    temperature,
		maxTokens:      body.MaxTokens,
		topP:           topP,
		freqPenalty:    body.FrequencyPenalty,
		presPenalty:    body.PresencePenalty,
		start:          start,
		streamed:       body.Stream,
	}
}

func (rl *requestLog) withAuth(apiKeyID string, proj Project) {
	rl.apiKeyID = apiKeyID
	rl.orgID = proj.OrgID
	rl.projectID = proj.ID
	rl.projectMode = string(proj.Mode)
}

// logOutcome is the terminal state of one request, filled in by whichever
// exit path the handler took.
type logOutcome struct {
	route        router.Route
	resp         *providers.ChatResponse
	cost         costcalc.Result
	respSize     int
	status       int
	cached       bool
	canceled     bool
	hasError     bool
	errMessage   string
	errType      string
	estimated    bool
}

// finish builds the Log row and enqueues it. q may be nil (logging
// disabled, e.g. in tests); errors are logged but never surfaced to the
// client since this always runs after the response has been written.
func (g *Gateway) finish(ctx context.Context, rl *requestLog, out logOutcome) {
	l := datastore.Log{
		ID:                uuid.NewString(),
		RequestID:         rl.requestID,
		OrgID:             rl.orgID,
		ProjectID:         rl.projectID,
		ProjectMode:       rl.projectMode,
		APIKeyID:          rl.apiKeyID,
		RequestedModel:    rl.requestedModel,
		RequestedProvider: out.route.ProviderID,
		UsedProvider:      out.route.ProviderID,
		UsedModel:         out.route.ProviderModelName,
		DurationMs:        time.Since(rl.start).Milliseconds(),
		ResponseSize:      int64(out.respSize),
		Streamed:          rl.streamed,
		Canceled:          out.canceled,
		Cached:            out.cached,
		HasError:          out.hasError,
		ErrorMessage:      out.errMessage,
		ErrorType:         out.errType,
		Messages:          rl.messagesJSON,
		CustomHeaders:     rl.customHeaders,
		Temperature:       rl.temperature,
		MaxTokens:         rl.maxTokens,
		TopP:              rl.topP,
		FrequencyPenalty:  rl.freqPenalty,
		PresencePenalty:   rl.presPenalty,
		CreatedAt:         time.Now(),
	}

	if out.route.IsCustomProvider {
		l.UsedProvider = out.route.CustomProviderName
		l.RequestedProvider = out.route.CustomProviderName
	}

	if out.resp != nil {
		l.Content = out.resp.Content
		l.FinishReason = out.resp.FinishReason
		l.PromptTokens = out.resp.Usage.PromptTokens
		l.CompletionTokens = out.resp.Usage.CompletionTokens
		l.ReasoningTokens = out.resp.Usage.ReasoningTokens
		l.CachedTokens = out.resp.Usage.CachedTokens
		if tc, err := json.Marshal(out.resp.ToolCalls); err == nil {
			l.ToolCalls = string(tc)
		}
	}

	l.InputCost, _ = out.cost.InputCost.Float64()
	l.OutputCost, _ = out.cost.OutputCost.Float64()
	l.CachedInputCost, _ = out.cost.CachedInputCost.Float64()
	l.RequestCost, _ = out.cost.RequestCost.Float64()
	l.TotalCost, _ = out.cost.TotalCost.Float64()
	l.EstimatedCost = out.estimated

	if g.metrics != nil {
		g.metrics.AddCost(l.UsedProvider, "chat_completions", l.TotalCost)
	}

	g.enqueueLog(l)
}

func (g *Gateway) enqueueLog(l datastore.Log) {
	if g.queue == nil {
		return
	}
	body, err := json.Marshal(l)
	if err != nil {
		g.log.Error("proxy: marshal log row", slog.String("error", err.Error()))
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(g.baseCtx, 5*time.Second)
		defer cancel()
		if err := g.queue.Enqueue(ctx, body); err != nil {
			g.log.Error("proxy: enqueue log row", slog.String("request_id", l.RequestID), slog.String("error", err.Error()))
		}
	}()
}
