// Package providers defines the common request/response contract shared by
// every upstream LLM family (OpenAI-shaped, Anthropic, Google, Mistral) and
// the narrow Checker interface used for readiness probes.
//
// The heavy lifting — translating a ChatRequest into a provider-native wire
// body and normalizing the response back — lives in
// internal/providers/family, grounded on the family abstraction from the
// design notes. This package only holds the shared vocabulary both that
// package and the catalog/router/handler packages need.
package providers

import (
	"context"
	"time"
)

// Message is a single chat turn. Content is always a flattened string by the
// time it reaches a family implementation; array-shaped ({type:"text"|...})
// content from the wire request is flattened by the handler before
// translation (images are carried separately, see ImageURLs).
type Message struct {
	Role       string
	Content    string
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
	ImageURLs  []string
}

// ToolCall is an OpenAI-shaped tool invocation, used both in requests (a
// prior assistant turn's tool_calls) and in accumulated responses.
type ToolCall struct {
	Index     int
	ID        string
	Type      string // always "function" today
	Name      string
	Arguments string // concatenated JSON-fragment across streamed chunks
}

// ResponseFormat mirrors the wire {"type": "text"|"json_object"} field.
type ResponseFormat struct {
	Type string
}

// Usage carries every token bucket the normalizer may need to report.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ReasoningTokens  int
	CachedTokens     int
	Estimated        bool // true iff any field above was imputed, not reported upstream
}

// ChatRequest is the OpenAI-shaped normalized input described by spec §4.7,
// after the handler has validated and flattened the wire JSON body.
type ChatRequest struct {
	Model            string
	Messages         []Message
	Stream           bool
	Temperature      float64
	HasTemperature   bool
	MaxTokens        int
	TopP             float64
	HasTopP          bool
	FrequencyPenalty float64
	PresencePenalty  float64
	ResponseFormat   *ResponseFormat
	Tools            []byte // opaque pass-through JSON array, provider-translated verbatim for openai-family
	ToolChoice       []byte
	ReasoningEffort  string

	RequestID string
}

// ChatResponse is the normalized unary output described by spec §4.8,
// before the handler re-serializes it into the OpenAI chat.completion
// envelope.
type ChatResponse struct {
	Content          string
	ReasoningContent string
	FinishReason     string
	Usage            Usage
	ToolCalls        []ToolCall
}

// StreamChunk is one normalized streaming delta. FinalUsage is set only on
// the synthetic closing chunk emitted before [DONE] when usage needed to be
// finalized/imputed (spec §4.8 "Usage finalization").
type StreamChunk struct {
	ContentDelta          string
	ReasoningContentDelta string
	ToolCallDeltas        []ToolCall
	FinishReason          string // non-empty marks the terminal content chunk
	FinalUsage            *Usage
}

// StatusCoder is implemented by provider/transport errors that carry an
// upstream HTTP status code, so the handler can distinguish upstream_error
// (>=500) from gateway_error per spec §4.8.
type StatusCoder interface {
	HTTPStatus() int
}

// Checker is the narrow interface every provider package exposes for
// readiness probing (internal/proxy/healthchecker.go). Hot-path dispatch
// does not go through this interface — see internal/providers/family.
type Checker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// Default timeouts/thresholds, kept from the teacher for the circuit
// breaker and per-upstream-attempt deadlines.
const (
	CBErrorThreshold  = 5
	CBTimeWindow      = 60 * time.Second
	CBHalfOpenTimeout = 30 * time.Second
	MaxRetries        = 3
	ProviderTimeout   = 30 * time.Second
)
