// Package family implements the "polymorphic response-family capability"
// from the spec's design notes: {translateRequest, parseUnary,
// parseStreamChunk, extractUsage, extractToolCalls, mapFinishReason},
// concretized as four variants (openai-family, anthropic, google, mistral).
//
// Dispatch to the upstream HTTP endpoint is hand-rolled here rather than
// delegated to the official provider SDKs, because the normalization
// contract needs byte-level control the SDKs don't expose: indexed
// tool-call-argument accumulation across raw SSE chunks, the Anthropic
// event-tagged state machine, and Google's un-framed, tolerant
// concatenated-JSON-object scanner capped at 10 MiB. This mirrors the
// teacher's own mistral.go, which already took the raw net/http + bufio
// route for the same reason; it is generalized here to every family.
package family

import (
	"encoding/json"

	"github.com/llmgateway/gateway/internal/providers"
)

// Family is the capability set the router selects and the handler composes,
// per the design notes.
type Family interface {
	// TranslateRequest builds the provider-native JSON body for req. headers
	// are the auth-independent headers to send in addition to
	// "Content-Type: application/json" (e.g. Anthropic's "anthropic-version").
	TranslateRequest(req *providers.ChatRequest) (body []byte, headers map[string]string, err error)

	// ParseUnary parses a complete upstream JSON response body into the
	// normalized ChatResponse shape.
	ParseUnary(body []byte) (*providers.ChatResponse, error)

	// NewStreamParser returns a pull-parser fed by successive raw reads from
	// the upstream response body (see StreamParser).
	NewStreamParser() StreamParser
}

// StreamParser is a pull-parser over a chunk source, per the design notes'
// instruction to avoid callback-chain control flow. Feed is called with
// each raw read from the upstream body (which may contain zero, one, or
// several wire-level events); Next drains any chunks the last Feed produced.
// Next returns ok=false once the current Feed's buffer is exhausted — the
// caller should Feed again or, at EOF, call Close for any trailing state.
type StreamParser interface {
	Feed(data []byte)
	Next() (chunk providers.StreamChunk, ok bool)
	// Close flushes any terminal state (e.g. a final message_stop) after the
	// upstream body has been fully read. It may return one last chunk.
	Close() (chunk providers.StreamChunk, ok bool)
}

// MaxStreamBuffer is the spec §5 resource cap: a streaming scanner's
// accumulation buffer is capped at 10 MiB; on overflow the buffer is
// dropped, not the connection.
const MaxStreamBuffer = 10 * 1024 * 1024

// MapFinishReason implements the canonical finish-reason mapping from
// spec §4.8. It is shared by every family's ParseUnary/StreamParser.
func MapFinishReason(upstream string) string {
	switch upstream {
	case "STOP", "end_turn", "stop":
		return "stop"
	case "tool_use":
		return "tool_calls"
	case "length", "MAX_TOKENS":
		return "length"
	case "":
		return "stop"
	default:
		return lower(upstream)
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// ByName resolves a catalog.Family-equivalent string ("openai", "anthropic",
// "google", "mistral") to its Family implementation.
func ByName(name string) (Family, bool) {
	switch name {
	case "openai":
		return OpenAI{}, true
	case "anthropic":
		return Anthropic{}, true
	case "google":
		return Google{}, true
	case "mistral":
		return Mistral{}, true
	}
	return nil, false
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Only reachable if a caller passes an unmarshalable Go value for a
		// wire type defined in this package — a programming error.
		panic("family: marshal: " + err.Error())
	}
	return b
}
