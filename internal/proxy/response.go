package proxy

import (
	"time"

	"github.com/google/uuid"

	"github.com/llmgateway/gateway/internal/providers"
)

type outboundToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

func toOutboundToolCalls(calls []providers.ToolCall) []outboundToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]outboundToolCall, len(calls))
	for i, tc := range calls {
		out[i].Index = tc.Index
		out[i].ID = tc.ID
		out[i].Type = tc.Type
		out[i].Function.Name = tc.Name
		out[i].Function.Arguments = tc.Arguments
	}
	return out
}

type outboundUsage struct {
	PromptTokens        int `json:"prompt_tokens"`
	CompletionTokens    int `json:"completion_tokens"`
	TotalTokens         int `json:"total_tokens"`
	PromptTokensDetails struct {
		CachedTokens int `json:"cached_tokens"`
	} `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details,omitempty"`
}

func toOutboundUsage(u providers.Usage) outboundUsage {
	out := outboundUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	out.PromptTokensDetails.CachedTokens = u.CachedTokens
	out.CompletionTokensDetails.ReasoningTokens = u.ReasoningTokens
	return out
}

type outboundMessage struct {
	Role             string              `json:"role"`
	Content          string              `json:"content"`
	ReasoningContent string              `json:"reasoning_content,omitempty"`
	ToolCalls        []outboundToolCall  `json:"tool_calls,omitempty"`
}

type outboundChoice struct {
	Index        int             `json:"index"`
	Message      outboundMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type outboundChatCompletion struct {
	ID      string           `json:"id"`
	Object  string           `json:"object"`
	Created int64            `json:"created"`
	Model   string           `json:"model"`
	Choices []outboundChoice `json:"choices"`
	Usage   outboundUsage    `json:"usage"`
}

// buildChatCompletionEnvelope implements the OpenAI chat.completion wire
// shape spec §6.2 requires regardless of which upstream family actually
// served the request.
func buildChatCompletionEnvelope(requestedModel string, resp *providers.ChatResponse) outboundChatCompletion {
	return outboundChatCompletion{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []outboundChoice{{
			Index: 0,
			Message: outboundMessage{
				Role:             "assistant",
				Content:          resp.Content,
				ReasoningContent: resp.ReasoningContent,
				ToolCalls:        toOutboundToolCalls(resp.ToolCalls),
			},
			FinishReason: resp.FinishReason,
		}},
		Usage: toOutboundUsage(resp.Usage),
	}
}

type outboundDelta struct {
	Role             string             `json:"role,omitempty"`
	Content          string             `json:"content,omitempty"`
	ReasoningContent string             `json:"reasoning_content,omitempty"`
	ToolCalls        []outboundToolCall `json:"tool_calls,omitempty"`
}

type outboundChunkChoice struct {
	Index        int            `json:"index"`
	Delta        outboundDelta  `json:"delta"`
	FinishReason *string        `json:"finish_reason"`
}

type outboundChunk struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []outboundChunkChoice  `json:"choices"`
	Usage   *outboundUsage         `json:"usage,omitempty"`
}

// buildChunkEnvelope implements the chat.completion.chunk wire shape for
// one normalized providers.StreamChunk.
func buildChunkEnvelope(id, requestedModel string, chunk providers.StreamChunk) outboundChunk {
	var finishReason *string
	if chunk.FinishReason != "" {
		fr := chunk.FinishReason
		finishReason = &fr
	}
	out := outboundChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   requestedModel,
		Choices: []outboundChunkChoice{{
			Index: 0,
			Delta: outboundDelta{
				Content:          chunk.ContentDelta,
				ReasoningContent: chunk.ReasoningContentDelta,
				ToolCalls:        toOutboundToolCalls(chunk.ToolCallDeltas),
			},
			FinishReason: finishReason,
		}},
	}
	if chunk.FinalUsage != nil {
		u := toOutboundUsage(*chunk.FinalUsage)
		out.Usage = &u
	}
	return out
}
