package family

import (
	"bytes"
	"encoding/json"

	"github.com/llmgateway/gateway/internal/providers"
)

// OpenAI implements Family for the openai-family dialect shared by OpenAI,
// DeepSeek, Perplexity, Groq, Together, Inference.net, Alibaba, xAI,
// Moonshot, Meta, and operator-defined custom endpoints — per spec §4.7,
// "pass-through with trivial field omission".
type OpenAI struct{}

type openaiMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []openaiToolRef `json:"tool_calls,omitempty"`
}

type openaiToolRef struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiRequest struct {
	Model            string            `json:"model"`
	Messages         []openaiMessage   `json:"messages"`
	Stream           bool              `json:"stream,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	MaxTokens        int               `json:"max_tokens,omitempty"`
	TopP             *float64          `json:"top_p,omitempty"`
	FrequencyPenalty float64           `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64           `json:"presence_penalty,omitempty"`
	ResponseFormat   *openaiRespFormat `json:"response_format,omitempty"`
	Tools            json.RawMessage   `json:"tools,omitempty"`
	ToolChoice       json.RawMessage   `json:"tool_choice,omitempty"`
	ReasoningEffort  string            `json:"reasoning_effort,omitempty"`
}

type openaiRespFormat struct {
	Type string `json:"type"`
}

func (OpenAI) TranslateRequest(req *providers.ChatRequest) ([]byte, map[string]string, error) {
	out := openaiRequest{
		Model:            req.Model,
		Stream:           req.Stream,
		MaxTokens:        req.MaxTokens,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Tools:            json.RawMessage(req.Tools),
		ToolChoice:       json.RawMessage(req.ToolChoice),
		ReasoningEffort:  req.ReasoningEffort,
	}
	if req.HasTemperature {
		t := req.Temperature
		out.Temperature = &t
	}
	if req.HasTopP {
		p := req.TopP
		out.TopP = &p
	}
	if req.ResponseFormat != nil {
		out.ResponseFormat = &openaiRespFormat{Type: req.ResponseFormat.Type}
	}
	for _, m := range req.Messages {
		msg := openaiMessage{Role: m.Role, Content: m.Content, Name: m.Name, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			ref := openaiToolRef{ID: tc.ID, Type: "function"}
			ref.Function.Name = tc.Name
			ref.Function.Arguments = tc.Arguments
			msg.ToolCalls = append(msg.ToolCalls, ref)
		}
		out.Messages = append(out.Messages, msg)
	}
	return mustMarshal(out), map[string]string{}, nil
}

type openaiUnaryResponse struct {
	Choices []struct {
		Message struct {
			Content          string          `json:"content"`
			ReasoningContent string          `json:"reasoning_content"`
			ToolCalls        []openaiToolRef `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
		CompletionTokensDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"completion_tokens_details"`
	} `json:"usage"`
}

func (OpenAI) ParseUnary(body []byte) (*providers.ChatResponse, error) {
	var r openaiUnaryResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	out := &providers.ChatResponse{
		Usage: providers.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
			CachedTokens:     r.Usage.PromptTokensDetails.CachedTokens,
			ReasoningTokens:  r.Usage.CompletionTokensDetails.ReasoningTokens,
		},
	}
	if len(r.Choices) > 0 {
		c := r.Choices[0]
		out.Content = c.Message.Content
		out.ReasoningContent = c.Message.ReasoningContent
		out.FinishReason = MapFinishReason(c.FinishReason)
		for i, tc := range c.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
				Index: i, ID: tc.ID, Type: "function", Name: tc.Function.Name, Arguments: tc.Function.Arguments,
			})
		}
	}
	return out, nil
}

func (OpenAI) NewStreamParser() StreamParser {
	return &openaiStreamParser{}
}

// openaiStreamParser implements spec §4.8's openai-family streaming rule:
// consume "data: <json>" SSE lines delimited by "\n", terminate on
// "data: [DONE]". Tool calls are accumulated by delta.tool_calls[i].index.
type openaiStreamParser struct {
	buf       []byte
	done      bool
	toolCalls map[int]*providers.ToolCall
}

type openaiChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *openaiStreamParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
	if len(p.buf) > MaxStreamBuffer {
		p.buf = nil // spec §5: drop the buffer, not the connection
	}
}

func (p *openaiStreamParser) Next() (providers.StreamChunk, bool) {
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			return providers.StreamChunk{}, false
		}
		line := bytes.TrimSpace(p.buf[:idx])
		p.buf = p.buf[idx+1:]

		if len(line) == 0 {
			continue
		}
		payload, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		payload = bytes.TrimSpace(payload)
		if bytes.Equal(payload, []byte("[DONE]")) {
			p.done = true
			continue
		}

		var c openaiChunk
		if err := json.Unmarshal(payload, &c); err != nil {
			continue
		}

		chunk := providers.StreamChunk{}
		if len(c.Choices) > 0 {
			ch := c.Choices[0]
			chunk.ContentDelta = ch.Delta.Content
			chunk.ReasoningContentDelta = ch.Delta.ReasoningContent
			if ch.FinishReason != "" {
				chunk.FinishReason = MapFinishReason(ch.FinishReason)
			}
			for _, tc := range ch.Delta.ToolCalls {
				if p.toolCalls == nil {
					p.toolCalls = map[int]*providers.ToolCall{}
				}
				acc, ok := p.toolCalls[tc.Index]
				if !ok {
					acc = &providers.ToolCall{Index: tc.Index, Type: "function"}
					p.toolCalls[tc.Index] = acc
				}
				if tc.ID != "" {
					acc.ID = tc.ID
				}
				if tc.Function.Name != "" {
					acc.Name = tc.Function.Name
				}
				acc.Arguments += tc.Function.Arguments
				chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, *acc)
			}
		}
		if c.Usage != nil {
			chunk.FinalUsage = &providers.Usage{
				PromptTokens:     c.Usage.PromptTokens,
				CompletionTokens: c.Usage.CompletionTokens,
				TotalTokens:      c.Usage.TotalTokens,
			}
		}
		return chunk, true
	}
}

func (p *openaiStreamParser) Close() (providers.StreamChunk, bool) {
	return providers.StreamChunk{}, false
}
