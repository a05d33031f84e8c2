package family

import (
	"bytes"
	"encoding/json"

	"github.com/llmgateway/gateway/internal/providers"
)

// Anthropic implements Family for Claude's Messages API — per spec §4.7,
// system messages are split into a top-level "system" field and max_tokens
// is required.
type Anthropic struct{}

type anthropicMessage struct {
	Role    string                 `json:"role"`
	Content []anthropicContentItem `json:"content"`
}

type anthropicContentItem struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	Tools       json.RawMessage    `json:"tools,omitempty"`
	ToolChoice  json.RawMessage    `json:"tool_choice,omitempty"`
}

const defaultAnthropicMaxTokens = 4096

func (Anthropic) TranslateRequest(req *providers.ChatRequest) ([]byte, map[string]string, error) {
	out := anthropicRequest{
		Model:      req.Model,
		Stream:     req.Stream,
		Tools:      json.RawMessage(req.Tools),
		ToolChoice: json.RawMessage(req.ToolChoice),
	}
	out.MaxTokens = req.MaxTokens
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultAnthropicMaxTokens // "max_tokens is required"
	}
	if req.HasTemperature {
		t := req.Temperature
		out.Temperature = &t
	}
	if req.HasTopP {
		p := req.TopP
		out.TopP = &p
	}

	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		role := m.Role
		if role == "tool" {
			out.Messages = append(out.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContentItem{{
					Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content,
				}},
			})
			continue
		}
		item := anthropicMessage{Role: role}
		if m.Content != "" {
			item.Content = append(item.Content, anthropicContentItem{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var input any
			_ = json.Unmarshal([]byte(tc.Arguments), &input)
			item.Content = append(item.Content, anthropicContentItem{
				Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input,
			})
		}
		out.Messages = append(out.Messages, item)
	}
	if len(systemParts) > 0 {
		joined := systemParts[0]
		for _, s := range systemParts[1:] {
			joined += "\n" + s
		}
		out.System = joined
	}

	return mustMarshal(out), map[string]string{"anthropic-version": "2023-06-01"}, nil
}

type anthropicUnaryResponse struct {
	Content []struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		ID    string `json:"id"`
		Name  string `json:"name"`
		Input any    `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

func (Anthropic) ParseUnary(body []byte) (*providers.ChatResponse, error) {
	var r anthropicUnaryResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	out := &providers.ChatResponse{
		FinishReason: MapFinishReason(r.StopReason),
		Usage: providers.Usage{
			PromptTokens:     r.Usage.InputTokens,
			CompletionTokens: r.Usage.OutputTokens,
			TotalTokens:      r.Usage.InputTokens + r.Usage.OutputTokens,
			CachedTokens:     r.Usage.CacheReadInputTokens,
		},
	}
	idx := 0
	for _, c := range r.Content {
		switch c.Type {
		case "text":
			out.Content += c.Text
		case "tool_use":
			args, _ := json.Marshal(c.Input)
			out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
				Index: idx, ID: c.ID, Type: "function", Name: c.Name, Arguments: string(args),
			})
			idx++
		}
	}
	return out, nil
}

func (Anthropic) NewStreamParser() StreamParser {
	return &anthropicStreamParser{}
}

// anthropicStreamParser implements the event-tagged state machine from
// spec §4.8: message_start, content_block_start, content_block_delta (text
// or partial_json for tool args), message_delta (carries stop_reason),
// message_stop.
type anthropicStreamParser struct {
	buf         []byte
	curToolCall *providers.ToolCall
	toolIdx     int
}

type anthropicEvent struct {
	Type         string `json:"type"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta *struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *anthropicStreamParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
	if len(p.buf) > MaxStreamBuffer {
		p.buf = nil
	}
}

func (p *anthropicStreamParser) Next() (providers.StreamChunk, bool) {
	for {
		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			return providers.StreamChunk{}, false
		}
		line := bytes.TrimSpace(p.buf[:idx])
		p.buf = p.buf[idx+1:]

		payload, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue // "event:" lines and blank separators are ignored; data carries the type too
		}
		payload = bytes.TrimSpace(payload)
		if len(payload) == 0 {
			continue
		}

		var ev anthropicEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				p.curToolCall = &providers.ToolCall{
					Index: p.toolIdx, ID: ev.ContentBlock.ID, Type: "function", Name: ev.ContentBlock.Name,
				}
				p.toolIdx++
			}
		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			if ev.Delta.Text != "" {
				return providers.StreamChunk{ContentDelta: ev.Delta.Text}, true
			}
			if ev.Delta.PartialJSON != "" && p.curToolCall != nil {
				p.curToolCall.Arguments += ev.Delta.PartialJSON
				return providers.StreamChunk{ToolCallDeltas: []providers.ToolCall{*p.curToolCall}}, true
			}
		case "content_block_stop":
			p.curToolCall = nil
		case "message_delta":
			chunk := providers.StreamChunk{}
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				chunk.FinishReason = MapFinishReason(ev.Delta.StopReason)
			}
			if ev.Usage != nil {
				chunk.FinalUsage = &providers.Usage{CompletionTokens: ev.Usage.OutputTokens}
			}
			if chunk.FinishReason != "" || chunk.FinalUsage != nil {
				return chunk, true
			}
		case "message_stop":
			continue
		}
	}
}

func (p *anthropicStreamParser) Close() (providers.StreamChunk, bool) {
	return providers.StreamChunk{}, false
}
