package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/llmgateway/gateway/internal/providers"
	"github.com/llmgateway/gateway/internal/router"
)

// inboundMessage mirrors spec §6.1's message shape. Content may be a bare
// string or an array of {type:"text"|"image_url", ...} parts; Content
// captures whichever the client sent for flattenContent to normalize.
type inboundMessage struct {
	Role       string          `json:"role"`
	Content    json.RawMessage `json:"content"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  json.RawMessage `json:"tool_calls,omitempty"`
}

type inboundResponseFormat struct {
	Type string `json:"type"`
}

// inboundChatRequest is the wire body of POST /v1/chat/completions.
type inboundChatRequest struct {
	Model            string                 `json:"model"`
	Messages         []inboundMessage       `json:"messages"`
	Stream           bool                   `json:"stream"`
	Temperature      *float64               `json:"temperature"`
	MaxTokens        int                    `json:"max_tokens"`
	TopP             *float64               `json:"top_p"`
	FrequencyPenalty float64                `json:"frequency_penalty"`
	PresencePenalty  float64                `json:"presence_penalty"`
	ResponseFormat   *inboundResponseFormat `json:"response_format"`
	Tools            json.RawMessage        `json:"tools"`
	ToolChoice       json.RawMessage        `json:"tool_choice"`
	ReasoningEffort  string                 `json:"reasoning_effort"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// flattenContent normalizes a message's raw "content" field into a text
// string plus any image URLs, per spec §6.1: "content may be string or array
// of {type:'text'|'image_url', ...}".
func flattenContent(raw json.RawMessage) (text string, images []string, err error) {
	if len(raw) == 0 {
		return "", nil, nil
	}

	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, nil, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", nil, fmt.Errorf("'content' must be a string or array of parts: %w", err)
	}
	var sb []byte
	for _, p := range parts {
		switch p.Type {
		case "text":
			sb = append(sb, p.Text...)
		case "image_url":
			if p.ImageURL.URL != "" {
				images = append(images, p.ImageURL.URL)
			}
		}
	}
	return string(sb), images, nil
}

func toChatRequest(body inboundChatRequest, requestID string) (*providers.ChatRequest, router.RequestParams, error) {
	if len(body.Messages) == 0 {
		return nil, router.RequestParams{}, fmt.Errorf("'messages' must not be empty")
	}

	msgs := make([]providers.Message, len(body.Messages))
	for i, m := range body.Messages {
		text, images, err := flattenContent(m.Content)
		if err != nil {
			return nil, router.RequestParams{}, err
		}
		msg := providers.Message{
			Role:       m.Role,
			Content:    text,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ImageURLs:  images,
		}
		if len(m.ToolCalls) > 0 {
			var refs []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			}
			if err := json.Unmarshal(m.ToolCalls, &refs); err != nil {
				return nil, router.RequestParams{}, fmt.Errorf("invalid 'tool_calls': %w", err)
			}
			for i, r := range refs {
				msg.ToolCalls = append(msg.ToolCalls, providers.ToolCall{
					Index: i, ID: r.ID, Type: "function", Name: r.Function.Name, Arguments: r.Function.Arguments,
				})
			}
		}
		msgs[i] = msg
	}

	req := &providers.ChatRequest{
		Model:            body.Model,
		Messages:         msgs,
		Stream:           body.Stream,
		MaxTokens:        body.MaxTokens,
		FrequencyPenalty: body.FrequencyPenalty,
		PresencePenalty:  body.PresencePenalty,
		Tools:            body.Tools,
		ToolChoice:       body.ToolChoice,
		ReasoningEffort:  body.ReasoningEffort,
		RequestID:        requestID,
	}
	if body.Temperature != nil {
		req.Temperature = *body.Temperature
		req.HasTemperature = true
	}
	if body.TopP != nil {
		req.TopP = *body.TopP
		req.HasTopP = true
	}

	jsonOutput := false
	if body.ResponseFormat != nil {
		req.ResponseFormat = &providers.ResponseFormat{Type: body.ResponseFormat.Type}
		jsonOutput = body.ResponseFormat.Type == "json_object"
	}

	params := router.RequestParams{
		ResponseFormatJSON: jsonOutput,
		ReasoningEffort:    body.ReasoningEffort,
		Stream:             body.Stream,
		MaxTokens:          body.MaxTokens,
	}
	return req, params, nil
}
