package family

import (
	"encoding/json"

	"github.com/llmgateway/gateway/internal/providers"
)

// Google implements Family for Gemini's generateContent/streamGenerateContent
// API, used by both the AI-Studio and Vertex providers (they differ only in
// auth scheme and endpoint, handled by the catalog/dispatcher, not here).
type Google struct{}

type googlePart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     *googleFuncCall `json:"functionCall,omitempty"`
	FunctionResponse *googleFuncResp `json:"functionResponse,omitempty"`
}

type googleFuncCall struct {
	Name string `json:"name"`
	Args any    `json:"args"`
}

type googleFuncResp struct {
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleRequest struct {
	Contents          []googleContent `json:"contents"`
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     *float64 `json:"temperature,omitempty"`
		TopP            *float64 `json:"topP,omitempty"`
		MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
		ResponseMIMEType string  `json:"responseMimeType,omitempty"`
	} `json:"generationConfig"`
}

func (Google) TranslateRequest(req *providers.ChatRequest) ([]byte, map[string]string, error) {
	var out googleRequest
	out.GenerationConfig.MaxOutputTokens = req.MaxTokens
	if req.HasTemperature {
		t := req.Temperature
		out.GenerationConfig.Temperature = &t
	}
	if req.HasTopP {
		p := req.TopP
		out.GenerationConfig.TopP = &p
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		out.GenerationConfig.ResponseMIMEType = "application/json"
	}

	var systemParts []googlePart
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemParts = append(systemParts, googlePart{Text: m.Content})
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		content := googleContent{Role: role}
		if m.Content != "" {
			content.Parts = append(content.Parts, googlePart{Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			var args any
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			content.Parts = append(content.Parts, googlePart{FunctionCall: &googleFuncCall{Name: tc.Name, Args: args}})
		}
		if m.Role == "tool" {
			content.Role = "user"
			content.Parts = []googlePart{{FunctionResponse: &googleFuncResp{Name: m.Name, Response: m.Content}}}
		}
		out.Contents = append(out.Contents, content)
	}
	if len(systemParts) > 0 {
		out.SystemInstruction = &googleContent{Parts: systemParts}
	}

	return mustMarshal(out), map[string]string{}, nil
}

type googleUnaryResponse struct {
	Candidates []struct {
		Content      googleContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
		CachedContentTokenCount int `json:"cachedContentTokenCount"`
	} `json:"usageMetadata"`
}

func (Google) ParseUnary(body []byte) (*providers.ChatResponse, error) {
	var r googleUnaryResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	out := &providers.ChatResponse{
		Usage: providers.Usage{
			PromptTokens:     r.UsageMetadata.PromptTokenCount,
			CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      r.UsageMetadata.TotalTokenCount,
			CachedTokens:     r.UsageMetadata.CachedContentTokenCount,
		},
	}
	if len(r.Candidates) > 0 {
		c := r.Candidates[0]
		out.FinishReason = MapFinishReason(c.FinishReason)
		idx := 0
		for _, part := range c.Content.Parts {
			if part.Text != "" {
				out.Content += part.Text
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				out.ToolCalls = append(out.ToolCalls, providers.ToolCall{
					Index: idx, Type: "function", Name: part.FunctionCall.Name, Arguments: string(args),
				})
				idx++
			}
		}
	}
	return out, nil
}

func (Google) NewStreamParser() StreamParser {
	return &googleStreamParser{}
}

// googleStreamParser implements spec §4.8's google streaming rule: the
// stream is a concatenation of raw JSON objects with no SSE framing. It
// finds each top-level "{...}" with a balanced-brace scan (aware of string
// literals and escapes) from the first unconsumed "{", retaining incomplete
// trailers in a buffer capped at MaxStreamBuffer (on overflow the buffer is
// dropped).
type googleStreamParser struct {
	buf []byte
}

func (p *googleStreamParser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
	if len(p.buf) > MaxStreamBuffer {
		p.buf = nil
	}
}

func (p *googleStreamParser) Next() (providers.StreamChunk, bool) {
	for len(p.buf) > 0 {
		start := indexByte(p.buf, '{')
		if start < 0 {
			p.buf = nil
			return providers.StreamChunk{}, false
		}
		p.buf = p.buf[start:]

		obj, consumed, ok := scanJSONObject(p.buf)
		if !ok {
			return providers.StreamChunk{}, false // wait for more data
		}
		p.buf = p.buf[consumed:]

		var r googleUnaryResponse
		if err := json.Unmarshal(obj, &r); err != nil {
			continue
		}
		chunk := providers.StreamChunk{}
		if len(r.Candidates) > 0 {
			c := r.Candidates[0]
			for _, part := range c.Content.Parts {
				chunk.ContentDelta += part.Text
			}
			if c.FinishReason != "" {
				chunk.FinishReason = MapFinishReason(c.FinishReason)
			}
		}
		if r.UsageMetadata.PromptTokenCount > 0 || r.UsageMetadata.CandidatesTokenCount > 0 {
			chunk.FinalUsage = &providers.Usage{
				PromptTokens:     r.UsageMetadata.PromptTokenCount,
				CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      r.UsageMetadata.TotalTokenCount,
			}
		}
		return chunk, true
	}
	return providers.StreamChunk{}, false
}

func (p *googleStreamParser) Close() (providers.StreamChunk, bool) {
	return providers.StreamChunk{}, false
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// scanJSONObject scans buf from buf[0] (assumed '{') for the matching
// closing brace, skipping braces inside string literals, and returns that
// balanced object. It does not validate the JSON; the caller's Unmarshal
// does. ok is false when the braces are not yet balanced — the caller
// should wait for more bytes from Feed.
func scanJSONObject(buf []byte) (obj []byte, consumed int, ok bool) {
	depth := 0
	inString := false
	escaped := false
	for i, c := range buf {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return buf[:i+1], i + 1, true
			}
		}
	}
	return nil, 0, false
}
