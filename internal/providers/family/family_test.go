package family

import (
	"strings"
	"testing"

	"github.com/llmgateway/gateway/internal/providers"
)

func TestMapFinishReason(t *testing.T) {
	cases := map[string]string{
		"stop": "stop", "end_turn": "stop", "STOP": "stop",
		"tool_use": "tool_calls", "length": "length", "MAX_TOKENS": "length",
		"":              "stop",
		"content_filter": "content_filter",
	}
	for in, want := range cases {
		if got := MapFinishReason(in); got != want {
			t.Errorf("MapFinishReason(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenAIStreamParserToolCallAccumulation(t *testing.T) {
	p := OpenAI{}.NewStreamParser()
	p.Feed([]byte(`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"loc"}}]}}]}` + "\n"))
	p.Feed([]byte(`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ation\":\"NYC\"}"}}]}}]}` + "\n"))
	p.Feed([]byte("data: [DONE]\n"))

	chunk1, ok := p.Next()
	if !ok || len(chunk1.ToolCallDeltas) != 1 || chunk1.ToolCallDeltas[0].Name != "get_weather" {
		t.Fatalf("chunk1 = %+v, ok=%v", chunk1, ok)
	}
	chunk2, ok := p.Next()
	if !ok {
		t.Fatal("expected second chunk")
	}
	if chunk2.ToolCallDeltas[0].Arguments != `{"location":"NYC"}` {
		t.Fatalf("accumulated arguments = %q", chunk2.ToolCallDeltas[0].Arguments)
	}
	if _, ok := p.Next(); ok {
		t.Fatal("expected no more chunks after [DONE]")
	}
}

func TestAnthropicStreamParserTextAndToolUse(t *testing.T) {
	p := Anthropic{}.NewStreamParser()
	p.Feed([]byte(`data: {"type":"content_block_start","content_block":{"type":"text"}}` + "\n"))
	p.Feed([]byte(`data: {"type":"content_block_delta","delta":{"type":"text_delta","text":"hi"}}` + "\n"))
	p.Feed([]byte(`data: {"type":"content_block_start","content_block":{"type":"tool_use","id":"t1","name":"lookup"}}` + "\n"))
	p.Feed([]byte(`data: {"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{\"q\":1}"}}` + "\n"))
	p.Feed([]byte(`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}` + "\n"))

	chunk1, ok := p.Next()
	if !ok || chunk1.ContentDelta != "hi" {
		t.Fatalf("chunk1 = %+v ok=%v", chunk1, ok)
	}
	chunk2, ok := p.Next()
	if !ok || len(chunk2.ToolCallDeltas) != 1 || chunk2.ToolCallDeltas[0].Arguments != `{"q":1}` {
		t.Fatalf("chunk2 = %+v ok=%v", chunk2, ok)
	}
	chunk3, ok := p.Next()
	if !ok || chunk3.FinishReason != "stop" || chunk3.FinalUsage == nil || chunk3.FinalUsage.CompletionTokens != 5 {
		t.Fatalf("chunk3 = %+v ok=%v", chunk3, ok)
	}
}

func TestGoogleStreamParserConcatenatedObjects(t *testing.T) {
	p := Google{}.NewStreamParser()
	p.Feed([]byte(`{"candidates":[{"content":{"parts":[{"text":"one"}]}}]}{"candidates":[{"content":{"parts":[{"text":"two"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":2}}`))

	chunk1, ok := p.Next()
	if !ok || chunk1.ContentDelta != "one" {
		t.Fatalf("chunk1 = %+v ok=%v", chunk1, ok)
	}
	chunk2, ok := p.Next()
	if !ok || chunk2.ContentDelta != "two" || chunk2.FinishReason != "stop" {
		t.Fatalf("chunk2 = %+v ok=%v", chunk2, ok)
	}
	if chunk2.FinalUsage == nil || chunk2.FinalUsage.PromptTokens != 3 {
		t.Fatalf("expected usage in final chunk, got %+v", chunk2.FinalUsage)
	}
}

func TestGoogleStreamParserIncompleteTrailerWaits(t *testing.T) {
	p := Google{}.NewStreamParser()
	p.Feed([]byte(`{"candidates":[{"content":{"parts":[{"text":"partial`))
	if _, ok := p.Next(); ok {
		t.Fatal("expected no chunk from an incomplete object")
	}
	p.Feed([]byte(`"}]}}]}`))
	chunk, ok := p.Next()
	if !ok || chunk.ContentDelta != "partial" {
		t.Fatalf("chunk = %+v ok=%v", chunk, ok)
	}
}

func TestMistralJSONFenceUnwrap(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":"Here you go:\n` + "```json" + `\n{\"a\":1}\n` + "```" + `\n"},"finish_reason":"stop"}],"usage":{}}`)
	out, err := Mistral{}.ParseUnary(body)
	if err != nil {
		t.Fatal(err)
	}
	if out.Content != `{"a":1}` {
		t.Fatalf("unwrapped content = %q", out.Content)
	}
}

func TestMistralNoFenceLeavesContentUntouched(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":"plain text"},"finish_reason":"stop"}],"usage":{}}`)
	out, err := Mistral{}.ParseUnary(body)
	if err != nil {
		t.Fatal(err)
	}
	if out.Content != "plain text" {
		t.Fatalf("content = %q", out.Content)
	}
}

func TestAnthropicSplitsSystemMessage(t *testing.T) {
	req := &providers.ChatRequest{
		Model: "claude-opus-4-20250514",
		Messages: []providers.Message{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hi"},
		},
	}
	body, headers, err := Anthropic{}.TranslateRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `"system":"be terse"`) {
		t.Fatalf("expected system field, got %s", body)
	}
	if strings.Contains(string(body), `"role":"system"`) {
		t.Fatalf("system message should not appear in messages array: %s", body)
	}
	if headers["anthropic-version"] == "" {
		t.Fatal("expected anthropic-version header")
	}
}
