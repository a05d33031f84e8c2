package family

import (
	"encoding/json"
	"strings"

	"github.com/llmgateway/gateway/internal/providers"
)

// Mistral implements Family as openai-family plus a JSON-fence unwrap
// post-step, per the design notes ("mistral, which is openai-family + a
// JSON-fence unwrap post-step") and spec §4.8's Mistral special case: if
// content contains a triple-backtick json fenced block, extract and
// re-serialize the inner JSON as the content string, preserving the
// json_object contract.
type Mistral struct {
	inner OpenAI
}

func (m Mistral) TranslateRequest(req *providers.ChatRequest) ([]byte, map[string]string, error) {
	return m.inner.TranslateRequest(req)
}

func (m Mistral) ParseUnary(body []byte) (*providers.ChatResponse, error) {
	out, err := m.inner.ParseUnary(body)
	if err != nil {
		return nil, err
	}
	out.Content = unwrapJSONFence(out.Content)
	return out, nil
}

func (m Mistral) NewStreamParser() StreamParser {
	return &mistralStreamParser{inner: m.inner.NewStreamParser().(*openaiStreamParser)}
}

type mistralStreamParser struct {
	inner       *openaiStreamParser
	accumulated strings.Builder
}

func (p *mistralStreamParser) Feed(data []byte) { p.inner.Feed(data) }

func (p *mistralStreamParser) Next() (providers.StreamChunk, bool) {
	chunk, ok := p.inner.Next()
	if ok {
		p.accumulated.WriteString(chunk.ContentDelta)
	}
	return chunk, ok
}

func (p *mistralStreamParser) Close() (providers.StreamChunk, bool) {
	return providers.StreamChunk{}, false
}

// unwrapJSONFence extracts the inner JSON from a ```json ... ``` fenced
// block and re-serializes it compactly, leaving content untouched if no
// fence is present or the inner text isn't valid JSON.
func unwrapJSONFence(content string) string {
	const fenceOpen = "```json"
	start := strings.Index(content, fenceOpen)
	if start < 0 {
		return content
	}
	rest := content[start+len(fenceOpen):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return content
	}
	inner := strings.TrimSpace(rest[:end])

	var v any
	if err := json.Unmarshal([]byte(inner), &v); err != nil {
		return content
	}
	reserialized, err := json.Marshal(v)
	if err != nil {
		return content
	}
	return string(reserialized)
}
