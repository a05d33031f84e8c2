// Package mistral implements providers.Checker for Mistral via a plain
// net/http GET against its models endpoint — used only as a readiness
// probe. Mistral speaks an OpenAI-compatible dialect on the hot path, which
// internal/providers/family's Mistral family handles by delegating
// translate/parse to the OpenAI wire codec and post-processing the result
// (see DESIGN.md).
package mistral

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/llmgateway/gateway/internal/providers"
)

const (
	defaultBaseURL = "https://api.mistral.ai/v1"
	providerName   = "mistral"
)

type apiErr struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type errorEnvelope struct {
	Error *apiErr `json:"error,omitempty"`
}

// Checker probes Mistral endpoint reachability.
type Checker struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type Option func(*Checker)

func WithBaseURL(url string) Option {
	return func(c *Checker) { c.baseURL = url }
}

func New(apiKey string, opts ...Option) *Checker {
	c := &Checker{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: providers.ProviderTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Checker) Name() string { return providerName }

// HealthCheck lists models as a cheap reachability/auth probe.
func (c *Checker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("mistral: health check: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("mistral: health check: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mistral: health check: %w", parseError(resp))
	}
	return nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Error != nil {
		return &ProviderError{
			StatusCode: resp.StatusCode,
			Message:    env.Error.Message,
			Type:       env.Error.Type,
		}
	}

	return &ProviderError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
		Type:       "provider_error",
	}
}

type ProviderError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mistral: %s (status=%d, type=%s)", e.Message, e.StatusCode, e.Type)
}

func (e *ProviderError) HTTPStatus() int { return e.StatusCode }
