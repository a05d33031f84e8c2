// Package openaicompat implements providers.Checker for any service speaking
// an OpenAI-compatible dialect (xAI, Groq, DeepSeek, Together AI, Perplexity,
// Cerebras, etc.) — used only as a readiness probe. Translate/normalize logic
// for these dialects lives in internal/providers/family, which reuses the
// OpenAI wire codec per catalog-declared provider (see DESIGN.md).
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openaiSDK "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/llmgateway/gateway/internal/providers"
)

// Checker probes an OpenAI-compatible endpoint's reachability.
type Checker struct {
	name    string
	apiKey  string
	baseURL string
	client  openaiSDK.Client
}

var _ providers.Checker = (*Checker)(nil)

// New creates a Checker for an OpenAI-compatible provider.
//
//   - name    — unique provider identifier used for routing and logs.
//   - apiKey  — API key sent as "Authorization: Bearer <key>".
//   - baseURL — API base URL, e.g. "https://api.x.ai/v1".
func New(name, apiKey, baseURL string) *Checker {
	c := &Checker{name: name, apiKey: apiKey, baseURL: baseURL}

	opts := []option.RequestOption{
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(&http.Client{Timeout: providers.ProviderTimeout}),
	}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}

	c.client = openaiSDK.NewClient(opts...)
	return c
}

func (c *Checker) Name() string { return c.name }

// HealthCheck lists models as a cheap reachability/auth probe.
func (c *Checker) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%s: health check: %w", c.name, c.toProviderError(err))
	}
	return nil
}

// ProviderError is a structured error returned by an OpenAI-compatible API.
type ProviderError struct {
	Name       string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (status=%d)", e.Name, e.Message, e.StatusCode)
}

func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func (c *Checker) toProviderError(err error) error {
	var apiErr *openaiSDK.Error
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Name:       c.name,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
		}
	}
	return err
}
