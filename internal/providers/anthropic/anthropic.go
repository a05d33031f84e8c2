// Package anthropic implements providers.Checker for Anthropic via the
// official SDK — used only as a readiness probe. Translate/normalize logic
// lives in internal/providers/family (see DESIGN.md).
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/llmgateway/gateway/internal/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	providerName   = "anthropic"
)

// Checker probes Anthropic endpoint reachability.
type Checker struct {
	apiKey  string
	baseURL string
	client  anthropic.Client
}

var _ providers.Checker = (*Checker)(nil)

// Option configures a Checker.
type Option func(*Checker)

// WithBaseURL overrides the API base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *Checker) { c.baseURL = url }
}

// New creates a new Anthropic Checker.
func New(apiKey string, opts ...Option) *Checker {
	c := &Checker{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}

	httpClient := &http.Client{Timeout: providers.ProviderTimeout}

	c.client = anthropic.NewClient(
		option.WithAPIKey(c.apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(httpClient),
	)
	return c
}

func (c *Checker) Name() string { return providerName }

// HealthCheck lists models (capped at 1) as a cheap reachability/auth probe.
func (c *Checker) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx, anthropic.ModelListParams{
		Limit: anthropic.Int(1),
	})
	if err != nil {
		return fmt.Errorf("anthropic: health check: %w", toProviderError(err))
	}
	return nil
}

// ProviderError is a structured error returned by the Anthropic API.
type ProviderError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("anthropic: %s (status=%d, type=%s)", e.Message, e.StatusCode, e.Type)
}

// HTTPStatus implements providers.StatusCoder.
func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func toProviderError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return &ProviderError{
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
			Type:       "anthropic_error",
		}
	}
	return err
}
