// Package openai implements providers.Checker for the OpenAI family via the
// official SDK — used only as a readiness probe. Translate/normalize logic
// for the OpenAI wire dialect lives in internal/providers/family, which
// hand-rolls the HTTP/SSE parsing the spec's byte-level invariants need
// (see DESIGN.md for why the SDK isn't used on that hot path).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/llmgateway/gateway/internal/providers"
	openaiSDK "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	providerName   = "openai"
)

// Checker probes OpenAI-dialect endpoint reachability.
type Checker struct {
	apiKey  string
	baseURL string
	client  openaiSDK.Client
}

var _ providers.Checker = (*Checker)(nil)

type Option func(*Checker)

func WithBaseURL(u string) Option {
	return func(c *Checker) { c.baseURL = u }
}

// New builds a Checker for apiKey, optionally against a non-default
// base URL (used for OpenAI-compatible providers like DeepSeek or Groq).
func New(apiKey string, opts ...Option) *Checker {
	c := &Checker{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}

	httpClient := &http.Client{Timeout: providers.ProviderTimeout}
	if c.baseURL != "" && c.baseURL != defaultBaseURL {
		httpClient.Transport = newBaseURLTransport(http.DefaultTransport, c.baseURL)
	}

	c.client = openaiSDK.NewClient(
		option.WithAPIKey(c.apiKey),
		option.WithHTTPClient(httpClient),
	)
	return c
}

func (c *Checker) Name() string { return providerName }

// HealthCheck lists models as a cheap reachability/auth probe.
func (c *Checker) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai: health check: %w", toProviderError(err))
	}
	return nil
}

// ProviderError carries the upstream HTTP status through providers.StatusCoder.
type ProviderError struct {
	StatusCode int
	Message    string
	Type       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("openai: %s (status=%d, type=%s)", e.Message, e.StatusCode, e.Type)
}

func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func toProviderError(err error) error {
	var apierr *openaiSDK.Error
	if errors.As(err, &apierr) {
		return &ProviderError{
			StatusCode: apierr.StatusCode,
			Message:    apierr.Error(),
			Type:       "openai_error",
		}
	}
	return err
}

type baseURLTransport struct {
	base *url.URL
	rt   http.RoundTripper
}

func newBaseURLTransport(next http.RoundTripper, base string) http.RoundTripper {
	u, err := url.Parse(base)
	if err != nil {
		return next
	}
	return &baseURLTransport{base: u, rt: next}
}

func (t *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r2 := req.Clone(req.Context())
	u2 := *req.URL

	u2.Scheme = t.base.Scheme
	u2.Host = t.base.Host

	basePath := strings.TrimRight(t.base.Path, "/")
	if basePath != "" && basePath != "/" {
		if !strings.HasPrefix(u2.Path, basePath+"/") && u2.Path != basePath {
			u2.Path = basePath + "/" + strings.TrimLeft(u2.Path, "/")
		}
	}
	r2.URL = &u2

	return t.rt.RoundTrip(r2)
}
