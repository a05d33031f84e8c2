// Package vertexai implements providers.Checker for Google Vertex AI via the
// same google.golang.org/genai SDK the gemini package uses, but authenticated
// with Application Default Credentials instead of an API key — used only as
// a readiness probe. Translate/normalize logic for both Gemini dialects
// lives in the single internal/providers/family Google implementation (see
// DESIGN.md); only credential acquisition differs between the two.
//
// Required configuration:
//   - VERTEX_PROJECT  — Google Cloud project ID
//   - VERTEX_LOCATION — region, e.g. "us-central1" (default)
//
// Authentication is handled via ADC:
//   - GOOGLE_APPLICATION_CREDENTIALS pointing to a service account key file, or
//   - Workload Identity / GCE metadata server when running on GCP.
package vertexai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultLocation = "us-central1"
	providerName    = "google-vertex"
)

// Checker probes Vertex AI endpoint reachability.
type Checker struct {
	project  string
	location string
	client   *genai.Client
}

// Option configures a Checker.
type Option func(*Checker)

// WithLocation overrides the default Vertex AI region.
func WithLocation(loc string) Option {
	return func(c *Checker) { c.location = loc }
}

// New creates a new Vertex AI Checker.
// Auth is resolved via Application Default Credentials — no API key needed.
func New(ctx context.Context, project string, opts ...Option) (*Checker, error) {
	c := &Checker{
		project:  project,
		location: defaultLocation,
	}
	for _, o := range opts {
		o(c)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  c.project,
		Location: c.location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("vertexai: create client: %w", err)
	}

	c.client = client
	return c, nil
}

func (c *Checker) Name() string { return providerName }

// HealthCheck lists models (capped at 1) as a cheap reachability/auth probe.
func (c *Checker) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	if err != nil {
		return fmt.Errorf("vertexai: health check: %w", toProviderError(err))
	}
	return nil
}

// ProviderError wraps a Vertex AI API error.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("vertexai: %s (status=%d)", e.Message, e.StatusCode)
}

func (e *ProviderError) HTTPStatus() int { return e.StatusCode }

func toProviderError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	return err
}
