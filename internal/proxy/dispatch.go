package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/llmgateway/gateway/internal/catalog"
	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/providers/family"
	"github.com/llmgateway/gateway/internal/router"
)

// familyFor resolves the response-family capability for a route, per
// catalog-declared family for cataloged providers or the fixed
// OpenAI-compatible dialect for custom providers (spec glossary: "an
// operator-defined OpenAI-compatible endpoint").
func (g *Gateway) familyFor(route router.Route) (family.Family, error) {
	if route.IsCustomProvider {
		return family.OpenAI{}, nil
	}
	fam, ok := g.cat.ProviderFamily(route.ProviderID)
	if !ok {
		return nil, fmt.Errorf("dispatch: unknown provider %q", route.ProviderID)
	}
	f, ok := family.ByName(string(fam))
	if !ok {
		return nil, fmt.Errorf("dispatch: no family implementation for %q", fam)
	}
	return f, nil
}

// upstreamURL builds the endpoint URL for route, substituting "{model}" in
// the catalog's endpoint template where present.
func (g *Gateway) upstreamURL(route router.Route, cred credentials.Resolved, stream bool) (string, error) {
	if route.IsCustomProvider {
		base := strings.TrimRight(cred.BaseURL, "/")
		if base == "" {
			return "", fmt.Errorf("dispatch: custom provider %q has no base URL configured", route.CustomProviderName)
		}
		return base + "/chat/completions", nil
	}

	p, ok := g.cat.FindProvider(route.ProviderID)
	if !ok {
		return "", fmt.Errorf("dispatch: unknown provider %q", route.ProviderID)
	}
	endpoint := p.Endpoint
	if stream && p.StreamEndpoint != "" {
		endpoint = p.StreamEndpoint
	}
	return strings.ReplaceAll(endpoint, "{model}", route.ProviderModelName), nil
}

// applyAuth attaches the resolved credential to req per the provider's
// catalog-declared auth scheme (spec §4.7's "header conventions... fixed by
// C1's metadata").
func (g *Gateway) applyAuth(req *http.Request, route router.Route, cred credentials.Resolved) {
	if route.IsCustomProvider {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
		return
	}
	p, ok := g.cat.FindProvider(route.ProviderID)
	if !ok {
		return
	}
	switch p.AuthScheme {
	case catalog.AuthHeader:
		req.Header.Set(p.AuthHeaderName, cred.Token)
	case catalog.AuthQueryParam:
		q := req.URL.Query()
		q.Set("key", cred.Token)
		req.URL.RawQuery = q.Encode()
	default: // catalog.AuthBearer and zero-value fallback
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}
}

// upstreamResponse is the raw outcome of a unary upstream call.
type upstreamResponse struct {
	StatusCode int
	Body       []byte
}

// HTTPStatus implements providers.StatusCoder so handleProviderError can
// classify non-2xx upstream responses per spec §4.8.
func (u *upstreamResponse) Error() string {
	return fmt.Sprintf("upstream returned status %d", u.StatusCode)
}

func (u *upstreamResponse) HTTPStatus() int { return u.StatusCode }

// doUnary issues a single POST to url and returns the raw body. A non-2xx
// response is returned as both a value and a *upstreamResponse error so
// callers can choose how to branch.
func (g *Gateway) doUnary(
	ctx context.Context,
	url string,
	headers map[string]string,
	body []byte,
	route router.Route,
	cred credentials.Resolved,
) (*upstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	g.applyAuth(req, route, cred)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, family.MaxStreamBuffer))
	if err != nil {
		return nil, fmt.Errorf("dispatch: read response: %w", err)
	}

	ur := &upstreamResponse{StatusCode: resp.StatusCode, Body: respBody}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ur, ur
	}
	return ur, nil
}

// openStream issues a POST to url and returns the live response for the
// caller to read and feed to a family.StreamParser chunk-by-chunk. The
// caller must close resp.Body once done.
func (g *Gateway) openStream(
	ctx context.Context,
	url string,
	headers map[string]string,
	body []byte,
	route router.Route,
	cred credentials.Resolved,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	g.applyAuth(req, route, cred)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, family.MaxStreamBuffer))
		resp.Body.Close()
		return nil, &upstreamResponse{StatusCode: resp.StatusCode, Body: respBody}
	}
	return resp, nil
}
