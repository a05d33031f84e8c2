// Package apierr provides the structured API error envelope and HTTP status
// mapping described by spec §6.1/§7, compatible with the OpenAI error
// format the teacher's gateway already speaks.
package apierr

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

// ErrorType constants — the envelope's "type" field.
const (
	TypeProviderError     = "provider_error"
	TypeRateLimitError    = "rate_limit_error"
	TypeInvalidRequest    = "invalid_request_error"
	TypeAuthenticationErr = "authentication_error"
	TypeNotFoundError     = "not_found_error"
	TypeServerError       = "server_error"
)

// Code constants — the envelope's "code" field.
const (
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInvalidAPIKey     = "invalid_api_key"
	CodeInternalError     = "internal_error"
	CodeProviderError     = "provider_error"
	CodeRequestTimeout    = "request_timeout"
	CodeNotImplemented    = "not_implemented"
	CodeInvalidRequest    = "invalid_request"
	CodeClientCanceled    = "client_canceled"
)

// Kind enumerates every distinguishable failure spec §7 names. Router and
// credential resolution produce their own Kind-typed errors
// (router.Error.Kind, credentials.Error.Kind); internal/proxy's
// routerAPIKind and credentialsAPIKind map those onto this taxonomy, and
// WriteKind turns a Kind into an HTTP response.
type Kind string

const (
	// Request validation / auth (spec §6.1, §7).
	KindAuthMissing       Kind = "auth_missing"
	KindAuthMalformed     Kind = "auth_malformed"
	KindAuthInvalid       Kind = "auth_invalid"
	KindBodyInvalid       Kind = "body_invalid"

	// Routing (mirrors internal/router.Kind).
	KindUnsupportedModel            Kind = "unsupported_model"
	KindModelProviderPrefixRequired Kind = "model_provider_prefix_required"
	KindProviderUnsupported         Kind = "provider_unsupported"
	KindCustomProviderNotFound      Kind = "custom_provider_not_found"
	KindModelDeactivated            Kind = "model_deactivated"
	KindJSONOutputUnsupported       Kind = "json_output_unsupported"
	KindReasoningUnsupported        Kind = "reasoning_unsupported"
	KindStreamingUnsupported        Kind = "streaming_unsupported"
	KindMaxTokensExceedsMaxOutput   Kind = "max_tokens_exceeds_max_output"
	KindNoAvailableProvider         Kind = "no_available_provider"

	// Credential resolution (mirrors internal/credentials.Kind).
	KindNoProviderKey         Kind = "no_provider_key"
	KindNoProviderEnv         Kind = "no_provider_env"
	KindCustomInCreditsMode   Kind = "custom_in_credits_mode"
	KindInsufficientCredits   Kind = "insufficient_credits"

	// Upstream dispatch.
	KindUpstreamHTTPError      Kind = "upstream_http_error"
	KindUpstreamTransportError Kind = "upstream_transport_error"
	KindUpstreamTimeout        Kind = "upstream_timeout"
	KindUpstreamRateLimited    Kind = "upstream_rate_limited"

	// Client-side.
	KindClientCanceled Kind = "client_canceled"

	// Fallback.
	KindInternal Kind = "internal"
)

// mapping describes how a Kind renders as an HTTP response.
type mapping struct {
	status  int
	errType string
	code    string
}

var kindMappings = map[Kind]mapping{
	KindAuthMissing:       {fasthttp.StatusUnauthorized, TypeAuthenticationErr, CodeInvalidAPIKey},
	KindAuthMalformed:     {fasthttp.StatusUnauthorized, TypeAuthenticationErr, CodeInvalidAPIKey},
	KindAuthInvalid:       {fasthttp.StatusUnauthorized, TypeAuthenticationErr, CodeInvalidAPIKey},
	KindBodyInvalid:       {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},

	KindUnsupportedModel:            {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindModelProviderPrefixRequired: {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindProviderUnsupported:         {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindCustomProviderNotFound:      {fasthttp.StatusNotFound, TypeNotFoundError, CodeInvalidRequest},
	KindModelDeactivated:            {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindJSONOutputUnsupported:       {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindReasoningUnsupported:        {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindStreamingUnsupported:        {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindMaxTokensExceedsMaxOutput:   {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindNoAvailableProvider:         {fasthttp.StatusServiceUnavailable, TypeProviderError, CodeProviderError},

	KindNoProviderKey:       {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindNoProviderEnv:       {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindCustomInCreditsMode: {fasthttp.StatusBadRequest, TypeInvalidRequest, CodeInvalidRequest},
	KindInsufficientCredits: {fasthttp.StatusPaymentRequired, TypeInvalidRequest, CodeInvalidRequest},

	KindUpstreamHTTPError:      {fasthttp.StatusBadGateway, TypeProviderError, CodeProviderError},
	KindUpstreamTransportError: {fasthttp.StatusBadGateway, TypeProviderError, CodeProviderError},
	KindUpstreamTimeout:        {fasthttp.StatusGatewayTimeout, TypeProviderError, CodeRequestTimeout},
	KindUpstreamRateLimited:    {fasthttp.StatusTooManyRequests, TypeRateLimitError, CodeRateLimitExceeded},

	KindClientCanceled: {499, TypeInvalidRequest, CodeClientCanceled},

	KindInternal: {fasthttp.StatusInternalServerError, TypeServerError, CodeInternalError},
}

func (k Kind) mapping() mapping {
	if m, ok := kindMappings[k]; ok {
		return m
	}
	return kindMappings[KindInternal]
}

// Status returns the HTTP status code a Kind renders as.
func (k Kind) Status() int { return k.mapping().status }

// APIError is the structured error returned to clients.
type APIError struct {
	Message          string `json:"message"`
	Type             string `json:"type"`
	Code             string `json:"code"`
	RequestedProvider string `json:"requestedProvider,omitempty"`
	UsedProvider      string `json:"usedProvider,omitempty"`
	RequestedModel    string `json:"requestedModel,omitempty"`
	UsedModel         string `json:"usedModel,omitempty"`
	ResponseText      string `json:"responseText,omitempty"`
}

type envelope struct {
	Error APIError `json:"error"`
}

// Details carries the optional routing context spec §6.1's error envelope
// includes when known at the point of failure.
type Details struct {
	RequestedProvider string
	UsedProvider      string
	RequestedModel    string
	UsedModel         string
	ResponseText      string
}

// Write writes the error as JSON to the fasthttp response with the given
// HTTP status.
func Write(ctx *fasthttp.RequestCtx, status int, message, errType, code string) {
	WriteDetailed(ctx, status, message, errType, code, Details{})
}

// WriteDetailed is Write plus the optional routing-context fields.
func WriteDetailed(ctx *fasthttp.RequestCtx, status int, message, errType, code string, d Details) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(envelope{Error: APIError{
		Message:           message,
		Type:              errType,
		Code:              code,
		RequestedProvider: d.RequestedProvider,
		UsedProvider:      d.UsedProvider,
		RequestedModel:    d.RequestedModel,
		UsedModel:         d.UsedModel,
		ResponseText:      d.ResponseText,
	}})
	ctx.SetBody(body)
}

// WriteKind writes the response for a taxonomy Kind, applying its status
// mapping and (for rate limits) a Retry-After header.
func WriteKind(ctx *fasthttp.RequestCtx, kind Kind, message string, d Details) {
	m := kind.mapping()
	if kind == KindUpstreamRateLimited {
		ctx.Response.Header.Set("Retry-After", "60")
	}
	WriteDetailed(ctx, m.status, message, m.errType, m.code, d)
}

// WriteProviderError maps a provider HTTP status to the appropriate gateway
// status.
//
//	Provider 429  → 429 + Retry-After: 60
//	Provider 5xx  → 502
//	Default       → 502
//
// Timeouts are written by WriteTimeout (504), not by this function.
func WriteProviderError(ctx *fasthttp.RequestCtx, providerStatus int, msg string) {
	switch {
	case providerStatus == fasthttp.StatusTooManyRequests:
		WriteKind(ctx, KindUpstreamRateLimited, msg, Details{})
	case providerStatus >= 500 && providerStatus < 600:
		WriteKind(ctx, KindUpstreamHTTPError, msg, Details{})
	default:
		WriteKind(ctx, KindUpstreamHTTPError, msg, Details{})
	}
}

// WriteTimeout writes a 504 timeout error.
func WriteTimeout(ctx *fasthttp.RequestCtx) {
	WriteKind(ctx, KindUpstreamTimeout, "provider request timed out", Details{})
}

// WriteRateLimit writes a 429 rate limit error.
func WriteRateLimit(ctx *fasthttp.RequestCtx) {
	WriteKind(ctx, KindUpstreamRateLimited, "rate limit exceeded", Details{})
}
