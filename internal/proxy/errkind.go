package proxy

import (
	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/router"
	"github.com/llmgateway/gateway/pkg/apierr"
)

// routerAPIKind maps a router.Kind onto the apierr taxonomy. router
// deliberately doesn't import pkg/apierr (it has no HTTP concerns), so the
// handler owns this translation explicitly rather than by casting — the two
// taxonomies use different casing conventions (PascalCase vs snake_case) on
// purpose, as a reminder that they are not the same string space.
func routerAPIKind(k router.Kind) apierr.Kind {
	switch k {
	case router.KindUnsupportedModel:
		return apierr.KindUnsupportedModel
	case router.KindModelProviderPrefixRequired:
		return apierr.KindModelProviderPrefixRequired
	case router.KindProviderUnsupported:
		return apierr.KindProviderUnsupported
	case router.KindCustomProviderNotFound:
		return apierr.KindCustomProviderNotFound
	case router.KindModelDeactivated:
		return apierr.KindModelDeactivated
	case router.KindJSONOutputUnsupported:
		return apierr.KindJSONOutputUnsupported
	case router.KindReasoningUnsupported:
		return apierr.KindReasoningUnsupported
	case router.KindStreamingUnsupported:
		return apierr.KindStreamingUnsupported
	case router.KindMaxTokensExceedsMaxOutput:
		return apierr.KindMaxTokensExceedsMaxOutput
	case router.KindNoAvailableProvider:
		return apierr.KindNoAvailableProvider
	default:
		return apierr.KindInternal
	}
}

// credentialsAPIKind maps a credentials.Kind onto the apierr taxonomy, for
// the same reason as routerAPIKind above.
func credentialsAPIKind(k credentials.Kind) apierr.Kind {
	switch k {
	case credentials.KindNoProviderKey:
		return apierr.KindNoProviderKey
	case credentials.KindNoProviderEnv:
		return apierr.KindNoProviderEnv
	case credentials.KindCustomInCreditsMode:
		return apierr.KindCustomInCreditsMode
	case credentials.KindInsufficientCredits:
		return apierr.KindInsufficientCredits
	default:
		return apierr.KindInternal
	}
}
