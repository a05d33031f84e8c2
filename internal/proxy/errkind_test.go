package proxy

import (
	"testing"

	"github.com/llmgateway/gateway/internal/credentials"
	"github.com/llmgateway/gateway/internal/router"
	"github.com/llmgateway/gateway/pkg/apierr"
)

func TestRouterAPIKind(t *testing.T) {
	cases := []struct {
		in   router.Kind
		want apierr.Kind
	}{
		{router.KindUnsupportedModel, apierr.KindUnsupportedModel},
		{router.KindModelProviderPrefixRequired, apierr.KindModelProviderPrefixRequired},
		{router.KindProviderUnsupported, apierr.KindProviderUnsupported},
		{router.KindCustomProviderNotFound, apierr.KindCustomProviderNotFound},
		{router.KindModelDeactivated, apierr.KindModelDeactivated},
		{router.KindJSONOutputUnsupported, apierr.KindJSONOutputUnsupported},
		{router.KindReasoningUnsupported, apierr.KindReasoningUnsupported},
		{router.KindStreamingUnsupported, apierr.KindStreamingUnsupported},
		{router.KindMaxTokensExceedsMaxOutput, apierr.KindMaxTokensExceedsMaxOutput},
		{router.KindNoAvailableProvider, apierr.KindNoAvailableProvider},
		{router.Kind("SomethingUnknown"), apierr.KindInternal},
	}

	for _, c := range cases {
		if got := routerAPIKind(c.in); got != c.want {
			t.Errorf("routerAPIKind(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCredentialsAPIKind(t *testing.T) {
	cases := []struct {
		in   credentials.Kind
		want apierr.Kind
	}{
		{credentials.KindNoProviderKey, apierr.KindNoProviderKey},
		{credentials.KindNoProviderEnv, apierr.KindNoProviderEnv},
		{credentials.KindCustomInCreditsMode, apierr.KindCustomInCreditsMode},
		{credentials.KindInsufficientCredits, apierr.KindInsufficientCredits},
		{credentials.Kind("SomethingUnknown"), apierr.KindInternal},
	}

	for _, c := range cases {
		if got := credentialsAPIKind(c.in); got != c.want {
			t.Errorf("credentialsAPIKind(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
