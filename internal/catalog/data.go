package catalog

import "time"

// mustTime parses an RFC3339 date literal; panics on malformed input since
// these are compile-time constants, not user data.
func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic("catalog: bad literal timestamp " + s + ": " + err.Error())
	}
	return t
}

var deactivatedGPT4 = mustTime("2025-06-06T00:00:00Z")

// Providers is the declared provider table (spec §3 Provider, §1 provider
// list). The meta-provider "llmgateway" covers the internal "custom" route
// (router rule 2) and is never itself a credential target.
var Providers = []Provider{
	{ID: "openai", Name: "OpenAI", Endpoint: "https://api.openai.com/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "OPENAI_API_KEY"},
	{ID: "anthropic", Name: "Anthropic", Endpoint: "https://api.anthropic.com/v1/messages",
		AuthScheme: AuthHeader, AuthHeaderName: "x-api-key", Family: FamilyAnthropic, CancellationSafe: true,
		DefaultCredentialEnv: "ANTHROPIC_API_KEY"},
	{ID: "google-vertex", Name: "Google Vertex AI", Endpoint: "https://{region}-aiplatform.googleapis.com/v1/{model}:generateContent",
		StreamEndpoint: "https://{region}-aiplatform.googleapis.com/v1/{model}:streamGenerateContent",
		AuthScheme:     AuthBearer, Family: FamilyGoogle, CancellationSafe: true,
		DefaultCredentialEnv: "VERTEX_AI_TOKEN"},
	{ID: "google-ai-studio", Name: "Google AI Studio", Endpoint: "https://generativelanguage.googleapis.com/v1beta/{model}:generateContent",
		StreamEndpoint: "https://generativelanguage.googleapis.com/v1beta/{model}:streamGenerateContent",
		AuthScheme:     AuthQueryParam, Family: FamilyGoogle, CancellationSafe: true,
		DefaultCredentialEnv: "GEMINI_API_KEY"},
	{ID: "mistral", Name: "Mistral", Endpoint: "https://api.mistral.ai/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyMistral, CancellationSafe: true,
		DefaultCredentialEnv: "MISTRAL_API_KEY"},
	{ID: "deepseek", Name: "DeepSeek", Endpoint: "https://api.deepseek.com/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "DEEPSEEK_API_KEY"},
	{ID: "perplexity", Name: "Perplexity", Endpoint: "https://api.perplexity.ai/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "PERPLEXITY_API_KEY"},
	{ID: "groq", Name: "Groq", Endpoint: "https://api.groq.com/openai/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "GROQ_API_KEY"},
	{ID: "together", Name: "Together AI", Endpoint: "https://api.together.xyz/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "TOGETHER_API_KEY"},
	{ID: "inference", Name: "Inference.net", Endpoint: "https://api.inference.net/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "INFERENCE_API_KEY"},
	{ID: "alibaba", Name: "Alibaba Qwen", Endpoint: "https://dashscope-intl.aliyuncs.com/compatible-mode/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "ALIBABA_API_KEY"},
	{ID: "xai", Name: "xAI", Endpoint: "https://api.x.ai/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "XAI_API_KEY"},
	{ID: "moonshot", Name: "Moonshot", Endpoint: "https://api.moonshot.cn/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "MOONSHOT_API_KEY"},
	{ID: "meta", Name: "Meta (Llama API)", Endpoint: "https://api.llama.com/v1/chat/completions",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: true,
		DefaultCredentialEnv: "META_API_KEY"},
	{ID: "llmgateway", Name: "llmgateway internal", Endpoint: "",
		AuthScheme: AuthBearer, Family: FamilyOpenAI, CancellationSafe: false},
}

// Models is the declared model table. Order is significant for router rule 1
// ("auto" iterates the catalog in declared order).
var Models = []Model{
	{
		ID:         "gpt-4o-mini",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "openai", ProviderModelName: "gpt-4o-mini",
			InputPrice: 0.00000015, OutputPrice: 0.0000006, CachedPrice: 0.000000075,
			ContextSize: 128000, MaxOutput: 16384,
			Streaming: true, Vision: true, Reasoning: false,
		}},
	},
	{
		ID:         "gpt-4o",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "openai", ProviderModelName: "gpt-4o",
			InputPrice: 0.0000025, OutputPrice: 0.00001, CachedPrice: 0.00000125,
			Tiers: []PriceTier{
				{MinContextSize: 0, MaxContextSize: 128000, InputPrice: 0.0000025, OutputPrice: 0.00001, CachedPrice: 0.00000125},
			},
			ContextSize: 128000, MaxOutput: 16384,
			Streaming: true, Vision: true, Reasoning: false,
		}},
	},
	{
		ID:         "gpt-4",
		JSONOutput: false,
		DeactivatedAt: &deactivatedGPT4,
		Mappings: []ProviderMapping{{
			ProviderID: "openai", ProviderModelName: "gpt-4",
			InputPrice: 0.00003, OutputPrice: 0.00006,
			ContextSize: 8192, MaxOutput: 4096,
			Streaming: true,
		}},
	},
	{
		ID:         "o3-mini",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "openai", ProviderModelName: "o3-mini",
			InputPrice: 0.0000011, OutputPrice: 0.0000044,
			ContextSize: 200000, MaxOutput: 100000,
			Streaming: true, Reasoning: true,
		}},
	},
	{
		ID:         "claude-opus-4",
		JSONOutput: false,
		Mappings: []ProviderMapping{{
			ProviderID: "anthropic", ProviderModelName: "claude-opus-4-20250514",
			InputPrice: 0.000015, OutputPrice: 0.000075, CachedPrice: 0.0000015,
			ContextSize: 200000, MaxOutput: 32000,
			Streaming: true, Vision: true, Reasoning: true,
		}},
	},
	{
		ID:         "claude-sonnet-4",
		JSONOutput: false,
		Mappings: []ProviderMapping{{
			ProviderID: "anthropic", ProviderModelName: "claude-sonnet-4-20250514",
			InputPrice: 0.000003, OutputPrice: 0.000015, CachedPrice: 0.0000003,
			ContextSize: 200000, MaxOutput: 64000,
			Streaming: true, Vision: true, Reasoning: true,
		}},
	},
	{
		ID:         "claude-3-5-haiku",
		JSONOutput: false,
		Mappings: []ProviderMapping{{
			ProviderID: "anthropic", ProviderModelName: "claude-3-5-haiku-20241022",
			InputPrice: 0.0000008, OutputPrice: 0.000004,
			ContextSize: 200000, MaxOutput: 8192,
			Streaming: true,
		}},
	},
	{
		ID:         "gemini-2.5-flash",
		JSONOutput: true,
		Mappings: []ProviderMapping{
			{
				ProviderID: "google-ai-studio", ProviderModelName: "gemini-2.5-flash",
				InputPrice: 0.0000003, OutputPrice: 0.0000025,
				ContextSize: 1048576, MaxOutput: 65536,
				Streaming: true, Vision: true, Reasoning: true,
			},
			{
				ProviderID: "google-vertex", ProviderModelName: "gemini-2.5-flash",
				InputPrice: 0.0000003, OutputPrice: 0.0000025,
				ContextSize: 1048576, MaxOutput: 65536,
				Streaming: true, Vision: true, Reasoning: true,
			},
		},
	},
	{
		ID:         "gemini-2.5-pro",
		JSONOutput: true,
		Mappings: []ProviderMapping{
			{
				ProviderID: "google-ai-studio", ProviderModelName: "gemini-2.5-pro",
				InputPrice: 0.00000125, OutputPrice: 0.00001,
				ContextSize: 2097152, MaxOutput: 65536,
				Streaming: true, Vision: true, Reasoning: true,
			},
		},
	},
	{
		ID:         "mistral-large",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "mistral", ProviderModelName: "mistral-large-latest",
			InputPrice: 0.000002, OutputPrice: 0.000006,
			ContextSize: 128000, MaxOutput: 4096,
			Streaming: true,
		}},
	},
	{
		ID:         "deepseek-chat",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "deepseek", ProviderModelName: "deepseek-chat",
			InputPrice: 0.00000027, OutputPrice: 0.0000011, CachedPrice: 0.00000007,
			ContextSize: 64000, MaxOutput: 8192,
			Streaming: true,
		}},
	},
	{
		ID:         "llama-3.3-70b",
		JSONOutput: true,
		Mappings: []ProviderMapping{
			{
				ProviderID: "groq", ProviderModelName: "llama-3.3-70b-versatile",
				InputPrice: 0.00000059, OutputPrice: 0.00000079,
				ContextSize: 128000, MaxOutput: 32768,
				Streaming: true,
			},
			{
				ProviderID: "together", ProviderModelName: "meta-llama/Llama-3.3-70B-Instruct-Turbo",
				InputPrice: 0.00000088, OutputPrice: 0.00000088,
				ContextSize: 128000, MaxOutput: 16384,
				Streaming: true,
			},
			{
				ProviderID: "meta", ProviderModelName: "Llama-3.3-70B-Instruct",
				InputPrice: 0.0000006, OutputPrice: 0.0000006,
				ContextSize: 128000, MaxOutput: 8192,
				Streaming: true,
			},
		},
	},
	{
		ID:         "grok-2",
		JSONOutput: false,
		Mappings: []ProviderMapping{{
			ProviderID: "xai", ProviderModelName: "grok-2-latest",
			InputPrice: 0.000002, OutputPrice: 0.00001,
			ContextSize: 131072, MaxOutput: 8192,
			Streaming: true,
		}},
	},
	{
		ID:         "moonshot-v1-32k",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "moonshot", ProviderModelName: "moonshot-v1-32k",
			InputPrice: 0.0000017, OutputPrice: 0.0000017,
			ContextSize: 32000, MaxOutput: 8192,
			Streaming: true,
		}},
	},
	{
		ID:         "qwen-max",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "alibaba", ProviderModelName: "qwen-max",
			InputPrice: 0.0000016, OutputPrice: 0.0000064,
			ContextSize: 32768, MaxOutput: 8192,
			Streaming: true,
		}},
	},
	{
		ID:         "sonar",
		JSONOutput: false,
		Mappings: []ProviderMapping{{
			ProviderID: "perplexity", ProviderModelName: "sonar",
			InputPrice: 0.000001, OutputPrice: 0.000001,
			ContextSize: 127072, MaxOutput: 4096,
			Streaming: true,
		}},
	},
	{
		ID:         "inference-llama-3.1-8b",
		JSONOutput: true,
		Mappings: []ProviderMapping{{
			ProviderID: "inference", ProviderModelName: "meta-llama/Llama-3.1-8B-Instruct",
			InputPrice: 0.00000003, OutputPrice: 0.00000005,
			ContextSize: 128000, MaxOutput: 8192,
			Streaming: true,
		}},
	},
}

// DefaultCatalog is the catalog built from the package-level static tables.
// internal/app builds its own equivalent instance via
// New(Providers, Models); tests build narrower catalogs via New directly.
var DefaultCatalog = New(Providers, Models)
