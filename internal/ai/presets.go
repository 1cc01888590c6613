package ai

type preset struct {
	name    string
	context int
	inPerK  float64
	outPerK float64
}

// Curated models per provider. Local models are free.
var presets = map[string][]preset{
	ProviderGroq: {
		{"llama-3.1-8b-instant", 131072, 0.00005, 0.00008},
		{"llama-3.3-70b-versatile", 131072, 0.00059, 0.00079},
		{"gemma2-9b-it", 8192, 0.0002, 0.0002},
	},
	ProviderGemini: {
		{"gemini-2.0-flash", 1048576, 0.0001, 0.0004},
		{"gemini-1.5-flash", 1000000, 0.000075, 0.0003},
		{"gemini-1.5-pro", 2000000, 0.00125, 0.005},
	},
	ProviderOpenRouter: {
		{"meta-llama/llama-3.1-8b-instruct", 131072, 0.00002, 0.00005},
		{"openai/gpt-4o-mini", 128000, 0.00015, 0.0006},
		{"deepseek/deepseek-r1:free", 128000, 0, 0},
	},
	ProviderOllama: {
		{"llama3.1:8b", 131072, 0, 0},
		{"qwen2.5:7b", 32768, 0, 0},
		{"mistral:7b-instruct", 8192, 0, 0},
	},
}

// PresetCatalog returns a built-in curated catalog for a known provider.
// The catalog can be merged or used to replace the in-memory catalog.
func PresetCatalog(provider string) (map[string]ModelInfo, bool) {
	if provider == ProviderGoogle {
		provider = ProviderGemini
	}
	list, ok := presets[provider]
	if !ok {
		return nil, false
	}
	out := make(map[string]ModelInfo, len(list))
	for _, p := range list {
		out[p.name] = ModelInfo{Name: p.name, Provider: provider, ContextTokens: p.context, InputPerK: p.inPerK, OutputPerK: p.outPerK}
	}
	return out, true
}

// RecommendModel returns a recommended model name for a given tier and provider.
// If provider is empty, defaults to groq. Tiers: cheap|balanced|high-context.
func RecommendModel(provider, tier string) (string, bool) {
	if provider == "" {
		provider = ProviderGroq
	}
	if provider == ProviderGoogle {
		provider = ProviderGemini
	}
	list, ok := presets[provider]
	if !ok {
		return "", false
	}
	switch tier {
	case "cheap":
		return list[0].name, true
	case "balanced":
		return list[1].name, true
	case "high-context":
		best := list[0]
		for _, p := range list[1:] {
			if p.context > best.context {
				best = p
			}
		}
		return best.name, true
	}
	return "", false
}

// DefaultModel is the cheap-tier model for provider.
func DefaultModel(provider string) string {
	name, _ := RecommendModel(provider, "cheap")
	return name
}
