package ai

import "testing"

func TestPresetCatalogGroq(t *testing.T) {
	m, ok := PresetCatalog("groq")
	if !ok || len(m) == 0 {
		t.Fatalf("expected groq preset to be available")
	}
	mi, exists := m["llama-3.1-8b-instant"]
	if !exists || mi.Provider != ProviderGroq || mi.ContextTokens == 0 {
		t.Fatalf("unexpected llama-3.1-8b-instant entry: %+v", mi)
	}
	if _, ok := PresetCatalog("google"); !ok {
		t.Fatalf("google should alias gemini")
	}
	if _, ok := PresetCatalog("anthropic"); ok {
		t.Fatalf("anthropic has no preset")
	}
}

func TestRecommendModel(t *testing.T) {
	cases := []struct {
		provider, tier, want string
	}{
		{"", "cheap", "llama-3.1-8b-instant"},
		{"groq", "balanced", "llama-3.3-70b-versatile"},
		{"gemini", "cheap", "gemini-2.0-flash"},
		{"gemini", "high-context", "gemini-1.5-pro"},
		{"ollama", "cheap", "llama3.1:8b"},
	}
	for _, c := range cases {
		if got, ok := RecommendModel(c.provider, c.tier); !ok || got != c.want {
			t.Errorf("RecommendModel(%q,%q) = %q, want %q", c.provider, c.tier, got, c.want)
		}
	}
	if _, ok := RecommendModel("", "unknown"); ok {
		t.Fatalf("expected unknown tier to be false")
	}
}

func TestCatalogMergeAndCost(t *testing.T) {
	orig := Catalog()
	defer OverrideCatalog(orig)

	MergeCatalog(map[string]ModelInfo{"custom": {Name: "custom", InputPerK: 1, OutputPerK: 2}})
	cost, ok := EstimateCostUSD("custom", 1000, 500)
	if !ok || cost != 2 {
		t.Fatalf("cost = %v ok=%v", cost, ok)
	}
	if _, ok := EstimateCostUSD("missing-model", 1, 1); ok {
		t.Fatalf("unknown model should not be priced")
	}
	if _, ok := LookupModel("llama-3.1-8b-instant"); !ok {
		t.Fatalf("default catalog should include groq presets")
	}
}
