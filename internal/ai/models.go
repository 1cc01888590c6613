package ai

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// ModelInfo carries the context window and pricing used for budget warnings.
// Prices are illustrative; refresh them with `datana models fetch`.
type ModelInfo struct {
	Name          string  `json:"name"`
	Provider      string  `json:"provider,omitempty"`
	ContextTokens int     `json:"context_tokens"`
	InputPerK     float64 `json:"input_per_k"`  // USD per 1K input tokens
	OutputPerK    float64 `json:"output_per_k"` // USD per 1K output tokens
}

var (
	catalogMu sync.RWMutex
	models    = defaultCatalog()
)

func defaultCatalog() map[string]ModelInfo {
	out := map[string]ModelInfo{}
	for _, p := range []string{ProviderGroq, ProviderGemini, ProviderOpenRouter, ProviderOllama} {
		preset, _ := PresetCatalog(p)
		for k, v := range preset {
			out[k] = v
		}
	}
	return out
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// DecodeCatalog reads a JSON object of model name to ModelInfo.
//
//	{ "llama-3.1-8b-instant": {"name":"llama-3.1-8b-instant","context_tokens":131072,"input_per_k":0.00005,"output_per_k":0.00008} }
func DecodeCatalog(r io.Reader) (map[string]ModelInfo, error) {
	var m map[string]ModelInfo
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for k, v := range m {
		if v.Name == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// LoadCatalogFromJSON loads a catalog file written in the DecodeCatalog format.
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeCatalog(f)
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	models = m
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
