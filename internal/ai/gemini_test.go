package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestGeminiRequestSplitsSystemPrompt(t *testing.T) {
	contents, cfg, err := geminiRequest(GenerateRequest{
		Model: "gemini-2.0-flash",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
		},
		MaxTokens:   256,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 2 || contents[0].Role != "user" || contents[1].Role != "model" {
		t.Fatalf("contents = %+v", contents)
	}
	if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction = %+v", cfg.SystemInstruction)
	}
	if cfg.MaxOutputTokens != 256 || cfg.Temperature == nil || *cfg.Temperature != float32(0.3) {
		t.Fatalf("config = %+v", cfg)
	}
	if _, _, err := geminiRequest(GenerateRequest{Model: "m", Messages: []Message{{Role: "system", Content: "x"}}}); err == nil {
		t.Fatal("expected error when only system messages are given")
	}
}

func TestGeminiGenerate(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent") {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-goog-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 401, "message": "bad key", "status": "UNAUTHENTICATED"}})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "Revenue grew."}}},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 10, "candidatesTokenCount": 3, "totalTokenCount": 13},
		})
	}))
	defer srv.Close()

	req := GenerateRequest{Model: "gemini-2.0-flash", Messages: []Message{{Role: "user", Content: "hi"}}}
	resp, err := NewGeminiClient("key", srv.URL, 2*time.Second).Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Text() != "Revenue grew." || resp.Usage.TotalTokens != 13 {
		t.Fatalf("resp = %+v", resp)
	}

	_, err = NewGeminiClient("wrong", srv.URL, 2*time.Second).Generate(context.Background(), req)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
}

func TestGeminiMissingKey(t *testing.T) {
	_, err := NewGeminiClient("", "", 0).Generate(context.Background(), GenerateRequest{Model: "m", Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegistryProviders(t *testing.T) {
	for _, p := range []string{ProviderGroq, ProviderOpenRouter, ProviderGemini, ProviderOllama} {
		if _, ok := GetRuntime(p, RuntimeConfig{}); !ok {
			t.Errorf("provider %s not registered", p)
		}
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Error("unknown provider should not resolve")
	}
	if rt, _ := GetRuntime(ProviderGemini, RuntimeConfig{}); rt == nil {
		t.Error("gemini runtime is nil")
	} else if _, ok := rt.(StreamRuntime); !ok {
		t.Error("gemini runtime should stream")
	}
}
