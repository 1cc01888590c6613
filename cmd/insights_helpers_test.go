package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/datana-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/datana-cli/internal/config"
)

type stubRuntime struct{}

func (stubRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return nil, nil
}

type stubStreamRuntime struct {
	called int
	err    error
}

func (s *stubStreamRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return nil, nil
}

func (s *stubStreamRuntime) GenerateStream(ctx context.Context, req ai.GenerateRequest, onDelta func(string)) error {
	s.called++
	onDelta("chunk")
	return s.err
}

func TestSelectModelPrecedence(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultModel: "cfg-model", DefaultProvider: "groq"}

	if got := selectModel(cfg, ai.ProviderGroq, "cli-model"); got != "cli-model" {
		t.Fatalf("expected CLI model, got %q", got)
	}
	if got := selectModel(cfg, ai.ProviderGroq, ""); got != "cfg-model" {
		t.Fatalf("expected config model, got %q", got)
	}
	// the configured model belongs to another provider
	if got := selectModel(cfg, ai.ProviderGemini, ""); got != "gemini-2.0-flash" {
		t.Fatalf("expected gemini preset, got %q", got)
	}
	cfg.DefaultModel = ""
	if got := selectModel(cfg, ai.ProviderOllama, ""); got != "llama3.1:8b" {
		t.Fatalf("expected ollama preset, got %q", got)
	}
	if got := selectModel(nil, "unknown", ""); got != "llama-3.1-8b-instant" {
		t.Fatalf("expected fallback model, got %q", got)
	}
}

func TestResolveProvider(t *testing.T) {
	cases := []struct {
		flag, cfgProvider, want string
	}{
		{"", "", ai.ProviderGroq},
		{"", "local", ai.ProviderOllama},
		{"google", "groq", ai.ProviderGemini},
		{"OpenRouter", "", ai.ProviderOpenRouter},
	}
	for _, c := range cases {
		got := resolveProvider(&cfgpkg.Global{DefaultProvider: c.cfgProvider}, c.flag)
		if got != c.want {
			t.Errorf("resolveProvider(%q, cfg=%q) = %q, want %q", c.flag, c.cfgProvider, got, c.want)
		}
	}
}

func TestEnforceBudget(t *testing.T) {
	if err := enforceBudget(0.0, 1.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := enforceBudget(0.5, 0); err != nil {
		t.Fatalf("zero limit must disable the check: %v", err)
	}
	if err := enforceBudget(2.0, 1.0); err == nil {
		t.Fatal("expected error when cost exceeds budget")
	}
}

func TestHandleStreamingHappyPath(t *testing.T) {
	runtime := &stubStreamRuntime{}
	buf := &bytes.Buffer{}
	delta := &bytes.Buffer{}

	handled, err := handleStreaming(context.Background(), runtime, ai.GenerateRequest{}, streamingOptions{
		Enabled:     true,
		PrintPrompt: true,
		Prompt:      "example",
		Writer:      buf,
		DeltaWriter: delta,
	})
	if err != nil {
		t.Fatalf("handleStreaming returned error: %v", err)
	}
	if !handled {
		t.Fatal("expected streaming to be handled")
	}
	if runtime.called != 1 {
		t.Fatalf("expected stream runtime to be invoked once, got %d", runtime.called)
	}
	if got := delta.String(); !strings.Contains(got, "chunk") {
		t.Fatalf("expected delta output, got %q", got)
	}
	if out := buf.String(); !strings.Contains(out, "(streaming)") || !strings.Contains(out, "example") {
		t.Fatalf("expected streaming log output, got %q", out)
	}
}

func TestHandleStreamingFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	handled, err := handleStreaming(context.Background(), stubRuntime{}, ai.GenerateRequest{}, streamingOptions{
		Enabled: true,
		Writer:  buf,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handled {
		t.Fatal("expected fallback to non-streaming")
	}
	if out := buf.String(); !strings.Contains(out, "Streaming not supported") {
		t.Fatalf("expected fallback message, got %q", out)
	}
}

func TestHandleStreamingErrorPropagation(t *testing.T) {
	runtime := &stubStreamRuntime{err: errors.New("fail")}
	handled, err := handleStreaming(context.Background(), runtime, ai.GenerateRequest{}, streamingOptions{
		Enabled:     true,
		Quiet:       true,
		DeltaWriter: &bytes.Buffer{},
	})
	if err == nil {
		t.Fatal("expected error from streaming runtime")
	}
	if !handled {
		t.Fatal("expected handled to be true even on error")
	}
}

func TestBuildRuntimeDefaults(t *testing.T) {
	cfg := &cfgpkg.Global{DefaultProvider: "local", OllamaHost: "http://example"}
	client, provider, err := buildRuntime(cfg, runtimeOptions{})
	if err != nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if provider != ai.ProviderOllama {
		t.Fatalf("expected ollama provider, got %q", provider)
	}
	if _, ok := client.(*ai.OllamaClient); !ok {
		t.Fatalf("expected Ollama runtime, got %T", client)
	}

	client, provider, err = buildRuntime(&cfgpkg.Global{GeminiAPIKey: "k"}, runtimeOptions{ProviderFlag: "google"})
	if err != nil || provider != ai.ProviderGemini {
		t.Fatalf("expected gemini runtime, got %q err=%v", provider, err)
	}
	if _, ok := client.(*ai.GeminiClient); !ok {
		t.Fatalf("expected Gemini runtime, got %T", client)
	}

	if _, _, err := buildRuntime(nil, runtimeOptions{ProviderFlag: "nope"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestExplainGenerateError(t *testing.T) {
	apiErr := &ai.APIError{StatusCode: 401, Message: "bad key"}
	err := explainGenerateError(&ai.AuthError{APIError: apiErr}, ai.ProviderGemini, "gemini-2.0-flash", 10)
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("expected gemini key hint, got %v", err)
	}
	var authErr *ai.AuthError
	if !errors.As(err, &authErr) {
		t.Fatal("typed error must stay wrapped")
	}

	err = explainGenerateError(&ai.ModelNotFoundError{APIError: apiErr}, ai.ProviderOllama, "qwen2.5:7b", 10)
	if !strings.Contains(err.Error(), "ollama pull qwen2.5:7b") {
		t.Fatalf("expected pull hint, got %v", err)
	}

	err = explainGenerateError(&ai.PromptTooLargeError{APIError: &ai.APIError{StatusCode: 413, Code: ai.CodeRequestTooLarge}}, ai.ProviderGroq, "llama-3.1-8b-instant", 9000)
	if !strings.Contains(err.Error(), "--prompt-limit") || !strings.Contains(err.Error(), "9000") {
		t.Fatalf("expected prompt size hint, got %v", err)
	}

	err = explainGenerateError(&ai.ModelNotFoundError{APIError: &ai.APIError{StatusCode: 400, Code: ai.CodeModelDecommissioned}}, ai.ProviderGroq, "mixtral-8x7b-32768", 10)
	if !strings.Contains(err.Error(), "retired") {
		t.Fatalf("expected decommission hint, got %v", err)
	}

	err = explainGenerateError(&ai.UnreachableError{Provider: ai.ProviderOllama, Host: "http://h:1", Err: errors.New("refused")}, ai.ProviderOllama, "m", 10)
	if !strings.Contains(err.Error(), "http://h:1") {
		t.Fatalf("expected host in message, got %v", err)
	}

	err = explainGenerateError(fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ai.ProviderGroq, "m", 10)
	if !strings.Contains(err.Error(), "--timeout-sec") {
		t.Fatalf("expected timeout hint, got %v", err)
	}
}

func TestFormatAndWriteOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.md")
	buf := &bytes.Buffer{}
	if err := formatAndWriteOutput("content", outputOptions{
		Source:       "sales.csv",
		Provider:     ai.ProviderGroq,
		Model:        "model",
		MaxTokens:    10,
		Temperature:  0.5,
		PromptTokens: 4,
		OutputPath:   path,
		Writer:       buf,
	}); err != nil {
		t.Fatalf("formatAndWriteOutput error: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "=== AI Insights ===") {
		t.Fatalf("expected formatted output, got %q", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output file: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("unexpected file content: %q", string(data))
	}

	jsonPath := filepath.Join(dir, "out.json")
	if err := formatAndWriteOutput("content", outputOptions{Quiet: true, Source: "abc", Model: "m", OutputPath: jsonPath, Writer: io.Discard}); err != nil {
		t.Fatalf("formatAndWriteOutput json error: %v", err)
	}
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json file: %v", err)
	}
	var env map[string]any
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env["content"] != "content" || env["source"] != "abc" {
		t.Fatalf("unexpected envelope: %v", env)
	}
}

func TestCLI_InsightsAIAgainstGroqServer(t *testing.T) {
	home := isolate(t)
	csvPath := writeSales(t, home, "sales.csv")

	var got ai.GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"cmpl-1","choices":[{"message":{"role":"assistant","content":"Push Zeta footwear in Đà Nẵng."}}],"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`)
	}))
	defer srv.Close()

	t.Setenv("GROQ_API_KEY", "test-key")
	t.Setenv("DATANA_GROQ_BASE_URL", srv.URL)

	out := runCmd(t, "insights", csvPath, "--ai", "--provider", "groq", "--lang", "vi", "--json")
	var env map[string]any
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if env["content"] != "Push Zeta footwear in Đà Nẵng." || env["provider"] != ai.ProviderGroq {
		t.Fatalf("unexpected envelope: %v", env)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("expected system and user messages, got %+v", got.Messages)
	}
	if !strings.Contains(got.Messages[1].Content, "[SALES ANALYSIS]") {
		t.Fatalf("user prompt missing analysis: %q", got.Messages[1].Content)
	}
}
