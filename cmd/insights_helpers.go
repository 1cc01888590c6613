package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/datana-cli/internal/ai"
	"github.com/KaramelBytes/datana-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/datana-cli/internal/config"
	"github.com/KaramelBytes/datana-cli/internal/parser"
	"github.com/KaramelBytes/datana-cli/internal/store"
)

// loadTarget analyzes arg when it is a readable spreadsheet, otherwise looks
// it up as a saved analysis ID.
func loadTarget(arg string, s *sheetFlags) (*analysis.Result, string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		if !parser.Supported(arg) {
			return nil, "", fmt.Errorf("%w: %s", parser.ErrUnsupported, arg)
		}
		res, err := analyzeFile(arg, s)
		return res, "", err
	}
	e, err := openStore().Load(arg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", fmt.Errorf("%q is neither a spreadsheet nor a saved analysis id (see 'datana list')", arg)
		}
		return nil, "", err
	}
	if e.Result == nil {
		return nil, "", fmt.Errorf("saved analysis %s has no result", e.ID)
	}
	return e.Result, e.ID, nil
}

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// normalizeProvider maps aliases onto registered runtime names.
func normalizeProvider(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return ""
	case "local", "ollama":
		return ai.ProviderOllama
	case "google", "gemini":
		return ai.ProviderGemini
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

func resolveProvider(cfg *cfgpkg.Global, flag string) string {
	p := normalizeProvider(flag)
	if p == "" && cfg != nil {
		p = normalizeProvider(cfg.DefaultProvider)
	}
	if p == "" {
		p = ai.ProviderGroq
	}
	return p
}

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			rc.RetryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			rc.BaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			rc.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := resolveProvider(cfg, opts.ProviderFlag)
	switch providerName {
	case ai.ProviderGroq:
		rc.APIKey = os.Getenv("GROQ_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
		if cfg != nil {
			rc.BaseURL = cfg.GroqBaseURL
		}
	case ai.ProviderOpenRouter:
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
	case ai.ProviderGemini:
		if cfg != nil {
			rc.APIKey = cfg.GeminiAPIKey
		}
		if rc.APIKey == "" {
			rc.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case ai.ProviderOllama:
		rc.Host = strings.TrimSpace(opts.OllamaHost)
		if rc.Host == "" && cfg != nil {
			rc.Host = cfg.OllamaHost
		}
		if rc.Host == "" {
			rc.Host = ai.DefaultOllamaHost
		}
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (known: %s)", providerName, strings.Join(ai.Providers(), "|"))
	}
	return client, providerName, nil
}

// selectModel picks the model: flag, then the configured default when it
// belongs to the same provider, then the provider's cheap preset.
func selectModel(cfg *cfgpkg.Global, provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg != nil && cfg.DefaultModel != "" {
		cfgProvider := normalizeProvider(cfg.DefaultProvider)
		if cfgProvider == "" || cfgProvider == provider {
			return cfg.DefaultModel
		}
	}
	if name := ai.DefaultModel(provider); name != "" {
		return name
	}
	return "llama-3.1-8b-instant"
}

func enforceBudget(estCost, limit float64) error {
	if limit > 0 && estCost > 0 && estCost > limit {
		return fmt.Errorf("✗ Estimated cost ~$%.4f exceeds budget limit ~$%.4f", estCost, limit)
	}
	return nil
}

// explainGenerateError turns typed provider errors into actionable messages.
func explainGenerateError(err error, providerName, model string, tokens int) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		bigErr  *ai.PromptTooLargeError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out; raise --timeout-sec or use a smaller model: %w", err)
	case errors.As(err, &unreach):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running (see https://ollama.com) and the host is correct. You can set DATANA_OLLAMA_HOST or config 'ollama_host'. Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: %s: %w", keyHint(providerName), err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if providerName == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		if nfErr.Decommissioned() {
			return fmt.Errorf("model %s has been retired by %s; pick a current one with 'datana models show --provider %s': %w", model, providerName, providerName, err)
		}
		return fmt.Errorf("model not found (%s). Verify the model name with 'datana models show': %w", model, err)
	case errors.As(err, &bigErr):
		return fmt.Errorf("prompt of ~%d tokens is too large for %s; lower --prompt-limit or use --model-preset high-context: %w", tokens, model, err)
	case errors.As(err, &brErr):
		if tokens > 50000 {
			return fmt.Errorf("request invalid: prompt is very large (%d tokens); try --prompt-limit: %w", tokens, err)
		}
		return fmt.Errorf("request invalid. Try reducing prompt size or max-tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	}
	return fmt.Errorf("generation failed: %w", err)
}

func keyHint(providerName string) string {
	switch providerName {
	case ai.ProviderGemini:
		return "set GEMINI_API_KEY or 'datana config set gemini_api_key <key>'"
	case ai.ProviderOpenRouter:
		return "set OPENROUTER_API_KEY or 'datana config set api_key <key>'"
	}
	return "set GROQ_API_KEY or 'datana config set api_key <key>'"
}

type streamingOptions struct {
	Enabled     bool
	Quiet       bool
	PrintPrompt bool
	Prompt      string
	Writer      io.Writer
	DeltaWriter io.Writer
}

func handleStreaming(ctx context.Context, runtime ai.Runtime, req ai.GenerateRequest, opts streamingOptions) (bool, error) {
	if !opts.Enabled {
		return false, nil
	}
	logWriter := opts.Writer
	if logWriter == nil {
		logWriter = os.Stdout
	}
	deltaWriter := opts.DeltaWriter
	if deltaWriter == nil {
		deltaWriter = os.Stdout
	}

	sr, ok := runtime.(ai.StreamRuntime)
	if !ok {
		if !opts.Quiet {
			fmt.Fprintln(logWriter, "⚠ Streaming not supported for this provider; falling back to non-streaming.")
		}
		return false, nil
	}
	if opts.PrintPrompt && !opts.Quiet {
		fmt.Fprintln(logWriter, "\n--print-prompt: sending the following prompt --")
		fmt.Fprintln(logWriter, opts.Prompt)
	}
	if !opts.Quiet {
		fmt.Fprintln(logWriter, "(streaming)")
	}
	if err := sr.GenerateStream(ctx, req, func(delta string) {
		fmt.Fprint(deltaWriter, delta)
	}); err != nil {
		return true, fmt.Errorf("streaming generation failed: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintln(logWriter)
	}
	return true, nil
}

type outputOptions struct {
	JSON         bool
	Quiet        bool
	Source       string
	Provider     string
	Model        string
	MaxTokens    int
	Temperature  float64
	PromptTokens int
	OutputPath   string
	Writer       io.Writer
}

func (o outputOptions) envelope(content string) ([]byte, error) {
	b, err := json.MarshalIndent(map[string]any{
		"source":        o.Source,
		"provider":      o.Provider,
		"model":         o.Model,
		"max_tokens":    o.MaxTokens,
		"temperature":   o.Temperature,
		"prompt_tokens": o.PromptTokens,
		"content":       content,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal output: %w", err)
	}
	return b, nil
}

func formatAndWriteOutput(content string, opts outputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.JSON {
		b, err := opts.envelope(content)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(b))
	} else if opts.Quiet {
		fmt.Fprintln(w, content)
	} else {
		fmt.Fprintln(w, "\n=== AI Insights ===")
		fmt.Fprintln(w, content)
	}

	if opts.OutputPath == "" {
		return nil
	}
	data := []byte(content)
	if strings.EqualFold(filepath.Ext(opts.OutputPath), ".json") {
		b, err := opts.envelope(content)
		if err != nil {
			return err
		}
		data = b
	}
	if err := os.WriteFile(opts.OutputPath, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if !opts.Quiet {
		fmt.Fprintf(w, "\n💾 Saved output to %s\n", opts.OutputPath)
	}
	return nil
}
