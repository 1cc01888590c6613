package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient calls Google's Gemini API through the GenAI SDK.
type GeminiClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
}

// NewGeminiClient returns a client for the Gemini API. baseURL is only set in tests.
func NewGeminiClient(apiKey, baseURL string, httpTimeout time.Duration) *GeminiClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &GeminiClient{apiKey: apiKey, baseURL: baseURL, timeout: httpTimeout}
}

func (c *GeminiClient) client(ctx context.Context) (*genai.Client, error) {
	if c.apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is missing")
	}
	cc := &genai.ClientConfig{
		APIKey:     c.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: c.timeout},
	}
	if c.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// request splits system messages into the system instruction and maps the
// rest to Gemini contents.
func geminiRequest(req GenerateRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if req.Model == "" {
		return nil, nil, errors.New("model cannot be empty")
	}
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	if len(contents) == 0 {
		return nil, nil, errors.New("messages cannot be empty")
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	return contents, cfg, nil
}

// Generate sends one generateContent call.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	contents, cfg, err := geminiRequest(req)
	if err != nil {
		return nil, err
	}
	client, err := c.client(ctx)
	if err != nil {
		return nil, err
	}
	result, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	out := &GenerateResponse{
		ID:      result.ResponseID,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: result.Text()}}},
	}
	if u := result.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// GenerateStream streams partial text chunks.
func (c *GeminiClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	contents, cfg, err := geminiRequest(req)
	if err != nil {
		return err
	}
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	for chunk, err := range client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
		if err != nil {
			return classifyGeminiError(err)
		}
		if text := chunk.Text(); text != "" {
			onDelta(text)
		}
	}
	return nil
}

// classifyGeminiError maps SDK errors onto the shared typed errors.
func classifyGeminiError(err error) error {
	var gerr genai.APIError
	if !errors.As(err, &gerr) {
		return &UnreachableError{Provider: ProviderGemini, Err: err}
	}
	apiErr := &APIError{Provider: ProviderGemini, StatusCode: gerr.Code, Code: gerr.Status, Message: gerr.Message}
	switch {
	case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case gerr.Code == http.StatusTooManyRequests:
		if gerr.Status == "RESOURCE_EXHAUSTED" && containsAnyFold(gerr.Message, "quota") {
			return &QuotaExceededError{APIError: apiErr}
		}
		return &RateLimitError{APIError: apiErr}
	case gerr.Code == http.StatusNotFound:
		return &ModelNotFoundError{APIError: apiErr}
	case gerr.Code == http.StatusBadRequest:
		if containsAnyFold(gerr.Message, "api key not valid") {
			return &AuthError{APIError: apiErr}
		}
		return &BadRequestError{APIError: apiErr}
	case gerr.Code >= 500:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}
