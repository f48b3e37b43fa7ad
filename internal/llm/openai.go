package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/failure"
	"github.com/askdb/askdb/internal/observability"
)

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAIGenerator{
		baseURL:     strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       model,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: timeout},
	}, nil
}

// Check verifies the endpoint is reachable and the key is accepted. Used
// by the control panel's validation probe, not by the pipeline.
func (g *OpenAIGenerator) Check(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("build models request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request models: %s", observability.Mask(err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("api key rejected (status %d)", resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("model endpoint unavailable (status %d)", resp.StatusCode)
	}
	return nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	body, err := json.Marshal(map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": g.temperature,
	})
	if err != nil {
		return "", failure.Wrap(failure.KindGenerationFailed, fmt.Errorf("marshal chat payload: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", failure.Wrap(failure.KindGenerationFailed, fmt.Errorf("build chat request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// Covers client timeout and transport failures alike; both are
		// terminal for this run.
		return "", failure.Newf(failure.KindGenerationFailed, "request chat completion: %s", observability.Mask(err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", failure.Wrap(failure.KindGenerationFailed, fmt.Errorf("read chat response body: %w", err))
	}
	if resp.StatusCode >= 400 {
		return "", failure.Newf(failure.KindGenerationFailed, "chat completion failed status=%d", resp.StatusCode)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		return "", failure.Wrap(failure.KindGenerationFailed, fmt.Errorf("decode chat completion response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", failure.New(failure.KindGenerationFailed, "empty chat completion choices")
	}

	statement, err := ExtractStatement(parsed.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}
	observability.ObserveGeneration(time.Since(start))
	return statement, nil
}
