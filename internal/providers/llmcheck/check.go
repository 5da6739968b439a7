// Package llmcheck verifies that an OpenAI-compatible chat endpoint accepts the
// configured token and model.
package llmcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"audiotranslator/internal/domain"
)

const defaultTimeout = 20 * time.Second

var ErrIncompleteSettings = errors.New("api endpoint and token are required")

// Checker implements ports.ConnectionChecker with a one-token chat completion.
type Checker struct {
	HTTPClient *http.Client
	Timeout    time.Duration
}

func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Checker{Timeout: timeout}
}

// Check sends a minimal request and returns a short description of the reply.
func (c *Checker) Check(ctx context.Context, settings domain.Settings) (string, error) {
	if !settings.Valid() {
		return "", ErrIncompleteSettings
	}

	cfg := openai.DefaultConfig(strings.TrimSpace(settings.APIToken))
	cfg.BaseURL = BaseURL(settings.APIEndpoint)
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}
	client := openai.NewClientWithConfig(cfg)

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model := strings.TrimSpace(settings.APIModel)
	if model == "" {
		model = domain.DefaultModel
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: 1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("endpoint rejected request (%d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("connection test failed: %w", err)
	}

	if resp.Model != "" {
		model = resp.Model
	}
	return fmt.Sprintf("Connected to %s (model %s)", cfg.BaseURL, model), nil
}

// BaseURL converts a full chat completions endpoint into the base URL the
// client library expects.
func BaseURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	base = strings.TrimSuffix(base, "/chat/completions")
	return strings.TrimRight(base, "/")
}
