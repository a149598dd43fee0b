package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/config"
)

const defaultInitialDelay = 1 * time.Second

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("llm: LLM_API_KEY not set")

// Message is one turn of a chat completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options override the client defaults for a single call
type Options struct {
	Temperature *float64
	MaxTokens   int
}

// Completer produces a single assistant reply for a list of messages
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Client talks to an OpenAI compatible /chat/completions endpoint
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	temperature  float64
	maxTokens    int
	maxRetries   int
	initialDelay time.Duration
	client       *http.Client
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewClient creates a client from configuration
func NewClient(cfg config.LLMConfig) *Client {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		maxRetries:   retries,
		initialDelay: defaultInitialDelay,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends the messages and returns the first choice's content
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry with exponential backoff
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * c.initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		content, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return "", lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", retryable, fmt.Errorf("completion API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", retryable, fmt.Errorf("completion API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", false, fmt.Errorf("completion API returned no choices")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), false, nil
}
