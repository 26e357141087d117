package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentfleet/agentfleet/internal/config"
)

// chatMessage is one turn of a chat-completions conversation
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client calls an OpenAI-compatible chat-completions endpoint and
// parses the answer into a Decision. It implements Oracle.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	maxRetries  int
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewClient creates an oracle client from configuration. Zero values
// get sensible defaults.
func NewClient(cfg config.OracleConfig, apiKey string) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:8080/v1/chat/completions"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4-turbo"
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}
	timeout := cfg.GetTimeout()
	if timeout == 0 {
		timeout = 25 * time.Second
	}

	return &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		maxRetries:  cfg.MaxRetries,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      config.NewLogger("oracle"),
	}
}

// Decide renders the request into prompts, calls the model and parses
// the decision. Transport errors, bad payloads and deadline expiry all
// return the fallback decision with a nil error; only a cancelled
// context propagates.
func (c *Client) Decide(ctx context.Context, req Request) (*Decision, error) {
	messages := []chatMessage{
		{Role: "system", Content: BuildSystemPrompt(req.Profile)},
		{Role: "user", Content: BuildUserPrompt(req)},
	}

	content, err := c.completeWithRetry(ctx, messages)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		c.logger.Warn().
			Err(err).
			Str("agent", req.Profile.Name).
			Msg("Oracle unavailable, using fallback decision")
		return FallbackDecision(req.Profile.AgentType, "oracle unavailable"), nil
	}

	var decision Decision
	if err := json.Unmarshal([]byte(extractJSON(content)), &decision); err != nil {
		c.logger.Warn().
			Err(err).
			Str("agent", req.Profile.Name).
			Msg("Malformed oracle response, using fallback decision")
		return FallbackDecision(req.Profile.AgentType, "malformed oracle response"), nil
	}

	return sanitize(&decision, req.Profile.AgentType), nil
}

// completeWithRetry sends the chat request with exponential backoff.
func (c *Client) completeWithRetry(ctx context.Context, messages []chatMessage) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			c.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying oracle request")

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		content, err := c.complete(ctx, messages)
		if err == nil {
			return content, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("oracle request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	request := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return "", fmt.Errorf("oracle API error (status %d): %s", resp.StatusCode, string(body))
		}
		return "", fmt.Errorf("oracle API error: %s", errResp.Error.Message)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in oracle response")
	}

	c.logger.Debug().
		Str("model", chatResp.Model).
		Int("prompt_tokens", chatResp.Usage.PromptTokens).
		Int("completion_tokens", chatResp.Usage.CompletionTokens).
		Dur("duration", time.Since(start)).
		Msg("Oracle request completed")

	return chatResp.Choices[0].Message.Content, nil
}

// extractJSON strips a markdown code fence when the model wraps its
// answer in one.
func extractJSON(content string) string {
	contentBytes := []byte(content)
	start := -1

	if idx := bytes.Index(contentBytes, []byte("```json")); idx >= 0 {
		start = idx + 7
	} else if idx := bytes.Index(contentBytes, []byte("```")); idx >= 0 {
		start = idx + 3
	}

	if start >= 0 {
		if idx := bytes.Index(contentBytes[start:], []byte("```")); idx >= 0 {
			contentBytes = contentBytes[start : start+idx]
		}
	}

	return string(bytes.TrimSpace(contentBytes))
}
