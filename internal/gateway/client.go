// Package gateway talks to the completion backend over the OpenAI-style
// chat-completions wire protocol, in single-shot JSON mode and in streaming
// (SSE) mode, and enforces the request quota before every round-trip.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"poststudio/internal/logging"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat requests structured output from the backend.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// StreamOptions configures streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// Request is the chat-completions request body.
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	StreamOptions  *StreamOptions  `json:"stream_options,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Response is the chat-completions response body (also used for stream chunks).
type Response struct {
	Choices []Choice       `json:"choices"`
	Error   *ResponseError `json:"error,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Message *Message `json:"message,omitempty"`
	Delta   *Message `json:"delta,omitempty"`
}

// ResponseError is the backend's error envelope.
type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ClientConfig holds connection settings for the completion backend.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		APIKey:      apiKey,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}
}

// Client issues requests against the completion backend.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a client with the given config.
func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 2 * time.Minute
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.config.Model }

// HasCredential reports whether a default API key is configured.
func (c *Client) HasCredential() bool { return c.config.APIKey != "" }

// Complete sends a single-shot request and returns the completion text.
// When jsonMode is set the backend is asked for a strict JSON object.
// apiKey overrides the configured default key when non-empty.
func (c *Client) Complete(ctx context.Context, apiKey, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	return c.CompleteMessages(ctx, apiKey, buildMessages(systemPrompt, userPrompt), jsonMode)
}

// CompleteMessages is like Complete but takes a full message history, used by
// the conversational assistant.
func (c *Client) CompleteMessages(ctx context.Context, apiKey string, messages []Message, jsonMode bool) (string, error) {
	key := c.resolveKey(apiKey)
	if key == "" {
		return "", ErrMissingCredential
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.APIDebug("Complete: model=%s json_mode=%v messages=%d",
		c.config.Model, jsonMode, len(messages))

	reqBody := Request{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	if jsonMode {
		reqBody.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	resp, err := c.do(ctx, key, reqBody, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var completion Response
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("API error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message == nil {
		return "", fmt.Errorf("%w: no completion returned", ErrInvalidResponse)
	}

	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	logging.API("Complete: done in %v response_len=%d", time.Since(startTime), len(text))
	return text, nil
}

// OpenStream sends a streaming request and returns the open response body.
// The caller owns the body and must close it; the stream decoder consumes it
// until exhaustion or termination.
func (c *Client) OpenStream(ctx context.Context, apiKey, systemPrompt, userPrompt string) (io.ReadCloser, error) {
	key := c.resolveKey(apiKey)
	if key == "" {
		return nil, ErrMissingCredential
	}

	logging.APIDebug("OpenStream: model=%s user_len=%d", c.config.Model, len(userPrompt))

	reqBody := Request{
		Model:         c.config.Model,
		Messages:      buildMessages(systemPrompt, userPrompt),
		MaxTokens:     c.config.MaxTokens,
		Temperature:   c.config.Temperature,
		Stream:        true,
		StreamOptions: &StreamOptions{IncludeUsage: true},
	}

	resp, err := c.do(ctx, key, reqBody, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do issues one request and maps non-success statuses to the error taxonomy.
// Transient transport errors are retried with short backoff.
func (c *Client) do(ctx context.Context, key string, reqBody Request, streaming bool) (*http.Response, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	const maxRetries = 2
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+key)
		if streaming {
			req.Header.Set("Accept", "text/event-stream")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			upstreamErr := &UpstreamError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
			}
			logging.APIError("request failed: %v", upstreamErr)
			return nil, upstreamErr
		}
		return resp, nil
	}

	logging.APIError("max retries exceeded: %v", lastErr)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) resolveKey(apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	return c.config.APIKey
}

func buildMessages(systemPrompt, userPrompt string) []Message {
	messages := make([]Message, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: userPrompt})
	return messages
}
