package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTemperature = 0.7

// Message is one role/content pair in the provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage mirrors the provider's token accounting. Totals are stored
// verbatim, not recomputed from prompt+completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL, apiKey, model string, timeout time.Duration, maxRetries int, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) Model() string { return c.model }

// Option adjusts a single Chat call.
type Option func(*request)

func WithTemperature(t float64) Option {
	return func(r *request) { r.Temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(r *request) { r.MaxTokens = &n }
}

type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type response struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FormatMessages prepends the system prompt to the history. History order
// is preserved; no system entry is injected for an empty prompt.
func FormatMessages(history []Message, systemPrompt string) []Message {
	formatted := make([]Message, 0, len(history)+1)
	if systemPrompt != "" {
		formatted = append(formatted, Message{Role: "system", Content: systemPrompt})
	}
	return append(formatted, history...)
}

func (c *Client) buildRequest(messages []Message, opts ...Option) request {
	r := request{
		Model:       c.model,
		Messages:    messages,
		Temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// doRequest performs a single POST to /chat/completions and returns the
// raw success body. Deadline failures come back wrapping ErrTimeout; any
// other failure is an *APIError.
func (c *Client) doRequest(ctx context.Context, body request) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &APIError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Error("LLM request timed out",
				zap.Duration("timeout", c.httpClient.Timeout), zap.Error(err))
			return nil, fmt.Errorf("%w after %s", ErrTimeout, c.httpClient.Timeout)
		}
		c.logger.Error("LLM request failed", zap.Error(err))
		return nil, &APIError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Message != "" {
			detail = eb.Error.Message
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: detail}
	}

	return raw, nil
}

// parseResponse extracts the assistant text and token usage from a
// success body. Missing usage fields default to zero.
func parseResponse(raw []byte) (string, Usage, error) {
	var r response
	if err := json.Unmarshal(raw, &r); err != nil {
		// Not an *APIError on purpose: an unparseable 2xx body is treated
		// as a transient fault and goes through the retry loop.
		return "", Usage{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(r.Choices) == 0 {
		return "", Usage{}, &APIError{Message: "invalid response: no choices returned"}
	}
	content := r.Choices[0].Message.Content
	if content == nil {
		return "", Usage{}, &APIError{Message: "invalid response: no content in message"}
	}

	usage := Usage{
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
	}
	return *content, usage, nil
}

// Chat sends the conversation to the provider and returns the assistant
// reply with its token usage. Timeouts propagate immediately; 5xx
// rejections and unexpected faults are retried up to maxRetries extra
// attempts, after which the last unexpected fault is wrapped as an
// *APIError.
func (c *Client) Chat(ctx context.Context, history []Message, systemPrompt string, opts ...Option) (string, Usage, error) {
	messages := FormatMessages(history, systemPrompt)
	body := c.buildRequest(messages, opts...)

	if est := c.estimateTokens(messages); est > 0 {
		c.logger.Debug("sending chat completion request",
			zap.Int("messages", len(messages)),
			zap.Int("estimated_prompt_tokens", est))
	}

	for attempt := 0; ; attempt++ {
		raw, err := c.doRequest(ctx, body)
		if err == nil {
			var content string
			var usage Usage
			content, usage, err = parseResponse(raw)
			if err == nil {
				return content, usage, nil
			}
		}

		if errors.Is(err, ErrTimeout) {
			return "", Usage{}, err
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.retryable() && attempt < c.maxRetries {
				c.logger.Warn("LLM API error, retrying",
					zap.Int("attempt", attempt+1),
					zap.Int("max_attempts", c.maxRetries+1),
					zap.Int("status", apiErr.StatusCode),
					zap.Error(err))
				continue
			}
			return "", Usage{}, err
		}

		if attempt < c.maxRetries {
			c.logger.Warn("unexpected LLM error, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", c.maxRetries+1),
				zap.Error(err))
			continue
		}
		return "", Usage{}, &APIError{Message: fmt.Sprintf("unexpected error: %v", err)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
