// Package llm is the chat-completion transport used for translation
// calls: request/response codec, failure classification and bounded
// retry.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"subtrans/pkg/log"
)

const defaultTimeout = 60 * time.Second

// Config holds the client configuration. An empty APIKey means the
// endpoint does not require authentication (the "nullkey" case); the
// Authorization header is then omitted entirely.
type Config struct {
	APIURL    string
	APIKey    string
	Model     string
	UserAgent string
	MaxTokens int // response token cap, 0 means endpoint default
	Timeout   time.Duration
	Retry     RetryPreset
}

// Validate validates the configuration
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("API URL is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

// Client issues translation requests against a chat-completion
// endpoint. Thread-safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new client with the given configuration.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = PresetFor(0)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// TranslateRequest carries one batch translation call.
type TranslateRequest struct {
	BatchText  string // the batch payload to translate
	Context    string // trailing source excerpt of the previous batch, may be empty
	SourceLang string // empty means auto-detect
	TargetLang string
}

// Translate sends the batch to the endpoint and returns the raw
// translated payload. Transient failures are retried per the
// configured preset; auth failures are returned immediately.
func (c *Client) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(req)},
	}

	preset := c.config.Retry
	var lastErr error
	for attempt := 1; attempt <= preset.MaxAttempts; attempt++ {
		content, err := c.chatCompletion(ctx, messages)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if !Retryable(err) {
			return "", err
		}
		if attempt == preset.MaxAttempts {
			break
		}

		wait := preset.Delay(attempt)
		log.Warn("translation attempt %d/%d failed (%v), retrying in %s", attempt, preset.MaxAttempts, err, wait)
		if serr := sleep(ctx, wait); serr != nil {
			return "", serr
		}
	}

	return "", fmt.Errorf("translation failed after %d attempts: %w", preset.MaxAttempts, lastErr)
}

// chatCompletion performs a single request attempt and classifies any
// failure into the llm error taxonomy.
func (c *Client) chatCompletion(ctx context.Context, messages []Message) (string, error) {
	payload := ChatRequest{
		Model:     c.config.Model,
		Messages:  messages,
		MaxTokens: c.config.MaxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return "", fmt.Errorf("%w: status %d: %s", classifyStatus(resp.StatusCode), resp.StatusCode, truncateBody(responseBody))
		}
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		class := classifyStatus(resp.StatusCode)
		if chatResponse.Error != nil {
			class = refineClass(class, chatResponse.Error)
			return "", fmt.Errorf("%w: status %d: %v", class, resp.StatusCode, chatResponse.Error)
		}
		return "", fmt.Errorf("%w: status %d: %s", class, resp.StatusCode, truncateBody(responseBody))
	}

	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return "", fmt.Errorf("%w: %v", refineClass(ErrNetwork, chatResponse.Error), chatResponse.Error)
	}

	if len(chatResponse.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrNetwork)
	}
	content := chatResponse.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("%w: response carries no content", ErrNetwork)
	}
	return content, nil
}

// refineClass sharpens the failure class using the API error object
// when the status code alone is ambiguous.
func refineClass(fallback error, apiErr *APIError) error {
	t := strings.ToLower(apiErr.Type + " " + apiErr.Code)
	switch {
	case strings.Contains(t, "insufficient_quota") || strings.Contains(t, "rate_limit"):
		return ErrQuota
	case strings.Contains(t, "invalid_api_key") || strings.Contains(t, "authentication"):
		return ErrAuth
	default:
		return fallback
	}
}

func truncateBody(body []byte) string {
	const limit = 512
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuth)
}
