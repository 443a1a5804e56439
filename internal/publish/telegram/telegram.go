// Package telegram implements a Publisher that posts messages to a chat
// via the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// requestTimeout bounds one sendMessage call. Publishing is single-attempt;
// the caller decides what a failed chunk means.
const requestTimeout = 10 * time.Second

// Config holds the configuration for creating a Publisher.
type Config struct {
	Token  string
	ChatID string
}

// Publisher posts text messages to a Telegram chat through the Bot API.
type Publisher struct {
	chatID     string
	sendURL    string
	httpClient *http.Client
}

// New creates a new Telegram Publisher with the given configuration.
func New(cfg Config) *Publisher {
	return &Publisher{
		chatID:     cfg.ChatID,
		sendURL:    fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", cfg.Token),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// newWithOverrides creates a Publisher with a custom API base URL and HTTP
// client, used for testing.
func newWithOverrides(cfg Config, baseURL string, client *http.Client) *Publisher {
	return &Publisher{
		chatID:     cfg.ChatID,
		sendURL:    fmt.Sprintf("%s/bot%s/sendMessage", baseURL, cfg.Token),
		httpClient: client,
	}
}

// Publish sends one message to the configured chat. It makes a single
// attempt; non-success responses are classified and returned as errors.
func (p *Publisher) Publish(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", p.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.sendURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &publishError{
			message:   fmt.Sprintf("HTTP request failed: %v", err),
			transient: true,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var apiResp apiErrorResponse
	if jsonErr := json.Unmarshal(body, &apiResp); jsonErr == nil && apiResp.Description != "" {
		return classifyError(resp.StatusCode, apiResp.Description)
	}

	return classifyError(resp.StatusCode, string(body))
}

// Name returns the backend name.
func (p *Publisher) Name() string {
	return "telegram"
}

// apiErrorResponse is the Bot API error envelope.
type apiErrorResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// publishError represents a failed sendMessage call with classification
// for the caller's logging.
type publishError struct {
	message    string
	statusCode int
	permanent  bool
	transient  bool
}

func (e *publishError) Error() string {
	return fmt.Sprintf("Telegram API error (HTTP %d): %s", e.statusCode, e.message)
}

// classifyError categorizes an HTTP error response.
func classifyError(statusCode int, message string) *publishError {
	err := &publishError{
		message:    message,
		statusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		err.transient = true
	default:
		err.permanent = true
	}

	return err
}
