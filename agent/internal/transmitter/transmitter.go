// Package transmitter posts security events to the ingestion service.
package transmitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/telhawk-systems/telhawk-sentinel/common/logging"
	"github.com/telhawk-systems/telhawk-sentinel/common/models"
)

// DefaultTimeout bounds a single Transmit call.
const DefaultTimeout = 5 * time.Second

// StatusError is returned when the backend answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ingest response status %d", e.StatusCode)
	}
	return fmt.Sprintf("ingest response status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is on the server side. Client
// errors, including 429, are not retried.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500
}

// Client sends events to <baseURL>/ingest. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New constructs a Client. timeout <= 0 uses DefaultTimeout.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Transmit makes one POST of ev. Transport failures and non-200 responses
// are logged and returned.
func (c *Client) Transmit(ctx context.Context, ev models.SecurityEvent) error {
	err := c.post(ctx, ev)
	if err != nil {
		c.logger.Warn("failed to transmit event", logging.Error(err), logging.EventType(ev.EventType))
	}
	return err
}

func (c *Client) post(ctx context.Context, ev models.SecurityEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&errBody)
		return &StatusError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
