// Package letter calls the external cover-letter generation webhook.
// One attempt per request, no retry: a failure is reported back as a value
// and the user decides whether to try again.
package letter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/tebita/sidekick/internal/domain"
)

// ErrFormat marks a webhook reply in none of the accepted shapes.
var ErrFormat = errors.New("unrecognized generation response format")

// Payload is the structured job-and-profile request sent to the webhook.
type Payload struct {
	JobDetailsHTML string          `json:"jobDetailsHtml"`
	URL            string          `json:"url"`
	UserID         string          `json:"userId"`
	Timestamp      string          `json:"timestamp"`
	UserProfile    *domain.Profile `json:"userProfile"`
}

// Client posts generation requests to the webhook endpoint.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a webhook client. The http.Client carries no explicit
// timeout; the transport's own limits apply.
func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		http:   &http.Client{},
		logger: logger,
	}
}

// Generate performs a single generation attempt and returns the letter text.
func (c *Client) Generate(ctx context.Context, p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode generation payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("generation webhook returned status %d", resp.StatusCode)
	}

	text, err := decodeResponse(body)
	if err != nil {
		c.logger.Warn("Generation response rejected", "error", err)
		return "", err
	}
	return text, nil
}

// decodeResponse accepts the three shapes the webhook has been observed to
// produce: a list whose first element carries the text under "output", an
// object carrying "coverLetter" (or "output"), or a bare string. Anything
// else is a format error.
func decodeResponse(body []byte) (string, error) {
	var list []map[string]json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("empty list reply: %w", ErrFormat)
		}
		if text, ok := stringKey(list[0], "output"); ok {
			return text, nil
		}
		return "", fmt.Errorf("list reply missing output: %w", ErrFormat)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err == nil {
		if text, ok := stringKey(obj, "coverLetter"); ok {
			return text, nil
		}
		if text, ok := stringKey(obj, "output"); ok {
			return text, nil
		}
		return "", fmt.Errorf("object reply missing coverLetter: %w", ErrFormat)
	}

	var bare string
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	return "", ErrFormat
}

func stringKey(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
