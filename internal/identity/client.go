// Package identity provides the HTTP client for the external identity
// provider. The provider speaks a GoTrue-style REST API; every operation
// can fail and the caller never assumes success.
package identity

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

	"github.com/tebita/sidekick/internal/domain"
)

// Session is an authenticated identity plus its bearer token.
type Session struct {
	AccessToken string
	Identity    domain.Identity
}

// Client calls the identity provider.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates an identity client. baseURL is the provider root
// (without the /auth/v1 suffix).
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken string          `json:"access_token"`
	User        domain.Identity `json:"user"`
}

type errorResponse struct {
	Message     string `json:"msg"`
	Description string `json:"error_description"`
	Error       string `json:"error"`
}

func (e errorResponse) text(status int) string {
	for _, s := range []string{e.Description, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return fmt.Sprintf("identity provider returned status %d", status)
}

// SignIn exchanges email/password credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var out sessionResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", credentials{email, password}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" || out.User.ID == "" {
		return nil, fmt.Errorf("sign-in response missing session")
	}
	return &Session{AccessToken: out.AccessToken, Identity: out.User}, nil
}

// SignUp registers a new identity. Some providers return a session
// immediately; others defer it until email confirmation, in which case the
// returned session has an empty token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Session, error) {
	var out sessionResponse
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", credentials{email, password}, &out)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: out.AccessToken, Identity: out.User}, nil
}

// SignOut revokes the session token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", token, nil, nil)
}

// ResetPassword asks the provider to send a password-reset email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", "", body, nil)
}

// CurrentUser resolves the identity behind a token. Returns (nil, nil) when
// the token no longer maps to an identity.
func (c *Client) CurrentUser(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, nil
	}
	var out domain.Identity
	err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil, &out)
	if err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// statusError carries the HTTP status alongside the provider's message.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string { return e.message }

func statusOf(err error) int {
	if se, ok := err.(*statusError); ok {
		return se.status
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read identity response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		c.logger.Debug("Identity call failed", "path", path, "status", resp.StatusCode)
		return &statusError{status: resp.StatusCode, message: er.text(resp.StatusCode)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode identity response: %w", err)
		}
	}
	return nil
}
