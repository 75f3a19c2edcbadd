// Package contentapi is the HTTP client for the content backend's
// /api/content endpoints.
package contentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"contentcal/internal/model"
)

const (
	DefaultTimeout = 30 * time.Second

	contentPath = "/api/content"
	// serviceTokenTTL bounds minted service tokens.
	serviceTokenTTL = 15 * time.Minute
	// maxErrorBody caps how much of an error response ends up in messages.
	maxErrorBody = 512
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	jwtSecret  string
	subject    string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends a static bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithJWTSecret mints a short-lived HS256 service token per request instead
// of a static token.
func WithJWTSecret(secret, subject string) Option {
	return func(c *Client) {
		c.jwtSecret = secret
		c.subject = subject
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		subject:    "contentcal",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// createRequest is the body of a create call; an empty description is sent
// as null.
type createRequest struct {
	Title         string    `json:"title"`
	Description   *string   `json:"description"`
	Platform      string    `json:"platform"`
	ScheduledDate time.Time `json:"scheduledDate"`
	Status        string    `json:"status"`
}

// CreateContentItem issues a single POST; failures are not retried.
func (c *Client) CreateContentItem(ctx context.Context, cand model.CandidateItem) (model.ContentItem, error) {
	body := createRequest{
		Title:         cand.Title,
		Platform:      string(cand.Platform),
		ScheduledDate: cand.ScheduledDate.UTC(),
		Status:        string(cand.Status),
	}
	if cand.Description != "" {
		d := cand.Description
		body.Description = &d
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return model.ContentItem{}, fmt.Errorf("marshal content item: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+contentPath, bytes.NewReader(payload))
	if err != nil {
		return model.ContentItem{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created model.ContentItem
	if err := c.do(req, &created); err != nil {
		return model.ContentItem{}, err
	}
	return created, nil
}

// ListContentItems returns every item visible to the caller. Both a bare
// array and a {"contentItems": [...]} wrapper are accepted.
func (c *Client) ListContentItems(ctx context.Context) ([]model.ContentItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+contentPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	var items []model.ContentItem
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode content list: %w", err)
		}
		return items, nil
	}
	var wrapped struct {
		ContentItems []model.ContentItem `json:"contentItems"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode content list: %w", err)
	}
	return wrapped.ContentItems, nil
}

func (c *Client) do(req *http.Request, result any) error {
	if err := c.authorize(req); err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return fmt.Errorf("content API unreachable: %w", urlErr.Err)
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp, body)}
	}
	if result == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) error {
	switch {
	case c.jwtSecret != "":
		now := time.Now()
		claims := &jwt.RegisteredClaims{
			Subject:   c.subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(serviceTokenTTL)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.jwtSecret))
		if err != nil {
			return fmt.Errorf("sign service token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return nil
}

// errorMessage prefers a JSON {"error": "..."} body, then the raw text,
// then the status text.
func errorMessage(resp *http.Response, body []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return msg
}
