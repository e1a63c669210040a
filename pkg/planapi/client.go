package planapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/dmitrymomot/accessgate/pkg/environment"
	"github.com/dmitrymomot/accessgate/pkg/feature"
	"github.com/dmitrymomot/accessgate/pkg/logger"
	"github.com/dmitrymomot/accessgate/pkg/subscription"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 1 << 20

// Client talks to the Plan/Access API on behalf of an authenticated user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// New creates a Plan API client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: cleanhttp.DefaultPooledClient(),
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromConfig creates a client using the base URL selected for env.
func NewFromConfig(cfg Config, env environment.Environment, opts ...Option) (*Client, error) {
	opts = append([]Option{WithTimeout(cfg.Timeout)}, opts...)
	return New(cfg.Endpoints.For(env), opts...)
}

// CurrentPlan fetches GET /plans/current.
func (c *Client) CurrentPlan(ctx context.Context, token string) (*subscription.Plan, error) {
	var plan subscription.Plan
	if err := c.get(ctx, token, "/plans/current", &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// FeatureAccess fetches GET /plans/feature/{id}/access.
func (c *Client) FeatureAccess(ctx context.Context, token string, id feature.ID) (bool, error) {
	var resp struct {
		HasAccess bool `json:"hasAccess"`
	}
	path := "/plans/feature/" + url.PathEscape(string(id)) + "/access"
	if err := c.get(ctx, token, path, &resp); err != nil {
		return false, err
	}
	return resp.HasAccess, nil
}

func (c *Client) get(ctx context.Context, token, path string, v any) error {
	if token == "" {
		return ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return errors.Join(ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.DebugContext(ctx, "plan api returned non-2xx",
			logger.Component("planapi"),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return &StatusError{Code: resp.StatusCode, Path: path}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Join(ErrDecodeResponse, fmt.Errorf("%s: %w", path, err))
	}
	return nil
}
