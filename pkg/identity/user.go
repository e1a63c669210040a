package identity

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

	"github.com/dmitrymomot/accessgate/pkg/logger"
)

const maxBodySize = 1 << 20

// User is the identity provider's view of an account.
// Metadata is the public metadata bag that carries the subscription record.
type User struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// Provider fetches users from the identity provider.
type Provider interface {
	// Reload bypasses any client-side caching and returns the current user.
	Reload(ctx context.Context, userID string) (*User, error)
}

// Client is the HTTP implementation of Provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

var _ Provider = (*Client)(nil)

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// NewClient creates a client for the identity API at baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: cleanhttp.DefaultPooledClient(),
		log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type userResponse struct {
	ID             string `json:"id"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	PublicMetadata map[string]any `json:"public_metadata"`
}

// Reload fetches GET /v1/users/{id}.
func (c *Client) Reload(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrUserNotFound
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, errors.Join(ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Join(ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Join(ErrFetchFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUserNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.log.DebugContext(ctx, "identity api returned non-2xx",
			logger.Component("identity"),
			logger.UserID(userID),
			slog.Int("status", resp.StatusCode),
		)
		return nil, errors.Join(ErrFetchFailed, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var ur userResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return nil, errors.Join(ErrFetchFailed, err)
	}

	u := &User{ID: ur.ID, Metadata: ur.PublicMetadata}
	if len(ur.EmailAddresses) > 0 {
		u.Email = ur.EmailAddresses[0].EmailAddress
	}
	return u, nil
}
