// Package client is an HTTP client for the registration API.
package client

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
	"sync"
	"time"

	"github.com/schedly/schedly/internal/handler/dto"
	"github.com/schedly/schedly/internal/middleware"
	"github.com/schedly/schedly/internal/model"
	"github.com/schedly/schedly/internal/session"
)

const (
	// ClientTimeout is the total request timeout.
	ClientTimeout = 15 * time.Second
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// ErrNotRegistering is returned by Me before a registration succeeded.
var ErrNotRegistering = errors.New("no registration in progress")

// APIError is a non-2xx response from the API.
// Message is empty when the body did not carry one.
type APIError struct {
	Status    int
	Message   string
	Fields    map[string]string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Client talks to the registration API. It keeps the identity cookie issued
// by a successful registration and sends it on later requests.
type Client struct {
	baseURL string
	http    *http.Client

	mu     sync.RWMutex
	userID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the API at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHTTPClient returns an http.Client with timeouts suited to the API.
// Redirects are not followed.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   DialTimeout,
			ResponseHeaderTimeout: ClientTimeout,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// UserID returns the id from the identity cookie, or "" before a
// successful registration.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Register submits a registration. A rejection by the API is an *APIError.
func (c *Client) Register(ctx context.Context, name, username string) (*model.User, error) {
	body, err := json.Marshal(dto.RegisterRequest{Name: name, Username: username})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var user dto.UserResponse
	resp, err := c.do(req, http.StatusCreated, &user)
	if err != nil {
		return nil, err
	}

	if id, ok := session.FromResponse(resp); ok {
		c.mu.Lock()
		c.userID = id
		c.mu.Unlock()
	}

	return toModel(user), nil
}

// Me returns the user the identity cookie names.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	id := c.UserID()
	if id == "" {
		return nil, ErrNotRegistering
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	session.Attach(req, id)

	var user dto.UserResponse
	if _, err := c.do(req, http.StatusOK, &user); err != nil {
		return nil, err
	}
	return toModel(user), nil
}

// do sends req and decodes a want-status response into out.
func (c *Client) do(req *http.Request, want int, out any) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return resp, decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get(middleware.RequestIDHeader),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apiErr
	}

	var body dto.ErrorResponse
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		apiErr.Fields = body.Errors
	}
	return apiErr
}

func toModel(u dto.UserResponse) *model.User {
	return &model.User{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}
