package clowder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single platform request
const DefaultTimeout = 2 * time.Minute

// ErrNotFound is returned when a requested platform resource does not exist
var ErrNotFound = errors.New("not found")

// HTTPError is a non-2xx platform response
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.Status, http.StatusText(e.Status), e.Body)
}

// Temporary reports whether retrying the request later may succeed
func (e *HTTPError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// Is matches ErrNotFound for 404 responses
func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(hc *http.Client) func(c *Client) {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) func(c *Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("host", c.host))
	}
}

// WithBasicAuth authenticates requests with a username and password in
// addition to the secret key.
func WithBasicAuth(user, password string) func(c *Client) {
	return func(c *Client) {
		c.user, c.password = user, password
	}
}

// Client talks to the data management platform REST API. Every request is
// authorized with the secret key passed as the `key` query parameter.
type Client struct {
	host     string
	key      string
	user     string
	password string

	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a client for the platform at host, e.g.
// "https://terraref.ncsa.illinois.edu/clowder/".
func NewClient(host, key string, options ...func(c *Client)) *Client {
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}

	c := Client{
		host:   host,
		key:    key,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Host returns the platform base URL, always ending in a slash
func (c *Client) Host() string {
	return c.host
}

// WithKey returns a copy of the client using a different secret key. Messages
// carry their own key, which takes precedence over the configured one.
func (c *Client) WithKey(key string) *Client {
	if key == "" || key == c.key {
		return c
	}
	cc := *c
	cc.key = key
	return &cc
}

// endpoint builds an API URL. The path is relative to the host and query
// values are added next to the secret key.
func (c *Client) endpoint(path string, query url.Values) string {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if c.key != "" {
		q.Set("key", c.key)
	}

	u := c.host + strings.TrimPrefix(path, "/")
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends a request and returns the response body of a 2xx response
func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, redact(req.URL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Debug("platform request",
		slog.String("method", req.Method),
		slog.String("url", redact(req.URL)),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method: req.Method,
			URL:    redact(req.URL),
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, query, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// redact hides the secret key in logged URLs
func redact(u *url.URL) string {
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
	}
	cp := *u
	cp.RawQuery = q.Encode()
	return cp.String()
}
