package depot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/DepotHQ/depot_sdk_go/internal/depotapi"
	"github.com/DepotHQ/depot_sdk_go/internal/httpx"
)

// sessionCookieName is the cookie the service sets on a successful
// credential exchange. The value is the session JWT.
const sessionCookieName = "depot.session-token"

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = h
	}
}

// WithTimeout overrides the fixed overall request deadline (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithLogger injects a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// Client talks to a Depot storage service. It owns the session state
// (session token, selected bucket) and performs one transparent re-login
// when a request comes back 401. A Client is safe for concurrent use;
// simultaneous re-logins are collapsed into a single credential exchange.
type Client struct {
	http   *httpx.Client
	apiKey string
	logger *slog.Logger

	mu           sync.RWMutex
	sessionToken string
	bucket       string

	loginGroup singleflight.Group
}

// New constructs a Client for the service at baseURL, authenticating with
// apiKey. Trailing slashes on baseURL are stripped. No network call is made
// until Login or the first data operation.
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("depot: API key is required")
	}

	cfg := &clientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	httpOpts := []httpx.Option{}
	if cfg.httpClient != nil {
		httpOpts = append(httpOpts, httpx.WithHTTPClient(cfg.httpClient))
	}
	if cfg.timeout > 0 {
		httpOpts = append(httpOpts, httpx.WithTimeout(cfg.timeout))
	}

	hc, err := httpx.NewClient(baseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("depot: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:   hc,
		apiKey: apiKey,
		logger: logger,
	}, nil
}

// SetBucket selects the bucket subsequent operations address. The name is
// stored as-is; the service validates it on first use.
func (c *Client) SetBucket(name string) {
	c.mu.Lock()
	c.bucket = name
	c.mu.Unlock()
}

// Bucket reports the currently selected bucket.
func (c *Client) Bucket() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bucket
}

// SessionToken reports the held session token, empty before the first
// successful login.
func (c *Client) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionToken
}

// ensureReady fails with ErrPrecondition unless a session token is held and
// a bucket has been selected.
func (c *Client) ensureReady() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessionToken == "" {
		return fmt.Errorf("%w: no session token, call Login first", ErrPrecondition)
	}
	if c.bucket == "" {
		return fmt.Errorf("%w: no bucket selected, call SetBucket first", ErrPrecondition)
	}
	return nil
}

// do performs one logical request with at most one automatic re-login. The
// retry is a bounded loop: the first 401 triggers Login and exactly one
// further attempt; a second 401 is terminal.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body []byte, decodeJSON bool) (*Outcome, error) {
	op := method + " " + path

	for attempt := 0; ; attempt++ {
		req := &httpx.Request{
			Method: method,
			Path:   path,
			Header: cloneHeader(header),
		}
		if token := c.SessionToken(); token != "" {
			if req.Header == nil {
				req.Header = make(http.Header)
			}
			req.Header.Set("Cookie", sessionCookieName+"="+token)
		}
		if body != nil {
			req.Body = bytes.NewReader(body)
		}

		resp, err := c.http.Do(ctx, req)
		if err != nil {
			var httpErr *httpx.HTTPError
			if !errors.As(err, &httpErr) {
				return nil, &TransportError{Op: op, Err: err}
			}
			if httpErr.StatusCode == http.StatusUnauthorized && attempt == 0 {
				c.logger.Warn("session rejected, re-authenticating",
					slog.String("method", method),
					slog.String("path", path),
				)
				if _, err := c.Login(ctx); err != nil {
					return nil, err
				}
				continue
			}
			c.logger.Error("request failed",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", httpErr.StatusCode),
			)
			return nil, &RequestError{
				StatusCode: httpErr.StatusCode,
				Body:       string(httpErr.Body),
				Header:     httpErr.Header,
			}
		}

		data, err := httpx.ReadAllAndClose(resp.Body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}

		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.Int("bytes", len(data)),
		)

		outcome := &Outcome{Header: resp.Header.Clone()}
		if decodeJSON {
			outcome.Body = depotapi.Decode(data)
		} else {
			outcome.Body = data
		}
		return outcome, nil
	}
}

func cloneHeader(src http.Header) http.Header {
	if src == nil {
		return nil
	}
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}
