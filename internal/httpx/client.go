package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds every request issued through a Client unless the
// caller supplies their own http.Client.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used by the helper.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeaders assigns default headers added to every request.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithTimeout overrides the fixed overall request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// Client wraps http.Client providing base URL resolution and uniform error
// handling. It issues each request exactly once; retry decisions belong to
// the caller.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	headers    http.Header
}

// Request describes a single outbound request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   io.Reader
}

// NewClient creates a Client for the provided base URL. Trailing slashes on
// the base URL are stripped so path joining stays predictable.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httpx: base URL is required")
	}

	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		headers: make(http.Header),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL reports the resolved base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do executes the provided request once. A non-2xx response is returned as
// an *HTTPError with the body already drained; transport failures come back
// as the underlying error from net/http.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("httpx: request is nil")
	}
	if req.Method == "" {
		return nil, errors.New("httpx: HTTP method is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fullURL, err := c.buildURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, req.Body)
	if err != nil {
		return nil, err
	}

	httpReq.Header = cloneHeader(c.headers)
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleError(resp)
	}
	return resp, nil
}

func (c *Client) buildURL(path string, q url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	if len(q) > 0 {
		ref.RawQuery = q.Encode()
	}
	full := *c.baseURL
	// Keep any path prefix carried by the base URL.
	full.Path = strings.TrimRight(c.baseURL.Path, "/") + ref.Path
	full.RawQuery = ref.RawQuery
	return full.String(), nil
}

func (c *Client) handleError(resp *http.Response) error {
	defer closeBody(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		body = []byte(fmt.Sprintf("(read error body: %v)", err))
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header.Clone(),
	}
}

// ReadAllAndClose drains the reader and ensures it is closed.
func ReadAllAndClose(rc io.ReadCloser) ([]byte, error) {
	defer closeBody(rc)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func closeBody(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}
