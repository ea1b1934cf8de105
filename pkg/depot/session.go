package depot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/DepotHQ/depot_sdk_go/internal/depotapi"
	"github.com/DepotHQ/depot_sdk_go/internal/httpx"
)

const (
	csrfPath        = "/api/auth/csrf"
	credentialsPath = "/api/auth/callback/credentials"
)

// Login performs the two-step credential exchange: fetch a fresh
// anti-forgery token, then trade it plus the API key for a session cookie.
// The extracted session token is stored on the client and returned.
//
// Login failures are not retried. Concurrent callers are collapsed into a
// single in-flight exchange; every caller observes the same result.
func (c *Client) Login(ctx context.Context) (string, error) {
	token, err, _ := c.loginGroup.Do("login", func() (any, error) {
		return c.loginOnce(ctx)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (c *Client) loginOnce(ctx context.Context) (string, error) {
	csrf, err := c.fetchCSRFToken(ctx)
	if err != nil {
		return "", err
	}

	token, err := c.exchangeCredentials(ctx, csrf)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.sessionToken = token
	c.mu.Unlock()

	c.logger.Debug("session established")
	return token, nil
}

func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	resp, err := c.http.Do(ctx, &httpx.Request{
		Method: http.MethodGet,
		Path:   csrfPath,
	})
	if err != nil {
		return "", wrapHTTPErr("GET "+csrfPath, err)
	}

	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "GET " + csrfPath, Err: err}
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := depotapi.DecodeInto(body, &payload); err != nil {
		return "", fmt.Errorf("%w: unreadable CSRF response: %v", ErrProtocol, err)
	}
	if strings.TrimSpace(payload.CSRFToken) == "" {
		return "", fmt.Errorf("%w: no csrfToken in response", ErrProtocol)
	}
	return payload.CSRFToken, nil
}

func (c *Client) exchangeCredentials(ctx context.Context, csrf string) (string, error) {
	form := url.Values{}
	form.Set("csrfToken", csrf)
	form.Set("token", c.apiKey)

	resp, err := c.http.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   credentialsPath,
		Header: http.Header{
			"Content-Type": []string{"application/x-www-form-urlencoded"},
		},
		Body: strings.NewReader(form.Encode()),
	})
	if err != nil {
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			return "", fmt.Errorf("%w: credential exchange rejected (HTTP %d)",
				ErrAuthentication, httpErr.StatusCode)
		}
		return "", &TransportError{Op: "POST " + credentialsPath, Err: err}
	}
	defer resp.Body.Close()

	// The token travels in a Set-Cookie header rather than the body; pick
	// it out explicitly instead of relying on a cookie jar.
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookieName && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	c.logger.Error("credential exchange completed without a session cookie",
		slog.Int("status", resp.StatusCode),
	)
	return "", fmt.Errorf("%w: no %s cookie in response", ErrAuthentication, sessionCookieName)
}

// wrapHTTPErr converts a transport-layer failure into the public taxonomy.
func wrapHTTPErr(op string, err error) error {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		return &RequestError{
			StatusCode: httpErr.StatusCode,
			Body:       string(httpErr.Body),
			Header:     httpErr.Header,
		}
	}
	return &TransportError{Op: op, Err: err}
}
