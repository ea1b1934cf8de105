package depot_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DepotHQ/depot_sdk_go/pkg/depot"
	"github.com/DepotHQ/depot_sdk_go/pkg/depot/mock"
)

const testAPIKey = "key-sandbox-1"

// newMockClient spins up the in-memory service and a client pointed at it.
func newMockClient(t *testing.T) (*depot.Client, *mock.Server) {
	t.Helper()

	svc := mock.New(testAPIKey)
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	client, err := depot.New(srv.URL, testAPIKey)
	require.NoError(t, err)
	return client, svc
}

func TestLoginThenFetchWithoutSecondLogin(t *testing.T) {
	client, svc := newMockClient(t)
	svc.Seed("b", "docs/report.pdf", []byte("%PDF-1.4 payload"), "application/pdf")

	ctx := context.Background()
	token, err := client.Login(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, client.SessionToken())

	client.SetBucket("b")
	out, err := client.FetchFile(ctx, "docs/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 payload"), out.Bytes())

	assert.Equal(t, int64(1), svc.LoginCount(), "data op must not trigger another login")
}

func TestLoginInvalidKey(t *testing.T) {
	svc := mock.New(testAPIKey)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	client, err := depot.New(srv.URL, "wrong-key")
	require.NoError(t, err)

	_, err = client.Login(context.Background())
	require.ErrorIs(t, err, depot.ErrAuthentication)
	assert.Empty(t, client.SessionToken())

	client.SetBucket("b")
	_, err = client.FetchFile(context.Background(), "anything")
	require.ErrorIs(t, err, depot.ErrPrecondition)
}

func TestRetryAfterSessionExpiry(t *testing.T) {
	client, svc := newMockClient(t)
	svc.Seed("b", "f.bin", []byte{1, 2, 3}, "")

	ctx := context.Background()
	_, err := client.Login(ctx)
	require.NoError(t, err)
	client.SetBucket("b")

	svc.ExpireSessions()

	out, err := client.FetchFile(ctx, "f.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out.Bytes())
	assert.Equal(t, int64(2), svc.LoginCount(), "expiry must trigger exactly one re-login")
}

func TestPersistent401IsTerminal(t *testing.T) {
	var loginCalls, fileCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/csrf":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"csrfToken":"tok"}`))
		case "/api/auth/callback/credentials":
			loginCalls.Add(1)
			http.SetCookie(w, &http.Cookie{Name: "depot.session-token", Value: "sess"})
			w.WriteHeader(http.StatusOK)
		default:
			fileCalls.Add(1)
			http.Error(w, "expired", http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	client, err := depot.New(srv.URL, testAPIKey)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Login(ctx)
	require.NoError(t, err)
	client.SetBucket("b")

	_, err = client.FetchFile(ctx, "f")
	require.ErrorIs(t, err, depot.ErrRequest)

	var reqErr *depot.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)

	assert.Equal(t, int32(2), fileCalls.Load(), "exactly one retry after re-login")
	assert.Equal(t, int32(2), loginCalls.Load(), "exactly one re-login")

	// State stays authenticated; the next call runs the same cycle again.
	assert.NotEmpty(t, client.SessionToken())
	_, err = client.FetchFile(ctx, "f")
	require.ErrorIs(t, err, depot.ErrRequest)
	assert.Equal(t, int32(4), fileCalls.Load())
}

func TestPreconditionsMakeNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unexpected", http.StatusTeapot)
	}))
	defer srv.Close()

	client, err := depot.New(srv.URL, testAPIKey)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.FetchFile(ctx, "f")
	require.ErrorIs(t, err, depot.ErrPrecondition)

	_, err = client.UploadContent(ctx, "f", []depot.ContentItem{depot.HTMLItem("<p>x</p>")}, nil)
	require.ErrorIs(t, err, depot.ErrPrecondition)

	assert.Equal(t, int32(0), calls.Load())
}

func TestBucketRequiredAfterLogin(t *testing.T) {
	client, _ := newMockClient(t)

	ctx := context.Background()
	_, err := client.Login(ctx)
	require.NoError(t, err)

	_, err = client.FetchFile(ctx, "f")
	require.ErrorIs(t, err, depot.ErrPrecondition)
	assert.ErrorContains(t, err, "bucket")
}

func TestTransportErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/csrf":
			_, _ = w.Write([]byte(`{"csrfToken":"tok"}`))
		case "/api/auth/callback/credentials":
			http.SetCookie(w, &http.Cookie{Name: "depot.session-token", Value: "sess"})
		default:
			calls.Add(1)
			// Hijack and drop the connection mid-response.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Error("server does not support hijacking")
				return
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
		}
	}))
	defer srv.Close()

	client, err := depot.New(srv.URL, testAPIKey)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Login(ctx)
	require.NoError(t, err)
	client.SetBucket("b")

	_, err = client.FetchFile(ctx, "f")
	require.ErrorIs(t, err, depot.ErrTransport)
	assert.Equal(t, int32(1), calls.Load(), "transport failures are surfaced without retry")
}

func TestLenientDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want any
	}{
		{"valid json decoded", `{"stored":true}`, map[string]any{"stored": true}},
		{"malformed json falls back to text", `{"stored": oops`, `{"stored": oops`},
		{"plain text preserved", "created 1 object\n", "created 1 object\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/api/auth/csrf":
					_, _ = w.Write([]byte(`{"csrfToken":"tok"}`))
				case "/api/auth/callback/credentials":
					http.SetCookie(w, &http.Cookie{Name: "depot.session-token", Value: "sess"})
				default:
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			client, err := depot.New(srv.URL, testAPIKey)
			require.NoError(t, err)
			ctx := context.Background()
			_, err = client.Login(ctx)
			require.NoError(t, err)
			client.SetBucket("b")

			out, err := client.UploadContent(ctx, "p", []depot.ContentItem{depot.HTMLItem("<p>x</p>")}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Body)
		})
	}
}

func TestRawResponseBytesUntouched(t *testing.T) {
	client, svc := newMockClient(t)
	raw := []byte{0x00, 0xFF, 0xFE, '{', '}', 0x7F}
	svc.Seed("b", "blob", raw, "application/octet-stream")

	ctx := context.Background()
	_, err := client.Login(ctx)
	require.NoError(t, err)
	client.SetBucket("b")

	out, err := client.FetchFile(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, raw, out.Bytes())
	assert.Equal(t, "application/octet-stream", out.Header.Get("Content-Type"))
}

func TestEndToEndUploadAndFetch(t *testing.T) {
	client, _ := newMockClient(t)

	local := filepath.Join(t.TempDir(), "local.pdf")
	require.NoError(t, os.WriteFile(local, []byte("%PDF-1.4\nhello"), 0o600))

	ctx := context.Background()
	_, err := client.Login(ctx)
	require.NoError(t, err)
	client.SetBucket("b")

	out, err := client.UploadContent(ctx, "p", []depot.ContentItem{depot.FileItem(local)}, &depot.UploadOptions{
		RequestURL: true,
	})
	require.NoError(t, err)

	body, ok := out.Body.(map[string]any)
	require.True(t, ok, "expected decoded JSON body, got %T", out.Body)
	assert.Contains(t, body["url"], "/public/b/p")

	got, err := client.FetchFile(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4\nhello"), got.Bytes())
}

func TestUploadPreservesItemOrder(t *testing.T) {
	client, svc := newMockClient(t)
	svc.Seed("b", "existing", []byte("[ref]"), "")

	local := filepath.Join(t.TempDir(), "part.txt")
	require.NoError(t, os.WriteFile(local, []byte("[file]"), 0o600))

	ctx := context.Background()
	_, err := client.Login(ctx)
	require.NoError(t, err)
	client.SetBucket("b")

	items := []depot.ContentItem{
		depot.HTMLItem("[html]"),
		depot.FileItem(local),
		depot.PathItem("existing"),
	}
	_, err = client.UploadContent(ctx, "combined", items, &depot.UploadOptions{ContentType: "text/plain"})
	require.NoError(t, err)

	assert.Equal(t, []byte("[html][file][ref]"), svc.Object("b", "combined"))
}

func TestUploadValidatesItems(t *testing.T) {
	client, svc := newMockClient(t)

	ctx := context.Background()
	_, err := client.Login(ctx)
	require.NoError(t, err)
	client.SetBucket("b")
	before := svc.LoginCount()

	_, err = client.UploadContent(ctx, "p", nil, nil)
	require.ErrorContains(t, err, "at least one content item")

	_, err = client.UploadContent(ctx, "p", []depot.ContentItem{{Kind: "blob", Value: "x"}}, nil)
	require.ErrorContains(t, err, "unknown content item kind")

	_, err = client.UploadContent(ctx, "p", []depot.ContentItem{depot.PathItem("  ")}, nil)
	require.ErrorContains(t, err, "has no value")

	assert.Nil(t, svc.Object("b", "/p"))
	assert.Equal(t, before, svc.LoginCount())
}
