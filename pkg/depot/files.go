package depot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const fileAPIPrefix = "/api/v2/file"

// FetchFile downloads the object stored at path within the selected bucket.
// The payload is returned byte-identical in Outcome.Body; no JSON decoding
// is attempted.
func (c *Client) FetchFile(ctx context.Context, path string) (*Outcome, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("depot: path is required")
	}

	header := http.Header{"Accept": []string{"*/*"}}
	return c.do(ctx, http.MethodGet, c.filePath(path), header, nil, false)
}

// UploadContent submits the ordered content items as one multipart PUT to
// the object at path within the selected bucket. A nil opts uses the
// defaults: no declared MIME type, no public URL, best-effort JSON decoding
// of the response.
func (c *Client) UploadContent(ctx context.Context, path string, items []ContentItem, opts *UploadOptions) (*Outcome, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("depot: path is required")
	}
	if len(items) == 0 {
		return nil, errors.New("depot: at least one content item is required")
	}
	for _, item := range items {
		if err := item.validate(); err != nil {
			return nil, err
		}
	}
	if opts == nil {
		opts = &UploadOptions{}
	}

	body, contentType, err := buildUploadBody(items, opts)
	if err != nil {
		return nil, err
	}

	header := http.Header{"Content-Type": []string{contentType}}
	return c.do(ctx, http.MethodPut, c.filePath(path), header, body, !opts.RawResponse)
}

// buildUploadBody renders the multipart submission into memory so the
// request can be replayed after a re-login.
func buildUploadBody(items []ContentItem, opts *UploadOptions) ([]byte, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if err := writeItems(w, items); err != nil {
		return nil, "", err
	}

	declared := opts.ContentType
	if declared == "" && opts.DetectContentType {
		declared = detectContentType(items)
	}
	if declared != "" {
		if err := w.WriteField("mimeType", declared); err != nil {
			return nil, "", fmt.Errorf("depot: write mimeType field: %w", err)
		}
	}
	if opts.RequestURL {
		if err := w.WriteField("requestUrl", "true"); err != nil {
			return nil, "", fmt.Errorf("depot: write requestUrl field: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("depot: finalize multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// filePath builds the bucket- and path-scoped resource path, escaping each
// segment while preserving slashes inside the object path.
func (c *Client) filePath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	escaped := make([]string, 0, len(segments))
	for _, seg := range segments {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return fileAPIPrefix + "/" + url.PathEscape(c.Bucket()) + "/" + strings.Join(escaped, "/")
}
