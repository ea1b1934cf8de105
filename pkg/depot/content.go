package depot

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ItemKind names the payload semantics of a ContentItem. Each kind maps to
// the multipart form field the service expects.
type ItemKind string

const (
	// ItemFile streams a local file into the submission.
	ItemFile ItemKind = "file"
	// ItemPath references content the server can already reach.
	ItemPath ItemKind = "path"
	// ItemHTML submits inline HTML markup.
	ItemHTML ItemKind = "html"
)

// ContentItem is one unit of upload payload. Exactly one payload semantics
// per item; a request may batch multiple items, and the caller-supplied
// ordering is preserved in the multipart body.
type ContentItem struct {
	Kind  ItemKind
	Value string
}

// FileItem references a local file to stream.
func FileItem(localPath string) ContentItem {
	return ContentItem{Kind: ItemFile, Value: localPath}
}

// PathItem references existing server-side or external content.
func PathItem(ref string) ContentItem {
	return ContentItem{Kind: ItemPath, Value: ref}
}

// HTMLItem carries inline HTML markup.
func HTMLItem(markup string) ContentItem {
	return ContentItem{Kind: ItemHTML, Value: markup}
}

func (i ContentItem) validate() error {
	switch i.Kind {
	case ItemFile, ItemPath, ItemHTML:
	default:
		return fmt.Errorf("depot: unknown content item kind %q", i.Kind)
	}
	if strings.TrimSpace(i.Value) == "" {
		return fmt.Errorf("depot: %s content item has no value", i.Kind)
	}
	return nil
}

// writeItems appends every content item to the multipart writer in order.
func writeItems(w *multipart.Writer, items []ContentItem) error {
	for _, item := range items {
		switch item.Kind {
		case ItemFile:
			if err := writeFileItem(w, item.Value); err != nil {
				return err
			}
		case ItemPath:
			if err := w.WriteField(string(ItemPath), item.Value); err != nil {
				return fmt.Errorf("depot: write path field: %w", err)
			}
		case ItemHTML:
			if err := w.WriteField(string(ItemHTML), item.Value); err != nil {
				return fmt.Errorf("depot: write html field: %w", err)
			}
		}
	}
	return nil
}

func writeFileItem(w *multipart.Writer, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("depot: open upload file: %w", err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(string(ItemFile), filepath.Base(localPath))
	if err != nil {
		return fmt.Errorf("depot: create file field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("depot: stream upload file: %w", err)
	}
	return nil
}

// detectContentType sniffs the MIME type of the first file item. Returns ""
// when no file item is present or detection fails.
func detectContentType(items []ContentItem) string {
	for _, item := range items {
		if item.Kind != ItemFile {
			continue
		}
		mt, err := mimetype.DetectFile(item.Value)
		if err != nil {
			return ""
		}
		return mt.String()
	}
	return ""
}
