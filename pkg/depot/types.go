package depot

import "net/http"

// Outcome is the uniform result of a successful operation: the response
// payload plus response metadata. Body is a decoded JSON value (map, slice,
// string, number, bool) when JSON decoding was requested and succeeded, the
// raw text when decoding fell back, or []byte for binary transfers.
type Outcome struct {
	Body   any
	Header http.Header
}

// Bytes returns the payload as raw bytes when the operation was performed
// without JSON decoding. It returns nil for decoded bodies.
func (o *Outcome) Bytes() []byte {
	if o == nil {
		return nil
	}
	data, _ := o.Body.([]byte)
	return data
}

// UploadOptions control how content is submitted.
type UploadOptions struct {
	// ContentType declares the MIME type of the stored result. Empty means
	// the field is omitted from the submission.
	ContentType string

	// DetectContentType sniffs a MIME type from the first file item when
	// ContentType is empty.
	DetectContentType bool

	// RequestURL asks the service to return a public URL for the stored
	// object.
	RequestURL bool

	// RawResponse disables best-effort JSON decoding of the response body.
	RawResponse bool
}
