// Package source fetches raw user documents from the configured provider.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
)

// MaxDocumentBytes bounds a single fetched document.
const MaxDocumentBytes = 64 << 20

// Document is a decoded source document. Numbers are json.Number so that
// integral ids survive decoding unchanged.
type Document map[string]any

// Source supplies one raw document per call. Implementations return
// AppErrors: retryable codes for transient failures, ErrCodeSourceInvalid
// for responses that will not improve on retry.
type Source interface {
	Fetch(ctx context.Context) (Document, error)
	// Location describes where documents come from, for logs and status.
	Location() string
}

// Options configures New.
type Options struct {
	URL     string
	Timeout time.Duration
}

// New returns the Source for opts.URL: HTTPSource for http(s), FileSource
// for file:// URLs.
func New(opts Options) (Source, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, apperrors.ConfigError(fmt.Sprintf("invalid source url %q", opts.URL), err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPSource(HTTPConfig{URL: opts.URL, Timeout: opts.Timeout}), nil
	case "file":
		return NewFileSource(FilePath(u)), nil
	default:
		return nil, apperrors.ConfigError(
			fmt.Sprintf("unsupported source scheme %q (valid options: http, https, file)", u.Scheme), nil)
	}
}

// FilePath returns the local path of a file:// URL.
func FilePath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	if u.Host != "" && u.Host != "localhost" {
		return u.Host + u.Path
	}
	return u.Path
}

// decode reads a JSON object with json.Number numbers.
func decode(r io.Reader, location string) (Document, error) {
	dec := json.NewDecoder(io.LimitReader(r, MaxDocumentBytes))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSourceInvalid,
			fmt.Sprintf("failed to decode document from %s", location), err)
	}
	if doc == nil {
		return nil, apperrors.New(apperrors.ErrCodeSourceInvalid,
			fmt.Sprintf("document from %s is null", location), nil)
	}
	return doc, nil
}
