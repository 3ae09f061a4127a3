package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/pkg/version"
)

// DefaultTimeout bounds a single request when the config leaves it unset.
const DefaultTimeout = 10 * time.Second

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	// Client overrides the pooled default client (tests).
	Client *http.Client
}

// HTTPSource GETs a JSON document from a URL.
type HTTPSource struct {
	client    *http.Client
	transport *http.Transport
	url       string
	timeout   time.Duration
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource creates an HTTP source with a small pooled transport.
// The per-request deadline comes from the context, not http.Client.Timeout.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	s := &HTTPSource{url: cfg.URL, timeout: cfg.Timeout, client: cfg.Client}
	if s.client == nil {
		s.transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        2,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		}
		s.client = &http.Client{Transport: s.transport}
	}
	return s
}

// Location implements Source.
func (s *HTTPSource) Location() string {
	return s.url
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) (Document, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSourceInvalid, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "userindex/"+version.Version)

	resp, err := s.client.Do(req)
	if err != nil {
		// The caller's own cancellation is not a source failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyTransportError(s.url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, classifyStatus(s.url, resp.StatusCode, string(body))
	}

	body := &bodyReader{r: resp.Body}
	doc, err := decode(body, s.url)
	if err == nil {
		return doc, nil
	}
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case reqCtx.Err() != nil:
		return nil, timeoutError(s.url, reqCtx.Err())
	case body.err != nil:
		return nil, classifyReadError(s.url, body.err)
	}
	return nil, err
}

// bodyReader records the first error other than io.EOF from the response
// body. A dropped connection mid-body is then told apart from a document
// that is complete but not valid JSON.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && b.err == nil {
		b.err = err
	}
	return n, err
}

// Close releases idle connections.
func (s *HTTPSource) Close() {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
}

func classifyTransportError(location string, err error) *apperrors.AppError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return timeoutError(location, err)
	}
	return apperrors.SourceUnavailable(fmt.Sprintf("failed to reach %s", location), err)
}

func classifyReadError(location string, err error) *apperrors.AppError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return timeoutError(location, err)
	}
	return apperrors.SourceUnavailable(fmt.Sprintf("failed to read response from %s", location), err)
}

func timeoutError(location string, err error) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeSourceTimeout,
		fmt.Sprintf("request to %s timed out", location), err)
}

// classifyStatus maps 5xx and 429 to retryable unavailability and every
// other non-2xx status to an invalid source.
func classifyStatus(location string, status int, body string) *apperrors.AppError {
	msg := fmt.Sprintf("%s returned status %d", location, status)
	if status >= 500 || status == http.StatusTooManyRequests {
		return apperrors.SourceUnavailable(msg, nil).
			WithDetail("status", fmt.Sprint(status))
	}
	return apperrors.New(apperrors.ErrCodeSourceInvalid, msg, nil).
		WithDetail("status", fmt.Sprint(status)).
		WithDetail("body", body)
}
