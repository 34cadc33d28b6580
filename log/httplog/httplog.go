// Package httplog provides a [log.Handler] that delivers each record to a
// remote endpoint with a synchronous HTTP POST.
//
// Delivery is best-effort: there is no retry, batching or queueing. A
// transport error or non-2xx response is returned from Emit wrapped in
// [log.ErrDelivery], which a [log.Logger] reports to its registry's
// diagnostics and never returns to the logging call. Formatting errors, such
// as [log.ErrSerialization], are returned as-is.
//
//	h, err := httplog.New("collector", "https://logs.example.com/ingest",
//		httplog.WithTimeout(2*time.Second),
//		httplog.WithHeader("Authorization", "Bearer "+token),
//		httplog.WithFormatter(log.JSONFormatter{}),
//	)
//	logger.AddHandler(h)
//
// Wrap the handler in a [log.AsyncHandler] to take the round-trip off the
// caller's goroutine.
package httplog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"go.jacobcolvin.com/edgelog/log"
)

const (
	// DefaultTimeout bounds each POST when no timeout is configured.
	DefaultTimeout = 5 * time.Second

	// HeaderInstanceID carries the handler's instance ID on every request.
	HeaderInstanceID = "X-Instance-ID"
)

// Option configures a [Handler].
type Option func(*Handler)

// WithTimeout sets the per-request timeout. Non-positive values disable
// the timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// WithHeader adds a request header. It may be repeated.
func WithHeader(key, value string) Option {
	return func(h *Handler) {
		h.header.Add(key, value)
	}
}

// WithHeaders adds every header in hdr.
func WithHeaders(hdr http.Header) Option {
	return func(h *Handler) {
		for k, vs := range hdr {
			for _, v := range vs {
				h.header.Add(k, v)
			}
		}
	}
}

// WithClient sets the [http.Client] used for delivery. The client's own
// Timeout still applies in addition to [WithTimeout].
func WithClient(c *http.Client) Option {
	return func(h *Handler) {
		if c != nil {
			h.client = c
		}
	}
}

// WithLevel sets the handler's minimum level.
func WithLevel(level log.Level) Option {
	return func(h *Handler) {
		h.baseOpts = append(h.baseOpts, log.WithLevel(level))
	}
}

// WithFormatter sets the handler's formatter. Without it records are sent
// as plain text.
func WithFormatter(f log.Formatter) Option {
	return func(h *Handler) {
		h.baseOpts = append(h.baseOpts, log.WithFormatter(f))
	}
}

// Handler POSTs each formatted record to a fixed URL.
//
// Create instances with [New].
type Handler struct {
	*log.HandlerBase

	client     *http.Client
	header     http.Header
	url        string
	instanceID string
	baseOpts   []log.HandlerOption
	timeout    time.Duration
}

// New creates a [Handler] named name that delivers to rawURL, which must be
// an absolute http or https URL.
func New(name, rawURL string, opts ...Option) (*Handler, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: url: %w", log.ErrInvalidArgument, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q must be absolute http(s)", log.ErrInvalidArgument, rawURL)
	}

	h := &Handler{
		client:     &http.Client{},
		header:     http.Header{},
		url:        u.String(),
		instanceID: uuid.NewString(),
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.HandlerBase, err = log.NewHandlerBase(name, h.baseOpts...)
	if err != nil {
		return nil, err
	}

	h.baseOpts = nil

	return h, nil
}

// URL returns the delivery URL.
func (h *Handler) URL() string {
	return h.url
}

// InstanceID returns the ID sent in the [HeaderInstanceID] header.
func (h *Handler) InstanceID() string {
	return h.instanceID
}

// Emit formats rec and POSTs it, blocking until the response arrives or
// the timeout expires.
func (h *Handler) Emit(rec log.Record) error {
	f := h.Formatter()

	payload, err := f.Format(rec)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if h.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewBufferString(payload))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", log.ErrDelivery, h.Name(), err)
	}

	for k, vs := range h.header {
		req.Header[k] = append([]string(nil), vs...)
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", log.ContentTypeOf(f))
	}

	req.Header.Set(HeaderInstanceID, h.instanceID)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", log.ErrDelivery, h.Name(), err)
	}

	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: POST %s: HTTP %d", log.ErrDelivery, h.Name(), h.url, resp.StatusCode)
	}

	return nil
}

// Close releases idle connections held by the client. A [log.Logger] calls
// it when the handler is removed or replaced.
func (h *Handler) Close() error {
	h.client.CloseIdleConnections()

	return nil
}
