// Package httpclient is the single place the pipeline talks HTTP. It pins the
// identity headers every upstream request carries and leaves retry policy to
// the callers, since the catalog and the channel pages retry differently.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultTimeout = 20 * time.Second

	// maxBodySize caps how much of a response is read into memory
	maxBodySize = 8 << 20
)

// Getter performs a GET and returns the status and the full body.
// Implementations return a *TransportError when no response was received.
type Getter interface {
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// Response is a fully read HTTP response
type Response struct {
	Status int
	Body   []byte
}

// OK reports whether the response carries a 200 status
func (r *Response) OK() bool {
	return r.Status == http.StatusOK
}

// Identity is the fixed set of headers sent with every request
type Identity struct {
	UserAgent string
	Referer   string
	Origin    string
}

func (i Identity) headers() map[string]string {
	h := make(map[string]string, 3)
	if i.UserAgent != "" {
		h["User-Agent"] = i.UserAgent
	}
	if i.Referer != "" {
		h["Referer"] = i.Referer
	}
	if i.Origin != "" {
		h["Origin"] = i.Origin
	}
	return h
}

// TransportError is returned when the request could not complete:
// connection failures, timeouts, or a body that could not be read.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("get %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client implements Getter on top of net/http
type Client struct {
	http     *http.Client
	identity Identity
}

// New returns a Client with its own http.Client using timeout.
// A zero timeout falls back to DefaultTimeout.
func New(identity Identity, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		identity: identity,
	}
}

// NewWithHTTPClient wraps an existing http.Client, e.g. one pointed at a test server
func NewWithHTTPClient(hc *http.Client, identity Identity) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{http: hc, identity: identity}
}

// Identity returns the headers this client sends on every request
func (c *Client) Identity() Identity {
	return c.identity
}

// Get fetches url with the identity headers merged with headers (per-call values win).
// Non-2xx statuses are not errors here.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	for k, v := range MergeHeaders(c.identity.headers(), headers) {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// MergeHeaders returns base overlaid with overrides. Neither input is modified.
func MergeHeaders(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range overrides {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}
