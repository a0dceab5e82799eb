// Package lichess implements platform.Capability over the lichess.org HTTP
// API.
//
// Live game streams are newline delimited JSON responses that stay open
// until closed. Every request, streaming or not, first waits on a shared
// rate limiter so a busy monitor does not get the client throttled.
package lichess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/roach88/tba/internal/platform"
)

const (
	// DefaultBaseURL is the public lichess instance.
	DefaultBaseURL = "https://lichess.org"

	authenticatedStreamCapacity = 1000
	anonymousStreamCapacity     = 500
	statusBatchSize             = 100
)

// Config holds the connection settings of a Client.
type Config struct {
	BaseURL string
	// Token is an optional personal API token. Authenticated clients may
	// follow more games per stream.
	Token string
}

// Client is a platform.Capability backed by the lichess HTTP API.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLimiter replaces the default limiter of 4 requests per second.
func WithLimiter(l *rate.Limiter) Option {
	return func(cl *Client) {
		cl.limiter = l
	}
}

// New creates a Client.
func New(cfg Config, opts ...Option) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := &Client{
		baseURL: base,
		token:   cfg.Token,
		http:    http.DefaultClient,
		limiter: rate.NewLimiter(rate.Limit(4), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxGamesPerStream is 1000 with a token and 500 without.
func (c *Client) MaxGamesPerStream() int {
	if c.token != "" {
		return authenticatedStreamCapacity
	}
	return anonymousStreamCapacity
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("lichess: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("lichess: unexpected status %d: %s", e.Code, e.Body)
}

// do sends a request after waiting for the limiter. The caller owns the
// response body when err is nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limit: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "text/plain")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s %s: %w: %w", method, path, platform.ErrNotFound, serr)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, serr)
	}
	return resp, nil
}

// getJSON decodes a single JSON document into v.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, query, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// readNDJSON decodes every line of a finite newline delimited response.
func readNDJSON[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)
	var out []T
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

var _ platform.Capability = (*Client)(nil)
