package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/everstacklabs/brandscope/internal/cache"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, body)
}

// Client is a JSON HTTP client with an optional replay cache and a global
// request-rate ceiling.
type Client struct {
	http    *http.Client
	cache   *cache.FileCache
	limiter *rate.Limiter
}

// Option configures the Client.
type Option func(*Client)

// WithCache enables the replay cache.
func WithCache(c *cache.FileCache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithRateLimit caps requests per second across all providers.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) {
		cl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// New creates a new HTTP client. Per-call deadlines come from the request
// context, so the default http.Client carries no timeout of its own.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient returns the underlying http.Client for SDKs that manage their own
// requests.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Response wraps an HTTP response body and metadata.
type Response struct {
	Body       []byte
	StatusCode int
	FromCache  bool
}

// PostJSON marshals body, POSTs it to url and returns the response. Non-2xx
// responses are returned as *StatusError.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "httpclient: marshal request")
	}

	var key string
	if c.cache != nil {
		key = cache.Key([]byte(url), payload)
		if entry, ok := c.cache.Get(key); ok {
			return &Response{Body: entry.Body, StatusCode: entry.StatusCode, FromCache: true}, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "httpclient: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "httpclient: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "httpclient: POST %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "httpclient: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if c.cache != nil {
		if err := c.cache.Set(key, &cache.Entry{Body: respBody, StatusCode: resp.StatusCode}); err != nil {
			zap.L().Warn("httpclient: cache write failed", zap.Error(err))
		}
	}

	return &Response{Body: respBody, StatusCode: resp.StatusCode}, nil
}
