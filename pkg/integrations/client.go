package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/sqltree/pkg/cache"
	"github.com/matzehuels/sqltree/pkg/httputil"
	"github.com/matzehuels/sqltree/pkg/observability"
)

// Client is the HTTP plumbing shared by service clients: JSON requests,
// retries on transient failures, response caching and HTTP hooks.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	ttl     time.Duration
	headers map[string]string
	retry   httputil.Policy
}

// NewClient creates a Client caching results in c for ttl. A nil cache
// disables caching. headers are sent with every request.
func NewClient(c cache.Cache, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   c,
		ttl:     ttl,
		headers: headers,
		retry:   httputil.DefaultPolicy,
	}
}

// SetHTTPClient replaces the underlying http.Client.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// SetRetryPolicy replaces the retry policy.
func (c *Client) SetRetryPolicy(p httputil.Policy) { c.retry = p }

// Cached loads v from the cache under key, or calls fetch to fill v and
// stores the result. refresh skips the lookup. keyType labels cache hooks.
// fetch is not retried here; PostJSON retries on its own.
func (c *Client) Cached(ctx context.Context, key, keyType string, refresh bool, v any, fetch func() error) error {
	if !refresh {
		data, ok, err := c.cache.Get(ctx, key)
		if err == nil && ok && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, keyType)
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, keyType)
	}
	if err := fetch(); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, keyType, len(data))
		}
	}
	return nil
}

// PostJSON posts body as JSON to rawURL. Transport failures and 5xx
// responses are retried; when retries run out on a 5xx the last response
// is returned without error so its body can still be read.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var last *Response
	err = c.retry.Do(ctx, func() error {
		resp, err := c.do(ctx, http.MethodPost, rawURL, payload)
		if err != nil {
			return err
		}
		last = resp
		if resp.Status >= 500 {
			return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, resp.Status)}
		}
		return nil
	})
	switch {
	case err == nil:
		return last, nil
	case ctx.Err() != nil:
		return nil, err
	case last != nil && last.Status >= 500:
		return last, nil
	default:
		return nil, err
	}
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	host, path := splitURL(rawURL)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: read body: %v", ErrNetwork, err)}
	}
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

func splitURL(rawURL string) (host, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL
	}
	return u.Host, u.Path
}
