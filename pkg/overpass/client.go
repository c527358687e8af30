package overpass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"

	"github.com/kass/waykit/pkg/logger"
)

// ErrUnexpectedStatus is returned when the endpoint answers with a non-2xx
// status code.
var ErrUnexpectedStatus = errors.New("unexpected status")

// maxBodyBytes caps the size of a response body.
const maxBodyBytes = 64 << 20

// Cache stores raw response bodies by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, body []byte) error
}

// Options configures a Client. Zero values fall back to the defaults of
// DefaultOptions.
type Options struct {
	URL               string
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RetryBase         time.Duration
	RequestsPerMinute float64 // <= 0 disables throttling
	Cache             Cache
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// DefaultOptions matches the usage policy of the public endpoint.
func DefaultOptions() Options {
	return Options{
		URL:               DefaultURL,
		UserAgent:         "waykit/1.0",
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RetryBase:         time.Second,
		RequestsPerMinute: 10,
	}
}

// Client talks to an Overpass endpoint. It is safe for concurrent use.
type Client struct {
	url        string
	userAgent  string
	maxRetries int
	retryBase  time.Duration
	http       *http.Client
	limiter    *rate.Limiter
	cache      Cache
	log        *slog.Logger
}

// NewClient returns a client for opts.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.URL == "" {
		opts.URL = def.URL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = def.RetryBase
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Limit(opts.RequestsPerMinute / 60.0)
	}

	return &Client{
		url:        opts.URL,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryBase,
		http:       hc,
		limiter:    rate.NewLimiter(limit, 1),
		cache:      opts.Cache,
		log:        logger.OrNop(opts.Logger),
	}
}

// Fetch returns the peak and hut elements inside b.
func (c *Client) Fetch(ctx context.Context, b orb.Bound) ([]Element, error) {
	return c.FetchQuery(ctx, BuildQuery(b))
}

// FetchQuery runs an arbitrary Overpass QL query. Failed attempts are retried
// with exponential backoff; the last error is returned once every attempt
// has failed.
func (c *Client) FetchQuery(ctx context.Context, query string) ([]Element, error) {
	key := cacheKey(query)
	if c.cache != nil {
		body, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			c.log.Warn("overpass cache read failed", "error", err)
		case ok:
			if elements, err := decode(body); err == nil {
				c.log.Debug("overpass cache hit", "key", key[:12], "elements", len(elements))
				return elements, nil
			}
			c.log.Warn("discarding unreadable cache entry", "key", key[:12])
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retryBase << (attempt - 1)
			c.log.Warn("overpass request failed, retrying",
				"attempt", attempt,
				"max_attempts", c.maxRetries,
				"wait", wait,
				"error", lastErr,
			)
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		body, err := c.post(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if !retryable(err) {
				break
			}
			continue
		}

		elements, err := decode(body)
		if err != nil {
			lastErr = err
			continue
		}
		if c.cache != nil {
			if err := c.cache.Put(ctx, key, body); err != nil {
				c.log.Warn("overpass cache write failed", "error", err)
			}
		}
		c.log.Debug("overpass request done", "attempt", attempt+1, "elements", len(elements))
		return elements, nil
	}
	return nil, fmt.Errorf("overpass request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) post(ctx context.Context, query string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode}
	}
	return body, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %d", ErrUnexpectedStatus, e.code)
}

func (e *statusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// retryable reports whether another attempt may succeed. Client errors other
// than 408 and 429 are final.
func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	switch {
	case se.code == http.StatusRequestTimeout, se.code == http.StatusTooManyRequests:
		return true
	case se.code >= 400 && se.code < 500:
		return false
	}
	return true
}

func decode(body []byte) ([]Element, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.Elements, nil
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
