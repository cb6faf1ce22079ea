package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTimeout  = 2 * time.Minute
	contentType     = "application/octet-stream"
	accessKeyHeader = "AccessKey"
	maxErrorBody    = 4 << 10
)

// Uploader stores a single object.
type Uploader interface {
	Put(ctx context.Context, target Target, body io.Reader, size int64, opts ...PutOption) error
}

// Client uploads objects to the storage HTTP API.
type Client struct {
	httpClient *http.Client
	token      string
	timeout    time.Duration
	limiter    rateLimiter
	logger     *zap.Logger
}

// ClientOption configures Client behaviour.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client (primarily for tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every upload request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit paces requests to rps with the given burst. Zero disables it.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = newTokenBucketLimiter(rps, burst)
	}
}

// WithLogger sets the logger used for per-object debug output.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Client authenticating with token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		token:      token,
		timeout:    defaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// PutOption configures a single upload.
type PutOption func(*putConfig)

type putConfig struct {
	trace *zap.Logger
}

// WithTrace logs every stage of the request and the full response through
// logger. Used for the diagnostic retry of a failed upload.
func WithTrace(logger *zap.Logger) PutOption {
	return func(cfg *putConfig) {
		cfg.trace = logger
	}
}

// Put uploads body to target. Any status outside 2xx is an *UploadError.
func (c *Client) Put(ctx context.Context, target Target, body io.Reader, size int64, opts ...PutOption) error {
	var cfg putConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &UploadError{URL: target.URL, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	if cfg.trace != nil {
		ctx = withClientTrace(ctx, cfg.trace)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, body)
	if err != nil {
		return &UploadError{URL: target.URL, Err: fmt.Errorf("build request: %w", err)}
	}
	req.ContentLength = size
	req.Header.Set(accessKeyHeader, c.token)
	req.Header.Set("Content-Type", contentType)

	if cfg.trace != nil {
		logRequest(cfg.trace, req)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UploadError{URL: target.URL, Err: err}
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if cfg.trace != nil {
		logResponse(cfg.trace, resp, excerpt)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UploadError{URL: target.URL, StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	c.logger.Debug("object stored",
		zap.String("target", target.URL),
		zap.Int64("bytes", size),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
