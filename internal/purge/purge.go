// Package purge invalidates CDN edge caches after an upload.
package purge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBunnyBaseURL      = "https://api.bunny.net"
	defaultCloudflareBaseURL = "https://api.cloudflare.com"
	defaultTimeout           = 30 * time.Second
	maxErrorBody             = 4 << 10
)

// Purger invalidates one cache.
type Purger interface {
	Name() string
	Purge(ctx context.Context) error
}

// Option configures a purger.
type Option func(*client)

// WithBaseURL overrides the vendor API base URL (primarily for tests).
func WithBaseURL(base string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each purge request.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.timeout = d
	}
}

type client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func newClient(defaultBase string, opts []Option) client {
	c := client{
		baseURL:    defaultBase,
		httpClient: http.DefaultClient,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

func (c client) post(ctx context.Context, name, endpoint string, body []byte, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return &Error{Name: name, URL: endpoint, Err: fmt.Errorf("build request: %w", err)}
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Name: name, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Name: name, URL: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}
	return nil
}

// Bunny purges a Bunny pull zone.
type Bunny struct {
	client
	pullZoneID string
	apiKey     string
}

// NewBunny returns a purger for pullZoneID.
func NewBunny(pullZoneID, apiKey string, opts ...Option) *Bunny {
	return &Bunny{
		client:     newClient(defaultBunnyBaseURL, opts),
		pullZoneID: pullZoneID,
		apiKey:     apiKey,
	}
}

func (b *Bunny) Name() string { return "bunny" }

func (b *Bunny) Purge(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/pullzone/%s/purgeCache", b.baseURL, url.PathEscape(b.pullZoneID))
	return b.post(ctx, b.Name(), endpoint, nil, map[string]string{
		"AccessKey": b.apiKey,
	})
}

// Cloudflare purges everything cached for a Cloudflare zone.
type Cloudflare struct {
	client
	zoneID string
	apiKey string
	email  string
}

// NewCloudflare returns a purger for zoneID. With an email the key is sent
// as a global API key (X-Auth-Email/X-Auth-Key); without one it is sent as an
// API token in the Authorization header.
func NewCloudflare(zoneID, apiKey, email string, opts ...Option) *Cloudflare {
	return &Cloudflare{
		client: newClient(defaultCloudflareBaseURL, opts),
		zoneID: zoneID,
		apiKey: apiKey,
		email:  email,
	}
}

func (c *Cloudflare) Name() string { return "cloudflare" }

func (c *Cloudflare) Purge(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/client/v4/zones/%s/purge_cache", c.baseURL, url.PathEscape(c.zoneID))
	headers := map[string]string{"Content-Type": "application/json"}
	if c.email != "" {
		headers["X-Auth-Email"] = c.email
		headers["X-Auth-Key"] = c.apiKey
	} else {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	return c.post(ctx, c.Name(), endpoint, []byte(`{"purge_everything":true}`), headers)
}

// Chain runs purgers in order and stops at the first failure.
type Chain struct {
	purgers []Purger
	logger  *zap.Logger
}

// NewChain builds a Chain.
func NewChain(logger *zap.Logger, purgers ...Purger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{purgers: purgers, logger: logger}
}

func (c *Chain) Purge(ctx context.Context) error {
	for _, p := range c.purgers {
		start := time.Now()
		if err := p.Purge(ctx); err != nil {
			c.logger.Error("cache purge failed", zap.String("cache", p.Name()), zap.Error(err))
			return err
		}
		c.logger.Info("cache purged", zap.String("cache", p.Name()), zap.Duration("duration", time.Since(start)))
	}
	return nil
}
