package deploy

import (
	"context"

	"go.uber.org/zap"

	"github.com/eugenenazirov/sitepublish/internal/preflight"
	"github.com/eugenenazirov/sitepublish/internal/upload"
)

// BulkUploader uploads a whole distribution directory.
type BulkUploader interface {
	UploadAll(ctx context.Context) (upload.Summary, error)
}

// CachePurger invalidates cached copies of the site.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// CDNPublisher uploads the distribution directory to object storage and then
// purges the caches in front of it.
type CDNPublisher struct {
	distDir  string
	uploader BulkUploader
	purger   CachePurger
	logger   *zap.Logger
}

// NewCDNPublisher constructs a CDNPublisher.
func NewCDNPublisher(distDir string, uploader BulkUploader, purger CachePurger, logger *zap.Logger) *CDNPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CDNPublisher{distDir: distDir, uploader: uploader, purger: purger, logger: logger}
}

// Preflight checks that the distribution directory exists.
func (c *CDNPublisher) Preflight(_ context.Context) error {
	return preflight.Directory("distribution directory", c.distDir)
}

// Publish uploads every file, then purges caches. Caches are left untouched
// when the upload fails.
func (c *CDNPublisher) Publish(ctx context.Context) error {
	summary, err := c.uploader.UploadAll(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("uploaded distribution", zap.Int("files", summary.Files), zap.Int64("bytes", summary.Bytes))
	return c.purger.Purge(ctx)
}
