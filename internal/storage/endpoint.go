package storage

import (
	"net/url"
	"strings"
)

const defaultHost = "storage.bunnycdn.com"

// Host returns the storage API host for region. The primary region ("de",
// "primary" or empty) uses the bare host; every other region is prefixed.
func Host(region string) string {
	region = strings.ToLower(strings.TrimSpace(region))
	switch region {
	case "", "de", "primary":
		return defaultHost
	default:
		return region + "." + defaultHost
	}
}

// Target is the destination of a single object upload.
type Target struct {
	URL          string
	RelativePath string
}

// Endpoint maps relative paths in a bucket to upload URLs.
type Endpoint struct {
	Region string
	Bucket string
	// BaseURL replaces the scheme and host derived from Region when set.
	BaseURL string
}

// NewEndpoint returns the endpoint for bucket in region.
func NewEndpoint(region, bucket string) Endpoint {
	return Endpoint{Region: region, Bucket: bucket}
}

// Target builds the upload target for a slash-separated relative path.
func (e Endpoint) Target(relativePath string) Target {
	base := e.BaseURL
	if base == "" {
		base = "https://" + Host(e.Region)
	}
	base = strings.TrimRight(base, "/")

	relativePath = strings.TrimLeft(relativePath, "/")
	return Target{
		URL:          base + "/" + escapePath(strings.Trim(e.Bucket, "/")) + "/" + escapePath(relativePath),
		RelativePath: relativePath,
	}
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
