// Package storage talks to the Bunny Storage HTTP API: it maps relative
// paths to region-specific upload URLs and performs authenticated PUTs.
package storage
