// Package cache stores rendered image bytes so that unchanged views are not
// drawn twice.
//
// Keys are derived from the scene content and the render options by a
// [Keyer]; backends implement [Cache]:
//
//   - [FileCache] keeps entries under the user cache directory (CLI default)
//   - [RedisCache] shares entries between report servers
//   - [NullCache] disables caching (--no-cache)
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the cached value. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// TTLArtifact is how long rendered images are kept.
const TTLArtifact = 30 * 24 * time.Hour

// Keyer derives cache keys.
type Keyer interface {
	// ArtifactKey identifies a rendered image of a scene.
	ArtifactKey(sceneHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts are the render options that change the output bytes.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// Palette holds color overrides; keys are marshaled in sorted order.
	Palette map[string]string `json:"palette,omitempty"`
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) ArtifactKey(sceneHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", sceneHash, opts)
}
