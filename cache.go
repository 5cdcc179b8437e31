package photobooth

import (
	"sync"
	"time"

	"github.com/eringen/photobooth/compose"
)

// GalleryCache is an in-memory cache of the content directory listing with
// a TTL. Writes and deletes made by this process invalidate it directly.
type GalleryCache struct {
	mu      sync.RWMutex
	photos  []compose.Photo
	loaded  bool
	fetched time.Time
	ttl     time.Duration
	dir     string
}

// NewGalleryCache creates a GalleryCache over dir.
func NewGalleryCache(dir string, ttl time.Duration) *GalleryCache {
	return &GalleryCache{dir: dir, ttl: ttl}
}

func (c *GalleryCache) valid() bool {
	return c.loaded && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read lists the directory again.
func (c *GalleryCache) Invalidate() {
	c.mu.Lock()
	c.photos = nil
	c.loaded = false
	c.mu.Unlock()
}

// List returns the stored images, newest first.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *GalleryCache) List() ([]compose.Photo, error) {
	c.mu.RLock()
	if c.valid() {
		photos := c.photos
		c.mu.RUnlock()
		return photos, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.photos, nil
	}
	photos, err := compose.List(c.dir)
	if err != nil {
		return nil, err
	}
	c.photos = photos
	c.loaded = true
	c.fetched = time.Now()
	return photos, nil
}

// TotalSize returns the combined size in bytes of the listed images.
func TotalSize(photos []compose.Photo) int64 {
	var n int64
	for _, p := range photos {
		n += p.Size
	}
	return n
}
