package render

import (
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/lixenwraith/sixty-below/status"
)

// ChunkCache holds built chunk images keyed by chunk index, one cost unit each
// Admission and eviction are left to ristretto; a miss means draw from the store
type ChunkCache struct {
	c *ristretto.Cache[int, *ChunkImage]

	statEvicted *atomic.Int64
}

// NewChunkCache creates a cache bounded to maxImages images
func NewChunkCache(maxImages int64, reg *status.Registry) (*ChunkCache, error) {
	if maxImages <= 0 {
		return nil, fmt.Errorf("chunk cache: capacity %d must be positive", maxImages)
	}
	cc := &ChunkCache{statEvicted: reg.Ints.Get("render.cache_evicted")}

	c, err := ristretto.NewCache(&ristretto.Config[int, *ChunkImage]{
		NumCounters:        maxImages * 10,
		MaxCost:            maxImages,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(*ristretto.Item[*ChunkImage]) {
			cc.statEvicted.Add(1)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chunk cache: %w", err)
	}
	cc.c = c
	return cc, nil
}

// Get returns the cached image of a chunk
func (cc *ChunkCache) Get(index int) (*ChunkImage, bool) {
	return cc.c.Get(index)
}

// Put stores an image and waits until it is visible to Get
// Returns false when ristretto dropped the write
func (cc *ChunkCache) Put(img *ChunkImage) bool {
	ok := cc.c.Set(img.Index, img, 1)
	cc.c.Wait()
	return ok
}

// Invalidate drops the image of a chunk
func (cc *ChunkCache) Invalidate(index int) {
	cc.c.Del(index)
}

// Clear drops every image
func (cc *ChunkCache) Clear() {
	cc.c.Clear()
}

// Close releases the cache goroutines
func (cc *ChunkCache) Close() {
	cc.c.Close()
}
