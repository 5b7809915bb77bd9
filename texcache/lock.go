package texcache

import (
	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/gpu"
)

// IncrementLock marks the start of a period during which the caller may
// hold references to cached textures. Textures displaced by eviction or
// replacement during this period are deferred rather than released.
func (c *Cache) IncrementLock() {
	c.lockMutex.Lock()
	c.lockCount++
	c.lockMutex.Unlock()
}

// DecrementLock ends a held period. On the transition to zero, per
// §4.4.7, the cache (a) releases every deferred texture and (b) drains
// the streamed delivery queue, applying each arrival to the texture map
// with ignoreIfOccupied=false.
func (c *Cache) DecrementLock() {
	c.lockMutex.Lock()
	c.lockCount--
	cacheerr.Assert(c.lockCount >= 0, "texcache.DecrementLock", "lock count went negative")
	zero := c.lockCount == 0
	var toRelease []gpu.Texture
	if zero {
		toRelease = c.evicted
		c.evicted = nil
	}
	c.lockMutex.Unlock()

	if !zero {
		return
	}

	for _, tex := range toRelease {
		tex.Release()
	}
	c.applyStreamedDeliveries()
}

func (c *Cache) applyStreamedDeliveries() {
	c.streamedTextureQueueMutex.Lock()
	deliveries := c.streamedTextureQueue
	c.streamedTextureQueue = nil
	c.streamedTextureQueueMutex.Unlock()

	if len(deliveries) == 0 {
		return
	}

	var evicted []gpu.Texture
	for _, d := range deliveries {
		c.textures.Replace(d.hash, d.texture, false, &evicted)
	}
	if len(evicted) > 0 {
		c.lockMutex.Lock()
		c.evicted = append(c.evicted, evicted...)
		c.lockMutex.Unlock()
	}
}
