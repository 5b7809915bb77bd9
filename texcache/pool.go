package texcache

import "github.com/kirahall/n64texcache/gpu"

// ensureResourcePool grows the shared staging-buffer and descriptor-set
// pool to at least n entries. The pool is only ever touched from the
// single upload goroutine, so nothing here needs a lock for its own
// sake; it shares uploadResourcePoolMutex with processBatch's later
// replacement-map reads and LoadReplacementDirectory purely so the two
// use the same mutex name for the same overall "don't reload mid-batch"
// guarantee, not because growing the pool itself races with a reload.
func (c *Cache) ensureResourcePool(n int) {
	c.uploadResourcePoolMutex.Lock()
	defer c.uploadResourcePoolMutex.Unlock()

	for len(c.stagingBuffers) < n {
		buf, err := c.device.CreateBuffer(gpu.BufferDesc{Size: 64 * 1024, Label: "texcache-staging"})
		if err != nil {
			c.logf("grow staging buffer pool: %v", err)
			return
		}
		c.stagingBuffers = append(c.stagingBuffers, buf)
	}
	for len(c.descriptorSets) < n {
		set, err := c.pool.CreateDescriptorSet()
		if err != nil {
			c.logf("grow descriptor set pool: %v", err)
			return
		}
		c.descriptorSets = append(c.descriptorSets, set)
	}
}
