package texcache

// queueStream appends a StreamDescription and wakes the stream goroutine
// pool. Called only from the upload goroutine.
func (c *Cache) queueStream(desc StreamDescription) {
	c.streamDescQueueMutex.Lock()
	c.streamDescQueue = append(c.streamDescQueue, desc)
	c.streamCond.Broadcast()
	c.streamDescQueueMutex.Unlock()
}

// WaitForAllStreamThreads blocks until the stream queue is empty and
// every stream goroutine has gone idle. The active-count counter is
// decremented as each goroutine starts waiting and incremented as it
// wakes to do work, so "every goroutine idle" is exactly count == 0.
func (c *Cache) WaitForAllStreamThreads() {
	c.streamDescQueueMutex.Lock()
	defer c.streamDescQueueMutex.Unlock()
	for len(c.streamDescQueue) > 0 || c.streamDescQueueActiveCount > 0 {
		if c.ctx.Err() != nil {
			return
		}
		c.streamCond.Wait()
	}
}

// runStreamLoop is one stream goroutine: pop a description, double-check
// the replacement map (another goroutine may have already loaded it),
// load and decode off disk, publish to the delivery queue. A Broadcast
// wakes every idle goroutine at once, so a burst of queued descriptions
// fans out across the whole pool rather than draining through whichever
// single goroutine happened to catch the signal. Each goroutine maintains
// its own active-count contribution so WaitForAllStreamThreads can
// observe true idleness, per §4.4.3.
func (c *Cache) runStreamLoop(id int) {
	defer c.wg.Done()
	c.streamDescQueueMutex.Lock()
	for {
		c.streamDescQueueActiveCount--
		c.streamCond.Broadcast() // may be the transition WaitForAllStreamThreads is waiting on
		for len(c.streamDescQueue) == 0 && c.ctx.Err() == nil {
			c.streamCond.Wait()
		}
		if c.ctx.Err() != nil {
			c.streamDescQueueActiveCount++
			c.streamDescQueueMutex.Unlock()
			return
		}
		c.streamDescQueueActiveCount++

		for len(c.streamDescQueue) > 0 {
			desc := c.streamDescQueue[0]
			c.streamDescQueue = c.streamDescQueue[1:]
			c.streamDescQueueMutex.Unlock()

			c.runOneStream(desc)

			c.streamDescQueueMutex.Lock()
		}
	}
}

func (c *Cache) runOneStream(desc StreamDescription) {
	if _, ok := c.replacements.GetFromRelativePath(desc.RelativePath); ok {
		return
	}

	tex, err := c.loadAndDecodeAsset(desc.RelativePath, desc.MinMipW, desc.MinMipH)
	if err != nil {
		c.logf("stream load %s: %v", desc.RelativePath, err)
		return
	}
	if tex == nil {
		return
	}

	if existing, ok := c.replacements.GetFromRelativePath(desc.RelativePath); ok {
		tex.Release()
		tex = existing
	} else {
		c.replacements.AddLoadedTexture(tex, desc.RelativePath)
	}

	c.streamedTextureQueueMutex.Lock()
	c.streamedTextureQueue = append(c.streamedTextureQueue, streamDelivery{hash: desc.Hash, texture: tex})
	c.streamedTextureQueueMutex.Unlock()
}
