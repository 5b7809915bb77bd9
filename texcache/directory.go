package texcache

import (
	"os"
	"path/filepath"

	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/replacement"
)

// LoadReplacementDirectory quiesces stream work, clears the replacement
// map, loads dir's database and low-mip cache, resolves paths, and
// re-queues every currently cached content hash as a replacement check
// so assets newly discovered in dir apply to already-resident textures,
// per §4.4.6.
//
// The clear/reload/resolve sequence runs under uploadResourcePoolMutex,
// the same mutex processBatch holds while it reads the replacement map's
// db and resolved tables unlocked: this keeps a reload from swapping
// those tables out from under an in-flight upload batch. A reload that
// lands mid-batch simply waits for that batch to finish first.
func (c *Cache) LoadReplacementDirectory(dir string) error {
	c.streamDescQueueMutex.Lock()
	c.streamDescQueue = nil
	c.streamDescQueueMutex.Unlock()
	c.WaitForAllStreamThreads()

	c.uploadResourcePoolMutex.Lock()
	defer c.uploadResourcePoolMutex.Unlock()

	var evicted []gpu.Texture
	c.replacements.Clear(&evicted)
	c.textures.ClearReplacements(&evicted)
	if len(evicted) > 0 {
		c.lockMutex.Lock()
		c.evicted = append(c.evicted, evicted...)
		c.lockMutex.Unlock()
	}

	if _, err := c.replacements.ReadDatabase(dir); err != nil {
		c.logf("read replacement database in %s: %v", dir, err)
	}
	if err := c.replacements.ResolvePaths(dir, false); err != nil {
		return cacheerr.Wrap(cacheerr.IO, "texcache.LoadReplacementDirectory", err)
	}

	c.loadLowMipCache(dir)
	c.requeueCachedHashes()
	return nil
}

func (c *Cache) loadLowMipCache(dir string) {
	path := filepath.Join(dir, replacement.LowMipFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return // best-effort: a missing low-mip cache is not an error
	}
	textures, err := replacement.LoadLowMipCache(c.ctx, c.device, data)
	if err != nil {
		c.logf("load low-mip cache %s: %v", path, err)
		return
	}
	for relativePath, tex := range textures {
		c.replacements.AddLowMipTexture(relativePath, tex)
	}
}

// requeueCachedHashes re-derives a replacement check for every hash
// currently resident in the texture map, so a directory reload applies
// newly discovered replacements to textures that were uploaded before
// the reload happened.
func (c *Cache) requeueCachedHashes() {
	hashes := c.textures.Hashes()
	if len(hashes) == 0 {
		return
	}

	checks := make([]replacementCheck, 0, len(hashes))
	for _, h := range hashes {
		checks = append(checks, replacementCheck{textureHash: h, databaseHash: h})
	}

	c.uploadQueueMutex.Lock()
	c.replacementQueue = append(c.replacementQueue, checks...)
	c.uploadQueueMutex.Unlock()
	c.wakeUpload()
}

// SaveReplacementDatabase writes the current replacement database to
// <dir>/rt64.json using the write-new/rename-old/rename-new sequence.
func (c *Cache) SaveReplacementDatabase() error {
	dir := c.replacements.DirectoryPath()
	return c.replacements.SaveDatabase(dir)
}
