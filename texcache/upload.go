package texcache

import (
	"encoding/binary"
	"fmt"

	"github.com/kirahall/n64texcache/assert"
	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/hash"
	"github.com/kirahall/n64texcache/n64"
	"github.com/kirahall/n64texcache/replacement"
)

// TextureUpload is one pending upload request from the render submission
// goroutine: a tile's TMEM bytes plus everything the cache needs to
// decode and key it.
type TextureUpload struct {
	Hash          hash.Content
	CreationFrame uint64
	TMEM          []byte
	Width, Height int
	Tile          n64.LoadTile
	Tlut          uint32
	Decode        bool // run the TMEM->RGBA8 compute decode this batch
}

// StreamDescription is a stream goroutine's unit of work: load
// relativePath off disk and decode it, truncating mips below
// (MinMipW, MinMipH).
type StreamDescription struct {
	Hash             hash.Content
	RelativePath     string
	MinMipW, MinMipH int
}

// QueueUpload appends an upload request and wakes the upload goroutine.
// It never blocks on GPU or disk work; call WaitForGPUUploads to observe
// completion. Pre: len(tmem) > 0; if u.Decode, Width>0 and Height>0.
func (c *Cache) QueueUpload(u TextureUpload) {
	cacheerr.Assert(len(u.TMEM) > 0, "texcache.QueueUpload", "empty TMEM bytes")
	if u.Decode {
		cacheerr.Assert(u.Width > 0 && u.Height > 0, "texcache.QueueUpload", "zero-dimension decode request")
	}
	if c.cfg.DeveloperMode {
		cacheerr.Assert(assert.GoroutineID() != c.uploadGoroutineID, "texcache.QueueUpload",
			"called from the upload goroutine itself — this batch would never see its own submission")
	}

	c.uploadQueueMutex.Lock()
	c.uploadQueue = append(c.uploadQueue, u)
	c.uploadCond.Broadcast()
	c.uploadQueueMutex.Unlock()
}

// WaitForGPUUploads blocks until the upload queue is empty and no batch
// dequeued from it is still being processed. Checking queue emptiness
// alone would race: the upload goroutine clears the queue before it
// starts processBatch, not after.
func (c *Cache) WaitForGPUUploads() {
	c.uploadQueueMutex.Lock()
	defer c.uploadQueueMutex.Unlock()
	for len(c.uploadQueue) > 0 || len(c.replacementQueue) > 0 || c.uploadProcessing {
		if c.ctx.Err() != nil {
			return
		}
		c.uploadCond.Wait()
	}
}

func (c *Cache) runUploadLoop() {
	defer c.wg.Done()
	c.uploadGoroutineID = assert.GoroutineID()
	for {
		c.uploadQueueMutex.Lock()
		for len(c.uploadQueue) == 0 && len(c.replacementQueue) == 0 && c.ctx.Err() == nil {
			c.uploadCond.Wait()
		}
		if c.ctx.Err() != nil {
			c.uploadQueueMutex.Unlock()
			return
		}
		batch := c.uploadQueue
		c.uploadQueue = nil
		replBatch := c.replacementQueue
		c.replacementQueue = nil
		c.uploadProcessing = true
		c.uploadQueueMutex.Unlock()

		c.processBatch(batch, replBatch)

		c.uploadQueueMutex.Lock()
		c.uploadProcessing = false
		c.uploadCond.Broadcast()
		c.uploadQueueMutex.Unlock()

		if c.ctx.Err() != nil {
			return
		}
	}
}

// processBatch runs one full pass of §4.4.2 over a snapshot of the upload
// queue, plus any replacement checks left over from a prior pass (the
// coordinator re-queues a directory reload's cached hashes this way).
func (c *Cache) processBatch(batch []TextureUpload, extraChecks []replacementCheck) {
	if len(batch) == 0 && len(extraChecks) == 0 {
		return
	}

	c.ensureResourcePool(len(batch))

	cl, err := c.device.CreateCommandList()
	if err != nil {
		c.logf("create command list: %v", err)
		return
	}
	defer cl.Release()

	type decoded struct {
		upload TextureUpload
		tmem   gpu.Texture
		rgba   gpu.Texture
	}
	results := make([]decoded, len(batch))

	for i, u := range batch {
		tmemTex, err := c.device.CreateTexture(gpu.TextureDesc{
			Dimension: gpu.Dimension1D,
			Format:    gpu.FormatR8,
			Width:     uint32(len(u.TMEM)),
			Height:    1,
			Depth:     1,
			MipCount:  1,
			Label:     fmt.Sprintf("tmem-%d", i),
		})
		if err != nil {
			c.logf("create TMEM texture: %v", err)
			continue
		}
		results[i] = decoded{upload: u, tmem: tmemTex}
	}

	// Stage every TMEM upload into its staging buffer and record its
	// COPY_DEST barrier; all of these barriers are recorded ahead of the
	// copy-region commands below.
	for i := range results {
		if results[i].tmem == nil {
			continue
		}
		buf := c.stagingBuffers[i]
		dst, err := buf.Map()
		if err != nil {
			c.logf("map staging buffer: %v", err)
			continue
		}
		copy(dst, results[i].upload.TMEM)
		buf.Unmap()
		cl.Barriers(gpu.Barrier{Texture: results[i].tmem, Stage: gpu.StageCopyDest})
	}
	for i := range results {
		if results[i].tmem == nil {
			continue
		}
		cl.CopyTextureRegion(gpu.CopyRegion{
			SrcBuffer:  c.stagingBuffers[i],
			DstTexture: results[i].tmem,
			Width:      uint32(len(results[i].upload.TMEM)),
			Height:     1,
		})
	}
	for i := range results {
		if results[i].tmem == nil {
			continue
		}
		cl.Barriers(gpu.Barrier{Texture: results[i].tmem, Stage: gpu.StageShaderRead})
	}

	for i := range results {
		u := results[i].upload
		if !u.Decode || results[i].tmem == nil {
			continue
		}
		rgba, err := c.device.CreateTexture(gpu.TextureDesc{
			Dimension: gpu.Dimension2D,
			Format:    gpu.FormatRGBA8,
			Width:     uint32(u.Width),
			Height:    uint32(u.Height),
			Depth:     1,
			MipCount:  1,
			Storage:   true,
			Label:     fmt.Sprintf("decoded-%d", i),
		})
		if err != nil {
			c.logf("create decode target: %v", err)
			continue
		}
		results[i].rgba = rgba

		set := c.descriptorSets[i]
		set.BindTextureRead(0, results[i].tmem)
		set.BindTextureWrite(1, rgba)
		set.BindConstants(0, decodeConstants(u))

		cl.SetComputePipeline(c.decodePipeline)
		cl.SetComputeDescriptorSet(0, set)
		cl.Dispatch(ceilDiv(uint32(u.Width), 8), ceilDiv(uint32(u.Height), 8), 1)
		cl.Barriers(gpu.Barrier{Texture: rgba, Stage: gpu.StageShaderRead})
	}

	if err := cl.Submit(c.ctx); err != nil {
		c.logf("submit upload batch: %v", err)
		return
	}

	// databaseCheckFor and resolveReplacements read the replacement map's
	// db and resolved tables without their own lock (see replacement.Map's
	// doc comment); uploadResourcePoolMutex serializes this window against
	// LoadReplacementDirectory, which rebuilds those tables from scratch.
	c.uploadResourcePoolMutex.Lock()
	checks := append([]replacementCheck(nil), extraChecks...)
	for i := range results {
		u := results[i].upload
		if u.Width <= 0 || u.Height <= 0 {
			continue
		}
		checks = append(checks, c.databaseCheckFor(u))
	}

	pending := c.resolveReplacements(checks)
	c.uploadResourcePoolMutex.Unlock()

	var evictedFromReplace []gpu.Texture
	for i := range results {
		u := results[i].upload
		tex := results[i].rgba
		if tex == nil {
			tex = results[i].tmem
		}
		if tex == nil {
			continue
		}
		c.textures.Add(u.Hash, u.CreationFrame, tex)
	}
	for _, p := range pending {
		c.textures.Replace(p.hash, p.texture, p.lowPriority, &evictedFromReplace)
	}

	if len(evictedFromReplace) > 0 {
		c.lockMutex.Lock()
		c.evicted = append(c.evicted, evictedFromReplace...)
		c.lockMutex.Unlock()
	}

	c.stats.recordBatch(len(batch))
}

// databaseCheckFor computes the hash used to look up the replacement
// database for u: the supplied content hash, unless the database was
// built with an older hash version, in which case TMEM is rehashed with
// that legacy algorithm from the LegacyTable given to NewCache (§4.4.2
// step d). With a nil LegacyTable no rehash happens and the supplied hash
// is used as is.
func (c *Cache) databaseCheckFor(u TextureUpload) replacementCheck {
	check := replacementCheck{
		textureHash:  u.Hash,
		databaseHash: u.Hash,
		minMipW:      u.Width,
		minMipH:      u.Height,
	}
	version := c.replacements.Database().Config.HashVersion
	if version > 0 && version < hash.CurrentHashVersion && c.legacy != nil {
		check.databaseHash = c.legacy.Hash(u.TMEM, u.Tile, u.Width, u.Height, u.Tlut, version)
	}
	return check
}

// resolveReplacements runs §4.4.2 step e over a set of replacement
// checks, returning the replacements ready to apply to the texture map
// this batch (direct loads and low-mip stand-ins; streamed loads arrive
// later via the delivery queue).
func (c *Cache) resolveReplacements(checks []replacementCheck) []pendingReplacement {
	var out []pendingReplacement
	for _, check := range checks {
		relativePath, _, ok := c.replacements.GetInformationFromHash(check.databaseHash)
		if !ok {
			continue // transient absence: no entry resolves to a path
		}
		record, ok := c.replacements.Database().GetReplacement(check.databaseHash)
		if !ok {
			continue
		}

		if tex, ok := c.replacements.GetFromRelativePath(relativePath); ok {
			out = append(out, pendingReplacement{hash: check.textureHash, texture: tex})
			continue
		}

		switch record.Load {
		case replacement.LoadStream, replacement.LoadAsync:
			c.queueStream(StreamDescription{
				Hash:         check.textureHash,
				RelativePath: relativePath,
				MinMipW:      check.minMipW,
				MinMipH:      check.minMipH,
			})
			if record.Load == replacement.LoadStream {
				if standIn, ok := c.replacements.GetLowMipTexture(relativePath); ok {
					out = append(out, pendingReplacement{hash: check.textureHash, texture: standIn, lowPriority: true})
				}
			}
		case replacement.LoadPreload, replacement.LoadStall:
			tex, err := c.loadAndDecodeAsset(relativePath, check.minMipW, check.minMipH)
			if err != nil {
				c.logf("direct load %s: %v", relativePath, err)
				continue
			}
			if tex == nil {
				continue
			}
			if existing, ok := c.replacements.GetFromRelativePath(relativePath); ok {
				tex.Release()
				tex = existing
			} else {
				c.replacements.AddLoadedTexture(tex, relativePath)
			}
			out = append(out, pendingReplacement{hash: check.textureHash, texture: tex})
		}
	}
	return out
}

func ceilDiv(n, d uint32) uint32 {
	return (n + d - 1) / d
}

// decodeConstants packs the compute shader constant block described in
// §4.4.2 step c. The decode shader itself is an external collaborator;
// this just needs to match whatever layout it expects.
func decodeConstants(u TextureUpload) []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(u.Width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(u.Height))
	buf[8] = byte(u.Tile.Fmt)
	buf[9] = byte(u.Tile.Siz)
	binary.LittleEndian.PutUint32(buf[12:16], u.Tile.Tmem<<3)
	binary.LittleEndian.PutUint32(buf[16:20], u.Tile.Line<<3)
	binary.LittleEndian.PutUint32(buf[20:24], u.Tlut)
	binary.LittleEndian.PutUint32(buf[24:28], u.Tile.Palette)
	return buf
}
