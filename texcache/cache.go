// Package texcache is the coordinator that owns the texture map, the
// replacement map, and an injected GPU device, and runs the upload
// goroutine and stream goroutine pool that turn QueueUpload calls into
// resident — and possibly replaced — GPU textures without stalling the
// caller's render submission loop.
package texcache

import (
	"context"
	"sync"

	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/config"
	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/hash"
	"github.com/kirahall/n64texcache/logger"
	"github.com/kirahall/n64texcache/n64"
	"github.com/kirahall/n64texcache/replacement"
	"github.com/kirahall/n64texcache/texture"
)

// Config is the coordinator's process-level knobs, loaded by the config
// package ahead of NewCache.
type Config = config.Config

const cacheTag = "texcache"

// pendingReplacement is a replacement found (or stood in for) during one
// upload batch, waiting to be applied to the texture map under its lock.
type pendingReplacement struct {
	hash        hash.Content
	texture     gpu.Texture
	lowPriority bool
}

// replacementCheck is work queued by the upload goroutine's TMEM pass,
// consumed by its own replacement-lookup pass in the same batch.
type replacementCheck struct {
	textureHash      hash.Content
	databaseHash     hash.Content
	minMipW, minMipH int
}

// streamDelivery is a completed streamed load, handed from a stream
// goroutine to the coordinator's delivery queue for application under the
// lock-count discipline.
type streamDelivery struct {
	hash    hash.Content
	texture gpu.Texture
}

// Cache is the coordinator. The zero value is not usable; construct with
// NewCache.
type Cache struct {
	device gpu.Device
	hasher hash.TMEMHasher
	legacy hash.LegacyTable
	cfg    Config

	textures     *texture.Map
	replacements *replacement.Map

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// uploadCond guards and signals uploadQueue/replacementQueue: Wait is
	// used both by the upload goroutine (new work arrived) and by
	// WaitForGPUUploads (a batch just finished), per §5's condition
	// variable wake-up model.
	uploadQueueMutex  sync.Mutex
	uploadCond        *sync.Cond
	uploadQueue       []TextureUpload
	replacementQueue  []replacementCheck
	uploadProcessing  bool
	uploadGoroutineID uint64

	// streamCond guards and signals streamDescQueue and
	// streamDescQueueActiveCount. Broadcast (not Signal) wakes every idle
	// pool goroutine at once, so a burst of stream work fans out across
	// the whole pool instead of draining through a single goroutine.
	streamDescQueueMutex       sync.Mutex
	streamCond                 *sync.Cond
	streamDescQueue            []StreamDescription
	streamDescQueueActiveCount int

	streamedTextureQueueMutex sync.Mutex
	streamedTextureQueue      []streamDelivery

	// lockMutex guards lockCount and the evicted list it gates: textures
	// displaced by Replace or Evict accumulate here and are only actually
	// released once lockCount returns to zero, per §4.4.7.
	lockMutex sync.Mutex
	lockCount int
	evicted   []gpu.Texture

	uploadResourcePoolMutex sync.Mutex
	pool                    gpu.Pool
	stagingBuffers          []gpu.Buffer
	descriptorSets          []gpu.DescriptorSet
	decodePipeline          gpu.ComputePipeline

	stats stats
}

// NewCache constructs a Cache and starts its upload goroutine and stream
// goroutine pool. Call Shutdown to stop them. hasher computes the current
// content hash of TMEM bytes (an external collaborator, per §1); legacy
// resolves older hash versions for databases that predate the current
// one. Either may be hash.NoopHasher / a nil-safe empty hash.LegacyTable
// for tests that never exercise legacy rehashing.
func NewCache(device gpu.Device, hasher hash.TMEMHasher, legacy hash.LegacyTable, cfg Config) (*Cache, error) {
	cacheerr.Assert(device != nil, "texcache.NewCache", "nil GPU device")

	pool, err := device.CreatePool(gpu.PoolDesc{MaxSets: 64, Label: "texcache-upload-pool"})
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.NewCache", err)
	}
	pipeline, err := device.CreateComputePipeline("tmem-decode")
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.NewCache", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	minMaxAge := uint64(2 * cfg.QueueDepth)
	if cfg.QueueDepth <= 0 {
		minMaxAge = 2
	}

	c := &Cache{
		device:       device,
		hasher:       hasher,
		legacy:       legacy,
		cfg:          cfg,
		textures:     texture.NewMap(minMaxAge),
		replacements: replacement.NewMap(),
		ctx:          ctx,
		cancel:       cancel,
		pool:         pool,
		decodePipeline: pipeline,
	}
	c.uploadCond = sync.NewCond(&c.uploadQueueMutex)
	c.streamCond = sync.NewCond(&c.streamDescQueueMutex)

	threads := cfg.StreamThreadCount
	if threads <= 0 {
		threads = 1
	}
	c.streamDescQueueActiveCount = threads

	c.wg.Add(1)
	go c.runUploadLoop()
	for i := 0; i < threads; i++ {
		c.wg.Add(1)
		go c.runStreamLoop(i)
	}

	return c, nil
}

// Shutdown cancels every worker goroutine and waits for them to exit.
// Pending stream work is dropped, matching §5's cancellation contract.
func (c *Cache) Shutdown() {
	c.cancel()
	c.wakeUpload()
	c.wakeStream()
	c.wg.Wait()
}

// TextureMap exposes the underlying content-addressed slot table, mainly
// for callers that need UseTexture semantics directly or for tests.
func (c *Cache) TextureMap() *texture.Map { return c.textures }

// ReplacementMap exposes the runtime replacement index.
func (c *Cache) ReplacementMap() *replacement.Map { return c.replacements }

// Hash computes the current-version content hash of a tile's TMEM bytes,
// using the TMEMHasher supplied to NewCache. Callers building a
// TextureUpload use this rather than holding their own reference to the
// hashing algorithm, since the cache is the one place that knows which
// version is current.
func (c *Cache) Hash(bytes []byte, tile n64.LoadTile, width, height int, tlut uint32) hash.Content {
	return c.hasher(bytes, tile, width, height, tlut, hash.CurrentHashVersion)
}

// UseTexture forwards to the texture map's Use under its own lock,
// honoring the cache's ReplacementsEnabled configuration.
func (c *Cache) UseTexture(h hash.Content, submissionFrame uint64) (handle texture.Handle, scale texture.Scale, replaced, hasMipmaps, ok bool) {
	return c.textures.Use(h, submissionFrame, c.cfg.ReplacementsEnabled)
}

// Evict forwards to the texture map's Evict, folding the result into the
// cache's deferred evicted-texture list and recording the eviction count
// for the next Stats() read.
func (c *Cache) Evict(currentFrame uint64) []hash.Content {
	var hashes []hash.Content
	var textures []gpu.Texture
	c.textures.Evict(currentFrame, &hashes, &textures)

	if len(textures) > 0 {
		c.lockMutex.Lock()
		c.evicted = append(c.evicted, textures...)
		c.lockMutex.Unlock()
	}

	c.stats.recordEviction(len(hashes))
	return hashes
}

func (c *Cache) wakeUpload() {
	c.uploadQueueMutex.Lock()
	c.uploadCond.Broadcast()
	c.uploadQueueMutex.Unlock()
}

func (c *Cache) wakeStream() {
	c.streamDescQueueMutex.Lock()
	c.streamCond.Broadcast()
	c.streamDescQueueMutex.Unlock()
}

func (c *Cache) logf(format string, args ...interface{}) {
	logger.Logf(logger.Allow, cacheTag, format, args...)
}
