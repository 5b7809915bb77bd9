package texcache

import (
	"sync"
	"sync/atomic"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// Snapshot is the observability surface's published state: queue depths,
// eviction counts, and access-list size, per §6.6.
type Snapshot struct {
	UploadQueueDepth       int
	StreamQueueDepth       int
	ActiveStreamGoroutines int
	TextureMapSlots        int
	EvictedThisInterval    int
	GlobalVersion          uint64
}

// stats holds the cache's own counters. evictedThisInterval is sampled
// into a Snapshot and reset every time one is taken, matching "this
// interval" in its name; the other Snapshot fields are re-derived live
// from the cache's own state, and totalBatches/totalUploaded are not part
// of a Snapshot.
type stats struct {
	mu                  sync.Mutex
	evictedThisInterval int
	totalBatches        int64
	totalUploaded       int64
}

func (s *stats) recordEviction(n int) {
	s.mu.Lock()
	s.evictedThisInterval += n
	s.mu.Unlock()
}

func (s *stats) recordBatch(uploaded int) {
	atomic.AddInt64(&s.totalBatches, 1)
	atomic.AddInt64(&s.totalUploaded, int64(uploaded))
}

func (s *stats) takeEvicted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.evictedThisInterval
	s.evictedThisInterval = 0
	return n
}

// Stats returns a live snapshot of the cache's observability counters.
// EvictedThisInterval is consumed here: the count is reset to zero the
// moment it is read, so each eviction is reported to exactly one caller.
func (c *Cache) Stats() Snapshot {
	c.uploadQueueMutex.Lock()
	uploadDepth := len(c.uploadQueue) + len(c.replacementQueue)
	c.uploadQueueMutex.Unlock()

	c.streamDescQueueMutex.Lock()
	streamDepth := len(c.streamDescQueue)
	active := c.streamDescQueueActiveCount
	c.streamDescQueueMutex.Unlock()

	return Snapshot{
		UploadQueueDepth:       uploadDepth,
		StreamQueueDepth:       streamDepth,
		ActiveStreamGoroutines: active,
		TextureMapSlots:        c.textures.Len(),
		EvictedThisInterval:    c.stats.takeEvicted(),
		GlobalVersion:          c.textures.GlobalVersion(),
	}
}

// ServeStats starts a statsview dashboard on cfg.StatsAddr; a no-op if
// StatsAddr is empty, per §6.6. The dashboard itself only shows the
// runtime/GC/goroutine graphs statsview samples on its own; the cache's
// own queue-depth and eviction counters are published through Stats(),
// which a caller (texcachetool stats, or a host's own frame loop) polls
// and prints or forwards however it likes.
func (c *Cache) ServeStats() {
	if c.cfg.StatsAddr == "" {
		return
	}
	viewer.SetConfiguration(viewer.WithAddr(c.cfg.StatsAddr))
	mgr := statsview.New()
	go mgr.Start()
}
