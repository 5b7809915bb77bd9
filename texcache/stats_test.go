package texcache

import (
	"testing"

	"github.com/kirahall/n64texcache/config"
	"github.com/kirahall/n64texcache/hash"
)

// TestStatsSurfacesUploadsAndEvictions is scenario S8: ten textures
// uploaded, nine kept warm, one left to age out, then checked against
// the counters Stats() reports.
func TestStatsSurfacesUploadsAndEvictions(t *testing.T) {
	cfg := config.Defaults()
	cfg.StreamThreadCount = 1
	cfg.QueueDepth = 5 // minMaxAge = 2*QueueDepth = 10
	c, _ := newTestCache(t, cfg)

	for i := 1; i <= 10; i++ {
		c.QueueUpload(TextureUpload{Hash: hash.Content(i), CreationFrame: 0, TMEM: []byte{byte(i)}})
	}
	c.WaitForGPUUploads()

	snap := c.Stats()
	if snap.TextureMapSlots != 10 {
		t.Fatalf("expected 10 resident slots, got %d", snap.TextureMapSlots)
	}
	if snap.UploadQueueDepth != 0 || snap.StreamQueueDepth != 0 {
		t.Fatalf("expected both queues drained after WaitForGPUUploads, got upload=%d stream=%d",
			snap.UploadQueueDepth, snap.StreamQueueDepth)
	}
	if snap.EvictedThisInterval != 0 {
		t.Fatalf("expected no evictions yet, got %d", snap.EvictedThisInterval)
	}

	// Keep hashes 1-9 warm at frame 5; hash 10 is never reused and so
	// stays the oldest entry in the access list.
	for i := 1; i <= 9; i++ {
		if _, _, _, _, ok := c.UseTexture(hash.Content(i), 5); !ok {
			t.Fatalf("expected hash %d to still be resident", i)
		}
	}

	evicted := c.Evict(10)
	if len(evicted) != 1 || evicted[0] != hash.Content(10) {
		t.Fatalf("expected only hash 10 to age out at frame 10, got %v", evicted)
	}

	snap = c.Stats()
	if snap.TextureMapSlots != 9 {
		t.Fatalf("expected 9 resident slots after eviction, got %d", snap.TextureMapSlots)
	}
	if snap.EvictedThisInterval != 1 {
		t.Fatalf("expected the eviction to surface once, got %d", snap.EvictedThisInterval)
	}

	// EvictedThisInterval resets on read.
	snap = c.Stats()
	if snap.EvictedThisInterval != 0 {
		t.Fatalf("expected EvictedThisInterval to reset after being read, got %d", snap.EvictedThisInterval)
	}
}
