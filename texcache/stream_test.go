package texcache

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/kirahall/n64texcache/config"
	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/gpu/fake"
	"github.com/kirahall/n64texcache/hash"
	"github.com/kirahall/n64texcache/replacement"
)

func newTestCache(t *testing.T, cfg config.Config) (*Cache, *fake.Device) {
	t.Helper()
	device := fake.NewDevice(nil)
	c, err := NewCache(device, hash.NoopHasher, nil, cfg)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	t.Cleanup(c.Shutdown)
	return c, device
}

func writeTestPNG(t *testing.T, dir, name string, size int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, size, size))); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
}

// TestStreamedReplacementOrdering is scenario S3: a streamed load's
// low-mip stand-in becomes visible as soon as its upload batch completes,
// stays in place while the stream goroutine is still working, and is only
// swapped for the real texture on a lock-count zero-transition.
func TestStreamedReplacementOrdering(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, dir, "tex.png", 8)

	cfg := config.Defaults()
	cfg.StreamThreadCount = 2
	c, device := newTestCache(t, cfg)

	const h = hash.Content(0xC0FFEE)
	db := c.ReplacementMap().Database()
	db.AddReplacement(replacement.Record{
		Path:   "tex",
		Load:   replacement.LoadStream,
		Hashes: replacement.Hashes{RT64: strconv.FormatUint(uint64(h), 16)},
	})
	if err := c.ReplacementMap().ResolvePaths(dir, false); err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}

	standIn, err := device.CreateTexture(gpu.TextureDesc{Format: gpu.FormatRGBA8, Width: 2, Height: 2})
	if err != nil {
		t.Fatalf("create stand-in texture: %v", err)
	}
	c.ReplacementMap().AddLowMipTexture("tex.png", standIn)

	c.QueueUpload(TextureUpload{
		Hash:          h,
		CreationFrame: 0,
		TMEM:          []byte{1, 2, 3, 4},
		Width:         16,
		Height:        16,
		Decode:        true,
	})
	c.WaitForGPUUploads()

	_, scale, replaced, _, ok := c.UseTexture(h, 1)
	if !ok || !replaced {
		t.Fatalf("expected a replaced hit after the upload batch, got ok=%v replaced=%v", ok, replaced)
	}
	if scale.X != 0.125 || scale.Y != 0.125 {
		t.Fatalf("expected the low-mip stand-in's 2/16 scale, got %+v", scale)
	}

	c.WaitForAllStreamThreads()

	// The stream goroutine has finished decoding the real asset, but
	// nothing has torn down a lock-count period yet, so the stand-in
	// must still be the one in effect.
	_, scale, replaced, _, ok = c.UseTexture(h, 1)
	if !ok || !replaced || scale.X != 0.125 {
		t.Fatalf("expected the stand-in to still be in effect before a lock-count transition, got scale=%+v", scale)
	}

	c.IncrementLock()
	c.DecrementLock()

	_, scale, replaced, _, ok = c.UseTexture(h, 2)
	if !ok || !replaced {
		t.Fatalf("expected a replaced hit after the lock-count transition, got ok=%v replaced=%v", ok, replaced)
	}
	if scale.X != 0.5 || scale.Y != 0.5 {
		t.Fatalf("expected the real 8/16 scale after the streamed delivery applied, got %+v", scale)
	}
}

// TestUseTextureVisibleAfterWaitForGPUUploads is the general ordering
// rule from the concurrency model: QueueUpload returns immediately, and
// WaitForGPUUploads is the synchronization point a caller uses to
// guarantee the upload has reached the texture map.
func TestUseTextureVisibleAfterWaitForGPUUploads(t *testing.T) {
	cfg := config.Defaults()
	cfg.StreamThreadCount = 1
	c, _ := newTestCache(t, cfg)

	const h = hash.Content(7)
	c.QueueUpload(TextureUpload{Hash: h, CreationFrame: 0, TMEM: []byte{9}})

	c.WaitForGPUUploads()
	if _, _, _, _, ok := c.UseTexture(h, 1); !ok {
		t.Fatal("expected a hit once WaitForGPUUploads has returned")
	}
}
