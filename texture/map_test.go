package texture

import (
	"testing"

	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/gpu/fake"
	"github.com/kirahall/n64texcache/hash"
)

func newTestDevice() *fake.Device { return fake.NewDevice(nil) }

func mustTexture(t *testing.T, d *fake.Device, w, h uint32) gpu.Texture {
	t.Helper()
	tex, err := d.CreateTexture(gpu.TextureDesc{Format: gpu.FormatRGBA8, Width: w, Height: h})
	if err != nil {
		t.Fatal(err)
	}
	return tex
}

// TestAddUseEvict is scenario S1.
func TestAddUseEvict(t *testing.T) {
	const queueDepth = 3
	m := NewMap(2 * queueDepth)
	d := newTestDevice()

	h := hash.Content(0xABCD)
	tex := mustTexture(t, d, 8, 8)
	m.Add(h, 0, tex)

	handle, scale, replaced, hasMipmaps, ok := m.Use(h, 0, true)
	if !ok || replaced || hasMipmaps {
		t.Fatalf("unexpected Use result: ok=%v replaced=%v hasMipmaps=%v", ok, replaced, hasMipmaps)
	}
	if scale != unitScale {
		t.Fatalf("expected unit scale, got %+v", scale)
	}
	if handle == 0 {
		t.Fatalf("expected a non-zero handle") // handle 0 is reserved for a miss
	}

	var evictedHashes []hash.Content
	var evictedTextures []gpu.Texture
	m.Evict(2*queueDepth, &evictedHashes, &evictedTextures)
	if len(evictedHashes) != 1 || evictedHashes[0] != h {
		t.Fatalf("expected H to be evicted at frame 2*queueDepth, got %v", evictedHashes)
	}

	if _, _, _, _, ok := m.Use(h, 2*queueDepth+1, true); ok {
		t.Fatal("expected a miss after eviction")
	}
}

func TestEvictNeverRemovesCurrentFrameEntry(t *testing.T) {
	m := NewMap(4)
	d := newTestDevice()

	h1 := hash.Content(1)
	h2 := hash.Content(2)
	m.Add(h1, 0, mustTexture(t, d, 4, 4))
	m.Add(h2, 0, mustTexture(t, d, 4, 4))

	// h1 ages out, h2 is used again right at eviction time.
	m.Use(h2, 10, true)

	var hashes []hash.Content
	var textures []gpu.Texture
	m.Evict(10, &hashes, &textures)

	for _, h := range hashes {
		if h == h2 {
			t.Fatal("Evict must never remove an entry used in the current frame")
		}
	}
}

func TestReplaceComputesScaleAndBumpsVersions(t *testing.T) {
	m := NewMap(4)
	d := newTestDevice()

	h := hash.Content(42)
	orig := mustTexture(t, d, 16, 16)
	m.Add(h, 0, orig)
	v0 := m.GlobalVersion()

	repl := mustTexture(t, d, 32, 48)
	var evicted []gpu.Texture
	ok := m.Replace(h, repl, false, &evicted)
	if !ok {
		t.Fatal("expected Replace to succeed for a known hash")
	}
	if len(evicted) != 0 {
		t.Fatalf("expected nothing evicted on a first replace, got %d", len(evicted))
	}

	_, scale, replaced, _, useOK := m.Use(h, 1, true)
	if !useOK || !replaced {
		t.Fatal("expected a hit with a replacement installed")
	}
	if scale.X != 2.0 || scale.Y != 3.0 {
		t.Fatalf("got scale %+v, want (2,3)", scale)
	}
	if m.GlobalVersion() <= v0 {
		t.Fatal("expected global version to strictly increase")
	}
}

func TestReplaceIgnoreIfOccupiedDoesNotClobberRealReplacement(t *testing.T) {
	m := NewMap(4)
	d := newTestDevice()

	h := hash.Content(7)
	m.Add(h, 0, mustTexture(t, d, 8, 8))

	real := mustTexture(t, d, 32, 32)
	var evicted []gpu.Texture
	m.Replace(h, real, false, &evicted)

	standIn := mustTexture(t, d, 8, 8)
	ok := m.Replace(h, standIn, true, &evicted)
	if ok {
		t.Fatal("expected ignoreIfOccupied to refuse to overwrite an existing replacement")
	}

	_, scale, _, _, _ := m.Use(h, 1, true)
	if scale.X != 4.0 {
		t.Fatalf("expected the real replacement to remain installed, got scale %+v", scale)
	}
}

func TestReplaceMissOnUnknownHash(t *testing.T) {
	m := NewMap(4)
	d := newTestDevice()
	var evicted []gpu.Texture
	if m.Replace(hash.Content(999), mustTexture(t, d, 4, 4), false, &evicted) {
		t.Fatal("expected Replace to no-op for an unknown hash")
	}
}

func TestClearReplacementsDetachesAndEvicts(t *testing.T) {
	m := NewMap(4)
	d := newTestDevice()

	h := hash.Content(3)
	m.Add(h, 0, mustTexture(t, d, 4, 4))
	var evicted []gpu.Texture
	m.Replace(h, mustTexture(t, d, 8, 8), false, &evicted)

	evicted = nil
	m.ClearReplacements(&evicted)
	if len(evicted) != 1 {
		t.Fatalf("expected the one replacement to be evicted, got %d", len(evicted))
	}

	_, scale, replaced, _, ok := m.Use(h, 1, true)
	if !ok || replaced {
		t.Fatal("expected the slot to remain but without a replacement")
	}
	if scale != unitScale {
		t.Fatalf("expected unit scale after clearing, got %+v", scale)
	}
}

func TestUseMovesSlotToFrontOfAccessList(t *testing.T) {
	m := NewMap(100)
	d := newTestDevice()

	h1, h2, h3 := hash.Content(1), hash.Content(2), hash.Content(3)
	m.Add(h1, 0, mustTexture(t, d, 4, 4))
	m.Add(h2, 0, mustTexture(t, d, 4, 4))
	m.Add(h3, 0, mustTexture(t, d, 4, 4))

	// h1 is oldest; touch it at the exact frame Evict will be called with,
	// so its age is 0 and the scan must stop there without removing it.
	m.Use(h1, 250, true)

	var hashes []hash.Content
	var textures []gpu.Texture
	m.Evict(250, &hashes, &textures)

	for _, h := range hashes {
		if h == h1 {
			t.Fatal("h1's age is 0 at this eviction frame; it must survive")
		}
	}
	if len(hashes) != 2 {
		t.Fatalf("expected h2 and h3 (untouched, now the oldest entries) to evict, got %v", hashes)
	}
}

func TestAddAssertsOnDuplicateHash(t *testing.T) {
	m := NewMap(4)
	d := newTestDevice()
	h := hash.Content(5)
	m.Add(h, 0, mustTexture(t, d, 4, 4))

	defer func() {
		if recover() == nil {
			t.Fatal("expected Add to panic on a duplicate hash")
		}
	}()
	m.Add(h, 1, mustTexture(t, d, 4, 4))
}

func TestHandleReuseFromFreeList(t *testing.T) {
	m := NewMap(1)
	d := newTestDevice()

	h1 := hash.Content(1)
	handle1 := m.Add(h1, 0, mustTexture(t, d, 4, 4))

	var hashes []hash.Content
	var textures []gpu.Texture
	m.Evict(10, &hashes, &textures)
	if len(hashes) != 1 {
		t.Fatalf("expected h1 to evict, got %v", hashes)
	}

	h2 := hash.Content(2)
	handle2 := m.Add(h2, 10, mustTexture(t, d, 4, 4))
	if handle2 != handle1 {
		t.Fatalf("expected the freed slot %d to be reused, got %d", handle1, handle2)
	}
}
