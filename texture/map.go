// Package texture implements the content-addressed texture map: the
// struct-of-arrays slot table for emulator-decoded textures, keyed by a
// stable handle, with LRU access tracking and age-based eviction.
package texture

import (
	"container/list"
	"sync"

	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/hash"
)

// Handle is a stable index into the map's parallel slot arrays. The zero
// value never refers to a live slot; callers receive it on a miss.
type Handle uint32

// Scale is the replacement-to-original dimension ratio a caller needs to
// adjust texture coordinates when a replacement is in play.
type Scale struct {
	X, Y float64
}

var unitScale = Scale{X: 1, Y: 1}

type slot struct {
	texture       gpu.Texture
	replacement   gpu.Texture
	scale         Scale
	hash          hash.Content
	version       uint64
	creationFrame uint64
	lastUseFrame  uint64
	elem          *list.Element
	free          bool
}

// Map is the coordinator's texture slot table. The zero value is not
// usable; construct with NewMap.
//
// Map is guarded by its own mutex (the texture-map lock referenced
// throughout the coordinator's concurrency model) rather than relying on
// callers to serialize access, since Use is called from the render
// submission goroutine while Add/Replace/Evict run from the upload
// goroutine.
type Map struct {
	mu sync.Mutex

	slots     []slot
	freeList  []Handle // LIFO: pop from the back
	hashIndex map[hash.Content]Handle
	access    *list.List // front = most recently used

	// minMaxAge is twice the render queue depth (MinMaxAge in the spec's
	// vocabulary): an entry never ages out before this many frames have
	// passed since its creation, so in-flight frames always find it.
	minMaxAge uint64

	globalVersion uint64
}

// NewMap returns an empty Map. minMaxAge should be 2*queueDepth.
func NewMap(minMaxAge uint64) *Map {
	return &Map{
		// slot 0 is reserved so handle 0 only ever means a miss.
		slots:     []slot{{free: true}},
		hashIndex: make(map[hash.Content]Handle),
		access:    list.New(),
		minMaxAge: minMaxAge,
	}
}

// GlobalVersion returns the monotonic counter bumped on every mutation
// that invalidates derived state anywhere in the map.
func (m *Map) GlobalVersion() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.globalVersion
}

// Len reports the number of live (non-free) slots.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots) - 1 - len(m.freeList)
}

// Hashes returns every content hash currently resident in the map, in no
// particular order. Used by a directory reload to re-check every
// already-uploaded texture against newly discovered replacements.
func (m *Map) Hashes() []hash.Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hash.Content, 0, len(m.hashIndex))
	for h := range m.hashIndex {
		out = append(out, h)
	}
	return out
}

func (m *Map) allocate() Handle {
	if n := len(m.freeList); n > 0 {
		h := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return h
	}
	m.slots = append(m.slots, slot{})
	return Handle(len(m.slots) - 1)
}

// Add registers a newly uploaded texture under hash h, created at frame
// creationFrame. h must not already be present in the map.
func (m *Map) Add(h hash.Content, creationFrame uint64, tex gpu.Texture) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, exists := m.hashIndex[h]
	cacheerr.Assert(!exists, "texture.Add", "duplicate add of an already-resident hash")

	handle := m.allocate()
	elem := m.access.PushFront(handle)

	m.slots[handle] = slot{
		texture:       tex,
		hash:          h,
		scale:         unitScale,
		creationFrame: creationFrame,
		lastUseFrame:  creationFrame,
		elem:          elem,
		version:       m.slots[handle].version + 1,
	}
	m.hashIndex[h] = handle
	m.globalVersion++
	return handle
}

// Replace installs a replacement texture for hash h, rescaling against
// the slot's original texture dimensions. If h is unknown this is a
// no-op. If ignoreIfOccupied is true and a replacement is already
// present, the call is a no-op — this is how low-priority stand-ins avoid
// clobbering a real replacement that arrived first. The texture the
// replacement displaces (if any) is appended to evictedOut for the
// caller to release under the lock-count protocol.
func (m *Map) Replace(h hash.Content, tex gpu.Texture, ignoreIfOccupied bool, evictedOut *[]gpu.Texture) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle, ok := m.hashIndex[h]
	if !ok {
		return false
	}
	s := &m.slots[handle]
	if ignoreIfOccupied && s.replacement != nil {
		return false
	}

	if s.replacement != nil && evictedOut != nil {
		*evictedOut = append(*evictedOut, s.replacement)
	}

	origW, origH := s.texture.Width(), s.texture.Height()
	cacheerr.Assert(origW > 0 && origH > 0, "texture.Replace", "zero-dimension original texture")

	s.replacement = tex
	s.scale = Scale{X: float64(tex.Width()) / float64(origW), Y: float64(tex.Height()) / float64(origH)}
	s.version++
	m.globalVersion++
	return true
}

// Use records a use of hash h at submissionFrame, moving its slot to the
// front of the access list. ok is false on a miss, in which case handle
// is 0 and scale is (1,1). replaced is true only when replacementsEnabled
// is true and a replacement texture is installed. hasMipmaps reports
// whether that replacement has more than one mip level.
func (m *Map) Use(h hash.Content, submissionFrame uint64, replacementsEnabled bool) (handle Handle, scale Scale, replaced bool, hasMipmaps bool, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hnd, found := m.hashIndex[h]
	if !found {
		return 0, unitScale, false, false, false
	}
	s := &m.slots[hnd]
	s.lastUseFrame = submissionFrame
	m.access.MoveToFront(s.elem)

	if replacementsEnabled && s.replacement != nil {
		return hnd, s.scale, true, s.replacement.MipCount() > 1, true
	}
	return hnd, unitScale, false, false, true
}

// ClearReplacements detaches every installed replacement, appending each
// to evictedOut, and bumps every affected slot's version plus the global
// version.
func (m *Map) ClearReplacements(evictedOut *[]gpu.Texture) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.slots {
		s := &m.slots[i]
		if s.free || s.replacement == nil {
			continue
		}
		*evictedOut = append(*evictedOut, s.replacement)
		s.replacement = nil
		s.scale = unitScale
		s.version++
		m.globalVersion++
	}
}

// Evict scans the access list from the tail (oldest first), retiring any
// slot whose age since last use has reached its max age, and stops at the
// first entry that was used this very frame (age 0), since everything
// ahead of it in the list is at least as recent. Evicted hashes are
// appended to evictedHashesOut; the retired textures (original and any
// replacement) are appended to evictedTexturesOut.
func (m *Map) Evict(currentFrame uint64, evictedHashesOut *[]hash.Content, evictedTexturesOut *[]gpu.Texture) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for e := m.access.Back(); e != nil; {
		handle := e.Value.(Handle)
		s := &m.slots[handle]

		age := currentFrame - s.lastUseFrame
		maxAge := s.lastUseFrame - s.creationFrame
		if maxAge < m.minMaxAge {
			maxAge = m.minMaxAge
		}

		if age == 0 {
			break
		}
		prev := e.Prev()
		if age >= maxAge {
			m.evictSlot(handle, evictedHashesOut, evictedTexturesOut)
		}
		e = prev
	}
}

func (m *Map) evictSlot(handle Handle, evictedHashesOut *[]hash.Content, evictedTexturesOut *[]gpu.Texture) {
	s := &m.slots[handle]

	*evictedHashesOut = append(*evictedHashesOut, s.hash)
	*evictedTexturesOut = append(*evictedTexturesOut, s.texture)
	if s.replacement != nil {
		*evictedTexturesOut = append(*evictedTexturesOut, s.replacement)
	}

	m.access.Remove(s.elem)
	delete(m.hashIndex, s.hash)

	*s = slot{free: true, version: s.version}
	m.freeList = append(m.freeList, handle)
}
