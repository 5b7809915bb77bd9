package replacement

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/hash"
	"github.com/kirahall/n64texcache/logger"
)

// DatabaseFileName and LowMipFileName are the conventional on-disk names
// a replacement directory's two files are found under.
const (
	DatabaseFileName = "rt64.json"
	LowMipFileName   = "rt64-low-mip-cache.bin"
)

// loadedTexture pairs a GPU texture with the relative path it was loaded
// from, for lookup by path hash and for eviction when a directory is
// unloaded.
type loadedTexture struct {
	texture      gpu.Texture
	relativePath string
}

// Map is the runtime replacement index: the database, the directory it
// was resolved against, the set of loaded textures keyed by path hash,
// and the low-mip stand-ins keyed by relative path. The zero value is not
// usable; construct with NewMap.
//
// Map is read from the upload goroutine and every stream goroutine.
// Mutations that publish a newly loaded texture take the map's own mutex;
// db and resolved have no lock of their own and are instead serialized by
// the caller: texcache's upload goroutine and its LoadReplacementDirectory
// both hold the same external mutex around their reads and writes of
// those two fields, so a directory reload never lands mid-batch.
type Map struct {
	mu sync.Mutex

	db            Database
	directoryPath string
	resolved      ResolvedPathMap

	loaded    []loadedTexture
	pathIndex map[hash.Path]int

	lowMip map[string]gpu.Texture
}

// NewMap returns an empty, usable Map with a default database.
func NewMap() *Map {
	m := &Map{pathIndex: make(map[hash.Path]int), lowMip: make(map[string]gpu.Texture)}
	m.db.Reset()
	return m
}

// Database returns the current replacement database. Callers must not
// mutate Records directly without also updating resolved via ResolvePaths
// again; prefer AddReplacement/FixReplacement.
func (m *Map) Database() *Database { return &m.db }

// DirectoryPath returns the directory the map was last resolved against.
func (m *Map) DirectoryPath() string { return m.directoryPath }

// Clear moves every loaded and low-mip texture into evictedOut (the
// caller is responsible for releasing them under the cache's lock-count
// protocol) and empties all tables.
func (m *Map) Clear(evictedOut *[]gpu.Texture) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, lt := range m.loaded {
		*evictedOut = append(*evictedOut, lt.texture)
	}
	for _, tex := range m.lowMip {
		*evictedOut = append(*evictedOut, tex)
	}
	m.loaded = nil
	m.pathIndex = make(map[hash.Path]int)
	m.lowMip = make(map[string]gpu.Texture)
	m.resolved = nil
}

// ReadDatabase reads and parses dir/rt64.json into m's database. On
// parse failure the database is reset to defaults and false is returned;
// a missing file is reported the same way, both classified cacheerr.IO or
// cacheerr.Parse via the returned error for callers that want the detail.
func (m *Map) ReadDatabase(dir string) (bool, error) {
	path := filepath.Join(dir, DatabaseFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		m.db.Reset()
		return false, cacheerr.Wrap(cacheerr.IO, "replacement.ReadDatabase", err)
	}

	var db Database
	if perr := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic decoding %s: %v", path, r)
			}
		}()
		return json.Unmarshal(data, &db)
	}(); perr != nil {
		m.db.Reset()
		logger.Logf(logger.Allow, replacementTag, "failed to parse %s: %v", path, perr)
		return false, cacheerr.Wrap(cacheerr.Parse, "replacement.ReadDatabase", perr)
	}

	m.db = db
	return true, nil
}

// SaveDatabase writes m's database to <dir>/rt64.json using the
// write-new/rename-old/rename-new atomic sequence: a crash between the
// two renames leaves both rt64.json.old (the previous content) and
// rt64.json.new (the new content) on disk, and never a half-written
// rt64.json.
func (m *Map) SaveDatabase(dir string) error {
	target := filepath.Join(dir, DatabaseFileName)
	newPath := target + ".new"
	oldPath := target + ".old"

	data, err := json.MarshalIndent(&m.db, "", "  ")
	if err != nil {
		return cacheerr.Wrap(cacheerr.Parse, "replacement.SaveDatabase", err)
	}
	if err := os.WriteFile(newPath, data, 0o644); err != nil {
		return cacheerr.Wrap(cacheerr.IO, "replacement.SaveDatabase", err)
	}
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, oldPath); err != nil {
			return cacheerr.Wrap(cacheerr.IO, "replacement.SaveDatabase", err)
		}
	}
	if err := os.Rename(newPath, target); err != nil {
		return cacheerr.Wrap(cacheerr.IO, "replacement.SaveDatabase", err)
	}
	return nil
}

// ResolvePaths re-resolves m's database against dir and stores the
// result, becoming the directory subsequent lookups operate against.
func (m *Map) ResolvePaths(dir string, onlyDDS bool) error {
	resolved, err := m.db.ResolvePaths(dir, onlyDDS)
	if err != nil {
		return cacheerr.Wrap(cacheerr.IO, "replacement.ResolvePaths", err)
	}
	m.directoryPath = dir
	m.resolved = resolved
	return nil
}

// GetInformationFromHash performs the single O(1) lookup into the
// resolved-path map populated by ResolvePaths. There is no fallback to
// the database's raw Path field: resolution must have already run.
func (m *Map) GetInformationFromHash(h hash.Content) (relativePath string, recordIndex int, ok bool) {
	rp, ok := m.resolved[h]
	if !ok {
		return "", 0, false
	}
	return rp.RelativePath, rp.RecordIndex, true
}

// GetFromRelativePath returns the already-loaded texture for path, if
// any. Callers must check this before calling AddLoadedTexture, which
// forbids duplicate paths.
func (m *Map) GetFromRelativePath(relativePath string) (gpu.Texture, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.pathIndex[hash.PathHash(relativePath)]
	if !ok {
		return nil, false
	}
	return m.loaded[i].texture, true
}

// AddLoadedTexture registers a newly loaded texture under relativePath.
// Calling this twice for the same path is a policy violation: callers
// must have checked GetFromRelativePath first.
func (m *Map) AddLoadedTexture(tex gpu.Texture, relativePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := hash.PathHash(relativePath)
	_, exists := m.pathIndex[key]
	cacheerr.Assert(!exists, "replacement.AddLoadedTexture", "duplicate load of "+relativePath)

	i := len(m.loaded)
	m.loaded = append(m.loaded, loadedTexture{texture: tex, relativePath: relativePath})
	m.pathIndex[key] = i
}

// AddLowMipTexture registers a low-mip stand-in texture for relativePath,
// read from the low-mip cache container at session start.
func (m *Map) AddLowMipTexture(relativePath string, tex gpu.Texture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lowMip[relativePath] = tex
}

// GetLowMipTexture returns the stand-in texture for relativePath, if any
// was present in the low-mip cache container.
func (m *Map) GetLowMipTexture(relativePath string) (gpu.Texture, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tex, ok := m.lowMip[relativePath]
	return tex, ok
}

// RemoveUnusedEntriesFromDatabase drops database records that resolved to
// no path at all (neither explicit nor auto-resolved), compacting
// resolved.RecordIndex to match.
func (m *Map) RemoveUnusedEntriesFromDatabase() {
	m.db.RemoveUnusedEntriesFromDatabase(m.resolved)
}

const replacementTag = "replacement"
