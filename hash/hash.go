// Package hash defines the two hash types the cache depends on, and keeps
// both the hashing algorithms themselves pluggable: the TMEM content hash
// (explicitly an external collaborator per the pipeline's own scope — the
// cache only ever recomputes it when a legacy database forces a version
// downgrade) and the path hash used to index loaded replacement textures.
package hash

import "github.com/kirahall/n64texcache/n64"

// Content is the 64-bit hash of a rendered texture's TMEM bytes. It is the
// cache's primary key for everything in the texture map.
type Content uint64

// Path is a 64-bit non-cryptographic hash of a relative asset path,
// produced by PathHash. It indexes the replacement map's loaded-texture
// table so that two records resolving to the same file are not loaded
// twice.
type Path uint64

// TMEMHasher computes the content hash of a tile's TMEM bytes for a given
// legacy hash version. The cache never implements the hash function
// itself — it is supplied by whatever owns the real hashing algorithm
// (historically versioned, since replacement databases are long-lived and
// must keep resolving against textures hashed by older clients) — but the
// cache does need to be able to ask for an older version's hash when a
// database predates the current one.
type TMEMHasher func(bytes []byte, tile n64.LoadTile, width, height int, tlut uint32, version int) Content

// CurrentHashVersion is the hash version this cache writes into any
// replacement.Database.Config it creates from scratch (Database.Reset).
const CurrentHashVersion = 2

// NoopHasher is a TMEMHasher that always returns 0. It exists only so a
// Cache can be constructed without a real hasher wired in yet; calling it
// on a path that requires a legacy rehash is a Policy violation the cache
// itself is expected to detect before ever reaching it in production.
func NoopHasher(_ []byte, _ n64.LoadTile, _, _ int, _ uint32, _ int) Content {
	return 0
}
