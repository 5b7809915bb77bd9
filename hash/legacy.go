package hash

import (
	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/n64"
)

// LegacyTable dispatches a TMEMHasher call to the hash version the caller
// requests. It exists because a ReplacementDatabase created with an older
// hashVersion must keep resolving against hashes computed the old way; the
// cache rehashes incoming TMEM bytes with whichever version the database
// was built with, rather than forcing every database to be regenerated
// whenever the hash algorithm changes.
type LegacyTable map[int]TMEMHasher

// Hash looks up the hasher registered for version and calls it. A missing
// version is a Policy violation, since no amount of retrying will make it
// appear; it is asserted through cacheerr.Assert rather than a bare panic,
// so a release build logs and returns 0 instead of crashing outright.
func (t LegacyTable) Hash(bytes []byte, tile n64.LoadTile, width, height int, tlut uint32, version int) Content {
	h, ok := t[version]
	cacheerr.Assert(ok, "hash.LegacyTable.Hash", "no TMEMHasher registered for version")
	if !ok {
		return 0
	}
	return h(bytes, tile, width, height, tlut, version)
}

// AsHasher adapts the table itself into a plain TMEMHasher, so a
// LegacyTable can be passed anywhere a TMEMHasher is expected.
func (t LegacyTable) AsHasher() TMEMHasher {
	return t.Hash
}
