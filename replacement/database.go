// Package replacement implements the on-disk replacement database (the
// authoritative JSON model of known replacement assets) and the runtime
// replacement map built from it. This is roughly components A and B of
// the texture cache: the database resolves a content hash to a path; the
// map (in map.go) turns a resolved path into a loaded GPU texture.
package replacement

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/hash"
)

// LoadPolicy controls how a replacement asset reaches the GPU.
type LoadPolicy string

const (
	LoadPreload LoadPolicy = "preload"
	LoadStream  LoadPolicy = "stream"
	LoadAsync   LoadPolicy = "async"
	LoadStall   LoadPolicy = "stall"
)

// LifePolicy is carried through the schema for forward compatibility; the
// cache does not branch on it (see SPEC_FULL.md §9, Open Question 2).
type LifePolicy string

const (
	LifePermanent LifePolicy = "permanent"
	LifePool      LifePolicy = "pool"
	LifeAge       LifePolicy = "age"
)

// Hashes holds the alternate keys a record may be looked up by. RT64 is
// the authoritative key; Rice is consulted by ResolvePaths when
// Config.AutoPath == "rice".
type Hashes struct {
	RT64 string `json:"rt64,omitempty"`
	Rice string `json:"rice,omitempty"`
}

// Record is one entry of the replacement database: a hint at where an
// asset lives plus its load/life policy. Path may be empty, in which
// case ResolvePaths fills it in from a filename convention.
type Record struct {
	Path   string     `json:"path"`
	Load   LoadPolicy `json:"load"`
	Life   LifePolicy `json:"life"`
	Hashes Hashes     `json:"hashes"`
}

// Config is the database's configuration block.
type Config struct {
	AutoPath             string `json:"autoPath"`
	ConfigurationVersion int    `json:"configurationVersion"`
	HashVersion          int    `json:"hashVersion"`
}

// CurrentConfigurationVersion is written by Database.Reset and matches
// the schema this package reads and writes.
const CurrentConfigurationVersion = 2

// Database is the in-memory model of rt64.json. The zero value is a
// usable, empty database with a zero Config; Reset installs the defaults.
type Database struct {
	Config  Config
	Records []Record

	rt64Index map[hash.Content]int
}

// Reset restores default configuration and drops all records. Used both
// for a fresh database and to recover from a parse failure.
func (d *Database) Reset() {
	d.Config = Config{AutoPath: "rice", ConfigurationVersion: CurrentConfigurationVersion, HashVersion: hash.CurrentHashVersion}
	d.Records = nil
	d.rt64Index = nil
}

// ParseHexHash parses a lowercase or uppercase hex string into a
// hash.Content. An empty string parses to zero with ok=false.
func ParseHexHash(s string) (hash.Content, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return hash.Content(v), true
}

func formatHexHash(h hash.Content) string {
	return strconv.FormatUint(uint64(h), 16)
}

// BuildHashMaps rebuilds rt64Index from Records. Must be called after any
// direct mutation of Records (e.g. deserialization) that bypasses
// AddReplacement/FixReplacement.
func (d *Database) BuildHashMaps() {
	d.rt64Index = make(map[hash.Content]int, len(d.Records))
	for i, r := range d.Records {
		if h, ok := ParseHexHash(r.Hashes.RT64); ok {
			d.rt64Index[h] = i
		}
	}
}

func (d *Database) ensureIndex() {
	if d.rt64Index == nil {
		d.BuildHashMaps()
	}
}

// AddReplacement inserts or overwrites a record keyed by its RT64 hash,
// returning the record's stable-for-session index.
func (d *Database) AddReplacement(rec Record) int {
	d.ensureIndex()
	h, ok := ParseHexHash(rec.Hashes.RT64)
	if ok {
		if i, exists := d.rt64Index[h]; exists {
			d.Records[i] = rec
			return i
		}
	}
	i := len(d.Records)
	d.Records = append(d.Records, rec)
	if ok {
		d.rt64Index[h] = i
	}
	return i
}

// FixReplacement rekeys the index entry for oldHash to the record's new
// RT64 hash, preserving the record's slot.
func (d *Database) FixReplacement(oldHash hash.Content, rec Record) {
	d.ensureIndex()
	i, ok := d.rt64Index[oldHash]
	cacheerr.Assert(ok, "replacement.FixReplacement", "unknown hash being rekeyed")
	if !ok {
		return
	}
	delete(d.rt64Index, oldHash)
	d.Records[i] = rec
	if h, ok := ParseHexHash(rec.Hashes.RT64); ok {
		d.rt64Index[h] = i
	}
}

// GetReplacement returns the record for hash h, or the zero Record and
// false if unknown.
func (d *Database) GetReplacement(h hash.Content) (Record, bool) {
	d.ensureIndex()
	i, ok := d.rt64Index[h]
	if !ok {
		return Record{}, false
	}
	return d.Records[i], true
}

// RemoveUnusedEntriesFromDatabase drops records with neither an explicit
// path nor a resolved auto-path, compacting the remaining records and
// remapping resolved.RecordIndex accordingly.
func (d *Database) RemoveUnusedEntriesFromDatabase(resolved ResolvedPathMap) {
	kept := make([]Record, 0, len(d.Records))
	remap := make(map[int]int, len(d.Records))
	resolvedIndices := make(map[int]bool, len(resolved))
	for _, rp := range resolved {
		resolvedIndices[rp.RecordIndex] = true
	}
	for i, r := range d.Records {
		if r.Path == "" && !resolvedIndices[i] {
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, r)
	}
	d.Records = kept
	for h, rp := range resolved {
		if ni, ok := remap[rp.RecordIndex]; ok {
			rp.RecordIndex = ni
			resolved[h] = rp
		}
	}
	d.BuildHashMaps()
}

type jsonDatabase struct {
	Configuration Config        `json:"configuration"`
	Textures      []jsonRecord  `json:"textures"`
}

type jsonRecord struct {
	Path   string        `json:"path"`
	Load   LoadPolicy    `json:"load"`
	Life   LifePolicy    `json:"life"`
	Hashes jsonRecordHash `json:"hashes"`
}

// jsonRecordHash accepts the legacy "rt64v1" key as a synonym for "rt64";
// if both are present the current key wins.
type jsonRecordHash struct {
	RT64   string `json:"rt64,omitempty"`
	RT64v1 string `json:"rt64v1,omitempty"`
	Rice   string `json:"rice,omitempty"`
}

// MarshalJSON writes the rt64.json document shape.
func (d *Database) MarshalJSON() ([]byte, error) {
	out := jsonDatabase{Configuration: d.Config}
	out.Textures = make([]jsonRecord, len(d.Records))
	for i, r := range d.Records {
		out.Textures[i] = jsonRecord{
			Path: r.Path,
			Load: r.Load,
			Life: r.Life,
			Hashes: jsonRecordHash{
				RT64: r.Hashes.RT64,
				Rice: r.Hashes.Rice,
			},
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the rt64.json document shape, applying the
// rt64v1 legacy-key fallback.
func (d *Database) UnmarshalJSON(data []byte) error {
	var in jsonDatabase
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode replacement database: %w", err)
	}
	d.Config = in.Configuration
	d.Records = make([]Record, len(in.Textures))
	for i, t := range in.Textures {
		rt64 := t.Hashes.RT64
		if rt64 == "" {
			rt64 = t.Hashes.RT64v1
		}
		d.Records[i] = Record{
			Path: t.Path,
			Load: t.Load,
			Life: t.Life,
			Hashes: Hashes{
				RT64: rt64,
				Rice: t.Hashes.Rice,
			},
		}
	}
	d.BuildHashMaps()
	return nil
}
