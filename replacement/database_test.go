package replacement

import "testing"

func TestAddReplacementOverwritesByHash(t *testing.T) {
	var db Database
	db.Reset()

	i1 := db.AddReplacement(Record{Path: "a.dds", Load: LoadPreload, Hashes: Hashes{RT64: "abcd"}})
	i2 := db.AddReplacement(Record{Path: "b.dds", Load: LoadStream, Hashes: Hashes{RT64: "abcd"}})

	if i1 != i2 {
		t.Fatalf("expected overwrite to reuse index %d, got %d", i1, i2)
	}
	if len(db.Records) != 1 {
		t.Fatalf("expected a single record, got %d", len(db.Records))
	}
	if db.Records[0].Path != "b.dds" {
		t.Fatalf("expected overwritten path b.dds, got %q", db.Records[0].Path)
	}
}

func TestFixReplacementRekeysPreservingSlot(t *testing.T) {
	var db Database
	db.Reset()

	i := db.AddReplacement(Record{Path: "a.dds", Hashes: Hashes{RT64: "1111"}})
	oldHash, _ := ParseHexHash("1111")
	db.FixReplacement(oldHash, Record{Path: "a.dds", Hashes: Hashes{RT64: "2222"}})

	if _, ok := db.GetReplacement(oldHash); ok {
		t.Fatal("old hash should no longer resolve")
	}
	newHash, _ := ParseHexHash("2222")
	rec, ok := db.GetReplacement(newHash)
	if !ok {
		t.Fatal("new hash should resolve")
	}
	if rec.Path != "a.dds" {
		t.Fatalf("expected slot's path preserved, got %q", rec.Path)
	}
	got := -1
	for idx, r := range db.Records {
		if r.Hashes.RT64 == "2222" {
			got = idx
		}
	}
	if got != i {
		t.Fatalf("expected rekeyed record to stay at index %d, got %d", i, got)
	}
}

func TestGetReplacementMissIsZeroValue(t *testing.T) {
	var db Database
	db.Reset()
	rec, ok := db.GetReplacement(0xDEAD)
	if ok {
		t.Fatal("expected miss")
	}
	if rec != (Record{}) {
		t.Fatalf("expected zero-value record on miss, got %+v", rec)
	}
}

// TestDatabaseJSONRoundTrip is property 7: ReadDatabase after
// SaveDatabase reproduces an equivalent database, including tolerance
// for the legacy rt64v1 hash key on the way in.
func TestDatabaseJSONRoundTrip(t *testing.T) {
	var db Database
	db.Config = Config{AutoPath: "rice", ConfigurationVersion: 2, HashVersion: 2}
	db.Records = []Record{
		{Path: "tex/a.dds", Load: LoadPreload, Life: LifePermanent, Hashes: Hashes{RT64: "aabbcc", Rice: "ff00"}},
		{Path: "", Load: LoadStream, Life: LifeAge, Hashes: Hashes{RT64: "112233"}},
	}
	db.BuildHashMaps()

	data, err := db.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var round Database
	if err := round.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if round.Config != db.Config {
		t.Fatalf("config mismatch: got %+v want %+v", round.Config, db.Config)
	}
	if len(round.Records) != len(db.Records) {
		t.Fatalf("record count mismatch: got %d want %d", len(round.Records), len(db.Records))
	}
	for i := range db.Records {
		if round.Records[i] != db.Records[i] {
			t.Fatalf("record %d mismatch: got %+v want %+v", i, round.Records[i], db.Records[i])
		}
	}

	for _, r := range db.Records {
		h, _ := ParseHexHash(r.Hashes.RT64)
		if _, ok := round.GetReplacement(h); !ok {
			t.Fatalf("hash map not reconstructed for %s", r.Hashes.RT64)
		}
	}
}

func TestDatabaseUnmarshalAcceptsLegacyRT64v1Key(t *testing.T) {
	data := []byte(`{
		"configuration": {"autoPath": "rice", "configurationVersion": 2, "hashVersion": 2},
		"textures": [
			{"path": "x.dds", "load": "preload", "life": "permanent", "hashes": {"rt64v1": "deadbeef"}}
		]
	}`)
	var db Database
	if err := db.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if db.Records[0].Hashes.RT64 != "deadbeef" {
		t.Fatalf("expected rt64v1 to alias into RT64, got %q", db.Records[0].Hashes.RT64)
	}

	h, _ := ParseHexHash("deadbeef")
	if _, ok := db.GetReplacement(h); !ok {
		t.Fatal("expected legacy-keyed hash to be indexed")
	}
}

func TestDatabaseUnmarshalCurrentKeyWinsOverLegacy(t *testing.T) {
	data := []byte(`{
		"configuration": {"autoPath": "rice", "configurationVersion": 2, "hashVersion": 2},
		"textures": [
			{"path": "x.dds", "hashes": {"rt64": "1111", "rt64v1": "2222"}}
		]
	}`)
	var db Database
	if err := db.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if db.Records[0].Hashes.RT64 != "1111" {
		t.Fatalf("expected current key to win, got %q", db.Records[0].Hashes.RT64)
	}
}

func TestRemoveUnusedEntriesFromDatabase(t *testing.T) {
	var db Database
	db.Reset()
	db.Records = []Record{
		{Hashes: Hashes{RT64: "1111"}},              // unused: no path, not resolved
		{Path: "kept.dds", Hashes: Hashes{RT64: "2222"}},
		{Hashes: Hashes{RT64: "3333"}},              // resolved via auto-path
	}
	db.BuildHashMaps()

	h3, _ := ParseHexHash("3333")
	resolved := ResolvedPathMap{h3: {RelativePath: "auto.dds", RecordIndex: 2}}

	db.RemoveUnusedEntriesFromDatabase(resolved)

	if len(db.Records) != 2 {
		t.Fatalf("expected 2 surviving records, got %d", len(db.Records))
	}
	rp := resolved[h3]
	if db.Records[rp.RecordIndex].Hashes.RT64 != "3333" {
		t.Fatalf("expected remapped record index to point at hash 3333, got %+v", db.Records[rp.RecordIndex])
	}
}
