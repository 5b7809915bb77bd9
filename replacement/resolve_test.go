package replacement

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRiceAutoKeyExtraction(t *testing.T) {
	tests := []struct {
		name    string
		wantKey string
		wantOK  bool
	}{
		{"mario#A1B2C3D4_ciByRGBA.png", "a1b2c3d4", true},
		{"noMarkers.png", "", false},
		{"onlyhash#nounderscore.png", "", false},
		{"under_score#after.png", "", false}, // underscore before '#': out of order
	}
	for _, tt := range tests {
		key, ok := riceAutoKey(tt.name)
		if ok != tt.wantOK || key != tt.wantKey {
			t.Errorf("riceAutoKey(%q) = (%q, %v), want (%q, %v)", tt.name, key, ok, tt.wantKey, tt.wantOK)
		}
	}
}

// TestResolvePathsRice is scenario S2.
func TestResolvePathsRice(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "subdir", "mario#A1B2C3D4_ciByRGBA.png"), []byte("fake"))

	var db Database
	db.Reset()
	db.Config.AutoPath = "rice"
	db.Records = []Record{
		{Hashes: Hashes{RT64: "1234abcd", Rice: "a1b2c3d4"}},
	}
	db.BuildHashMaps()

	resolved, err := db.ResolvePaths(dir, false)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}

	h, _ := ParseHexHash("1234abcd")
	rp, ok := resolved[h]
	if !ok {
		t.Fatal("expected record to resolve")
	}
	want := "subdir/mario#A1B2C3D4_ciByRGBA.png"
	if rp.RelativePath != want {
		t.Fatalf("got relative path %q, want %q", rp.RelativePath, want)
	}
}

func TestResolvePathsExplicitPathProbesExtensionsInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tex.png"), []byte("png"))
	writeFile(t, filepath.Join(dir, "tex.dds"), []byte("dds"))

	var db Database
	db.Reset()
	db.Records = []Record{{Path: "tex.png", Hashes: Hashes{RT64: "aaaa"}}}
	db.BuildHashMaps()

	resolved, err := db.ResolvePaths(dir, false)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	h, _ := ParseHexHash("aaaa")
	rp, ok := resolved[h]
	if !ok {
		t.Fatal("expected record to resolve")
	}
	if rp.RelativePath != "tex.dds" {
		t.Fatalf("expected DDS to win over PNG, got %q", rp.RelativePath)
	}
}

func TestResolvePathsOnlyDDSExcludesPNG(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "tex.png"), []byte("png"))

	var db Database
	db.Reset()
	db.Records = []Record{{Path: "tex.png", Hashes: Hashes{RT64: "aaaa"}}}
	db.BuildHashMaps()

	resolved, err := db.ResolvePaths(dir, true)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(resolved) != 0 {
		t.Fatalf("expected no resolution under onlyDDS, got %+v", resolved)
	}
}

func TestResolvePathsRT64AutoPathProducesNoEntries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "anything#1234_x.dds"), []byte("dds"))

	var db Database
	db.Reset()
	db.Config.AutoPath = "rt64"
	db.Records = []Record{{Hashes: Hashes{RT64: "aaaa"}}}
	db.BuildHashMaps()

	resolved, err := db.ResolvePaths(dir, false)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(resolved) != 0 {
		t.Fatalf("rt64 auto-path is reserved and unimplemented; expected no resolutions, got %+v", resolved)
	}
}

func TestResolvePathsUnresolvedRecordLeftAbsent(t *testing.T) {
	dir := t.TempDir()

	var db Database
	db.Reset()
	db.Records = []Record{{Hashes: Hashes{RT64: "aaaa", Rice: "zzzz"}}}
	db.BuildHashMaps()

	resolved, err := db.ResolvePaths(dir, false)
	if err != nil {
		t.Fatalf("ResolvePaths: %v", err)
	}
	if len(resolved) != 0 {
		t.Fatalf("expected no resolution for an unmatched record, got %+v", resolved)
	}
}
