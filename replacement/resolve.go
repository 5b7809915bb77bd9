package replacement

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirahall/n64texcache/hash"
)

// ResolvedPath is the outcome of resolving one database record against a
// directory: the relative path it was matched to, and which record it
// belongs to.
type ResolvedPath struct {
	RelativePath string
	RecordIndex  int
}

// ResolvedPathMap indexes resolved paths by RT64 content hash.
type ResolvedPathMap map[hash.Content]ResolvedPath

// knownExtensions in probe order: DDS always wins over PNG when both
// exist for the same base name.
var knownExtensions = []string{".dds", ".png"}

func allowedExtensions(onlyDDS bool) []string {
	if onlyDDS {
		return knownExtensions[:1]
	}
	return knownExtensions
}

func hasKnownExtension(name string, exts []string) (string, bool) {
	low := strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(low, e) {
			return e, true
		}
	}
	return "", false
}

// riceAutoKey extracts the lowercased substring between the first '#'
// and the last '_' in a filename, the rice naming convention's embedded
// hash. Returns false if the markers are absent or out of order.
func riceAutoKey(filename string) (string, bool) {
	hashIdx := strings.IndexByte(filename, '#')
	if hashIdx < 0 {
		return "", false
	}
	underscoreIdx := strings.LastIndexByte(filename, '_')
	if underscoreIdx < 0 || underscoreIdx <= hashIdx {
		return "", false
	}
	return strings.ToLower(filename[hashIdx+1 : underscoreIdx]), true
}

// ResolvePaths walks dir once, builds an auto-key -> relative-path map
// according to d.Config.AutoPath, then resolves every record in d in
// order: explicit paths are probed directly, empty paths fall back to
// the auto-key map. The scan is deterministic: directory entries are
// visited in sorted order, so duplicate auto-keys resolve to the last
// file visited.
func (d *Database) ResolvePaths(dir string, onlyDDS bool) (ResolvedPathMap, error) {
	exts := allowedExtensions(onlyDDS)
	autoKeyToPath := make(map[string]string)

	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		base := filepath.Base(rel)
		if _, ok := hasKnownExtension(base, exts); !ok {
			continue
		}

		switch d.Config.AutoPath {
		case "rice":
			if key, ok := riceAutoKey(base); ok {
				autoKeyToPath[key] = rel
			}
		case "rt64":
			// Reserved: the rt64 auto-path naming convention is not
			// defined upstream. No entries are produced for it; see
			// SPEC_FULL.md §9, Open Question 1.
		}
	}

	resolved := make(ResolvedPathMap)
	for i, rec := range d.Records {
		h, hasHash := ParseHexHash(rec.Hashes.RT64)

		if rec.Path != "" {
			base := stripKnownExtension(rec.Path)
			if rel, ok := probeExtensions(dir, base, exts); ok {
				if hasHash {
					resolved[h] = ResolvedPath{RelativePath: rel, RecordIndex: i}
				}
				continue
			}
			continue
		}

		var key string
		switch d.Config.AutoPath {
		case "rice":
			key = strings.ToLower(rec.Hashes.Rice)
		case "rt64":
			continue
		default:
			continue
		}
		if key == "" {
			continue
		}
		if rel, ok := autoKeyToPath[key]; ok && hasHash {
			resolved[h] = ResolvedPath{RelativePath: rel, RecordIndex: i}
		}
	}

	return resolved, nil
}

func stripKnownExtension(path string) string {
	low := strings.ToLower(path)
	for _, e := range knownExtensions {
		if strings.HasSuffix(low, e) {
			return path[:len(path)-len(e)]
		}
	}
	return path
}

// probeExtensions tries base+ext for each ext in declared order, case
// insensitively on the extension, and returns the first match's relative
// path with its original on-disk case preserved.
func probeExtensions(dir, base string, exts []string) (string, bool) {
	parent := filepath.Join(dir, filepath.Dir(base))
	stem := filepath.Base(base)
	entries, _ := os.ReadDir(parent)
	for _, e := range exts {
		for _, ent := range entries {
			name := ent.Name()
			if ent.IsDir() || len(name) != len(stem)+len(e) || name[:len(stem)] != stem || strings.ToLower(name[len(stem):]) != e {
				continue
			}
			rel, err := filepath.Rel(dir, filepath.Join(parent, name))
			if err != nil {
				continue
			}
			return filepath.ToSlash(rel), true
		}
	}
	return "", false
}
