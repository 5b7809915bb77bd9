package config

import (
	"os"
	"testing"
)

// TestLoadPrecedenceFileThenEnvThenFlags walks the full defaults < file <
// env < flags chain for a single field, confirming each layer overrides
// the one before it.
func TestLoadPrecedenceFileThenEnvThenFlags(t *testing.T) {
	def := Defaults()
	if got := Load(Overrides{}, Overrides{}, Overrides{}); got != def {
		t.Fatalf("expected Load with no overrides to equal Defaults(), got %+v", got)
	}

	depth := 9
	file := Overrides{QueueDepth: &depth}
	got := Load(file, Overrides{}, Overrides{})
	if got.QueueDepth != 9 {
		t.Fatalf("expected file override to apply, got QueueDepth=%d", got.QueueDepth)
	}

	envDepth := 5
	got = Load(file, Overrides{QueueDepth: &envDepth}, Overrides{})
	if got.QueueDepth != 5 {
		t.Fatalf("expected env to override file, got QueueDepth=%d", got.QueueDepth)
	}

	flagDepth := 1
	got = Load(file, Overrides{QueueDepth: &envDepth}, Overrides{QueueDepth: &flagDepth})
	if got.QueueDepth != 1 {
		t.Fatalf("expected flags to override env, got QueueDepth=%d", got.QueueDepth)
	}
}

// TestLoadStatsAddrFlagWinsOverFileEvenWhenFileSetsADifferentValue is
// scenario S7: a stats address given only on the command line must be
// honored even though the settings file names a different one.
func TestLoadStatsAddrFlagWinsOverFileEvenWhenFileSetsADifferentValue(t *testing.T) {
	fileAddr := "127.0.0.1:9000"
	flagAddr := "0.0.0.0:7777"

	got := Load(Overrides{StatsAddr: &fileAddr}, Overrides{}, Overrides{StatsAddr: &flagAddr})
	if got.StatsAddr != flagAddr {
		t.Fatalf("expected flag-supplied StatsAddr to win, got %q", got.StatsAddr)
	}
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	overrides, err := LoadFile("/nonexistent/path/that/does/not/exist.jsonc")
	if err != nil {
		t.Fatalf("expected a missing file to be tolerated, got %v", err)
	}
	if overrides != (Overrides{}) {
		t.Fatalf("expected empty overrides for a missing file, got %+v", overrides)
	}
}

func TestLoadFileParsesJSONCWithComments(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/texcache.jsonc"
	content := []byte(`{
		// development box, not the target hardware
		"streamThreadCount": 2,
		"developerMode": true,
	}`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	overrides, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if overrides.StreamThreadCount == nil || *overrides.StreamThreadCount != 2 {
		t.Fatalf("expected streamThreadCount override of 2, got %+v", overrides.StreamThreadCount)
	}
	if overrides.DeveloperMode == nil || !*overrides.DeveloperMode {
		t.Fatal("expected developerMode override of true")
	}
	if overrides.QueueDepth != nil {
		t.Fatal("expected queueDepth to remain unset")
	}
}

func TestLoadEnvParsesTypedValues(t *testing.T) {
	values := map[string]string{
		EnvPrefix + "QUEUE_DEPTH":            "6",
		EnvPrefix + "REPLACEMENTS_ENABLED":   "false",
		EnvPrefix + "STATS_ADDR":             "localhost:1234",
	}
	lookup := func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}

	overrides, err := LoadEnv(lookup)
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if overrides.QueueDepth == nil || *overrides.QueueDepth != 6 {
		t.Fatalf("expected QueueDepth=6, got %+v", overrides.QueueDepth)
	}
	if overrides.ReplacementsEnabled == nil || *overrides.ReplacementsEnabled {
		t.Fatal("expected ReplacementsEnabled=false")
	}
	if overrides.StatsAddr == nil || *overrides.StatsAddr != "localhost:1234" {
		t.Fatalf("expected StatsAddr override, got %+v", overrides.StatsAddr)
	}
	if overrides.StreamThreadCount != nil {
		t.Fatal("expected StreamThreadCount to remain unset")
	}
}
