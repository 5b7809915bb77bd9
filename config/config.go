// Package config loads texcache.Config from the same layered sources the
// pack's own CLI tools use: a JSONC settings file (tolerant of comments,
// via tailscale/hujson), environment variables, and command-line flags,
// applied in that order so each later source overrides the former.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/tailscale/hujson"
)

// Config is the set of process-level knobs the texture cache reads at
// startup. The zero value is not meaningful; use Defaults.
type Config struct {
	StreamThreadCount   int    `json:"streamThreadCount"`
	QueueDepth          int    `json:"queueDepth"`
	DeveloperMode       bool   `json:"developerMode"`
	StatsAddr           string `json:"statsAddr"`
	ReplacementsEnabled bool   `json:"replacementsEnabled"`
}

// Defaults returns the configuration used when no file, environment
// variable, or flag overrides a field.
func Defaults() Config {
	return Config{
		StreamThreadCount:   4,
		QueueDepth:          2,
		DeveloperMode:       false,
		StatsAddr:           "",
		ReplacementsEnabled: true,
	}
}

// Overrides is a sparse set of values to apply on top of whatever was
// already loaded; a nil field means "not set at this layer". Load applies
// fileOverrides then envOverrides then flagOverrides, in that order, over
// Defaults(), matching the file < env < flags precedence in §6.5.
type Overrides struct {
	StreamThreadCount   *int
	QueueDepth          *int
	DeveloperMode       *bool
	StatsAddr           *string
	ReplacementsEnabled *bool
}

func (o Overrides) apply(cfg Config) Config {
	if o.StreamThreadCount != nil {
		cfg.StreamThreadCount = *o.StreamThreadCount
	}
	if o.QueueDepth != nil {
		cfg.QueueDepth = *o.QueueDepth
	}
	if o.DeveloperMode != nil {
		cfg.DeveloperMode = *o.DeveloperMode
	}
	if o.StatsAddr != nil {
		cfg.StatsAddr = *o.StatsAddr
	}
	if o.ReplacementsEnabled != nil {
		cfg.ReplacementsEnabled = *o.ReplacementsEnabled
	}
	return cfg
}

// LoadFile reads a JSONC settings file (comments and trailing commas
// allowed) into an Overrides, where every field present in the document
// becomes a non-nil override. A missing file is not an error — it simply
// yields an empty Overrides, since the config file layer is optional.
func LoadFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overrides{}, nil
		}
		return Overrides{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Overrides{}, fmt.Errorf("config: parse %s as JSONC: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(standardized, &raw); err != nil {
		return Overrides{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var out Overrides
	if v, ok := raw["streamThreadCount"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return Overrides{}, fmt.Errorf("config: streamThreadCount: %w", err)
		}
		out.StreamThreadCount = &n
	}
	if v, ok := raw["queueDepth"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil {
			return Overrides{}, fmt.Errorf("config: queueDepth: %w", err)
		}
		out.QueueDepth = &n
	}
	if v, ok := raw["developerMode"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return Overrides{}, fmt.Errorf("config: developerMode: %w", err)
		}
		out.DeveloperMode = &b
	}
	if v, ok := raw["statsAddr"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return Overrides{}, fmt.Errorf("config: statsAddr: %w", err)
		}
		out.StatsAddr = &s
	}
	if v, ok := raw["replacementsEnabled"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return Overrides{}, fmt.Errorf("config: replacementsEnabled: %w", err)
		}
		out.ReplacementsEnabled = &b
	}
	return out, nil
}

// EnvPrefix is prepended to every environment variable name Overrides
// reads, e.g. TEXCACHE_STATS_ADDR.
const EnvPrefix = "TEXCACHE_"

// LoadEnv reads the same fields from environment variables named
// EnvPrefix + upper-snake-case field name.
func LoadEnv(lookup func(string) (string, bool)) (Overrides, error) {
	var out Overrides
	if v, ok := lookup(EnvPrefix + "STREAM_THREAD_COUNT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Overrides{}, fmt.Errorf("config: %sSTREAM_THREAD_COUNT: %w", EnvPrefix, err)
		}
		out.StreamThreadCount = &n
	}
	if v, ok := lookup(EnvPrefix + "QUEUE_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Overrides{}, fmt.Errorf("config: %sQUEUE_DEPTH: %w", EnvPrefix, err)
		}
		out.QueueDepth = &n
	}
	if v, ok := lookup(EnvPrefix + "DEVELOPER_MODE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Overrides{}, fmt.Errorf("config: %sDEVELOPER_MODE: %w", EnvPrefix, err)
		}
		out.DeveloperMode = &b
	}
	if v, ok := lookup(EnvPrefix + "STATS_ADDR"); ok {
		out.StatsAddr = &v
	}
	if v, ok := lookup(EnvPrefix + "REPLACEMENTS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Overrides{}, fmt.Errorf("config: %sREPLACEMENTS_ENABLED: %w", EnvPrefix, err)
		}
		out.ReplacementsEnabled = &b
	}
	return out, nil
}

// Load applies Defaults(), then file, then env, then flags, in that
// order, matching the precedence in §6.5: defaults < file < env < flags.
func Load(file, env, flags Overrides) Config {
	cfg := Defaults()
	cfg = file.apply(cfg)
	cfg = env.apply(cfg)
	cfg = flags.apply(cfg)
	return cfg
}
