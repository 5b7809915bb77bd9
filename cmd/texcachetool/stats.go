package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/kirahall/n64texcache/config"
	"github.com/kirahall/n64texcache/gpu/fake"
	"github.com/kirahall/n64texcache/hash"
	"github.com/kirahall/n64texcache/texcache"
)

// runStats starts the cache against an in-process fake GPU device, loads
// an optional replacement directory, and drives a stream of synthetic
// uploads through it so the periodic Stats() lines have something to
// report while the statsview dashboard is served.
// It runs until interrupted.
//
// Its Config is assembled the same layered way a real host would build
// one: an optional HuJSON settings file, then environment variables, then
// flags, each overriding the one before — see config.Load. The settings
// file is unrelated to the replacement directory's rt64.json; it only
// carries process knobs like streamThreadCount and queueDepth.
func runStats(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	rcPath := fs.String("config", ".texcachetoolrc", "HuJSON settings file (streamThreadCount, queueDepth, developerMode, statsAddr, replacementsEnabled)")
	addr := fs.String("addr", "", "address the statsview dashboard listens on (overrides the settings file)")
	assets := fs.String("assets", "", "optional replacement directory to load at startup")
	rate := fs.Duration("rate", 200*time.Millisecond, "interval between synthetic uploads")
	streamThreads := fs.Int("stream-threads", 0, "override streamThreadCount")
	queueDepth := fs.Int("queue-depth", 0, "override queueDepth")
	developerMode := fs.Bool("developer-mode", false, "override developerMode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	fileOverrides, err := config.LoadFile(*rcPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", *rcPath, err)
	}
	envOverrides, err := config.LoadEnv(os.LookupEnv)
	if err != nil {
		return fmt.Errorf("load environment overrides: %w", err)
	}

	var flagOverrides config.Overrides
	if fs.Changed("addr") {
		flagOverrides.StatsAddr = addr
	}
	if fs.Changed("stream-threads") {
		flagOverrides.StreamThreadCount = streamThreads
	}
	if fs.Changed("queue-depth") {
		flagOverrides.QueueDepth = queueDepth
	}
	if fs.Changed("developer-mode") {
		flagOverrides.DeveloperMode = developerMode
	}

	cfg := config.Load(fileOverrides, envOverrides, flagOverrides)
	if cfg.StatsAddr == "" {
		cfg.StatsAddr = ":6064" // this tool's own default; the library default is "off"
	}

	device := fake.NewDevice(nil)
	c, err := texcache.NewCache(device, hash.NoopHasher, nil, cfg)
	if err != nil {
		return fmt.Errorf("start cache: %w", err)
	}
	defer c.Shutdown()

	if *assets != "" {
		if err := c.LoadReplacementDirectory(*assets); err != nil {
			return fmt.Errorf("load %s: %w", *assets, err)
		}
	}

	c.ServeStats()
	fmt.Printf("serving stats dashboard on %s (ctrl-c to stop)\n", cfg.StatsAddr)

	intChan := make(chan os.Signal, 1)
	signal.Notify(intChan, os.Interrupt)

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	var frame uint64
	var next hash.Content
	for {
		select {
		case <-intChan:
			fmt.Println("\r")
			return nil
		case <-ticker.C:
			frame++
			next++
			c.QueueUpload(texcache.TextureUpload{
				Hash:          next,
				CreationFrame: frame,
				TMEM:          []byte{byte(next), byte(next >> 8), byte(next >> 16), byte(next >> 24)},
			})
			if frame%37 == 0 {
				evicted := c.Evict(frame)
				snap := c.Stats()
				fmt.Printf("frame %d: slots=%d upload_q=%d stream_q=%d evicted=%d\n",
					frame, snap.TextureMapSlots, snap.UploadQueueDepth, snap.StreamQueueDepth, len(evicted))
			}
		}
	}
}
