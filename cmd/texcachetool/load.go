package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/kirahall/n64texcache/replacement"
)

func runLoad(args []string) error {
	fs := pflag.NewFlagSet("load", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: texcachetool load <assets-dir>")
	}
	dir := fs.Arg(0)

	m := replacement.NewMap()
	found, err := m.ReadDatabase(dir)
	if !found {
		fmt.Printf("no %s found in %s (or it failed to parse: %v), treating as an empty database\n",
			replacement.DatabaseFileName, dir, err)
	}

	if err := m.ResolvePaths(dir, false); err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}

	records := m.Database().Records
	resolved := 0
	for _, rec := range records {
		h, ok := replacement.ParseHexHash(rec.Hashes.RT64)
		if !ok {
			continue
		}
		if _, _, ok := m.GetInformationFromHash(h); ok {
			resolved++
		}
	}

	lowMipCount := 0
	lowMipPath := filepath.Join(dir, replacement.LowMipFileName)
	if data, err := os.ReadFile(lowMipPath); err == nil {
		recs, err := replacement.ReadLowMipCache(data)
		if err != nil {
			fmt.Printf("warning: %s: %v\n", lowMipPath, err)
		} else {
			lowMipCount = len(recs)
		}
	}

	fmt.Printf("records:         %d\n", len(records))
	fmt.Printf("resolved paths:  %d\n", resolved)
	fmt.Printf("unresolved:      %d\n", len(records)-resolved)
	fmt.Printf("low-mip entries: %d\n", lowMipCount)
	return nil
}
