// texcachetool exercises the texture cache end to end without an
// emulator attached to it: it can turn a directory of replacement
// assets into a low-mip cache file, summarize what a directory would
// resolve to, or stand the cache up against a fake GPU device and serve
// its live stats dashboard while driving synthetic uploads through it.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "pack":
		err = runPack(os.Args[2:])
	case "load":
		err = runLoad(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "texcachetool: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "texcachetool %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: texcachetool <command> [flags]

commands:
  pack <assets-dir> <out.bin>   build a low-mip cache from a directory of replacement assets
  load <assets-dir>             resolve a replacement directory and print a summary
  stats                         run the cache against a fake GPU device and serve the stats dashboard`)
}
