package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	ximagedraw "golang.org/x/image/draw"

	"github.com/kirahall/n64texcache/replacement"
)

// lowMipPixelBudget is the pixel-count ceiling a kept mip level must fall
// at or under to be written into the low-mip cache. The cache does not
// consult it: it truncates a streamed DDS chain by the dimensions of the
// texture being replaced.
const lowMipPixelBudget = 96 * 96

func runPack(args []string) error {
	fs := pflag.NewFlagSet("pack", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: texcachetool pack <assets-dir> <out.bin>")
	}
	dir, outPath := fs.Arg(0), fs.Arg(1)

	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		names = append(names, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(names)

	var records []replacement.LowMipRecord
	var skipped int
	for _, path := range names {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		low := strings.ToLower(rel)

		switch {
		case strings.HasSuffix(low, ".dds"):
			rec, ok, err := packDDS(path, rel)
			if err != nil {
				return fmt.Errorf("pack %s: %w", rel, err)
			}
			if !ok {
				skipped++
				continue
			}
			records = append(records, rec)
		case strings.HasSuffix(low, ".png"):
			rec, err := packPNG(path, rel)
			if err != nil {
				return fmt.Errorf("pack %s: %w", rel, err)
			}
			records = append(records, rec)
		}
	}

	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "texcachetool pack: skipped %d asset(s) whose mip chain never reaches %dx%d pixels\n",
			skipped, 96, 96)
	}

	var buf bytes.Buffer
	if err := replacement.WriteLowMipCache(&buf, records); err != nil {
		return fmt.Errorf("encode low-mip cache: %w", err)
	}

	if err := writeFileAtomic(outPath, buf.Bytes()); err != nil {
		return err
	}
	fmt.Printf("wrote %d low-mip entries to %s\n", len(records), outPath)
	return nil
}

// packDDS selects the contiguous tail of rel's mip chain whose pixel
// count is at or under lowMipPixelBudget, keeping the block-compressed
// bytes as-is: every level in a DDS mip chain is already a correctly
// downsampled version of the one above it, so there is nothing for
// golang.org/x/image/draw to do here. ok is false if no level in the
// chain ever falls under the budget.
func packDDS(path, rel string) (replacement.LowMipRecord, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return replacement.LowMipRecord{}, false, err
	}

	img, err := replacement.DecodeDDS(data, 0, 0)
	if err != nil {
		return replacement.LowMipRecord{}, false, err
	}

	w, h := int(img.Width), int(img.Height)
	firstSmall := -1
	for i := range img.Mips {
		if w*h <= lowMipPixelBudget {
			firstSmall = i
			break
		}
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
	}
	if firstSmall < 0 {
		return replacement.LowMipRecord{}, false, nil
	}

	return replacement.LowMipRecord{
		Width:      uint32(w),
		Height:     uint32(h),
		DXGIFormat: img.DXGIFormat,
		Path:       rel,
		Mips:       img.Mips[firstSmall:],
	}, true, nil
}

// dxgiFormatR8G8B8A8UNorm must match the private constant of the same
// name in replacement/dds.go; it is the only uncompressed DXGI format
// that package's format table recognizes.
const dxgiFormatR8G8B8A8UNorm = 28

// packPNG has no precomputed mip chain to select from, so it is the one
// place this tool actually exercises golang.org/x/image/draw: it
// downsamples the decoded image directly to each power-of-two size from
// the first one at or under the pixel budget down to 1x1.
func packPNG(path, rel string) (replacement.LowMipRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return replacement.LowMipRecord{}, err
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return replacement.LowMipRecord{}, err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	for w*h > lowMipPixelBudget {
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
	}

	rec := replacement.LowMipRecord{
		Width:      uint32(w),
		Height:     uint32(h),
		DXGIFormat: dxgiFormatR8G8B8A8UNorm,
		Path:       rel,
	}

	for {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		ximagedraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, ximagedraw.Over, nil)
		rec.Mips = append(rec.Mips, dst.Pix)
		if w == 1 && h == 1 {
			break
		}
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
	}

	return rec, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// writeFileAtomic mirrors the write-new/rename-old/rename-new sequence
// the replacement database uses, so a crash mid-pack never leaves a
// truncated low-mip cache at outPath.
func writeFileAtomic(outPath string, data []byte) error {
	newPath := outPath + ".new"
	oldPath := outPath + ".old"

	if err := os.WriteFile(newPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", newPath, err)
	}
	if _, err := os.Stat(outPath); err == nil {
		if err := os.Rename(outPath, oldPath); err != nil {
			return fmt.Errorf("rename %s to %s: %w", outPath, oldPath, err)
		}
	}
	if err := os.Rename(newPath, outPath); err != nil {
		return fmt.Errorf("rename %s to %s: %w", newPath, outPath, err)
	}
	return nil
}
