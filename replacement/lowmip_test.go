package replacement

import (
	"bytes"
	"context"
	"testing"

	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/gpu/fake"
)

func fillBytes(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

// TestLowMipContainerRoundTrip is scenario S5: widths, heights, mip
// counts, and formats survive a write/read round trip, and the reader
// recovers each mip's exact payload bytes independent of the alignment
// padding the writer inserted.
func TestLowMipContainerRoundTrip(t *testing.T) {
	records := []LowMipRecord{
		{
			Width: 8, Height: 8, DXGIFormat: dxgiFormatBC1UNorm, Path: "tex/a.dds",
			Mips: [][]byte{fillBytes(32, 1), fillBytes(8, 2)},
		},
		{
			Width: 4, Height: 4, DXGIFormat: dxgiFormatBC1UNorm, Path: "tex/b.dds",
			Mips: [][]byte{fillBytes(8, 3)},
		},
	}

	var buf bytes.Buffer
	if err := WriteLowMipCache(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadLowMipCache(buf.Bytes())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i, want := range records {
		if got[i].Width != want.Width || got[i].Height != want.Height {
			t.Fatalf("record %d dims: got %dx%d want %dx%d", i, got[i].Width, got[i].Height, want.Width, want.Height)
		}
		if got[i].DXGIFormat != want.DXGIFormat {
			t.Fatalf("record %d format mismatch", i)
		}
		if got[i].Path != want.Path {
			t.Fatalf("record %d path: got %q want %q", i, got[i].Path, want.Path)
		}
		if len(got[i].Mips) != len(want.Mips) {
			t.Fatalf("record %d mip count: got %d want %d", i, len(got[i].Mips), len(want.Mips))
		}
		for m := range want.Mips {
			if !bytes.Equal(got[i].Mips[m], want.Mips[m]) {
				t.Fatalf("record %d mip %d payload mismatch: got %v want %v", i, m, got[i].Mips[m], want.Mips[m])
			}
		}
	}
}

func TestLowMipContainerStopsOnUnknownMagic(t *testing.T) {
	records := []LowMipRecord{
		{Width: 4, Height: 4, DXGIFormat: dxgiFormatBC1UNorm, Path: "a.dds", Mips: [][]byte{fillBytes(8, 1)}},
	}
	var buf bytes.Buffer
	if err := WriteLowMipCache(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}
	garbage := make([]byte, 7*4) // a full header, so the magic check is what stops the reader
	copy(garbage, []byte{0xFF, 0xFF, 0xFF, 0xFF, 1, 0, 0, 0})
	buf.Write(garbage)

	got, err := ReadLowMipCache(buf.Bytes())
	if err != nil {
		t.Fatalf("expected no error, trailing garbage just stops processing: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the one well-formed record, got %d", len(got))
	}
}

// TestLoadLowMipCacheUploadsToDevice exercises the GPU-facing half of S5:
// the container is turned into real gpu.Texture objects via a single
// command list.
func TestLoadLowMipCacheUploadsToDevice(t *testing.T) {
	records := []LowMipRecord{
		{Width: 8, Height: 8, DXGIFormat: dxgiFormatBC1UNorm, Path: "tex/a.dds", Mips: [][]byte{fillBytes(32, 1), fillBytes(8, 2)}},
	}
	var buf bytes.Buffer
	if err := WriteLowMipCache(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	device := fake.NewDevice(nil)
	textures, err := LoadLowMipCache(context.Background(), device, buf.Bytes())
	if err != nil {
		t.Fatalf("LoadLowMipCache: %v", err)
	}

	tex, ok := textures["tex/a.dds"]
	if !ok {
		t.Fatal("expected a texture keyed by relative path")
	}
	if tex.Width() != 8 || tex.Height() != 8 {
		t.Fatalf("got %dx%d, want 8x8", tex.Width(), tex.Height())
	}
	if tex.MipCount() != 2 {
		t.Fatalf("got mip count %d, want 2", tex.MipCount())
	}
	if tex.Format() != gpu.FormatBC1 {
		t.Fatalf("got format %v, want BC1", tex.Format())
	}
}
