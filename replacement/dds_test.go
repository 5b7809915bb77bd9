package replacement

import (
	"encoding/binary"
	"testing"

	"github.com/kirahall/n64texcache/gpu"
)

// buildDX10DDS assembles a minimal DDS file with a DX10 extended header,
// width x height, mipCount levels of BC1 data, each level filled with a
// distinct byte so mip boundaries are easy to assert on in tests.
func buildDX10DDS(width, height, mipCount uint32, dxgiFormat uint32) []byte {
	buf := make([]byte, 128+20)
	binary.LittleEndian.PutUint32(buf[0:4], ddsMagic)
	binary.LittleEndian.PutUint32(buf[4:8], 124)
	binary.LittleEndian.PutUint32(buf[12:16], height)
	binary.LittleEndian.PutUint32(buf[16:20], width)
	binary.LittleEndian.PutUint32(buf[28:32], mipCount)
	binary.LittleEndian.PutUint32(buf[76+8:76+12], fourCCDX10)
	binary.LittleEndian.PutUint32(buf[128:132], dxgiFormat)

	w, h := width, height
	for level := uint32(0); level < mipCount; level++ {
		size := int(gpu.FormatMipSize(gpu.FormatBC1, w, h))
		mip := make([]byte, size)
		for i := range mip {
			mip[i] = byte(level + 1)
		}
		buf = append(buf, mip...)
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return buf
}

func TestDecodeDDSDX10BasicFields(t *testing.T) {
	data := buildDX10DDS(8, 8, 4, dxgiFormatBC1UNorm)

	img, err := DecodeDDS(data, 0, 0)
	if err != nil {
		t.Fatalf("DecodeDDS: %v", err)
	}
	if img.Width != 8 || img.Height != 8 {
		t.Fatalf("got %dx%d, want 8x8", img.Width, img.Height)
	}
	if img.Format != gpu.FormatBC1 {
		t.Fatalf("got format %v, want BC1", img.Format)
	}
	if len(img.Mips) != 4 {
		t.Fatalf("got %d mips, want 4", len(img.Mips))
	}
	for level, mip := range img.Mips {
		for _, b := range mip {
			if b != byte(level+1) {
				t.Fatalf("mip %d contains byte %d, want %d", level, b, level+1)
			}
		}
	}
}

// TestDecodeDDSTruncatesBelowMinMip matches §4.4.4: mip levels below the
// requested (minMipW, minMipH) floor are dropped, keeping at least the
// base level.
func TestDecodeDDSTruncatesBelowMinMip(t *testing.T) {
	data := buildDX10DDS(8, 8, 4, dxgiFormatBC1UNorm)

	img, err := DecodeDDS(data, 4, 4)
	if err != nil {
		t.Fatalf("DecodeDDS: %v", err)
	}
	// levels: 8x8, 4x4, 2x2, 1x1 -- only the first two satisfy >= 4x4.
	if len(img.Mips) != 2 {
		t.Fatalf("got %d mips, want 2", len(img.Mips))
	}
}

func TestDecodeDDSRejectsBadMagic(t *testing.T) {
	data := buildDX10DDS(4, 4, 1, dxgiFormatBC1UNorm)
	data[0] = 0
	if _, err := DecodeDDS(data, 0, 0); err == nil {
		t.Fatal("expected an error for a bad magic number")
	}
}

func TestDecodeDDSRejectsUnsupportedDXGIFormat(t *testing.T) {
	data := buildDX10DDS(4, 4, 1, 999)
	if _, err := DecodeDDS(data, 0, 0); err == nil {
		t.Fatal("expected an error for an unsupported DXGI format")
	}
}
