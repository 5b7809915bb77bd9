package replacement

import (
	"encoding/binary"
	"fmt"

	"github.com/kirahall/n64texcache/gpu"
)

const ddsMagic = 0x20534444 // "DDS "

const fourCCDX10 = 0x30315844 // "DX10"

// dxgiFormat values this package understands; anything else in a DX10
// header is rejected rather than guessed at.
const (
	dxgiFormatBC1UNorm = 71
	dxgiFormatBC2UNorm = 74
	dxgiFormatBC3UNorm = 77
	dxgiFormatBC4UNorm = 80
	dxgiFormatBC5UNorm = 83
	dxgiFormatBC7UNorm = 98

	// dxgiFormatR8G8B8A8UNorm is the uncompressed format the low-mip
	// packer falls back to for assets it cannot keep block-compressed
	// (plain PNG replacements have no BC mip chain to select from).
	dxgiFormatR8G8B8A8UNorm = 28
)

// DDSImage is a decoded DDS asset: its declared dimensions, GPU format,
// and one byte slice per mip level, largest first.
type DDSImage struct {
	Width, Height uint32
	Format        gpu.Format
	DXGIFormat    uint32
	Mips          [][]byte
}

// DecodeDDS parses a DDS file's header and mip chain from data. Mip
// levels whose width or height falls below (minMipW, minMipH) are
// dropped from the returned image — the cache never uploads a mip finer
// than the destination texture needs.
func DecodeDDS(data []byte, minMipW, minMipH int) (*DDSImage, error) {
	if len(data) < 128 {
		return nil, fmt.Errorf("dds: file too short for header")
	}
	if binary.LittleEndian.Uint32(data[0:4]) != ddsMagic {
		return nil, fmt.Errorf("dds: bad magic")
	}

	headerSize := binary.LittleEndian.Uint32(data[4:8])
	if headerSize != 124 {
		return nil, fmt.Errorf("dds: unexpected header size %d", headerSize)
	}

	height := binary.LittleEndian.Uint32(data[12:16])
	width := binary.LittleEndian.Uint32(data[16:20])
	mipCount := binary.LittleEndian.Uint32(data[28:32])
	if mipCount == 0 {
		mipCount = 1
	}

	// DDS_PIXELFORMAT starts at offset 76 (dwSize, dwFlags, dwFourCC, ...);
	// dwFourCC is the third DWORD, at +8.
	pfFourCC := binary.LittleEndian.Uint32(data[76+8 : 76+12])

	cursor := 128
	var dxgiFormat uint32
	var format gpu.Format

	if pfFourCC == fourCCDX10 {
		if len(data) < cursor+20 {
			return nil, fmt.Errorf("dds: truncated DX10 header")
		}
		dxgiFormat = binary.LittleEndian.Uint32(data[cursor : cursor+4])
		cursor += 20
		f, err := formatFromDXGI(dxgiFormat)
		if err != nil {
			return nil, err
		}
		format = f
	} else {
		f, dxgi, err := formatFromFourCC(pfFourCC)
		if err != nil {
			return nil, err
		}
		format = f
		dxgiFormat = dxgi
	}

	mips := make([][]byte, 0, mipCount)
	w, h := int(width), int(height)
	for level := uint32(0); level < mipCount; level++ {
		size := blockCompressedMipSize(format, w, h)
		if cursor+size > len(data) {
			return nil, fmt.Errorf("dds: truncated mip data at level %d", level)
		}
		if w >= minMipW && h >= minMipH || level == 0 {
			mips = append(mips, data[cursor:cursor+size])
		} else {
			break
		}
		cursor += size
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
	}

	return &DDSImage{Width: width, Height: height, Format: format, DXGIFormat: dxgiFormat, Mips: mips}, nil
}

func formatFromDXGI(v uint32) (gpu.Format, error) {
	switch v {
	case dxgiFormatBC1UNorm:
		return gpu.FormatBC1, nil
	case dxgiFormatBC2UNorm:
		return gpu.FormatBC2, nil
	case dxgiFormatBC3UNorm:
		return gpu.FormatBC3, nil
	case dxgiFormatBC4UNorm:
		return gpu.FormatBC4, nil
	case dxgiFormatBC5UNorm:
		return gpu.FormatBC5, nil
	case dxgiFormatBC7UNorm:
		return gpu.FormatBC7, nil
	case dxgiFormatR8G8B8A8UNorm:
		return gpu.FormatRGBA8, nil
	default:
		return gpu.FormatUnknown, fmt.Errorf("dds: unsupported DXGI format %d", v)
	}
}

func formatFromFourCC(fourCC uint32) (gpu.Format, uint32, error) {
	switch fourCC {
	case 0x31545844: // "DXT1"
		return gpu.FormatBC1, dxgiFormatBC1UNorm, nil
	case 0x33545844: // "DXT3"
		return gpu.FormatBC2, dxgiFormatBC2UNorm, nil
	case 0x35545844: // "DXT5"
		return gpu.FormatBC3, dxgiFormatBC3UNorm, nil
	default:
		return gpu.FormatUnknown, 0, fmt.Errorf("dds: unsupported fourCC 0x%08x", fourCC)
	}
}

// blockCompressedMipSize returns the byte size of one mip level at w x h
// for the given block-compressed format.
func blockCompressedMipSize(f gpu.Format, w, h int) int {
	return int(gpu.FormatMipSize(f, uint32(w), uint32(h)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
