package replacement

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/gpu"
)

const (
	lowMipMagic   = 0x434D4F4C // 'LOMC'
	lowMipVersion = 1
	lowMipAlign   = 16
)

// LowMipRecord is one entry of the low-mip cache container: a handful of
// the smallest mips of a replacement texture, small enough to bundle into
// a single file loaded eagerly at session start.
type LowMipRecord struct {
	Width, Height uint32
	DXGIFormat    uint32
	Path          string
	// Mips holds each mip's actual (unpadded) bytes, largest first.
	Mips [][]byte
}

func padLen(n int) int {
	if n%lowMipAlign == 0 {
		return 0
	}
	return lowMipAlign - n%lowMipAlign
}

// WriteLowMipCache serializes records to w in the wire format consumed by
// ReadLowMipCache: a concatenation of fixed headers, mip size tables, path
// strings, and mip payloads, each aligned to a 16-byte boundary.
func WriteLowMipCache(w io.Writer, records []LowMipRecord) error {
	for _, rec := range records {
		if err := writeLowMipRecord(w, rec); err != nil {
			return cacheerr.Wrap(cacheerr.IO, "replacement.WriteLowMipCache", err)
		}
	}
	return nil
}

func writeLowMipRecord(w io.Writer, rec LowMipRecord) error {
	var u32 [4]byte

	putU32 := func(v uint32) error {
		binary.LittleEndian.PutUint32(u32[:], v)
		_, err := w.Write(u32[:])
		return err
	}

	pathBytes := []byte(rec.Path)
	header := []uint32{
		lowMipMagic,
		lowMipVersion,
		rec.Width,
		rec.Height,
		rec.DXGIFormat,
		uint32(len(rec.Mips)),
		uint32(len(pathBytes)),
	}
	for _, v := range header {
		if err := putU32(v); err != nil {
			return err
		}
	}

	for _, mip := range rec.Mips {
		padded := len(mip) + padLen(len(mip))
		if err := putU32(uint32(padded)); err != nil {
			return err
		}
	}

	if _, err := w.Write(pathBytes); err != nil {
		return err
	}
	if err := writePad(w, padLen(len(pathBytes))); err != nil {
		return err
	}

	for _, mip := range rec.Mips {
		if _, err := w.Write(mip); err != nil {
			return err
		}
		if err := writePad(w, padLen(len(mip))); err != nil {
			return err
		}
	}
	return nil
}

func writePad(w io.Writer, n int) error {
	if n == 0 {
		return nil
	}
	_, err := w.Write(make([]byte, n))
	return err
}

// ReadLowMipCache parses data sequentially into records. A record with an
// unrecognized magic or a version greater than 1 stops processing — the
// records parsed so far are returned without error, matching the wire
// format's forward-compatibility contract. A record that claims more
// bytes than remain in data is a Parse error.
func ReadLowMipCache(data []byte) ([]LowMipRecord, error) {
	var records []LowMipRecord
	off := 0
	for off < len(data) {
		rec, next, ok, err := readLowMipRecord(data, off)
		if err != nil {
			return records, cacheerr.Wrap(cacheerr.Parse, "replacement.ReadLowMipCache", err)
		}
		if !ok {
			break
		}
		records = append(records, rec)
		off = next
	}
	return records, nil
}

func readLowMipRecord(data []byte, off int) (LowMipRecord, int, bool, error) {
	const headerSize = 7 * 4
	if off+headerSize > len(data) {
		return LowMipRecord{}, 0, false, nil
	}

	readU32 := func(o int) uint32 { return binary.LittleEndian.Uint32(data[o : o+4]) }

	magic := readU32(off)
	version := readU32(off + 4)
	if magic != lowMipMagic || version > lowMipVersion {
		return LowMipRecord{}, 0, false, nil
	}

	rec := LowMipRecord{
		Width:      readU32(off + 8),
		Height:     readU32(off + 12),
		DXGIFormat: readU32(off + 16),
	}
	mipCount := readU32(off + 20)
	pathLength := readU32(off + 24)

	cursor := off + headerSize
	mipSizes := make([]uint32, mipCount)
	for i := range mipSizes {
		if cursor+4 > len(data) {
			return LowMipRecord{}, 0, false, fmt.Errorf("truncated mip size table")
		}
		mipSizes[i] = readU32(cursor)
		cursor += 4
	}

	if cursor+int(pathLength) > len(data) {
		return LowMipRecord{}, 0, false, fmt.Errorf("truncated path")
	}
	rec.Path = string(data[cursor : cursor+int(pathLength)])
	cursor += int(pathLength) + padLen(int(pathLength))

	// mipSizes stores each mip's padded length, which is how far the
	// cursor must advance; the real payload length is derived from the
	// format and this level's dimensions, the same formula the DDS
	// decoder uses, since the wire format deliberately doesn't repeat it.
	format, _ := formatFromDXGI(rec.DXGIFormat)
	w, h := int(rec.Width), int(rec.Height)
	rec.Mips = make([][]byte, mipCount)
	for i, padded := range mipSizes {
		if cursor+int(padded) > len(data) {
			return LowMipRecord{}, 0, false, fmt.Errorf("truncated mip %d data", i)
		}
		actual := blockCompressedMipSize(format, w, h)
		if actual > int(padded) {
			actual = int(padded)
		}
		rec.Mips[i] = data[cursor : cursor+actual]
		cursor += int(padded)
		w = maxInt(1, w/2)
		h = maxInt(1, h/2)
	}

	return rec, cursor, true, nil
}

// LoadLowMipCache decodes a low-mip cache file and uploads every record's
// mips into a GPU texture via device, returning the textures keyed by
// relative path. Matches §4.4.5: a single command list carries every
// record's barriers and copy-region commands.
func LoadLowMipCache(ctx context.Context, device gpu.Device, data []byte) (map[string]gpu.Texture, error) {
	records, err := ReadLowMipCache(data)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return map[string]gpu.Texture{}, nil
	}

	out := make(map[string]gpu.Texture, len(records))
	cl, err := device.CreateCommandList()
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "replacement.LoadLowMipCache", err)
	}
	defer cl.Release()

	var textures []gpu.Texture
	var buffers []gpu.Buffer

	for _, rec := range records {
		tex, err := device.CreateTexture(gpu.TextureDesc{
			Dimension: gpu.Dimension2D,
			Format:    formatFromRecord(rec),
			Width:     rec.Width,
			Height:    rec.Height,
			Depth:     1,
			MipCount:  uint32(len(rec.Mips)),
			Label:     "lowmip:" + rec.Path,
		})
		if err != nil {
			return nil, cacheerr.Wrap(cacheerr.IO, "replacement.LoadLowMipCache", err)
		}
		textures = append(textures, tex)

		cl.Barriers(gpu.Barrier{Texture: tex, Stage: gpu.StageCopyDest})

		w, h := int(rec.Width), int(rec.Height)
		for level, mip := range rec.Mips {
			buf, err := device.CreateBuffer(gpu.BufferDesc{Size: uint64(len(mip)), Label: fmt.Sprintf("lowmip:%s:mip%d", rec.Path, level)})
			if err != nil {
				return nil, cacheerr.Wrap(cacheerr.IO, "replacement.LoadLowMipCache", err)
			}
			buffers = append(buffers, buf)
			dst, err := buf.Map()
			if err != nil {
				return nil, cacheerr.Wrap(cacheerr.IO, "replacement.LoadLowMipCache", err)
			}
			copy(dst, mip)
			buf.Unmap()

			cl.CopyTextureRegion(gpu.CopyRegion{
				SrcBuffer:  buf,
				DstTexture: tex,
				DstMip:     uint32(level),
				Width:      uint32(w),
				Height:     uint32(h),
			})
			w = maxInt(1, w/2)
			h = maxInt(1, h/2)
		}

		cl.Barriers(gpu.Barrier{Texture: tex, Stage: gpu.StageShaderRead})
		out[rec.Path] = tex
	}

	if err := cl.Submit(ctx); err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "replacement.LoadLowMipCache", err)
	}
	for _, buf := range buffers {
		buf.Release()
	}
	return out, nil
}

func formatFromRecord(rec LowMipRecord) gpu.Format {
	f, err := formatFromDXGI(rec.DXGIFormat)
	if err != nil {
		return gpu.FormatUnknown
	}
	return f
}
