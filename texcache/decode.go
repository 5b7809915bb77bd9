package texcache

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/kirahall/n64texcache/cacheerr"
	"github.com/kirahall/n64texcache/gpu"
	"github.com/kirahall/n64texcache/replacement"
)

const (
	magicDDS = 0x20534444
	magicPNG = 0x474E5089
)

// loadAndDecodeAsset reads relativePath from the replacement map's
// current directory and decodes it to a GPU texture, dispatching on the
// file's magic number per §4.4.3/§4.4.4. A nil texture with a nil error
// means the magic number was unrecognized; the caller discards the
// partial shell rather than treating it as a failure.
func (c *Cache) loadAndDecodeAsset(relativePath string, minMipW, minMipH int) (gpu.Texture, error) {
	path := filepath.Join(c.replacements.DirectoryPath(), relativePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.loadAndDecodeAsset", err)
	}
	return c.decodeAssetBytes(data, relativePath, minMipW, minMipH)
}

func (c *Cache) decodeAssetBytes(data []byte, label string, minMipW, minMipH int) (gpu.Texture, error) {
	if len(data) < 4 {
		return nil, nil
	}
	magic := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24

	switch magic {
	case magicDDS:
		return c.decodeDDSAsset(data, label, minMipW, minMipH)
	case magicPNG:
		return c.decodePNGAsset(data, label)
	default:
		return nil, nil
	}
}

// decodeDDSAsset uploads every surviving mip level of a DDS file in a
// single command list, as described in §4.4.4.
func (c *Cache) decodeDDSAsset(data []byte, label string, minMipW, minMipH int) (gpu.Texture, error) {
	img, err := replacement.DecodeDDS(data, minMipW, minMipH)
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.Parse, "texcache.decodeDDSAsset", err)
	}

	tex, err := c.device.CreateTexture(gpu.TextureDesc{
		Dimension: gpu.Dimension2D,
		Format:    img.Format,
		Width:     img.Width,
		Height:    img.Height,
		Depth:     1,
		MipCount:  uint32(len(img.Mips)),
		Label:     label,
	})
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodeDDSAsset", err)
	}

	cl, err := c.device.CreateCommandList()
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodeDDSAsset", err)
	}
	defer cl.Release()

	cl.Barriers(gpu.Barrier{Texture: tex, Stage: gpu.StageCopyDest})

	w, h := img.Width, img.Height
	var buffers []gpu.Buffer
	for level, mip := range img.Mips {
		buf, err := c.device.CreateBuffer(gpu.BufferDesc{Size: uint64(len(mip)), Label: fmt.Sprintf("%s:mip%d", label, level)})
		if err != nil {
			return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodeDDSAsset", err)
		}
		buffers = append(buffers, buf)
		dst, err := buf.Map()
		if err != nil {
			return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodeDDSAsset", err)
		}
		copy(dst, mip)
		buf.Unmap()

		cl.CopyTextureRegion(gpu.CopyRegion{
			SrcBuffer:  buf,
			DstTexture: tex,
			DstMip:     uint32(level),
			Width:      w,
			Height:     h,
		})
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	cl.Barriers(gpu.Barrier{Texture: tex, Stage: gpu.StageShaderRead})

	if err := cl.Submit(c.ctx); err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodeDDSAsset", err)
	}
	for _, buf := range buffers {
		buf.Release()
	}
	return tex, nil
}

// decodePNGAsset decodes a PNG to tightly packed RGBA8 pixels, then
// re-strides them into a row-padded upload buffer matching the device's
// CalculateTextureRowWidthPadding contract, per §4.4.4's raw-RGBA8 path.
func (c *Cache) decodePNGAsset(data []byte, label string) (gpu.Texture, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.Parse, "texcache.decodePNGAsset", err)
	}
	bounds := img.Bounds()
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())
	cacheerr.Assert(width > 0 && height > 0, "texcache.decodePNGAsset", "zero-dimension PNG asset")

	rgba := toRGBA(img)

	tex, err := c.device.CreateTexture(gpu.TextureDesc{
		Dimension: gpu.Dimension2D,
		Format:    gpu.FormatRGBA8,
		Width:     width,
		Height:    height,
		Depth:     1,
		MipCount:  1,
		Label:     label,
	})
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodePNGAsset", err)
	}

	rowBytes := width * uint32(gpu.BytesPerPixel(gpu.FormatRGBA8))
	rowPitch := c.device.CalculateTextureRowWidthPadding(rowBytes)

	buf, err := c.device.CreateBuffer(gpu.BufferDesc{Size: uint64(rowPitch) * uint64(height), Label: label + ":staging"})
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodePNGAsset", err)
	}
	dst, err := buf.Map()
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodePNGAsset", err)
	}
	for row := uint32(0); row < height; row++ {
		srcOff := row * rowBytes
		dstOff := row * rowPitch
		copy(dst[dstOff:dstOff+rowBytes], rgba[srcOff:srcOff+rowBytes])
	}
	buf.Unmap()

	cl, err := c.device.CreateCommandList()
	if err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodePNGAsset", err)
	}
	defer cl.Release()

	cl.Barriers(gpu.Barrier{Texture: tex, Stage: gpu.StageCopyDest})
	cl.CopyTextureRegion(gpu.CopyRegion{
		SrcBuffer:  buf,
		DstTexture: tex,
		Width:      width,
		Height:     height,
		RowPitch:   rowPitch,
	})
	cl.Barriers(gpu.Barrier{Texture: tex, Stage: gpu.StageShaderRead})

	if err := cl.Submit(c.ctx); err != nil {
		return nil, cacheerr.Wrap(cacheerr.IO, "texcache.decodePNGAsset", err)
	}
	buf.Release()
	return tex, nil
}

func toRGBA(img image.Image) []byte {
	if r, ok := img.(*image.RGBA); ok && r.Stride == r.Bounds().Dx()*4 {
		return r.Pix
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]byte, w*h*4)
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out[i+0] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(b >> 8)
			out[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return out
}
