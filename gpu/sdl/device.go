// Package sdl implements gpu.Device on top of an SDL2 renderer
// (github.com/veandco/go-sdl2), the same streaming-texture lifecycle the
// host emulator already uses for its own framebuffer (CreateTexture with
// TEXTUREACCESS_STREAMING, Update, blend mode set once at creation). SDL
// has no compute shader stage, so the TMEM→RGBA8 decode dispatch falls
// back to the same DecodeFunc contract gpu/fake uses — SDL is acting here
// purely as the real accelerated texture object and copy path, which is
// the part of §6.3 that actually needs hardware.
package sdl

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/kirahall/n64texcache/gpu"
)

// DecodeFunc performs the TMEM -> RGBA8 conversion that would otherwise
// run as a compute shader on a backend that has one.
type DecodeFunc func(constants []byte, tmem []byte) []byte

// Device wraps an *sdl.Renderer. The caller owns the renderer's lifetime
// (window creation and the render loop are the host's responsibility, not
// the cache's).
type Device struct {
	renderer *sdl.Renderer
	decode   DecodeFunc
}

// NewDevice wraps renderer. decode may be nil, in which case every
// compute dispatch expands each TMEM byte into an opaque grey RGBA pixel
// (R=G=B=byte, A=0xFF).
func NewDevice(renderer *sdl.Renderer, decode DecodeFunc) *Device {
	if decode == nil {
		decode = func(_ []byte, tmem []byte) []byte {
			out := make([]byte, len(tmem)*4)
			for i, b := range tmem {
				out[i*4], out[i*4+1], out[i*4+2], out[i*4+3] = b, b, b, 0xFF
			}
			return out
		}
	}
	return &Device{renderer: renderer, decode: decode}
}

func sdlPixelFormat(f gpu.Format) (uint32, error) {
	switch f {
	case gpu.FormatRGBA8:
		return uint32(sdl.PIXELFORMAT_ABGR8888), nil
	case gpu.FormatR8:
		return uint32(sdl.PIXELFORMAT_INDEX8), nil
	default:
		return 0, fmt.Errorf("sdl: format %v has no SDL pixel format equivalent", f)
	}
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	format, err := sdlPixelFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	t, err := d.renderer.CreateTexture(format, sdl.TEXTUREACCESS_STREAMING, int32(desc.Width), int32(desc.Height))
	if err != nil {
		return nil, fmt.Errorf("sdl: create texture %q: %w", desc.Label, err)
	}
	if err := t.SetBlendMode(sdl.BLENDMODE_BLEND); err != nil {
		return nil, fmt.Errorf("sdl: set blend mode on %q: %w", desc.Label, err)
	}

	return &Texture{tex: t, desc: desc}, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	return &Buffer{data: make([]byte, desc.Size), label: desc.Label}, nil
}

func (d *Device) CreatePool(desc gpu.PoolDesc) (gpu.Pool, error) {
	return &Pool{}, nil
}

func (d *Device) CreateCommandList() (gpu.CommandList, error) {
	return &CommandList{device: d}, nil
}

func (d *Device) CreateComputePipeline(label string) (gpu.ComputePipeline, error) {
	return &pipeline{label: label}, nil
}

func (d *Device) Capabilities() gpu.Capabilities {
	return gpu.Capabilities{MaxTextureDimension2D: 8192}
}

func (d *Device) SampleCountsSupported(gpu.Format) []int { return []int{1} }

func (d *Device) CalculateTextureRowWidthPadding(rowPitch uint32) uint32 {
	const align = 32
	if rowPitch%align == 0 {
		return rowPitch
	}
	return rowPitch + (align - rowPitch%align)
}

type pipeline struct{ label string }

func (p *pipeline) Label() string { return p.label }
