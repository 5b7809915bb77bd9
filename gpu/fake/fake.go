// Package fake implements gpu.Device entirely in Go heap memory, with no
// real GPU underneath. The module's GPU-facing packages are tested against
// it: it performs the same barrier/copy/dispatch bookkeeping the real
// pipeline describes, so tests can assert ordering invariants (a copy into
// a texture must follow a COPY_DEST barrier on that texture; other barrier
// stages are recorded on the texture but not checked) without touching
// hardware or requiring -race-unsafe cgo bindings.
package fake

import (
	"fmt"
	"sync"

	"github.com/kirahall/n64texcache/gpu"
)

// DecodeFunc is the out-of-scope TMEM→RGBA8 pixel conversion. Real hosts
// supply the actual N64 decode math (the cache never does); Device falls
// back to a deterministic but not bit-accurate decode if none is given,
// which is enough for every ordering/invariant test in this module.
type DecodeFunc func(constants []byte, tmem []byte) []byte

// Device is a software gpu.Device.
type Device struct {
	mu     sync.Mutex
	decode DecodeFunc

	textures  int
	buffers   int
	pipelines map[string]gpu.ComputePipeline
}

// NewDevice creates a software device. decode may be nil, in which case a
// built-in placeholder decode is used.
func NewDevice(decode DecodeFunc) *Device {
	if decode == nil {
		decode = defaultDecode
	}
	return &Device{decode: decode, pipelines: make(map[string]gpu.ComputePipeline)}
}

func defaultDecode(constants, tmem []byte) []byte {
	out := make([]byte, len(tmem)*4)
	for i, b := range tmem {
		out[i*4+0] = b
		out[i*4+1] = b
		out[i*4+2] = b
		out[i*4+3] = 0xFF
	}
	return out
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	d.mu.Lock()
	d.textures++
	id := d.textures
	d.mu.Unlock()

	if desc.MipCount == 0 {
		desc.MipCount = 1
	}
	if desc.Depth == 0 {
		desc.Depth = 1
	}

	mips := make([][]byte, desc.MipCount)
	w, h := desc.Width, desc.Height
	for m := uint32(0); m < desc.MipCount; m++ {
		mips[m] = make([]byte, gpu.FormatMipSize(desc.Format, w, h)*uint64(desc.Depth))
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}

	label := desc.Label
	if label == "" {
		label = fmt.Sprintf("texture-%d", id)
	}

	return &Texture{
		desc:  desc,
		mips:  mips,
		label: label,
		stage: gpu.StageNone,
	}, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	d.mu.Lock()
	d.buffers++
	d.mu.Unlock()
	return &Buffer{data: make([]byte, desc.Size), label: desc.Label}, nil
}

func (d *Device) CreatePool(desc gpu.PoolDesc) (gpu.Pool, error) {
	return &Pool{}, nil
}

func (d *Device) CreateCommandList() (gpu.CommandList, error) {
	return &CommandList{device: d}, nil
}

func (d *Device) CreateComputePipeline(label string) (gpu.ComputePipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pipelines[label]
	if !ok {
		p = &pipeline{label: label}
		d.pipelines[label] = p
	}
	return p, nil
}

func (d *Device) Capabilities() gpu.Capabilities {
	return gpu.Capabilities{MaxTextureDimension2D: 16384}
}

func (d *Device) SampleCountsSupported(gpu.Format) []int {
	return []int{1}
}

func (d *Device) CalculateTextureRowWidthPadding(rowPitch uint32) uint32 {
	// round up to 256 bytes, the same alignment most real swapchain-style
	// backends require for buffer-to-texture copies.
	const align = 256
	if rowPitch%align == 0 {
		return rowPitch
	}
	return rowPitch + (align - rowPitch%align)
}

type pipeline struct{ label string }

func (p *pipeline) Label() string { return p.label }
