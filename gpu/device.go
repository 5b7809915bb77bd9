// Package gpu declares the abstract GPU surface the texture cache is
// written against. The real device, its command lists, buffers, textures,
// and compute pipelines are all external collaborators — the cache never
// assumes a specific backend, only this interface. Two implementations
// ship alongside the cache: gpu/fake, an in-process software device used
// by the tests that need a device, and gpu/sdl, a real device built on an
// SDL2 renderer.
package gpu

import "context"

// Format identifies a GPU texture's pixel layout. Only the formats the
// cache actually produces or consumes are named; a real backend will
// support many more but the cache never asks for them.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8
	FormatR8 // single-channel TMEM staging texture
	FormatBC1
	FormatBC2
	FormatBC3
	FormatBC4
	FormatBC5
	FormatBC7
)

// blockCompressed reports whether f packs pixels into fixed-size blocks
// (as every BCn format does) rather than one value per pixel.
func blockCompressed(f Format) bool {
	switch f {
	case FormatBC1, FormatBC2, FormatBC3, FormatBC4, FormatBC5, FormatBC7:
		return true
	default:
		return false
	}
}

// bytesPerBlock returns the byte size of one 4x4 block for a
// block-compressed format; BC1 and BC4 pack into 8 bytes, the rest into
// 16.
func bytesPerBlock(f Format) int {
	switch f {
	case FormatBC1, FormatBC4:
		return 8
	default:
		return 16
	}
}

// BytesPerPixel returns the storage cost of one pixel for uncompressed
// formats; it is meaningless for block-compressed formats, which must go
// through FormatRowBytes/FormatMipSize instead.
func BytesPerPixel(f Format) int {
	switch f {
	case FormatRGBA8:
		return 4
	case FormatR8:
		return 1
	default:
		return 1
	}
}

// FormatRowBytes returns the byte size of one row of width pixels in
// format f: width*BytesPerPixel for ordinary formats, or the
// blocks-per-row byte size for block-compressed formats (a "row" there
// meaning one row of 4x4 blocks).
func FormatRowBytes(f Format, width uint32) uint32 {
	if !blockCompressed(f) {
		return width * uint32(BytesPerPixel(f))
	}
	blocksWide := (width + 3) / 4
	if blocksWide < 1 {
		blocksWide = 1
	}
	return blocksWide * uint32(bytesPerBlock(f))
}

// FormatRowCount returns the number of rows a copy must iterate to cover
// height pixel rows of format f: height itself for ordinary formats, or
// the number of 4-pixel block rows for block-compressed formats.
func FormatRowCount(f Format, height uint32) uint32 {
	if !blockCompressed(f) {
		return height
	}
	blocksHigh := (height + 3) / 4
	if blocksHigh < 1 {
		blocksHigh = 1
	}
	return blocksHigh
}

// FormatMipSize returns the total byte size of one width x height mip
// level in format f.
func FormatMipSize(f Format, width, height uint32) uint64 {
	if !blockCompressed(f) {
		return uint64(width) * uint64(height) * uint64(BytesPerPixel(f))
	}
	blocksHigh := (height + 3) / 4
	if blocksHigh < 1 {
		blocksHigh = 1
	}
	return uint64(FormatRowBytes(f, width)) * uint64(blocksHigh)
}

// Dimension is the shape of a texture resource.
type Dimension int

const (
	Dimension1D Dimension = iota
	Dimension2D
	Dimension3D
)

// TextureDesc describes a texture to be created by a Device.
type TextureDesc struct {
	Dimension Dimension
	Format    Format
	Width     uint32
	Height    uint32
	Depth     uint32 // 1 for 2D textures
	MipCount  uint32
	// Storage requests a texture usable as a compute shader write target
	// (the RGBA8 decode destination); it is false for sampled-only
	// textures such as a streamed-in replacement.
	Storage bool
	Label   string
}

// BufferDesc describes a CPU-visible staging buffer to be created by a
// Device.
type BufferDesc struct {
	Size  uint64
	Label string
}

// PoolDesc describes a descriptor pool sized for a batch of uploads.
type PoolDesc struct {
	MaxSets uint32
	Label   string
}

// BarrierStage names where in the pipeline a resource transition takes
// effect.
type BarrierStage int

const (
	StageNone BarrierStage = iota
	StageCopyDest
	StageShaderRead
	StageShaderWrite
)

// Barrier requests that tex become visible in the named stage before any
// later command in the same command list that touches it.
type Barrier struct {
	Texture Texture
	Stage   BarrierStage
}

// CopyRegion describes one buffer-to-texture (or texture-to-texture) copy.
type CopyRegion struct {
	SrcOffset uint64
	SrcBuffer Buffer
	SrcTexture Texture
	DstTexture Texture
	DstMip    uint32
	Width     uint32
	Height    uint32
	Depth     uint32
	RowPitch  uint32 // destination row pitch, already padding-adjusted
}

// Texture is a GPU-resident image. Implementations are expected to be safe
// to read concurrently (sampling, copying) but never to be mutated by more
// than one command list at a time — the cache never attempts that.
type Texture interface {
	Width() uint32
	Height() uint32
	Depth() uint32
	Format() Format
	MipCount() uint32
	Label() string
	Release()
}

// Buffer is a CPU-visible staging buffer.
type Buffer interface {
	Map() ([]byte, error)
	Unmap()
	Size() uint64
	Release()
}

// Pool allocates DescriptorSets for compute dispatches.
type Pool interface {
	CreateDescriptorSet() (DescriptorSet, error)
	Release()
}

// DescriptorSet binds the resources a compute dispatch reads and writes.
type DescriptorSet interface {
	BindTextureRead(slot int, tex Texture)
	BindTextureWrite(slot int, tex Texture)
	BindConstants(slot int, data []byte)
}

// ComputePipeline is an opaque handle to a compiled compute shader. The
// cache only ever asks the device for the one pipeline it needs (TMEM
// decode); shader authoring is out of scope.
type ComputePipeline interface {
	Label() string
}

// CommandList records and submits a batch of GPU work.
type CommandList interface {
	Barriers(b ...Barrier)
	CopyTextureRegion(r CopyRegion)
	SetComputePipeline(p ComputePipeline)
	SetComputeDescriptorSet(slot int, set DescriptorSet)
	Dispatch(groupsX, groupsY, groupsZ uint32)
	// Submit executes every command recorded so far and blocks until the
	// GPU has finished, matching the cache's "open a single execution
	// scope for the batch" usage (§4.4.2) — the cache never pipelines
	// multiple in-flight command lists against one Device.
	Submit(ctx context.Context) error
	Release()
}

// Capabilities reports static backend limits the cache consults (none are
// load-bearing for correctness today; they exist so a real backend has
// somewhere to report them).
type Capabilities struct {
	MaxTextureDimension2D uint32
}

// Device is the abstract GPU the cache is built against.
type Device interface {
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreatePool(desc PoolDesc) (Pool, error)
	CreateCommandList() (CommandList, error)
	CreateComputePipeline(label string) (ComputePipeline, error)
	Capabilities() Capabilities
	SampleCountsSupported(format Format) []int
	// CalculateTextureRowWidthPadding returns the row pitch a texture of
	// rowPitch unpadded bytes must actually use for this backend's
	// alignment requirements.
	CalculateTextureRowWidthPadding(rowPitch uint32) uint32
}
