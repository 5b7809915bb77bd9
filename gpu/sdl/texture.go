package sdl

import (
	"github.com/veandco/go-sdl2/sdl"

	"github.com/kirahall/n64texcache/gpu"
)

// Texture wraps an *sdl.Texture. SDL textures have no mip chain of their
// own, so a texture requested with MipCount > 1 (a streamed-in DDS
// replacement) keeps its extra mips as plain byte slices shadowing the
// base level — sampling those mips is outside SDL's 2D renderer model and
// is the host's problem if it ever wants to render one directly; what the
// cache needs from this type is a faithful object to copy into and to
// hand back through TextureMap.
type Texture struct {
	tex   *sdl.Texture
	desc  gpu.TextureDesc
	stage gpu.BarrierStage
	mips  [][]byte // indexed by mip level; level 0 is only filled by a decode dispatch, copies into it go to tex
}

func (t *Texture) Width() uint32      { return t.desc.Width }
func (t *Texture) Height() uint32     { return t.desc.Height }
func (t *Texture) Depth() uint32      { return 1 }
func (t *Texture) Format() gpu.Format { return t.desc.Format }
func (t *Texture) MipCount() uint32   { return t.desc.MipCount }
func (t *Texture) Label() string      { return t.desc.Label }
func (t *Texture) Release() {
	if t.tex != nil {
		t.tex.Destroy()
		t.tex = nil
	}
}

// Buffer is a plain CPU staging buffer; SDL has no device-visible staging
// buffer concept of its own, textures are updated directly from host
// memory.
type Buffer struct {
	data  []byte
	label string
}

func (b *Buffer) Map() ([]byte, error) { return b.data, nil }
func (b *Buffer) Unmap()               {}
func (b *Buffer) Size() uint64         { return uint64(len(b.data)) }
func (b *Buffer) Release()             { b.data = nil }

// Pool has no SDL equivalent; compute descriptor sets are purely a
// bookkeeping convenience for routing bytes into the DecodeFunc.
type Pool struct{}

func (p *Pool) CreateDescriptorSet() (gpu.DescriptorSet, error) {
	return &DescriptorSet{}, nil
}
func (p *Pool) Release() {}

type DescriptorSet struct {
	read      map[int]gpu.Texture
	write     map[int]gpu.Texture
	constants map[int][]byte
}

func (s *DescriptorSet) BindTextureRead(slot int, tex gpu.Texture) {
	if s.read == nil {
		s.read = make(map[int]gpu.Texture)
	}
	s.read[slot] = tex
}

func (s *DescriptorSet) BindTextureWrite(slot int, tex gpu.Texture) {
	if s.write == nil {
		s.write = make(map[int]gpu.Texture)
	}
	s.write[slot] = tex
}

func (s *DescriptorSet) BindConstants(slot int, data []byte) {
	if s.constants == nil {
		s.constants = make(map[int][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.constants[slot] = cp
}
