package fake

import "github.com/kirahall/n64texcache/gpu"

// Texture is a software gpu.Texture: each mip level is a plain byte slice.
type Texture struct {
	desc  gpu.TextureDesc
	mips  [][]byte
	label string
	stage gpu.BarrierStage
}

func (t *Texture) Width() uint32      { return t.desc.Width }
func (t *Texture) Height() uint32     { return t.desc.Height }
func (t *Texture) Depth() uint32      { return t.desc.Depth }
func (t *Texture) Format() gpu.Format { return t.desc.Format }
func (t *Texture) MipCount() uint32   { return uint32(len(t.mips)) }
func (t *Texture) Label() string      { return t.label }
func (t *Texture) Release()           { t.mips = nil }

// Mip returns the raw bytes backing mip level m, for tests that want to
// inspect what a copy actually produced.
func (t *Texture) Mip(m uint32) []byte { return t.mips[m] }

// Buffer is a software gpu.Buffer: Map just returns the backing slice.
type Buffer struct {
	data  []byte
	label string
}

func (b *Buffer) Map() ([]byte, error) { return b.data, nil }
func (b *Buffer) Unmap()               {}
func (b *Buffer) Size() uint64         { return uint64(len(b.data)) }
func (b *Buffer) Release()             { b.data = nil }

// Pool is a software gpu.Pool.
type Pool struct{}

func (p *Pool) CreateDescriptorSet() (gpu.DescriptorSet, error) {
	return &DescriptorSet{}, nil
}
func (p *Pool) Release() {}

// DescriptorSet records the bindings a Dispatch call will see.
type DescriptorSet struct {
	readTextures  map[int]*Texture
	writeTextures map[int]*Texture
	constants     map[int][]byte
}

func (s *DescriptorSet) BindTextureRead(slot int, tex gpu.Texture) {
	if s.readTextures == nil {
		s.readTextures = make(map[int]*Texture)
	}
	s.readTextures[slot] = tex.(*Texture)
}

func (s *DescriptorSet) BindTextureWrite(slot int, tex gpu.Texture) {
	if s.writeTextures == nil {
		s.writeTextures = make(map[int]*Texture)
	}
	s.writeTextures[slot] = tex.(*Texture)
}

func (s *DescriptorSet) BindConstants(slot int, data []byte) {
	if s.constants == nil {
		s.constants = make(map[int][]byte)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.constants[slot] = cp
}
