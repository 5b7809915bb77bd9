package sdl

import (
	"context"
	"fmt"

	"github.com/kirahall/n64texcache/gpu"
)

type op interface{}

type barrierOp struct{ barriers []gpu.Barrier }
type copyOp struct{ region gpu.CopyRegion }
type setPipelineOp struct{ pipeline gpu.ComputePipeline }
type setDescriptorSetOp struct {
	slot int
	set  gpu.DescriptorSet
}
type dispatchOp struct{ gx, gy, gz uint32 }

// CommandList records gpu calls and replays them on Submit, the same
// record-then-submit shape gpu/fake uses. SDL's renderer has no notion of
// a command buffer, so "submit" here just means "do the work now, in
// order" — the recording still matters because CopyTextureRegion targets
// must have passed a COPY_DEST barrier first, exactly as the other
// backend enforces.
type CommandList struct {
	device *Device
	ops    []op

	boundPipeline gpu.ComputePipeline
	boundSets     map[int]*DescriptorSet
}

func (c *CommandList) Barriers(b ...gpu.Barrier) {
	bs := make([]gpu.Barrier, len(b))
	copy(bs, b)
	c.ops = append(c.ops, barrierOp{barriers: bs})
}

func (c *CommandList) CopyTextureRegion(r gpu.CopyRegion) {
	c.ops = append(c.ops, copyOp{region: r})
}

func (c *CommandList) SetComputePipeline(p gpu.ComputePipeline) {
	c.ops = append(c.ops, setPipelineOp{pipeline: p})
}

func (c *CommandList) SetComputeDescriptorSet(slot int, set gpu.DescriptorSet) {
	c.ops = append(c.ops, setDescriptorSetOp{slot: slot, set: set})
}

func (c *CommandList) Dispatch(gx, gy, gz uint32) {
	c.ops = append(c.ops, dispatchOp{gx: gx, gy: gy, gz: gz})
}

func (c *CommandList) Release() { c.ops = nil }

func (c *CommandList) Submit(ctx context.Context) error {
	if c.boundSets == nil {
		c.boundSets = make(map[int]*DescriptorSet)
	}
	for _, raw := range c.ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch o := raw.(type) {
		case barrierOp:
			for _, b := range o.barriers {
				if t, ok := b.Texture.(*Texture); ok {
					t.stage = b.Stage
				}
			}
		case copyOp:
			if err := c.execCopy(o.region); err != nil {
				return err
			}
		case setPipelineOp:
			c.boundPipeline = o.pipeline
		case setDescriptorSetOp:
			c.boundSets[o.slot] = o.set.(*DescriptorSet)
		case dispatchOp:
			if err := c.execDispatch(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("sdl: unknown recorded command %T", raw)
		}
	}
	return nil
}

// execCopy pushes bytes into an SDL streaming texture via Update, the
// same call the host's own framebuffer path uses each frame. A copy from
// one texture to another has to go through a CPU round trip since SDL
// textures aren't addressable as plain memory once uploaded; that is fine
// here because every such copy is of a handful of small replacement mips,
// not a hot per-frame path.
func (c *CommandList) execCopy(r gpu.CopyRegion) error {
	dst, ok := r.DstTexture.(*Texture)
	if !ok {
		return fmt.Errorf("sdl: CopyTextureRegion requires a *sdl.Texture destination")
	}
	if dst.stage != gpu.StageCopyDest {
		return fmt.Errorf("sdl: copy into %q without a preceding COPY_DEST barrier", dst.Label())
	}

	var src []byte
	switch {
	case r.SrcBuffer != nil:
		b, err := r.SrcBuffer.Map()
		if err != nil {
			return err
		}
		src = b[r.SrcOffset:]
	case r.SrcTexture != nil:
		st, ok := r.SrcTexture.(*Texture)
		if !ok {
			return fmt.Errorf("sdl: CopyTextureRegion requires a *sdl.Texture source")
		}
		if len(st.mips) == 0 {
			return fmt.Errorf("sdl: source texture %q has no readable mip 0", st.Label())
		}
		src = st.mips[0]
	default:
		return fmt.Errorf("sdl: CopyTextureRegion has no source")
	}

	rowBytes := int(gpu.FormatRowBytes(dst.desc.Format, r.Width))
	pitch := int(r.RowPitch)
	if pitch == 0 {
		pitch = rowBytes
	}

	if r.DstMip == 0 {
		if err := dst.tex.Update(nil, src, pitch); err != nil {
			return fmt.Errorf("sdl: texture update on %q: %w", dst.Label(), err)
		}
		return nil
	}

	for uint32(len(dst.mips)) <= r.DstMip {
		dst.mips = append(dst.mips, nil)
	}
	rows := int(gpu.FormatRowCount(dst.desc.Format, r.Height))
	mip := make([]byte, rowBytes*rows)
	for row := 0; row < rows; row++ {
		srcOff := row * pitch
		if srcOff+rowBytes > len(src) {
			return fmt.Errorf("sdl: copy region out of bounds on %q mip %d", dst.Label(), r.DstMip)
		}
		copy(mip[row*rowBytes:(row+1)*rowBytes], src[srcOff:srcOff+rowBytes])
	}
	dst.mips[r.DstMip] = mip
	return nil
}

func (c *CommandList) execDispatch() error {
	readSet := c.boundSets[0]
	if readSet == nil {
		return fmt.Errorf("sdl: dispatch with no descriptor set bound at slot 0")
	}
	src, ok := readSet.read[0].(*Texture)
	if !ok || src == nil {
		return fmt.Errorf("sdl: dispatch requires a read texture at slot 0")
	}
	dst, ok := readSet.write[1].(*Texture)
	if !ok || dst == nil {
		return fmt.Errorf("sdl: dispatch requires a write texture at slot 1")
	}
	if len(src.mips) == 0 {
		return fmt.Errorf("sdl: read texture %q has no data to decode", src.Label())
	}

	var constants []byte
	for _, v := range readSet.constants {
		constants = v
		break
	}

	out := c.device.decode(constants, src.mips[0])
	if len(dst.mips) == 0 {
		dst.mips = [][]byte{nil}
	}
	dst.mips[0] = out
	return nil
}
