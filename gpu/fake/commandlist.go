package fake

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

// CommandList is a software gpu.CommandList. Commands are recorded in
// order and replayed, in that same order, by Submit — the same "open a
// single execution scope for the batch" contract the real device honours,
// just without any actual command buffer underneath.
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
			if err := execCopy(o.region); err != nil {
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
			return fmt.Errorf("fake: unknown recorded command %T", raw)
		}
	}
	return nil
}

func execCopy(r gpu.CopyRegion) error {
	dst, ok := r.DstTexture.(*Texture)
	if !ok {
		return fmt.Errorf("fake: CopyTextureRegion requires a *fake.Texture destination")
	}
	if dst.stage != gpu.StageCopyDest {
		return fmt.Errorf("fake: copy into %q without a preceding COPY_DEST barrier", dst.Label())
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
			return fmt.Errorf("fake: CopyTextureRegion requires a *fake.Texture source")
		}
		src = st.Mip(0)
	default:
		return fmt.Errorf("fake: CopyTextureRegion has no source")
	}

	mip := dst.Mip(r.DstMip)
	rowBytes := int(gpu.FormatRowBytes(dst.Format(), r.Width))
	rowPitch := int(r.RowPitch)
	if rowPitch == 0 {
		rowPitch = rowBytes
	}
	rows := int(gpu.FormatRowCount(dst.Format(), r.Height))

	for row := 0; row < rows; row++ {
		srcOff := row * rowPitch
		dstOff := row * rowBytes
		if srcOff+rowBytes > len(src) || dstOff+rowBytes > len(mip) {
			return fmt.Errorf("fake: copy region out of bounds on %q", dst.Label())
		}
		copy(mip[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
	}
	return nil
}

func (c *CommandList) execDispatch() error {
	readSet := c.boundSets[0]
	if readSet == nil {
		return fmt.Errorf("fake: dispatch with no descriptor set bound at slot 0")
	}
	src := readSet.readTextures[0]
	dst := readSet.writeTextures[1]
	if src == nil || dst == nil {
		return fmt.Errorf("fake: dispatch requires a read texture at slot 0 and write texture at slot 1")
	}
	var constants []byte
	for _, c := range readSet.constants {
		constants = c
		break
	}
	out := c.device.decode(constants, src.Mip(0))
	copy(dst.Mip(0), out)
	return nil
}
