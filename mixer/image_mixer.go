// image_mixer.go states the image-pass contract the device drives and
// provides a CPU reference implementation of it.

package mixer

import (
	"context"
	"image"

	bildtransform "github.com/anthonynsimon/bild/transform"
	"github.com/xaionaro-go/avmixer/frame"
	"github.com/xaionaro-go/avmixer/transform"
	"github.com/xaionaro-go/avmixer/videoformat"
	"github.com/xaionaro-go/observability"
)

// ImagePass accumulates the frames of one tick and composites them on
// End. The returned channel delivers exactly one buffer.
type ImagePass interface {
	Accept(f *frame.Frame, tr transform.Image)
	AcceptInterlaced(field1, field2 *frame.Frame, tr1, tr2 transform.Image, mode videoformat.Mode)
	End() <-chan *HostBuffer
}

type ImageMixer interface {
	BeginPass(ctx context.Context) ImagePass
}

// SoftwareImageMixer composites layers on the CPU. Scaling is done via
// bild; blending is straight-alpha src-over in submission order.
type SoftwareImageMixer struct {
	desc videoformat.Desc
}

var _ ImageMixer = (*SoftwareImageMixer)(nil)

func NewSoftwareImageMixer(desc videoformat.Desc) *SoftwareImageMixer {
	return &SoftwareImageMixer{desc: desc}
}

func (m *SoftwareImageMixer) BeginPass(ctx context.Context) ImagePass {
	return &softwareImagePass{
		ctx:  ctx,
		desc: m.desc,
	}
}

type imageItem struct {
	frames     [2]*frame.Frame
	transforms [2]transform.Image
	interlaced bool
	mode       videoformat.Mode
}

type softwareImagePass struct {
	ctx   context.Context
	desc  videoformat.Desc
	items []imageItem
}

func (p *softwareImagePass) Accept(f *frame.Frame, tr transform.Image) {
	p.items = append(p.items, imageItem{
		frames:     [2]*frame.Frame{f, f},
		transforms: [2]transform.Image{tr, tr},
	})
}

func (p *softwareImagePass) AcceptInterlaced(
	field1, field2 *frame.Frame,
	tr1, tr2 transform.Image,
	mode videoformat.Mode,
) {
	p.items = append(p.items, imageItem{
		frames:     [2]*frame.Frame{field1, field2},
		transforms: [2]transform.Image{tr1, tr2},
		interlaced: true,
		mode:       mode,
	})
}

func (p *softwareImagePass) End() <-chan *HostBuffer {
	ch := make(chan *HostBuffer, 1)
	observability.Go(p.ctx, func(ctx context.Context) {
		defer close(ch)
		ch <- p.compose()
	})
	return ch
}

const (
	parityAll = -1
	// Row parity of the upper (top) field.
	parityUpper = 0
	parityLower = 1
)

func (p *softwareImagePass) compose() *HostBuffer {
	out := NewHostBuffer(p.desc.Width, p.desc.Height)
	for _, item := range p.items {
		if !item.interlaced {
			drawLayer(out, item.frames[1], item.transforms[1], parityAll)
			continue
		}
		first, second := parityUpper, parityLower
		if item.mode == videoformat.ModeInterlacedLower {
			first, second = parityLower, parityUpper
		}
		drawLayer(out, item.frames[0], item.transforms[0], first)
		drawLayer(out, item.frames[1], item.transforms[1], second)
	}
	return out
}

// drawLayer blends one frame onto the output buffer, honoring the
// geometric and photometric parameters of tr. parity selects the rows
// written (interlaced sub-fields) or parityAll for every row.
//
// The BGRA plane rides in an RGBA container with R/B swapped; the blend
// math is channel-symmetric, so the output stays BGRA.
func drawLayer(dst *HostBuffer, f *frame.Frame, tr transform.Image, parity int) {
	desc := f.Desc()
	if len(desc.Planes) == 0 {
		return
	}
	plane := desc.Planes[0]
	pix := f.Plane(0)
	if len(pix) < plane.Size() || plane.BytesPerPixel != 4 {
		return
	}

	src := &image.RGBA{
		Pix:    pix,
		Stride: plane.Width * 4,
		Rect:   image.Rect(0, 0, plane.Width, plane.Height),
	}

	targetW := int(float64(plane.Width)*tr.ScaleX + 0.5)
	targetH := int(float64(plane.Height)*tr.ScaleY + 0.5)
	if targetW <= 0 || targetH <= 0 {
		return
	}
	if targetW != plane.Width || targetH != plane.Height {
		src = bildtransform.Resize(src, targetW, targetH, bildtransform.Linear)
	}

	offX := int(tr.PosX*float64(dst.Width) + 0.5)
	offY := int(tr.PosY*float64(dst.Height) + 0.5)

	clipX0 := int(tr.Clip.X * float64(dst.Width))
	clipY0 := int(tr.Clip.Y * float64(dst.Height))
	clipX1 := int((tr.Clip.X + tr.Clip.W) * float64(dst.Width))
	clipY1 := int((tr.Clip.Y + tr.Clip.H) * float64(dst.Height))

	for y := 0; y < targetH; y++ {
		oy := offY + y
		if oy < 0 || oy >= dst.Height || oy < clipY0 || oy >= clipY1 {
			continue
		}
		if parity != parityAll && oy%2 != parity {
			continue
		}
		for x := 0; x < targetW; x++ {
			ox := offX + x
			if ox < 0 || ox >= dst.Width || ox < clipX0 || ox >= clipX1 {
				continue
			}
			si := src.PixOffset(x, y)
			di := (oy*dst.Width + ox) * 4
			blendPixel(dst.Data[di:di+4], src.Pix[si:si+4], tr.Opacity, tr.Gain)
		}
	}
}

func blendPixel(dst, src []byte, opacity, gain float64) {
	alpha := float64(src[3]) / 255 * clamp01(opacity)
	for c := 0; c < 3; c++ {
		s := clamp255(float64(src[c]) * gain)
		dst[c] = byte(s*alpha + float64(dst[c])*(1-alpha) + 0.5)
	}
	dst[3] = byte(clamp255(float64(src[3])*clamp01(opacity) + float64(dst[3])*(1-alpha)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
