package opcode

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
)

// FixVignetteRadial corrects radial light falloff. The gain applied at a
// pixel is an even polynomial in its normalized distance from the optical
// center:
//
//	gain = 1 + k0*r^2 + k1*r^4 + k2*r^6 + k3*r^8 + k4*r^10
//
// The center is given in normalized image coordinates ([0, 1] across each
// axis).
type FixVignetteRadial struct {
	common
	k       [5]float64
	centerV float64
	centerH float64
}

// NewFixVignetteRadial builds a FixVignetteRadial opcode.
func NewFixVignetteRadial(k [5]float64, centerV, centerH float64, flags Flags) *FixVignetteRadial {
	return &FixVignetteRadial{
		common:  common{kind: KindFixVignetteRadial, version: 1, flags: flags},
		k:       k,
		centerV: centerV,
		centerH: centerH,
	}
}

func decodeFixVignetteRadial(c common, r *paramReader) (Opcode, error) {
	op := &FixVignetteRadial{common: c}
	for i := range op.k {
		v, err := r.float64()
		if err != nil {
			return nil, err
		}
		op.k[i] = v
	}
	var err error
	if op.centerV, err = r.float64(); err != nil {
		return nil, err
	}
	if op.centerH, err = r.float64(); err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return op, nil
}

func (f *FixVignetteRadial) params() []byte {
	w := &paramWriter{}
	for _, v := range f.k {
		w.float64(v)
	}
	w.float64(f.centerV)
	w.float64(f.centerH)
	return w.data
}

// Validate implements Opcode.
func (f *FixVignetteRadial) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	if f.centerV < 0 || f.centerV > 1 || f.centerH < 0 || f.centerH > 1 {
		return fmt.Errorf("vignette center (%g, %g) outside [0, 1]: %w",
			f.centerV, f.centerH, ErrBadFormat)
	}
	return nil
}

// IsNoOp reports whether all correction terms are zero.
func (f *FixVignetteRadial) IsNoOp() bool {
	for _, v := range f.k {
		if v != 0 {
			return false
		}
	}
	return true
}

// InputArea implements render.AreaTask; the gain is a point operation.
func (f *FixVignetteRadial) InputArea(out geom.Rect) geom.Rect {
	return identityInput(out)
}

// Process implements render.AreaTask.
func (f *FixVignetteRadial) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	bounds := src.Bounds()
	height := float64(bounds.Height())
	width := float64(bounds.Width())
	planes := src.Planes()

	for row := tile.Top; row < tile.Bottom; row++ {
		dv := (float64(row-bounds.Top)+0.5)/height - f.centerV
		for col := tile.Left; col < tile.Right; col++ {
			dh := (float64(col-bounds.Left)+0.5)/width - f.centerH
			r2 := dv*dv + dh*dh
			gain := 1 + r2*(f.k[0]+r2*(f.k[1]+r2*(f.k[2]+r2*(f.k[3]+r2*f.k[4]))))
			for plane := 0; plane < planes; plane++ {
				dst.SetSample(row, col, plane, src.Sample(row, col, plane)*gain)
			}
		}
	}
	return nil
}
