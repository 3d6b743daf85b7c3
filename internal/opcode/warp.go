package opcode

import (
	"fmt"
	"math"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// WarpRectilinear corrects radial geometric distortion. Each output pixel is
// resampled from the source at a radially displaced position:
//
//	src = center + d * (k0 + k1*r^2 + k2*r^4 + k3*r^6)
//
// where d is the pixel's offset from the optical center and r its distance
// from the center normalized by the farthest corner. One coefficient set per
// plane, or a single set shared by all planes. Resampling is bilinear with
// edge replication.
type WarpRectilinear struct {
	common
	coefs   [][4]float64
	centerV float64
	centerH float64

	// Input padding in pixels, derived from the coefficients and the image
	// geometry during Validate.
	pad int32
}

// NewWarpRectilinear builds a WarpRectilinear opcode; coefs holds one
// [k0, k1, k2, k3] set per plane (or a single shared set). The center is in
// normalized image coordinates.
func NewWarpRectilinear(coefs [][4]float64, centerV, centerH float64, flags Flags) *WarpRectilinear {
	return &WarpRectilinear{
		common:  common{kind: KindWarpRectilinear, version: 1, flags: flags},
		coefs:   coefs,
		centerV: centerV,
		centerH: centerH,
	}
}

func decodeWarpRectilinear(c common, r *paramReader) (Opcode, error) {
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if count < 1 || count > 256 {
		return nil, fmt.Errorf("warp plane count %d: %w", count, ErrBadFormat)
	}
	n, err := safemath.Uint64ToInt(uint64(count))
	if err != nil {
		return nil, err
	}

	op := &WarpRectilinear{common: c, coefs: make([][4]float64, n)}
	for i := range op.coefs {
		for j := range op.coefs[i] {
			v, err := r.float64()
			if err != nil {
				return nil, err
			}
			op.coefs[i][j] = v
		}
	}
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

func (w *WarpRectilinear) params() []byte {
	pw := &paramWriter{}
	pw.uint32(uint32(len(w.coefs)))
	for _, set := range w.coefs {
		for _, v := range set {
			pw.float64(v)
		}
	}
	pw.float64(w.centerV)
	pw.float64(w.centerH)
	return pw.data
}

// Validate implements Opcode. Besides checking the parameters it computes
// the warp's input padding for the given geometry, so Validate must run
// before the opcode executes.
func (w *WarpRectilinear) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	if len(w.coefs) != 1 && len(w.coefs) != planes {
		return fmt.Errorf("warp has %d coefficient sets for %d planes: %w",
			len(w.coefs), planes, ErrBadFormat)
	}
	if w.centerV < 0 || w.centerV > 1 || w.centerH < 0 || w.centerH > 1 {
		return fmt.Errorf("warp center (%g, %g) outside [0, 1]: %w",
			w.centerV, w.centerH, ErrBadFormat)
	}

	// The radius normalization uses the farthest corner. The magnitude is
	// rounded up through safemath: bounds come from the file, so the
	// padding computation is not trusted arithmetic either.
	maxDisp := 0.0
	height := float64(bounds.Height())
	width := float64(bounds.Width())
	cv := float64(bounds.Top) + w.centerV*height
	ch := float64(bounds.Left) + w.centerH*width
	maxR := 0.0
	corners := [4][2]float64{
		{float64(bounds.Top), float64(bounds.Left)},
		{float64(bounds.Top), float64(bounds.Right)},
		{float64(bounds.Bottom), float64(bounds.Left)},
		{float64(bounds.Bottom), float64(bounds.Right)},
	}
	for _, corner := range corners {
		d := math.Hypot(corner[0]-cv, corner[1]-ch)
		if d > maxR {
			maxR = d
		}
	}
	if maxR == 0 {
		w.pad = 1
		return nil
	}
	// The displacement |f(r^2) - 1| * r * maxR can peak at an interior
	// radius when coefficient signs mix, so the bound sweeps the whole
	// normalized radius range instead of evaluating only the corners.
	const radiusSteps = 256
	for _, set := range w.coefs {
		for i := 0; i <= radiusSteps; i++ {
			r := float64(i) / radiusSteps
			r2 := r * r
			f := set[0] + r2*(set[1]+r2*(set[2]+r2*set[3]))
			disp := math.Abs(f-1) * r * maxR
			if disp > maxDisp {
				maxDisp = disp
			}
		}
	}
	if math.IsNaN(maxDisp) || maxDisp > float64(math.MaxUint32) {
		return fmt.Errorf("warp displacement %g pixels: %w", maxDisp, ErrBadFormat)
	}
	disp32 := uint32(math.Ceil(maxDisp))
	pad, err := safemath.Uint32Add(disp32, 1) // +1 for the bilinear footprint
	if err != nil {
		return fmt.Errorf("warp padding: %w", err)
	}
	if !safemath.Uint32ToInt32(pad, &w.pad) {
		return fmt.Errorf("warp padding %d pixels: %w", pad, ErrBadFormat)
	}
	return nil
}

// IsNoOp reports whether every coefficient set is the identity warp.
func (w *WarpRectilinear) IsNoOp() bool {
	for _, set := range w.coefs {
		if set != [4]float64{1, 0, 0, 0} {
			return false
		}
	}
	return true
}

// InputArea implements render.AreaTask.
func (w *WarpRectilinear) InputArea(out geom.Rect) geom.Rect {
	return out.Pad(w.pad, w.pad)
}

// Process implements render.AreaTask.
func (w *WarpRectilinear) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	bounds := src.Bounds()
	height := float64(bounds.Height())
	width := float64(bounds.Width())
	cv := float64(bounds.Top) + w.centerV*height
	ch := float64(bounds.Left) + w.centerH*width

	maxR := 0.0
	for _, corner := range [4][2]float64{
		{float64(bounds.Top), float64(bounds.Left)},
		{float64(bounds.Top), float64(bounds.Right)},
		{float64(bounds.Bottom), float64(bounds.Left)},
		{float64(bounds.Bottom), float64(bounds.Right)},
	} {
		d := math.Hypot(corner[0]-cv, corner[1]-ch)
		if d > maxR {
			maxR = d
		}
	}
	if maxR == 0 {
		return dst.CopyFrom(src, tile)
	}

	planes := src.Planes()
	for plane := 0; plane < planes; plane++ {
		set := w.coefs[0]
		if len(w.coefs) > 1 {
			set = w.coefs[plane]
		}
		for row := tile.Top; row < tile.Bottom; row++ {
			dv := float64(row) + 0.5 - cv
			for col := tile.Left; col < tile.Right; col++ {
				dh := float64(col) + 0.5 - ch
				r2 := (dv*dv + dh*dh) / (maxR * maxR)
				f := set[0] + r2*(set[1]+r2*(set[2]+r2*set[3]))
				srcV := cv + dv*f - 0.5
				srcH := ch + dh*f - 0.5
				dst.SetSample(row, col, plane, bilinear(src, srcV, srcH, plane))
			}
		}
	}
	return nil
}

// bilinear samples src at a fractional coordinate with edge replication.
func bilinear(src *pixel.Buffer, v, h float64, plane int) float64 {
	v0 := int32(math.Floor(v))
	h0 := int32(math.Floor(h))
	tv := v - float64(v0)
	th := h - float64(h0)

	s00 := src.ConstrainedSample(v0, h0, plane)
	s01 := src.ConstrainedSample(v0, h0+1, plane)
	s10 := src.ConstrainedSample(v0+1, h0, plane)
	s11 := src.ConstrainedSample(v0+1, h0+1, plane)

	top := s00 + (s01-s00)*th
	bottom := s10 + (s11-s10)*th
	return top + (bottom-top)*tv
}
