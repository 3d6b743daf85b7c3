package opcode

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// GainMap multiplies the selected samples by a spatially varying gain,
// bilinearly interpolated from a coarse grid. The grid is positioned in
// normalized image coordinates by an origin and a per-cell spacing.
type GainMap struct {
	common
	area     AreaSpec
	pointsV  int
	pointsH  int
	spacingV float64
	spacingH float64
	originV  float64
	originH  float64
	planes   int
	gains    []float32
}

// NewGainMap builds a GainMap opcode. gains is indexed
// [plane][row][column] flattened, with pointsV x pointsH entries per plane.
func NewGainMap(area AreaSpec, pointsV, pointsH int, spacingV, spacingH,
	originV, originH float64, planes int, gains []float32, flags Flags) *GainMap {
	return &GainMap{
		common:   common{kind: KindGainMap, version: 1, flags: flags},
		area:     area,
		pointsV:  pointsV,
		pointsH:  pointsH,
		spacingV: spacingV,
		spacingH: spacingH,
		originV:  originV,
		originH:  originH,
		planes:   planes,
		gains:    gains,
	}
}

func decodeGainMap(c common, r *paramReader) (Opcode, error) {
	area, err := decodeAreaSpec(r)
	if err != nil {
		return nil, err
	}

	pointsV, err := r.uint32()
	if err != nil {
		return nil, err
	}
	pointsH, err := r.uint32()
	if err != nil {
		return nil, err
	}
	spacingV, err := r.float64()
	if err != nil {
		return nil, err
	}
	spacingH, err := r.float64()
	if err != nil {
		return nil, err
	}
	originV, err := r.float64()
	if err != nil {
		return nil, err
	}
	originH, err := r.float64()
	if err != nil {
		return nil, err
	}
	mapPlanes, err := r.uint32()
	if err != nil {
		return nil, err
	}

	// The entry count is computed through safemath and must match the
	// remaining parameter bytes exactly.
	entries32, err := safemath.Uint32Mult(pointsV, pointsH, mapPlanes)
	if err != nil {
		return nil, fmt.Errorf("gain map %dx%dx%d: %w", pointsV, pointsH, mapPlanes, ErrBadFormat)
	}
	entries, err := safemath.Uint64ToInt(uint64(entries32))
	if err != nil {
		return nil, err
	}
	if entries == 0 || r.remaining() != entries*4 {
		return nil, fmt.Errorf("gain map %d entries, %d parameter bytes remain: %w",
			entries, r.remaining(), ErrBadFormat)
	}

	gains := make([]float32, entries)
	for i := range gains {
		v, err := r.float32()
		if err != nil {
			return nil, err
		}
		gains[i] = v
	}

	return &GainMap{
		common:   c,
		area:     area,
		pointsV:  int(pointsV),
		pointsH:  int(pointsH),
		spacingV: spacingV,
		spacingH: spacingH,
		originV:  originV,
		originH:  originH,
		planes:   int(mapPlanes),
		gains:    gains,
	}, nil
}

func (g *GainMap) params() []byte {
	w := &paramWriter{}
	g.area.encode(w)
	w.uint32(uint32(g.pointsV))
	w.uint32(uint32(g.pointsH))
	w.float64(g.spacingV)
	w.float64(g.spacingH)
	w.float64(g.originV)
	w.float64(g.originH)
	w.uint32(uint32(g.planes))
	for _, v := range g.gains {
		w.float32(v)
	}
	return w.data
}

// Validate implements Opcode.
func (g *GainMap) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	if err := g.area.validate(bounds, planes); err != nil {
		return err
	}
	if g.pointsV < 1 || g.pointsH < 1 || g.planes < 1 {
		return fmt.Errorf("gain map grid %dx%dx%d: %w", g.pointsV, g.pointsH, g.planes, ErrBadFormat)
	}
	if g.spacingV <= 0 || g.spacingH <= 0 {
		return fmt.Errorf("gain map spacing %gx%g: %w", g.spacingV, g.spacingH, ErrBadFormat)
	}
	return nil
}

// IsNoOp reports whether every grid gain is one.
func (g *GainMap) IsNoOp() bool {
	for _, v := range g.gains {
		if v != 1 {
			return false
		}
	}
	return true
}

// InputArea implements render.AreaTask; the gain is a point operation.
func (g *GainMap) InputArea(out geom.Rect) geom.Rect {
	return identityInput(out)
}

// Process implements render.AreaTask.
func (g *GainMap) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	bounds := src.Bounds()
	height := float64(bounds.Height())
	width := float64(bounds.Width())

	g.area.forEach(tile, func(row, col int32, plane int) {
		// Pixel center in normalized image coordinates, then grid space.
		nv := (float64(row-bounds.Top) + 0.5) / height
		nh := (float64(col-bounds.Left) + 0.5) / width
		gain := g.gainAt(nv, nh, plane)
		dst.SetSample(row, col, plane, src.Sample(row, col, plane)*gain)
	})
	return nil
}

// gainAt bilinearly interpolates the grid at the normalized position,
// clamping to the grid edges. The result depends only on the coordinate, so
// output is identical under any tiling.
func (g *GainMap) gainAt(nv, nh float64, plane int) float64 {
	fv := (nv - g.originV) / g.spacingV
	fh := (nh - g.originH) / g.spacingH

	fv = clampF(fv, 0, float64(g.pointsV-1))
	fh = clampF(fh, 0, float64(g.pointsH-1))

	v0 := int(fv)
	h0 := int(fh)
	v1 := v0 + 1
	h1 := h0 + 1
	if v1 > g.pointsV-1 {
		v1 = g.pointsV - 1
	}
	if h1 > g.pointsH-1 {
		h1 = g.pointsH - 1
	}
	tv := fv - float64(v0)
	th := fh - float64(h0)

	p := plane - g.area.Plane
	if p > g.planes-1 {
		p = g.planes - 1
	}
	if p < 0 {
		p = 0
	}
	base := p * g.pointsV * g.pointsH

	g00 := float64(g.gains[base+v0*g.pointsH+h0])
	g01 := float64(g.gains[base+v0*g.pointsH+h1])
	g10 := float64(g.gains[base+v1*g.pointsH+h0])
	g11 := float64(g.gains[base+v1*g.pointsH+h1])

	top := g00 + (g01-g00)*th
	bottom := g10 + (g11-g10)*th
	return top + (bottom-top)*tv
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
