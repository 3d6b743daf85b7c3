package opcode

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// Defective samples in a mosaic are repaired from neighbors of the same CFA
// color, which sit two samples away in a Bayer pattern.
const bayerNeighborStep = 2

// FixBadPixelsConstant repairs every sample equal to a marker constant by
// averaging its same-color neighbors. It applies to single-plane mosaic
// images.
type FixBadPixelsConstant struct {
	common
	constant   uint32
	bayerPhase uint32
}

// NewFixBadPixelsConstant builds a FixBadPixelsConstant opcode.
func NewFixBadPixelsConstant(constant, bayerPhase uint32, flags Flags) *FixBadPixelsConstant {
	return &FixBadPixelsConstant{
		common:     common{kind: KindFixBadPixelsConst, version: 1, flags: flags},
		constant:   constant,
		bayerPhase: bayerPhase,
	}
}

func decodeFixBadPixelsConstant(c common, r *paramReader) (Opcode, error) {
	constant, err := r.uint32()
	if err != nil {
		return nil, err
	}
	bayerPhase, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &FixBadPixelsConstant{common: c, constant: constant, bayerPhase: bayerPhase}, nil
}

func (f *FixBadPixelsConstant) params() []byte {
	w := &paramWriter{}
	w.uint32(f.constant)
	w.uint32(f.bayerPhase)
	return w.data
}

// Validate implements Opcode. The marker comparison is exact, so only
// integer mosaic images are supported.
func (f *FixBadPixelsConstant) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	if f.bayerPhase > 3 {
		return fmt.Errorf("bayer phase %d: %w", f.bayerPhase, ErrBadFormat)
	}
	if planes != 1 {
		return fmt.Errorf("bad pixel repair on %d-plane image: %w", planes, ErrUnsupported)
	}
	if !typ.IsInteger() {
		return fmt.Errorf("bad pixel repair on %s samples: %w", typ, ErrUnsupported)
	}
	return nil
}

// IsNoOp implements Opcode. Whether any sample matches the marker is
// data-dependent, so the opcode always runs.
func (f *FixBadPixelsConstant) IsNoOp() bool {
	return false
}

// InputArea implements render.AreaTask.
func (f *FixBadPixelsConstant) InputArea(out geom.Rect) geom.Rect {
	return out.Pad(bayerNeighborStep, bayerNeighborStep)
}

// Process implements render.AreaTask.
func (f *FixBadPixelsConstant) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	if err := dst.CopyFrom(src, tile); err != nil {
		return err
	}
	marker := float64(f.constant)

	for row := tile.Top; row < tile.Bottom; row++ {
		for col := tile.Left; col < tile.Right; col++ {
			if src.Sample(row, col, 0) != marker {
				continue
			}
			if v, ok := repairFromNeighbors(src, row, col, marker); ok {
				dst.SetSample(row, col, 0, v)
			}
		}
	}
	return nil
}

// repairFromNeighbors averages the four same-color neighbors that are not
// themselves marked bad. Neighbors are read with edge replication so repairs
// near the image border are defined and tiling-independent.
func repairFromNeighbors(src *pixel.Buffer, row, col int32, marker float64) (float64, bool) {
	var sum float64
	var n int
	offsets := [4][2]int32{
		{-bayerNeighborStep, 0}, {bayerNeighborStep, 0},
		{0, -bayerNeighborStep}, {0, bayerNeighborStep},
	}
	for _, off := range offsets {
		v := src.ConstrainedSample(row+off[0], col+off[1], 0)
		if v == marker {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// FixBadPixelsList repairs an explicit list of defective points and
// rectangles. Points are repaired from same-color neighbors; rectangle
// interiors are filled by horizontal interpolation between the samples just
// outside the rectangle.
type FixBadPixelsList struct {
	common
	bayerPhase uint32
	points     []geom.Point
	rects      []geom.Rect

	// Largest input margin any repair needs, computed at decode.
	pad int32
}

// NewFixBadPixelsList builds a FixBadPixelsList opcode.
func NewFixBadPixelsList(bayerPhase uint32, points []geom.Point, rects []geom.Rect, flags Flags) *FixBadPixelsList {
	op := &FixBadPixelsList{
		common:     common{kind: KindFixBadPixelsList, version: 1, flags: flags},
		bayerPhase: bayerPhase,
		points:     points,
		rects:      rects,
	}
	op.pad = op.computePad()
	return op
}

func decodeFixBadPixelsList(c common, r *paramReader) (Opcode, error) {
	bayerPhase, err := r.uint32()
	if err != nil {
		return nil, err
	}
	pointCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	rectCount, err := r.uint32()
	if err != nil {
		return nil, err
	}

	// 8 bytes per point, 16 per rectangle; the declared counts must match
	// the parameter block exactly.
	pointBytes, err := safemath.Uint64Mult(uint64(pointCount), 8)
	if err != nil {
		return nil, err
	}
	rectBytes, err := safemath.Uint64Mult(uint64(rectCount), 16)
	if err != nil {
		return nil, err
	}
	total, err := safemath.Uint64Add(pointBytes, rectBytes)
	if err != nil {
		return nil, err
	}
	if total != uint64(r.remaining()) {
		return nil, fmt.Errorf("bad pixel list declares %d bytes, %d remain: %w",
			total, r.remaining(), ErrBadFormat)
	}

	op := &FixBadPixelsList{common: c, bayerPhase: bayerPhase}
	op.points = make([]geom.Point, pointCount)
	for i := range op.points {
		v, err := r.uint32()
		if err != nil {
			return nil, err
		}
		h, err := r.uint32()
		if err != nil {
			return nil, err
		}
		var pv, ph int32
		if !safemath.Uint32ToInt32(v, &pv) || !safemath.Uint32ToInt32(h, &ph) {
			return nil, fmt.Errorf("bad pixel point (%d, %d) out of range: %w", v, h, ErrBadFormat)
		}
		op.points[i] = geom.Point{V: pv, H: ph}
	}
	op.rects = make([]geom.Rect, rectCount)
	for i := range op.rects {
		var edges [4]int32
		for j := range edges {
			raw, err := r.uint32()
			if err != nil {
				return nil, err
			}
			if !safemath.Uint32ToInt32(raw, &edges[j]) {
				return nil, fmt.Errorf("bad pixel rect edge %d out of range: %w", raw, ErrBadFormat)
			}
		}
		op.rects[i] = geom.Rect{Top: edges[0], Left: edges[1], Bottom: edges[2], Right: edges[3]}
	}
	op.pad = op.computePad()
	return op, nil
}

func (f *FixBadPixelsList) computePad() int32 {
	pad := int32(bayerNeighborStep)
	for _, r := range f.rects {
		if w := r.Width() + 1; w > pad {
			pad = w
		}
	}
	return pad
}

func (f *FixBadPixelsList) params() []byte {
	w := &paramWriter{}
	w.uint32(f.bayerPhase)
	w.uint32(uint32(len(f.points)))
	w.uint32(uint32(len(f.rects)))
	for _, p := range f.points {
		w.uint32(uint32(p.V))
		w.uint32(uint32(p.H))
	}
	for _, r := range f.rects {
		w.uint32(uint32(r.Top))
		w.uint32(uint32(r.Left))
		w.uint32(uint32(r.Bottom))
		w.uint32(uint32(r.Right))
	}
	return w.data
}

// Validate implements Opcode.
func (f *FixBadPixelsList) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	if f.bayerPhase > 3 {
		return fmt.Errorf("bayer phase %d: %w", f.bayerPhase, ErrBadFormat)
	}
	if planes != 1 {
		return fmt.Errorf("bad pixel repair on %d-plane image: %w", planes, ErrUnsupported)
	}
	for _, p := range f.points {
		if !bounds.Contains(p) {
			return fmt.Errorf("bad pixel point %+v outside image %+v: %w", p, bounds, ErrBadFormat)
		}
	}
	for _, r := range f.rects {
		if r.IsEmpty() || !bounds.ContainsRect(r) {
			return fmt.Errorf("bad pixel rect %+v outside image %+v: %w", r, bounds, ErrBadFormat)
		}
	}
	return nil
}

// IsNoOp reports whether the list names no defects.
func (f *FixBadPixelsList) IsNoOp() bool {
	return len(f.points) == 0 && len(f.rects) == 0
}

// InputArea implements render.AreaTask.
func (f *FixBadPixelsList) InputArea(out geom.Rect) geom.Rect {
	return out.Pad(f.pad, f.pad)
}

// Process implements render.AreaTask.
func (f *FixBadPixelsList) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	if err := dst.CopyFrom(src, tile); err != nil {
		return err
	}

	for _, p := range f.points {
		if !tile.Contains(p) {
			continue
		}
		v := src.Sample(p.V, p.H, 0)
		if fixed, ok := repairFromNeighbors(src, p.V, p.H, v); ok {
			dst.SetSample(p.V, p.H, 0, fixed)
		}
	}

	for _, r := range f.rects {
		overlap := r.Intersect(tile)
		if overlap.IsEmpty() {
			continue
		}
		// Interpolate across the full defect span so a rectangle split
		// between tiles fills identically on both sides of the seam.
		span := float64(r.Right - r.Left + 1)
		for row := overlap.Top; row < overlap.Bottom; row++ {
			left := src.ConstrainedSample(row, r.Left-1, 0)
			right := src.ConstrainedSample(row, r.Right, 0)
			for col := overlap.Left; col < overlap.Right; col++ {
				t := float64(col-r.Left+1) / span
				dst.SetSample(row, col, 0, left+(right-left)*t)
			}
		}
	}
	return nil
}
