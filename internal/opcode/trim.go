package opcode

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// TrimBounds restricts the image to a sub-rectangle. It carries no pixel
// work of its own; the render pass handles it structurally by cropping the
// working buffer between stages.
type TrimBounds struct {
	common
	rect geom.Rect
}

// NewTrimBounds builds a TrimBounds opcode.
func NewTrimBounds(rect geom.Rect, flags Flags) *TrimBounds {
	return &TrimBounds{
		common: common{kind: KindTrimBounds, version: 1, flags: flags},
		rect:   rect,
	}
}

func decodeTrimBounds(c common, r *paramReader) (Opcode, error) {
	var edges [4]int32
	for i := range edges {
		raw, err := r.uint32()
		if err != nil {
			return nil, err
		}
		if !safemath.Uint32ToInt32(raw, &edges[i]) {
			return nil, fmt.Errorf("trim edge %d out of range: %w", raw, ErrBadFormat)
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &TrimBounds{
		common: c,
		rect:   geom.Rect{Top: edges[0], Left: edges[1], Bottom: edges[2], Right: edges[3]},
	}, nil
}

func (t *TrimBounds) params() []byte {
	w := &paramWriter{}
	w.uint32(uint32(t.rect.Top))
	w.uint32(uint32(t.rect.Left))
	w.uint32(uint32(t.rect.Bottom))
	w.uint32(uint32(t.rect.Right))
	return w.data
}

// Rect returns the rectangle the image is trimmed to.
func (t *TrimBounds) Rect() geom.Rect {
	return t.rect
}

// Validate implements Opcode.
func (t *TrimBounds) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	if t.rect.IsEmpty() {
		return fmt.Errorf("empty trim rectangle: %w", ErrBadFormat)
	}
	if !bounds.ContainsRect(t.rect) {
		return fmt.Errorf("trim rectangle %+v outside image %+v: %w", t.rect, bounds, ErrBadFormat)
	}
	return nil
}

// IsNoOp implements Opcode. Trimming to the current bounds is detected by
// the executor, which knows the working geometry; the opcode itself always
// reports active.
func (t *TrimBounds) IsNoOp() bool {
	return false
}

// InputArea implements render.AreaTask.
func (t *TrimBounds) InputArea(out geom.Rect) geom.Rect {
	return identityInput(out)
}

// Process implements render.AreaTask. The executor normally short-circuits
// TrimBounds; when driven as a plain task it degenerates to a copy.
func (t *TrimBounds) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	return dst.CopyFrom(src, tile)
}
