// Package geom provides the integer rectangle and point types used as the
// coordinate currency for image tiling. Coordinates follow the raw-image
// convention: vertical before horizontal, top-left origin, bottom and right
// edges exclusive.
package geom

// Point is an integer image coordinate (vertical, horizontal).
type Point struct {
	V, H int32
}

// Rect is a half-open integer rectangle: [Top, Bottom) x [Left, Right).
// A rectangle with Top >= Bottom or Left >= Right is empty.
type Rect struct {
	Top, Left, Bottom, Right int32
}

// NewRect returns a rectangle at origin with the given width and height.
func NewRect(width, height int32) Rect {
	return Rect{Top: 0, Left: 0, Bottom: height, Right: width}
}

// Width returns the horizontal extent, zero for empty rectangles.
func (r Rect) Width() int32 {
	if r.Right <= r.Left {
		return 0
	}
	return r.Right - r.Left
}

// Height returns the vertical extent, zero for empty rectangles.
func (r Rect) Height() int32 {
	if r.Bottom <= r.Top {
		return 0
	}
	return r.Bottom - r.Top
}

// IsEmpty reports whether the rectangle has zero area.
func (r Rect) IsEmpty() bool {
	return r.Top >= r.Bottom || r.Left >= r.Right
}

// NotEmpty reports whether the rectangle has nonzero area.
func (r Rect) NotEmpty() bool {
	return !r.IsEmpty()
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.V >= r.Top && p.V < r.Bottom && p.H >= r.Left && p.H < r.Right
}

// ContainsRect reports whether s lies entirely inside r. An empty s is
// contained in every rectangle.
func (r Rect) ContainsRect(s Rect) bool {
	if s.IsEmpty() {
		return true
	}
	return s.Top >= r.Top && s.Bottom <= r.Bottom &&
		s.Left >= r.Left && s.Right <= r.Right
}

// Intersect returns the intersection of r and s. The empty rectangle is the
// absorbing element; all empty results normalize to the zero Rect.
func (r Rect) Intersect(s Rect) Rect {
	out := Rect{
		Top:    max32(r.Top, s.Top),
		Left:   max32(r.Left, s.Left),
		Bottom: min32(r.Bottom, s.Bottom),
		Right:  min32(r.Right, s.Right),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Clip returns the part of r that lies inside outer.
func (r Rect) Clip(outer Rect) Rect {
	return r.Intersect(outer)
}

// Union returns the bounding rectangle of r and s. Union with an empty
// rectangle returns the other operand.
func (r Rect) Union(s Rect) Rect {
	if r.IsEmpty() {
		if s.IsEmpty() {
			return Rect{}
		}
		return s
	}
	if s.IsEmpty() {
		return r
	}
	return Rect{
		Top:    min32(r.Top, s.Top),
		Left:   min32(r.Left, s.Left),
		Bottom: max32(r.Bottom, s.Bottom),
		Right:  max32(r.Right, s.Right),
	}
}

// Pad returns r grown by v rows on top and bottom and h columns on left and
// right. Negative values shrink the rectangle.
func (r Rect) Pad(v, h int32) Rect {
	out := Rect{
		Top:    r.Top - v,
		Left:   r.Left - h,
		Bottom: r.Bottom + v,
		Right:  r.Right + h,
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

// Inset is the inverse of Pad.
func (r Rect) Inset(v, h int32) Rect {
	return r.Pad(-v, -h)
}

// Offset returns r translated by p.
func (r Rect) Offset(p Point) Rect {
	return Rect{
		Top:    r.Top + p.V,
		Left:   r.Left + p.H,
		Bottom: r.Bottom + p.V,
		Right:  r.Right + p.H,
	}
}

// TopLeft returns the rectangle's origin.
func (r Rect) TopLeft() Point {
	return Point{V: r.Top, H: r.Left}
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
