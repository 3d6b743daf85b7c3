package geom

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/safemath"
)

// TileIterator partitions a rectangle into a row-major sequence of
// non-overlapping tiles no larger than a requested maximum size. Tiles at the
// right and bottom edges are clipped to the outer bounds, so the last tile in
// a row or column may be smaller than requested. The union of all tiles is
// exactly the input rectangle.
//
// The iterator is pure coordinate generation; it holds no pixel data.
type TileIterator struct {
	bounds       Rect
	tileW, tileH int32
	acrossX      uint32
	acrossY      uint32
	index        uint32
	count        uint32
}

// NewTileIterator creates an iterator over bounds with the given maximum tile
// dimensions. Tile dimensions must be positive. The tile grid size is
// computed through safemath since bounds typically derive from file metadata.
func NewTileIterator(bounds Rect, maxTileWidth, maxTileHeight int32) (*TileIterator, error) {
	if maxTileWidth <= 0 || maxTileHeight <= 0 {
		return nil, fmt.Errorf("tile size %dx%d: dimensions must be positive", maxTileWidth, maxTileHeight)
	}

	it := &TileIterator{
		bounds: bounds,
		tileW:  maxTileWidth,
		tileH:  maxTileHeight,
	}

	if bounds.IsEmpty() {
		return it, nil
	}

	acrossX, err := safemath.Uint32DivideUp(uint32(bounds.Width()), uint32(maxTileWidth))
	if err != nil {
		return nil, err
	}
	acrossY, err := safemath.Uint32DivideUp(uint32(bounds.Height()), uint32(maxTileHeight))
	if err != nil {
		return nil, err
	}
	count, err := safemath.Uint32Mult(acrossX, acrossY)
	if err != nil {
		return nil, err
	}

	it.acrossX = acrossX
	it.acrossY = acrossY
	it.count = count
	return it, nil
}

// Count returns the total number of tiles.
func (it *TileIterator) Count() int {
	return int(it.count)
}

// Index returns the sequence index of the tile Next will return.
func (it *TileIterator) Index() int {
	return int(it.index)
}

// Next returns the next tile in row-major order. The second result is false
// once the sequence is exhausted.
func (it *TileIterator) Next() (Rect, bool) {
	if it.index >= it.count {
		return Rect{}, false
	}
	t := it.Tile(int(it.index))
	it.index++
	return t, true
}

// Reset restarts the sequence from the first tile.
func (it *TileIterator) Reset() {
	it.index = 0
}

// Tile returns the i-th tile in row-major order without advancing the
// iterator. It panics if i is out of range; callers iterate within Count.
func (it *TileIterator) Tile(i int) Rect {
	if i < 0 || uint32(i) >= it.count {
		panic(fmt.Sprintf("tile index %d out of range [0, %d)", i, it.count))
	}

	tileX := int64(uint32(i) % it.acrossX)
	tileY := int64(uint32(i) / it.acrossX)

	// Intermediate products are formed in int64: tile origins are bounded by
	// the int32 bounds, but origin+tileSize may exceed them before clipping.
	top := int64(it.bounds.Top) + tileY*int64(it.tileH)
	left := int64(it.bounds.Left) + tileX*int64(it.tileW)
	bottom := min64(top+int64(it.tileH), int64(it.bounds.Bottom))
	right := min64(left+int64(it.tileW), int64(it.bounds.Right))

	return Rect{
		Top:    int32(top),
		Left:   int32(left),
		Bottom: int32(bottom),
		Right:  int32(right),
	}
}
