// Package render drives area tasks over the tiles of an image, optionally
// across a pool of workers.
//
// An AreaTask is the unit of per-tile work: for each output tile it declares
// the input rectangle it needs (the tile grown by its padding) and then
// transforms samples from the input buffer into the output tile. Tasks never
// write outside their tile, so disjoint tiles of the same task can run
// concurrently on the same destination buffer.
package render

import (
	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
)

// AreaTask is one tileable transformation over an image.
//
// Process must read only from the rectangle InputArea(tile) reports, clamped
// to the source buffer's bounds, and must write only inside tile. Reads of
// clamped-away coordinates use edge replication (ConstrainedSample), which
// depends only on the coordinate, never on the tiling, so stitched output is
// seamless.
type AreaTask interface {
	// InputArea returns the input rectangle required to produce out. Tasks
	// that read neighboring samples return out grown by their padding; the
	// scheduler clamps the result to the source bounds.
	InputArea(out geom.Rect) geom.Rect

	// Process transforms samples of src inside tile and writes the results
	// to dst. src and dst may be the same buffer only when InputArea is the
	// identity.
	Process(src, dst *pixel.Buffer, tile geom.Rect) error
}

// InPlace reports whether task can safely read and write the same buffer:
// true exactly when its input requirement for any tile is the tile itself.
func InPlace(task AreaTask) bool {
	probe := geom.Rect{Top: 8, Left: 8, Bottom: 24, Right: 24}
	return task.InputArea(probe) == probe
}
