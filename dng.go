// Package dng provides a tiled, opcode-driven processing engine for
// raw-camera images.
//
// A raw file's metadata carries an ordered list of correction operations
// (opcodes), such as bad-pixel repair, mapping curves, gain maps and
// geometric warps, serialized as a binary parameter stream. This package decodes
// such a stream, validates it against the image geometry, and executes it
// over the image, tile by tile and optionally across a pool of workers.
// All geometry is treated as untrusted: every size and offset computation
// is overflow-checked, and malformed streams fail with a format error
// instead of reading out of bounds.
//
// Basic usage:
//
//	img, err := dng.NewImage(width, height, 1, pixel.Uint16)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// ... fill img with raw sample data ...
//	list, err := dng.DecodeOpcodeList(stream)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := dng.Render(ctx, img, list, nil)
//
// Rendering in parallel is a configuration choice, not an API change:
// set Options.Workers and tiles of each stage fan out over that many
// goroutines. Output is bit-identical for any tile size and worker count.
package dng

import (
	"github.com/mrjoshuak/go-dng/internal/opcode"
	"github.com/mrjoshuak/go-dng/internal/render"
	"github.com/mrjoshuak/go-dng/safemath"
)

// Error kinds reported by decode, validation and rendering. A cancelled
// render is not an error kind; it surfaces as the context's error.
var (
	// ErrBadFormat indicates malformed or inconsistent opcode or geometry
	// data. The input is corrupt; re-running cannot succeed.
	ErrBadFormat = opcode.ErrBadFormat

	// ErrOverflow indicates an arithmetic guard tripped while sizing a
	// buffer or validating parameters. Treated like ErrBadFormat since it
	// always originates from untrusted metadata.
	ErrOverflow = safemath.ErrOverflow

	// ErrUnsupported indicates a well-formed opcode this implementation
	// cannot execute, such as an unimplemented sample-type combination.
	ErrUnsupported = opcode.ErrUnsupported
)

// Options configures a render pass.
type Options struct {
	// MaxTileWidth and MaxTileHeight bound the tile size used to partition
	// each stage. Zero selects the defaults.
	MaxTileWidth  int32
	MaxTileHeight int32

	// Workers is the number of goroutines processing tiles concurrently.
	// Values <= 1 render single-threaded.
	Workers int

	// Preview marks the pass as a preview render. Opcodes flagged
	// preview-only execute only when Preview is set.
	Preview bool
}

// DefaultOptions returns the default render configuration: single-threaded
// with the default tile size.
func DefaultOptions() *Options {
	return &Options{
		MaxTileWidth:  render.DefaultTileWidth,
		MaxTileHeight: render.DefaultTileHeight,
		Workers:       1,
	}
}
