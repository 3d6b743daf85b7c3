package dng

import (
	"context"
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/internal/opcode"
	"github.com/mrjoshuak/go-dng/internal/render"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// OpcodeList is an ordered sequence of correction operations decoded from a
// serialized parameter stream.
type OpcodeList struct {
	list *opcode.List
}

// DecodeOpcodeList parses a serialized opcode stream. Unknown opcode kinds
// flagged optional are skipped and recorded; any other inconsistency fails
// with ErrBadFormat.
func DecodeOpcodeList(data []byte) (*OpcodeList, error) {
	list, err := opcode.Decode(data)
	if err != nil {
		return nil, err
	}
	return &OpcodeList{list: list}, nil
}

// Len returns the number of decoded opcodes.
func (l *OpcodeList) Len() int {
	return l.list.Len()
}

// Skipped returns the names of unknown optional opcode kinds dropped during
// decode, in stream order.
func (l *OpcodeList) Skipped() []string {
	kinds := l.list.Skipped()
	if len(kinds) == 0 {
		return nil
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

// NewImage allocates an image buffer for untrusted dimensions. All size
// computations go through safemath; dimensions a hostile file could use to
// overflow an allocation fail here with ErrOverflow.
func NewImage(width, height, planes uint32, typ pixel.SampleType) (*pixel.Buffer, error) {
	var w, h int32
	if !safemath.Uint32ToInt32(width, &w) || !safemath.Uint32ToInt32(height, &h) {
		return nil, fmt.Errorf("image %dx%d: %w", width, height, safemath.ErrOverflow)
	}
	p, err := safemath.Uint64ToInt(uint64(planes))
	if err != nil {
		return nil, err
	}
	return pixel.NewBuffer(geom.NewRect(w, h), p, typ)
}

// Render executes the opcode list over src and returns the corrected image.
// src itself is never modified.
//
// Opcodes run strictly in list order; within one opcode, tiles may run
// concurrently per opts.Workers. A failed pass returns a nil buffer and the
// failure kind; a cancelled pass returns a nil buffer and ctx's error,
// which callers should treat as an outcome, not a failure.
func Render(ctx context.Context, src *pixel.Buffer, list *OpcodeList, opts *Options) (*pixel.Buffer, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	planes := src.Planes()
	typ := src.SampleType()

	ops := activeOps(list, opts)
	if err := validateSequence(ops, src.Bounds(), planes, typ); err != nil {
		return nil, err
	}

	// The working buffer is a private copy: the caller's buffer stays
	// intact, and every stage reads a fully materialized prior stage.
	work, err := pixel.NewBuffer(src.Bounds(), planes, typ)
	if err != nil {
		return nil, err
	}
	if err := work.CopyFrom(src, src.Bounds()); err != nil {
		return nil, err
	}

	// One scheduler, and thus one worker pool, serves every stage of the
	// pass.
	sched := &render.Scheduler{
		MaxTileWidth:  opts.MaxTileWidth,
		MaxTileHeight: opts.MaxTileHeight,
		Workers:       opts.Workers,
	}
	defer sched.Close()

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if op.IsNoOp() {
			continue
		}

		// TrimBounds is structural: swap in a cropped working buffer.
		if tb, ok := op.(*opcode.TrimBounds); ok {
			if tb.Rect() == work.Bounds() {
				continue
			}
			cropped, err := pixel.NewBuffer(tb.Rect(), planes, typ)
			if err != nil {
				return nil, err
			}
			if err := cropped.CopyFrom(work, tb.Rect()); err != nil {
				return nil, err
			}
			work = cropped
			continue
		}

		bounds := work.Bounds()
		if render.InPlace(op) {
			// Point operations touch each sample exactly once, so tiles
			// can transform the working buffer directly.
			if err := sched.Run(ctx, op, work, work, bounds); err != nil {
				return nil, renderError(i, op, err)
			}
			continue
		}

		// Padded operations read neighbors across tile seams, so they
		// write a fresh buffer while the prior stage stays immutable.
		dst, err := pixel.NewBuffer(bounds, planes, typ)
		if err != nil {
			return nil, err
		}
		if err := sched.Run(ctx, op, work, dst, bounds); err != nil {
			return nil, renderError(i, op, err)
		}
		work = dst
	}

	return work, nil
}

// activeOps filters the list down to the opcodes this pass will run:
// preview-only opcodes are dropped unless the pass renders a preview.
func activeOps(list *OpcodeList, opts *Options) []opcode.Opcode {
	all := list.list.Ops()
	ops := make([]opcode.Opcode, 0, len(all))
	for _, op := range all {
		if op.Flags()&opcode.FlagPreviewOnly != 0 && !opts.Preview {
			continue
		}
		ops = append(ops, op)
	}
	return ops
}

// validateSequence checks each opcode against the geometry in effect at its
// position in the list: TrimBounds changes the working bounds for every
// opcode after it.
func validateSequence(ops []opcode.Opcode, bounds geom.Rect, planes int, typ pixel.SampleType) error {
	cur := bounds
	for i, op := range ops {
		if err := op.Validate(cur, planes, typ); err != nil {
			return fmt.Errorf("opcode %d (%s): %w", i, op.Kind(), err)
		}
		if tb, ok := op.(*opcode.TrimBounds); ok {
			cur = tb.Rect()
		}
	}
	return nil
}

func renderError(i int, op opcode.Opcode, err error) error {
	return fmt.Errorf("executing opcode %d (%s): %w", i, op.Kind(), err)
}
