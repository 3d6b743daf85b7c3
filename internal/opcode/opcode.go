// Package opcode implements the serialized image-correction operation list:
// decoding the parameter stream, validating each operation against the image
// geometry, and executing each operation as a tileable area task.
//
// The wire format is big-endian. A stream is a uint32 opcode count followed
// by one record per opcode: a uint32 kind identifier, a uint32 parameter
// byte length, a uint32 version/flags word (version in the high 16 bits,
// flags in the low 16), then the kind-specific parameter bytes. Every
// declared length is validated against the remaining input before anything
// is read.
package opcode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/internal/render"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// ErrBadFormat is the failure kind for malformed or inconsistent opcode
// data. It always indicates corrupt input, never a recoverable condition.
var ErrBadFormat = errors.New("bad opcode data")

// ErrUnsupported is the failure kind for a well-formed opcode that this
// implementation cannot execute, such as an unimplemented sample-type
// combination. Callers can distinguish it from corrupt input.
var ErrUnsupported = errors.New("unsupported operation")

// Kind is the stable numeric identifier of an opcode.
type Kind uint32

// Opcode kind identifiers, following the DNG opcode registry.
const (
	KindWarpRectilinear   Kind = 1
	KindFixVignetteRadial Kind = 3
	KindFixBadPixelsConst Kind = 4
	KindFixBadPixelsList  Kind = 5
	KindTrimBounds        Kind = 6
	KindMapTable          Kind = 7
	KindMapPolynomial     Kind = 8
	KindGainMap           Kind = 9
	KindDeltaPerRow       Kind = 10
	KindDeltaPerColumn    Kind = 11
	KindScalePerRow       Kind = 12
	KindScalePerColumn    Kind = 13
)

// String returns the name of the opcode kind.
func (k Kind) String() string {
	switch k {
	case KindWarpRectilinear:
		return "WarpRectilinear"
	case KindFixVignetteRadial:
		return "FixVignetteRadial"
	case KindFixBadPixelsConst:
		return "FixBadPixelsConstant"
	case KindFixBadPixelsList:
		return "FixBadPixelsList"
	case KindTrimBounds:
		return "TrimBounds"
	case KindMapTable:
		return "MapTable"
	case KindMapPolynomial:
		return "MapPolynomial"
	case KindGainMap:
		return "GainMap"
	case KindDeltaPerRow:
		return "DeltaPerRow"
	case KindDeltaPerColumn:
		return "DeltaPerColumn"
	case KindScalePerRow:
		return "ScalePerRow"
	case KindScalePerColumn:
		return "ScalePerColumn"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(k))
	}
}

// Flags qualify how an opcode participates in a render pass.
type Flags uint16

const (
	// FlagOptional marks an opcode that may be skipped if its kind is not
	// recognized. Without it, an unknown kind is a fatal format error.
	FlagOptional Flags = 1 << 0

	// FlagPreviewOnly marks an opcode that executes only when the render
	// pass is producing a preview.
	FlagPreviewOnly Flags = 1 << 1
)

// Opcode is one decoded transformation step. Every opcode is an area task;
// execution follows the render scheduler's tiling contract.
type Opcode interface {
	render.AreaTask

	// Kind returns the opcode's registry identifier.
	Kind() Kind

	// Flags returns the opcode's decoded flags.
	Flags() Flags

	// Version returns the opcode's format version.
	Version() uint16

	// Validate checks the opcode's parameters against the actual image
	// geometry and sample type. A mismatch is a format error; a valid but
	// unimplemented combination is ErrUnsupported.
	Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error

	// IsNoOp reports whether the opcode's parameters reduce to the
	// identity, in which case the executor may omit it.
	IsNoOp() bool

	// params serializes the opcode's parameter block.
	params() []byte
}

// common carries the fields every opcode shares.
type common struct {
	kind    Kind
	version uint16
	flags   Flags
}

func (c *common) Kind() Kind {
	return c.kind
}

func (c *common) Flags() Flags {
	return c.flags
}

func (c *common) Version() uint16 {
	return c.version
}

// paramReader is a checked cursor over one opcode's parameter block.
// Every read validates the remaining length first; short data is a format
// error, never an out-of-range access.
type paramReader struct {
	data []byte
	pos  int
}

func (r *paramReader) remaining() int {
	return len(r.data) - r.pos
}

func (r *paramReader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, fmt.Errorf("truncated parameters at offset %d: %w", r.pos, ErrBadFormat)
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *paramReader) uint16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, fmt.Errorf("truncated parameters at offset %d: %w", r.pos, ErrBadFormat)
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *paramReader) float32() (float32, error) {
	v, err := r.uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *paramReader) float64() (float64, error) {
	if r.remaining() < 8 {
		return 0, fmt.Errorf("truncated parameters at offset %d: %w", r.pos, ErrBadFormat)
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return math.Float64frombits(v), nil
}

// finish reports a format error if parameter bytes remain unconsumed.
func (r *paramReader) finish() error {
	if r.remaining() != 0 {
		return fmt.Errorf("%d trailing parameter bytes: %w", r.remaining(), ErrBadFormat)
	}
	return nil
}

// paramWriter builds a parameter block. It is the encode-side mirror of
// paramReader.
type paramWriter struct {
	data []byte
}

func (w *paramWriter) uint32(v uint32) {
	w.data = binary.BigEndian.AppendUint32(w.data, v)
}

func (w *paramWriter) uint16(v uint16) {
	w.data = binary.BigEndian.AppendUint16(w.data, v)
}

func (w *paramWriter) float32(v float32) {
	w.uint32(math.Float32bits(v))
}

func (w *paramWriter) float64(v float64) {
	w.data = binary.BigEndian.AppendUint64(w.data, math.Float64bits(v))
}

// AreaSpec restricts an opcode to a sub-rectangle, plane range and sampling
// pitch of the image. It is the shared header of several parameter blocks:
// four uint32 rectangle edges (top, left, bottom, right), then plane,
// plane count, row pitch and column pitch.
type AreaSpec struct {
	Area     geom.Rect
	Plane    int
	Planes   int
	RowPitch int32
	ColPitch int32
}

func decodeAreaSpec(r *paramReader) (AreaSpec, error) {
	var raw [8]uint32
	for i := range raw {
		v, err := r.uint32()
		if err != nil {
			return AreaSpec{}, err
		}
		raw[i] = v
	}

	var edges [4]int32
	for i := 0; i < 4; i++ {
		if !safemath.Uint32ToInt32(raw[i], &edges[i]) {
			return AreaSpec{}, fmt.Errorf("area edge %d out of range: %w", raw[i], ErrBadFormat)
		}
	}
	var plane, planes, rowPitch, colPitch int32
	if !safemath.Uint32ToInt32(raw[4], &plane) ||
		!safemath.Uint32ToInt32(raw[5], &planes) ||
		!safemath.Uint32ToInt32(raw[6], &rowPitch) ||
		!safemath.Uint32ToInt32(raw[7], &colPitch) {
		return AreaSpec{}, fmt.Errorf("area spec field out of range: %w", ErrBadFormat)
	}

	return AreaSpec{
		Area:     geom.Rect{Top: edges[0], Left: edges[1], Bottom: edges[2], Right: edges[3]},
		Plane:    int(plane),
		Planes:   int(planes),
		RowPitch: rowPitch,
		ColPitch: colPitch,
	}, nil
}

func (a *AreaSpec) encode(w *paramWriter) {
	w.uint32(uint32(a.Area.Top))
	w.uint32(uint32(a.Area.Left))
	w.uint32(uint32(a.Area.Bottom))
	w.uint32(uint32(a.Area.Right))
	w.uint32(uint32(a.Plane))
	w.uint32(uint32(a.Planes))
	w.uint32(uint32(a.RowPitch))
	w.uint32(uint32(a.ColPitch))
}

// validate checks the spec against the actual image geometry.
func (a *AreaSpec) validate(bounds geom.Rect, planes int) error {
	if a.Area.IsEmpty() {
		return fmt.Errorf("empty opcode area: %w", ErrBadFormat)
	}
	if !bounds.ContainsRect(a.Area) {
		return fmt.Errorf("opcode area %+v outside image %+v: %w", a.Area, bounds, ErrBadFormat)
	}
	if a.RowPitch < 1 || a.ColPitch < 1 {
		return fmt.Errorf("area pitch %dx%d: %w", a.RowPitch, a.ColPitch, ErrBadFormat)
	}
	if a.Planes < 1 || a.Plane < 0 || a.Plane+a.Planes > planes {
		return fmt.Errorf("area planes [%d, %d) of %d: %w",
			a.Plane, a.Plane+a.Planes, planes, ErrBadFormat)
	}
	return nil
}

// forEach invokes fn for every sample of tile the spec selects, honoring the
// area intersection, the plane range and the row/column pitch. Iteration
// order is row-major, which keeps per-tile work deterministic.
func (a *AreaSpec) forEach(tile geom.Rect, fn func(row, col int32, plane int)) {
	overlap := a.Area.Intersect(tile)
	if overlap.IsEmpty() {
		return
	}

	startRow := pitchAlign(overlap.Top, a.Area.Top, a.RowPitch)
	startCol := pitchAlign(overlap.Left, a.Area.Left, a.ColPitch)

	for plane := a.Plane; plane < a.Plane+a.Planes; plane++ {
		for row := startRow; row < overlap.Bottom; row += a.RowPitch {
			for col := startCol; col < overlap.Right; col += a.ColPitch {
				fn(row, col, plane)
			}
		}
	}
}

// rowIndex returns the pitched index of row within the area.
func (a *AreaSpec) rowIndex(row int32) int32 {
	return (row - a.Area.Top) / a.RowPitch
}

// colIndex returns the pitched index of col within the area.
func (a *AreaSpec) colIndex(col int32) int32 {
	return (col - a.Area.Left) / a.ColPitch
}

// rowCount returns the number of pitched rows the area selects.
func (a *AreaSpec) rowCount() int32 {
	return int32((int64(a.Area.Height()) + int64(a.RowPitch) - 1) / int64(a.RowPitch))
}

// colCount returns the number of pitched columns the area selects.
func (a *AreaSpec) colCount() int32 {
	return int32((int64(a.Area.Width()) + int64(a.ColPitch) - 1) / int64(a.ColPitch))
}

// pitchAlign returns the smallest coordinate >= from that lies on the pitch
// grid anchored at origin.
func pitchAlign(from, origin, pitch int32) int32 {
	delta := from - origin
	if rem := delta % pitch; rem != 0 {
		delta += pitch - rem
	}
	return origin + delta
}

// identityInput is the InputArea of point operations.
func identityInput(out geom.Rect) geom.Rect {
	return out
}

// typeMax returns the maximum representable value of an integer sample type,
// used to normalize parameters specified in the [0, 1] range.
func typeMax(typ pixel.SampleType) float64 {
	switch typ {
	case pixel.Uint8:
		return 255
	case pixel.Uint16:
		return 65535
	case pixel.Uint32:
		return 4294967295
	default:
		return 1
	}
}
