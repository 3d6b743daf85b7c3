// Package pixel provides typed, strided views over rectangular sample data.
//
// A Buffer addresses samples by (row, column, plane) within its bounds.
// Storage is planar: all samples of plane 0, then plane 1, and so on, each
// plane row-major. Sub-rectangle views share backing storage with their
// parent; views over disjoint regions may be written concurrently, views
// that overlap must not be (the buffer provides no synchronization).
package pixel

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/safemath"
)

// SampleType identifies the storage type of one pixel sample.
type SampleType int

const (
	// Uint8 is an 8-bit unsigned integer sample.
	Uint8 SampleType = iota
	// Uint16 is a 16-bit unsigned integer sample.
	Uint16
	// Uint32 is a 32-bit unsigned integer sample.
	Uint32
	// Float16 is a 16-bit IEEE half-precision float sample.
	Float16
	// Float32 is a 32-bit IEEE float sample.
	Float32
)

// Size returns the storage size of one sample in bytes.
func (t SampleType) Size() int {
	switch t {
	case Uint8:
		return 1
	case Uint16, Float16:
		return 2
	case Uint32, Float32:
		return 4
	default:
		return 0
	}
}

// IsInteger reports whether the sample type is an unsigned integer type.
func (t SampleType) IsInteger() bool {
	switch t {
	case Uint8, Uint16, Uint32:
		return true
	default:
		return false
	}
}

// String returns the string representation of the sample type.
func (t SampleType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	default:
		return "unknown"
	}
}

// Buffer is a typed view over a rectangular region of pixel samples.
type Buffer struct {
	bounds geom.Rect
	planes int
	typ    SampleType

	// Sample counts, not bytes. offset locates (bounds.Top, bounds.Left,
	// plane 0) in the backing slice.
	rowStep   int
	planeStep int
	offset    int

	u8  []uint8
	u16 []uint16 // also backs Float16
	u32 []uint32
	f32 []float32
}

// layout validates bounds, planes and typ and returns the total sample count
// plus the width used as row stride. All size computations are
// overflow-checked; untrusted dimensions fail here rather than producing an
// undersized allocation.
func layout(bounds geom.Rect, planes int, typ SampleType) (samples, width int, err error) {
	if bounds.IsEmpty() {
		return 0, 0, fmt.Errorf("pixel buffer bounds %+v: empty", bounds)
	}
	if planes < 1 {
		return 0, 0, fmt.Errorf("pixel buffer planes %d: must be >= 1", planes)
	}
	if typ.Size() == 0 {
		return 0, 0, fmt.Errorf("pixel buffer: unknown sample type %d", int(typ))
	}

	width32, err := safemath.Int32ToUint32(bounds.Width())
	if err != nil {
		return 0, 0, err
	}
	height32, err := safemath.Int32ToUint32(bounds.Height())
	if err != nil {
		return 0, 0, err
	}
	planes32, err := safemath.IntToUint32(planes)
	if err != nil {
		return 0, 0, err
	}
	samples32, err := safemath.Uint32Mult(width32, height32, planes32)
	if err != nil {
		return 0, 0, fmt.Errorf("pixel buffer %dx%dx%d: %w", width32, height32, planes, err)
	}
	// The byte size must also be representable.
	bytes64, err := safemath.Uint64Mult(uint64(samples32), uint64(typ.Size()))
	if err != nil {
		return 0, 0, err
	}
	if _, err := safemath.Uint64ToInt(bytes64); err != nil {
		return 0, 0, fmt.Errorf("pixel buffer %dx%dx%d %s: %w", width32, height32, planes, typ, err)
	}
	return int(samples32), int(width32), nil
}

// NewBuffer allocates a buffer covering bounds with the given plane count and
// sample type.
func NewBuffer(bounds geom.Rect, planes int, typ SampleType) (*Buffer, error) {
	samples, width, err := layout(bounds, planes, typ)
	if err != nil {
		return nil, err
	}

	b := &Buffer{
		bounds:    bounds,
		planes:    planes,
		typ:       typ,
		rowStep:   width,
		planeStep: width * int(bounds.Height()),
	}
	switch typ {
	case Uint8:
		b.u8 = make([]uint8, samples)
	case Uint16, Float16:
		b.u16 = make([]uint16, samples)
	case Uint32:
		b.u32 = make([]uint32, samples)
	case Float32:
		b.f32 = make([]float32, samples)
	}
	return b, nil
}

// NewBufferWith wraps caller-supplied storage instead of allocating. The
// slice's element type must match the sample type ([]uint16 backs both
// Uint16 and Float16) and must hold at least width*height*planes samples in
// planar, row-major order; the geometry goes through the same overflow
// checks as NewBuffer. The buffer borrows storage, so writes through either
// side are visible to the other.
func NewBufferWith(bounds geom.Rect, planes int, typ SampleType, storage any) (*Buffer, error) {
	samples, width, err := layout(bounds, planes, typ)
	if err != nil {
		return nil, err
	}

	b := &Buffer{
		bounds:    bounds,
		planes:    planes,
		typ:       typ,
		rowStep:   width,
		planeStep: width * int(bounds.Height()),
	}
	var n int
	switch s := storage.(type) {
	case []uint8:
		if typ != Uint8 {
			return nil, fmt.Errorf("pixel buffer: []uint8 storage for %s samples", typ)
		}
		b.u8, n = s, len(s)
	case []uint16:
		if typ != Uint16 && typ != Float16 {
			return nil, fmt.Errorf("pixel buffer: []uint16 storage for %s samples", typ)
		}
		b.u16, n = s, len(s)
	case []uint32:
		if typ != Uint32 {
			return nil, fmt.Errorf("pixel buffer: []uint32 storage for %s samples", typ)
		}
		b.u32, n = s, len(s)
	case []float32:
		if typ != Float32 {
			return nil, fmt.Errorf("pixel buffer: []float32 storage for %s samples", typ)
		}
		b.f32, n = s, len(s)
	default:
		return nil, fmt.Errorf("pixel buffer: unsupported storage type %T", storage)
	}
	if n < samples {
		return nil, fmt.Errorf("pixel buffer %+v x%d %s: storage holds %d samples, need %d",
			bounds, planes, typ, n, samples)
	}
	return b, nil
}

// Bounds returns the rectangle of samples the buffer addresses.
func (b *Buffer) Bounds() geom.Rect {
	return b.bounds
}

// Planes returns the plane count.
func (b *Buffer) Planes() int {
	return b.planes
}

// SampleType returns the per-sample storage type.
func (b *Buffer) SampleType() SampleType {
	return b.typ
}

// Window returns a zero-copy view over the sub-rectangle r, which must lie
// within the buffer's bounds. The view shares backing storage: writes through
// the view are visible to the parent and vice versa.
func (b *Buffer) Window(r geom.Rect) (*Buffer, error) {
	if !b.bounds.ContainsRect(r) || r.IsEmpty() {
		return nil, fmt.Errorf("window %+v outside buffer bounds %+v", r, b.bounds)
	}
	w := *b
	w.bounds = r
	w.offset = b.offset +
		int(r.Top-b.bounds.Top)*b.rowStep +
		int(r.Left-b.bounds.Left)
	return &w, nil
}

// sampleIndex computes the backing-slice index of a sample. Bounds were
// validated at construction, so plain int arithmetic cannot overflow here.
func (b *Buffer) sampleIndex(row, col int32, plane int) int {
	return b.offset + plane*b.planeStep +
		int(row-b.bounds.Top)*b.rowStep +
		int(col-b.bounds.Left)
}

func (b *Buffer) checkAddress(row, col int32, plane int) {
	if row < b.bounds.Top || row >= b.bounds.Bottom ||
		col < b.bounds.Left || col >= b.bounds.Right ||
		plane < 0 || plane >= b.planes {
		panic(fmt.Sprintf("sample address (%d, %d, %d) outside buffer %+v planes %d",
			row, col, plane, b.bounds, b.planes))
	}
}

// Sample returns the sample at (row, col, plane) widened to float64.
// Addressing outside the buffer is a programming error and panics.
func (b *Buffer) Sample(row, col int32, plane int) float64 {
	b.checkAddress(row, col, plane)
	i := b.sampleIndex(row, col, plane)
	switch b.typ {
	case Uint8:
		return float64(b.u8[i])
	case Uint16:
		return float64(b.u16[i])
	case Uint32:
		return float64(b.u32[i])
	case Float16:
		return float64(halfToFloat(b.u16[i]))
	case Float32:
		return float64(b.f32[i])
	}
	return 0
}

// SetSample stores v at (row, col, plane), clamping to the representable
// range of integer sample types.
func (b *Buffer) SetSample(row, col int32, plane int, v float64) {
	b.checkAddress(row, col, plane)
	i := b.sampleIndex(row, col, plane)
	switch b.typ {
	case Uint8:
		b.u8[i] = uint8(clamp(v, 0, 255) + 0.5)
	case Uint16:
		b.u16[i] = uint16(clamp(v, 0, 65535) + 0.5)
	case Uint32:
		b.u32[i] = uint32(clamp(v, 0, 4294967295) + 0.5)
	case Float16:
		b.u16[i] = floatToHalf(float32(v))
	case Float32:
		b.f32[i] = float32(v)
	}
}

// ConstrainedSample returns the sample at (row, col, plane) with the
// coordinates clamped into the buffer's bounds. This is the edge-replication
// rule padded tasks use when their input rectangle was clipped to the image:
// the value depends only on the clamped coordinate, so it is identical no
// matter how the image was tiled.
func (b *Buffer) ConstrainedSample(row, col int32, plane int) float64 {
	if row < b.bounds.Top {
		row = b.bounds.Top
	} else if row >= b.bounds.Bottom {
		row = b.bounds.Bottom - 1
	}
	if col < b.bounds.Left {
		col = b.bounds.Left
	} else if col >= b.bounds.Right {
		col = b.bounds.Right - 1
	}
	return b.Sample(row, col, plane)
}

// RowUint16 returns the samples of one row of one plane as a slice. The
// buffer's sample type must be Uint16.
func (b *Buffer) RowUint16(row int32, plane int) []uint16 {
	if b.typ != Uint16 {
		panic(fmt.Sprintf("RowUint16 on %s buffer", b.typ))
	}
	b.checkAddress(row, b.bounds.Left, plane)
	i := b.sampleIndex(row, b.bounds.Left, plane)
	return b.u16[i : i+int(b.bounds.Width())]
}

// RowFloat32 returns the samples of one row of one plane as a slice. The
// buffer's sample type must be Float32.
func (b *Buffer) RowFloat32(row int32, plane int) []float32 {
	if b.typ != Float32 {
		panic(fmt.Sprintf("RowFloat32 on %s buffer", b.typ))
	}
	b.checkAddress(row, b.bounds.Left, plane)
	i := b.sampleIndex(row, b.bounds.Left, plane)
	return b.f32[i : i+int(b.bounds.Width())]
}

// Fill sets every sample in the buffer to v.
func (b *Buffer) Fill(v float64) {
	for plane := 0; plane < b.planes; plane++ {
		for row := b.bounds.Top; row < b.bounds.Bottom; row++ {
			for col := b.bounds.Left; col < b.bounds.Right; col++ {
				b.SetSample(row, col, plane, v)
			}
		}
	}
}

// CopyFrom copies the samples of area from src into b. Both buffers must
// cover area, share the sample type and have the same plane count.
func (b *Buffer) CopyFrom(src *Buffer, area geom.Rect) error {
	if src.typ != b.typ {
		return fmt.Errorf("copy from %s buffer into %s buffer", src.typ, b.typ)
	}
	if src.planes != b.planes {
		return fmt.Errorf("copy from %d-plane buffer into %d-plane buffer", src.planes, b.planes)
	}
	if !src.bounds.ContainsRect(area) || !b.bounds.ContainsRect(area) {
		return fmt.Errorf("copy area %+v not covered by both buffers", area)
	}

	for plane := 0; plane < b.planes; plane++ {
		for row := area.Top; row < area.Bottom; row++ {
			si := src.sampleIndex(row, area.Left, plane)
			di := b.sampleIndex(row, area.Left, plane)
			n := int(area.Width())
			switch b.typ {
			case Uint8:
				copy(b.u8[di:di+n], src.u8[si:si+n])
			case Uint16, Float16:
				copy(b.u16[di:di+n], src.u16[si:si+n])
			case Uint32:
				copy(b.u32[di:di+n], src.u32[si:si+n])
			case Float32:
				copy(b.f32[di:di+n], src.f32[si:si+n])
			}
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
