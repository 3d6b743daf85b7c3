package opcode

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// maxPolynomialDegree bounds MapPolynomial, matching the DNG limit.
const maxPolynomialDegree = 8

// MapTable remaps integer samples through a 16-bit lookup table.
type MapTable struct {
	common
	area  AreaSpec
	table []uint16
}

// NewMapTable builds a MapTable opcode over the given area.
func NewMapTable(area AreaSpec, table []uint16, flags Flags) *MapTable {
	return &MapTable{
		common: common{kind: KindMapTable, version: 1, flags: flags},
		area:   area,
		table:  table,
	}
}

func decodeMapTable(c common, r *paramReader) (Opcode, error) {
	area, err := decodeAreaSpec(r)
	if err != nil {
		return nil, err
	}
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if count < 1 || count > 65536 {
		return nil, fmt.Errorf("map table size %d: %w", count, ErrBadFormat)
	}
	n, err := safemath.Uint64ToInt(uint64(count))
	if err != nil {
		return nil, err
	}
	table := make([]uint16, n)
	for i := range table {
		v, err := r.uint16()
		if err != nil {
			return nil, err
		}
		table[i] = v
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &MapTable{common: c, area: area, table: table}, nil
}

func (m *MapTable) params() []byte {
	w := &paramWriter{}
	m.area.encode(w)
	w.uint32(uint32(len(m.table)))
	for _, v := range m.table {
		w.uint16(v)
	}
	return w.data
}

// Validate implements Opcode. Table lookup is defined for integer samples
// only; float images reject with ErrUnsupported.
func (m *MapTable) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	if err := m.area.validate(bounds, planes); err != nil {
		return err
	}
	if !typ.IsInteger() {
		return fmt.Errorf("map table over %s samples: %w", typ, ErrUnsupported)
	}
	return nil
}

// IsNoOp reports whether the table maps every index to itself.
func (m *MapTable) IsNoOp() bool {
	for i, v := range m.table {
		if int(v) != i {
			return false
		}
	}
	return true
}

// InputArea implements render.AreaTask; table mapping is a point operation.
func (m *MapTable) InputArea(out geom.Rect) geom.Rect {
	return identityInput(out)
}

// Process implements render.AreaTask.
func (m *MapTable) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	last := len(m.table) - 1
	m.area.forEach(tile, func(row, col int32, plane int) {
		idx := int(src.Sample(row, col, plane))
		if idx > last {
			idx = last
		}
		dst.SetSample(row, col, plane, float64(m.table[idx]))
	})
	return nil
}

// MapPolynomial remaps samples through a polynomial evaluated on the
// normalized sample value. Integer samples are normalized by the type
// maximum; float samples are used directly.
type MapPolynomial struct {
	common
	area  AreaSpec
	coefs []float64
}

// NewMapPolynomial builds a MapPolynomial opcode. coefs[i] is the
// coefficient of x^i.
func NewMapPolynomial(area AreaSpec, coefs []float64, flags Flags) *MapPolynomial {
	return &MapPolynomial{
		common: common{kind: KindMapPolynomial, version: 1, flags: flags},
		area:   area,
		coefs:  coefs,
	}
}

func decodeMapPolynomial(c common, r *paramReader) (Opcode, error) {
	area, err := decodeAreaSpec(r)
	if err != nil {
		return nil, err
	}
	degree, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if degree > maxPolynomialDegree {
		return nil, fmt.Errorf("polynomial degree %d exceeds %d: %w",
			degree, maxPolynomialDegree, ErrBadFormat)
	}
	coefs := make([]float64, degree+1)
	for i := range coefs {
		v, err := r.float64()
		if err != nil {
			return nil, err
		}
		coefs[i] = v
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &MapPolynomial{common: c, area: area, coefs: coefs}, nil
}

func (m *MapPolynomial) params() []byte {
	w := &paramWriter{}
	m.area.encode(w)
	w.uint32(uint32(len(m.coefs) - 1))
	for _, v := range m.coefs {
		w.float64(v)
	}
	return w.data
}

// Validate implements Opcode.
func (m *MapPolynomial) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	return m.area.validate(bounds, planes)
}

// IsNoOp reports whether the polynomial is the identity mapping.
func (m *MapPolynomial) IsNoOp() bool {
	if len(m.coefs) != 2 {
		return false
	}
	return m.coefs[0] == 0 && m.coefs[1] == 1
}

// InputArea implements render.AreaTask.
func (m *MapPolynomial) InputArea(out geom.Rect) geom.Rect {
	return identityInput(out)
}

// Process implements render.AreaTask.
func (m *MapPolynomial) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	scale := typeMax(src.SampleType())
	m.area.forEach(tile, func(row, col int32, plane int) {
		x := src.Sample(row, col, plane) / scale
		// Horner evaluation keeps per-sample work at one multiply-add per
		// coefficient and is bit-stable across tilings.
		y := 0.0
		for i := len(m.coefs) - 1; i >= 0; i-- {
			y = y*x + m.coefs[i]
		}
		dst.SetSample(row, col, plane, y*scale)
	})
	return nil
}
