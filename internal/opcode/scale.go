package opcode

import (
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
)

// DeltaPer adds a per-row or per-column offset to every selected sample.
// Deltas are expressed in normalized units: they are scaled by the type
// maximum for integer samples and applied directly to float samples.
type DeltaPer struct {
	common
	area   AreaSpec
	deltas []float32
}

// NewDeltaPerRow builds a DeltaPerRow opcode; deltas must have one entry per
// pitched row of the area.
func NewDeltaPerRow(area AreaSpec, deltas []float32, flags Flags) *DeltaPer {
	return &DeltaPer{
		common: common{kind: KindDeltaPerRow, version: 1, flags: flags},
		area:   area,
		deltas: deltas,
	}
}

// NewDeltaPerColumn builds a DeltaPerColumn opcode; deltas must have one
// entry per pitched column of the area.
func NewDeltaPerColumn(area AreaSpec, deltas []float32, flags Flags) *DeltaPer {
	return &DeltaPer{
		common: common{kind: KindDeltaPerColumn, version: 1, flags: flags},
		area:   area,
		deltas: deltas,
	}
}

func decodeDeltaPer(c common, r *paramReader) (Opcode, error) {
	area, err := decodeAreaSpec(r)
	if err != nil {
		return nil, err
	}
	deltas, err := decodePerEntryTable(c.kind == KindDeltaPerRow, area, r)
	if err != nil {
		return nil, err
	}
	return &DeltaPer{common: c, area: area, deltas: deltas}, nil
}

// decodePerEntryTable reads the count-prefixed float32 table of the per-row
// and per-column opcodes and checks it matches the area's pitched extent.
func decodePerEntryTable(perRow bool, area AreaSpec, r *paramReader) ([]float32, error) {
	count, err := r.uint32()
	if err != nil {
		return nil, err
	}
	want := area.colCount()
	if perRow {
		want = area.rowCount()
	}
	if int64(count) != int64(want) {
		return nil, fmt.Errorf("table of %d entries for %d pitched rows/columns: %w",
			count, want, ErrBadFormat)
	}
	table := make([]float32, count)
	for i := range table {
		v, err := r.float32()
		if err != nil {
			return nil, err
		}
		table[i] = v
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return table, nil
}

func (d *DeltaPer) params() []byte {
	w := &paramWriter{}
	d.area.encode(w)
	w.uint32(uint32(len(d.deltas)))
	for _, v := range d.deltas {
		w.float32(v)
	}
	return w.data
}

// Validate implements Opcode.
func (d *DeltaPer) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	return d.area.validate(bounds, planes)
}

// IsNoOp reports whether every delta is zero.
func (d *DeltaPer) IsNoOp() bool {
	for _, v := range d.deltas {
		if v != 0 {
			return false
		}
	}
	return true
}

// InputArea implements render.AreaTask.
func (d *DeltaPer) InputArea(out geom.Rect) geom.Rect {
	return identityInput(out)
}

// Process implements render.AreaTask.
func (d *DeltaPer) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	scale := typeMax(src.SampleType())
	perRow := d.kind == KindDeltaPerRow
	d.area.forEach(tile, func(row, col int32, plane int) {
		i := d.area.colIndex(col)
		if perRow {
			i = d.area.rowIndex(row)
		}
		v := src.Sample(row, col, plane) + float64(d.deltas[i])*scale
		dst.SetSample(row, col, plane, v)
	})
	return nil
}

// ScalePer multiplies every selected sample by a per-row or per-column
// factor.
type ScalePer struct {
	common
	area   AreaSpec
	scales []float32
}

// NewScalePerRow builds a ScalePerRow opcode; scales must have one entry per
// pitched row of the area.
func NewScalePerRow(area AreaSpec, scales []float32, flags Flags) *ScalePer {
	return &ScalePer{
		common: common{kind: KindScalePerRow, version: 1, flags: flags},
		area:   area,
		scales: scales,
	}
}

// NewScalePerColumn builds a ScalePerColumn opcode; scales must have one
// entry per pitched column of the area.
func NewScalePerColumn(area AreaSpec, scales []float32, flags Flags) *ScalePer {
	return &ScalePer{
		common: common{kind: KindScalePerColumn, version: 1, flags: flags},
		area:   area,
		scales: scales,
	}
}

func decodeScalePer(c common, r *paramReader) (Opcode, error) {
	area, err := decodeAreaSpec(r)
	if err != nil {
		return nil, err
	}
	scales, err := decodePerEntryTable(c.kind == KindScalePerRow, area, r)
	if err != nil {
		return nil, err
	}
	return &ScalePer{common: c, area: area, scales: scales}, nil
}

func (s *ScalePer) params() []byte {
	w := &paramWriter{}
	s.area.encode(w)
	w.uint32(uint32(len(s.scales)))
	for _, v := range s.scales {
		w.float32(v)
	}
	return w.data
}

// Validate implements Opcode.
func (s *ScalePer) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	return s.area.validate(bounds, planes)
}

// IsNoOp reports whether every scale factor is one.
func (s *ScalePer) IsNoOp() bool {
	for _, v := range s.scales {
		if v != 1 {
			return false
		}
	}
	return true
}

// InputArea implements render.AreaTask.
func (s *ScalePer) InputArea(out geom.Rect) geom.Rect {
	return identityInput(out)
}

// Process implements render.AreaTask.
func (s *ScalePer) Process(src, dst *pixel.Buffer, tile geom.Rect) error {
	perRow := s.kind == KindScalePerRow
	s.area.forEach(tile, func(row, col int32, plane int) {
		i := s.area.colIndex(col)
		if perRow {
			i = s.area.rowIndex(row)
		}
		v := src.Sample(row, col, plane) * float64(s.scales[i])
		dst.SetSample(row, col, plane, v)
	})
	return nil
}
