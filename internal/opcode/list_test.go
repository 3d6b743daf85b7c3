package opcode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
)

func fullArea(width, height int32) AreaSpec {
	return AreaSpec{
		Area:     geom.NewRect(width, height),
		Plane:    0,
		Planes:   1,
		RowPitch: 1,
		ColPitch: 1,
	}
}

// record assembles one raw opcode record for hand-built streams.
func record(kind Kind, version uint16, flags Flags, params []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(kind))
	out = binary.BigEndian.AppendUint32(out, uint32(len(params)))
	out = binary.BigEndian.AppendUint32(out, uint32(version)<<16|uint32(flags))
	return append(out, params...)
}

func stream(records ...[]byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(records)))
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	area := fullArea(16, 16)
	table := make([]uint16, 256)
	for i := range table {
		table[i] = uint16(255 - i)
	}

	list := &List{}
	list.Append(NewMapTable(area, table, 0))
	list.Append(NewMapPolynomial(area, []float64{0, 1.5, -0.25}, FlagOptional))
	list.Append(NewFixVignetteRadial([5]float64{0.1, 0, 0, 0, 0}, 0.5, 0.5, 0))
	list.Append(NewTrimBounds(geom.Rect{Top: 2, Left: 2, Bottom: 14, Right: 14}, 0))
	list.Append(NewDeltaPerRow(area, make([]float32, 16), 0))
	list.Append(NewScalePerColumn(area, []float32{1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 2}, 0))
	list.Append(NewGainMap(area, 2, 2, 0.5, 0.5, 0, 0, 1, []float32{1, 1.1, 1.2, 1.3}, 0))
	list.Append(NewWarpRectilinear([][4]float64{{1, 0.01, 0, 0}}, 0.5, 0.5, 0))
	list.Append(NewFixBadPixelsConstant(0, 1, 0))
	list.Append(NewFixBadPixelsList(0,
		[]geom.Point{{V: 3, H: 4}},
		[]geom.Rect{{Top: 5, Left: 5, Bottom: 6, Right: 8}}, 0))

	encoded := list.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Len() != list.Len() {
		t.Fatalf("decoded %d opcodes, want %d", decoded.Len(), list.Len())
	}
	for i, op := range decoded.Ops() {
		if op.Kind() != list.Ops()[i].Kind() {
			t.Errorf("opcode %d: kind %s, want %s", i, op.Kind(), list.Ops()[i].Kind())
		}
	}
	if !bytes.Equal(decoded.Encode(), encoded) {
		t.Error("re-encoded stream differs from original")
	}
}

func TestDecodeUnknownOptionalSkipped(t *testing.T) {
	known := record(KindFixVignetteRadial, 1, 0,
		NewFixVignetteRadial([5]float64{0.1, 0, 0, 0, 0}, 0.5, 0.5, 0).params())
	unknown := record(Kind(100), 1, FlagOptional, []byte{1, 2, 3, 4})

	list, err := Decode(stream(known, unknown))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if list.Len() != 1 {
		t.Errorf("Len() = %d, want 1", list.Len())
	}
	skipped := list.Skipped()
	if len(skipped) != 1 || skipped[0] != Kind(100) {
		t.Errorf("Skipped() = %v, want [Unknown(100)]", skipped)
	}
}

func TestDecodeUnknownRequiredFails(t *testing.T) {
	unknown := record(Kind(100), 1, 0, []byte{1, 2, 3, 4})
	if _, err := Decode(stream(unknown)); !errors.Is(err, ErrBadFormat) {
		t.Errorf("Decode(unknown required kind): error = %v, want ErrBadFormat", err)
	}
}

func TestDecodeMalformedStreams(t *testing.T) {
	vignette := record(KindFixVignetteRadial, 1, 0,
		NewFixVignetteRadial([5]float64{0.1, 0, 0, 0, 0}, 0.5, 0.5, 0).params())
	valid := stream(vignette)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short count", []byte{0, 0, 0}},
		{"truncated header", valid[:8]},
		{"truncated parameters", valid[:len(valid)-10]},
		{"trailing bytes", append(append([]byte{}, valid...), 0xFF)},
		{"declared length past end", func() []byte {
			s := append([]byte{}, valid...)
			binary.BigEndian.PutUint32(s[8:], 1<<30)
			return s
		}()},
		{"excess parameter bytes", stream(record(KindFixVignetteRadial, 1, 0,
			append(NewFixVignetteRadial([5]float64{}, 0.5, 0.5, 0).params(), 0, 0, 0, 0)))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.data); !errors.Is(err, ErrBadFormat) {
				t.Errorf("Decode: error = %v, want ErrBadFormat", err)
			}
		})
	}
}

func TestDecodeEmptyList(t *testing.T) {
	list, err := Decode([]byte{0, 0, 0, 0})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if list.Len() != 0 {
		t.Errorf("Len() = %d, want 0", list.Len())
	}
}

func TestDecodeBadParameters(t *testing.T) {
	area := fullArea(16, 16)

	tests := []struct {
		name string
		rec  []byte
	}{
		{"map table zero entries", func() []byte {
			op := NewMapTable(area, []uint16{0}, 0)
			p := op.params()
			// Patch the count field to zero; the table payload no longer
			// matters because the count check fires first.
			binary.BigEndian.PutUint32(p[32:], 0)
			return record(KindMapTable, 1, 0, p[:36])
		}()},
		{"polynomial degree too large", func() []byte {
			op := NewMapPolynomial(area, make([]float64, 10), 0)
			return record(KindMapPolynomial, 1, 0, op.params())
		}()},
		{"delta table wrong size", func() []byte {
			op := NewDeltaPerRow(area, make([]float32, 3), 0)
			return record(KindDeltaPerRow, 1, 0, op.params())
		}()},
		{"gain map entry mismatch", func() []byte {
			op := NewGainMap(area, 2, 2, 0.5, 0.5, 0, 0, 1, []float32{1, 1, 1}, 0)
			return record(KindGainMap, 1, 0, op.params())
		}()},
		{"warp zero planes", func() []byte {
			op := NewWarpRectilinear(nil, 0.5, 0.5, 0)
			return record(KindWarpRectilinear, 1, 0, op.params())
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(stream(tt.rec)); !errors.Is(err, ErrBadFormat) {
				t.Errorf("Decode: error = %v, want ErrBadFormat", err)
			}
		})
	}
}

func TestDecodePreservesVersionAndFlags(t *testing.T) {
	rec := record(KindFixVignetteRadial, 3, FlagOptional|FlagPreviewOnly,
		NewFixVignetteRadial([5]float64{0.1, 0, 0, 0, 0}, 0.5, 0.5, 0).params())
	list, err := Decode(stream(rec))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	op := list.Ops()[0]
	if op.Version() != 3 {
		t.Errorf("Version() = %d, want 3", op.Version())
	}
	if op.Flags() != FlagOptional|FlagPreviewOnly {
		t.Errorf("Flags() = %v, want optional|preview-only", op.Flags())
	}
}

func TestListValidate(t *testing.T) {
	bounds := geom.NewRect(16, 16)

	good := &List{}
	good.Append(NewMapPolynomial(fullArea(16, 16), []float64{0, 1.2}, 0))
	if err := good.Validate(bounds, 1, pixel.Uint16); err != nil {
		t.Errorf("Validate(good list): %v", err)
	}

	bad := &List{}
	bad.Append(NewMapPolynomial(fullArea(32, 32), []float64{0, 1.2}, 0))
	if err := bad.Validate(bounds, 1, pixel.Uint16); !errors.Is(err, ErrBadFormat) {
		t.Errorf("Validate(area outside image): error = %v, want ErrBadFormat", err)
	}

	unsupported := &List{}
	unsupported.Append(NewMapTable(fullArea(16, 16), []uint16{0, 1}, 0))
	if err := unsupported.Validate(bounds, 1, pixel.Float32); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Validate(table over float): error = %v, want ErrUnsupported", err)
	}
}
