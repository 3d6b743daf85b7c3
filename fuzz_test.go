package dng

import (
	"bytes"
	"testing"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/internal/opcode"
)

// FuzzDecodeOpcodeList feeds arbitrary bytes to the stream decoder. The
// decoder must reject malformed input with an error, never panic or read out
// of bounds, and anything it accepts must re-encode and decode to the same
// stream.
func FuzzDecodeOpcodeList(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0})
	f.Add(encodeOps(
		opcode.NewFixVignetteRadial([5]float64{0.2, 0, 0, 0, 0}, 0.5, 0.5, 0),
		opcode.NewTrimBounds(geom.Rect{Top: 1, Left: 1, Bottom: 9, Right: 9}, 0),
	))
	f.Add(encodeOps(
		opcode.NewMapPolynomial(fullArea(geom.NewRect(8, 8)), []float64{0, 1.5}, opcode.FlagOptional),
	))
	f.Add(encodeOps(
		opcode.NewFixBadPixelsList(1,
			[]geom.Point{{V: 2, H: 2}},
			[]geom.Rect{{Top: 0, Left: 0, Bottom: 1, Right: 3}}, 0),
	))
	// Unknown kind with the optional flag, which must decode and be skipped.
	f.Add([]byte{
		0, 0, 0, 1,
		0, 0, 0, 99,
		0, 0, 0, 2,
		0, 1, 0, 1,
		0xAB, 0xCD,
	})

	f.Fuzz(func(t *testing.T, data []byte) {
		list, err := DecodeOpcodeList(data)
		if err != nil {
			return
		}
		encoded := list.list.Encode()
		again, err := opcode.Decode(encoded)
		if err != nil {
			t.Fatalf("re-decode of accepted stream: %v", err)
		}
		if !bytes.Equal(again.Encode(), encoded) {
			t.Fatal("re-encode of accepted stream is not stable")
		}
	})
}
