package opcode

import (
	"encoding/binary"
	"fmt"

	"github.com/mrjoshuak/go-dng/geom"
	"github.com/mrjoshuak/go-dng/pixel"
	"github.com/mrjoshuak/go-dng/safemath"
)

// List is an ordered sequence of decoded opcodes. The order is the execution
// order and is preserved exactly as read; duplicate kinds are permitted.
type List struct {
	ops     []Opcode
	skipped []Kind
}

// Ops returns the decoded opcodes in execution order.
func (l *List) Ops() []Opcode {
	return l.ops
}

// Len returns the number of decoded opcodes.
func (l *List) Len() int {
	return len(l.ops)
}

// Skipped returns the kinds of unknown optional opcodes that were dropped
// during decode, in stream order.
func (l *List) Skipped() []Kind {
	return l.skipped
}

// Append adds an opcode to the end of the list.
func (l *List) Append(op Opcode) {
	l.ops = append(l.ops, op)
}

// Validate checks every opcode against the image geometry. It stops at the
// first failure; a failed list must not be executed.
func (l *List) Validate(bounds geom.Rect, planes int, typ pixel.SampleType) error {
	for i, op := range l.ops {
		if err := op.Validate(bounds, planes, typ); err != nil {
			return fmt.Errorf("opcode %d (%s): %w", i, op.Kind(), err)
		}
	}
	return nil
}

// Decode parses a serialized opcode stream. Unknown kinds flagged optional
// are recorded and skipped; unknown kinds without the flag, malformed
// parameters and truncated records are format errors.
func Decode(data []byte) (*List, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("opcode stream %d bytes, need count: %w", len(data), ErrBadFormat)
	}
	count := binary.BigEndian.Uint32(data)
	pos := 4

	list := &List{}
	for i := uint32(0); i < count; i++ {
		if len(data)-pos < 12 {
			return nil, fmt.Errorf("opcode %d: truncated record header: %w", i, ErrBadFormat)
		}
		kind := Kind(binary.BigEndian.Uint32(data[pos:]))
		paramLen64 := uint64(binary.BigEndian.Uint32(data[pos+4:]))
		word := binary.BigEndian.Uint32(data[pos+8:])
		pos += 12

		// The declared length is validated before any parameter byte is
		// touched; a length past the end of the stream is corrupt input.
		paramLen, err := safemath.Uint64ToInt(paramLen64)
		if err != nil || paramLen > len(data)-pos {
			return nil, fmt.Errorf("opcode %d (%s): declared %d parameter bytes, %d remain: %w",
				i, kind, paramLen64, len(data)-pos, ErrBadFormat)
		}
		params := data[pos : pos+paramLen]
		pos += paramLen

		c := common{
			kind:    kind,
			version: uint16(word >> 16),
			flags:   Flags(word & 0xFFFF),
		}

		op, err := decodeOpcode(c, params)
		if err != nil {
			return nil, fmt.Errorf("opcode %d (%s): %w", i, kind, err)
		}
		if op == nil {
			// Unknown kind. Optional opcodes are skippable by contract;
			// anything else is a fatal format error.
			if c.flags&FlagOptional == 0 {
				return nil, fmt.Errorf("opcode %d: unknown kind %s without optional flag: %w",
					i, kind, ErrBadFormat)
			}
			list.skipped = append(list.skipped, kind)
			continue
		}
		list.ops = append(list.ops, op)
	}

	if pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after %d opcodes: %w",
			len(data)-pos, count, ErrBadFormat)
	}
	return list, nil
}

// decodeOpcode dispatches on the opcode kind. A nil, nil return means the
// kind is not recognized.
func decodeOpcode(c common, params []byte) (Opcode, error) {
	r := &paramReader{data: params}
	switch c.kind {
	case KindWarpRectilinear:
		return decodeWarpRectilinear(c, r)
	case KindFixVignetteRadial:
		return decodeFixVignetteRadial(c, r)
	case KindFixBadPixelsConst:
		return decodeFixBadPixelsConstant(c, r)
	case KindFixBadPixelsList:
		return decodeFixBadPixelsList(c, r)
	case KindTrimBounds:
		return decodeTrimBounds(c, r)
	case KindMapTable:
		return decodeMapTable(c, r)
	case KindMapPolynomial:
		return decodeMapPolynomial(c, r)
	case KindGainMap:
		return decodeGainMap(c, r)
	case KindDeltaPerRow, KindDeltaPerColumn:
		return decodeDeltaPer(c, r)
	case KindScalePerRow, KindScalePerColumn:
		return decodeScalePer(c, r)
	default:
		return nil, nil
	}
}

// Encode serializes the list back to the wire format.
func (l *List) Encode() []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(l.ops)))
	for _, op := range l.ops {
		params := op.params()
		out = binary.BigEndian.AppendUint32(out, uint32(op.Kind()))
		out = binary.BigEndian.AppendUint32(out, uint32(len(params)))
		word := uint32(op.Version())<<16 | uint32(op.Flags())
		out = binary.BigEndian.AppendUint32(out, word)
		out = append(out, params...)
	}
	return out
}
