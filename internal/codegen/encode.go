package codegen

import (
	"encoding/binary"
	"math"

	"nasin/internal/codegen/facade"
)

// byteBuilder assembles one constant data object's bytes plus the
// relocations needed to patch in pointers to other data objects (e.g. a
// record literal holding a string sub-object) — exactly facade.DataInit's
// shape.
type byteBuilder struct {
	buf    []byte
	relocs []facade.Relocation
}

func (bb *byteBuilder) padTo(offset int) {
	for len(bb.buf) < offset {
		bb.buf = append(bb.buf, 0)
	}
}

// putLiteral appends rv's byte_es at the builder's current write position,
// which must already be padded to offset by the caller (recordLayout's
// per-field alignment, or a flat element stride for arrays). rv must be
// literal (see RuntimeValue.isLiteral) — this is a compile-time constant
// encoder, never a runtime one.
func (bb *byteBuilder) putLiteral(sz int, rv RuntimeValue) {
	switch rv.source {
	case srcImmBool:
		if rv.boolVal {
			bb.buf = append(bb.buf, 1)
		} else {
			bb.buf = append(bb.buf, 0)
		}
	case srcImmInt:
		bb.buf = appendUint(bb.buf, uint64(rv.intVal), sz)
	case srcImmFloat:
		var bits uint64
		if sz == 4 {
			bits = uint64(math.Float32bits(float32(rv.fltVal)))
		} else {
			bits = math.Float64bits(rv.fltVal)
		}
		bb.buf = appendUint(bb.buf, bits, sz)
	case srcData:
		bb.relocs = append(bb.relocs, facade.Relocation{Offset: len(bb.buf), Target: rv.data})
		bb.buf = appendUint(bb.buf, 0, wordSize)
	default:
		panic("nasin: internal error: non-literal RuntimeValue reached constant encoding")
	}
}

func appendUint(buf []byte, v uint64, sz int) []byte {
	tmp := make([]byte, 8)
	binary.LittleEndian.PutUint64(tmp, v)
	return append(buf, tmp[:sz]...)
}

// encodeString builds a string literal's data object bytes (spec §4.5): a
// machine-word length prefix, the raw bytes, then a NUL terminator so the
// object doubles as a C string for libcalls.
func encodeString(s string) []byte {
	out := make([]byte, 0, wordSize+len(s)+1)
	out = appendUint(out, uint64(len(s)), wordSize)
	out = append(out, s...)
	out = append(out, 0)
	return out
}
