package codegen

import "nasin/internal/types"

// wordSize is the machine word width in bytes this driver targets: the
// size of pointers, USize, and the length prefix on string literals (spec
// §4.5's "machine word, native endian").
const wordSize = 8

// sizeOf returns the in-memory footprint of a concrete type. Array,
// TypeRef and String are always reference types on this machine — records
// and arrays are addressed, never embedded by value — so they all cost one
// word regardless of their contents. Abstract numeric upper bounds and
// unresolved Infer must never reach codegen: the checker's numeric-collapse
// property (spec §8) guarantees every value has a concrete kind by the time
// WriteBack runs.
func sizeOf(ref fieldResolver, t types.Type) int {
	switch t.Kind {
	case types.Bool, types.I8, types.U8:
		return 1
	case types.I16, types.U16:
		return 2
	case types.I32, types.U32, types.F32:
		return 4
	case types.I64, types.U64, types.USize, types.F64:
		return 8
	case types.String, types.Array, types.TypeRef:
		return wordSize
	default:
		panic("nasin: internal error: sizeOf of non-concrete type " + t.String())
	}
}

// fieldResolver is the subset of bytecode.Module codegen's layout code
// needs; it's the same shape as types.Resolver.
type fieldResolver interface {
	Field(ref int, name string) (types.Type, bool)
	FieldNames(ref int) []string
}

// recordField is one field's name, resolved type and byte offset within its
// record's layout.
type recordField struct {
	Name   string
	Ty     types.Type
	Offset int
}

// recordLayout computes a record typedef's field offsets in canonical
// (sorted) order — the order CreateRecord must write fields in regardless
// of the literal's own order (spec §8's record-field-ordering property) —
// and its total size, each field aligned to its own size.
func recordLayout(ref fieldResolver, typeRef int) (fields []recordField, size int) {
	names := ref.FieldNames(typeRef)
	offset := 0
	for _, name := range names {
		ty, ok := ref.Field(typeRef, name)
		if !ok {
			panic("nasin: internal error: record field " + name + " missing from typedef")
		}
		sz := sizeOf(ref, ty)
		offset = align(offset, sz)
		fields = append(fields, recordField{Name: name, Ty: ty, Offset: offset})
		offset += sz
	}
	return fields, offset
}

// arrayLayout returns the per-element size and total byte size of an
// n-element array of item type item.
func arrayLayout(ref fieldResolver, item types.Type, n int) (elemSize, size int) {
	elemSize = sizeOf(ref, item)
	return elemSize, elemSize * n
}

func align(offset, size int) int {
	if size <= 1 {
		return offset
	}
	if r := offset % size; r != 0 {
		return offset + (size - r)
	}
	return offset
}
