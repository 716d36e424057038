package codegen

import (
	"strconv"

	"nasin/internal/bytecode"
	"nasin/internal/codegen/facade"
	"nasin/internal/types"
)

// isLiteralOnly reports whether body is a straight-line sequence of pure
// literal producers (no Dup, GetGlobal, Call, arithmetic or control flow):
// exactly the shape a global initializer or an array/record's element list
// must have to be constant-folded into an anonymous read-only data object
// instead of runtime-initialized code (spec §4.5's aggregate-construction
// bullet).
func isLiteralOnly(body []bytecode.Instr) bool {
	for _, instr := range body {
		switch instr.Op {
		case bytecode.OpCreateValue, bytecode.OpCreateString, bytecode.OpCreateArray, bytecode.OpCreateRecord:
		default:
			return false
		}
	}
	return true
}

// foldLiteralBody evaluates a literal-only body entirely at compile time,
// interning any aggregate it builds as read-only data through d.internData.
// ok is false if body wasn't literal-only; callers fall back to emitting
// it as real runtime code.
func (d *Driver) foldLiteralBody(body []bytecode.Instr) (result RuntimeValue, ok bool) {
	if !isLiteralOnly(body) {
		return RuntimeValue{}, false
	}
	var stack []RuntimeValue
	for i := range body {
		instr := &body[i]
		switch instr.Op {
		case bytecode.OpCreateValue:
			stack = append(stack, constValue(*instr))
		case bytecode.OpCreateString:
			stack = append(stack, d.constString(instr.Str))
		case bytecode.OpCreateArray:
			n := instr.Arity
			elems := append([]RuntimeValue(nil), stack[len(stack)-n:]...)
			stack = stack[:len(stack)-n]
			stack = append(stack, d.constArray(instr.ElemType, elems))
		case bytecode.OpCreateRecord:
			n := instr.Arity
			elems := append([]RuntimeValue(nil), stack[len(stack)-n:]...)
			stack = stack[:len(stack)-n]
			ref := resolvedTypeRef(*instr)
			stack = append(stack, d.constRecord(ref, instr.Fields, elems))
		}
	}
	if len(stack) != 1 {
		panic("nasin: internal error: literal-only body did not leave exactly one value")
	}
	return stack[0], true
}

// constValue converts a (already type-checked, Resolved) CreateValue
// instruction into an immediate RuntimeValue.
func constValue(instr bytecode.Instr) RuntimeValue {
	ty := types.Prim(instr.Value.Kind)
	if instr.Resolved != nil {
		ty = *instr.Resolved
	}
	if ty.Kind == types.Bool {
		return immBool(instr.Value.Bool)
	}
	if isFloatKind(ty.Kind) {
		return immFloat(ty, instr.Value.Float)
	}
	return immInt(ty, instr.Value.Int)
}

func isFloatKind(k types.Kind) bool {
	return k == types.F32 || k == types.F64
}

// resolvedTypeRef extracts the TypeRef index the checker wrote back onto a
// CreateRecord instruction (writeback.go always sets Resolved for
// CreateRecord once validation succeeds).
func resolvedTypeRef(instr bytecode.Instr) int {
	if instr.Resolved == nil || instr.Resolved.Kind != types.TypeRef {
		panic("nasin: internal error: CreateRecord reached codegen without a resolved typeref")
	}
	return instr.Resolved.Ref
}

// constString interns s's length-prefixed, NUL-terminated encoding as
// read-only data, sharing storage across identical literals.
func (d *Driver) constString(s string) RuntimeValue {
	ref := d.internData(encodeString(s), false)
	return dataValue(types.NewString(nil), ref)
}

// constArray encodes a fully-literal array literal as one read-only data
// object.
func (d *Driver) constArray(item types.Type, elems []RuntimeValue) RuntimeValue {
	elemSize, _ := arrayLayout(d.mod, item, len(elems))
	var bb byteBuilder
	for _, e := range elems {
		bb.putLiteral(elemSize, e)
	}
	ref := d.internData(bb.buf, false)
	ln := len(elems)
	return dataValue(types.NewArray(item, &ln), ref)
}

// constRecord encodes a fully-literal record literal as one read-only data
// object, reordering the literal's fields (elems, parallel to fieldNames)
// into the typedef's canonical order (spec §8's record-field-ordering
// property).
func (d *Driver) constRecord(ref int, fieldNames []string, elems []RuntimeValue) RuntimeValue {
	byName := make(map[string]RuntimeValue, len(elems))
	for i, name := range fieldNames {
		byName[name] = elems[i]
	}
	layout, size := recordLayout(d.mod, ref)
	var bb byteBuilder
	for _, f := range layout {
		bb.padTo(f.Offset)
		bb.putLiteral(sizeOf(d.mod, f.Ty), byName[f.Name])
	}
	bb.padTo(size)
	dref := d.internDataWithRelocs(bb.buf, bb.relocs, false)
	return dataValue(types.NewTypeRef(ref), dref)
}

// internData declares a read-only (or, if writable, uniquely-named)
// relocation-free data object, sharing storage across byte-identical
// content when read-only (spec §4.5: "shared by hash").
func (d *Driver) internData(bytes []byte, writable bool) facade.DataRef {
	return d.internDataWithRelocs(bytes, nil, writable)
}

func (d *Driver) internDataWithRelocs(bytes []byte, relocs []facade.Relocation, writable bool) facade.DataRef {
	if !writable && len(relocs) == 0 {
		key := string(bytes)
		if ref, ok := d.dataInterned[key]; ok {
			return ref
		}
		ref := d.fc.DeclareData(d.anonName(), facade.DataInit{Bytes: bytes})
		d.dataInterned[key] = ref
		return ref
	}
	return d.fc.DeclareData(d.anonName(), facade.DataInit{Writable: writable, Bytes: bytes, Relocs: relocs})
}

func (d *Driver) anonName() string {
	d.anonCounter++
	return "$data." + strconv.Itoa(d.anonCounter)
}
