// Package codegen implements the IR→SSA driver (spec §4.5): it walks a
// type-checked bytecode.Module and replays its stack-machine bodies against
// a facade.Facade, translating the stack discipline into blocks with
// parameters. Call only after typecheck.Check has reported no errors —
// reaching this package with an unresolved type or a CompileError producer
// is an internal invariant violation, not a user error.
//
// Grounded on the teacher's ir/llvm/transform.go tree-to-SSA walk (now
// removed, see DESIGN.md), generalized from the teacher's AST-shaped IR to
// this compiler's flat stack-machine bytecode, and on
// original_source/src/codegen/binary/func.rs for the lazy
// immediate/SSA-value/data/slot source taxonomy.
package codegen

import (
	"nasin/internal/codegen/facade"
	"nasin/internal/types"
)

// rvSource discriminates how a RuntimeValue can be turned into an actual
// facade.Value, mirroring spec §4.5's shadow-stack source taxonomy.
type rvSource int

const (
	srcImmBool rvSource = iota
	srcImmInt
	srcImmFloat
	srcSSA
	srcData
	srcFunc
)

// RuntimeValue is one element of the driver's shadow value stack: a type
// plus a lazily-materializable source. Dup-ing a RuntimeValue is free — it
// just copies the struct — and a value that's never actually consumed by
// an instruction needing a real operand never touches the FuncBuilder at
// all, the codegen analogue of internal/lower's deferred materialization.
type RuntimeValue struct {
	Ty     types.Type
	source rvSource

	boolVal bool
	intVal  int64
	fltVal  float64

	ssaVal facade.Value
	data   facade.DataRef
	fn     facade.FuncRef
}

func immBool(v bool) RuntimeValue {
	return RuntimeValue{Ty: types.Prim(types.Bool), source: srcImmBool, boolVal: v}
}

func immInt(ty types.Type, v int64) RuntimeValue {
	return RuntimeValue{Ty: ty, source: srcImmInt, intVal: v}
}

func immFloat(ty types.Type, v float64) RuntimeValue {
	return RuntimeValue{Ty: ty, source: srcImmFloat, fltVal: v}
}

func ssaValue(ty types.Type, v facade.Value) RuntimeValue {
	return RuntimeValue{Ty: ty, source: srcSSA, ssaVal: v}
}

func dataValue(ty types.Type, d facade.DataRef) RuntimeValue {
	return RuntimeValue{Ty: ty, source: srcData, data: d}
}

func funcValue(ty types.Type, f facade.FuncRef) RuntimeValue {
	return RuntimeValue{Ty: ty, source: srcFunc, fn: f}
}

// isLiteral reports whether rv was produced without ever touching a
// FuncBuilder — an immediate or a (necessarily constant) data reference —
// which is exactly the set of sources a constant-folded aggregate or
// global initializer may be built from.
func (rv RuntimeValue) isLiteral() bool {
	switch rv.source {
	case srcImmBool, srcImmInt, srcImmFloat, srcData:
		return true
	default:
		return false
	}
}

// materialize turns rv into an actual facade.Value in fb's current block,
// emitting the lazily-deferred constant/address instruction on first use.
// Calling it twice on the same RuntimeValue (e.g. after a Dup) simply
// re-emits an equally cheap constant or re-reads the same SSA value; both
// are safe because facade values are immutable once produced.
func (rv RuntimeValue) materialize(fb facade.FuncBuilder) facade.Value {
	switch rv.source {
	case srcImmBool:
		return fb.ConstBool(rv.boolVal)
	case srcImmInt:
		return fb.ConstInt(rv.Ty, rv.intVal)
	case srcImmFloat:
		return fb.ConstFloat(rv.Ty, rv.fltVal)
	case srcData:
		return fb.DataAddr(rv.data)
	case srcFunc:
		return fb.FuncAddr(rv.fn)
	case srcSSA:
		return rv.ssaVal
	default:
		panic("nasin: internal error: materialize of an unset RuntimeValue")
	}
}
