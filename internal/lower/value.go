// Package lower implements the parser→IR lowering pass (spec §4.3): it
// walks an external syntax tree and produces bytecode.Module bodies,
// tracking identifier bindings and detecting tail calls that become
// Continue into an implicit Loop wrapper.
//
// Grounded on the teacher's frontend/ir1.go identifier-resolution walk
// (now removed, see DESIGN.md) generalized from the teacher's AST shape
// to the stack-discipline bytecode IR this compiler targets.
package lower

import "nasin/internal/types"

// valueKind discriminates the cases of ParserValue.
type valueKind int

const (
	valueFunc valueKind = iota
	valueGlobal
	valueLocal
	valueTemp
	valueBool
	valueNumber
	valueString
	valueNever
)

// ParserValue is the lowerer's own lightweight value representation (spec
// §4.3): identifiers and literals resolve to one of these without being
// materialized into the bytecode stream until actually needed, so that,
// e.g., a literal used only as an operand never emits a dead CreateValue.
type ParserValue struct {
	kind valueKind

	funcIdx   int // valueFunc
	globalIdx int // valueGlobal
	localPos  int // valueLocal/valueTemp: absolute position on the body's value stack

	boolVal bool  // valueBool
	intVal  int64 // valueNumber (integer literal)
	fltVal  float64
	isFloat bool
	numTy   types.Kind // AnyNumber/AnySignedNumber/AnyFloat unless annotated

	strVal string // valueString
}

// localValue wraps a named binding (a function parameter or a let-bound
// local) at absolute stack position pos. Because the same binding may be
// referenced more than once, materializing it always duplicates rather
// than consuming it in place.
func localValue(pos int) ParserValue { return ParserValue{kind: valueLocal, localPos: pos} }

// tempValue wraps the not-yet-consumed result of a compound expression
// (binary op, if, call, field access, array/record literal) sitting at
// absolute stack position pos. Unlike localValue it is never reachable
// through the identifier environment, so materializing it may consume it
// in place when it's still on top of the stack.
func tempValue(pos int) ParserValue { return ParserValue{kind: valueTemp, localPos: pos} }

func funcValue(idx int) ParserValue    { return ParserValue{kind: valueFunc, funcIdx: idx} }
func globalValue(idx int) ParserValue  { return ParserValue{kind: valueGlobal, globalIdx: idx} }
func boolValue(b bool) ParserValue     { return ParserValue{kind: valueBool, boolVal: b} }
func stringValue(s string) ParserValue { return ParserValue{kind: valueString, strVal: s} }
func neverValue() ParserValue          { return ParserValue{kind: valueNever} }

func intValue(v int64) ParserValue {
	return ParserValue{kind: valueNumber, intVal: v, numTy: types.AnyNumber}
}

func floatValue(v float64) ParserValue {
	return ParserValue{kind: valueNumber, fltVal: v, isFloat: true, numTy: types.AnyFloat}
}

// IsNever reports whether v represents unreachable control flow (spec §9's
// "Never-type propagation" design note: a distinct case, never a sentinel
// type).
func (v ParserValue) IsNever() bool { return v.kind == valueNever }
