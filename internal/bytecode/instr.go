package bytecode

import "nasin/internal/types"

// Op identifies an Instr's opcode. See spec §3.2 for the stack effect of
// each.
type Op int

const (
	OpDup Op = iota
	OpGetGlobal
	OpGetField
	OpArrayIndex
	OpCreateValue
	OpCreateString
	OpCreateArray
	OpCreateRecord
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpCall
	OpIf
	OpElse
	OpEnd
	OpLoop
	OpContinue
	OpCompileError
)

var opNames = map[Op]string{
	OpDup: "dup", OpGetGlobal: "get_global", OpGetField: "get_field",
	OpArrayIndex:  "array_index",
	OpCreateValue: "create_value", OpCreateString: "create_string",
	OpCreateArray: "create_array", OpCreateRecord: "create_record",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod", OpPow: "pow",
	OpEq: "eq", OpNeq: "neq", OpGt: "gt", OpGte: "gte", OpLt: "lt", OpLte: "lte",
	OpCall: "call", OpIf: "if", OpElse: "else", OpEnd: "end",
	OpLoop: "loop", OpContinue: "continue", OpCompileError: "compile_error",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "?op"
}

// IsArithmetic reports whether op is one of Add..Pow (2 pops, 1 push).
func (o Op) IsArithmetic() bool {
	switch o {
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpPow:
		return true
	default:
		return false
	}
}

// IsComparison reports whether op is one of Eq..Lte (2 pops, 1 push Bool).
func (o Op) IsComparison() bool {
	switch o {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		return true
	default:
		return false
	}
}

// Instr is one bytecode instruction. Only the fields relevant to Op are
// meaningful; this mirrors the Type struct's tagged-union-by-convention
// style used throughout this compiler.
type Instr struct {
	Op  Op
	Loc Loc

	Rel       int    // Dup: relative stack depth.
	GlobalIdx int    // GetGlobal, and Call's self-recursion check.
	Field     string // GetField, CreateRecord (used as a single name is not enough so see Fields).
	Fields    []string
	Value     Value       // CreateValue.
	Str       string      // CreateString.
	ElemType  types.Type  // CreateArray: declared element type.
	Arity     int         // CreateArray/CreateRecord/Loop: number of values popped; Continue: number of args.
	FuncIdx   int         // Call.
	ResultTy  types.Type  // If/Loop: declared (initially unknown) block result type.
	Resolved  *types.Type // Set by the checker write-back for ambiguous producers (CreateValue, CreateRecord).
}

// Dup constructs a Dup instruction copying the stack element at relative
// depth rel (0 is the current top).
func Dup(rel int, loc Loc) Instr { return Instr{Op: OpDup, Rel: rel, Loc: loc} }

// GetGlobal constructs a GetGlobal instruction reading global idx.
func GetGlobal(idx int, loc Loc) Instr { return Instr{Op: OpGetGlobal, GlobalIdx: idx, Loc: loc} }

// GetField constructs a GetField instruction loading field name from the
// record pointer on top of the stack.
func GetField(name string, loc Loc) Instr { return Instr{Op: OpGetField, Field: name, Loc: loc} }

// ArrayIndex constructs an ArrayIndex instruction loading the element at the
// index on top of the stack from the array beneath it.
func ArrayIndex(loc Loc) Instr { return Instr{Op: OpArrayIndex, Loc: loc} }

// CreateValue constructs a primitive literal producer.
func CreateValue(v Value, loc Loc) Instr { return Instr{Op: OpCreateValue, Value: v, Loc: loc} }

// CreateString constructs a string literal producer.
func CreateString(s string, loc Loc) Instr { return Instr{Op: OpCreateString, Str: s, Loc: loc} }

// CreateArray constructs an n-ary array producer of the declared item type.
func CreateArray(item types.Type, n int, loc Loc) Instr {
	return Instr{Op: OpCreateArray, ElemType: item, Arity: n, Loc: loc}
}

// CreateRecord constructs an n-ary record producer naming each popped
// value's destination field, in the literal's (not the typedef's) order.
func CreateRecord(fields []string, loc Loc) Instr {
	return Instr{Op: OpCreateRecord, Fields: fields, Arity: len(fields), Loc: loc}
}

// Call constructs a direct call to function funcIdx.
func Call(funcIdx, arity int, loc Loc) Instr {
	return Instr{Op: OpCall, FuncIdx: funcIdx, Arity: arity, Loc: loc}
}

// If opens the two nested then/else blocks.
func If(resultTy types.Type, loc Loc) Instr { return Instr{Op: OpIf, ResultTy: resultTy, Loc: loc} }

// Else switches from the then branch to the else branch.
func Else(loc Loc) Instr { return Instr{Op: OpElse, Loc: loc} }

// End closes the innermost open If or Loop block.
func End(loc Loc) Instr { return Instr{Op: OpEnd, Loc: loc} }

// Loop opens a loop block consuming arity values as its block parameters.
func Loop(resultTy types.Type, arity int, loc Loc) Instr {
	return Instr{Op: OpLoop, ResultTy: resultTy, Arity: arity, Loc: loc}
}

// Continue jumps back to the loop head with arity new argument values.
func Continue(arity int, loc Loc) Instr { return Instr{Op: OpContinue, Arity: arity, Loc: loc} }

// CompileErrorInstr is an explicit poison producer: lowering emits it in
// place of a value it could not construct so downstream passes never
// panic on a missing producer.
func CompileErrorInstr(loc Loc) Instr { return Instr{Op: OpCompileError, Loc: loc} }
