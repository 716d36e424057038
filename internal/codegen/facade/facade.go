// Package facade defines the code-generator facade contract (spec §6):
// the only surface internal/codegen is allowed to drive. Its shape is
// deliberately Cranelift's — blocks own typed parameters instead of phi
// nodes — per original_source/'s cranelift-shim dependency; internal/codegen/llvmgen
// adapts that shape onto LLVM's incoming-PHI model at the boundary.
package facade

import "nasin/internal/types"

// FuncRef is an opaque handle to a declared function.
type FuncRef struct{ id int }

// DataRef is an opaque handle to a declared data object.
type DataRef struct{ id int }

// Block is an opaque handle to a basic block within one function build.
type Block struct{ id int }

// Value is an opaque handle to an SSA value within one function build.
type Value struct{ id int }

// NewFuncRef, NewDataRef, NewBlock and NewValue let a Facade implementation
// construct handles from its own internal ids; the zero value of each type
// is never a valid handle.
func NewFuncRef(id int) FuncRef { return FuncRef{id: id + 1} }
func NewDataRef(id int) DataRef { return DataRef{id: id + 1} }
func NewBlock(id int) Block     { return Block{id: id + 1} }
func NewValue(id int) Value     { return Value{id: id + 1} }

// ID returns the implementation-assigned id passed to the constructor.
func (f FuncRef) ID() int { return f.id - 1 }
func (d DataRef) ID() int { return d.id - 1 }
func (b Block) ID() int   { return b.id - 1 }
func (v Value) ID() int   { return v.id - 1 }

// Valid reports whether the handle was ever assigned.
func (f FuncRef) Valid() bool { return f.id != 0 }
func (d DataRef) Valid() bool { return d.id != 0 }
func (b Block) Valid() bool   { return b.id != 0 }
func (v Value) Valid() bool   { return v.id != 0 }

// Signature is a function's parameter and return types.
type Signature struct {
	Params []types.Type
	Ret    types.Type
}

// Relocation is one byte-offset fixup against another data object, for
// byte-defined data objects that embed pointers (e.g. a record literal
// holding a string sub-object).
type Relocation struct {
	Offset int
	Target DataRef
	Addend int64
}

// DataInit describes one data object's contents (spec §6): writable or
// read-only, zero-initialized to Size bytes or byte-defined from Bytes
// with optional Relocations patched in at Finalize.
type DataInit struct {
	Writable  bool
	ZeroInit  bool
	Size      int
	Bytes     []byte
	Relocs    []Relocation
}

// BinOp identifies one arithmetic or comparison operation a FuncBuilder
// can emit, mirroring bytecode.Op's IsArithmetic/IsComparison subset so
// internal/codegen never has to leak bytecode.Op across the facade
// boundary.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	Eq
	Neq
	Gt
	Gte
	Lt
	Lte
)

// Facade is the compiler-facing contract of spec §6: declare extern
// functions, declare functions, declare data (writable/read-only,
// zero-init/byte-defined, with relocations), build function bodies via
// blocks-with-parameters, and finalize to a relocatable object.
type Facade interface {
	DeclareExternFunc(name string, sig Signature) FuncRef
	DeclareFunc(name string, sig Signature) FuncRef
	DeclareData(name string, init DataInit) DataRef

	// Build returns a builder for fn's body. fn must have been returned by
	// DeclareFunc (not DeclareExternFunc) on the same Facade.
	Build(fn FuncRef) FuncBuilder

	// Finalize lowers every declared function and data object to a
	// relocatable object file's bytes.
	Finalize() ([]byte, error)
}

// FuncBuilder builds one function's SSA body: blocks with typed
// parameters (standing in for phi nodes), materializing operands lazily,
// and branches that carry arguments to the target block's parameters.
type FuncBuilder interface {
	// Block creates a new, unsealed block with the given parameter types
	// and returns its handle. The entry block is created implicitly and
	// its parameters are the function's own parameters — retrieve them
	// with Param(EntryBlock(), i).
	Block(params ...types.Type) Block
	EntryBlock() Block
	Param(b Block, i int) Value

	// SwitchTo makes b the current insertion point for subsequent
	// instructions.
	SwitchTo(b Block)

	ConstBool(v bool) Value
	ConstInt(ty types.Type, v int64) Value
	ConstFloat(ty types.Type, v float64) Value
	DataAddr(d DataRef) Value
	FuncAddr(f FuncRef) Value

	// StackSlot allocates size bytes in the current function's frame and
	// returns its address, for an aggregate with non-literal components.
	StackSlot(size int) Value
	Load(ty types.Type, addr Value, offset int) Value
	Store(addr Value, offset int, v Value)

	// IndexAddr computes the address of element index within an array
	// starting at base, each element elemSize bytes wide.
	IndexAddr(base, index Value, elemSize int) Value

	BinOp(op BinOp, ty types.Type, l, r Value) Value
	Call(f FuncRef, args []Value) Value

	// BrIf branches to thenB if cond is true, elseB otherwise. Neither
	// target may take block arguments through BrIf — use Jump from inside
	// thenB/elseB instead, matching Cranelift's brif/jump split.
	BrIf(cond Value, thenB, elseB Block)
	// Jump transfers control to b, binding args to b's block parameters.
	Jump(b Block, args []Value)

	Return(v Value)
	// Seal finalizes b once all of its predecessors are known, required
	// before code can read across it.
	Seal(b Block)
}
