package codegen

import (
	"nasin/internal/codegen/facade"
	"nasin/internal/types"
)

// fakeFacade is a minimal in-memory facade.Facade double: it records every
// declared function and data object instead of emitting real machine code,
// so the driver's control-flow and layout decisions can be asserted on
// directly without a real backend.
type fakeFacade struct {
	funcs   []fakeFunc
	data    []facade.DataInit
	dataNam []string
}

type fakeFunc struct {
	name   string
	extern bool
	sig    facade.Signature
	b      *fakeBuilder // nil for extern declarations
}

func (f *fakeFacade) DeclareExternFunc(name string, sig facade.Signature) facade.FuncRef {
	f.funcs = append(f.funcs, fakeFunc{name: name, extern: true, sig: sig})
	return facade.NewFuncRef(len(f.funcs) - 1)
}

func (f *fakeFacade) DeclareFunc(name string, sig facade.Signature) facade.FuncRef {
	f.funcs = append(f.funcs, fakeFunc{name: name, sig: sig})
	return facade.NewFuncRef(len(f.funcs) - 1)
}

func (f *fakeFacade) DeclareData(name string, init facade.DataInit) facade.DataRef {
	f.data = append(f.data, init)
	f.dataNam = append(f.dataNam, name)
	return facade.NewDataRef(len(f.data) - 1)
}

func (f *fakeFacade) Build(fn facade.FuncRef) facade.FuncBuilder {
	b := &fakeBuilder{f: f, fn: fn}
	b.blocks = append(b.blocks, fakeBlock{params: f.funcs[fn.ID()].sig.Params})
	f.funcs[fn.ID()].b = b
	return b
}

func (f *fakeFacade) Finalize() ([]byte, error) { return nil, nil }

// fakeBlock holds a block's declared parameter types and the instructions
// recorded while it was the current insertion point.
type fakeBlock struct {
	params []types.Type
	instrs []fakeInstr
	sealed bool
}

// fakeInstr is one recorded FuncBuilder call, loose enough to assert on
// without modeling real SSA values.
type fakeInstr struct {
	op     string
	ty     types.Type
	intV   int64
	fltV   float64
	boolV  bool
	data   facade.DataRef
	fn     facade.FuncRef
	addr   facade.Value
	offset int
	val    facade.Value
	args   []facade.Value
	binOp  facade.BinOp
}

// fakeBuilder assigns every Value/Block a monotonically increasing id and
// records each call against the block current at the time.
type fakeBuilder struct {
	f      *fakeFacade
	fn     facade.FuncRef
	blocks []fakeBlock
	cur    int
	nextID int

	storeCalls []fakeInstr // Store calls, across all blocks, for record/array layout assertions
	calls      []fakeInstr // Call calls, across all blocks
}

func (b *fakeBuilder) newValue() facade.Value {
	v := facade.NewValue(b.nextID)
	b.nextID++
	return v
}

func (b *fakeBuilder) Block(params ...types.Type) facade.Block {
	b.blocks = append(b.blocks, fakeBlock{params: params})
	return facade.NewBlock(len(b.blocks) - 1)
}

func (b *fakeBuilder) EntryBlock() facade.Block { return facade.NewBlock(0) }

func (b *fakeBuilder) Param(blk facade.Block, i int) facade.Value {
	return b.newValue()
}

func (b *fakeBuilder) SwitchTo(blk facade.Block) { b.cur = blk.ID() }

func (b *fakeBuilder) record(in fakeInstr) {
	b.blocks[b.cur].instrs = append(b.blocks[b.cur].instrs, in)
}

func (b *fakeBuilder) ConstBool(v bool) facade.Value {
	b.record(fakeInstr{op: "const_bool", boolV: v})
	return b.newValue()
}

func (b *fakeBuilder) ConstInt(ty types.Type, v int64) facade.Value {
	b.record(fakeInstr{op: "const_int", ty: ty, intV: v})
	return b.newValue()
}

func (b *fakeBuilder) ConstFloat(ty types.Type, v float64) facade.Value {
	b.record(fakeInstr{op: "const_float", ty: ty, fltV: v})
	return b.newValue()
}

func (b *fakeBuilder) DataAddr(d facade.DataRef) facade.Value {
	b.record(fakeInstr{op: "data_addr", data: d})
	return b.newValue()
}

func (b *fakeBuilder) FuncAddr(f facade.FuncRef) facade.Value {
	b.record(fakeInstr{op: "func_addr", fn: f})
	return b.newValue()
}

func (b *fakeBuilder) StackSlot(size int) facade.Value {
	b.record(fakeInstr{op: "stack_slot", intV: int64(size)})
	return b.newValue()
}

func (b *fakeBuilder) Load(ty types.Type, addr facade.Value, offset int) facade.Value {
	b.record(fakeInstr{op: "load", ty: ty, addr: addr, offset: offset})
	return b.newValue()
}

func (b *fakeBuilder) Store(addr facade.Value, offset int, v facade.Value) {
	in := fakeInstr{op: "store", addr: addr, offset: offset, val: v}
	b.record(in)
	b.storeCalls = append(b.storeCalls, in)
}

func (b *fakeBuilder) IndexAddr(base, index facade.Value, elemSize int) facade.Value {
	b.record(fakeInstr{op: "index_addr", addr: base, val: index, intV: int64(elemSize)})
	return b.newValue()
}

func (b *fakeBuilder) BinOp(op facade.BinOp, ty types.Type, l, r facade.Value) facade.Value {
	b.record(fakeInstr{op: "binop", binOp: op, ty: ty, addr: l, val: r})
	return b.newValue()
}

func (b *fakeBuilder) Call(f facade.FuncRef, args []facade.Value) facade.Value {
	in := fakeInstr{op: "call", fn: f, args: args}
	b.record(in)
	b.calls = append(b.calls, in)
	return b.newValue()
}

func (b *fakeBuilder) BrIf(cond facade.Value, thenB, elseB facade.Block) {
	b.record(fakeInstr{op: "brif"})
}

func (b *fakeBuilder) Jump(blk facade.Block, args []facade.Value) {
	b.record(fakeInstr{op: "jump", args: args})
}

func (b *fakeBuilder) Return(v facade.Value) {
	b.record(fakeInstr{op: "return", val: v})
}

func (b *fakeBuilder) Seal(blk facade.Block) { b.blocks[blk.ID()].sealed = true }

// funcByName finds a declared function by name, for test assertions.
func (f *fakeFacade) funcByName(name string) (fakeFunc, bool) {
	for _, fn := range f.funcs {
		if fn.name == name {
			return fn, true
		}
	}
	return fakeFunc{}, false
}
