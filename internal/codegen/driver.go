package codegen

import (
	"fmt"

	"nasin/internal/bytecode"
	"nasin/internal/codegen/facade"
	"nasin/internal/types"
)

// Driver owns one module's worth of codegen state: the facade being
// mutated linearly (spec §5 — single-threaded, the only shared resource),
// the function/global declarations already registered with it, and the
// constant-data interning table.
type Driver struct {
	fc  facade.Facade
	mod *bytecode.Module

	funcRefs []facade.FuncRef

	// Per-global: either a folded compile-time constant (globalConst[i] set,
	// globalFolded[i] true) or a declared data object backing a runtime-
	// computed value (globalData[i] set). Exactly one applies per global.
	globalConst  []RuntimeValue
	globalFolded []bool
	globalData   []facade.DataRef

	dataInterned map[string]facade.DataRef
	anonCounter  int

	exitFunc      facade.FuncRef
	exitDeclared  bool
	initFunc      facade.FuncRef
	initNeeded    bool
	initGlobalIdx []int // globals whose body must run in the synthesized init function, in order
}

// Generate lowers a type-checked module through fc and returns the
// finished object file's bytes. mod must already have passed
// typecheck.Check with no errors (spec §7: "on any error, code generation
// is skipped for that module").
func Generate(fc facade.Facade, mod *bytecode.Module) ([]byte, error) {
	d := &Driver{
		fc:           fc,
		mod:          mod,
		dataInterned: make(map[string]facade.DataRef),
	}
	d.declareFuncs()
	d.lowerGlobals()
	d.lowerFuncs()
	d.maybeSynthesizeStart()
	return fc.Finalize()
}

func (d *Driver) declareFuncs() {
	d.funcRefs = make([]facade.FuncRef, len(d.mod.Funcs))
	for i, f := range d.mod.Funcs {
		sig := facade.Signature{Params: paramTypes(f.Params), Ret: f.Ret}
		if f.IsExtern() {
			d.funcRefs[i] = d.fc.DeclareExternFunc(f.Extern, sig)
		} else {
			d.funcRefs[i] = d.fc.DeclareFunc(f.Name, sig)
		}
	}
}

func paramTypes(params []bytecode.Param) []types.Type {
	out := make([]types.Type, len(params))
	for i, p := range params {
		out[i] = p.Ty
	}
	return out
}

// lowerGlobals assigns each global either a folded constant or a backing
// data object, deferring any non-literal body to the synthesized module
// init function built afterward.
func (d *Driver) lowerGlobals() {
	n := len(d.mod.Globals)
	d.globalConst = make([]RuntimeValue, n)
	d.globalFolded = make([]bool, n)
	d.globalData = make([]facade.DataRef, n)

	for i := range d.mod.Globals {
		g := &d.mod.Globals[i]
		if v, ok := d.foldLiteralBody(g.Body); ok {
			d.globalConst[i] = v
			d.globalFolded[i] = true
			continue
		}
		// Every non-folded global, scalar or aggregate, is stored as one
		// word: a scalar's value directly, or an aggregate's address (arrays,
		// records and non-literal strings are always reference types on this
		// machine). The backing bytes of a non-literal aggregate itself live
		// in a separate persistent data object, allocated by allocAddr.
		d.globalData[i] = d.fc.DeclareData(g.Name, facade.DataInit{Writable: true, ZeroInit: true, Size: wordSize})
		d.initNeeded = true
		d.initGlobalIdx = append(d.initGlobalIdx, i)
	}

	if !d.initNeeded {
		return
	}
	d.initFunc = d.fc.DeclareFunc("$init", facade.Signature{Ret: types.Prim(types.Bool)})
	fb := d.fc.Build(d.initFunc)
	for _, gi := range d.initGlobalIdx {
		g := &d.mod.Globals[gi]
		c := &cg{d: d, fb: fb, reachable: true, persistent: true}
		c.run(g.Body)
		if c.reachable {
			v := c.top().materialize(fb)
			addr := fb.DataAddr(d.globalData[gi])
			fb.Store(addr, 0, v)
		}
	}
	fb.Return(fb.ConstBool(false))
}

func (d *Driver) lowerFuncs() {
	for i := range d.mod.Funcs {
		f := &d.mod.Funcs[i]
		if f.IsExtern() {
			continue
		}
		fb := d.fc.Build(d.funcRefs[i])
		entry := fb.EntryBlock()
		c := &cg{d: d, fb: fb, reachable: true}
		for pi, p := range f.Params {
			c.push(ssaValue(p.Ty, fb.Param(entry, pi)))
		}
		c.run(f.Body)
		if c.reachable {
			v := c.top().materialize(fb)
			fb.Return(v)
		}
	}
}

// maybeSynthesizeStart builds _start when a global marked IsEntryPoint
// exists (spec §4.5): run module init, evaluate main's value, call exit
// with it.
func (d *Driver) maybeSynthesizeStart() {
	mainIdx := -1
	for i := range d.mod.Globals {
		if d.mod.Globals[i].IsEntryPoint {
			mainIdx = i
			break
		}
	}
	if mainIdx < 0 {
		return
	}

	startRef := d.fc.DeclareFunc("_start", facade.Signature{Ret: types.Prim(types.I32)})
	fb := d.fc.Build(startRef)

	if d.initNeeded {
		fb.Call(d.initFunc, nil)
	}

	mainVal := d.loadGlobal(fb, mainIdx).materialize(fb)

	exitRef := d.exitRef()
	ret := fb.Call(exitRef, []facade.Value{mainVal})
	fb.Return(ret)
}

func (d *Driver) exitRef() facade.FuncRef {
	if !d.exitDeclared {
		d.exitFunc = d.fc.DeclareExternFunc("exit", facade.Signature{
			Params: []types.Type{types.Prim(types.I32)},
			Ret:    types.Prim(types.I32),
		})
		d.exitDeclared = true
	}
	return d.exitFunc
}

// cg walks one function or module-init body's flat instruction stream,
// replaying its stack discipline against fb. It mirrors
// bytecode.ValidateStackBalance's block/height bookkeeping exactly (same
// base/reachable invariants) but materializes real facade instructions
// instead of just checking arithmetic.
type cg struct {
	d         *Driver
	fb        facade.FuncBuilder
	stack     []RuntimeValue
	blocks    []cgBlock
	reachable bool

	// persistent marks a module-init walk: a non-literal aggregate built
	// here must outlive the init function's return, so it's backed by its
	// own anonymous writable data object instead of a stack slot.
	persistent bool
}

type blockKind int

const (
	blockIfThen blockKind = iota
	blockIfElse
	blockLoop
)

type cgBlock struct {
	kind        blockKind
	base        int
	live        bool // whether real facade blocks back this entry (false only for structurally-dead nested blocks, never produced by this compiler's own lowerer)
	thenBlock   facade.Block
	elseBlock   facade.Block
	contBlock   facade.Block
	contCreated bool
	contTy      types.Type
	loopBlock   facade.Block
	arity       int
	thenNever   bool
}

func (c *cg) push(v RuntimeValue)  { c.stack = append(c.stack, v) }
func (c *cg) top() RuntimeValue    { return c.stack[len(c.stack)-1] }
func (c *cg) pop() RuntimeValue    { v := c.top(); c.stack = c.stack[:len(c.stack)-1]; return v }
func (c *cg) at(rel int) RuntimeValue { return c.stack[len(c.stack)-1-rel] }

func (c *cg) run(body []bytecode.Instr) {
	for i := range body {
		c.step(&body[i])
	}
}

// allocAddr returns size bytes of writable storage for a non-literal
// aggregate under construction: an anonymous persistent data object during
// module init (so it survives past $init's return), a stack slot in the
// local frame otherwise.
func (c *cg) allocAddr(size int) facade.Value {
	if c.persistent {
		ref := c.d.fc.DeclareData(c.d.anonName(), facade.DataInit{Writable: true, ZeroInit: true, Size: size})
		return c.fb.DataAddr(ref)
	}
	return c.fb.StackSlot(size)
}

func (c *cg) step(instr *bytecode.Instr) {
	switch instr.Op {
	case bytecode.OpDup:
		if !c.reachable {
			return
		}
		c.push(c.at(instr.Rel))

	case bytecode.OpGetGlobal:
		if !c.reachable {
			return
		}
		c.push(c.d.loadGlobal(c.fb, instr.GlobalIdx))

	case bytecode.OpGetField:
		if !c.reachable {
			return
		}
		parent := c.pop()
		ty, ok := c.d.mod.Field(parent.Ty.Ref, instr.Field)
		if !ok {
			panic("nasin: internal error: GetField of unknown field " + instr.Field)
		}
		layout, _ := recordLayout(c.d.mod, parent.Ty.Ref)
		offset := 0
		for _, f := range layout {
			if f.Name == instr.Field {
				offset = f.Offset
				break
			}
		}
		addr := parent.materialize(c.fb)
		c.push(ssaValue(ty, c.fb.Load(ty, addr, offset)))

	case bytecode.OpArrayIndex:
		if !c.reachable {
			return
		}
		c.stepArrayIndex()

	case bytecode.OpCreateValue:
		if !c.reachable {
			return
		}
		c.push(constValue(*instr))

	case bytecode.OpCreateString:
		if !c.reachable {
			return
		}
		c.push(c.d.constString(instr.Str))

	case bytecode.OpCreateArray:
		if !c.reachable {
			return
		}
		n := instr.Arity
		elems := make([]RuntimeValue, n)
		for i := 0; i < n; i++ {
			elems[n-1-i] = c.pop()
		}
		c.push(c.buildArray(instr.ElemType, elems))

	case bytecode.OpCreateRecord:
		if !c.reachable {
			return
		}
		n := instr.Arity
		elems := make([]RuntimeValue, n)
		for i := 0; i < n; i++ {
			elems[n-1-i] = c.pop()
		}
		ref := resolvedTypeRef(*instr)
		c.push(c.buildRecord(ref, instr.Fields, elems))

	case bytecode.OpCall:
		if !c.reachable {
			return
		}
		n := instr.Arity
		args := make([]facade.Value, n)
		for i := 0; i < n; i++ {
			args[n-1-i] = c.pop().materialize(c.fb)
		}
		f := &c.d.mod.Funcs[instr.FuncIdx]
		v := c.fb.Call(c.d.funcRefs[instr.FuncIdx], args)
		c.push(ssaValue(f.Ret, v))

	case bytecode.OpCompileError:
		panic("nasin: internal error: CompileError instruction reached codegen")

	default:
		if instr.Op.IsArithmetic() || instr.Op.IsComparison() {
			c.stepBinOp(instr)
			return
		}
		c.stepControl(instr)
	}
}

func (c *cg) stepBinOp(instr *bytecode.Instr) {
	if !c.reachable {
		return
	}
	r := c.pop()
	l := c.pop()
	op := binOpOf(instr.Op)
	ty := l.Ty
	v := c.fb.BinOp(op, ty, l.materialize(c.fb), r.materialize(c.fb))
	if instr.Op.IsComparison() {
		c.push(ssaValue(types.Prim(types.Bool), v))
	} else {
		c.push(ssaValue(ty, v))
	}
}

func binOpOf(op bytecode.Op) facade.BinOp {
	switch op {
	case bytecode.OpAdd:
		return facade.Add
	case bytecode.OpSub:
		return facade.Sub
	case bytecode.OpMul:
		return facade.Mul
	case bytecode.OpDiv:
		return facade.Div
	case bytecode.OpMod:
		return facade.Mod
	case bytecode.OpEq:
		return facade.Eq
	case bytecode.OpNeq:
		return facade.Neq
	case bytecode.OpGt:
		return facade.Gt
	case bytecode.OpGte:
		return facade.Gte
	case bytecode.OpLt:
		return facade.Lt
	case bytecode.OpLte:
		return facade.Lte
	default:
		panic(fmt.Sprintf("nasin: internal error: unsupported binary op %s reached codegen", op))
	}
}

// stepArrayIndex loads the element at the index on top of the stack from
// the array beneath it, mirroring GetField's parent/offset/Load shape but
// with a runtime-computed offset instead of a fixed one.
func (c *cg) stepArrayIndex() {
	index := c.pop()
	arr := c.pop()
	if arr.Ty.Kind != types.Array || arr.Ty.Item == nil {
		panic("nasin: internal error: ArrayIndex of non-array value")
	}
	elemTy := *arr.Ty.Item
	elemSize := sizeOf(c.d.mod, elemTy)
	base := arr.materialize(c.fb)
	idx := index.materialize(c.fb)
	addr := c.fb.IndexAddr(base, idx, elemSize)
	c.push(ssaValue(elemTy, c.fb.Load(elemTy, addr, 0)))
}

func (c *cg) buildArray(item types.Type, elems []RuntimeValue) RuntimeValue {
	if allLiteral(elems) {
		return c.d.constArray(item, elems)
	}
	elemSize, size := arrayLayout(c.d.mod, item, len(elems))
	addr := c.allocAddr(size)
	for i, e := range elems {
		v := e.materialize(c.fb)
		c.fb.Store(addr, i*elemSize, v)
	}
	ln := len(elems)
	return ssaValue(types.NewArray(item, &ln), addr)
}

func (c *cg) buildRecord(ref int, fieldNames []string, elems []RuntimeValue) RuntimeValue {
	if allLiteral(elems) {
		return c.d.constRecord(ref, fieldNames, elems)
	}
	byName := make(map[string]RuntimeValue, len(elems))
	for i, name := range fieldNames {
		byName[name] = elems[i]
	}
	layout, size := recordLayout(c.d.mod, ref)
	addr := c.allocAddr(size)
	for _, f := range layout {
		v := byName[f.Name].materialize(c.fb)
		c.fb.Store(addr, f.Offset, v)
	}
	return ssaValue(types.NewTypeRef(ref), addr)
}

func allLiteral(elems []RuntimeValue) bool {
	for _, e := range elems {
		if !e.isLiteral() {
			return false
		}
	}
	return true
}

// loadGlobal returns the RuntimeValue a GetGlobal instruction produces: the
// folded constant directly, or a Load of the word-sized cell a non-folded
// global's value (scalar, or an aggregate's address) was stored into by
// $init.
func (d *Driver) loadGlobal(fb facade.FuncBuilder, idx int) RuntimeValue {
	if d.globalFolded[idx] {
		return d.globalConst[idx]
	}
	g := &d.mod.Globals[idx]
	addr := fb.DataAddr(d.globalData[idx])
	return ssaValue(g.Ty, fb.Load(g.Ty, addr, 0))
}

func (c *cg) stepControl(instr *bytecode.Instr) {
	switch instr.Op {
	case bytecode.OpIf:
		c.stepIf(instr)
	case bytecode.OpElse:
		c.stepElse()
	case bytecode.OpEnd:
		c.stepEnd()
	case bytecode.OpLoop:
		c.stepLoop(instr)
	case bytecode.OpContinue:
		c.stepContinue(instr)
	}
}

func (c *cg) stepIf(instr *bytecode.Instr) {
	if !c.reachable {
		c.blocks = append(c.blocks, cgBlock{kind: blockIfThen, base: len(c.stack), live: false})
		return
	}
	cond := c.pop().materialize(c.fb)
	thenB := c.fb.Block()
	elseB := c.fb.Block()
	c.fb.BrIf(cond, thenB, elseB)
	c.fb.SwitchTo(thenB)
	c.blocks = append(c.blocks, cgBlock{
		kind: blockIfThen, base: len(c.stack), live: true,
		thenBlock: thenB, elseBlock: elseB,
	})
}

func (c *cg) stepElse() {
	b := &c.blocks[len(c.blocks)-1]
	if !b.live {
		c.reachable = true
		b.kind = blockIfElse
		return
	}
	if c.reachable {
		v := c.pop()
		val := v.materialize(c.fb)
		contB := c.fb.Block(v.Ty)
		c.fb.Jump(contB, []facade.Value{val})
		b.contBlock = contB
		b.contCreated = true
		b.contTy = v.Ty
		b.thenNever = false
	} else {
		b.thenNever = true
	}
	c.stack = c.stack[:b.base]
	c.fb.SwitchTo(b.elseBlock)
	c.reachable = true
	b.kind = blockIfElse
}

func (c *cg) stepEnd() {
	n := len(c.blocks)
	b := c.blocks[n-1]
	c.blocks = c.blocks[:n-1]

	switch b.kind {
	case blockIfElse:
		if !b.live {
			c.reachable = false
			return
		}
		elseNever := !c.reachable
		if c.reachable {
			v := c.pop()
			val := v.materialize(c.fb)
			if !b.contCreated {
				b.contBlock = c.fb.Block(v.Ty)
				b.contCreated = true
				b.contTy = v.Ty
			}
			c.fb.Jump(b.contBlock, []facade.Value{val})
		}
		c.stack = c.stack[:b.base]
		if b.thenNever && elseNever {
			c.reachable = false
			return
		}
		c.fb.SwitchTo(b.contBlock)
		c.push(ssaValue(b.contTy, c.fb.Param(b.contBlock, 0)))
		c.reachable = true

	case blockLoop:
		if !b.live {
			c.reachable = false
			return
		}
		loopNever := !c.reachable
		if c.reachable {
			v := c.pop()
			val := v.materialize(c.fb)
			b.contBlock = c.fb.Block(v.Ty)
			b.contTy = v.Ty
			c.fb.Jump(b.contBlock, []facade.Value{val})
		}
		c.stack = c.stack[:b.base]
		if loopNever {
			c.reachable = false
			return
		}
		c.fb.SwitchTo(b.contBlock)
		c.push(ssaValue(b.contTy, c.fb.Param(b.contBlock, 0)))
		c.reachable = true

	default:
		panic("nasin: internal error: End of unterminated if block reached codegen")
	}
}

func (c *cg) stepLoop(instr *bytecode.Instr) {
	n := instr.Arity
	if !c.reachable {
		c.stack = c.stack[:maxInt(0, len(c.stack)-n)]
		c.blocks = append(c.blocks, cgBlock{kind: blockLoop, base: len(c.stack), arity: n, live: false})
		return
	}
	seedVals := make([]facade.Value, n)
	tys := make([]types.Type, n)
	for i := 0; i < n; i++ {
		rv := c.stack[len(c.stack)-n+i]
		seedVals[i] = rv.materialize(c.fb)
		tys[i] = rv.Ty
	}
	c.stack = c.stack[:len(c.stack)-n]

	loopB := c.fb.Block(tys...)
	c.fb.Jump(loopB, seedVals)
	c.fb.SwitchTo(loopB)
	for i := 0; i < n; i++ {
		c.stack = append(c.stack, ssaValue(tys[i], c.fb.Param(loopB, i)))
	}

	c.blocks = append(c.blocks, cgBlock{
		kind: blockLoop, base: len(c.stack), arity: n, live: true, loopBlock: loopB,
	})
}

func (c *cg) stepContinue(instr *bytecode.Instr) {
	lb := innermostLoop(c.blocks)
	if lb == nil {
		panic("nasin: internal error: continue outside of loop reached codegen")
	}
	n := instr.Arity
	if !c.reachable {
		return
	}
	args := make([]facade.Value, n)
	for i := 0; i < n; i++ {
		args[n-1-i] = c.pop().materialize(c.fb)
	}
	if lb.live {
		c.fb.Jump(lb.loopBlock, args)
	}
	c.reachable = false
}

func innermostLoop(blocks []cgBlock) *cgBlock {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].kind == blockLoop {
			return &blocks[i]
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
