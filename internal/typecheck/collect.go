package typecheck

import (
	"nasin/internal/bytecode"
	"nasin/internal/diag"
	"nasin/internal/types"
	"nasin/internal/util"
)

// FuncEntry tracks the entries allocated while walking one function's
// body, so Phase 2's write-back (spec §4.4) can find, for every
// instruction index, which entry (if any) it produced.
type FuncEntry struct {
	Params   []EntryIdx
	Ret      EntryIdx
	PerInstr []EntryIdx // EntryIdx(-1) where the instruction produces no value.
}

// GlobalEntry is FuncEntry's counterpart for module-level globals.
type GlobalEntry struct {
	Result   EntryIdx
	PerInstr []EntryIdx
}

const noEntry EntryIdx = -1

// Result holds everything produced by checking one Module: the entry
// arena (consulted during Phase 2 and then dropped, per spec §3.4) and
// the per-function/per-global bookkeeping used to write resolved types
// back into the IR.
type Result struct {
	mod     *bytecode.Module
	arena   arena
	Funcs   []FuncEntry
	Globals []GlobalEntry
}

// collectBlock mirrors the nested If/Loop block structure the bytecode
// validator already checked for stack balance (internal/bytecode); the
// checker trusts that invariant and only tracks which EntryIdx sits at
// each shadow-stack position.
type collectBlock struct {
	isLoop    bool
	result    EntryIdx   // scope's result entry; for loops, the loop's own result.
	loopArgs  []EntryIdx // Loop only: canonical per-parameter entries Continue merges into.
	base      int        // shadow-stack height at block entry.
	thenNever bool
}

// collector walks one function or global body emitting constraints.
type collector struct {
	mod      *bytecode.Module
	a        *arena
	bag      *diag.Bag
	path     string
	fn       *bytecode.Func // nil for a global body.
	stack    util.Stack[EntryIdx]
	blocks   []collectBlock
	reach     bool
	poison    EntryIdx
	perInstr  []EntryIdx
	selfCalls []EntryIdx
	globals   []GlobalEntry
}

// CheckModule runs Phase 1 (collection) over every func and global in mod
// and returns the resulting entry arena and bookkeeping. It neither
// validates nor writes back: Result.Validate runs Phase 2 and
// Result.WriteBack copies resolved types into mod (Check runs all three).
// mod is left unchanged here — code generation is the caller's
// responsibility to skip on error (spec §7).
func CheckModule(mod *bytecode.Module, path string, bag *diag.Bag) *Result {
	r := &Result{mod: mod}
	r.arena.alloc(bytecode.Loc{}) // index 0 reserved as a shared poison entry.

	// Pre-allocate every global's result entry before walking any body, so
	// GetGlobal can reference the real entry (spec §4.4: "GetGlobal(i):
	// result is the global's entry") regardless of declaration order.
	r.Globals = make([]GlobalEntry, len(mod.Globals))
	for gi := range mod.Globals {
		g := &mod.Globals[gi]
		result := r.arena.alloc(g.Loc)
		r.arena.constrain(result, Is(g.Ty, DefinedType))
		r.Globals[gi] = GlobalEntry{Result: result}
	}

	for gi := range mod.Globals {
		g := &mod.Globals[gi]
		c := &collector{mod: mod, a: &r.arena, bag: bag, path: path, reach: true, poison: 0, globals: r.Globals}
		result := r.Globals[gi].Result
		c.run(g.Body)
		if c.reach {
			if top, ok := c.stack.Peek(); ok {
				c.merge(result, top)
			}
		}
		r.Globals[gi].PerInstr = c.perInstr
	}

	r.Funcs = make([]FuncEntry, len(mod.Funcs))
	for fi := range mod.Funcs {
		f := &mod.Funcs[fi]
		if f.IsExtern() {
			continue
		}
		c := &collector{mod: mod, a: &r.arena, bag: bag, path: path, fn: f, reach: true, poison: 0, globals: r.Globals}
		params := make([]EntryIdx, len(f.Params))
		for pi, p := range f.Params {
			e := c.alloc(f.Loc)
			c.a.constrain(e, Is(p.Ty, DefinedType))
			params[pi] = e
			c.stack.Push(e)
		}
		ret := c.alloc(f.Loc)
		c.a.constrain(ret, Is(f.Ret, DefinedType))

		c.run(f.Body)
		if c.reach {
			if top, ok := c.stack.Peek(); ok {
				c.merge(ret, top)
			}
		}
		for _, callResult := range c.selfCalls {
			c.merge(callResult, ret)
		}
		r.Funcs[fi] = FuncEntry{Params: params, Ret: ret, PerInstr: c.perInstr}
	}
	return r
}

func (c *collector) alloc(loc bytecode.Loc) EntryIdx {
	return c.a.alloc(loc)
}

// record associates the entry produced by instruction idx, for write-back.
func (c *collector) record(idx int, e EntryIdx) {
	for len(c.perInstr) <= idx {
		c.perInstr = append(c.perInstr, noEntry)
	}
	c.perInstr[idx] = e
}

func (c *collector) merge(hub, delegate EntryIdx) {
	c.a.merge(hub, delegate)
}

func (c *collector) push(e EntryIdx) {
	if c.reach {
		c.stack.Push(e)
	} else {
		c.stack.Push(c.poison)
	}
}

func (c *collector) pop() EntryIdx {
	e, ok := c.stack.Pop()
	if !ok {
		return c.poison
	}
	return e
}

func (c *collector) popN(n int) []EntryIdx {
	out := make([]EntryIdx, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = c.pop()
	}
	return out
}

// run walks body, emitting constraints per spec §4.4's collection table.
func (c *collector) run(body []bytecode.Instr) {
	for idx, instr := range body {
		c.step(idx, instr)
	}
}

func (c *collector) step(idx int, instr bytecode.Instr) {
	switch instr.Op {
	case bytecode.OpDup:
		src, ok := c.stack.At(instr.Rel)
		if !ok {
			src = c.poison
		}
		e := c.alloc(instr.Loc)
		c.a.constrain(e, TypeOf(src))
		c.record(idx, e)
		c.push(e)

	case bytecode.OpGetGlobal:
		if instr.GlobalIdx >= 0 && instr.GlobalIdx < len(c.globals) {
			e := c.globals[instr.GlobalIdx].Result
			c.record(idx, e)
			c.push(e)
		} else {
			c.push(c.poison)
		}

	case bytecode.OpGetField:
		parent := c.pop()
		e := c.alloc(instr.Loc)
		c.a.constrain(parent, HasProperty(instr.Field, e))
		c.a.constrain(e, PropertyOf(instr.Field, parent))
		c.record(idx, e)
		c.push(e)

	case bytecode.OpArrayIndex:
		index := c.pop()
		arr := c.pop()
		c.a.constrain(index, Is(types.Prim(types.AnyNumber), DerivedInferredType))
		e := c.alloc(instr.Loc)
		c.a.constrain(arr, ArrayOf(e))
		c.a.constrain(e, ItemOf(arr))
		c.record(idx, e)
		c.push(e)

	case bytecode.OpCreateValue:
		e := c.alloc(instr.Loc)
		prio := DefinedType
		if instr.Value.Kind == types.AnyNumber || instr.Value.Kind == types.AnySignedNumber || instr.Value.Kind == types.AnyFloat {
			prio = DerivedInferredType
		}
		c.a.constrain(e, Is(types.Prim(instr.Value.Kind), prio))
		c.record(idx, e)
		c.push(e)

	case bytecode.OpCreateString:
		e := c.alloc(instr.Loc)
		n := len(instr.Str)
		c.a.constrain(e, Is(types.NewString(&n), DefinedType))
		c.record(idx, e)
		c.push(e)

	case bytecode.OpCreateArray:
		items := c.popN(instr.Arity)
		e := c.alloc(instr.Loc)
		itemEntry := c.alloc(instr.Loc)
		for _, it := range items {
			c.merge(itemEntry, it)
		}
		if !instr.ElemType.IsUnknown() {
			c.a.constrain(itemEntry, Is(instr.ElemType, DerivedDefinedType))
		}
		c.a.constrain(e, ArrayOf(itemEntry))
		c.record(idx, e)
		c.push(e)

	case bytecode.OpCreateRecord:
		vals := c.popN(instr.Arity)
		e := c.alloc(instr.Loc)
		for i, name := range instr.Fields {
			c.a.constrain(e, PropertyOf(name, vals[i]))
		}
		c.record(idx, e)
		c.push(e)

	case bytecode.OpCall:
		args := c.popN(instr.Arity)
		if instr.FuncIdx >= 0 && instr.FuncIdx < len(c.mod.Funcs) {
			for i, a := range args {
				c.a.constrain(a, ParameterOf(instr.FuncIdx, i))
			}
		}
		e := c.alloc(instr.Loc)
		selfCall := c.fn != nil && instr.FuncIdx >= 0 && instr.FuncIdx < len(c.mod.Funcs) && &c.mod.Funcs[instr.FuncIdx] == c.fn
		if selfCall {
			// Self-recursive call: unify the call's result with the
			// function's own return entry to close the loop (spec §4.4).
			// The return entry isn't known to the collector by index at
			// this point, so this merge is finalized after the walk in
			// CheckModule via a recorded self-call site.
			c.record(idx, e)
			c.selfCalls = append(c.selfCalls, e)
		} else {
			c.a.constrain(e, ReturnOf(instr.FuncIdx))
			c.record(idx, e)
		}
		c.push(e)

	default:
		if instr.Op.IsArithmetic() {
			lhs, rhs := c.popTwo()
			shared := c.alloc(instr.Loc)
			c.merge(shared, lhs)
			c.merge(shared, rhs)
			c.a.constrain(shared, Is(types.Prim(types.AnyNumber), DerivedInferredType))
			e := c.alloc(instr.Loc)
			c.a.constrain(e, TypeOf(shared))
			c.record(idx, e)
			c.push(e)
			return
		}
		if instr.Op.IsComparison() {
			lhs, rhs := c.popTwo()
			shared := c.alloc(instr.Loc)
			c.merge(shared, lhs)
			c.merge(shared, rhs)
			c.a.constrain(shared, Is(types.Prim(types.AnyNumber), DerivedInferredType))
			e := c.alloc(instr.Loc)
			c.a.constrain(e, Is(types.Prim(types.Bool), DefinedType))
			c.record(idx, e)
			c.push(e)
			return
		}
		c.stepControl(idx, instr)
	}
}

func (c *collector) popTwo() (EntryIdx, EntryIdx) {
	rhs := c.pop()
	lhs := c.pop()
	return lhs, rhs
}

func (c *collector) stepControl(idx int, instr bytecode.Instr) {
	switch instr.Op {
	case bytecode.OpCompileError:
		e := c.alloc(instr.Loc)
		c.record(idx, e)
		c.push(e)

	case bytecode.OpIf:
		c.pop() // condition; untyped here (bool-ness isn't load-bearing for the solver).
		result := c.alloc(instr.Loc)
		c.blocks = append(c.blocks, collectBlock{result: result, base: c.stack.Snapshot()})

	case bytecode.OpElse:
		b := &c.blocks[len(c.blocks)-1]
		if c.reach {
			top := c.pop()
			c.merge(b.result, top)
			b.thenNever = false
		} else {
			b.thenNever = true
		}
		c.stack.Truncate(b.base)
		c.reach = true

	case bytecode.OpEnd:
		b := c.blocks[len(c.blocks)-1]
		c.blocks = c.blocks[:len(c.blocks)-1]
		if b.isLoop {
			if c.reach {
				top := c.pop()
				c.merge(b.result, top)
			}
			c.stack.Truncate(b.base)
			c.push(b.result)
			c.reach = true
			return
		}
		elseNever := !c.reach
		if c.reach {
			top := c.pop()
			c.merge(b.result, top)
		}
		c.stack.Truncate(b.base)
		if b.thenNever && elseNever {
			c.reach = false
		} else {
			c.push(b.result)
			c.reach = true
		}

	case bytecode.OpLoop:
		args := c.popN(instr.Arity)
		result := c.alloc(instr.Loc)
		c.blocks = append(c.blocks, collectBlock{isLoop: true, result: result, loopArgs: args, base: c.stack.Snapshot()})
		for _, a := range args {
			c.push(a)
		}

	case bytecode.OpContinue:
		lb := c.innermostLoop()
		args := c.popN(instr.Arity)
		if lb != nil {
			for i, a := range args {
				if i < len(lb.loopArgs) {
					c.merge(lb.loopArgs[i], a)
				}
			}
		}
		c.reach = false
	}
}

func (c *collector) innermostLoop() *collectBlock {
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].isLoop {
			return &c.blocks[i]
		}
	}
	return nil
}
