package lower

import (
	"testing"

	"nasin/internal/bytecode"
	"nasin/internal/diag"
	"nasin/internal/syntax"
	"nasin/internal/types"
)

func TestLowerAddFunctionNoLoopWrapper(t *testing.T) {
	b := syntax.NewBuilder()
	a := b.Leaf("ident", "a", syntax.Range{})
	bNode := b.Leaf("ident", "b", syntax.Range{})
	op := b.Leaf("op", "+", syntax.Range{})
	sum := b.Node("binary", syntax.Range{}, map[string]any{"left": a, "right": bNode, "op": op})

	bag := &diag.Bag{}
	lw := NewLowerer("test", "test.nas", "", bag)
	mod := lw.LowerModule([]FuncDecl{
		{
			Name: "add",
			Params: []bytecode.Param{
				{Name: "a", Ty: types.Prim(types.I32)},
				{Name: "b", Ty: types.Prim(types.I32)},
			},
			Ret:  types.Prim(types.I32),
			Body: sum,
		},
	}, nil)

	body := mod.Funcs[0].Body
	if len(body) != 3 {
		t.Fatalf("expected 3 instructions, got %d: %+v", len(body), body)
	}
	if body[0].Op != bytecode.OpDup || body[0].Rel != 1 {
		t.Fatalf("instr0 = %+v, want Dup(1)", body[0])
	}
	if body[1].Op != bytecode.OpDup || body[1].Rel != 1 {
		t.Fatalf("instr1 = %+v, want Dup(1)", body[1])
	}
	if body[2].Op != bytecode.OpAdd {
		t.Fatalf("instr2 = %+v, want Add", body[2])
	}

	if err := bytecode.ValidateStackBalance(2, body); err != nil {
		t.Fatalf("lowered body fails stack validation: %v", err)
	}
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Errors())
	}
}

func TestLowerTailCallClosure(t *testing.T) {
	b := syntax.NewBuilder()

	// fn loop_sum(n, acc): if n == 0 then acc else loop_sum(n - 1, acc + n)
	condLeft := b.Leaf("ident", "n", syntax.Range{})
	condRight := b.Leaf("number", "0", syntax.Range{})
	cond := b.Node("binary", syntax.Range{}, map[string]any{
		"left": condLeft, "right": condRight, "op": b.Leaf("op", "==", syntax.Range{}),
	})

	thenExpr := b.Leaf("ident", "acc", syntax.Range{})

	subLeft := b.Leaf("ident", "n", syntax.Range{})
	subRight := b.Leaf("number", "1", syntax.Range{})
	sub := b.Node("binary", syntax.Range{}, map[string]any{
		"left": subLeft, "right": subRight, "op": b.Leaf("op", "-", syntax.Range{}),
	})

	addLeft := b.Leaf("ident", "acc", syntax.Range{})
	addRight := b.Leaf("ident", "n", syntax.Range{})
	add := b.Node("binary", syntax.Range{}, map[string]any{
		"left": addLeft, "right": addRight, "op": b.Leaf("op", "+", syntax.Range{}),
	})

	callee := b.Leaf("ident", "loop_sum", syntax.Range{})
	call := b.Node("call", syntax.Range{}, map[string]any{
		"callee": callee, "args": []syntax.Node{sub, add},
	})

	ifNode := b.Node("if", syntax.Range{}, map[string]any{
		"cond": cond, "then": thenExpr, "else": call,
	})

	bag := &diag.Bag{}
	lw := NewLowerer("test", "test.nas", "", bag)
	mod := lw.LowerModule([]FuncDecl{
		{
			Name: "loop_sum",
			Params: []bytecode.Param{
				{Name: "n", Ty: types.Prim(types.I32)},
				{Name: "acc", Ty: types.Prim(types.I32)},
			},
			Ret:  types.Prim(types.I32),
			Body: ifNode,
		},
	}, nil)

	body := mod.Funcs[0].Body
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Errors())
	}

	// Tail-call closure (spec §8): a Continue exists, so the body must
	// begin with a Loop whose arity equals the function's parameter count.
	hasContinue := false
	for _, instr := range body {
		if instr.Op == bytecode.OpContinue {
			hasContinue = true
			if instr.Arity != 2 {
				t.Fatalf("continue arity = %d, want 2", instr.Arity)
			}
		}
	}
	if !hasContinue {
		t.Fatal("expected a Continue instruction for the tail-recursive call")
	}
	if body[2].Op != bytecode.OpLoop || body[2].Arity != 2 {
		t.Fatalf("body[2] = %+v, want Loop(arity=2) after the 2-arg seed prologue", body[2])
	}
	if body[0].Op != bytecode.OpDup || body[0].Rel != 1 {
		t.Fatalf("body[0] = %+v, want Dup(1) (loop-seed prologue)", body[0])
	}
	if body[1].Op != bytecode.OpDup || body[1].Rel != 1 {
		t.Fatalf("body[1] = %+v, want Dup(1) (loop-seed prologue)", body[1])
	}
	if body[len(body)-1].Op != bytecode.OpEnd {
		t.Fatalf("last instr = %+v, want End (closing the loop wrapper)", body[len(body)-1])
	}

	if err := bytecode.ValidateStackBalance(2, body); err != nil {
		t.Fatalf("lowered tail-recursive body fails stack validation: %v", err)
	}
}

func TestLowerArrayIndexEmitsArrayIndexInstr(t *testing.T) {
	b := syntax.NewBuilder()
	arr := b.Leaf("ident", "a", syntax.Range{})
	idx := b.Leaf("number", "0", syntax.Range{})
	index := b.Node("index", syntax.Range{}, map[string]any{"parent": arr, "index": idx})

	bag := &diag.Bag{}
	lw := NewLowerer("test", "test.nas", "", bag)
	mod := lw.LowerModule([]FuncDecl{
		{
			Name:   "at",
			Params: []bytecode.Param{{Name: "a", Ty: types.NewArray(types.Prim(types.I32), nil)}},
			Ret:    types.Prim(types.I32),
			Body:   index,
		},
	}, nil)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.Errors())
	}

	body := mod.Funcs[0].Body
	if len(body) != 3 {
		t.Fatalf("expected 3 instructions (dup array, literal index, array_index), got %d: %+v", len(body), body)
	}
	if body[0].Op != bytecode.OpDup {
		t.Fatalf("instr0 = %+v, want Dup (the array param)", body[0])
	}
	if body[1].Op != bytecode.OpCreateValue {
		t.Fatalf("instr1 = %+v, want CreateValue (the literal index)", body[1])
	}
	if body[2].Op != bytecode.OpArrayIndex {
		t.Fatalf("instr2 = %+v, want ArrayIndex", body[2])
	}
	if err := bytecode.ValidateStackBalance(1, body); err != nil {
		t.Fatalf("lowered body fails stack validation: %v", err)
	}
}

func TestLowerUnresolvedIdentifierPoisons(t *testing.T) {
	b := syntax.NewBuilder()
	ident := b.Leaf("ident", "nonexistent", syntax.Range{})

	bag := &diag.Bag{}
	lw := NewLowerer("test", "test.nas", "", bag)
	mod := lw.LowerModule([]FuncDecl{
		{Name: "f", Ret: types.EmptyInfer(), Body: ident},
	}, nil)

	if !bag.HasErrors() {
		t.Fatal("expected an unresolved-identifier diagnostic")
	}
	errs := bag.Errors()
	if errs[0].Kind != diag.UnresolvedIdentifier {
		t.Fatalf("diagnostic kind = %s, want unresolved_identifier", errs[0].Kind)
	}

	body := mod.Funcs[0].Body
	if len(body) != 1 || body[0].Op != bytecode.OpCompileError {
		t.Fatalf("body = %+v, want a single CompileError instruction", body)
	}
}
