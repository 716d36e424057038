package typecheck

import (
	"testing"

	"nasin/internal/bytecode"
	"nasin/internal/diag"
	"nasin/internal/types"
)

func TestCheckAddFunction(t *testing.T) {
	mod := bytecode.NewModule("test")
	mod.AddFunc(bytecode.Func{
		Name:   "add",
		Params: []bytecode.Param{{Name: "a", Ty: types.Prim(types.I32)}, {Name: "b", Ty: types.Prim(types.I32)}},
		Ret:    types.Prim(types.I32),
		Body: []bytecode.Instr{
			bytecode.Dup(1, bytecode.Loc{}),
			bytecode.Dup(1, bytecode.Loc{}),
			{Op: bytecode.OpAdd},
		},
	})

	bag := &diag.Bag{}
	if !Check(mod, "test.nas", bag) {
		for _, d := range bag.Errors() {
			t.Errorf("unexpected diagnostic: %s", d.Message)
		}
		t.Fatal("expected add() to type-check cleanly")
	}
	if mod.Funcs[0].Ret.Kind != types.I32 {
		t.Fatalf("ret type = %s, want i32", mod.Funcs[0].Ret)
	}
}

func TestCheckFactorialSelfRecursion(t *testing.T) {
	mod := bytecode.NewModule("test")
	// fn fact(n: i32): i32 = if n == 0 { 1 } else { n * fact(n - 1) }
	// Not a tail call (the multiply happens after the recursive call
	// returns), so no Loop/Continue wrapper — just a direct self Call.
	body := []bytecode.Instr{
		bytecode.Dup(0, bytecode.Loc{}), // n
		bytecode.CreateValue(bytecode.IntValue(types.AnyNumber, 0), bytecode.Loc{}),
		{Op: bytecode.OpEq},
		bytecode.If(types.EmptyInfer(), bytecode.Loc{}),
		bytecode.CreateValue(bytecode.IntValue(types.AnyNumber, 1), bytecode.Loc{}),
		bytecode.Else(bytecode.Loc{}),
		bytecode.Dup(0, bytecode.Loc{}), // n, kept for the multiply
		bytecode.Dup(1, bytecode.Loc{}), // n again, for n - 1
		bytecode.CreateValue(bytecode.IntValue(types.AnyNumber, 1), bytecode.Loc{}),
		{Op: bytecode.OpSub},
		bytecode.Call(0, 1, bytecode.Loc{}), // fact(n - 1)
		{Op: bytecode.OpMul},
		bytecode.End(bytecode.Loc{}), // closes if
	}
	mod.AddFunc(bytecode.Func{
		Name:   "fact",
		Params: []bytecode.Param{{Name: "n", Ty: types.Prim(types.I32)}},
		Ret:    types.Prim(types.I32),
		Body:   body,
	})

	bag := &diag.Bag{}
	if !Check(mod, "test.nas", bag) {
		for _, d := range bag.Errors() {
			t.Errorf("unexpected diagnostic: %s", d.Message)
		}
		t.Fatal("expected fact() to type-check cleanly")
	}
	if mod.Funcs[0].Ret.Kind != types.I32 {
		t.Fatalf("ret type = %s, want i32", mod.Funcs[0].Ret)
	}
	// Numeric collapse (spec §8): no CreateValue should retain an
	// abstract numeric kind after a clean check.
	for _, instr := range mod.Funcs[0].Body {
		if instr.Op == bytecode.OpCreateValue {
			ty := types.Prim(instr.Value.Kind)
			if instr.Resolved != nil {
				ty = *instr.Resolved
			}
			if ty.IsAbstractNumber() {
				t.Fatalf("CreateValue retained abstract numeric type %s", ty)
			}
		}
	}
}
