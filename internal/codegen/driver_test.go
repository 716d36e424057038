package codegen

import (
	"testing"

	"nasin/internal/bytecode"
	"nasin/internal/codegen/facade"
	"nasin/internal/types"
)

// buildDriver runs the same steps Generate does but keeps the Driver around
// for inspection, since Generate only returns the finished object bytes.
func buildDriver(fc *fakeFacade, mod *bytecode.Module) *Driver {
	d := &Driver{fc: fc, mod: mod, dataInterned: make(map[string]facade.DataRef)}
	d.declareFuncs()
	d.lowerGlobals()
	d.lowerFuncs()
	d.maybeSynthesizeStart()
	return d
}

func pointTypeDef() bytecode.TypeDef {
	td := bytecode.NewTypeDef("Point", bytecode.Loc{})
	td = td.WithField("a", bytecode.RecordField{Type: types.Prim(types.I32)})
	td = td.WithField("b", bytecode.RecordField{Type: types.Prim(types.I32)})
	return td
}

// A literal-only global whose CreateRecord names fields in reverse of the
// typedef's canonical order must still fold to bytes laid out a, then b —
// never the literal's own b, then a order.
func TestRecordFieldOrderingFoldedGlobal(t *testing.T) {
	mod := bytecode.NewModule("test")
	ref := mod.AddTypeDef(pointTypeDef())
	recTy := types.NewTypeRef(ref)

	body := []bytecode.Instr{
		bytecode.CreateValue(bytecode.IntValue(types.I32, 99), bytecode.Loc{}), // field "b"
		bytecode.CreateValue(bytecode.IntValue(types.I32, 7), bytecode.Loc{}),  // field "a"
		withResolved(bytecode.CreateRecord([]string{"b", "a"}, bytecode.Loc{}), recTy),
	}
	mod.AddGlobal(bytecode.Global{Name: "pt", Ty: recTy, Body: body})

	fc := &fakeFacade{}
	d := buildDriver(fc, mod)

	if !d.globalFolded[0] {
		t.Fatalf("expected literal-only global to fold to a constant")
	}
	rv := d.globalConst[0]
	if rv.source != srcData {
		t.Fatalf("folded record should be a data reference, got source %v", rv.source)
	}
	init := fc.data[rv.data.ID()]
	if len(init.Bytes) != 8 {
		t.Fatalf("expected 8 bytes (two i32 fields), got %d", len(init.Bytes))
	}
	// Canonical order is a, then b: a=7 occupies bytes[0:4], b=99 occupies bytes[4:8].
	wantA := []byte{7, 0, 0, 0}
	wantB := []byte{99, 0, 0, 0}
	for i := 0; i < 4; i++ {
		if init.Bytes[i] != wantA[i] {
			t.Fatalf("field a bytes = %v, want %v", init.Bytes[0:4], wantA)
		}
		if init.Bytes[4+i] != wantB[i] {
			t.Fatalf("field b bytes = %v, want %v", init.Bytes[4:8], wantB)
		}
	}
}

// withResolved attaches the checker's write-back type to a CreateRecord
// instruction built for a test, standing in for typecheck.Check's effect.
func withResolved(instr bytecode.Instr, ty types.Type) bytecode.Instr {
	instr.Resolved = &ty
	return instr
}

// A record built at runtime (one non-literal field) must still Store its
// fields at the typedef's canonical offsets, regardless of the literal's
// field order.
func TestRecordFieldOrderingRuntimeRecord(t *testing.T) {
	mod := bytecode.NewModule("test")
	ref := mod.AddTypeDef(pointTypeDef())
	recTy := types.NewTypeRef(ref)

	body := []bytecode.Instr{
		bytecode.Dup(0, bytecode.Loc{}),                                       // duplicate param p, destined for field "b"
		bytecode.CreateValue(bytecode.IntValue(types.I32, 7), bytecode.Loc{}), // field "a"
		withResolved(bytecode.CreateRecord([]string{"b", "a"}, bytecode.Loc{}), recTy),
	}
	mod.AddFunc(bytecode.Func{
		Name:   "mk",
		Params: []bytecode.Param{{Name: "p", Ty: types.Prim(types.I32)}},
		Ret:    recTy,
		Body:   body,
	})

	fc := &fakeFacade{}
	buildDriver(fc, mod)

	fn, ok := fc.funcByName("mk")
	if !ok || fn.b == nil {
		t.Fatalf("function mk was not built")
	}
	if len(fn.b.storeCalls) != 2 {
		t.Fatalf("expected 2 Store calls, got %d", len(fn.b.storeCalls))
	}
	if fn.b.storeCalls[0].offset != 0 {
		t.Fatalf("field a must be stored first, at offset 0, got offset %d", fn.b.storeCalls[0].offset)
	}
	if fn.b.storeCalls[1].offset != 4 {
		t.Fatalf("field b must be stored second, at offset 4, got offset %d", fn.b.storeCalls[1].offset)
	}
}

// An if/else where both branches are reachable must merge into a single
// continuation block, carrying the branch value through a block parameter.
func TestIfElseMergesIntoContinuationBlock(t *testing.T) {
	mod := bytecode.NewModule("test")
	body := []bytecode.Instr{
		bytecode.Dup(0, bytecode.Loc{}), // condition: the bool param itself
		bytecode.If(types.Prim(types.I32), bytecode.Loc{}),
		bytecode.CreateValue(bytecode.IntValue(types.I32, 1), bytecode.Loc{}),
		bytecode.Else(bytecode.Loc{}),
		bytecode.CreateValue(bytecode.IntValue(types.I32, 2), bytecode.Loc{}),
		bytecode.End(bytecode.Loc{}),
	}
	mod.AddFunc(bytecode.Func{
		Name:   "pick",
		Params: []bytecode.Param{{Name: "c", Ty: types.Prim(types.Bool)}},
		Ret:    types.Prim(types.I32),
		Body:   body,
	})

	fc := &fakeFacade{}
	buildDriver(fc, mod)

	fn, ok := fc.funcByName("pick")
	if !ok || fn.b == nil {
		t.Fatalf("function pick was not built")
	}
	// entry, then, else, continuation.
	if len(fn.b.blocks) != 4 {
		t.Fatalf("expected 4 blocks (entry/then/else/cont), got %d", len(fn.b.blocks))
	}
	contBlock := fn.b.blocks[3]
	if len(contBlock.params) != 1 || contBlock.params[0].Kind != types.I32 {
		t.Fatalf("continuation block params = %+v, want a single i32", contBlock.params)
	}
	if len(fn.b.calls) != 0 {
		t.Fatalf("unexpected Call instructions: %+v", fn.b.calls)
	}
}

// Indexing an array built from a non-literal element must materialize the
// array to a stack slot, then compute the element address by scaling the
// index by the element's size rather than the array's.
func TestArrayIndexScalesByElementSize(t *testing.T) {
	mod := bytecode.NewModule("test")
	body := []bytecode.Instr{
		bytecode.Dup(0, bytecode.Loc{}),                                       // param p, array[0]
		bytecode.CreateValue(bytecode.IntValue(types.I32, 99), bytecode.Loc{}), // array[1]
		bytecode.CreateArray(types.Prim(types.I32), 2, bytecode.Loc{}),
		bytecode.CreateValue(bytecode.IntValue(types.I32, 0), bytecode.Loc{}), // index
		bytecode.ArrayIndex(bytecode.Loc{}),
	}
	mod.AddFunc(bytecode.Func{
		Name:   "at",
		Params: []bytecode.Param{{Name: "p", Ty: types.Prim(types.I32)}},
		Ret:    types.Prim(types.I32),
		Body:   body,
	})

	fc := &fakeFacade{}
	buildDriver(fc, mod)

	fn, ok := fc.funcByName("at")
	if !ok || fn.b == nil {
		t.Fatalf("function at was not built")
	}
	if len(fn.b.storeCalls) != 2 {
		t.Fatalf("expected array build to Store 2 elements, got %d", len(fn.b.storeCalls))
	}

	var indexAddr *fakeInstr
	for i, in := range fn.b.blocks[0].instrs {
		if in.op == "index_addr" {
			indexAddr = &fn.b.blocks[0].instrs[i]
		}
	}
	if indexAddr == nil {
		t.Fatalf("expected an index_addr instruction, got %+v", fn.b.blocks[0].instrs)
	}
	if indexAddr.intV != 4 {
		t.Fatalf("expected element size 4 (i32), got %d", indexAddr.intV)
	}
}
