package driver

import (
	"strconv"
	"testing"

	"nasin/internal/bytecode"
	"nasin/internal/codegen/llvmgen"
	"nasin/internal/lower"
	"nasin/internal/types"
)

// llvmTargetUnused is the zero Target, never actually passed to
// llvmgen.New in these tests since every case here fails before reaching
// code generation.
var llvmTargetUnused = llvmgen.Target{}

// A module declaring a function under a reserved libcall name must fail
// before ever reaching the lowerer or code generator — llvmgen.New is
// never called, so this test needs no real LLVM backend.
func TestBuildRejectsReservedFunctionName(t *testing.T) {
	src := ModuleSource{
		Name: "bad",
		Path: "bad.nas",
		Funcs: []lower.FuncDecl{
			{Name: "exit", Params: []bytecode.Param{{Name: "code", Ty: types.Prim(types.I32)}}, Ret: types.Prim(types.I32)},
		},
	}

	results := Build([]ModuleSource{src}, 1, llvmTargetUnused)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	res := results[0]
	if !res.Bag.HasErrors() {
		t.Fatal("expected a reserved-name diagnostic")
	}
	if res.Object != nil {
		t.Fatal("expected no object for a rejected module")
	}
}

// Build must assign each module exactly one ModuleResult, in input order,
// regardless of how many threads it was asked to use — asserted here only
// against the reserved-name short-circuit path, so the split itself is
// exercised without touching LLVM.
func TestBuildPreservesOrderAcrossThreads(t *testing.T) {
	var srcs []ModuleSource
	for i := 0; i < 5; i++ {
		name := "m" + strconv.Itoa(i)
		srcs = append(srcs, ModuleSource{
			Name: name,
			Path: name,
			Funcs: []lower.FuncDecl{
				{Name: "printf"}, // reserved; every module fails fast, deterministically
			},
		})
	}

	results := Build(srcs, 3, llvmTargetUnused)
	if len(results) != len(srcs) {
		t.Fatalf("expected %d results, got %d", len(srcs), len(results))
	}
	for i, res := range results {
		if res.Name != srcs[i].Name {
			t.Fatalf("result %d: name = %q, want %q", i, res.Name, srcs[i].Name)
		}
		if !res.Bag.HasErrors() {
			t.Fatalf("result %d: expected a reserved-name diagnostic", i)
		}
	}
}

func TestCheckReservedNamesAllowsOrdinaryNames(t *testing.T) {
	src := ModuleSource{
		Funcs: []lower.FuncDecl{{Name: "add"}, {Name: "fact"}},
	}
	if err := checkReservedNames(src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
