// Package driver orchestrates a full nasin build (spec §5 expansion):
// taking one or more already-lowered modules through type checking and
// code generation, optionally in parallel, and linking the resulting
// objects into a binary.
//
// Tokenization and parsing remain an external collaborator per spec §6,
// so ModuleSource below takes already-parsed declarations
// (lower.FuncDecl/lower.GlobalDecl) rather than raw source text — the
// frontend that produces those declarations is not part of this
// repository.
//
// Grounded on the teacher's src/main.go (the single sequential run(opt)
// pipeline: read, parse, optimise, generate) and src/ir/optimise.go's
// Optimise (the contiguous-slice-per-goroutine worker pool), here applied
// per module instead of per function.
package driver

import (
	"fmt"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"nasin/internal/bytecode"
	"nasin/internal/codegen"
	"nasin/internal/codegen/llvmgen"
	"nasin/internal/diag"
	"nasin/internal/lower"
	"nasin/internal/typecheck"
)

// reservedLibcalls are identifiers a module's own functions or globals may
// not declare, mirroring the teacher's reservedFunctionNames: libc symbols
// the linked binary already provides. printf is reserved but never
// auto-declared like exit is (internal/codegen.Driver.exitRef), since this
// facade's Call instruction has no variadic form to express it — see
// DESIGN.md.
var reservedLibcalls = []string{"exit", "printf", "atof", "atoi"}

// ModuleSource is one compilation unit handed to Build: a name (used for
// diagnostics and as the module's UUID seed), the originating path and
// source text (for diagnostic rendering only), and the already-parsed
// top-level declarations lower.LowerModule consumes.
type ModuleSource struct {
	Name    string
	Path    string
	Source  string
	Funcs   []lower.FuncDecl
	Globals []lower.GlobalDecl
}

// ModuleResult is one module's build outcome: its assigned UUID, the
// lowered bytecode (for --dump-bytecode; set once lowering has run, even
// if lowering, type checking or codegen reported errors), the relocatable object bytes
// on success, and any diagnostics reported against it. Object is nil if
// Bag holds any error.
type ModuleResult struct {
	Name   string
	ID     uuid.UUID
	Module *bytecode.Module
	Object []byte
	Bag    *diag.Bag
}

// Build lowers, checks, and code-generates every source in srcs, using up
// to threads goroutines the way the teacher's Optimise splits its function
// list into contiguous slices. One bad module's diagnostics never prevent
// the others from building: each ModuleResult carries its own Bag.
func Build(srcs []ModuleSource, threads int, target llvmgen.Target) []ModuleResult {
	results := make([]ModuleResult, len(srcs))

	t := threads
	if t < 1 {
		t = 1
	}
	if t > len(srcs) {
		t = len(srcs)
	}
	if t <= 1 {
		for i, src := range srcs {
			results[i] = buildOne(src, target)
		}
		return results
	}

	n := len(srcs) / t
	res := len(srcs) % t
	start := 0
	var wg sync.WaitGroup
	wg.Add(t)
	for i := 0; i < t; i++ {
		end := start + n
		if i < res {
			end++
		}
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				results[i] = buildOne(srcs[i], target)
			}
		}(start, end)
		start = end
	}
	wg.Wait()
	return results
}

// buildOne runs one module through the full pipeline: lower, validate
// stack balance (internal to LowerModule/Check), type check, and
// code-generate. It never panics on a user error — only on an internal
// invariant violation, per spec §7 — so a single malformed module cannot
// take the rest of a concurrent Build down with it.
func buildOne(src ModuleSource, target llvmgen.Target) ModuleResult {
	bag := &diag.Bag{}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(src.Name))
	res := ModuleResult{Name: src.Name, ID: id, Bag: bag}

	if err := checkReservedNames(src); err != nil {
		bag.Add(diag.Diagnostic{
			Severity: diag.Error,
			Kind:     diag.NotImplemented,
			Message:  err.Error(),
			Path:     src.Path,
		})
		return res
	}

	lw := lower.NewLowerer(id.String(), src.Path, src.Source, bag)
	mod := lw.LowerModule(src.Funcs, src.Globals)
	res.Module = mod
	if bag.HasErrors() {
		return res
	}

	if !typecheck.Check(mod, src.Path, bag) {
		return res
	}

	gen, err := llvmgen.New(id.String(), target)
	if err != nil {
		bag.Add(diag.Diagnostic{
			Severity: diag.Error,
			Kind:     diag.NotImplemented,
			Message:  fmt.Sprintf("initializing code generator: %v", err),
			Path:     src.Path,
		})
		return res
	}
	obj, err := codegen.Generate(gen, mod)
	if err != nil {
		bag.Add(diag.Diagnostic{
			Severity: diag.Error,
			Kind:     diag.NotImplemented,
			Message:  fmt.Sprintf("generating code: %v", err),
			Path:     src.Path,
		})
		return res
	}
	res.Object = obj
	return res
}

// checkReservedNames rejects a module declaring a top-level function or
// global under a name Build itself needs for the linked binary's libc
// surface.
func checkReservedNames(src ModuleSource) error {
	for _, fd := range src.Funcs {
		for _, r := range reservedLibcalls {
			if fd.Name == r {
				return fmt.Errorf("%q is a reserved function name", fd.Name)
			}
		}
	}
	for _, gd := range src.Globals {
		for _, r := range reservedLibcalls {
			if gd.Name == r {
				return fmt.Errorf("%q is a reserved global name", gd.Name)
			}
		}
	}
	return nil
}

// Link invokes the system clang to link objs (one per built module) into
// a freestanding binary at outPath, per spec §6: the object files never
// reference the C runtime, so startup files are suppressed.
func Link(outPath string, objPaths []string) error {
	args := append([]string{"-nostartfiles", "-o", outPath}, objPaths...)
	cmd := exec.Command("clang", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("linking %s: %w\n%s", outPath, err, out)
	}
	return nil
}
