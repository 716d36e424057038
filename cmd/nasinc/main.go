// Command nasinc is the nasin compiler's CLI (spec §6):
//
//	nasinc build <file> [--out <path>] [--silent] [--dump-ast]
//	              [--dump-bytecode] [--dump-clif] [--threads N]
//
// Grounded on the teacher's src/main.go: a sequential run(opt) pipeline
// wrapped by a main() that parses flags, opens the output writer, and
// reports the pipeline's error. Tokenization and parsing are an external
// collaborator (spec §6) this repository does not implement — parseSource
// is the named seam a real frontend plugs into; the stub below reports
// that plainly rather than pretending to parse nasin source itself.
package main

import (
	"fmt"
	"os"

	"nasin/internal/bytecode"
	"nasin/internal/cliopt"
	"nasin/internal/codegen/llvmgen"
	"nasin/internal/diag"
	"nasin/internal/driver"
	"nasin/internal/lower"
	"nasin/internal/syntax"
)

// parseSource turns one file's source text into the top-level
// declarations LowerModule consumes. Production nasinc links this against
// a real tokenizer/parser; it is intentionally not implemented here (spec
// §6 scopes parsing out of this repository) — see DESIGN.md.
var parseSource = func(path, source string) ([]lower.FuncDecl, []lower.GlobalDecl, error) {
	return nil, nil, fmt.Errorf("nasinc: no frontend registered to parse %s", path)
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "build" {
		cliopt.Usage(os.Stderr)
		os.Exit(1)
	}

	opt, err := cliopt.ParseArgs(os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "nasinc: %s\n", err)
		os.Exit(1)
	}
	if cfg, err := cliopt.LoadProjectConfig("nasin.yaml"); err == nil {
		opt = cliopt.ApplyProjectConfig(opt, cfg)
	}

	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "nasinc: %s\n", err)
		os.Exit(1)
	}
}

// run executes one build end to end, mirroring the teacher's run(opt):
// read source, hand it to the frontend, then drive lowering/checking/
// codegen/link through internal/driver.
func run(opt cliopt.Options) error {
	source, err := cliopt.ReadSource(opt.Src)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	funcs, globals, err := parseSource(opt.Src, source)
	if err != nil {
		return fmt.Errorf("parsing: %w", err)
	}

	if opt.DumpAST {
		dumpAST(os.Stdout, funcs, globals)
		return nil
	}
	if opt.DumpCLIF {
		return fmt.Errorf("--dump-clif is not implemented: the codegen facade has no introspection surface to print block-parameter SSA back out, only to drive a real backend (see DESIGN.md)")
	}

	srcs := []driver.ModuleSource{{
		Name:    opt.Src,
		Path:    opt.Src,
		Source:  source,
		Funcs:   funcs,
		Globals: globals,
	}}
	results := driver.Build(srcs, opt.Threads, llvmgen.Target{})

	if opt.DumpBC {
		for _, res := range results {
			if res.Module != nil {
				dumpBytecode(os.Stdout, res.Module)
			}
		}
	}

	sources := map[string]string{opt.Src: source}
	failed := false
	for _, res := range results {
		if res.Bag.HasErrors() {
			failed = true
			diag.RenderAll(os.Stderr, res.Bag, sources)
		}
	}
	if failed {
		os.Exit(1)
	}
	if opt.DumpBC {
		return nil
	}

	objPaths := make([]string, 0, len(results))
	for _, res := range results {
		objPath := res.Name + ".o"
		if err := cliopt.WriteOutput(objPath, res.Object, false); err != nil {
			return fmt.Errorf("writing object for %s: %w", res.Name, err)
		}
		objPaths = append(objPaths, objPath)
	}

	if err := driver.Link(opt.Out, objPaths); err != nil {
		return err
	}
	if !opt.Silent {
		fmt.Printf("nasinc: wrote %s\n", opt.Out)
	}
	return nil
}

// dumpAST prints every declaration's syntax.Node tree, for --dump-ast.
func dumpAST(w *os.File, funcs []lower.FuncDecl, globals []lower.GlobalDecl) {
	for _, fd := range funcs {
		fmt.Fprintf(w, "fn %s\n", fd.Name)
		if fd.Body != nil {
			dumpNode(w, fd.Body, 1)
		}
	}
	for _, gd := range globals {
		fmt.Fprintf(w, "global %s\n", gd.Name)
		dumpNode(w, gd.Body, 1)
	}
}

func dumpNode(w *os.File, n syntax.Node, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	fmt.Fprintf(w, "%s%s %q\n", indent, n.Kind(), n.Text())
	for _, name := range []string{"left", "right", "cond", "then", "else", "parent", "index", "callee", "value"} {
		if f, ok := n.Field(name); ok {
			dumpNode(w, f, depth+1)
		}
	}
	for _, name := range []string{"args", "items", "fields"} {
		for _, f := range n.Fields(name) {
			dumpNode(w, f, depth+1)
		}
	}
}

// dumpBytecode prints mod's lowered instruction streams, for
// --dump-bytecode.
func dumpBytecode(w *os.File, mod *bytecode.Module) {
	fmt.Fprintf(w, "module %s\n", mod.Name)
	for _, f := range mod.Funcs {
		if f.IsExtern() {
			fmt.Fprintf(w, "extern fn %s -> %s\n", f.Name, f.Extern)
			continue
		}
		fmt.Fprintf(w, "fn %s\n", f.Name)
		for _, instr := range f.Body {
			fmt.Fprintf(w, "  %s\n", instr.Op)
		}
	}
	for _, g := range mod.Globals {
		fmt.Fprintf(w, "global %s\n", g.Name)
		for _, instr := range g.Body {
			fmt.Fprintf(w, "  %s\n", instr.Op)
		}
	}
}
