// Package cliopt implements the compiler's command-line surface (spec §6
// CLI expansion): option parsing, an optional project file, and the
// source/output I/O helpers the driver needs.
//
// Grounded on the teacher's util/args.go (Options, ParseArgs) and
// util/io.go (ReadSource, ListenWrite) — same flag-parsing idiom (stdlib
// flag package, manual usage string), renamed and reshaped for nasin's
// own flags rather than the teacher's target-triple options.
package cliopt

import (
	"flag"
	"fmt"
	"io"
)

// Options holds one `nasinc build` invocation's parsed flags.
type Options struct {
	Src      string // Path to the nasin source file to compile.
	Out      string // Path to the linked output binary.
	Threads  int    // Worker-pool size for multi-module builds (spec §5 expansion).
	Silent   bool   // Suppress non-error stdout output.
	DumpAST  bool   // Print the parsed syntax tree and exit.
	DumpBC   bool   // Print the bytecode IR and exit.
	DumpCLIF bool   // Not implemented: the build stops with an error instead of printing SSA.
}

const defaultThreads = 1
const maxThreads = 64

// ParseArgs parses a `nasinc build <file> [flags]` invocation. args is
// os.Args[2:] (the subcommand's own arguments, with "build" already
// consumed by the caller).
func ParseArgs(args []string) (Options, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	opt := Options{Threads: defaultThreads}

	fs.StringVar(&opt.Out, "out", "", "path to the linked output binary")
	fs.IntVar(&opt.Threads, "threads", defaultThreads, "worker-pool size for multi-module builds")
	fs.BoolVar(&opt.Silent, "silent", false, "suppress non-error stdout output")
	fs.BoolVar(&opt.DumpAST, "dump-ast", false, "print the parsed syntax tree and exit")
	fs.BoolVar(&opt.DumpBC, "dump-bytecode", false, "print the bytecode IR and exit")
	fs.BoolVar(&opt.DumpCLIF, "dump-clif", false, "not implemented; reports an error")
	fs.Usage = func() { Usage(fs.Output()) }

	if err := fs.Parse(args); err != nil {
		return opt, err
	}
	if opt.Threads < 1 || opt.Threads > maxThreads {
		return opt, fmt.Errorf("thread count must be in range [1, %d], got %d", maxThreads, opt.Threads)
	}

	rest := fs.Args()
	if len(rest) != 1 {
		return opt, fmt.Errorf("expected exactly one source file, got %d", len(rest))
	}
	opt.Src = rest[0]
	if opt.Out == "" {
		opt.Out = "a.out"
	}
	return opt, nil
}

// Usage writes nasinc's help text to w.
func Usage(w io.Writer) {
	fmt.Fprintln(w, "usage: nasinc build <file> [flags]")
	fmt.Fprintln(w, "  -out path          path to the linked output binary (default \"a.out\")")
	fmt.Fprintln(w, "  -threads N         worker-pool size for multi-module builds")
	fmt.Fprintln(w, "  -silent            suppress non-error stdout output")
	fmt.Fprintln(w, "  -dump-ast          print the parsed syntax tree and exit")
	fmt.Fprintln(w, "  -dump-bytecode     print the bytecode IR and exit")
	fmt.Fprintln(w, "  -dump-clif         not implemented; reports an error")
}
