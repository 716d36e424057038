package cliopt

import "testing"

func TestParseArgsDefaults(t *testing.T) {
	opt, err := ParseArgs([]string{"main.nas"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Src != "main.nas" {
		t.Fatalf("Src = %q, want main.nas", opt.Src)
	}
	if opt.Out != "a.out" {
		t.Fatalf("Out = %q, want default a.out", opt.Out)
	}
	if opt.Threads != defaultThreads {
		t.Fatalf("Threads = %d, want default %d", opt.Threads, defaultThreads)
	}
}

func TestParseArgsFlags(t *testing.T) {
	opt, err := ParseArgs([]string{"-out", "bin/prog", "-threads", "4", "-silent", "main.nas"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opt.Out != "bin/prog" {
		t.Fatalf("Out = %q, want bin/prog", opt.Out)
	}
	if opt.Threads != 4 {
		t.Fatalf("Threads = %d, want 4", opt.Threads)
	}
	if !opt.Silent {
		t.Fatal("expected Silent to be true")
	}
}

func TestParseArgsRejectsThreadCountOutOfRange(t *testing.T) {
	if _, err := ParseArgs([]string{"-threads", "0", "main.nas"}); err == nil {
		t.Fatal("expected an error for threads=0")
	}
	if _, err := ParseArgs([]string{"-threads", "65", "main.nas"}); err == nil {
		t.Fatal("expected an error for threads=65")
	}
}

func TestParseArgsRequiresExactlyOneSourceFile(t *testing.T) {
	if _, err := ParseArgs(nil); err == nil {
		t.Fatal("expected an error with no source file")
	}
	if _, err := ParseArgs([]string{"a.nas", "b.nas"}); err == nil {
		t.Fatal("expected an error with two source files")
	}
}

func TestApplyProjectConfigFillsDefaultsOnly(t *testing.T) {
	cfg := ProjectConfig{Entry: "src/main.nas", Out: "build/prog", Threads: 8}

	fromFlags, _ := ParseArgs([]string{"-out", "explicit.out", "cli.nas"})
	got := ApplyProjectConfig(fromFlags, cfg)
	if got.Src != "cli.nas" {
		t.Fatalf("Src = %q, want the CLI-provided cli.nas to win", got.Src)
	}
	if got.Out != "explicit.out" {
		t.Fatalf("Out = %q, want the CLI-provided explicit.out to win", got.Out)
	}
	if got.Threads != 8 {
		t.Fatalf("Threads = %d, want the config's 8 to fill the untouched default", got.Threads)
	}
}
