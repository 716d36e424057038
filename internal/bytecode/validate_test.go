package bytecode

import "testing"

func TestValidateStackBalanceAddFunction(t *testing.T) {
	// fn add(a, b): a + b
	body := []Instr{
		Dup(1, Loc{}), // a
		Dup(1, Loc{}), // b
		{Op: OpAdd},
	}
	if err := ValidateStackBalance(2, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStackBalanceIfMismatch(t *testing.T) {
	// if cond { 1 } else { } -- else branch leaves nothing, should fail.
	body := []Instr{
		{Op: OpCreateValue},     // cond
		{Op: OpIf},
		{Op: OpCreateValue},     // then: 1
		{Op: OpElse},
		{Op: OpEnd}, // else branch left nothing on stack.
	}
	if err := ValidateStackBalance(0, body); err == nil {
		t.Fatal("expected an error for mismatched if branches")
	}
}

func TestValidateStackBalanceTailLoop(t *testing.T) {
	// fn fact(n): loop wrapper around if n==0 then 1 else continue(n-1)*... simplified
	// to just: loop(arity=1) { if never-taken-branch-never: continue(1) } end
	body := []Instr{
		Dup(0, Loc{}), // seed loop arg with param n
		{Op: OpLoop, Arity: 1},
		Dup(0, Loc{}), // n at loop head
		{Op: OpCreateValue},
		{Op: OpEq},
		{Op: OpIf},
		{Op: OpCreateValue}, // then: 1
		{Op: OpElse},
		Dup(0, Loc{}), // n - 1
		{Op: OpContinue, Arity: 1},
		{Op: OpEnd}, // closes if
		{Op: OpEnd}, // closes loop
	}
	if err := ValidateStackBalance(1, body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDupOutOfRange(t *testing.T) {
	body := []Instr{Dup(5, Loc{})}
	if err := ValidateStackBalance(1, body); err == nil {
		t.Fatal("expected out-of-range dup to fail")
	}
}
