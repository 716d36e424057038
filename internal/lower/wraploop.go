package lower

import (
	"nasin/internal/bytecode"
	"nasin/internal/types"
)

// wrapLoop wraps a lowered function body that contains at least one
// Continue in the implicit Loop spec §4.3 requires: Loop(unknown,
// paramCount) … End, so tail calls become jumps back to the loop head
// instead of genuine recursive Call instructions.
//
// Seeding the loop's block parameters re-duplicates each of the function's
// paramCount incoming arguments, in order, before the Loop instruction
// consumes them. Because each successive Dup pushes one more value above
// the one it's copying, the relative depth to reach argument i is the same
// constant (paramCount-1) on every iteration of the preamble — see
// validate_test.go's TestValidateStackBalanceTailLoop for the one-argument
// case this generalizes.
func wrapLoop(body []bytecode.Instr, paramCount int) []bytecode.Instr {
	out := make([]bytecode.Instr, 0, paramCount+2+len(body)+1)
	for i := 0; i < paramCount; i++ {
		out = append(out, bytecode.Dup(paramCount-1, bytecode.Loc{}))
	}
	out = append(out, bytecode.Loop(types.EmptyInfer(), paramCount, bytecode.Loc{}))
	out = append(out, body...)
	out = append(out, bytecode.End(bytecode.Loc{}))
	return out
}
