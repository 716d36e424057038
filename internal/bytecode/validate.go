package bytecode

import "fmt"

// blockKind distinguishes the two structured block shapes the validator
// tracks while walking a flat instruction stream.
type blockKind int

const (
	blockIfThen blockKind = iota
	blockIfElse
	blockLoop
)

// openBlock is one entry of the validator's nested-block stack.
type openBlock struct {
	kind         blockKind
	base         int  // stack height at which the block's own content starts.
	arity        int  // Loop only: number of block parameters / Continue arity.
	thenNever    bool // If only: whether the then-branch was never reached.
	bodyReached  bool // whether any instruction in the current segment executed while reachable.
	openedAtInstr int
}

// ValidateStackBalance checks spec §4.2's invariants for one function or
// global body: If/Else/End and Loop/End nest correctly, every Continue
// arity matches its loop, every Dup stays in bounds, and the stack height
// at every program point is a static function of the enclosing block
// shape (spec §8's stack-balance property). paramCount seeds the initial
// stack height, since parameters live at the bottom of the stack and are
// addressed purely through Dup — there is no dedicated "get parameter"
// instruction.
func ValidateStackBalance(paramCount int, body []Instr) error {
	height := paramCount
	reachable := true
	var blocks []openBlock

	pop := func(n int, idx int, instr Instr) error {
		if !reachable {
			return nil
		}
		if height < n {
			return fmt.Errorf("instr %d (%s): stack underflow: need %d values, have %d", idx, instr.Op, n, height)
		}
		height -= n
		return nil
	}
	push := func(n int) {
		if reachable {
			height += n
		}
	}

	for idx, instr := range body {
		switch instr.Op {
		case OpDup:
			if reachable && (instr.Rel < 0 || instr.Rel >= height) {
				return fmt.Errorf("instr %d: dup(%d) out of range for stack depth %d", idx, instr.Rel, height)
			}
			push(1)

		case OpGetGlobal, OpCreateValue, OpCreateString:
			push(1)

		case OpCompileError:
			push(1)

		case OpGetField:
			if err := pop(1, idx, instr); err != nil {
				return err
			}
			push(1)

		case OpArrayIndex:
			if err := pop(2, idx, instr); err != nil {
				return err
			}
			push(1)

		case OpCreateArray, OpCreateRecord:
			if err := pop(instr.Arity, idx, instr); err != nil {
				return err
			}
			push(1)

		default:
			if instr.Op.IsArithmetic() || instr.Op.IsComparison() {
				if err := pop(2, idx, instr); err != nil {
					return err
				}
				push(1)
				continue
			}
			if err := validateControl(&blocks, &height, &reachable, idx, instr); err != nil {
				return err
			}
		}
	}

	if len(blocks) != 0 {
		return fmt.Errorf("unterminated block opened at instr %d", blocks[len(blocks)-1].openedAtInstr)
	}
	return nil
}

// validateControl handles Call, If, Else, End, Loop, and Continue, all of
// which interact with the block stack rather than being pure stack-effect
// instructions.
func validateControl(blocks *[]openBlock, height *int, reachable *bool, idx int, instr Instr) error {
	switch instr.Op {
	case OpCall:
		if *reachable {
			if *height < instr.Arity {
				return fmt.Errorf("instr %d: call: stack underflow: need %d args, have %d", idx, instr.Arity, *height)
			}
			*height -= instr.Arity
			*height++
		}

	case OpIf:
		if *reachable {
			if *height < 1 {
				return fmt.Errorf("instr %d: if: missing condition on stack", idx)
			}
			*height--
		}
		*blocks = append(*blocks, openBlock{kind: blockIfThen, base: *height, openedAtInstr: idx})

	case OpElse:
		n := len(*blocks)
		if n == 0 || (*blocks)[n-1].kind != blockIfThen {
			return fmt.Errorf("instr %d: else without matching if", idx)
		}
		b := &(*blocks)[n-1]
		if *reachable {
			if *height != b.base+1 {
				return fmt.Errorf("instr %d: then-branch leaves %d values above base, want 1", idx, *height-b.base)
			}
			b.thenNever = false
		} else {
			b.thenNever = true
		}
		b.kind = blockIfElse
		*height = b.base
		*reachable = true

	case OpEnd:
		n := len(*blocks)
		if n == 0 {
			return fmt.Errorf("instr %d: end without matching if/loop", idx)
		}
		b := (*blocks)[n-1]
		*blocks = (*blocks)[:n-1]

		switch b.kind {
		case blockIfElse:
			elseNever := !*reachable
			if *reachable {
				if *height != b.base+1 {
					return fmt.Errorf("instr %d: else-branch leaves %d values above base, want 1", idx, *height-b.base)
				}
			}
			if b.thenNever && elseNever {
				*height = b.base
				*reachable = false
			} else {
				*height = b.base + 1
				*reachable = true
			}
		case blockLoop:
			loopNever := !*reachable
			if *reachable && *height != b.base+1 {
				return fmt.Errorf("instr %d: loop body leaves %d values above base, want 1", idx, *height-b.base)
			}
			*height = b.base + 1
			*reachable = !loopNever
		case blockIfThen:
			return fmt.Errorf("instr %d: if missing else before end", idx)
		}

	case OpLoop:
		if *reachable {
			if *height < instr.Arity {
				return fmt.Errorf("instr %d: loop: stack underflow: need %d args, have %d", idx, instr.Arity, *height)
			}
			*height -= instr.Arity
		}
		*blocks = append(*blocks, openBlock{kind: blockLoop, base: *height, arity: instr.Arity, openedAtInstr: idx})

	case OpContinue:
		lb := innermostLoop(*blocks)
		if lb == nil {
			return fmt.Errorf("instr %d: continue outside of loop", idx)
		}
		if instr.Arity != lb.arity {
			return fmt.Errorf("instr %d: continue arity %d does not match loop arity %d", idx, instr.Arity, lb.arity)
		}
		if *reachable {
			if *height < instr.Arity {
				return fmt.Errorf("instr %d: continue: stack underflow: need %d args, have %d", idx, instr.Arity, *height)
			}
			*height -= instr.Arity
		}
		*reachable = false
	}
	return nil
}

func innermostLoop(blocks []openBlock) *openBlock {
	for i := len(blocks) - 1; i >= 0; i-- {
		if blocks[i].kind == blockLoop {
			return &blocks[i]
		}
	}
	return nil
}
