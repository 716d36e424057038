// label.go provides deterministic, readable basic-block name generation for
// the code generator driver. Grounded on the teacher's util/label.go, which
// generated assembly jump labels from a channel-served counter; here the
// counters are per-function and not shared across goroutines, so a plain
// struct replaces the teacher's listener goroutine.
package util

import "fmt"

// LabelKind identifies which construct a generated block name belongs to.
type LabelKind int

const (
	LabelIfThen LabelKind = iota
	LabelIfElse
	LabelIfEnd
	LabelLoopHead
	LabelLoopEnd
	LabelKindCount
)

var labelPrefixes = [LabelKindCount]string{
	"if.then",
	"if.else",
	"if.end",
	"loop.head",
	"loop.end",
}

// Labeler generates unique, human-readable block names scoped to one
// function's code generation.
type Labeler struct {
	counts [LabelKindCount]int
}

// Next returns the next label of kind k, e.g. "if.then.003".
func (l *Labeler) Next(k LabelKind) string {
	n := l.counts[k]
	l.counts[k]++
	return fmt.Sprintf("%s.%03d", labelPrefixes[k], n)
}
