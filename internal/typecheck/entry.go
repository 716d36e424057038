// Package typecheck implements the bidirectional type checker of spec
// §3.3, §4.4: per-value entries with union-find merging, constraint
// collection over a module's bytecode bodies, and validation by
// intersecting each entry's accumulated evidence.
//
// Grounded on original_source/src/typecheck/{entry,constraints,
// module_checker}.rs for the algorithm and on the teacher's symtab.go /
// validate.go (now removed, see DESIGN.md) for the Go-side conventions:
// an arena of entries addressed by index, never by pointer, matching this
// compiler's "indices, never back-pointers" ownership rule (spec §3.4).
package typecheck

import (
	"nasin/internal/bytecode"
	"nasin/internal/types"
)

// EntryIdx indexes into a Checker's arena of TypeCheckEntry values.
type EntryIdx int

// Priority orders candidate types emitted for the same entry so that
// higher-confidence evidence can override lower-confidence evidence when
// the spec's tie-break rules call for it (spec §3.3, §4.4 "Ordering").
type Priority int

const (
	NoType Priority = iota
	DerivedInferredType
	DerivedDefinedType
	DefinedType
)

// TypeCheckEntry is the checker's handle for one logical value: a
// function parameter, a return value, a global, or an instruction result.
type TypeCheckEntry struct {
	Ty          types.Type
	Loc         bytecode.Loc
	Constraints []Constraint
	SameOf      []EntryIdx // union-find: entries this one has been merged into.
	resolved    bool
	resolvedTy  types.Type
	resolving   bool // cycle guard during Phase 2 recursion.
}

// arena owns every TypeCheckEntry allocated during a module's check. It is
// dropped once the module's check completes (spec §3.4): nothing outside
// Checker retains EntryIdx values across module boundaries.
type arena struct {
	entries []TypeCheckEntry
}

func (a *arena) alloc(loc bytecode.Loc) EntryIdx {
	a.entries = append(a.entries, TypeCheckEntry{Ty: types.EmptyInfer(), Loc: loc})
	return EntryIdx(len(a.entries) - 1)
}

func (a *arena) get(i EntryIdx) *TypeCheckEntry {
	return &a.entries[i]
}

// constrain appends a constraint to entry i.
func (a *arena) constrain(i EntryIdx, c Constraint) {
	e := a.get(i)
	e.Constraints = append(e.Constraints, c)
}

// merge implements union-find: i now delegates to j. Both i and j may
// already have constraints of their own; merging never discards them,
// since Phase 2 resolves a delegating entry by visiting every entry in
// SameOf, not just the first.
func (a *arena) merge(i, j EntryIdx) {
	if i == j {
		return
	}
	a.get(i).SameOf = append(a.get(i).SameOf, j)
}
