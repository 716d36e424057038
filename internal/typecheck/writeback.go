package typecheck

import (
	"nasin/internal/bytecode"
	"nasin/internal/types"
)

// WriteBack rewrites mod in place with the resolved types computed by
// Validate: CreateValue and CreateRecord instructions that still carried
// an abstract numeric upper bound or an unresolved Infer get their
// Resolved field set to the concrete type (spec §4.4), and function
// parameter/return types are updated to their resolved forms. Call only
// after Validate reports no errors.
func (r *Result) WriteBack(mod *bytecode.Module) {
	for fi := range mod.Funcs {
		f := &mod.Funcs[fi]
		if f.IsExtern() {
			continue
		}
		fe := r.Funcs[fi]
		for pi := range f.Params {
			if pi < len(fe.Params) {
				f.Params[pi].Ty = r.typeOf(fe.Params[pi])
			}
		}
		f.Ret = r.typeOf(fe.Ret)
		r.writeBackBody(f.Body, fe.PerInstr)
	}
	for gi := range mod.Globals {
		g := &mod.Globals[gi]
		ge := r.Globals[gi]
		g.Ty = r.typeOf(ge.Result)
		r.writeBackBody(g.Body, ge.PerInstr)
	}
}

func (r *Result) writeBackBody(body []bytecode.Instr, perInstr []EntryIdx) {
	for idx := range body {
		if idx >= len(perInstr) {
			continue
		}
		e := perInstr[idx]
		if e == noEntry {
			continue
		}
		ty := r.typeOf(e)
		switch body[idx].Op {
		case bytecode.OpCreateValue:
			if body[idx].Value.Kind != ty.Kind {
				resolved := ty
				body[idx].Resolved = &resolved
			}
		case bytecode.OpCreateRecord:
			resolved := ty
			body[idx].Resolved = &resolved
		}
	}
}

// typeOf returns the memoized resolved type of entry i, defaulting to the
// unconstrained Infer type if it was never resolved (e.g. unreachable
// code).
func (r *Result) typeOf(i EntryIdx) types.Type {
	e := r.arena.get(i)
	if e.resolved {
		return e.resolvedTy
	}
	return types.EmptyInfer()
}
