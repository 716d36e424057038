package typecheck

import (
	"fmt"

	"nasin/internal/diag"
	"nasin/internal/types"
	"nasin/internal/util"
)

// Validate runs Phase 2 over every entry allocated while checking mod,
// reporting UnexpectedType/TypeMismatch diagnostics to bag, and returns
// whether the module is free of errors. Call after CheckModule.
func (r *Result) Validate(bag *diag.Bag) bool {
	ok := true
	for i := range r.arena.entries {
		if !r.resolve(EntryIdx(i), bag) {
			ok = false
		}
	}
	return ok
}

// resolve computes (and memoizes) the resolved type of entry i, reporting
// diagnostics for any mismatch found along the way. Returns false if i (or
// anything it depends on) failed to resolve cleanly.
func (r *Result) resolve(i EntryIdx, bag *diag.Bag) bool {
	e := r.arena.get(i)
	if e.resolved {
		return true
	}
	if e.resolving {
		// A dependency cycle that isn't a legitimate union-find merge
		// (those are resolved via SameOf, handled below) — treat as
		// unknown rather than recursing forever.
		return true
	}
	e.resolving = true
	e.resolvedTy = types.EmptyInfer()
	defer func() { e.resolving = false }()

	if len(e.SameOf) > 0 {
		return r.resolveDelegating(i, bag)
	}
	return r.resolveOwn(i, bag)
}

func (r *Result) resolveDelegating(i EntryIdx, bag *diag.Bag) bool {
	e := r.arena.get(i)
	ok := true
	var acc types.Type
	have := false
	for _, d := range e.SameOf {
		if !r.resolve(d, bag) {
			ok = false
			continue
		}
		dt := r.arena.get(d).resolvedTy
		if !have {
			acc = dt
			have = true
			continue
		}
		ct, cok := types.CommonType(r.mod, acc, dt)
		if !cok {
			bag.Add(diag.Diagnostic{
				Severity: diag.Error, Kind: diag.TypeMismatch,
				Message: fmt.Sprintf("type mismatch: %s vs %s", acc, dt),
				Line:    e.Loc.Line, Col: e.Loc.Col,
			})
			ok = false
			continue
		}
		acc = ct
	}
	if !have {
		acc = types.EmptyInfer()
	}
	e.resolvedTy = acc
	e.resolved = true
	e.Ty = acc
	return ok
}

// resolveOwn folds every constraint on a non-delegating entry via
// intersection, per spec §4.4 Phase 2 step 2/3.
func (r *Result) resolveOwn(i EntryIdx, bag *diag.Bag) bool {
	e := r.arena.get(i)
	acc := types.EmptyInfer()
	ok := true
	for _, c := range e.Constraints {
		cand, cok := r.candidate(c, bag)
		if !cok {
			continue
		}
		next, iok := types.Intersection(r.mod, acc, cand)
		if !iok {
			bag.Add(diag.Diagnostic{
				Severity: diag.Error, Kind: diag.UnexpectedType,
				Message: fmt.Sprintf("unexpected type: expected %s, found %s", cand, acc),
				Line:    e.Loc.Line, Col: e.Loc.Col,
			})
			ok = false
			continue
		}
		acc = next
	}
	e.resolvedTy = acc
	e.resolved = true
	e.Ty = acc
	return ok
}

// candidate computes the candidate type contributed by one constraint,
// per spec §4.4 Phase 2 step 2.
func (r *Result) candidate(c Constraint, bag *diag.Bag) (types.Type, bool) {
	switch c.Kind {
	case CIs:
		return c.Ty, true
	case CTypeOf:
		if !r.resolve(c.Entry, bag) {
			return types.Type{}, false
		}
		return r.arena.get(c.Entry).resolvedTy, true
	case CArray:
		if !r.resolve(c.Entry, bag) {
			return types.Type{}, false
		}
		return types.NewArray(r.arena.get(c.Entry).resolvedTy, nil), true
	case CProperty:
		if !r.resolve(c.Entry, bag) {
			return types.Type{}, false
		}
		props := util.NewSortedMap[types.Type]()
		props.Set(c.Name, r.arena.get(c.Entry).resolvedTy)
		return types.NewInfer(props), true
	case CHasProperty:
		if !r.resolve(c.Entry, bag) {
			return types.Type{}, false
		}
		props := util.NewSortedMap[types.Type]()
		props.Set(c.Name, r.arena.get(c.Entry).resolvedTy)
		return types.NewInfer(props), true
	case CArrayItem:
		if !r.resolve(c.Entry, bag) {
			return types.Type{}, false
		}
		at := r.arena.get(c.Entry).resolvedTy
		if at.Kind == types.Array && at.Item != nil {
			return *at.Item, true
		}
		return types.EmptyInfer(), true
	case CReturnOf:
		if c.Func < 0 || c.Func >= len(r.Funcs) {
			return types.EmptyInfer(), true
		}
		ret := r.Funcs[c.Func].Ret
		if !r.resolve(ret, bag) {
			return types.Type{}, false
		}
		return r.arena.get(ret).resolvedTy, true
	case CParameterOf:
		if c.Func < 0 || c.Func >= len(r.Funcs) || c.Param < 0 || c.Param >= len(r.Funcs[c.Func].Params) {
			return types.EmptyInfer(), true
		}
		p := r.Funcs[c.Func].Params[c.Param]
		if !r.resolve(p, bag) {
			return types.Type{}, false
		}
		return r.arena.get(p).resolvedTy, true
	case CMembers:
		if c.Members == nil {
			return types.EmptyInfer(), true
		}
		return *c.Members, true
	default:
		return types.EmptyInfer(), true
	}
}
