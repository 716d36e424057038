package types

import "nasin/internal/util"

func cloneProps(m *util.SortedMap[Type]) *util.SortedMap[Type] {
	if m == nil {
		return util.NewSortedMap[Type]()
	}
	return m.Clone()
}

// CommonType computes the most specific type above both a and b (spec
// §3.1, §4.1) — the join used to unify branch results of if/loop. Returns
// ok=false when no common type exists.
func CommonType(r Resolver, a, b Type) (Type, bool) {
	if Equal(a, b) {
		return a, true
	}
	if Extends(r, a, b) {
		return b, true
	}
	if Extends(r, b, a) {
		return a, true
	}

	if a.Kind == Infer || b.Kind == Infer {
		return commonInfer(r, a, b)
	}

	if isNumberKind(a.Kind) && isNumberKind(b.Kind) {
		return commonNumeric(a.Kind, b.Kind), true
	}

	switch {
	case a.Kind == Array && b.Kind == Array:
		item, ok := CommonType(r, *a.Item, *b.Item)
		if !ok {
			return Type{}, false
		}
		return NewArray(item, commonLen(a.Len, b.Len)), true
	case a.Kind == String && b.Kind == String:
		return NewString(commonLen(a.Len, b.Len)), true
	}

	return Type{}, false
}

// commonNumeric resolves the least upper bound of two distinct concrete (or
// abstract) numeric kinds per spec §3.1's widening hierarchy:
// AnyFloat < AnySignedNumber < AnyNumber.
func commonNumeric(a, b Kind) Type {
	if isFloatKind(a) && isFloatKind(b) {
		return Prim(AnyFloat)
	}
	if isSignedKind(a) && isSignedKind(b) {
		return Prim(AnySignedNumber)
	}
	return Prim(AnyNumber)
}

// commonInfer implements spec §3.1's "for Infer, union of properties,
// values pointwise common": properties present on both sides are joined
// via CommonType; properties present on only one side are carried through
// unchanged, since the join of "has at least these properties" relaxes,
// never adds, constraints.
func commonInfer(r Resolver, a, b Type) (Type, bool) {
	if a.Kind != Infer || b.Kind != Infer {
		// One side is a concrete/TypeRef type, the other Infer: fall back
		// to property-wise comparison the same way, treating the concrete
		// side as an Infer of its own properties is not generally possible
		// (it may have no declared properties at all), so the join is the
		// unconstrained Infer type unless one extends the other (handled
		// above already).
		return EmptyInfer(), true
	}

	merged := util.NewSortedMap[Type]()
	ok := true
	a.Properties.Each(func(name string, at Type) {
		if bt, found := b.Properties.Get(name); found {
			ct, cok := CommonType(r, at, bt)
			if !cok {
				ok = false
				return
			}
			merged.Set(name, ct)
		} else {
			merged.Set(name, at)
		}
	})
	b.Properties.Each(func(name string, bt Type) {
		if !a.Properties.Has(name) {
			merged.Set(name, bt)
		}
	})
	if !ok {
		return Type{}, false
	}
	return NewInfer(merged), true
}

func commonLen(a, b *int) *int {
	if a == nil || b == nil {
		return nil
	}
	if *a != *b {
		return nil
	}
	return a
}
