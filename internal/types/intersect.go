package types

// Intersection computes the most specific type below both a and b (spec
// §3.1, §4.1): commutative, idempotent, fails (ok=false) when a and b are
// disjoint.
func Intersection(r Resolver, a, b Type) (Type, bool) {
	if Equal(a, b) {
		return a, true
	}
	if Extends(r, a, b) {
		return a, true
	}
	if Extends(r, b, a) {
		return b, true
	}

	if a.Kind == Infer || b.Kind == Infer {
		return intersectInfer(r, a, b)
	}

	switch {
	case a.Kind == Array && b.Kind == Array:
		item, ok := Intersection(r, *a.Item, *b.Item)
		if !ok {
			return Type{}, false
		}
		ln, ok := intersectLen(a.Len, b.Len)
		if !ok {
			return Type{}, false
		}
		return NewArray(item, ln), true
	case a.Kind == String && b.Kind == String:
		ln, ok := intersectLen(a.Len, b.Len)
		if !ok {
			return Type{}, false
		}
		return NewString(ln), true
	}

	// Disjoint: neither side extends the other and neither is structural.
	return Type{}, false
}

// intersectInfer handles the case where at least one operand is an Infer
// type. A concrete/TypeRef operand is kept only if it satisfies the other
// side's property constraints (already checked via Extends above when it
// does); two Infer operands merge into the union of their properties with
// pairwise intersection on overlapping names.
func intersectInfer(r Resolver, a, b Type) (Type, bool) {
	if a.Kind != Infer {
		a, b = b, a
	}
	if b.Kind != Infer {
		// a is Infer{props}, b is concrete: intersection requires b to
		// satisfy a's properties (a concrete type can't itself be widened).
		if Extends(r, b, a) {
			return b, true
		}
		return Type{}, false
	}

	merged := cloneProps(a.Properties)
	ok := true
	b.Properties.Each(func(name string, bt Type) {
		if !ok {
			return
		}
		if at, found := merged.Get(name); found {
			it, iok := Intersection(r, at, bt)
			if !iok {
				ok = false
				return
			}
			merged.Set(name, it)
		} else {
			merged.Set(name, bt)
		}
	})
	if !ok {
		return Type{}, false
	}
	return NewInfer(merged), true
}

func intersectLen(a, b *int) (*int, bool) {
	if a == nil {
		return b, true
	}
	if b == nil {
		return a, true
	}
	if *a != *b {
		return nil, false
	}
	return a, true
}
