package types

// Extends implements the `a extends b` subtype relation of spec §3.1:
//
//   - b unknown (empty Infer)        => always holds.
//   - numeric widening into AnyNumber/AnySignedNumber/AnyFloat.
//   - String/Array: equal-or-unknown length, items extend (Array).
//   - a extends Infer{p}: every property in p exists on a with an
//     extending type.
//   - otherwise: equality.
func Extends(r Resolver, a, b Type) bool {
	if b.Kind == Infer && b.IsUnknown() {
		return true
	}

	if b.Kind == Infer {
		ok := true
		b.Properties.Each(func(name string, want Type) {
			if !ok {
				return
			}
			got, found := property(r, a, name)
			if !found || !Extends(r, got, want) {
				ok = false
			}
		})
		return ok
	}

	switch b.Kind {
	case AnyNumber:
		return isNumberKind(a.Kind) || a.Kind == AnyNumber || a.Kind == AnySignedNumber || a.Kind == AnyFloat
	case AnySignedNumber:
		if a.Kind == AnySignedNumber || a.Kind == AnyFloat {
			return true
		}
		return isSignedKind(a.Kind)
	case AnyFloat:
		if a.Kind == AnyFloat {
			return true
		}
		return isFloatKind(a.Kind)
	}

	if a.Kind != b.Kind {
		return false
	}

	switch a.Kind {
	case String:
		return lenExtends(a.Len, b.Len)
	case Array:
		return lenExtends(a.Len, b.Len) && Extends(r, *a.Item, *b.Item)
	case Infer:
		// Both structural: a extends b iff every property on b is
		// satisfied by a (a may have more).
		ok := true
		b.Properties.Each(func(name string, want Type) {
			if !ok {
				return
			}
			got, found := a.Properties.Get(name)
			if !found || !Extends(r, got, want) {
				ok = false
			}
		})
		return ok
	default:
		return Equal(a, b)
	}
}

// lenExtends reports whether length la is compatible with the (possibly
// unknown) required length lb: equal, or lb unknown.
func lenExtends(la, lb *int) bool {
	if lb == nil {
		return true
	}
	if la == nil {
		return false
	}
	return *la == *lb
}

// property returns the declared or inferred type of name on t, consulting
// the Resolver for TypeRef record types.
func property(r Resolver, t Type, name string) (Type, bool) {
	switch t.Kind {
	case Infer:
		return t.Properties.Get(name)
	case TypeRef:
		if r == nil {
			return Type{}, false
		}
		return r.Field(t.Ref, name)
	default:
		return Type{}, false
	}
}

// Property is the exported form of spec §4.1's property(a,name) accessor.
func Property(r Resolver, a Type, name string) (Type, bool) {
	return property(r, a, name)
}
