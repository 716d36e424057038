package bytecode

import "nasin/internal/types"

// Value is a literal payload materialized by CreateValue. Kind is the
// primitive it was parsed as; before type checking this is frequently one
// of the abstract AnyNumber/AnySignedNumber/AnyFloat upper bounds (spec
// §3.1) and the checker narrows it to a concrete kind during validation
// write-back (spec §4.4).
type Value struct {
	Kind  types.Kind
	Bool  bool
	Int   int64
	Float float64
}

// BoolValue constructs a boolean literal value.
func BoolValue(b bool) Value { return Value{Kind: types.Bool, Bool: b} }

// IntValue constructs an integer literal value with the given (possibly
// abstract) numeric kind.
func IntValue(k types.Kind, v int64) Value { return Value{Kind: k, Int: v} }

// FloatValue constructs a float literal value with the given (possibly
// abstract) numeric kind.
func FloatValue(k types.Kind, v float64) Value { return Value{Kind: k, Float: v} }
