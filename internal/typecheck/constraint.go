package typecheck

import "nasin/internal/types"

// ConstraintKind discriminates the Constraint variants of spec §3.3.
type ConstraintKind int

const (
	CIs ConstraintKind = iota
	CTypeOf
	CArray
	CProperty
	CReturnOf
	CParameterOf
	CMembers
	CHasProperty
	CFunc
	CArrayItem
)

// Constraint is one piece of evidence accumulated on a TypeCheckEntry
// during Phase 1 (spec §4.4's collection table). Only the fields relevant
// to Kind are meaningful.
type Constraint struct {
	Kind     ConstraintKind
	Priority Priority

	Ty      types.Type // CIs.
	Entry   EntryIdx   // CTypeOf, CArray (item entry), CProperty/CHasProperty (parent/value entry).
	Name    string      // CProperty, CHasProperty.
	Func    int         // CReturnOf, CParameterOf, CFunc: function index.
	Param   int         // CParameterOf: parameter index.
	Members *types.Type // CMembers: a precomputed Infer type to merge in wholesale.
}

// Is records that the entry's type must be exactly ty (typically a
// declared parameter/return type, or an abstract numeric upper bound for a
// freshly materialized literal).
func Is(ty types.Type, prio Priority) Constraint { return Constraint{Kind: CIs, Ty: ty, Priority: prio} }

// TypeOf records that the entry's type must equal another entry's
// resolved type (e.g. Dup's source, arithmetic's shared operand).
func TypeOf(e EntryIdx) Constraint { return Constraint{Kind: CTypeOf, Entry: e, Priority: DerivedInferredType} }

// ArrayOf records that the entry's type is Array{item: e.ty, len: None}.
func ArrayOf(item EntryIdx) Constraint {
	return Constraint{Kind: CArray, Entry: item, Priority: DerivedInferredType}
}

// PropertyOf records that the entry's type is Infer{{name: e.ty}} — used
// for GetField's result, which carries the loaded field's type.
func PropertyOf(name string, e EntryIdx) Constraint {
	return Constraint{Kind: CProperty, Name: name, Entry: e, Priority: DerivedInferredType}
}

// ReturnOf records that the entry's type must equal function fn's return type.
func ReturnOf(fn int) Constraint { return Constraint{Kind: CReturnOf, Func: fn, Priority: DerivedDefinedType} }

// ParameterOf records that the entry's type must equal function fn's
// parameter i's declared type.
func ParameterOf(fn, i int) Constraint {
	return Constraint{Kind: CParameterOf, Func: fn, Param: i, Priority: DerivedDefinedType}
}

// HasProperty records that the parent entry must structurally have
// property name with the type carried by the value entry e.
func HasProperty(name string, e EntryIdx) Constraint {
	return Constraint{Kind: CHasProperty, Name: name, Entry: e, Priority: DerivedInferredType}
}

// ItemOf records that the entry's type is array entry e's resolved item
// type — ArrayIndex's result, the inverse of ArrayOf.
func ItemOf(e EntryIdx) Constraint {
	return Constraint{Kind: CArrayItem, Entry: e, Priority: DerivedInferredType}
}
