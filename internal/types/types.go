// Package types implements the type lattice (spec §3.1, §4.1): concrete and
// inferred types, the extends subtype relation, and the intersection and
// common_type operators the checker's constraint solver is built on.
//
// Grounded on the teacher's treatment of declared types in ir/validate.go
// (now removed in favor of this package — see DESIGN.md) and on
// original_source/src/bytecode/ty.rs for exact lattice semantics.
package types

import (
	"fmt"

	"nasin/internal/util"
)

// Kind discriminates the concrete shape of a Type.
type Kind int

const (
	Invalid Kind = iota
	Bool
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	USize
	F32
	F64
	AnyNumber
	AnySignedNumber
	AnyFloat
	String
	Array
	TypeRef
	Infer
)

var kindNames = map[Kind]string{
	Invalid:         "invalid",
	Bool:            "bool",
	I8:              "i8",
	I16:             "i16",
	I32:             "i32",
	I64:             "i64",
	U8:              "u8",
	U16:             "u16",
	U32:             "u32",
	U64:             "u64",
	USize:           "usize",
	F32:             "f32",
	F64:             "f64",
	AnyNumber:       "{number}",
	AnySignedNumber: "{signed number}",
	AnyFloat:        "{float}",
	String:          "str",
	Array:           "array",
	TypeRef:         "typeref",
	Infer:           "infer",
}

// Type is an immutable value in the type lattice. Only the fields relevant
// to Kind are meaningful; the zero Type is Invalid.
type Type struct {
	Kind Kind

	// String / Array.
	Len *int // nil means length-unknown.

	// Array only.
	Item *Type

	// TypeRef only: index into a Module's typedef table.
	Ref int

	// Infer only: structural property constraints, sorted by name.
	Properties *util.SortedMap[Type]
}

// Prim constructs a primitive (non-composite) type.
func Prim(k Kind) Type { return Type{Kind: k} }

// NewString constructs a String type with an optional known length.
func NewString(length *int) Type { return Type{Kind: String, Len: length} }

// NewArray constructs an Array type with an optional known length.
func NewArray(item Type, length *int) Type {
	it := item
	return Type{Kind: Array, Item: &it, Len: length}
}

// NewTypeRef constructs a handle into a module's typedef table.
func NewTypeRef(idx int) Type { return Type{Kind: TypeRef, Ref: idx} }

// NewInfer constructs a structural Infer type from a property set.
// An empty or nil props means "any type, unknown".
func NewInfer(props *util.SortedMap[Type]) Type {
	if props == nil {
		props = util.NewSortedMap[Type]()
	}
	return Type{Kind: Infer, Properties: props}
}

// EmptyInfer is the unconstrained "any type, unknown" Infer type.
func EmptyInfer() Type { return NewInfer(nil) }

// IsUnknown reports whether t carries no information at all: an Infer type
// with no properties.
func (t Type) IsUnknown() bool {
	return t.Kind == Infer && (t.Properties == nil || t.Properties.Len() == 0)
}

// IsAbstractNumber reports whether t is one of the AnyNumber/AnySignedNumber/
// AnyFloat upper bounds that must never reach code generation.
func (t Type) IsAbstractNumber() bool {
	switch t.Kind {
	case AnyNumber, AnySignedNumber, AnyFloat:
		return true
	default:
		return false
	}
}

// isSignedKind reports whether k is a signed integer or float primitive kind.
func isSignedKind(k Kind) bool {
	switch k {
	case I8, I16, I32, I64, F32, F64:
		return true
	default:
		return false
	}
}

func isFloatKind(k Kind) bool {
	switch k {
	case F32, F64:
		return true
	default:
		return false
	}
}

func isNumberKind(k Kind) bool {
	switch k {
	case I8, I16, I32, I64, U8, U16, U32, U64, USize, F32, F64:
		return true
	default:
		return false
	}
}

// String renders t for diagnostics. Textual form carries no compatibility
// guarantee across versions.
func (t Type) String() string {
	switch t.Kind {
	case String:
		if t.Len != nil {
			return fmt.Sprintf("str[%d]", *t.Len)
		}
		return "str"
	case Array:
		item := "?"
		if t.Item != nil {
			item = t.Item.String()
		}
		if t.Len != nil {
			return fmt.Sprintf("[%s; %d]", item, *t.Len)
		}
		return fmt.Sprintf("[%s]", item)
	case TypeRef:
		return fmt.Sprintf("typeref(%d)", t.Ref)
	case Infer:
		if t.IsUnknown() {
			return "?"
		}
		s := "{"
		first := true
		t.Properties.Each(func(name string, pt Type) {
			if !first {
				s += ", "
			}
			first = false
			s += name + ": " + pt.String()
		})
		return s + "}"
	default:
		if name, ok := kindNames[t.Kind]; ok {
			return name
		}
		return "?"
	}
}

// Equal reports structural equality, not subtyping.
func Equal(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case String:
		return lenEqual(a.Len, b.Len)
	case Array:
		return lenEqual(a.Len, b.Len) && Equal(*a.Item, *b.Item)
	case TypeRef:
		return a.Ref == b.Ref
	case Infer:
		if a.Properties.Len() != b.Properties.Len() {
			return false
		}
		eq := true
		a.Properties.Each(func(name string, pt Type) {
			bt, ok := b.Properties.Get(name)
			if !ok || !Equal(pt, bt) {
				eq = false
			}
		})
		return eq
	default:
		return true
	}
}

func lenEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
