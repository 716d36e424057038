package types

import (
	"testing"

	"nasin/internal/util"
)

func TestIntersectionIdempotent(t *testing.T) {
	cases := []Type{
		Prim(Bool),
		Prim(I32),
		Prim(F64),
		NewString(nil),
		NewArray(Prim(I32), nil),
		EmptyInfer(),
	}
	for _, ty := range cases {
		got, ok := Intersection(nil, ty, ty)
		if !ok {
			t.Fatalf("intersection(%s,%s) failed, want ok", ty, ty)
		}
		if !Equal(got, ty) {
			t.Fatalf("intersection(%s,%s) = %s, want %s", ty, ty, got, ty)
		}
	}
}

func TestExtendsNumericWidening(t *testing.T) {
	if !Extends(nil, Prim(I32), Prim(AnyNumber)) {
		t.Fatal("i32 should extend AnyNumber")
	}
	if !Extends(nil, Prim(I32), Prim(AnySignedNumber)) {
		t.Fatal("i32 should extend AnySignedNumber")
	}
	if Extends(nil, Prim(I32), Prim(AnyFloat)) {
		t.Fatal("i32 should not extend AnyFloat")
	}
	if !Extends(nil, Prim(U32), Prim(AnyNumber)) {
		t.Fatal("u32 should extend AnyNumber")
	}
	if Extends(nil, Prim(U32), Prim(AnySignedNumber)) {
		t.Fatal("u32 should not extend AnySignedNumber")
	}
}

func TestCommonTypeNumeric(t *testing.T) {
	got, ok := CommonType(nil, Prim(I32), Prim(U32))
	if !ok || got.Kind != AnyNumber {
		t.Fatalf("common_type(i32,u32) = %v,%v want AnyNumber", got, ok)
	}
	got, ok = CommonType(nil, Prim(I32), Prim(F32))
	if !ok || got.Kind != AnySignedNumber {
		t.Fatalf("common_type(i32,f32) = %v,%v want AnySignedNumber", got, ok)
	}
}

func TestStringLenIntersection(t *testing.T) {
	five, three := 5, 3
	a := NewString(&five)
	b := NewString(nil)
	got, ok := Intersection(nil, a, b)
	if !ok || got.Len == nil || *got.Len != 5 {
		t.Fatalf("intersection(str[5],str) = %v,%v want str[5]", got, ok)
	}

	c := NewString(&three)
	if _, ok := Intersection(nil, a, c); ok {
		t.Fatal("intersection(str[5],str[3]) should fail: disjoint lengths")
	}
}

func TestCommonTypeStringLenDegrades(t *testing.T) {
	five, three := 5, 3
	a := NewString(&five)
	b := NewString(&three)
	got, ok := CommonType(nil, a, b)
	if !ok {
		t.Fatal("common_type(str[5],str[3]) should succeed with unknown length")
	}
	if got.Len != nil {
		t.Fatalf("common_type(str[5],str[3]) should degrade to unknown length, got %v", *got.Len)
	}
}

func TestInferPropertyExtends(t *testing.T) {
	props := util.NewSortedMap[Type]()
	props.Set("x", Prim(I32))
	infer := NewInfer(props)
	if !Extends(nil, infer, EmptyInfer()) {
		t.Fatal("any infer should extend the unknown infer")
	}
}
