package core

import "testing"

func TestCondIsPresent(t *testing.T) {
	c := condIsPresent("$.x", true)
	if c.Variable != "$.x" || c.IsPresent == nil || !*c.IsPresent {
		t.Fatalf("unexpected condition %#v", c)
	}
}

func TestIsTruthy(t *testing.T) {
	c := isTruthy("$.flag")
	if c.And == nil && c.Or == nil {
		// isTruthy must combine at least IsPresent + IsNull + a
		// type-dependent falsy check; a bare atom would accept null.
		t.Fatalf("isTruthy produced a bare atom: %#v", c)
	}
}

func TestTrivialTrueFalseAreDistinguishable(t *testing.T) {
	tt := trivialTrue()
	tf := trivialFalse()
	if tt.IsNull == nil || tf.IsNull == nil || *tt.IsNull || !*tf.IsNull {
		t.Fatalf("expected trivialTrue/trivialFalse to test IsNull false/true, got %#v and %#v", tt, tf)
	}
}

func TestAndOrNot(t *testing.T) {
	a := condIsPresent("$.a", true)
	b := condIsPresent("$.b", true)

	and := and(a, b)
	if len(and.And) != 2 {
		t.Fatalf("and() produced %d clauses, want 2", len(and.And))
	}

	or := or(a, b)
	if len(or.Or) != 2 {
		t.Fatalf("or() produced %d clauses, want 2", len(or.Or))
	}

	n := not(a)
	if n.Not != a {
		t.Fatalf("not() did not wrap the given condition")
	}
}
