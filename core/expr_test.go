package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func lowerExprOutput(t *testing.T, c *Compiler, e ast.Expr) (Output, *SubState) {
	t.Helper()
	sub, err := c.lowerExpr(e)
	if err != nil {
		t.Fatalf("lowerExpr: %v", err)
	}
	out, _ := getAslStateOutput(sub)
	return out, sub
}

func TestLowerLiteralFoldsConstants(t *testing.T) {
	c := newTestCompiler()
	out, _ := lowerExprOutput(t, c, &ast.Literal{Kind: ast.LitNumber, Value: 3.0})
	if v, ok := out.constLiteral(); !ok || v != 3.0 {
		t.Fatalf("got %#v", out)
	}
}

func TestLowerLiteralNullRoutesToContextSlot(t *testing.T) {
	c := newTestCompiler()
	out, _ := lowerExprOutput(t, c, &ast.Literal{Kind: ast.LitNull})
	if !out.IsPath() || out.Path != "$.fnl_context.null" {
		t.Fatalf("got %#v", out)
	}
}

func TestLowerLiteralUndefinedRejected(t *testing.T) {
	c := newTestCompiler()
	_, err := c.lowerExpr(&ast.Literal{Kind: ast.LitUndefined})
	if err == nil {
		t.Fatalf("expected undefined to be rejected")
	}
}

func TestLowerBinaryPlusConstantFold(t *testing.T) {
	c := newTestCompiler()
	out, _ := lowerExprOutput(t, c, &ast.BinaryOp{
		Op:    "+",
		Left:  &ast.Literal{Kind: ast.LitNumber, Value: 1.0},
		Right: &ast.Literal{Kind: ast.LitNumber, Value: 2.0},
	})
	if v, ok := out.constLiteral(); !ok || v != 3.0 {
		t.Fatalf("got %#v", out)
	}
}

func TestLowerBinaryPlusStringConcatFold(t *testing.T) {
	c := newTestCompiler()
	out, _ := lowerExprOutput(t, c, &ast.BinaryOp{
		Op:    "+",
		Left:  &ast.Literal{Kind: ast.LitString, Value: "a"},
		Right: &ast.Literal{Kind: ast.LitString, Value: "b"},
	})
	if v, ok := out.constLiteral(); !ok || v != "ab" {
		t.Fatalf("got %#v", out)
	}
}

func TestLowerBinaryPlusDynamicEmitsState(t *testing.T) {
	c := newTestCompiler()
	c.declareFresh(&ast.Ident{Name: "x"})
	out, sub := lowerExprOutput(t, c, &ast.BinaryOp{
		Op:    "+",
		Left:  &ast.Ident{Name: "x"},
		Right: &ast.Literal{Kind: ast.LitNumber, Value: 1.0},
	})
	if !out.IsPath() {
		t.Fatalf("expected a path output for a dynamic add, got %#v", out)
	}
	if len(sub.states) == 0 {
		t.Fatalf("expected at least one emitted state")
	}
}

func TestLowerBinaryMultiplyRejected(t *testing.T) {
	c := newTestCompiler()
	c.declareFresh(&ast.Ident{Name: "x"})
	_, err := c.lowerExpr(&ast.BinaryOp{
		Op:    "*",
		Left:  &ast.Ident{Name: "x"},
		Right: &ast.Literal{Kind: ast.LitNumber, Value: 2.0},
	})
	if err == nil {
		t.Fatalf("expected variable multiplication to be rejected")
	}
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != CodeNoVariableArithmetic {
		t.Fatalf("got %#v, want CodeNoVariableArithmetic", err)
	}
}

func TestLowerMemberStaticPropertyAccess(t *testing.T) {
	c := newTestCompiler()
	c.declareFresh(&ast.Ident{Name: "obj"})
	out, _ := lowerExprOutput(t, c, &ast.Member{Object: &ast.Ident{Name: "obj"}, Prop: "name"})
	if !out.IsPath() || out.Path != "$.obj.name" {
		t.Fatalf("got %#v", out)
	}
}

func TestLowerMemberLengthOfLiteralArray(t *testing.T) {
	c := newTestCompiler()
	arr := &ast.ArrayLit{Elements: []ast.Expr{
		&ast.Literal{Kind: ast.LitNumber, Value: 1.0},
		&ast.Literal{Kind: ast.LitNumber, Value: 2.0},
	}}
	out, _ := lowerExprOutput(t, c, &ast.Member{Object: arr, Prop: "length"})
	if v, ok := out.constLiteral(); !ok || v != 2.0 {
		t.Fatalf("got %#v", out)
	}
}

func TestLowerArrayLitAllLiteralFoldsToConstant(t *testing.T) {
	c := newTestCompiler()
	arr := &ast.ArrayLit{Elements: []ast.Expr{
		&ast.Literal{Kind: ast.LitNumber, Value: 1.0},
		&ast.Literal{Kind: ast.LitNumber, Value: 2.0},
	}}
	out, _ := lowerExprOutput(t, c, arr)
	v, ok := out.constLiteral()
	if !ok {
		t.Fatalf("expected a folded literal, got %#v", out)
	}
	vals, ok := v.([]interface{})
	if !ok || len(vals) != 2 {
		t.Fatalf("got %#v", v)
	}
}

func TestLowerUnaryNotOnConstant(t *testing.T) {
	c := newTestCompiler()
	out, _ := lowerExprOutput(t, c, &ast.UnaryOp{Op: "!", X: &ast.Literal{Kind: ast.LitBool, Value: true}})
	if v, ok := out.constLiteral(); !ok || v != false {
		t.Fatalf("got %#v", out)
	}
}

func TestLowerUnaryNotOnPathProducesCondition(t *testing.T) {
	c := newTestCompiler()
	c.declareFresh(&ast.Ident{Name: "flag"})
	out, _ := lowerExprOutput(t, c, &ast.UnaryOp{Op: "!", X: &ast.Ident{Name: "flag"}})
	if !out.IsCondition() {
		t.Fatalf("expected a condition output, got %#v", out)
	}
}
