package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func TestNormalizeFuncAppendsTerminalReturn(t *testing.T) {
	fn := &ast.Func{
		Name: "f",
		Body: []ast.Stmt{
			&ast.ExprStmt{X: &ast.Literal{Kind: ast.LitNumber, Value: 1.0}},
		},
	}
	out, err := normalizeFunc(fn)
	if err != nil {
		t.Fatalf("normalizeFunc: %v", err)
	}
	if !isTerminal(out.Body) {
		t.Fatalf("normalized body is not terminal: %#v", out.Body)
	}
	if _, ok := out.Body[len(out.Body)-1].(*ast.Return); !ok {
		t.Fatalf("expected appended *ast.Return, got %T", out.Body[len(out.Body)-1])
	}
}

func TestNormalizeFuncLeavesExistingTerminalAlone(t *testing.T) {
	fn := &ast.Func{
		Name: "f",
		Body: []ast.Stmt{&ast.Return{Arg: &ast.Literal{Kind: ast.LitNumber, Value: 1.0}}},
	}
	out, err := normalizeFunc(fn)
	if err != nil {
		t.Fatalf("normalizeFunc: %v", err)
	}
	if len(out.Body) != 1 {
		t.Fatalf("expected no statement appended, got %d statements", len(out.Body))
	}
}

func TestIsTerminalIfRequiresBothBranches(t *testing.T) {
	withoutElse := &ast.If{
		Test: &ast.Literal{Kind: ast.LitBool, Value: true},
		Then: &ast.Block{Body: []ast.Stmt{&ast.Return{}}},
	}
	if isTerminal([]ast.Stmt{withoutElse}) {
		t.Fatalf("if with no else must not be terminal")
	}

	withElse := &ast.If{
		Test: &ast.Literal{Kind: ast.LitBool, Value: true},
		Then: &ast.Block{Body: []ast.Stmt{&ast.Return{}}},
		Else: &ast.Block{Body: []ast.Stmt{&ast.Throw{Arg: &ast.Literal{Kind: ast.LitString, Value: "x"}}}},
	}
	if !isTerminal([]ast.Stmt{withElse}) {
		t.Fatalf("if/else with terminal branches must be terminal")
	}
}

func TestIsTerminalTryFinallyOverridesCatch(t *testing.T) {
	tryStmt := &ast.Try{
		Block:   &ast.Block{Body: []ast.Stmt{&ast.ExprStmt{X: &ast.Literal{Kind: ast.LitNumber, Value: 1.0}}}},
		Finally: &ast.Block{Body: []ast.Stmt{&ast.Return{}}},
	}
	if !isTerminal([]ast.Stmt{tryStmt}) {
		t.Fatalf("finally with a terminal body must make the whole try terminal")
	}
}

func TestIsTerminalEmptyBodyIsFalse(t *testing.T) {
	if isTerminal(nil) {
		t.Fatalf("empty body must not be terminal")
	}
}
