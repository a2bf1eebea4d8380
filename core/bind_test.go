package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func newTestCompiler() *Compiler {
	return &Compiler{
		opts:   &CompileOptions{},
		states: newStateNames(),
		vars:   newVarNames(),
		heap:   &heapSlots{},
		scope:  newScope(nil),
	}
}

func TestBindPatternIdent(t *testing.T) {
	c := newTestCompiler()
	id := &ast.Ident{Name: "x"}

	sub, err := c.bindPattern(id, PathOutput("$.a"))
	if err != nil {
		t.Fatalf("bindPattern: %v", err)
	}
	pass := sub.states[sub.startState].(*NodeState)
	if pass.ResultPath == nil || *pass.ResultPath != "$.x" {
		t.Fatalf("ResultPath = %v, want $.x", pass.ResultPath)
	}
	if pass.InputPath == nil || *pass.InputPath != "$.a" {
		t.Fatalf("InputPath = %v, want $.a", pass.InputPath)
	}

	got, err := c.identPath(&ast.Ident{Name: "x"})
	if err != nil {
		t.Fatalf("identPath: %v", err)
	}
	if got.Path != "$.x" {
		t.Fatalf("identPath = %q, want $.x", got.Path)
	}
}

func TestBindArrayPatternRequiresPath(t *testing.T) {
	c := newTestCompiler()
	pat := &ast.ArrayPattern{Elements: []*ast.PatternElement{{Target: &ast.Ident{Name: "x"}}}}

	_, err := c.bindArrayPattern(pat, LiteralOutput(3.0))
	if err == nil {
		t.Fatalf("expected error for non-path array destructuring source")
	}
}

func TestBindArrayPatternElementsAndRest(t *testing.T) {
	c := newTestCompiler()
	pat := &ast.ArrayPattern{
		Elements: []*ast.PatternElement{
			{Target: &ast.Ident{Name: "first"}},
			nil,
		},
		Rest: &ast.Ident{Name: "tail"},
	}

	_, err := c.bindArrayPattern(pat, PathOutput("$.arr"))
	if err != nil {
		t.Fatalf("bindArrayPattern: %v", err)
	}

	firstPath, err := c.identPath(&ast.Ident{Name: "first"})
	if err != nil || firstPath.Path != "$.first" {
		t.Fatalf("first path = %+v, err %v", firstPath, err)
	}
	tailPath, err := c.identPath(&ast.Ident{Name: "tail"})
	if err != nil || tailPath.Path != "$.tail" {
		t.Fatalf("tail path = %+v, err %v", tailPath, err)
	}
}

func TestBindObjectPatternRequiresPath(t *testing.T) {
	c := newTestCompiler()
	pat := &ast.ObjectPattern{Props: []ast.ObjectPatternProp{{Key: "a", Target: &ast.Ident{Name: "a"}}}}

	_, err := c.bindObjectPattern(pat, LiteralOutput(map[string]interface{}{}))
	if err == nil {
		t.Fatalf("expected error for non-path object destructuring source")
	}
}
