package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func TestIsArrayMethodName(t *testing.T) {
	for _, name := range []string{"map", "forEach", "filter", "includes", "slice", "join", "split"} {
		if !isArrayMethodName(name) {
			t.Fatalf("%q should be a recognized array method", name)
		}
	}
	if isArrayMethodName("reduce") {
		t.Fatalf("reduce should not be recognized")
	}
}

func TestTryJsonPathFilterRecognizesMemberComparison(t *testing.T) {
	fn := &ast.Func{
		Params: []ast.Param{{Name: "item"}},
		Body: []ast.Stmt{
			&ast.Return{Arg: &ast.BinaryOp{
				Op:    "==",
				Left:  &ast.Member{Object: &ast.Ident{Name: "item"}, Prop: "status"},
				Right: &ast.Literal{Kind: ast.LitString, Value: "ok"},
			}},
		},
	}
	expr, ok := tryJsonPathFilter(PathOutput("$.items"), fn)
	if !ok {
		t.Fatalf("expected a recognized JSON-Path filter")
	}
	want := "$.items[?(@.status == 'ok')]"
	if expr != want {
		t.Fatalf("got %q, want %q", expr, want)
	}
}

func TestTryJsonPathFilterRejectsNonLiteralRHS(t *testing.T) {
	fn := &ast.Func{
		Params: []ast.Param{{Name: "item"}},
		Body: []ast.Stmt{
			&ast.Return{Arg: &ast.BinaryOp{
				Op:    "==",
				Left:  &ast.Member{Object: &ast.Ident{Name: "item"}, Prop: "status"},
				Right: &ast.Ident{Name: "other"},
			}},
		},
	}
	_, ok := tryJsonPathFilter(PathOutput("$.items"), fn)
	if ok {
		t.Fatalf("expected fallback to the iteration skeleton for a non-literal comparison")
	}
}

func TestAsParamMember(t *testing.T) {
	field, ok := asParamMember(&ast.Member{Object: &ast.Ident{Name: "x"}, Prop: "status"}, "x")
	if !ok || field != ".status" {
		t.Fatalf("got %q, %v, want %q, true", field, ok, ".status")
	}

	bare, ok := asParamMember(&ast.Ident{Name: "x"}, "x")
	if !ok || bare != "" {
		t.Fatalf("bare param reference should report ok with empty field, got %q, %v", bare, ok)
	}

	_, ok = asParamMember(&ast.Ident{Name: "y"}, "x")
	if ok {
		t.Fatalf("unrelated identifier should not match")
	}
}

func TestLowerIncludesBuildsArrayContainsCall(t *testing.T) {
	c := newTestCompiler()
	call := &ast.Call{Args: []ast.Expr{&ast.Literal{Kind: ast.LitNumber, Value: 2.0}}}

	sub, err := c.lowerIncludes(pureOutput(PathOutput("$.arr")), PathOutput("$.arr"), call)
	if err != nil {
		t.Fatalf("lowerIncludes: %v", err)
	}
	out, ok := getAslStateOutput(sub)
	if !ok || !out.IsPath() {
		t.Fatalf("expected a path output, got %#v", out)
	}
}

func TestLowerSliceRequiresPath(t *testing.T) {
	c := newTestCompiler()
	call := &ast.Call{}

	_, err := c.lowerSlice(pureOutput(LiteralOutput(1.0)), LiteralOutput(1.0), call)
	if err == nil {
		t.Fatalf("expected error: slice on a non-path base")
	}
}
