package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func TestCompileConstantExampleFoldsToSingleLiteralPass(t *testing.T) {
	doc, err := Compile(ConstantExampleFunc(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var found bool
	for _, s := range doc.States {
		if s.Type == "Pass" && s.End && s.Result == 3.0 {
			found = true
		}
		if s.Parameters != nil {
			for k := range s.Parameters {
				if k != "" {
					t.Fatalf("constant expression unexpectedly emitted an intrinsic-bearing Parameters entry: %#v", s.Parameters)
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected a terminal Pass with Result 3, got %#v", doc.States)
	}
}

func TestCompileAddExampleUsesMathAdd(t *testing.T) {
	doc, err := Compile(AddExampleFunc(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var sawMathAdd bool
	for _, s := range doc.States {
		for _, v := range s.Parameters {
			if str, ok := v.(string); ok && containsSubstr(str, "States.MathAdd") {
				sawMathAdd = true
			}
		}
	}
	if !sawMathAdd {
		t.Fatalf("expected a States.MathAdd call for (a, b) => a + b, got %#v", doc.States)
	}
}

func containsSubstr(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestCompileEveryStateReachableFromStartAt(t *testing.T) {
	doc, err := Compile(AddExampleFunc(), nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := doc.States[doc.StartAt]; !ok {
		t.Fatalf("StartAt %q not in States", doc.StartAt)
	}
	validateNoDanglingRefs(t, doc)
}

func validateNoDanglingRefs(t *testing.T, doc *ASLDoc) {
	t.Helper()
	for name, s := range doc.States {
		check := func(next string) {
			if next == "" {
				return
			}
			if _, ok := doc.States[next]; !ok {
				t.Fatalf("state %q references undefined state %q", name, next)
			}
		}
		check(s.Next)
		check(s.Default)
		for _, ch := range s.Choices {
			check(ch.Next)
		}
		for _, ct := range s.Catch {
			check(ct.Next)
		}
	}
}

func TestCompileFilterCompilesToJSONPathPass(t *testing.T) {
	fn := &ast.Func{
		Name:   "filterExample",
		Params: []ast.Param{{Name: "xs"}},
		Body: []ast.Stmt{
			&ast.Return{Arg: &ast.Call{
				Callee: &ast.Member{Object: &ast.Ident{Name: "xs"}, Prop: "filter"},
				Args: []ast.Expr{&ast.Func{
					Params: []ast.Param{{Name: "x"}},
					Body: []ast.Stmt{
						&ast.Return{Arg: &ast.BinaryOp{Op: "===", Left: &ast.Ident{Name: "x"}, Right: &ast.Literal{Kind: ast.LitString, Value: "a"}}},
					},
				}},
			}},
		},
	}
	doc, err := Compile(fn, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var sawFilterPath bool
	for _, s := range doc.States {
		if s.InputPath != nil && containsSubstr(*s.InputPath, "[?(@") {
			sawFilterPath = true
		}
	}
	if !sawFilterPath {
		t.Fatalf("expected a JSON-Path filter InputPath, got %#v", doc.States)
	}
}

func TestCompileTryCatchReturnsCaughtMessage(t *testing.T) {
	fn := &ast.Func{
		Name: "tryExample",
		Body: []ast.Stmt{
			&ast.Try{
				Block: &ast.Block{Body: []ast.Stmt{
					&ast.Throw{Arg: &ast.New{Callee: &ast.Ident{Name: "Error"}, Args: []ast.Expr{&ast.Literal{Kind: ast.LitString, Value: "boom"}}}},
				}},
				CatchParam: &ast.Ident{Name: "e"},
				Catch: &ast.Block{Body: []ast.Stmt{
					&ast.Return{Arg: &ast.Member{Object: &ast.Ident{Name: "e"}, Prop: "message"}},
				}},
			},
		},
	}
	doc, err := Compile(fn, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	validateNoDanglingRefs(t, doc)

	var sawThrowPass, sawCatchReturn bool
	for _, s := range doc.States {
		if s.Type == "Pass" && s.Result != nil {
			if m, ok := s.Result.(map[string]interface{}); ok {
				if m["Error"] == "Error" {
					sawThrowPass = true
				}
			}
		}
		if s.End && s.InputPath != nil && containsSubstr(*s.InputPath, ".message") {
			sawCatchReturn = true
		}
	}
	if !sawThrowPass {
		t.Fatalf("expected the throw's Pass state carrying {Error: ...}, got %#v", doc.States)
	}
	if !sawCatchReturn {
		t.Fatalf("expected the catch body's return to read .message, got %#v", doc.States)
	}
}

func TestCompileTypeofDispatchesOnPresenceAndType(t *testing.T) {
	fn := &ast.Func{
		Name:   "typeofExample",
		Params: []ast.Param{{Name: "x"}},
		Body: []ast.Stmt{
			&ast.Return{Arg: &ast.UnaryOp{Op: "typeof", X: &ast.Ident{Name: "x"}}},
		},
	}
	doc, err := Compile(fn, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	var sawChoice bool
	for _, s := range doc.States {
		if s.Type == "Choice" {
			for _, ch := range s.Choices {
				if ch.IsString != nil || ch.IsBoolean != nil || ch.IsNumeric != nil || ch.IsPresent != nil {
					sawChoice = true
				}
			}
		}
	}
	if !sawChoice {
		t.Fatalf("expected a type-dispatching Choice state, got %#v", doc.States)
	}
}

func TestCompileRejectsMultiplyOnVariables(t *testing.T) {
	fn := &ast.Func{
		Name:   "mulExample",
		Params: []ast.Param{{Name: "a"}, {Name: "b"}},
		Body: []ast.Stmt{
			&ast.Return{Arg: &ast.BinaryOp{Op: "*", Left: &ast.Ident{Name: "a"}, Right: &ast.Ident{Name: "b"}}},
		},
	}
	_, err := Compile(fn, nil)
	if err == nil {
		t.Fatalf("expected Compile to reject variable multiplication")
	}
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != CodeNoVariableArithmetic {
		t.Fatalf("got %#v", err)
	}
}
