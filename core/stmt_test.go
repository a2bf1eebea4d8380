package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func TestLowerVarDeclBindsIdentifier(t *testing.T) {
	c := newTestCompiler()
	decl := &ast.VarDecl{
		Kind: "let",
		Decls: []ast.Declarator{
			{Target: &ast.Ident{Name: "x"}, Init: &ast.Literal{Kind: ast.LitNumber, Value: 5.0}},
		},
	}
	_, err := c.lowerVarDecl(decl)
	if err != nil {
		t.Fatalf("lowerVarDecl: %v", err)
	}
	out, err := c.identPath(&ast.Ident{Name: "x"})
	if err != nil || out.Path != "$.x" {
		t.Fatalf("got %+v, %v", out, err)
	}
}

func TestLowerIfWithoutElseHasFallthroughDefault(t *testing.T) {
	c := newTestCompiler()
	n := &ast.If{
		Test: &ast.Ident{Name: "flag"},
		Then: &ast.Block{Body: []ast.Stmt{&ast.ExprStmt{X: &ast.Literal{Kind: ast.LitNumber, Value: 1.0}}}},
	}
	c.declareFresh(&ast.Ident{Name: "flag"})

	sub, err := c.lowerIf(n)
	if err != nil {
		t.Fatalf("lowerIf: %v", err)
	}
	choice := sub.states[sub.startState].(*NodeState)
	if choice.Type != "Choice" || choice.Default == "" {
		t.Fatalf("expected a Choice with a non-empty Default, got %#v", choice)
	}
}

func TestLowerIfWithElseRoutesToElseBranch(t *testing.T) {
	c := newTestCompiler()
	n := &ast.If{
		Test: &ast.Ident{Name: "flag"},
		Then: &ast.Block{Body: []ast.Stmt{&ast.Return{Arg: &ast.Literal{Kind: ast.LitNumber, Value: 1.0}}}},
		Else: &ast.Block{Body: []ast.Stmt{&ast.Return{Arg: &ast.Literal{Kind: ast.LitNumber, Value: 2.0}}}},
	}
	c.declareFresh(&ast.Ident{Name: "flag"})

	sub, err := c.lowerIf(n)
	if err != nil {
		t.Fatalf("lowerIf: %v", err)
	}
	choice := sub.states[sub.startState].(*NodeState)
	if choice.Default == "" {
		t.Fatalf("expected Default to point at the else branch")
	}
}

func TestLowerForResolvesBreakAndContinue(t *testing.T) {
	c := newTestCompiler()
	forStmt := &ast.For{
		Body: &ast.Block{Body: []ast.Stmt{
			&ast.If{
				Test: &ast.Ident{Name: "flag"},
				Then: &ast.Block{Body: []ast.Stmt{&ast.Break{}}},
			},
			&ast.Continue{},
		}},
	}
	c.declareFresh(&ast.Ident{Name: "flag"})

	sub, err := c.lowerFor(forStmt)
	if err != nil {
		t.Fatalf("lowerFor: %v", err)
	}
	if hasUnresolvedReservedLabel(sub) {
		t.Fatalf("lowerFor left an unresolved reserved label: %#v", sub)
	}
}

func hasUnresolvedReservedLabel(sub *SubState) bool {
	for _, node := range sub.states {
		switch n := node.(type) {
		case *NodeState:
			if isReservedLabel(n.Next) || isReservedLabel(n.Default) {
				return true
			}
			for _, ct := range n.Catch {
				if isReservedLabel(ct.Next) {
					return true
				}
			}
		case *SubState:
			if hasUnresolvedReservedLabel(n) {
				return true
			}
		}
	}
	return false
}

func TestLowerReturnDefaultsResultPathToDollar(t *testing.T) {
	c := newTestCompiler()
	sub, err := c.lowerReturn(&ast.Return{Arg: &ast.Literal{Kind: ast.LitNumber, Value: 3.0}})
	if err != nil {
		t.Fatalf("lowerReturn: %v", err)
	}
	pass := sub.states[sub.startState].(*NodeState)
	if !pass.End {
		t.Fatalf("expected a terminal Pass, got %#v", pass)
	}
	if pass.ResultPath != nil {
		t.Fatalf("expected nil ResultPath (the $ default), got %v", *pass.ResultPath)
	}
	if pass.Result != 3.0 {
		t.Fatalf("expected Result 3.0, got %#v", pass.Result)
	}
}

func TestLowerThrowTerminalProducesFail(t *testing.T) {
	c := newTestCompiler()
	throw := &ast.Throw{Arg: &ast.New{
		Callee: &ast.Ident{Name: "Error"},
		Args:   []ast.Expr{&ast.Literal{Kind: ast.LitString, Value: "boom"}},
	}}
	sub, err := c.lowerThrow(throw)
	if err != nil {
		t.Fatalf("lowerThrow: %v", err)
	}
	fail := sub.states[sub.startState].(*NodeState)
	if fail.Type != "Fail" || fail.Error != "Error" {
		t.Fatalf("got %#v", fail)
	}
}

func TestLowerTryWithCatchResolvesCatchLabel(t *testing.T) {
	c := newTestCompiler()
	tryStmt := &ast.Try{
		Block: &ast.Block{Body: []ast.Stmt{
			&ast.Throw{Arg: &ast.New{Callee: &ast.Ident{Name: "Error"}, Args: []ast.Expr{&ast.Literal{Kind: ast.LitString, Value: "boom"}}}},
		}},
		CatchParam: &ast.Ident{Name: "e"},
		Catch: &ast.Block{Body: []ast.Stmt{
			&ast.Return{Arg: &ast.Member{Object: &ast.Ident{Name: "e"}, Prop: "message"}},
		}},
	}

	sub, err := c.lowerTry(tryStmt)
	if err != nil {
		t.Fatalf("lowerTry: %v", err)
	}
	if hasUnresolvedReservedLabel(sub) {
		t.Fatalf("lowerTry left an unresolved __catch label: %#v", sub)
	}
}

func TestLowerTryFinallyWithoutCatchDoesNotPushHandler(t *testing.T) {
	c := newTestCompiler()
	tryStmt := &ast.Try{
		Block:   &ast.Block{Body: []ast.Stmt{&ast.ExprStmt{X: &ast.Literal{Kind: ast.LitNumber, Value: 1.0}}}},
		Finally: &ast.Block{Body: []ast.Stmt{&ast.ExprStmt{X: &ast.Literal{Kind: ast.LitNumber, Value: 2.0}}}},
	}

	before := len(c.handlers)
	_, err := c.lowerTry(tryStmt)
	if err != nil {
		t.Fatalf("lowerTry: %v", err)
	}
	if len(c.handlers) != before {
		t.Fatalf("handler stack leaked: before %d, after %d", before, len(c.handlers))
	}
}
