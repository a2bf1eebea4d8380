package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func TestQualifiedCallNameJoinsMemberChain(t *testing.T) {
	callee := &ast.Member{
		Object: &ast.Member{Object: &ast.Ident{Name: "ddb"}, Prop: "table"},
		Prop:   "getItem",
	}
	name, ok := qualifiedCallName(callee)
	if !ok || name != "ddb.table.getItem" {
		t.Fatalf("got %q, %v, want %q, true", name, ok, "ddb.table.getItem")
	}
}

func TestQualifiedCallNameRejectsComputedMember(t *testing.T) {
	callee := &ast.Member{Object: &ast.Ident{Name: "ddb"}, Computed: true, Index: &ast.Literal{Kind: ast.LitString, Value: "getItem"}}
	_, ok := qualifiedCallName(callee)
	if ok {
		t.Fatalf("expected computed member access to be rejected")
	}
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	want := &TaskIntegration{QualifiedName: "ddb.getItem", Resource: "arn:aws:states:::dynamodb:getItem"}
	r.Register("ddb.getItem", want)

	got, ok := r.Resolve(&ast.Member{Object: &ast.Ident{Name: "ddb"}, Prop: "getItem"})
	if !ok || got != want {
		t.Fatalf("Resolve = %v, %v, want %v, true", got, ok, want)
	}

	_, ok = r.Resolve(&ast.Ident{Name: "nope"})
	if ok {
		t.Fatalf("expected unresolved callee to report false")
	}
}

func TestAssignIntrinsicParamPathVsLiteral(t *testing.T) {
	params := map[string]interface{}{}
	assignIntrinsicParam(params, "Id", PathOutput("$.id"))
	if params["Id.$"] != "$.id" {
		t.Fatalf("path param not suffixed: %#v", params)
	}

	assignIntrinsicParam(params, "Count", LiteralOutput(3.0))
	if params["Count"] != 3.0 {
		t.Fatalf("literal param not set: %#v", params)
	}
}

func TestTaskIntegrationLowerRejectsTooManyArgs(t *testing.T) {
	c := newTestCompiler()
	ti := &TaskIntegration{QualifiedName: "svc.call", Resource: "arn:aws:states:::lambda:invoke", ParamNames: []string{"a"}}
	call := &ast.Call{Callee: &ast.Ident{Name: "svc.call"}}

	_, _, err := ti.Lower(c, call, []Output{PathOutput("$.a"), PathOutput("$.b")})
	if err == nil {
		t.Fatalf("expected error when call supplies more args than ParamNames")
	}
}

func TestTaskIntegrationLowerRejectsConditionArg(t *testing.T) {
	c := newTestCompiler()
	ti := &TaskIntegration{QualifiedName: "svc.call", Resource: "arn:aws:states:::lambda:invoke", ParamNames: []string{"a"}}
	call := &ast.Call{Callee: &ast.Ident{Name: "svc.call"}}

	_, _, err := ti.Lower(c, call, []Output{ConditionOutput(condIsPresent("$.x", true))})
	if err == nil {
		t.Fatalf("expected error when an unmaterialized condition is passed as an argument")
	}
}

func TestTaskIntegrationLowerBuildsTask(t *testing.T) {
	c := newTestCompiler()
	ti := &TaskIntegration{
		QualifiedName: "ddb.getItem",
		Resource:      "arn:aws:states:::dynamodb:getItem",
		ParamNames:    []string{"Key"},
	}
	call := &ast.Call{Callee: &ast.Ident{Name: "ddb.getItem"}}

	sub, out, err := ti.Lower(c, call, []Output{PathOutput("$.key")})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if !out.IsPath() {
		t.Fatalf("expected path output, got %#v", out)
	}
	task := sub.states[sub.startState].(*NodeState)
	if task.Type != "Task" || task.Resource != ti.Resource {
		t.Fatalf("unexpected task state: %#v", task)
	}
	if task.Parameters["Key.$"] != "$.key" {
		t.Fatalf("Parameters not built from ParamNames: %#v", task.Parameters)
	}
}
