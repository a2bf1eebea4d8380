package core

import "testing"

func TestResolveThrowTerminalWithNoHandler(t *testing.T) {
	c := newTestCompiler()
	route := c.resolveThrow()
	if !route.terminal {
		t.Fatalf("expected terminal route with empty handler stack, got %#v", route)
	}
}

func TestResolveThrowUsesInnermostHandler(t *testing.T) {
	c := newTestCompiler()
	c.pushHandler(handlerFrame{catchLabel: "outer catch", resultPath: "$.outer"})
	c.pushHandler(handlerFrame{catchLabel: "inner catch", resultPath: "$.inner"})

	route := c.resolveThrow()
	if route.terminal {
		t.Fatalf("expected non-terminal route")
	}
	if route.catchLabel != "inner catch" || route.resultPath != "$.inner" {
		t.Fatalf("got %#v, want innermost handler", route)
	}

	c.popHandler()
	route = c.resolveThrow()
	if route.catchLabel != "outer catch" {
		t.Fatalf("after pop, got %#v, want outer handler", route)
	}
}

func TestApplyResultPathNilVsSet(t *testing.T) {
	n := &NodeState{Type: "Pass"}
	errorRoute{resultPath: ""}.applyResultPath(n)
	if n.ResultPath != nil {
		t.Fatalf("expected nil ResultPath, got %v", n.ResultPath)
	}

	errorRoute{resultPath: "$.err"}.applyResultPath(n)
	if n.ResultPath == nil || *n.ResultPath != "$.err" {
		t.Fatalf("expected $.err, got %v", n.ResultPath)
	}
}
