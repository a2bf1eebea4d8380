package core

import "testing"

func TestJoinSubStatesWiresDeferredNext(t *testing.T) {
	a := newSubState("a", &NodeState{Type: "Pass", Next: deferredNext})
	b := newSubState("b", &NodeState{Type: "Pass", End: true})

	joined := joinSubStates(a, b)
	if joined.startState != "a" {
		t.Fatalf("startState = %q, want %q", joined.startState, "a")
	}
	got := joined.states["a"].(*NodeState)
	if got.Next != "b" {
		t.Fatalf("a.Next = %q, want %q", got.Next, "b")
	}
}

func TestJoinSubStatesSkipsPureOutputs(t *testing.T) {
	lit := LiteralOutput(3.0)
	a := pureOutput(lit)
	b := newSubState("b", &NodeState{Type: "Pass", Next: deferredNext})
	c := newSubState("c", &NodeState{Type: "Pass", End: true})

	joined := joinSubStates(a, b, c)
	if joined.startState != "b" {
		t.Fatalf("startState = %q, want %q", joined.startState, "b")
	}
	if joined.output == nil || joined.output.Value != 3.0 {
		t.Fatalf("expected final output to be carried through, got %#v", joined.output)
	}
}

func TestUpdateDeferredNextStatesDoesNotMutateOriginal(t *testing.T) {
	orig := newSubState("a", &NodeState{Type: "Pass", Next: deferredNext})
	updated := updateDeferredNextStates("exit", orig)

	if orig.states["a"].(*NodeState).Next != deferredNext {
		t.Fatalf("original sub-state was mutated")
	}
	if updated.states["a"].(*NodeState).Next != "exit" {
		t.Fatalf("updated.Next = %q, want %q", updated.states["a"].(*NodeState).Next, "exit")
	}
}

func TestResolveLabelRewritesNextDefaultAndCatch(t *testing.T) {
	sub := &SubState{
		startState: "body",
		states: map[string]subNode{
			"body": &NodeState{Type: "Pass", Next: LabelBreakNext},
			"choice": &NodeState{
				Type:    "Choice",
				Default: LabelBreakNext,
			},
			"task": &NodeState{
				Type:  "Task",
				Catch: []CatchRule{{ErrorEquals: []string{"States.ALL"}, Next: LabelCatch}},
			},
		},
	}

	resolved := resolveLabel(sub, LabelBreakNext, "exit")
	if resolved.states["body"].(*NodeState).Next != "exit" {
		t.Fatalf("Next not resolved")
	}
	if resolved.states["choice"].(*NodeState).Default != "exit" {
		t.Fatalf("Default not resolved")
	}
	if resolved.states["task"].(*NodeState).Catch[0].Next != LabelCatch {
		t.Fatalf("unrelated reserved label was rewritten")
	}
}

func TestToStatesFlattensNestedSubStates(t *testing.T) {
	inner := newSubState("inner", &NodeState{Type: "Pass", End: true})
	outer := &SubState{
		startState: "entry",
		states: map[string]subNode{
			"entry": inner,
		},
	}

	doc := toStates("entry", outer, newStateNames())
	if len(doc.States) != 1 {
		t.Fatalf("expected 1 flattened state, got %d", len(doc.States))
	}
	if _, ok := doc.States[doc.StartAt]; !ok {
		t.Fatalf("StartAt %q not present in States", doc.StartAt)
	}
}

func TestDotizePathsRewritesPlaceholders(t *testing.T) {
	in := map[string]interface{}{
		"plain": "x",
		"path":  map[string]interface{}{"$path": "$.a"},
		"nested": map[string]interface{}{
			"inner": map[string]interface{}{"$path": "$.b"},
		},
	}
	out := dotizePaths(in)
	if out["plain"] != "x" {
		t.Fatalf("plain value changed: %#v", out["plain"])
	}
	if out["path.$"] != "$.a" {
		t.Fatalf("path not dotized: %#v", out)
	}
	nested, ok := out["nested"].(map[string]interface{})
	if !ok || nested["inner.$"] != "$.b" {
		t.Fatalf("nested path not dotized: %#v", out["nested"])
	}
}

func TestPassWithInputPathVsLiteral(t *testing.T) {
	state := &NodeState{Type: "Pass"}

	got := passWithInput(state, PathOutput("$.x"))
	if got.InputPath == nil || *got.InputPath != "$.x" {
		t.Fatalf("InputPath not set: %#v", got)
	}

	got = passWithInput(state, LiteralOutput(42.0))
	if got.Result != 42.0 {
		t.Fatalf("Result not set: %#v", got)
	}
}
