package core

import "github.com/aslcompile/aslc/ast"

// deferredNext is the sentinel Next value meaning "the successor is
// filled in by whoever embeds this sub-state". It is never a legal
// state name (ASL state names can't contain NUL) so it can never
// collide with a real label.
const deferredNext = "\x00deferred"

// Reserved labels bubble a transition up through enclosing sub-state
// walls until a loop or try defines them.
const (
	LabelContinueNext = "__ContinueNext"
	LabelBreakNext    = "__BreakNext"
	LabelCatch        = "__catch"
	LabelReturnNext   = "__ReturnNext"
)

// NodeState is one ASL state object, tagged by Type. Fields follow
// the ASL JSON shape directly; Next carries deferredNext until
// rewired by joinSubStates/updateDeferredNextStates.
type NodeState struct {
	Type string `json:"Type"`

	InputPath  *string                `json:"InputPath,omitempty"`
	OutputPath *string                `json:"OutputPath,omitempty"`
	ResultPath *string                `json:"ResultPath,omitempty"`
	Parameters map[string]interface{} `json:"Parameters,omitempty"`
	Result     interface{}            `json:"Result,omitempty"`

	Resource       string   `json:"Resource,omitempty"`
	TimeoutSeconds int      `json:"TimeoutSeconds,omitempty"`
	Seconds        *int     `json:"Seconds,omitempty"`
	SecondsPath    string   `json:"SecondsPath,omitempty"`
	ItemsPath      string   `json:"ItemsPath,omitempty"`
	Iterator       *ASLDoc  `json:"Iterator,omitempty"`
	Branches       []ASLDoc `json:"Branches,omitempty"`

	Choices []ChoiceRule `json:"Choices,omitempty"`
	Default string       `json:"Default,omitempty"`

	Next string `json:"Next,omitempty"`
	End  bool   `json:"End,omitempty"`

	Retry []RetryRule `json:"Retry,omitempty"`
	Catch []CatchRule `json:"Catch,omitempty"`

	Error string `json:"Error,omitempty"`
	Cause string `json:"Cause,omitempty"`

	Comment string `json:"Comment,omitempty"`

	// source is an optional back-reference to the originating AST
	// node, kept for naming and diagnostics only; never marshaled.
	source ast.Node
}

// ChoiceRule is one branch of a Choice state.
type ChoiceRule struct {
	*Condition
	Next string `json:"Next"`
}

// RetryRule is one element of a state's Retry array.
type RetryRule struct {
	ErrorEquals     []string `json:"ErrorEquals"`
	IntervalSeconds int      `json:"IntervalSeconds,omitempty"`
	MaxAttempts     int      `json:"MaxAttempts,omitempty"`
	BackoffRate     float64  `json:"BackoffRate,omitempty"`
}

// CatchRule is one element of a state's Catch array.
type CatchRule struct {
	ErrorEquals []string `json:"ErrorEquals"`
	Next        string   `json:"Next,omitempty"`
	ResultPath  *string  `json:"ResultPath,omitempty"`
}

// ASLDoc is the top-level compiled output: {"StartAt": ..., "States": ...}.
type ASLDoc struct {
	StartAt string                `json:"StartAt"`
	States  map[string]*NodeState `json:"States"`
}

// SubState is a named sub-graph: one startState label plus a map from
// local label to either a *NodeState or a *SubState. Sub-states
// compose recursively; every non-terminal NodeState inside is either
// locally resolvable, deferred, End, or a reserved label.
type SubState struct {
	startState string
	states     map[string]subNode

	// output, when set, is the value produced by the statement or
	// expression this sub-state lowers. Most statement-level
	// sub-states leave it unset.
	output *Output
}

// subNode is implemented by *NodeState and *SubState.
type subNode interface {
	isSubNode()
}

func (*NodeState) isSubNode() {}
func (*SubState) isSubNode()  {}

// pureOutput wraps an Output that required no states to compute --
// a constant, or a path that was already in scope.
func pureOutput(o Output) *SubState {
	return &SubState{states: map[string]subNode{}, output: &o}
}

// newSubState builds a one-state sub-state wrapping a single NodeState.
func newSubState(label string, n *NodeState) *SubState {
	return &SubState{
		startState: label,
		states:     map[string]subNode{label: n},
	}
}

// withOutput returns a copy of s carrying output. Mirrors the
// teacher's Copy()-before-mutate discipline: callers must not mutate
// an already-embedded sub-state in place.
func (s *SubState) withOutput(o Output) *SubState {
	c := s.copy()
	c.output = &o
	return c
}

// copy performs a shallow structural copy of the sub-state: a fresh
// states map with the same entries. It does not deep-copy the
// NodeState values themselves, since those are never mutated after
// construction -- only rewired via updateDeferredNextStates, which
// itself returns new values.
func (s *SubState) copy() *SubState {
	states := make(map[string]subNode, len(s.states))
	for k, v := range s.states {
		states[k] = v
	}
	return &SubState{startState: s.startState, states: states, output: s.output}
}

// merge folds other's states into s (labels must be disjoint; callers
// are responsible for uniquifying before calling merge, which they
// get for free since sub-state labels are local to each lowering
// call).
func (s *SubState) merge(other *SubState) {
	for k, v := range other.states {
		s.states[k] = v
	}
}

// joinSubStates concatenates an ordered sequence of sub-states into
// one: each sub-state's deferred Next is rewired to the following
// sub-state's startState, in order. The final sub-state's deferred
// Next is left deferred for the caller to fill in. The joined output
// is the last output set among subs.
func joinSubStates(subs ...*SubState) *SubState {
	live := make([]*SubState, 0, len(subs))
	for _, s := range subs {
		if s != nil {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return nil
	}
	if len(live) == 1 {
		return live[0]
	}

	startState := ""
	for _, s := range live {
		if len(s.states) > 0 {
			startState = s.startState
			break
		}
	}

	joined := &SubState{startState: startState, states: map[string]subNode{}}
	for i, s := range live {
		if i+1 < len(live) {
			next := nextNonEmptyStart(live[i+1:])
			if next != "" {
				s = updateDeferredNextStates(next, s)
			}
		}
		joined.merge(s)
	}
	for i := len(live) - 1; i >= 0; i-- {
		if live[i].output != nil {
			joined.output = live[i].output
			break
		}
	}
	return joined
}

// nextNonEmptyStart finds the startState of the first sub-state in
// subs that actually has states to transition into; a pure
// (stateless) output contributes no wiring target.
func nextNonEmptyStart(subs []*SubState) string {
	for _, s := range subs {
		if len(s.states) > 0 {
			return s.startState
		}
	}
	return ""
}

// updateDeferredNextStates returns a copy of sub with every sentinel
// Next replaced by target. It never mutates sub.
func updateDeferredNextStates(target string, sub *SubState) *SubState {
	out := &SubState{startState: sub.startState, states: make(map[string]subNode, len(sub.states)), output: sub.output}
	for label, node := range sub.states {
		switch n := node.(type) {
		case *NodeState:
			out.states[label] = rewireDeferred(n, target)
		case *SubState:
			out.states[label] = updateDeferredNextStates(target, n)
		}
	}
	return out
}

// resolveLabel returns a copy of sub with every occurrence of the
// reserved label `from` (in Next, Default, or a Catch rule's Next)
// rewritten to target. Used by loop lowering to resolve
// LabelBreakNext/LabelContinueNext to its own check/exit states, and
// by try lowering to resolve LabelCatch to its catch block's start --
// the same "bubble up through sub-state walls until the nearest
// enclosing construct defines it" mechanism for all three reserved
// labels.
func resolveLabel(sub *SubState, from, target string) *SubState {
	out := &SubState{startState: sub.startState, states: make(map[string]subNode, len(sub.states)), output: sub.output}
	for label, node := range sub.states {
		switch n := node.(type) {
		case *NodeState:
			out.states[label] = rewireLabel(n, from, target)
		case *SubState:
			out.states[label] = resolveLabel(n, from, target)
		}
	}
	return out
}

func rewireLabel(n *NodeState, from, target string) *NodeState {
	changed := false
	c := *n
	if c.Next == from {
		c.Next = target
		changed = true
	}
	if c.Default == from {
		c.Default = target
		changed = true
	}
	if len(c.Catch) > 0 {
		catches := make([]CatchRule, len(c.Catch))
		for i, ct := range c.Catch {
			if ct.Next == from {
				ct.Next = target
				changed = true
			}
			catches[i] = ct
		}
		if changed {
			c.Catch = catches
		}
	}
	if changed {
		return &c
	}
	return n
}

func rewireDeferred(n *NodeState, target string) *NodeState {
	if n.Next != deferredNext {
		return n
	}
	c := *n
	c.Next = target
	return &c
}

// toStates flattens sub, rooted at startName, into a finalized
// {StartAt, States} document. Every nested sub-state is assigned
// fresh unique names via alloc; every local-label reference in Next,
// Default, and Catch[].Next is rewritten to the allocated global
// name.
func toStates(startName string, sub *SubState, alloc *stateNames) *ASLDoc {
	doc := &ASLDoc{States: map[string]*NodeState{}}

	// names maps each local label reachable from sub to its global
	// state name. Reserved labels are never renamed: they are
	// resolved (replaced by a concrete Next) before flattening ever
	// sees them, by the statement lowerer that owns the enclosing
	// loop or try.
	names := map[string]string{}
	flattenNames(sub, alloc, names)
	doc.StartAt = names[sub.startState]

	flattenInto(sub, names, doc.States)
	return doc
}

func isReservedLabel(label string) bool {
	switch label {
	case LabelContinueNext, LabelBreakNext, LabelCatch, LabelReturnNext:
		return true
	default:
		return false
	}
}

// flattenNames walks sub assigning every non-reserved local label a
// global name, recursing into nested sub-states first so inner labels
// are named too (their nodes get merged into the same flat map).
func flattenNames(sub *SubState, alloc *stateNames, names map[string]string) {
	for label, node := range sub.states {
		if isReservedLabel(label) {
			continue
		}
		if _, ok := names[label]; ok {
			continue
		}
		if s, isSub := node.(*SubState); isSub {
			flattenNames(s, alloc, names)
			// the nested sub-state's own startState already got a
			// name during the recursive call; alias this outer
			// label to it.
			names[label] = names[s.startState]
			continue
		}
		names[label] = alloc.Alloc(label)
	}
}

func flattenInto(sub *SubState, names map[string]string, out map[string]*NodeState) {
	for label, node := range sub.states {
		switch n := node.(type) {
		case *NodeState:
			if isReservedLabel(label) {
				continue
			}
			out[names[label]] = rewriteRefs(n, names)
		case *SubState:
			flattenInto(n, names, out)
		}
	}
}

func rewriteRefs(n *NodeState, names map[string]string) *NodeState {
	c := *n
	if c.Next != "" && c.Next != deferredNext {
		if !isReservedLabel(c.Next) {
			if g, ok := names[c.Next]; ok {
				c.Next = g
			}
		}
	}
	if c.Default != "" {
		if g, ok := names[c.Default]; ok {
			c.Default = g
		}
	}
	if len(c.Choices) > 0 {
		choices := make([]ChoiceRule, len(c.Choices))
		for i, ch := range c.Choices {
			ch2 := ch
			if g, ok := names[ch2.Next]; ok {
				ch2.Next = g
			}
			choices[i] = ch2
		}
		c.Choices = choices
	}
	if len(c.Catch) > 0 {
		catches := make([]CatchRule, len(c.Catch))
		for i, ct := range c.Catch {
			ct2 := ct
			if !isReservedLabel(ct2.Next) {
				if g, ok := names[ct2.Next]; ok {
					ct2.Next = g
				}
			}
			catches[i] = ct2
		}
		c.Catch = catches
	}
	return &c
}

// getAslStateOutput extracts the Output carried by a lowered
// sub-state, if any.
func getAslStateOutput(s *SubState) (Output, bool) {
	if s == nil || s.output == nil {
		return Output{}, false
	}
	return *s.output, true
}

// passWithInput fills a Pass state's InputPath (for a path output) or
// Result/Parameters (for a literal output), preserving the
// ContainsPath bit: a literal with embedded paths must go through
// Parameters with ".$"-suffixed keys rather than a bare Result, since
// Result is taken completely literally by ASL.
func passWithInput(state *NodeState, output Output) *NodeState {
	c := *state
	switch {
	case output.IsPath():
		c.InputPath = &output.Path
	case output.IsLiteral() && !output.ContainsPath:
		c.Result = output.Value
	case output.IsLiteral() && output.ContainsPath:
		c.Parameters = dotizePaths(output.Value)
	case output.IsCondition():
		// callers materialize conditions via a Choice before
		// reaching here; if one slips through, fall back to a
		// literal true/false is wrong, so this is a lowerer bug.
		panic("passWithInput: unmaterialized condition output")
	}
	return &c
}

// dotizePaths walks a literal structure that embeds Output path
// placeholders (represented as map[string]interface{}{"$path": p})
// and rewrites every object key that holds one into the ASL
// convention of a ".$"-suffixed key whose value is the bare path
// string.
func dotizePaths(v interface{}) map[string]interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return map[string]interface{}{"value.$": "$"}
	}
	out := make(map[string]interface{}, len(m))
	for k, val := range m {
		if p, isPath := asPathPlaceholder(val); isPath {
			out[k+".$"] = p
		} else if nested, isMap := val.(map[string]interface{}); isMap {
			out[k] = dotizePaths(nested)
		} else {
			out[k] = val
		}
	}
	return out
}

func asPathPlaceholder(v interface{}) (string, bool) {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) != 1 {
		return "", false
	}
	p, ok := m["$path"].(string)
	return p, ok
}
