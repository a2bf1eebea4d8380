package core

import (
	"strconv"

	"github.com/aslcompile/aslc/ast"
)

// bindPattern lowers a binding pattern against an already-computed
// output (C8). It returns the sub-state of Pass states that perform
// the assignment(s); callers join it after the value's own states.
func (c *Compiler) bindPattern(p ast.Pattern, value Output) (*SubState, error) {
	switch pat := p.(type) {
	case *ast.Ident:
		name := c.declareFresh(pat)
		path := "$." + name
		pass := passWithInput(&NodeState{Type: "Pass", ResultPath: &path, Next: deferredNext}, value)
		label := c.states.Alloc("bind " + pat.Name)
		return newSubState(label, pass), nil
	case *ast.ArrayPattern:
		return c.bindArrayPattern(pat, value)
	case *ast.ObjectPattern:
		return c.bindObjectPattern(pat, value)
	default:
		return nil, errf(CodeUnsupportedFeature, p.SourceSpan(), "unsupported binding pattern")
	}
}

func (c *Compiler) bindArrayPattern(pat *ast.ArrayPattern, value Output) (*SubState, error) {
	if !value.IsPath() {
		return nil, errf(CodeInvalidInput, pat.Span, "array destructuring requires a path value")
	}
	var subs []*SubState
	for i, el := range pat.Elements {
		if el == nil {
			continue
		}
		elemOut := PathOutput(value.Path + "[" + strconv.Itoa(i) + "]")
		target := elemOut
		var defaultSub *SubState
		if el.Default != nil {
			out, sub, err := c.lowerDefault(elemOut, el.Default)
			if err != nil {
				return nil, err
			}
			target = out
			defaultSub = sub
		}
		s, err := c.bindPattern(el.Target, target)
		if err != nil {
			return nil, err
		}
		if defaultSub != nil {
			s = joinSubStates(defaultSub, s)
		}
		subs = append(subs, s)
	}
	if pat.Rest != nil {
		restOut := PathOutput(value.Path + "[" + strconv.Itoa(len(pat.Elements)) + ":]")
		s, err := c.bindPattern(pat.Rest, restOut)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return joinSubStates(subs...), nil
}

func (c *Compiler) bindObjectPattern(pat *ast.ObjectPattern, value Output) (*SubState, error) {
	if !value.IsPath() {
		return nil, errf(CodeInvalidInput, pat.Span, "object destructuring requires a path value")
	}
	var subs []*SubState
	for _, prop := range pat.Props {
		propOut := PathOutput(value.Path + "." + prop.Key)
		target := propOut
		var defaultSub *SubState
		if prop.Default != nil {
			out, sub, err := c.lowerDefault(propOut, prop.Default)
			if err != nil {
				return nil, err
			}
			target = out
			defaultSub = sub
		}
		s, err := c.bindPattern(prop.Target, target)
		if err != nil {
			return nil, err
		}
		if defaultSub != nil {
			s = joinSubStates(defaultSub, s)
		}
		subs = append(subs, s)
	}
	return joinSubStates(subs...), nil
}

// lowerDefault implements `= expr` in a binding pattern: check
// IsPresent on value; when absent, lower expr and use its output
// instead.
func (c *Compiler) lowerDefault(value Output, def ast.Expr) (Output, *SubState, error) {
	exprSub, err := c.lowerExpr(def)
	if err != nil {
		return Output{}, nil, err
	}
	exprOut, _ := getAslStateOutput(exprSub)

	slot := c.freshHeap()
	presentLabel := c.states.Alloc("default present")
	absentLabel := c.states.Alloc("default absent")
	doneLabel := c.states.Alloc("default done")
	dispatchLabel := c.states.Alloc("default dispatch")

	presentPass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: doneLabel}, value)
	absentWrite := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, exprOut)
	absentSub := joinSubStates(exprSub, newSubState(absentLabel+" write", absentWrite))
	absentSub = updateDeferredNextStates(doneLabel, absentSub)

	dispatch := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: condIsPresent(value.Path, true), Next: presentLabel}},
		Default: absentLabel,
	}

	whole := &SubState{
		startState: dispatchLabel,
		states: map[string]subNode{
			dispatchLabel: dispatch,
			presentLabel:  presentPass,
			absentLabel:   absentSub,
		},
	}
	return PathOutput(slot), whole, nil
}
