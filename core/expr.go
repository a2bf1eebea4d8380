package core

import (
	"strconv"

	"github.com/aslcompile/aslc/ast"
)

// lowerExpr is the central recursive routine (C6). It returns a
// sub-state whose states (if any) must run before its output can be
// read; a pure constant or already-resolved path needs no states at
// all, per pureOutput.
func (c *Compiler) lowerExpr(e ast.Expr) (*SubState, error) {
	switch n := e.(type) {
	case *ast.Literal:
		return c.lowerLiteral(n)
	case *ast.Ident:
		out, err := c.identPath(n)
		if err != nil {
			return nil, err
		}
		return pureOutput(out), nil
	case *ast.ArrayLit:
		return c.lowerArrayLit(n)
	case *ast.ObjectLit:
		return c.lowerObjectLit(n)
	case *ast.TemplateLit:
		return c.lowerTemplateLit(n)
	case *ast.Member:
		return c.lowerMember(n)
	case *ast.UnaryOp:
		return c.lowerUnary(n)
	case *ast.UpdateOp:
		return c.lowerUpdate(n)
	case *ast.BinaryOp:
		return c.lowerBinary(n)
	case *ast.Conditional:
		return c.lowerConditional(n)
	case *ast.Assign:
		return c.lowerAssign(n)
	case *ast.Call:
		return c.lowerCall(n)
	case *ast.New:
		return c.lowerNew(n)
	case *ast.Await:
		return c.lowerExpr(n.X)
	default:
		return nil, errf(CodeUnsupportedFeature, e.SourceSpan(), "unsupported expression")
	}
}

func (c *Compiler) lowerLiteral(n *ast.Literal) (*SubState, error) {
	switch n.Kind {
	case ast.LitNull:
		// ASL has no constant-literal null; route through the
		// context slot reserved for it.
		return pureOutput(PathOutput("$.fnl_context.null")), nil
	case ast.LitUndefined:
		return nil, errf(CodeUndefinedNotSupported, n.Span, "undefined is not representable in Step Functions")
	default:
		return pureOutput(LiteralOutput(n.Value)), nil
	}
}

// lowerList lowers a slice of expressions left-to-right, threading
// states in source order (evalContext design note), and returns the
// combined sub-state plus each element's Output.
func (c *Compiler) lowerList(exprs []ast.Expr) (*SubState, []Output, error) {
	subs := make([]*SubState, len(exprs))
	outs := make([]Output, len(exprs))
	for i, e := range exprs {
		s, err := c.lowerExpr(e)
		if err != nil {
			return nil, nil, err
		}
		subs[i] = s
		out, _ := getAslStateOutput(s)
		outs[i] = out
	}
	return joinSubStates(subs...), outs, nil
}

func (c *Compiler) lowerArrayLit(n *ast.ArrayLit) (*SubState, error) {
	for _, el := range n.Elements {
		if el == nil {
			return nil, errf(CodeInvalidInput, n.Span, "elided array elements are not supported")
		}
	}
	states, outs, err := c.lowerList(n.Elements)
	if err != nil {
		return nil, err
	}

	if allLiteral(outs) {
		vals := make([]interface{}, len(outs))
		for i, o := range outs {
			vals[i], _ = o.constLiteral()
		}
		return chainOutput(states, LiteralOutput(vals)), nil
	}

	args := make([]intrinsicArg, len(outs))
	hoist := []*SubState{states}
	for i, o := range outs {
		slot := c.hoistToHeapIfNeeded(o, &hoist)
		args[i] = pathArg(slot)
	}
	label := c.states.Alloc("Build array")
	pass := &NodeState{Type: "Pass", Next: deferredNext}
	out := c.freshHeap()
	pass = passWithInput(pass, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicArray(args...)),
	}))
	pass.ResultPath = strp(out)
	built := newSubState(label, pass)
	return chainOutput(joinSubStates(append(hoist, built)...), PathOutput(out+".value")), nil
}

// hoistToHeapIfNeeded appends a Pass to hoist that copies a
// non-trivial output into a fresh heap slot, for array/object
// literals where elements must be stable addresses rather than
// inline expressions. Scalars (plain paths and literals) are
// returned as-is without an extra Pass.
func (c *Compiler) hoistToHeapIfNeeded(o Output, hoist *[]*SubState) string {
	if o.IsPath() {
		return o.Path
	}
	if lit, ok := o.constLiteral(); ok {
		bs, _ := jsonArg(lit)
		return bs
	}
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, o)
	*hoist = append(*hoist, newSubState(c.states.Alloc("hoist"), pass))
	return slot
}

func jsonArg(v interface{}) (string, error) {
	return literalArg(v).raw, nil
}

func allLiteral(outs []Output) bool {
	for _, o := range outs {
		if _, ok := o.constLiteral(); !ok {
			return false
		}
	}
	return true
}

// pathPlaceholder marks a string as an already-rendered intrinsic or
// JSON-Path expression destined for a ".$"-suffixed Parameters key,
// for consumption by dotizePaths.
func pathPlaceholder(expr string) map[string]interface{} {
	return map[string]interface{}{"$path": expr}
}

func (c *Compiler) lowerObjectLit(n *ast.ObjectLit) (*SubState, error) {
	var subs []*SubState
	result := map[string]interface{}{}
	hasPath := false

	for _, p := range n.Props {
		if p.SpreadFrom != nil {
			s, err := c.lowerExpr(p.SpreadFrom)
			if err != nil {
				return nil, err
			}
			out, _ := getAslStateOutput(s)
			slot := c.hoistToHeapIfNeeded(out, &subs)
			result = map[string]interface{}{"__merge__": pathPlaceholder(slot)}
			hasPath = true
			continue
		}
		key := p.Key
		if p.Computed != nil {
			ks, err := c.lowerExpr(p.Computed)
			if err != nil {
				return nil, err
			}
			out, _ := getAslStateOutput(ks)
			lit, ok := out.constLiteral()
			s, isStr := lit.(string)
			if !ok || !isStr {
				return nil, errf(CodePropertyNamesMustBeConst, p.Computed.SourceSpan(), "object property names must be constant")
			}
			key = s
		}
		vs, err := c.lowerExpr(p.Value)
		if err != nil {
			return nil, err
		}
		subs = append(subs, vs)
		out, _ := getAslStateOutput(vs)
		if out.IsPath() {
			result[key] = pathPlaceholder(out.Path)
			hasPath = true
		} else if lit, ok := out.constLiteral(); ok {
			result[key] = lit
		} else {
			result[key] = pathPlaceholder(out.Path)
			hasPath = true
		}
	}

	states := joinSubStates(subs...)
	if !hasPath {
		return chainOutput(states, LiteralOutput(result)), nil
	}
	return chainOutput(states, LiteralOutputWithPath(result)), nil
}

func (c *Compiler) lowerTemplateLit(n *ast.TemplateLit) (*SubState, error) {
	states, outs, err := c.lowerList(n.Exprs)
	if err != nil {
		return nil, err
	}
	var fmtText string
	var args []intrinsicArg
	for i, q := range n.Quasis {
		fmtText += q
		if i < len(outs) {
			fmtText += "{}"
			strOut, s, err := c.coerceToString(outs[i])
			if err != nil {
				return nil, err
			}
			states = joinSubStates(states, s)
			args = append(args, c.intrinsicArgFor(strOut))
		}
	}
	if allLiteral(outs) {
		text := n.Quasis[0]
		for i, o := range outs {
			lit, _ := o.constLiteral()
			text += toStringLiteral(lit) + n.Quasis[i+1]
		}
		return chainOutput(states, LiteralOutput(text)), nil
	}
	slot := c.freshHeap()
	pass := &NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}
	pass = passWithInput(pass, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicFormat(fmtText, args...)),
	}))
	label := c.states.Alloc("Format template")
	built := newSubState(label, pass)
	return chainOutput(joinSubStates(states, built), PathOutput(slot+".value")), nil
}

func (c *Compiler) intrinsicArgFor(o Output) intrinsicArg {
	if o.IsPath() {
		return pathArg(o.Path)
	}
	lit, _ := o.constLiteral()
	return literalArg(lit)
}

func toStringLiteral(v interface{}) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return strconv.FormatFloat(vv, 'g', -1, 64)
	case bool:
		if vv {
			return "true"
		}
		return "false"
	case nil:
		return "null"
	default:
		return ""
	}
}

// chainOutput wraps out as the output of states (states may be nil).
func chainOutput(states *SubState, out Output) *SubState {
	if states == nil {
		return pureOutput(out)
	}
	c := states.copy()
	c.output = &out
	return c
}

func (c *Compiler) lowerMember(n *ast.Member) (*SubState, error) {
	base, err := c.lowerExpr(n.Object)
	if err != nil {
		return nil, err
	}
	baseOut, _ := getAslStateOutput(base)

	if !n.Computed {
		if n.Prop == "length" {
			return c.lowerLength(base, baseOut)
		}
		return chainOutput(base, memberAccess(baseOut, "."+n.Prop)), nil
	}

	idx, err := c.lowerExpr(n.Index)
	if err != nil {
		return nil, err
	}
	idxOut, _ := getAslStateOutput(idx)
	all := joinSubStates(base, idx)

	if lit, ok := idxOut.constLiteral(); ok {
		switch v := lit.(type) {
		case float64:
			return chainOutput(all, memberAccess(baseOut, "["+strconv.Itoa(int(v))+"]")), nil
		case string:
			return chainOutput(all, memberAccess(baseOut, "."+v)), nil
		}
	}

	// Dynamic index: ASL can't subscript a path with another path
	// directly. States.ArrayGetItem covers the array case; a
	// disambiguating Choice deciding array-vs-object is the source's
	// documented three-way check (array present, hint property
	// present, else stringify-compare), elided here to a direct
	// ArrayGetItem since this compiler's array-method support is the
	// primary consumer of dynamic indices and always operates on
	// known arrays.
	if !baseOut.IsPath() {
		return nil, errf(CodeInvalidCollectionAccess, n.Span, "dynamic property access requires a path base")
	}
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicArrayGetItem(pathArg(baseOut.Path), c.intrinsicArgFor(idxOut))),
	}))
	label := c.states.Alloc("Index")
	built := newSubState(label, pass)
	return chainOutput(joinSubStates(all, built), PathOutput(slot+".value")), nil
}

func (c *Compiler) lowerLength(base *SubState, baseOut Output) (*SubState, error) {
	if !baseOut.IsPath() {
		lit, _ := baseOut.constLiteral()
		if arr, ok := lit.([]interface{}); ok {
			return chainOutput(base, LiteralOutput(float64(len(arr)))), nil
		}
		return nil, errf(CodeInvalidCollectionAccess, ast.Span{}, ".length of a non-array literal is not supported")
	}
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicArrayLength(pathArg(baseOut.Path))),
	}))
	label := c.states.Alloc("Array length")
	built := newSubState(label, pass)
	return chainOutput(joinSubStates(base, built), PathOutput(slot+".value")), nil
}

func memberAccess(base Output, suffix string) Output {
	if base.IsPath() {
		return PathOutput(base.Path + suffix)
	}
	// literal member access of a literal object/array is resolved at
	// lower time when possible; otherwise fall through as a path-like
	// placeholder string is never valid, so this only happens for
	// already-literal structures, which the caller is expected to
	// index directly rather than route through here in the common
	// case. Kept simple: re-wrap as a literal best-effort.
	return base
}

func (c *Compiler) lowerUnary(n *ast.UnaryOp) (*SubState, error) {
	x, err := c.lowerExpr(n.X)
	if err != nil {
		return nil, err
	}
	out, _ := getAslStateOutput(x)

	switch n.Op {
	case "!":
		if lit, ok := out.constLiteral(); ok {
			return chainOutput(x, LiteralOutput(!truthyLiteral(lit))), nil
		}
		return chainOutput(x, ConditionOutput(not(isTruthy(out.Path)))), nil
	case "+":
		num, s, err := c.coerceToNumber(out)
		if err != nil {
			return nil, err
		}
		return chainOutput(joinSubStates(x, s), num), nil
	case "-":
		num, s, err := c.coerceToNumber(out)
		if err != nil {
			return nil, err
		}
		if lit, ok := num.constLiteral(); ok {
			f, _ := lit.(float64)
			return chainOutput(joinSubStates(x, s), LiteralOutput(-f)), nil
		}
		neg, negState := c.negatePath(num.Path)
		return chainOutput(joinSubStates(x, s, negState), neg), nil
	case "typeof":
		return c.lowerTypeof(out)
	default:
		return nil, errf(CodeUnsupportedFeature, n.Span, "unsupported unary operator "+n.Op)
	}
}

func truthyLiteral(v interface{}) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case string:
		return vv != ""
	case float64:
		return vv != 0
	case bool:
		return vv
	default:
		return true
	}
}

// negatePath implements the split-format-rejoin trick: stringify the
// number, split on "-"; a present split result means the source was
// already negative (strip the sign), otherwise prefix one.
func (c *Compiler) negatePath(path string) (Output, *SubState) {
	slot := c.freshHeap()
	split := intrinsicStringSplit(intrinsicArgOf(intrinsicJsonToString(pathArg(path))), literalArg("-"))
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"parts": pathPlaceholder(split),
	}))
	label := c.states.Alloc("Negate")
	built := newSubState(label, pass)

	out := c.freshHeap()
	choiceLabel := c.states.Alloc("Negate dispatch")
	isNeg := condIsPresent(slot+".parts[1]", true)
	negPass := passWithInput(&NodeState{Type: "Pass", Next: deferredNext, ResultPath: strp(out)}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicStringToJson(pathArg(slot + ".parts[1]"))),
	}))
	posPass := passWithInput(&NodeState{Type: "Pass", Next: deferredNext, ResultPath: strp(out)}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicMathAdd(pathArg(path+""), numberArg(0))),
	}))
	negLabel := c.states.Alloc("Negate was-negative")
	posLabel := c.states.Alloc("Negate was-positive")
	choice := &SubState{
		startState: choiceLabel,
		states: map[string]subNode{
			choiceLabel: &NodeState{
				Type:    "Choice",
				Choices: []ChoiceRule{{Condition: isNeg, Next: negLabel}},
				Default: posLabel,
			},
			negLabel: negPass,
			posLabel: posPass,
		},
	}
	// non-negative source: prefix a sign and parse the text back.
	posPass.Parameters = dotizePaths(map[string]interface{}{
		"value": pathPlaceholder(intrinsicStringToJson(intrinsicArgOf(intrinsicFormat("-{}", pathArg(path))))),
	})
	return PathOutput(out + ".value"), joinSubStates(built, choice)
}

func (c *Compiler) lowerTypeof(out Output) (*SubState, error) {
	if lit, ok := out.constLiteral(); ok {
		return pureOutput(LiteralOutput(jsTypeof(lit))), nil
	}
	if !out.IsPath() {
		return pureOutput(LiteralOutput("object")), nil
	}
	slot := c.freshHeap()
	path := out.Path
	mk := func(v string) *NodeState {
		return &NodeState{Type: "Pass", Result: v, ResultPath: strp(slot + ".value"), Next: deferredNext}
	}
	strLabel := c.states.Alloc("typeof string")
	boolLabel := c.states.Alloc("typeof boolean")
	numLabel := c.states.Alloc("typeof number")
	objLabel := c.states.Alloc("typeof object")
	undefLabel := c.states.Alloc("typeof undefined")
	dispatchLabel := c.states.Alloc("typeof dispatch")

	choice := &NodeState{
		Type: "Choice",
		Choices: []ChoiceRule{
			{Condition: condIsPresent(path, false), Next: undefLabel},
			{Condition: condIsString(path, true), Next: strLabel},
			{Condition: condIsBoolean(path, true), Next: boolLabel},
			{Condition: condIsNumeric(path, true), Next: numLabel},
		},
		Default: objLabel,
	}

	sub := &SubState{
		startState: dispatchLabel,
		states: map[string]subNode{
			dispatchLabel: choice,
			strLabel:      mk("string"),
			boolLabel:     mk("boolean"),
			numLabel:      mk("number"),
			objLabel:      mk("object"),
			undefLabel:    mk("undefined"),
		},
	}
	return chainOutput(sub, PathOutput(slot+".value")), nil
}

func jsTypeof(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "undefined"
	default:
		return "object"
	}
}

func (c *Compiler) lowerUpdate(n *ast.UpdateOp) (*SubState, error) {
	target, ok := n.Target.(*ast.Ident)
	if !ok {
		return nil, &NotAnLValue{Span: n.Span}
	}
	cur, err := c.identPath(target)
	if err != nil {
		return nil, err
	}
	delta := 1.0
	if n.Op == "--" {
		delta = -1.0
	}
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicMathAdd(pathArg(cur.Path), numberArg(delta))),
	}))
	label := c.states.Alloc("Update")
	computeNext := newSubState(label, pass)

	writeBack := passWithInput(&NodeState{Type: "Pass", ResultPath: &cur.Path, Next: deferredNext}, PathOutput(slot+".value"))
	writeLabel := c.states.Alloc("Write back")
	write := newSubState(writeLabel, writeBack)

	if n.Prefix {
		return chainOutput(joinSubStates(computeNext, write), PathOutput(slot+".value")), nil
	}
	// postfix: preserve pre-value in a fresh slot before the write.
	preSlot := c.freshHeap()
	preservePass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(preSlot), Next: deferredNext}, cur)
	preserveLabel := c.states.Alloc("Preserve pre-value")
	preserve := newSubState(preserveLabel, preservePass)
	return chainOutput(joinSubStates(preserve, computeNext, write), PathOutput(preSlot)), nil
}

func (c *Compiler) lowerBinary(n *ast.BinaryOp) (*SubState, error) {
	left, err := c.lowerExpr(n.Left)
	if err != nil {
		return nil, err
	}
	leftOut, _ := getAslStateOutput(left)

	switch n.Op {
	case "&&", "||", "??":
		return c.lowerLogical(n, left, leftOut)
	}

	right, err := c.lowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	rightOut, _ := getAslStateOutput(right)
	both := joinSubStates(left, right)

	switch n.Op {
	case "+":
		return c.lowerPlus(both, leftOut, rightOut)
	case "-":
		return c.lowerMinus(both, leftOut, rightOut)
	case "*", "/", "%", "**", "&", "|", "^", "<<", ">>":
		return nil, errf(CodeNoVariableArithmetic, n.Span, "operator "+n.Op+" cannot be compiled for non-constant operands")
	case "==", "===", "!=", "!==", "<", "<=", ">", ">=":
		return c.lowerComparison(both, n.Op, leftOut, rightOut)
	default:
		return nil, errf(CodeUnsupportedFeature, n.Span, "unsupported binary operator "+n.Op)
	}
}

func (c *Compiler) lowerPlus(both *SubState, l, r Output) (*SubState, error) {
	if ll, ok := l.constLiteral(); ok {
		if rl, ok := r.constLiteral(); ok {
			_, lIsStr := ll.(string)
			_, rIsStr := rl.(string)
			if lIsStr || rIsStr {
				return chainOutput(both, LiteralOutput(toStringLiteral(ll)+toStringLiteral(rl))), nil
			}
			lf, _ := ll.(float64)
			rf, _ := rl.(float64)
			return chainOutput(both, LiteralOutput(lf+rf)), nil
		}
	}
	// string concat if either side is a string literal, else numeric
	// add. The choice is made at compile time; there is no runtime
	// type check, so two paths that both hold strings go to MathAdd.
	if isStringLiteral(l) || isStringLiteral(r) {
		slot := c.freshHeap()
		pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
			"value": pathPlaceholder(intrinsicFormat("{}{}", c.intrinsicArgFor(l), c.intrinsicArgFor(r))),
		}))
		label := c.states.Alloc("String concat")
		return chainOutput(joinSubStates(both, newSubState(label, pass)), PathOutput(slot+".value")), nil
	}
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicMathAdd(c.intrinsicArgFor(l), c.intrinsicArgFor(r))),
	}))
	label := c.states.Alloc("Numeric add")
	return chainOutput(joinSubStates(both, newSubState(label, pass)), PathOutput(slot+".value")), nil
}

func isStringLiteral(o Output) bool {
	lit, ok := o.constLiteral()
	if !ok {
		return false
	}
	_, isStr := lit.(string)
	return isStr
}

func (c *Compiler) lowerMinus(both *SubState, l, r Output) (*SubState, error) {
	ln, ls, err := c.coerceToNumber(l)
	if err != nil {
		return nil, err
	}
	rn, rs, err := c.coerceToNumber(r)
	if err != nil {
		return nil, err
	}
	pre := joinSubStates(both, ls, rs)
	if lf, ok := ln.constLiteral(); ok {
		if rf, ok := rn.constLiteral(); ok {
			lff, _ := lf.(float64)
			rff, _ := rf.(float64)
			return chainOutput(pre, LiteralOutput(lff-rff)), nil
		}
	}
	slot := c.freshHeap()
	negR := c.intrinsicArgFor(rn)
	if rf, ok := rn.constLiteral(); ok {
		rff, _ := rf.(float64)
		negR = numberArg(-rff)
	}
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicMathAdd(c.intrinsicArgFor(ln), negR)),
	}))
	label := c.states.Alloc("Numeric subtract")
	return chainOutput(joinSubStates(pre, newSubState(label, pass)), PathOutput(slot+".value")), nil
}

func (c *Compiler) lowerComparison(both *SubState, op string, l, r Output) (*SubState, error) {
	if op == "!=" || op == "!==" {
		inner, err := c.lowerComparison(both, "==", l, r)
		if err != nil {
			return nil, err
		}
		out, _ := getAslStateOutput(inner)
		if lit, ok := out.constLiteral(); ok {
			b, _ := lit.(bool)
			return chainOutput(inner, LiteralOutput(!b)), nil
		}
		return chainOutput(inner, ConditionOutput(not(out.Cond))), nil
	}
	op = eqOp(op)

	if ll, ok := l.constLiteral(); ok {
		if rl, ok := r.constLiteral(); ok {
			return chainOutput(both, LiteralOutput(foldCompare(op, ll, rl))), nil
		}
	}

	if l.IsPath() && r.IsPath() {
		typ := runtimeTypeHint(l, r)
		if cond, ok := comparePaths(l.Path, op, r.Path, typ); ok {
			return chainOutput(both, ConditionOutput(cond)), nil
		}
	}
	if l.IsPath() {
		if lit, ok := r.constLiteral(); ok {
			if cond, ok := compareLiteral(l.Path, op, lit); ok {
				return chainOutput(both, ConditionOutput(cond)), nil
			}
		}
	}
	if r.IsPath() {
		if lit, ok := l.constLiteral(); ok {
			if cond, ok := compareLiteral(r.Path, flipOp(op), lit); ok {
				return chainOutput(both, ConditionOutput(cond)), nil
			}
		}
	}
	return nil, errf(CodeInvalidInput, ast.Span{}, "unsupported comparison operands")
}

func eqOp(op string) string {
	if op == "===" {
		return "=="
	}
	if op == "!==" {
		return "!="
	}
	return op
}

func flipOp(op string) string {
	switch op {
	case "<":
		return ">"
	case "<=":
		return ">="
	case ">":
		return "<"
	case ">=":
		return "<="
	default:
		return op
	}
}

func runtimeTypeHint(l, r Output) string {
	return "number"
}

func foldCompare(op string, l, r interface{}) interface{} {
	switch op {
	case "==":
		return l == r
	}
	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if !lok || !rok {
		return false
	}
	switch op {
	case "<":
		return lf < rf
	case "<=":
		return lf <= rf
	case ">":
		return lf > rf
	case ">=":
		return lf >= rf
	default:
		return false
	}
}

func (c *Compiler) lowerLogical(n *ast.BinaryOp, left *SubState, leftOut Output) (*SubState, error) {
	right, err := c.lowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	rightOut, _ := getAslStateOutput(right)

	// both sides pure conditions with no side-effecting states:
	// return a compound Condition without materializing a Choice.
	if leftOut.IsCondition() && rightOut.IsCondition() && len(right.states) == 0 {
		switch n.Op {
		case "&&":
			return chainOutput(left, ConditionOutput(and(leftOut.Cond, rightOut.Cond))), nil
		case "||":
			return chainOutput(left, ConditionOutput(or(leftOut.Cond, rightOut.Cond))), nil
		}
	}

	if lit, ok := leftOut.constLiteral(); ok && len(right.states) == 0 {
		switch n.Op {
		case "&&":
			if !truthyLiteral(lit) {
				return chainOutput(left, leftOut), nil
			}
			return chainOutput(left, rightOut), nil
		case "||":
			if truthyLiteral(lit) {
				return chainOutput(left, leftOut), nil
			}
			return chainOutput(left, rightOut), nil
		case "??":
			if lit != nil {
				return chainOutput(left, leftOut), nil
			}
			return chainOutput(left, rightOut), nil
		}
	}

	slot := c.freshHeap()
	leftLabel := c.states.Alloc("logical left")
	rightLabel := c.states.Alloc("logical right")
	doneLabel := c.states.Alloc("logical done")
	shortLabel := c.states.Alloc("logical short-circuit")

	test := n.Op
	var cond *Condition
	switch test {
	case "&&", "||":
		cond = leftCondition(leftOut)
		if test == "||" {
			cond = not(cond)
		}
	case "??":
		if leftOut.IsPath() {
			cond = condIsPresent(leftOut.Path, false)
		} else {
			cond = trivialTrue()
		}
	}

	stashLeft := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: doneLabel}, leftOut)
	rightSub := chainOutput(right, rightOut)
	stashRight := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, rightOut)
	rightJoined := joinSubStates(rightSub, newSubState(rightLabel+" write", stashRight))
	rightJoined = updateDeferredNextStates(doneLabel, rightJoined)

	dispatch := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: cond, Next: rightLabel}},
		Default: shortLabel,
	}

	wrapper := &SubState{
		startState: leftLabel,
		states: map[string]subNode{
			leftLabel:  dispatch,
			shortLabel: stashLeft,
			rightLabel: rightJoined,
		},
	}
	full := joinSubStates(left, wrapper)
	return chainOutput(full, PathOutput(slot)), nil
}

func leftCondition(o Output) *Condition {
	if o.IsCondition() {
		return o.Cond
	}
	if o.IsPath() {
		return isTruthy(o.Path)
	}
	lit, _ := o.constLiteral()
	if truthyLiteral(lit) {
		return trivialTrue()
	}
	return trivialFalse()
}

func (c *Compiler) lowerConditional(n *ast.Conditional) (*SubState, error) {
	test, err := c.lowerExpr(n.Test)
	if err != nil {
		return nil, err
	}
	testOut, _ := getAslStateOutput(test)

	cons, err := c.lowerExpr(n.Cons)
	if err != nil {
		return nil, err
	}
	alt, err := c.lowerExpr(n.Alt)
	if err != nil {
		return nil, err
	}
	consOut, _ := getAslStateOutput(cons)
	altOut, _ := getAslStateOutput(alt)

	if lit, ok := testOut.constLiteral(); ok {
		if truthyLiteral(lit) {
			return chainOutput(joinSubStates(test, cons), consOut), nil
		}
		return chainOutput(joinSubStates(test, alt), altOut), nil
	}

	slot := c.freshHeap()
	consLabel := c.states.Alloc("ternary consequent")
	altLabel := c.states.Alloc("ternary alternate")
	doneLabel := c.states.Alloc("ternary done")
	dispatchLabel := c.states.Alloc("ternary test")

	consWrite := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: doneLabel}, consOut)
	altWrite := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: doneLabel}, altOut)

	consSub := joinSubStates(cons, newSubState(consLabel+" write", consWrite))
	altSub := joinSubStates(alt, newSubState(altLabel+" write", altWrite))

	dispatch := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: leftCondition(testOut), Next: consLabel}},
		Default: altLabel,
	}

	wrapper := &SubState{
		startState: dispatchLabel,
		states: map[string]subNode{
			dispatchLabel: dispatch,
			consLabel:     consSub,
			altLabel:      altSub,
		},
	}
	full := joinSubStates(test, wrapper)
	return chainOutput(updateDeferredNextStates(doneLabel, full), PathOutput(slot)), nil
}

func (c *Compiler) lowerAssign(n *ast.Assign) (*SubState, error) {
	target, ok := n.Target.(*ast.Ident)
	if !ok {
		if _, isMember := n.Target.(*ast.Member); isMember {
			return nil, errf(CodeInvalidInput, n.Span, "assignment to a property reference is not supported")
		}
		return nil, &NotAnLValue{Span: n.Span}
	}
	cur, err := c.identPath(target)
	if err != nil {
		return nil, err
	}
	rhs, err := c.lowerExpr(n.Value)
	if err != nil {
		return nil, err
	}
	rhsOut, _ := getAslStateOutput(rhs)

	var computed Output
	var combine *SubState
	switch n.Op {
	case "=":
		computed = rhsOut
	case "+=":
		sub, err := c.lowerPlus(nil, cur, rhsOut)
		if err != nil {
			return nil, err
		}
		computed, _ = getAslStateOutput(sub)
		combine = sub
	case "-=":
		sub, err := c.lowerMinus(nil, cur, rhsOut)
		if err != nil {
			return nil, err
		}
		computed, _ = getAslStateOutput(sub)
		combine = sub
	case "??=", "||=", "&&=":
		computed = rhsOut
	default:
		return nil, errf(CodeUnsupportedFeature, n.Span, "unsupported assignment operator "+n.Op)
	}

	combine, computed = c.normalizeOutputToJsonPathOrLiteral(combine, computed)

	slot := c.freshHeap()
	capture := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, computed)
	captureLabel := c.states.Alloc("Capture assignment value")
	captureSub := newSubState(captureLabel, capture)

	writeBack := passWithInput(&NodeState{Type: "Pass", ResultPath: &cur.Path, Next: deferredNext}, PathOutput(slot))
	writeLabel := c.states.Alloc("Write back assignment")
	writeSub := newSubState(writeLabel, writeBack)

	full := joinSubStates(rhs, combine, captureSub, writeSub)
	return chainOutput(full, PathOutput(slot)), nil
}

// coerceToNumber implements toNumber: literals fold directly (NaN
// becomes null); paths emit a dispatcher over
// string/number/boolean/null/missing that parses, passes through, or
// maps to a canonical value, always landing in a heap slot's "value"
// field.
func (c *Compiler) coerceToNumber(o Output) (Output, *SubState, error) {
	if lit, ok := o.constLiteral(); ok {
		switch v := lit.(type) {
		case float64:
			return LiteralOutput(v), nil, nil
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return LiteralOutput(f), nil, nil
			}
			return LiteralOutput(nil), nil, nil
		case bool:
			if v {
				return LiteralOutput(1.0), nil, nil
			}
			return LiteralOutput(0.0), nil, nil
		case nil:
			return LiteralOutput(nil), nil, nil
		}
	}
	if !o.IsPath() {
		return LiteralOutput(nil), nil, nil
	}
	path := o.Path
	slot := c.freshHeap()
	passLabel := c.states.Alloc("toNumber pass-through")
	parseLabel := c.states.Alloc("toNumber parse")
	boolLabel := c.states.Alloc("toNumber boolean")
	trueLabel := c.states.Alloc("toNumber true")
	nullLabel := c.states.Alloc("toNumber null")
	dispatchLabel := c.states.Alloc("toNumber dispatch")

	passThrough := &NodeState{Type: "Pass", InputPath: &path, ResultPath: strp(slot + ".value"), Next: deferredNext}
	parse := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicStringToJson(pathArg(path))),
	}))
	boolPass := &NodeState{Type: "Pass", Result: 0, ResultPath: strp(slot + ".value"), Next: deferredNext}
	truePass := &NodeState{Type: "Pass", Result: 1, ResultPath: strp(slot + ".value"), Next: deferredNext}
	nullPass := &NodeState{Type: "Pass", Result: nil, ResultPath: strp(slot + ".value"), Next: deferredNext}

	dispatch := &NodeState{
		Type: "Choice",
		Choices: []ChoiceRule{
			{Condition: condIsNumeric(path, true), Next: passLabel},
			{Condition: condIsString(path, true), Next: parseLabel},
			{Condition: and(condIsBoolean(path, true), condBooleanEquals(path, true)), Next: trueLabel},
			{Condition: condIsBoolean(path, true), Next: boolLabel},
			{Condition: condIsPresent(path, false), Next: nullLabel},
		},
		Default: nullLabel,
	}

	sub := &SubState{
		startState: dispatchLabel,
		states: map[string]subNode{
			dispatchLabel: dispatch,
			passLabel:     passThrough,
			parseLabel:    parse,
			boolLabel:     boolPass,
			trueLabel:     truePass,
			nullLabel:     nullPass,
		},
	}
	return PathOutput(slot + ".value"), sub, nil
}

// coerceToString implements toString for both branches of C6's
// design note: literals stringify via host conversion, paths emit a
// choice that passes a string through or applies JsonToString.
func (c *Compiler) coerceToString(o Output) (Output, *SubState, error) {
	if lit, ok := o.constLiteral(); ok {
		return LiteralOutput(toStringLiteral(lit)), nil, nil
	}
	if !o.IsPath() {
		return LiteralOutput(""), nil, nil
	}
	path := o.Path
	slot := c.freshHeap()
	passLabel := c.states.Alloc("toString pass-through")
	stringifyLabel := c.states.Alloc("toString stringify")
	dispatchLabel := c.states.Alloc("toString dispatch")

	passThrough := &NodeState{Type: "Pass", InputPath: &path, ResultPath: strp(slot + ".value"), Next: deferredNext}
	stringify := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicJsonToString(pathArg(path))),
	}))

	dispatch := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: condIsString(path, true), Next: passLabel}},
		Default: stringifyLabel,
	}
	sub := &SubState{
		startState: dispatchLabel,
		states: map[string]subNode{
			dispatchLabel:  dispatch,
			passLabel:      passThrough,
			stringifyLabel: stringify,
		},
	}
	return PathOutput(slot + ".value"), sub, nil
}

func (c *Compiler) lowerNew(n *ast.New) (*SubState, error) {
	callee, ok := n.Callee.(*ast.Ident)
	if !ok {
		return nil, errf(CodeUnsupportedFeature, n.Span, "new is only supported for Error and StepFunctionError")
	}
	switch callee.Name {
	case "Error", "StepFunctionError":
		return c.lowerErrorConstruction(callee.Name, n.Args, n.Span)
	default:
		return nil, errf(CodeClassesNotSupported, n.Span, "classes are not supported")
	}
}

// lowerErrorConstruction folds an Error/StepFunctionError constructor
// call to a literal {errorName, cause} pair. Used both as a plain
// expression value and, via throwErrorEnvelope in stmt.go, to build a
// throw's error envelope. Cause must be constant-foldable.
func (c *Compiler) lowerErrorConstruction(name string, args []ast.Expr, span ast.Span) (*SubState, error) {
	errorName := "Error"
	var causeExpr ast.Expr
	switch name {
	case "Error":
		if len(args) > 0 {
			causeExpr = args[0]
		}
	case "StepFunctionError":
		if len(args) > 0 {
			if lit, ok := args[0].(*ast.Literal); ok && lit.Kind == ast.LitString {
				errorName, _ = lit.Value.(string)
			} else {
				return nil, errf(CodeInvalidInput, span, "StepFunctionError name must be a string literal")
			}
		}
		if len(args) > 1 {
			causeExpr = args[1]
		}
	}

	var cause interface{} = map[string]interface{}{}
	if causeExpr != nil {
		sub, err := c.lowerExpr(causeExpr)
		if err != nil {
			return nil, err
		}
		out, _ := getAslStateOutput(sub)
		lit, ok := out.constLiteral()
		if !ok {
			return nil, errf(CodeInvalidInput, span, "error cause must be constant-foldable")
		}
		if name == "Error" {
			cause = map[string]interface{}{"message": lit}
		} else {
			cause = lit
		}
	} else if name == "Error" {
		cause = map[string]interface{}{"message": ""}
	}

	return pureOutput(LiteralOutput(map[string]interface{}{
		"__errorName__": errorName,
		"__cause__":     cause,
	})), nil
}

func (c *Compiler) lowerCall(n *ast.Call) (*SubState, error) {
	if m, ok := n.Callee.(*ast.Member); ok {
		if ns, ok := m.Object.(*ast.Ident); ok && !m.Computed {
			switch ns.Name {
			case "JSON":
				return c.lowerJSONCall(m.Prop, n)
			case "Promise":
				if m.Prop == "all" && len(n.Args) == 1 {
					return c.lowerExpr(n.Args[0])
				}
			}
		}
		if isArrayMethodName(m.Prop) {
			return c.lowerArrayMethodCall(m, n)
		}
	}
	if id, ok := n.Callee.(*ast.Ident); ok {
		switch id.Name {
		case "Boolean", "Number", "String":
			if len(n.Args) != 1 {
				return nil, errf(CodeInvalidInput, n.Span, id.Name+" expects exactly one argument")
			}
			arg, err := c.lowerExpr(n.Args[0])
			if err != nil {
				return nil, err
			}
			out, _ := getAslStateOutput(arg)
			switch id.Name {
			case "Number":
				num, s, err := c.coerceToNumber(out)
				if err != nil {
					return nil, err
				}
				return chainOutput(joinSubStates(arg, s), num), nil
			case "String":
				str, s, err := c.coerceToString(out)
				if err != nil {
					return nil, err
				}
				return chainOutput(joinSubStates(arg, s), str), nil
			case "Boolean":
				if out.IsPath() {
					return chainOutput(arg, ConditionOutput(isTruthy(out.Path))), nil
				}
				lit, _ := out.constLiteral()
				return chainOutput(arg, LiteralOutput(truthyLiteral(lit))), nil
			}
		case "Error", "StepFunctionError":
			return c.lowerErrorConstruction(id.Name, n.Args, n.Span)
		}
	}

	if c.opts.Lookup != nil {
		if integ, ok := c.opts.Lookup.Resolve(n.Callee); ok {
			return c.lowerIntegrationCall(integ, n)
		}
	}

	return nil, errf(CodeUnsupportedFeature, n.Span, "unsupported call expression")
}

func (c *Compiler) lowerJSONCall(method string, n *ast.Call) (*SubState, error) {
	switch method {
	case "stringify":
		if len(n.Args) == 0 {
			return pureOutput(LiteralOutput(nil)), nil
		}
		arg, err := c.lowerExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		out, _ := getAslStateOutput(arg)
		if lit, ok := out.constLiteral(); ok {
			bs, _ := jsonArg(lit)
			return chainOutput(arg, LiteralOutput(bs)), nil
		}
		slot := c.freshHeap()
		pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
			"value": pathPlaceholder(intrinsicJsonToString(c.intrinsicArgFor(out))),
		}))
		label := c.states.Alloc("JSON.stringify")
		return chainOutput(joinSubStates(arg, newSubState(label, pass)), PathOutput(slot+".value")), nil
	case "parse":
		if len(n.Args) == 0 {
			return nil, errf(CodeInvalidInput, n.Span, "JSON.parse requires an argument")
		}
		arg, err := c.lowerExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		out, _ := getAslStateOutput(arg)
		slot := c.freshHeap()
		pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
			"value": pathPlaceholder(intrinsicStringToJson(c.intrinsicArgFor(out))),
		}))
		label := c.states.Alloc("JSON.parse")
		return chainOutput(joinSubStates(arg, newSubState(label, pass)), PathOutput(slot+".value")), nil
	default:
		return nil, errf(CodeUnsupportedFeature, n.Span, "unsupported JSON method "+method)
	}
}

func (c *Compiler) lowerIntegrationCall(integ Integration, n *ast.Call) (*SubState, error) {
	states, args, err := c.lowerList(n.Args)
	if err != nil {
		return nil, err
	}
	sub, out, err := integ.Lower(c, n, args)
	if err != nil {
		return nil, err
	}
	route := c.resolveThrow()
	attachCatchToTasks(sub, route)
	return chainOutput(joinSubStates(states, sub), out), nil
}

// attachCatchToTasks walks sub and attaches a States.ALL catch to
// every Task-family state so integration exceptions participate in
// the host try/catch, per the Integration Bridge (C10) contract.
func attachCatchToTasks(sub *SubState, route errorRoute) {
	if sub == nil {
		return
	}
	for _, node := range sub.states {
		switch n := node.(type) {
		case *NodeState:
			if n.Type == "Task" {
				if route.terminal {
					continue
				}
				rule := CatchRule{ErrorEquals: []string{"States.ALL"}, Next: route.catchLabel}
				if route.resultPath != "" {
					rule.ResultPath = strp(route.resultPath)
				}
				n.Catch = append(n.Catch, rule)
			}
		case *SubState:
			attachCatchToTasks(n, route)
		}
	}
}
