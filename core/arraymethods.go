package core

import "github.com/aslcompile/aslc/ast"

// arrayMethodNames is the set of Array.prototype / String.prototype
// methods the skeleton below knows how to lower. Anything else
// reaching lowerArrayMethodCall's caller falls through as an
// ordinary, unsupported call expression.
var arrayMethodNames = map[string]bool{
	"map": true, "forEach": true, "filter": true, "includes": true,
	"slice": true, "join": true, "split": true,
}

func isArrayMethodName(name string) bool {
	return arrayMethodNames[name]
}

// arraySkeletonSpec parameterizes the single iteration skeleton (C11
// design): init -> check -> (assign -> body -> handleResult? -> tail
// -> check) | end.
type arraySkeletonSpec struct {
	method   string
	arr      Output
	callback *ast.Func // nil for slice/includes/join/split, which have no user body
	args     []Output  // raw call arguments, e.g. filter's elided nothing; slice(start,end); includes(v)
}

func (c *Compiler) lowerArrayMethodCall(m *ast.Member, n *ast.Call) (*SubState, error) {
	base, err := c.lowerExpr(m.Object)
	if err != nil {
		return nil, err
	}
	baseOut, _ := getAslStateOutput(base)

	switch m.Prop {
	case "includes":
		return c.lowerIncludes(base, baseOut, n)
	case "split":
		return c.lowerSplit(base, baseOut, n)
	case "slice":
		return c.lowerSlice(base, baseOut, n)
	case "join":
		return c.lowerJoin(base, baseOut, n)
	}

	if len(n.Args) == 0 {
		return nil, errf(CodeInvalidInput, n.Span, m.Prop+" requires a callback")
	}
	fn, ok := n.Args[0].(*ast.Func)
	if !ok {
		return nil, errf(CodeUnsupportedFeature, n.Span, m.Prop+" requires an inline function argument")
	}

	switch m.Prop {
	case "map":
		return c.lowerMapFilterForEach(base, baseOut, fn, "map")
	case "forEach":
		return c.lowerMapFilterForEach(base, baseOut, fn, "forEach")
	case "filter":
		if path, ok := tryJsonPathFilter(baseOut, fn); ok {
			return chainOutput(base, PathOutput(path)), nil
		}
		return c.lowerMapFilterForEach(base, baseOut, fn, "filter")
	default:
		return nil, errf(CodeUnsupportedFeature, n.Span, "unsupported array method "+m.Prop)
	}
}

// tryJsonPathFilter recognizes a filter predicate of the form
// `item => item.prop op constant` (or the bare item itself) and
// renders it as a JSON-Path filter expression on the source array,
// bypassing the iteration skeleton entirely per the design note.
// Only a literal-constant comparison RHS is supported; anything else
// reports no match so the caller falls back to the skeleton.
func tryJsonPathFilter(arr Output, fn *ast.Func) (string, bool) {
	if !arr.IsPath() || len(fn.Params) == 0 || len(fn.Body) != 1 {
		return "", false
	}
	ret, ok := fn.Body[0].(*ast.Return)
	if !ok || ret.Arg == nil {
		return "", false
	}
	bin, ok := ret.Arg.(*ast.BinaryOp)
	if !ok {
		return "", false
	}
	param := fn.Params[0].Name
	left, leftIsParam := asParamMember(bin.Left, param)
	var field, jsonOp string
	var litExpr ast.Expr
	flipped := false
	if leftIsParam {
		field = left
		litExpr = bin.Right
	} else if right, ok := asParamMember(bin.Right, param); ok {
		field = right
		litExpr = bin.Left
		flipped = true
	} else {
		return "", false
	}
	lit, ok := litExpr.(*ast.Literal)
	if !ok {
		return "", false
	}
	switch bin.Op {
	case "==", "===":
		jsonOp = "=="
	case "<", "<=", ">", ">=":
		jsonOp = bin.Op
		if flipped {
			jsonOp = flipOp(jsonOp)
		}
	default:
		return "", false
	}
	var rhs string
	switch lit.Kind {
	case ast.LitString:
		rhs = "'" + lit.Value.(string) + "'"
	case ast.LitNumber:
		rhs = toStringLiteral(lit.Value)
	default:
		return "", false
	}
	selector := "@" + field
	return arr.Path + "[?(" + selector + " " + jsonOp + " " + rhs + ")]", true
}

func asParamMember(e ast.Expr, param string) (string, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		if n.Name == param {
			return "", true
		}
	case *ast.Member:
		if id, ok := n.Object.(*ast.Ident); ok && id.Name == param && !n.Computed {
			return "." + n.Prop, true
		}
	}
	return "", false
}

// lowerMapFilterForEach builds the shared init/check/assign/body/tail
// skeleton. Specializations differ only in the accumulator update
// applied after the body runs.
func (c *Compiler) lowerMapFilterForEach(base *SubState, arr Output, fn *ast.Func, kind string) (*SubState, error) {
	if !arr.IsPath() {
		return nil, errf(CodeInvalidCollectionAccess, fn.Span, kind+" requires an array path, not a literal")
	}
	cursor := c.freshHeap()
	acc := c.freshHeap()

	initLabel := c.states.Alloc(kind + " init")
	checkLabel := c.states.Alloc(kind + " check")
	assignLabel := c.states.Alloc(kind + " assign")
	endLabel := c.states.Alloc(kind + " end")
	tailLabel := c.states.Alloc(kind + " tail")

	var accInit interface{} = "[null"
	if kind == "forEach" {
		accInit = nil
	}

	init := &NodeState{
		Type: "Pass",
		Parameters: dotizePaths(map[string]interface{}{
			"cursor": pathPlaceholder("@path:" + arr.Path), // placeholder replaced below
			"acc":    accInit,
		}),
		ResultPath: strp(cursor),
		Next:       checkLabel,
	}
	// ASL Parameters can reference a source path directly without an
	// intrinsic; rewrite the marker into a plain ".$" path copy.
	init.Parameters = map[string]interface{}{
		"cursor.$": arr.Path,
		"acc":      accInit,
	}

	check := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: condIsPresent(cursor+".cursor[0]", true), Next: assignLabel}},
		Default: endLabel,
	}

	c.pushScope()
	c.declareFresh(&ast.Ident{Name: fn.Params[0].Name})
	itemPath := "$." + mustLookupName(c, fn.Params[0].Name)
	assign := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(itemPath), Next: deferredNext}, PathOutput(cursor+".cursor[0]"))
	assignSub := newSubState(assignLabel, assign)

	c.pushHandler(handlerFrame{})
	c.popHandler()

	bodyStmts, err := c.lowerArrayCallbackBody(fn)
	if err != nil {
		c.popScope()
		return nil, err
	}

	var tail *SubState
	switch kind {
	case "map":
		mapOut, _ := getAslStateOutput(bodyStmts)
		bodyStmts, mapOut = c.normalizeOutputToJsonPathOrLiteral(bodyStmts, mapOut)
		appendPass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(acc), Next: checkLabel}, LiteralOutputWithPath(map[string]interface{}{
			"value": pathPlaceholder(intrinsicFormat("{},{}", pathArg(cursor+".acc"), intrinsicArgOf(intrinsicJsonToString(c.intrinsicArgFor(mapOut))))),
		}))
		stashAcc := newSubState(tailLabel+" acc", appendPass)
		advance := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(cursor), Next: checkLabel}, LiteralOutputWithPath(map[string]interface{}{
			"cursor": pathPlaceholder("@slice:" + cursor + ".cursor[1:]"),
			"acc":    pathPlaceholder(acc + ".value"),
		}))
		advance.Parameters = map[string]interface{}{"cursor.$": cursor + ".cursor[1:]", "acc.$": acc + ".value"}
		advance.Result = nil
		tail = joinSubStates(stashAcc, newSubState(tailLabel, advance))
	case "filter":
		predOut, _ := getAslStateOutput(bodyStmts)
		keepLabel := tailLabel + " keep"
		skipLabel := tailLabel + " skip"

		appendPass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(acc), Next: checkLabel}, LiteralOutputWithPath(map[string]interface{}{
			"value": pathPlaceholder(intrinsicFormat("{},{}", pathArg(cursor+".acc"), intrinsicArgOf(intrinsicJsonToString(pathArg(itemPath))))),
		}))
		stashAcc := newSubState(keepLabel+" acc", appendPass)
		keepAdvance := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(cursor), Next: checkLabel}, LiteralOutputWithPath(map[string]interface{}{
			"cursor": pathPlaceholder("@slice:" + cursor + ".cursor[1:]"),
			"acc":    pathPlaceholder(acc + ".value"),
		}))
		keepAdvance.Parameters = map[string]interface{}{"cursor.$": cursor + ".cursor[1:]", "acc.$": acc + ".value"}
		keepAdvance.Result = nil
		keepSub := joinSubStates(stashAcc, newSubState(keepLabel, keepAdvance))

		skipAdvance := &NodeState{Type: "Pass", ResultPath: strp(cursor), Next: checkLabel}
		skipAdvance.Parameters = map[string]interface{}{"cursor.$": cursor + ".cursor[1:]", "acc.$": cursor + ".acc"}
		skipSub := newSubState(skipLabel, skipAdvance)

		dispatch := &NodeState{
			Type:    "Choice",
			Choices: []ChoiceRule{{Condition: leftCondition(predOut), Next: keepLabel}},
			Default: skipLabel,
		}
		tail = &SubState{
			startState: tailLabel,
			states: map[string]subNode{
				tailLabel: dispatch,
				keepLabel: keepSub,
				skipLabel: skipSub,
			},
		}
	default: // forEach
		advance := &NodeState{Type: "Pass", ResultPath: strp(cursor), Next: checkLabel}
		advance.Parameters = map[string]interface{}{"cursor.$": cursor + ".cursor[1:]", "acc": nil}
		tail = newSubState(tailLabel, advance)
	}

	out := c.freshHeap()
	var end *NodeState
	switch kind {
	case "map":
		end = passWithInput(&NodeState{Type: "Pass", ResultPath: strp(out), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
			"value": pathPlaceholder(intrinsicStringToJson(intrinsicArgOf(intrinsicFormat("{}]", pathArg(cursor+".acc"))))),
		}))
	case "forEach":
		end = &NodeState{Type: "Pass", Result: nil, ResultPath: strp(out + ".value"), Next: deferredNext}
	default: // filter: accumulate item strings the same way as map, finalize the same way
		end = passWithInput(&NodeState{Type: "Pass", ResultPath: strp(out), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
			"value": pathPlaceholder(intrinsicStringToJson(intrinsicArgOf(intrinsicFormat("{}]", pathArg(cursor+".acc"))))),
		}))
	}

	endSub := newSubState(endLabel, end)

	whole := &SubState{
		startState: initLabel,
		states: map[string]subNode{
			initLabel:   init,
			checkLabel:  check,
			assignLabel: joinSubStates(assignSub, bodyStmts, tail),
			endLabel:    endSub,
		},
	}
	c.popScope()

	full := joinSubStates(base, whole)
	result := out + ".value"
	if kind != "forEach" {
		// drop the leading null the accumulator string was seeded with
		result += "[1:]"
	}
	return chainOutput(full, PathOutput(result)), nil
}

func mustLookupName(c *Compiler, want string) string {
	id, _ := c.scope.lookup(want)
	name, _ := c.vars.Lookup(id)
	return name
}

// lowerArrayCallbackBody lowers an inline callback's statements,
// treating a bare expression (arrow-function shorthand body) as an
// implicit return.
func (c *Compiler) lowerArrayCallbackBody(fn *ast.Func) (*SubState, error) {
	body := fn.Body
	if len(body) == 1 {
		if es, ok := body[0].(*ast.ExprStmt); ok {
			body = []ast.Stmt{&ast.Return{Arg: es.X}}
		}
	}
	var subs []*SubState
	for _, s := range body {
		if ret, ok := s.(*ast.Return); ok {
			sub, err := c.lowerCallbackReturn(ret)
			if err != nil {
				return nil, err
			}
			subs = append(subs, sub)
			continue
		}
		sub, err := c.lowerStmt(s)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return joinSubStates(subs...), nil
}

// lowerCallbackReturn lowers a callback's return expression and
// attaches its Output to the resulting sub-state, so the caller
// (map's per-item value, filter's keep/skip predicate) can read it
// back via getAslStateOutput instead of losing it.
func (c *Compiler) lowerCallbackReturn(ret *ast.Return) (*SubState, error) {
	var out Output
	var sub *SubState
	if ret.Arg != nil {
		s, err := c.lowerExpr(ret.Arg)
		if err != nil {
			return nil, err
		}
		sub = s
		out, _ = getAslStateOutput(sub)
	} else {
		out = PathOutput("$.fnl_context.null")
	}
	return chainOutput(sub, out), nil
}

func (c *Compiler) lowerIncludes(base *SubState, arr Output, n *ast.Call) (*SubState, error) {
	if len(n.Args) != 1 {
		return nil, errf(CodeInvalidInput, n.Span, "includes expects exactly one argument")
	}
	valSub, err := c.lowerExpr(n.Args[0])
	if err != nil {
		return nil, err
	}
	valOut, _ := getAslStateOutput(valSub)
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicArrayContains(c.intrinsicArgFor(arr), c.intrinsicArgFor(valOut))),
	}))
	label := c.states.Alloc("includes")
	full := joinSubStates(base, valSub, newSubState(label, pass))
	return chainOutput(full, PathOutput(slot+".value")), nil
}

func (c *Compiler) lowerSplit(base *SubState, strOut Output, n *ast.Call) (*SubState, error) {
	if len(n.Args) != 1 {
		return nil, errf(CodeInvalidInput, n.Span, "split expects exactly one argument")
	}
	sepSub, err := c.lowerExpr(n.Args[0])
	if err != nil {
		return nil, err
	}
	sepOut, _ := getAslStateOutput(sepSub)
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"value": pathPlaceholder(intrinsicStringSplit(c.intrinsicArgFor(strOut), c.intrinsicArgFor(sepOut))),
	}))
	label := c.states.Alloc("split")
	full := joinSubStates(base, sepSub, newSubState(label, pass))
	return chainOutput(full, PathOutput(slot+".value")), nil
}

func (c *Compiler) lowerSlice(base *SubState, arr Output, n *ast.Call) (*SubState, error) {
	if !arr.IsPath() {
		return nil, errf(CodeInvalidCollectionAccess, n.Span, "slice requires an array path")
	}
	states, args, err := c.lowerList(n.Args)
	if err != nil {
		return nil, err
	}
	start := intrinsicArgOf("0")
	if len(args) > 0 {
		start = c.intrinsicArgFor(args[0])
	}
	end := intrinsicArgOf(intrinsicArgOf(intrinsicArrayLength(pathArg(arr.Path))).raw)
	if len(args) > 1 {
		end = c.intrinsicArgFor(args[1])
	}
	slot := c.freshHeap()
	pass := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"range": pathPlaceholder(intrinsicArrayRange(start, end, literalArg(1))),
	}))
	label := c.states.Alloc("slice range")
	full := joinSubStates(base, states, newSubState(label, pass))
	return chainOutput(full, PathOutput(slot+".range")), nil
}

// lowerJoin coerces each element of arr to a string and accumulates
// them with Format("{}{}{}", acc, sep, head) on every iteration after
// the first, in its own init/check/append loop rather than through
// lowerMapFilterForEach.
func (c *Compiler) lowerJoin(base *SubState, arr Output, n *ast.Call) (*SubState, error) {
	if !arr.IsPath() {
		return nil, errf(CodeInvalidCollectionAccess, n.Span, "join requires an array path")
	}
	sep := intrinsicArgOf("','")
	var sepStates *SubState
	if len(n.Args) > 0 {
		s, err := c.lowerExpr(n.Args[0])
		if err != nil {
			return nil, err
		}
		sepStates = s
		out, _ := getAslStateOutput(s)
		sep = c.intrinsicArgFor(out)
	}

	cursor := c.freshHeap()
	initLabel := c.states.Alloc("join init")
	checkLabel := c.states.Alloc("join check")
	firstLabel := c.states.Alloc("join first")
	restLabel := c.states.Alloc("join rest")
	endLabel := c.states.Alloc("join end")

	init := &NodeState{Type: "Pass", ResultPath: strp(cursor), Next: checkLabel}
	init.Parameters = map[string]interface{}{"cursor.$": arr.Path, "acc": ""}

	check := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: condIsPresent(cursor+".cursor[0]", true), Next: firstLabel}},
		Default: endLabel,
	}

	isFirst := condStringEquals(cursor+".acc", "")
	firstAppend := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(cursor), Next: deferredNext}, LiteralOutputWithPath(map[string]interface{}{
		"cursor": pathPlaceholder("@path:" + cursor + ".cursor[1:]"),
		"acc":    pathPlaceholder(intrinsicFormat("{}", intrinsicArgOf(intrinsicJsonToString(pathArg(cursor+".cursor[0]"))))),
	}))
	firstAppend.Parameters = map[string]interface{}{
		"cursor.$": cursor + ".cursor[1:]",
		"acc.$":    intrinsicJsonToString(pathArg(cursor + ".cursor[0]")),
	}
	restAppend := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(cursor), Next: deferredNext}, Output{})
	restAppend.Parameters = map[string]interface{}{
		"cursor.$": cursor + ".cursor[1:]",
		"acc.$":    intrinsicFormat("{}{}{}", pathArg(cursor+".acc"), sep, intrinsicArgOf(intrinsicJsonToString(pathArg(cursor+".cursor[0]")))),
	}

	dispatchFirst := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: isFirst, Next: firstLabel + " write"}},
		Default: restLabel,
	}

	loop := &SubState{
		startState: firstLabel,
		states: map[string]subNode{
			firstLabel:          dispatchFirst,
			firstLabel + " write": rewireDeferred(firstAppend, checkLabel),
			restLabel:           rewireDeferred(restAppend, checkLabel),
		},
	}

	end := &NodeState{Type: "Pass", InputPath: strp(cursor + ".acc"), Next: deferredNext}

	whole := &SubState{
		startState: initLabel,
		states: map[string]subNode{
			initLabel:  init,
			checkLabel: check,
			firstLabel: loop,
			endLabel:   end,
		},
	}

	full := joinSubStates(base, sepStates, whole)
	return chainOutput(full, PathOutput(cursor+".acc")), nil
}
