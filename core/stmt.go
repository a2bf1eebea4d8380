package core

import "github.com/aslcompile/aslc/ast"

// lowerBlockBody lowers a function/block body: a sequence of
// statements joined in order.
func (c *Compiler) lowerBlockBody(stmts []ast.Stmt) (*SubState, error) {
	var subs []*SubState
	for _, s := range stmts {
		sub, err := c.lowerStmt(s)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return joinSubStates(subs...), nil
}

func (c *Compiler) lowerStmt(s ast.Stmt) (*SubState, error) {
	switch n := s.(type) {
	case *ast.Block:
		c.pushScope()
		sub, err := c.lowerBlockBody(n.Body)
		c.popScope()
		return sub, err
	case *ast.VarDecl:
		return c.lowerVarDecl(n)
	case *ast.ExprStmt:
		sub, err := c.lowerExpr(n.X)
		if err != nil {
			return nil, err
		}
		return sub, nil
	case *ast.If:
		return c.lowerIf(n)
	case *ast.For:
		return c.lowerFor(n)
	case *ast.ForOf:
		return c.lowerForOf(n)
	case *ast.ForIn:
		return c.lowerForIn(n)
	case *ast.While:
		return c.lowerWhile(n)
	case *ast.DoWhile:
		return c.lowerDoWhile(n)
	case *ast.Return:
		return c.lowerReturn(n)
	case *ast.Throw:
		return c.lowerThrow(n)
	case *ast.Try:
		return c.lowerTry(n)
	case *ast.Break:
		return c.lowerBreak(n)
	case *ast.Continue:
		return c.lowerContinue(n)
	default:
		return nil, errf(CodeUnsupportedFeature, s.SourceSpan(), "unsupported statement")
	}
}

func (c *Compiler) lowerVarDecl(n *ast.VarDecl) (*SubState, error) {
	var subs []*SubState
	for _, d := range n.Decls {
		var out Output
		var init *SubState
		if d.Init != nil {
			s, err := c.lowerExpr(d.Init)
			if err != nil {
				return nil, err
			}
			init = s
			out, _ = getAslStateOutput(s)
		} else {
			out = PathOutput("$.fnl_context.null")
		}
		init, out = c.normalizeOutputToJsonPathOrLiteral(init, out)
		bound, err := c.bindPattern(d.Target, out)
		if err != nil {
			return nil, err
		}
		subs = append(subs, joinSubStates(init, bound))
	}
	return joinSubStates(subs...), nil
}

// lowerIf lowers an if/else-if chain one link at a time: each link
// runs the states that compute its test, then an "if test" Choice
// routes to its "if body" when the test holds and otherwise to the
// next link or the else block ("if else"); with no final else, the
// Choice defaults to an "if fallthrough" Pass.
func (c *Compiler) lowerIf(n *ast.If) (*SubState, error) {
	return c.lowerIfChain(n, 0)
}

func (c *Compiler) lowerIfChain(n *ast.If, depth int) (*SubState, error) {
	test, err := c.lowerExpr(n.Test)
	if err != nil {
		return nil, err
	}
	testOut, _ := getAslStateOutput(test)

	c.pushScope()
	thenSub, err := c.lowerBlockBody(n.Then.Body)
	c.popScope()
	if err != nil {
		return nil, err
	}

	var elseSub *SubState
	if n.Else != nil {
		switch e := n.Else.(type) {
		case *ast.If:
			elseSub, err = c.lowerIfChain(e, depth+1)
		case *ast.Block:
			c.pushScope()
			elseSub, err = c.lowerBlockBody(e.Body)
			c.popScope()
		}
		if err != nil {
			return nil, err
		}
	}

	thenLabel := c.states.Alloc("if body")
	elseLabel := c.states.Alloc("if else")
	dispatchLabel := c.states.Alloc("if test")

	if thenSub == nil {
		thenSub = pureOutput(Output{})
	}

	branches := map[string]subNode{
		thenLabel: thenSub,
	}
	defaultTarget := ""
	if elseSub != nil {
		branches[elseLabel] = elseSub
		defaultTarget = elseLabel
	}

	choice := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: leftCondition(testOut), Next: thenLabel}},
	}
	if defaultTarget != "" {
		choice.Default = defaultTarget
	} else {
		// no else branch: the Choice needs a Default too, since
		// every Choice state requires one. Route straight past the
		// if via a deferred jump shared with the then-branch.
		passLabel := c.states.Alloc("if fallthrough")
		branches[passLabel] = &NodeState{Type: "Pass", Next: deferredNext}
		choice.Default = passLabel
	}
	branches[dispatchLabel] = choice

	return joinSubStates(test, &SubState{startState: dispatchLabel, states: branches}), nil
}

// loopLabels is the state-name bundle shared by every loop-lowering
// routine so break/continue resolution and body construction agree.
type loopLabels struct {
	check, body, increment, exit string
}

func (c *Compiler) lowerFor(n *ast.For) (*SubState, error) {
	c.pushScope()
	defer c.popScope()

	var initSub *SubState
	if n.Init != nil {
		s, err := c.lowerStmt(n.Init)
		if err != nil {
			return nil, err
		}
		initSub = s
	}

	lbl := loopLabels{
		check:     c.states.Alloc("for check"),
		body:      c.states.Alloc("for body"),
		increment: c.states.Alloc("for increment"),
		exit:      c.states.Alloc("for exit"),
	}

	var testOut Output
	var testSub *SubState
	if n.Test != nil {
		s, err := c.lowerExpr(n.Test)
		if err != nil {
			return nil, err
		}
		testSub = s
		testOut, _ = getAslStateOutput(s)
	}

	bodySub, err := c.lowerBlockBody(n.Body.Body)
	if err != nil {
		return nil, err
	}
	bodySub = resolveLabel(bodySub, LabelBreakNext, lbl.exit)
	bodySub = resolveLabel(bodySub, LabelContinueNext, lbl.increment)
	bodySub = updateDeferredNextStates(lbl.increment, bodySub)

	var updateSub *SubState
	if n.Update != nil {
		s, err := c.lowerExpr(n.Update)
		if err != nil {
			return nil, err
		}
		updateSub = s
	}
	incSub := joinSubStates(updateSub)
	if incSub == nil {
		incSub = pureOutput(Output{})
	}
	incSub = updateDeferredNextStates(lbl.check, incSub)

	var checkState subNode
	if testSub == nil {
		checkState = &NodeState{Type: "Pass", Next: lbl.body}
	} else {
		checkState = buildLoopDispatch(lbl.check, testOut, lbl.body, lbl.exit, testSub)
	}

	whole := &SubState{
		startState: lbl.check,
		states: map[string]subNode{
			lbl.check:     checkState,
			lbl.body:      bodySub,
			lbl.increment: incSub,
			lbl.exit:      &NodeState{Type: "Pass", Next: deferredNext},
		},
	}
	return joinSubStates(initSub, whole), nil
}

// buildLoopDispatch wires a condition-bearing sub-state (testSub,
// whose states must run before the test can be read) into a Choice
// between bodyLabel and exitLabel, returning the combined sub-state
// under key check.
func buildLoopDispatch(check string, testOut Output, bodyLabel, exitLabel string, testSub *SubState) subNode {
	dispatchLabel := check + " dispatch"
	choice := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: leftCondition(testOut), Next: bodyLabel}},
		Default: exitLabel,
	}
	wired := updateDeferredNextStates(dispatchLabel, testSub)
	return &SubState{
		startState: wired.startState,
		states: mergeStates(wired.states, map[string]subNode{dispatchLabel: choice}),
	}
}

func mergeStates(a, b map[string]subNode) map[string]subNode {
	out := make(map[string]subNode, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (c *Compiler) lowerForOf(n *ast.ForOf) (*SubState, error) {
	rightSub, err := c.lowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	rightOut, _ := getAslStateOutput(rightSub)
	if !rightOut.IsPath() {
		return nil, errf(CodeInvalidCollectionAccess, n.Span, "for-of requires an array path")
	}

	c.pushScope()
	defer c.popScope()

	cursor := c.freshHeap()
	initLabel := c.states.Alloc("for-of init")
	lbl := loopLabels{
		check: c.states.Alloc("for-of check"),
		body:  c.states.Alloc("for-of body"),
		exit:  c.states.Alloc("for-of exit"),
	}
	tailLabel := c.states.Alloc("for-of tail")

	init := &NodeState{Type: "Pass", ResultPath: strp(cursor), Next: lbl.check}
	init.Parameters = map[string]interface{}{"cursor.$": rightOut.Path}

	check := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: condIsPresent(cursor+"[0]", true), Next: lbl.body}},
		Default: lbl.exit,
	}

	bindSub, err := c.bindPattern(n.Decl, PathOutput(cursor+"[0]"))
	if err != nil {
		return nil, err
	}

	bodySub, err := c.lowerBlockBody(n.Body.Body)
	if err != nil {
		return nil, err
	}
	body := joinSubStates(bindSub, bodySub)
	body = resolveLabel(body, LabelBreakNext, lbl.exit)
	body = resolveLabel(body, LabelContinueNext, tailLabel)
	body = updateDeferredNextStates(tailLabel, body)

	tail := &NodeState{Type: "Pass", ResultPath: strp(cursor), Next: lbl.check}
	tail.Parameters = map[string]interface{}{"cursor.$": cursor + "[1:]"}

	whole := &SubState{
		startState: initLabel,
		states: map[string]subNode{
			initLabel: init,
			lbl.check: check,
			lbl.body:  body,
			tailLabel: tail,
			lbl.exit:  &NodeState{Type: "Pass", Next: deferredNext},
		},
	}
	return joinSubStates(rightSub, whole), nil
}

// lowerForIn mirrors for-of but zips the iterable into {index, item}
// pairs first (via a Map state) and binds the loop variable to the
// index half of each pair.
func (c *Compiler) lowerForIn(n *ast.ForIn) (*SubState, error) {
	rightSub, err := c.lowerExpr(n.Right)
	if err != nil {
		return nil, err
	}
	rightOut, _ := getAslStateOutput(rightSub)
	if !rightOut.IsPath() {
		return nil, errf(CodeInvalidCollectionAccess, n.Span, "for-in requires an array path")
	}

	c.pushScope()
	defer c.popScope()

	zipped := c.freshHeap()
	zipLabel := c.states.Alloc("for-in zip")
	zip := &NodeState{
		Type:      "Map",
		ItemsPath: rightOut.Path,
		ResultPath: strp(zipped),
		Iterator: &ASLDoc{
			StartAt: "Pair",
			States: map[string]*NodeState{
				"Pair": {
					Type: "Pass",
					Parameters: map[string]interface{}{
						"index.$": "$$.Map.Item.Index",
						"item.$":  "$$.Map.Item.Value",
					},
					End: true,
				},
			},
		},
		Next: deferredNext,
	}

	cursor := c.freshHeap()
	initLabel := c.states.Alloc("for-in init")
	lbl := loopLabels{
		check: c.states.Alloc("for-in check"),
		body:  c.states.Alloc("for-in body"),
		exit:  c.states.Alloc("for-in exit"),
	}
	tailLabel := c.states.Alloc("for-in tail")

	init := &NodeState{Type: "Pass", ResultPath: strp(cursor), Next: lbl.check}
	init.Parameters = map[string]interface{}{"cursor.$": zipped}

	check := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: condIsPresent(cursor+"[0]", true), Next: lbl.body}},
		Default: lbl.exit,
	}

	// the source array's item at the current index is available via
	// arr[i] using the ordinary dynamic-index lowering (ArrayGetItem);
	// only the index itself needs a binding here.
	bindSub, err := c.bindPattern(n.Decl, PathOutput(cursor+"[0].index"))
	if err != nil {
		return nil, err
	}

	bodySub, err := c.lowerBlockBody(n.Body.Body)
	if err != nil {
		return nil, err
	}
	body := joinSubStates(bindSub, bodySub)
	body = resolveLabel(body, LabelBreakNext, lbl.exit)
	body = resolveLabel(body, LabelContinueNext, tailLabel)
	body = updateDeferredNextStates(tailLabel, body)

	tail := &NodeState{Type: "Pass", ResultPath: strp(cursor), Next: lbl.check}
	tail.Parameters = map[string]interface{}{"cursor.$": cursor + "[1:]"}

	loop := &SubState{
		startState: initLabel,
		states: map[string]subNode{
			initLabel: init,
			lbl.check: check,
			lbl.body:  body,
			tailLabel: tail,
			lbl.exit:  &NodeState{Type: "Pass", Next: deferredNext},
		},
	}

	zipSub := newSubState(zipLabel, zip)
	return joinSubStates(rightSub, zipSub, loop), nil
}

func (c *Compiler) lowerWhile(n *ast.While) (*SubState, error) {
	c.pushScope()
	defer c.popScope()

	testSub, err := c.lowerExpr(n.Test)
	if err != nil {
		return nil, err
	}
	testOut, _ := getAslStateOutput(testSub)

	lbl := loopLabels{
		check: c.states.Alloc("while check"),
		body:  c.states.Alloc("while body"),
		exit:  c.states.Alloc("while exit"),
	}

	bodySub, err := c.lowerBlockBody(n.Body.Body)
	if err != nil {
		return nil, err
	}
	bodySub = resolveLabel(bodySub, LabelBreakNext, lbl.exit)
	bodySub = resolveLabel(bodySub, LabelContinueNext, lbl.check)
	bodySub = updateDeferredNextStates(lbl.check, bodySub)

	checkState := buildLoopDispatch(lbl.check, testOut, lbl.body, lbl.exit, testSub)

	whole := &SubState{
		startState: lbl.check,
		states: map[string]subNode{
			lbl.check: checkState,
			lbl.body:  bodySub,
			lbl.exit:  &NodeState{Type: "Pass", Next: deferredNext},
		},
	}
	return whole, nil
}

func (c *Compiler) lowerDoWhile(n *ast.DoWhile) (*SubState, error) {
	c.pushScope()
	defer c.popScope()

	lbl := loopLabels{
		body: c.states.Alloc("do body"),
		exit: c.states.Alloc("do exit"),
	}
	checkLabel := c.states.Alloc("do check")

	bodySub, err := c.lowerBlockBody(n.Body.Body)
	if err != nil {
		return nil, err
	}
	bodySub = resolveLabel(bodySub, LabelBreakNext, lbl.exit)
	bodySub = resolveLabel(bodySub, LabelContinueNext, checkLabel)
	bodySub = updateDeferredNextStates(checkLabel, bodySub)

	testSub, err := c.lowerExpr(n.Test)
	if err != nil {
		return nil, err
	}
	testOut, _ := getAslStateOutput(testSub)
	checkState := buildLoopDispatch(checkLabel, testOut, lbl.body, lbl.exit, testSub)

	whole := &SubState{
		startState: lbl.body,
		states: map[string]subNode{
			lbl.body:   bodySub,
			checkLabel: checkState,
			lbl.exit:   &NodeState{Type: "Pass", Next: deferredNext},
		},
	}
	return whole, nil
}

func (c *Compiler) lowerReturn(n *ast.Return) (*SubState, error) {
	var out Output
	var sub *SubState
	if n.Arg != nil {
		s, err := c.lowerExpr(n.Arg)
		if err != nil {
			return nil, err
		}
		sub = s
		out, _ = getAslStateOutput(s)
	} else {
		out = PathOutput("$.fnl_context.null")
	}
	sub, out = c.normalizeOutputToJsonPathOrLiteral(sub, out)

	label := c.states.Alloc("return")
	return joinSubStates(sub, newSubState(label, c.terminalOrBubble(out))), nil
}

// terminalOrBubble builds the Pass that finishes a return carrying
// out: terminal (End:true, replacing the whole input) when no
// enclosing try has a pending finally, or -- inside one -- a stash
// into its slot followed by LabelReturnNext, which bubbles outward
// until the nearest lowerTry with a finally resolves it to that
// finally block's return-path entry.
func (c *Compiler) terminalOrBubble(out Output) *NodeState {
	if c.returnTemplate == nil {
		return passWithInput(&NodeState{Type: "Pass", End: true}, out)
	}
	return passWithInput(&NodeState{Type: "Pass", ResultPath: strp(c.returnTemplate.slot), Next: LabelReturnNext}, out)
}

// lowerThrow accepts only new Error(msg), Error(msg), or
// StepFunctionError(name, cause); anything else is rejected. It
// resolves to {errorName, causeJson} and routes via the Error Router.
func (c *Compiler) lowerThrow(n *ast.Throw) (*SubState, error) {
	envelope, err := c.throwEnvelope(n.Arg)
	if err != nil {
		return nil, err
	}

	route := c.resolveThrow()
	if route.terminal {
		fail := &NodeState{Type: "Fail", Error: envelope.name, Cause: envelope.causeJSON}
		return newSubState(c.states.Alloc("throw"), fail), nil
	}

	pass := &NodeState{
		Type:   "Pass",
		Result: map[string]interface{}{"Error": envelope.name, "Cause": envelope.causeJSON},
		Next:   route.catchLabel,
	}
	route.applyResultPath(pass)
	return newSubState(c.states.Alloc("throw"), pass), nil
}

type throwEnvelopeVal struct {
	name      string
	causeJSON string
}

func (c *Compiler) throwEnvelope(arg ast.Expr) (throwEnvelopeVal, error) {
	var callee ast.Expr
	var args []ast.Expr
	var span ast.Span
	switch n := arg.(type) {
	case *ast.New:
		callee, args, span = n.Callee, n.Args, n.Span
	case *ast.Call:
		callee, args, span = n.Callee, n.Args, n.Span
	default:
		return throwEnvelopeVal{}, errf(CodeThrowMustBeError, arg.SourceSpan(), "throw target must be Error or StepFunctionError")
	}
	id, ok := callee.(*ast.Ident)
	if !ok || (id.Name != "Error" && id.Name != "StepFunctionError") {
		return throwEnvelopeVal{}, errf(CodeThrowMustBeError, arg.SourceSpan(), "throw target must be Error or StepFunctionError")
	}
	sub, err := c.lowerErrorConstruction(id.Name, args, span)
	if err != nil {
		return throwEnvelopeVal{}, err
	}
	return envelopeFromSub(sub)
}

func envelopeFromSub(sub *SubState) (throwEnvelopeVal, error) {
	out, _ := getAslStateOutput(sub)
	lit, ok := out.constLiteral()
	if !ok {
		return throwEnvelopeVal{}, errf(CodeInvalidInput, ast.Span{}, "throw argument must be constant-foldable")
	}
	m, _ := lit.(map[string]interface{})
	name, _ := m["__errorName__"].(string)
	// __cause__ is always built by lowerErrorConstruction from this
	// package's own literal representation (string/float64/bool/nil
	// and maps/slices of those), never from a decoder that could hand
	// back a non-JSON map type, so it needs no normalizing pass before
	// jsonArg's own json.Marshal renders it.
	js, err := jsonArg(m["__cause__"])
	if err != nil {
		return throwEnvelopeVal{}, err
	}
	return throwEnvelopeVal{name: name, causeJSON: js}, nil
}

// lowerTry produces a sub-state with a try label whose internal
// throws route to __catch, resolved here to the catch block's start.
// If finally is present, it runs on both the normal-completion exit
// from whole and on the pending-return exit bubbled up by an early
// `return` inside try or catch (see lowerFinally).
func (c *Compiler) lowerTry(n *ast.Try) (*SubState, error) {
	var catchResultPath string
	var catchVarName string
	if n.CatchParam != nil {
		if id, ok := n.CatchParam.(*ast.Ident); ok {
			catchVarName = c.declareFresh(id)
			catchResultPath = "$." + catchVarName
		}
	}

	// a return inside try/catch must run this try's finally (if any)
	// before actually returning; pushed for the duration of lowering
	// try and catch only -- finally itself runs under the enclosing
	// context's own notion of return, not its own.
	var pendingReturnSlot string
	outerTemplate := c.returnTemplate
	if n.Finally != nil {
		pendingReturnSlot = c.freshHeap()
		c.returnTemplate = &returnTemplate{slot: pendingReturnSlot}
	}

	// only intercept throws when there's a catch clause to route them
	// to; a bare try/finally lets throws bubble to whatever handler
	// was already active.
	if n.Catch != nil {
		c.pushHandler(handlerFrame{catchLabel: LabelCatch, resultPath: catchResultPath})
	}
	trySub, err := c.lowerBlockBody(n.Block.Body)
	if n.Catch != nil {
		c.popHandler()
	}
	if err != nil {
		return nil, err
	}

	var catchSub *SubState
	if n.Catch != nil {
		var preamble *SubState
		if catchVarName != "" {
			// a Task participating in try produces the two-field
			// {Error, Cause} envelope with Cause JSON-encoded;
			// parse it before the catch body runs so Cause reads as
			// an object.
			pass := &NodeState{
				Type: "Pass",
				Parameters: map[string]interface{}{
					"Error.$": catchResultPath + ".Error",
					"Cause.$": intrinsicStringToJson(pathArg(catchResultPath + ".Cause")),
				},
				ResultPath: strp(catchResultPath),
				Next:       deferredNext,
			}
			preamble = newSubState(c.states.Alloc("parse catch cause"), pass)
		}
		body, err := c.lowerBlockBody(n.Catch.Body)
		if err != nil {
			return nil, err
		}
		catchSub = joinSubStates(preamble, body)
	}

	c.returnTemplate = outerTemplate

	tryLabel := c.states.Alloc("try")
	states := map[string]subNode{tryLabel: trySub}
	// no catch clause is only legal with finally present; a throw
	// inside the try body then already resolved to the enclosing
	// handler at lowering time (this try never pushed its own frame's
	// catch as reachable), so there's no __catch left to rewire here.
	var catchLabel string
	if catchSub != nil {
		catchLabel = c.states.Alloc("catch")
		states[catchLabel] = catchSub
	}

	whole := &SubState{startState: tryLabel, states: states}
	if catchLabel != "" {
		whole = resolveLabel(whole, LabelCatch, catchLabel)
	}

	if n.Finally == nil {
		return whole, nil
	}
	return c.lowerFinally(n, whole, pendingReturnSlot)
}

// lowerFinally splices the finally body onto both exits of whole: the
// normal-completion path, and the pending-return path that early
// returns from inside try/catch bubble to via LabelReturnNext. ASL has
// no subroutine call, so the body is lowered twice -- once per path --
// rather than shared; the return path's copy ends by resuming whatever
// this try's own enclosing context would have done with the value,
// terminating the function if nothing encloses it.
func (c *Compiler) lowerFinally(n *ast.Try, whole *SubState, pendingReturnSlot string) (*SubState, error) {
	returnLabel := c.states.Alloc("finally for pending return")
	// only whole's own pending-return exits target returnLabel; a
	// return inside the finally body itself is lowered below under the
	// restored outer template and must keep whatever bubble target
	// that implies, so resolve LabelReturnNext against whole alone.
	whole = resolveLabel(whole, LabelReturnNext, returnLabel)

	normalSub, err := c.lowerBlockBody(n.Finally.Body)
	if err != nil {
		return nil, err
	}
	spliced := joinSubStates(whole, normalSub)

	returnSub, err := c.lowerBlockBody(n.Finally.Body)
	if err != nil {
		return nil, err
	}
	resumeLabel := c.states.Alloc("finally resume pending return")
	resume := newSubState(resumeLabel, c.terminalOrBubble(PathOutput(pendingReturnSlot)))
	returnSub = joinSubStates(returnSub, resume)

	merged := spliced.copy()
	merged.states[returnLabel] = returnSub
	return merged, nil
}

func (c *Compiler) lowerBreak(n *ast.Break) (*SubState, error) {
	pass := &NodeState{Type: "Pass", Next: LabelBreakNext}
	return newSubState(c.states.Alloc("break"), pass), nil
}

func (c *Compiler) lowerContinue(n *ast.Continue) (*SubState, error) {
	pass := &NodeState{Type: "Pass", Next: LabelContinueNext}
	return newSubState(c.states.Alloc("continue"), pass), nil
}
