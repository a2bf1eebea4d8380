package core

// handlerFrame records one enclosing try's catch target, pushed by
// the statement lowerer while lowering a try block and popped once
// both the try and catch bodies are lowered.
type handlerFrame struct {
	// catchLabel is the reserved local label a throw inside this
	// frame's try body must target.
	catchLabel string

	// resultPath is where the error envelope should land so the
	// catch clause's declared variable (if any) can read it. "" means
	// the catch declares no variable: route with ResultPath nil.
	resultPath string

	// closureBoundary marks a frame whose try sits inside a
	// Map/Parallel worker body. resolveThrow does not read it.
	closureBoundary bool
}

// errorRoute is what the statement lowerer needs to emit a throwing
// site: either "terminal" (emit Fail) or "catch" (emit a transition
// to catchLabel with resultPath).
type errorRoute struct {
	terminal   bool
	catchLabel string
	resultPath string // "" means ResultPath: null
}

// resolveThrow routes a throw to the innermost frame on the handler
// stack, or reports it terminal when the stack is empty. Closure
// boundaries are not consulted: a throw always reaches the innermost
// frame, whatever closureBoundary says.
func (c *Compiler) resolveThrow() errorRoute {
	for i := len(c.handlers) - 1; i >= 0; i-- {
		h := c.handlers[i]
		return errorRoute{catchLabel: h.catchLabel, resultPath: h.resultPath}
	}
	return errorRoute{terminal: true}
}

func (c *Compiler) pushHandler(h handlerFrame) {
	c.handlers = append(c.handlers, h)
}

func (c *Compiler) popHandler() {
	c.handlers = c.handlers[:len(c.handlers)-1]
}

// applyResultPath applies a route's ResultPath convention to a
// NodeState that's about to throw (a Pass carrying the error
// envelope, or a Task's Catch rule).
func (r errorRoute) applyResultPath(n *NodeState) {
	if r.resultPath == "" {
		n.ResultPath = nil
		return
	}
	n.ResultPath = strp(r.resultPath)
}
