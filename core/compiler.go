package core

import (
	"github.com/aslcompile/aslc/ast"
)

// LookupService resolves a call's callee expression to an Integration
// descriptor, if any. It is the out-of-scope collaborator named in
// the input contract: the compiler only ever calls Resolve and the
// hook Integration.Lower returns.
type LookupService interface {
	Resolve(callee ast.Expr) (Integration, bool)
}

// CompileOptions configures one compilation, the way core.Control and
// core.StepProps configure one machine step in the teacher package --
// a plain struct threaded through every call rather than a pile of
// positional parameters.
type CompileOptions struct {
	// Role is an opaque identifier for the role the generated
	// machine runs under, passed through unmodified to every
	// Integration.Lower call.
	Role string

	// Lookup resolves call expressions to integrations. Nil means no
	// call expression is ever treated as an integration.
	Lookup LookupService

	// Trace, when non-nil, receives a human-readable note for
	// notable lowering decisions (constant folds, disambiguation
	// choices). Inert by default; the report package turns it on.
	Trace *[]string
}

func (o *CompileOptions) trace(note string) {
	if o == nil || o.Trace == nil {
		return
	}
	*o.Trace = append(*o.Trace, note)
}

// Compiler holds the mutable allocators owned by a single
// compilation. None of it is safe for concurrent use; the
// specification is explicit that one compilation is single-threaded
// and synchronous.
type Compiler struct {
	opts *CompileOptions

	states *stateNames
	vars   *varNames
	heap   *heapSlots

	scope       *scope
	contextDecl *ast.Ident // non-nil once the root function's 2nd param is seen
	handlers    []handlerFrame

	// returnTemplate is pushed by lowerTry for the duration of lowering
	// a try/catch body that has a finally clause, and popped before
	// finally itself is lowered. nil means "return" terminates the
	// function outright; non-nil means it has to stash its value and
	// route through LabelReturnNext so the pending finally runs first.
	returnTemplate *returnTemplate
}

// returnTemplate names the heap slot an enclosing try/finally expects
// a pending return value parked in while its finally block runs.
type returnTemplate struct {
	slot string
}

// scope is one lexical block's bindings: source identifier name to
// the *ast.Ident node that declared it. Lookup walks outward through
// parents.
type scope struct {
	parent *scope
	vars   map[string]*ast.Ident
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: map[string]*ast.Ident{}}
}

func (s *scope) declare(id *ast.Ident) {
	s.vars[id.Name] = id
}

func (s *scope) lookup(name string) (*ast.Ident, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if id, ok := sc.vars[name]; ok {
			return id, true
		}
	}
	return nil, false
}

// Compile lowers fn into a finalized ASL document. It is the single
// entry point; everything else in this package is reachable only
// through it or through tests that exercise individual components
// directly.
func Compile(fn *ast.Func, opts *CompileOptions) (*ASLDoc, error) {
	if opts == nil {
		opts = &CompileOptions{}
	}
	c := &Compiler{
		opts:   opts,
		states: newStateNames(),
		vars:   newVarNames(),
		heap:   &heapSlots{},
		scope:  newScope(nil),
	}

	normalized, err := normalizeFunc(fn)
	if err != nil {
		return nil, err
	}

	for i, p := range normalized.Params {
		id := &ast.Ident{Name: p.Name}
		c.scope.declare(id)
		if i == 1 {
			c.contextDecl = id
		} else {
			c.vars.Alloc(id, sanitizeIdent(p.Name))
		}
	}

	body, err := c.lowerBlockBody(normalized.Body)
	if err != nil {
		return nil, err
	}

	init := newSubState("Initialize Functionless Context", &NodeState{
		Type:       "Pass",
		Result:     nil,
		ResultPath: strp("$.fnl_context.null"),
		Next:       deferredNext,
	})

	full := joinSubStates(init, body)
	return toStates(init.startState, terminalizeDeferred(full), c.states), nil
}

// terminalizeDeferred is a defensive backstop: the normalizer
// guarantees the function body ends in a terminal statement (return
// or throw), so no deferred Next should survive to the root. If one
// does (a normalizer bug, or a body that somehow has no statements),
// route it to a synthesized Fail rather than emit invalid ASL.
func terminalizeDeferred(sub *SubState) *SubState {
	fail := &NodeState{Type: "Fail", Error: "Unexpected_Error", Cause: "function body did not terminate"}
	return updateDeferredNextStates("\x00unreachable", sub.withExtra("\x00unreachable", fail))
}

func (s *SubState) withExtra(label string, n *NodeState) *SubState {
	c := s.copy()
	c.states[label] = n
	return c
}

func strp(s string) *string { return &s }

// identPath resolves an already-declared identifier to its lowering
// Output: "$$" for the root function's context parameter, "$.<name>"
// for everything else.
func (c *Compiler) identPath(id *ast.Ident) (Output, error) {
	decl, ok := c.scope.lookup(id.Name)
	if !ok {
		return Output{}, &UnknownIdentifier{Name: id.Name, Span: id.Span}
	}
	if c.contextDecl != nil && decl == c.contextDecl {
		return PathOutput("$$"), nil
	}
	name, ok := c.vars.Lookup(decl)
	if !ok {
		name = c.vars.Alloc(decl, sanitizeIdent(decl.Name))
	}
	return PathOutput("$." + name), nil
}

// declareFresh allocates a new variable name for a freshly-declared
// identifier (VarDecl, function param, catch param, loop variable)
// and binds it in the current scope.
func (c *Compiler) declareFresh(id *ast.Ident) string {
	c.scope.declare(id)
	return c.vars.Alloc(id, sanitizeIdent(id.Name))
}

func (c *Compiler) freshHeap() string {
	return c.heap.Alloc()
}

func (c *Compiler) pushScope() {
	c.scope = newScope(c.scope)
}

func (c *Compiler) popScope() {
	if c.scope.parent != nil {
		c.scope = c.scope.parent
	}
}
