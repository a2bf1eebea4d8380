package core

import (
	"strconv"

	"github.com/aslcompile/aslc/ast"
)

// Integration is the external hook a call expression can resolve to
// (C10). Lower receives the already-lowered argument outputs and
// either produces a pure Output (for transforms with no state of
// their own) or a Task-bearing sub-state plus the Output that names
// the Task's result; the bridge in expr.go splices whichever comes
// back and attaches the host's Catch routing to every Task inside it.
type Integration interface {
	Lower(c *Compiler, call *ast.Call, args []Output) (*SubState, Output, error)
}

// TaskIntegration is the common case: one Task state invoking Resource
// with the lowered call arguments as Parameters, honoring whatever
// Retry policy and timeout the descriptor carries. QualifiedName is
// carried only for diagnostics (trace notes, report rendering).
type TaskIntegration struct {
	QualifiedName  string
	Resource       string
	TimeoutSeconds int
	Retry          []RetryRule

	// ParamNames labels each positional call argument for the Task's
	// Parameters object: ParamNames[i] receives args[i]. A call with
	// more arguments than names is rejected; fewer is fine (the
	// service call's own optional parameters are simply omitted).
	ParamNames []string
}

func (t *TaskIntegration) Lower(c *Compiler, call *ast.Call, args []Output) (*SubState, Output, error) {
	if len(args) > len(t.ParamNames) {
		return nil, Output{}, errf(CodeInvalidInput, call.Span, t.QualifiedName+" takes at most "+strconv.Itoa(len(t.ParamNames))+" arguments")
	}
	params := map[string]interface{}{}
	for i, a := range args {
		if a.IsCondition() {
			return nil, Output{}, errf(CodeInvalidInput, call.Span, "a comparison or logical expression cannot be passed directly as a call argument; assign it to a variable first")
		}
		assignIntrinsicParam(params, t.ParamNames[i], a)
	}

	slot := c.freshHeap()
	task := &NodeState{
		Type:           "Task",
		Resource:       t.Resource,
		Parameters:     params,
		TimeoutSeconds: t.TimeoutSeconds,
		Retry:          t.Retry,
		ResultPath:     strp(slot),
		Next:           deferredNext,
		Comment:        t.QualifiedName,
	}
	label := c.states.Alloc(t.QualifiedName)
	return newSubState(label, task), PathOutput(slot), nil
}

// assignIntrinsicParam writes one Parameters entry honoring the
// ".$"-suffix convention: a path value gets the suffix, a literal
// does not.
func assignIntrinsicParam(params map[string]interface{}, name string, out Output) {
	switch {
	case out.IsPath():
		params[name+".$"] = out.Path
	default:
		if lit, ok := out.constLiteral(); ok {
			params[name] = lit
		} else if v, ok := out.Value.(map[string]interface{}); ok {
			params[name] = dotizePaths(v)
		}
	}
}

// Registry resolves a qualified call name (e.g. "ddb.getItem") to its
// TaskIntegration descriptor, implementing LookupService over whatever
// set of manifests was loaded for this compilation -- the integration
// package is the concrete loader; core only depends on this lookup
// shape.
type Registry struct {
	byName map[string]*TaskIntegration
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*TaskIntegration{}}
}

func (r *Registry) Register(name string, t *TaskIntegration) {
	r.byName[name] = t
}

// Resolve implements LookupService by recognizing `a.b.c(...)` member
// chains rooted at an identifier and joining them with ".".
func (r *Registry) Resolve(callee ast.Expr) (Integration, bool) {
	name, ok := qualifiedCallName(callee)
	if !ok {
		return nil, false
	}
	t, ok := r.byName[name]
	return t, ok
}

func qualifiedCallName(e ast.Expr) (string, bool) {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name, true
	case *ast.Member:
		if n.Computed {
			return "", false
		}
		base, ok := qualifiedCallName(n.Object)
		if !ok {
			return "", false
		}
		return base + "." + n.Prop, true
	default:
		return "", false
	}
}
