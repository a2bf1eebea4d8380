package core

// Output is the result of lowering any expression: exactly one of
// JsonPath, Literal, or Condition. The three forms are disjoint;
// callers convert explicitly via normalizeOutputToJsonPath or
// normalizeOutputToJsonPathOrLiteral rather than branching ad hoc on
// the zero values below.
type Output struct {
	kind outputKind

	// Path is set iff kind == outputPath. It begins with "$." or
	// "$$".
	Path string

	// Value and ContainsPath are set iff kind == outputLiteral.
	// ContainsPath is true when some part of Value is itself a
	// JSON-Path-valued placeholder that must be rendered through a
	// Parameters object with ".$"-suffixed keys rather than a bare
	// Result.
	Value        interface{}
	ContainsPath bool

	// Cond is set iff kind == outputCondition: an unmaterialized
	// Choice-rule predicate.
	Cond *Condition
}

type outputKind int

const (
	outputPath outputKind = iota
	outputLiteral
	outputCondition
)

// PathOutput wraps a JSON Path string as an Output.
func PathOutput(path string) Output {
	return Output{kind: outputPath, Path: path}
}

// LiteralOutput wraps a constant JSON value as an Output.
func LiteralOutput(v interface{}) Output {
	return Output{kind: outputLiteral, Value: v}
}

// LiteralOutputWithPath wraps a partially-resolved literal: a JSON
// value (typically a map or slice) that embeds JSON Path references
// as part of its structure.
func LiteralOutputWithPath(v interface{}) Output {
	return Output{kind: outputLiteral, Value: v, ContainsPath: true}
}

// ConditionOutput wraps a Choice-rule predicate as an Output.
func ConditionOutput(c *Condition) Output {
	return Output{kind: outputCondition, Cond: c}
}

func (o Output) IsPath() bool      { return o.kind == outputPath }
func (o Output) IsLiteral() bool   { return o.kind == outputLiteral }
func (o Output) IsCondition() bool { return o.kind == outputCondition }

// normalizeOutputToJsonPathOrLiteral resolves out into something
// passWithInput can consume directly: Path and Literal outputs pass
// through untouched, and a bare Condition is materialized into a
// heap-allocated boolean path by a Choice dispatching true/false.
// Every caller that hands a statement-level Output to passWithInput
// (return, var-decl binding, assignment) must route through this
// first, since a Condition reaching passWithInput unmaterialized is a
// lowerer bug.
func (c *Compiler) normalizeOutputToJsonPathOrLiteral(sub *SubState, out Output) (*SubState, Output) {
	if !out.IsCondition() {
		return sub, out
	}
	return c.materializeCondition(sub, out)
}

// normalizeOutputToJsonPath is normalizeOutputToJsonPathOrLiteral plus
// a further Pass write for literals, so the result is always a JSON
// Path -- for call sites that need a bare path reference rather than
// an inline value (e.g. a ResultPath target or an ItemsPath).
func (c *Compiler) normalizeOutputToJsonPath(sub *SubState, out Output) (*SubState, Output) {
	if out.IsPath() {
		return sub, out
	}
	if out.IsCondition() {
		return c.materializeCondition(sub, out)
	}
	slot := c.freshHeap()
	write := passWithInput(&NodeState{Type: "Pass", ResultPath: strp(slot), Next: deferredNext}, out)
	label := c.states.Alloc("materialize literal")
	return joinSubStates(sub, newSubState(label, write)), PathOutput(slot)
}

// materializeCondition dispatches out.Cond through a Choice, writing
// a literal true or false into a fresh heap slot on either branch --
// the same runtime-type-dispatch shape as coerceToNumber/coerceToString,
// specialized to a two-way boolean split instead of a type switch.
func (c *Compiler) materializeCondition(sub *SubState, out Output) (*SubState, Output) {
	slot := c.freshHeap()
	trueLabel := c.states.Alloc("condition true")
	falseLabel := c.states.Alloc("condition false")
	dispatchLabel := c.states.Alloc("condition dispatch")

	trueWrite := &NodeState{Type: "Pass", Result: true, ResultPath: strp(slot), Next: deferredNext}
	falseWrite := &NodeState{Type: "Pass", Result: false, ResultPath: strp(slot), Next: deferredNext}
	dispatch := &NodeState{
		Type:    "Choice",
		Choices: []ChoiceRule{{Condition: out.Cond, Next: trueLabel}},
		Default: falseLabel,
	}

	wrapper := &SubState{
		startState: dispatchLabel,
		states: map[string]subNode{
			dispatchLabel: dispatch,
			trueLabel:     newSubState(trueLabel, trueWrite),
			falseLabel:    newSubState(falseLabel, falseWrite),
		},
	}
	return joinSubStates(sub, wrapper), PathOutput(slot)
}

// constLiteral returns (value, true) when o is a literal with no
// embedded path, i.e. safe to constant-fold with.
func (o Output) constLiteral() (interface{}, bool) {
	if o.kind == outputLiteral && !o.ContainsPath {
		return o.Value, true
	}
	return nil, false
}
