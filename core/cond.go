package core

// Condition is an ASL Choice-rule predicate. Exactly one atom field,
// or exactly one of And/Or/Not, is populated; constructors below are
// the only legal way to build one so that invariant always holds.
type Condition struct {
	Variable string `json:"Variable,omitempty"`

	IsPresent *bool `json:"IsPresent,omitempty"`
	IsNull    *bool `json:"IsNull,omitempty"`
	IsBoolean *bool `json:"IsBoolean,omitempty"`
	IsString  *bool `json:"IsString,omitempty"`
	IsNumeric *bool `json:"IsNumeric,omitempty"`

	StringEquals     string `json:"StringEquals,omitempty"`
	StringEqualsPath string `json:"StringEqualsPath,omitempty"`

	NumericEquals     *float64 `json:"NumericEquals,omitempty"`
	NumericEqualsPath string   `json:"NumericEqualsPath,omitempty"`

	NumericLessThan     *float64 `json:"NumericLessThan,omitempty"`
	NumericLessThanPath string   `json:"NumericLessThanPath,omitempty"`

	NumericGreaterThan     *float64 `json:"NumericGreaterThan,omitempty"`
	NumericGreaterThanPath string   `json:"NumericGreaterThanPath,omitempty"`

	NumericLessThanEquals     *float64 `json:"NumericLessThanEquals,omitempty"`
	NumericLessThanEqualsPath string   `json:"NumericLessThanEqualsPath,omitempty"`

	NumericGreaterThanEquals     *float64 `json:"NumericGreaterThanEquals,omitempty"`
	NumericGreaterThanEqualsPath string   `json:"NumericGreaterThanEqualsPath,omitempty"`

	BooleanEquals     *bool  `json:"BooleanEquals,omitempty"`
	BooleanEqualsPath string `json:"BooleanEqualsPath,omitempty"`

	And []*Condition `json:"And,omitempty"`
	Or  []*Condition `json:"Or,omitempty"`
	Not *Condition   `json:"Not,omitempty"`
}

func boolp(b bool) *bool       { return &b }
func f64p(f float64) *float64  { return &f }

func condIsPresent(path string, present bool) *Condition {
	return &Condition{Variable: path, IsPresent: boolp(present)}
}

func condIsNull(path string, v bool) *Condition {
	return &Condition{Variable: path, IsNull: boolp(v)}
}

func condIsBoolean(path string, v bool) *Condition {
	return &Condition{Variable: path, IsBoolean: boolp(v)}
}

func condIsString(path string, v bool) *Condition {
	return &Condition{Variable: path, IsString: boolp(v)}
}

func condIsNumeric(path string, v bool) *Condition {
	return &Condition{Variable: path, IsNumeric: boolp(v)}
}

func condStringEquals(path, s string) *Condition {
	return &Condition{Variable: path, StringEquals: s}
}

func condStringEqualsPath(path, otherPath string) *Condition {
	return &Condition{Variable: path, StringEqualsPath: otherPath}
}

func condNumericEquals(path string, n float64) *Condition {
	return &Condition{Variable: path, NumericEquals: f64p(n)}
}

func condBooleanEquals(path string, b bool) *Condition {
	return &Condition{Variable: path, BooleanEquals: boolp(b)}
}

// and combines conditions with AND-semantics. Zero conditions yields
// a trivially-true predicate built from a path that always exists in
// an execution: the execution id is never null. One condition
// short-circuits to that condition directly, since wrapping a single
// clause in And is legal but noisy and the source never produces it.
func and(conds ...*Condition) *Condition {
	conds = compactConds(conds)
	switch len(conds) {
	case 0:
		return trivialTrue()
	case 1:
		return conds[0]
	default:
		return &Condition{And: conds}
	}
}

// or mirrors and with OR-semantics and a trivially-false predicate
// for the empty case.
func or(conds ...*Condition) *Condition {
	conds = compactConds(conds)
	switch len(conds) {
	case 0:
		return trivialFalse()
	case 1:
		return conds[0]
	default:
		return &Condition{Or: conds}
	}
}

func not(c *Condition) *Condition {
	if c == nil {
		return trivialFalse()
	}
	if c.Not != nil {
		// double negation collapses rather than nesting; keeps
		// generated Choice rules shallow for the common `!!x` case.
		return c.Not
	}
	return &Condition{Not: c}
}

func compactConds(conds []*Condition) []*Condition {
	out := make([]*Condition, 0, len(conds))
	for _, c := range conds {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

func trivialTrue() *Condition {
	return condIsNull("$$.Execution.Id", false)
}

func trivialFalse() *Condition {
	return condIsNull("$$.Execution.Id", true)
}

// isTruthy builds the condition for the JS truthiness of the value at
// path: present, not null, and (non-empty string OR non-zero number
// OR true boolean OR compound — neither string, number, nor
// boolean, i.e. an object or array, which are always truthy in JS).
func isTruthy(path string) *Condition {
	isCompound := and(not(condIsString(path, true)), not(condIsNumeric(path, true)), not(condIsBoolean(path, true)))
	return and(
		condIsPresent(path, true),
		not(condIsNull(path, true)),
		or(
			and(condIsString(path, true), not(condStringEquals(path, ""))),
			and(condIsNumeric(path, true), not(condNumericEquals(path, 0))),
			and(condIsBoolean(path, true), condBooleanEquals(path, true)),
			isCompound,
		),
	)
}

// comparisonAtom looks up the ASL atom name for a source comparison
// operator against a literal of the given runtime type. No mapping
// exists for "!="/"!==" (those are expressed via not(...)); callers
// are expected to branch on op before reaching here.
type comparisonAtom struct {
	op    string // "==" "===" "<" "<=" ">" ">="
	ctype string // "string" "number" "boolean"
}

// compareLiteral builds the Condition for `path op literal` when
// literal's runtime type is known statically.
func compareLiteral(path, op string, literal interface{}) (*Condition, bool) {
	switch lit := literal.(type) {
	case string:
		switch op {
		case "==", "===":
			return condStringEquals(path, lit), true
		}
	case float64:
		switch op {
		case "==", "===":
			return condNumericEquals(path, lit), true
		case "<":
			return &Condition{Variable: path, NumericLessThan: f64p(lit)}, true
		case "<=":
			return &Condition{Variable: path, NumericLessThanEquals: f64p(lit)}, true
		case ">":
			return &Condition{Variable: path, NumericGreaterThan: f64p(lit)}, true
		case ">=":
			return &Condition{Variable: path, NumericGreaterThanEquals: f64p(lit)}, true
		}
	case bool:
		switch op {
		case "==", "===":
			return condBooleanEquals(path, lit), true
		}
	}
	return nil, false
}

// comparePaths mirrors compareLiteral for two path operands, using
// the *Path-suffixed atom variants. typ is the runtime type both
// sides have been coerced to share ("string", "number", or
// "boolean").
func comparePaths(left, op, right, typ string) (*Condition, bool) {
	switch typ {
	case "string":
		if op == "==" || op == "===" {
			return condStringEqualsPath(left, right), true
		}
	case "number":
		switch op {
		case "==", "===":
			return &Condition{Variable: left, NumericEqualsPath: right}, true
		case "<":
			return &Condition{Variable: left, NumericLessThanPath: right}, true
		case "<=":
			return &Condition{Variable: left, NumericLessThanEqualsPath: right}, true
		case ">":
			return &Condition{Variable: left, NumericGreaterThanPath: right}, true
		case ">=":
			return &Condition{Variable: left, NumericGreaterThanEqualsPath: right}, true
		}
	case "boolean":
		if op == "==" || op == "===" {
			return &Condition{Variable: left, BooleanEqualsPath: right}, true
		}
	}
	return nil, false
}
