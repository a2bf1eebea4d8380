package core

// These errors are about the input program, not about a bug in the
// compiler itself.
//
// Probably should keep growing this file as new rejection shapes are
// discovered, one named type per shape, the way the teacher spec
// distinguishes SpecNotCompiled from UnknownNode from BadBranching.

import (
	"github.com/aslcompile/aslc/ast"
)

// Code is a stable, machine-checkable compile-time rejection code
// (spec §6). Tooling built on top of the compiler can switch on Code
// without parsing Message.
type Code string

const (
	CodeUnsupportedFeature       Code = "Unsupported_Feature"
	CodeInvalidInput             Code = "Invalid_Input"
	CodeUnexpectedError          Code = "Unexpected_Error"
	CodeClassesNotSupported      Code = "Classes_are_not_supported"
	CodeThrowMustBeError         Code = "StepFunction_Throw_must_be_Error_or_StepFunctionError_class"
	CodeUndefinedNotSupported    Code = "Step_Functions_does_not_support_undefined"
	CodePropertyNamesMustBeConst Code = "StepFunctions_property_names_must_be_constant"
	CodeInvalidCollectionAccess  Code = "StepFunctions_Invalid_collection_access"
	CodeNoVariableArithmetic     Code = "Cannot_perform_all_arithmetic_or_bitwise_computations_on_variables_in_Step_Function"
)

// CompileError is the one error type every lowering routine returns.
// It carries a stable Code, a one-line Message, and the Span of the
// offending node (zero Span if none is available).
type CompileError struct {
	Code    Code
	Message string
	Span    ast.Span
}

func (e *CompileError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func errf(code Code, span ast.Span, message string) *CompileError {
	return &CompileError{Code: code, Message: message, Span: span}
}

// NotAnLValue occurs when an assignment or update expression's target
// is not an identifier or member expression.
type NotAnLValue struct {
	Span ast.Span
}

func (e *NotAnLValue) Error() string {
	return "assignment target is not a variable or property reference"
}

// UnknownIdentifier occurs when an identifier has no declaration in
// scope. The normalizer and binding resolver are expected to catch
// this before the expression lowerer ever sees a dangling reference,
// so this error indicates either malformed input AST or a normalizer
// bug.
type UnknownIdentifier struct {
	Name string
	Span ast.Span
}

func (e *UnknownIdentifier) Error() string {
	return `unknown identifier "` + e.Name + `"`
}
