// Package core lowers a small functionless-subset-of-JavaScript
// function body into an AWS States Language state machine document.
//
// The entry point is Compile: given a typed function AST and a
// CompileOptions (most importantly a LookupService for resolving
// external service calls), it returns a finished ASLDoc or a
// CompileError identifying exactly which construct the input used
// that Step Functions cannot express.
//
// Internally, every statement and expression lowers to a SubState: a
// small named sub-graph of NodeState values with at most one dangling
// "deferred" successor, composed by joinSubStates and
// updateDeferredNextStates rather than emitted as final JSON directly.
// Composing a function body is therefore building one tree of
// SubStates and flattening it once, at the end, via toStates.
//
// This package has no I/O and performs no side effects; everything
// that touches a filesystem, network, or clock lives in the sibling
// packages (integration, cache, report, devwatch) that wrap it.
package core
