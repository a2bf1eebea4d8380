package core

import (
	"testing"

	"github.com/aslcompile/aslc/ast"
)

func TestCompileErrorMessage(t *testing.T) {
	err := errf(CodeInvalidInput, ast.Span{}, "bad thing")
	if err.Error() != "Invalid_Input: bad thing" {
		t.Fatalf("got %q", err.Error())
	}
}

func TestUnknownIdentifierMessage(t *testing.T) {
	err := &UnknownIdentifier{Name: "x"}
	if err.Error() != `unknown identifier "x"` {
		t.Fatalf("got %q", err.Error())
	}
}
