package surfaceast

import "testing"

func TestParseFunctionSimpleArrow(t *testing.T) {
	fn, err := ParseFunction(`(a, b) => a + b`)
	if err != nil {
		t.Fatalf("ParseFunction: %v", err)
	}
	if len(fn.Params) != 2 || fn.Params[0].Name != "a" || fn.Params[1].Name != "b" {
		t.Fatalf("got params %#v", fn.Params)
	}
	if len(fn.Body) != 1 {
		t.Fatalf("expected a single implicit-return statement, got %#v", fn.Body)
	}
}

func TestParseFunctionBlockBody(t *testing.T) {
	fn, err := ParseFunction(`(x) => {
		if (x) {
			return 1;
		}
		return 2;
	}`)
	if err != nil {
		t.Fatalf("ParseFunction: %v", err)
	}
	if len(fn.Body) != 2 {
		t.Fatalf("expected an if followed by a return, got %#v", fn.Body)
	}
}

func TestParseFunctionRejectsMultipleStatements(t *testing.T) {
	_, err := ParseFunction(`const f = (x) => x; f`)
	if err == nil {
		t.Fatalf("expected an error for more than one top-level statement")
	}
}

func TestParseFunctionRejectsNonFunction(t *testing.T) {
	_, err := ParseFunction(`1 + 2`)
	if err == nil {
		t.Fatalf("expected an error for a non-function top-level expression")
	}
}

func TestParseFunctionTryCatch(t *testing.T) {
	fn, err := ParseFunction(`(x) => {
		try {
			throw new Error("boom");
		} catch (e) {
			return e.message;
		}
	}`)
	if err != nil {
		t.Fatalf("ParseFunction: %v", err)
	}
	if len(fn.Body) != 1 {
		t.Fatalf("expected a single try statement, got %#v", fn.Body)
	}
}
