package core

import "github.com/aslcompile/aslc/ast"

// AddExampleFunc builds `(a, b) => a + b` as a typed AST, useful for
// exercising Compile without a surface-language front end wired up.
func AddExampleFunc() *ast.Func {
	a := &ast.Ident{Name: "a"}
	b := &ast.Ident{Name: "b"}
	return &ast.Func{
		Name:   "addExample",
		Params: []ast.Param{{Name: "a"}, {Name: "b"}},
		Body: []ast.Stmt{
			&ast.Return{Arg: &ast.BinaryOp{Op: "+", Left: a, Right: b}},
		},
	}
}

// ConstantExampleFunc builds `() => 1 + 2`, the degenerate case where
// every input is a constant: Compile should fold the whole body down
// to a single literal `Result: 3` Pass with no intrinsic calls.
func ConstantExampleFunc() *ast.Func {
	lit := func(v float64) *ast.Literal {
		return &ast.Literal{Kind: ast.LitNumber, Value: v}
	}
	return &ast.Func{
		Name: "constantExample",
		Body: []ast.Stmt{
			&ast.Return{Arg: &ast.BinaryOp{Op: "+", Left: lit(1), Right: lit(2)}},
		},
	}
}
