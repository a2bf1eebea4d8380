// Package surfaceast adapts ECMAScript source text into the typed
// abstract syntax tree that the lowering engine (package core)
// consumes. It is one concrete front end for ast.Func; any other
// producer that builds the same node types is an equally valid
// collaborator.
//
// Parsing itself is delegated to goja's parser, the same ECMAScript
// front end the sheens goja interpreter uses to run action code. This
// package only walks goja's parse tree and rebuilds it as our own,
// restricted ast.Func shape, rejecting anything outside the supported
// grammar (spec §4) with a descriptive error rather than silently
// dropping it.
package surfaceast

import (
	"fmt"

	gojaast "github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"

	"github.com/aslcompile/aslc/ast"
)

// ParseFunction parses src, which must be a single arrow function or
// function expression (optionally wrapped in parens and/or a trailing
// semicolon), and returns it as a typed ast.Func ready for
// core.Compile.
func ParseFunction(src string) (*ast.Func, error) {
	prog, err := parser.ParseFile(nil, "<input>", src, 0)
	if err != nil {
		return nil, fmt.Errorf("surfaceast: parse: %w", err)
	}
	if len(prog.Body) != 1 {
		return nil, fmt.Errorf("surfaceast: expected exactly one top-level expression, got %d statements", len(prog.Body))
	}
	stmt, ok := prog.Body[0].(*gojaast.ExpressionStatement)
	if !ok {
		if decl, ok := prog.Body[0].(*gojaast.FunctionDeclaration); ok {
			return convFunctionLiteral(decl.Function)
		}
		return nil, fmt.Errorf("surfaceast: expected a function expression, got %T", prog.Body[0])
	}
	return convFuncExpr(stmt.Expression)
}

func convFuncExpr(e gojaast.Expression) (*ast.Func, error) {
	switch n := e.(type) {
	case *gojaast.ArrowFunctionLiteral:
		return convArrow(n)
	case *gojaast.FunctionLiteral:
		return convFunctionLiteral(n)
	default:
		return nil, fmt.Errorf("surfaceast: top-level expression must be a function, got %T", e)
	}
}

func convArrow(n *gojaast.ArrowFunctionLiteral) (*ast.Func, error) {
	params, err := convParams(n.ParameterList)
	if err != nil {
		return nil, err
	}
	var body []ast.Stmt
	switch b := n.Body.(type) {
	case *gojaast.BlockStatement:
		body, err = convStmtList(b.List)
		if err != nil {
			return nil, err
		}
	case *gojaast.ExpressionBody:
		expr, err := convExpr(b.Expression)
		if err != nil {
			return nil, err
		}
		body = []ast.Stmt{&ast.Return{Arg: expr}}
	default:
		return nil, fmt.Errorf("surfaceast: unsupported arrow function body %T", n.Body)
	}
	return &ast.Func{Params: params, Body: body}, nil
}

func convFunctionLiteral(n *gojaast.FunctionLiteral) (*ast.Func, error) {
	params, err := convParams(n.ParameterList)
	if err != nil {
		return nil, err
	}
	body, err := convStmtList(n.Body.List)
	if err != nil {
		return nil, err
	}
	name := ""
	if n.Name != nil {
		name = string(n.Name.Name)
	}
	return &ast.Func{Name: name, Params: params, Body: body}, nil
}

func convParams(pl *gojaast.ParameterList) ([]ast.Param, error) {
	if pl == nil {
		return nil, nil
	}
	out := make([]ast.Param, 0, len(pl.List))
	for _, b := range pl.List {
		id, ok := b.Target.(*gojaast.Identifier)
		if !ok {
			return nil, fmt.Errorf("surfaceast: destructuring parameters are not supported")
		}
		out = append(out, ast.Param{Name: string(id.Name)})
	}
	return out, nil
}

func convStmtList(list []gojaast.Statement) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(list))
	for _, s := range list {
		cs, err := convStmt(s)
		if err != nil {
			return nil, err
		}
		if cs == nil {
			continue
		}
		out = append(out, cs)
	}
	return out, nil
}

func convBlock(b *gojaast.BlockStatement) (*ast.Block, error) {
	if b == nil {
		return &ast.Block{}, nil
	}
	body, err := convStmtList(b.List)
	if err != nil {
		return nil, err
	}
	return &ast.Block{Body: body}, nil
}

func convStmt(s gojaast.Statement) (ast.Stmt, error) {
	switch n := s.(type) {
	case *gojaast.EmptyStatement:
		return nil, nil
	case *gojaast.BlockStatement:
		return convBlock(n)
	case *gojaast.ExpressionStatement:
		x, err := convExpr(n.Expression)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{X: x}, nil
	case *gojaast.VariableStatement:
		return convVarLike(n.List, "let")
	case *gojaast.LexicalDeclaration:
		kind := n.Token.String()
		return convVarLike(n.List, kind)
	case *gojaast.ReturnStatement:
		if n.Argument == nil {
			return &ast.Return{}, nil
		}
		x, err := convExpr(n.Argument)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Arg: x}, nil
	case *gojaast.ThrowStatement:
		x, err := convExpr(n.Argument)
		if err != nil {
			return nil, err
		}
		return &ast.Throw{Arg: x}, nil
	case *gojaast.IfStatement:
		return convIf(n)
	case *gojaast.ForStatement:
		return convFor(n)
	case *gojaast.ForInStatement:
		return convForIn(n)
	case *gojaast.ForOfStatement:
		return convForOf(n)
	case *gojaast.WhileStatement:
		test, err := convExpr(n.Test)
		if err != nil {
			return nil, err
		}
		body, err := convLoopBody(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{Test: test, Body: body}, nil
	case *gojaast.DoWhileStatement:
		test, err := convExpr(n.Test)
		if err != nil {
			return nil, err
		}
		body, err := convLoopBody(n.Body)
		if err != nil {
			return nil, err
		}
		return &ast.DoWhile{Test: test, Body: body}, nil
	case *gojaast.BranchStatement:
		label := ""
		if n.Label != nil {
			label = string(n.Label.Name)
		}
		switch n.Token.String() {
		case "break":
			return &ast.Break{Label: label}, nil
		case "continue":
			return &ast.Continue{Label: label}, nil
		default:
			return nil, fmt.Errorf("surfaceast: unsupported branch statement %q", n.Token.String())
		}
	case *gojaast.TryStatement:
		return convTry(n)
	default:
		return nil, fmt.Errorf("surfaceast: unsupported statement %T", s)
	}
}

func convVarLike(list []*gojaast.Binding, kind string) (ast.Stmt, error) {
	decls := make([]ast.Declarator, 0, len(list))
	for _, b := range list {
		target, err := convPattern(b.Target)
		if err != nil {
			return nil, err
		}
		var init ast.Expr
		if b.Initializer != nil {
			init, err = convExpr(b.Initializer)
			if err != nil {
				return nil, err
			}
		}
		decls = append(decls, ast.Declarator{Target: target, Init: init})
	}
	return &ast.VarDecl{Kind: kind, Decls: decls}, nil
}

func convLoopBody(s gojaast.Statement) (*ast.Block, error) {
	if b, ok := s.(*gojaast.BlockStatement); ok {
		return convBlock(b)
	}
	cs, err := convStmt(s)
	if err != nil {
		return nil, err
	}
	return &ast.Block{Body: []ast.Stmt{cs}}, nil
}

func convIf(n *gojaast.IfStatement) (ast.Stmt, error) {
	test, err := convExpr(n.Test)
	if err != nil {
		return nil, err
	}
	then, err := convLoopBody(n.Consequent)
	if err != nil {
		return nil, err
	}
	out := &ast.If{Test: test, Then: then}
	if n.Alternate != nil {
		switch alt := n.Alternate.(type) {
		case *gojaast.IfStatement:
			elseIf, err := convIf(alt)
			if err != nil {
				return nil, err
			}
			out.Else = elseIf
		default:
			elseBlock, err := convLoopBody(n.Alternate)
			if err != nil {
				return nil, err
			}
			out.Else = elseBlock
		}
	}
	return out, nil
}

func convFor(n *gojaast.ForStatement) (ast.Stmt, error) {
	var init ast.Stmt
	var err error
	if n.Initializer != nil {
		switch ini := n.Initializer.(type) {
		case *gojaast.ForLoopInitializerExpression:
			x, err := convExpr(ini.Expression)
			if err != nil {
				return nil, err
			}
			init = &ast.ExprStmt{X: x}
		case *gojaast.ForLoopInitializerVarDeclList:
			init, err = convVarLike(ini.List, "let")
			if err != nil {
				return nil, err
			}
		case *gojaast.ForLoopInitializerLexicalDecl:
			init, err = convVarLike(ini.LexicalDeclaration.List, ini.LexicalDeclaration.Token.String())
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("surfaceast: unsupported for-loop initializer %T", n.Initializer)
		}
	}
	var test, update ast.Expr
	if n.Test != nil {
		test, err = convExpr(n.Test)
		if err != nil {
			return nil, err
		}
	}
	if n.Update != nil {
		update, err = convExpr(n.Update)
		if err != nil {
			return nil, err
		}
	}
	body, err := convLoopBody(n.Body)
	if err != nil {
		return nil, err
	}
	return &ast.For{Init: init, Test: test, Update: update, Body: body}, nil
}

func convForInto(into gojaast.ForInto) (ast.Pattern, string, error) {
	switch i := into.(type) {
	case *gojaast.ForIntoVar:
		target, err := convPattern(i.Binding.Target)
		if err != nil {
			return nil, "", err
		}
		return target, "let", nil
	case *gojaast.ForIntoExpression:
		target, err := convPattern(i.Expression.(gojaast.BindingTarget))
		if err != nil {
			return nil, "", err
		}
		return target, "let", nil
	case *gojaast.ForDeclaration:
		target, err := convPattern(i.Target)
		if err != nil {
			return nil, "", err
		}
		if i.IsConst {
			return target, "const", nil
		}
		return target, "let", nil
	default:
		return nil, "", fmt.Errorf("surfaceast: unsupported for-of/for-in target %T", into)
	}
}

func convForOf(n *gojaast.ForOfStatement) (ast.Stmt, error) {
	decl, kind, err := convForInto(n.Into)
	if err != nil {
		return nil, err
	}
	right, err := convExpr(n.Source)
	if err != nil {
		return nil, err
	}
	body, err := convLoopBody(n.Body)
	if err != nil {
		return nil, err
	}
	return &ast.ForOf{Decl: decl, Kind: kind, Right: right, Body: body}, nil
}

func convForIn(n *gojaast.ForInStatement) (ast.Stmt, error) {
	decl, kind, err := convForInto(n.Into)
	if err != nil {
		return nil, err
	}
	right, err := convExpr(n.Source)
	if err != nil {
		return nil, err
	}
	body, err := convLoopBody(n.Body)
	if err != nil {
		return nil, err
	}
	return &ast.ForIn{Decl: decl, Kind: kind, Right: right, Body: body}, nil
}

func convTry(n *gojaast.TryStatement) (ast.Stmt, error) {
	block, err := convBlock(n.Body)
	if err != nil {
		return nil, err
	}
	out := &ast.Try{Block: block}
	if n.Catch != nil {
		catchBody, err := convBlock(n.Catch.Body)
		if err != nil {
			return nil, err
		}
		out.Catch = catchBody
		if n.Catch.Parameter != nil {
			param, err := convPattern(n.Catch.Parameter)
			if err != nil {
				return nil, err
			}
			out.CatchParam = param
		}
	}
	if n.Finally != nil {
		finallyBody, err := convBlock(n.Finally)
		if err != nil {
			return nil, err
		}
		out.Finally = finallyBody
	}
	return out, nil
}

func convPattern(t gojaast.BindingTarget) (ast.Pattern, error) {
	switch n := t.(type) {
	case *gojaast.Identifier:
		return &ast.Ident{Name: string(n.Name)}, nil
	case *gojaast.ArrayPattern:
		elems := make([]*ast.PatternElement, 0, len(n.Elements))
		for _, el := range n.Elements {
			if el == nil {
				elems = append(elems, nil)
				continue
			}
			pe, err := convPatternElement(el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, pe)
		}
		var rest ast.Pattern
		if n.Rest != nil {
			var err error
			rest, err = convPattern(n.Rest.(gojaast.BindingTarget))
			if err != nil {
				return nil, err
			}
		}
		return &ast.ArrayPattern{Elements: elems, Rest: rest}, nil
	case *gojaast.ObjectPattern:
		if n.Rest != nil {
			return nil, fmt.Errorf("surfaceast: object rest patterns are not supported")
		}
		props := make([]ast.ObjectPatternProp, 0, len(n.Properties))
		for _, p := range n.Properties {
			pk, ok := p.(*gojaast.PropertyShort)
			if ok {
				target, def, err := convPropertyTarget(&pk.Name, pk.Initializer)
				if err != nil {
					return nil, err
				}
				props = append(props, ast.ObjectPatternProp{Key: string(pk.Name.Name), Target: target, Default: def})
				continue
			}
			pkv, ok := p.(*gojaast.PropertyKeyed)
			if !ok {
				return nil, fmt.Errorf("surfaceast: unsupported object pattern property %T", p)
			}
			keyIdent, ok := pkv.Key.(*gojaast.Identifier)
			if !ok {
				return nil, fmt.Errorf("surfaceast: object pattern keys must be plain identifiers")
			}
			target, err := convPattern(pkv.Value.(gojaast.BindingTarget))
			if err != nil {
				return nil, err
			}
			props = append(props, ast.ObjectPatternProp{Key: string(keyIdent.Name), Target: target})
		}
		return &ast.ObjectPattern{Props: props}, nil
	default:
		return nil, fmt.Errorf("surfaceast: unsupported binding target %T", t)
	}
}

func convPropertyTarget(id *gojaast.Identifier, init gojaast.Expression) (ast.Pattern, ast.Expr, error) {
	var def ast.Expr
	if init != nil {
		var err error
		def, err = convExpr(init)
		if err != nil {
			return nil, nil, err
		}
	}
	return &ast.Ident{Name: string(id.Name)}, def, nil
}

func convPatternElement(e gojaast.Expression) (*ast.PatternElement, error) {
	if assign, ok := e.(*gojaast.AssignExpression); ok {
		target, err := convPattern(assign.Left.(gojaast.BindingTarget))
		if err != nil {
			return nil, err
		}
		def, err := convExpr(assign.Right)
		if err != nil {
			return nil, err
		}
		return &ast.PatternElement{Target: target, Default: def}, nil
	}
	target, err := convPattern(e.(gojaast.BindingTarget))
	if err != nil {
		return nil, err
	}
	return &ast.PatternElement{Target: target}, nil
}

func convExpr(e gojaast.Expression) (ast.Expr, error) {
	switch n := e.(type) {
	case *gojaast.Identifier:
		return &ast.Ident{Name: string(n.Name)}, nil
	case *gojaast.NullLiteral:
		return &ast.Literal{Kind: ast.LitNull}, nil
	case *gojaast.BooleanLiteral:
		return &ast.Literal{Kind: ast.LitBool, Value: n.Value}, nil
	case *gojaast.NumberLiteral:
		return &ast.Literal{Kind: ast.LitNumber, Value: n.Value}, nil
	case *gojaast.StringLiteral:
		return &ast.Literal{Kind: ast.LitString, Value: string(n.Value)}, nil
	case *gojaast.ArrayLiteral:
		elems := make([]ast.Expr, 0, len(n.Value))
		for _, el := range n.Value {
			if el == nil {
				return nil, fmt.Errorf("surfaceast: elided array elements are not supported")
			}
			ce, err := convExpr(el)
			if err != nil {
				return nil, err
			}
			elems = append(elems, ce)
		}
		return &ast.ArrayLit{Elements: elems}, nil
	case *gojaast.ObjectLiteral:
		props := make([]ast.ObjectProp, 0, len(n.Value))
		for _, p := range n.Value {
			op, err := convObjectProp(p)
			if err != nil {
				return nil, err
			}
			props = append(props, op)
		}
		return &ast.ObjectLit{Props: props}, nil
	case *gojaast.TemplateLiteral:
		quasis := make([]string, 0, len(n.Elements))
		for _, el := range n.Elements {
			quasis = append(quasis, string(el.Parsed))
		}
		exprs := make([]ast.Expr, 0, len(n.Expressions))
		for _, x := range n.Expressions {
			ce, err := convExpr(x)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, ce)
		}
		return &ast.TemplateLit{Quasis: quasis, Exprs: exprs}, nil
	case *gojaast.DotExpression:
		obj, err := convExpr(n.Left)
		if err != nil {
			return nil, err
		}
		return &ast.Member{Object: obj, Prop: string(n.Identifier.Name)}, nil
	case *gojaast.PrivateDotExpression:
		return nil, fmt.Errorf("surfaceast: private class members are not supported")
	case *gojaast.BracketExpression:
		obj, err := convExpr(n.Left)
		if err != nil {
			return nil, err
		}
		idx, err := convExpr(n.Member)
		if err != nil {
			return nil, err
		}
		return &ast.Member{Object: obj, Computed: true, Index: idx}, nil
	case *gojaast.UnaryExpression:
		op := n.Operator.String()
		if op != "!" && op != "+" && op != "-" && op != "typeof" {
			return nil, fmt.Errorf("surfaceast: unsupported unary operator %q", op)
		}
		x, err := convExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Op: op, X: x}, nil
	case *gojaast.BinaryExpression:
		left, err := convExpr(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := convExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.BinaryOp{Op: n.Operator.String(), Left: left, Right: right}, nil
	case *gojaast.ConditionalExpression:
		test, err := convExpr(n.Test)
		if err != nil {
			return nil, err
		}
		cons, err := convExpr(n.Consequent)
		if err != nil {
			return nil, err
		}
		alt, err := convExpr(n.Alternate)
		if err != nil {
			return nil, err
		}
		return &ast.Conditional{Test: test, Cons: cons, Alt: alt}, nil
	case *gojaast.AssignExpression:
		target, err := convExpr(n.Left)
		if err != nil {
			return nil, err
		}
		value, err := convExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Op: n.Operator.String(), Target: target, Value: value}, nil
	case *gojaast.CallExpression:
		callee, err := convExpr(n.Callee)
		if err != nil {
			return nil, err
		}
		args, err := convExprList(n.ArgumentList)
		if err != nil {
			return nil, err
		}
		return &ast.Call{Callee: callee, Args: args}, nil
	case *gojaast.NewExpression:
		callee, err := convExpr(n.Callee)
		if err != nil {
			return nil, err
		}
		args, err := convExprList(n.ArgumentList)
		if err != nil {
			return nil, err
		}
		return &ast.New{Callee: callee, Args: args}, nil
	case *gojaast.AwaitExpression:
		x, err := convExpr(n.Argument)
		if err != nil {
			return nil, err
		}
		return &ast.Await{X: x}, nil
	case *gojaast.ArrowFunctionLiteral:
		return convArrow(n)
	case *gojaast.FunctionLiteral:
		return convFunctionLiteral(n)
	default:
		return nil, fmt.Errorf("surfaceast: unsupported expression %T", e)
	}
}

func convExprList(list []gojaast.Expression) ([]ast.Expr, error) {
	out := make([]ast.Expr, 0, len(list))
	for _, e := range list {
		ce, err := convExpr(e)
		if err != nil {
			return nil, err
		}
		out = append(out, ce)
	}
	return out, nil
}

func convObjectProp(p gojaast.Property) (ast.ObjectProp, error) {
	switch pp := p.(type) {
	case *gojaast.PropertyShort:
		return ast.ObjectProp{Key: string(pp.Name.Name), Value: &ast.Ident{Name: string(pp.Name.Name)}}, nil
	case *gojaast.PropertyKeyed:
		if pp.Computed {
			keyExpr, err := convExpr(pp.Key)
			if err != nil {
				return ast.ObjectProp{}, err
			}
			val, err := convExpr(pp.Value)
			if err != nil {
				return ast.ObjectProp{}, err
			}
			return ast.ObjectProp{Computed: keyExpr, Value: val}, nil
		}
		var key string
		switch k := pp.Key.(type) {
		case *gojaast.Identifier:
			key = string(k.Name)
		case *gojaast.StringLiteral:
			key = string(k.Value)
		default:
			return ast.ObjectProp{}, fmt.Errorf("surfaceast: unsupported object literal key %T", pp.Key)
		}
		val, err := convExpr(pp.Value)
		if err != nil {
			return ast.ObjectProp{}, err
		}
		return ast.ObjectProp{Key: key, Value: val}, nil
	default:
		return ast.ObjectProp{}, fmt.Errorf("surfaceast: unsupported object literal property %T", p)
	}
}
