package core

import "github.com/aslcompile/aslc/ast"

// normalizeFunc rewrites fn into canonical form: the function body
// ends in a terminal statement. It rejects nothing: every parameter
// passes rejectUnsupportedParam, and statements the lowerer cannot
// handle are reported later, by lowerStmt.
func normalizeFunc(fn *ast.Func) (*ast.Func, error) {
	for _, p := range fn.Params {
		if err := rejectUnsupportedParam(p); err != nil {
			return nil, err
		}
	}

	body, err := normalizeBlock(fn.Body)
	if err != nil {
		return nil, err
	}
	if !isTerminal(body) {
		body = append(body, &ast.Return{})
	}

	out := *fn
	out.Body = body
	return &out, nil
}

func rejectUnsupportedParam(p ast.Param) error {
	return nil
}

// normalizeBlock walks one statement list, copying every nested
// block it normalizes. It does not itself append a terminal return; only the
// outermost function body gets that treatment -- nested blocks
// (inside if/for/try) fall through to whatever follows them.
func normalizeBlock(stmts []ast.Stmt) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, s := range stmts {
		n, err := normalizeStmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func normalizeStmt(s ast.Stmt) (ast.Stmt, error) {
	switch n := s.(type) {
	case *ast.Block:
		body, err := normalizeBlock(n.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		c.Body = body
		return &c, nil
	case *ast.If:
		then, err := normalizeBlock(n.Then.Body)
		if err != nil {
			return nil, err
		}
		var elseS ast.Stmt
		if n.Else != nil {
			elseS, err = normalizeStmt(n.Else)
			if err != nil {
				return nil, err
			}
		}
		c := *n
		thenBlock := *n.Then
		thenBlock.Body = then
		c.Then = &thenBlock
		c.Else = elseS
		return &c, nil
	case *ast.For:
		body, err := normalizeBlock(n.Body.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		b := *n.Body
		b.Body = body
		c.Body = &b
		return &c, nil
	case *ast.ForOf:
		body, err := normalizeBlock(n.Body.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		b := *n.Body
		b.Body = body
		c.Body = &b
		return &c, nil
	case *ast.ForIn:
		body, err := normalizeBlock(n.Body.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		b := *n.Body
		b.Body = body
		c.Body = &b
		return &c, nil
	case *ast.While:
		body, err := normalizeBlock(n.Body.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		b := *n.Body
		b.Body = body
		c.Body = &b
		return &c, nil
	case *ast.DoWhile:
		body, err := normalizeBlock(n.Body.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		b := *n.Body
		b.Body = body
		c.Body = &b
		return &c, nil
	case *ast.Try:
		block, err := normalizeBlock(n.Block.Body)
		if err != nil {
			return nil, err
		}
		c := *n
		blk := *n.Block
		blk.Body = block
		c.Block = &blk
		if n.Catch != nil {
			cat, err := normalizeBlock(n.Catch.Body)
			if err != nil {
				return nil, err
			}
			cb := *n.Catch
			cb.Body = cat
			c.Catch = &cb
		}
		if n.Finally != nil {
			fin, err := normalizeBlock(n.Finally.Body)
			if err != nil {
				return nil, err
			}
			fb := *n.Finally
			fb.Body = fin
			c.Finally = &fb
		}
		return &c, nil
	default:
		return s, nil
	}
}

// isTerminal reports whether stmts, taken as a straight-line sequence
// with no fallthrough, always returns or throws. Only the last
// statement matters; dead code after a terminal statement is left
// alone (the lowerer will simply never reach it, matching ASL's
// always-explicit Next semantics -- there's no dead-code elimination
// pass here).
func isTerminal(stmts []ast.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	return stmtIsTerminal(stmts[len(stmts)-1])
}

func stmtIsTerminal(s ast.Stmt) bool {
	switch n := s.(type) {
	case *ast.Return:
		return true
	case *ast.Throw:
		return true
	case *ast.Block:
		return isTerminal(n.Body)
	case *ast.If:
		if n.Else == nil {
			return false
		}
		return isTerminal(n.Then.Body) && stmtIsTerminal(n.Else)
	case *ast.Try:
		finallyTerminal := n.Finally != nil && isTerminal(n.Finally.Body)
		if finallyTerminal {
			return true
		}
		tryTerminal := isTerminal(n.Block.Body)
		catchTerminal := n.Catch == nil || isTerminal(n.Catch.Body)
		return tryTerminal && catchTerminal
	default:
		return false
	}
}
