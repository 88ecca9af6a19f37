package transform

import (
	"go/ast"
	"go/token"
)

// terminates reports whether the block ends in a terminating statement as
// defined by the Go specification.
func terminates(b *ast.BlockStmt) bool {
	return len(b.List) > 0 && terminating(b.List[len(b.List)-1], "")
}

func terminating(s ast.Stmt, label string) bool {
	switch s := s.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BranchStmt:
		return s.Tok == token.GOTO
	case *ast.ExprStmt:
		call, ok := s.X.(*ast.CallExpr)
		if !ok {
			return false
		}
		id, ok := call.Fun.(*ast.Ident)
		return ok && id.Name == "panic"
	case *ast.BlockStmt:
		return terminates(s)
	case *ast.IfStmt:
		return s.Else != nil && terminates(s.Body) && terminating(s.Else, "")
	case *ast.LabeledStmt:
		return terminating(s.Stmt, s.Label.Name)
	case *ast.ForStmt:
		return s.Cond == nil && !hasBreak(s.Body, label)
	case *ast.SwitchStmt:
		return clausesTerminate(s.Body, label, true)
	case *ast.TypeSwitchStmt:
		return clausesTerminate(s.Body, label, true)
	case *ast.SelectStmt:
		return clausesTerminate(s.Body, label, false)
	}
	return false
}

func clausesTerminate(body *ast.BlockStmt, label string, needDefault bool) bool {
	if hasBreak(body, label) {
		return false
	}
	hasDefault := false
	for _, c := range body.List {
		var list []ast.Stmt
		switch c := c.(type) {
		case *ast.CaseClause:
			hasDefault = hasDefault || c.List == nil
			list = c.Body
		case *ast.CommClause:
			list = c.Body
		}
		if len(list) == 0 {
			return false
		}
		last := list[len(list)-1]
		if b, ok := last.(*ast.BranchStmt); ok && b.Tok == token.FALLTHROUGH {
			continue
		}
		if !terminating(last, "") {
			return false
		}
	}
	return hasDefault || !needDefault
}

// hasBreak reports whether body contains a break that leaves the statement
// owning body: an unlabeled break outside nested breakable statements, or a
// break naming label.
func hasBreak(body ast.Node, label string) bool {
	var visit func(n ast.Node, implicit bool) bool
	visit = func(n ast.Node, implicit bool) bool {
		found := false
		ast.Inspect(n, func(x ast.Node) bool {
			if found {
				return false
			}
			switch x := x.(type) {
			case *ast.FuncLit:
				return false
			case *ast.BranchStmt:
				if x.Tok == token.BREAK && (x.Label == nil && implicit || x.Label != nil && x.Label.Name == label) {
					found = true
				}
				return false
			case *ast.ForStmt, *ast.RangeStmt, *ast.SwitchStmt, *ast.TypeSwitchStmt, *ast.SelectStmt:
				if x != n {
					found = visit(x, false)
					return false
				}
			}
			return true
		})
		return found
	}
	return visit(body, true)
}
