package transform

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"
)

// walker resolves identifiers against the block structure of a function
// body. Names bound inside the body shadow the persistent variables.
type walker struct {
	statics    map[string]bool
	scopes     []map[string]bool
	targets    map[*ast.Ident]bool
	redeclared []*ast.Ident

	collect bool
	free    []*ast.Ident
}

func newWalker(statics map[string]bool) *walker {
	return &walker{statics: statics, targets: map[*ast.Ident]bool{}}
}

func (w *walker) push() {
	w.scopes = append(w.scopes, map[string]bool{})
}

func (w *walker) pop() {
	w.scopes = w.scopes[:len(w.scopes)-1]
}

func (w *walker) declare(id *ast.Ident) {
	if id == nil || id.Name == "_" || len(w.scopes) == 0 {
		return
	}
	if len(w.scopes) == 1 && w.statics[id.Name] {
		w.redeclared = append(w.redeclared, id)
	}
	w.scopes[len(w.scopes)-1][id.Name] = true
}

func (w *walker) bound(name string) bool {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i][name] {
			return true
		}
	}
	return false
}

func (w *walker) ident(id *ast.Ident) {
	if w.bound(id.Name) {
		return
	}
	if w.collect {
		w.free = append(w.free, id)
		return
	}
	if w.statics[id.Name] {
		w.targets[id] = true
	}
}

func (w *walker) body(list []ast.Stmt) {
	w.push()
	w.stmts(list)
	w.pop()
}

func (w *walker) stmts(list []ast.Stmt) {
	for _, s := range list {
		w.stmt(s)
	}
}

func (w *walker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ast.BlockStmt:
		w.body(s.List)
	case *ast.AssignStmt:
		for _, x := range s.Rhs {
			w.expr(x)
		}
		for _, x := range s.Lhs {
			if id, ok := x.(*ast.Ident); ok && s.Tok == token.DEFINE {
				w.declare(id)
			} else {
				w.expr(x)
			}
		}
	case *ast.DeclStmt:
		w.decl(s.Decl.(*ast.GenDecl))
	case *ast.ExprStmt:
		w.expr(s.X)
	case *ast.SendStmt:
		w.expr(s.Chan)
		w.expr(s.Value)
	case *ast.IncDecStmt:
		w.expr(s.X)
	case *ast.GoStmt:
		w.expr(s.Call)
	case *ast.DeferStmt:
		w.expr(s.Call)
	case *ast.ReturnStmt:
		for _, x := range s.Results {
			w.expr(x)
		}
	case *ast.LabeledStmt:
		w.stmt(s.Stmt)
	case *ast.IfStmt:
		w.push()
		w.stmt(s.Init)
		w.expr(s.Cond)
		w.stmt(s.Body)
		w.stmt(s.Else)
		w.pop()
	case *ast.ForStmt:
		w.push()
		w.stmt(s.Init)
		w.expr(s.Cond)
		w.stmt(s.Post)
		w.stmt(s.Body)
		w.pop()
	case *ast.RangeStmt:
		w.expr(s.X)
		w.push()
		for _, x := range []ast.Expr{s.Key, s.Value} {
			if id, ok := x.(*ast.Ident); ok && s.Tok == token.DEFINE {
				w.declare(id)
			} else {
				w.expr(x)
			}
		}
		w.stmt(s.Body)
		w.pop()
	case *ast.SwitchStmt:
		w.push()
		w.stmt(s.Init)
		w.expr(s.Tag)
		for _, c := range s.Body.List {
			c := c.(*ast.CaseClause)
			for _, x := range c.List {
				w.expr(x)
			}
			w.body(c.Body)
		}
		w.pop()
	case *ast.TypeSwitchStmt:
		w.push()
		w.stmt(s.Init)
		var bind *ast.Ident
		switch a := s.Assign.(type) {
		case *ast.AssignStmt:
			bind, _ = a.Lhs[0].(*ast.Ident)
			w.expr(a.Rhs[0])
		case *ast.ExprStmt:
			w.expr(a.X)
		}
		for _, c := range s.Body.List {
			c := c.(*ast.CaseClause)
			for _, x := range c.List {
				w.expr(x)
			}
			w.push()
			w.declare(bind)
			w.stmts(c.Body)
			w.pop()
		}
		w.pop()
	case *ast.SelectStmt:
		for _, c := range s.Body.List {
			c := c.(*ast.CommClause)
			w.push()
			w.stmt(c.Comm)
			w.stmts(c.Body)
			w.pop()
		}
	}
}

func (w *walker) decl(gen *ast.GenDecl) {
	for _, spec := range gen.Specs {
		switch spec := spec.(type) {
		case *ast.ValueSpec:
			w.expr(spec.Type)
			for _, x := range spec.Values {
				w.expr(x)
			}
			for _, n := range spec.Names {
				w.declare(n)
			}
		case *ast.TypeSpec:
			w.declare(spec.Name)
			w.fields(spec.TypeParams)
			w.expr(spec.Type)
		}
	}
}

func (w *walker) fields(list *ast.FieldList) {
	if list == nil {
		return
	}
	for _, f := range list.List {
		w.expr(f.Type)
	}
}

func (w *walker) bind(list *ast.FieldList) {
	if list == nil {
		return
	}
	for _, f := range list.List {
		for _, n := range f.Names {
			w.declare(n)
		}
	}
}

func (w *walker) expr(x ast.Expr) {
	switch x := x.(type) {
	case nil:
	case *ast.Ident:
		w.ident(x)
	case *ast.SelectorExpr:
		w.expr(x.X)
	case *ast.FuncLit:
		w.fields(x.Type.TypeParams)
		w.fields(x.Type.Params)
		w.fields(x.Type.Results)
		w.push()
		w.bind(x.Type.Params)
		w.bind(x.Type.Results)
		w.stmts(x.Body.List)
		w.pop()
	case *ast.FuncType:
		w.fields(x.TypeParams)
		w.fields(x.Params)
		w.fields(x.Results)
	case *ast.StructType:
		w.fields(x.Fields)
	case *ast.InterfaceType:
		w.fields(x.Methods)
	case *ast.CompositeLit:
		w.expr(x.Type)
		// Without type information, keys of anything but map and array
		// literals are taken to be field names.
		var keyed bool
		switch x.Type.(type) {
		case *ast.MapType, *ast.ArrayType:
			keyed = true
		}
		for _, elt := range x.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				w.expr(elt)
				continue
			}
			if _, field := kv.Key.(*ast.Ident); !field || keyed {
				w.expr(kv.Key)
			}
			w.expr(kv.Value)
		}
	default:
		ast.Inspect(x, func(n ast.Node) bool {
			if n == x {
				return true
			}
			if e, ok := n.(ast.Expr); ok {
				w.expr(e)
			}
			return false
		})
	}
}

// rewrite replaces every use of a persistent variable in body with a
// dereference of the parameter of the same name. It returns the statics
// redeclared at the top level of the body.
func rewrite(body *ast.BlockStmt, statics []Static) []*ast.Ident {
	names := map[string]bool{}
	for _, s := range statics {
		names[s.Name] = true
	}
	w := newWalker(names)
	w.body(body.List)

	astutil.Apply(body, func(c *astutil.Cursor) bool {
		id, ok := c.Node().(*ast.Ident)
		if !ok || !w.targets[id] {
			return true
		}
		c.Replace(&ast.ParenExpr{
			Lparen: id.Pos(),
			X: &ast.StarExpr{
				Star: id.Pos(),
				X:    &ast.Ident{NamePos: id.Pos(), Name: id.Name},
			},
			Rparen: id.End(),
		})
		return false
	}, nil)
	return w.redeclared
}
