package transform

import (
	"go/ast"
	"go/token"

	"omibyte.io/m68krt/rt"
)

// Static is a persistent variable lifted out of a handler body.
type Static struct {
	Name string
	Type ast.Expr
	// Init is nil when the variable starts at its zero value.
	Init ast.Expr
	Pos  token.Position
}

// Handler is a function carrying a handler directive.
type Handler struct {
	Name    string
	Kind    Kind
	Symbol  string
	Trap    int
	Statics []Static
	Pos     token.Position

	// Qualifier and Path name the package declaring an interrupt. Path is
	// empty for core exceptions.
	Qualifier string
	Path      string

	decl      *ast.FuncDecl
	directive *ast.Comment
	hints     []*ast.Comment
	removed   []ast.Stmt
}

// Renamed is the name of the transformed function.
func (h *Handler) Renamed() string {
	return "_m68krt_" + h.Name
}

// Trampoline is the name of the exported wrapper.
func (h *Handler) Trampoline() string {
	return h.Renamed() + "_trampoline"
}

func (h *Handler) slot(s Static) string {
	return h.Renamed() + "_" + s.Name
}

func symbolFor(d *directive, name string) string {
	switch d.kind {
	case Entry:
		return rt.EntrySymbol
	case PreInit:
		return rt.PreInitSymbol
	case Trap:
		return rt.TrapSymbol(d.trap)
	}
	return name
}

// checkSignature validates the shape every handler shares and the return
// shape of its kind.
func checkSignature(fset *token.FileSet, fn *ast.FuncDecl, d *directive, hints []*ast.Comment, errs *ErrorList) bool {
	pos := fset.Position(fn.Pos())
	name := fn.Name.Name
	kind := d.kind
	ok := true
	fail := func(format string, args ...any) {
		errs.add(pos, ErrInvalidSignature, "%s function %s "+format, append([]any{kind, name}, args...)...)
		ok = false
	}

	if fn.Recv != nil {
		fail("must not be a method")
	}
	if fn.Body == nil {
		fail("must have a body")
	}
	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		fail("must not have type parameters")
	}
	if fn.Type.Params != nil && len(fn.Type.Params.List) > 0 {
		fail("must not have parameters")
	}
	if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 {
		fail("must not return values")
	}
	if name == "_" || name == "init" {
		fail("must have a callable name")
	}

	switch kind {
	case Entry:
		if fn.Body == nil {
			break
		}
		if r := findReturn(fn.Body); r != nil {
			errs.add(fset.Position(r.Pos()), ErrInvalidSignature, "entry function %s must never return", name)
			ok = false
		} else if !terminates(fn.Body) {
			fail("must never return: end it with a terminating statement such as an endless loop")
		}
	case PreInit:
		privileged := false
		for _, c := range hints {
			if c.Text == "//go:nosplit" {
				privileged = true
			}
		}
		if !privileged {
			fail("must be marked //go:nosplit: it runs before memory is initialized")
		}
	}
	return ok
}

// findReturn returns the first return statement of body outside function
// literals.
func findReturn(body *ast.BlockStmt) *ast.ReturnStmt {
	var found *ast.ReturnStmt
	ast.Inspect(body, func(n ast.Node) bool {
		if found != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.ReturnStmt:
			found = n
			return false
		}
		return true
	})
	return found
}

// statics splits the leading variable declarations off body. Constant and
// type declarations among them stay in the body and are returned as locals.
func statics(fset *token.FileSet, h *Handler, body *ast.BlockStmt, errs *ErrorList) (result []Static, rest []ast.Stmt, locals map[string]token.Pos) {
	locals = map[string]token.Pos{}
	seen := map[string]bool{}
	i := 0
scan:
	for ; i < len(body.List); i++ {
		decl, ok := body.List[i].(*ast.DeclStmt)
		if !ok {
			break
		}
		gen := decl.Decl.(*ast.GenDecl)
		switch gen.Tok {
		case token.CONST, token.TYPE:
			rest = append(rest, decl)
			for _, spec := range gen.Specs {
				switch spec := spec.(type) {
				case *ast.ValueSpec:
					for _, n := range spec.Names {
						locals[n.Name] = n.Pos()
					}
				case *ast.TypeSpec:
					locals[spec.Name.Name] = spec.Name.Pos()
				}
			}
			continue
		case token.VAR:
		default:
			break scan
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			pos := fset.Position(vs.Pos())
			if vs.Type == nil {
				errs.add(pos, ErrMissingType, "%s: persistent variable %s has no type", h.Name, vs.Names[0].Name)
				continue
			}
			if len(vs.Values) != 0 && len(vs.Values) != len(vs.Names) {
				errs.add(pos, ErrInvalidStatic, "%s: persistent variables must be initialized one value per name", h.Name)
				continue
			}
			for j, n := range vs.Names {
				npos := fset.Position(n.Pos())
				if n.Name == "_" {
					errs.add(npos, ErrInvalidStatic, "%s: persistent variable must be named", h.Name)
					continue
				}
				if seen[n.Name] {
					errs.add(npos, ErrDuplicateStatic, "%s: persistent variable %s declared twice", h.Name, n.Name)
					continue
				}
				if _, ok := locals[n.Name]; ok {
					errs.add(npos, ErrDuplicateStatic, "%s: persistent variable %s shadows a local declaration", h.Name, n.Name)
					continue
				}
				seen[n.Name] = true
				s := Static{Name: n.Name, Type: vs.Type, Pos: npos}
				if len(vs.Values) > 0 {
					s.Init = vs.Values[j]
				}
				result = append(result, s)
			}
		}
	}
	rest = append(rest, body.List[i:]...)
	return result, rest, locals
}

// checkHoisted rejects persistent variable types and initializers that refer
// to names only visible inside the handler.
func checkHoisted(fset *token.FileSet, h *Handler, locals map[string]token.Pos, errs *ErrorList) {
	names := map[string]bool{}
	for name := range locals {
		names[name] = true
	}
	for _, s := range h.Statics {
		names[s.Name] = true
	}
	for _, s := range h.Statics {
		for _, expr := range []ast.Expr{s.Type, s.Init} {
			if expr == nil {
				continue
			}
			for _, id := range freeIdents(expr) {
				if names[id.Name] {
					errs.add(fset.Position(id.Pos()), ErrInvalidStatic, "%s: persistent variable %s refers to local %s", h.Name, s.Name, id.Name)
				}
			}
		}
	}
}

// freeIdents returns the identifiers of expr that resolve in the enclosing
// scope: selectors, struct literal keys and names bound by function literals
// inside expr are skipped.
func freeIdents(expr ast.Expr) []*ast.Ident {
	w := newWalker(nil)
	w.collect = true
	w.expr(expr)
	return w.free
}
