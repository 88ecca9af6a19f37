package transform

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/printer"
	"go/token"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"omibyte.io/m68krt/rt"
)

func (t *Transformer) generate(fset *token.FileSet, file *ast.File, f *File, scope map[string]bool) ([]byte, error) {
	imp := newImports(fset, file, scope)
	rtName := imp.use(RuntimePath, "rt")
	criticalName := ""
	for _, h := range f.Handlers {
		if len(h.Statics) > 0 {
			criticalName = imp.use(CriticalPath, "critical")
			break
		}
	}
	for _, h := range f.Handlers {
		switch {
		case h.Path != "":
			h.Qualifier = imp.use(h.Path, h.Qualifier)
		case h.Kind == Interrupt && h.Qualifier == "":
			if _, ok := rt.LookupException(h.Name); ok {
				h.Qualifier = rtName
			}
		}
	}

	bodies := make([]string, len(f.Handlers))
	for i, h := range f.Handlers {
		body, err := printBody(fset, file, h)
		if err != nil {
			return nil, err
		}
		bodies[i] = body
	}

	removeHandlers(file, f.Handlers)

	var out bytes.Buffer
	fmt.Fprintf(&out, "// Code generated by %s from %s. DO NOT EDIT.\n\n", t.cfg.Generator, filepath.Base(f.Name))
	if err := format.Node(&out, fset, file); err != nil {
		return nil, err
	}
	out.WriteString("\n")

	for i, h := range f.Handlers {
		e := emitter{b: &out, fset: fset, rt: rtName, critical: criticalName}
		if err := e.handler(h, bodies[i]); err != nil {
			return nil, err
		}
	}

	out.WriteString("func init() {\n")
	for _, h := range f.Handlers {
		switch h.Kind {
		case Entry:
			fmt.Fprintf(&out, "\t%s.BindEntry(%s)\n", rtName, h.Trampoline())
		case Interrupt:
			fmt.Fprintf(&out, "\t%s.Bind(%q, %s)\n", rtName, h.Name, h.Trampoline())
		case PreInit:
			fmt.Fprintf(&out, "\t%s.BindPreInit(%s)\n", rtName, h.Trampoline())
		case Trap:
			fmt.Fprintf(&out, "\t%s.BindTrap(%d, %s)\n", rtName, h.Trap, h.Trampoline())
		}
	}
	out.WriteString("}\n")

	src, err := format.Source(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%s: formatting generated code: %w", f.Name, err)
	}
	return src, nil
}

// printBody prints the body of a handler with the comments it encloses,
// leaving out those of the lifted declarations.
func printBody(fset *token.FileSet, file *ast.File, h *Handler) (string, error) {
	body := h.decl.Body
	var comments []*ast.CommentGroup
	for _, cg := range file.Comments {
		if cg.Pos() < body.Lbrace || cg.End() > body.Rbrace {
			continue
		}
		lifted := false
		for _, s := range h.removed {
			trailing := fset.Position(cg.Pos()).Line == fset.Position(s.End()).Line
			if cg.Pos() >= s.Pos() && (cg.End() <= s.End() || trailing) {
				lifted = true
				break
			}
		}
		if !lifted {
			comments = append(comments, cg)
		}
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, &printer.CommentedNode{Node: body, Comments: comments}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func removeHandlers(file *ast.File, handlers []*Handler) {
	drop := map[ast.Decl]bool{}
	type span struct{ start, end token.Pos }
	var spans []span
	for _, h := range handlers {
		drop[h.decl] = true
		start := h.decl.Pos()
		if h.decl.Doc != nil {
			start = h.decl.Doc.Pos()
		}
		spans = append(spans, span{start, h.decl.End()})
	}

	decls := file.Decls[:0]
	for _, d := range file.Decls {
		if !drop[d] {
			decls = append(decls, d)
		}
	}
	file.Decls = decls

	comments := file.Comments[:0]
outer:
	for _, cg := range file.Comments {
		for _, s := range spans {
			if cg.Pos() >= s.start && cg.End() <= s.end {
				continue outer
			}
		}
		comments = append(comments, cg)
	}
	file.Comments = comments
}

type emitter struct {
	b        *bytes.Buffer
	fset     *token.FileSet
	rt       string
	critical string
}

func (e *emitter) node(n ast.Node) (string, error) {
	var buf bytes.Buffer
	if err := format.Node(&buf, e.fset, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *emitter) doc(h *Handler) {
	if h.decl.Doc == nil {
		return
	}
	for _, c := range h.decl.Doc.List {
		if c == h.directive || isHint(c.Text) {
			continue
		}
		e.b.WriteString(c.Text)
		e.b.WriteByte('\n')
	}
}

func (e *emitter) hints(h *Handler) {
	for _, c := range h.hints {
		e.b.WriteString(c.Text)
		e.b.WriteByte('\n')
	}
}

func (e *emitter) trampoline(h *Handler, call string) {
	e.hints(h)
	fmt.Fprintf(e.b, "//go:export %s %s\n", h.Trampoline(), h.Symbol)
	fmt.Fprintf(e.b, "func %s() {\n\t%s\n}\n\n", h.Trampoline(), call)
}

func (e *emitter) handler(h *Handler, body string) error {
	switch h.Kind {
	case PreInit:
		e.doc(h)
		e.hints(h)
		fmt.Fprintf(e.b, "func %s() %s\n\n", h.Name, body)
		e.trampoline(h, h.Name+"()")
		return nil
	case Trap:
		e.hints(h)
		fmt.Fprintf(e.b, "func %s() %s\n\n", h.Renamed(), body)
		e.trampoline(h, h.Renamed()+"()")
		e.doc(h)
		fmt.Fprintf(e.b, "func %s() {\n\t%s.Trap(%d)\n}\n\n", h.Name, e.rt, h.Trap)
		return nil
	case Interrupt:
		if h.Qualifier != "" {
			body = "{\n_ = " + h.Qualifier + "." + h.Name + strings.TrimPrefix(body, "{")
		}
	}

	types := make([]string, len(h.Statics))
	params := make([]string, len(h.Statics))
	args := make([]string, len(h.Statics))
	for i, s := range h.Statics {
		typ, err := e.node(s.Type)
		if err != nil {
			return err
		}
		types[i] = typ
		params[i] = s.Name + " *" + typ
		args[i] = h.slot(s) + ".Get(nil)"
		if s.Init != nil {
			value, err := e.node(s.Init)
			if err != nil {
				return err
			}
			args[i] = fmt.Sprintf("%s.Get(func() %s { return %s })", h.slot(s), typ, value)
		}
	}

	e.doc(h)
	e.hints(h)
	fmt.Fprintf(e.b, "func %s(%s) %s\n\n", h.Renamed(), strings.Join(params, ", "), body)
	for i, s := range h.Statics {
		fmt.Fprintf(e.b, "var %s %s.Static[%s]\n", h.slot(s), e.critical, types[i])
	}
	if len(h.Statics) > 0 {
		e.b.WriteByte('\n')
	}

	call := h.Renamed() + "()"
	if len(args) > 0 {
		call = h.Renamed() + "(\n\t\t" + strings.Join(args, ",\n\t\t") + ",\n\t)"
	}
	e.trampoline(h, call)
	return nil
}

type imports struct {
	fset  *token.FileSet
	file  *ast.File
	taken map[string]bool
}

func newImports(fset *token.FileSet, file *ast.File, scope map[string]bool) *imports {
	taken := map[string]bool{}
	for name := range scope {
		taken[name] = true
	}
	for _, imp := range file.Imports {
		taken[importName(imp)] = true
	}
	return &imports{fset: fset, file: file, taken: taken}
}

func importName(imp *ast.ImportSpec) string {
	if imp.Name != nil {
		return imp.Name.Name
	}
	p, _ := strconv.Unquote(imp.Path.Value)
	return path.Base(p)
}

// use returns the name under which the file refers to the package at p,
// adding an import when the file has none usable.
func (i *imports) use(p, name string) string {
	for _, imp := range i.file.Imports {
		if ip, _ := strconv.Unquote(imp.Path.Value); ip != p {
			continue
		}
		if imp.Name == nil {
			return name
		}
		if imp.Name.Name != "_" && imp.Name.Name != "." {
			return imp.Name.Name
		}
	}
	alias := name
	for n := 1; i.taken[alias]; n++ {
		alias = fmt.Sprintf("%s%d", name, n)
	}
	i.taken[alias] = true
	if alias == name && path.Base(p) == name {
		astutil.AddImport(i.fset, i.file, p)
	} else {
		astutil.AddNamedImport(i.fset, i.file, alias, p)
	}
	return alias
}
