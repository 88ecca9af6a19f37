// Package transform turns annotated handler functions into the shape the
// vector table expects.
//
// A handler is a plain function carrying one of the directives
//
//	//m68k:entry
//	//m68k:interrupt
//	//m68k:pre_init
//	//m68k:trap num=N
//
// Entry and interrupt handlers may open with variable declarations. These are
// persistent: they are lifted into single-initialization storage and handed
// to the renamed function by pointer, so their values survive between
// invocations. An exported trampoline under the vector symbol calls the
// renamed function and an init function binds it into the rt registry.
package transform

import (
	"go/ast"
	"go/token"
	"path"
	"strings"
	"sync"

	"omibyte.io/m68krt/rt"
)

const (
	RuntimePath  = "omibyte.io/m68krt/rt"
	CriticalPath = "omibyte.io/m68krt/critical"
)

// Device is a package declaring device interrupts.
type Device struct {
	Path       string
	Name       string
	Interrupts []string
}

type Config struct {
	Devices []Device

	// Generator names the tool in the header of generated files.
	Generator string
}

// Transformer rewrites packages. It is safe for concurrent use; symbols
// exported by handlers must be unique across everything it transforms.
type Transformer struct {
	cfg Config

	mu      sync.Mutex
	symbols map[string]token.Position
}

func New(cfg Config) *Transformer {
	if cfg.Generator == "" {
		cfg.Generator = "m68krt"
	}
	return &Transformer{cfg: cfg, symbols: map[string]token.Position{}}
}

// File is the result for one source file. Source is nil when the file holds
// no handlers.
type File struct {
	Name     string
	Source   []byte
	Handlers []*Handler
}

// Package transforms the files of one package. Nothing is returned when any
// handler is rejected.
func (t *Transformer) Package(fset *token.FileSet, files []*ast.File) ([]*File, error) {
	var errs ErrorList
	scope := packageScope(files)

	result := make([]*File, len(files))
	for i, file := range files {
		f := &File{Name: fset.Position(file.Package).Filename}
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if h := t.handler(fset, fn, &errs); h != nil {
				f.Handlers = append(f.Handlers, h)
			}
		}
		result[i] = f
	}
	if len(errs) > 0 {
		return nil, errs.Err()
	}

	for i, file := range files {
		f := result[i]
		if len(f.Handlers) == 0 {
			continue
		}
		src, err := t.generate(fset, file, f, scope)
		if err != nil {
			return nil, err
		}
		f.Source = src
	}
	return result, nil
}

func (t *Transformer) handler(fset *token.FileSet, fn *ast.FuncDecl, errs *ErrorList) *Handler {
	before := len(*errs)
	d, hints := t.directives(fset, fn, errs)
	if d == nil {
		return nil
	}
	h := &Handler{
		Name:      fn.Name.Name,
		Kind:      d.kind,
		Trap:      d.trap,
		Symbol:    symbolFor(d, fn.Name.Name),
		Pos:       fset.Position(fn.Pos()),
		decl:      fn,
		directive: d.comment,
		hints:     hints,
	}
	if !checkSignature(fset, fn, d, hints, errs) {
		return nil
	}
	if h.Kind == Interrupt && !t.resolve(h) {
		errs.add(h.Pos, ErrUnknownInterrupt, "interrupt handler %s does not name an exception or a device interrupt", h.Name)
		return nil
	}

	if h.Kind == Entry || h.Kind == Interrupt {
		var (
			rest   []ast.Stmt
			locals map[string]token.Pos
		)
		h.Statics, rest, locals = statics(fset, h, fn.Body, errs)
		h.removed = removedStmts(fn.Body.List, rest)
		fn.Body.List = rest
		checkHoisted(fset, h, locals, errs)
		for _, id := range rewrite(fn.Body, h.Statics) {
			errs.add(fset.Position(id.Pos()), ErrDuplicateStatic, "%s: %s redeclares a persistent variable", h.Name, id.Name)
		}
	}
	if len(*errs) > before {
		return nil
	}
	t.claim(h, errs)
	return h
}

func removedStmts(all, kept []ast.Stmt) []ast.Stmt {
	keep := map[ast.Stmt]bool{}
	for _, s := range kept {
		keep[s] = true
	}
	var removed []ast.Stmt
	for _, s := range all {
		if !keep[s] {
			removed = append(removed, s)
		}
	}
	return removed
}

// resolve finds the package declaring the interrupt a handler is named
// after.
func (t *Transformer) resolve(h *Handler) bool {
	if _, ok := rt.LookupException(h.Name); ok {
		return true
	}
	for _, d := range t.cfg.Devices {
		for _, name := range d.Interrupts {
			if name != h.Name {
				continue
			}
			// Without a package the interrupt is declared by hand and
			// nothing is referenced.
			if d.Path != "" {
				h.Path = d.Path
				h.Qualifier = d.Name
				if h.Qualifier == "" {
					h.Qualifier = path.Base(d.Path)
				}
			}
			return true
		}
	}
	return false
}

// claim records the symbol of h. Of two handlers exporting the same symbol,
// the one later in file order is reported so the outcome does not depend on
// the order packages are transformed in.
func (t *Transformer) claim(h *Handler, errs *ErrorList) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.symbols[h.Symbol]
	if !ok {
		t.symbols[h.Symbol] = h.Pos
		return
	}
	at, first := h.Pos, prev
	if before(h.Pos, prev) {
		t.symbols[h.Symbol] = h.Pos
		at, first = prev, h.Pos
	}
	if h.Kind == PreInit {
		errs.add(at, ErrPreInitRedeclared, "pre-init hook already declared at %s", first)
		return
	}
	errs.add(at, ErrDuplicateSymbol, "%s handler for %s already declared at %s", h.Kind, h.Symbol, first)
}

func before(a, b token.Position) bool {
	if a.Filename != b.Filename {
		return a.Filename < b.Filename
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// packageScope returns the names declared at package level.
func packageScope(files []*ast.File) map[string]bool {
	names := map[string]bool{}
	for _, file := range files {
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.FuncDecl:
				if decl.Recv == nil {
					names[decl.Name.Name] = true
				}
			case *ast.GenDecl:
				for _, spec := range decl.Specs {
					switch spec := spec.(type) {
					case *ast.ValueSpec:
						for _, n := range spec.Names {
							names[n.Name] = true
						}
					case *ast.TypeSpec:
						names[spec.Name.Name] = true
					}
				}
			}
		}
	}
	return names
}

// IsGenerated reports whether src starts with a generated-code header.
func IsGenerated(src []byte) bool {
	line, _, _ := strings.Cut(string(src), "\n")
	return strings.HasPrefix(line, "// Code generated ") && strings.HasSuffix(line, " DO NOT EDIT.")
}
