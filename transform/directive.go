package transform

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Kind is the category of a handler.
type Kind int

const (
	Entry Kind = iota
	Interrupt
	PreInit
	Trap
)

var kindNames = [...]string{"entry", "interrupt", "pre_init", "trap"}

func (k Kind) String() string {
	return kindNames[k]
}

const directivePrefix = "//m68k:"

type directive struct {
	kind    Kind
	trap    int
	comment *ast.Comment
}

// Compiler directives that only tune code generation for the function.
var hints = map[string]bool{
	"noinline":   true,
	"nosplit":    true,
	"norace":     true,
	"nocheckptr": true,
	"section":    true,
}

// directives reads the doc comment of fn. It returns nil when fn carries no
// handler directive. Comments other than documentation, lint controls and
// code generation hints are rejected on handlers.
func (t *Transformer) directives(fset *token.FileSet, fn *ast.FuncDecl, errs *ErrorList) (*directive, []*ast.Comment) {
	if fn.Doc == nil {
		return nil, nil
	}
	var (
		d       *directive
		kept    []*ast.Comment
		foreign []*ast.Comment
	)
	for _, c := range fn.Doc.List {
		text := c.Text
		pos := fset.Position(c.Pos())
		switch {
		case strings.HasPrefix(text, directivePrefix):
			next, ok := parseDirective(text, pos, errs)
			if !ok {
				continue
			}
			next.comment = c
			if d != nil {
				errs.add(pos, ErrDisallowedDirective, "%s carries more than one handler directive", fn.Name.Name)
				continue
			}
			d = next
		case allowedComment(text):
			if isHint(text) {
				kept = append(kept, c)
			}
		default:
			foreign = append(foreign, c)
		}
	}
	if d == nil {
		return nil, nil
	}
	for _, c := range foreign {
		errs.add(fset.Position(c.Pos()), ErrDisallowedDirective, "%s: %s", fn.Name.Name, strings.Fields(c.Text)[0])
	}
	return d, kept
}

func parseDirective(text string, pos token.Position, errs *ErrorList) (*directive, bool) {
	name, rest, _ := strings.Cut(strings.TrimPrefix(text, directivePrefix), " ")
	args, err := shlex.Split(rest)
	if err != nil {
		errs.add(pos, ErrDirectiveArgs, "//m68k:%s: %v", name, err)
		return nil, false
	}
	d := &directive{}
	switch name {
	case "entry":
		d.kind = Entry
	case "interrupt":
		d.kind = Interrupt
	case "pre_init":
		d.kind = PreInit
	case "trap":
		d.kind = Trap
		return d, parseTrap(d, args, pos, errs)
	default:
		errs.add(pos, ErrDisallowedDirective, "unknown directive //m68k:%s", name)
		return nil, false
	}
	if len(args) != 0 {
		errs.add(pos, ErrDirectiveArgs, "//m68k:%s takes no arguments", name)
		return nil, false
	}
	return d, true
}

func parseTrap(d *directive, args []string, pos token.Position, errs *ErrorList) bool {
	if len(args) == 0 {
		errs.add(pos, ErrTrapNumber, "//m68k:trap needs num=N")
		return false
	}
	found := false
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key != "num" || found {
			errs.add(pos, ErrDirectiveArgs, "//m68k:trap: unexpected argument %q", arg)
			return false
		}
		found = true
		n, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			errs.add(pos, ErrDirectiveArgs, "//m68k:trap: invalid number %q", value)
			return false
		}
		if n < 1 || n > 14 {
			errs.add(pos, ErrTrapNumber, "trap number %d out of range", n)
			return false
		}
		d.trap = int(n)
	}
	return true
}

func allowedComment(text string) bool {
	switch {
	case strings.HasPrefix(text, "/*"):
		return true
	case strings.HasPrefix(text, "//nolint"), strings.HasPrefix(text, "//lint:ignore"):
		return true
	case isHint(text):
		return true
	case strings.HasPrefix(text, "//export "), text == "//export":
		return false
	}
	return !isDirective(text)
}

func isHint(text string) bool {
	if !strings.HasPrefix(text, "//go:") {
		return false
	}
	name := strings.Fields(strings.TrimPrefix(text, "//go:"))
	return len(name) > 0 && hints[name[0]]
}

// isDirective reports whether text has the //tool:name form.
func isDirective(text string) bool {
	body := strings.TrimPrefix(text, "//")
	if body == text || body == "" || body[0] == ' ' || body[0] == '\t' {
		return false
	}
	tool, _, ok := strings.Cut(strings.Fields(body)[0], ":")
	if !ok || tool == "" {
		return false
	}
	for _, r := range tool {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
