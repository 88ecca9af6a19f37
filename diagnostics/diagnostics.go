// Package diagnostics formats handler transform and build errors and prints
// them in a consistent way.
package diagnostics

import (
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/packages"

	"omibyte.io/m68krt/builder"
	"omibyte.io/m68krt/transform"
)

// A single diagnostic.
type Diagnostic struct {
	Pos token.Position
	Msg string
}

// One or multiple errors of a particular package.
type PackageDiagnostic struct {
	ImportPath  string
	Diagnostics []Diagnostic
}

// Diagnostics of a whole run.
type ProgramDiagnostic []PackageDiagnostic

// CreateDiagnostics reads the errors wrapped in err and creates a sorted set
// of diagnostics, grouped by package.
func CreateDiagnostics(err error) ProgramDiagnostic {
	if err == nil {
		return nil
	}
	var result ProgramDiagnostic
	var loose []error
	for _, e := range flatten(err) {
		var pkgErr *builder.PackageError
		if errors.As(e, &pkgErr) {
			result = append(result, createPackageDiagnostic(pkgErr.ImportPath, pkgErr.Err))
			continue
		}
		loose = append(loose, e)
	}
	if len(loose) > 0 {
		result = append(result, createPackageDiagnostic("", errors.Join(loose...)))
	}
	return result
}

// flatten splits joined errors, but not the error lists of a single package.
func flatten(err error) []error {
	switch err.(type) {
	case *builder.PackageError, transform.ErrorList:
		return []error{err}
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var result []error
		for _, e := range multi.Unwrap() {
			result = append(result, flatten(e)...)
		}
		return result
	}
	return []error{err}
}

func createPackageDiagnostic(importPath string, err error) PackageDiagnostic {
	pkgDiag := PackageDiagnostic{
		ImportPath:  importPath,
		Diagnostics: createDiagnostics(err),
	}

	// Sort these diagnostics by file/line/column.
	slices.SortStableFunc(pkgDiag.Diagnostics, func(a, b Diagnostic) bool {
		if a.Pos.Filename != b.Pos.Filename {
			return a.Pos.Filename < b.Pos.Filename
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		return a.Pos.Column < b.Pos.Column
	})
	return pkgDiag
}

// Extract diagnostics from the given error.
func createDiagnostics(err error) []Diagnostic {
	switch err := err.(type) {
	case transform.ErrorList:
		var diags []Diagnostic
		for _, e := range err {
			diags = append(diags, createDiagnostics(e)...)
		}
		return diags
	case *transform.Error:
		return []Diagnostic{{Pos: err.Pos, Msg: err.Msg}}
	case scanner.Error:
		return []Diagnostic{{Pos: err.Pos, Msg: err.Msg}}
	case scanner.ErrorList:
		var diags []Diagnostic
		for _, e := range err {
			diags = append(diags, createDiagnostics(*e)...)
		}
		return diags
	case packages.Error:
		return []Diagnostic{{Pos: parsePosition(err.Pos), Msg: err.Msg}}
	case interface{ Unwrap() []error }:
		var diags []Diagnostic
		for _, e := range err.Unwrap() {
			diags = append(diags, createDiagnostics(e)...)
		}
		return diags
	}
	return []Diagnostic{{Msg: err.Error()}}
}

// parsePosition reads the file:line:col form used by go/packages.
func parsePosition(s string) token.Position {
	var pos token.Position
	parts := strings.Split(s, ":")
	if len(parts) >= 3 {
		if _, err := fmt.Sscanf(parts[len(parts)-2]+" "+parts[len(parts)-1], "%d %d", &pos.Line, &pos.Column); err == nil {
			pos.Filename = strings.Join(parts[:len(parts)-2], ":")
			return pos
		}
	}
	if len(parts) >= 2 {
		if _, err := fmt.Sscanf(parts[len(parts)-1], "%d", &pos.Line); err == nil {
			pos.Filename = strings.Join(parts[:len(parts)-1], ":")
			return pos
		}
	}
	pos.Filename = s
	return pos
}

const (
	bold  = "\x1b[1m"
	red   = "\x1b[31m"
	reset = "\x1b[0m"
)

// Write program diagnostics to the given writer with 'wd' as the relative
// working directory.
func (progDiag ProgramDiagnostic) WriteTo(w io.Writer, wd string, color bool) {
	for _, pkgDiag := range progDiag {
		pkgDiag.WriteTo(w, wd, color)
	}
}

func (pkgDiag PackageDiagnostic) WriteTo(w io.Writer, wd string, color bool) {
	if pkgDiag.ImportPath != "" {
		fmt.Fprintln(w, "#", pkgDiag.ImportPath)
	}
	for _, diag := range pkgDiag.Diagnostics {
		diag.WriteTo(w, wd, color)
	}
}

func (diag Diagnostic) WriteTo(w io.Writer, wd string, color bool) {
	if diag.Pos == (token.Position{}) {
		fmt.Fprintln(w, diag.Msg)
		return
	}
	pos := RelativePosition(diag.Pos, wd)
	if color {
		fmt.Fprintf(w, "%s%s:%s %s%s%s\n", bold, pos, reset, red, diag.Msg, reset)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", pos, diag.Msg)
}

// Convert the position in pos (assumed to have an absolute path) into a
// relative path if possible.
func RelativePosition(pos token.Position, wd string) token.Position {
	if wd == "" || !filepath.IsAbs(pos.Filename) {
		return pos
	}
	relpath, err := filepath.Rel(wd, pos.Filename)
	if err == nil && !strings.HasPrefix(relpath, "..") {
		pos.Filename = relpath
	}
	return pos
}

// Stderr returns a writer for diagnostics on standard error and reports
// whether it is a terminal that takes colour.
func Stderr() (io.Writer, bool) {
	fd := os.Stderr.Fd()
	color := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return colorable.NewColorableStderr(), color && os.Getenv("NO_COLOR") == ""
}
