package transform

import (
	"errors"
	"fmt"
	"go/token"
	"strings"

	"golang.org/x/exp/slices"
)

var (
	ErrInvalidSignature    = errors.New("invalid handler signature")
	ErrDuplicateStatic     = errors.New("duplicate persistent variable")
	ErrInvalidStatic       = errors.New("invalid persistent variable")
	ErrMissingType         = errors.New("persistent variable needs an explicit type")
	ErrDisallowedDirective = errors.New("directive not allowed on handler")
	ErrDirectiveArgs       = errors.New("invalid directive arguments")
	ErrTrapNumber          = errors.New("trap number must be between 1 and 14")
	ErrUnknownInterrupt    = errors.New("unknown exception or interrupt")
	ErrPreInitRedeclared   = errors.New("pre-init hook already declared")
	ErrDuplicateSymbol     = errors.New("handler symbol already declared")
)

// Error is a definition-time failure at a source position.
type Error struct {
	Pos token.Position
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return e.Pos.String() + ": " + e.Msg
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorList collects the failures of one run.
type ErrorList []*Error

func (l *ErrorList) add(pos token.Position, err error, format string, args ...any) {
	*l = append(*l, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err})
}

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	var b strings.Builder
	for i, e := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

func (l ErrorList) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Sort orders the list by file, line and column.
func (l ErrorList) Sort() {
	slices.SortStableFunc(l, func(a, b *Error) bool {
		if a.Pos.Filename != b.Pos.Filename {
			return a.Pos.Filename < b.Pos.Filename
		}
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		return a.Pos.Column < b.Pos.Column
	})
}

// Err returns the sorted list, or nil when it is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	l.Sort()
	return l
}
