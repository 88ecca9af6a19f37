package transform

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
	"testing"
)

func transformSources(t *testing.T, tr *Transformer, srcs ...string) ([]*File, error) {
	t.Helper()
	fset := token.NewFileSet()
	var files []*ast.File
	for i, src := range srcs {
		f, err := parser.ParseFile(fset, fmt.Sprintf("file%d.go", i), src, parser.ParseComments)
		if err != nil {
			t.Fatalf("parsing input: %v", err)
		}
		files = append(files, f)
	}
	return tr.Package(fset, files)
}

// generated transforms a single file and returns its output, which must
// parse.
func generated(t *testing.T, cfg Config, src string) string {
	t.Helper()
	files, err := transformSources(t, New(cfg), src)
	if err != nil {
		t.Fatal(err)
	}
	out := files[0].Source
	if out == nil {
		t.Fatal("no output generated")
	}
	if _, err := parser.ParseFile(token.NewFileSet(), "out.go", out, parser.ParseComments); err != nil {
		t.Fatalf("output does not parse: %v\n%s", err, out)
	}
	if !IsGenerated(out) {
		t.Errorf("output lacks the generated header:\n%s", out)
	}
	return string(out)
}

func expect(t *testing.T, out string, snippets ...string) {
	t.Helper()
	for _, s := range snippets {
		if !strings.Contains(out, s) {
			t.Errorf("output lacks %q:\n%s", s, out)
		}
	}
}

func reject(t *testing.T, out string, snippets ...string) {
	t.Helper()
	for _, s := range snippets {
		if strings.Contains(out, s) {
			t.Errorf("output contains %q:\n%s", s, out)
		}
	}
}

func TestEntryWithPersistentState(t *testing.T) {
	out := generated(t, Config{}, `package app

import "fmt"

// run is the program.
//
//m68k:entry
//go:noinline
func run() {
	var count uint32 = 10 // frames
	var buf [4]byte
	const step = 2
	for {
		count += step
		buf[0] = byte(count)
		fmt.Println(count, buf)
	}
}
`)
	expect(t, out,
		`"omibyte.io/m68krt/critical"`,
		`"omibyte.io/m68krt/rt"`,
		"// run is the program.",
		"func _m68krt_run(count *uint32, buf *[4]byte) {",
		"const step = 2",
		"(*count) += step",
		"(*buf)[0] = byte((*count))",
		"fmt.Println((*count), (*buf))",
		"var _m68krt_run_count critical.Static[uint32]",
		"var _m68krt_run_buf critical.Static[[4]byte]",
		"//go:export _m68krt_run_trampoline main",
		"_m68krt_run_count.Get(func() uint32 { return 10 }),",
		"_m68krt_run_buf.Get(nil),",
		"rt.BindEntry(_m68krt_run_trampoline)",
	)
	reject(t, out, "//m68k:", "// frames", "func run()", "var count")
	if n := strings.Count(out, "//go:noinline"); n != 2 {
		t.Errorf("//go:noinline copied %d times, want 2", n)
	}
}

func TestScopes(t *testing.T) {
	out := generated(t, Config{}, `package app

//m68k:interrupt
func ZeroDivide() {
	var n int
	n++
	{
		n := 5
		_ = n
	}
	f := func(n int) int { return n }
	_ = f(n)
	for n := 0; n < 1; n++ {
	}
	type T struct{ n int }
	_ = T{n: n}
	var s struct{ n int }
	s.n = n
	m := map[int]int{n: 1}
	_ = m
}
`)
	expect(t, out,
		"func _m68krt_ZeroDivide(n *int) {",
		"_ = rt.ZeroDivide",
		"(*n)++",
		"n := 5",
		"return n",
		"f((*n))",
		"for n := 0; n < 1; n++",
		"T{n: (*n)}",
		"s.n = (*n)",
		"map[int]int{(*n): 1}",
		"//go:export _m68krt_ZeroDivide_trampoline ZeroDivide",
		`rt.Bind("ZeroDivide", _m68krt_ZeroDivide_trampoline)`,
	)
	if got := strings.Count(out, "(*n)"); got != 5 {
		t.Errorf("%d rewritten uses, want 5:\n%s", got, out)
	}
}

func TestStaticsPerHandler(t *testing.T) {
	out := generated(t, Config{}, `package app

//m68k:interrupt
func Trace() {
	var count int
	count++
}

//m68k:interrupt
func BusError() {
	var count int
	count++
}
`)
	expect(t, out,
		"var _m68krt_Trace_count critical.Static[int]",
		"var _m68krt_BusError_count critical.Static[int]",
		`rt.Bind("Trace", _m68krt_Trace_trampoline)`,
		`rt.Bind("BusError", _m68krt_BusError_trampoline)`,
	)
}

func TestPreInit(t *testing.T) {
	out := generated(t, Config{}, `package app

// setup runs before RAM is initialized.
//
//m68k:pre_init
//go:nosplit
func setup() {
	var scratch int
	scratch++
}
`)
	expect(t, out,
		"func setup() {",
		"var scratch int",
		"//go:export _m68krt_setup_trampoline __pre_init",
		"setup()\n}",
		"rt.BindPreInit(_m68krt_setup_trampoline)",
	)
	reject(t, out, "critical")
	if n := strings.Count(out, "//go:nosplit"); n != 2 {
		t.Errorf("//go:nosplit copied %d times, want 2", n)
	}
}

func TestTrap(t *testing.T) {
	tests := []struct {
		directive string
		num       int
	}{
		{"//m68k:trap num=3", 3},
		{"//m68k:trap num=1", 1},
		{"//m68k:trap num=0xE", 14},
		{`//m68k:trap "num=7"`, 7},
	}
	for _, test := range tests {
		t.Run(test.directive, func(t *testing.T) {
			out := generated(t, Config{}, `package app

// syscall enters the monitor.
//
`+test.directive+`
func syscall() {
	var local int
	local++
}
`)
			expect(t, out,
				"func _m68krt_syscall() {",
				"var local int",
				fmt.Sprintf("//go:export _m68krt_syscall_trampoline _TRAP%d", test.num),
				fmt.Sprintf("func syscall() {\n\trt.Trap(%d)\n}", test.num),
				fmt.Sprintf("rt.BindTrap(%d, _m68krt_syscall_trampoline)", test.num),
				"// syscall enters the monitor.",
			)
		})
	}
}

func TestDeviceInterrupt(t *testing.T) {
	cfg := Config{Devices: []Device{{
		Path:       "example.com/board/dev",
		Name:       "dev",
		Interrupts: []string{"HBLANK", "VBLANK"},
	}}}
	out := generated(t, cfg, `package app

//m68k:interrupt
func VBLANK() {
	var frames uint32
	frames++
}
`)
	expect(t, out,
		`"example.com/board/dev"`,
		"_ = dev.VBLANK",
		`rt.Bind("VBLANK", _m68krt_VBLANK_trampoline)`,
	)
}

func TestDeviceInterruptWithoutPackage(t *testing.T) {
	cfg := Config{Devices: []Device{{Interrupts: []string{"TICK"}}}}
	out := generated(t, cfg, `package app

//m68k:interrupt
func TICK() {
}

//m68k:interrupt
func Trace() {
}
`)
	expect(t, out,
		`rt.Bind("TICK", _m68krt_TICK_trampoline)`,
		"_ = rt.Trace",
	)
	reject(t, out, ".TICK")
}

func TestImportCollision(t *testing.T) {
	out := generated(t, Config{}, `package app

import rt "example.com/other/rt"

var critical = 1

//m68k:entry
func run() {
	var n int
	for {
		n += critical
		rt.Poll()
	}
}
`)
	expect(t, out,
		`rt1 "omibyte.io/m68krt/rt"`,
		`critical1 "omibyte.io/m68krt/critical"`,
		"critical1.Static[int]",
		"rt1.BindEntry(",
		"(*n) += critical",
	)
}

func TestExistingImport(t *testing.T) {
	out := generated(t, Config{}, `package app

import runtime "omibyte.io/m68krt/rt"

//m68k:interrupt
func Trace() {
	runtime.Nop()
}
`)
	expect(t, out, "_ = runtime.Trace", `runtime.Bind("Trace"`)
	if strings.Count(out, `"omibyte.io/m68krt/rt"`) != 1 {
		t.Errorf("rt imported twice:\n%s", out)
	}
}

func TestFilesWithoutHandlers(t *testing.T) {
	files, err := transformSources(t, New(Config{}), `package app

// plain is not a handler.
//go:noinline
func plain() {}
`, `package app

//m68k:interrupt
func Trace() {}
`)
	if err != nil {
		t.Fatal(err)
	}
	if files[0].Source != nil || len(files[0].Handlers) != 0 {
		t.Error("file without handlers was rewritten")
	}
	if files[1].Source == nil || len(files[1].Handlers) != 1 {
		t.Fatal("handler file not rewritten")
	}
	h := files[1].Handlers[0]
	if h.Kind != Interrupt || h.Symbol != "Trace" || h.Trampoline() != "_m68krt_Trace_trampoline" {
		t.Errorf("handler = %+v", h)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"method", "type X struct{}\n//m68k:entry\nfunc (X) run() { for {} }", ErrInvalidSignature},
		{"parameters", "//m68k:interrupt\nfunc Trace(x int) {}", ErrInvalidSignature},
		{"variadic", "//m68k:interrupt\nfunc Trace(x ...int) {}", ErrInvalidSignature},
		{"results", "//m68k:interrupt\nfunc Trace() int { return 0 }", ErrInvalidSignature},
		{"type parameters", "//m68k:interrupt\nfunc Trace[T any]() {}", ErrInvalidSignature},
		{"no body", "//m68k:interrupt\nfunc Trace()", ErrInvalidSignature},
		{"entry returns", "//m68k:entry\nfunc run() { for { return } }", ErrInvalidSignature},
		{"entry falls through", "//m68k:entry\nfunc run() { println() }", ErrInvalidSignature},
		{"entry loop breaks", "//m68k:entry\nfunc run() { for { break } }", ErrInvalidSignature},
		{"entry results", "//m68k:entry\nfunc run() int { for {} }", ErrInvalidSignature},
		{"pre-init not nosplit", "//m68k:pre_init\nfunc setup() {}", ErrInvalidSignature},
		{"trap parameters", "//m68k:trap num=2\nfunc sys(a int) {}", ErrInvalidSignature},
		{"export", "//m68k:interrupt\n//export Trace\nfunc Trace() {}", ErrDisallowedDirective},
		{"go export", "//m68k:interrupt\n//go:export Trace Trace\nfunc Trace() {}", ErrDisallowedDirective},
		{"linkname", "//m68k:interrupt\n//go:linkname Trace x.Trace\nfunc Trace() {}", ErrDisallowedDirective},
		{"sigo", "//m68k:interrupt\n//sigo:interrupt Trace\nfunc Trace() {}", ErrDisallowedDirective},
		{"unknown directive", "//m68k:exception\nfunc Trace() {}", ErrDisallowedDirective},
		{"two directives", "//m68k:interrupt\n//m68k:interrupt\nfunc Trace() {}", ErrDisallowedDirective},
		{"entry arguments", "//m68k:entry now\nfunc run() { for {} }", ErrDirectiveArgs},
		{"trap zero", "//m68k:trap num=0\nfunc sys() {}", ErrTrapNumber},
		{"trap fifteen", "//m68k:trap num=15\nfunc sys() {}", ErrTrapNumber},
		{"trap sixteen", "//m68k:trap num=16\nfunc sys() {}", ErrTrapNumber},
		{"trap negative", "//m68k:trap num=-1\nfunc sys() {}", ErrTrapNumber},
		{"trap missing", "//m68k:trap\nfunc sys() {}", ErrTrapNumber},
		{"trap not a number", "//m68k:trap num=x\nfunc sys() {}", ErrDirectiveArgs},
		{"trap unknown key", "//m68k:trap count=3\nfunc sys() {}", ErrDirectiveArgs},
		{"trap unterminated", "//m68k:trap \"num=3\nfunc sys() {}", ErrDirectiveArgs},
		{"missing type", "//m68k:interrupt\nfunc Trace() {\n\tvar n = 1\n\tn++\n}", ErrMissingType},
		{"duplicate static", "//m68k:interrupt\nfunc Trace() {\n\tvar n int\n\tvar n int\n}", ErrDuplicateStatic},
		{"redeclared static", "//m68k:interrupt\nfunc Trace() {\n\tvar n int\n\tn := 2\n\t_ = n\n}", ErrDuplicateStatic},
		{"multi value", "//m68k:interrupt\nfunc Trace() {\n\tvar a, b int = f()\n}\nfunc f() (int, int) { return 1, 2 }", ErrInvalidStatic},
		{"blank static", "//m68k:interrupt\nfunc Trace() {\n\tvar _ int\n}", ErrInvalidStatic},
		{"local const", "//m68k:interrupt\nfunc Trace() {\n\tconst k = 3\n\tvar n [k]int\n\t_ = n\n}", ErrInvalidStatic},
		{"earlier static", "//m68k:interrupt\nfunc Trace() {\n\tvar a int = 1\n\tvar b int = a\n\t_ = b\n}", ErrInvalidStatic},
		{"unknown interrupt", "//m68k:interrupt\nfunc Timer() {}", ErrUnknownInterrupt},
		{"reserved slot", "//m68k:interrupt\nfunc Reset() {}", ErrUnknownInterrupt},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			files, err := transformSources(t, New(Config{}), "package app\n\n"+test.src+"\n")
			if !errors.Is(err, test.want) {
				t.Fatalf("got %v, want %v", err, test.want)
			}
			if files != nil {
				t.Error("output returned alongside errors")
			}
			var list ErrorList
			if !errors.As(err, &list) || len(list) == 0 || !list[0].Pos.IsValid() {
				t.Errorf("error carries no position: %v", err)
			}
		})
	}
}

func TestErrorsAreCollected(t *testing.T) {
	_, err := transformSources(t, New(Config{}), `package app

//m68k:interrupt
func Timer() {}

//m68k:trap num=20
func sys() {}
`)
	var list ErrorList
	if !errors.As(err, &list) || len(list) != 2 {
		t.Fatalf("got %v", err)
	}
	if list[0].Pos.Line > list[1].Pos.Line {
		t.Error("errors not sorted by position")
	}
	if !errors.Is(err, ErrUnknownInterrupt) || !errors.Is(err, ErrTrapNumber) {
		t.Errorf("sentinels not reachable: %v", err)
	}
}

func TestSymbolsAcrossPackages(t *testing.T) {
	tr := New(Config{})
	if _, err := transformSources(t, tr, "package a\n\n//m68k:pre_init\n//go:nosplit\nfunc setup() {}\n"); err != nil {
		t.Fatal(err)
	}
	_, err := transformSources(t, tr, "package b\n\n//m68k:pre_init\n//go:nosplit\nfunc early() {}\n")
	if !errors.Is(err, ErrPreInitRedeclared) {
		t.Fatalf("second pre-init: %v", err)
	}

	_, err = transformSources(t, tr,
		"package c\n\n//m68k:entry\nfunc run() { for {} }\n",
		"package c\n\n//m68k:entry\nfunc start() { for {} }\n",
	)
	if !errors.Is(err, ErrDuplicateSymbol) {
		t.Fatalf("second entry: %v", err)
	}
	var list ErrorList
	errors.As(err, &list)
	if len(list) != 1 || list[0].Pos.Filename != "file1.go" {
		t.Errorf("duplicate reported at %v", list)
	}
}

func TestTerminating(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"for {}", true},
		{"for { break }", false},
		{"for { for { break } }", true},
		{"L: for { for { break L } }", false},
		{"for { switch { case true: break } }", true},
		{"for { select { default: break } }", true},
		{"for { func() { return }() }", true},
		{"for i := 0; i < 3; i++ {}", false},
		{"panic(1)", true},
		{"println(); panic(1)", true},
		{"panic(1); println()", false},
		{"if c { panic(1) } else { for {} }", true},
		{"if c { panic(1) }", false},
		{"if c { panic(1) } else if d { panic(2) } else { panic(3) }", true},
		{"switch { default: panic(1) }", true},
		{"switch { case c: panic(1) }", false},
		{"switch { case c: fallthrough; default: panic(1) }", true},
		{"switch { case c: break; default: panic(1) }", false},
		{"select {}", true},
		{"{ for {} }", true},
		{"goto L; L: for {}", true},
		{"", false},
	}
	for _, test := range tests {
		t.Run(test.body, func(t *testing.T) {
			f, err := parser.ParseFile(token.NewFileSet(), "t.go", "package p\nfunc f() {\n"+test.body+"\n}\n", 0)
			if err != nil {
				t.Fatal(err)
			}
			fn := f.Decls[0].(*ast.FuncDecl)
			if got := terminates(fn.Body); got != test.want {
				t.Errorf("terminates = %v, want %v", got, test.want)
			}
		})
	}
}

func TestIsDirective(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"//go:noinline", true},
		{"//m68k:entry", true},
		{"//lint:ignore U1000 reason", true},
		{"// plain text: with a colon", false},
		{"//", false},
		{"//TODO: later", false},
		{"/* block */", false},
	}
	for _, test := range tests {
		if got := isDirective(test.text); got != test.want {
			t.Errorf("isDirective(%q) = %v", test.text, got)
		}
	}
}
