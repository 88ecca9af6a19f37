package builder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/inhies/go-bytesize"
	"golang.org/x/tools/go/packages"

	"omibyte.io/m68krt/rt"
	"omibyte.io/m68krt/transform"
)

// Package is a package as staged in the output directory.
type Package struct {
	ImportPath string
	Dir        string
	Staged     string
	Files      []*transform.File
}

func (p *Package) Handlers() []*transform.Handler {
	var result []*transform.Handler
	for _, f := range p.Files {
		result = append(result, f.Handlers...)
	}
	return result
}

type Result struct {
	Output   string
	Packages []*Package
}

func (r *Result) Handlers() []*transform.Handler {
	var result []*transform.Handler
	for _, pkg := range r.Packages {
		result = append(result, pkg.Handlers()...)
	}
	return result
}

// Table builds the vector table the generated init code binds at startup.
// declare adds the device interrupts before the handlers are bound.
func (r *Result) Table(declare func(*rt.Table) error) (*rt.Table, error) {
	t := rt.NewTable()
	if declare != nil {
		if err := declare(t); err != nil {
			return nil, err
		}
	}
	var errs []error
	for _, h := range r.Handlers() {
		if err := bind(t, h); err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", h.Pos, h.Name, err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

func bind(t *rt.Table, h *transform.Handler) error {
	// Only the shape of the table matters here.
	stub := func() {}
	switch h.Kind {
	case transform.Entry:
		return t.SetEntry(stub)
	case transform.PreInit:
		return t.SetPreInit(stub)
	case transform.Trap:
		return t.OverrideTrap(h.Trap, stub)
	}
	return t.Override(h.Name, stub)
}

// Generate loads the packages of opts, transforms their handlers and stages
// the result in the output directory. Nothing is staged when any package
// fails.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Packages) == 0 {
		opts.Packages = []string{"."}
	}
	if opts.NumJobs <= 0 {
		opts.NumJobs = runtime.NumCPU()
	}
	if opts.Output == "" {
		opts.Output = filepath.Join(opts.Dir, "build")
	}
	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(output); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrUnexpectedOutputPath, opts.Output)
	}

	pkgs, err := load(ctx, opts, output)
	if err != nil {
		return nil, err
	}
	if err := singleModule(pkgs); err != nil {
		return nil, err
	}

	graph := NewGraph()
	roots := map[string]*packages.Package{}
	for _, pkg := range pkgs {
		roots[pkg.ID] = pkg
		graph.Add(pkg)
	}
	for _, pkg := range pkgs {
		for _, imported := range pkg.Imports {
			if dep, ok := roots[imported.ID]; ok {
				graph.AddEdge(dep, pkg)
			}
		}
	}
	buckets, err := graph.Buckets()
	if err != nil {
		return nil, err
	}

	tr := transform.New(transform.Config{Devices: opts.Devices, Generator: "m68krt"})
	result := &Result{Output: output}
	var errs []error
	for _, bucket := range buckets {
		staged, bucketErrs := transformBucket(ctx, tr, bucket, opts.NumJobs)
		result.Packages = append(result.Packages, staged...)
		errs = append(errs, bucketErrs...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := stage(result, pkgs, opts); err != nil {
		return nil, err
	}
	return result, nil
}

func load(ctx context.Context, opts Options, output string) ([]*packages.Package, error) {
	config := packages.Config{
		Mode:    packages.NeedName | packages.NeedFiles | packages.NeedImports | packages.NeedSyntax | packages.NeedModule,
		Context: ctx,
		Dir:     opts.Dir,
	}
	if opts.Environment != nil {
		config.Env = opts.Environment.List()
	}
	if len(opts.BuildTags) > 0 {
		config.BuildFlags = []string{"-tags=" + strings.Join(opts.BuildTags, ",")}
	}
	if opts.Verbose {
		config.Logf = log.Printf
	}

	loaded, err := packages.Load(&config, opts.Packages...)
	if err != nil {
		return nil, err
	}

	var pkgs []*packages.Package
	var errs []error
	for _, pkg := range loaded {
		if len(pkg.Errors) > 0 {
			var pkgErrs []error
			for _, e := range pkg.Errors {
				pkgErrs = append(pkgErrs, e)
			}
			errs = append(errs, &PackageError{ImportPath: pkg.PkgPath, Err: errors.Join(pkgErrs...)})
			continue
		}
		// Skip what a previous run staged inside the source tree.
		if len(pkg.GoFiles) == 0 || within(filepath.Dir(pkg.GoFiles[0]), output) {
			continue
		}
		pkgs = append(pkgs, pkg)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(pkgs) == 0 {
		return nil, ErrNoPackages
	}
	return pkgs, nil
}

func transformBucket(ctx context.Context, tr *transform.Transformer, bucket []*packages.Package, jobs int) ([]*Package, []error) {
	staged := make([]*Package, len(bucket))
	errs := make([]error, len(bucket))

	var wg sync.WaitGroup
	sem := make(chan struct{}, jobs)
	for i, pkg := range bucket {
		wg.Add(1)
		go func(i int, pkg *packages.Package) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}

			files, err := tr.Package(pkg.Fset, pkg.Syntax)
			if err != nil {
				errs[i] = &PackageError{ImportPath: pkg.PkgPath, Err: err}
				return
			}
			staged[i] = &Package{
				ImportPath: pkg.PkgPath,
				Dir:        filepath.Dir(pkg.GoFiles[0]),
				Files:      files,
			}
		}(i, pkg)
	}
	wg.Wait()

	var result []*Package
	var failed []error
	for i := range bucket {
		if errs[i] != nil {
			failed = append(failed, errs[i])
		} else {
			result = append(result, staged[i])
		}
	}
	return result, failed
}

func stage(result *Result, pkgs []*packages.Package, opts Options) error {
	lock, err := lockStaging(result.Output)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	tmp, err := os.MkdirTemp(result.Output, ".staging-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	byPath := map[string]*packages.Package{}
	for _, pkg := range pkgs {
		byPath[pkg.PkgPath] = pkg
	}

	modules := map[string]bool{}
	for _, staged := range result.Packages {
		pkg := byPath[staged.ImportPath]
		rel := pkg.PkgPath
		if pkg.Module != nil && pkg.Module.Dir != "" {
			if rel, err = filepath.Rel(pkg.Module.Dir, staged.Dir); err != nil {
				return err
			}
			if gomod := pkg.Module.GoMod; gomod != "" && !modules[gomod] {
				modules[gomod] = true
				if err := stageModule(gomod, tmp, opts.Copy); err != nil {
					return err
				}
			}
		}
		staged.Staged = filepath.Join(result.Output, rel)

		generated := map[string]*transform.File{}
		for _, f := range staged.Files {
			generated[f.Name] = f
		}

		var size int
		files := append(append(append([]string{}, pkg.GoFiles...), pkg.OtherFiles...), pkg.IgnoredFiles...)
		for _, fname := range files {
			dst := filepath.Join(tmp, rel, filepath.Base(fname))
			if f, ok := generated[fname]; ok && f.Source != nil {
				if err := writeFile(dst, f.Source); err != nil {
					return err
				}
				size += len(f.Source)
				continue
			}
			if err := stageFile(fname, dst, opts.Copy); err != nil {
				return err
			}
		}

		if opts.Verbose {
			log.Printf("staged %s: %d handlers, %s generated", staged.ImportPath, len(staged.Handlers()), bytesize.New(float64(size)))
		}
	}

	return commit(tmp, result.Output)
}

// singleModule rejects loads spanning several modules, as a workspace
// allows: their go.mod files and module relative paths would collide in the
// staging directory.
func singleModule(pkgs []*packages.Package) error {
	var paths []string
	seen := map[string]bool{}
	for _, pkg := range pkgs {
		if pkg.Module == nil || seen[pkg.Module.Path] {
			continue
		}
		seen[pkg.Module.Path] = true
		paths = append(paths, pkg.Module.Path)
	}
	if len(paths) > 1 {
		return fmt.Errorf("%w: %s", ErrMultipleModules, strings.Join(paths, ", "))
	}
	return nil
}

func stageModule(gomod, tmp string, copy bool) error {
	if err := stageFile(gomod, filepath.Join(tmp, "go.mod"), copy); err != nil {
		return err
	}
	gosum := filepath.Join(filepath.Dir(gomod), "go.sum")
	if _, err := os.Stat(gosum); err == nil {
		return stageFile(gosum, filepath.Join(tmp, "go.sum"), copy)
	}
	return nil
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
