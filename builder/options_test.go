package builder

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"omibyte.io/m68krt/targets"
)

func writeProject(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ProjectFile)
	if err := os.WriteFile(path, []byte(src), 0640); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProject(t *testing.T) {
	path := writeProject(t, `
board: nano
packages: [./cmd/demo]
output: out
tags: [debug, m68k]
devices: [devices/board.yaml, /abs/other.svd]
`)
	p, err := LoadProject(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)

	var opts Options
	p.Apply(&opts)
	if !reflect.DeepEqual(opts.Packages, []string{"./cmd/demo"}) {
		t.Errorf("Packages = %v", opts.Packages)
	}
	if opts.Output != filepath.Join(dir, "out") {
		t.Errorf("Output = %s", opts.Output)
	}
	if want := []string{"debug", "m68k", "m68000", "nano"}; !reflect.DeepEqual(opts.BuildTags, want) {
		t.Errorf("BuildTags = %v, want %v", opts.BuildTags, want)
	}
	if want := []string{filepath.Join(dir, "devices/board.yaml"), "/abs/other.svd"}; !reflect.DeepEqual(p.DevicePaths(), want) {
		t.Errorf("DevicePaths = %v, want %v", p.DevicePaths(), want)
	}

	board, err := p.Target()
	if err != nil {
		t.Fatal(err)
	}
	if board.Name != "m68k-nano" || board.Policy != "sections" {
		t.Errorf("Target = %+v", board)
	}
}

func TestApplyKeepsCommandLine(t *testing.T) {
	p := &Project{Dir: "/p", Packages: []string{"./a"}, Output: "out", Tags: []string{"x"}}
	opts := Options{Packages: []string{"./b"}, Output: "mine", BuildTags: []string{"x", "y"}}
	p.Apply(&opts)
	if !reflect.DeepEqual(opts.Packages, []string{"./b"}) || opts.Output != "mine" {
		t.Errorf("options overridden: %+v", opts)
	}
	if !reflect.DeepEqual(opts.BuildTags, []string{"x", "y"}) {
		t.Errorf("BuildTags = %v", opts.BuildTags)
	}
}

func TestProjectTargetOverrides(t *testing.T) {
	p := &Project{
		Board:  "rom",
		Policy: "sections",
		RAM:    &targets.Region{Origin: 0x300000, Length: 0x1000},
	}
	board, err := p.Target()
	if err != nil {
		t.Fatal(err)
	}
	if board.RAM.Origin != 0x300000 || board.Policy != "sections" || board.ROM.Length != 0x10000 {
		t.Errorf("Target = %+v", board)
	}

	p = &Project{ROM: &targets.Region{Length: 0x1000}}
	if _, err := p.Target(); !errors.Is(err, ErrMemoryLayout) {
		t.Errorf("custom board without RAM: %v", err)
	}
	p = &Project{Board: "amiga"}
	if _, err := p.Target(); !errors.Is(err, targets.ErrBoardNotFound) {
		t.Errorf("unknown board: %v", err)
	}
}

func TestLoadProjectErrors(t *testing.T) {
	if _, err := LoadProject(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing explicit project: %v", err)
	}
	if _, err := LoadProject(writeProject(t, "policy: flash\n")); !errors.Is(err, ErrInvalidProject) {
		t.Errorf("bad policy: %v", err)
	}
	if _, err := LoadProject(writeProject(t, "tags: {\n")); !errors.Is(err, ErrInvalidProject) {
		t.Errorf("bad yaml: %v", err)
	}
}
