package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Toolchain holds the binutils used to assemble the startup code and to read
// back the symbols of a linked image.
type Toolchain struct {
	AS string
	NM string
}

var (
	assemblers = []string{"m68k-elf-as", "m68k-linux-gnu-as", "m68k-unknown-elf-as"}
	nms        = []string{"m68k-elf-nm", "m68k-linux-gnu-nm", "m68k-unknown-elf-nm", "nm"}
)

func FindToolchain(env Env) (Toolchain, error) {
	as, err := findTool(env.Value("AS"), assemblers)
	if err != nil {
		return Toolchain{}, err
	}
	nm, err := findTool(env.Value("NM"), nms)
	if err != nil {
		return Toolchain{}, err
	}
	return Toolchain{AS: as, NM: nm}, nil
}

func findTool(override string, candidates []string) (string, error) {
	if len(override) > 0 {
		return findExecutable(override)
	}
	for _, candidate := range candidates {
		if fname, err := findExecutable(candidate); err == nil {
			return fname, nil
		}
	}
	return "", fmt.Errorf("%w: tried %v", ErrToolNotFound, candidates)
}

func findExecutable(cmd string) (string, error) {
	fname, err := exec.LookPath(cmd)
	if err == nil {
		fname, err = filepath.Abs(fname)
	}
	if err != nil {
		return "", errors.Join(ErrToolNotFound, err)
	}
	return fname, nil
}

// Assemble assembles src into the object file out. cpu is a board CPU such
// as m68000.
func (t Toolchain) Assemble(ctx context.Context, src, out string, cpu string) error {
	args := []string{"-o", out}
	if len(cpu) > 0 {
		args = append(args, "-mcpu="+strings.TrimPrefix(cpu, "m"))
	}
	args = append(args, src)

	cmd := exec.CommandContext(ctx, t.AS, args...)
	cmd.Stdout = os.Stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w\n%s", filepath.Base(t.AS), err, stderr.Bytes())
	}
	return nil
}

// Symbols lists the defined symbols of a linked image.
func (t Toolchain) Symbols(ctx context.Context, image string) (Symbols, error) {
	cmd := exec.CommandContext(ctx, t.NM, "--defined-only", image)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", filepath.Base(t.NM), err, stderr.Bytes())
	}
	return ReadSymbols(bytes.NewReader(output))
}
