package builder

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
)

type Env map[string]string

func Environment() Env {
	executable, err := os.Executable()
	if err != nil {
		panic(err)
	}

	// The default root should be back one directory from the tool
	root, err := filepath.Abs(filepath.Dir(executable) + "/..")
	if err != nil {
		panic(err)
	}

	// Attempt to get GOROOT from the system Go
	goRoot := ""
	if output, err := exec.Command("go", "env", "GOROOT").Output(); err == nil {
		goRoot = strings.TrimSpace(string(output))
	}

	// Get the user cache directory
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		// Attempt to use the tmp dir
		cacheDir = os.TempDir()
	}

	return map[string]string{
		"M68KRTROOT":  getenv("M68KRTROOT", root),
		"M68KRTCACHE": getenv("M68KRTCACHE", filepath.Join(cacheDir, "m68krt")),
		"GOROOT":      getenv("GOROOT", goRoot),
		"GOFLAGS":     getenv("GOFLAGS", ""),
		"AS":          getenv("AS", ""),
		"NM":          getenv("NM", ""),
	}
}

// Print writes the environment in a form that can be sourced by a shell.
func (e Env) Print(w io.Writer) {
	for _, key := range e.keys() {
		fmt.Fprintf(w, "%s=%q\n", key, e[key])
	}
}

func (e Env) Value(key string) string {
	if v, ok := e[key]; ok {
		return v
	}
	return ""
}

// List returns the environment for a child process: the current process
// environment with the non-empty values of e replacing it.
func (e Env) List() []string {
	result := os.Environ()
	for _, key := range e.keys() {
		if value := e[key]; len(value) > 0 {
			result = append(result, fmt.Sprintf("%s=%s", key, value))
		}
	}
	return result
}

func (e Env) keys() []string {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

func getenv(key, _default string) (value string) {
	value = os.Getenv(key)
	if len(value) == 0 {
		value = _default
	}
	return value
}
