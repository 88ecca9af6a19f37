package builder

import (
	"errors"
	"fmt"
)

var (
	ErrNoPackages           = errors.New("no packages to build")
	ErrImportCycle          = errors.New("import cycle between packages")
	ErrStagingLocked        = errors.New("staging directory is locked by another build")
	ErrUnexpectedOutputPath = errors.New("unexpected output path provided")
	ErrUndefinedSymbol      = errors.New("undefined symbol")
	ErrToolNotFound         = errors.New("tool not found")
	ErrInvalidProject       = errors.New("invalid project file")
	ErrMemoryLayout         = errors.New("invalid memory layout")
	ErrMultipleModules      = errors.New("packages from more than one module")
)

// PackageError holds the errors of one package.
type PackageError struct {
	ImportPath string
	Err        error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("%s: %v", e.ImportPath, e.Err)
}

func (e *PackageError) Unwrap() error {
	return e.Err
}
