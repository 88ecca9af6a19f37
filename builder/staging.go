package builder

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile guards a staging directory against concurrent builds.
const LockFile = ".m68krt.lock"

func lockStaging(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStagingLocked
	}
	return lock, nil
}

// stageFile places src at dst, either by symlinking it or, when copy is set
// or symlinks are unavailable, by copying it. Whatever was at dst is
// replaced, never written through.
func stageFile(src, dst string, copy bool) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if !copy {
		if err := os.Symlink(src, dst); err == nil {
			return nil
		}
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return err
	}
	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeFile(dst string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(dst, b, 0640)
}

// commit replaces the entries of dir with the entries of the staging
// directory tmp.
func commit(tmp, dir string) error {
	entries, err := os.ReadDir(tmp)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		dst := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(tmp, entry.Name()), dst); err != nil {
			return err
		}
	}
	return os.RemoveAll(tmp)
}
