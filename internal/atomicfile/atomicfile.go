package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/filecrate/filecrate/internal/chunker"
)

// ErrNotDirectory is returned when an ancestor of the target path exists
// but is a regular file.
var ErrNotDirectory = errors.New("parent exists and is not a directory")

// createMode is the permission passed to the exclusive create, before any
// explicit chmod. The process umask applies to it, matching plain creates.
const createMode = 0o666

// Write creates path exclusively and streams every chunk into it in order.
// Missing parent directories are created first, with dirMode applied
// verbatim when non-zero. An exclusive advisory lock is held on the new
// descriptor for the duration of the write, then fileMode is applied via
// chmod when non-zero.
//
// If path already names an entry the call fails with fs.ErrExist and the
// existing file is never touched, let alone truncated. On a failure past
// the create, the partial file is left on disk for the caller to deal
// with; only the lock and descriptors are cleaned up. The chunk source is
// closed once the file has been created, on every path out.
func Write(path string, chunks *chunker.Reader, fileMode, dirMode os.FileMode) error {
	if err := ensureDir(filepath.Dir(path), dirMode); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, createMode)
	if err != nil {
		if errors.Is(err, syscall.ENOTDIR) {
			return fmt.Errorf("create %s: %w", path, ErrNotDirectory)
		}
		return fmt.Errorf("create %s: %w", path, err)
	}

	err = writeLocked(f, chunks)
	if cerr := chunks.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close source: %w", cerr)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	if err != nil {
		return err
	}

	if fileMode != 0 {
		if err := os.Chmod(path, fileMode); err != nil {
			return fmt.Errorf("chmod %s: %w", path, err)
		}
	}
	return nil
}

func writeLocked(f *os.File, chunks *chunker.Reader) error {
	if err := lock(f); err != nil {
		return fmt.Errorf("lock %s: %w", f.Name(), err)
	}
	defer unlock(f)

	for {
		chunk, err := chunks.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("write %s: %w", f.Name(), err)
		}
	}
}

// ensureDir creates the missing part of the directory chain leading to dir.
// With a non-zero mode each created directory is chmodded afterwards so the
// requested bits land exactly, regardless of the process umask. Losing a
// creation race to a concurrent writer counts as success.
func ensureDir(dir string, mode os.FileMode) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return statDirErr(dir, err)
	}

	var missing []string
	for d := dir; ; {
		fi, err := os.Stat(d)
		if err == nil {
			if !fi.IsDir() {
				return fmt.Errorf("%s: %w", d, ErrNotDirectory)
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return statDirErr(d, err)
		}
		missing = append(missing, d)
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	perm := mode
	if perm == 0 {
		perm = 0o755
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], perm); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			if errors.Is(err, syscall.ENOTDIR) {
				return fmt.Errorf("%s: %w", missing[i], ErrNotDirectory)
			}
			return fmt.Errorf("mkdir %s: %w", missing[i], err)
		}
		if mode != 0 {
			if err := os.Chmod(missing[i], mode); err != nil {
				return fmt.Errorf("chmod %s: %w", missing[i], err)
			}
		}
	}

	// A concurrent creator may have won the race with something that is
	// not a directory; check the immediate parent one last time.
	fi, err := os.Stat(dir)
	if err != nil {
		return statDirErr(dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	return nil
}

// statDirErr classifies a stat failure on a directory path. ENOTDIR means
// some ancestor is a regular file.
func statDirErr(p string, err error) error {
	if errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%s: %w", p, ErrNotDirectory)
	}
	return fmt.Errorf("stat %s: %w", p, err)
}
