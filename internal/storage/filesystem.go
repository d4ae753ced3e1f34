package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/filecrate/filecrate/internal/atomicfile"
	"github.com/filecrate/filecrate/internal/chunker"
	"github.com/filecrate/filecrate/internal/naming"
	"github.com/filecrate/filecrate/internal/pathsafe"
)

// ErrTraversal is returned when a name would resolve outside the root.
var ErrTraversal = pathsafe.ErrTraversal

// ErrNoBaseURL is returned by URL when the storage has no base URL
// configured.
var ErrNoBaseURL = errors.New("storage: no base URL configured")

// maxSaveAttempts bounds the allocate/create retry loop in Save. Every
// attempt uses a fresh candidate name, so exhausting this many means the
// directory is being hammered with identically-named saves.
const maxSaveAttempts = 64

// Options configures a FileSystemStorage. All configuration is explicit;
// the storage never reads ambient application state.
type Options struct {
	// Root is the directory all relative names resolve under. Required;
	// created on construction if missing.
	Root string
	// BaseURL is the prefix URL joins against. Optional; URL fails with
	// ErrNoBaseURL when empty.
	BaseURL string
	// FileMode, when non-zero, is chmodded onto every saved file after a
	// successful write. Zero leaves the OS default (0666 minus umask).
	FileMode os.FileMode
	// DirMode, when non-zero, is applied verbatim to directories created
	// during a save, bypassing the umask.
	DirMode os.FileMode
	// ChunkSize is the read size used when streaming saves. Zero selects
	// chunker.DefaultChunkSize.
	ChunkSize int
}

// FileSystemStorage implements Storage on a local directory tree. It keeps
// no state beyond its configuration: every query goes back to the
// filesystem, so any number of instances and goroutines may share a root.
type FileSystemStorage struct {
	opts Options
}

var _ Storage = (*FileSystemStorage)(nil)

// NewFileSystemStorage validates opts, creates the root directory if needed
// and returns the storage.
func NewFileSystemStorage(opts Options) (*FileSystemStorage, error) {
	if opts.Root == "" {
		return nil, errors.New("storage: root is required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	opts.Root = root

	mode := opts.DirMode
	if mode == 0 {
		mode = 0o755
	}
	if err := os.MkdirAll(root, mode); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &FileSystemStorage{opts: opts}, nil
}

// Path resolves name to an absolute path under the root, or fails with
// ErrTraversal. No filesystem access happens here.
func (s *FileSystemStorage) Path(name string) (string, error) {
	return pathsafe.Resolve(s.opts.Root, name)
}

// Open retrieves the named file for reading.
func (s *FileSystemStorage) Open(name string) (io.ReadSeekCloser, error) {
	p, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	return f, nil
}

// Save streams content into a new file named after the desired name. When
// the name is taken, underscore-counter variants are tried; uniqueness is
// enforced by exclusive-create, not by the availability probe, so losing a
// creation race just moves on to the next candidate. Returns the stored
// name, which has its final segment sanitized and may carry a suffix.
func (s *FileSystemStorage) Save(name string, content io.Reader) (string, error) {
	dir, file := path.Split(strings.ReplaceAll(name, "\\", "/"))
	file = pathsafe.SanitizeFilename(file)
	if file == "" {
		return "", fmt.Errorf("save %q: %w", name, ErrTraversal)
	}
	desired := dir + file

	for n := 0; n < maxSaveAttempts; n++ {
		candidate := naming.Candidate(desired, n)
		taken, err := s.Exists(candidate)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		p, err := s.Path(candidate)
		if err != nil {
			return "", err
		}
		err = atomicfile.Write(p, chunker.New(content, s.opts.ChunkSize), s.opts.FileMode, s.opts.DirMode)
		if err == nil {
			return path.Clean(candidate), nil
		}
		if errors.Is(err, fs.ErrExist) {
			// A concurrent save won this candidate between the probe and
			// the create. Nothing was read from content yet; try the next.
			continue
		}
		return "", fmt.Errorf("save %q: %w", name, err)
	}
	return "", fmt.Errorf("save %q: retries exhausted: %w", name, fs.ErrExist)
}

// Exists reports whether the named file is present.
func (s *FileSystemStorage) Exists(name string) (bool, error) {
	p, err := s.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	// An ancestor being a regular file means nothing is stored under this
	// name either; the writer reports it as ErrNotDirectory on save.
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}
	return false, fmt.Errorf("stat %q: %w", name, err)
}

// Delete removes the named file. A missing file, or a missing parent
// directory, counts as success.
func (s *FileSystemStorage) Delete(name string) error {
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	return nil
}

// Size returns the byte count of the named file.
func (s *FileSystemStorage) Size(name string) (int64, error) {
	p, err := s.Path(name)
	if err != nil {
		return 0, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", name, err)
	}
	return fi.Size(), nil
}

// URL joins name onto the configured base URL, percent-encoding each
// segment.
func (s *FileSystemStorage) URL(name string) (string, error) {
	if s.opts.BaseURL == "" {
		return "", ErrNoBaseURL
	}
	slashed := strings.ReplaceAll(name, "\\", "/")
	u, err := url.JoinPath(s.opts.BaseURL, strings.Split(slashed, "/")...)
	if err != nil {
		return "", fmt.Errorf("url %q: %w", name, err)
	}
	return u, nil
}
