package storage

import (
	"io"
)

// Storage defines the interface for storing and retrieving files by name.
type Storage interface {
	// Open retrieves the named file for reading.
	Open(name string) (io.ReadSeekCloser, error)
	// Save stores content under the desired name, or a suffixed variant of
	// it when that name is taken, and returns the name actually used.
	Save(name string, content io.Reader) (string, error)
	// Exists reports whether the named file is present in the store.
	Exists(name string) (bool, error)
	// Delete removes the named file. Deleting a missing file is a no-op.
	Delete(name string) error
	// Size returns the byte count of the named file.
	Size(name string) (int64, error)
	// URL returns the public URL the named file is served under.
	URL(name string) (string, error)
}
