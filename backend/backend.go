// Package backend defines the capability contract a storage backend must
// satisfy to serve fileset I/O, plus the driver registry that constructs
// live backends from storage-location URIs.
package backend

import (
	"context"
	"io"
	iofs "io/fs"
	"path"
	"time"
)

// File is an open file served by a backend. Random access is required so
// callers layered above (for example a FUSE adapter) can read at offsets.
type File interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// FS is a live handle onto a physical storage backend. All paths are full
// physical paths as produced by virtual-to-actual translation, including
// the storage-location prefix (e.g. "file:///warehouse/c/s/f/part.csv").
//
// A handle is owned by the resolution cache that constructed it and must be
// closed exactly once, by its owner.
type FS interface {
	// Open opens the named file for reading.
	Open(ctx context.Context, name string) (File, error)

	// Create opens the named file for writing, creating it if necessary.
	// With overwrite false, an existing file is an error.
	Create(ctx context.Context, name string, overwrite bool) (io.WriteCloser, error)

	// Append opens the named existing file for appending.
	Append(ctx context.Context, name string) (io.WriteCloser, error)

	// Rename moves oldname to newname within this backend.
	Rename(ctx context.Context, oldname, newname string) error

	// Delete removes the named file or directory. Non-empty directories
	// require recursive. Reports whether anything was removed.
	Delete(ctx context.Context, name string, recursive bool) (bool, error)

	// Stat describes the named file or directory.
	Stat(ctx context.Context, name string) (*FileStatus, error)

	// List returns the immediate children of the named directory.
	List(ctx context.Context, name string) ([]*FileStatus, error)

	// Mkdirs creates the named directory along with any missing parents.
	Mkdirs(ctx context.Context, name string, perm iofs.FileMode) error

	// Close releases the backend connection. Open files obtained earlier
	// remain usable only until Close returns.
	Close() error
}

// WorkdirFS is an optional capability for backends with their own notion
// of a working directory. Discovered by type assertion.
type WorkdirFS interface {
	FS
	SetWorkdir(ctx context.Context, name string) error
}

// FileStatus describes one file or directory at its full physical path.
type FileStatus struct {
	Path    string
	Size    int64
	Mode    iofs.FileMode
	ModTime time.Time
	Dir     bool
}

// Name returns the last path element.
func (s *FileStatus) Name() string {
	return path.Base(s.Path)
}

func (s *FileStatus) IsDir() bool {
	return s.Dir
}
