// Package localfs serves filesets stored on the local disk, for storage
// locations with the "file" scheme (or no scheme at all).
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/filesetio/gvfs/backend"
)

// Driver returns the driver for "file" storage locations.
func Driver() backend.Driver {
	return backend.DriverFunc(func(ctx context.Context, location string) (backend.FS, error) {
		osRoot := osPath(location)
		if !filepath.IsAbs(osRoot) {
			return nil, fmt.Errorf("local storage location must be absolute: %q", location)
		}
		return &FS{location: location}, nil
	})
}

// FS is a local-disk backend. Operations receive full physical paths in
// URI form ("file:///...") or as bare absolute paths.
type FS struct {
	location string
}

// osPath strips the URI scheme and authority, leaving an OS path.
func osPath(name string) string {
	name = strings.TrimPrefix(name, "file://")
	return filepath.FromSlash(name)
}

func (fsys *FS) Open(ctx context.Context, name string) (backend.File, error) {
	f, err := os.Open(osPath(name))
	if f == nil {
		// return a bare nil, not a nil *os.File
		return nil, err
	}
	return f, err
}

func (fsys *FS) Create(ctx context.Context, name string, overwrite bool) (io.WriteCloser, error) {
	p := osPath(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(p, flag, 0o644)
	if f == nil {
		return nil, err
	}
	return f, err
}

func (fsys *FS) Append(ctx context.Context, name string) (io.WriteCloser, error) {
	f, err := os.OpenFile(osPath(name), os.O_WRONLY|os.O_APPEND, 0o644)
	if f == nil {
		return nil, err
	}
	return f, err
}

func (fsys *FS) Rename(ctx context.Context, oldname, newname string) error {
	return os.Rename(osPath(oldname), osPath(newname))
}

func (fsys *FS) Delete(ctx context.Context, name string, recursive bool) (bool, error) {
	p := osPath(name)
	fi, err := os.Stat(p)
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fi.IsDir() && recursive {
		return true, os.RemoveAll(p)
	}
	// Fails on non-empty directories without recursive.
	if err := os.Remove(p); err != nil {
		return false, err
	}
	return true, nil
}

func (fsys *FS) Stat(ctx context.Context, name string) (*backend.FileStatus, error) {
	fi, err := os.Stat(osPath(name))
	if err != nil {
		return nil, err
	}
	return fileStatus(name, fi), nil
}

func (fsys *FS) List(ctx context.Context, name string) ([]*backend.FileStatus, error) {
	entries, err := os.ReadDir(osPath(name))
	if err != nil {
		return nil, err
	}
	statuses := make([]*backend.FileStatus, 0, len(entries))
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			return nil, err
		}
		child := strings.TrimSuffix(name, "/") + "/" + entry.Name()
		statuses = append(statuses, fileStatus(child, fi))
	}
	return statuses, nil
}

func (fsys *FS) Mkdirs(ctx context.Context, name string, perm iofs.FileMode) error {
	return os.MkdirAll(osPath(name), perm)
}

func (fsys *FS) Close() error {
	return nil
}

func fileStatus(name string, fi iofs.FileInfo) *backend.FileStatus {
	return &backend.FileStatus{
		Path:    strings.TrimSuffix(name, "/"),
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
		Dir:     fi.IsDir(),
	}
}

var _ backend.FS = (*FS)(nil)
