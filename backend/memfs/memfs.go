// Package memfs serves filesets from in-memory filesystems, for storage
// locations with the "mem" scheme ("mem://<bucket>/<path>"). Buckets are
// scoped to the driver instance, which makes it useful as a test and
// development backend.
package memfs

import (
	"context"
	"fmt"
	"io"
	iofs "io/fs"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/filesetio/gvfs/backend"
)

// Driver hands out handles onto named in-memory buckets. All handles for
// the same bucket share one afero.MemMapFs.
type Driver struct {
	mu      sync.Mutex
	buckets map[string]afero.Fs
}

func NewDriver() *Driver {
	return &Driver{buckets: make(map[string]afero.Fs)}
}

// Bucket returns the shared filesystem behind the named bucket, creating
// it if needed. Tests use this to seed content.
func (d *Driver) Bucket(name string) afero.Fs {
	d.mu.Lock()
	defer d.mu.Unlock()
	fsys, ok := d.buckets[name]
	if !ok {
		fsys = afero.NewMemMapFs()
		d.buckets[name] = fsys
	}
	return fsys
}

func (d *Driver) New(ctx context.Context, location string) (backend.FS, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("mem storage location needs a bucket: %q", location)
	}
	return &FS{
		fsys:   d.Bucket(u.Host),
		prefix: "mem://" + u.Host,
	}, nil
}

// FS adapts one in-memory bucket to the backend contract.
type FS struct {
	fsys   afero.Fs
	prefix string
}

func (m *FS) path(name string) string {
	p := strings.TrimPrefix(name, m.prefix)
	if p == "" {
		p = "/"
	}
	return p
}

func (m *FS) Open(ctx context.Context, name string) (backend.File, error) {
	return m.fsys.Open(m.path(name))
}

func (m *FS) Create(ctx context.Context, name string, overwrite bool) (io.WriteCloser, error) {
	p := m.path(name)
	if err := m.fsys.MkdirAll(path.Dir(p), 0o755); err != nil {
		return nil, err
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	return m.fsys.OpenFile(p, flag, 0o644)
}

func (m *FS) Append(ctx context.Context, name string) (io.WriteCloser, error) {
	p := m.path(name)
	if _, err := m.fsys.Stat(p); err != nil {
		return nil, err
	}
	return m.fsys.OpenFile(p, os.O_WRONLY|os.O_APPEND, 0o644)
}

func (m *FS) Rename(ctx context.Context, oldname, newname string) error {
	return m.fsys.Rename(m.path(oldname), m.path(newname))
}

func (m *FS) Delete(ctx context.Context, name string, recursive bool) (bool, error) {
	p := m.path(name)
	fi, err := m.fsys.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if fi.IsDir() && recursive {
		return true, m.fsys.RemoveAll(p)
	}
	if fi.IsDir() {
		entries, err := afero.ReadDir(m.fsys, p)
		if err != nil {
			return false, err
		}
		if len(entries) > 0 {
			return false, fmt.Errorf("remove %s: directory not empty", name)
		}
	}
	if err := m.fsys.Remove(p); err != nil {
		return false, err
	}
	return true, nil
}

func (m *FS) Stat(ctx context.Context, name string) (*backend.FileStatus, error) {
	fi, err := m.fsys.Stat(m.path(name))
	if err != nil {
		return nil, err
	}
	return m.fileStatus(name, fi), nil
}

func (m *FS) List(ctx context.Context, name string) ([]*backend.FileStatus, error) {
	entries, err := afero.ReadDir(m.fsys, m.path(name))
	if err != nil {
		return nil, err
	}
	statuses := make([]*backend.FileStatus, 0, len(entries))
	for _, fi := range entries {
		child := strings.TrimSuffix(name, "/") + "/" + fi.Name()
		statuses = append(statuses, m.fileStatus(child, fi))
	}
	return statuses, nil
}

func (m *FS) Mkdirs(ctx context.Context, name string, perm iofs.FileMode) error {
	return m.fsys.MkdirAll(m.path(name), perm)
}

func (m *FS) Close() error {
	return nil
}

func (m *FS) fileStatus(name string, fi iofs.FileInfo) *backend.FileStatus {
	return &backend.FileStatus{
		Path:    strings.TrimSuffix(name, "/"),
		Size:    fi.Size(),
		Mode:    fi.Mode(),
		ModTime: fi.ModTime(),
		Dir:     fi.IsDir(),
	}
}

var _ backend.FS = (*FS)(nil)
var _ backend.Driver = (*Driver)(nil)
