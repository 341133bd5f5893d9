// Package fusekit exposes one fileset of a gvfs.FileSystem as a FUSE
// mount. Node paths are virtual paths; every kernel operation goes
// through the proxy's resolution and policy checks.
package fusekit

import (
	"hash/fnv"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/filesetio/gvfs"
	"github.com/filesetio/gvfs/backend"
)

type mount struct {
	path string
	*fuse.Server
}

func (m *mount) Close() error {
	if m.Server == nil {
		exec.Command("umount", m.path).Run()
		return nil
	}
	return m.Server.Unmount()
}

// Mount serves the fileset at the given virtual path (for example
// "/catalog/schema/fileset1") on the local directory path.
func Mount(fsys *gvfs.FileSystem, virtualPath, path string) (io.Closer, error) {
	exec.Command("umount", path).Run()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, err
	}

	opts := &fs.Options{
		UID: uint32(os.Getuid()),
		GID: uint32(os.Getgid()),
	}

	server, err := fs.Mount(path, &node{fsys: fsys, path: virtualPath}, opts)
	if err != nil {
		return nil, err
	}
	return &mount{Server: server, path: path}, nil
}

func fakeIno(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func applyStatus(out *fuse.Attr, st *backend.FileStatus) {
	out.Size = uint64(st.Size)
	out.Mtime = uint64(st.ModTime.Unix())
	out.Mtimensec = uint32(st.ModTime.Nanosecond())
	mode := uint32(st.Mode.Perm())
	if st.IsDir() {
		mode |= syscall.S_IFDIR
	} else {
		mode |= syscall.S_IFREG
	}
	out.Mode = mode
}

func entryMode(st *backend.FileStatus) uint32 {
	if st.IsDir() {
		return fuse.S_IFDIR
	}
	return fuse.S_IFREG
}
