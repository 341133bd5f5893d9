package fusekit

import (
	"context"
	"io"
	iofs "io/fs"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/filesetio/gvfs/backend"
)

func iofsMode(mode uint32) iofs.FileMode {
	return iofs.FileMode(mode & 0o777)
}

// readHandle serves kernel reads from a backend file.
type readHandle struct {
	file backend.File
	path string
}

var _ = (fs.FileReader)((*readHandle)(nil))

func (h *readHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := h.file.ReadAt(dest, off)
	if err != nil && err != io.EOF {
		return nil, sysErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

var _ = (fs.FileFlusher)((*readHandle)(nil))

func (h *readHandle) Flush(ctx context.Context) syscall.Errno {
	if err := h.file.Close(); err != nil {
		return sysErrno(err)
	}
	return 0
}

var _ = (fs.FileLseeker)((*readHandle)(nil))

func (h *readHandle) Lseek(ctx context.Context, off uint64, whence uint32) (uint64, syscall.Errno) {
	newOff, err := h.file.Seek(int64(off), int(whence))
	if err != nil {
		return 0, sysErrno(err)
	}
	return uint64(newOff), 0
}

// writeHandle serves kernel writes onto a backend writer. Backends expose
// sequential writers only, so out-of-order offsets are refused.
type writeHandle struct {
	w    io.WriteCloser
	path string

	mu     sync.Mutex
	off    int64
	closed bool
}

var _ = (fs.FileWriter)((*writeHandle)(nil))

func (h *writeHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, syscall.EBADF
	}
	if off != h.off {
		return 0, syscall.EOPNOTSUPP
	}
	n, err := h.w.Write(data)
	h.off += int64(n)
	if err != nil {
		return uint32(n), sysErrno(err)
	}
	return uint32(n), 0
}

var _ = (fs.FileFlusher)((*writeHandle)(nil))

func (h *writeHandle) Flush(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	h.closed = true
	if err := h.w.Close(); err != nil {
		return sysErrno(err)
	}
	return 0
}

var _ = (fs.FileReleaser)((*writeHandle)(nil))

func (h *writeHandle) Release(ctx context.Context) syscall.Errno {
	return h.Flush(ctx)
}
