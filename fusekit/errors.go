package fusekit

import (
	"errors"
	iofs "io/fs"
	"log"
	"os"
	"syscall"

	"github.com/filesetio/gvfs"
)

func sysErrno(err error) syscall.Errno {
	if err == nil {
		return syscall.Errno(0)
	}

	// gvfs-layer errors first
	if errors.Is(err, gvfs.ErrPathPolicy) {
		return syscall.EACCES
	}
	if errors.Is(err, gvfs.ErrNotSupported) {
		return syscall.EOPNOTSUPP
	}
	if errors.Is(err, gvfs.ErrCrossFileset) {
		return syscall.EXDEV
	}
	if errors.Is(err, gvfs.ErrMalformedPath) || errors.Is(err, gvfs.ErrInvalidArgument) {
		return syscall.EINVAL
	}
	if errors.Is(err, gvfs.ErrResolution) {
		return syscall.EIO
	}

	// standard fs errors
	if errors.Is(err, iofs.ErrExist) {
		return syscall.EEXIST
	}
	if errors.Is(err, iofs.ErrNotExist) {
		return syscall.ENOENT
	}
	if errors.Is(err, iofs.ErrInvalid) {
		return syscall.EINVAL
	}
	if errors.Is(err, iofs.ErrPermission) {
		return syscall.EPERM
	}
	if errors.Is(err, iofs.ErrClosed) {
		return syscall.EBADF
	}

	switch t := err.(type) {
	case syscall.Errno:
		return t
	case *os.SyscallError:
		if errno, ok := t.Err.(syscall.Errno); ok {
			return errno
		}
		return syscall.EIO
	case *os.PathError:
		return sysErrno(t.Err)
	case *os.LinkError:
		return sysErrno(t.Err)
	default:
		log.Printf("unmapped error: %T %v", err, err)
		return syscall.EIO
	}
}
