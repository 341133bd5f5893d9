package fusekit

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/filesetio/gvfs"
)

type node struct {
	fs.Inode
	fsys *gvfs.FileSystem
	path string // virtual path of this node
}

func (n *node) child(name string) string {
	return n.path + "/" + name
}

var _ = (fs.NodeGetattrer)((*node)(nil))

func (n *node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.fsys.GetFileStatus(ctx, n.path)
	if err != nil {
		return sysErrno(err)
	}
	applyStatus(&out.Attr, st)
	return 0
}

var _ = (fs.NodeLookuper)((*node)(nil))

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	vpath := n.child(name)
	st, err := n.fsys.GetFileStatus(ctx, vpath)
	if err != nil {
		return nil, sysErrno(err)
	}
	applyStatus(&out.Attr, st)

	return n.Inode.NewPersistentInode(ctx, &node{fsys: n.fsys, path: vpath}, fs.StableAttr{
		Mode: entryMode(st),
		Ino:  fakeIno(vpath),
	}), 0
}

var _ = (fs.NodeReaddirer)((*node)(nil))

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	statuses, err := n.fsys.ListStatus(ctx, n.path)
	if err != nil {
		return nil, sysErrno(err)
	}
	entries := make([]fuse.DirEntry, 0, len(statuses))
	for _, st := range statuses {
		mode := entryMode(st)
		entries = append(entries, fuse.DirEntry{
			Name: st.Name(),
			Mode: mode,
			Ino:  fakeIno(n.child(st.Name())),
		})
	}
	return fs.NewListDirStream(entries), 0
}

var _ = (fs.NodeOpendirer)((*node)(nil))

func (n *node) Opendir(ctx context.Context) syscall.Errno {
	return 0
}

var _ = (fs.NodeOpener)((*node)(nil))

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	switch {
	case flags&syscall.O_APPEND != 0:
		w, err := n.fsys.Append(ctx, n.path)
		if err != nil {
			return nil, 0, sysErrno(err)
		}
		st, err := n.fsys.GetFileStatus(ctx, n.path)
		if err != nil {
			w.Close()
			return nil, 0, sysErrno(err)
		}
		return &writeHandle{w: w, off: st.Size, path: n.path}, fuse.FOPEN_DIRECT_IO, 0
	case flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0:
		w, err := n.fsys.Create(ctx, n.path, true)
		if err != nil {
			return nil, 0, sysErrno(err)
		}
		return &writeHandle{w: w, path: n.path}, fuse.FOPEN_DIRECT_IO, 0
	default:
		f, err := n.fsys.Open(ctx, n.path)
		if err != nil {
			return nil, 0, sysErrno(err)
		}
		return &readHandle{file: f, path: n.path}, fuse.FOPEN_DIRECT_IO, 0
	}
}

var _ = (fs.NodeCreater)((*node)(nil))

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	vpath := n.child(name)
	w, err := n.fsys.Create(ctx, vpath, flags&syscall.O_EXCL == 0)
	if err != nil {
		return nil, nil, 0, sysErrno(err)
	}

	// Object-store backends only materialize the file on close, so
	// synthesize the attributes of an empty file.
	out.Attr.Mode = uint32(mode&0o777) | syscall.S_IFREG

	inode := n.Inode.NewPersistentInode(ctx, &node{fsys: n.fsys, path: vpath}, fs.StableAttr{
		Mode: fuse.S_IFREG,
		Ino:  fakeIno(vpath),
	})
	return inode, &writeHandle{w: w, path: vpath}, fuse.FOPEN_DIRECT_IO, 0
}

var _ = (fs.NodeMkdirer)((*node)(nil))

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	vpath := n.child(name)
	if err := n.fsys.Mkdirs(ctx, vpath, iofsMode(mode)); err != nil {
		return nil, sysErrno(err)
	}
	st, err := n.fsys.GetFileStatus(ctx, vpath)
	if err != nil {
		return nil, sysErrno(err)
	}
	applyStatus(&out.Attr, st)

	return n.Inode.NewPersistentInode(ctx, &node{fsys: n.fsys, path: vpath}, fs.StableAttr{
		Mode: fuse.S_IFDIR,
		Ino:  fakeIno(vpath),
	}), 0
}

var _ = (fs.NodeUnlinker)((*node)(nil))

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	if _, err := n.fsys.Delete(ctx, n.child(name), false); err != nil {
		return sysErrno(err)
	}
	return 0
}

var _ = (fs.NodeRmdirer)((*node)(nil))

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	if _, err := n.fsys.Delete(ctx, n.child(name), false); err != nil {
		return sysErrno(err)
	}
	return 0
}

var _ = (fs.NodeRenamer)((*node)(nil))

func (n *node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	newParentNode, ok := newParent.(*node)
	if !ok {
		return syscall.EINVAL
	}
	if err := n.fsys.Rename(ctx, n.child(name), newParentNode.child(newName)); err != nil {
		return sysErrno(err)
	}
	return 0
}
