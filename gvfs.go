// Package gvfs is a virtual filesystem layer that addresses datasets
// ("filesets") by logical identifier instead of physical storage path.
// A metadata service maps each identifier to its storage location and
// directory-layout policy; actual I/O is delegated to the storage backend
// selected by the location's URI scheme.
package gvfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"strings"
	"sync"

	"github.com/filesetio/gvfs/backend"
	"github.com/filesetio/gvfs/meta"
)

// FileSystem is the virtual filesystem façade. Every operation resolves
// its virtual path to a fileset plus a live backend handle through the
// resolution cache, translates the path to physical form, and delegates.
//
// Safe for concurrent use.
type FileSystem struct {
	client meta.Client
	cache  *resolutionCache
	log    *slog.Logger

	wdMu    sync.Mutex
	workdir string

	closeOnce sync.Once
}

// New builds a FileSystem from cfg, constructing a REST metadata client
// unless one is injected.
func New(cfg Config) (*FileSystem, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	client := cfg.Client
	if client == nil {
		c, err := meta.NewRESTClient(cfg.ServerURI, cfg.Metalake, cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		client = c
	}

	cache, err := newResolutionCache(cfg.CacheMaxCapacity, cfg.CacheEvictAfterAccess,
		cfg.MetadataTimeout, client, cfg.Registry, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return &FileSystem{
		client:  client,
		cache:   cache,
		log:     cfg.Logger,
		workdir: VirtualPrefixRoot + "/",
	}, nil
}

// operationContext carries everything one call needs: the identifier, the
// resolved metadata and backend handle, and both path forms. It pins the
// cache entry until release.
type operationContext struct {
	ident       meta.Identifier
	fileset     *meta.Fileset
	fsys        backend.FS
	entry       *resolvedEntry
	virtualPath string
	actualPath  string
}

func (oc *operationContext) release() {
	oc.entry.release()
}

// filesetContext resolves a virtual path into an operation context. The
// caller must release it when the operation completes.
func (g *FileSystem) filesetContext(ctx context.Context, virtualPath string) (*operationContext, error) {
	id, err := ExtractIdentifier(virtualPath)
	if err != nil {
		return nil, err
	}
	entry, err := g.cache.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	oc := &operationContext{
		ident:       id,
		fileset:     entry.fileset,
		fsys:        entry.fsys,
		entry:       entry,
		virtualPath: virtualPath,
	}
	actual, err := g.actualPath(ctx, oc)
	if err != nil {
		entry.release()
		return nil, err
	}
	oc.actualPath = actual
	return oc, nil
}

// actualPath translates the virtual path to its physical form. A fileset
// mounting a single file accepts only its own prefix, which maps exactly
// to the storage location.
func (g *FileSystem) actualPath(ctx context.Context, oc *operationContext) (string, error) {
	withScheme := strings.HasPrefix(oc.virtualPath, VirtualPrefixRoot)
	virtualLocation := VirtualPrefix(oc.ident, withScheme)
	storageLocation := strings.TrimSuffix(oc.fileset.StorageLocation, "/")

	singleFile, err := g.mountsSingleFile(ctx, oc)
	if err != nil {
		return "", err
	}
	if singleFile {
		if strings.TrimSuffix(oc.virtualPath, "/") != virtualLocation {
			return "", fmt.Errorf("%w: path %q must equal the virtual prefix %q because the fileset mounts a single file",
				ErrInvalidArgument, oc.virtualPath, virtualLocation)
		}
		return storageLocation, nil
	}
	return storageLocation + strings.TrimPrefix(oc.virtualPath, virtualLocation), nil
}

// mountsSingleFile reports whether the fileset's storage location is a
// file rather than a directory tree. A missing location counts as a
// directory, matching the usual isFile semantics.
func (g *FileSystem) mountsSingleFile(ctx context.Context, oc *operationContext) (bool, error) {
	st, err := oc.fsys.Stat(ctx, oc.fileset.StorageLocation)
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot check whether fileset %s mounts a single file: %w", oc.ident, err)
	}
	return !st.IsDir(), nil
}

func (g *FileSystem) logOperation(op string, oc *operationContext) {
	g.log.Debug(op, "fileset", oc.ident.String(), "path", oc.virtualPath)
}

// Open opens the file at the virtual path for reading. Reads are not
// subject to the directory policy.
func (g *FileSystem) Open(ctx context.Context, virtualPath string) (backend.File, error) {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	defer oc.release()
	g.logOperation("open", oc)
	return oc.fsys.Open(ctx, oc.actualPath)
}

// Create opens the file at the virtual path for writing, creating it if
// needed. The path must satisfy the fileset's directory policy as a file
// target.
func (g *FileSystem) Create(ctx context.Context, virtualPath string, overwrite bool) (io.WriteCloser, error) {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	defer oc.release()
	if err := g.checkPathPolicy(oc, true); err != nil {
		return nil, err
	}
	g.logOperation("create", oc)
	return oc.fsys.Create(ctx, oc.actualPath, overwrite)
}

// Append opens the existing file at the virtual path for appending,
// subject to the policy as a file target.
func (g *FileSystem) Append(ctx context.Context, virtualPath string) (io.WriteCloser, error) {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	defer oc.release()
	if err := g.checkPathPolicy(oc, true); err != nil {
		return nil, err
	}
	g.logOperation("append", oc)
	return oc.fsys.Append(ctx, oc.actualPath)
}

// Mkdirs creates the directory at the virtual path along with missing
// parents, subject to the policy as a directory target.
func (g *FileSystem) Mkdirs(ctx context.Context, virtualPath string, perm iofs.FileMode) error {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return err
	}
	defer oc.release()
	if err := g.checkPathPolicy(oc, false); err != nil {
		return err
	}
	g.logOperation("mkdirs", oc)
	return oc.fsys.Mkdirs(ctx, oc.actualPath, perm)
}

// Rename moves src to dst. Both must resolve to the same fileset, the
// fileset must not mount a single file, and both sub-paths must conform
// to the policy for the source's file or directory kind.
func (g *FileSystem) Rename(ctx context.Context, src, dst string) error {
	srcID, err := ExtractIdentifier(src)
	if err != nil {
		return err
	}
	dstID, err := ExtractIdentifier(dst)
	if err != nil {
		return err
	}
	if srcID != dstID {
		return fmt.Errorf("%w: destination fileset %s differs from source fileset %s",
			ErrCrossFileset, dstID, srcID)
	}

	srcCtx, err := g.filesetContext(ctx, src)
	if err != nil {
		return err
	}
	defer srcCtx.release()

	singleFile, err := g.mountsSingleFile(ctx, srcCtx)
	if err != nil {
		return err
	}
	if singleFile {
		return fmt.Errorf("%w: cannot rename fileset %s which mounts a single file", ErrNotSupported, srcID)
	}

	dstCtx, err := g.filesetContext(ctx, dst)
	if err != nil {
		return err
	}
	defer dstCtx.release()

	if err := g.checkRenamePolicy(ctx, srcCtx, dstCtx); err != nil {
		return err
	}
	g.logOperation("rename", srcCtx)
	return srcCtx.fsys.Rename(ctx, srcCtx.actualPath, dstCtx.actualPath)
}

// Delete removes the file or directory at the virtual path. It reports
// whether anything was removed.
func (g *FileSystem) Delete(ctx context.Context, virtualPath string, recursive bool) (bool, error) {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return false, err
	}
	defer oc.release()
	g.logOperation("delete", oc)
	return oc.fsys.Delete(ctx, oc.actualPath, recursive)
}

// GetFileStatus describes the file or directory at the virtual path. The
// returned path is rewritten into scheme-qualified virtual form.
func (g *FileSystem) GetFileStatus(ctx context.Context, virtualPath string) (*backend.FileStatus, error) {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	defer oc.release()
	g.logOperation("getFileStatus", oc)
	st, err := oc.fsys.Stat(ctx, oc.actualPath)
	if err != nil {
		return nil, err
	}
	return g.toVirtualStatus(oc, st)
}

// ListStatus lists the directory at the virtual path. Every returned path
// is rewritten into scheme-qualified virtual form.
func (g *FileSystem) ListStatus(ctx context.Context, virtualPath string) ([]*backend.FileStatus, error) {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return nil, err
	}
	defer oc.release()
	g.logOperation("listStatus", oc)
	statuses, err := oc.fsys.List(ctx, oc.actualPath)
	if err != nil {
		return nil, err
	}
	out := make([]*backend.FileStatus, 0, len(statuses))
	for _, st := range statuses {
		vst, err := g.toVirtualStatus(oc, st)
		if err != nil {
			return nil, err
		}
		out = append(out, vst)
	}
	return out, nil
}

// SetWorkingDirectory resolves the virtual path, forwards it to backends
// that track their own working directory, and records the virtual form.
func (g *FileSystem) SetWorkingDirectory(ctx context.Context, virtualPath string) error {
	oc, err := g.filesetContext(ctx, virtualPath)
	if err != nil {
		return err
	}
	defer oc.release()
	g.logOperation("setWorkingDirectory", oc)
	if wfs, ok := oc.fsys.(backend.WorkdirFS); ok {
		if err := wfs.SetWorkdir(ctx, oc.actualPath); err != nil {
			return err
		}
	}
	g.wdMu.Lock()
	g.workdir = virtualPath
	g.wdMu.Unlock()
	return nil
}

// WorkingDirectory returns the last virtual working directory set.
func (g *FileSystem) WorkingDirectory() string {
	g.wdMu.Lock()
	defer g.wdMu.Unlock()
	return g.workdir
}

// Close invalidates the resolution cache, closing every cached backend
// handle, and closes the metadata client. Individual close failures are
// logged and swallowed so that shutdown always completes. Idempotent.
func (g *FileSystem) Close() error {
	g.closeOnce.Do(func() {
		g.cache.close()
		if err := g.client.Close(); err != nil {
			g.log.Warn("cannot close metadata client", "error", err)
		}
	})
	return nil
}

// checkPathPolicy validates the operation context's sub-path below the
// fileset root against the declared prefix policy.
func (g *FileSystem) checkPathPolicy(oc *operationContext, isFile bool) error {
	pp, err := prefixPolicyOf(oc.fileset)
	if err != nil {
		return err
	}
	if !pp.check(g.subPath(oc), isFile) {
		return pp.violation(oc.virtualPath)
	}
	return nil
}

// checkRenamePolicy validates both rename endpoints relative to the
// source's actual file or directory kind.
func (g *FileSystem) checkRenamePolicy(ctx context.Context, srcCtx, dstCtx *operationContext) error {
	pp, err := prefixPolicyOf(srcCtx.fileset)
	if err != nil {
		return err
	}
	st, err := srcCtx.fsys.Stat(ctx, srcCtx.actualPath)
	if err != nil {
		return err
	}
	isFile := !st.IsDir()
	if !pp.check(g.subPath(srcCtx), isFile) {
		return pp.violation(srcCtx.virtualPath)
	}
	if !pp.check(g.subPath(dstCtx), isFile) {
		return pp.violation(dstCtx.virtualPath)
	}
	return nil
}

// subPath computes the path below the fileset root, like "/year=2024/a".
func (g *FileSystem) subPath(oc *operationContext) string {
	storageLocation := strings.TrimSuffix(oc.fileset.StorageLocation, "/")
	return strings.TrimPrefix(oc.actualPath, storageLocation)
}

// toVirtualStatus rewrites a backend-reported physical path back into
// scheme-qualified virtual form.
func (g *FileSystem) toVirtualStatus(oc *operationContext, st *backend.FileStatus) (*backend.FileStatus, error) {
	actualPrefix := strings.TrimSuffix(oc.fileset.StorageLocation, "/")
	if !strings.HasPrefix(st.Path, actualPrefix) {
		return nil, fmt.Errorf("path %q does not start with storage prefix %q", st.Path, actualPrefix)
	}
	out := *st
	out.Path = VirtualPrefix(oc.ident, true) + strings.TrimPrefix(st.Path, actualPrefix)
	return &out, nil
}
