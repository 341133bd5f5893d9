// Package s3fs serves filesets stored in S3-compatible object stores, for
// storage locations with the "s3" scheme ("s3://<bucket>/<prefix>").
//
// Directories are emulated the way object stores usually do it: a key
// ending in "/" is a directory marker, and any key prefix with children is
// an implicit directory.
package s3fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/filesetio/gvfs/backend"
)

// Options configure the S3 client construction.
type Options struct {
	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string
	Region   string
	// Static credentials; when empty the SDK's default chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Driver returns a driver that builds one S3 client per handle using opts.
func Driver(opts Options) backend.Driver {
	return backend.DriverFunc(func(ctx context.Context, location string) (backend.FS, error) {
		client, err := newClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		return New(client, location)
	})
}

// DriverWithClient returns a driver that shares a pre-built client across
// handles. Used by tests with a stubbed client endpoint.
func DriverWithClient(client *s3.Client) backend.Driver {
	return backend.DriverFunc(func(ctx context.Context, location string) (backend.FS, error) {
		return New(client, location)
	})
}

func newClient(ctx context.Context, opts Options) (*s3.Client, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// FS is an S3-backed handle for one storage location.
type FS struct {
	client *s3.Client
	bucket string
	prefix string // "s3://<bucket>"
}

// New wraps an existing client for the given storage location.
func New(client *s3.Client, location string) (*FS, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return nil, fmt.Errorf("invalid s3 storage location: %q", location)
	}
	return &FS{
		client: client,
		bucket: u.Host,
		prefix: "s3://" + u.Host,
	}, nil
}

// key converts a full physical path to an object key.
func (fsys *FS) key(name string) string {
	k := strings.TrimPrefix(name, fsys.prefix)
	return strings.Trim(k, "/")
}

func notFound(err error) bool {
	return err != nil &&
		(strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey"))
}

func (fsys *FS) Open(ctx context.Context, name string) (backend.File, error) {
	st, err := fsys.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, &iofs.PathError{Op: "open", Path: name, Err: errors.New("is a directory")}
	}
	return &s3File{fsys: fsys, key: fsys.key(name), size: st.Size}, nil
}

func (fsys *FS) Create(ctx context.Context, name string, overwrite bool) (io.WriteCloser, error) {
	key := fsys.key(name)
	if !overwrite {
		_, err := fsys.head(ctx, key)
		if err == nil {
			return nil, &iofs.PathError{Op: "create", Path: name, Err: iofs.ErrExist}
		}
		if !errors.Is(err, iofs.ErrNotExist) {
			return nil, err
		}
	}
	return &s3Writer{fsys: fsys, ctx: ctx, key: key}, nil
}

func (fsys *FS) Append(ctx context.Context, name string) (io.WriteCloser, error) {
	key := fsys.key(name)
	out, err := fsys.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(fsys.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return nil, &iofs.PathError{Op: "append", Path: name, Err: iofs.ErrNotExist}
		}
		return nil, err
	}
	defer out.Body.Close()
	existing, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	w := &s3Writer{fsys: fsys, ctx: ctx, key: key}
	w.buf.Write(existing)
	return w, nil
}

func (fsys *FS) Rename(ctx context.Context, oldname, newname string) error {
	oldKey, newKey := fsys.key(oldname), fsys.key(newname)

	// Plain object rename.
	if _, err := fsys.head(ctx, oldKey); err == nil {
		return fsys.moveObject(ctx, oldKey, newKey)
	}

	// Directory rename: move every key under the old prefix.
	keys, err := fsys.listAllKeys(ctx, oldKey+"/")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return &iofs.PathError{Op: "rename", Path: oldname, Err: iofs.ErrNotExist}
	}
	for _, k := range keys {
		dst := newKey + "/" + strings.TrimPrefix(k, oldKey+"/")
		if err := fsys.moveObject(ctx, k, dst); err != nil {
			return err
		}
	}
	return nil
}

func (fsys *FS) moveObject(ctx context.Context, oldKey, newKey string) error {
	_, err := fsys.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(fsys.bucket),
		CopySource: aws.String(fsys.bucket + "/" + oldKey),
		Key:        aws.String(newKey),
	})
	if err != nil {
		return err
	}
	_, err = fsys.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(fsys.bucket),
		Key:    aws.String(oldKey),
	})
	return err
}

func (fsys *FS) Delete(ctx context.Context, name string, recursive bool) (bool, error) {
	key := fsys.key(name)

	if _, err := fsys.head(ctx, key); err == nil {
		_, err := fsys.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(fsys.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return false, err
		}
		return true, nil
	}

	keys, err := fsys.listAllKeys(ctx, key+"/")
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}
	if !recursive {
		return false, fmt.Errorf("remove %s: directory not empty", name)
	}
	for _, k := range keys {
		if _, err := fsys.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(fsys.bucket),
			Key:    aws.String(k),
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (fsys *FS) Stat(ctx context.Context, name string) (*backend.FileStatus, error) {
	key := fsys.key(name)
	if key == "" {
		// The bucket (or prefix) root is always a directory.
		return &backend.FileStatus{Path: strings.TrimSuffix(name, "/"), Mode: iofs.ModeDir | 0o755, Dir: true}, nil
	}

	st, err := fsys.head(ctx, key)
	if err == nil {
		st.Path = strings.TrimSuffix(name, "/")
		return st, nil
	}
	if !errors.Is(err, iofs.ErrNotExist) {
		return nil, err
	}

	// Implicit directory: any key under the prefix makes it exist.
	out, lerr := fsys.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(fsys.bucket),
		Prefix:  aws.String(key + "/"),
		MaxKeys: aws.Int32(1),
	})
	if lerr != nil {
		return nil, lerr
	}
	if len(out.Contents) == 0 && len(out.CommonPrefixes) == 0 {
		return nil, &iofs.PathError{Op: "stat", Path: name, Err: iofs.ErrNotExist}
	}
	return &backend.FileStatus{Path: strings.TrimSuffix(name, "/"), Mode: iofs.ModeDir | 0o755, Dir: true}, nil
}

func (fsys *FS) head(ctx context.Context, key string) (*backend.FileStatus, error) {
	out, err := fsys.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(fsys.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if notFound(err) {
			return nil, iofs.ErrNotExist
		}
		return nil, err
	}
	st := &backend.FileStatus{Mode: 0o644}
	if out.ContentLength != nil {
		st.Size = *out.ContentLength
	}
	if out.LastModified != nil {
		st.ModTime = *out.LastModified
	}
	if strings.HasSuffix(key, "/") {
		st.Dir = true
		st.Mode = iofs.ModeDir | 0o755
	}
	return st, nil
}

func (fsys *FS) List(ctx context.Context, name string) ([]*backend.FileStatus, error) {
	key := fsys.key(name)
	prefix := ""
	if key != "" {
		prefix = key + "/"
	}

	var statuses []*backend.FileStatus
	var token *string
	for {
		out, err := fsys.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(fsys.bucket),
			Prefix:            aws.String(prefix),
			Delimiter:         aws.String("/"),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, cp := range out.CommonPrefixes {
			dir := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
			if dir == "" {
				continue
			}
			statuses = append(statuses, &backend.FileStatus{
				Path: fsys.prefix + "/" + prefix + dir,
				Mode: iofs.ModeDir | 0o755,
				Dir:  true,
			})
		}
		for _, obj := range out.Contents {
			base := strings.TrimPrefix(*obj.Key, prefix)
			if base == "" || strings.Contains(base, "/") {
				// Skip the directory marker itself and anything nested.
				continue
			}
			st := &backend.FileStatus{
				Path: fsys.prefix + "/" + *obj.Key,
				Mode: 0o644,
			}
			if obj.Size != nil {
				st.Size = *obj.Size
			}
			if obj.LastModified != nil {
				st.ModTime = *obj.LastModified
			}
			statuses = append(statuses, st)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return statuses, nil
}

func (fsys *FS) Mkdirs(ctx context.Context, name string, perm iofs.FileMode) error {
	key := fsys.key(name)
	if key == "" {
		return nil
	}
	_, err := fsys.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(fsys.bucket),
		Key:    aws.String(key + "/"),
		Body:   bytes.NewReader(nil),
	})
	return err
}

func (fsys *FS) Close() error {
	return nil
}

func (fsys *FS) listAllKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var token *string
	for {
		out, err := fsys.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(fsys.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			keys = append(keys, *obj.Key)
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

var _ backend.FS = (*FS)(nil)
