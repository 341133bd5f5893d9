package s3fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	iofs "io/fs"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// s3File reads an object through ranged GET requests. Sequential reads and
// random-access reads share the same mechanism: a byte range per call.
type s3File struct {
	fsys *FS
	key  string
	size int64

	mu     sync.Mutex
	pos    int64
	closed bool
}

func (f *s3File) Read(p []byte) (int, error) {
	f.mu.Lock()
	pos := f.pos
	f.mu.Unlock()

	n, err := f.ReadAt(p, pos)

	f.mu.Lock()
	f.pos = pos + int64(n)
	f.mu.Unlock()
	return n, err
}

func (f *s3File) ReadAt(p []byte, off int64) (int, error) {
	if f.isClosed() {
		return 0, iofs.ErrClosed
	}
	if off >= f.size {
		return 0, io.EOF
	}
	end := off + int64(len(p)) - 1
	if end >= f.size {
		end = f.size - 1
	}

	out, err := f.fsys.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(f.fsys.bucket),
		Key:    aws.String(f.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, end)),
	})
	if err != nil {
		if notFound(err) {
			return 0, iofs.ErrNotExist
		}
		return 0, err
	}
	defer out.Body.Close()

	n, err := io.ReadFull(out.Body, p[:end-off+1])
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err == nil && off+int64(n) >= f.size {
		err = io.EOF
	}
	return n, err
}

func (f *s3File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, iofs.ErrClosed
	}

	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = f.pos + offset
	case io.SeekEnd:
		next = f.size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek offset")
	}
	f.pos = next
	return next, nil
}

func (f *s3File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *s3File) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// s3Writer buffers writes and uploads the object on Close. Object stores
// have no partial-write primitive, so this mirrors the usual staging
// approach.
type s3Writer struct {
	fsys   *FS
	ctx    context.Context
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, iofs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.fsys.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.fsys.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", w.key, err)
	}
	return nil
}
