package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// ErrClosed is returned when writing to a closed WritableBlob.
var ErrClosed = errors.New("blobstore: blob closed")

// ErrExists is returned by conditional writes when the blob already exists.
var ErrExists = errors.New("blobstore: blob already exists")

// ErrInvalidName is returned for names that escape the store root.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// BlobStore is a flat namespace of immutable blobs. Names use '/' as the
// separator. Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create returns a writer; the blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a whole blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ConditionalPutter is implemented by stores that can create a blob only if
// it does not exist yet. Failures satisfy errors.Is(err, ErrExists).
type ConditionalPutter interface {
	PutIfNotExists(ctx context.Context, name string, data []byte) error
}

// PutIfNotExists writes name only if it is absent. Stores without native
// support fall back to an existence check, which is not safe against other
// processes writing the same store.
func PutIfNotExists(ctx context.Context, s BlobStore, name string, data []byte) error {
	if cp, ok := s.(ConditionalPutter); ok {
		return cp.PutIfNotExists(ctx, name, data)
	}
	ok, err := Exists(ctx, s, name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s: %w", name, ErrExists)
	}
	return s.Put(ctx, name, data)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	// ReadAt reads len(p) bytes at off. Short reads return io.EOF.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the blob size in bytes.
	Size() int64
	io.Closer
}

// WritableBlob is a streaming writer for a new blob.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data where the backend supports it.
	Sync() error
}

// Mappable is implemented by blobs that can expose their bytes without
// copying. The slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// ReadAll reads a whole blob.
func ReadAll(ctx context.Context, s BlobStore, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}

	buf := make([]byte, b.Size())
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if n != len(buf) {
		return nil, fmt.Errorf("read %s: short read %d of %d: %w", name, n, len(buf), io.ErrUnexpectedEOF)
	}
	return buf, nil
}

// Exists reports whether name exists.
func Exists(ctx context.Context, s BlobStore, name string) (bool, error) {
	b, err := s.Open(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, b.Close()
}

type bytesBlob struct {
	data []byte
}

// NewBytesBlob wraps an in-memory byte slice as a Blob.
func NewBytesBlob(data []byte) Blob { return &bytesBlob{data: data} }

func (b *bytesBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return readAt(b.data, p, off)
}

func (b *bytesBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rangeReader(b.data, off, length)
}

func (b *bytesBlob) Size() int64            { return int64(len(b.data)) }
func (b *bytesBlob) Close() error           { return nil }
func (b *bytesBlob) Bytes() ([]byte, error) { return b.data, nil }

func readAt(data, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("blobstore: negative offset %d", off)
	}
	if off >= int64(len(data)) {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func rangeReader(data []byte, off, length int64) (io.ReadCloser, error) {
	if off < 0 || length < 0 {
		return nil, fmt.Errorf("blobstore: invalid range %d+%d", off, length)
	}
	if off >= int64(len(data)) {
		return nopReadCloser{}, nil
	}
	end := min(off+length, int64(len(data)))
	return io.NopCloser(&sliceReader{data: data[off:end]}), nil
}

type sliceReader struct {
	data []byte
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

type nopReadCloser struct{}

func (nopReadCloser) Read([]byte) (int, error) { return 0, io.EOF }
func (nopReadCloser) Close() error             { return nil }
