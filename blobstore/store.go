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
// Implementations return an error that satisfies errors.Is(err, ErrNotFound).
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable, named blobs.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	Size() int64
	Close() error
}

// Mappable is implemented by blobs whose content is already in memory.
type Mappable interface {
	// Bytes returns the blob content. The slice is valid until the Blob
	// is closed and must not be modified.
	Bytes() ([]byte, error)
}

// readChunk bounds a single ReadAt issued by ReadAll.
const readChunk = 8 << 20

// ReadAll reads the whole blob into a new buffer.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	size := b.Size()
	if size < 0 || int64(int(size)) != size {
		return nil, fmt.Errorf("blobstore: invalid blob size %d", size)
	}
	out := make([]byte, size)
	for off := int64(0); off < size; {
		end := min(off+readChunk, size)
		n, err := b.ReadAt(ctx, out[off:end], off)
		off += int64(n)
		if err != nil && !(errors.Is(err, io.EOF) && off == end) {
			return nil, err
		}
		if n == 0 && off < end {
			return nil, io.ErrUnexpectedEOF
		}
	}
	return out, nil
}
