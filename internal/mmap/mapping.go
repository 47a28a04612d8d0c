package mmap

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Mapping is a read-only view of a whole file.
type Mapping struct {
	path   string
	data   []byte
	closed atomic.Bool
}

// Open maps the file at path. Empty files yield an empty mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	// The mapping outlives the descriptor.
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if int64(int(size)) != size {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, size)
	}

	m := &Mapping{path: path}
	if size > 0 {
		if m.data, err = mapFile(f, int(size)); err != nil {
			return nil, fmt.Errorf("mmap: map %s: %w", path, err)
		}
	}
	return m, nil
}

// Path returns the mapped file's path.
func (m *Mapping) Path() string { return m.path }

// Len returns the mapping size in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// Bytes returns the mapped contents, or nil after Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Advise passes a read pattern hint to the kernel.
func (m *Mapping) Advise(a Advice) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(m.data) == 0 {
		return nil
	}
	return advise(m.data, a)
}

// Prefault reads the mapping in ahead of the first query: it issues
// AdviceWillNeed and touches one byte per page.
func (m *Mapping) Prefault() error {
	if err := m.Advise(AdviceWillNeed); err != nil {
		return err
	}
	var sum byte
	for off, page := 0, os.Getpagesize(); off < len(m.data); off += page {
		sum += m.data[off]
	}
	_ = sum
	return nil
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case m.closed.Load():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrInvalidOffset
	case off >= int64(len(m.data)):
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the file. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) || m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return unmapFile(data)
}
