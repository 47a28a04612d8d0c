package storage

import (
	"errors"
	"fmt"
	"os"

	mmapgo "github.com/edsrzf/mmap-go"
)

// File is a writable arena backed by a memory mapped file.
//
// Records start at a fixed byte offset so that a header can be written in
// front of them once the build completes.
type File struct {
	f      *os.File
	base   int64
	stride int
	n      int
	cap    int
	m      mmapgo.MMap
}

// CreateFile creates (or truncates) path and maps it for writing.
// Records begin at byte offset base.
func CreateFile(path string, base int64, stride int) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	s := &File{f: f, base: base, stride: stride}
	if err := s.remap(growCap(0, 1)); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *File) remap(newCap int) error {
	if s.m != nil {
		if err := s.m.Unmap(); err != nil {
			return err
		}
		s.m = nil
	}
	if err := s.f.Truncate(s.base + int64(newCap*s.stride)); err != nil {
		return err
	}
	m, err := mmapgo.Map(s.f, mmapgo.RDWR, 0)
	if err != nil {
		return fmt.Errorf("storage: map %s: %w", s.f.Name(), err)
	}
	s.m = m
	s.cap = newCap
	return nil
}

func (s *File) Bytes() []byte {
	if s.m == nil {
		return nil
	}
	return s.m[s.base : s.base+int64(s.n*s.stride)]
}

func (s *File) Len() int    { return s.n }
func (s *File) Stride() int { return s.stride }

// Path returns the backing file path.
func (s *File) Path() string { return s.f.Name() }

// DataOffset returns the byte offset of the first record.
func (s *File) DataOffset() int64 { return s.base }

// Resize implements Mutable. Growing remaps the file.
func (s *File) Resize(n int) error {
	if s.f == nil {
		return ErrClosed
	}
	if n < 0 {
		return fmt.Errorf("storage: negative size %d", n)
	}
	if n > s.cap {
		if err := s.remap(growCap(s.cap, n)); err != nil {
			return err
		}
	}
	if n < s.n {
		clear(s.m[s.base+int64(n*s.stride) : s.base+int64(s.n*s.stride)])
	}
	s.n = n
	return nil
}

// Finalize trims the file to the records, appends trailer, writes header at
// offset 0 and syncs the file. The records are remapped and stay readable.
func (s *File) Finalize(header, trailer []byte) error {
	if s.f == nil {
		return ErrClosed
	}
	if int64(len(header)) > s.base {
		return fmt.Errorf("storage: header of %d bytes exceeds data offset %d", len(header), s.base)
	}
	if err := s.m.Flush(); err != nil {
		return err
	}
	if err := s.m.Unmap(); err != nil {
		return err
	}
	s.m = nil

	end := s.base + int64(s.n*s.stride)
	if err := s.f.Truncate(end); err != nil {
		return err
	}
	if _, err := s.f.WriteAt(trailer, end); err != nil {
		return err
	}
	if _, err := s.f.WriteAt(header, 0); err != nil {
		return err
	}
	if err := s.f.Sync(); err != nil {
		return err
	}

	m, err := mmapgo.Map(s.f, mmapgo.RDWR, 0)
	if err != nil {
		return fmt.Errorf("storage: map %s: %w", s.f.Name(), err)
	}
	s.m = m
	s.cap = s.n
	return nil
}

// Close unmaps and closes the file.
func (s *File) Close() error {
	if s.f == nil {
		return nil
	}
	var errs []error
	if s.m != nil {
		errs = append(errs, s.m.Flush(), s.m.Unmap())
		s.m = nil
	}
	errs = append(errs, s.f.Close())
	s.f = nil
	s.n, s.cap = 0, 0
	return errors.Join(errs...)
}
