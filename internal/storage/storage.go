package storage

import "errors"

var (
	// ErrClosed is returned by operations on a closed arena.
	ErrClosed = errors.New("storage: arena is closed")
	// ErrMisaligned is returned when a buffer length is not a multiple of the stride.
	ErrMisaligned = errors.New("storage: buffer is not a whole number of records")
)

// Store is a read-only arena of fixed-stride records.
type Store interface {
	// Bytes returns the records. Its length is Len() * Stride().
	Bytes() []byte
	// Len returns the number of records.
	Len() int
	// Stride returns the record size in bytes.
	Stride() int
	// Close releases the arena.
	Close() error
}

// Mutable is an arena that can change size.
type Mutable interface {
	Store
	// Resize sets the record count. New records are zeroed.
	Resize(n int) error
}

func growCap(cur, need int) int {
	c := max(cur, 16)
	for c < need {
		if c < 1<<16 {
			c *= 2
		} else {
			c += c / 4
		}
	}
	return c
}
