package mmap

import "errors"

// Advice tells the kernel how a mapping is about to be read.
type Advice uint8

const (
	// AdviceNormal restores the default read-ahead.
	AdviceNormal Advice = iota
	// AdviceSequential suits whole-file copies and uploads.
	AdviceSequential
	// AdviceRandom suits tree traversal, which jumps between nodes.
	AdviceRandom
	// AdviceWillNeed starts reading the mapping in ahead of use.
	AdviceWillNeed
)

var (
	// ErrClosed is returned when using a mapping after Close.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrTooLarge is returned for files larger than the address space.
	ErrTooLarge = errors.New("mmap: file too large to map")
	// ErrInvalidOffset is returned for negative read offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
