package annoy

import (
	"errors"
	"fmt"

	"github.com/hupe1980/annoy/internal/compress"
	"github.com/hupe1980/annoy/internal/format"
	"github.com/hupe1980/annoy/internal/mmap"
	"github.com/hupe1980/annoy/internal/resource"
	"github.com/hupe1980/annoy/internal/storage"
	"github.com/hupe1980/annoy/internal/tree"
)

var (
	// ErrUnknownMetric is reported when a metric name is not recognized.
	// Create falls back to Euclidean instead of failing.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrReadOnly is returned when mutating a built or loaded index.
	ErrReadOnly = errors.New("index is read-only")

	// ErrIndexOutOfBounds is returned for ids that do not name a stored item.
	ErrIndexOutOfBounds = errors.New("index out of bounds")

	// ErrInvalidFilterMode is returned for a filter that is neither include nor exclude.
	ErrInvalidFilterMode = errors.New("invalid filter mode")

	// ErrIOFailure is returned when a file or blob cannot be read or written.
	ErrIOFailure = errors.New("i/o failure")

	// ErrCorruptFormat is returned when persisted data fails validation.
	ErrCorruptFormat = errors.New("corrupt index format")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrInvalidTreeCount is returned for tree counts other than -1 or a positive number.
	ErrInvalidTreeCount = errors.New("invalid number of trees")

	// ErrNotBuilt is returned when querying or saving an index without a forest.
	ErrNotBuilt = errors.New("index is not built")

	// ErrDuplicateItem is returned when adding an id that is already stored.
	ErrDuplicateItem = errors.New("item already exists")

	// ErrNotEmpty is returned by OnDiskBuild once items have been added.
	ErrNotEmpty = errors.New("index already holds items")

	// ErrUnusable is returned after a query met a corrupt node graph.
	// The index stays unusable until Unload.
	ErrUnusable = errors.New("index is unusable")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("index is closed")

	// ErrMemoryLimitExceeded is returned when the memory budget is exhausted.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// It unwraps to *ErrInvalidDimension so both can be matched with errors.As.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error {
	return &ErrInvalidDimension{Dimension: e.Actual, cause: e.cause}
}

// ErrInvalidDimension indicates an invalid configured dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrInvalidDimension struct {
	Dimension int
	cause     error
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

func (e *ErrInvalidDimension) Unwrap() error { return e.cause }

// OutOfBoundsError reports the offending id. It matches ErrIndexOutOfBounds.
type OutOfBoundsError struct {
	ID    int
	Slots int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%v: id %d not in [0,%d) or not stored", ErrIndexOutOfBounds, e.ID, e.Slots)
}

func (e *OutOfBoundsError) Unwrap() error { return ErrIndexOutOfBounds }

// IOError describes a failed persistence operation. It matches ErrIOFailure
// and unwraps to the underlying cause.
type IOError struct {
	Op    string
	Path  string
	cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.cause)
}

func (e *IOError) Is(target error) bool { return target == ErrIOFailure }

func (e *IOError) Unwrap() error { return e.cause }

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioe *IOError
	if errors.As(err, &ioe) {
		return err
	}
	if isFormatError(err) {
		return translateError(err)
	}
	return &IOError{Op: op, Path: path, cause: err}
}

func isFormatError(err error) bool {
	return errors.Is(err, format.ErrBadMagic) ||
		errors.Is(err, format.ErrVersion) ||
		errors.Is(err, format.ErrCorrupt) ||
		errors.Is(err, format.ErrChecksum) ||
		errors.Is(err, compress.ErrCorrupt) ||
		errors.Is(err, storage.ErrMisaligned)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCorruptFormat) || errors.Is(err, ErrUnusable) {
		return err
	}

	if isFormatError(err) {
		return fmt.Errorf("%w: %w", ErrCorruptFormat, err)
	}
	if errors.Is(err, tree.ErrCorrupt) {
		return fmt.Errorf("%w: %w", ErrUnusable, err)
	}
	if errors.Is(err, storage.ErrClosed) || errors.Is(err, mmap.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
