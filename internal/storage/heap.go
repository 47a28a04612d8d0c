package storage

import (
	"fmt"

	"github.com/hupe1980/annoy/internal/resource"
)

// Heap is a growable in-memory arena.
type Heap struct {
	stride int
	n      int
	buf    []byte
	rc     *resource.Controller
	closed bool
}

// NewHeap creates an empty arena. rc may be nil.
func NewHeap(stride int, rc *resource.Controller) *Heap {
	return &Heap{stride: stride, rc: rc}
}

func (h *Heap) Bytes() []byte { return h.buf[:h.n*h.stride] }
func (h *Heap) Len() int      { return h.n }
func (h *Heap) Stride() int   { return h.stride }

// Cap returns the number of records that fit without reallocating.
func (h *Heap) Cap() int { return len(h.buf) / h.stride }

// Resize implements Mutable. Growth is amortized; shrinking keeps the allocation.
func (h *Heap) Resize(n int) error {
	if h.closed {
		return ErrClosed
	}
	if n < 0 {
		return fmt.Errorf("storage: negative size %d", n)
	}
	if n <= h.Cap() {
		if n < h.n {
			clear(h.buf[n*h.stride : h.n*h.stride])
		}
		h.n = n
		return nil
	}

	newCap := growCap(h.Cap(), n)
	delta := int64((newCap - h.Cap()) * h.stride)
	if err := h.rc.AcquireMemory(delta); err != nil {
		return fmt.Errorf("storage: grow to %d records: %w", newCap, err)
	}
	buf := make([]byte, newCap*h.stride)
	copy(buf, h.buf[:h.n*h.stride])
	h.buf = buf
	h.n = n
	return nil
}

// Close releases the buffer and its memory reservation.
func (h *Heap) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.rc.ReleaseMemory(int64(len(h.buf)))
	h.buf = nil
	h.n = 0
	return nil
}
