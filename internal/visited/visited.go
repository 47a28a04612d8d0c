// Package visited provides a resettable set of item ids used to dedupe
// query candidates gathered across trees.
package visited

import "sync"

// Set tracks visited ids using a bitset and a dirty list for fast reset.
// The dirty list doubles as the visit-ordered candidate list.
type Set struct {
	bits  []uint64
	dirty []int32
}

// New creates a set sized for ids in [0, capacity).
func New(capacity int) *Set {
	return &Set{
		bits:  make([]uint64, (capacity+63)/64),
		dirty: make([]int32, 0, 128),
	}
}

// Visit marks id as visited and reports whether it was newly added.
func (v *Set) Visit(id int32) bool {
	wordIdx := int(id >> 6)
	bitMask := uint64(1) << (uint32(id) & 63)

	if wordIdx >= len(v.bits) {
		v.grow(wordIdx + 1)
	}

	if v.bits[wordIdx]&bitMask != 0 {
		return false
	}
	v.bits[wordIdx] |= bitMask
	v.dirty = append(v.dirty, id)
	return true
}

// Visited returns true if id has been visited.
func (v *Set) Visited(id int32) bool {
	wordIdx := int(id >> 6)
	if wordIdx >= len(v.bits) {
		return false
	}
	return v.bits[wordIdx]&(uint64(1)<<(uint32(id)&63)) != 0
}

// Len returns the number of visited ids.
func (v *Set) Len() int { return len(v.dirty) }

// Items returns the visited ids in visit order.
// The slice is reused after Reset; callers must copy it to retain it.
func (v *Set) Items() []int32 { return v.dirty }

// Reset clears the ids visited in the current session.
func (v *Set) Reset() {
	for _, id := range v.dirty {
		v.bits[id>>6] &^= uint64(1) << (uint32(id) & 63)
	}
	v.dirty = v.dirty[:0]
}

// EnsureCapacity ensures the set can hold ids in [0, capacity).
func (v *Set) EnsureCapacity(capacity int) {
	words := (capacity + 63) / 64
	if words > len(v.bits) {
		v.grow(words)
	}
}

func (v *Set) grow(newLen int) {
	newCap := len(v.bits) * 2
	if newCap < newLen {
		newCap = newLen
	}
	newBits := make([]uint64, newCap)
	copy(newBits, v.bits)
	v.bits = newBits
}

// Pool recycles sets between queries.
type Pool struct {
	p sync.Pool
}

// Get returns an empty set able to hold ids in [0, capacity).
func (p *Pool) Get(capacity int) *Set {
	if s, ok := p.p.Get().(*Set); ok {
		s.EnsureCapacity(capacity)
		return s
	}
	return New(capacity)
}

// Put resets s and returns it to the pool.
func (p *Pool) Put(s *Set) {
	if s == nil {
		return
	}
	s.Reset()
	p.p.Put(s)
}
