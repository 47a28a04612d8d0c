package annoy

// Close releases the arena and makes every further call fail with ErrClosed.
//
// Mapped arenas are unmapped once in-flight queries have finished. Close is
// idempotent.
func (idx *Index) Close() error {
	if idx == nil {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	idx.closed = true

	var err error
	if idx.arena != nil {
		err = idx.arena.Close()
		idx.arena = nil
	}
	idx.mutable = nil
	idx.roots = nil
	idx.built = false
	idx.slots, idx.items = 0, 0
	return translateError(err)
}
