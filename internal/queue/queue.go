// Package queue provides the traversal frontier shared by all trees of a
// forest query.
package queue

// Item is a node index paired with its traversal priority.
type Item struct {
	Node     int32
	Priority float32
}

// before reports whether a pops ahead of b: higher priority first, and the
// higher node index on equal priority so that pops are deterministic.
func (a Item) before(b Item) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Node > b.Node
}

// PriorityQueue is a max-heap of Items stored by value.
// It deliberately skips container/heap and its interface calls.
type PriorityQueue struct {
	items []Item
}

// New returns an empty queue with room for capacity items.
func New(capacity int) *PriorityQueue {
	return &PriorityQueue{items: make([]Item, 0, capacity)}
}

// Len returns the number of queued items.
func (pq *PriorityQueue) Len() int { return len(pq.items) }

// Reset empties the queue and keeps its storage.
func (pq *PriorityQueue) Reset() { pq.items = pq.items[:0] }

// Top returns the next item without removing it.
func (pq *PriorityQueue) Top() (Item, bool) {
	if len(pq.items) == 0 {
		return Item{}, false
	}
	return pq.items[0], true
}

// Push adds it.
func (pq *PriorityQueue) Push(it Item) {
	pq.items = append(pq.items, it)

	// Move the hole up until the parent pops first.
	i := len(pq.items) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !it.before(pq.items[parent]) {
			break
		}
		pq.items[i] = pq.items[parent]
		i = parent
	}
	pq.items[i] = it
}

// Pop removes and returns the item with the highest priority.
func (pq *PriorityQueue) Pop() (Item, bool) {
	n := len(pq.items) - 1
	if n < 0 {
		return Item{}, false
	}
	top, last := pq.items[0], pq.items[n]
	pq.items = pq.items[:n]
	if n == 0 {
		return top, true
	}

	// Move the hole down, then drop last into it.
	i := 0
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if r := child + 1; r < n && pq.items[r].before(pq.items[child]) {
			child = r
		}
		if !pq.items[child].before(last) {
			break
		}
		pq.items[i] = pq.items[child]
		i = child
	}
	pq.items[i] = last
	return top, true
}
