package tree

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/hupe1980/annoy/distance"
	"github.com/hupe1980/annoy/internal/node"
	"github.com/hupe1980/annoy/internal/queue"
	"github.com/hupe1980/annoy/internal/visited"
)

// ErrCorrupt is returned when traversal meets a node graph that violates
// the forest invariants.
var ErrCorrupt = errors.New("tree: corrupt node graph")

// Forest is a read-only view of a built arena.
type Forest struct {
	Layout *node.Layout
	Data   []byte
	Slots  int
	Items  int
	Roots  []int32
}

// Nodes returns the number of records in the arena.
func (f *Forest) Nodes() int { return f.Layout.Count(f.Data) }

// Vector returns the stored vector of item id, or nil when id is not a
// populated slot. The slice aliases the arena.
func (f *Forest) Vector(id int) []float32 {
	if id < 0 || id >= f.Slots {
		return nil
	}
	n := f.Layout.At(f.Data, int32(id))
	if !n.IsLeaf() {
		return nil
	}
	return n.Vector()
}

// Request describes one query.
type Request struct {
	Query []float32
	K     int
	// SearchK is the candidate budget. Zero selects len(Roots) * K.
	SearchK int
	// Accept, if set, filters candidates. Rejected items do not count
	// towards SearchK.
	Accept func(id int32) bool
}

// Neighbor is a ranked result.
type Neighbor struct {
	ID       int32
	Distance float32
}

// Searcher runs queries and recycles their scratch state.
type Searcher struct {
	visited visited.Pool
	queues  sync.Pool
}

// Stats reports what a query touched.
type Stats struct {
	Popped     int
	Candidates int
}

// Search returns the K nearest accepted candidates ordered by ascending
// distance, ties broken by ascending id.
//
// Roots enter the queue at +Inf. A split node with margin m pushes its right
// child at min(p, m) and its left child at min(p, -m), where p is its own
// priority, so the near side keeps p and the far side is bounded by m.
func (s *Searcher) Search(f *Forest, req Request) ([]Neighbor, Stats, error) {
	var st Stats
	if req.K <= 0 || len(f.Roots) == 0 {
		return nil, st, nil
	}

	searchK := req.SearchK
	if searchK <= 0 {
		searchK = len(f.Roots) * req.K
	}
	if req.K >= f.Items {
		searchK = math.MaxInt
	}

	nodes := f.Nodes()
	// Each tree holds every item at most once, which bounds a valid walk.
	maxPops := (nodes - f.Slots) + len(f.Roots)*(f.Slots+1)

	pq := s.getQueue(len(f.Roots) * 4)
	defer s.queues.Put(pq)
	seen := s.visited.Get(f.Slots)
	defer s.visited.Put(seen)

	for _, r := range f.Roots {
		pq.Push(queue.Item{Node: r, Priority: float32(math.Inf(1))})
	}

	var candidates []int32
	for len(candidates) < searchK {
		top, ok := pq.Pop()
		if !ok {
			break
		}
		st.Popped++
		if st.Popped > maxPops {
			return nil, st, fmt.Errorf("%w: traversal exceeded %d nodes", ErrCorrupt, maxPops)
		}

		idx := top.Node
		if idx < 0 || int(idx) >= nodes {
			return nil, st, fmt.Errorf("%w: node %d out of range [0,%d)", ErrCorrupt, idx, nodes)
		}
		n := f.Layout.At(f.Data, idx)

		switch desc := n.Descendants(); {
		case desc == 1:
			if int(idx) >= f.Slots {
				return nil, st, fmt.Errorf("%w: leaf %d outside item slots", ErrCorrupt, idx)
			}
			if seen.Visit(idx) && (req.Accept == nil || req.Accept(idx)) {
				candidates = append(candidates, idx)
			}
		case desc > 1:
			if int(idx) < f.Slots {
				return nil, st, fmt.Errorf("%w: split node %d inside item slots", ErrCorrupt, idx)
			}
			c0, c1 := n.Child(0), n.Child(1)
			if c0 < 0 || c0 >= idx || c1 < 0 || c1 >= idx {
				return nil, st, fmt.Errorf("%w: node %d has children %d, %d", ErrCorrupt, idx, c0, c1)
			}
			m := f.Layout.Margin(n, req.Query)
			pq.Push(queue.Item{Node: c1, Priority: min(top.Priority, m)})
			pq.Push(queue.Item{Node: c0, Priority: min(top.Priority, -m)})
		default:
			return nil, st, fmt.Errorf("%w: node %d is empty", ErrCorrupt, idx)
		}
	}
	st.Candidates = len(candidates)

	return rank(f, req.Query, candidates, req.K), st, nil
}

func (s *Searcher) getQueue(capacity int) *queue.PriorityQueue {
	if pq, ok := s.queues.Get().(*queue.PriorityQueue); ok {
		pq.Reset()
		return pq
	}
	return queue.New(capacity)
}

func rank(f *Forest, q []float32, candidates []int32, k int) []Neighbor {
	metric := f.Layout.Metric
	out := make([]Neighbor, len(candidates))
	for i, id := range candidates {
		out[i] = Neighbor{ID: id, Distance: distance.Raw(metric, q, f.Layout.At(f.Data, id).Vector())}
	}
	slices.SortFunc(out, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	out = out[:min(k, len(out))]
	for i := range out {
		out[i].Distance = distance.Normalize(metric, out[i].Distance)
	}
	return out
}
