package annoy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/annoy/internal/tree"
)

// Result holds the ranked neighbors of a query, nearest first.
// Distances is only set when WithDistances is given and is parallel to IDs.
type Result struct {
	IDs       []int
	Distances []float32
}

// Len returns the number of neighbors.
func (r Result) Len() int { return len(r.IDs) }

// GetNNsByVector returns up to k items closest to vector.
//
// Fewer than k results are returned when the candidates gathered within the
// search budget (after filtering) are fewer than k. When k >= NItems() the
// whole forest is searched.
func (idx *Index) GetNNsByVector(vector []float32, k int, optFns ...SearchOption) (Result, error) {
	start := time.Now()

	idx.mu.RLock()
	res, candidates, err := idx.search(func() ([]float32, error) {
		if len(vector) != idx.dim {
			return nil, &ErrDimensionMismatch{Expected: idx.dim, Actual: len(vector)}
		}
		return vector, nil
	}, k, optFns)
	idx.mu.RUnlock()

	idx.record(k, candidates, res.Len(), time.Since(start), err)
	return res, err
}

// GetNNsByItem returns up to k items closest to the stored item id. The item
// itself is part of the result unless a filter removes it.
func (idx *Index) GetNNsByItem(id, k int, optFns ...SearchOption) (Result, error) {
	start := time.Now()

	idx.mu.RLock()
	res, candidates, err := idx.search(func() ([]float32, error) {
		return idx.vector(id)
	}, k, optFns)
	idx.mu.RUnlock()

	idx.record(k, candidates, res.Len(), time.Since(start), err)
	return res, err
}

func (idx *Index) record(k, candidates, results int, d time.Duration, err error) {
	idx.opts.metricsCollector.RecordSearch(k, candidates, d, err)
	idx.opts.logger.LogSearch(context.Background(), k, results, candidates, err)
}

// search runs a query under the read lock. query resolves the query vector
// once the index is known to be usable.
func (idx *Index) search(query func() ([]float32, error), k int, optFns []SearchOption) (Result, int, error) {
	if err := idx.checkQueryable(); err != nil {
		return Result{}, 0, err
	}

	var opts searchOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	q, err := query()
	if err != nil {
		return Result{}, 0, err
	}
	if k <= 0 {
		return Result{}, 0, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}

	req := tree.Request{Query: q, K: k, SearchK: opts.searchK}
	if opts.filter != nil {
		if err := opts.filter.validate(); err != nil {
			return Result{}, 0, err
		}
		req.Accept = opts.filter.accept()
	}

	neighbors, st, err := idx.searcher.Search(idx.forest(), req)
	if err != nil {
		err = translateError(err)
		if errors.Is(err, ErrUnusable) {
			idx.markUnusable(err)
		}
		return Result{}, st.Candidates, err
	}

	res := Result{IDs: make([]int, len(neighbors))}
	if opts.distances {
		res.Distances = make([]float32, len(neighbors))
	}
	for i, n := range neighbors {
		res.IDs[i] = int(n.ID)
		if opts.distances {
			res.Distances[i] = n.Distance
		}
	}
	return res, st.Candidates, nil
}

// markUnusable records a corruption found by a query. Queries only hold the
// read lock, so the first one to notice wins.
func (idx *Index) markUnusable(err error) {
	idx.unusable.CompareAndSwap(nil, &err)
}
