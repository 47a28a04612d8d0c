package annoy

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/annoy/distance"
	"github.com/hupe1980/annoy/internal/node"
	"github.com/hupe1980/annoy/internal/storage"
	"github.com/hupe1980/annoy/internal/tree"
)

// Backing describes where the node arena lives.
type Backing uint8

const (
	// BackingHeap is a growable in-memory arena owned by the index.
	BackingHeap Backing = iota
	// BackingFile is a memory mapped file written by an on-disk build.
	BackingFile
	// BackingMapped is a read-only mapping of a saved index.
	BackingMapped
	// BackingCopy is a loaded index copied into owned memory.
	BackingCopy
)

func (b Backing) String() string {
	switch b {
	case BackingHeap:
		return "heap"
	case BackingFile:
		return "file"
	case BackingMapped:
		return "mapped"
	case BackingCopy:
		return "copy"
	default:
		return fmt.Sprintf("Backing(%d)", b)
	}
}

// Index is a forest of random projection trees over fixed-dimension vectors.
//
// Items are added to a heap (or on-disk) arena, Build grows the forest, and
// queries run against the built forest. A loaded index is read-only until
// Unload. All methods are safe for concurrent use; queries run in parallel
// and mutations are serialized.
type Index struct {
	mu sync.RWMutex

	dim    int
	metric distance.Metric
	layout node.Layout
	opts   options

	arena   storage.Store
	mutable storage.Mutable // nil once loaded
	backing Backing

	slots int
	items int
	roots []int32
	built bool

	unusable atomic.Pointer[error]
	closed   bool

	searcher tree.Searcher
}

// New creates an empty index for vectors of the given dimension.
//
// An unsupported metric value falls back to Euclidean with a warning.
func New(dimension int, metric distance.Metric, optFns ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dimension}
	}
	opts := applyOptions(optFns)
	if !metric.Valid() {
		opts.logger.Warn("unknown metric, using Euclidean", "metric", metric.String())
		metric = distance.MetricEuclidean
	}
	opts.logger = opts.logger.WithIndex(dimension, metric)

	idx := &Index{
		dim:    dimension,
		metric: metric,
		layout: node.NewLayout(dimension, metric),
		opts:   opts,
	}
	_ = idx.resetHeap()
	return idx, nil
}

// Create creates an empty index and resolves the metric by name:
// "Angular", "Euclidean" or "Manhattan" (case-insensitive). Unknown names
// fall back to Euclidean with a warning.
func Create(dimension int, metricName string, optFns ...Option) (*Index, error) {
	metric, ok := distance.ParseMetric(metricName)
	idx, err := New(dimension, metric, optFns...)
	if err != nil {
		return nil, err
	}
	if !ok {
		idx.opts.logger.Warn("unknown metric, using Euclidean",
			"metric", metricName,
			"error", ErrUnknownMetric,
		)
	}
	return idx, nil
}

// resetHeap drops the current arena and starts over with an empty heap.
// Callers hold the write lock.
func (idx *Index) resetHeap() error {
	var err error
	if idx.arena != nil {
		err = idx.arena.Close()
	}
	heap := storage.NewHeap(idx.layout.Stride, idx.opts.resources)
	idx.arena = heap
	idx.mutable = heap
	idx.backing = BackingHeap
	idx.slots, idx.items = 0, 0
	idx.roots = nil
	idx.built = false
	idx.unusable.Store(nil)
	return err
}

func (idx *Index) checkOpen() error {
	if idx.closed {
		return ErrClosed
	}
	return nil
}

func (idx *Index) checkMutable() error {
	if err := idx.checkOpen(); err != nil {
		return err
	}
	if idx.mutable == nil {
		return fmt.Errorf("%w: loaded index, call Unload first", ErrReadOnly)
	}
	if idx.built {
		return fmt.Errorf("%w: index is built, call Unbuild first", ErrReadOnly)
	}
	return nil
}

func (idx *Index) checkQueryable() error {
	if err := idx.checkOpen(); err != nil {
		return err
	}
	if err := idx.unusable.Load(); err != nil {
		return *err
	}
	if !idx.built {
		return ErrNotBuilt
	}
	return nil
}

// AddItem stores vector under id. The vector is copied.
func (idx *Index) AddItem(id int, vector []float32) error {
	start := time.Now()

	idx.mu.Lock()
	err := idx.addItem(id, vector)
	idx.mu.Unlock()

	idx.opts.metricsCollector.RecordAdd(time.Since(start), err)
	idx.opts.logger.LogAdd(context.Background(), id, len(vector), err)
	return err
}

// Add stores vector under the next auto-assigned id, which is NItems() at
// the time of the call, and returns that id.
func (idx *Index) Add(vector []float32) (int, error) {
	start := time.Now()

	idx.mu.Lock()
	id := idx.items
	err := idx.addItem(id, vector)
	idx.mu.Unlock()

	idx.opts.metricsCollector.RecordAdd(time.Since(start), err)
	idx.opts.logger.LogAdd(context.Background(), id, len(vector), err)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (idx *Index) addItem(id int, vector []float32) error {
	if err := idx.checkMutable(); err != nil {
		return err
	}
	if len(vector) != idx.dim {
		return &ErrDimensionMismatch{Expected: idx.dim, Actual: len(vector)}
	}
	if id < 0 || id >= maxSlots {
		return &OutOfBoundsError{ID: id, Slots: maxSlots}
	}

	if id < idx.slots {
		if !idx.layout.At(idx.mutable.Bytes(), int32(id)).Empty() {
			return fmt.Errorf("%w: id %d", ErrDuplicateItem, id)
		}
	} else {
		if err := idx.mutable.Resize(id + 1); err != nil {
			return translateError(err)
		}
		idx.slots = id + 1
	}

	n := idx.layout.At(idx.mutable.Bytes(), int32(id))
	n.Reset()
	n.SetDescendants(1)
	n.SetChild(0, int32(id))
	n.SetVector(vector)
	idx.items++
	return nil
}

// maxSlots keeps every node index, including split nodes, within int32.
const maxSlots = 1 << 30

// vector returns the stored vector of id, aliasing the arena.
// Callers hold a lock.
func (idx *Index) vector(id int) ([]float32, error) {
	if id < 0 || id >= idx.slots {
		return nil, &OutOfBoundsError{ID: id, Slots: idx.slots}
	}
	n := idx.layout.At(idx.arena.Bytes(), int32(id))
	if !n.IsLeaf() {
		return nil, &OutOfBoundsError{ID: id, Slots: idx.slots}
	}
	return n.Vector(), nil
}

// GetItem returns a copy of the vector stored under id.
func (idx *Index) GetItem(id int) ([]float32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkOpen(); err != nil {
		return nil, err
	}
	v, err := idx.vector(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(v), nil
}

// GetDistance returns the distance between two stored items.
func (idx *Index) GetDistance(a, b int) (float32, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.checkOpen(); err != nil {
		return 0, err
	}
	va, err := idx.vector(a)
	if err != nil {
		return 0, err
	}
	vb, err := idx.vector(b)
	if err != nil {
		return 0, err
	}
	return distance.Distance(idx.metric, va, vb), nil
}

// NItems returns the number of stored items.
func (idx *Index) NItems() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.items
}

// NTrees returns the number of trees in the forest.
func (idx *Index) NTrees() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.roots)
}

// Dimension returns the vector dimension.
func (idx *Index) Dimension() int { return idx.dim }

// Metric returns the distance metric.
func (idx *Index) Metric() distance.Metric { return idx.metric }

// Stats describes the state of an index.
type Stats struct {
	Dimension int
	Metric    distance.Metric
	// Items is the number of stored items; Slots is the highest id plus one.
	Items int
	Slots int
	// Nodes counts item slots and split nodes.
	Nodes   int
	Trees   int
	Stride  int
	Bytes   int
	Backing Backing
	Built   bool
}

// Stats returns a snapshot of the index state.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	nodes := idx.nodes()
	return Stats{
		Dimension: idx.dim,
		Metric:    idx.metric,
		Items:     idx.items,
		Slots:     idx.slots,
		Nodes:     nodes,
		Trees:     len(idx.roots),
		Stride:    idx.layout.Stride,
		Bytes:     nodes * idx.layout.Stride,
		Backing:   idx.backing,
		Built:     idx.built,
	}
}

func (idx *Index) nodes() int {
	if idx.arena == nil {
		return 0
	}
	return idx.arena.Len()
}

// forest returns the read-only view used by queries. Callers hold a lock.
func (idx *Index) forest() *tree.Forest {
	return &tree.Forest{
		Layout: &idx.layout,
		Data:   idx.arena.Bytes(),
		Slots:  idx.slots,
		Items:  idx.items,
		Roots:  idx.roots,
	}
}
