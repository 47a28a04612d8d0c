package tree

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annoy/internal/node"
	"github.com/hupe1980/annoy/internal/random"
	"github.com/hupe1980/annoy/internal/resource"
	"github.com/hupe1980/annoy/internal/storage"
)

// AutoTrees requests as many trees as needed for their split nodes to
// outnumber the items at least twice.
const AutoTrees = -1

// ErrNoItems is returned when building over an arena without items.
var ErrNoItems = errors.New("tree: no items to build")

// BuildOptions configures a Builder.
type BuildOptions struct {
	// Seed selects the forest; the same seed over the same items yields
	// the same forest regardless of Workers.
	Seed uint64
	// Workers bounds the trees built concurrently. Defaults to 1.
	Workers int
	// Resources, if set, accounts per-tree buffers and shares build slots.
	Resources *resource.Controller
}

// Builder grows a forest inside an arena whose first Slots records are items.
type Builder struct {
	layout *node.Layout
	arena  storage.Mutable
	slots  int
	opts   BuildOptions
}

// NewBuilder returns a Builder over arena. Records [0, slots) are item slots;
// anything behind them is discarded before the first tree is appended.
func NewBuilder(layout *node.Layout, arena storage.Mutable, slots int, opts BuildOptions) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Builder{layout: layout, arena: arena, slots: slots, opts: opts}
}

// TreeCount resolves AutoTrees for items populated ids. Every tree over n
// items adds n-1 split nodes. Gaps between sparse ids are not counted.
func TreeCount(requested, items int) int {
	if requested != AutoTrees {
		return requested
	}
	if items <= 1 {
		return 1
	}
	perTree := items - 1
	return (2*items + perTree - 1) / perTree
}

// Build appends nTrees trees (or AutoTrees) and returns their roots in tree
// order. On error the roots of every tree merged before the failure are
// returned alongside it; those trees are complete and usable.
func (b *Builder) Build(ctx context.Context, nTrees int) ([]int32, error) {
	if nTrees != AutoTrees && nTrees <= 0 {
		return nil, fmt.Errorf("tree: invalid tree count %d", nTrees)
	}
	if err := b.arena.Resize(b.slots); err != nil {
		return nil, err
	}

	items := b.items()
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	nTrees = TreeCount(nTrees, len(items))

	roots := make([]int32, 0, nTrees)
	for first := 0; first < nTrees; first += b.opts.Workers {
		round := min(b.opts.Workers, nTrees-first)
		built, err := b.round(ctx, items, first, round)
		for i, t := range built {
			root, mergeErr := b.merge(t)
			if mergeErr != nil {
				for _, rest := range built[i+1:] {
					b.opts.Resources.ReleaseMemory(rest.reserved)
				}
				return roots, mergeErr
			}
			roots = append(roots, root)
		}
		if err != nil {
			return roots, err
		}
	}
	return roots, nil
}

func (b *Builder) items() []int32 {
	data := b.arena.Bytes()
	ids := make([]int32, 0, b.slots)
	for i := range b.slots {
		if !b.layout.At(data, int32(i)).Empty() {
			ids = append(ids, int32(i))
		}
	}
	return ids
}

// localTree is a tree built outside the arena. Split node j of the tree is
// record j of nodes and is referenced as slots+j until merged.
type localTree struct {
	nodes    []byte
	root     int32
	reserved int64
}

// round builds count trees concurrently and returns the ones preceding the
// first failure, in tree order.
func (b *Builder) round(ctx context.Context, items []int32, first, count int) ([]*localTree, error) {
	data := b.arena.Bytes()
	vector := func(id int32) []float32 { return b.layout.At(data, id).Vector() }

	results := make([]*localTree, count)
	errs := make([]error, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i := range count {
		g.Go(func() error {
			if err := b.opts.Resources.AcquireWorker(gctx); err != nil {
				errs[i] = err
				return err
			}
			defer b.opts.Resources.ReleaseWorker()

			ids := make([]int32, len(items))
			copy(ids, items)
			t, err := b.buildTree(gctx, vector, ids, random.ForTree(b.opts.Seed, first+i))
			results[i], errs[i] = t, err
			return err
		})
	}
	err := g.Wait()

	var done []*localTree
	for i := range count {
		if errs[i] != nil {
			break
		}
		done = append(done, results[i])
	}
	for _, t := range results[len(done):] {
		if t != nil {
			b.opts.Resources.ReleaseMemory(t.reserved)
		}
	}
	if err == nil {
		// errgroup returns the first error observed; report the one of the
		// earliest failed tree when it differs.
		for _, e := range errs {
			if e != nil {
				return done, e
			}
		}
	}
	return done, err
}

func (b *Builder) buildTree(ctx context.Context, vector func(int32) []float32, ids []int32, rng random.Source) (*localTree, error) {
	stride := b.layout.Stride
	size := int64(max(len(ids)-1, 0) * stride)
	if err := b.opts.Resources.AcquireMemory(size); err != nil {
		return nil, err
	}

	t := &localTree{nodes: make([]byte, 0, size), reserved: size}
	tb := treeBuilder{
		ctx:    ctx,
		layout: b.layout,
		slots:  int32(b.slots),
		vector: vector,
		split:  newSplitter(b.layout, vector, rng),
		t:      t,
	}
	root, err := tb.make(ids)
	if err != nil {
		b.opts.Resources.ReleaseMemory(size)
		return nil, err
	}
	t.root = root
	return t, nil
}

// merge appends t to the arena, rebasing its local references.
func (b *Builder) merge(t *localTree) (int32, error) {
	defer b.opts.Resources.ReleaseMemory(t.reserved)

	base := b.arena.Len()
	count := len(t.nodes) / b.layout.Stride
	if err := b.arena.Resize(base + count); err != nil {
		return 0, err
	}
	dst := b.arena.Bytes()
	copy(dst[base*b.layout.Stride:], t.nodes)

	slots := int32(b.slots)
	rebase := func(ref int32) int32 {
		if ref >= slots {
			return ref - slots + int32(base)
		}
		return ref
	}
	for j := range count {
		n := b.layout.At(dst, int32(base+j))
		n.SetChild(0, rebase(n.Child(0)))
		n.SetChild(1, rebase(n.Child(1)))
	}
	t.nodes = nil
	return rebase(t.root), nil
}

type treeBuilder struct {
	ctx    context.Context
	layout *node.Layout
	slots  int32
	vector func(int32) []float32
	split  *splitter
	t      *localTree
}

// make returns the reference of the subtree over ids. Children are written
// before their parent.
func (tb *treeBuilder) make(ids []int32) (int32, error) {
	if len(ids) == 1 {
		return ids[0], nil
	}
	if err := tb.ctx.Err(); err != nil {
		return 0, err
	}

	scratch := make([]byte, tb.layout.Stride)
	n := tb.layout.At(scratch, 0)
	left, right := tb.split.split(n, ids)

	c0, err := tb.make(left)
	if err != nil {
		return 0, err
	}
	c1, err := tb.make(right)
	if err != nil {
		return 0, err
	}

	n.SetDescendants(int32(len(ids)))
	n.SetChild(0, c0)
	n.SetChild(1, c1)

	ref := tb.slots + int32(len(tb.t.nodes)/tb.layout.Stride)
	tb.t.nodes = append(tb.t.nodes, scratch...)
	return ref, nil
}
