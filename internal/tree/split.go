package tree

import (
	"slices"

	"github.com/hupe1980/annoy/distance"
	"github.com/hupe1980/annoy/internal/node"
	"github.com/hupe1980/annoy/internal/random"
)

const (
	// splitAttempts is the number of hyperplanes tried before falling back
	// to a balanced split.
	splitAttempts = 3

	// twoMeansSteps bounds the refinement of the two sampled centroids.
	twoMeansSteps = 200

	// manhattanSample is the number of candidates inspected when choosing
	// the split dimension.
	manhattanSample = 64
)

// splitter chooses hyperplanes for one tree. It is not safe for concurrent use.
type splitter struct {
	layout *node.Layout
	vector func(id int32) []float32
	rng    random.Source

	p, q   []float32
	tmp    []float32
	values []float32
	sample []int32
}

func newSplitter(layout *node.Layout, vector func(int32) []float32, rng random.Source) *splitter {
	return &splitter{
		layout: layout,
		vector: vector,
		rng:    rng,
		p:      make([]float32, layout.Dim),
		q:      make([]float32, layout.Dim),
		tmp:    make([]float32, layout.Dim),
	}
}

// split fills the descriptor of n and partitions ids into left and right.
// Both sides are non-empty when len(ids) >= 2. The returned slices alias
// ids, which is reordered.
func (s *splitter) split(n node.Node, ids []int32) (left, right []int32) {
	for range splitAttempts {
		if s.layout.Metric == distance.MetricManhattan {
			s.medianSplit(n, ids)
		} else {
			s.twoMeans(n, ids)
		}
		if left, right = s.partition(n, ids); len(left) > 0 && len(right) > 0 {
			return left, right
		}
	}
	return s.balanced(n, ids)
}

// partition moves ids with a negative margin to the front.
func (s *splitter) partition(n node.Node, ids []int32) (left, right []int32) {
	i := 0
	for j, id := range ids {
		if s.layout.Side(n, s.vector(id)) == 0 {
			ids[i], ids[j] = ids[j], ids[i]
			i++
		}
	}
	return ids[:i], ids[i:]
}

// balanced shuffles ids and halves them under a neutral descriptor.
func (s *splitter) balanced(n node.Node, ids []int32) (left, right []int32) {
	clear(n.Vector())
	switch s.layout.Metric {
	case distance.MetricManhattan:
		n.SetSplitDim(node.NoSplitDim)
		n.SetThreshold(0)
	case distance.MetricEuclidean:
		n.SetOffset(0)
	}
	for i := len(ids) - 1; i > 0; i-- {
		j := s.rng.Index(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	mid := len(ids) / 2
	return ids[:mid], ids[mid:]
}

// twoMeans samples two items, refines them as centroids of two clusters and
// places the hyperplane halfway between them.
func (s *splitter) twoMeans(n node.Node, ids []int32) {
	count := len(ids)
	i := s.rng.Index(count)
	j := s.rng.Index(count - 1)
	if j >= i {
		j++
	}

	angular := s.layout.Metric == distance.MetricAngular
	load := func(dst []float32, id int32) {
		copy(dst, s.vector(id))
		if angular {
			distance.NormalizeL2InPlace(dst)
		}
	}
	load(s.p, ids[i])
	load(s.q, ids[j])

	ic, jc := float32(1), float32(1)
	for range twoMeansSteps {
		load(s.tmp, ids[s.rng.Index(count)])
		di := ic * distance.Raw(s.layout.Metric, s.p, s.tmp)
		dj := jc * distance.Raw(s.layout.Metric, s.q, s.tmp)
		switch {
		case di < dj:
			blend(s.p, s.tmp, ic)
			ic++
		case dj < di:
			blend(s.q, s.tmp, jc)
			jc++
		}
	}

	normal := n.Vector()
	for d := range normal {
		normal[d] = s.p[d] - s.q[d]
	}
	distance.NormalizeL2InPlace(normal)

	if s.layout.Metric == distance.MetricEuclidean {
		var off float32
		for d := range normal {
			off += -normal[d] * (s.p[d] + s.q[d]) / 2
		}
		n.SetOffset(off)
	}
}

// blend moves centroid c towards v, c having absorbed weight points so far.
func blend(c, v []float32, weight float32) {
	inv := 1 / (weight + 1)
	for d := range c {
		c[d] = (c[d]*weight + v[d]) * inv
	}
}

// medianSplit picks the dimension with the widest spread over a random
// sample and splits at the sample median.
func (s *splitter) medianSplit(n node.Node, ids []int32) {
	s.sample = s.sample[:0]
	if len(ids) <= manhattanSample {
		s.sample = append(s.sample, ids...)
	} else {
		for range manhattanSample {
			s.sample = append(s.sample, ids[s.rng.Index(len(ids))])
		}
	}

	lo, hi := s.p, s.q
	copy(lo, s.vector(s.sample[0]))
	copy(hi, lo)
	for _, id := range s.sample[1:] {
		v := s.vector(id)
		for d, x := range v {
			lo[d] = min(lo[d], x)
			hi[d] = max(hi[d], x)
		}
	}

	best, spread := 0, float32(-1)
	for d := range lo {
		if w := hi[d] - lo[d]; w > spread {
			best, spread = d, w
		}
	}

	s.values = s.values[:0]
	for _, id := range s.sample {
		s.values = append(s.values, s.vector(id)[best])
	}
	slices.Sort(s.values)
	m := len(s.values) / 2
	threshold := s.values[m]
	if m > 0 && s.values[m-1] < threshold {
		threshold = s.values[m-1] + (threshold-s.values[m-1])/2
	}

	n.SetSplitDim(int32(best))
	n.SetThreshold(threshold)
}
