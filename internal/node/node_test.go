package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annoy/distance"
)

func TestStride(t *testing.T) {
	tests := []struct {
		metric distance.Metric
		dim    int
		want   int
	}{
		{distance.MetricAngular, 3, 24},
		{distance.MetricEuclidean, 3, 28},
		{distance.MetricManhattan, 3, 32},
		{distance.MetricEuclidean, 1, 20},
	}
	for _, tt := range tests {
		t.Run(tt.metric.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Stride(tt.dim, tt.metric))
			assert.Equal(t, tt.want, NewLayout(tt.dim, tt.metric).Stride)
		})
	}
}

func TestNodeFields(t *testing.T) {
	l := NewLayout(2, distance.MetricEuclidean)
	buf := make([]byte, 3*l.Stride)
	n := l.At(buf, 1)

	assert.True(t, n.Empty())
	n.SetDescendants(1)
	n.SetChild(0, 7)
	n.SetVector([]float32{1.5, -2})

	assert.True(t, n.IsLeaf())
	assert.Equal(t, int32(7), n.ItemID())
	assert.Equal(t, []float32{1.5, -2}, n.Vector())

	// Neighbours are untouched.
	assert.True(t, l.At(buf, 0).Empty())
	assert.True(t, l.At(buf, 2).Empty())

	n.SetDescendants(5)
	n.SetChild(1, 9)
	n.SetOffset(0.25)
	assert.False(t, n.IsLeaf())
	assert.Equal(t, int32(9), n.Child(1))
	assert.Equal(t, float32(0.25), n.Offset())

	n.Reset()
	assert.True(t, n.Empty())
	assert.Equal(t, 3, l.Count(buf))
}

func TestMargin(t *testing.T) {
	t.Run("euclidean", func(t *testing.T) {
		l := NewLayout(2, distance.MetricEuclidean)
		n := l.At(make([]byte, l.Stride), 0)
		n.SetVector([]float32{1, 0})
		n.SetOffset(-5)
		assert.Equal(t, float32(-5), l.Margin(n, []float32{0, 3}))
		assert.Equal(t, 0, l.Side(n, []float32{0, 3}))
		assert.Equal(t, 1, l.Side(n, []float32{5, 0}))
	})

	t.Run("angular", func(t *testing.T) {
		l := NewLayout(2, distance.MetricAngular)
		n := l.At(make([]byte, l.Stride), 0)
		n.SetVector([]float32{0, 1})
		assert.Equal(t, float32(2), l.Margin(n, []float32{4, 2}))
		assert.Equal(t, 0, l.Side(n, []float32{4, -2}))
	})

	t.Run("manhattan", func(t *testing.T) {
		l := NewLayout(3, distance.MetricManhattan)
		n := l.At(make([]byte, l.Stride), 0)
		n.SetSplitDim(2)
		n.SetThreshold(1)
		assert.Equal(t, float32(2), l.Margin(n, []float32{0, 0, 3}))

		n.SetSplitDim(NoSplitDim)
		require.Equal(t, int32(NoSplitDim), n.SplitDim())
		assert.Zero(t, l.Margin(n, []float32{0, 0, 3}))
	})
}

func TestAligned(t *testing.T) {
	buf := make([]byte, 16)
	assert.True(t, Aligned(buf))
	assert.False(t, Aligned(buf[1:]))
	assert.True(t, Aligned(nil))
}
