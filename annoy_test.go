package annoy_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/hupe1980/annoy"
	"github.com/hupe1980/annoy/distance"
	"github.com/hupe1980/annoy/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T, dim int, metric distance.Metric, opts ...annoy.Option) *annoy.Index {
	t.Helper()
	idx, err := annoy.New(dim, metric, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func buildRandom(t *testing.T, n, dim, trees int, metric distance.Metric, opts ...annoy.Option) (*annoy.Index, [][]float32) {
	t.Helper()
	idx := newIndex(t, dim, metric, opts...)
	vectors := testutil.NewRNG(4711).UniformRangeVectors(n, dim)
	for i, v := range vectors {
		require.NoError(t, idx.AddItem(i, v))
	}
	require.NoError(t, idx.Build(trees))
	return idx, vectors
}

func TestNew(t *testing.T) {
	t.Run("InvalidDimension", func(t *testing.T) {
		for _, dim := range []int{0, -3} {
			_, err := annoy.New(dim, distance.MetricEuclidean)
			var target *annoy.ErrInvalidDimension
			require.ErrorAs(t, err, &target)
			assert.Equal(t, dim, target.Dimension)
		}
	})

	t.Run("UnknownMetricFallsBack", func(t *testing.T) {
		idx := newIndex(t, 2, distance.Metric(42))
		assert.Equal(t, distance.MetricEuclidean, idx.Metric())
	})

	t.Run("Create", func(t *testing.T) {
		idx, err := annoy.Create(4, "angular")
		require.NoError(t, err)
		defer idx.Close()
		assert.Equal(t, distance.MetricAngular, idx.Metric())
		assert.Equal(t, 4, idx.Dimension())

		idx2, err := annoy.Create(4, "hamming")
		require.NoError(t, err)
		defer idx2.Close()
		assert.Equal(t, distance.MetricEuclidean, idx2.Metric())
	})
}

func TestScenarioNearestIsSelf(t *testing.T) {
	idx := newIndex(t, 2, distance.MetricEuclidean)
	require.NoError(t, idx.AddItem(0, []float32{0, 0}))
	require.NoError(t, idx.AddItem(1, []float32{1, 0}))
	require.NoError(t, idx.AddItem(2, []float32{10, 10}))
	require.NoError(t, idx.Build(5))

	res, err := idx.GetNNsByItem(0, 2, annoy.WithDistances())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.IDs)
	assert.InDeltaSlice(t, []float32{0, 1}, res.Distances, 1e-6)
}

func TestScenarioAutoID(t *testing.T) {
	idx := newIndex(t, 2, distance.MetricEuclidean)
	require.NoError(t, idx.AddItem(5, []float32{1, 1}))

	id, err := idx.Add([]float32{2, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, id)
	assert.Equal(t, 2, idx.NItems())
	assert.Equal(t, 6, idx.Stats().Slots)

	_, err = idx.Add([]float32{3, 3})
	require.NoError(t, err)
	_, err = idx.Add([]float32{4, 4})
	require.NoError(t, err)
	_, err = idx.Add([]float32{5, 5})
	require.NoError(t, err)

	// NItems is now 5, which is taken.
	_, err = idx.Add([]float32{6, 6})
	assert.ErrorIs(t, err, annoy.ErrDuplicateItem)
}

func TestGetItem(t *testing.T) {
	idx := newIndex(t, 3, distance.MetricManhattan)
	vectors := [][]float32{{1, 2, 3}, {-4, 5.5, 0}, {0.25, 0, -1}}
	for i, v := range vectors {
		require.NoError(t, idx.AddItem(i, v))
	}

	for i, v := range vectors {
		got, err := idx.GetItem(i)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	require.NoError(t, idx.Build(3))
	for i, v := range vectors {
		got, err := idx.GetItem(i)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	t.Run("OutOfBounds", func(t *testing.T) {
		for _, id := range []int{-1, 3, 1000} {
			v, err := idx.GetItem(id)
			assert.Nil(t, v)
			assert.ErrorIs(t, err, annoy.ErrIndexOutOfBounds)

			var oob *annoy.OutOfBoundsError
			require.ErrorAs(t, err, &oob)
			assert.Equal(t, id, oob.ID)
		}
	})

	t.Run("ReturnsCopy", func(t *testing.T) {
		got, err := idx.GetItem(0)
		require.NoError(t, err)
		got[0] = 99

		again, err := idx.GetItem(0)
		require.NoError(t, err)
		assert.Equal(t, float32(1), again[0])
	})
}

func TestGetItemGap(t *testing.T) {
	idx := newIndex(t, 2, distance.MetricEuclidean)
	require.NoError(t, idx.AddItem(3, []float32{1, 1}))

	_, err := idx.GetItem(1)
	assert.ErrorIs(t, err, annoy.ErrIndexOutOfBounds)
}

func TestAddItemErrors(t *testing.T) {
	idx := newIndex(t, 3, distance.MetricEuclidean)

	err := idx.AddItem(0, []float32{1, 2})
	var mismatch *annoy.ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Actual)

	assert.ErrorIs(t, idx.AddItem(-1, []float32{1, 2, 3}), annoy.ErrIndexOutOfBounds)

	require.NoError(t, idx.AddItem(0, []float32{1, 2, 3}))
	assert.ErrorIs(t, idx.AddItem(0, []float32{1, 2, 3}), annoy.ErrDuplicateItem)
	assert.Equal(t, 1, idx.NItems())

	require.NoError(t, idx.Build(1))
	assert.ErrorIs(t, idx.AddItem(1, []float32{1, 2, 3}), annoy.ErrReadOnly)
}

func TestGetDistance(t *testing.T) {
	tests := []struct {
		metric distance.Metric
		a, b   []float32
		want   float32
	}{
		{distance.MetricEuclidean, []float32{0, 0}, []float32{3, 4}, 5},
		{distance.MetricManhattan, []float32{0, 0}, []float32{3, -4}, 7},
		{distance.MetricAngular, []float32{1, 0}, []float32{0, 1}, float32(math.Sqrt2)},
		{distance.MetricAngular, []float32{1, 0}, []float32{2, 0}, 0},
		{distance.MetricAngular, []float32{0, 0}, []float32{1, 0}, float32(math.Sqrt2)},
	}

	for _, tt := range tests {
		t.Run(tt.metric.String(), func(t *testing.T) {
			idx := newIndex(t, 2, tt.metric)
			require.NoError(t, idx.AddItem(0, tt.a))
			require.NoError(t, idx.AddItem(1, tt.b))

			ab, err := idx.GetDistance(0, 1)
			require.NoError(t, err)
			ba, err := idx.GetDistance(1, 0)
			require.NoError(t, err)

			assert.InDelta(t, tt.want, ab, 1e-5)
			assert.Equal(t, ab, ba)
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("InvalidTreeCount", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, idx.AddItem(0, []float32{1, 1}))
		assert.ErrorIs(t, idx.Build(0), annoy.ErrInvalidTreeCount)
		assert.ErrorIs(t, idx.Build(-5), annoy.ErrInvalidTreeCount)
		assert.Equal(t, 0, idx.NTrees())
	})

	t.Run("Empty", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, idx.Build(10))
		assert.Equal(t, 0, idx.NTrees())

		res, err := idx.GetNNsByVector([]float32{1, 1}, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Len())
	})

	t.Run("AutoTrees", func(t *testing.T) {
		idx, _ := buildRandom(t, 200, 8, annoy.AutoTrees, distance.MetricEuclidean)
		st := idx.Stats()
		assert.Equal(t, 3, st.Trees)
		assert.GreaterOrEqual(t, st.Nodes-st.Slots, 2*st.Items)
	})

	t.Run("AutoTreesSparseIDs", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, idx.AddItem(0, []float32{0, 0}))
		require.NoError(t, idx.AddItem(1, []float32{1, 0}))
		require.NoError(t, idx.AddItem(200_000, []float32{5, 5}))

		require.NoError(t, idx.Build(annoy.AutoTrees))
		assert.Equal(t, 3, idx.NTrees())

		st := idx.Stats()
		assert.Equal(t, 200_001+3*2, st.Nodes)

		res, err := idx.GetNNsByVector([]float32{4, 4}, 3)
		require.NoError(t, err)
		assert.Equal(t, []int{200_000, 1, 0}, res.IDs)
	})

	t.Run("NotBuilt", func(t *testing.T) {
		idx := newIndex(t, 2, distance.MetricEuclidean)
		require.NoError(t, idx.AddItem(0, []float32{1, 1}))
		_, err := idx.GetNNsByItem(0, 1)
		assert.ErrorIs(t, err, annoy.ErrNotBuilt)
	})

	t.Run("Unbuild", func(t *testing.T) {
		idx, _ := buildRandom(t, 50, 4, 4, distance.MetricAngular)
		assert.Equal(t, 4, idx.NTrees())

		require.NoError(t, idx.Unbuild())
		assert.Equal(t, 0, idx.NTrees())
		assert.Equal(t, 50, idx.Stats().Nodes)

		require.NoError(t, idx.AddItem(50, []float32{1, 0, 0, 0}))
		require.NoError(t, idx.Build(2))

		res, err := idx.GetNNsByItem(50, 1, annoy.WithSearchK(100))
		require.NoError(t, err)
		assert.Equal(t, []int{50}, res.IDs)
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, _ := buildRandom(t, 300, 6, 5, distance.MetricEuclidean, annoy.WithSeed(7), annoy.WithBuildWorkers(1))
		b, _ := buildRandom(t, 300, 6, 5, distance.MetricEuclidean, annoy.WithSeed(7), annoy.WithBuildWorkers(4))

		assert.Equal(t, a.Stats().Nodes, b.Stats().Nodes)
		for id := range 20 {
			ra, err := a.GetNNsByItem(id, 10)
			require.NoError(t, err)
			rb, err := b.GetNNsByItem(id, 10)
			require.NoError(t, err)
			assert.Equal(t, ra.IDs, rb.IDs)
		}
	})
}

func TestSearch(t *testing.T) {
	for _, metric := range []distance.Metric{distance.MetricAngular, distance.MetricEuclidean, distance.MetricManhattan} {
		t.Run(metric.String(), func(t *testing.T) {
			idx, vectors := buildRandom(t, 500, 16, 10, metric)

			t.Run("ExhaustiveMatchesBruteForce", func(t *testing.T) {
				q := vectors[17]
				res, err := idx.GetNNsByVector(q, 500, annoy.WithDistances())
				require.NoError(t, err)
				require.Equal(t, 500, res.Len())

				truth := testutil.BruteForceSearch(vectors, q, 500, metric)
				assert.Equal(t, 1.0, testutil.ComputeRecall(truth[:10], res.IDs[:10]))
				for i := range truth {
					assert.InDelta(t, truth[i].Distance, res.Distances[i], 1e-4)
				}
			})

			t.Run("Ordering", func(t *testing.T) {
				res, err := idx.GetNNsByItem(3, 25, annoy.WithDistances())
				require.NoError(t, err)
				assert.Equal(t, 3, res.IDs[0])

				seen := make(map[int]bool)
				for i, id := range res.IDs {
					assert.False(t, seen[id], "duplicate id %d", id)
					seen[id] = true
					if i > 0 {
						assert.LessOrEqual(t, res.Distances[i-1], res.Distances[i])
					}
				}
			})

			t.Run("Recall", func(t *testing.T) {
				var recall float64
				for q := range 20 {
					res, err := idx.GetNNsByVector(vectors[q], 10, annoy.WithSearchK(2000))
					require.NoError(t, err)
					truth := testutil.BruteForceSearch(vectors, vectors[q], 10, metric)
					recall += testutil.ComputeRecall(truth, res.IDs)
				}
				assert.Greater(t, recall/20, 0.7)
			})
		})
	}
}

func TestSearchArguments(t *testing.T) {
	idx, _ := buildRandom(t, 20, 3, 3, distance.MetricEuclidean)

	_, err := idx.GetNNsByItem(0, 0)
	assert.ErrorIs(t, err, annoy.ErrInvalidK)
	_, err = idx.GetNNsByVector([]float32{1, 2, 3}, -1)
	assert.ErrorIs(t, err, annoy.ErrInvalidK)

	_, err = idx.GetNNsByVector([]float32{1, 2}, 3)
	var mismatch *annoy.ErrDimensionMismatch
	assert.ErrorAs(t, err, &mismatch)

	_, err = idx.GetNNsByItem(20, 3)
	assert.ErrorIs(t, err, annoy.ErrIndexOutOfBounds)

	res, err := idx.GetNNsByItem(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Len())
	assert.Nil(t, res.Distances)
}

func TestSearchFilter(t *testing.T) {
	idx, _ := buildRandom(t, 100, 4, 5, distance.MetricEuclidean)

	t.Run("Exclude", func(t *testing.T) {
		f := annoy.NewFilter(annoy.FilterExclude, 0, 1, 2)
		res, err := idx.GetNNsByItem(0, 100, annoy.WithFilter(f))
		require.NoError(t, err)
		assert.Equal(t, 97, res.Len())
		assert.NotContains(t, res.IDs, 0)
		assert.NotContains(t, res.IDs, 1)
		assert.NotContains(t, res.IDs, 2)
	})

	t.Run("Include", func(t *testing.T) {
		f := annoy.NewFilter(annoy.FilterInclude, 10, 20, 30, -4)
		res, err := idx.GetNNsByItem(10, 100, annoy.WithFilter(f))
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{10, 20, 30}, res.IDs)
		assert.Equal(t, 10, res.IDs[0])
	})

	t.Run("InvalidMode", func(t *testing.T) {
		_, err := idx.GetNNsByItem(0, 5, annoy.WithFilter(annoy.NewFilter(0, 1)))
		assert.ErrorIs(t, err, annoy.ErrInvalidFilterMode)
	})
}

func TestParseFilterMode(t *testing.T) {
	m, err := annoy.ParseFilterMode("Include")
	require.NoError(t, err)
	assert.Equal(t, annoy.FilterInclude, m)

	m, err = annoy.ParseFilterMode(" exclude ")
	require.NoError(t, err)
	assert.Equal(t, annoy.FilterExclude, m)
	assert.Equal(t, "exclude", m.String())

	_, err = annoy.ParseFilterMode("maybe")
	assert.ErrorIs(t, err, annoy.ErrInvalidFilterMode)
}

func TestFilter(t *testing.T) {
	f := annoy.NewFilter(annoy.FilterExclude, 1, 2, 2, -1)
	assert.Equal(t, 2, f.Len())
	assert.True(t, f.Contains(1))
	assert.False(t, f.Contains(-1))
	assert.False(t, f.Allows(1))
	assert.True(t, f.Allows(3))

	f.Add(3)
	assert.False(t, f.Allows(3))
}

func TestConcurrentQueries(t *testing.T) {
	idx, _ := buildRandom(t, 300, 8, 8, distance.MetricAngular)

	want, err := idx.GetNNsByItem(7, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				res, err := idx.GetNNsByItem(7, 10)
				if err != nil {
					errs <- err
					return
				}
				if len(res.IDs) != len(want.IDs) || res.IDs[0] != want.IDs[0] {
					errs <- errors.New("result changed between queries")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestMemoryLimit(t *testing.T) {
	idx := newIndex(t, 64, distance.MetricEuclidean, annoy.WithMemoryLimit(4096))

	var err error
	for i := range 100 {
		if err = idx.AddItem(i, make([]float32, 64)); err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, annoy.ErrMemoryLimitExceeded)
}

func TestMetrics(t *testing.T) {
	mc := &annoy.BasicMetricsCollector{}
	idx := newIndex(t, 2, distance.MetricEuclidean, annoy.WithMetricsCollector(mc))

	require.NoError(t, idx.AddItem(0, []float32{0, 0}))
	require.NoError(t, idx.AddItem(1, []float32{1, 1}))
	require.NoError(t, idx.AddItem(2, []float32{2, 2}))
	require.NoError(t, idx.Build(2))
	_, err := idx.GetNNsByItem(0, 2)
	require.NoError(t, err)
	_, err = idx.GetNNsByItem(0, 0)
	require.Error(t, err)

	st := mc.GetStats()
	assert.Equal(t, int64(3), st.AddCount)
	assert.Equal(t, int64(1), st.BuildCount)
	assert.Equal(t, int64(2), st.TreesBuilt)
	assert.Equal(t, int64(2), st.SearchCount)
	assert.Equal(t, int64(1), st.SearchErrors)
}

func TestClose(t *testing.T) {
	idx, _ := buildRandom(t, 10, 2, 2, distance.MetricEuclidean)

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())

	_, err := idx.GetNNsByItem(0, 1)
	assert.ErrorIs(t, err, annoy.ErrClosed)
	assert.ErrorIs(t, idx.AddItem(11, []float32{1, 1}), annoy.ErrClosed)
	_, err = idx.GetItem(0)
	assert.ErrorIs(t, err, annoy.ErrClosed)
	assert.ErrorIs(t, idx.Save(t.TempDir()+"/x.ann"), annoy.ErrClosed)
}
