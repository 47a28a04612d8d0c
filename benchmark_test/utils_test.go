package benchmark_test

import (
	"testing"

	"github.com/hupe1980/annoy"
	"github.com/hupe1980/annoy/distance"
	"github.com/hupe1980/annoy/testutil"
)

const (
	dimSmall  = 32
	dimMedium = 128
	dimLarge  = 512

	sizeSmall = 10_000
)

// buildIndex fills an index with n clustered vectors and builds it.
func buildIndex(b *testing.B, n, dim, trees int, metric distance.Metric) (*annoy.Index, [][]float32) {
	b.Helper()
	idx, err := annoy.New(dim, metric, annoy.WithSeed(42))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })

	data := testutil.NewRNG(42).ClusteredVectors(n, dim, 32, 0.2)
	for i, v := range data {
		if err := idx.AddItem(i, v); err != nil {
			b.Fatal(err)
		}
	}
	if err := idx.Build(trees); err != nil {
		b.Fatal(err)
	}
	return idx, data
}

func makeQueries(n, dim int) [][]float32 {
	return testutil.NewRNG(7).UniformRangeVectors(n, dim)
}
