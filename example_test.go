package annoy_test

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/annoy"
	"github.com/hupe1980/annoy/blobstore"
	"github.com/hupe1980/annoy/distance"
)

func Example() {
	idx, err := annoy.New(2, distance.MetricEuclidean)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	_ = idx.AddItem(0, []float32{0, 0})
	_ = idx.AddItem(1, []float32{1, 0})
	_ = idx.AddItem(2, []float32{10, 10})

	if err := idx.Build(5); err != nil {
		log.Fatal(err)
	}

	res, err := idx.GetNNsByItem(0, 3, annoy.WithDistances())
	if err != nil {
		log.Fatal(err)
	}
	for i, id := range res.IDs {
		fmt.Printf("%d %.3f\n", id, res.Distances[i])
	}
	// Output:
	// 0 0.000
	// 1 1.000
	// 2 14.142
}

func ExampleIndex_Add() {
	idx, _ := annoy.New(2, distance.MetricAngular)
	defer idx.Close()

	_ = idx.AddItem(5, []float32{1, 0})
	id, _ := idx.Add([]float32{0, 1})

	fmt.Println(id, idx.NItems())
	// Output: 1 2
}

func ExampleIndex_Save() {
	dir, err := os.MkdirTemp("", "annoy-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "points.ann")

	idx, _ := annoy.New(3, distance.MetricManhattan)
	defer idx.Close()
	_ = idx.AddItem(0, []float32{1, 1, 1})
	_ = idx.AddItem(1, []float32{2, 2, 2})
	_ = idx.AddItem(2, []float32{-3, 0, 4})
	_ = idx.Build(2)

	if err := idx.Save(path); err != nil {
		log.Fatal(err)
	}

	loaded, err := annoy.Open(path)
	if err != nil {
		log.Fatal(err)
	}
	defer loaded.Close()

	res, _ := loaded.GetNNsByVector([]float32{2, 2, 1.5}, 3)
	fmt.Println(loaded.Metric(), loaded.NItems(), res.IDs)
	// Output: Manhattan 3 [1 0 2]
}

func ExampleWithFilter() {
	idx, _ := annoy.New(1, distance.MetricEuclidean)
	defer idx.Close()
	for i := range 6 {
		_ = idx.AddItem(i, []float32{float32(i)})
	}
	_ = idx.Build(3)

	res, _ := idx.GetNNsByItem(0, 3, annoy.WithFilter(annoy.NewFilter(annoy.FilterExclude, 0, 2)))
	fmt.Println(res.IDs)
	// Output: [1 3 4]
}

func ExampleIndex_SaveToStore() {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	idx, _ := annoy.New(2, distance.MetricEuclidean)
	defer idx.Close()
	_ = idx.AddItem(0, []float32{0, 1})
	_ = idx.AddItem(1, []float32{1, 0})
	_ = idx.Build(1)

	if err := idx.SaveToStore(ctx, store, "tiny.ann", annoy.WithCompression(annoy.CompressionLZ4)); err != nil {
		log.Fatal(err)
	}

	replica, _ := annoy.New(2, distance.MetricEuclidean)
	defer replica.Close()
	if err := replica.LoadFromStore(ctx, store, "tiny.ann"); err != nil {
		log.Fatal(err)
	}
	fmt.Println(replica.NItems(), replica.Stats().Backing)
	// Output: 2 copy
}

func ExampleIndex_Export() {
	idx, _ := annoy.New(2, distance.MetricAngular)
	defer idx.Close()
	_ = idx.AddItem(0, []float32{1, 0})
	_ = idx.AddItem(1, []float32{0, 1})
	_ = idx.Build(2)

	var buf bytes.Buffer
	if err := idx.Export(&buf, annoy.CompressionZSTD); err != nil {
		log.Fatal(err)
	}

	clone, _ := annoy.New(2, distance.MetricAngular)
	defer clone.Close()
	_ = clone.LoadBytes(buf.Bytes())

	d, _ := clone.GetDistance(0, 1)
	fmt.Printf("%.4f\n", d)
	// Output: 1.4142
}
