// Package annoy provides approximate nearest neighbor search over a forest
// of random projection trees.
//
// Items are dense float32 vectors addressed by non-negative integer ids.
// Each tree recursively splits the items by a hyperplane picked from two
// sampled items; a query walks all trees at once through a shared priority
// queue and ranks the gathered candidates by exact distance.
//
// # Quick Start
//
//	idx, _ := annoy.New(3, distance.MetricAngular)
//	_ = idx.AddItem(0, []float32{1, 0, 0})
//	_ = idx.AddItem(1, []float32{0, 1, 0})
//	_ = idx.Build(10)
//	res, _ := idx.GetNNsByVector([]float32{0.9, 0.1, 0}, 1, annoy.WithDistances())
//
// # Lifecycle
//
// An index is mutable until Build. Afterwards it only answers queries until
// Unbuild (heap indexes) or Unload (loaded indexes):
//
//	idx.AddItem / Add   // mutable
//	idx.Build(n)        // read-only forest
//	idx.Save(path)      // atomic write
//	idx.Load(path)      // memory mapped, read-only
//	idx.Unload()        // empty and mutable again
//
// # Persistence
//
// Save writes the file format; Load maps it without copying. Export and
// LoadBytes move snapshots through memory, optionally LZ4 or ZSTD
// compressed. SaveToStore and LoadFromStore go through a blobstore.BlobStore:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/"))
//	_ = idx.SaveToStore(ctx, store, "songs.ann", annoy.WithCompression(annoy.CompressionZSTD))
//
// OnDiskBuild builds straight into a mapped file for forests larger than
// memory.
//
// # Queries
//
//	res, _ := idx.GetNNsByItem(42, 10,
//	    annoy.WithSearchK(1000),
//	    annoy.WithFilter(annoy.NewFilter(annoy.FilterExclude, 42)),
//	)
//
// Queries run concurrently with each other. A query that runs into a
// structurally corrupt forest marks the index unusable.
package annoy
