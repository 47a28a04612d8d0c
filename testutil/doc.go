// Package testutil provides testing utilities for annoy.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(1000, 64)
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.BruteForceSearch(vecs, query, k, distance.MetricEuclidean)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(truth, res.IDs)
package testutil
