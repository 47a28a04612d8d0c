// Package distance provides vector distance calculations for the forest index.
//
// # Supported Metrics
//
//   - MetricEuclidean: L2 norm of the difference (default)
//   - MetricAngular: sqrt(2-2cos), derived from the normalized dot product
//   - MetricManhattan: L1 norm of the difference
//
// # Usage
//
//	m, ok := distance.ParseMetric("Angular")
//	d := distance.Distance(m, a, b)
//
// Raw returns the cheaper pre-normalization value (for example squared L2),
// which orders candidates identically and is what the query engine ranks on.
package distance
