// Package distance provides the vector distance calculations used by the forest.
package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var s0, s1, s2, s3 float32
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return s0 + s1 + s2 + s3
}

// L1 calculates the Manhattan distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func L1(a, b []float32) float32 {
	var s float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		s += d
	}
	return s
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	n := Norm(v)
	if n == 0 {
		return false
	}
	inv := 1 / n
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric uint8

const (
	// MetricEuclidean is the L2 norm of the difference. It is the default.
	MetricEuclidean Metric = iota
	// MetricAngular is derived from the cosine of the angle between vectors.
	MetricAngular
	// MetricManhattan is the L1 norm of the difference.
	MetricManhattan
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "Euclidean"
	case MetricAngular:
		return "Angular"
	case MetricManhattan:
		return "Manhattan"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Valid reports whether m is one of the supported metrics.
func (m Metric) Valid() bool {
	return m <= MetricManhattan
}

// ParseMetric maps a metric name to a Metric. Matching is case-insensitive.
//
// Unknown names resolve to MetricEuclidean with ok set to false; callers
// decide whether the fallback is worth reporting.
func ParseMetric(name string) (m Metric, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "angular", "cosine":
		return MetricAngular, true
	case "euclidean", "l2":
		return MetricEuclidean, true
	case "manhattan", "l1":
		return MetricManhattan, true
	default:
		return MetricEuclidean, false
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float32) float32

// Raw returns the distance in the metric's internal (unnormalized) form:
// 2-2cos for Angular, squared L2 for Euclidean, L1 for Manhattan.
// Raw values order the same way as the final distances and are cheaper.
func Raw(m Metric, a, b []float32) float32 {
	switch m {
	case MetricAngular:
		return angularRaw(a, b)
	case MetricManhattan:
		return L1(a, b)
	default:
		return SquaredL2(a, b)
	}
}

// Normalize converts a raw distance into the reported distance.
func Normalize(m Metric, raw float32) float32 {
	switch m {
	case MetricManhattan:
		return max(raw, 0)
	default:
		return float32(math.Sqrt(float64(max(raw, 0))))
	}
}

// Distance returns the reported distance between a and b under m.
func Distance(m Metric, a, b []float32) float32 {
	return Normalize(m, Raw(m, a, b))
}

// Provider returns the raw distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricAngular:
		return angularRaw, nil
	case MetricEuclidean:
		return SquaredL2, nil
	case MetricManhattan:
		return L1, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// angularRaw is 2-2cos(a,b). Zero vectors are at the maximum distance 2.
func angularRaw(a, b []float32) float32 {
	pp := Dot(a, a)
	qq := Dot(b, b)
	pq := Dot(a, b)
	ppqq := pp * qq
	if ppqq <= 0 {
		return 2
	}
	return 2 - 2*pq/float32(math.Sqrt(float64(ppqq)))
}
