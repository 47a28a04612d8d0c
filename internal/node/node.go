// Package node defines the fixed-stride record shared by leaf and split nodes.
//
// Every record starts with a descendant count and two child slots, followed by
// a metric-specific split descriptor, followed by D float32 values:
//
//	Angular:   n_desc | c0 | c1 |                   v[D]   (12 + 4D bytes)
//	Euclidean: n_desc | c0 | c1 | offset |          v[D]   (16 + 4D bytes)
//	Manhattan: n_desc | c0 | c1 | dim    | thresh | v[D]   (20 + 4D bytes)
//
// A leaf has n_desc == 1, c0 == item id and v == the item vector.
// A split node has n_desc > 1 and v == the hyperplane normal (unused for Manhattan).
// A record with n_desc == 0 is an unpopulated item slot.
//
// Integers are little endian. Vectors are read in place through unsafe views,
// so the package assumes a little-endian host (amd64, arm64).
package node

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/hupe1980/annoy/distance"
)

const (
	offDesc      = 0
	offChild0    = 4
	offChild1    = 8
	offDescr     = 12 // Euclidean offset (float32) or Manhattan split dimension (int32)
	offThreshold = 16 // Manhattan split threshold (float32)
)

// NoSplitDim marks a Manhattan split node produced by the balanced fallback.
const NoSplitDim = -1

// Layout describes the record shape for one (dimension, metric) pair.
type Layout struct {
	Dim    int
	Metric distance.Metric
	Stride int
	vecOff int
}

// NewLayout returns the layout for dim and m.
func NewLayout(dim int, m distance.Metric) Layout {
	off := headerSize(m)
	return Layout{
		Dim:    dim,
		Metric: m,
		Stride: off + 4*dim,
		vecOff: off,
	}
}

// Stride returns the record size in bytes for dim and m.
func Stride(dim int, m distance.Metric) int {
	return headerSize(m) + 4*dim
}

func headerSize(m distance.Metric) int {
	switch m {
	case distance.MetricAngular:
		return 12
	case distance.MetricManhattan:
		return 20
	default:
		return 16
	}
}

// At returns the record at index i of buf. buf must hold at least i+1 records.
func (l *Layout) At(buf []byte, i int32) Node {
	off := int(i) * l.Stride
	return Node{rec: buf[off : off+l.Stride : off+l.Stride], vecOff: l.vecOff, dim: l.Dim}
}

// Count returns the number of whole records in buf.
func (l *Layout) Count(buf []byte) int {
	return len(buf) / l.Stride
}

// Margin returns the signed distance of v from the split node's hyperplane.
// Values >= 0 route to child 1.
func (l *Layout) Margin(n Node, v []float32) float32 {
	switch l.Metric {
	case distance.MetricAngular:
		return distance.Dot(n.Vector(), v)
	case distance.MetricManhattan:
		d := n.SplitDim()
		if d < 0 || int(d) >= len(v) {
			return 0
		}
		return v[d] - n.Threshold()
	default:
		return n.Offset() + distance.Dot(n.Vector(), v)
	}
}

// Side reports which child v belongs to: 1 when the margin is >= 0.
func (l *Layout) Side(n Node, v []float32) int {
	if l.Margin(n, v) >= 0 {
		return 1
	}
	return 0
}

// Aligned reports whether float32 views taken from buf are correctly aligned.
func Aligned(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%4 == 0
}

// Node is a view over one record. It aliases the underlying arena.
type Node struct {
	rec    []byte
	vecOff int
	dim    int
}

// Bytes returns the raw record.
func (n Node) Bytes() []byte { return n.rec }

// Descendants returns the number of items reachable below the node.
func (n Node) Descendants() int32 {
	return int32(binary.LittleEndian.Uint32(n.rec[offDesc:]))
}

// SetDescendants sets the descendant count.
func (n Node) SetDescendants(c int32) {
	binary.LittleEndian.PutUint32(n.rec[offDesc:], uint32(c))
}

// IsLeaf reports whether the node holds an item.
func (n Node) IsLeaf() bool { return n.Descendants() == 1 }

// Empty reports whether the record is an unpopulated item slot.
func (n Node) Empty() bool { return n.Descendants() == 0 }

// Child returns child i (0 or 1). For leaves child 0 is the item id.
func (n Node) Child(i int) int32 {
	return int32(binary.LittleEndian.Uint32(n.rec[offChild0+4*i:]))
}

// SetChild sets child i.
func (n Node) SetChild(i int, idx int32) {
	binary.LittleEndian.PutUint32(n.rec[offChild0+4*i:], uint32(idx))
}

// ItemID returns the identifier stored in a leaf.
func (n Node) ItemID() int32 { return n.Child(0) }

// Offset returns the Euclidean hyperplane offset.
func (n Node) Offset() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(n.rec[offDescr:]))
}

// SetOffset sets the Euclidean hyperplane offset.
func (n Node) SetOffset(a float32) {
	binary.LittleEndian.PutUint32(n.rec[offDescr:], math.Float32bits(a))
}

// SplitDim returns the Manhattan split dimension.
func (n Node) SplitDim() int32 {
	return int32(binary.LittleEndian.Uint32(n.rec[offDescr:]))
}

// SetSplitDim sets the Manhattan split dimension.
func (n Node) SetSplitDim(d int32) {
	binary.LittleEndian.PutUint32(n.rec[offDescr:], uint32(d))
}

// Threshold returns the Manhattan split value.
func (n Node) Threshold() float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(n.rec[offThreshold:]))
}

// SetThreshold sets the Manhattan split value.
func (n Node) SetThreshold(t float32) {
	binary.LittleEndian.PutUint32(n.rec[offThreshold:], math.Float32bits(t))
}

// Vector returns a zero-copy view of the record's vector.
// The view is valid as long as the backing arena is.
func (n Node) Vector() []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&n.rec[n.vecOff])), n.dim)
}

// SetVector copies v into the record.
func (n Node) SetVector(v []float32) {
	copy(n.Vector(), v)
}

// Reset zeroes the record.
func (n Node) Reset() {
	clear(n.rec)
}
