// Package format encodes the persisted index layout.
//
// A file is a 64-byte header, a root table of int32 node indexes and the node
// region. Save places the root table right after the header and aligns the
// node region to DataAlignment. On-disk builds write nodes at DataAlignment
// and append the root table after them. Readers only trust the offsets.
package format

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/annoy/distance"
	"github.com/hupe1980/annoy/internal/hash"
	"github.com/hupe1980/annoy/internal/node"
)

const (
	// HeaderSize is the encoded header size.
	HeaderSize = 64

	// Magic identifies an index file.
	Magic = "ANNF"

	// Version is the current format version.
	Version uint16 = 1

	// DataAlignment is the alignment of the node region.
	DataAlignment = 4096
)

// Header flags.
const (
	FlagChecksum uint8 = 1 << iota
	FlagOnDisk
)

var (
	// ErrBadMagic is returned when data does not start with Magic.
	ErrBadMagic = errors.New("format: not an index file")
	// ErrVersion is returned for unsupported format versions.
	ErrVersion = errors.New("format: unsupported version")
	// ErrCorrupt wraps every structural inconsistency.
	ErrCorrupt = errors.New("format: corrupt index")
	// ErrChecksum is returned when the node checksum does not match.
	ErrChecksum = errors.New("format: checksum mismatch")
)

// Header holds the persisted index metadata.
type Header struct {
	Magic       [4]byte
	Version     uint16
	Metric      uint8
	Flags       uint8
	Dim         uint32
	Stride      uint32
	Slots       uint32
	Items       uint32
	Nodes       uint32
	Roots       uint32
	RootsOffset uint64
	DataOffset  uint64
	Checksum    uint32
	Reserved    [12]byte
}

// EncodeHeader sets Magic and Version and returns the encoded header.
func EncodeHeader(h *Header) ([]byte, error) {
	if h == nil {
		return nil, errors.New("format: header is nil")
	}
	copy(h.Magic[:], Magic)
	h.Version = Version

	var w bytes.Buffer
	w.Grow(HeaderSize)
	if err := binary.Write(&w, binary.LittleEndian, h); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeHeader parses the header at the start of src.
func DecodeHeader(src []byte) (*Header, error) {
	if len(src) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(src))
	}
	var h Header
	if err := binary.Read(bytes.NewReader(src[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, err
	}
	if string(h.Magic[:]) != Magic {
		return nil, ErrBadMagic
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	return &h, nil
}

// MetricValue returns the header's metric.
func (h *Header) MetricValue() distance.Metric { return distance.Metric(h.Metric) }

// Validate checks the header against itself and a file of size bytes.
func (h *Header) Validate(size int64) error {
	m := h.MetricValue()
	if !m.Valid() {
		return fmt.Errorf("%w: unknown metric %d", ErrCorrupt, h.Metric)
	}
	if h.Dim == 0 {
		return fmt.Errorf("%w: zero dimension", ErrCorrupt)
	}
	if want := node.Stride(int(h.Dim), m); int64(h.Stride) != int64(want) {
		return fmt.Errorf("%w: stride %d, want %d", ErrCorrupt, h.Stride, want)
	}
	if h.Items > h.Slots || h.Slots > h.Nodes {
		return fmt.Errorf("%w: items=%d slots=%d nodes=%d", ErrCorrupt, h.Items, h.Slots, h.Nodes)
	}
	if h.Roots > 0 && h.Items == 0 {
		return fmt.Errorf("%w: %d roots without items", ErrCorrupt, h.Roots)
	}
	if h.DataOffset%4 != 0 {
		return fmt.Errorf("%w: misaligned node region at %d", ErrCorrupt, h.DataOffset)
	}

	nodesEnd := h.DataOffset + uint64(h.Nodes)*uint64(h.Stride)
	rootsEnd := h.RootsOffset + uint64(h.Roots)*4
	if h.DataOffset < HeaderSize || nodesEnd > uint64(size) {
		return fmt.Errorf("%w: node region [%d,%d) outside file of %d bytes", ErrCorrupt, h.DataOffset, nodesEnd, size)
	}
	if h.RootsOffset < HeaderSize || rootsEnd > uint64(size) {
		return fmt.Errorf("%w: root table [%d,%d) outside file of %d bytes", ErrCorrupt, h.RootsOffset, rootsEnd, size)
	}
	if h.RootsOffset < nodesEnd && h.DataOffset < rootsEnd {
		return fmt.Errorf("%w: root table overlaps node region", ErrCorrupt)
	}
	return nil
}

// NodeRegion returns the node bytes of a validated file.
func (h *Header) NodeRegion(data []byte) []byte {
	return data[h.DataOffset : h.DataOffset+uint64(h.Nodes)*uint64(h.Stride)]
}

// VerifyChecksum checks nodes against the stored checksum when present.
func (h *Header) VerifyChecksum(nodes []byte) error {
	if h.Flags&FlagChecksum == 0 {
		return nil
	}
	if got := hash.Records(nodes, int(h.Stride)); got != h.Checksum {
		return fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, h.Checksum)
	}
	return nil
}

// EncodeRoots encodes the root table.
func EncodeRoots(roots []int32) []byte {
	out := make([]byte, 4*len(roots))
	for i, r := range roots {
		binary.LittleEndian.PutUint32(out[4*i:], uint32(r))
	}
	return out
}

// DecodeRoots reads the root table of a validated file and checks that every
// root names an existing node.
func (h *Header) DecodeRoots(data []byte) ([]int32, error) {
	src := data[h.RootsOffset : h.RootsOffset+uint64(h.Roots)*4]
	roots := make([]int32, h.Roots)
	for i := range roots {
		r := int32(binary.LittleEndian.Uint32(src[4*i:]))
		if r < 0 || uint32(r) >= h.Nodes {
			return nil, fmt.Errorf("%w: root %d points to node %d of %d", ErrCorrupt, i, r, h.Nodes)
		}
		roots[i] = r
	}
	return roots, nil
}

// Align rounds off up to a multiple of DataAlignment.
func Align(off uint64) uint64 {
	return (off + DataAlignment - 1) &^ (DataAlignment - 1)
}

// Write writes a complete file: the header (with offsets and checksum filled
// in), the root table, padding and the node region.
func Write(w io.Writer, h *Header, roots []int32, nodes []byte) error {
	h.Roots = uint32(len(roots))
	h.RootsOffset = HeaderSize
	h.DataOffset = Align(HeaderSize + uint64(4*len(roots)))
	h.Flags |= FlagChecksum
	h.Flags &^= FlagOnDisk
	h.Checksum = hash.CRC32C(nodes)

	hdr, err := EncodeHeader(h)
	if err != nil {
		return err
	}
	rootBytes := EncodeRoots(roots)
	pad := make([]byte, h.DataOffset-HeaderSize-uint64(len(rootBytes)))

	for _, b := range [][]byte{hdr, rootBytes, pad, nodes} {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}
