// Package storage provides the node arenas an index reads and writes.
//
// Every arena is a contiguous run of fixed-stride records. [Store] is the
// read side shared by all arenas; [Mutable] adds resizing for arenas that
// can grow while items are added and trees are built.
//
//   - [Heap]: growable in-memory arena, accounted against a resource controller.
//   - [Mapped]: read-only view over a mapped file or a caller-owned buffer.
//   - [File]: writable file-backed arena used by on-disk builds.
//
// Resizing may move the arena; byte slices and node views taken before
// a Resize must not be used after it.
package storage
