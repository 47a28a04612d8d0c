// Package mmap maps index files read-only for zero-copy queries.
//
// A Mapping owns the mapped bytes; every view handed out by Bytes becomes
// invalid once Close returns. Unix platforms use mmap(2) with madvise(2)
// hints, Windows uses MapViewOfFile and treats hints as no-ops.
//
//	m, err := mmap.Open("forest.ann")
//	if err != nil { ... }
//	defer m.Close()
//
//	_ = m.Advise(mmap.AdviceRandom)
//	data := m.Bytes()
//
// Writable arenas for on-disk builds are handled by the storage package.
package mmap
