package annoy

import (
	"context"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/hupe1980/annoy/internal/compress"
	"github.com/hupe1980/annoy/internal/conv"
	"github.com/hupe1980/annoy/internal/format"
	ifs "github.com/hupe1980/annoy/internal/fs"
	"github.com/hupe1980/annoy/internal/mmap"
	"github.com/hupe1980/annoy/internal/node"
	"github.com/hupe1980/annoy/internal/resource"
	"github.com/hupe1980/annoy/internal/storage"
)

// Save writes the built index to path. The file is replaced atomically:
// on failure the previous content of path is left untouched.
func (idx *Index) Save(path string) error {
	start := time.Now()
	ctx := context.Background()

	idx.mu.RLock()
	n, err := idx.save(ctx, path)
	idx.mu.RUnlock()

	idx.opts.metricsCollector.RecordSave(n, time.Since(start), err)
	idx.opts.logger.LogSave(ctx, path, n, err)
	return err
}

func (idx *Index) save(ctx context.Context, path string) (int64, error) {
	if err := idx.checkOpen(); err != nil {
		return 0, err
	}
	if !idx.built {
		return 0, ErrNotBuilt
	}

	var n int64
	err := ifs.WriteAtomic(idx.opts.fs, path, func(w io.Writer) error {
		cw := &countingWriter{w: idx.opts.resources.Writer(ctx, w)}
		err := idx.writeTo(cw)
		n = cw.n
		return err
	})
	if err != nil {
		return 0, ioError("save", path, err)
	}
	return n, nil
}

// Export writes the built index to w, compressed with c. The output can be
// read back with LoadBytes.
func (idx *Index) Export(w io.Writer, c Compression) error {
	start := time.Now()
	ctx := context.Background()

	idx.mu.RLock()
	n, err := idx.export(ctx, w, c)
	idx.mu.RUnlock()

	idx.opts.metricsCollector.RecordSave(n, time.Since(start), err)
	idx.opts.logger.LogSave(ctx, "export:"+c.String(), n, err)
	return err
}

func (idx *Index) export(ctx context.Context, w io.Writer, c Compression) (int64, error) {
	if err := idx.checkOpen(); err != nil {
		return 0, err
	}
	if !idx.built {
		return 0, ErrNotBuilt
	}

	cw := &countingWriter{w: idx.opts.resources.Writer(ctx, w)}
	if c == CompressionNone {
		if err := idx.writeTo(cw); err != nil {
			return 0, ioError("export", "", err)
		}
		return cw.n, nil
	}

	zw, err := compress.NewWriter(cw, c.codec(), compress.DefaultBlockSize)
	if err != nil {
		return 0, err
	}
	if err := idx.writeTo(zw); err != nil {
		return 0, ioError("export", "", err)
	}
	if err := zw.Close(); err != nil {
		return 0, ioError("export", "", err)
	}
	return cw.n, nil
}

// writeTo writes the plain file format. Callers hold a lock.
func (idx *Index) writeTo(w io.Writer) error {
	h, err := idx.header()
	if err != nil {
		return err
	}
	return format.Write(w, h, idx.roots, idx.arena.Bytes())
}

// header describes the current arena. Offsets, flags and the checksum are
// left to the writer.
func (idx *Index) header() (*format.Header, error) {
	h := &format.Header{Metric: uint8(idx.metric)}
	fields := []struct {
		dst *uint32
		v   int
	}{
		{&h.Dim, idx.dim},
		{&h.Stride, idx.layout.Stride},
		{&h.Slots, idx.slots},
		{&h.Items, idx.items},
		{&h.Nodes, idx.arena.Len()},
		{&h.Roots, len(idx.roots)},
	}
	for _, f := range fields {
		v, err := conv.IntToUint32(f.v)
		if err != nil {
			return nil, fmt.Errorf("header: %w", err)
		}
		*f.dst = v
	}
	return h, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// source is persisted index data about to be loaded.
type source struct {
	data []byte
	// closer releases data. nil when data belongs to the caller.
	closer io.Closer
	// mapping is set when data is a file mapping.
	mapping *mmap.Mapping
	// owned reports whether data is heap memory the index may keep.
	owned bool
}

func (s *source) close() {
	if s.closer != nil {
		_ = s.closer.Close()
		s.closer = nil
	}
}

// expand replaces a compressed envelope with its decoded content.
func (s *source) expand() error {
	if !compress.IsEnvelope(s.data) {
		return nil
	}
	data, err := compress.Decode(s.data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptFormat, err)
	}
	s.close()
	s.data, s.mapping, s.owned = data, nil, true
	return nil
}

func openFile(fsys ifs.FileSystem, path string, lo loadOptions) (*source, error) {
	if lo.copy {
		data, err := ifs.ReadFile(fsys, path)
		if err != nil {
			return nil, ioError("read", path, err)
		}
		return &source{data: data, owned: true}, nil
	}

	m, err := mmap.Open(path)
	if err != nil {
		return nil, ioError("map", path, err)
	}
	return &source{data: m.Bytes(), closer: m, mapping: m}, nil
}

// Open loads the index at path, which may be a plain or a compressed file.
// Dimension and metric are taken from the file. Plain files are memory
// mapped.
func Open(path string, optFns ...Option) (*Index, error) {
	start := time.Now()
	o := applyOptions(optFns)

	idx, n, err := open(o.fs, path, optFns)
	o.metricsCollector.RecordLoad(n, time.Since(start), err)
	if err != nil {
		o.logger.LogLoad(context.Background(), path, 0, err)
		return nil, err
	}
	idx.opts.logger.LogLoad(context.Background(), path, idx.backing, nil)
	return idx, nil
}

func open(fsys ifs.FileSystem, path string, optFns []Option) (*Index, int64, error) {
	src, err := openFile(fsys, path, loadOptions{})
	if err != nil {
		return nil, 0, err
	}
	if err := src.expand(); err != nil {
		src.close()
		return nil, 0, err
	}

	h, err := format.DecodeHeader(src.data)
	if err == nil {
		err = h.Validate(int64(len(src.data)))
	}
	if err != nil {
		src.close()
		return nil, 0, translateError(err)
	}

	idx, err := New(int(h.Dim), h.MetricValue(), optFns...)
	if err != nil {
		src.close()
		return nil, 0, err
	}

	idx.mu.Lock()
	err = idx.load(src, loadOptions{})
	idx.mu.Unlock()
	if err != nil {
		_ = idx.Close()
		return nil, 0, err
	}
	return idx, int64(len(src.data)), nil
}

// Load replaces the content of the index with the index stored at path.
// The file is memory mapped unless LoadCopy is given; compressed files are
// always decoded into memory. Dimension and metric must match the index.
// A loaded index is read-only until Unload.
func (idx *Index) Load(path string, optFns ...LoadOption) error {
	start := time.Now()
	lo := applyLoadOptions(optFns)

	idx.mu.Lock()
	n, err := idx.loadFile(path, lo)
	backing := idx.backing
	idx.mu.Unlock()

	idx.opts.metricsCollector.RecordLoad(n, time.Since(start), err)
	idx.opts.logger.LogLoad(context.Background(), path, backing, err)
	return err
}

func (idx *Index) loadFile(path string, lo loadOptions) (int64, error) {
	if err := idx.checkOpen(); err != nil {
		return 0, err
	}
	src, err := openFile(idx.opts.fs, path, lo)
	if err != nil {
		return 0, err
	}
	n := int64(len(src.data))
	if err := idx.load(src, lo); err != nil {
		return 0, err
	}
	return n, nil
}

// LoadBytes replaces the content of the index with the index in buf, which
// may be a plain or a compressed image.
//
// Without LoadCopy a plain buf is used in place: it must stay unmodified
// until the index is unloaded.
func (idx *Index) LoadBytes(buf []byte, optFns ...LoadOption) error {
	start := time.Now()
	lo := applyLoadOptions(optFns)

	idx.mu.Lock()
	err := idx.checkOpen()
	if err == nil {
		src := &source{data: buf}
		if lo.copy && !compress.IsEnvelope(buf) {
			src.data, src.owned = slices.Clone(buf), true
		}
		err = idx.load(src, lo)
	}
	backing := idx.backing
	idx.mu.Unlock()

	idx.opts.metricsCollector.RecordLoad(int64(len(buf)), time.Since(start), err)
	idx.opts.logger.LogLoad(context.Background(), "bytes", backing, err)
	return err
}

// load validates src and installs it as the arena. The current content is
// only dropped once src is accepted. src is released on failure.
// Callers hold the write lock.
func (idx *Index) load(src *source, lo loadOptions) (err error) {
	defer func() {
		if err != nil {
			src.close()
		}
	}()

	if err := src.expand(); err != nil {
		return err
	}

	h, err := format.DecodeHeader(src.data)
	if err != nil {
		return translateError(err)
	}
	if err := h.Validate(int64(len(src.data))); err != nil {
		return translateError(err)
	}
	if int(h.Dim) != idx.dim || h.MetricValue() != idx.metric {
		return fmt.Errorf("%w: file holds %d-dimensional %v vectors, index expects %d-dimensional %v",
			ErrCorruptFormat, h.Dim, h.MetricValue(), idx.dim, idx.metric)
	}

	nodes := h.NodeRegion(src.data)
	roots, err := h.DecodeRoots(src.data)
	if err != nil {
		return translateError(err)
	}
	if lo.verifyChecksum {
		if err := h.VerifyChecksum(nodes); err != nil {
			return translateError(err)
		}
		if err := verifyItems(&idx.layout, nodes, h); err != nil {
			return err
		}
	}

	backing := BackingMapped
	closer := src.closer
	if src.owned || !node.Aligned(nodes) {
		if !src.owned {
			nodes = slices.Clone(nodes)
			src.close()
		}
		size := int64(len(nodes))
		if err := idx.opts.resources.AcquireMemory(size); err != nil {
			return err
		}
		closer = &reservation{rc: idx.opts.resources, bytes: size}
		backing = BackingCopy
	}

	arena, err := storage.NewMapped(nodes, idx.layout.Stride, closer)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return translateError(err)
	}
	src.closer = nil

	if src.mapping != nil && backing == BackingMapped {
		if lo.prefault {
			_ = src.mapping.Prefault()
		} else {
			_ = src.mapping.Advise(mmap.AdviceRandom)
		}
	}

	if old := idx.arena; old != nil {
		if err := old.Close(); err != nil {
			idx.opts.logger.Warn("releasing previous arena failed", "error", err)
		}
	}
	idx.arena = arena
	idx.mutable = nil
	idx.backing = backing
	idx.slots = int(h.Slots)
	idx.items = int(h.Items)
	idx.roots = roots
	idx.built = true
	idx.unusable.Store(nil)
	return nil
}

// verifyItems checks that the item slots hold exactly the header's item
// count and that every leaf names itself.
func verifyItems(l *node.Layout, nodes []byte, h *format.Header) error {
	var items uint32
	for i := range int32(h.Slots) {
		n := l.At(nodes, i)
		switch {
		case n.Empty():
		case n.IsLeaf() && n.ItemID() == i:
			items++
		default:
			return fmt.Errorf("%w: item slot %d holds a non-item record", ErrCorruptFormat, i)
		}
	}
	if items != h.Items {
		return fmt.Errorf("%w: %d items stored, header says %d", ErrCorruptFormat, items, h.Items)
	}
	return nil
}

// reservation returns a memory reservation when the arena is released.
type reservation struct {
	rc    *resource.Controller
	bytes int64
}

func (r *reservation) Close() error {
	r.rc.ReleaseMemory(r.bytes)
	r.bytes = 0
	return nil
}

// Unload releases the arena, mapped or owned, and returns the index to an
// empty heap index ready for new items.
func (idx *Index) Unload() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkOpen(); err != nil {
		return err
	}
	return translateError(idx.resetHeap())
}
