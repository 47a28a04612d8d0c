package annoy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/annoy/internal/format"
	"github.com/hupe1980/annoy/internal/hash"
	"github.com/hupe1980/annoy/internal/storage"
	"github.com/hupe1980/annoy/internal/tree"
)

// AutoTrees asks Build for as many trees as it takes for the split nodes to
// number at least twice the stored items. Only populated ids count, so
// sparse ids do not inflate the forest.
const AutoTrees = tree.AutoTrees

// Build grows a forest of numTrees trees (or AutoTrees) over the stored
// items. After Build the index is read-only until Unbuild.
func (idx *Index) Build(numTrees int) error {
	return idx.BuildContext(context.Background(), numTrees)
}

// BuildContext is Build with cancellation. Trees completed before a failure
// or cancellation are kept: the index is built with those trees and the
// error is returned.
func (idx *Index) BuildContext(ctx context.Context, numTrees int) error {
	start := time.Now()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	err := idx.build(ctx, numTrees)
	duration := time.Since(start)

	idx.opts.metricsCollector.RecordBuild(len(idx.roots), duration, err)
	idx.opts.logger.LogBuild(ctx, len(idx.roots), idx.nodes(), duration, err)
	return err
}

func (idx *Index) build(ctx context.Context, numTrees int) error {
	if err := idx.checkMutable(); err != nil {
		return err
	}
	if numTrees != AutoTrees && numTrees <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTreeCount, numTrees)
	}

	if idx.items == 0 {
		idx.opts.logger.WarnContext(ctx, "building an index without items")
		idx.roots = nil
		return idx.finish()
	}

	b := tree.NewBuilder(&idx.layout, idx.mutable, idx.slots, tree.BuildOptions{
		Seed:      idx.opts.seed,
		Workers:   idx.opts.buildWorkers,
		Resources: idx.opts.resources,
	})
	roots, err := b.Build(ctx, numTrees)

	if len(roots) == 0 {
		if rerr := idx.mutable.Resize(idx.slots); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return translateError(err)
	}

	idx.roots = roots
	if ferr := idx.finish(); ferr != nil {
		err = errors.Join(err, ferr)
	}
	if err != nil {
		return fmt.Errorf("build kept %d trees: %w", len(roots), translateError(err))
	}
	return nil
}

// finish marks the forest built. On-disk arenas get their header and root
// table written, which makes the file a complete index.
func (idx *Index) finish() error {
	idx.built = true

	file, ok := idx.mutable.(*storage.File)
	if !ok {
		return nil
	}

	nodes := file.Bytes()
	h, err := idx.header()
	if err != nil {
		idx.built = false
		return err
	}
	h.Flags = format.FlagChecksum | format.FlagOnDisk
	h.DataOffset = uint64(file.DataOffset())
	h.RootsOffset = h.DataOffset + uint64(len(nodes))
	h.Checksum = hash.CRC32C(nodes)

	hdr, err := format.EncodeHeader(h)
	if err != nil {
		idx.built = false
		return err
	}
	if err := file.Finalize(hdr, format.EncodeRoots(idx.roots)); err != nil {
		idx.built = false
		return ioError("finalize", file.Path(), err)
	}
	return nil
}

// Unbuild drops the forest so that more items can be added. Loaded and
// on-disk indexes cannot be unbuilt.
func (idx *Index) Unbuild() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkOpen(); err != nil {
		return err
	}
	if idx.mutable == nil || idx.backing == BackingFile {
		return fmt.Errorf("%w: only heap indexes can be unbuilt", ErrReadOnly)
	}
	if err := idx.mutable.Resize(idx.slots); err != nil {
		return translateError(err)
	}
	idx.roots = nil
	idx.built = false
	idx.unusable.Store(nil)
	return nil
}

// OnDiskBuild makes the index build straight into the file at path instead
// of heap memory. It must be called before any item is added. Once built,
// the file is a complete index that Load and Open accept.
func (idx *Index) OnDiskBuild(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.checkMutable(); err != nil {
		return err
	}
	if idx.slots > 0 {
		return fmt.Errorf("%w: enable on-disk build before adding items", ErrNotEmpty)
	}

	file, err := storage.CreateFile(path, format.DataAlignment, idx.layout.Stride)
	if err != nil {
		return ioError("create", path, err)
	}
	if err := idx.arena.Close(); err != nil {
		_ = file.Close()
		return err
	}
	idx.arena = file
	idx.mutable = file
	idx.backing = BackingFile
	return nil
}
