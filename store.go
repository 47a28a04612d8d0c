package annoy

import (
	"bytes"
	"context"
	"time"

	"github.com/hupe1980/annoy/blobstore"
)

// SaveToStore uploads the built index to store under name.
//
// Example:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/"))
//	err := idx.SaveToStore(ctx, store, "songs.ann", annoy.WithCompression(annoy.CompressionZSTD))
func (idx *Index) SaveToStore(ctx context.Context, store blobstore.BlobStore, name string, optFns ...SaveOption) error {
	start := time.Now()
	var so saveOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&so)
		}
	}

	var buf bytes.Buffer
	idx.mu.RLock()
	_, err := idx.export(ctx, &buf, so.compression)
	idx.mu.RUnlock()

	if err == nil {
		if perr := store.Put(ctx, name, buf.Bytes()); perr != nil {
			err = ioError("put", name, perr)
		}
	}

	n := int64(buf.Len())
	idx.opts.metricsCollector.RecordSave(n, time.Since(start), err)
	idx.opts.logger.LogSave(ctx, "blob:"+name, n, err)
	return err
}

// LoadFromStore replaces the content of the index with the blob name.
//
// Blobs already held in memory or in a local mapping are used in place
// unless LoadCopy is given; everything else is downloaded first.
func (idx *Index) LoadFromStore(ctx context.Context, store blobstore.BlobStore, name string, optFns ...LoadOption) error {
	start := time.Now()
	lo := applyLoadOptions(optFns)

	src, err := fetch(ctx, store, name, lo)
	var n int64
	if src != nil {
		n = int64(len(src.data))
	}

	idx.mu.Lock()
	if err == nil {
		err = idx.checkOpen()
		if err != nil {
			src.close()
		} else {
			err = idx.load(src, lo)
		}
	}
	backing := idx.backing
	idx.mu.Unlock()

	idx.opts.metricsCollector.RecordLoad(n, time.Since(start), err)
	idx.opts.logger.LogLoad(ctx, "blob:"+name, backing, err)
	return err
}

func fetch(ctx context.Context, store blobstore.BlobStore, name string, lo loadOptions) (*source, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, ioError("open", name, err)
	}

	if m, ok := blob.(blobstore.Mappable); ok && !lo.copy {
		data, err := m.Bytes()
		if err == nil {
			return &source{data: data, closer: blob}, nil
		}
	}

	data, err := blobstore.ReadAll(ctx, blob)
	_ = blob.Close()
	if err != nil {
		return nil, ioError("read", name, err)
	}
	return &source{data: data, owned: true}, nil
}
