// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("indexes/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = idx.SaveToStore(ctx, store, "songs.ann", annoy.WithCompression(annoy.CompressionZSTD))
//
// # Features
//
//   - Range reads for blobs loaded without a local copy
//   - Multipart uploads with CRC32C checksums for large images
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
