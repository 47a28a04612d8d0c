// Package blobstore abstracts where persisted indexes live.
//
// An index is one immutable blob: SaveToStore writes it with Put and
// LoadFromStore reads it back through Open. Blobs that implement [Mappable]
// are served zero-copy.
//
// # Built-in Implementations
//
//   - [LocalStore]: a directory on the local file system, read through mmap
//   - [MemoryStore]: an in-process map, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Implementations must be safe for concurrent use.
package blobstore
