// Package blobstore is the backing storage of a genotype container.
//
// A container is a flat namespace of immutable blobs: per-taxon genotype
// blocks, site descriptor blocks, summaries and versioned manifests. The
// BlobStore interface covers exactly what the store package needs; every
// implementation must be safe for concurrent use.
//
// # Implementations
//
//   - LocalStore: files below a root directory, mmap reads, atomic writes
//   - MemoryStore: in-process maps, used by tests
//   - CachingStore: block-granular read cache in front of a remote store
//   - s3.Store, s3.DDBCommitStore: Amazon S3, optionally with DynamoDB commits
//   - minio.Store: MinIO and other S3-compatible servers
//   - gcs.Store: Google Cloud Storage
//
// Remote blobs are read with ranged requests, so a block fetch touches only
// the bytes it needs:
//
//	remote := s3.NewStore(client, "genotypes", "maize-282/")
//	blobs := blobstore.NewCachingStore(remote, cache.NewShardedBlockCache(256<<20, nil), blobstore.DefaultCacheBlockSize)
package blobstore
