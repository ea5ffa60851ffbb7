// Package store implements the mutable, disk-resident genotype matrix.
//
// A Store keeps one column of diploid calls per taxon in a container on a
// blobstore.BlobStore. Each column is cut into fixed-size blocks of sites
// (DefaultBlockSize) that are compressed independently. Reads go through a
// strict LRU block cache; a miss on block k schedules look-ahead prefetches of
// blocks k+1..k+N on a bounded executor, so sequential scans rarely wait on
// I/O.
//
// # Lifecycle
//
// A store is dirty when its taxon list changed since the last Rebuild. While
// dirty, raw cell reads work but position lookups and frequency queries fail
// with matrix.ErrNotReady. Rebuild recomputes the per-site descriptors (allele
// ranks and counts, heterozygous and non-missing counts, coverage) and the
// per-taxon summaries, persists them under a new generation and marks the
// store clean.
//
//	st, err := store.Create(ctx, blobs, sites)
//	_, err = st.AddTaxon(ctx, "B73", calls, nil)
//	err = st.Rebuild(ctx)
//	site, err := st.SiteOfPosition(1042, "chr1", "")
//
// Every physical I/O call on the container runs under one mutex; caches and
// accessors are safe for concurrent use.
package store
