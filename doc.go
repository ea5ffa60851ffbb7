// Package gtstore stores and queries diploid genotype matrices: one call per
// (taxon, site) cell, with two 4-bit allele codes packed into a byte.
//
// Three backings share the matrix.Source contract:
//
//   - BitMatrix, an immutable bit-presence index built from a RawMatrix, kept
//     site-major, taxon-major or both;
//   - views (filters, combinations, joins and projections) that translate
//     indices onto other sources without copying genotypes;
//   - MutableStore, an out-of-core container of per-taxon blocks with a block
//     cache, look-ahead prefetch and an explicit dirty/clean lifecycle.
//
// # Quick Start
//
// In memory:
//
//	m, _ := gtstore.BuildFromRawMatrix(ctx, raw, gtstore.WithLayout(gtstore.Both))
//	freq, _ := matrix.AllelesSortedByFrequency(m, 42)
//
// Or with the fluent builder:
//
//	m, err := gtstore.Matrix(raw).MaxNumAlleles(4).RetainRare().Build(ctx)
//
// On disk:
//
//	st, _ := gtstore.CreateMutableStore(ctx, gtstore.Local("./container"), sites)
//	st.AddTaxon(ctx, "B73", calls, nil)
//	st.Rebuild(ctx)
//	site, _ := st.SiteOfPosition(1042, "chr1", "")
//
// Cloud:
//
//	blobs := s3.NewStore(client, "my-bucket", "maize/")
//	st, _ := gtstore.OpenMutableStore(ctx, gtstore.Remote(blobs), gtstore.WithCacheDir("/fast/nvme", 8<<30))
//
// # Dirty and clean
//
// A mutable store is dirty after any taxon add, rename or removal. Position
// lookups and frequency queries then fail with ErrNotReady until Rebuild
// recomputes the per-site annotations. Raw cell reads stay valid throughout.
package gtstore
