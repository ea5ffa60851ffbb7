// Package view composes read-only genotype views over a matrix.Source without
// copying genotype data.
//
// A Filter re-indexes taxa and sites of one base. Taxa map through a redirect
// table in which -1 stands for a taxon absent from the base; its calls read as
// unknown. Sites map through a sorted index list, an inclusive range, or the
// identity. Filtering a Filter collapses into a single redirection against the
// innermost base.
//
// A Combined view concatenates the site axes of sources that share the same
// taxa in the same order. Join first aligns the taxa of its inputs (union or
// intersection) with taxon filters, then combines them.
//
// A Projection imputes low-density taxa from donor pairs in a high-density
// base: each taxon owns ascending breakpoints, and the call at a site is the
// homozygous-only merge of the two donors' calls.
//
// Views are immutable and safe for concurrent use.
package view
