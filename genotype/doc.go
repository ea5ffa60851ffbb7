// Package genotype encodes diploid genotype calls.
//
// A call is two 4-bit allele codes packed into one byte: the high nibble holds
// the first allele and the low nibble the second. Codes 0..13 identify ordinary
// alleles, RareAllele (14) marks an allele that exists but fell outside the
// retained ranks of its site, and UnknownAllele (15) marks a missing gamete.
//
//	g := genotype.Pack(genotype.A, genotype.G)            // phased A|G = 0x02
//	u := genotype.PackUnphasedSorted(genotype.G, genotype.A) // unphased A/G = 0x02
//	a, b := genotype.Unpack(g)
//
// The persisted and wire form stays numeric; AlleleCode.Kind exposes the
// Known / Rare / Unknown distinction at API boundaries.
//
// # Codecs
//
// AlleleCodec renders and parses calls. Nucleotide maps the six nucleotide
// states (A, C, G, T, insertion, gap) and prints heterozygous calls with IUPAC
// ambiguity letters. TextCodec maps up to 14 caller-supplied allele strings.
package genotype
