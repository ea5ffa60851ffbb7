package genotype

// AlleleCode is a 4-bit allele identity.
//
// Values outside [0,15] are a caller contract violation; every function in this
// package masks its inputs to the low nibble rather than failing.
type AlleleCode uint8

const (
	// MaxKnownAllele is the largest ordinary allele code.
	MaxKnownAllele AlleleCode = 13
	// RareAllele marks an allele outside the retained top-N of its site.
	RareAllele AlleleCode = 14
	// UnknownAllele marks a missing gamete.
	UnknownAllele AlleleCode = 15

	// MaxRetainedAlleles is the largest supported allele table per site.
	MaxRetainedAlleles = 14
)

// Unknown is the diploid value with both gametes missing.
const Unknown byte = 0xFF

// AlleleKind classifies an AlleleCode.
type AlleleKind uint8

const (
	Known AlleleKind = iota
	Rare
	Missing
)

func (k AlleleKind) String() string {
	switch k {
	case Known:
		return "known"
	case Rare:
		return "rare"
	case Missing:
		return "unknown"
	default:
		return "invalid"
	}
}

// Kind reports whether the code is an ordinary allele, the rare bucket or missing.
func (c AlleleCode) Kind() AlleleKind {
	switch c & 0x0F {
	case UnknownAllele:
		return Missing
	case RareAllele:
		return Rare
	default:
		return Known
	}
}

// IsKnown reports whether c is an ordinary allele (0..13).
func (c AlleleCode) IsKnown() bool { return c&0x0F <= MaxKnownAllele }

// Pack combines two alleles in phase order: (a<<4)|b.
func Pack(a, b AlleleCode) byte {
	return byte(a&0x0F)<<4 | byte(b&0x0F)
}

// PackUnphasedSorted combines two alleles with the numerically smaller code
// first. This is the canonical key of an unordered diploid call.
func PackUnphasedSorted(a, b AlleleCode) byte {
	a &= 0x0F
	b &= 0x0F
	if b < a {
		a, b = b, a
	}
	return Pack(a, b)
}

// Unpack splits a diploid value into its two allele codes.
func Unpack(g byte) (AlleleCode, AlleleCode) {
	return AlleleCode(g >> 4), AlleleCode(g & 0x0F)
}

// UnpackArray is Unpack returning a two-element array.
func UnpackArray(g byte) [2]AlleleCode {
	return [2]AlleleCode{AlleleCode(g >> 4), AlleleCode(g & 0x0F)}
}

// Homozygous returns the diploid value a/a.
func Homozygous(a AlleleCode) byte { return Pack(a, a) }

// IsHeterozygous reports whether both gametes are present and differ.
func IsHeterozygous(g byte) bool {
	a, b := Unpack(g)
	return a != b && a != UnknownAllele && b != UnknownAllele
}

// IsHomozygous reports whether both gametes are present and equal.
func IsHomozygous(g byte) bool {
	a, b := Unpack(g)
	return a == b && a != UnknownAllele
}

// IsMissing reports whether both gametes are unknown.
func IsMissing(g byte) bool { return g == Unknown }

// Canonical rewrites g into its unphased sorted form.
func Canonical(g byte) byte {
	a, b := Unpack(g)
	return PackUnphasedSorted(a, b)
}

// CombineNoHets merges two donor calls. The result is Unknown when either
// input is missing (on either gamete) or heterozygous; otherwise it is the
// unphased sorted pair of the two homozygous alleles.
func CombineNoHets(g1, g2 byte) byte {
	a1, b1 := Unpack(g1)
	a2, b2 := Unpack(g2)
	if a1 != b1 || a2 != b2 || a1 == UnknownAllele || a2 == UnknownAllele {
		return Unknown
	}
	return PackUnphasedSorted(a1, a2)
}
