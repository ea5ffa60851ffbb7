package genotype

import (
	"errors"
	"fmt"
	"strings"
)

// Nucleotide allele codes.
const (
	A         AlleleCode = 0
	C         AlleleCode = 1
	G         AlleleCode = 2
	T         AlleleCode = 3
	Insertion AlleleCode = 4
	Gap       AlleleCode = 5
)

// ErrUnknownAllele is returned when a string cannot be mapped to an allele code.
var ErrUnknownAllele = errors.New("genotype: unknown allele")

// AlleleCodec renders and parses allele codes and diploid values.
type AlleleCodec interface {
	// Name identifies the codec in persisted metadata.
	Name() string
	// AlleleString renders a single allele code.
	AlleleString(code AlleleCode) string
	// ParseAllele maps an allele string back to its code.
	ParseAllele(s string) (AlleleCode, error)
	// String renders a diploid value.
	String(g byte) string
	// Parse maps a diploid string back to its value.
	Parse(s string) (byte, error)
}

// CodecByName returns the codec persisted under name. Text codecs cannot be
// restored by name alone and require their allele table.
func CodecByName(name string, alleles []string) (AlleleCodec, error) {
	switch name {
	case "", nucleotideName:
		return Nucleotide, nil
	case textName:
		return NewTextCodec(alleles)
	default:
		return nil, fmt.Errorf("genotype: unknown codec %q", name)
	}
}

const (
	nucleotideName = "nucleotide"
	textName       = "text"
	rareString     = "*"
)

// Nucleotide is the codec for A, C, G, T, insertion (+) and gap (-) alleles.
var Nucleotide AlleleCodec = nucleotideCodec{}

type nucleotideCodec struct{}

var nucleotideAlleles = [16]string{"A", "C", "G", "T", "+", "-", "6", "7", "8", "9", "10", "11", "12", "13", rareString, "N"}

// iupac maps an unphased sorted pair of nucleotide codes to its ambiguity letter.
var iupac = map[byte]string{
	Pack(A, C): "M",
	Pack(A, G): "R",
	Pack(A, T): "W",
	Pack(C, G): "S",
	Pack(C, T): "Y",
	Pack(G, T): "K",
	Pack(Insertion, Gap): "0",
}

var iupacReverse = func() map[string]byte {
	m := make(map[string]byte, len(iupac))
	for g, s := range iupac {
		m[s] = g
	}
	return m
}()

func (nucleotideCodec) Name() string { return nucleotideName }

func (nucleotideCodec) AlleleString(code AlleleCode) string {
	return nucleotideAlleles[code&0x0F]
}

func (nucleotideCodec) ParseAllele(s string) (AlleleCode, error) {
	switch strings.ToUpper(s) {
	case "A":
		return A, nil
	case "C":
		return C, nil
	case "G":
		return G, nil
	case "T":
		return T, nil
	case "+":
		return Insertion, nil
	case "-":
		return Gap, nil
	case "N", "?":
		return UnknownAllele, nil
	case rareString:
		return RareAllele, nil
	}
	return UnknownAllele, fmt.Errorf("%w: %q", ErrUnknownAllele, s)
}

func (c nucleotideCodec) String(g byte) string {
	if g == Unknown {
		return "N"
	}
	a, b := Unpack(g)
	if a == b {
		return c.AlleleString(a)
	}
	if s, ok := iupac[PackUnphasedSorted(a, b)]; ok {
		return s
	}
	return c.AlleleString(a) + "/" + c.AlleleString(b)
}

func (c nucleotideCodec) Parse(s string) (byte, error) {
	if a, b, ok := splitPair(s); ok {
		ca, err := c.ParseAllele(a)
		if err != nil {
			return Unknown, err
		}
		cb, err := c.ParseAllele(b)
		if err != nil {
			return Unknown, err
		}
		return Pack(ca, cb), nil
	}
	up := strings.ToUpper(s)
	if g, ok := iupacReverse[up]; ok {
		return g, nil
	}
	code, err := c.ParseAllele(up)
	if err != nil {
		return Unknown, err
	}
	return Homozygous(code), nil
}

// TextCodec maps caller-supplied allele strings to codes in table order.
type TextCodec struct {
	alleles []string
	index   map[string]AlleleCode
}

// NewTextCodec creates a codec for up to 14 distinct allele strings.
func NewTextCodec(alleles []string) (*TextCodec, error) {
	if len(alleles) == 0 || len(alleles) > MaxRetainedAlleles {
		return nil, fmt.Errorf("genotype: text codec needs 1..%d alleles, got %d", MaxRetainedAlleles, len(alleles))
	}
	t := &TextCodec{
		alleles: append([]string(nil), alleles...),
		index:   make(map[string]AlleleCode, len(alleles)),
	}
	for i, a := range alleles {
		if a == "" || strings.ContainsAny(a, "/:") {
			return nil, fmt.Errorf("genotype: invalid text allele %q", a)
		}
		if _, dup := t.index[a]; dup {
			return nil, fmt.Errorf("genotype: duplicate text allele %q", a)
		}
		t.index[a] = AlleleCode(i)
	}
	return t, nil
}

// Alleles returns the allele table in code order.
func (t *TextCodec) Alleles() []string { return append([]string(nil), t.alleles...) }

func (t *TextCodec) Name() string { return textName }

func (t *TextCodec) AlleleString(code AlleleCode) string {
	code &= 0x0F
	switch {
	case code == UnknownAllele:
		return "?"
	case code == RareAllele:
		return rareString
	case int(code) < len(t.alleles):
		return t.alleles[code]
	default:
		return "?"
	}
}

func (t *TextCodec) ParseAllele(s string) (AlleleCode, error) {
	switch s {
	case "?", "":
		return UnknownAllele, nil
	case rareString:
		return RareAllele, nil
	}
	if c, ok := t.index[s]; ok {
		return c, nil
	}
	return UnknownAllele, fmt.Errorf("%w: %q", ErrUnknownAllele, s)
}

func (t *TextCodec) String(g byte) string {
	a, b := Unpack(g)
	return t.AlleleString(a) + "/" + t.AlleleString(b)
}

func (t *TextCodec) Parse(s string) (byte, error) {
	a, b, ok := splitPair(s)
	if !ok {
		a, b = s, s
	}
	ca, err := t.ParseAllele(a)
	if err != nil {
		return Unknown, err
	}
	cb, err := t.ParseAllele(b)
	if err != nil {
		return Unknown, err
	}
	return Pack(ca, cb), nil
}

func splitPair(s string) (string, string, bool) {
	if i := strings.IndexAny(s, "/:|"); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return "", "", false
}
