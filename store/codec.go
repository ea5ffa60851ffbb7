package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/gtstore/allele"
	"github.com/hupe1980/gtstore/genotype"
	"github.com/hupe1980/gtstore/matrix"
)

var errShortBuffer = errors.New("short buffer")

// SiteAnnotation holds the derived descriptor of one site.
type SiteAnnotation struct {
	// Alleles is the full frequency-sorted allele list.
	Alleles allele.Frequencies
	// Heterozygous is the number of heterozygous taxa.
	Heterozygous int
	// NotMissing is the number of taxa with a call.
	NotMissing int
	// Coverage is the summed read depth over all taxa that carry depth.
	Coverage int
	// MinorAlleleFrequency is the rank-1 count over the gamete total.
	MinorAlleleFrequency float64
}

// TaxonSummary holds the derived per-taxon counts of the last rebuild.
type TaxonSummary struct {
	Heterozygous int
	NotMissing   int
	Depth        int64
}

type encoder struct{ buf []byte }

func (e *encoder) uvarint(v uint64) { e.buf = binary.AppendUvarint(e.buf, v) }
func (e *encoder) varint(v int64)   { e.buf = binary.AppendVarint(e.buf, v) }
func (e *encoder) byte(v uint8)     { e.buf = append(e.buf, v) }

func (e *encoder) string(s string) {
	e.uvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.err = errShortBuffer
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf)
	if n <= 0 {
		d.err = errShortBuffer
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) byte() uint8 {
	if d.err != nil {
		return 0
	}
	if len(d.buf) == 0 {
		d.err = errShortBuffer
		return 0
	}
	v := d.buf[0]
	d.buf = d.buf[1:]
	return v
}

func (d *decoder) string() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if uint64(len(d.buf)) < n {
		d.err = errShortBuffer
		return ""
	}
	s := string(d.buf[:n])
	d.buf = d.buf[n:]
	return s
}

// count reads a length prefix that must not exceed the remaining bytes.
func (d *decoder) count() int {
	n := d.uvarint()
	if d.err == nil && n > uint64(len(d.buf)) {
		d.err = errShortBuffer
		return 0
	}
	return int(n)
}

// encodeSites serializes a site table. Positions are delta coded per locus.
func encodeSites(spec matrix.SiteSpec) []byte {
	e := &encoder{buf: make([]byte, 0, 16+len(spec.Positions)*2)}
	e.uvarint(uint64(len(spec.Loci)))
	for i, name := range spec.Loci {
		e.string(name)
		e.uvarint(uint64(spec.LociOffsets[i]))
	}
	e.uvarint(uint64(len(spec.Positions)))
	var prev int32
	for _, p := range spec.Positions {
		e.varint(int64(p) - int64(prev))
		prev = p
	}
	if len(spec.SiteNames) > 0 {
		e.byte(1)
		for _, n := range spec.SiteNames {
			e.string(n)
		}
	} else {
		e.byte(0)
	}
	if len(spec.Reference) > 0 {
		e.byte(1)
		for _, r := range spec.Reference {
			e.byte(uint8(r))
		}
	} else {
		e.byte(0)
	}
	return e.buf
}

func decodeSites(data []byte) (matrix.SiteSpec, error) {
	d := &decoder{buf: data}
	var spec matrix.SiteSpec

	nLoci := d.count()
	spec.Loci = make([]string, nLoci)
	spec.LociOffsets = make([]int, nLoci)
	for i := range nLoci {
		spec.Loci[i] = d.string()
		spec.LociOffsets[i] = int(d.uvarint())
	}
	n := d.count()
	spec.Positions = make([]int32, n)
	var prev int64
	for i := range spec.Positions {
		prev += d.varint()
		spec.Positions[i] = int32(prev)
	}
	if d.byte() == 1 {
		spec.SiteNames = make([]string, n)
		for i := range spec.SiteNames {
			spec.SiteNames[i] = d.string()
		}
	}
	if d.byte() == 1 {
		spec.Reference = make([]genotype.AlleleCode, n)
		for i := range spec.Reference {
			spec.Reference[i] = genotype.AlleleCode(d.byte())
		}
	}
	if d.err != nil {
		return matrix.SiteSpec{}, fmt.Errorf("decode site table: %w", d.err)
	}
	return spec, nil
}

// encodeDescriptors serializes the annotations of one site block.
func encodeDescriptors(annotations []SiteAnnotation) []byte {
	e := &encoder{buf: make([]byte, 0, len(annotations)*16)}
	e.uvarint(uint64(len(annotations)))
	for _, a := range annotations {
		e.byte(uint8(len(a.Alleles)))
		for _, c := range a.Alleles {
			e.byte(uint8(c.Allele))
			e.uvarint(uint64(c.Count))
		}
		e.uvarint(uint64(a.Heterozygous))
		e.uvarint(uint64(a.NotMissing))
		e.uvarint(uint64(a.Coverage))
	}
	return e.buf
}

func decodeDescriptors(data []byte) ([]SiteAnnotation, error) {
	d := &decoder{buf: data}
	out := make([]SiteAnnotation, d.count())
	for i := range out {
		n := int(d.byte())
		out[i].Alleles = make(allele.Frequencies, n)
		for j := range n {
			out[i].Alleles[j] = allele.Count{Allele: genotype.AlleleCode(d.byte()), Count: int(d.uvarint())}
		}
		out[i].Heterozygous = int(d.uvarint())
		out[i].NotMissing = int(d.uvarint())
		out[i].Coverage = int(d.uvarint())
		if d.err != nil {
			break
		}
		out[i].MinorAlleleFrequency = out[i].Alleles.MinorFrequency()
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode descriptors: %w", d.err)
	}
	return out, nil
}

func encodeSummaries(ids []uint64, sums []TaxonSummary) []byte {
	e := &encoder{}
	e.uvarint(uint64(len(ids)))
	for i, id := range ids {
		e.uvarint(id)
		e.uvarint(uint64(sums[i].Heterozygous))
		e.uvarint(uint64(sums[i].NotMissing))
		e.uvarint(uint64(sums[i].Depth))
	}
	return e.buf
}

func decodeSummaries(data []byte) (map[uint64]TaxonSummary, error) {
	d := &decoder{buf: data}
	n := d.count()
	out := make(map[uint64]TaxonSummary, n)
	for range n {
		id := d.uvarint()
		out[id] = TaxonSummary{
			Heterozygous: int(d.uvarint()),
			NotMissing:   int(d.uvarint()),
			Depth:        int64(d.uvarint()),
		}
	}
	if d.err != nil {
		return nil, fmt.Errorf("decode summaries: %w", d.err)
	}
	return out, nil
}

func encodeDepth(rows [][]uint16, start, end int) []byte {
	out := make([]byte, 0, len(rows)*(end-start)*2)
	for _, row := range rows {
		for _, v := range row[start:end] {
			out = binary.LittleEndian.AppendUint16(out, v)
		}
	}
	return out
}

func encodeAnnotated(bm *roaring.Bitmap) ([]byte, error) {
	bm.RunOptimize()
	return bm.ToBytes()
}

func decodeAnnotated(data []byte) (*roaring.Bitmap, error) {
	bm := roaring.New()
	if err := bm.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode annotated sites: %w", err)
	}
	return bm, nil
}
