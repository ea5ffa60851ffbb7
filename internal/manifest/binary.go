package manifest

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hupe1980/gtstore/internal/hash"
)

const (
	binaryMagic   = 0x47545354 // "GTST"
	binaryVersion = 1
	headerSize    = 16
)

// MarshalBinary encodes the manifest with its integrity header.
func (m *Manifest) MarshalBinary() ([]byte, error) {
	pb := newPayloadBuffer(make([]byte, 0, 256+len(m.Taxa)*32))

	pb.writeUint64(m.ID)
	pb.writeUint64(uint64(m.CreatedAt.UnixNano()))
	pb.writeUint32(uint32(m.MaxNumAlleles))
	pb.writeBool(m.RetainRare)
	pb.writeString(m.Codec)
	pb.writeStrings(m.CodecAlleles)
	pb.writeUint32(uint32(m.BlockSize))
	pb.writeUint8(m.Compression)
	pb.writeUint64(uint64(m.SiteCount))
	pb.writeString(m.SitesPath)

	pb.writeUint64(m.NextTaxonID)
	pb.writeUint32(uint32(len(m.Taxa)))
	for _, t := range m.Taxa {
		pb.writeUint64(t.ID)
		pb.writeString(t.Name)
		pb.writeUint8(t.DepthAlleles)
	}

	pb.writeBool(m.Clean)
	pb.writeUint64(m.AnnotationGen)
	pb.writeString(m.AnnotatedPath)
	pb.writeString(m.SummaryPath)

	if pb.err != nil {
		return nil, pb.err
	}

	out := make([]byte, headerSize, headerSize+len(pb.buf))
	binary.LittleEndian.PutUint32(out[0:4], binaryMagic)
	binary.LittleEndian.PutUint32(out[4:8], binaryVersion)
	binary.LittleEndian.PutUint32(out[8:12], hash.CRC32C(pb.buf))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(pb.buf)))
	return append(out, pb.buf...), nil
}

// Unmarshal decodes a manifest written by MarshalBinary.
func Unmarshal(data []byte) (*Manifest, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != binaryMagic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, magic)
	}
	if version := binary.LittleEndian.Uint32(data[4:8]); version != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, version)
	}
	checksum := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])
	if uint64(len(data)-headerSize) < uint64(length) {
		return nil, fmt.Errorf("%w: payload truncated", ErrCorrupt)
	}
	payload := data[headerSize : headerSize+int(length)]
	if hash.CRC32C(payload) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	pb := newPayloadBuffer(payload)
	m := &Manifest{Version: binaryVersion}

	m.ID = pb.readUint64()
	m.CreatedAt = time.Unix(0, int64(pb.readUint64()))
	m.MaxNumAlleles = int(pb.readUint32())
	m.RetainRare = pb.readBool()
	m.Codec = pb.readString()
	m.CodecAlleles = pb.readStrings()
	m.BlockSize = int(pb.readUint32())
	m.Compression = pb.readUint8()
	m.SiteCount = int(pb.readUint64())
	m.SitesPath = pb.readString()

	m.NextTaxonID = pb.readUint64()
	n := pb.readUint32()
	if pb.err == nil && uint64(n) > uint64(len(payload)) {
		return nil, fmt.Errorf("%w: %d taxa", ErrCorrupt, n)
	}
	m.Taxa = make([]TaxonInfo, n)
	for i := range m.Taxa {
		m.Taxa[i].ID = pb.readUint64()
		m.Taxa[i].Name = pb.readString()
		m.Taxa[i].DepthAlleles = pb.readUint8()
	}

	m.Clean = pb.readBool()
	m.AnnotationGen = pb.readUint64()
	m.AnnotatedPath = pb.readString()
	m.SummaryPath = pb.readString()

	if pb.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, pb.err)
	}
	return m, nil
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) writeUint8(v uint8) {
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, v)
}

func (p *payloadBuffer) writeBool(v bool) {
	if v {
		p.writeUint8(1)
	} else {
		p.writeUint8(0)
	}
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > math.MaxUint16 {
		p.err = fmt.Errorf("string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) writeStrings(ss []string) {
	p.writeUint32(uint32(len(ss)))
	for _, s := range ss {
		p.writeString(s)
	}
}

func (p *payloadBuffer) need(n int) bool {
	if p.err != nil {
		return false
	}
	if p.pos+n > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (p *payloadBuffer) readUint8() uint8 {
	if !p.need(1) {
		return 0
	}
	v := p.buf[p.pos]
	p.pos++
	return v
}

func (p *payloadBuffer) readBool() bool { return p.readUint8() != 0 }

func (p *payloadBuffer) readUint32() uint32 {
	if !p.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readUint64() uint64 {
	if !p.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readString() string {
	if !p.need(2) {
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if !p.need(l) {
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

func (p *payloadBuffer) readStrings() []string {
	n := p.readUint32()
	if n == 0 || p.err != nil || int(n) > len(p.buf)-p.pos {
		if n != 0 && p.err == nil {
			p.err = io.ErrUnexpectedEOF
		}
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = p.readString()
	}
	return out
}
