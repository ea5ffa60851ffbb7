// Package blockcodec frames and compresses container blocks.
//
// Every block is written as a 16-byte header followed by the payload:
//
//	[codec u8][reserved 3][raw size u32][payload size u32][crc32c u32][payload]
//
// The checksum covers the decoded bytes. A block whose compressed form is not
// at least 10% smaller than the raw bytes is stored with CodecNone, so the
// codec byte of a frame may differ from the codec requested at encode time.
package blockcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/gtstore/internal/hash"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a block compression algorithm.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a codec name back to its value.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "none", "":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	}
	return CodecNone, fmt.Errorf("blockcodec: unknown codec %q", s)
}

// HeaderSize is the fixed frame header length.
const HeaderSize = 16

// ErrCorrupt is returned for frames that fail structural or checksum checks.
var ErrCorrupt = errors.New("blockcodec: corrupt block")

var (
	zstdEncoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
		return enc
	}}
	zstdDecoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}}
)

// Encode compresses data with c and returns the framed block.
func Encode(data []byte, c Codec) ([]byte, error) {
	var payload []byte
	switch c {
	case CodecNone:
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("blockcodec: lz4: %w", err)
		}
		payload = buf[:n]
	case CodecZstd:
		enc := zstdEncoderPool.Get().(*zstd.Encoder)
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("blockcodec: unknown codec %d", uint8(c))
	}

	// n == 0 from lz4 means incompressible.
	if c == CodecNone || len(payload) == 0 || float64(len(payload)) > float64(len(data))*0.9 {
		c, payload = CodecNone, data
	}

	out := make([]byte, HeaderSize+len(payload))
	out[0] = byte(c)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[8:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[12:], hash.CRC32C(data))
	copy(out[HeaderSize:], payload)
	return out, nil
}

// Decode verifies and decompresses a framed block.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < HeaderSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrCorrupt, len(frame))
	}
	c := Codec(frame[0])
	rawSize := binary.LittleEndian.Uint32(frame[4:])
	payloadSize := binary.LittleEndian.Uint32(frame[8:])
	sum := binary.LittleEndian.Uint32(frame[12:])
	if uint64(len(frame)-HeaderSize) < uint64(payloadSize) {
		return nil, fmt.Errorf("%w: payload truncated", ErrCorrupt)
	}
	payload := frame[HeaderSize : HeaderSize+int(payloadSize)]

	var out []byte
	switch c {
	case CodecNone:
		if payloadSize != rawSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		out = make([]byte, rawSize)
		copy(out, payload)
	case CodecLZ4:
		out = make([]byte, rawSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		if uint32(n) != rawSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
	case CodecZstd:
		dec := zstdDecoderPool.Get().(*zstd.Decoder)
		decoded, err := dec.DecodeAll(payload, make([]byte, 0, rawSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		if uint32(len(decoded)) != rawSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupt)
		}
		out = decoded
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorrupt, uint8(c))
	}

	if hash.CRC32C(out) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return out, nil
}

// FrameCodec reports the codec a frame was actually stored with.
func FrameCodec(frame []byte) (Codec, error) {
	if len(frame) < HeaderSize {
		return CodecNone, ErrCorrupt
	}
	return Codec(frame[0]), nil
}
