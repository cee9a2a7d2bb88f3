// Package wire implements the pure, allocation-light encode/decode
// primitives for the iproto wire format: LEB128-style varints, fixed-width
// little-endian integers, and the length-prefixed field/tuple framing built
// on top of them. Nothing in this package performs I/O.
package wire

import (
	"encoding/binary"
	"fmt"
)

// maxVarintValue is the largest value that fits in the 5-byte varint used by
// this protocol (2^35 - 1); the high bit of the fifth group is always the
// continuation bit of a 4th byte, so 5*7 = 35 payload bits are available.
const maxVarintValue = 1<<35 - 1

// smallVarintTable holds the single-byte encoding for every value < 128.
// Populated once at package init; this is the hot path for small field
// lengths (most tuple fields are well under 128 bytes).
var smallVarintTable [128][1]byte

func init() {
	for i := range smallVarintTable {
		smallVarintTable[i][0] = byte(i)
	}
}

// PackVarint encodes n as a base-128 varint: 1 to 5 bytes, most-significant
// 7-bit group first, every byte but the last carrying the continuation bit
// (0x80). It fails if n exceeds the protocol's 35-bit limit.
func PackVarint(n uint64) ([]byte, error) {
	if n >= 1<<14 {
		return packVarintGeneral(n)
	}
	if n < 128 {
		b := smallVarintTable[n]
		return b[:], nil
	}
	return []byte{
		byte(n>>7&0xff | 0x80),
		byte(n & 0x7f),
	}, nil
}

func packVarintGeneral(n uint64) ([]byte, error) {
	switch {
	case n < 1<<21:
		return []byte{
			byte(n>>14&0xff | 0x80),
			byte(n>>7&0xff | 0x80),
			byte(n & 0x7f),
		}, nil
	case n < 1<<28:
		return []byte{
			byte(n>>21&0xff | 0x80),
			byte(n>>14&0xff | 0x80),
			byte(n>>7&0xff | 0x80),
			byte(n & 0x7f),
		}, nil
	case n <= maxVarintValue:
		return []byte{
			byte(n>>28&0xff | 0x80),
			byte(n>>21&0xff | 0x80),
			byte(n>>14&0xff | 0x80),
			byte(n>>7&0xff | 0x80),
			byte(n & 0x7f),
		}, nil
	default:
		return nil, fmt.Errorf("wire: varint overflow: %d exceeds 2^35-1", n)
	}
}

// UnpackVarint decodes a base-128 varint starting at buf[offset], returning
// the value and the offset of the first byte after it. It reads at most 5
// continuation bytes.
func UnpackVarint(buf []byte, offset int) (n uint64, newOffset int, err error) {
	if offset >= len(buf) {
		return 0, offset, fmt.Errorf("wire: unpack varint: truncated input at offset %d", offset)
	}

	var result uint64
	for i := 0; ; i++ {
		if i == 5 {
			return 0, offset, fmt.Errorf("wire: unpack varint: more than 5 continuation bytes")
		}
		if offset >= len(buf) {
			return 0, offset, fmt.Errorf("wire: unpack varint: truncated input at offset %d", offset)
		}
		b := buf[offset]
		offset++
		if b&0x80 != 0 {
			result = (result << 7) | uint64(b&0x7f)
			continue
		}
		result = (result << 7) | uint64(b)
		return result, offset, nil
	}
}

// PackU32 encodes n as 4 little-endian bytes.
func PackU32(n uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, n)
	return b
}

// PackU64 encodes n as 8 little-endian bytes.
func PackU64(n uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, n)
	return b
}

// UnpackU32 decodes 4 little-endian bytes at buf[offset:offset+4].
func UnpackU32(buf []byte, offset int) (uint32, error) {
	if offset+4 > len(buf) {
		return 0, fmt.Errorf("wire: unpack u32: need 4 bytes at offset %d, have %d", offset, len(buf)-offset)
	}
	return binary.LittleEndian.Uint32(buf[offset : offset+4]), nil
}

// UnpackU64 decodes 8 little-endian bytes at buf[offset:offset+8].
func UnpackU64(buf []byte, offset int) (uint64, error) {
	if offset+8 > len(buf) {
		return 0, fmt.Errorf("wire: unpack u64: need 8 bytes at offset %d, have %d", offset, len(buf)-offset)
	}
	return binary.LittleEndian.Uint64(buf[offset : offset+8]), nil
}
