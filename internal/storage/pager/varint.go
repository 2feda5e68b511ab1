package pager

import "fmt"

// Size values are encoded as 7-bit-per-byte varints, low bits first, with
// the high bit of each byte set iff another byte follows. The codec covers
// text lengths and array counts (§3, §6) and the B+tree's bucket, pointer
// and key counts; page offsets and item-id fields use fixed widths.
//
// A size of zero encodes to zero bytes; callers that need a distinguishable
// "present but empty" marker (the zero-length TEXT case) special-case it
// themselves rather than relying on this codec to emit a sentinel byte.

const varintContinue = 0x80
const varintMask = 0x7f

// EncodedSizeLen returns the number of bytes EncodeSize would produce for n.
func EncodedSizeLen(n uint64) int {
	if n == 0 {
		return 0
	}
	length := 0
	for n > 0 {
		length++
		n >>= 7
	}
	return length
}

// EncodeSize appends the varint encoding of n to dst and returns the result.
func EncodeSize(dst []byte, n uint64) []byte {
	for n > 0 {
		b := byte(n & varintMask)
		n >>= 7
		if n > 0 {
			b |= varintContinue
		}
		dst = append(dst, b)
	}
	return dst
}

// DecodeSize parses a varint-encoded size from the front of buf, returning
// the decoded value and the number of bytes consumed. An empty buf decodes
// to (0, 0, nil): callers expecting a non-empty encoding must check that
// case themselves.
func DecodeSize(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, nil
	}
	var n uint64
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		n |= uint64(b&varintMask) << shift
		if b&varintContinue == 0 {
			return n, i + 1, nil
		}
		shift += 7
		if shift > 63 {
			return 0, 0, fmt.Errorf("%w: varint exceeds 64 bits", ErrSizeOverflow)
		}
	}
	return 0, 0, fmt.Errorf("%w: need at least 1 more byte", ErrBufferTooShort)
}
