package ebml

import (
	"encoding/binary"
	"math"
)

// The encoders below build EBML byte streams. They back the sample
// generator and the package tests; the validator itself never writes.

// EncodeID returns the big-endian bytes of an element ID (marker included).
func EncodeID(id uint32) []byte {
	switch {
	case id <= 0xFF:
		return []byte{byte(id)}
	case id <= 0xFFFF:
		return []byte{byte(id >> 8), byte(id)}
	case id <= 0xFFFFFF:
		return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	}
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

// EncodeSize returns the shortest size vint for n. A negative n encodes the
// unknown size marker.
func EncodeSize(n int64) []byte {
	if n < 0 {
		return []byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	}
	width := 1
	for width < 8 && uint64(n) >= uint64(1)<<(7*width)-1 {
		width++
	}
	return EncodeSizeWidth(n, width)
}

// EncodeSizeWidth encodes n on exactly width bytes.
func EncodeSizeWidth(n int64, width int) []byte {
	out := make([]byte, width)
	v := uint64(n)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	out[0] |= 0x80 >> (width - 1)
	return out
}

func element(id uint32, payload []byte) []byte {
	out := EncodeID(id)
	out = append(out, EncodeSize(int64(len(payload)))...)
	return append(out, payload...)
}

// Uint encodes an unsigned integer element on the minimal number of bytes.
func Uint(id uint32, v uint64) []byte {
	n := 1
	for n < 8 && v >= uint64(1)<<(8*n) {
		n++
	}
	return UintWidth(id, v, n)
}

// UintWidth encodes an unsigned integer element on width payload bytes.
func UintWidth(id uint32, v uint64, width int) []byte {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return element(id, buf)
}

// Int encodes a signed integer element on 8 bytes.
func Int(id uint32, v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return element(id, buf)
}

// Float encodes a float element on 8 bytes.
func Float(id uint32, v float64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
	return element(id, buf)
}

func String(id uint32, s string) []byte {
	return element(id, []byte(s))
}

func Binary(id uint32, b []byte) []byte {
	return element(id, b)
}

// Master concatenates already encoded children under id.
func Master(id uint32, children ...[]byte) []byte {
	var payload []byte
	for _, c := range children {
		payload = append(payload, c...)
	}
	return element(id, payload)
}

// MasterUnknown is Master with the unknown size marker.
func MasterUnknown(id uint32, children ...[]byte) []byte {
	out := EncodeID(id)
	out = append(out, EncodeSize(-1)...)
	for _, c := range children {
		out = append(out, c...)
	}
	return out
}

// Void encodes a Void element occupying exactly total bytes (total >= 2).
func Void(total int) []byte {
	width := 1
	if total-2 >= 0x7F {
		width = 8
	}
	payload := total - 1 - width
	out := []byte{0xEC}
	out = append(out, EncodeSizeWidth(int64(payload), width)...)
	return append(out, make([]byte, payload)...)
}

// BlockPayload encodes a block header and frames. Lacing is taken from the
// flags; Xiph and EBML lace tables are generated from the frame lengths.
func BlockPayload(track uint64, timecode int16, flags byte, frames ...[]byte) []byte {
	out := EncodeSize(int64(track))
	out = append(out, byte(uint16(timecode)>>8), byte(timecode), flags)
	lacing := LaceType((flags & blockFlagLacing) >> 1)
	if lacing != LaceNone {
		out = append(out, byte(len(frames)-1))
	}
	switch lacing {
	case LaceXiph:
		for _, f := range frames[:len(frames)-1] {
			n := len(f)
			for n >= 0xFF {
				out = append(out, 0xFF)
				n -= 0xFF
			}
			out = append(out, byte(n))
		}
	case LaceEBML:
		if len(frames) > 1 {
			out = append(out, EncodeSize(int64(len(frames[0])))...)
			for i := 1; i < len(frames)-1; i++ {
				delta := int64(len(frames[i]) - len(frames[i-1]))
				out = append(out, encodeSignedVint(delta)...)
			}
		}
	}
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

func encodeSignedVint(v int64) []byte {
	width := 1
	for width < 8 {
		bias := int64(1)<<(7*width-1) - 1
		if v >= -bias && v <= bias {
			break
		}
		width++
	}
	bias := int64(1)<<(7*width-1) - 1
	return EncodeSizeWidth(v+bias, width)
}

// SimpleBlock encodes a complete SimpleBlock element.
func SimpleBlock(track uint64, timecode int16, flags byte, frames ...[]byte) []byte {
	return element(0xA3, BlockPayload(track, timecode, flags, frames...))
}
