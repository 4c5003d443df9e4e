package ebml

import (
	"errors"
	"io"
	"math/bits"
)

const (
	maxIDLength   = 4
	maxSizeLength = 8
)

var (
	ErrInvalidVint   = errors.New("ebml: invalid variable-length integer")
	ErrInvalidID     = errors.New("ebml: invalid element id")
	ErrUnknownSize   = errors.New("ebml: unknown size on a non-master element")
	ErrSizeMismatch  = errors.New("ebml: element does not fit its parent")
	ErrInvalidLacing = errors.New("ebml: invalid lacing data")
	ErrInvalidBlock  = errors.New("ebml: invalid block header")
	ErrTooLarge      = errors.New("ebml: element payload too large")
)

// vintLength returns the encoded length announced by the first byte of a
// variable-length integer, or 0 when the byte is zero.
func vintLength(first byte) int {
	if first == 0 {
		return 0
	}
	return bits.LeadingZeros8(first) + 1
}

// readID reads an element ID keeping its length marker bits, the way IDs are
// written in the Matroska tables.
func readID(r io.ByteReader) (uint32, int, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	n := vintLength(first)
	if n == 0 || n > maxIDLength {
		return 0, 1, ErrInvalidID
	}
	id := uint32(first)
	for i := 1; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, i, noEOF(err)
		}
		id = id<<8 | uint32(b)
	}
	// all value bits set is reserved
	if id == uint32(1)<<(7*n+1)-1 {
		return 0, n, ErrInvalidID
	}
	return id, n, nil
}

// readSize reads an element data size. Unknown sizes (all value bits set)
// are returned as -1.
func readSize(r io.ByteReader) (int64, int, error) {
	first, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	n := vintLength(first)
	if n == 0 || n > maxSizeLength {
		return 0, 1, ErrInvalidVint
	}
	mask := byte(0xFF) >> n
	v := uint64(first & mask)
	allOnes := first&mask == mask
	for i := 1; i < n; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, i, noEOF(err)
		}
		if b != 0xFF {
			allOnes = false
		}
		v = v<<8 | uint64(b)
	}
	if allOnes {
		return -1, n, nil
	}
	return int64(v), n, nil
}

// parseVint decodes an unsigned vint from a byte slice, as used inside block
// headers and EBML lacing.
func parseVint(p []byte) (uint64, int, error) {
	if len(p) == 0 {
		return 0, 0, io.ErrUnexpectedEOF
	}
	n := vintLength(p[0])
	if n == 0 || n > maxSizeLength {
		return 0, 0, ErrInvalidVint
	}
	if len(p) < n {
		return 0, 0, io.ErrUnexpectedEOF
	}
	v := uint64(p[0] & (0xFF >> n))
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(p[i])
	}
	return v, n, nil
}

// parseSignedVint decodes the signed form used for EBML lace size deltas.
func parseSignedVint(p []byte) (int64, int, error) {
	v, n, err := parseVint(p)
	if err != nil {
		return 0, 0, err
	}
	bias := int64(1)<<(7*n-1) - 1
	return int64(v) - bias, n, nil
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
