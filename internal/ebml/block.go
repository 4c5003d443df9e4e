package ebml

import (
	"fmt"
)

// Block header flag bits.
const (
	blockFlagKeyframe = 0x80
	blockFlagLacing   = 0x06
)

// LaceType is the lacing mode announced in a block header.
type LaceType uint8

const (
	LaceNone LaceType = iota
	LaceXiph
	LaceFixed
	LaceEBML
)

func (l LaceType) String() string {
	switch l {
	case LaceXiph:
		return "xiph"
	case LaceFixed:
		return "fixed"
	case LaceEBML:
		return "ebml"
	}
	return "none"
}

// Block is the decoded header of a Block or SimpleBlock payload. Frame data
// is not kept, only the frame lengths.
type Block struct {
	Track    uint64
	Timecode int16
	Flags    byte
	Simple   bool
	Lacing   LaceType
	Frames   []int64
}

// Keyframe reports the SimpleBlock keyframe flag. A Block inside a BlockGroup
// never carries it; its state comes from the group.
func (b *Block) Keyframe() bool {
	return b.Simple && b.Flags&blockFlagKeyframe != 0
}

func (b *Block) Laced() bool {
	return b.Lacing != LaceNone
}

// DataLength is the sum of the frame lengths.
func (b *Block) DataLength() int64 {
	var n int64
	for _, f := range b.Frames {
		n += f
	}
	return n
}

// ParseBlock decodes a block payload. A broken header returns ErrInvalidBlock
// and no block. Broken lacing returns the block with no frames and
// ErrInvalidLacing.
func ParseBlock(p []byte, simple bool) (*Block, error) {
	track, n, err := parseVint(p)
	if err != nil {
		return nil, fmt.Errorf("%w: track number: %v", ErrInvalidBlock, err)
	}
	if len(p) < n+3 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBlock, len(p))
	}
	b := &Block{
		Track:    track,
		Timecode: int16(uint16(p[n])<<8 | uint16(p[n+1])),
		Flags:    p[n+2],
		Simple:   simple,
	}
	b.Lacing = LaceType((b.Flags & blockFlagLacing) >> 1)
	data := p[n+3:]

	if b.Lacing == LaceNone {
		b.Frames = []int64{int64(len(data))}
		return b, nil
	}
	frames, err := laceSizes(b.Lacing, data)
	if err != nil {
		return b, fmt.Errorf("%w: %v", ErrInvalidLacing, err)
	}
	b.Frames = frames
	return b, nil
}

// laceSizes decodes the lace table at the start of data and returns the
// length of every frame.
func laceSizes(lacing LaceType, p []byte) ([]int64, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("missing frame count")
	}
	count := int(p[0]) + 1
	pos := 1
	var sizes []int64
	var sum int64

	switch lacing {
	case LaceXiph:
		for i := 0; i < count-1; i++ {
			var size int64
			for {
				if pos >= len(p) {
					return nil, fmt.Errorf("xiph lace %d truncated", i)
				}
				v := p[pos]
				pos++
				size += int64(v)
				if v != 0xFF {
					break
				}
			}
			sizes = append(sizes, size)
			sum += size
		}
	case LaceFixed:
		rest := int64(len(p) - pos)
		if rest%int64(count) != 0 {
			return nil, fmt.Errorf("%d bytes do not split into %d frames", rest, count)
		}
		for i := 0; i < count; i++ {
			sizes = append(sizes, rest/int64(count))
		}
		return sizes, nil
	case LaceEBML:
		if count == 1 {
			break
		}
		first, n, err := parseVint(p[pos:])
		if err != nil {
			return nil, fmt.Errorf("ebml lace 0: %v", err)
		}
		pos += n
		size := int64(first)
		sizes = append(sizes, size)
		sum += size
		for i := 1; i < count-1; i++ {
			delta, n, err := parseSignedVint(p[pos:])
			if err != nil {
				return nil, fmt.Errorf("ebml lace %d: %v", i, err)
			}
			pos += n
			size += delta
			if size < 0 {
				return nil, fmt.Errorf("ebml lace %d has negative size", i)
			}
			sizes = append(sizes, size)
			sum += size
		}
	}

	last := int64(len(p)-pos) - sum
	if last < 0 {
		return nil, fmt.Errorf("frames need %d bytes, block has %d", sum, len(p)-pos)
	}
	return append(sizes, last), nil
}
