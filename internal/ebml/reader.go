package ebml

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"example.com/mkvgate/internal/schema"
)

const (
	defaultBufferSize = 1 << 20
	defaultMaxBinary  = 1 << 20
	maxBlockSize      = 256 << 20
	// seeks are only worth it past what a buffered discard would copy anyway
	minSeekSkip = 64 << 10
)

// byteSource tracks the absolute stream position over a buffered reader and
// skips with Seek when the underlying stream supports it.
type byteSource struct {
	src    io.Reader
	br     *bufio.Reader
	seeker io.Seeker
	pos    int64
}

func newByteSource(src io.Reader) *byteSource {
	bs := &byteSource{src: src, br: bufio.NewReaderSize(src, defaultBufferSize)}
	if s, ok := src.(io.Seeker); ok {
		bs.seeker = s
	}
	return bs
}

func (bs *byteSource) ReadByte() (byte, error) {
	b, err := bs.br.ReadByte()
	if err == nil {
		bs.pos++
	}
	return b, err
}

func (bs *byteSource) readFull(p []byte) error {
	n, err := io.ReadFull(bs.br, p)
	bs.pos += int64(n)
	return noEOF(err)
}

func (bs *byteSource) discard(n int64) error {
	if n <= 0 {
		return nil
	}
	buffered := int64(bs.br.Buffered())
	if bs.seeker != nil && n-buffered >= minSeekSkip {
		if _, err := bs.br.Discard(int(buffered)); err != nil {
			return err
		}
		if _, err := bs.seeker.Seek(n-buffered, io.SeekCurrent); err != nil {
			return err
		}
		bs.br.Reset(bs.src)
		bs.pos += n
		return nil
	}
	for n > 0 {
		chunk := n
		if chunk > math.MaxInt32 {
			chunk = math.MaxInt32
		}
		d, err := bs.br.Discard(int(chunk))
		bs.pos += int64(d)
		n -= int64(d)
		if err != nil {
			return noEOF(err)
		}
	}
	return nil
}

// Reader decodes an EBML stream into Elements. Children are resolved against
// the schema class of their parent: IDs the parent does not accept become
// unknown elements, or end the parent when its size is unknown.
type Reader struct {
	reg     *schema.Registry
	src     *byteSource
	closer  io.Closer
	size    int64
	pending *Element
	scratch []byte

	// MaxBinary is the largest binary payload kept by ReadData.
	MaxBinary int64
}

// NewReader wraps a stream. The caller keeps ownership of src.
func NewReader(src io.Reader, reg *schema.Registry) *Reader {
	if reg == nil {
		reg = schema.Default()
	}
	return &Reader{
		reg:       reg,
		src:       newByteSource(src),
		size:      -1,
		MaxBinary: defaultMaxBinary,
	}
}

// Open opens a file for decoding. Files ending in .xz are decompressed on the
// fly; their size is then unknown.
func Open(path string, reg *schema.Registry) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".xz") {
		xr, err := xz.NewReader(bufio.NewReader(f))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open xz stream: %w", err)
		}
		r := NewReader(xr, reg)
		r.closer = f
		return r, nil
	}
	r := NewReader(f, reg)
	r.closer = f
	if st, err := f.Stat(); err == nil {
		r.size = st.Size()
	}
	return r, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Pos returns the number of bytes consumed so far.
func (r *Reader) Pos() int64 {
	if r.pending != nil {
		return r.pending.Offset
	}
	return r.src.pos
}

// Size returns the stream size, or -1 when unknown.
func (r *Reader) Size() int64 {
	return r.size
}

func (r *Reader) Registry() *schema.Registry {
	return r.reg
}

func (r *Reader) readHeader() (*Element, error) {
	off := r.src.pos
	id, idLen, err := readID(r.src)
	if err != nil {
		if idLen == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("element header at %d: %w", off, err)
	}
	size, sizeLen, err := readSize(r.src)
	if err != nil {
		return nil, fmt.Errorf("element %X size at %d: %w", id, off, noEOF(err))
	}
	return &Element{
		ID:         id,
		Offset:     off,
		HeaderLen:  idLen + sizeLen,
		DataOffset: off + int64(idLen+sizeLen),
		Size:       size,
	}, nil
}

// bound returns the nearest known end among e and its ancestors.
func bound(e *Element) int64 {
	for ; e != nil; e = e.Parent {
		if e.Size >= 0 {
			return e.End()
		}
	}
	return -1
}

// Next returns the next child header of parent (nil for the stream root).
// It returns io.EOF when parent is complete and io.ErrUnexpectedEOF when the
// stream ends before a parent of known size does.
func (r *Reader) Next(parent *Element) (*Element, error) {
	limit := bound(parent)
	if limit >= 0 && r.Pos() >= limit {
		if parent.Size < 0 {
			parent.Size = r.Pos() - parent.DataOffset
		}
		return nil, io.EOF
	}
	el := r.pending
	r.pending = nil
	if el == nil {
		var err error
		el, err = r.readHeader()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if parent != nil && parent.Size < 0 {
					parent.Size = r.src.pos - parent.DataOffset
					return nil, io.EOF
				}
				if parent != nil {
					return nil, io.ErrUnexpectedEOF
				}
			}
			return nil, err
		}
	}

	var class *schema.Class
	if parent == nil {
		for _, root := range r.reg.Roots() {
			if root.ID == el.ID {
				class = root
			}
		}
	} else if parent.Class != nil && parent.Class.Accepts(el.ID) {
		class = r.reg.Lookup(el.ID)
	} else if parent.Class != nil && parent.Size < 0 && r.reg.Lookup(el.ID) != nil {
		// a known element that does not belong here closes the parent
		r.pending = el
		parent.Size = el.Offset - parent.DataOffset
		return nil, io.EOF
	}
	el.Class = class
	el.Parent = parent

	if limit >= 0 && el.Size >= 0 && el.End() > limit {
		return el, fmt.Errorf("%w: %s at %d ends at %d, parent ends at %d", ErrSizeMismatch, el.Name(), el.Offset, el.End(), limit)
	}
	return el, nil
}

// ReadData reads the payload of el. Masters are read recursively. In partial
// mode binary payloads are skipped; block headers are always decoded.
func (r *Reader) ReadData(el *Element, partial bool) error {
	if el.IsMaster() {
		for {
			child, err := r.Next(el)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("in %s at %d: %w", el.Name(), el.Offset, err)
			}
			if err := r.ReadData(child, partial); err != nil {
				return err
			}
			el.Children = append(el.Children, child)
		}
	}
	if el.Size < 0 {
		return fmt.Errorf("%w: %s at %d", ErrUnknownSize, el.Name(), el.Offset)
	}
	if el.Class == nil || el.ID == schema.IDVoid {
		el.Skipped = true
		return r.src.discard(el.Size)
	}

	switch el.Class.Type {
	case schema.TypeUint, schema.TypeInt, schema.TypeDate:
		if el.Size > 8 {
			return fmt.Errorf("%w: %s at %d has %d bytes", ErrSizeMismatch, el.Name(), el.Offset, el.Size)
		}
		buf, err := r.payload(el.Size)
		if err != nil {
			return err
		}
		var u uint64
		for _, b := range buf {
			u = u<<8 | uint64(b)
		}
		el.Uint = u
		if el.Size > 0 {
			shift := 64 - 8*uint(el.Size)
			el.Int = int64(u<<shift) >> shift
		}
	case schema.TypeFloat:
		buf, err := r.payload(el.Size)
		if err != nil {
			return err
		}
		switch len(buf) {
		case 0:
		case 4:
			el.Float = float64(math.Float32frombits(binary.BigEndian.Uint32(buf)))
		case 8:
			el.Float = math.Float64frombits(binary.BigEndian.Uint64(buf))
		default:
			return fmt.Errorf("%w: float %s at %d has %d bytes", ErrSizeMismatch, el.Name(), el.Offset, el.Size)
		}
	case schema.TypeString, schema.TypeUTF8:
		buf, err := r.payload(el.Size)
		if err != nil {
			return err
		}
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			buf = buf[:i]
		}
		el.Str = string(buf)
	case schema.TypeBlock:
		if el.Size > maxBlockSize {
			return fmt.Errorf("%w: %s at %d", ErrTooLarge, el.Name(), el.Offset)
		}
		buf, err := r.payload(el.Size)
		if err != nil {
			return err
		}
		el.Block, el.Err = ParseBlock(buf, el.ID == schema.IDSimpleBlock)
	default:
		if partial || el.Size > r.MaxBinary {
			el.Skipped = true
			return r.src.discard(el.Size)
		}
		buf, err := r.payload(el.Size)
		if err != nil {
			return err
		}
		el.Bin = append([]byte(nil), buf...)
	}
	return nil
}

// payload reads n bytes into the scratch buffer. The slice is only valid until
// the next call.
func (r *Reader) payload(n int64) ([]byte, error) {
	if int64(cap(r.scratch)) < n {
		r.scratch = make([]byte, n)
	}
	buf := r.scratch[:n]
	if err := r.src.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Skip moves past the payload of el without keeping it.
func (r *Reader) Skip(el *Element) error {
	if el.Size >= 0 {
		el.Skipped = true
		return r.src.discard(el.Size)
	}
	if !el.IsMaster() {
		return fmt.Errorf("%w: %s at %d", ErrUnknownSize, el.Name(), el.Offset)
	}
	if err := r.ReadData(el, true); err != nil {
		return err
	}
	el.Release()
	el.Skipped = true
	return nil
}
