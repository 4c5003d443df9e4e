package ebml

import (
	"fmt"
	"time"

	"example.com/mkvgate/internal/schema"
)

// dateEpoch is the origin of EBML date values.
var dateEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Element is one node of a decoded EBML tree.
type Element struct {
	ID         uint32
	Class      *schema.Class
	Offset     int64
	HeaderLen  int
	DataOffset int64
	// Size is the payload length, or -1 while an unknown size is unresolved.
	Size int64

	Parent   *Element
	Children []*Element

	Uint  uint64
	Int   int64
	Float float64
	Str   string
	Bin   []byte
	Block *Block

	// Skipped marks a payload that was not kept in memory.
	Skipped bool
	// Err holds a recoverable payload decoding error (invalid block or lacing).
	Err error
}

// Name returns the schema name or the hex ID for unknown elements.
func (e *Element) Name() string {
	if e.Class != nil {
		return e.Class.Name
	}
	return hexID(e.ID)
}

// Known reports whether the ID is described by the schema.
func (e *Element) Known() bool {
	return e.Class != nil
}

func (e *Element) IsMaster() bool {
	return e.Class.IsMaster()
}

// End returns the absolute offset just past the payload, or -1 when the size
// is unknown.
func (e *Element) End() int64 {
	if e.Size < 0 {
		return -1
	}
	return e.DataOffset + e.Size
}

// FullSize is the encoded size including the header.
func (e *Element) FullSize() int64 {
	if e.Size < 0 {
		return -1
	}
	return int64(e.HeaderLen) + e.Size
}

// Date converts a date payload into wall-clock time.
func (e *Element) Date() time.Time {
	return dateEpoch.Add(time.Duration(e.Int))
}

// FindFirst returns the first direct child with the given ID.
func (e *Element) FindFirst(id uint32) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FindAll returns every direct child with the given ID in file order.
func (e *Element) FindAll(id uint32) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Children {
		if c.ID == id {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of direct children with the given ID.
func (e *Element) Count(id uint32) int {
	n := 0
	if e == nil {
		return 0
	}
	for _, c := range e.Children {
		if c.ID == id {
			n++
		}
	}
	return n
}

// UintOr returns the value of the first child id, the schema default when
// the child is absent, or def when neither exists.
func (e *Element) UintOr(id uint32, def uint64) (uint64, bool) {
	if c := e.FindFirst(id); c != nil {
		return c.Uint, true
	}
	if e != nil && e.Class != nil {
		if sem, ok := e.Class.Semantic(id); ok && sem.Class.HasDefault {
			return sem.Class.DefaultUint(), false
		}
	}
	return def, false
}

// StringOf returns the string value of the first child id.
func (e *Element) StringOf(id uint32) (string, bool) {
	if c := e.FindFirst(id); c != nil {
		return c.Str, true
	}
	return "", false
}

// Release drops the children and payload of e.
func (e *Element) Release() {
	e.Children = nil
	e.Bin = nil
	e.Block = nil
}

func hexID(id uint32) string {
	return fmt.Sprintf("[%X]", id)
}
