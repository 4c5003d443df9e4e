package validate

import (
	"fmt"
	"sort"

	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// seekTarget is a singleton section a SeekPoint may reference.
type seekTarget struct {
	id       uint32
	name     string
	article  string
	notFound int
	wrongPos int
	ref      func(*Session) *ebml.Element
}

var seekTargets = []seekTarget{
	{schema.IDInfo, "SegmentInfo", "a", 0x62, 0x63, func(s *Session) *ebml.Element { return s.Info }},
	{schema.IDTracks, "TrackInfo", "a", 0x64, 0x65, func(s *Session) *ebml.Element { return s.Tracks }},
	{schema.IDCues, "Cues", "a", 0x66, 0x67, func(s *Session) *ebml.Element { return s.Cues }},
	{schema.IDTags, "Tags", "a", 0x68, 0x69, func(s *Session) *ebml.Element { return s.Tags }},
	{schema.IDChapters, "Chapters", "a", 0x6A, 0x6B, func(s *Session) *ebml.Element { return s.Chapters }},
	{schema.IDAttachments, "Attachments", "an", 0x6C, 0x6D, func(s *Session) *ebml.Element { return s.Attachments }},
}

// seekID decodes the SeekID binary payload. The marker bits are kept, the
// same way element IDs are read.
func seekID(el *ebml.Element) uint32 {
	if el == nil || len(el.Bin) == 0 || len(el.Bin) > 4 {
		return 0
	}
	var id uint32
	for _, b := range el.Bin {
		id = id<<8 | uint32(b)
	}
	return id
}

// checkSeekHead verifies every SeekPoint of sh against the real position of
// the section it references.
func (s *Session) checkSeekHead(sh *ebml.Element) {
	primary := sh == s.SeekHead
	seen := make(map[uint32]bool)
	seenSecondary := false

	for _, sp := range sh.FindAll(schema.IDSeek) {
		id := seekID(sp.FindFirst(schema.IDSeekID))
		idStr := fmt.Sprintf("[%X]", id)
		posEl := sp.FindFirst(schema.IDSeekPos)
		if posEl == nil {
			s.Sink.Errorf(0x60, "The SeekPoint at %d has an unknown position (ID %s)", sp.Offset, idStr)
			continue
		}
		pos := s.Segment.DataOffset + int64(posEl.Uint)
		if id == 0 {
			s.Sink.Errorf(0x61, "The SeekPoint at %d has no ID defined (position %d)", sp.Offset, pos)
			continue
		}

		if t, ok := findSeekTarget(id); ok {
			seen[id] = true
			ref := t.ref(s)
			switch {
			case ref == nil:
				s.Sink.Errorf(t.notFound, "The SeekPoint at %d references an unknown %s at %d", sp.Offset, t.name, pos)
			case ref.Offset != pos:
				s.Sink.Errorf(t.wrongPos, "The SeekPoint at %d references %s %s at wrong position %d (real %d)", sp.Offset, t.article, t.name, pos, ref.Offset)
			}
			continue
		}

		switch id {
		case schema.IDSeekHead:
			switch {
			case pos == sh.Offset:
				s.Sink.Errorf(0x6E, "The SeekPoint at %d references its own SeekHead", sp.Offset)
			case primary:
				if s.SeekHead2 == nil || s.SeekHead2.Offset != pos {
					s.Sink.Errorf(0x6F, "The SeekPoint at %d references an unknown secondary SeekHead at %d", sp.Offset, pos)
				}
				seenSecondary = true
			case pos != s.SeekHead.Offset:
				s.Sink.Errorf(0x70, "The SeekPoint at %d references an unknown extra SeekHead at %d", sp.Offset, pos)
			}
		case schema.IDCluster:
			if len(s.Clusters) > 0 && !s.clusterAt(pos) {
				s.Sink.Errorf(0x71, "The SeekPoint at %d references a Cluster not found at %d", sp.Offset, pos)
			}
		default:
			s.Sink.Warnf(0x860, "The SeekPoint at %d references an element that is not a known level 1 ID %s at %d", sp.Offset, idStr, pos)
		}
	}

	if !primary {
		return
	}
	for _, t := range seekTargets {
		if t.ref(s) != nil && !seen[t.id] {
			s.Sink.Warnf(0x861, "The %s is not referenced in the main SeekHead", t.name)
		}
	}
	if s.SeekHead2 != nil && !seenSecondary {
		s.Sink.Warnf(0x861, "The secondary SeekHead is not referenced in the main SeekHead")
	}
}

func findSeekTarget(id uint32) (seekTarget, bool) {
	for _, t := range seekTargets {
		if t.id == id {
			return t, true
		}
	}
	return seekTarget{}, false
}

// clusterAt reports whether a buffered cluster starts at pos. Clusters are
// kept in file order.
func (s *Session) clusterAt(pos int64) bool {
	i := sort.Search(len(s.Clusters), func(i int) bool { return s.Clusters[i].Offset >= pos })
	return i < len(s.Clusters) && s.Clusters[i].Offset == pos
}
