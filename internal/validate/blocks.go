package validate

import (
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// blockRef is one Block or SimpleBlock of a cluster, with its keyframe state
// resolved. Only the first Block of a BlockGroup is listed.
type blockRef struct {
	el       *ebml.Element
	label    string
	keyframe bool
}

func clusterBlocks(cluster *ebml.Element) []blockRef {
	var out []blockRef
	for _, c := range cluster.Children {
		switch c.ID {
		case schema.IDSimpleBlock:
			out = append(out, blockRef{el: c, label: "SimpleBlock", keyframe: c.Block != nil && c.Block.Keyframe()})
		case schema.IDBlockGroup:
			if b := c.FindFirst(schema.IDBlock); b != nil {
				out = append(out, blockRef{el: b, label: "Block", keyframe: c.FindFirst(schema.IDReferenceBlock) == nil})
			}
		}
	}
	return out
}

// clusterTimecode returns the Timecode of a cluster, if present.
func clusterTimecode(cluster *ebml.Element) (uint64, bool) {
	if tc := cluster.FindFirst(schema.IDClusterTimecode); tc != nil {
		return tc.Uint, true
	}
	return 0, false
}

// checkClusterStart verifies that cluster timecodes increase and that each
// video track starts every cluster with a keyframe.
func (s *Session) checkClusterStart() {
	var prev uint64
	havePrev := false
	for _, cl := range s.Clusters {
		tc, ok := clusterTimecode(cl)
		if !ok {
			s.Sink.Errorf(0xC1, "The Cluster at %d has no timecode", cl.Offset)
		} else if havePrev && prev >= tc {
			s.Sink.Errorf(0xC2, "The timecode of the Cluster at %d is not incrementing", cl.Offset)
		}
		prev, havePrev = tc, ok

		if !s.HasVideo {
			continue
		}
		s.Registry.resetKeyframes()
		for _, b := range clusterBlocks(cl) {
			if b.el.Block == nil {
				continue
			}
			t, ok := s.Registry.Lookup(b.el.Block.Track)
			if !ok {
				continue
			}
			if !b.keyframe && !t.keyframeSeen && t.Kind == KindVideo {
				s.Sink.Warnf(0xC0, "First Block for video track #%d in Cluster at %d is not a keyframe", t.Number, cl.Offset)
			}
			t.keyframeSeen = true
		}
	}
}

// checkBlocks resolves every block against the track registry, checks the
// lacing and keyframe rules and accumulates the per-track payload length.
func (s *Session) checkBlocks() {
	for _, cl := range s.Clusters {
		tc, haveTC := clusterTimecode(cl)
		for _, b := range clusterBlocks(cl) {
			blk := b.el.Block
			if blk == nil {
				s.Sink.Errorf(0xB3, "%s at %d could not be decoded: %v", b.label, b.el.Offset, b.el.Err)
				continue
			}
			t, ok := s.Registry.Lookup(blk.Track)
			if !ok {
				s.Sink.Errorf(0xB2, "Block at %d is using an unknown track #%d", b.el.Offset, blk.Track)
				continue
			}
			if blk.Laced() && !t.Lacing {
				s.Sink.Errorf(0xB0, "%s at %d track #%d is laced but the track is not", b.label, b.el.Offset, t.Number)
			}
			if !b.keyframe && t.Kind != KindVideo {
				s.Sink.Errorf(0xB1, "%s at %d track #%d is not a keyframe", b.label, b.el.Offset, t.Number)
			}
			if b.el.Err != nil {
				s.Sink.Errorf(0xB3, "%s at %d track #%d has invalid lacing: %v", b.label, b.el.Offset, t.Number, b.el.Err)
				continue
			}
			t.DataLength += blk.DataLength()
			if s.Opts.Details && haveTC {
				s.observeTime(int64(tc) + int64(blk.Timecode))
			}
		}
	}
}

func (s *Session) observeTime(t int64) {
	if !s.haveTime || t < s.minTime {
		s.minTime = t
	}
	if !s.haveTime || t > s.maxTime {
		s.maxTime = t
	}
	s.haveTime = true
}

// checkPosSize compares PrevSize and Position against the real offsets.
func (s *Session) checkPosSize() {
	var prev *ebml.Element
	for _, cl := range s.Clusters {
		if el := cl.FindFirst(schema.IDClusterPrevSize); el != nil {
			if prev == nil {
				s.Sink.Errorf(0xA0, "The PrevSize %d was set on the first Cluster at %d", el.Uint, el.Offset)
			} else if int64(el.Uint) != cl.Offset-prev.Offset {
				s.Sink.Errorf(0xA1, "The Cluster PrevSize %d at %d should be %d", el.Uint, el.Offset, cl.Offset-prev.Offset)
			}
		}
		if el := cl.FindFirst(schema.IDClusterPosition); el != nil {
			if want := cl.Offset - s.Segment.DataOffset; int64(el.Uint) != want {
				s.Sink.Errorf(0xA2, "The Cluster position %d at %d should be %d", el.Uint, el.Offset, want)
			}
		}
		prev = cl
	}
}
