package validate

import (
	"example.com/mkvgate/internal/schema"
)

type blockKey struct {
	track uint64
	time  int64
}

// blockIndex maps every (track, absolute timecode) pair found in the
// buffered clusters. Clusters without a timecode are left out.
func (s *Session) blockIndex() map[blockKey]struct{} {
	idx := make(map[blockKey]struct{})
	for _, cl := range s.Clusters {
		tc, ok := clusterTimecode(cl)
		if !ok {
			continue
		}
		for _, b := range clusterBlocks(cl) {
			if b.el.Block == nil {
				continue
			}
			idx[blockKey{b.el.Block.Track, int64(tc) + int64(b.el.Block.Timecode)}] = struct{}{}
		}
	}
	return idx
}

// checkCues verifies that CuePoints are ordered and that each one resolves to
// a block of the announced track at the announced time.
func (s *Session) checkCues() {
	if s.Info == nil {
		s.Sink.Errorf(0x310, "A Cues (index) is defined but no SegmentInfo was found")
		return
	}
	if len(s.Clusters) == 0 {
		return
	}
	scale := s.timecodeScale()
	ms := func(t uint64) uint64 { return t * scale / 1_000_000 }

	idx := s.blockIndex()
	var prev uint64
	havePrev := false
	for i, cp := range s.Cues.FindAll(schema.IDCuePoint) {
		if i%24 == 0 {
			s.progress()
		}
		timeEl := cp.FindFirst(schema.IDCueTime)
		if timeEl == nil {
			continue
		}
		t := timeEl.Uint
		if havePrev && t < prev {
			s.Sink.Errorf(0x311, "The Cues entry for timecode %d ms is listed after entry %d ms", ms(t), ms(prev))
		}
		prev, havePrev = t, true

		pos := cp.FindFirst(schema.IDCueTrackPositions)
		track, ok := pos.UintOr(schema.IDCueTrack, 0)
		if pos == nil || !ok {
			continue
		}
		if _, found := idx[blockKey{track, int64(t)}]; !found {
			s.Sink.Errorf(0x312, "CueEntry Track #%d and timecode %d ms not found", track, ms(t))
		}
	}
}
