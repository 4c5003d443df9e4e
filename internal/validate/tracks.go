package validate

import (
	"fmt"
	"sort"
	"strings"

	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

type TrackKind int

const (
	KindOther TrackKind = iota
	KindVideo
	KindAudio
)

func (k TrackKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	}
	return "other"
}

// Track is the per-track state built from the Tracks section.
type Track struct {
	Number     uint64
	Kind       TrackKind
	Type       uint64
	CodecID    string
	Lacing     bool
	DataLength int64
	Entry      *ebml.Element

	keyframeSeen bool
}

// TrackRegistry indexes tracks by TrackNumber and keeps declaration order.
type TrackRegistry struct {
	byNumber  map[uint64]*Track
	order     []*Track
	MaxNumber uint64
}

func newTrackRegistry() *TrackRegistry {
	return &TrackRegistry{byNumber: make(map[uint64]*Track)}
}

func (tr *TrackRegistry) Lookup(n uint64) (*Track, bool) {
	t, ok := tr.byNumber[n]
	return t, ok
}

// Tracks returns the tracks in declaration order.
func (tr *TrackRegistry) Tracks() []*Track {
	return tr.order
}

func (tr *TrackRegistry) Len() int {
	return len(tr.order)
}

func (tr *TrackRegistry) resetKeyframes() {
	for _, t := range tr.order {
		t.keyframeSeen = false
	}
}

// buildTracks fills the registry from the Tracks section and checks every
// video track.
func (s *Session) buildTracks(tracks *ebml.Element) {
	for _, entry := range tracks.FindAll(schema.IDTrackEntry) {
		typ, _ := entry.UintOr(schema.IDTrackType, 0)
		numEl := entry.FindFirst(schema.IDTrackNumber)
		var num uint64
		if numEl != nil {
			num = numEl.Uint
		}
		if typ == schema.TrackTypeVideo {
			s.HasVideo = true
			s.checkVideo(entry, num)
		}
		if numEl == nil {
			continue
		}
		if prev, dup := s.Registry.byNumber[num]; dup {
			s.Sink.Errorf(0x308, "Track #%d at %d uses the same number as the track at %d", num, entry.Offset, prev.Entry.Offset)
			continue
		}
		t := &Track{
			Number: num,
			Type:   typ,
			Entry:  entry,
		}
		switch typ {
		case schema.TrackTypeVideo:
			t.Kind = KindVideo
		case schema.TrackTypeAudio:
			t.Kind = KindAudio
		}
		lacing, _ := entry.UintOr(schema.IDFlagLacing, 1)
		t.Lacing = lacing != 0
		t.CodecID, _ = entry.StringOf(schema.IDCodecID)

		s.Registry.byNumber[num] = t
		s.Registry.order = append(s.Registry.order, t)
		if num > s.Registry.MaxNumber {
			s.Registry.MaxNumber = num
		}
	}
}

// checkTracks runs the codec, track type and attachment link checks.
func (s *Session) checkTracks() {
	var uids []uint64
	if s.Attachments != nil {
		for _, f := range s.Attachments.FindAll(schema.IDAttachedFile) {
			if uid := f.FindFirst(schema.IDFileUID); uid != nil {
				uids = append(uids, uid.Uint)
			}
		}
		sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	}

	for _, entry := range s.Tracks.FindAll(schema.IDTrackEntry) {
		numEl := entry.FindFirst(schema.IDTrackNumber)
		if numEl != nil {
			s.checkCodec(entry, numEl.Uint)
		}

		who := fmt.Sprintf("Track at %d", entry.Offset)
		if numEl != nil {
			who = fmt.Sprintf("Track #%d", numEl.Uint)
		}
		for _, link := range entry.FindAll(schema.IDAttachmentLink) {
			if s.Attachments == nil {
				s.Sink.Errorf(0x305, "%s has attachment links but not attachments in the file", who)
				break
			}
			i := sort.Search(len(uids), func(i int) bool { return uids[i] >= link.Uint })
			if i == len(uids) || uids[i] != link.Uint {
				s.Sink.Errorf(0x306, "%s attachment link UID 0x%x not found in attachments", who, link.Uint)
			}
		}
	}
}

func (s *Session) checkCodec(entry *ebml.Element, num uint64) {
	typEl := entry.FindFirst(schema.IDTrackType)
	codecEl := entry.FindFirst(schema.IDCodecID)
	switch {
	case codecEl == nil:
		s.Sink.Errorf(0x300, "Track #%d has no CodecID defined", num)
		return
	case typEl == nil:
		s.Sink.Errorf(0x301, "Track #%d has no type defined", num)
		return
	}
	if !s.Profile.IsWebM() {
		return
	}
	typ, codec := typEl.Uint, codecEl.Str
	if typ != schema.TrackTypeAudio && typ != schema.TrackTypeVideo {
		s.Sink.Errorf(0x302, "Track #%d type %d not supported for profile '%s'", num, typ, s.Profile)
	}
	if strings.ToUpper(codec) != codec {
		s.Sink.Warnf(0x307, "Track #%d codec %s should be uppercase", num, codec)
	}
	switch {
	case typ == schema.TrackTypeAudio && !strings.EqualFold(codec, "A_VORBIS"):
		s.Sink.Errorf(0x303, "Track #%d codec %s not supported for profile '%s'", num, codec, s.Profile)
	case typ == schema.TrackTypeVideo && !strings.EqualFold(codec, "V_VP8"):
		s.Sink.Errorf(0x304, "Track #%d codec %s not supported for profile '%s'", num, codec, s.Profile)
	}
}
