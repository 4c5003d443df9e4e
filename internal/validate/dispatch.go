package validate

import (
	"context"
	"errors"
	"io"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// level1 describes how a singleton level-1 section is kept and reported.
type level1 struct {
	label     string
	extraCode int
	readCode  int
	liveCode  int
	slot      func(*Session) **ebml.Element
}

var sections = map[uint32]level1{
	schema.IDInfo:        {"SegmentInfo", 0x110, 0x111, 0, func(s *Session) **ebml.Element { return &s.Info }},
	schema.IDTracks:      {"TrackInfo", 0x120, 0x121, 0, func(s *Session) **ebml.Element { return &s.Tracks }},
	schema.IDCues:        {"Cues", 0x130, 0x131, 0x171, func(s *Session) **ebml.Element { return &s.Cues }},
	schema.IDChapters:    {"Chapters", 0x140, 0x141, 0x172, func(s *Session) **ebml.Element { return &s.Chapters }},
	schema.IDTags:        {"Tags", 0x150, 0x151, 0, func(s *Session) **ebml.Element { return &s.Tags }},
	schema.IDAttachments: {"Attachments", 0x160, 0x161, 0x173, func(s *Session) **ebml.Element { return &s.Attachments }},
}

// readFailureCode is the fatal code used when a level-1 element cannot be
// decoded.
func readFailureCode(id uint32) int {
	switch id {
	case schema.IDSeekHead:
		return 0x100
	case schema.IDCluster:
		return 0x180
	}
	if sec, ok := sections[id]; ok {
		return sec.readCode
	}
	return 0x044
}

// readSegment walks the level-1 children of the Segment in file order.
func (s *Session) readSegment(ctx context.Context, r *ebml.Reader) error {
	log := common.Logger()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		el, err := r.Next(s.Segment)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			log.Debug("segment truncated", "pos", r.Pos())
			return nil
		}
		if err != nil {
			if el == nil {
				return s.fatal(0x044, err, "Failed to read a level 1 element at %d", r.Pos())
			}
			return s.fatal(readFailureCode(el.ID), err, "Failed to read the %s at %d size %d", el.Name(), el.Offset, el.Size)
		}

		if err := s.dispatch(r, el); err != nil {
			return err
		}
		s.lastLevel1 = el
		s.Elements++
		if s.Opts.Metrics != nil {
			s.Opts.Metrics.AddElement(el.FullSize())
		}
		s.progress()
	}
}

func (s *Session) dispatch(r *ebml.Reader, el *ebml.Element) error {
	if sem, ok := s.Segment.Class.Semantic(el.ID); ok && sem.DisabledFor(s.Profile) {
		s.Sink.Errorf(0x201, "Invalid %s for profile '%s' at %d in %s", el.Name(), s.Profile, el.Offset, s.Segment.Name())
	}
	switch el.ID {
	case schema.IDCluster:
		if err := r.ReadData(el, true); err != nil {
			return s.fatal(0x180, err, "Failed to read the Cluster at %d size %d", el.Offset, el.Size)
		}
		s.Clusters = append(s.Clusters, el)
		if s.Opts.Metrics != nil {
			s.Opts.Metrics.AddCluster()
		}
		s.audit(el)
		return nil

	case schema.IDSeekHead:
		if s.Opts.Live {
			s.Sink.Errorf(0x170, "The live stream has a SeekHead at %d", el.Offset)
			return s.skip(r, el)
		}
		if err := r.ReadData(el, false); err != nil {
			return s.fatal(0x100, err, "Failed to read the SeekHead at %d size %d", el.Offset, el.Size)
		}
		switch {
		case s.SeekHead == nil:
			s.SeekHead = el
		case s.SeekHead2 == nil:
			s.Sink.Warnf(0x103, "Unnecessary secondary SeekHead was found at %d", el.Offset)
			s.SeekHead2 = el
		default:
			// audited but not kept
			s.Sink.Errorf(0x101, "Extra SeekHead found at %d (size %d)", el.Offset, el.Size)
		}
		s.audit(el)
		return nil
	}

	if sec, ok := sections[el.ID]; ok {
		if s.Opts.Live && sec.liveCode != 0 {
			s.Sink.Errorf(sec.liveCode, "The live stream has %s at %d", sec.label, el.Offset)
			return s.skip(r, el)
		}
		if err := r.ReadData(el, false); err != nil {
			return s.fatal(sec.readCode, err, "Failed to read the %s at %d size %d", sec.label, el.Offset, el.Size)
		}
		slot := sec.slot(s)
		if *slot != nil {
			s.Sink.Errorf(sec.extraCode, "Extra %s found at %d (size %d)", sec.label, el.Offset, el.Size)
			el.Release()
			return nil
		}
		*slot = el
		s.audit(el)
		switch el.ID {
		case schema.IDInfo:
			if s.Opts.Live && el.FindFirst(schema.IDDuration) != nil {
				s.Sink.Errorf(0x112, "The live Segment has a duration set at %d", el.Offset)
			}
		case schema.IDTracks:
			s.buildTracks(el)
		case schema.IDChapters, schema.IDTags:
			// only the position matters past this point
			el.Release()
		}
		return nil
	}

	if !el.Known() {
		s.Sink.Errorf(0x080, "Unknown element %s at %d size %d", el.Name(), el.Offset, el.Size)
	} else if el.ID == schema.IDVoid {
		s.VoidBytes += el.FullSize()
	}
	return s.skip(r, el)
}

func (s *Session) skip(r *ebml.Reader, el *ebml.Element) error {
	if el.Size < 0 && !el.Known() {
		return s.fatal(0x044, ebml.ErrUnknownSize, "The %s at %d has an unknown size", el.Name(), el.Offset)
	}
	if err := r.Skip(el); err != nil {
		return s.fatal(readFailureCode(el.ID), err, "Failed to read the %s at %d size %d", el.Name(), el.Offset, el.Size)
	}
	return nil
}
