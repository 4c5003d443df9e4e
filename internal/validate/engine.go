package validate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// TrackSummary is the per-track outcome of a run.
type TrackSummary struct {
	Number     uint64 `json:"number"`
	Kind       string `json:"kind"`
	CodecID    string `json:"codec_id"`
	DataLength int64  `json:"data_length"`
	Bitrate    int64  `json:"bitrate"`
}

// Result summarises a run. It is returned even when the run stopped on a
// fatal condition.
type Result struct {
	File        string            `json:"file,omitempty"`
	Profile     string            `json:"profile"`
	Valid       bool              `json:"valid"`
	Fatal       bool              `json:"fatal"`
	Errors      int               `json:"errors"`
	Warnings    int               `json:"warnings"`
	Elements    int               `json:"elements"`
	Clusters    int               `json:"clusters"`
	Bytes       int64             `json:"bytes"`
	MuxingApp   string            `json:"muxing_app,omitempty"`
	WritingApp  string            `json:"writing_app,omitempty"`
	HasInfo     bool              `json:"has_info"`
	Tracks      []TrackSummary    `json:"tracks,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// ValidateFile opens path and runs one session over it. A failure to open
// the file is returned as a plain error; fatal validation conditions are
// returned as *FatalError along with the partial result.
func ValidateFile(ctx context.Context, path string, opts Options, sink *diag.Sink) (*Result, error) {
	r, err := ebml.Open(path, schema.Default())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()
	if sink != nil {
		sink.SetFile(path)
	}
	if opts.Metrics != nil && r.Size() > 0 {
		opts.Metrics.SetTotalBytes(r.Size())
	}
	s := NewSession(opts, r.Registry(), sink)
	res, err := s.Run(ctx, r)
	res.File = path
	return res, err
}

// ValidateReader runs one session over an arbitrary stream.
func ValidateReader(ctx context.Context, src io.Reader, opts Options, sink *diag.Sink) (*Result, error) {
	r := ebml.NewReader(src, schema.Default())
	s := NewSession(opts, r.Registry(), sink)
	return s.Run(ctx, r)
}

// Run executes both phases over r. The result is always returned.
func (s *Session) Run(ctx context.Context, r *ebml.Reader) (*Result, error) {
	if s.Opts.Metrics != nil {
		s.Opts.Metrics.Start()
		defer s.Opts.Metrics.Stop()
	}
	err := s.run(ctx, r)
	res := s.result(r)
	var fe *FatalError
	if errors.As(err, &fe) {
		res.Fatal = true
		res.Valid = false
	}
	common.Logger().Debug("run finished", "profile", s.Profile, "errors", res.Errors, "warnings", res.Warnings, "fatal", res.Fatal)
	return res, err
}

func (s *Session) run(ctx context.Context, r *ebml.Reader) error {
	log := common.Logger()

	head, err := r.Next(nil)
	if err != nil || head.ID != schema.IDEBML {
		return s.fatal(0x003, err, "EBML head not found! Are you sure it's a matroska/webm file?")
	}
	if err := r.ReadData(head, false); err != nil {
		return s.fatal(0x004, err, "Could not read the EBML head")
	}
	s.Head = head
	s.VoidBytes += s.checkUnknown(head)
	s.progress()

	if err := s.resolveProfile(head); err != nil {
		return err
	}
	log.Debug("profile resolved", "profile", s.Profile)

	for {
		el, err := r.Next(nil)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s.fatal(0x043, nil, "The file has no Segment")
			}
			return s.fatal(0x043, err, "Could not find the Segment")
		}
		if el.ID == schema.IDSegment {
			s.Segment = el
			break
		}
		if err := r.Skip(el); err != nil {
			return s.fatal(0x043, err, "Could not find the Segment")
		}
	}
	s.progress()
	log.Debug("segment found", "offset", s.Segment.Offset, "size", s.Segment.Size)

	if err := s.readSegment(ctx, r); err != nil {
		return err
	}
	return s.crossCheck()
}

// crossCheck runs the checks that need the whole segment.
func (s *Session) crossCheck() error {
	if s.Info == nil {
		if len(s.Clusters) > 0 {
			return s.fatal(0x040, nil, "The segment is missing a SegmentInfo")
		}
		s.Sink.Errorf(0x040, "The segment is missing a SegmentInfo")
	}

	if last := s.lastLevel1; last != nil && s.Segment.Size >= 0 && s.Segment.End() != last.End() {
		s.Sink.Errorf(0x042, "The segment's size %d doesn't match the position where it ends %d", s.Segment.End(), last.End())
	}

	if s.SeekHead == nil {
		if !s.Opts.Live {
			s.Sink.Warnf(0x801, "The segment has no SeekHead section")
		}
	} else {
		s.checkSeekHead(s.SeekHead)
	}
	if s.SeekHead2 != nil {
		s.checkSeekHead(s.SeekHead2)
	}

	if len(s.Clusters) > 0 {
		s.progress()
		if s.Tracks == nil {
			return s.fatal(0x041, nil, "The segment has Clusters but no TrackInfo section")
		}
		s.checkClusterStart()
		s.checkBlocks()
		s.checkPosSize()
		if s.Cues == nil && !s.Opts.Live {
			s.Sink.Warnf(0x800, "The segment has Clusters but no Cues section (bad for seeking)")
		}
	}
	if s.Cues != nil {
		s.checkCues()
	}

	s.progress()
	if s.Tracks != nil {
		s.checkTracks()
	}
	for _, t := range s.Registry.Tracks() {
		if t.DataLength == 0 {
			s.Sink.Warnf(0xB8, "Track #%d is defined but has no frame", t.Number)
		}
	}
	if s.VoidBytes > voidWarnThreshold {
		s.Sink.Warnf(0xD0, "There are %d bytes of void data", s.VoidBytes)
	}
	return nil
}

func (s *Session) result(r *ebml.Reader) *Result {
	res := &Result{
		Profile:     s.Profile.String(),
		Valid:       !s.Sink.HasErrors(),
		Errors:      s.Sink.Errors(),
		Warnings:    s.Sink.Warnings(),
		Elements:    s.Elements,
		Clusters:    len(s.Clusters),
		Bytes:       r.Pos(),
		Diagnostics: s.Sink.Records(),
	}
	if s.Info != nil {
		res.HasInfo = true
		res.MuxingApp, _ = s.Info.StringOf(schema.IDMuxingApp)
		res.WritingApp, _ = s.Info.StringOf(schema.IDWritingApp)
	}
	scale := s.timecodeScale()
	for _, t := range s.Registry.Tracks() {
		ts := TrackSummary{
			Number:     t.Number,
			Kind:       t.Kind.String(),
			CodecID:    t.CodecID,
			DataLength: t.DataLength,
		}
		if span := s.maxTime - s.minTime; s.haveTime && span > 0 {
			ts.Bitrate = int64(float64(t.DataLength) * 8e9 / (float64(span) * float64(scale)))
		}
		res.Tracks = append(res.Tracks, ts)
	}
	return res
}

// SummaryLines renders the closing lines printed after the diagnostics.
func (r *Result) SummaryLines(name, version string, details bool) []string {
	var out []string
	if r.Valid {
		out = append(out, fmt.Sprintf("%s %s: the file appears to be valid", name, version))
		if details {
			for _, t := range r.Tracks {
				out = append(out, fmt.Sprintf("Track #%d %18s %d bits/s", t.Number, t.CodecID, t.Bitrate))
			}
		}
	} else {
		out = append(out, fmt.Sprintf("%s %s: the file is invalid (%d errors, %d warnings)", name, version, r.Errors, r.Warnings))
	}
	if r.HasInfo {
		out = append(out, "\tfile created with "+orUnknown(r.MuxingApp)+" / "+orUnknown(r.WritingApp))
	}
	return out
}

func orUnknown(s string) string {
	if s == "" {
		return "<unknown>"
	}
	return s
}
