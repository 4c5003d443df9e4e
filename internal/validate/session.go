package validate

import (
	"fmt"
	"io"
	"strings"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// voidWarnThreshold is the amount of Void bytes tolerated before a warning.
const voidWarnThreshold = 4 * 1024

type Options struct {
	NoWarn  bool
	Live    bool
	Details bool
	DivX    bool

	// Progress receives one dot per level-1 element. Nil disables it.
	Progress io.Writer
	// Metrics, when set, counts level-1 elements and bytes.
	Metrics *common.Metrics
}

// Session holds all the state of one validation run. Every check reads and
// updates the session it is given; nothing is shared between runs except
// the read-only schema.
type Session struct {
	Opts    Options
	Schema  *schema.Registry
	Sink    *diag.Sink
	Profile schema.Profile

	Head    *ebml.Element
	Segment *ebml.Element

	SeekHead    *ebml.Element
	SeekHead2   *ebml.Element
	Info        *ebml.Element
	Tracks      *ebml.Element
	Cues        *ebml.Element
	Chapters    *ebml.Element
	Tags        *ebml.Element
	Attachments *ebml.Element

	Clusters []*ebml.Element
	Registry *TrackRegistry

	VoidBytes int64
	HasVideo  bool
	Elements  int

	minTime, maxTime int64
	haveTime         bool
	lastLevel1       *ebml.Element
	dots             int
}

// NewSession prepares a run. A nil sink collects records without printing.
func NewSession(opts Options, reg *schema.Registry, sink *diag.Sink) *Session {
	if reg == nil {
		reg = schema.Default()
	}
	if sink == nil {
		sink = diag.NewSink(nil, opts.NoWarn)
	}
	return &Session{
		Opts:     opts,
		Schema:   reg,
		Sink:     sink,
		Registry: newTrackRegistry(),
	}
}

// FatalError reports a condition that stopped the run. The matching record
// is already in the sink.
type FatalError struct {
	Code int
	Msg  string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal %03X: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("fatal %03X: %s", e.Code, e.Msg)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func (s *Session) fatal(code int, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	s.Sink.Errorf(code, "%s", msg)
	common.Logger().Debug("fatal condition", "code", fmt.Sprintf("%03X", code), "cause", cause)
	return &FatalError{Code: code, Msg: msg, Err: cause}
}

func (s *Session) progress() {
	w := s.Opts.Progress
	if w == nil {
		return
	}
	io.WriteString(w, ".")
	s.dots++
	if s.dots%60 == 0 {
		io.WriteString(w, "\r"+strings.Repeat(" ", 62)+"\r")
	}
}

// timecodeScale returns the SegmentInfo TimecodeScale or its default.
func (s *Session) timecodeScale() uint64 {
	def := s.Schema.Lookup(schema.IDTimecodeScale).DefaultUint()
	if s.Info == nil {
		return def
	}
	v, _ := s.Info.UintOr(schema.IDTimecodeScale, def)
	if v == 0 {
		return def
	}
	return v
}
