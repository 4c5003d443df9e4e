package diag

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

type Severity string

const (
	ERROR Severity = "ERROR"
	WARN  Severity = "WARN"
)

// Prefix is the short tag printed in front of the code on a diagnostic line.
func (s Severity) Prefix() string {
	if s == WARN {
		return "WRN"
	}
	return "ERR"
}

type Diagnostic struct {
	Ts       *time.Time `json:"ts,omitempty"`
	File     string     `json:"file,omitempty"`
	Code     int        `json:"code"`
	Id       string     `json:"id"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
}

// Line renders the record the way it is printed on stdout.
func (d Diagnostic) Line() string {
	return d.Id + ": " + d.Message
}

func label(sev Severity, code int) string {
	return fmt.Sprintf("%s%03X", sev.Prefix(), code)
}

type AcceptanceReport struct {
	Summary struct {
		Total    int  `json:"total"`
		Errors   int  `json:"errors"`
		Warnings int  `json:"warnings"`
		Pass     bool `json:"pass"`
	} `json:"summary"`
	Findings []Diagnostic `json:"findings,omitempty"`
}

// Sink collects diagnostics in emission order. Warnings are dropped entirely
// when suppressed; errors are always kept.
type Sink struct {
	mu                sync.Mutex
	file              string
	noWarn            bool
	includeTimestamps bool
	out               io.Writer
	records           []Diagnostic
	errs, warns       int

	// OnRecord, when set, is called for every kept record.
	OnRecord func(Diagnostic)
}

// NewSink returns a sink printing one line per record to out (may be nil).
func NewSink(out io.Writer, noWarn bool) *Sink {
	return &Sink{out: out, noWarn: noWarn}
}

// SetFile tags subsequent records with the input path.
func (s *Sink) SetFile(path string) {
	s.mu.Lock()
	s.file = path
	s.mu.Unlock()
}

func (s *Sink) Errorf(code int, format string, args ...any) {
	s.add(ERROR, code, fmt.Sprintf(format, args...))
}

func (s *Sink) Warnf(code int, format string, args ...any) {
	s.add(WARN, code, fmt.Sprintf(format, args...))
}

func (s *Sink) add(sev Severity, code int, msg string) {
	s.mu.Lock()
	if sev == WARN && s.noWarn {
		s.mu.Unlock()
		return
	}
	d := Diagnostic{
		File:     s.file,
		Code:     code,
		Id:       label(sev, code),
		Severity: sev,
		Message:  msg,
	}
	if s.includeTimestamps {
		now := time.Now().UTC()
		d.Ts = &now
	}
	if sev == ERROR {
		s.errs++
	} else {
		s.warns++
	}
	s.records = append(s.records, d)
	out, hook := s.out, s.OnRecord
	s.mu.Unlock()

	if out != nil {
		fmt.Fprintln(out, d.Line())
	}
	if hook != nil {
		hook(d)
	}
}

// Records returns a copy of the kept records in emission order.
func (s *Sink) Records() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Diagnostic(nil), s.records...)
}

func (s *Sink) Errors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

func (s *Sink) Warnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warns
}

// HasErrors reports whether any error-severity record was emitted.
func (s *Sink) HasErrors() bool {
	return s.Errors() > 0
}

// Has reports whether a record with the given code was kept.
func (s *Sink) Has(code int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.records {
		if d.Code == code {
			return true
		}
	}
	return false
}

func (s *Sink) SetConfigValue(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case "diag.include_timestamps":
		switch v := value.(type) {
		case bool:
			s.includeTimestamps = v
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				s.includeTimestamps = b
			}
		}
	case "diag.no_warn":
		if b, ok := value.(bool); ok {
			s.noWarn = b
		}
	}
}

// WriteNDJSON writes one JSON object per record.
func (s *Sink) WriteNDJSON(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, d := range s.Records() {
		b, err := json.Marshal(d)
		if err != nil {
			return err
		}
		bw.Write(b)
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func (s *Sink) WriteDiagnosticsNDJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.WriteNDJSON(f); err != nil {
		return err
	}
	return f.Close()
}

func (s *Sink) MakeAcceptance() AcceptanceReport {
	var rep AcceptanceReport
	recs := s.Records()
	for _, d := range recs {
		switch d.Severity {
		case ERROR:
			rep.Summary.Errors++
		case WARN:
			rep.Summary.Warnings++
		}
	}
	rep.Summary.Total = len(recs)
	rep.Summary.Pass = rep.Summary.Errors == 0
	rep.Findings = recs
	return rep
}
