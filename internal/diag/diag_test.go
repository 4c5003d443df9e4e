package diag

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func TestSinkLines(t *testing.T) {
	var out bytes.Buffer
	s := NewSink(&out, false)
	s.Errorf(0xC2, "The Cluster timecode is not incrementing")
	s.Warnf(0x861, "The %s element is not referenced", "Tags")
	s.Errorf(3, "EBML head not found")

	want := "ERR0C2: The Cluster timecode is not incrementing\n" +
		"WRN861: The Tags element is not referenced\n" +
		"ERR003: EBML head not found\n"
	if out.String() != want {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}
	if s.Errors() != 2 || s.Warnings() != 1 || !s.HasErrors() {
		t.Fatalf("counts = %d/%d", s.Errors(), s.Warnings())
	}
	if !s.Has(0x861) || s.Has(0x860) {
		t.Fatalf("Has mismatch")
	}
}

func TestNoWarnDropsWarnings(t *testing.T) {
	var out bytes.Buffer
	s := NewSink(&out, true)
	s.Warnf(0x800, "no cues")
	if out.Len() != 0 || len(s.Records()) != 0 || s.Warnings() != 0 {
		t.Fatalf("suppressed warning leaked: %q", out.String())
	}
	if s.HasErrors() {
		t.Fatalf("warnings must never make a run fail")
	}
	s.Errorf(0x42, "size mismatch")
	if len(s.Records()) != 1 {
		t.Fatalf("errors must not be suppressed")
	}
}

func TestOnRecordAndAcceptance(t *testing.T) {
	s := NewSink(nil, false)
	var seen []string
	s.OnRecord = func(d Diagnostic) { seen = append(seen, d.Id) }
	s.Warnf(0xC0, "first block is not a keyframe")
	s.Errorf(0xB2, "unknown track")
	if strings.Join(seen, ",") != "WRN0C0,ERR0B2" {
		t.Fatalf("seen = %v", seen)
	}
	rep := s.MakeAcceptance()
	if rep.Summary.Total != 2 || rep.Summary.Errors != 1 || rep.Summary.Warnings != 1 || rep.Summary.Pass {
		t.Fatalf("summary = %+v", rep.Summary)
	}
}

func TestWriteDiagnosticsNDJSON(t *testing.T) {
	s := NewSink(nil, false)
	s.SetFile("in.mkv")
	s.Errorf(0x200, "Missing element PixelWidth in Video at 10")
	s.SetConfigValue("diag.include_timestamps", "true")
	s.Warnf(0xD0, "too much void")

	path := filepath.Join(t.TempDir(), "diag.jsonl")
	if err := s.WriteDiagnosticsNDJSON(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	var first, second Diagnostic
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Id != "ERR200" || first.File != "in.mkv" || first.Ts != nil {
		t.Fatalf("first = %+v", first)
	}
	if second.Ts == nil || second.Severity != WARN {
		t.Fatalf("second = %+v", second)
	}
}
