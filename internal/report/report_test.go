package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/samples"
	"example.com/mkvgate/internal/validate"
)

func runSample(t *testing.T, data []byte) (*diag.Sink, *validate.Result) {
	t.Helper()
	sink := diag.NewSink(nil, false)
	res, err := validate.ValidateReader(context.Background(), bytes.NewReader(data), validate.Options{Details: true}, sink)
	if err != nil {
		t.Fatalf("ValidateReader: %v", err)
	}
	return sink, res
}

func TestAcceptanceJSONRoundTrip(t *testing.T) {
	sink, res := runSample(t, samples.Defects()[0].Data)
	acc := NewAcceptance(sink, res)
	acc.Digest = "ab12"
	path := filepath.Join(t.TempDir(), "acceptance.json")
	if err := SaveAcceptanceJSON(acc, path); err != nil {
		t.Fatalf("SaveAcceptanceJSON: %v", err)
	}
	got, err := LoadAcceptanceJSON(path)
	if err != nil {
		t.Fatalf("LoadAcceptanceJSON: %v", err)
	}
	if got.Summary.Pass || got.Summary.Errors != res.Errors || got.Profile != "matroska v2" {
		t.Fatalf("summary = %+v", got.Summary)
	}
	if len(got.Findings) != len(res.Diagnostics) || len(got.Tracks) != 2 || got.Digest != "ab12" {
		t.Fatalf("acceptance = %+v", got)
	}
}

func TestSaveAcceptancePDF(t *testing.T) {
	sink, res := runSample(t, samples.Valid())
	acc := NewAcceptance(sink, res)
	acc.File = "valid.mkv"
	acc.Digest = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := SaveAcceptancePDF(acc, path); err != nil {
		t.Fatalf("SaveAcceptancePDF: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a PDF: %q", b[:8])
	}
}

func TestDigestToQR(t *testing.T) {
	if _, err := DigestToQR("  -- ", 64); err == nil {
		t.Fatalf("empty digest accepted")
	}
	png, err := DigestToQR("deadBEEF", 0)
	if err != nil {
		t.Fatalf("DigestToQR: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("not a PNG")
	}
	if got := sanitizeHash(" de:ad-BE ef "); got != "DEADBEEF" {
		t.Fatalf("sanitizeHash = %q", got)
	}
}
