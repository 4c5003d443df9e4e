package report

import (
	"os"
	"time"

	"github.com/goccy/go-json"

	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/validate"
)

// Acceptance is the persisted verdict of one run: the diagnostic summary
// plus what is known about the input.
type Acceptance struct {
	diag.AcceptanceReport
	RunID      string                  `json:"runId,omitempty"`
	File       string                  `json:"file,omitempty"`
	Digest     string                  `json:"blake3,omitempty"`
	Size       int64                   `json:"size,omitempty"`
	Profile    string                  `json:"profile"`
	Fatal      bool                    `json:"fatal,omitempty"`
	MuxingApp  string                  `json:"muxingApp,omitempty"`
	WritingApp string                  `json:"writingApp,omitempty"`
	Tracks     []validate.TrackSummary `json:"tracks,omitempty"`
	Generated  time.Time               `json:"generated"`
}

// NewAcceptance combines the sink summary with the run result.
func NewAcceptance(sink *diag.Sink, res *validate.Result) Acceptance {
	acc := Acceptance{
		AcceptanceReport: sink.MakeAcceptance(),
		Generated:        time.Now().UTC(),
	}
	if res != nil {
		acc.File = res.File
		acc.Profile = res.Profile
		acc.Fatal = res.Fatal
		acc.MuxingApp = res.MuxingApp
		acc.WritingApp = res.WritingApp
		acc.Tracks = res.Tracks
		if res.Fatal {
			acc.Summary.Pass = false
		}
	}
	return acc
}

func SaveAcceptanceJSON(rep Acceptance, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadAcceptanceJSON(path string) (Acceptance, error) {
	var rep Acceptance
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
