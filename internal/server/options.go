package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/schema"
	"example.com/mkvgate/internal/validate"
)

// Options configures server creation.
type Options struct {
	StorageDir string
	// Concurrency bounds the number of validations running at once.
	Concurrency int
	// MaxUploadBytes caps request bodies; 0 means no limit.
	MaxUploadBytes int64
	// Defaults are the validation options used when a request does not set them.
	Defaults validate.Options
	History  *common.History
}

// ProfileInfo describes one container profile in /profiles.
type ProfileInfo struct {
	Name string `json:"name"`
	Mask uint8  `json:"mask"`
	WebM bool   `json:"webm,omitempty"`
}

func profileList() []ProfileInfo {
	var out []ProfileInfo
	for _, p := range schema.Profiles() {
		out = append(out, ProfileInfo{Name: p.String(), Mask: uint8(p), WebM: p.IsWebM()})
	}
	return out
}

// parseValidateQuery overlays the live, divx, details and nowarn query
// parameters on def. A parameter given without a value counts as true.
func parseValidateQuery(q url.Values, def validate.Options) (validate.Options, error) {
	opts := def
	flags := []struct {
		name string
		dst  *bool
	}{
		{"live", &opts.Live},
		{"divx", &opts.DivX},
		{"details", &opts.Details},
		{"nowarn", &opts.NoWarn},
	}
	for _, f := range flags {
		if !q.Has(f.name) {
			continue
		}
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			*f.dst = true
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("query %s: %w", f.name, err)
		}
		*f.dst = v
	}
	opts.Progress = nil
	opts.Metrics = nil
	return opts, nil
}
