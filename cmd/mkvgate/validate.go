package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/report"
	"example.com/mkvgate/internal/validate"
)

// runConfig is what one validation needs besides the input path.
type runConfig struct {
	opts        validate.Options
	diagnostics string
	acceptance  string
	pdf         string
	history     string
	metrics     bool
	progress    bool
	// quiet keeps diagnostics and dots off the terminal.
	quiet bool
}

func (rc runConfig) needsDigest() bool {
	return rc.acceptance != "" || rc.pdf != "" || rc.history != ""
}

// validatePath runs one file and writes every artifact rc asks for. The
// returned code follows the process exit status.
func (a *app) validatePath(ctx context.Context, path string, rc runConfig, stdout io.Writer) (int, error) {
	log := common.Logger()
	opts := rc.opts
	out := stdout
	if rc.quiet {
		out = nil
	}
	sink := diag.NewSink(out, opts.NoWarn)

	var m *common.Metrics
	if rc.metrics || rc.progress {
		m = common.NewMetrics()
		opts.Metrics = m
	}
	stop := func() {}
	switch {
	case rc.quiet:
	case rc.progress:
		stop = common.StartProgressPrinter(a.stderr, m, 500*time.Millisecond)
	default:
		opts.Progress = a.stderr
	}

	res, err := validate.ValidateFile(ctx, path, opts, sink)
	stop()
	if opts.Progress != nil {
		fmt.Fprint(a.stderr, "\r"+strings.Repeat(" ", 62)+"\r")
	}
	if res == nil {
		return exitFatal, err
	}
	var fe *validate.FatalError
	if err != nil && !errors.As(err, &fe) {
		return exitFatal, err
	}
	if !rc.quiet {
		for _, line := range res.SummaryLines("mkvgate", version, opts.Details) {
			fmt.Fprintln(stdout, line)
		}
	}

	if err := a.writeArtifacts(path, rc, sink, res); err != nil {
		return exitFatal, err
	}
	if m != nil && rc.metrics {
		fmt.Fprintln(a.stderr, "Metrics:", m.Snapshot().Summary())
	}
	log.Debug("validated", "file", path, "valid", res.Valid, "fatal", res.Fatal)

	switch {
	case res.Fatal:
		return exitFatal, nil
	case !res.Valid:
		return exitInvalid, nil
	}
	return exitValid, nil
}

func (a *app) writeArtifacts(path string, rc runConfig, sink *diag.Sink, res *validate.Result) error {
	if rc.diagnostics != "" {
		if err := sink.WriteDiagnosticsNDJSON(rc.diagnostics); err != nil {
			return fmt.Errorf("write diagnostics: %w", err)
		}
	}
	if !rc.needsDigest() {
		return nil
	}
	digest, size, err := common.Blake3OfFile(path)
	if err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	acc := report.NewAcceptance(sink, res)
	acc.RunID = common.NewRunID()
	acc.Digest = digest
	acc.Size = size
	if rc.acceptance != "" {
		if err := report.SaveAcceptanceJSON(acc, rc.acceptance); err != nil {
			return fmt.Errorf("write acceptance: %w", err)
		}
	}
	if rc.pdf != "" {
		if err := report.SaveAcceptancePDF(acc, rc.pdf); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}
	if rc.history != "" {
		_, err := common.NewHistory(rc.history).Append(common.HistoryEntry{
			RunID:    acc.RunID,
			File:     path,
			Digest:   digest,
			Size:     size,
			Profile:  res.Profile,
			Valid:    res.Valid,
			Fatal:    res.Fatal,
			Errors:   res.Errors,
			Warnings: res.Warnings,
		})
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}
	return nil
}
