package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"example.com/mkvgate/internal/common"
	"example.com/mkvgate/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and maps the outcome to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if a.logCloser != nil {
		a.logCloser.Close()
	}
	if err == nil {
		return exitValid
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		if ee.Err != nil {
			fmt.Fprintln(stderr, "mkvgate:", ee.Err)
		}
		return ee.Code
	}
	fmt.Fprintln(stderr, "mkvgate:", err)
	fmt.Fprintln(stderr, "Run 'mkvgate --help' for usage.")
	return exitUsage
}

// app holds the parsed flags shared by every command.
type app struct {
	stdout, stderr io.Writer

	configPath string
	logFile    string
	verbose    bool
	logCloser  io.Closer

	run runConfig
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mkvgate [options] <path>",
		Short: "Check Matroska, WebM and DivX files for structural and semantic errors",
		Long: `mkvgate reads an EBML/Matroska file and reports every structural or
semantic problem it finds, one line per diagnostic (ERRxxx / WRNxxx).

Exit status: 0 valid, 1 errors found, 2 fatal problem, 3 usage error.`,
		Version:           fmt.Sprintf("%s (built %s)", version, buildDate),
		Args:              cobra.ExactArgs(1),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := a.validatePath(cmd.Context(), args[0], a.run, a.stdout)
			if code != exitValid || err != nil {
				return &ExitError{Code: code, Err: err}
			}
			return nil
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML or TOML file with option defaults")
	pf.StringVar(&a.logFile, "log-file", "", "also write logs to this file, rotated")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")
	pf.BoolVar(&a.run.opts.NoWarn, "no-warn", false, "do not report warnings")
	pf.BoolVar(&a.run.opts.Live, "live", false, "the file is a live stream")
	pf.BoolVar(&a.run.opts.Details, "details", false, "show per-track bitrates of valid files")
	pf.BoolVar(&a.run.opts.DivX, "divx", false, "use the DivX profiles")
	pf.StringVar(&a.run.history, "history", "", "append the run summary to this JSONL file")
	pf.BoolVar(&a.run.metrics, "metrics", false, "print elements, clusters and throughput")

	f := root.Flags()
	f.StringVar(&a.run.diagnostics, "diagnostics", "", "write the diagnostics as NDJSON to this file")
	f.StringVar(&a.run.acceptance, "acceptance", "", "write the acceptance summary JSON to this file")
	f.StringVar(&a.run.pdf, "pdf", "", "write a PDF report to this file")
	f.BoolVar(&a.run.progress, "progress", false, "show a progress line instead of dots")

	root.AddCommand(a.batchCmd(), a.reportCmd(), a.historyCmd())
	return root
}

// setup loads the config file, lets explicit flags win over it and
// installs the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return &ExitError{Code: exitUsage, Err: fmt.Errorf("config: %w", err)}
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	keep := func(name string, dst *bool, v bool) {
		if !flags.Changed(name) {
			*dst = v
		}
	}
	keep("no-warn", &a.run.opts.NoWarn, cfg.Validate.NoWarn)
	keep("live", &a.run.opts.Live, cfg.Validate.Live)
	keep("details", &a.run.opts.Details, cfg.Validate.Details)
	keep("divx", &a.run.opts.DivX, cfg.Validate.DivX)
	keep("metrics", &a.run.metrics, cfg.Output.Metrics)
	keep("verbose", &a.verbose, cfg.Logs.Verbose)
	if !flags.Changed("history") {
		a.run.history = cfg.Output.History
	}
	logFile := a.logFile
	if logFile == "" {
		logFile = cfg.Logs.Path("mkvgate.log")
	}
	a.logCloser = common.SetupLogging(common.LogOptions{
		Verbose:    a.verbose,
		File:       logFile,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.Compress,
	})
	common.Logger().Debug("starting", "version", version, "config", a.configPath)
	return nil
}
