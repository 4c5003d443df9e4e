package common

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	loggerMu sync.Mutex
	logger   = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix: "mkvgate",
		Level:  log.WarnLevel,
	})
}

// Logger returns the process logger. It never writes to stdout.
func Logger() *log.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	return logger
}

// LogOptions selects the level and an optional rotated log file.
type LogOptions struct {
	Verbose    bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// SetupLogging installs a logger writing to stderr and, when File is set,
// to a lumberjack-rotated file. The returned closer flushes the rotator.
func SetupLogging(opts LogOptions) io.Closer {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   opts.Compress,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}
	l := newLogger(out)
	if opts.Verbose {
		l.SetLevel(log.DebugLevel)
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	return closer
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
