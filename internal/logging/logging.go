// Package logging configures the process-wide slog default.
package logging

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where diagnostic logs go.
type Options struct {
	Debug bool
	// Quiet keeps only errors. Debug wins when both are set.
	Quiet bool
	// File, when set, also writes logs to a size-rotated file.
	File string
	// Writer defaults to stderr.
	Writer io.Writer
}

// Init installs a charmbracelet handler as the slog default and returns the
// logger plus a closer for the log file (nil when no file is used).
func Init(opts Options) (*slog.Logger, io.Closer) {
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	level := charmlog.InfoLevel
	switch {
	case opts.Debug:
		level = charmlog.DebugLevel
	case opts.Quiet:
		level = charmlog.ErrorLevel
	}
	handler := charmlog.NewWithOptions(out, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "spud",
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer
}
