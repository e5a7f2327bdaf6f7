// Package logging builds the process-wide zerolog logger: a rotating file
// sink, optionally mirrored to a human-readable console writer.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger sinks.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	Console    bool
}

// New builds a logger per opts. An unknown level name falls back to info.
// The log file's directory is created if needed; a file that cannot be set
// up is not fatal, logging then goes to the console only, with a startup
// warning since the file is the durable record of the run.
func New(opts Options) zerolog.Logger {
	return newLogger(opts, os.Stderr)
}

func newLogger(opts Options, console io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var sinks []io.Writer
	var fileErr error
	if opts.File != "" {
		if fileErr = os.MkdirAll(filepath.Dir(opts.File), 0o755); fileErr == nil {
			sinks = append(sinks, &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
			})
		}
	}
	if opts.Console || len(sinks) == 0 {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen})
	}

	log := zerolog.New(zerolog.MultiLevelWriter(sinks...)).
		Level(level).
		With().Timestamp().Logger()

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("file", opts.File).Msg("file logging disabled")
	}
	return log
}
