// Package logging builds the zerolog logger shared by the crawler components.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger.
type Options struct {
	Level   string    // debug, info, warn or error; empty means info
	File    string    // optional rotating log file
	Console io.Writer // defaults to os.Stderr
}

// New returns a logger writing human-readable lines to the console and, when
// File is set, JSON lines to a size-rotated file.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly},
	}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}
