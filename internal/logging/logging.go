// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls log level, format and the optional rotating file
type Options struct {
	Level      string
	Format     string // "console", "json" or "" for auto
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup installs the global logger. The returned closer flushes the log file.
func Setup(opts Options) (io.Closer, error) {
	return setup(opts, os.Stderr)
}

func setup(opts Options, stderr *os.File) (io.Closer, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, errors.Wrapf(err, "log level %q", opts.Level)
		}
		level = parsed
	}

	console := false
	switch strings.ToLower(opts.Format) {
	case "console":
		console = true
	case "json":
	case "":
		console = isatty.IsTerminal(stderr.Fd())
	default:
		return nil, errors.Errorf("unknown log format %q", opts.Format)
	}

	var out io.Writer = stderr
	if console {
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		// The file always gets JSON regardless of the console format
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	return closer, nil
}
