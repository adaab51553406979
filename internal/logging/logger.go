// Package logging provides structured logging for the saupload CLI.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with the console formatting saupload uses on stdout.
// The stage progress bar (internal/progress) renders to stdout as well.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer
}

// New creates a logger writing to stdout.
func New() *Logger {
	return NewWithOutput(os.Stdout)
}

// NewWithOutput creates a logger writing to the given output. Useful for
// redirecting logs above an active progress bar (progress.StageBar.Println
// covers the common case; this exists for callers that want full control).
func NewWithOutput(w io.Writer) *Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return &Logger{
		zlog:   zerolog.New(output).With().Timestamp().Logger(),
		output: output,
	}
}

// Info returns an info-level event.
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Error returns an error-level event.
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Debug returns a debug-level event.
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Warn returns a warn-level event.
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Fatal returns a fatal-level event (os.Exit(1) after writing).
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

// With starts a child-logger builder for attaching fields such as
// uploader/credential/stage to every subsequent line.
func (l *Logger) With() zerolog.Context { return l.zlog.With() }

// WithFields returns a child logger carrying uploader/credential/stage
// context, the shape every session-loop log line needs (spec §4.8).
func (l *Logger) WithFields(uploader, credential string, stage int) *Logger {
	ctx := l.zlog.With().Str("uploader", uploader)
	if credential != "" {
		ctx = ctx.Str("credential", credential)
	}
	if stage > 0 {
		ctx = ctx.Int("stage", stage)
	}
	return &Logger{zlog: ctx.Logger(), output: l.output}
}

// SetOutput redirects the logger, preserving formatting.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zlog = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer { return l.output }

// SetGlobalLevel sets the process-wide minimum log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}
