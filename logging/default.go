package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLogger is backed by zerolog.
// Output is JSON unless the writer is a terminal, in which case a
// human-readable console writer is used.
type DefaultLogger struct {
	zl    zerolog.Logger
	level Level
}

// NewDefaultLogger creates a logger writing to stderr at InfoLevel.
func NewDefaultLogger() *DefaultLogger {
	if isTerminal(os.Stderr) {
		return NewConsoleLogger(os.Stderr)
	}
	return NewLogger(os.Stderr)
}

// NewConsoleLogger creates a human-readable logger writing to w at InfoLevel.
func NewConsoleLogger(w io.Writer) *DefaultLogger {
	return NewLogger(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly})
}

// NewLogger creates a JSON logger writing to w at InfoLevel.
func NewLogger(w io.Writer) *DefaultLogger {
	d := &DefaultLogger{
		zl: zerolog.New(w).With().Timestamp().Logger(),
	}
	d.SetLevel(InfoLevel)
	return d
}

func isTerminal(f *os.File) bool {
	if fileInfo, _ := f.Stat(); fileInfo != nil {
		return (fileInfo.Mode() & os.ModeCharDevice) != 0
	}
	return false
}

func toZerolog(level Level) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func withFields(e *zerolog.Event, fields []Fields) *zerolog.Event {
	for _, f := range fields {
		e = e.Fields(map[string]any(f))
	}
	return e
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	withFields(d.zl.Debug(), fields).Msg(msg)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	withFields(d.zl.Info(), fields).Msg(msg)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	withFields(d.zl.Warn(), fields).Msg(msg)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	withFields(d.zl.Error().Err(err), fields).Msg(msg)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	return &DefaultLogger{
		zl:    d.zl.With().Fields(map[string]any(fields)).Logger(),
		level: d.level,
	}
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
	d.zl = d.zl.Level(toZerolog(level))
}
