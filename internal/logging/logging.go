// Package logging provides zerolog-backed implementations of strapi.Logger.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger adapts a zerolog.Logger to the field-map logging interface used by
// the client.
type Logger struct {
	zl zerolog.Logger
}

// New returns a logger writing JSON lines to w, tagged with the service name.
// An unparsable level falls back to info.
func New(serviceName, level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}

	zl := zerolog.New(w).Level(parsed).With().
		Str("service", serviceName).
		Timestamp().
		Logger()

	return &Logger{zl: zl}
}

// NewConsole returns a human-readable logger for the CLI.
func NewConsole(serviceName, level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}

	return New(serviceName, level, zerolog.ConsoleWriter{Out: w, NoColor: true})
}

// FromZerolog wraps an existing zerolog logger.
func FromZerolog(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.zl.Debug().Fields(fields).Msg(msg)
}

func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.zl.Info().Fields(fields).Msg(msg)
}

func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.zl.Warn().Fields(fields).Msg(msg)
}

func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.zl.Error().Fields(fields).Msg(msg)
}
