package netguard

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logging surface used by the client. Key/value
// pairs follow the message, as in Debug("retry", "attempt", 2).
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type zerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger to Logger.
func NewZerologLogger(l zerolog.Logger) Logger {
	return &zerologLogger{log: l}
}

// NewSimpleLogger returns a human readable console logger on stderr.
func NewSimpleLogger() Logger {
	w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return NewZerologLogger(zerolog.New(w).With().Timestamp().Str("component", "netguard").Logger())
}

func (z *zerologLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (z *zerologLogger) Info(msg string, keysAndValues ...interface{}) {
	z.log.Info().Fields(keysAndValues).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (z *zerologLogger) Error(msg string, keysAndValues ...interface{}) {
	z.log.Error().Fields(keysAndValues).Msg(msg)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// NopLogger discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
