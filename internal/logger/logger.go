package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Fields is the structured payload attached to a log line.
type Fields = map[string]interface{}

// Logger wraps zerolog.Logger with a field-map API used across the service.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a Logger for the given environment.
// Development gets colored console output at debug level; everything else
// gets JSON at info level.
func New(env string) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if env == "development" {
		return NewWithWriter(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}, zerolog.DebugLevel)
	}
	return NewWithWriter(os.Stdout, zerolog.InfoLevel)
}

// NewWithWriter creates a Logger writing JSON lines to w at the given level.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{
		zlog: zerolog.New(w).Level(level).With().Timestamp().Logger(),
	}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func apply(event *zerolog.Event, fields Fields) *zerolog.Event {
	for key, value := range fields {
		event = event.Interface(key, value)
	}
	return event
}

// Debug logs a debug message with optional fields.
func (l *Logger) Debug(msg string, fields Fields) {
	apply(l.zlog.Debug(), fields).Msg(msg)
}

// Info logs an info message with optional fields.
func (l *Logger) Info(msg string, fields Fields) {
	apply(l.zlog.Info(), fields).Msg(msg)
}

// Warn logs a warning message with optional fields.
func (l *Logger) Warn(msg string, fields Fields) {
	apply(l.zlog.Warn(), fields).Msg(msg)
}

// Error logs an error message with an error and optional fields.
func (l *Logger) Error(msg string, err error, fields Fields) {
	apply(l.zlog.Error().Err(err), fields).Msg(msg)
}

// Fatal logs a fatal message and exits the process.
func (l *Logger) Fatal(msg string, err error, fields Fields) {
	apply(l.zlog.Fatal().Err(err), fields).Msg(msg)
}

// With creates a child logger carrying additional fields.
func (l *Logger) With(fields Fields) *Logger {
	ctx := l.zlog.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &Logger{zlog: ctx.Logger()}
}

// WithRequestID creates a child logger tagged with a request ID.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("request_id", requestID).Logger()}
}

// Component creates a child logger tagged with the emitting subsystem.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// GetZerolog returns the underlying zerolog.Logger.
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zlog
}
