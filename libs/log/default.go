package log

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Supported values for the format argument to NewDefaultLogger.
const (
	LogFormatJSON = "json"
	LogFormatText = "plain"
)

// Supported values for the level argument to NewDefaultLogger.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelError = "error"
	LogLevelNone  = "none"
)

// defaultLogger wraps a zerolog.Logger to satisfy the Logger interface.
type defaultLogger struct {
	zerolog.Logger
}

// NewDefaultLogger returns a Logger writing to stdout in the given format
// ("json" or "plain") at the given level ("debug", "info", "error", or
// "none" to disable all output).
func NewDefaultLogger(format, level string) (Logger, error) {
	return NewDefaultLoggerWithOutput(format, level, os.Stdout)
}

// NewDefaultLoggerWithOutput is NewDefaultLogger with an explicit
// destination writer, used by tests to capture output.
func NewDefaultLoggerWithOutput(format, level string, out io.Writer) (Logger, error) {
	var writer io.Writer
	switch format {
	case LogFormatJSON:
		writer = out
	case LogFormatText:
		writer = zerolog.ConsoleWriter{Out: out, NoColor: true}
	default:
		return nil, fmt.Errorf("unsupported log format: %q", format)
	}

	zlvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := zerolog.New(NewSyncWriter(writer)).Level(zlvl).With().Timestamp().Logger()
	return &defaultLogger{Logger: logger}, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch level {
	case LogLevelDebug:
		return zerolog.DebugLevel, nil
	case LogLevelInfo:
		return zerolog.InfoLevel, nil
	case LogLevelError:
		return zerolog.ErrorLevel, nil
	case LogLevelNone:
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unsupported log level: %q", level)
	}
}

func (l *defaultLogger) Debug(msg string, keyvals ...interface{}) {
	l.logEvent(l.Logger.Debug(), msg, keyvals...)
}

func (l *defaultLogger) Info(msg string, keyvals ...interface{}) {
	l.logEvent(l.Logger.Info(), msg, keyvals...)
}

func (l *defaultLogger) Error(msg string, keyvals ...interface{}) {
	l.logEvent(l.Logger.Error(), msg, keyvals...)
}

func (l *defaultLogger) logEvent(e *zerolog.Event, msg string, keyvals ...interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

func (l *defaultLogger) With(keyvals ...interface{}) Logger {
	ctx := l.Logger.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyvals[i])
		}
		ctx = ctx.Interface(key, keyvals[i+1])
	}
	return &defaultLogger{Logger: ctx.Logger()}
}
