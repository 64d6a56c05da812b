package proflog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger("", "info", false)

// NewZeroLogger builds the process logger. Output goes to filepath when it is
// set and to stdout otherwise. JSON is the default format, pretty switches to
// the human readable console writer.
func NewZeroLogger(filepath string, level string, pretty bool) *zerolog.Logger {
	var out io.Writer = os.Stdout
	if filepath != "" {
		f, err := os.OpenFile(filepath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			out = f
		}
	}
	if pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(out).With().Timestamp().Logger().Level(parseLevel(level))

	return &logger
}

// ReloadLogger replaces the package logger, keeping the current level.
func ReloadLogger(filepath string, pretty bool) {
	level := Zero.GetLevel()
	l := NewZeroLogger(filepath, "info", pretty).Level(level)
	Zero = &l
}

func UpdateZeroLogLevel(logLevel string) error {
	level := parseLevel(logLevel)
	zeroLogger := Zero.With().Logger().Level(level)
	Zero = &zeroLogger
	return nil
}

// OrDefault returns l, or the package logger when l is nil.
func OrDefault(l *zerolog.Logger) *zerolog.Logger {
	if l == nil {
		return Zero
	}
	return l
}

// DiagnosticEnabled reports whether l would emit debug events. Expensive
// diagnostics (parameter resolution) are gated on it.
func DiagnosticEnabled(l *zerolog.Logger) bool {
	return l.GetLevel() <= zerolog.DebugLevel
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}
