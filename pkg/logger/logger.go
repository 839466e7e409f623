// Package logger is the leveled logging facade used across the client.
//
// Call sites use printf-style helpers (Debugf, Infof, ...) and tag their
// messages with a bracketed component prefix such as "[kms]". Output is
// produced by a process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level is the verbosity threshold used by the logger.
//
// Lower values are more verbose.
type Level int

const (
	// LevelTrace enables extremely verbose logs (wire frames, reducer inputs).
	LevelTrace Level = iota
	// LevelDebug enables verbose logs intended for debugging.
	LevelDebug
	// LevelInfo enables informational logs (default).
	LevelInfo
	// LevelWarn enables only warnings and errors.
	LevelWarn
	// LevelError enables only error logs.
	LevelError
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

var (
	mu    sync.RWMutex
	level = LevelInfo
	base  = newZerolog(os.Stderr, LevelInfo)
)

// Filtering happens per logger; zerolog's global floor would otherwise
// drop trace output.
func init() {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}

func newZerolog(w io.Writer, l Level) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(zerologLevel(l))
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelTrace:
		return zerolog.TraceLevel
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel parses a log level string into a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// SetOutput replaces the writer used by the global logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newZerolog(w, level)
}

// SetConsole switches output to zerolog's human readable console writer.
func SetConsole(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newZerolog(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}, level)
}

// SetLevel sets the global log level threshold.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	base = base.Level(zerologLevel(l))
}

// Enabled reports whether a level would be emitted by the current configuration.
func Enabled(l Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return l >= level
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Tracef logs at TRACE level.
func Tracef(format string, args ...any) {
	l := current()
	l.Trace().Msgf(format, args...)
}

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) {
	l := current()
	l.Debug().Msgf(format, args...)
}

// Infof logs at INFO level.
func Infof(format string, args ...any) {
	l := current()
	l.Info().Msgf(format, args...)
}

// Warnf logs at WARN level.
func Warnf(format string, args ...any) {
	l := current()
	l.Warn().Msgf(format, args...)
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) {
	l := current()
	l.Error().Msgf(format, args...)
}
