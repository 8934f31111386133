// Package logger writes the process-wide diagnostic log of lexindex.
// Warnings are always written; debug and info lines, and section headers,
// only when verbose mode is on (--verbose). Long-running commands such as
// serve turn on timestamps.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level int

// Levels in increasing severity.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
)

// String returns the prefix written for the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "?"
	}
}

var (
	mu         sync.RWMutex
	minLevel             = LevelWarn
	output     io.Writer = os.Stderr
	timestamps bool
	now        = time.Now
)

// SetVerbose lowers the threshold to debug, or raises it back to warnings.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	if v {
		minLevel = LevelDebug
	} else {
		minLevel = LevelWarn
	}
}

// IsVerbose returns true if debug lines are written.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return minLevel == LevelDebug
}

// SetOutput sets the writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// SetTimestamps prefixes every line with an RFC 3339 UTC time when on.
func SetTimestamps(on bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = on
}

func write(level Level, format string, args []any) {
	mu.RLock()
	defer mu.RUnlock()
	if level < minLevel {
		return
	}
	prefix := "[" + level.String() + "] "
	if timestamps {
		prefix = now().UTC().Format(time.RFC3339) + " " + prefix
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug writes a trace line in verbose mode.
func Debug(format string, args ...any) {
	write(LevelDebug, format, args)
}

// Info writes a progress line in verbose mode.
func Info(format string, args ...any) {
	write(LevelInfo, format, args)
}

// Warn writes a swallowed error or degraded state. Always written.
func Warn(format string, args ...any) {
	write(LevelWarn, format, args)
}

// Section writes an operation header in verbose mode.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if minLevel == LevelDebug {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
