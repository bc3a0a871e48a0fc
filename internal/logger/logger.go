// Package logger provides leveled logging on top of the standard log package.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel maps a level name to a Level. Unknown names fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

type leveled struct {
	mu     sync.RWMutex
	level  Level
	logger *log.Logger
}

var std = &leveled{
	level:  InfoLevel,
	logger: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
}

// Init configures the package logger. Format "text" adds file:line to every entry.
func Init(level, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	std.mu.Lock()
	std.level = ParseLevel(level)
	std.logger = log.New(os.Stderr, "", flags)
	std.mu.Unlock()
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	std.logger.SetOutput(w)
	std.mu.Unlock()
}

// Enabled reports whether messages at l are emitted.
func Enabled(l Level) bool {
	std.mu.RLock()
	defer std.mu.RUnlock()
	return std.level <= l
}

func output(l Level, tag, format string, args ...interface{}) {
	std.mu.RLock()
	defer std.mu.RUnlock()
	if std.level > l {
		return
	}
	_ = std.logger.Output(3, fmt.Sprintf("["+tag+"] "+format, args...))
}

// Debug logs a message at DebugLevel.
func Debug(format string, args ...interface{}) { output(DebugLevel, "DEBUG", format, args...) }

// Info logs a message at InfoLevel.
func Info(format string, args ...interface{}) { output(InfoLevel, "INFO", format, args...) }

// Warn logs a message at WarnLevel.
func Warn(format string, args ...interface{}) { output(WarnLevel, "WARN", format, args...) }

// Error logs a message at ErrorLevel.
func Error(format string, args ...interface{}) { output(ErrorLevel, "ERROR", format, args...) }

// Fatal logs a message and exits the process.
func Fatal(format string, args ...interface{}) {
	std.mu.RLock()
	_ = std.logger.Output(2, fmt.Sprintf("[FATAL] "+format, args...))
	std.mu.RUnlock()
	os.Exit(1)
}
