// Package log provides a global logger with configurable logging level. Both the daemon and the
// short-lived client commands log to stderr so that stdout stays reserved for command output.

package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Level int

const (
	LevelNone    Level = iota // Disables logging.
	LevelError                // Logs anamolies that are not expected to occur during normal use.
	LevelWarning              // Logs anamolies that are expected to occur occasionally during normal use.
	LevelInfo                 // Logs major events.
	LevelDebug                // Logs detailed IO
)

var (
	globalLogLevel = LevelInfo
	timestamps     bool
	output         io.Writer = os.Stderr
	logMutex       sync.Mutex
)

var labels = map[Level]string{
	LevelDebug:   "[debug]",
	LevelInfo:    "[info ]",
	LevelWarning: "[warn ]",
	LevelError:   "[error]",
}

var colors = map[Level]func(format string, a ...interface{}) string{
	LevelDebug:   color.CyanString,
	LevelInfo:    color.GreenString,
	LevelWarning: color.YellowString,
	LevelError:   color.RedString,
}

var levelNames = map[string]Level{
	"none":    LevelNone,
	"off":     LevelNone,
	"error":   LevelError,
	"warn":    LevelWarning,
	"warning": LevelWarning,
	"info":    LevelInfo,
	"debug":   LevelDebug,
}

// ParseLevel converts a case-insensitive level name ("error", "warn", "info", "debug", "none")
// into a Level.
func ParseLevel(name string) (Level, error) {
	if level, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return level, nil
	}
	return LevelNone, fmt.Errorf("unknown log level '%s'", name)
}

func SetLevel(level Level) {
	logMutex.Lock()
	defer logMutex.Unlock()
	globalLogLevel = level
}

// SetOutput redirects log messages to w. Tests use this to capture output.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	output = w
}

// SetTimestamps controls whether each line is prefixed with an RFC 3339 timestamp. The daemon
// enables them; one-shot commands leave them off.
func SetTimestamps(enabled bool) {
	logMutex.Lock()
	defer logMutex.Unlock()
	timestamps = enabled
}

func logLevel() Level {
	logMutex.Lock()
	defer logMutex.Unlock()
	return globalLogLevel
}

// Enabled reports whether messages at level would be written. Use it to skip formatting
// expensive debug output.
func Enabled(level Level) bool {
	return level != LevelNone && level <= logLevel()
}

func log(level Level, format string, a ...interface{}) {
	if !Enabled(level) {
		return
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	var msg string
	if timestamps {
		msg = time.Now().Format(time.RFC3339) + " "
	}
	msg += colors[level]("%s", labels[level]) + " "
	msg += fmt.Sprintf(format, a...)
	fmt.Fprintln(output, msg)
}

func Debug(format string, a ...interface{}) {
	log(LevelDebug, format, a...)
}
func Info(format string, a ...interface{}) {
	log(LevelInfo, format, a...)
}
func Warning(format string, a ...interface{}) {
	log(LevelWarning, format, a...)
}
func Error(format string, a ...interface{}) {
	log(LevelError, format, a...)
}
