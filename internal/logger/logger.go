// Package logger prints levelled, coloured log lines.
package logger

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

var (
	debugColor = color.New(color.FgCyan)
	infoColor  = color.New(color.FgBlue)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	grayColor  = color.New(color.FgHiBlack)
)

// ParseLevel maps "debug", "info", "warn" or "error" to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	}
	return LevelInfo
}

func SetLevel(l Level) {
	current.Store(int32(l))
}

func enabled(l Level) bool {
	return Level(current.Load()) <= l
}

func emit(c *color.Color, tag, format string, args ...any) {
	ts := grayColor.Sprintf("[%s]", time.Now().Format("15:04:05"))
	fmt.Fprintf(color.Output, "%s %s\n", ts, c.Sprintf("%s %s", tag, fmt.Sprintf(format, args...)))
}

func Debug(format string, args ...any) {
	if enabled(LevelDebug) {
		emit(debugColor, "DEBUG", format, args...)
	}
}

func Info(format string, args ...any) {
	if enabled(LevelInfo) {
		emit(infoColor, "INFO ", format, args...)
	}
}

func Warn(format string, args ...any) {
	if enabled(LevelWarn) {
		emit(warnColor, "WARN ", format, args...)
	}
}

func Error(format string, args ...any) {
	if enabled(LevelError) {
		emit(errorColor, "ERROR", format, args...)
	}
}

// Request logs an HTTP request line with its status and duration.
func Request(method, path string, status int, d time.Duration) {
	if !enabled(LevelInfo) {
		return
	}
	c := infoColor
	switch {
	case status >= 500:
		c = errorColor
	case status >= 400:
		c = warnColor
	}
	emit(c, "HTTP ", "%-6s %-40s [%d] (%s)", method, path, status, d.Round(time.Microsecond))
}
