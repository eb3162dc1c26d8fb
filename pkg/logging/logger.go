package logging

import "strings"

// Logger is a subsystem-bound logger. Plans, steps and phases each hold one,
// derived from their parent with Descend so that log lines carry the full
// plan/step/phase path.
type Logger struct {
	subsystem string
	depth     int
}

// NewLogger returns a root logger for the given subsystem.
func NewLogger(subsystem string) *Logger {
	return &Logger{subsystem: subsystem}
}

// Descend returns a child logger whose subsystem is nested under the receiver.
func (l *Logger) Descend(name string) *Logger {
	if l == nil {
		return NewLogger(name)
	}
	sub := name
	if l.subsystem != "" {
		sub = l.subsystem + "/" + strings.TrimPrefix(name, "/")
	}
	return &Logger{subsystem: sub, depth: l.depth + 1}
}

// Subsystem returns the full subsystem path of the logger.
func (l *Logger) Subsystem() string {
	if l == nil {
		return ""
	}
	return l.subsystem
}

// Depth is the nesting level, used for indented console output.
func (l *Logger) Depth() int {
	if l == nil {
		return 0
	}
	return l.depth
}

func (l *Logger) Debug(messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, l.Subsystem(), nil, messageFmt, args...)
}

func (l *Logger) Info(messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, l.Subsystem(), nil, messageFmt, args...)
}

func (l *Logger) Warn(messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, l.Subsystem(), nil, messageFmt, args...)
}

func (l *Logger) Error(err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, l.Subsystem(), err, messageFmt, args...)
}
