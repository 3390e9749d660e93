// Package applog provides the daemon's small component-prefixed logger.
// The teacher codebase logs straight through the standard library rather
// than a third-party logging framework; this keeps that texture instead
// of introducing one for the daemon.
package applog

import (
	"fmt"
	"log"
	"os"
)

// Logger writes "[component] message" lines to the standard logger.
type Logger struct {
	prefix string
	std    *log.Logger
}

// New returns a Logger tagged with component, writing to stderr with a
// timestamp, matching the default flags most of the teacher's `log` call
// sites rely on implicitly.
func New(component string) *Logger {
	return &Logger{
		prefix: "[" + component + "] ",
		std:    log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...any) {
	l.std.Printf(l.prefix+format, args...)
}

func (l *Logger) Println(args ...any) {
	l.std.Print(l.prefix, fmt.Sprintln(args...))
}
