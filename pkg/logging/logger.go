package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// ParseLevel accepts the names printed by Level.String, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug, nil
	case "", "info":
		return Info, nil
	case "warn", "warning":
		return Warn, nil
	case "error":
		return Error, nil
	}
	return Info, fmt.Errorf("unknown log level %q", s)
}

type Logger interface {
	SetLevel(level Level)
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

type logger struct {
	level Level

	d *log.Logger
	i *log.Logger
	w *log.Logger
	e *log.Logger
}

var _ Logger = (*logger)(nil)

// New writes debug and info to stdout, warnings and errors to stderr.
func New(level Level) Logger {
	return NewWriters(level, os.Stdout, os.Stderr)
}

func NewWriters(level Level, out, errOut io.Writer) Logger {
	const flags = log.Ldate | log.Lmicroseconds | log.Lmsgprefix
	return &logger{
		level: level,
		d:     log.New(out, "[D] ", flags),
		i:     log.New(out, "[I] ", flags),
		w:     log.New(errOut, "[W] ", flags),
		e:     log.New(errOut, "[E] ", flags),
	}
}

func (l *logger) SetLevel(level Level) {
	l.level = level
}

func (l *logger) Debugf(format string, v ...interface{}) {
	l.logf(Debug, l.d, format, v...)
}

func (l *logger) Infof(format string, v ...interface{}) {
	l.logf(Info, l.i, format, v...)
}

func (l *logger) Warnf(format string, v ...interface{}) {
	l.logf(Warn, l.w, format, v...)
}

func (l *logger) Errorf(format string, v ...interface{}) {
	l.logf(Error, l.e, format, v...)
}

func (l *logger) logf(level Level, logger *log.Logger, format string, v ...interface{}) {
	if level < l.level {
		return
	}

	logger.Printf(format, v...)
}

type nopLogger struct{}

var _ Logger = nopLogger{}

func NewNop() Logger {
	return nopLogger{}
}

func (l nopLogger) SetLevel(level Level)                   {}
func (l nopLogger) Debugf(format string, v ...interface{}) {}
func (l nopLogger) Infof(format string, v ...interface{})  {}
func (l nopLogger) Warnf(format string, v ...interface{})  {}
func (l nopLogger) Errorf(format string, v ...interface{}) {}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
