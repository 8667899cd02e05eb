package logging

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"
)

// Logger defines a minimal, printf-style logging contract.
//
// The persistence stores depend on this interface rather than a concrete
// sink so callers can route warnings into the rotating log store, stderr,
// or nothing at all.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// WriterLogger emits formatted lines to an io.Writer, scoped to a component.
type WriterLogger struct {
	mu        sync.Mutex
	out       io.Writer
	component string
	now       func() time.Time
}

// NewWriterLogger constructs a WriterLogger. A nil writer defaults to stderr.
func NewWriterLogger(out io.Writer, component string) *WriterLogger {
	if out == nil {
		out = os.Stderr
	}
	return &WriterLogger{out: out, component: component, now: time.Now}
}

func (l *WriterLogger) log(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "AUTOGLM"
	}
	message := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s [%s] [%s] - %s\n", timestamp, level, component, message)
}

func (l *WriterLogger) Debug(format string, args ...any) { l.log("DEBUG", format, args...) }
func (l *WriterLogger) Info(format string, args ...any)  { l.log("INFO", format, args...) }
func (l *WriterLogger) Warn(format string, args ...any)  { l.log("WARN", format, args...) }
func (l *WriterLogger) Error(format string, args ...any) { l.log("ERROR", format, args...) }

type multiLogger struct {
	loggers []Logger
}

// Multi returns a logger fan-out that calls every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, logger := range loggers {
		if IsNil(logger) {
			continue
		}
		if ml, ok := logger.(*multiLogger); ok {
			flattened = append(flattened, ml.loggers...)
			continue
		}
		flattened = append(flattened, logger)
	}
	if len(flattened) == 0 {
		return Nop()
	}
	if len(flattened) == 1 {
		return flattened[0]
	}
	return &multiLogger{loggers: flattened}
}

func (l *multiLogger) Debug(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Debug(format, args...)
	}
}

func (l *multiLogger) Info(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Info(format, args...)
	}
}

func (l *multiLogger) Warn(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Warn(format, args...)
	}
}

func (l *multiLogger) Error(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Error(format, args...)
	}
}
