package logstore

import (
	"fmt"

	"autoglm/internal/logging"
)

// tagLogger adapts the store to the ambient logging.Logger contract so
// component warnings can land in the rotating files.
type tagLogger struct {
	store *Store
	tag   string
}

// Logger returns a logging.Logger that writes through the store under tag.
// The adapter may be installed as the store's own Options.Logger: Write
// holds the writer lock but never emits through Options.Logger, so the
// re-entrant call cannot deadlock.
func (s *Store) Logger(tag string) logging.Logger {
	return &tagLogger{store: s, tag: tag}
}

func (l *tagLogger) Debug(format string, args ...any) {
	l.store.Write(LevelDebug, l.tag, fmt.Sprintf(format, args...), nil)
}

func (l *tagLogger) Info(format string, args ...any) {
	l.store.Write(LevelInfo, l.tag, fmt.Sprintf(format, args...), nil)
}

func (l *tagLogger) Warn(format string, args ...any) {
	l.store.Write(LevelWarn, l.tag, fmt.Sprintf(format, args...), nil)
}

func (l *tagLogger) Error(format string, args ...any) {
	l.store.Write(LevelError, l.tag, fmt.Sprintf(format, args...), nil)
}
