// Package logstore provides the rotating, size- and age-bounded log file
// store with zip export for diagnostics.
//
// One file per calendar day (autoglm_<YYYY-MM-DD>.log); when the active file
// exceeds the size cap it is renamed with an epoch-millisecond suffix and a
// fresh file continues under the daily name. Names sort lexicographically by
// date, so newest-first ordering is a reverse name sort.
package logstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"autoglm/internal/deviceinfo"
	"autoglm/internal/logging"
)

// ErrNoLogFiles is returned by Export when the directory holds no log files.
var ErrNoLogFiles = errors.New("no log files to export")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("log store is closed")

const (
	// DefaultMaxFileSize is the rotation threshold for the active file.
	DefaultMaxFileSize = int64(5 << 20)
	// DefaultKeepDays is the cleanup retention applied at Open.
	DefaultKeepDays = 7
	// DefaultPrefix names the log and export files.
	DefaultPrefix = "autoglm"

	logExt        = ".log"
	dayFormat     = "2006-01-02"
	lineTimestamp = "2006-01-02 15:04:05.000"
)

// Level is the severity of one log record.
type Level int

const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level marker used in log lines.
func (l Level) String() string {
	switch l {
	case LevelVerbose:
		return "VERBOSE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Options configures a Store. Zero values select the documented defaults.
type Options struct {
	// MaxFileSize is the byte cap beyond which the active file rotates.
	MaxFileSize int64
	// KeepDays is the retention applied by the cleanup run at Open.
	KeepDays int
	// Prefix names log files and export archives.
	Prefix string
	// Info is embedded as device_info.txt in exported bundles.
	Info deviceinfo.Info
	// Now injects a clock for tests.
	Now func() time.Time
	// Logger receives the store's own operational warnings.
	Logger logging.Logger
}

// Store is an explicit log store handle with an open/close lifecycle. All
// writes and rotations serialize behind one mutex; the critical section is
// only a size check plus an append, so writers block briefly, never
// indefinitely.
type Store struct {
	dir    string
	opts   Options
	logger logging.Logger

	// rename is os.Rename, injectable for tests.
	rename func(oldpath, newpath string) error

	mu     sync.Mutex
	closed bool
}

// Open creates the log directory if needed, runs the age-based cleanup once,
// and returns the store handle. Opening an existing directory is re-entrant.
func Open(dir string, opts Options) (*Store, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.KeepDays <= 0 {
		opts.KeepDays = DefaultKeepDays
	}
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	s := &Store{
		dir:    dir,
		opts:   opts,
		logger: logging.OrNop(opts.Logger),
		rename: os.Rename,
	}
	s.Cleanup(opts.KeepDays)
	return s, nil
}

// Dir returns the log directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Close marks the store closed. Writes after Close are discarded.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// activeName returns the daily file name for day.
func (s *Store) activeName(day time.Time) string {
	return fmt.Sprintf("%s_%s%s", s.opts.Prefix, day.Format(dayFormat), logExt)
}

// rotatedName returns the rotation target for the active file at now.
func (s *Store) rotatedName(day, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d%s", s.opts.Prefix, day.Format(dayFormat), now.UnixMilli(), logExt)
}

// Write appends one formatted record to the current day's file, rotating
// first when the active file exceeds the size cap. Failures are swallowed:
// best-effort logging must never crash the caller. Write never calls
// Options.Logger while holding the writer lock, so the store's own Logger
// adapter is safe to install as that sink.
func (s *Store) Write(level Level, tag, message string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	now := s.opts.Now()
	active := filepath.Join(s.dir, s.activeName(now))

	if info, err := os.Stat(active); err == nil && info.Size() > s.opts.MaxFileSize {
		rotated := filepath.Join(s.dir, s.rotatedName(now, now))
		for i := 1; ; i++ {
			if _, err := os.Stat(rotated); os.IsNotExist(err) {
				break
			}
			// Same-millisecond rotation; disambiguate rather than overwrite.
			rotated = filepath.Join(s.dir, s.rotatedName(now, now.Add(time.Duration(i)*time.Millisecond)))
		}
		// A failed rotation is swallowed like any other write-site failure;
		// the record still lands in the oversize active file.
		_ = s.rename(active, rotated)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s: %s\n", now.Format(lineTimestamp), level, tag, message)
	if cause != nil {
		for _, line := range strings.Split(cause.Error(), "\n") {
			b.WriteString("    ")
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	f, err := os.OpenFile(active, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	_, _ = f.WriteString(b.String())
	_ = f.Close()
}

// Cleanup deletes log files whose last-modified time is strictly older than
// now minus keepDays. A file exactly at the boundary is retained.
func (s *Store) Cleanup(keepDays int) {
	if keepDays <= 0 {
		keepDays = s.opts.KeepDays
	}
	cutoff := s.opts.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("cleanup: read log directory: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), logExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("cleanup: remove %s: %v", path, err)
			}
		}
	}
}

// ClearAll deletes every file in the log directory unconditionally.
func (s *Store) ClearAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read log directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// TotalSize returns the aggregate size in bytes of every log file.
func (s *Store) TotalSize() int64 {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), logExt) {
			continue
		}
		if info, err := entry.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}

// FormatSize renders a byte count for display: bytes below 1024, KB with one
// decimal below 1024², MB with one decimal beyond.
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	}
}

// logFiles lists the log file names in the directory, sorted by name.
func (s *Store) logFiles() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), logExt) {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
