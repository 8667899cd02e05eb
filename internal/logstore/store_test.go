package logstore

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autoglm/internal/deviceinfo"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustOpen(t *testing.T, dir string, opts Options) *Store {
	t.Helper()
	store, err := Open(dir, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return store
}

func readActive(t *testing.T, store *Store, day time.Time) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(store.Dir(), store.activeName(day)))
	if err != nil {
		t.Fatalf("read active file: %v", err)
	}
	return string(data)
}

func TestWriteLineFormat(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 14, 30, 5, 123e6, time.UTC)
	store := mustOpen(t, t.TempDir(), Options{Now: fixedClock(now)})

	store.Write(LevelInfo, "Agent", "task started", nil)
	content := readActive(t, store, now)

	want := "2026-08-23 14:30:05.123 [INFO] Agent: task started\n"
	if content != want {
		t.Fatalf("line mismatch:\n got %q\nwant %q", content, want)
	}
}

func TestWriteAppendsErrorBlock(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)
	store := mustOpen(t, t.TempDir(), Options{Now: fixedClock(now)})

	store.Write(LevelError, "Model", "request failed", errors.New("dial tcp: timeout\nretry exhausted"))
	content := readActive(t, store, now)

	if !strings.Contains(content, "[ERROR] Model: request failed\n") {
		t.Fatalf("missing record line: %q", content)
	}
	if !strings.Contains(content, "    dial tcp: timeout\n    retry exhausted\n") {
		t.Fatalf("missing indented error block: %q", content)
	}
}

func TestRotationProducesOneRotatedFile(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	store := mustOpen(t, dir, Options{MaxFileSize: 256, Now: fixedClock(now)})

	// Each record is ~103 bytes; the fourth write finds the active file over
	// the 256-byte cap and rotates exactly once.
	var written int
	line := strings.Repeat("x", 64)
	for i := 0; i < 4; i++ {
		store.Write(LevelDebug, "Fill", line, nil)
		written += len(line)
	}

	names, err := store.logFiles()
	if err != nil {
		t.Fatalf("logFiles() error = %v", err)
	}
	var rotated, active int
	for _, name := range names {
		if name == store.activeName(now) {
			active++
		} else if strings.HasPrefix(name, "autoglm_2026-08-23_") {
			rotated++
		} else {
			t.Fatalf("unexpected file %q", name)
		}
	}
	if rotated != 1 || active != 1 {
		t.Fatalf("expected exactly one rotated and one active file, got rotated=%d active=%d (%v)", rotated, active, names)
	}
	if total := store.TotalSize(); total < int64(written) {
		t.Fatalf("total bytes %d < bytes written %d", total, written)
	}
}

func TestSelfLoggerSurvivesRotationFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 13, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	store := mustOpen(t, dir, Options{MaxFileSize: 64, Now: fixedClock(now)})

	// The store's own adapter as its operational sink, with rotation forced
	// to fail on an already-oversize active file.
	store.logger = store.Logger("LogStore")
	store.rename = func(oldpath, newpath string) error {
		return errors.New("injected rename failure")
	}
	seed := strings.Repeat("x", 128) + "\n"
	if err := os.WriteFile(filepath.Join(dir, store.activeName(now)), []byte(seed), 0o644); err != nil {
		t.Fatalf("seed active file: %v", err)
	}

	done := make(chan struct{})
	go func() {
		store.Write(LevelInfo, "Agent", "after failed rotation", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Write did not return with the store's own logger installed")
	}

	content := readActive(t, store, now)
	if !strings.Contains(content, "[INFO] Agent: after failed rotation\n") {
		t.Fatalf("record missing from active file: %q", content)
	}
}

func TestWriteStartsFreshFilePerDay(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	day1 := time.Date(2026, 8, 22, 23, 59, 0, 0, time.UTC)
	current := day1
	store := mustOpen(t, dir, Options{Now: func() time.Time { return current }})

	store.Write(LevelInfo, "A", "yesterday", nil)
	current = day1.Add(2 * time.Minute) // crosses midnight
	store.Write(LevelInfo, "A", "today", nil)

	names, _ := store.logFiles()
	if len(names) != 2 {
		t.Fatalf("expected one file per day, got %v", names)
	}
	// Lexicographic order equals date order.
	if !(names[0] < names[1]) {
		t.Fatalf("names not sorted by date: %v", names)
	}
}

func TestCleanupBoundary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	store := mustOpen(t, dir, Options{Now: fixedClock(now)})

	old := filepath.Join(dir, "autoglm_2026-08-01.log")
	fresh := filepath.Join(dir, "autoglm_2026-08-22.log")
	boundary := filepath.Join(dir, "autoglm_2026-08-16.log")
	for _, path := range []string{old, fresh, boundary} {
		if err := os.WriteFile(path, []byte("line\n"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
	cutoff := now.Add(-7 * 24 * time.Hour)
	if err := os.Chtimes(old, cutoff.Add(-time.Hour), cutoff.Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(fresh, now.Add(-time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(boundary, cutoff, cutoff); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	store.Cleanup(7)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("file older than retention must be deleted")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("file within retention must be kept")
	}
	// Exactly at the boundary: retained (deletion is strictly-older-than).
	if _, err := os.Stat(boundary); err != nil {
		t.Fatal("file exactly at the boundary must be kept")
	}
}

func TestCleanupRunsAtOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stale := filepath.Join(dir, "autoglm_2026-01-01.log")
	if err := os.WriteFile(stale, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	past := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	mustOpen(t, dir, Options{})
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("Open must run cleanup once")
	}
}

func TestExportBundlesDeviceInfoAndLogs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 15, 4, 5, 0, time.UTC)
	dir := t.TempDir()
	store := mustOpen(t, dir, Options{
		Now:  fixedClock(now),
		Info: deviceinfo.Info{AppVersion: "1.0.0", BuildType: "debug", OS: "linux"},
	})
	store.Write(LevelInfo, "Agent", "hello", nil)

	archive, err := store.Export(t.TempDir())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if filepath.Base(archive) != "autoglm_logs_20260823_150405.zip" {
		t.Fatalf("unexpected archive name %q", archive)
	}

	zr, err := zip.OpenReader(archive)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer zr.Close()

	entries := make(map[string]bool)
	for _, f := range zr.File {
		entries[f.Name] = true
	}
	if !entries["device_info.txt"] {
		t.Fatalf("device_info.txt missing from %v", entries)
	}
	if !entries[store.activeName(now)] {
		t.Fatalf("log file missing from %v", entries)
	}

	// Source files untouched.
	if _, err := os.Stat(filepath.Join(dir, store.activeName(now))); err != nil {
		t.Fatal("export must not delete source files")
	}
}

func TestExportDisambiguatesSameSecondArchives(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 15, 4, 5, 0, time.UTC)
	store := mustOpen(t, t.TempDir(), Options{Now: fixedClock(now)})
	store.Write(LevelInfo, "Agent", "hello", nil)

	outDir := t.TempDir()
	first, err := store.Export(outDir)
	if err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	second, err := store.Export(outDir)
	if err != nil {
		t.Fatalf("second Export() error = %v", err)
	}

	if first == second {
		t.Fatalf("same-second exports share the archive name %q", first)
	}
	if filepath.Base(second) != "autoglm_logs_20260823_150405_2.zip" {
		t.Fatalf("unexpected second archive name %q", second)
	}
	for _, archive := range []string{first, second} {
		if _, err := os.Stat(archive); err != nil {
			t.Fatalf("archive %s missing: %v", archive, err)
		}
	}
}

func TestExportWithoutLogsFails(t *testing.T) {
	t.Parallel()

	store := mustOpen(t, t.TempDir(), Options{})
	if _, err := store.Export(t.TempDir()); !errors.Is(err, ErrNoLogFiles) {
		t.Fatalf("expected ErrNoLogFiles, got %v", err)
	}
}

func TestClearAll(t *testing.T) {
	t.Parallel()

	store := mustOpen(t, t.TempDir(), Options{})
	store.Write(LevelInfo, "A", "one", nil)
	store.Write(LevelInfo, "A", "two", nil)

	if err := store.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}
	if store.TotalSize() != 0 {
		t.Fatal("log directory should be empty after ClearAll")
	}
}

func TestWriteAfterCloseIsDiscarded(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC)
	store := mustOpen(t, t.TempDir(), Options{Now: fixedClock(now)})
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	store.Write(LevelInfo, "A", "late", nil)
	if store.TotalSize() != 0 {
		t.Fatal("writes after Close must be discarded")
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1023, "1023 B"},
		{2048, "2.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tc := range cases {
		if got := FormatSize(tc.bytes); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}

func TestLoggerAdapter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC)
	store := mustOpen(t, t.TempDir(), Options{Now: fixedClock(now)})

	store.Logger("SecretStore").Warn("fallback after %d attempts", 3)
	content := readActive(t, store, now)
	if !strings.Contains(content, "[WARN] SecretStore: fallback after 3 attempts") {
		t.Fatalf("adapter output mismatch: %q", content)
	}
}

func TestLevelStrings(t *testing.T) {
	t.Parallel()

	for level, want := range map[Level]string{
		LevelVerbose: "VERBOSE",
		LevelDebug:   "DEBUG",
		LevelInfo:    "INFO",
		LevelWarn:    "WARN",
		LevelError:   "ERROR",
	} {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
	if got := fmt.Sprint(Level(99)); got != "UNKNOWN" {
		t.Errorf("unknown level = %q", got)
	}
}
