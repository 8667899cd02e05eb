package logstore

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const deviceInfoName = "device_info.txt"

// Export bundles device_info.txt plus every current log file into a zip
// under outDir and returns the archive path. Source files are not touched.
// Returns ErrNoLogFiles when the directory holds no log files; a partially
// written archive is removed on any failure.
func (s *Store) Export(outDir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}

	names, err := s.logFiles()
	if err != nil {
		return "", fmt.Errorf("list log files: %w", err)
	}
	if len(names) == 0 {
		return "", ErrNoLogFiles
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	base := fmt.Sprintf("%s_logs_%s", s.opts.Prefix, s.opts.Now().Format("20060102_150405"))
	archive := filepath.Join(outDir, base+".zip")
	for i := 2; ; i++ {
		if _, err := os.Stat(archive); os.IsNotExist(err) {
			break
		}
		// Same-second export; disambiguate rather than overwrite.
		archive = filepath.Join(outDir, fmt.Sprintf("%s_%d.zip", base, i))
	}

	if err := s.writeArchive(archive, names); err != nil {
		_ = os.Remove(archive)
		return "", err
	}
	return archive, nil
}

func (s *Store) writeArchive(archive string, names []string) (err error) {
	// O_EXCL backs the name selection above: never clobber an existing archive.
	f, err := os.OpenFile(archive, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	zw := zip.NewWriter(f)
	defer func() {
		if closeErr := zw.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("finalize archive: %w", closeErr)
		}
	}()

	info := s.opts.Info
	if info.GeneratedAt.IsZero() {
		info.GeneratedAt = s.opts.Now()
	}
	header, err := zw.Create(deviceInfoName)
	if err != nil {
		return fmt.Errorf("add %s: %w", deviceInfoName, err)
	}
	if _, err := io.WriteString(header, info.Render()); err != nil {
		return fmt.Errorf("write %s: %w", deviceInfoName, err)
	}

	for _, name := range names {
		if err := s.addFile(zw, name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addFile(zw *zip.Writer, name string) error {
	src, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s: %w", name, err)
	}
	return nil
}
