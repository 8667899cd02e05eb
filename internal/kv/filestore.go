package kv

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/cast"

	"autoglm/internal/logging"
)

// FileStore persists the key-value namespace as a single JSON object file.
//
// The file is loaded lazily on first access and cached for the process
// lifetime; every mutation rewrites the whole file atomically (tmp + rename).
type FileStore struct {
	path   string
	logger logging.Logger

	mu     sync.Mutex
	values map[string]any
	loaded bool
}

// NewFileStore constructs a FileStore backed by the given file path.
func NewFileStore(path string, logger logging.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logging.OrNop(logger),
	}
}

// Path exposes the location of the backing file (primarily for diagnostics).
func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// load reads the backing file once. A missing file starts empty; a corrupt
// file is logged and treated as empty rather than surfaced to callers.
func (s *FileStore) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.values = map[string]any{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("read settings file %s: %v", s.path, err)
		}
		return
	}
	if len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		s.logger.Warn("settings file %s is corrupt, starting empty: %v", s.path, err)
		s.values = map[string]any{}
	}
}

// save writes the current map to disk atomically.
func (s *FileStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) get(key string) (any, bool) {
	s.load()
	value, ok := s.values[key]
	return value, ok
}

// GetString returns the string stored under key, or def when absent.
func (s *FileStore) GetString(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key)
	if !ok {
		return def
	}
	str, err := cast.ToStringE(value)
	if err != nil {
		s.logger.Warn("%v", conversionError(key, value, err))
		return def
	}
	return str
}

// GetInt returns the int stored under key, or def when absent.
func (s *FileStore) GetInt(key string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		s.logger.Warn("%v", conversionError(key, value, err))
		return def
	}
	return n
}

// GetInt64 returns the int64 stored under key, or def when absent.
func (s *FileStore) GetInt64(key string, def int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key)
	if !ok {
		return def
	}
	n, err := cast.ToInt64E(value)
	if err != nil {
		s.logger.Warn("%v", conversionError(key, value, err))
		return def
	}
	return n
}

// GetFloat64 returns the float64 stored under key, or def when absent.
func (s *FileStore) GetFloat64(key string, def float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		s.logger.Warn("%v", conversionError(key, value, err))
		return def
	}
	return f
}

// GetBool returns the bool stored under key, or def when absent.
func (s *FileStore) GetBool(key string, def bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		s.logger.Warn("%v", conversionError(key, value, err))
		return def
	}
	return b
}

// Has reports whether a value exists under key.
func (s *FileStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.get(key)
	return ok
}

// Set stores value under key and persists the namespace. When the write
// fails the in-memory map keeps its previous state, so readers never see a
// value the file does not hold.
func (s *FileStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	prev, had := s.values[key]
	s.values[key] = value
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Remove deletes key from the namespace. Removing an absent key is a no-op;
// a failed write restores the in-memory entry.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	prev, ok := s.values[key]
	if !ok {
		return nil
	}
	delete(s.values, key)
	if err := s.save(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

// Clear drops every key in the namespace. A failed write leaves the
// in-memory map untouched.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	if len(s.values) == 0 {
		return nil
	}
	prev := s.values
	s.values = map[string]any{}
	if err := s.save(); err != nil {
		s.values = prev
		return err
	}
	return nil
}
