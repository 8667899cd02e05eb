package secrets

import (
	"autoglm/internal/kv"
	"autoglm/internal/logging"
)

// plainStore is the degraded path: the same namespace file, values stored
// without encryption.
type plainStore struct {
	values *kv.FileStore
}

func openPlainStore(valuesPath string, logger logging.Logger) *plainStore {
	return &plainStore{values: kv.NewFileStore(valuesPath, logger)}
}

func (s *plainStore) Get(key string) (string, bool) {
	if !s.values.Has(key) {
		return "", false
	}
	return s.values.GetString(key, ""), true
}

func (s *plainStore) Set(key, value string) error {
	return s.values.Set(key, value)
}

func (s *plainStore) Remove(key string) error {
	return s.values.Remove(key)
}

func (s *plainStore) Clear() error {
	return s.values.Clear()
}
