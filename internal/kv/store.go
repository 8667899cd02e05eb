// Package kv provides the plain key-value namespace used for non-sensitive
// settings: scalar fields, JSON blobs, and feature flags.
package kv

import "fmt"

// Store is the plain settings namespace. Getters take a default that is
// returned when the key is absent or the stored value cannot be converted.
type Store interface {
	GetString(key, def string) string
	GetInt(key string, def int) int
	GetInt64(key string, def int64) int64
	GetFloat64(key string, def float64) float64
	GetBool(key string, def bool) bool
	Has(key string) bool
	Set(key string, value any) error
	Remove(key string) error
	Clear() error
}

// conversionError reports a conversion failure in a uniform way for logging.
func conversionError(key string, value any, err error) error {
	return fmt.Errorf("convert value for %q (%T): %w", key, value, err)
}
