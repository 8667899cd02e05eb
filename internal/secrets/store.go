// Package secrets provides the sensitive key-value namespace. Values are
// encrypted at rest with an age X25519 identity held next to the store; when
// identity setup fails the store degrades to plaintext storage under the
// same namespace rather than failing the caller.
package secrets

import (
	"autoglm/internal/logging"
	"path/filepath"
)

// Store is the secret namespace contract. Get reports absence via the bool
// so callers can distinguish "no secret set" from an empty value.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
	Clear() error
}

const (
	identityFileName = "secret.key"
	valuesFileName   = "secrets.json"
)

// Open returns the secret store for dir, creating the directory and the
// master identity on first use. Encryption setup failures are logged and
// answered with a plaintext store — Open never fails.
func Open(dir string, logger logging.Logger) Store {
	logger = logging.OrNop(logger)

	store, err := openAgeStore(
		filepath.Join(dir, identityFileName),
		filepath.Join(dir, valuesFileName),
		logger,
	)
	if err != nil {
		logger.Warn("encrypted secret storage unavailable, falling back to plaintext: %v", err)
		return openPlainStore(filepath.Join(dir, valuesFileName), logger)
	}
	return store
}
