package secrets

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	lru "github.com/hashicorp/golang-lru/v2"

	"autoglm/internal/kv"
	"autoglm/internal/logging"
)

// decryptedCacheSize bounds the in-memory cache of decrypted values. The
// store holds one secret per profile plus the active key, so the bound is
// generous.
const decryptedCacheSize = 64

// ageStore encrypts each value to the locally-held X25519 identity and keeps
// the ciphertext base64-encoded in a kv.FileStore.
type ageStore struct {
	identity *age.X25519Identity
	values   *kv.FileStore
	cache    *lru.Cache[string, string]
	logger   logging.Logger
}

func openAgeStore(identityPath, valuesPath string, logger logging.Logger) (*ageStore, error) {
	identity, err := loadOrCreateIdentity(identityPath)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, string](decryptedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create secret cache: %w", err)
	}
	return &ageStore{
		identity: identity,
		values:   kv.NewFileStore(valuesPath, logger),
		cache:    cache,
		logger:   logging.OrNop(logger),
	}, nil
}

// loadOrCreateIdentity reads the master identity, generating and persisting
// a fresh one (0600) when the file does not exist yet.
func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return parseIdentity(string(data))
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create secret dir: %w", err)
	}
	content := fmt.Sprintf("# public key: %s\n%s\n", identity.Recipient().String(), identity.String())
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return nil, fmt.Errorf("write identity file: %w", err)
	}
	return identity, nil
}

// parseIdentity extracts the identity line, skipping comments.
func parseIdentity(data string) (*age.X25519Identity, error) {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identity, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("parse identity: %w", err)
		}
		return identity, nil
	}
	return nil, fmt.Errorf("no identity found in file")
}

func (s *ageStore) Get(key string) (string, bool) {
	if value, ok := s.cache.Get(key); ok {
		return value, true
	}

	encoded := s.values.GetString(key, "")
	if encoded == "" {
		return "", false
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		s.logger.Warn("secret %q is not valid base64, treating as unset: %v", key, err)
		return "", false
	}
	plaintext, err := s.decrypt(ciphertext)
	if err != nil {
		s.logger.Warn("secret %q failed to decrypt, treating as unset: %v", key, err)
		return "", false
	}

	s.cache.Add(key, plaintext)
	return plaintext, true
}

func (s *ageStore) Set(key, value string) error {
	ciphertext, err := s.encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt secret %q: %w", key, err)
	}
	if err := s.values.Set(key, base64.StdEncoding.EncodeToString(ciphertext)); err != nil {
		return fmt.Errorf("persist secret %q: %w", key, err)
	}
	s.cache.Add(key, value)
	return nil
}

func (s *ageStore) Remove(key string) error {
	s.cache.Remove(key)
	return s.values.Remove(key)
}

func (s *ageStore) Clear() error {
	s.cache.Purge()
	return s.values.Clear()
}

func (s *ageStore) encrypt(plaintext string) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ageStore) decrypt(ciphertext []byte) (string, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return "", err
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
