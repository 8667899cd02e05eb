// Package profiles manages the list of named model connection profiles.
//
// The list is persisted as one JSON array blob in the plain store; every
// mutation is a whole-list read-modify-write. Each profile's API key lives
// only in the secret store, keyed by profile id — the serialized array never
// embeds the secret.
package profiles

import (
	"encoding/json"
	"fmt"

	"autoglm/internal/config"
	"autoglm/internal/ids"
	"autoglm/internal/kv"
	"autoglm/internal/logging"
	"autoglm/internal/secrets"
)

const (
	// KeyProfiles holds the serialized profile array in the plain store.
	KeyProfiles = "saved_profiles"
	// KeyCurrentProfile holds the current-profile pointer.
	KeyCurrentProfile = "current_profile_id"

	secretKeyPrefix = "profile_apikey_"
)

// SavedModelProfile is a named model configuration. ID is opaque, unique,
// and joins the profile to its secret in the secret store.
type SavedModelProfile struct {
	ID          string
	DisplayName string
	Config      config.ModelConfig
}

// storedProfile is the on-disk shape: the config flattened, minus the secret.
type storedProfile struct {
	ID               string  `json:"id"`
	DisplayName      string  `json:"displayName"`
	BaseURL          string  `json:"baseUrl"`
	ModelName        string  `json:"modelName"`
	MaxTokens        int     `json:"maxTokens"`
	Temperature      float64 `json:"temperature"`
	TopP             float64 `json:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty"`
	TimeoutSeconds   int64   `json:"timeoutSeconds"`
}

// Registry provides CRUD over saved profiles plus the current-profile pointer.
type Registry struct {
	plain  kv.Store
	secret secrets.Store
	logger logging.Logger
}

// NewRegistry constructs a Registry over the two injected stores.
func NewRegistry(plain kv.Store, secret secrets.Store, logger logging.Logger) *Registry {
	return &Registry{
		plain:  plain,
		secret: secret,
		logger: logging.OrNop(logger),
	}
}

// SecretKey returns the secret-store key holding the API key for id.
func SecretKey(id string) string {
	return secretKeyPrefix + id
}

// NewID generates a fresh profile identifier.
func (r *Registry) NewID() string {
	return ids.NewProfileID()
}

// loadStored deserializes the profile array. Malformed JSON is logged and
// yields an empty list rather than an error.
func (r *Registry) loadStored() []storedProfile {
	raw := r.plain.GetString(KeyProfiles, "")
	if raw == "" {
		return nil
	}
	var stored []storedProfile
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		r.logger.Warn("saved profiles blob is malformed, treating as empty: %v", err)
		return nil
	}
	return stored
}

func (r *Registry) saveStored(stored []storedProfile) error {
	encoded, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if err := r.plain.Set(KeyProfiles, string(encoded)); err != nil {
		return fmt.Errorf("persist profiles: %w", err)
	}
	return nil
}

func toStored(p SavedModelProfile) storedProfile {
	return storedProfile{
		ID:               p.ID,
		DisplayName:      p.DisplayName,
		BaseURL:          p.Config.BaseURL,
		ModelName:        p.Config.ModelName,
		MaxTokens:        p.Config.MaxTokens,
		Temperature:      p.Config.Temperature,
		TopP:             p.Config.TopP,
		FrequencyPenalty: p.Config.FrequencyPenalty,
		TimeoutSeconds:   p.Config.TimeoutSeconds,
	}
}

func (r *Registry) fromStored(s storedProfile) SavedModelProfile {
	key, ok := r.secret.Get(SecretKey(s.ID))
	if !ok {
		key = config.APIKeyEmpty
	}
	return SavedModelProfile{
		ID:          s.ID,
		DisplayName: s.DisplayName,
		Config: config.ModelConfig{
			BaseURL:          s.BaseURL,
			APIKey:           config.NormalizeAPIKey(key),
			ModelName:        s.ModelName,
			MaxTokens:        s.MaxTokens,
			Temperature:      s.Temperature,
			TopP:             s.TopP,
			FrequencyPenalty: s.FrequencyPenalty,
			TimeoutSeconds:   s.TimeoutSeconds,
		},
	}
}

// List returns every saved profile in stored order, each with its API key
// resolved from the secret store (sentinel when none is set).
func (r *Registry) List() []SavedModelProfile {
	stored := r.loadStored()
	profiles := make([]SavedModelProfile, 0, len(stored))
	for _, s := range stored {
		profiles = append(profiles, r.fromStored(s))
	}
	return profiles
}

// Get returns the profile with the given id.
func (r *Registry) Get(id string) (SavedModelProfile, bool) {
	for _, s := range r.loadStored() {
		if s.ID == id {
			return r.fromStored(s), true
		}
	}
	return SavedModelProfile{}, false
}

// Save upserts p by id: an existing entry is replaced in place, a new one is
// appended. The array write and the secret write are independent operations;
// last writer wins.
func (r *Registry) Save(p SavedModelProfile) error {
	if p.ID == "" {
		return fmt.Errorf("profile id must not be empty")
	}

	stored := r.loadStored()
	replaced := false
	for i := range stored {
		if stored[i].ID == p.ID {
			stored[i] = toStored(p)
			replaced = true
			break
		}
	}
	if !replaced {
		stored = append(stored, toStored(p))
	}
	if err := r.saveStored(stored); err != nil {
		return err
	}

	if p.Config.HasAPIKey() {
		if err := r.secret.Set(SecretKey(p.ID), p.Config.APIKey); err != nil {
			return fmt.Errorf("persist profile secret: %w", err)
		}
		return nil
	}
	if err := r.secret.Remove(SecretKey(p.ID)); err != nil {
		return fmt.Errorf("clear profile secret: %w", err)
	}
	return nil
}

// Delete removes the profile, its secret entry, and clears the current
// pointer when it referenced id. Deleting an unknown id is a no-op.
func (r *Registry) Delete(id string) error {
	stored := r.loadStored()
	kept := stored[:0]
	for _, s := range stored {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if err := r.saveStored(kept); err != nil {
		return err
	}
	if err := r.secret.Remove(SecretKey(id)); err != nil {
		return fmt.Errorf("remove profile secret: %w", err)
	}
	if r.plain.GetString(KeyCurrentProfile, "") == id {
		if err := r.plain.Remove(KeyCurrentProfile); err != nil {
			return fmt.Errorf("clear current profile pointer: %w", err)
		}
	}
	return nil
}

// Current returns the current profile id, or empty when unset. A pointer
// referencing a profile that no longer exists is treated as unset.
func (r *Registry) Current() string {
	id := r.plain.GetString(KeyCurrentProfile, "")
	if id == "" {
		return ""
	}
	for _, s := range r.loadStored() {
		if s.ID == id {
			return id
		}
	}
	r.logger.Warn("current profile pointer %q references no profile, treating as unset", id)
	return ""
}

// SetCurrent persists the current-profile pointer; empty id clears it.
func (r *Registry) SetCurrent(id string) error {
	if id == "" {
		return r.plain.Remove(KeyCurrentProfile)
	}
	return r.plain.Set(KeyCurrentProfile, id)
}
