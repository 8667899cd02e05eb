// Package devimport seeds the profile registry from a bundled JSON document
// exactly once per installation, gated by a persisted completion flag.
package devimport

import (
	"encoding/json"
	"errors"
	"fmt"

	"autoglm/internal/config"
	"autoglm/internal/kv"
	"autoglm/internal/logging"
	"autoglm/internal/profiles"
)

// KeyImported is the persisted completion flag: once set, Import is a no-op
// across process restarts.
const KeyImported = "dev_profiles_imported"

// ErrInvalidDocument marks parse or structural failures. Profiles written
// before the failing entry stay persisted — the import is not transactional.
var ErrInvalidDocument = errors.New("invalid profile import document")

// BundledProfiles is the seed document shipped with dev builds. The CLI
// imports it when no document is supplied; the persisted flag keeps the
// seeding one-shot.
const BundledProfiles = `{
  "profiles": [
    {
      "name": "BigModel AutoGLM",
      "baseUrl": "https://open.bigmodel.cn/api/paas/v4",
      "modelName": "autoglm-phone"
    }
  ],
  "defaultProfile": "BigModel AutoGLM"
}`

// Document is the bundled import schema.
type Document struct {
	Profiles       []Entry `json:"profiles"`
	DefaultProfile string  `json:"defaultProfile"`
}

// Entry is one importable profile. APIKey is optional.
type Entry struct {
	Name      string `json:"name"`
	BaseURL   string `json:"baseUrl"`
	ModelName string `json:"modelName"`
	APIKey    string `json:"apiKey"`
}

// Importer performs the one-shot profile seeding.
type Importer struct {
	plain    kv.Store
	registry *profiles.Registry
	repo     *config.Repository
	logger   logging.Logger
}

// NewImporter constructs an Importer over the registry and active config
// repository.
func NewImporter(plain kv.Store, registry *profiles.Registry, repo *config.Repository, logger logging.Logger) *Importer {
	return &Importer{
		plain:    plain,
		registry: registry,
		repo:     repo,
		logger:   logging.OrNop(logger),
	}
}

// Imported reports whether the one-shot import already ran.
func (im *Importer) Imported() bool {
	return im.plain.GetBool(KeyImported, false)
}

// Import parses jsonText and saves one profile per entry, returning the
// number imported. When the document names a defaultProfile matching an
// imported entry, that profile becomes current and its config becomes the
// active model configuration; otherwise the first imported profile does.
// A second call is a no-op returning zero.
func (im *Importer) Import(jsonText string) (int, error) {
	if im.Imported() {
		im.logger.Info("dev profile import already completed, skipping")
		return 0, nil
	}

	var doc Document
	if err := json.Unmarshal([]byte(jsonText), &doc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var (
		count     int
		first     *profiles.SavedModelProfile
		byDefault *profiles.SavedModelProfile
	)
	for i, entry := range doc.Profiles {
		if entry.Name == "" || entry.BaseURL == "" || entry.ModelName == "" {
			return count, fmt.Errorf("%w: entry %d missing name, baseUrl, or modelName", ErrInvalidDocument, i)
		}

		cfg := config.DefaultModelConfig()
		cfg.BaseURL = entry.BaseURL
		cfg.ModelName = entry.ModelName
		cfg.APIKey = config.NormalizeAPIKey(entry.APIKey)

		profile := profiles.SavedModelProfile{
			ID:          im.registry.NewID(),
			DisplayName: entry.Name,
			Config:      cfg,
		}
		if err := im.registry.Save(profile); err != nil {
			return count, fmt.Errorf("save imported profile %q: %w", entry.Name, err)
		}
		count++

		if first == nil {
			p := profile
			first = &p
		}
		if doc.DefaultProfile != "" && entry.Name == doc.DefaultProfile {
			p := profile
			byDefault = &p
		}
	}

	chosen := byDefault
	if chosen == nil {
		chosen = first
	}
	if chosen != nil {
		if err := im.registry.SetCurrent(chosen.ID); err != nil {
			return count, fmt.Errorf("set current profile: %w", err)
		}
		if err := im.repo.SaveModelConfig(chosen.Config); err != nil {
			return count, fmt.Errorf("apply imported config: %w", err)
		}
	}

	if err := im.plain.Set(KeyImported, true); err != nil {
		return count, fmt.Errorf("persist import flag: %w", err)
	}
	im.logger.Info("imported %d dev profiles", count)
	return count, nil
}
