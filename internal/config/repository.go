package config

import (
	"fmt"

	"autoglm/internal/kv"
	"autoglm/internal/logging"
	"autoglm/internal/secrets"
)

// Plain-namespace keys. KeyModelAPIKey doubles as the secret-namespace key
// for the active configuration and, historically, as the plaintext location
// the secret is migrated away from.
const (
	KeyModelBaseURL          = "model_base_url"
	KeyModelAPIKey           = "model_api_key"
	KeyModelName             = "model_name"
	KeyModelMaxTokens        = "model_max_tokens"
	KeyModelTemperature      = "model_temperature"
	KeyModelTopP             = "model_top_p"
	KeyModelFrequencyPenalty = "model_frequency_penalty"
	KeyModelTimeoutSeconds   = "model_timeout_seconds"

	KeyAgentMaxSteps        = "agent_max_steps"
	KeyAgentLanguage        = "agent_language"
	KeyAgentVerbose         = "agent_verbose"
	KeyAgentScreenshotDelay = "agent_screenshot_delay_ms"

	customPromptKeyPrefix = "custom_prompt_"
)

// Repository reads and writes ModelConfig and AgentConfig. Non-secret fields
// live in the plain store, the API key in the secret store; the two writes
// are independent and not transactional (each is idempotent on re-save).
//
// Repository is not safe for concurrent use: drift detection keeps a
// per-instance baseline, so two call sites sharing one instance would steal
// each other's change notifications.
type Repository struct {
	plain  kv.Store
	secret secrets.Store
	logger logging.Logger

	lastSnapshot *snapshot
}

type snapshot struct {
	model ModelConfig
	agent AgentConfig
}

// NewRepository constructs a Repository over the two injected stores.
func NewRepository(plain kv.Store, secret secrets.Store, logger logging.Logger) *Repository {
	return &Repository{
		plain:  plain,
		secret: secret,
		logger: logging.OrNop(logger),
	}
}

// ModelConfig loads the active model configuration, applying defaults for
// absent fields. An absent or empty API key normalizes to the sentinel.
func (r *Repository) ModelConfig() ModelConfig {
	cfg := ModelConfig{
		BaseURL:          r.plain.GetString(KeyModelBaseURL, DefaultBaseURL),
		ModelName:        r.plain.GetString(KeyModelName, DefaultModelName),
		MaxTokens:        r.plain.GetInt(KeyModelMaxTokens, DefaultMaxTokens),
		Temperature:      r.plain.GetFloat64(KeyModelTemperature, DefaultTemperature),
		TopP:             r.plain.GetFloat64(KeyModelTopP, DefaultTopP),
		FrequencyPenalty: r.plain.GetFloat64(KeyModelFrequencyPenalty, DefaultFrequencyPenalty),
		TimeoutSeconds:   r.plain.GetInt64(KeyModelTimeoutSeconds, DefaultTimeoutSeconds),
	}
	key, ok := r.secret.Get(KeyModelAPIKey)
	if !ok {
		cfg.APIKey = APIKeyEmpty
	} else {
		cfg.APIKey = NormalizeAPIKey(key)
	}
	return cfg
}

// SaveModelConfig persists cfg. The sentinel is never written to the secret
// store: saving an unset key removes any stored secret instead.
func (r *Repository) SaveModelConfig(cfg ModelConfig) error {
	writes := []struct {
		key   string
		value any
	}{
		{KeyModelBaseURL, cfg.BaseURL},
		{KeyModelName, cfg.ModelName},
		{KeyModelMaxTokens, cfg.MaxTokens},
		{KeyModelTemperature, cfg.Temperature},
		{KeyModelTopP, cfg.TopP},
		{KeyModelFrequencyPenalty, cfg.FrequencyPenalty},
		{KeyModelTimeoutSeconds, cfg.TimeoutSeconds},
	}
	for _, w := range writes {
		if err := r.plain.Set(w.key, w.value); err != nil {
			return fmt.Errorf("save model config field %s: %w", w.key, err)
		}
	}

	if cfg.HasAPIKey() {
		if err := r.secret.Set(KeyModelAPIKey, cfg.APIKey); err != nil {
			return fmt.Errorf("save model api key: %w", err)
		}
	} else if err := r.secret.Remove(KeyModelAPIKey); err != nil {
		return fmt.Errorf("clear model api key: %w", err)
	}
	return nil
}

// AgentConfig loads the agent behaviour settings with defaults.
func (r *Repository) AgentConfig() AgentConfig {
	return AgentConfig{
		MaxSteps:          r.plain.GetInt(KeyAgentMaxSteps, DefaultMaxSteps),
		Language:          ParseLanguage(r.plain.GetString(KeyAgentLanguage, string(LanguageCN))),
		Verbose:           r.plain.GetBool(KeyAgentVerbose, false),
		ScreenshotDelayMs: r.plain.GetInt64(KeyAgentScreenshotDelay, DefaultScreenshotDelayMs),
	}
}

// SaveAgentConfig validates and persists cfg.
func (r *Repository) SaveAgentConfig(cfg AgentConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	writes := []struct {
		key   string
		value any
	}{
		{KeyAgentMaxSteps, cfg.MaxSteps},
		{KeyAgentLanguage, string(cfg.Language)},
		{KeyAgentVerbose, cfg.Verbose},
		{KeyAgentScreenshotDelay, cfg.ScreenshotDelayMs},
	}
	for _, w := range writes {
		if err := r.plain.Set(w.key, w.value); err != nil {
			return fmt.Errorf("save agent config field %s: %w", w.key, err)
		}
	}
	return nil
}

// HasConfigChanged compares the current configuration against the last
// snapshot this instance observed and records the fresh snapshot as a side
// effect. The first call establishes the baseline and reports false; calling
// twice without an intervening save reports false the second time.
func (r *Repository) HasConfigChanged() bool {
	current := snapshot{model: r.ModelConfig(), agent: r.AgentConfig()}
	changed := r.lastSnapshot != nil && *r.lastSnapshot != current
	r.lastSnapshot = &current
	return changed
}

// MigrateSecret moves a legacy plaintext API key out of the plain store into
// the secret store, then deletes the plaintext copy. No-op when no legacy
// value exists or it equals the unset sentinel.
func (r *Repository) MigrateSecret() error {
	legacy := r.plain.GetString(KeyModelAPIKey, "")
	if legacy == "" || legacy == APIKeyEmpty {
		return nil
	}
	if err := r.secret.Set(KeyModelAPIKey, legacy); err != nil {
		return fmt.Errorf("migrate api key to secret store: %w", err)
	}
	if err := r.plain.Remove(KeyModelAPIKey); err != nil {
		return fmt.Errorf("remove plaintext api key: %w", err)
	}
	r.logger.Info("migrated legacy plaintext api key into secret store")
	return nil
}

// CustomPrompt returns the per-language system prompt override, or empty
// when none is set.
func (r *Repository) CustomPrompt(lang Language) string {
	return r.plain.GetString(customPromptKeyPrefix+string(lang), "")
}

// SetCustomPrompt stores a per-language system prompt override. Empty text
// removes the override.
func (r *Repository) SetCustomPrompt(lang Language, text string) error {
	key := customPromptKeyPrefix + string(lang)
	if text == "" {
		return r.plain.Remove(key)
	}
	return r.plain.Set(key, text)
}
