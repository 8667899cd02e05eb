// Package config holds the model-connection and agent-behaviour
// configuration and the repository that persists them.
package config

import "fmt"

// APIKeyEmpty is the canonical "no secret configured" value. It is distinct
// from an empty string and must never be written to the secret store as a
// real secret.
const APIKeyEmpty = "EMPTY"

// Defaults target the public BigModel deployment running the phone model.
const (
	DefaultBaseURL          = "https://open.bigmodel.cn/api/paas/v4"
	DefaultModelName        = "autoglm-phone"
	DefaultMaxTokens        = 3000
	DefaultTemperature      = 0.0
	DefaultTopP             = 0.85
	DefaultFrequencyPenalty = 0.2
	DefaultTimeoutSeconds   = int64(60)
)

const (
	DefaultMaxSteps          = 0 // unlimited
	DefaultScreenshotDelayMs = int64(300)
)

// ModelConfig describes one model connection. It is a value type: equality
// over all fields is what drift detection compares.
type ModelConfig struct {
	BaseURL          string  `json:"baseUrl" yaml:"baseUrl"`
	APIKey           string  `json:"apiKey" yaml:"apiKey"`
	ModelName        string  `json:"modelName" yaml:"modelName"`
	MaxTokens        int     `json:"maxTokens" yaml:"maxTokens"`
	Temperature      float64 `json:"temperature" yaml:"temperature"`
	TopP             float64 `json:"topP" yaml:"topP"`
	FrequencyPenalty float64 `json:"frequencyPenalty" yaml:"frequencyPenalty"`
	TimeoutSeconds   int64   `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// DefaultModelConfig returns the stock phone-model connection settings.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		BaseURL:          DefaultBaseURL,
		APIKey:           APIKeyEmpty,
		ModelName:        DefaultModelName,
		MaxTokens:        DefaultMaxTokens,
		Temperature:      DefaultTemperature,
		TopP:             DefaultTopP,
		FrequencyPenalty: DefaultFrequencyPenalty,
		TimeoutSeconds:   DefaultTimeoutSeconds,
	}
}

// HasAPIKey reports whether a real secret is configured.
func (c ModelConfig) HasAPIKey() bool {
	return c.APIKey != "" && c.APIKey != APIKeyEmpty
}

// NormalizeAPIKey maps an absent or empty secret to the sentinel.
func NormalizeAPIKey(key string) string {
	if key == "" {
		return APIKeyEmpty
	}
	return key
}

// Language selects the agent's working language.
type Language string

const (
	LanguageCN Language = "cn"
	LanguageEN Language = "en"
)

// ParseLanguage maps arbitrary input to a supported language, defaulting
// to Chinese.
func ParseLanguage(s string) Language {
	if Language(s) == LanguageEN {
		return LanguageEN
	}
	return LanguageCN
}

// AgentConfig describes agent-behaviour settings.
type AgentConfig struct {
	MaxSteps          int      `json:"maxSteps" yaml:"maxSteps"` // 0 = unlimited
	Language          Language `json:"language" yaml:"language"`
	Verbose           bool     `json:"verbose" yaml:"verbose"`
	ScreenshotDelayMs int64    `json:"screenshotDelayMs" yaml:"screenshotDelayMs"`
}

// DefaultAgentConfig returns the stock agent behaviour.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxSteps:          DefaultMaxSteps,
		Language:          LanguageCN,
		Verbose:           false,
		ScreenshotDelayMs: DefaultScreenshotDelayMs,
	}
}

// Validate rejects settings outside the documented ranges.
func (c AgentConfig) Validate() error {
	if c.MaxSteps < 0 {
		return fmt.Errorf("maxSteps must be >= 0, got %d", c.MaxSteps)
	}
	if c.ScreenshotDelayMs < 0 {
		return fmt.Errorf("screenshotDelayMs must be >= 0, got %d", c.ScreenshotDelayMs)
	}
	if c.Language != LanguageCN && c.Language != LanguageEN {
		return fmt.Errorf("unsupported language %q", c.Language)
	}
	return nil
}
