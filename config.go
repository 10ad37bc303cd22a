package ghostline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	defaults "github.com/Paranoid-AF/ghostline/default"
)

// Provider identifiers accepted in [engine] providers.
const (
	ProviderHistory    = "history"
	ProviderWords      = "words"
	ProviderGeneration = "generation"
)

// KnownProviders lists every provider id the daemon can build.
var KnownProviders = []string{ProviderHistory, ProviderWords, ProviderGeneration}

// Config represents the user's ghostline configuration.
type Config struct {
	Version    int              `toml:"version" json:"version"`
	Engine     EngineConfig     `toml:"engine" json:"engine"`
	Generation GenerationConfig `toml:"generation" json:"generation"`
	Embedding  EmbeddingConfig  `toml:"embedding" json:"embedding"`
	Words      WordsConfig      `toml:"words" json:"words"`
	Cache      CacheConfig      `toml:"cache" json:"cache"`
	Telemetry  TelemetryConfig  `toml:"telemetry" json:"telemetry"`
}

// EngineConfig holds settings for the suggestion engine.
type EngineConfig struct {
	DebounceMS int `toml:"debounce_ms" json:"debounce_ms"`
	// Providers lists enabled provider ids in priority order.
	Providers []string `toml:"providers" json:"providers"`
}

// GenerationConfig holds settings for the generation API.
type GenerationConfig struct {
	BaseURL     string   `toml:"base_url" json:"base_url"`
	APIKey      string   `toml:"api_key" json:"api_key"`
	Model       string   `toml:"model" json:"model"`
	MaxTokens   int      `toml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature float64  `toml:"temperature,omitempty" json:"temperature,omitempty"`
	Stop        []string `toml:"stop,omitempty" json:"stop,omitempty"`
	// Multiline allows suggestions that span several lines.
	Multiline *bool `toml:"multiline,omitempty" json:"multiline,omitempty"`
}

// EmbeddingConfig holds settings for the embedding API.
type EmbeddingConfig struct {
	BaseURL         string `toml:"base_url" json:"base_url"`
	APIKey          string `toml:"api_key" json:"api_key"`
	Model           string `toml:"model" json:"model"`
	TTLMinutes      int    `toml:"ttl_minutes,omitempty" json:"ttl_minutes,omitempty"`
	MaxHistoryLines int    `toml:"max_history_lines,omitempty" json:"max_history_lines,omitempty"`
}

// WordsConfig holds settings for dictionary completion.
type WordsConfig struct {
	// Path is a dictionary file of "word frequency" lines.
	Path         string `toml:"path" json:"path"`
	MinPrefix    int    `toml:"min_prefix,omitempty" json:"min_prefix,omitempty"`
	MinFrequency int    `toml:"min_frequency,omitempty" json:"min_frequency,omitempty"`
}

// CacheConfig holds settings for the proposal cache.
type CacheConfig struct {
	TTLSeconds int `toml:"ttl_seconds,omitempty" json:"ttl_seconds,omitempty"`
	Capacity   int `toml:"capacity,omitempty" json:"capacity,omitempty"`
}

// TelemetryConfig holds telemetry settings.
type TelemetryConfig struct {
	// MetricsAddr is the listen address of the /metrics endpoint. Empty
	// disables it.
	MetricsAddr string `toml:"metrics_addr" json:"metrics_addr"`
}

// ConfigDir returns the config directory path.
// Resolution order: $GHOSTLINE_CONFIG_DIR > $XDG_CONFIG_HOME/ghostline > ~/.config/ghostline
func ConfigDir() string {
	if dir := os.Getenv("GHOSTLINE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "ghostline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("/tmp", "ghostline-config")
	}
	return filepath.Join(home, ".config", "ghostline")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// PromptPath returns the prompt file path.
func PromptPath() string {
	return filepath.Join(ConfigDir(), "prompt.md")
}

// DataDir returns where caches are kept: the config directory.
func DataDir() string {
	return ConfigDir()
}

// DefaultConfig returns the default configuration from the embedded default_config.toml.
func DefaultConfig() *Config {
	var cfg Config
	if _, err := toml.Decode(defaults.DefaultConfigTOML, &cfg); err != nil {
		panic("ghostline: invalid embedded default_config.toml: " + err.Error())
	}
	return &cfg
}

// LoadConfig loads config from disk or returns defaults if not found.
func LoadConfig() (*Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile loads config from path, filling missing fields with defaults.
// A missing file yields the defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	// Apply defaults for missing fields
	defaults := DefaultConfig()
	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}
	if !md.IsDefined("engine", "debounce_ms") {
		cfg.Engine.DebounceMS = defaults.Engine.DebounceMS
	}
	if !md.IsDefined("engine", "providers") {
		cfg.Engine.Providers = defaults.Engine.Providers
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = defaults.Generation.BaseURL
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = defaults.Generation.Model
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = defaults.Generation.MaxTokens
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = defaults.Generation.Temperature
	}
	if cfg.Generation.Stop == nil {
		cfg.Generation.Stop = defaults.Generation.Stop
	}
	if cfg.Generation.Multiline == nil {
		cfg.Generation.Multiline = defaults.Generation.Multiline
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaults.Embedding.BaseURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = defaults.Embedding.Model
	}
	if cfg.Embedding.TTLMinutes == 0 {
		cfg.Embedding.TTLMinutes = defaults.Embedding.TTLMinutes
	}
	if cfg.Embedding.MaxHistoryLines == 0 {
		cfg.Embedding.MaxHistoryLines = defaults.Embedding.MaxHistoryLines
	}
	if cfg.Words.MinPrefix == 0 {
		cfg.Words.MinPrefix = defaults.Words.MinPrefix
	}
	if cfg.Words.MinFrequency == 0 {
		cfg.Words.MinFrequency = defaults.Words.MinFrequency
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = defaults.Cache.TTLSeconds
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = defaults.Cache.Capacity
	}

	return &cfg, nil
}

// ValidateConfig checks configuration for potential issues and returns warnings.
func ValidateConfig(cfg *Config) []string {
	var warnings []string
	if cfg == nil {
		return warnings
	}
	seen := make(map[string]bool)
	for _, id := range cfg.Engine.Providers {
		if !slices.Contains(KnownProviders, id) {
			warnings = append(warnings, fmt.Sprintf("unknown provider %q in engine.providers", id))
		}
		if seen[id] {
			warnings = append(warnings, fmt.Sprintf("provider %q listed twice in engine.providers", id))
		}
		seen[id] = true
	}
	if cfg.Engine.DebounceMS < 0 {
		warnings = append(warnings, "engine.debounce_ms is negative; requests will not be debounced")
	}
	if seen[ProviderHistory] && !EmbeddingEnabled(cfg) {
		warnings = append(warnings, "history provider is enabled but embedding API key is not configured; only prefix matches will be suggested")
	}
	if seen[ProviderGeneration] && ResolveGenerationAPIKey(cfg) == "" {
		warnings = append(warnings, "generation provider is enabled but generation API key is not configured")
	}
	if seen[ProviderWords] && cfg.Words.Path == "" {
		warnings = append(warnings, "words provider is enabled but words.path is empty")
	}
	return warnings
}

// Debounce returns the engine debounce as a duration.
func Debounce(cfg *Config) time.Duration {
	if cfg == nil || cfg.Engine.DebounceMS <= 0 {
		return 0
	}
	return time.Duration(cfg.Engine.DebounceMS) * time.Millisecond
}

// Multiline reports whether generated suggestions may span lines.
func Multiline(cfg *Config) bool {
	if cfg == nil || cfg.Generation.Multiline == nil {
		return false
	}
	return *cfg.Generation.Multiline
}

// ResolveGenerationBaseURL returns the generation API base URL.
// Priority: $GHOSTLINE_GENERATION_API_BASE_URL env > config value.
func ResolveGenerationBaseURL(cfg *Config) string {
	if url := os.Getenv("GHOSTLINE_GENERATION_API_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Generation.BaseURL
	}
	return ""
}

// ResolveGenerationAPIKey returns the generation API key.
// Priority: $GHOSTLINE_GENERATION_API_KEY env > config value.
func ResolveGenerationAPIKey(cfg *Config) string {
	if key := os.Getenv("GHOSTLINE_GENERATION_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Generation.APIKey
	}
	return ""
}

// ResolveGenerationModel returns the generation model name.
// Priority: $GHOSTLINE_GENERATION_MODEL env > config value.
func ResolveGenerationModel(cfg *Config) string {
	if model := os.Getenv("GHOSTLINE_GENERATION_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Generation.Model
	}
	return ""
}

// ResolveEmbeddingBaseURL returns the embedding API base URL.
// Priority: $GHOSTLINE_EMBEDDING_API_BASE_URL env > config value.
func ResolveEmbeddingBaseURL(cfg *Config) string {
	if url := os.Getenv("GHOSTLINE_EMBEDDING_API_BASE_URL"); url != "" {
		return url
	}
	if cfg != nil {
		return cfg.Embedding.BaseURL
	}
	return ""
}

// ResolveEmbeddingAPIKey returns the embedding API key.
// Priority: $GHOSTLINE_EMBEDDING_API_KEY env > config value.
func ResolveEmbeddingAPIKey(cfg *Config) string {
	if key := os.Getenv("GHOSTLINE_EMBEDDING_API_KEY"); key != "" {
		return key
	}
	if cfg != nil {
		return cfg.Embedding.APIKey
	}
	return ""
}

// ResolveEmbeddingModel returns the embedding model name.
// Priority: $GHOSTLINE_EMBEDDING_MODEL env > config value.
func ResolveEmbeddingModel(cfg *Config) string {
	if model := os.Getenv("GHOSTLINE_EMBEDDING_MODEL"); model != "" {
		return model
	}
	if cfg != nil {
		return cfg.Embedding.Model
	}
	return ""
}

// EmbeddingEnabled returns true when both base_url and api_key are configured for embedding.
func EmbeddingEnabled(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return ResolveEmbeddingBaseURL(cfg) != "" && ResolveEmbeddingAPIKey(cfg) != ""
}
