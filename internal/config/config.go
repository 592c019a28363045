// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".mindmirror/configs"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.json"
	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "MINDMIRROR"
)

// DefaultTags is the tag vocabulary used when the config file does not
// override memory.tags.
var DefaultTags = []string{
	"goal", "routine", "preference", "constraint", "habit",
	"project", "tool", "identity", "value",
}

// DefaultProtectedTags are excluded from prune reports.
var DefaultProtectedTags = []string{"identity", "value"}

// Load reads configuration from ~/.mindmirror/configs/config.json
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configPath)

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return loadFromDefaults(v)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromPath loads configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "stdio")
	v.SetDefault("server.default_owner", "default")
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	homeDir, _ := os.UserHomeDir()
	v.SetDefault("database.sqlite_path", filepath.Join(homeDir, ".mindmirror/db/mindmirror.db"))

	// Security defaults
	v.SetDefault("security.token_ttl_hours", 24)

	// Embedding defaults
	v.SetDefault("embeddings.provider", "openai")
	v.SetDefault("embeddings.base_url", "https://api.openai.com/v1")
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("embeddings.dimensions", 1536)
	v.SetDefault("embeddings.cache_size", 4096)

	// Consistency defaults
	v.SetDefault("consistency.duplicate_threshold", 0.95)
	v.SetDefault("consistency.conflict_threshold", 0.65)
	v.SetDefault("consistency.neighbor_k", 3)

	// Memory defaults
	v.SetDefault("memory.tags", DefaultTags)
	v.SetDefault("memory.protected_tags", DefaultProtectedTags)

	// Archive defaults
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.path", filepath.Join(homeDir, ".mindmirror/archive"))

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_minutes", 60)
	v.SetDefault("scheduler.prune_after_days", 90)
}

// bindEnv wires MINDMIRROR_* environment variables as overrides,
// e.g. MINDMIRROR_DATABASE_SQLITE_PATH.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// loadFromDefaults creates a config from default values
func loadFromDefaults(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	// Validate server mode
	if cfg.Server.Mode != "stdio" && cfg.Server.Mode != "http" {
		return fmt.Errorf("server.mode must be 'stdio' or 'http', got '%s'", cfg.Server.Mode)
	}

	// Validate server port
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	// Validate database type
	if cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		return fmt.Errorf("database.type must be 'sqlite' or 'postgres', got '%s'", cfg.Database.Type)
	}

	// Validate database connection info
	if cfg.Database.Type == "sqlite" && cfg.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required when type is 'sqlite'")
	}
	if cfg.Database.Type == "postgres" && cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required when type is 'postgres'")
	}

	// Validate security settings
	if cfg.Security.TokenTTL < 1 {
		return fmt.Errorf("security.token_ttl_hours must be at least 1, got %d", cfg.Security.TokenTTL)
	}

	// Validate embedding provider
	if !IsValidEmbeddingProvider(cfg.Embeddings.Provider) {
		return fmt.Errorf("embeddings.provider must be one of %v, got '%s'",
			ValidEmbeddingProviders(), cfg.Embeddings.Provider)
	}
	if cfg.Embeddings.Dimensions < 1 {
		return fmt.Errorf("embeddings.dimensions must be at least 1, got %d", cfg.Embeddings.Dimensions)
	}

	// Validate consistency thresholds
	if cfg.Consistency.DuplicateThreshold < 0 || cfg.Consistency.DuplicateThreshold > 1 {
		return fmt.Errorf("consistency.duplicate_threshold must be in [0, 1], got %g", cfg.Consistency.DuplicateThreshold)
	}
	if cfg.Consistency.ConflictThreshold < 0 || cfg.Consistency.ConflictThreshold > 1 {
		return fmt.Errorf("consistency.conflict_threshold must be in [0, 1], got %g", cfg.Consistency.ConflictThreshold)
	}
	if cfg.Consistency.ConflictThreshold > cfg.Consistency.DuplicateThreshold {
		return fmt.Errorf("consistency.conflict_threshold (%g) must not exceed duplicate_threshold (%g)",
			cfg.Consistency.ConflictThreshold, cfg.Consistency.DuplicateThreshold)
	}
	if cfg.Consistency.NeighborK < 1 {
		return fmt.Errorf("consistency.neighbor_k must be at least 1, got %d", cfg.Consistency.NeighborK)
	}

	// Validate tag vocabulary
	if len(cfg.Memory.Tags) == 0 {
		return fmt.Errorf("memory.tags must not be empty")
	}
	tagSet := make(map[string]bool, len(cfg.Memory.Tags))
	for _, tag := range cfg.Memory.Tags {
		tagSet[tag] = true
	}
	for _, tag := range cfg.Memory.ProtectedTags {
		if !tagSet[tag] {
			return fmt.Errorf("memory.protected_tags contains '%s' which is not in memory.tags", tag)
		}
	}

	// Validate archive settings
	if cfg.Archive.Enabled && cfg.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when archive.enabled is true")
	}

	// Validate scheduler settings
	if cfg.Scheduler.Enabled && cfg.Scheduler.IntervalMinutes < 1 {
		return fmt.Errorf("scheduler.interval_minutes must be at least 1, got %d", cfg.Scheduler.IntervalMinutes)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			Mode:         "stdio",
			DefaultOwner: "default",
		},
		Database: DatabaseConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, ".mindmirror/db/mindmirror.db"),
		},
		Security: SecurityConfig{
			TokenTTL: 24,
		},
		Embeddings: EmbeddingConfig{
			Provider:   EmbeddingProviderOpenAI,
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			APIKeyEnv:  "OPENAI_API_KEY",
			Dimensions: 1536,
			CacheSize:  4096,
		},
		Consistency: ConsistencyConfig{
			DuplicateThreshold: 0.95,
			ConflictThreshold:  0.65,
			NeighborK:          3,
		},
		Memory: MemoryConfig{
			Tags:          append([]string(nil), DefaultTags...),
			ProtectedTags: append([]string(nil), DefaultProtectedTags...),
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    filepath.Join(homeDir, ".mindmirror/archive"),
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			IntervalMinutes: 60,
			PruneAfterDays:  90,
		},
	}
}
