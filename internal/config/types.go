// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Security    SecurityConfig    `mapstructure:"security"`
	Embeddings  EmbeddingConfig   `mapstructure:"embeddings"`
	Consistency ConsistencyConfig `mapstructure:"consistency"`
	Memory      MemoryConfig      `mapstructure:"memory"`
	Archive     ArchiveConfig     `mapstructure:"archive"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// Mode selects the MCP transport: "stdio" or "http"
	Mode string `mapstructure:"mode"`
	// DefaultOwner is the owner id used in stdio mode, where there is
	// no authenticated user on the connection
	DefaultOwner string `mapstructure:"default_owner"`
	TLS          struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"` // at-rest encryption of memory text
	TokenTTL      int    `mapstructure:"token_ttl_hours"`
}

// EmbeddingConfig holds configuration for the embedding provider
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`    // "openai", "azure", "local", "mock"
	BaseURL    string `mapstructure:"base_url"`    // API base URL
	Model      string `mapstructure:"model"`       // Model name (e.g., "text-embedding-3-small")
	APIKeyEnv  string `mapstructure:"api_key_env"` // Environment variable name for API key
	Dimensions int    `mapstructure:"dimensions"`  // Vector dimensions (e.g., 1536)
	CacheSize  int64  `mapstructure:"cache_size"`  // Max entries in the embedding cache, 0 disables
}

// ConsistencyConfig holds the thresholds driving duplicate rejection
// and conflict linking. Similarities are in [0, 1].
type ConsistencyConfig struct {
	DuplicateThreshold float64 `mapstructure:"duplicate_threshold"` // reject above this
	ConflictThreshold  float64 `mapstructure:"conflict_threshold"`  // link at or above this
	NeighborK          int     `mapstructure:"neighbor_k"`          // neighbors checked by the guard
}

// MemoryConfig holds the tag vocabulary and retention settings
type MemoryConfig struct {
	Tags          []string `mapstructure:"tags"`
	ProtectedTags []string `mapstructure:"protected_tags"` // never reported by prune
}

// ArchiveConfig holds the forget-archive settings
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // local git repository for forgotten memories
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	PruneAfterDays  int  `mapstructure:"prune_after_days"` // candidates unread this long get reported
}

// EmbeddingProviders defines valid embedding providers
const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderAzure  = "azure"
	EmbeddingProviderLocal  = "local"
	EmbeddingProviderMock   = "mock"
)

// ValidEmbeddingProviders returns all valid embedding provider values
func ValidEmbeddingProviders() []string {
	return []string{
		EmbeddingProviderOpenAI,
		EmbeddingProviderAzure,
		EmbeddingProviderLocal,
		EmbeddingProviderMock,
	}
}

// isValidType is a generic helper to check if a type is in a list of valid types
func isValidType(aType string, validTypes []string) bool {
	for _, valid := range validTypes {
		if aType == valid {
			return true
		}
	}
	return false
}

// IsValidEmbeddingProvider checks if a provider is valid
func IsValidEmbeddingProvider(provider string) bool {
	return isValidType(provider, ValidEmbeddingProviders())
}
