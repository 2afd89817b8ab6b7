// Package config provides configuration management for notemap.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/thebtf/notemap/pkg/models"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38040

	// DefaultEmbeddingModel is the default embedding model name.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultEmbeddingDimensions matches the default model's output size.
	DefaultEmbeddingDimensions = 1536
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `json:"worker_port"`

	// Vault settings
	VaultPath string `json:"vault_path"`

	// Database settings
	DBPath   string `json:"db_path"`
	MaxConns int    `json:"max_conns"`

	// Embedding settings
	EmbeddingBaseURL    string `json:"embedding_base_url"`
	EmbeddingModel      string `json:"embedding_model"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`

	// Clustering overrides (zero values fall back to pipeline defaults)
	Clustering models.ClusteringConfig `json:"clustering"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.notemap).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".notemap")
}

// DBPath returns the database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "notemap.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort:          DefaultWorkerPort,
		DBPath:              DBPath(),
		MaxConns:            4,
		EmbeddingModel:      DefaultEmbeddingModel,
		EmbeddingDimensions: DefaultEmbeddingDimensions,
		Clustering:          models.DefaultClusteringConfig(),
	}
}

// Load loads configuration from the settings file, merging with defaults.
// A missing or unparsable settings file yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var settings map[string]interface{}
	if err := json.Unmarshal(data, &settings); err != nil {
		return cfg, nil
	}

	if v, ok := settings["NOTEMAP_WORKER_PORT"].(float64); ok && v > 0 {
		cfg.WorkerPort = int(v)
	}
	if v, ok := settings["NOTEMAP_VAULT_PATH"].(string); ok && v != "" {
		cfg.VaultPath = v
	}
	if v, ok := settings["NOTEMAP_DB_PATH"].(string); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := settings["NOTEMAP_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["NOTEMAP_EMBEDDING_BASE_URL"].(string); ok && v != "" {
		cfg.EmbeddingBaseURL = v
	}
	if v, ok := settings["NOTEMAP_EMBEDDING_MODEL"].(string); ok && v != "" {
		cfg.EmbeddingModel = v
	}
	if v, ok := settings["NOTEMAP_EMBEDDING_DIMENSIONS"].(float64); ok && v > 0 {
		cfg.EmbeddingDimensions = int(v)
	}
	if v, ok := settings["NOTEMAP_MIN_CLUSTER_SIZE"].(float64); ok && v > 0 {
		cfg.Clustering.MinClusterSize = int(v)
	}
	if v, ok := settings["NOTEMAP_MIN_NOTES_FOR_CLUSTERING"].(float64); ok && v > 0 {
		cfg.Clustering.MinNotesForClustering = int(v)
	}
	if v, ok := settings["NOTEMAP_N_NEIGHBORS"].(float64); ok && v > 0 {
		cfg.Clustering.NNeighbors = int(v)
	}
	if v, ok := settings["NOTEMAP_N_COMPONENTS"].(float64); ok && v > 0 {
		cfg.Clustering.NComponents = int(v)
	}
	if v, ok := settings["NOTEMAP_NOISE_THRESHOLD"].(float64); ok && v > 0 && v <= 1 {
		cfg.Clustering.NoiseThreshold = v
	}
	if v, ok := settings["NOTEMAP_INCREMENTAL_THRESHOLD"].(float64); ok && v > 0 && v <= 1 {
		cfg.Clustering.IncrementalThreshold = v
	}

	return cfg, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// GetWorkerPort returns the worker port from environment or config.
func GetWorkerPort() int {
	if port := os.Getenv("NOTEMAP_WORKER_PORT"); port != "" {
		var p int
		if err := json.Unmarshal([]byte(port), &p); err == nil && p > 0 {
			return p
		}
	}
	return Get().WorkerPort
}

// GetEmbeddingAPIKey returns the embedding provider API key. Secrets come
// from the environment only, never the settings file.
func GetEmbeddingAPIKey() string {
	return os.Getenv("NOTEMAP_EMBEDDING_API_KEY")
}

// GetEmbeddingBaseURL returns the embedding API base URL from environment
// or config.
func GetEmbeddingBaseURL() string {
	if v := os.Getenv("NOTEMAP_EMBEDDING_BASE_URL"); v != "" {
		return v
	}
	return Get().EmbeddingBaseURL
}

// GetVaultPath returns the vault path from environment or config.
func GetVaultPath() string {
	if v := os.Getenv("NOTEMAP_VAULT_PATH"); v != "" {
		return v
	}
	return Get().VaultPath
}
