package config

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v2"
)

// =============================================================================
// TrustMesh Mediator - Configuration with Environment Overrides
// =============================================================================

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Chain       ChainConfig       `yaml:"chain"`
	KVStore     KVStoreConfig     `yaml:"kvstore"`
	Batch       BatchConfig       `yaml:"batch"`
	Model       ModelConfig       `yaml:"model"`
	ShipmentFeed ShipmentFeedConfig `yaml:"shipment_feed"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type ServerConfig struct {
	Env string `yaml:"env"`
}

// ChainConfig configures the ArcClient's connection to the EVM chain.
type ChainConfig struct {
	URL             string `yaml:"url"`
	ContractAddress string `yaml:"contract_address"`
	AgentKey        string `yaml:"agent_key"`
}

// KVStoreConfig selects and sizes the persistent key/value backend.
type KVStoreConfig struct {
	Backend      string `yaml:"backend"` // lmdb (default embedded) | postgres | postgrestest
	Path         string `yaml:"path"`
	DatabaseURL  string `yaml:"database_url"`
	CacheSize    int    `yaml:"cache_size"`
}

// BatchConfig configures the BatchRunner's flush trigger.
type BatchConfig struct {
	Threshold    int `yaml:"threshold"`
	IntervalSec  int `yaml:"interval_sec"`
}

// ModelConfig configures the pluggable decision Agent.
type ModelConfig struct {
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BaseURL     string  `yaml:"base_url"`
	Provider    string  `yaml:"provider"` // grpc | none
}

// ShipmentFeedConfig configures the external shipment HTTP collaborator.
type ShipmentFeedConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// =============================================================================
// Singleton Pattern with Environment Overrides
// =============================================================================

var (
	instance *Config
	once     sync.Once
)

// Get returns the singleton config instance, loading config.yaml (or
// $CONFIG_PATH) once and applying environment overrides.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides, per §6 of the
// external interfaces contract.
func (c *Config) applyEnvOverrides() {
	c.Server.Env = getEnv("TRUSTMESH_ENV", c.Server.Env)

	c.Chain.URL = getEnv("CHAIN_URL", c.Chain.URL)
	c.Chain.ContractAddress = getEnv("CONTRACT_ADDRESS", c.Chain.ContractAddress)
	c.Chain.AgentKey = getEnv("AGENT_KEY", c.Chain.AgentKey)

	c.KVStore.Backend = getEnv("DB_BACKEND", c.KVStore.Backend)
	c.KVStore.Path = getEnv("KVSTORE_PATH", c.KVStore.Path)
	c.KVStore.DatabaseURL = getEnv("DATABASE_URL", c.KVStore.DatabaseURL)
	if v := getEnvInt("KVSTORE_CACHE_SIZE", 0); v > 0 {
		c.KVStore.CacheSize = v
	}

	if v := getEnvInt("BATCH_THRESHOLD", 0); v > 0 {
		c.Batch.Threshold = v
	}
	if v := getEnvInt("BATCH_INTERVAL_SEC", 0); v > 0 {
		c.Batch.IntervalSec = v
	}

	c.Model.Name = getEnv("MODEL_NAME", c.Model.Name)
	c.Model.APIKey = getEnv("MODEL_API_KEY", c.Model.APIKey)
	if v := getEnvFloat("MODEL_TEMPERATURE", -1); v >= 0 {
		c.Model.Temperature = v
	}
	if v := getEnvInt("MODEL_MAX_TOKENS", 0); v > 0 {
		c.Model.MaxTokens = v
	}
	c.Model.BaseURL = getEnv("MODEL_BASE_URL", c.Model.BaseURL)
	c.Model.Provider = getEnv("MODEL_PROVIDER", c.Model.Provider)

	c.ShipmentFeed.Addr = getEnv("SHIPFEED_ADDR", c.ShipmentFeed.Addr)
	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)

	c.applyDefaults()
}

// applyDefaults sets sensible defaults for zero-valued config fields.
func (c *Config) applyDefaults() {
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Chain.URL == "" {
		c.Chain.URL = "http://127.0.0.1:8545"
	}
	if c.KVStore.Backend == "" {
		c.KVStore.Backend = "lmdb"
	}
	if c.KVStore.Path == "" {
		c.KVStore.Path = "trustmesh.db"
	}
	if c.KVStore.CacheSize == 0 {
		c.KVStore.CacheSize = 30
	}
	if c.Batch.Threshold == 0 {
		c.Batch.Threshold = 5
	}
	if c.Batch.IntervalSec == 0 {
		c.Batch.IntervalSec = 5
	}
	if c.Model.Provider == "" {
		c.Model.Provider = "none"
	}
	if c.ShipmentFeed.Addr == "" {
		c.ShipmentFeed.Addr = ":8000"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// =============================================================================
// Convenience Methods
// =============================================================================

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}
