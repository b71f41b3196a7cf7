package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"linkloom/internal/model"
)

// Config is the application's configuration model.
// It captures credentials, the LLM provider, search defaults, cache and storage.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Credentials CredentialsConfig `yaml:"credentials"`
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Cache       CacheConfig       `yaml:"cache"`
	Storage     StorageConfig     `yaml:"storage"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"logLevel"`
	// Hard deadline per search request, above search.timeBudget
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

type CredentialsConfig struct {
	// Memory Protocol follower API token. If empty, read MEMORY_PROTOCOL_API_TOKEN
	MemoryToken string `yaml:"memoryToken"`
	// Provider keys. If empty, read GEMINI_API_KEY / OPENAI_API_KEY / ANTHROPIC_API_KEY
	GeminiKey    string `yaml:"geminiKey"`
	OpenAIKey    string `yaml:"openaiKey"`
	AnthropicKey string `yaml:"anthropicKey"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "gemini", "openai", "anthropic", "mock" or "none"
	Model    string `yaml:"model"`
	// BaseURL overrides the OpenAI endpoint for compatible APIs.
	BaseURL     string        `yaml:"baseURL"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"maxTokens"`
	MaxAttempts int           `yaml:"maxAttempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	Thresholds model.Thresholds `yaml:"thresholds"`
	Caps       model.Caps       `yaml:"caps"`
	// Bios per classifier call
	AlignChunkSize int `yaml:"alignChunkSize"`
	// Fewer passing candidates than this triggers the unfiltered fallback
	MinResults   int `yaml:"minResults"`
	MaxReturn    int `yaml:"maxReturn"`
	FallbackTopK int `yaml:"fallbackTopK"`
	// Parallel seed follower fetches
	SeedConcurrency int           `yaml:"seedConcurrency"`
	TimeBudget      time.Duration `yaml:"timeBudget"`
	// Alignment is skipped when less than this remains of the budget
	MinAlignBudget time.Duration `yaml:"minAlignBudget"`
	AutoNegative   bool          `yaml:"autoNegative"`
	// Served searches per UTC hour and day; zero means unlimited
	MaxPerHour int `yaml:"maxPerHour"`
	MaxPerDay  int `yaml:"maxPerDay"`
}

type CacheConfig struct {
	RedisURL   string        `yaml:"redisURL"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"maxEntries"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
	// Postgres takes precedence over DBPath. If empty, read DATABASE_URL
	PostgresURL string `yaml:"postgresURL"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":3001", LogLevel: "info", RequestTimeout: 2 * time.Minute},
		LLM: LLMConfig{
			Provider:    "gemini",
			Model:       "gemini-2.5-flash",
			Temperature: 0.2,
			MaxTokens:   8192,
			MaxAttempts: 3,
			Timeout:     60 * time.Second,
		},
		Search: SearchConfig{
			Thresholds:      model.Thresholds{MinSeedFollows: 2, MinScore: 0.6},
			Caps:            model.Caps{MaxSeedFollowersPerSeed: 2000, HydrateTopK: 300},
			AlignChunkSize:  100,
			MinResults:      5,
			MaxReturn:       50,
			FallbackTopK:    600,
			SeedConcurrency: 4,
			TimeBudget:      90 * time.Second,
			MinAlignBudget:  5 * time.Second,
		},
		Cache:   CacheConfig{TTL: 15 * time.Minute, MaxEntries: 2000},
		Storage: StorageConfig{DBPath: "./linkloom.db"},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Credentials.MemoryToken == "" {
		c.Credentials.MemoryToken = os.Getenv("MEMORY_PROTOCOL_API_TOKEN")
	}
	if c.Credentials.GeminiKey == "" {
		c.Credentials.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Credentials.OpenAIKey == "" {
		c.Credentials.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Credentials.AnthropicKey == "" {
		c.Credentials.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = os.Getenv("REDIS_URL")
	}
	if c.Storage.PostgresURL == "" {
		c.Storage.PostgresURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			c.Server.Addr = ":" + port
		}
	}
}

// Load reads YAML config from path. Missing fields keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	return cfg, nil
}

// LoadOrDefault is Load, falling back to defaults when the file does not exist.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		cfg.ResolveEnv()
		return cfg, nil
	}
	return cfg, err
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
