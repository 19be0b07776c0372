package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port                int               `json:"port"`
	LogConfig           logger.LogConfig  `json:"log_config"`
	Database            DatabaseConfig    `json:"database"`
	AI                  AIConfig          `json:"ai"`
	EmbedCache          EmbedCacheConfig  `json:"embed_cache"`
	VectorIndex         VectorIndexConfig `json:"vector_index"`
	Chunker             ChunkerConfig     `json:"chunker"`
	Pipeline            PipelineConfig    `json:"pipeline"`
	FileStore           FileStoreConfig   `json:"file_store"`
	Notify              NotifyConfig      `json:"notify"`
	Schedule            ScheduleConfig    `json:"schedule"`
	CORSAllowlist       []string          `json:"cors_allowlist"`
	AskRateLimitSeconds int               `json:"ask_rate_limit_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`

	MaxOpenConns int `json:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns"`
}

type AIProviderConfig struct {
	Name string      `json:"name"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// AIConfig wires providers to callers. Generators is keyed by caller name:
// "default", a stage name, or "ask". Each entry is a fallback chain.
type AIConfig struct {
	Providers  []AIProviderConfig      `json:"providers"`
	Generators map[string][]AIModelRef `json:"generators"`
	Embedders  []AIModelRef            `json:"embedders"`
	Timeout    int                     `json:"timeout"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	Persist       bool `json:"persist"`
	MaxAgeDays    int  `json:"max_age_days"`
}

type VectorIndexConfig struct {
	Type string `json:"type"`
}

type ChunkerConfig struct {
	ChunkSize    int `json:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap"`
}

type PipelineConfig struct {
	StageTimeoutSeconds int `json:"stage_timeout_seconds"`
	MaxConcurrentJobs   int `json:"max_concurrent_jobs"`
	AskTopK             int `json:"ask_top_k"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type NotifyConfig struct {
	TimeoutSeconds int `json:"timeout_seconds"`
}

type ScheduleConfig struct {
	EmbeddingCacheCleanup string `json:"embedding_cache_cleanup"`
	StaleJobSweep         string `json:"stale_job_sweep"`
	StaleJobMinutes       int    `json:"stale_job_minutes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if len(cfg.AI.Providers) == 0 {
		return fmt.Errorf("ai.providers is required")
	}
	names := make(map[string]struct{}, len(cfg.AI.Providers))
	for i, p := range cfg.AI.Providers {
		if p.Name == "" {
			return fmt.Errorf("ai.providers[%d].name is required", i)
		}
		if p.Type == "" {
			cfg.AI.Providers[i].Type = p.Name
		}
		names[p.Name] = struct{}{}
	}
	if len(cfg.AI.Generators["default"]) == 0 {
		return fmt.Errorf("ai.generators.default is required")
	}
	for caller, refs := range cfg.AI.Generators {
		if err := checkRefs("ai.generators."+caller, refs, names); err != nil {
			return err
		}
	}
	if len(cfg.AI.Embedders) == 0 {
		return fmt.Errorf("ai.embedders is required")
	}
	if err := checkRefs("ai.embedders", cfg.AI.Embedders, names); err != nil {
		return err
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 120
	}
	if cfg.EmbedCache.MaxAgeDays == 0 {
		cfg.EmbedCache.MaxAgeDays = 30
	}
	switch strings.ToLower(cfg.VectorIndex.Type) {
	case "":
		cfg.VectorIndex.Type = "pgvector"
	case "memory", "pgvector":
		cfg.VectorIndex.Type = strings.ToLower(cfg.VectorIndex.Type)
	default:
		return fmt.Errorf("vector_index.type must be memory or pgvector")
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}
	if cfg.Chunker.ChunkOverlap == 0 {
		cfg.Chunker.ChunkOverlap = 200
	}
	if cfg.Chunker.ChunkOverlap >= cfg.Chunker.ChunkSize {
		return fmt.Errorf("chunker.chunk_overlap must be smaller than chunk_size")
	}
	if cfg.Pipeline.StageTimeoutSeconds == 0 {
		cfg.Pipeline.StageTimeoutSeconds = 300
	}
	if cfg.Pipeline.MaxConcurrentJobs == 0 {
		cfg.Pipeline.MaxConcurrentJobs = 4
	}
	if cfg.Pipeline.AskTopK == 0 {
		cfg.Pipeline.AskTopK = 10
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Notify.TimeoutSeconds == 0 {
		cfg.Notify.TimeoutSeconds = 10
	}
	if cfg.Schedule.EmbeddingCacheCleanup == "" {
		cfg.Schedule.EmbeddingCacheCleanup = "0 3 * * *"
	}
	if cfg.Schedule.StaleJobSweep == "" {
		cfg.Schedule.StaleJobSweep = "*/10 * * * *"
	}
	if cfg.Schedule.StaleJobMinutes == 0 {
		cfg.Schedule.StaleJobMinutes = 60
	}
	if cfg.AskRateLimitSeconds < 0 {
		cfg.AskRateLimitSeconds = 0
	}
	return nil
}

func checkRefs(field string, refs []AIModelRef, providers map[string]struct{}) error {
	for i, ref := range refs {
		if ref.Model == "" {
			return fmt.Errorf("%s[%d].model is required", field, i)
		}
		if _, ok := providers[ref.Provider]; !ok {
			return fmt.Errorf("%s[%d].provider %q is not defined", field, i, ref.Provider)
		}
	}
	return nil
}
