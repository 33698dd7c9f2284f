package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"

	"github.com/tubetalk/tubetalk/internal/ai"
	"github.com/tubetalk/tubetalk/internal/captions"
	"github.com/tubetalk/tubetalk/internal/index"
	"github.com/tubetalk/tubetalk/internal/repo"
	"github.com/tubetalk/tubetalk/internal/service"
	"github.com/tubetalk/tubetalk/internal/splitter"
	"github.com/tubetalk/tubetalk/internal/transcriptstore"
)

type Config struct {
	Port                 int                     `json:"port"`
	LogConfig            logger.LogConfig        `json:"log_config"`
	Captions             captions.Config         `json:"captions"`
	AI                   AIConfig                `json:"ai"`
	Index                index.Config            `json:"index"`
	Split                SplitConfig             `json:"split"`
	Retrieve             RetrieveConfig          `json:"retrieve"`
	Database             *repo.DatabaseConfig    `json:"database"`
	TranscriptStore      *transcriptstore.Config `json:"transcript_store"`
	EmbeddingCache       EmbeddingCacheConfig    `json:"embedding_cache"`
	Jobs                 JobsConfig              `json:"jobs"`
	CORSAllowlist        []string                `json:"cors_allowlist"`
	LoadRateLimitSeconds int                     `json:"load_rate_limit_seconds"`
	ChatRateLimitSeconds int                     `json:"chat_rate_limit_seconds"`
}

type AIConfig struct {
	Provider         string      `json:"provider"`
	Model            string      `json:"model"`
	EmbedModel       string      `json:"embed_model"`
	Data             interface{} `json:"data"`
	Timeout          int         `json:"timeout"`
	AnswerStyle      string      `json:"answer_style"`
	MaxQuestionChars int         `json:"max_question_chars"`
}

type SplitConfig struct {
	ChunkSize  int  `json:"chunk_size"`
	Overlap    int  `json:"overlap"`
	ReuseCache bool `json:"reuse_cache"`
}

type RetrieveConfig struct {
	TopK int `json:"top_k"`
}

type EmbeddingCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	UseDatabase   bool `json:"use_database"`
}

type JobsConfig struct {
	EmbeddingCacheCleanupSpec string `json:"embedding_cache_cleanup_spec"`
	EmbeddingCacheMaxAgeDays  int    `json:"embedding_cache_max_age_days"`
}

// Load reads a JSON config file. ${VAR} references are expanded from the
// environment so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	raw = []byte(os.ExpandEnv(string(raw)))

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	switch cfg.AI.AnswerStyle {
	case "", ai.AnswerStyleFirstPerson, ai.AnswerStyleThirdPerson:
	default:
		return nil, fmt.Errorf("ai.answer_style must be %s or %s", ai.AnswerStyleFirstPerson, ai.AnswerStyleThirdPerson)
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "chromem"
	}
	if cfg.Index.Type == "pgvector" && cfg.Database == nil {
		return nil, fmt.Errorf("database is required for the pgvector index")
	}
	if cfg.EmbeddingCache.UseDatabase && cfg.Database == nil {
		return nil, fmt.Errorf("database is required for the database embedding cache")
	}
	if cfg.Split.ChunkSize == 0 {
		cfg.Split.ChunkSize = splitter.DefaultChunkSize
		if cfg.Split.Overlap == 0 {
			cfg.Split.Overlap = splitter.DefaultOverlap
		}
	}
	if cfg.Split.ChunkSize <= cfg.Split.Overlap || cfg.Split.Overlap < 0 {
		return nil, fmt.Errorf("split.chunk_size must be greater than split.overlap, overlap must not be negative")
	}
	if cfg.Retrieve.TopK == 0 {
		cfg.Retrieve.TopK = service.DefaultTopK
	}
	if cfg.Retrieve.TopK < 0 {
		return nil, fmt.Errorf("retrieve.top_k must be positive")
	}
	return &cfg, nil
}
