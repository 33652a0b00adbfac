package config

import (
	"fmt"
	"time"
)

// DefaultConfig 返回带默认值的配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "javis",
			SampleRate:   1.0,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			DefaultTTL: 10 * time.Minute,
			PoolSize:   10,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "javis.db",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Qdrant: QdrantConfig{
			Host:             "localhost",
			Port:             6333,
			CollectionPrefix: "javis",
			Timeout:          10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "http://localhost:8100",
			Model:      "colqwen-omni",
			Dimensions: 128,
			Timeout:    30 * time.Second,
		},
		Rerank: RerankConfig{
			Enabled: true,
			BaseURL: "http://localhost:8200",
			Model:   "monovlm",
			Timeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Model:             "gemini-2.0-flash",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 0,
			VisionEnabled:     true,
		},
		Retrieval: RetrievalConfig{
			KCandidates:        40,
			KFinal:             10,
			SearchTimeout:      5 * time.Second,
			ContextTokenBudget: 6000,
			MaxImages:          4,
		},
		Routing: RoutingConfig{
			ConfidenceThreshold: 0.6,
			DefaultHandler:      "chat",
			Offline:             false,
			CacheTTL:            10 * time.Minute,
		},
		Tools: ToolsConfig{
			WebSearchURL:        "http://localhost:8888",
			WebSearchMaxResults: 5,
			LocalFileRoot:       ".",
		},
		Redaction: RedactionConfig{},
	}
}

// DefaultValidator 校验配置基本合法性
func DefaultValidator(cfg *Config) error {
	if cfg.Routing.ConfidenceThreshold < 0 || cfg.Routing.ConfidenceThreshold > 1 {
		return fmt.Errorf("routing.confidence_threshold must be in [0,1], got %v", cfg.Routing.ConfidenceThreshold)
	}
	if cfg.Routing.DefaultHandler == "" {
		return fmt.Errorf("routing.default_handler is required")
	}
	if cfg.Retrieval.KCandidates <= 0 {
		return fmt.Errorf("retrieval.k_candidates must be positive, got %d", cfg.Retrieval.KCandidates)
	}
	if cfg.Retrieval.KFinal <= 0 || cfg.Retrieval.KFinal > cfg.Retrieval.KCandidates {
		return fmt.Errorf("retrieval.k_final must be in (0, k_candidates], got %d", cfg.Retrieval.KFinal)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	switch cfg.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or mysql, got %q", cfg.Database.Driver)
	}
	return nil
}
