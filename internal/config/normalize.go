package config

import (
	"strings"
)

func normalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)

	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)

	cfg.Qdrant.URL = strings.TrimRight(strings.TrimSpace(cfg.Qdrant.URL), "/")
	if cfg.Qdrant.URL == "" {
		cfg.Qdrant.URL = defaultQdrantURL
	}
	if strings.TrimSpace(cfg.Qdrant.Collection) == "" {
		cfg.Qdrant.Collection = defaultQdrantCollection
	}
	if cfg.Qdrant.Timeout <= 0 {
		cfg.Qdrant.Timeout = defaultQdrantTimeout
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = defaultLLMProvider
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = defaultLLMModel
	}
	if cfg.LLM.MaxOutputTokens <= 0 {
		cfg.LLM.MaxOutputTokens = defaultLLMMaxTokens
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = defaultLLMTimeout
	}

	if strings.TrimSpace(cfg.Embedding.Model) == "" {
		cfg.Embedding.Model = defaultEmbeddingModel
	}
	if cfg.Embedding.Dimension <= 0 {
		cfg.Embedding.Dimension = defaultEmbeddingDim
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = defaultEmbeddingBatch
	}
	if cfg.Embedding.RPS <= 0 {
		cfg.Embedding.RPS = defaultEmbeddingRPS
	}
	if cfg.Embedding.APIKey == "" && (cfg.LLM.Provider == "openai" || cfg.LLM.Provider == "openai-compatible") {
		cfg.Embedding.APIKey = cfg.LLM.APIKey
	}

	cfg.Reranker.Kind = strings.ToLower(strings.TrimSpace(cfg.Reranker.Kind))
	if cfg.Reranker.Kind == "" {
		cfg.Reranker.Kind = defaultRerankerKind
	}
	if cfg.Reranker.TopN <= 0 {
		cfg.Reranker.TopN = defaultRerankerTopN
	}
	if cfg.Reranker.Timeout <= 0 {
		cfg.Reranker.Timeout = defaultRerankerTimeout
	}

	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.RAG.StageTimeout <= 0 {
		cfg.RAG.StageTimeout = defaultStageTimeout
	}
	if cfg.RAG.EmbeddingTTL <= 0 {
		cfg.RAG.EmbeddingTTL = defaultEmbeddingTTL
	}
	if cfg.RAG.ResponseTTL <= 0 {
		cfg.RAG.ResponseTTL = defaultResponseTTL
	}

	if cfg.Ingest.ChunkSize <= 0 {
		cfg.Ingest.ChunkSize = defaultChunkSize
	}
	if cfg.Ingest.ChunkOverlap < 0 {
		cfg.Ingest.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.Ingest.BatchSize <= 0 {
		cfg.Ingest.BatchSize = defaultBatchSize
	}
	if cfg.Ingest.MaxFileMB <= 0 {
		cfg.Ingest.MaxFileMB = defaultMaxFileMB
	}

	if cfg.Jobs.Workers <= 0 {
		cfg.Jobs.Workers = defaultWorkers
	}
	if cfg.Jobs.MaxAttempts <= 0 {
		cfg.Jobs.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Jobs.BackoffBase <= 0 {
		cfg.Jobs.BackoffBase = defaultBackoffBase
	}
	if cfg.Jobs.BackoffMax <= 0 {
		cfg.Jobs.BackoffMax = defaultBackoffMax
	}
	if cfg.Jobs.HeartbeatInterval <= 0 {
		cfg.Jobs.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Jobs.StaleAfter <= 0 {
		cfg.Jobs.StaleAfter = defaultStaleAfter
	}
	if cfg.Jobs.ReclaimInterval <= 0 {
		cfg.Jobs.ReclaimInterval = defaultReclaimInterval
	}

	if cfg.HTTP.RateLimit == 0 {
		cfg.HTTP.RateLimit = defaultRateLimit
	}
	if cfg.HTTP.CacheTTL <= 0 {
		cfg.HTTP.CacheTTL = defaultHTTPCacheTTL
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaultStorageBackend
	}
	cfg.Storage.S3.Prefix = strings.Trim(strings.TrimSpace(cfg.Storage.S3.Prefix), "/")

	cfg.Paths.Logs = strings.TrimSpace(cfg.Paths.Logs)
	cfg.Paths.Uploads = strings.TrimSpace(cfg.Paths.Uploads)
	cfg.Auth.APIKeys = normalizeOrigins(cfg.Auth.APIKeys)
}

func normalizeDatabaseConfig(cfg DatabaseConfig) DatabaseConfig {
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch cfg.Driver {
	case "":
		cfg.Driver = defaultDBDriver
	case "sqlite3":
		cfg.Driver = "sqlite"
	}
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaultDBHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultDBPort
	}
	cfg.User = strings.TrimSpace(cfg.User)
	if cfg.User == "" {
		cfg.User = defaultDBUser
	}
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = defaultDBName
	}
	cfg.Charset = strings.TrimSpace(cfg.Charset)
	if cfg.Charset == "" {
		cfg.Charset = defaultDBCharset
	}
	cfg.Loc = strings.TrimSpace(cfg.Loc)
	if cfg.Loc == "" {
		cfg.Loc = defaultDBLoc
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisConfig) RedisConfig {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	return cfg
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	v := strings.ToLower(strings.TrimSpace(env))
	if v == "" {
		return defaultEnv
	}
	return v
}
