package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort = 8000
	defaultEnv  = "development"

	defaultDBDriver   = "mysql"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "somaai"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultSQLitePath = "somaai.db"

	defaultRedisHost = "localhost"
	defaultRedisPort = 6379
	defaultRedisDB   = 0

	defaultQdrantURL        = "http://localhost:6333"
	defaultQdrantCollection = "somaai_documents"
	defaultQdrantTimeout    = 15 * time.Second

	defaultLLMProvider     = "openai"
	defaultLLMModel        = "gpt-4o-mini"
	defaultLLMMaxTokens    = 1024
	defaultLLMTimeout      = 60 * time.Second
	defaultEmbeddingModel  = "text-embedding-3-small"
	defaultEmbeddingDim    = 1536
	defaultEmbeddingBatch  = 50
	defaultEmbeddingRPS    = 5.0
	defaultRerankerKind    = "similarity"
	defaultRerankerTopN    = 5
	defaultRerankerTimeout = 10 * time.Second

	defaultTopK                 = 20
	defaultSufficiencyThreshold = 0.3
	defaultPublishThreshold     = 0.7
	defaultStageTimeout         = 20 * time.Second
	defaultEmbeddingTTL         = time.Hour
	defaultResponseTTL          = 24 * time.Hour

	defaultChunkSize     = 1000
	defaultChunkOverlap  = 200
	defaultBatchSize     = 50
	defaultMinAlnumRatio = 0.3
	defaultMinQuality    = 0.3
	defaultMaxFileMB     = 50

	defaultWorkers           = 2
	defaultMaxAttempts       = 3
	defaultBackoffBase       = time.Second
	defaultBackoffMax        = 60 * time.Second
	defaultHeartbeatInterval = 10 * time.Second
	defaultStaleAfter        = 60 * time.Second
	defaultReclaimInterval   = 30 * time.Second

	defaultRateLimit    = 5
	defaultHTTPCacheTTL = 15 * time.Second

	defaultStorageBackend = "local"
	defaultUploadsDir     = "uploads"
	defaultLogsDir        = "logs"
)
