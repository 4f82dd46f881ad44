package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int             `yaml:"port"`
	Env            string          `yaml:"env"` // "development" | "production"
	AllowedOrigins []string        `yaml:"allowed_origins"`
	Timezone       string          `yaml:"timezone"`
	Paths          PathsConfig     `yaml:"paths"`
	Database       DatabaseConfig  `yaml:"database"`
	Redis          RedisConfig     `yaml:"redis"`
	Qdrant         QdrantConfig    `yaml:"qdrant"`
	LLM            LLMConfig       `yaml:"llm"`
	Embedding      EmbeddingConfig `yaml:"embedding"`
	Reranker       RerankerConfig  `yaml:"reranker"`
	RAG            RAGConfig       `yaml:"rag"`
	Ingest         IngestConfig    `yaml:"ingest"`
	Jobs           JobsConfig      `yaml:"jobs"`
	Storage        StorageConfig   `yaml:"storage"`
	Auth           AuthConfig      `yaml:"auth"`
	HTTP           HTTPConfig      `yaml:"http"`
}

type PathsConfig struct {
	Logs    string `yaml:"logs"`
	Uploads string `yaml:"uploads"`
}

type DatabaseConfig struct {
	Driver   string            `yaml:"driver"` // mysql | sqlite
	DSN      string            `yaml:"dsn"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Name     string            `yaml:"name"`
	Charset  string            `yaml:"charset"`
	Loc      string            `yaml:"loc"`
	Params   map[string]string `yaml:"params"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type QdrantConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig selects the generation model. Provider: openai | anthropic | openai-compatible.
type LLMConfig struct {
	Provider        string        `yaml:"provider"`
	APIKey          string        `yaml:"api_key"`
	Endpoint        string        `yaml:"endpoint"`
	Model           string        `yaml:"model"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

type EmbeddingConfig struct {
	APIKey    string  `yaml:"api_key"`
	Endpoint  string  `yaml:"endpoint"`
	Model     string  `yaml:"model"`
	Dimension int     `yaml:"dimension"`
	BatchSize int     `yaml:"batch_size"`
	RPS       float64 `yaml:"rps"`
}

// RerankerConfig selects the relevance scorer. Kind: similarity | tei.
type RerankerConfig struct {
	Kind     string        `yaml:"kind"`
	Endpoint string        `yaml:"endpoint"`
	TopN     int           `yaml:"top_n"`
	MinScore float64       `yaml:"min_score"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RAGConfig struct {
	TopK                 int           `yaml:"top_k"`
	SufficiencyThreshold float64       `yaml:"sufficiency_threshold"`
	PublishThreshold     float64       `yaml:"publish_threshold"`
	StageTimeout         time.Duration `yaml:"stage_timeout"`
	EmbeddingTTL         time.Duration `yaml:"embedding_ttl"`
	ResponseTTL          time.Duration `yaml:"response_ttl"`
}

type IngestConfig struct {
	ChunkSize     int     `yaml:"chunk_size"`
	ChunkOverlap  int     `yaml:"chunk_overlap"`
	BatchSize     int     `yaml:"batch_size"`
	MinAlnumRatio float64 `yaml:"min_alnum_ratio"`
	MinQuality    float64 `yaml:"min_quality"`
	MaxFileMB     int     `yaml:"max_file_mb"`
}

type JobsConfig struct {
	Workers           int           `yaml:"workers"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	ReclaimInterval   time.Duration `yaml:"reclaim_interval"`
	// Inline runs the worker pool inside the HTTP server process.
	Inline *bool `yaml:"inline"`
}

// StorageConfig selects where uploaded files live. Backend: local | s3.
type StorageConfig struct {
	Backend  string   `yaml:"backend"`
	LocalDir string   `yaml:"local_dir"`
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

// HTTPConfig tunes the request guards. RateLimit is per client IP per second on /chat/ask.
type HTTPConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type AuthConfig struct {
	JWTSecret string   `yaml:"jwt_secret"`
	APIKeys   []string `yaml:"api_keys"`
}

// Load reads the YAML file at configPath, applies .env and environment overrides
// and validates the result. A missing default config file is not an error.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := Default()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	loadDotEnv()
	applyEnv(&cfg)
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}

// Default returns a fully populated configuration.
func Default() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseConfig{
			Driver:   defaultDBDriver,
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
		},
		Redis: RedisConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Qdrant: QdrantConfig{
			URL:        defaultQdrantURL,
			Collection: defaultQdrantCollection,
			Timeout:    defaultQdrantTimeout,
		},
		LLM: LLMConfig{
			Provider:        defaultLLMProvider,
			Model:           defaultLLMModel,
			MaxOutputTokens: defaultLLMMaxTokens,
			Timeout:         defaultLLMTimeout,
		},
		Embedding: EmbeddingConfig{
			Model:     defaultEmbeddingModel,
			Dimension: defaultEmbeddingDim,
			BatchSize: defaultEmbeddingBatch,
			RPS:       defaultEmbeddingRPS,
		},
		Reranker: RerankerConfig{
			Kind:    defaultRerankerKind,
			TopN:    defaultRerankerTopN,
			Timeout: defaultRerankerTimeout,
		},
		RAG: RAGConfig{
			TopK:                 defaultTopK,
			SufficiencyThreshold: defaultSufficiencyThreshold,
			PublishThreshold:     defaultPublishThreshold,
			StageTimeout:         defaultStageTimeout,
			EmbeddingTTL:         defaultEmbeddingTTL,
			ResponseTTL:          defaultResponseTTL,
		},
		Ingest: IngestConfig{
			ChunkSize:     defaultChunkSize,
			ChunkOverlap:  defaultChunkOverlap,
			BatchSize:     defaultBatchSize,
			MinAlnumRatio: defaultMinAlnumRatio,
			MinQuality:    defaultMinQuality,
			MaxFileMB:     defaultMaxFileMB,
		},
		Jobs: JobsConfig{
			Workers:           defaultWorkers,
			MaxAttempts:       defaultMaxAttempts,
			BackoffBase:       defaultBackoffBase,
			BackoffMax:        defaultBackoffMax,
			HeartbeatInterval: defaultHeartbeatInterval,
			StaleAfter:        defaultStaleAfter,
			ReclaimInterval:   defaultReclaimInterval,
		},
		Storage: StorageConfig{Backend: defaultStorageBackend},
		HTTP: HTTPConfig{
			RateLimit: defaultRateLimit,
			CacheTTL:  defaultHTTPCacheTTL,
		},
	}
	normalize(&cfg)
	return cfg
}

// Validate rejects values the services cannot run with.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Driver != "mysql" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("invalid database.driver %q, expected mysql or sqlite", c.Database.Driver)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	if c.RAG.PublishThreshold < 0 || c.RAG.PublishThreshold > 1 {
		return fmt.Errorf("invalid rag.publish_threshold %v, expected 0-1", c.RAG.PublishThreshold)
	}
	if c.RAG.SufficiencyThreshold < 0 || c.RAG.SufficiencyThreshold > 1 {
		return fmt.Errorf("invalid rag.sufficiency_threshold %v, expected 0-1", c.RAG.SufficiencyThreshold)
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.HTTP.RateLimit < 1 {
		return fmt.Errorf("invalid http.rate_limit %d, expected >= 1", c.HTTP.RateLimit)
	}
	switch c.Storage.Backend {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" || c.Storage.S3.Region == "" {
			return errors.New("storage.s3 requires bucket and region")
		}
	default:
		return fmt.Errorf("invalid storage.backend %q, expected local or s3", c.Storage.Backend)
	}
	return nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" || c.Env == "dev" }

// InlineWorkers reports whether serve should run the job workers in-process.
func (c *AppConfig) InlineWorkers() bool {
	if c.Jobs.Inline == nil {
		return true
	}
	return *c.Jobs.Inline
}

// LogDir returns the resolved log directory.
func (c *AppConfig) LogDir() string { return runtimeDir(c.Paths.Logs, defaultLogsDir) }

// UploadsDir returns the resolved local blob directory.
func (c *AppConfig) UploadsDir() string {
	if c.Storage.LocalDir != "" {
		return runtimeDir(c.Storage.LocalDir, defaultUploadsDir)
	}
	return runtimeDir(c.Paths.Uploads, defaultUploadsDir)
}

// MaxFileBytes is the upload size limit.
func (c *AppConfig) MaxFileBytes() int64 { return int64(c.Ingest.MaxFileMB) << 20 }
