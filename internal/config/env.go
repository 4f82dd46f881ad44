package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv loads .env from the working directory when present.
// Variables already set in the process environment win.
func loadDotEnv() {
	_ = godotenv.Load()
}

// applyEnv overrides file values with SOMA_* variables and the provider key variables.
func applyEnv(cfg *AppConfig) {
	envInt("SOMA_PORT", &cfg.Port)
	envString("SOMA_ENV", &cfg.Env)
	if v, ok := lookup("SOMA_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = strings.Split(v, ",")
	}
	envString("TZ", &cfg.Timezone)
	envString("SOMA_LOG_DIR", &cfg.Paths.Logs)
	envString("SOMA_UPLOADS_DIR", &cfg.Paths.Uploads)

	envString("SOMA_DB_DRIVER", &cfg.Database.Driver)
	envString("SOMA_DB_DSN", &cfg.Database.DSN)
	envString("SOMA_DB_HOST", &cfg.Database.Host)
	envInt("SOMA_DB_PORT", &cfg.Database.Port)
	envString("SOMA_DB_USER", &cfg.Database.User)
	envString("SOMA_DB_PASSWORD", &cfg.Database.Password)
	envString("SOMA_DB_NAME", &cfg.Database.Name)

	envString("SOMA_REDIS_URL", &cfg.Redis.URL)
	envString("SOMA_QDRANT_URL", &cfg.Qdrant.URL)
	envString("SOMA_QDRANT_API_KEY", &cfg.Qdrant.APIKey)
	envString("SOMA_QDRANT_COLLECTION", &cfg.Qdrant.Collection)

	envString("SOMA_LLM_PROVIDER", &cfg.LLM.Provider)
	envString("SOMA_LLM_MODEL", &cfg.LLM.Model)
	envString("SOMA_LLM_ENDPOINT", &cfg.LLM.Endpoint)
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "anthropic":
			envString("ANTHROPIC_API_KEY", &cfg.LLM.APIKey)
		default:
			envString("OPENAI_API_KEY", &cfg.LLM.APIKey)
		}
	}
	envString("SOMA_LLM_API_KEY", &cfg.LLM.APIKey)

	envString("SOMA_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envString("SOMA_EMBEDDING_ENDPOINT", &cfg.Embedding.Endpoint)
	if cfg.Embedding.APIKey == "" {
		envString("OPENAI_API_KEY", &cfg.Embedding.APIKey)
	}
	envString("SOMA_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)

	envString("SOMA_RERANKER_KIND", &cfg.Reranker.Kind)
	envString("SOMA_RERANKER_ENDPOINT", &cfg.Reranker.Endpoint)

	envInt("SOMA_WORKERS", &cfg.Jobs.Workers)
	envDuration("SOMA_JOB_STALE_AFTER", &cfg.Jobs.StaleAfter)

	envString("SOMA_STORAGE_BACKEND", &cfg.Storage.Backend)
	envString("SOMA_S3_BUCKET", &cfg.Storage.S3.Bucket)
	envString("SOMA_S3_REGION", &cfg.Storage.S3.Region)
	envString("SOMA_S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	envString("SOMA_S3_ACCESS_KEY_ID", &cfg.Storage.S3.AccessKeyID)
	envString("SOMA_S3_SECRET_ACCESS_KEY", &cfg.Storage.S3.SecretAccessKey)

	envInt("SOMA_RATE_LIMIT", &cfg.HTTP.RateLimit)

	envString("SOMA_JWT_SECRET", &cfg.Auth.JWTSecret)
	if v, ok := lookup("SOMA_API_KEYS"); ok {
		cfg.Auth.APIKeys = strings.Split(v, ",")
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func envString(key string, dst *string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
