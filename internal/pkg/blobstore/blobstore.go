package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("blob not found")

// Store keeps uploaded source files until ingestion has consumed them.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, localDir string) (Store, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3(ctx, cfg.S3)
	case "local", "":
		return NewLocal(localDir)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func normalizeObjectKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimLeft(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return ""
	}
	return key
}
