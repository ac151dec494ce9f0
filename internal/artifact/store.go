// Package artifact persists the stdout artifact the Completion Committer
// hands off after a task runs, keyed by task_id. Two backends are
// supported, selected by the grid_storage_service config key: S3 and
// Redis.
package artifact

import (
	"context"
	"fmt"
	"os"

	"github.com/aws-samples/htc-grid-agent/internal/config"
)

// Store puts and gets the stdout artifact for a task, by task_id key.
// Callers are responsible for any encoding (e.g. base64) of in-memory
// payloads before calling Put - the store itself is a byte-oblivious blob.
type Store interface {
	// Put writes data under key.
	Put(ctx context.Context, key string, data []byte) error
	// PutFile reads path and writes its contents under key.
	PutFile(ctx context.Context, key, path string) error
	// Get reads the bytes stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
}

// NewStore builds the backend named by cfg.GridStorageService.
func NewStore(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.GridStorageService {
	case "redis":
		return newRedisStore(cfg)
	case "s3", "":
		return newS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("artifact: unknown grid_storage_service %q", cfg.GridStorageService)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %q: %w", path, err)
	}
	return data, nil
}
