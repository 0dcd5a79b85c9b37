// Package storage pins certificate metadata and artifacts to content-addressed storage.
package storage

import (
	"context"
	"fmt"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
)

type Gateway interface {
	// UploadMetadata pins a JSON document and returns its content hash.
	UploadMetadata(ctx context.Context, metadata any, name string) (string, error)
	// UploadArtifact pins raw bytes under filename and returns their content hash.
	UploadArtifact(ctx context.Context, data []byte, filename string) (string, error)
	GatewayURL(hash string) string
}

// New builds the gateway selected by STORAGE_DRIVER.
func New(cfg config.StorageConfig, m *metrics.Metrics, log *logger.Logger) (Gateway, error) {
	switch cfg.Driver {
	case "", "pinata":
		return NewPinata(cfg, m, log), nil
	case "memory":
		log.Warn("STORAGE", "Using in-memory content store, pins are lost on restart")
		return NewMemory(cfg.GatewayURL), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
