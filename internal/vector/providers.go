package vector

import (
	"fmt"

	"pdf-chat-platform/internal/config"
)

// New selects the configured backend at startup. There is no runtime
// capability probing; one explicit Store serves the whole process.
func New(cfg *config.Config) (Store, error) {
	switch cfg.VectorBackend {
	case "qdrant":
		return NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey), nil
	case "chromem":
		return NewChromemStore(cfg.ChromemDir)
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.VectorBackend)
	}
}
