package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/docsift/internal/config"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings; always available.
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses an Ollama-compatible HTTP endpoint.
	ProviderOllama ProviderType = "ollama"

	// ProviderNone disables embeddings.
	ProviderNone ProviderType = ""
)

// ErrDisabled is returned by New when no provider is configured.
var ErrDisabled = fmt.Errorf("embeddings disabled (embeddings.provider is empty)")

// New creates the configured embedder wrapped in an LRU cache. An
// explicitly selected provider never silently falls back to another.
func New(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) (Embedder, error) {
	var inner Embedder
	switch ProviderType(strings.ToLower(cfg.Provider)) {
	case ProviderNone:
		return nil, ErrDisabled
	case ProviderStatic:
		inner = NewStaticEmbedder()
	case ProviderOllama:
		o, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:      cfg.Host,
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Timeout:   cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		inner = o
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
