// Package embedding turns text into fixed-length vectors for the vector index.
package embedding

import (
	"context"
	"fmt"
	"strings"

	"ecoguard/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	ProviderGoogle = "google"
	ProviderOpenAI = "openai"

	// MaxBatchSize is the most texts sent in one batch call.
	MaxBatchSize = 100
)

// Provider embeds text. EmbedBatch returns one vector per input, in order.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// New builds the configured provider. A non-nil redis client wraps it in the
// embedding cache.
func New(config *types.Config, rdb *redis.Client, logger logrus.FieldLogger) (Provider, error) {
	var provider Provider

	switch strings.ToLower(config.EmbeddingProvider) {
	case ProviderGoogle, "":
		if config.GoogleAPIKey == "" {
			return nil, fmt.Errorf("google embedding provider requires an api key")
		}
		provider = NewGemini(config.GoogleAPIBaseURL, config.GoogleAPIKey, config.EmbeddingModel, config.EmbeddingDimensions)
	case ProviderOpenAI:
		if config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires an api key")
		}
		provider = NewOpenAI(config.OpenAIBaseURL, config.OpenAIAPIKey, config.EmbeddingModel, config.EmbeddingDimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.EmbeddingProvider)
	}

	if rdb != nil {
		provider = NewCached(provider, rdb, config.EmbeddingCacheTTL, logger)
	}

	return provider, nil
}

// EmbedAll embeds texts in batches of at most MaxBatchSize.
func EmbedAll(ctx context.Context, provider Provider, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(texts))

		vectors, err := provider.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, &types.RemoteError{
				Service: "embedding",
				Message: fmt.Sprintf("expected %d vectors, got %d", end-start, len(vectors)),
			}
		}
		out = append(out, vectors...)
	}
	return out, nil
}
