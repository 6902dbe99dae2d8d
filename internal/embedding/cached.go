package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ecoguard/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const cacheKeyPrefix = "embedding:"

// Cached stores vectors in redis keyed by model and text. Cache failures are
// logged and fall through to the wrapped provider.
type Cached struct {
	provider Provider
	redis    *redis.Client
	ttl      time.Duration
	logger   logrus.FieldLogger
}

func NewCached(provider Provider, rdb *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *Cached {
	return &Cached{
		provider: provider,
		redis:    rdb,
		ttl:      ttl,
		logger:   logger.WithField("component", "embedding_cache"),
	}
}

func (c *Cached) Model() string {
	return c.provider.Model()
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(c.provider.Model() + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var vector []float32
		if err := json.Unmarshal(raw, &vector); err == nil {
			return vector, nil
		}
		c.logger.WithField("key", key).Warn("discarding undecodable cached embedding")
	case !errors.Is(err, redis.Nil):
		c.logger.WithError(err).Warn("embedding cache read failed")
	}

	vector, err := c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.store(ctx, map[string][]float32{key: vector})
	return vector, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.key(text)
	}

	out := make([][]float32, len(texts))

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WithError(err).Warn("embedding cache read failed")
		values = nil
	}

	missIdx := make([]int, 0, len(texts))
	for i := range texts {
		if i < len(values) {
			if s, ok := values[i].(string); ok {
				var vector []float32
				if err := json.Unmarshal([]byte(s), &vector); err == nil {
					out[i] = vector
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) == 0 {
		return out, nil
	}

	missing := make([]string, len(missIdx))
	for j, i := range missIdx {
		missing[j] = texts[i]
	}

	vectors, err := c.provider.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, &types.RemoteError{
			Service: "embedding",
			Message: fmt.Sprintf("expected %d vectors, got %d", len(missing), len(vectors)),
		}
	}

	fresh := make(map[string][]float32, len(vectors))
	for j, i := range missIdx {
		out[i] = vectors[j]
		fresh[keys[i]] = vectors[j]
	}
	c.store(ctx, fresh)

	return out, nil
}

func (c *Cached) store(ctx context.Context, vectors map[string][]float32) {
	if len(vectors) == 0 {
		return
	}

	pipe := c.redis.Pipeline()
	for key, vector := range vectors {
		raw, err := json.Marshal(vector)
		if err != nil {
			continue
		}
		pipe.Set(ctx, key, raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WithError(err).Warn("embedding cache write failed")
	}
}
