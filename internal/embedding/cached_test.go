package embedding

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ecoguard/pkg/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	embedCalls int
	batchCalls int
	batchSizes []int
	drop       int
	err        error
}

func (p *countingProvider) Model() string { return "test-model" }

func (p *countingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	p.embedCalls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(text))}, nil
}

func (p *countingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.batchCalls++
	p.batchSizes = append(p.batchSizes, len(texts))
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out[:len(out)-min(p.drop, len(out))], nil
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupCache(t *testing.T) (*miniredis.Miniredis, *countingProvider, *Cached) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &countingProvider{}
	return mr, inner, NewCached(inner, rdb, time.Hour, quietLogger())
}

func TestCached_EmbedHitsProviderOnce(t *testing.T) {
	_, inner, cache := setupCache(t)
	ctx := context.Background()

	first, err := cache.Embed(ctx, "smoke over the market")
	require.NoError(t, err)
	second, err := cache.Embed(ctx, "smoke over the market")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embedCalls)
}

func TestCached_EmbedBatchOnlyFetchesMisses(t *testing.T) {
	_, inner, cache := setupCache(t)
	ctx := context.Background()

	_, err := cache.Embed(ctx, "bb")
	require.NoError(t, err)

	vectors, err := cache.EmbedBatch(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1}, {2}, {3}}, vectors)
	assert.Equal(t, []int{2}, inner.batchSizes)

	_, err = cache.EmbedBatch(ctx, []string{"a", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchCalls)
}

func TestCached_SetsTTL(t *testing.T) {
	mr, _, cache := setupCache(t)

	_, err := cache.Embed(context.Background(), "x")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	mr, inner, cache := setupCache(t)
	mr.Close()

	vector, err := cache.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, vector)
	assert.Equal(t, 1, inner.embedCalls)
}

func TestCached_ProviderErrorNotCached(t *testing.T) {
	mr, inner, cache := setupCache(t)
	inner.err = errors.New("boom")

	_, err := cache.Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.Empty(t, mr.Keys())
}

func TestCached_ShortBatchIsRemoteError(t *testing.T) {
	mr, inner, cache := setupCache(t)
	inner.drop = 1

	vectors, err := cache.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	assert.Nil(t, vectors)

	var remote *types.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "embedding", remote.Service)
	assert.Contains(t, remote.Message, "expected 3 vectors, got 2")
	assert.Empty(t, mr.Keys())
}

func TestEmbedAll_Batches(t *testing.T) {
	inner := &countingProvider{}
	texts := make([]string, 250)
	for i := range texts {
		texts[i] = "t"
	}

	vectors, err := EmbedAll(context.Background(), inner, texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 250)
	assert.Equal(t, []int{100, 100, 50}, inner.batchSizes)
}
