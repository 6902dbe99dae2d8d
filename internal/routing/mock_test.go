package routing

import (
	"context"

	"ecoguard/internal/qdrant"

	"github.com/stretchr/testify/mock"
)

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) EnsureCollection(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockIndex) Upsert(ctx context.Context, collection string, points []qdrant.Point) error {
	args := m.Called(ctx, collection, points)
	return args.Error(0)
}

func (m *MockIndex) Search(ctx context.Context, collection string, vector []float32, limit int) ([]qdrant.ScoredPoint, error) {
	args := m.Called(ctx, collection, vector, limit)
	hits, _ := args.Get(0).([]qdrant.ScoredPoint)
	return hits, args.Error(1)
}

func (m *MockIndex) DeleteByPayload(ctx context.Context, collection, key, value string) error {
	args := m.Called(ctx, collection, key, value)
	return args.Error(0)
}

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Model() string { return "mock" }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vector, _ := args.Get(0).([]float32)
	return vector, args.Error(1)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	vectors, _ := args.Get(0).([][]float32)
	return vectors, args.Error(1)
}
