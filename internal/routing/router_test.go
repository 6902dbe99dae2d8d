package routing

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"ecoguard/internal/qdrant"
	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*Router, *MockEmbedder, *MockIndex) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	embedder := new(MockEmbedder)
	index := new(MockIndex)
	return New(embedder, index, logger), embedder, index
}

func hit(id string, score float64) qdrant.ScoredPoint {
	return qdrant.ScoredPoint{Score: score, Payload: map[string]any{"candidate_id": id, "name": "name-" + id, "logo": "logo-" + id}}
}

func TestFindCandidates_DedupByMaxScore(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	embedder.On("Embed", ctx, "illegal dumping near river").Return([]float32{0.1, 0.2}, nil)
	index.On("Search", ctx, "organizations", []float32{0.1, 0.2}, SearchLimit).Return([]qdrant.ScoredPoint{
		hit("org-2", 0.40),
		hit("org-123", 0.62),
		hit("org-123", 0.81),
		hit("org-2", 0.55),
		{Score: 0.99, Payload: map[string]any{"name": "orphan chunk"}},
		hit("org-3", 0.10),
	}, nil)

	got, err := router.FindCandidates(ctx, "illegal dumping\nnear river", types.CandidateTypeOrganization)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, types.Candidate{ID: "org-123", Name: "name-org-123", Logo: "logo-org-123", SimilarityScore: 0.81}, got[0])
	assert.Equal(t, "org-2", got[1].ID)
	assert.InDelta(t, 0.55, got[1].SimilarityScore, 1e-9)
	assert.Equal(t, "org-3", got[2].ID)

	embedder.AssertNumberOfCalls(t, "Embed", 1)
	index.AssertExpectations(t)
}

func TestFindCandidates_TopFiveSortedUnique(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	hits := make([]qdrant.ScoredPoint, 0)
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		hits = append(hits, hit(id, float64(i)/10), hit(id, float64(i)/20))
	}

	embedder.On("Embed", ctx, "smoke").Return([]float32{1}, nil)
	index.On("Search", ctx, "agencies", []float32{1}, SearchLimit).Return(hits, nil)

	got, err := router.FindCandidates(ctx, "smoke", types.CandidateTypeAgency)
	require.NoError(t, err)
	require.Len(t, got, MaxCandidates)

	seen := map[string]bool{}
	for i, c := range got {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, got[i-1].SimilarityScore, c.SimilarityScore)
		}
	}
	assert.Equal(t, "g", got[0].ID)
}

func TestFindCandidates_TiesBrokenByID(t *testing.T) {
	got := rankHits([]qdrant.ScoredPoint{hit("b", 0.5), hit("a", 0.5)}, MaxCandidates)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestFindCandidates_EmptyCorpus(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	embedder.On("Embed", ctx, "noise").Return([]float32{1}, nil)
	index.On("Search", ctx, "organizations", []float32{1}, SearchLimit).Return([]qdrant.ScoredPoint{}, nil)

	got, err := router.FindCandidates(ctx, "noise", types.CandidateTypeOrganization)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindCandidates_MissingCollection(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	embedder.On("Embed", ctx, "noise").Return([]float32{1}, nil)
	index.On("Search", ctx, "agencies", []float32{1}, SearchLimit).Return(nil, qdrant.ErrCollectionNotFound)

	got, err := router.FindCandidates(ctx, "noise", types.CandidateTypeAgency)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindCandidates_EmptyQueryMakesNoCalls(t *testing.T) {
	router, embedder, index := newTestRouter()

	_, err := router.FindCandidates(context.Background(), "  \n ", types.CandidateTypeOrganization)
	assert.ErrorIs(t, err, types.ErrEmptyQuery)

	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFindCandidates_EmbeddingFailureIsRetryable(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	embedder.On("Embed", ctx, "oil").Return(nil, &types.RemoteError{Service: "embedding", StatusCode: 400, Message: "quota"})

	_, err := router.FindCandidates(ctx, "oil", types.CandidateTypeOrganization)
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))

	var remote *types.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "quota", remote.Message)
	index.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFindCandidates_InvalidType(t *testing.T) {
	router, _, _ := newTestRouter()
	_, err := router.FindCandidates(context.Background(), "x", types.CandidateType("school"))
	assert.ErrorIs(t, err, types.ErrInvalidCandidateType)
}

func TestIndexCandidate(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	about := strings.Repeat("wetland restoration ", 100)
	candidate := types.RoutingCandidate{
		ID:     "org-123",
		Type:   types.CandidateTypeOrganization,
		Name:   "River Keepers",
		Logo:   utils.StringPtr("logo.png"),
		About:  about,
		UserID: utils.StringPtr("user-1"),
	}

	embedder.On("EmbedBatch", ctx, mock.AnythingOfType("[]string")).Return([][]float32{{1}, {2}, {3}}, nil)
	index.On("EnsureCollection", ctx, "organizations").Return(nil)
	index.On("DeleteByPayload", ctx, "organizations", "candidate_id", "org-123").Return(nil)
	index.On("Upsert", ctx, "organizations", mock.MatchedBy(func(points []qdrant.Point) bool {
		if len(points) != 3 {
			return false
		}
		for _, p := range points {
			if p.ID == "" || p.Payload["candidate_id"] != "org-123" || p.Payload["candidate_type"] != "organization" ||
				p.Payload["name"] != "River Keepers" || p.Payload["logo"] != "logo.png" || p.Payload["user_id"] != "user-1" {
				return false
			}
			if _, ok := p.Payload["content"].(string); !ok {
				return false
			}
		}
		return points[0].ID != points[1].ID
	})).Return(nil)

	n, err := router.IndexCandidate(ctx, candidate)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	index.AssertExpectations(t)
}

func TestIndexCandidate_EmptyAbout(t *testing.T) {
	router, embedder, index := newTestRouter()

	n, err := router.IndexCandidate(context.Background(), types.RoutingCandidate{ID: "ag-1", Type: types.CandidateTypeAgency})
	require.NoError(t, err)
	assert.Zero(t, n)
	embedder.AssertNotCalled(t, "EmbedBatch", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexCandidate_EmbeddingFailureLeavesIndexUntouched(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	embedder.On("EmbedBatch", ctx, mock.Anything).Return(nil, errors.New("timeout"))

	_, err := router.IndexCandidate(ctx, types.RoutingCandidate{ID: "ag-1", Type: types.CandidateTypeAgency, About: "flood response"})
	require.Error(t, err)
	assert.True(t, types.IsRetryable(err))
	index.AssertNotCalled(t, "DeleteByPayload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexReport(t *testing.T) {
	router, embedder, index := newTestRouter()
	ctx := context.Background()

	embedder.On("EmbedBatch", ctx, []string{"burning tyres behind the school"}).Return([][]float32{{1}}, nil)
	index.On("EnsureCollection", ctx, ReportCollection).Return(nil)
	index.On("DeleteByPayload", ctx, ReportCollection, "report_id", "r1").Return(nil)
	index.On("Upsert", ctx, ReportCollection, mock.MatchedBy(func(points []qdrant.Point) bool {
		return len(points) == 1 && points[0].Payload["report_id"] == "r1" && points[0].Payload["title"] == "Tyres"
	})).Return(nil)

	n, err := router.IndexReport(ctx, types.Report{ID: "r1", Title: "Tyres", Description: "burning tyres  behind the school"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemoveCandidate(t *testing.T) {
	ctx := context.Background()
	router, _, index := newTestRouter()

	index.On("DeleteByPayload", ctx, "agencies", "candidate_id", "ag-1").Return(nil).Once()
	require.NoError(t, router.RemoveCandidate(ctx, types.CandidateTypeAgency, "ag-1"))

	assert.ErrorIs(t, router.RemoveCandidate(ctx, "ngo", "x"), types.ErrInvalidCandidateType)
	index.AssertExpectations(t)
}
