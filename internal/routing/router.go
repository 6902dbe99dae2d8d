// Package routing ranks organizations and agencies against free text using
// chunked embeddings stored in the vector index.
package routing

import (
	"context"
	"errors"
	"sort"
	"strings"

	"ecoguard/internal/embedding"
	"ecoguard/internal/qdrant"
	"ecoguard/pkg/types"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// SearchLimit over-fetches because several chunks of one candidate can
	// each come back as a hit.
	SearchLimit = 20
	// MaxCandidates is the length of the ranked list returned to callers.
	MaxCandidates = 5

	ReportCollection = "reports"
)

// VectorIndex is the subset of the Qdrant client the router needs.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]qdrant.ScoredPoint, error)
	DeleteByPayload(ctx context.Context, collection, key, value string) error
}

type Router struct {
	embedder embedding.Provider
	index    VectorIndex
	logger   logrus.FieldLogger
}

func New(embedder embedding.Provider, index VectorIndex, logger logrus.FieldLogger) *Router {
	return &Router{
		embedder: embedder,
		index:    index,
		logger:   logger.WithField("component", "router"),
	}
}

// FindCandidates embeds queryText once, searches the collection for the
// candidate type and returns at most MaxCandidates entries, one per candidate
// id, ordered by descending similarity.
func (r *Router) FindCandidates(ctx context.Context, queryText string, candidateType types.CandidateType) ([]types.Candidate, error) {
	query := embedding.QueryText(queryText)
	if query == "" {
		return nil, types.ErrEmptyQuery
	}
	if _, err := types.ParseCandidateType(string(candidateType)); err != nil {
		return nil, err
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, embeddingFailure(err)
	}

	collection := candidateType.Collection()
	hits, err := r.index.Search(ctx, collection, vector, SearchLimit)
	if err != nil {
		if errors.Is(err, qdrant.ErrCollectionNotFound) {
			r.logger.WithField("collection", collection).Info("collection not indexed yet")
			return []types.Candidate{}, nil
		}
		return nil, err
	}

	return rankHits(hits, MaxCandidates), nil
}

// rankHits keeps the best scoring hit per candidate id and returns the top n.
func rankHits(hits []qdrant.ScoredPoint, n int) []types.Candidate {
	best := make(map[string]types.Candidate, len(hits))
	for _, hit := range hits {
		id := hit.PayloadString("candidate_id")
		if id == "" {
			continue
		}
		if existing, ok := best[id]; ok && existing.SimilarityScore >= hit.Score {
			continue
		}
		best[id] = types.Candidate{
			ID:              id,
			Name:            hit.PayloadString("name"),
			Logo:            hit.PayloadString("logo"),
			SimilarityScore: hit.Score,
		}
	}

	ranked := make([]types.Candidate, 0, len(best))
	for _, c := range best {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].SimilarityScore != ranked[j].SimilarityScore {
			return ranked[i].SimilarityScore > ranked[j].SimilarityScore
		}
		return ranked[i].ID < ranked[j].ID
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// IndexCandidate replaces the candidate's points with one point per chunk of
// its About text. It returns the number of points written.
func (r *Router) IndexCandidate(ctx context.Context, candidate types.RoutingCandidate) (int, error) {
	if _, err := types.ParseCandidateType(string(candidate.Type)); err != nil {
		return 0, err
	}
	if strings.TrimSpace(candidate.ID) == "" {
		return 0, types.NewValidationError("id", "candidate id is required")
	}

	logo := ""
	if candidate.Logo != nil {
		logo = *candidate.Logo
	}
	userID := ""
	if candidate.UserID != nil {
		userID = *candidate.UserID
	}

	base := map[string]any{
		"candidate_id":   candidate.ID,
		"candidate_type": string(candidate.Type),
		"name":           candidate.Name,
		"logo":           logo,
		"user_id":        userID,
	}

	count, err := r.indexText(ctx, candidate.Type.Collection(), "candidate_id", candidate.ID, candidate.About, base)
	if err != nil {
		return 0, err
	}

	r.logger.WithFields(logrus.Fields{
		"candidate_id":   candidate.ID,
		"candidate_type": candidate.Type,
		"points":         count,
	}).Info("indexed routing candidate")

	return count, nil
}

// RemoveCandidate drops every point indexed for the candidate.
func (r *Router) RemoveCandidate(ctx context.Context, candidateType types.CandidateType, id string) error {
	if _, err := types.ParseCandidateType(string(candidateType)); err != nil {
		return err
	}
	return r.index.DeleteByPayload(ctx, candidateType.Collection(), "candidate_id", id)
}

// IndexReport indexes a report description into the reports collection.
func (r *Router) IndexReport(ctx context.Context, report types.Report) (int, error) {
	base := map[string]any{
		"report_id":     report.ID,
		"report_number": report.ReportNumber,
		"title":         report.Title,
		"user_id":       report.UserID,
	}

	return r.indexText(ctx, ReportCollection, "report_id", report.ID, report.Description, base)
}

func (r *Router) indexText(ctx context.Context, collection, idKey, id, text string, base map[string]any) (int, error) {
	chunks := embedding.GenerateChunks(text, embedding.DefaultChunkSize, embedding.DefaultChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := embedding.EmbedAll(ctx, r.embedder, chunks)
	if err != nil {
		return 0, embeddingFailure(err)
	}

	if err := r.index.EnsureCollection(ctx, collection); err != nil {
		return 0, err
	}
	if err := r.index.DeleteByPayload(ctx, collection, idKey, id); err != nil {
		return 0, err
	}

	points := make([]qdrant.Point, 0, len(chunks))
	for i, chunk := range chunks {
		payload := make(map[string]any, len(base)+1)
		for k, v := range base {
			payload[k] = v
		}
		payload["content"] = chunk

		points = append(points, qdrant.Point{
			ID:      uuid.NewString(),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	if err := r.index.Upsert(ctx, collection, points); err != nil {
		return 0, err
	}

	return len(points), nil
}

func embeddingFailure(err error) error {
	remote := &types.RemoteError{Service: "embedding", Retryable: true, Err: err}

	var cause *types.RemoteError
	if errors.As(err, &cause) {
		remote.StatusCode = cause.StatusCode
		remote.Message = cause.Message
	}
	return remote
}
