package seed

import (
	"context"
	"fmt"

	"ecoguard/internal/utils"
	"ecoguard/pkg/types"

	"github.com/sirupsen/logrus"
)

// Organizations and Agencies are the source of truth for routing candidates:
//   - rows missing from the database are inserted
//   - changed rows are updated and re-indexed
//   - rows in the database that are not listed here are deleted along with
//     their vector points
//
// New ids come from `ecoguard nanoid`.
var Organizations = []types.RoutingCandidate{
	{
		ID:    "Wq3kT8vNcX1pLm5RbZy7HdGe2AsJf9Uo",
		Name:  "Wildlife Warriors Kenya",
		About: "Dedicated to protecting Kenya's diverse wildlife through conservation, anti-poaching efforts, and community education.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/wildlife/200"),
	},
	{
		ID:    "F0rGd7QmV2nXs8KcTb4LyPwE6jHa1ZuR",
		Name:  "Forest Guardians Initiative",
		About: "Working to preserve and restore Kenya's forests, promoting sustainable forestry practices and combating deforestation.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/forest/200"),
	},
	{
		ID:    "Mr9nCt3Ue6WqLx0BvKs5PdYg8HzJa2Fo",
		Name:  "Marine Conservation Trust",
		About: "Focused on safeguarding Kenya's marine ecosystems, including coral reefs and coastal habitats, from pollution and overfishing.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/marine/200"),
	},
	{
		ID:    "Bd4sRv7Tk1NmXq9LcYw3PgZe6HuJa0Fo",
		Name:  "Rift Valley Bird Sanctuary",
		About: "Protecting migratory and resident bird species in the Great Rift Valley through habitat preservation and research.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/birds/200"),
	},
	{
		ID:    "Sv2aNn8Lt5KqRx1WcYm7PbZd3HgJe9Uo",
		Name:  "Savanna Land Trust",
		About: "Conserving critical savanna landscapes and their inhabitants, ensuring coexistence between wildlife and local communities.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/savanna/200"),
	},
	{
		ID:    "Et6oUr3Kq9NmLx2WcVb5PsZd8HgJa1Fy",
		Name:  "Eco-Tourism Kenya",
		About: "Promoting responsible tourism that benefits local communities and contributes to the conservation of natural resources.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/tourism/200"),
	},
	{
		ID:    "Cw1aTe4Rq7NmLx0KcVb9PsZd2HgJu8Fy",
		Name:  "Clean Water Advocates",
		About: "Ensuring access to clean and safe water for all communities by protecting water sources and advocating for sustainable water management.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/water/200"),
	},
	{
		ID:    "Sa5gRi2Cq8NmLx3KtVb6PwZd0HuJe7Fy",
		Name:  "Sustainable Agriculture Alliance",
		About: "Supporting farmers in adopting eco-friendly agricultural practices that enhance food security and protect the environment.",
		Logo:  utils.StringPtr("https://picsum.photos/seed/agriculture/200"),
	},
}

var Agencies = []types.RoutingCandidate{
	{
		ID:    "Nm3aEp7Kq1RxLw9TcVb4PsZd6HgJu2Fy",
		Name:  "National Environment Management Authority",
		About: "Regulates pollution, waste disposal, effluent discharge and environmental impact assessments. Enforces environmental law and prosecutes illegal dumping and industrial pollution.",
	},
	{
		ID:    "Kw8sLf2Tq5RxNm1BcVb7PdZe3HgJa9Uy",
		Name:  "Kenya Wildlife Service",
		About: "Protects wildlife in national parks and reserves. Responds to poaching, human-wildlife conflict, injured or stranded animals and encroachment on protected areas.",
	},
	{
		ID:    "Kf4oRs9Tq2NmLx6WcVb1PdZe8HgJa3Uy",
		Name:  "Kenya Forest Service",
		About: "Manages public forests. Handles illegal logging, charcoal burning, forest fires and encroachment on gazetted forest land.",
	},
	{
		ID:    "Wr7aAu1Tq4NmLx8KcVb2PdZe5HgJs0Fy",
		Name:  "Water Resources Authority",
		About: "Regulates water abstraction and protects rivers, lakes and aquifers. Responds to water pollution, illegal abstraction and riparian land degradation.",
	},
}

type Store interface {
	Candidates(ctx context.Context, candidateType types.CandidateType) ([]*types.RoutingCandidate, error)
	UpsertCandidate(ctx context.Context, candidate *types.RoutingCandidate) error
	DeleteCandidatesNotIn(ctx context.Context, candidateType types.CandidateType, keep []string) (int64, error)
}

type Index interface {
	IndexCandidate(ctx context.Context, candidate types.RoutingCandidate) (int, error)
	RemoveCandidate(ctx context.Context, candidateType types.CandidateType, id string) error
}

type Result struct {
	Type          types.CandidateType
	Upserted      int
	Deleted       int64
	Indexed       int
	IndexFailures int
}

// SyncCandidates applies both seed lists. index may be nil to skip the vector
// index. Indexing failures are logged and counted rather than aborting the
// sync; the rows are already committed and `reindex` can retry them.
func SyncCandidates(ctx context.Context, store Store, index Index, logger logrus.FieldLogger) ([]Result, error) {
	results := make([]Result, 0, 2)

	for _, set := range []struct {
		candidateType types.CandidateType
		rows          []types.RoutingCandidate
	}{
		{types.CandidateTypeOrganization, Organizations},
		{types.CandidateTypeAgency, Agencies},
	} {
		result, err := syncType(ctx, store, index, set.candidateType, set.rows, logger)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func syncType(ctx context.Context, store Store, index Index, candidateType types.CandidateType, rows []types.RoutingCandidate, logger logrus.FieldLogger) (Result, error) {
	result := Result{Type: candidateType}
	log := logger.WithField("candidate_type", candidateType)

	keep := make([]string, 0, len(rows))
	seedIDs := make(map[string]bool, len(rows))
	for _, row := range rows {
		keep = append(keep, row.ID)
		seedIDs[row.ID] = true
	}

	existing, err := store.Candidates(ctx, candidateType)
	if err != nil {
		return result, fmt.Errorf("failed to fetch existing %s rows: %w", candidateType, err)
	}
	log.WithFields(logrus.Fields{"seed": len(rows), "existing": len(existing)}).Info("starting candidate sync")

	for _, row := range existing {
		if seedIDs[row.ID] || index == nil {
			continue
		}
		if err := index.RemoveCandidate(ctx, candidateType, row.ID); err != nil {
			log.WithError(err).WithField("candidate_id", row.ID).Warn("failed to remove stale candidate from index")
		}
	}

	result.Deleted, err = store.DeleteCandidatesNotIn(ctx, candidateType, keep)
	if err != nil {
		return result, err
	}

	for _, row := range rows {
		row.Type = candidateType
		if err := store.UpsertCandidate(ctx, &row); err != nil {
			return result, err
		}
		result.Upserted++

		if index == nil {
			continue
		}
		if _, err := index.IndexCandidate(ctx, row); err != nil {
			log.WithError(err).WithField("candidate_id", row.ID).Warn("failed to index candidate")
			result.IndexFailures++
			continue
		}
		result.Indexed++
	}

	log.WithFields(logrus.Fields{
		"upserted":       result.Upserted,
		"deleted":        result.Deleted,
		"indexed":        result.Indexed,
		"index_failures": result.IndexFailures,
	}).Info("candidate sync complete")

	return result, nil
}
