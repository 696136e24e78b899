package seed

import (
	"context"
	"fmt"
	"sort"

	"github.com/latticehq/lattice/pkg/ai"
	"github.com/latticehq/lattice/pkg/store"
)

// ThematicResolver implements Tier-3 seeding: match the query embedding
// against community summaries and expand the top matches to their member
// entities. Each member inherits its community's match score; members of
// several matched communities keep the best.
type ThematicResolver struct {
	ai    ai.GraphAIClient
	store store.GraphStore

	TopK int
}

func NewThematicResolver(client ai.GraphAIClient, graphStore store.GraphStore, topK int) *ThematicResolver {
	return &ThematicResolver{ai: client, store: graphStore, TopK: topK}
}

func (r *ThematicResolver) Resolve(ctx context.Context, tenantID, queryText string) ([]Candidate, error) {
	embedding, err := r.ai.GenerateEmbedding(ctx, []byte(queryText))
	if err != nil {
		return nil, fmt.Errorf("thematic seeding: %w", err)
	}

	topK := r.TopK
	if topK <= 0 {
		topK = 3
	}
	matches, err := r.store.CommunityMatch(ctx, tenantID, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("thematic seeding: %w", err)
	}

	best := make(map[string]Candidate)
	for _, m := range matches {
		for _, memberID := range m.Community.MemberIDs {
			if existing, ok := best[memberID]; !ok || m.Score > existing.RawScore {
				best[memberID] = Candidate{
					NodeID:   memberID,
					Tier:     TierThematic,
					RawScore: m.Score,
					Source:   fmt.Sprintf("community %s", m.Community.ID),
				}
			}
		}
	}

	candidates := make([]Candidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].RawScore != candidates[j].RawScore {
			return candidates[i].RawScore > candidates[j].RawScore
		}
		return candidates[i].NodeID < candidates[j].NodeID
	})
	return candidates, nil
}
