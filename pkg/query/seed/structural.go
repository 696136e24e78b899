package seed

import (
	"context"
	"fmt"
	"sort"

	"github.com/latticehq/lattice/internal/util"
	"github.com/latticehq/lattice/pkg/ai"
	"github.com/latticehq/lattice/pkg/store"
)

const rrfK = 60.0

// StructuralResolver implements Tier-2 seeding: embed the query, vector-search
// chunk embeddings, rerank the hits by fusing semantic similarity with keyword
// coverage, and map the surviving chunks to their co-located entities.
type StructuralResolver struct {
	ai    ai.GraphAIClient
	store store.GraphStore

	// TopK bounds the vector search; the rerank works on an oversampled
	// candidate pool and cuts back down to TopK.
	TopK int
}

func NewStructuralResolver(client ai.GraphAIClient, graphStore store.GraphStore, topK int) *StructuralResolver {
	return &StructuralResolver{ai: client, store: graphStore, TopK: topK}
}

func (r *StructuralResolver) Resolve(ctx context.Context, tenantID, queryText string) ([]Candidate, error) {
	embedding, err := r.ai.GenerateEmbedding(ctx, []byte(queryText))
	if err != nil {
		return nil, fmt.Errorf("structural seeding: %w", err)
	}

	topK := r.TopK
	if topK <= 0 {
		topK = 10
	}
	poolSize := min(max(topK*4, 40), 200)

	hits, err := r.store.VectorSearchChunks(ctx, tenantID, embedding, poolSize)
	if err != nil {
		return nil, fmt.Errorf("structural seeding: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	hits = fuseKeywordRank(hits, queryText)
	if len(hits) > topK {
		hits = hits[:topK]
	}

	chunkIDs := make([]string, len(hits))
	chunkScore := make(map[string]float64, len(hits))
	for i, h := range hits {
		chunkIDs[i] = h.Chunk.ID
		chunkScore[h.Chunk.ID] = h.Score
	}

	entitiesByChunk, err := r.store.EntitiesForChunks(ctx, tenantID, chunkIDs)
	if err != nil {
		return nil, fmt.Errorf("structural seeding: %w", err)
	}

	// An entity reached through several chunks keeps its best chunk score.
	best := make(map[string]Candidate)
	for chunkID, entities := range entitiesByChunk {
		score := chunkScore[chunkID]
		for _, e := range entities {
			if existing, ok := best[e.ID]; !ok || score > existing.RawScore {
				best[e.ID] = Candidate{
					NodeID:   e.ID,
					Tier:     TierStructural,
					RawScore: score,
					Source:   fmt.Sprintf("chunk %s", chunkID),
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

// fuseKeywordRank reranks vector hits with reciprocal-rank fusion of the
// semantic rank and a keyword-coverage rank over the query's tokens. When the
// query yields no usable tokens the semantic order stands.
func fuseKeywordRank(hits []store.ChunkMatch, queryText string) []store.ChunkMatch {
	keywords := util.Tokenize(queryText)
	if len(keywords) == 0 || len(hits) < 2 {
		return hits
	}

	coverage := make([]float64, len(hits))
	for i, h := range hits {
		chunkTokens := make(map[string]bool)
		for _, tok := range util.Tokenize(h.Chunk.Text) {
			chunkTokens[tok] = true
		}
		matched := 0
		for _, kw := range keywords {
			if chunkTokens[kw] {
				matched++
			}
		}
		coverage[i] = float64(matched) / float64(len(keywords))
	}

	semanticRank := rankPositions(len(hits), func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Chunk.ID < hits[b].Chunk.ID
	})
	coverageRank := rankPositions(len(hits), func(a, b int) bool {
		if coverage[a] != coverage[b] {
			return coverage[a] > coverage[b]
		}
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Chunk.ID < hits[b].Chunk.ID
	})

	fused := make([]float64, len(hits))
	for i := range hits {
		fused[i] = 1.0/(rrfK+float64(semanticRank[i])) + 1.0/(rrfK+float64(coverageRank[i]))
	}

	order := make([]int, len(hits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if fused[order[a]] != fused[order[b]] {
			return fused[order[a]] > fused[order[b]]
		}
		return hits[order[a]].Chunk.ID < hits[order[b]].Chunk.ID
	})

	reranked := make([]store.ChunkMatch, len(hits))
	for pos, idx := range order {
		reranked[pos] = hits[idx]
	}
	return reranked
}

// rankPositions returns each index's 1-based rank under the given order.
func rankPositions(n int, less func(a, b int) bool) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return less(order[a], order[b]) })

	positions := make([]int, n)
	for rank, idx := range order {
		positions[idx] = rank + 1
	}
	return positions
}
