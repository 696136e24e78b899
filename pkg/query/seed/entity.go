package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/latticehq/lattice/internal/util"
	"github.com/latticehq/lattice/pkg/ai"
	"github.com/latticehq/lattice/pkg/logger"
	"github.com/latticehq/lattice/pkg/store"
)

// Raw scores of the entity matching ladder. Exact name matches rank above
// substring matches, which rank above token-overlap matches; the per-tier
// normalization preserves this ordering.
const (
	scoreExactMatch     = 1.0
	scoreSubstringMatch = 0.8
)

// EntityResolver implements Tier-1 seeding: extract named entities from the
// query text via the completion service, then resolve each name against the
// tenant's graph using a three-level matching ladder. The first matching
// strategy wins per name; strategies are never mixed for one name.
type EntityResolver struct {
	extractor ai.EntityExtractor
	store     store.GraphStore

	// OverlapThreshold is the minimum token-overlap similarity for the
	// third ladder level.
	OverlapThreshold float64
}

func NewEntityResolver(extractor ai.EntityExtractor, graphStore store.GraphStore, overlapThreshold float64) *EntityResolver {
	return &EntityResolver{
		extractor:        extractor,
		store:            graphStore,
		OverlapThreshold: overlapThreshold,
	}
}

// Resolve produces Tier-1 candidates. Extraction failures fail closed: the
// tier contributes zero candidates instead of blocking the other tiers.
// Graph access failures propagate so the caller can degrade the stage.
func (r *EntityResolver) Resolve(ctx context.Context, tenantID, queryText string) ([]Candidate, error) {
	names, err := r.extractor.ExtractEntities(ctx, queryText)
	if err != nil {
		logger.Warn("Entity extraction failed, skipping entity seeding", "err", err)
		return nil, nil
	}
	if len(names) == 0 {
		return nil, nil
	}

	exact, err := r.store.EntitiesByName(ctx, tenantID, names)
	if err != nil {
		return nil, fmt.Errorf("entity seeding: %w", err)
	}
	matchedNames := make(map[string]bool, len(exact))
	candidates := make([]Candidate, 0, len(names))
	for _, e := range exact {
		matchedNames[e.Name] = true
		candidates = append(candidates, Candidate{
			NodeID:   e.ID,
			Tier:     TierEntity,
			RawScore: scoreExactMatch,
			Source:   fmt.Sprintf("exact name match %q", e.Name),
		})
	}

	unmatched := make([]string, 0)
	for _, name := range names {
		if !matchedNames[name] {
			unmatched = append(unmatched, name)
		}
	}
	if len(unmatched) == 0 {
		return candidates, nil
	}

	allNames, err := r.store.EntityNames(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("entity seeding: %w", err)
	}

	fuzzyNames := make(map[string][]string)
	for _, name := range unmatched {
		for _, graphName := range matchLadder(name, allNames, r.OverlapThreshold) {
			fuzzyNames[graphName] = append(fuzzyNames[graphName], name)
		}
	}
	if len(fuzzyNames) == 0 {
		return candidates, nil
	}

	lookup := make([]string, 0, len(fuzzyNames))
	for graphName := range fuzzyNames {
		lookup = append(lookup, graphName)
	}
	fuzzy, err := r.store.EntitiesByName(ctx, tenantID, lookup)
	if err != nil {
		return nil, fmt.Errorf("entity seeding: %w", err)
	}
	for _, e := range fuzzy {
		score, source := fuzzyScore(e.Name, fuzzyNames[e.Name], r.OverlapThreshold)
		candidates = append(candidates, Candidate{
			NodeID:   e.ID,
			Tier:     TierEntity,
			RawScore: score,
			Source:   source,
		})
	}
	return candidates, nil
}

// matchLadder applies the second and third ladder levels for one extracted
// name: case-insensitive substring match first, then token-overlap similarity
// above the threshold. It returns the matching graph names of the first level
// that produced any.
func matchLadder(name string, graphNames []string, overlapThreshold float64) []string {
	lower := strings.ToLower(name)

	substring := make([]string, 0)
	for _, graphName := range graphNames {
		gl := strings.ToLower(graphName)
		if strings.Contains(gl, lower) || strings.Contains(lower, gl) {
			substring = append(substring, graphName)
		}
	}
	if len(substring) > 0 {
		return substring
	}

	overlap := make([]string, 0)
	for _, graphName := range graphNames {
		if util.TokenOverlap(name, graphName) >= overlapThreshold {
			overlap = append(overlap, graphName)
		}
	}
	return overlap
}

// fuzzyScore computes the candidate score for a graph entity matched through
// the fuzzy ladder levels against one or more extracted names. The best
// extracted name decides the score.
func fuzzyScore(graphName string, extractedNames []string, overlapThreshold float64) (float64, string) {
	gl := strings.ToLower(graphName)
	best := 0.0
	source := ""
	for _, name := range extractedNames {
		lower := strings.ToLower(name)
		if strings.Contains(gl, lower) || strings.Contains(lower, gl) {
			if scoreSubstringMatch > best {
				best = scoreSubstringMatch
				source = fmt.Sprintf("substring match %q", name)
			}
			continue
		}
		if score := util.TokenOverlap(name, graphName); score >= overlapThreshold && score > best {
			best = score
			source = fmt.Sprintf("token overlap with %q", name)
		}
	}
	return best, source
}
