package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/logger"
	"github.com/latticehq/lattice/pkg/query/distill"
	"github.com/latticehq/lattice/pkg/query/drift"
	"github.com/latticehq/lattice/pkg/query/ppr"
	"github.com/latticehq/lattice/pkg/query/seed"
	"github.com/latticehq/lattice/pkg/store"
)

// RouteStrategy is one retrieval strategy. All five strategies share the seed,
// ranking, exploration, and evidence building blocks of the orchestrator
// instead of duplicating pipelines.
type RouteStrategy interface {
	Route() Route
	// SeedTiers reports which seed tiers the route consumes.
	SeedTiers() (entity, structural, thematic bool)
	// Retrieve runs the route's retrieval stage over the resolved seeds.
	// A strategy that loses a sub-stage to ErrGraphUnavailable keeps the
	// evidence gathered so far and marks the run partial instead of
	// failing.
	Retrieve(ctx context.Context, o *Orchestrator, run *runState) error
}

// runState is the per-query scratch space threaded through the stages.
type runState struct {
	req     Request
	route   Route
	profile seed.Profile
	trace   *Trace

	seeds    seed.Vector
	ranked   []ppr.RankedNode
	subgraph *store.Subgraph
	paths    []drift.Path
	units    []distill.Unit
	partial  bool
}

type vectorStrategy struct{}

func (vectorStrategy) Route() Route                  { return RouteVector }
func (vectorStrategy) SeedTiers() (bool, bool, bool) { return false, true, false }

// Retrieve answers from vector-similar chunks alone: no ranking, no
// traversal. The chunk hits behind the Tier-2 seeds are refetched as
// evidence.
func (vectorStrategy) Retrieve(ctx context.Context, o *Orchestrator, run *runState) error {
	embedding, err := o.ai.GenerateEmbedding(ctx, []byte(run.req.QueryText))
	if err != nil {
		return fmt.Errorf("vector retrieval: %w", err)
	}
	hits, err := o.store.VectorSearchChunks(ctx, run.req.TenantID, embedding, o.cfg.StructuralTopK)
	if err != nil {
		return err
	}
	chunks := make([]common.TextChunk, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
	}
	return o.addChunkEvidence(ctx, run, chunks)
}

type localStrategy struct{}

func (localStrategy) Route() Route                  { return RouteLocal }
func (localStrategy) SeedTiers() (bool, bool, bool) { return true, true, false }

func (s localStrategy) Retrieve(ctx context.Context, o *Orchestrator, run *runState) error {
	if err := o.rank(ctx, run); err != nil {
		return err
	}
	return o.gatherEntityEvidence(ctx, run)
}

type globalStrategy struct{}

func (globalStrategy) Route() Route                  { return RouteGlobal }
func (globalStrategy) SeedTiers() (bool, bool, bool) { return false, true, true }

func (s globalStrategy) Retrieve(ctx context.Context, o *Orchestrator, run *runState) error {
	if err := o.rank(ctx, run); err != nil {
		return err
	}
	return o.gatherEntityEvidence(ctx, run)
}

type multiHopStrategy struct{}

func (multiHopStrategy) Route() Route                  { return RouteMultiHop }
func (multiHopStrategy) SeedTiers() (bool, bool, bool) { return true, true, true }

// Retrieve ranks, gathers the entity evidence, then explores reasoning
// paths. Exploration failing with ErrGraphUnavailable degrades the run to
// partial with the ranked evidence intact.
func (s multiHopStrategy) Retrieve(ctx context.Context, o *Orchestrator, run *runState) error {
	if err := o.rank(ctx, run); err != nil {
		return err
	}
	if err := o.gatherEntityEvidence(ctx, run); err != nil {
		return err
	}
	if err := o.explore(ctx, run); err != nil {
		if errors.Is(err, store.ErrGraphUnavailable) {
			logger.Warn("Multi-hop exploration degraded, keeping ranked evidence", "err", err)
			run.partial = true
			return nil
		}
		return err
	}
	return nil
}

type unifiedStrategy struct{}

func (unifiedStrategy) Route() Route                  { return RouteUnified }
func (unifiedStrategy) SeedTiers() (bool, bool, bool) { return true, true, true }

// Retrieve combines every building block: ranking, entity evidence, direct
// chunk evidence, and multi-hop exploration.
func (s unifiedStrategy) Retrieve(ctx context.Context, o *Orchestrator, run *runState) error {
	if err := o.rank(ctx, run); err != nil {
		return err
	}
	if err := o.gatherEntityEvidence(ctx, run); err != nil {
		return err
	}
	if err := (vectorStrategy{}).Retrieve(ctx, o, run); err != nil {
		if errors.Is(err, store.ErrGraphUnavailable) {
			run.partial = true
		} else {
			return err
		}
	}
	if err := o.explore(ctx, run); err != nil {
		if errors.Is(err, store.ErrGraphUnavailable) {
			logger.Warn("Multi-hop exploration degraded, keeping gathered evidence", "err", err)
			run.partial = true
			return nil
		}
		return err
	}
	return nil
}

func defaultStrategies() map[Route]RouteStrategy {
	strategies := map[Route]RouteStrategy{}
	for _, s := range []RouteStrategy{vectorStrategy{}, localStrategy{}, globalStrategy{}, multiHopStrategy{}, unifiedStrategy{}} {
		strategies[s.Route()] = s
	}
	return strategies
}
