package ppr

import (
	"context"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/query/seed"
	"github.com/latticehq/lattice/pkg/store"
)

// Retriever loads the seed nodes' entity neighborhood from the graph store
// and ranks it. Store failures, including ErrGraphUnavailable, propagate
// unchanged; calling with an empty seed vector is the caller's error and
// yields an empty result.
type Retriever struct {
	store store.GraphStore

	// SubgraphHops bounds how far from the seed set the snapshot extends.
	SubgraphHops int
	Config       Config
}

func NewRetriever(graphStore store.GraphStore, subgraphHops int, cfg Config) *Retriever {
	if subgraphHops <= 0 {
		subgraphHops = 2
	}
	return &Retriever{store: graphStore, SubgraphHops: subgraphHops, Config: cfg}
}

// Retrieve gathers the RELATED_TO neighborhood of the seed nodes and runs the
// ranking. The returned subgraph is the snapshot that was ranked, reused by
// the multi-hop stage to avoid a second expansion.
func (r *Retriever) Retrieve(ctx context.Context, tenantID string, seeds seed.Vector, damping float64) ([]RankedNode, *store.Subgraph, error) {
	if len(seeds) == 0 {
		return nil, nil, nil
	}

	sub, err := r.store.ExpandNeighbors(ctx, tenantID, seeds.NodeIDs(), r.SubgraphHops, []common.EdgeKind{common.EdgeRelatedTo})
	if err != nil {
		return nil, nil, err
	}

	ranked := NewGraph(sub).Rank(seeds, damping, r.Config)
	return ranked, sub, nil
}
