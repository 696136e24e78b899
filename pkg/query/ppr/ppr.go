// Package ppr computes Personalized PageRank over a tenant's entity subgraph
// using iterative power approximation. The computation is a pure function of
// (seed vector, damping, graph snapshot): identical inputs produce identical
// ranked output, with no unseeded randomness. Summation order is fixed by
// sorting nodes and edges, so the floating-point result is reproducible.
package ppr

import (
	"math"
	"sort"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/query/seed"
	"github.com/latticehq/lattice/pkg/store"
)

// RankedNode is one node of the ranked output, ordered descending by score
// with ties broken by node id.
type RankedNode struct {
	NodeID string  `json:"node_id"`
	Score  float64 `json:"ppr_score"`
}

// Config bounds the power iteration. Epsilon is the L1 convergence threshold
// between successive score vectors; MaxIterations caps pathological graphs.
type Config struct {
	Epsilon       float64
	MaxIterations int
}

// DefaultConfig is the production parameterization.
var DefaultConfig = Config{Epsilon: 1e-6, MaxIterations: 100}

type halfEdge struct {
	target string
	weight float64
}

// Graph is an immutable snapshot of entities and their weighted RELATED_TO
// edges, prepared for deterministic iteration. Edges are treated as
// undirected: each edge contributes a transition in both directions.
type Graph struct {
	nodes     []string
	out       map[string][]halfEdge
	outWeight map[string]float64
}

// NewGraph builds a snapshot from a subgraph. Non-entity edge kinds and
// non-positive weights are ignored.
func NewGraph(sub *store.Subgraph) *Graph {
	g := &Graph{
		out:       make(map[string][]halfEdge),
		outWeight: make(map[string]float64),
	}
	if sub == nil {
		return g
	}

	nodeSet := make(map[string]bool)
	for _, e := range sub.Entities {
		nodeSet[e.ID] = true
	}
	for _, e := range sub.Edges {
		if e.Kind != common.EdgeRelatedTo || e.Weight <= 0 {
			continue
		}
		nodeSet[e.SourceID] = true
		nodeSet[e.TargetID] = true
		g.out[e.SourceID] = append(g.out[e.SourceID], halfEdge{target: e.TargetID, weight: e.Weight})
		g.out[e.TargetID] = append(g.out[e.TargetID], halfEdge{target: e.SourceID, weight: e.Weight})
		g.outWeight[e.SourceID] += e.Weight
		g.outWeight[e.TargetID] += e.Weight
	}

	g.nodes = make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		g.nodes = append(g.nodes, id)
	}
	sort.Strings(g.nodes)
	for _, edges := range g.out {
		sort.Slice(edges, func(i, j int) bool { return edges[i].target < edges[j].target })
	}
	return g
}

// NodeCount returns the number of nodes in the snapshot.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// Rank runs the power iteration from the given seed vector. Each iteration
// computes, per node,
//
//	damping × Σ(neighbor_score × edge_weight / neighbor_out_weight) + (1 − damping) × seed_weight
//
// until the L1 change falls below Epsilon or MaxIterations is reached. Nodes
// present only in the seed vector still receive their seed mass.
func (g *Graph) Rank(seeds seed.Vector, damping float64, cfg Config) []RankedNode {
	if len(seeds) == 0 {
		return nil
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultConfig.Epsilon
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig.MaxIterations
	}

	nodes := g.nodes
	extra := make([]string, 0)
	for id := range seeds {
		if _, inGraph := g.outWeight[id]; !inGraph && !containsSorted(nodes, id) {
			extra = append(extra, id)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		merged := make([]string, 0, len(nodes)+len(extra))
		merged = append(merged, nodes...)
		merged = append(merged, extra...)
		sort.Strings(merged)
		nodes = merged
	}

	scores := make(map[string]float64, len(nodes))
	for _, id := range nodes {
		scores[id] = seeds[id]
	}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		next := make(map[string]float64, len(nodes))
		for _, id := range nodes {
			next[id] = (1 - damping) * seeds[id]
		}
		for _, id := range nodes {
			outWeight := g.outWeight[id]
			if outWeight == 0 {
				continue
			}
			contribution := damping * scores[id] / outWeight
			for _, e := range g.out[id] {
				next[e.target] += contribution * e.weight
			}
		}

		var delta float64
		for _, id := range nodes {
			delta += math.Abs(next[id] - scores[id])
		}
		scores = next
		if delta < cfg.Epsilon {
			break
		}
	}

	ranked := make([]RankedNode, 0, len(nodes))
	for _, id := range nodes {
		if scores[id] > 0 {
			ranked = append(ranked, RankedNode{NodeID: id, Score: scores[id]})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].NodeID < ranked[j].NodeID
	})
	return ranked
}

func containsSorted(sorted []string, id string) bool {
	i := sort.SearchStrings(sorted, id)
	return i < len(sorted) && sorted[i] == id
}
