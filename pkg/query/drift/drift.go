// Package drift expands outward from the top-ranked nodes with a bounded
// beam search, producing reasoning paths for queries that chain facts across
// entity hops. Beam width and hop count are hard bounds; an empty path set
// means insufficient connected evidence, never an error.
package drift

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/query/ppr"
	"github.com/latticehq/lattice/pkg/store"
)

// Path is an ordered node/edge sequence with an accumulated score. Edges has
// exactly HopCount entries and Nodes has HopCount+1.
type Path struct {
	Nodes    []string      `json:"node_sequence"`
	Edges    []common.Edge `json:"edge_sequence"`
	HopCount int           `json:"hop_count"`
	Score    float64       `json:"score"`
}

// Covers reports whether the path visits the given node.
func (p Path) Covers(nodeID string) bool {
	for _, id := range p.Nodes {
		if id == nodeID {
			return true
		}
	}
	return false
}

func (p Path) signature() string {
	return strings.Join(p.Nodes, "\x00")
}

// Config bounds the beam search. PPRMix controls how candidate scoring blends
// a node's rank score against the connecting edge's weight.
type Config struct {
	BeamWidth  int
	MaxHops    int
	StartNodes int
	PPRMix     float64

	// ExpandConcurrency caps concurrent store calls within one hop.
	ExpandConcurrency int
}

// DefaultConfig is the production parameterization.
var DefaultConfig = Config{BeamWidth: 8, MaxHops: 3, StartNodes: 5, PPRMix: 0.7, ExpandConcurrency: 8}

// Explorer performs the bounded multi-hop traversal. Hops are sequential;
// frontier expansion within a hop fans out concurrently.
type Explorer struct {
	store store.GraphStore
	cfg   Config
}

func NewExplorer(graphStore store.GraphStore, cfg Config) *Explorer {
	if cfg.BeamWidth <= 0 {
		cfg.BeamWidth = DefaultConfig.BeamWidth
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = DefaultConfig.MaxHops
	}
	if cfg.StartNodes <= 0 {
		cfg.StartNodes = DefaultConfig.StartNodes
	}
	if cfg.PPRMix <= 0 || cfg.PPRMix > 1 {
		cfg.PPRMix = DefaultConfig.PPRMix
	}
	if cfg.ExpandConcurrency <= 0 {
		cfg.ExpandConcurrency = DefaultConfig.ExpandConcurrency
	}
	return &Explorer{store: graphStore, cfg: cfg}
}

// Explore runs the beam search from the top-ranked nodes. The search stops at
// MaxHops, when the beam empties, or once every node in targets appears in a
// completed path. Paths must make at least one hop to count; if none can be
// formed the result is empty.
func (e *Explorer) Explore(ctx context.Context, tenantID string, ranked []ppr.RankedNode, targets []string) ([]Path, error) {
	if len(ranked) == 0 {
		return nil, nil
	}

	pprScore := make(map[string]float64, len(ranked))
	for _, n := range ranked {
		pprScore[n.NodeID] = n.Score
	}

	starts := ranked
	if len(starts) > e.cfg.StartNodes {
		starts = starts[:e.cfg.StartNodes]
	}
	beam := make([]Path, 0, len(starts))
	for _, n := range starts {
		beam = append(beam, Path{Nodes: []string{n.NodeID}, Score: n.Score})
	}

	completed := make([]Path, 0)
	seen := make(map[string]bool)
	keep := func(p Path) {
		sig := p.signature()
		if p.HopCount >= 1 && !seen[sig] {
			seen[sig] = true
			completed = append(completed, p)
		}
	}

	for hop := 0; hop < e.cfg.MaxHops && len(beam) > 0; hop++ {
		neighborhoods, err := e.expandFrontier(ctx, tenantID, beam)
		if err != nil {
			return nil, err
		}

		maxWeight := 0.0
		for _, edges := range neighborhoods {
			for _, edge := range edges {
				if edge.Weight > maxWeight {
					maxWeight = edge.Weight
				}
			}
		}

		candidates := make([]Path, 0)
		for _, p := range beam {
			tail := p.Nodes[len(p.Nodes)-1]
			extended := false
			for _, edge := range neighborhoods[tail] {
				next := edge.TargetID
				if next == tail {
					next = edge.SourceID
				}
				if p.Covers(next) {
					continue
				}
				edgeScore := 0.0
				if maxWeight > 0 {
					edgeScore = edge.Weight / maxWeight
				}
				step := e.cfg.PPRMix*pprScore[next] + (1-e.cfg.PPRMix)*edgeScore
				candidates = append(candidates, Path{
					Nodes:    append(append([]string(nil), p.Nodes...), next),
					Edges:    append(append([]common.Edge(nil), p.Edges...), edge),
					HopCount: p.HopCount + 1,
					Score:    p.Score + step,
				})
				extended = true
			}
			if !extended {
				keep(p)
			}
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Score != candidates[j].Score {
				return candidates[i].Score > candidates[j].Score
			}
			return candidates[i].signature() < candidates[j].signature()
		})
		if len(candidates) > e.cfg.BeamWidth {
			for _, p := range candidates[e.cfg.BeamWidth:] {
				keep(p)
			}
			candidates = candidates[:e.cfg.BeamWidth]
		}
		beam = candidates

		if len(targets) > 0 && coversAllTargets(append(completed, beam...), targets) {
			break
		}
	}
	for _, p := range beam {
		keep(p)
	}

	sort.SliceStable(completed, func(i, j int) bool {
		if completed[i].Score != completed[j].Score {
			return completed[i].Score > completed[j].Score
		}
		return completed[i].signature() < completed[j].signature()
	})
	return completed, nil
}

// expandFrontier fetches the 1-hop RELATED_TO neighborhood of every distinct
// beam tail, one concurrent store call per frontier node. Results are keyed
// by frontier node with edges in stable order.
func (e *Explorer) expandFrontier(ctx context.Context, tenantID string, beam []Path) (map[string][]common.Edge, error) {
	frontier := make([]string, 0, len(beam))
	index := make(map[string]int, len(beam))
	for _, p := range beam {
		tail := p.Nodes[len(p.Nodes)-1]
		if _, ok := index[tail]; !ok {
			index[tail] = len(frontier)
			frontier = append(frontier, tail)
		}
	}

	results := make([][]common.Edge, len(frontier))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ExpandConcurrency)
	for i, nodeID := range frontier {
		g.Go(func() error {
			sub, err := e.store.ExpandNeighbors(gctx, tenantID, []string{nodeID}, 1, []common.EdgeKind{common.EdgeRelatedTo})
			if err != nil {
				return err
			}
			results[i] = sub.Edges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	neighborhoods := make(map[string][]common.Edge, len(frontier))
	for i, nodeID := range frontier {
		edges := results[i]
		sort.Slice(edges, func(a, b int) bool {
			if edges[a].SourceID != edges[b].SourceID {
				return edges[a].SourceID < edges[b].SourceID
			}
			return edges[a].TargetID < edges[b].TargetID
		})
		neighborhoods[nodeID] = edges
	}
	return neighborhoods, nil
}

func coversAllTargets(paths []Path, targets []string) bool {
	for _, target := range targets {
		found := false
		for _, p := range paths {
			if p.HopCount >= 1 && p.Covers(target) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
