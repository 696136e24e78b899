package ppr

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/query/seed"
	"github.com/latticehq/lattice/pkg/store"
	"github.com/latticehq/lattice/pkg/store/memory"
)

func relatedTo(source, target string, weight float64) common.Edge {
	return common.Edge{SourceID: source, TargetID: target, Kind: common.EdgeRelatedTo, Weight: weight}
}

func testSubgraph() *store.Subgraph {
	return &store.Subgraph{
		Entities: []common.Entity{
			{ID: "a", Name: "A"}, {ID: "b", Name: "B"}, {ID: "c", Name: "C"}, {ID: "d", Name: "D"},
		},
		Edges: []common.Edge{
			relatedTo("a", "b", 3),
			relatedTo("b", "c", 1),
			relatedTo("c", "d", 2),
			relatedTo("a", "d", 1),
		},
	}
}

func TestNewGraphFiltersEdges(t *testing.T) {
	sub := &store.Subgraph{
		Edges: []common.Edge{
			relatedTo("a", "b", 1),
			{SourceID: "a", TargetID: "s1", Kind: common.EdgeInSection, Weight: 1},
			relatedTo("a", "c", 0),
		},
	}
	g := NewGraph(sub)
	if g.NodeCount() != 2 {
		t.Fatalf("expected only the weighted RELATED_TO endpoints, got %d nodes", g.NodeCount())
	}
}

func TestRankDeterministic(t *testing.T) {
	seeds := seed.Vector{"a": 0.7, "c": 0.3}

	first := NewGraph(testSubgraph()).Rank(seeds, 0.75, DefaultConfig)
	for i := 0; i < 10; i++ {
		again := NewGraph(testSubgraph()).Rank(seeds, 0.75, DefaultConfig)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs:\n%+v\n%+v", i, first, again)
		}
	}

	// Byte identity of the serialized output, not just numeric equality.
	wantJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	gotJSON, err := json.Marshal(NewGraph(testSubgraph()).Rank(seeds, 0.75, DefaultConfig))
	if err != nil {
		t.Fatal(err)
	}
	if string(wantJSON) != string(gotJSON) {
		t.Fatalf("serialized output differs:\n%s\n%s", wantJSON, gotJSON)
	}
}

func TestRankSeedsConcentrateMass(t *testing.T) {
	ranked := NewGraph(testSubgraph()).Rank(seed.Vector{"a": 1.0}, 0.55, DefaultConfig)
	if len(ranked) == 0 {
		t.Fatal("expected ranked nodes")
	}
	if ranked[0].NodeID != "a" {
		t.Fatalf("the sole seed should rank first at low damping, got %q", ranked[0].NodeID)
	}
	for _, n := range ranked[1:] {
		if n.Score > ranked[0].Score {
			t.Fatalf("output not sorted: %+v", ranked)
		}
	}
}

func TestRankEmptySeeds(t *testing.T) {
	if got := NewGraph(testSubgraph()).Rank(seed.Vector{}, 0.75, DefaultConfig); got != nil {
		t.Fatalf("empty seeds must yield nil, got %+v", got)
	}
}

func TestRankSeedOnlyNodeKeepsMass(t *testing.T) {
	// The seed node has no edges at all; it must still appear with its
	// teleport mass.
	ranked := NewGraph(testSubgraph()).Rank(seed.Vector{"isolated": 1.0}, 0.75, DefaultConfig)
	found := false
	for _, n := range ranked {
		if n.NodeID == "isolated" {
			found = true
			if n.Score <= 0 {
				t.Fatalf("isolated seed lost its mass: %+v", n)
			}
		}
	}
	if !found {
		t.Fatalf("isolated seed missing from output: %+v", ranked)
	}
}

func TestRankConverges(t *testing.T) {
	seeds := seed.Vector{"a": 0.5, "d": 0.5}
	loose := NewGraph(testSubgraph()).Rank(seeds, 0.75, Config{Epsilon: 1e-3, MaxIterations: 1000})
	tight := NewGraph(testSubgraph()).Rank(seeds, 0.75, Config{Epsilon: 1e-10, MaxIterations: 1000})
	if len(loose) != len(tight) {
		t.Fatalf("node sets differ: %d vs %d", len(loose), len(tight))
	}
	tightScore := make(map[string]float64, len(tight))
	for _, n := range tight {
		tightScore[n.NodeID] = n.Score
	}
	for _, n := range loose {
		if math.Abs(n.Score-tightScore[n.NodeID]) > 1e-2 {
			t.Fatalf("scores diverge for %q: %v vs %v", n.NodeID, n.Score, tightScore[n.NodeID])
		}
	}
}

func TestRankDampingSpreadsMass(t *testing.T) {
	seeds := seed.Vector{"a": 1.0}
	low := NewGraph(testSubgraph()).Rank(seeds, 0.3, DefaultConfig)
	high := NewGraph(testSubgraph()).Rank(seeds, 0.9, DefaultConfig)

	score := func(ranked []RankedNode, id string) float64 {
		for _, n := range ranked {
			if n.NodeID == id {
				return n.Score
			}
		}
		return 0
	}
	// Higher damping pushes more mass away from the seed.
	if score(high, "a") >= score(low, "a") {
		t.Fatalf("seed retention should drop with damping: low=%v high=%v", score(low, "a"), score(high, "a"))
	}
	if score(high, "c") <= score(low, "c") {
		t.Fatalf("distant node should gain with damping: low=%v high=%v", score(low, "c"), score(high, "c"))
	}
}

func TestRetrieverRoundTrip(t *testing.T) {
	s := memory.NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		s.AddEntity("t1", common.Entity{ID: id, Name: id})
	}
	s.AddEdge("t1", relatedTo("a", "b", 2))
	s.AddEdge("t1", relatedTo("b", "c", 1))

	r := NewRetriever(s, 2, DefaultConfig)
	ranked, sub, err := r.Retrieve(context.Background(), "t1", seed.Vector{"a": 1.0}, 0.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub == nil || len(sub.Edges) != 2 {
		t.Fatalf("expected the 2-hop neighborhood, got %+v", sub)
	}
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked nodes, got %+v", ranked)
	}
	if ranked[0].NodeID != "a" {
		t.Fatalf("seed should rank first, got %+v", ranked)
	}
}

func TestRetrieverEmptySeeds(t *testing.T) {
	r := NewRetriever(memory.NewMemoryStore(), 2, DefaultConfig)
	ranked, sub, err := r.Retrieve(context.Background(), "t1", seed.Vector{}, 0.75)
	if err != nil || ranked != nil || sub != nil {
		t.Fatalf("empty seeds must be a no-op, got %v %v %v", ranked, sub, err)
	}
}

func TestRetrieverPropagatesUnavailable(t *testing.T) {
	s := memory.NewMemoryStore()
	s.Unavailable = true
	r := NewRetriever(s, 2, DefaultConfig)

	_, _, err := r.Retrieve(context.Background(), "t1", seed.Vector{"a": 1.0}, 0.75)
	if err != store.ErrGraphUnavailable {
		t.Fatalf("expected ErrGraphUnavailable, got %v", err)
	}
}
