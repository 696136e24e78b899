package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/store"
)

func TestTenantScoping(t *testing.T) {
	s := NewMemoryStore()
	s.AddEntity("t1", common.Entity{ID: "e1", Name: "Acme"})
	s.AddEntity("t2", common.Entity{ID: "e2", Name: "Acme"})

	names, err := s.EntityNames(context.Background(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"Acme"}) {
		t.Fatalf("unexpected names: %v", names)
	}

	entities, err := s.EntitiesByName(context.Background(), "t1", []string{"Acme"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 1 || entities[0].ID != "e1" {
		t.Fatalf("tenant t1 must only see its own entity, got %+v", entities)
	}

	none, err := s.EntityNames(context.Background(), "t3")
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown tenant must see nothing, got %v %v", none, err)
	}
}

func TestVectorSearchChunksOrderAndCut(t *testing.T) {
	s := NewMemoryStore()
	s.AddChunk("t1", common.TextChunk{ID: "c1", Embedding: []float32{1, 0}})
	s.AddChunk("t1", common.TextChunk{ID: "c2", Embedding: []float32{0, 1}})
	s.AddChunk("t1", common.TextChunk{ID: "c3", Embedding: []float32{0.9, 0.1}})
	s.AddChunk("t1", common.TextChunk{ID: "c4"})

	matches, err := s.VectorSearchChunks(context.Background(), "t1", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected topK cut, got %+v", matches)
	}
	if matches[0].Chunk.ID != "c1" || matches[1].Chunk.ID != "c3" {
		t.Fatalf("unexpected order: %q, %q", matches[0].Chunk.ID, matches[1].Chunk.ID)
	}
	if matches[0].Score < matches[1].Score {
		t.Fatalf("scores not descending: %+v", matches)
	}
}

func TestExpandNeighborsHopBound(t *testing.T) {
	s := NewMemoryStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		s.AddEntity("t1", common.Entity{ID: id, Name: id})
	}
	s.AddEdge("t1", common.Edge{SourceID: "a", TargetID: "b", Kind: common.EdgeRelatedTo, Weight: 1})
	s.AddEdge("t1", common.Edge{SourceID: "b", TargetID: "c", Kind: common.EdgeRelatedTo, Weight: 1})
	s.AddEdge("t1", common.Edge{SourceID: "c", TargetID: "d", Kind: common.EdgeRelatedTo, Weight: 1})

	sub, err := s.ExpandNeighbors(context.Background(), "t1", []string{"a"}, 2, []common.EdgeKind{common.EdgeRelatedTo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := make([]string, len(sub.Entities))
	for i, e := range sub.Entities {
		ids[i] = e.ID
	}
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("2 hops from a must reach exactly a,b,c, got %v", ids)
	}
	if len(sub.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %+v", sub.Edges)
	}
}

func TestExpandNeighborsKindFilter(t *testing.T) {
	s := NewMemoryStore()
	s.AddEntity("t1", common.Entity{ID: "a", Name: "a"})
	s.AddEntity("t1", common.Entity{ID: "b", Name: "b"})
	s.AddEdge("t1", common.Edge{SourceID: "a", TargetID: "b", Kind: common.EdgeRelatedTo, Weight: 1})
	s.AddEdge("t1", common.Edge{SourceID: "a", TargetID: "s1", Kind: common.EdgeInSection, Weight: 1})

	sub, err := s.ExpandNeighbors(context.Background(), "t1", []string{"a"}, 1, []common.EdgeKind{common.EdgeRelatedTo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sub.Edges) != 1 || sub.Edges[0].Kind != common.EdgeRelatedTo {
		t.Fatalf("kind filter ignored: %+v", sub.Edges)
	}
}

func TestChunksForEntitiesLimit(t *testing.T) {
	s := NewMemoryStore()
	s.AddEntity("t1", common.Entity{ID: "e1", Name: "Acme"})
	s.AddEdge("t1", common.Edge{SourceID: "e1", TargetID: "s1", Kind: common.EdgeInSection, Weight: 1})
	for _, id := range []string{"c1", "c2", "c3"} {
		s.AddChunk("t1", common.TextChunk{ID: id, SectionID: "s1", Text: id})
	}

	chunks, err := s.ChunksForEntities(context.Background(), "t1", []string{"e1"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected the per-entity limit applied, got %+v", chunks)
	}
}

func TestKeyValuesForEntities(t *testing.T) {
	s := NewMemoryStore()
	s.AddEntity("t1", common.Entity{ID: "e1", Name: "Acme"})
	s.AddEdge("t1", common.Edge{SourceID: "e1", TargetID: "s1", Kind: common.EdgeInSection, Weight: 1})
	s.AddKeyValue("t1", common.KeyValue{ID: "kv1", SectionID: "s1", Key: "Due Date", Value: "2024-06-15"})
	s.AddKeyValue("t1", common.KeyValue{ID: "kv2", SectionID: "s2", Key: "Other", Value: "x"})

	kvs, err := s.KeyValuesForEntities(context.Background(), "t1", []string{"e1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(kvs) != 1 || kvs[0].ID != "kv1" {
		t.Fatalf("expected only the co-located key-value, got %+v", kvs)
	}
}

func TestUnavailableFailsEveryCall(t *testing.T) {
	s := NewMemoryStore()
	s.Unavailable = true

	if _, err := s.EntityNames(context.Background(), "t1"); !errors.Is(err, store.ErrGraphUnavailable) {
		t.Fatalf("expected ErrGraphUnavailable, got %v", err)
	}
	if _, err := s.ExpandNeighbors(context.Background(), "t1", []string{"a"}, 1, nil); !errors.Is(err, store.ErrGraphUnavailable) {
		t.Fatalf("expected ErrGraphUnavailable, got %v", err)
	}
}

func TestContextCancellation(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.EntityNames(ctx, "t1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
