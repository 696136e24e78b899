// Package memory provides an in-process GraphStore backed by plain maps.
// It mirrors the semantics of the postgres store and is used by tests and
// single-node setups without a database.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/store"
)

type tenantData struct {
	documents   map[string]common.Document
	sections    map[string]common.Section
	chunks      map[string]common.TextChunk
	entities    map[string]common.Entity
	keyvalues   map[string]common.KeyValue
	communities map[string]common.Community
	edges       []common.Edge
}

// MemoryStore implements store.GraphStore over in-process maps. All reads
// are safe for concurrent use; writes are meant for setup before serving.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantData

	// Unavailable makes every call fail with ErrGraphUnavailable, for
	// exercising degraded paths.
	Unavailable bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*tenantData)}
}

func (m *MemoryStore) tenant(tenantID string) *tenantData {
	t, ok := m.tenants[tenantID]
	if !ok {
		t = &tenantData{
			documents:   make(map[string]common.Document),
			sections:    make(map[string]common.Section),
			chunks:      make(map[string]common.TextChunk),
			entities:    make(map[string]common.Entity),
			keyvalues:   make(map[string]common.KeyValue),
			communities: make(map[string]common.Community),
		}
		m.tenants[tenantID] = t
	}
	return t
}

func (m *MemoryStore) AddDocument(tenantID string, d common.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant(tenantID).documents[d.ID] = d
}

func (m *MemoryStore) AddSection(tenantID string, s common.Section) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant(tenantID).sections[s.ID] = s
}

func (m *MemoryStore) AddChunk(tenantID string, c common.TextChunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant(tenantID).chunks[c.ID] = c
}

func (m *MemoryStore) AddEntity(tenantID string, e common.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant(tenantID).entities[e.ID] = e
}

func (m *MemoryStore) AddKeyValue(tenantID string, kv common.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant(tenantID).keyvalues[kv.ID] = kv
}

func (m *MemoryStore) AddCommunity(tenantID string, c common.Community) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenant(tenantID).communities[c.ID] = c
}

func (m *MemoryStore) AddEdge(tenantID string, e common.Edge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tenant(tenantID)
	t.edges = append(t.edges, e)
}

func (m *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.Unavailable {
		return store.ErrGraphUnavailable
	}
	return nil
}

func (m *MemoryStore) EntityNames(ctx context.Context, tenantID string) ([]string, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tenants[tenantID]
	if t == nil {
		return nil, nil
	}
	names := make([]string, 0, len(t.entities))
	for _, e := range t.entities {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) EntitiesByName(ctx context.Context, tenantID string, names []string) ([]common.Entity, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tenants[tenantID]
	if t == nil {
		return nil, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	entities := make([]common.Entity, 0)
	for _, e := range t.entities {
		if wanted[e.Name] {
			entities = append(entities, e)
		}
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities, nil
}

func (m *MemoryStore) VectorSearchEntities(ctx context.Context, tenantID string, embedding []float32, topK int) ([]store.EntityMatch, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tenants[tenantID]
	if t == nil || topK <= 0 {
		return nil, nil
	}
	matches := make([]store.EntityMatch, 0)
	for _, e := range t.entities {
		if len(e.Embedding) == 0 {
			continue
		}
		matches = append(matches, store.EntityMatch{Entity: e, Score: cosineSimilarity(embedding, e.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryStore) VectorSearchChunks(ctx context.Context, tenantID string, embedding []float32, topK int) ([]store.ChunkMatch, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tenants[tenantID]
	if t == nil || topK <= 0 {
		return nil, nil
	}
	matches := make([]store.ChunkMatch, 0)
	for _, c := range t.chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		matches = append(matches, store.ChunkMatch{Chunk: c, Score: cosineSimilarity(embedding, c.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.ID < matches[j].Chunk.ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryStore) CommunityMatch(ctx context.Context, tenantID string, embedding []float32, topK int) ([]store.CommunityMatch, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tenants[tenantID]
	if t == nil || topK <= 0 {
		return nil, nil
	}
	matches := make([]store.CommunityMatch, 0)
	for _, c := range t.communities {
		if len(c.Embedding) == 0 {
			continue
		}
		matches = append(matches, store.CommunityMatch{Community: c, Score: cosineSimilarity(embedding, c.Embedding)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Community.ID < matches[j].Community.ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (m *MemoryStore) ExpandNeighbors(ctx context.Context, tenantID string, nodeIDs []string, maxHops int, kinds []common.EdgeKind) (*store.Subgraph, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub := &store.Subgraph{
		Entities: make([]common.Entity, 0),
		Edges:    make([]common.Edge, 0),
	}
	t := m.tenants[tenantID]
	if t == nil || len(nodeIDs) == 0 || maxHops <= 0 {
		return sub, nil
	}
	if len(kinds) == 0 {
		kinds = []common.EdgeKind{common.EdgeRelatedTo, common.EdgeMemberOf, common.EdgeInSection, common.EdgePartOf}
	}
	wantKind := make(map[common.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		wantKind[k] = true
	}

	visited := make(map[string]bool, len(nodeIDs))
	seenEdge := make(map[[2]string]bool)
	frontier := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		if !visited[id] {
			visited[id] = true
			frontier = append(frontier, id)
		}
	}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		inFrontier := make(map[string]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}
		next := make([]string, 0)
		for _, e := range t.edges {
			if !wantKind[e.Kind] || (!inFrontier[e.SourceID] && !inFrontier[e.TargetID]) {
				continue
			}
			key := [2]string{e.SourceID, e.TargetID}
			if !seenEdge[key] {
				seenEdge[key] = true
				sub.Edges = append(sub.Edges, e)
			}
			for _, id := range []string{e.SourceID, e.TargetID} {
				if !visited[id] {
					visited[id] = true
					next = append(next, id)
				}
			}
		}
		frontier = next
	}

	for id := range visited {
		if e, ok := t.entities[id]; ok {
			sub.Entities = append(sub.Entities, e)
		}
	}
	sort.Slice(sub.Entities, func(i, j int) bool { return sub.Entities[i].ID < sub.Entities[j].ID })
	sort.Slice(sub.Edges, func(i, j int) bool {
		if sub.Edges[i].SourceID != sub.Edges[j].SourceID {
			return sub.Edges[i].SourceID < sub.Edges[j].SourceID
		}
		return sub.Edges[i].TargetID < sub.Edges[j].TargetID
	})
	return sub, nil
}

func (m *MemoryStore) EntitiesForChunks(ctx context.Context, tenantID string, chunkIDs []string) (map[string][]common.Entity, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]common.Entity)
	t := m.tenants[tenantID]
	if t == nil {
		return result, nil
	}
	entitiesInSection := make(map[string][]common.Entity)
	for _, e := range t.edges {
		if e.Kind != common.EdgeInSection {
			continue
		}
		if ent, ok := t.entities[e.SourceID]; ok {
			entitiesInSection[e.TargetID] = append(entitiesInSection[e.TargetID], ent)
		}
	}
	for _, chunkID := range chunkIDs {
		c, ok := t.chunks[chunkID]
		if !ok {
			continue
		}
		ents := entitiesInSection[c.SectionID]
		if len(ents) == 0 {
			continue
		}
		sorted := append([]common.Entity(nil), ents...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		result[chunkID] = sorted
	}
	return result, nil
}

func (m *MemoryStore) ChunksForEntities(ctx context.Context, tenantID string, entityIDs []string, limit int) ([]common.TextChunk, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tenants[tenantID]
	if t == nil || len(entityIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	chunksBySection := make(map[string][]common.TextChunk)
	for _, c := range t.chunks {
		chunksBySection[c.SectionID] = append(chunksBySection[c.SectionID], c)
	}
	for _, cs := range chunksBySection {
		sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
	}

	wanted := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = true
	}
	seen := make(map[string]bool)
	chunks := make([]common.TextChunk, 0)
	for _, e := range t.edges {
		if e.Kind != common.EdgeInSection || !wanted[e.SourceID] {
			continue
		}
		taken := 0
		for _, c := range chunksBySection[e.TargetID] {
			if taken >= limit {
				break
			}
			taken++
			if !seen[c.ID] {
				seen[c.ID] = true
				chunks = append(chunks, c)
			}
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	return chunks, nil
}

func (m *MemoryStore) KeyValuesForEntities(ctx context.Context, tenantID string, entityIDs []string) ([]common.KeyValue, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	t := m.tenants[tenantID]
	if t == nil || len(entityIDs) == 0 {
		return nil, nil
	}
	wanted := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		wanted[id] = true
	}
	sections := make(map[string]bool)
	for _, e := range t.edges {
		if e.Kind == common.EdgeInSection && wanted[e.SourceID] {
			sections[e.TargetID] = true
		}
	}
	kvs := make([]common.KeyValue, 0)
	for _, kv := range t.keyvalues {
		if sections[kv.SectionID] {
			kvs = append(kvs, kv)
		}
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].ID < kvs[j].ID })
	return kvs, nil
}

func (m *MemoryStore) SectionsByIDs(ctx context.Context, tenantID string, sectionIDs []string) (map[string]common.Section, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]common.Section, len(sectionIDs))
	t := m.tenants[tenantID]
	if t == nil {
		return result, nil
	}
	for _, id := range sectionIDs {
		if s, ok := t.sections[id]; ok {
			result[id] = s
		}
	}
	return result, nil
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
