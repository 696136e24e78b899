package store

import (
	"context"
	"errors"

	"github.com/latticehq/lattice/pkg/common"
)

// ErrGraphUnavailable signals that the backing graph store cannot be reached.
// It is distinct from query-shaped errors so the orchestrator can degrade a
// single stage to partial evidence instead of failing the whole query.
// Implementations must wrap connectivity failures with this sentinel.
var ErrGraphUnavailable = errors.New("graph store unavailable")

// EntityMatch is an entity hit from a vector or name search, with a raw
// similarity score in [0,1].
type EntityMatch struct {
	Entity common.Entity
	Score  float64
}

// ChunkMatch is a text chunk hit from a vector search, with a raw similarity
// score in [0,1].
type ChunkMatch struct {
	Chunk common.TextChunk
	Score float64
}

// CommunityMatch is a community hit from matching a query embedding against
// community summaries.
type CommunityMatch struct {
	Community common.Community
	Score     float64
}

// Subgraph is a bounded neighborhood of the graph: the entities reached by an
// expansion and the edges between them.
type Subgraph struct {
	Entities []common.Entity
	Edges    []common.Edge
}

// GraphStore is the read-only boundary to the multi-tenant property graph
// populated by the ingestion pipeline. Every call is scoped by tenant: no
// method may return data belonging to a different tenant, even under
// concurrent load.
//
// All calls are idempotent and side-effect free. Implementations must report
// an unreachable backing store as ErrGraphUnavailable.
type GraphStore interface {
	// EntityNames returns all entity names of the tenant, used for the
	// name-matching ladder of entity seeding.
	EntityNames(ctx context.Context, tenantID string) ([]string, error)

	// EntitiesByName resolves exact entity names to entities.
	EntitiesByName(ctx context.Context, tenantID string, names []string) ([]common.Entity, error)

	// VectorSearchEntities returns the topK entities most similar to the
	// embedding, ordered by descending similarity.
	VectorSearchEntities(ctx context.Context, tenantID string, embedding []float32, topK int) ([]EntityMatch, error)

	// VectorSearchChunks returns the topK text chunks most similar to the
	// embedding, ordered by descending similarity.
	VectorSearchChunks(ctx context.Context, tenantID string, embedding []float32, topK int) ([]ChunkMatch, error)

	// CommunityMatch returns the topK communities whose summaries are most
	// similar to the embedding, ordered by descending similarity.
	CommunityMatch(ctx context.Context, tenantID string, embedding []float32, topK int) ([]CommunityMatch, error)

	// ExpandNeighbors returns the subgraph reachable from the given nodes in
	// at most maxHops hops over edges of the given kinds. The seed entities
	// themselves are included.
	ExpandNeighbors(ctx context.Context, tenantID string, nodeIDs []string, maxHops int, kinds []common.EdgeKind) (*Subgraph, error)

	// EntitiesForChunks maps chunk ids to the entities co-located in their
	// sections, following IN_SECTION edges.
	EntitiesForChunks(ctx context.Context, tenantID string, chunkIDs []string) (map[string][]common.Entity, error)

	// ChunksForEntities returns text chunks from the sections the given
	// entities appear in, at most limit per entity.
	ChunksForEntities(ctx context.Context, tenantID string, entityIDs []string, limit int) ([]common.TextChunk, error)

	// KeyValuesForEntities returns extracted key-value fields from the
	// sections the given entities appear in.
	KeyValuesForEntities(ctx context.Context, tenantID string, entityIDs []string) ([]common.KeyValue, error)

	// SectionsByIDs resolves section ids to sections for citation assembly.
	SectionsByIDs(ctx context.Context, tenantID string, sectionIDs []string) (map[string]common.Section, error)
}
