package pgx

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/store"
)

// EntityNames returns all entity names of the tenant. The result feeds the
// name-matching ladder of entity seeding.
func (s *GraphDBStore) EntityNames(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT name
		FROM entities
		WHERE tenant_id = $1
		ORDER BY name`,
		tenantID,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storeErr(err)
		}
		names = append(names, name)
	}
	return names, storeErr(rows.Err())
}

// EntitiesByName resolves exact entity names to entities.
func (s *GraphDBStore) EntitiesByName(ctx context.Context, tenantID string, names []string) ([]common.Entity, error) {
	if len(names) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, tenant_id, name, type
		FROM entities
		WHERE tenant_id = $1 AND name = ANY($2)
		ORDER BY id`,
		tenantID, names,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	entities := make([]common.Entity, 0, len(names))
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.Type); err != nil {
			return nil, storeErr(err)
		}
		entities = append(entities, e)
	}
	return entities, storeErr(rows.Err())
}

// VectorSearchEntities returns the topK entities most similar to the
// embedding, ordered by descending cosine similarity.
func (s *GraphDBStore) VectorSearchEntities(ctx context.Context, tenantID string, embedding []float32, topK int) ([]store.EntityMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, tenant_id, name, type, 1 - (embedding <=> $2) AS similarity
		FROM entities
		WHERE tenant_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2, id
		LIMIT $3`,
		tenantID, pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	matches := make([]store.EntityMatch, 0, topK)
	for rows.Next() {
		var m store.EntityMatch
		if err := rows.Scan(&m.Entity.ID, &m.Entity.TenantID, &m.Entity.Name, &m.Entity.Type, &m.Score); err != nil {
			return nil, storeErr(err)
		}
		matches = append(matches, m)
	}
	return matches, storeErr(rows.Err())
}

// VectorSearchChunks returns the topK text chunks most similar to the
// embedding, ordered by descending cosine similarity.
func (s *GraphDBStore) VectorSearchChunks(ctx context.Context, tenantID string, embedding []float32, topK int) ([]store.ChunkMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, section_id, text, token_count, 1 - (embedding <=> $2) AS similarity
		FROM chunks
		WHERE tenant_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2, id
		LIMIT $3`,
		tenantID, pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	matches := make([]store.ChunkMatch, 0, topK)
	for rows.Next() {
		var m store.ChunkMatch
		if err := rows.Scan(&m.Chunk.ID, &m.Chunk.SectionID, &m.Chunk.Text, &m.Chunk.TokenCount, &m.Score); err != nil {
			return nil, storeErr(err)
		}
		matches = append(matches, m)
	}
	return matches, storeErr(rows.Err())
}

// CommunityMatch returns the topK communities whose summaries are most
// similar to the embedding, with their member entity ids.
func (s *GraphDBStore) CommunityMatch(ctx context.Context, tenantID string, embedding []float32, topK int) ([]store.CommunityMatch, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT
			c.id, c.tenant_id, c.summary,
			1 - (c.embedding <=> $2) AS similarity,
			COALESCE(array_agg(m.entity_id) FILTER (WHERE m.entity_id IS NOT NULL), '{}') AS members
		FROM communities c
		LEFT JOIN community_members m ON m.community_id = c.id
		WHERE c.tenant_id = $1 AND c.embedding IS NOT NULL
		GROUP BY c.id, c.tenant_id, c.summary, c.embedding
		ORDER BY c.embedding <=> $2, c.id
		LIMIT $3`,
		tenantID, pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	matches := make([]store.CommunityMatch, 0, topK)
	for rows.Next() {
		var m store.CommunityMatch
		if err := rows.Scan(&m.Community.ID, &m.Community.TenantID, &m.Community.Summary, &m.Score, &m.Community.MemberIDs); err != nil {
			return nil, storeErr(err)
		}
		matches = append(matches, m)
	}
	return matches, storeErr(rows.Err())
}
