package pgx

import (
	"context"

	"github.com/latticehq/lattice/pkg/common"
)

// EntitiesForChunks maps chunk ids to the entities co-located in their
// sections, following IN_SECTION edges. Chunks with no co-located entities
// are absent from the result.
func (s *GraphDBStore) EntitiesForChunks(ctx context.Context, tenantID string, chunkIDs []string) (map[string][]common.Entity, error) {
	result := make(map[string][]common.Entity)
	if len(chunkIDs) == 0 {
		return result, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT c.id, e.id, e.tenant_id, e.name, e.type
		FROM chunks c
		JOIN edges x ON x.tenant_id = c.tenant_id
			AND x.kind = $3
			AND x.target_id = c.section_id
		JOIN entities e ON e.tenant_id = c.tenant_id AND e.id = x.source_id
		WHERE c.tenant_id = $1 AND c.id = ANY($2)
		ORDER BY c.id, e.id`,
		tenantID, chunkIDs, string(common.EdgeInSection),
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var chunkID string
		var e common.Entity
		if err := rows.Scan(&chunkID, &e.ID, &e.TenantID, &e.Name, &e.Type); err != nil {
			return nil, storeErr(err)
		}
		result[chunkID] = append(result[chunkID], e)
	}
	return result, storeErr(rows.Err())
}

// ChunksForEntities returns text chunks from the sections the given entities
// appear in, at most limit chunks per entity. Chunks shared between entities
// are returned once.
func (s *GraphDBStore) ChunksForEntities(ctx context.Context, tenantID string, entityIDs []string, limit int) ([]common.TextChunk, error) {
	if len(entityIDs) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT ON (ranked.id) ranked.id, ranked.section_id, ranked.text, ranked.token_count
		FROM (
			SELECT c.id, c.section_id, c.text, c.token_count,
				row_number() OVER (PARTITION BY x.source_id ORDER BY c.id) AS rank
			FROM edges x
			JOIN chunks c ON c.tenant_id = x.tenant_id AND c.section_id = x.target_id
			WHERE x.tenant_id = $1
				AND x.kind = $4
				AND x.source_id = ANY($2)
		) ranked
		WHERE ranked.rank <= $3
		ORDER BY ranked.id`,
		tenantID, entityIDs, limit, string(common.EdgeInSection),
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	chunks := make([]common.TextChunk, 0)
	for rows.Next() {
		var c common.TextChunk
		if err := rows.Scan(&c.ID, &c.SectionID, &c.Text, &c.TokenCount); err != nil {
			return nil, storeErr(err)
		}
		chunks = append(chunks, c)
	}
	return chunks, storeErr(rows.Err())
}

// KeyValuesForEntities returns extracted key-value fields from the sections
// the given entities appear in.
func (s *GraphDBStore) KeyValuesForEntities(ctx context.Context, tenantID string, entityIDs []string) ([]common.KeyValue, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT kv.id, kv.section_id, kv.key, kv.value, kv.confidence
		FROM edges x
		JOIN keyvalues kv ON kv.tenant_id = x.tenant_id AND kv.section_id = x.target_id
		WHERE x.tenant_id = $1
			AND x.kind = $3
			AND x.source_id = ANY($2)
		ORDER BY kv.id`,
		tenantID, entityIDs, string(common.EdgeInSection),
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	kvs := make([]common.KeyValue, 0)
	for rows.Next() {
		var kv common.KeyValue
		if err := rows.Scan(&kv.ID, &kv.SectionID, &kv.Key, &kv.Value, &kv.Confidence); err != nil {
			return nil, storeErr(err)
		}
		kvs = append(kvs, kv)
	}
	return kvs, storeErr(rows.Err())
}

// SectionsByIDs resolves section ids to sections for citation assembly.
func (s *GraphDBStore) SectionsByIDs(ctx context.Context, tenantID string, sectionIDs []string) (map[string]common.Section, error) {
	result := make(map[string]common.Section, len(sectionIDs))
	if len(sectionIDs) == 0 {
		return result, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, document_id, COALESCE(parent_id, ''), title, level, path
		FROM sections
		WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, sectionIDs,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	for rows.Next() {
		var sec common.Section
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.ParentID, &sec.Title, &sec.Level, &sec.Path); err != nil {
			return nil, storeErr(err)
		}
		result[sec.ID] = sec
	}
	return result, storeErr(rows.Err())
}
