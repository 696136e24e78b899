package pgx

import (
	"context"

	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/store"
)

// ExpandNeighbors collects the subgraph reachable from nodeIDs within
// maxHops hops over edges of the given kinds. Expansion runs one frontier
// query per hop so the hop count stays an exact bound rather than a cost
// estimate.
func (s *GraphDBStore) ExpandNeighbors(ctx context.Context, tenantID string, nodeIDs []string, maxHops int, kinds []common.EdgeKind) (*store.Subgraph, error) {
	sub := &store.Subgraph{
		Entities: make([]common.Entity, 0),
		Edges:    make([]common.Edge, 0),
	}
	if len(nodeIDs) == 0 || maxHops <= 0 {
		return sub, nil
	}
	if len(kinds) == 0 {
		kinds = []common.EdgeKind{common.EdgeRelatedTo, common.EdgeMemberOf, common.EdgeInSection, common.EdgePartOf}
	}
	kindNames := make([]string, len(kinds))
	for i, k := range kinds {
		kindNames[i] = string(k)
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
		edges, err := s.edgesTouching(ctx, tenantID, frontier, kindNames)
		if err != nil {
			return nil, err
		}

		next := make([]string, 0)
		for _, e := range edges {
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

	ids := make([]string, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	entities, err := s.entitiesByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}
	sub.Entities = entities
	return sub, nil
}

func (s *GraphDBStore) edgesTouching(ctx context.Context, tenantID string, nodeIDs []string, kinds []string) ([]common.Edge, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT source_id, target_id, kind, weight
		FROM edges
		WHERE tenant_id = $1
			AND kind = ANY($2)
			AND (source_id = ANY($3) OR target_id = ANY($3))
		ORDER BY source_id, target_id`,
		tenantID, kinds, nodeIDs,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	edges := make([]common.Edge, 0)
	for rows.Next() {
		var e common.Edge
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Kind, &e.Weight); err != nil {
			return nil, storeErr(err)
		}
		edges = append(edges, e)
	}
	return edges, storeErr(rows.Err())
}

func (s *GraphDBStore) entitiesByIDs(ctx context.Context, tenantID string, ids []string) ([]common.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, tenant_id, name, type
		FROM entities
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY id`,
		tenantID, ids,
	)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	entities := make([]common.Entity, 0, len(ids))
	for rows.Next() {
		var e common.Entity
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Name, &e.Type); err != nil {
			return nil, storeErr(err)
		}
		entities = append(entities, e)
	}
	return entities, storeErr(rows.Err())
}
