// Package query orchestrates evidence retrieval for a natural-language
// question: route selection, parallel seed resolution, deterministic graph
// ranking, optional multi-hop exploration, and context distillation into a
// citation-bearing evidence bundle for synthesis.
package query

import (
	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/query/distill"
	"github.com/latticehq/lattice/pkg/query/drift"
)

// Route names an execution strategy.
type Route string

const (
	// RouteVector answers from vector-similar chunks alone, no graph
	// traversal.
	RouteVector Route = "vector"
	// RouteLocal explores the neighborhood of entities named in the query.
	RouteLocal Route = "local"
	// RouteGlobal aggregates thematic evidence via community structure.
	RouteGlobal Route = "global"
	// RouteMultiHop chains facts across entity hops into reasoning paths.
	RouteMultiHop Route = "multihop"
	// RouteUnified combines all retrieval building blocks.
	RouteUnified Route = "unified"
)

// ValidRoute reports whether name is a known route.
func ValidRoute(name Route) bool {
	switch name {
	case RouteVector, RouteLocal, RouteGlobal, RouteMultiHop, RouteUnified:
		return true
	}
	return false
}

// State tracks a query's progress through the orchestrator.
type State string

const (
	StateReceived        State = "received"
	StateSeedsResolving  State = "seeds_resolving"
	StateRetrieving      State = "retrieving"
	StateDistilling      State = "distilling"
	StateCompleted       State = "completed"
	StatePartialEvidence State = "partial_evidence"
	StateFailed          State = "failed"
)

// ResponseType selects what the caller wants back.
type ResponseType string

const (
	// ResponseEvidence returns the distilled bundle without synthesis.
	ResponseEvidence ResponseType = "evidence"
	// ResponseAnswer additionally runs the synthesis completion over the
	// bundle.
	ResponseAnswer ResponseType = "answer"
)

// Request is a retrieval request for a single tenant-scoped question.
type Request struct {
	QueryText     string       `json:"query_text"`
	TenantID      string       `json:"tenant_id"`
	ForceRoute    Route        `json:"force_route,omitempty"`
	WeightProfile string       `json:"weight_profile,omitempty"`
	ResponseType  ResponseType `json:"response_type,omitempty"`
}

// EvidenceBundle is the deduplicated, citation-bearing evidence set handed to
// synthesis. Empty marks a completed query that found nothing, so downstream
// synthesis can answer "not found" instead of hallucinating.
type EvidenceBundle struct {
	Chunks    []distill.Unit    `json:"chunks"`
	Paths     []drift.Path      `json:"paths"`
	Citations []common.Citation `json:"citations"`
	TenantID  string            `json:"tenant_id"`
	RouteUsed Route             `json:"route_used"`
	Partial   bool              `json:"partial"`
	Empty     bool              `json:"empty"`
}

// Result is the orchestrator's output: the bundle, the terminal state, and
// the retrieval trace.
type Result struct {
	ID     string          `json:"id"`
	State  State           `json:"state"`
	Bundle *EvidenceBundle `json:"bundle"`
	Trace  TraceSnapshot   `json:"trace"`
	Answer string          `json:"answer,omitempty"`
}
