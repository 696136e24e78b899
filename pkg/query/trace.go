package query

import (
	"sort"
	"sync"
)

type TraceEventKind string

const (
	TraceEventSeedCandidates        TraceEventKind = "seed_candidates"
	TraceEventRankedNodes           TraceEventKind = "ranked_nodes"
	TraceEventReasoningPaths        TraceEventKind = "reasoning_paths"
	TraceEventConsideredCitationIDs TraceEventKind = "considered_citation_ids"
	TraceEventUsedCitationIDs       TraceEventKind = "used_citation_ids"
	TraceEventStage                 TraceEventKind = "stage"
)

// TraceEvent is an extensible event envelope for retrieval tracing.
// Additive changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	Tier        int
	NodeIDs     []string
	CitationIDs []string
	PathCount   int
	Stage       State
	DurationMs  int64
	Error       string
}

// Tracer is a sink for retrieval tracing events.
//
// Implementers can forward events to logs, telemetry, or custom
// post-processing pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func recordSeedCandidates(t Tracer, tier int, nodeIDs []string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventSeedCandidates, Tier: tier, NodeIDs: nodeIDs})
}

func recordRankedNodes(t Tracer, nodeIDs []string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventRankedNodes, NodeIDs: nodeIDs})
}

func recordReasoningPaths(t Tracer, count int) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventReasoningPaths, PathCount: count})
}

func recordConsideredCitationIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventConsideredCitationIDs, CitationIDs: ids})
}

func recordUsedCitationIDs(t Tracer, ids ...string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventUsedCitationIDs, CitationIDs: ids})
}

func recordStage(t Tracer, stage State) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventStage, Stage: stage})
}

// Trace collects what data was considered and/or used during a retrieval run:
// seed candidates per tier, ranked nodes, path counts, and citation ids.
//
// Trace is safe for concurrent use.
type Trace struct {
	mu sync.Mutex

	seedsByTier           map[int]map[string]struct{}
	rankedNodeIDs         map[string]struct{}
	pathCount             int
	consideredCitationIDs map[string]struct{}
	usedCitationIDs       map[string]struct{}
	stages                []State
}

type TraceSnapshot struct {
	SeedNodeIDsByTier     map[int][]string `json:"seed_node_ids_by_tier"`
	RankedNodeIDs         []string         `json:"ranked_node_ids"`
	PathCount             int              `json:"path_count"`
	ConsideredCitationIDs []string         `json:"considered_citation_ids"`
	UsedCitationIDs       []string         `json:"used_citation_ids"`
	Stages                []State          `json:"stages"`
}

func NewTrace() *Trace {
	return &Trace{
		seedsByTier:           make(map[int]map[string]struct{}),
		rankedNodeIDs:         make(map[string]struct{}),
		consideredCitationIDs: make(map[string]struct{}),
		usedCitationIDs:       make(map[string]struct{}),
	}
}

func (t *Trace) Record(event TraceEvent) {
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case TraceEventSeedCandidates:
		tier := t.seedsByTier[event.Tier]
		if tier == nil {
			tier = make(map[string]struct{})
			t.seedsByTier[event.Tier] = tier
		}
		for _, id := range event.NodeIDs {
			if id == "" {
				continue
			}
			tier[id] = struct{}{}
		}
	case TraceEventRankedNodes:
		for _, id := range event.NodeIDs {
			if id == "" {
				continue
			}
			t.rankedNodeIDs[id] = struct{}{}
		}
	case TraceEventReasoningPaths:
		t.pathCount += event.PathCount
	case TraceEventConsideredCitationIDs:
		for _, id := range event.CitationIDs {
			if id == "" {
				continue
			}
			t.consideredCitationIDs[id] = struct{}{}
		}
	case TraceEventUsedCitationIDs:
		for _, id := range event.CitationIDs {
			if id == "" {
				continue
			}
			t.usedCitationIDs[id] = struct{}{}
		}
	case TraceEventStage:
		t.stages = append(t.stages, event.Stage)
	default:
		return
	}
}

func (t *Trace) Snapshot() TraceSnapshot {
	if t == nil {
		return TraceSnapshot{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := TraceSnapshot{
		SeedNodeIDsByTier:     make(map[int][]string, len(t.seedsByTier)),
		RankedNodeIDs:         make([]string, 0, len(t.rankedNodeIDs)),
		PathCount:             t.pathCount,
		ConsideredCitationIDs: make([]string, 0, len(t.consideredCitationIDs)),
		UsedCitationIDs:       make([]string, 0, len(t.usedCitationIDs)),
		Stages:                append([]State(nil), t.stages...),
	}

	for tier, ids := range t.seedsByTier {
		sorted := make([]string, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Strings(sorted)
		s.SeedNodeIDsByTier[tier] = sorted
	}
	for id := range t.rankedNodeIDs {
		s.RankedNodeIDs = append(s.RankedNodeIDs, id)
	}
	for id := range t.consideredCitationIDs {
		s.ConsideredCitationIDs = append(s.ConsideredCitationIDs, id)
	}
	for id := range t.usedCitationIDs {
		s.UsedCitationIDs = append(s.UsedCitationIDs, id)
	}

	sort.Strings(s.RankedNodeIDs)
	sort.Strings(s.ConsideredCitationIDs)
	sort.Strings(s.UsedCitationIDs)

	return s
}
