package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/latticehq/lattice/pkg/ai"
	"github.com/latticehq/lattice/pkg/common"
	"github.com/latticehq/lattice/pkg/logger"
	"github.com/latticehq/lattice/pkg/query/distill"
	"github.com/latticehq/lattice/pkg/query/drift"
	"github.com/latticehq/lattice/pkg/query/ppr"
	"github.com/latticehq/lattice/pkg/query/seed"
	"github.com/latticehq/lattice/pkg/store"
)

// Orchestrator drives a query through the retrieval state machine:
// Received, SeedsResolving, Retrieving, Distilling, then Completed,
// PartialEvidence, or Failed. The graph store and AI client are injected;
// the orchestrator holds no tenant state of its own.
type Orchestrator struct {
	store store.GraphStore
	ai    ai.GraphAIClient
	cfg   Config

	entityTier     seed.TierResolver
	structuralTier seed.TierResolver
	thematicTier   seed.TierResolver

	retriever *ppr.Retriever
	explorer  *drift.Explorer
	distiller *distill.Distiller

	routePolicy   RoutePolicy
	dampingPolicy DampingPolicy
	strategies    map[Route]RouteStrategy

	tracer Tracer
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRoutePolicy replaces the default classification heuristic.
func WithRoutePolicy(p RoutePolicy) Option {
	return func(o *Orchestrator) { o.routePolicy = p }
}

// WithDampingPolicy replaces the default per-route damping selection.
func WithDampingPolicy(p DampingPolicy) Option {
	return func(o *Orchestrator) { o.dampingPolicy = p }
}

// WithTracer adds a tracer that receives every retrieval event in addition
// to the per-query trace.
func WithTracer(t Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithEntityExtractor replaces the Tier-1 entity extractor.
func WithEntityExtractor(e ai.EntityExtractor) Option {
	return func(o *Orchestrator) {
		o.entityTier = seed.NewEntityResolver(e, o.store, o.cfg.OverlapThreshold)
	}
}

func NewOrchestrator(graphStore store.GraphStore, aiClient ai.GraphAIClient, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         graphStore,
		ai:            aiClient,
		cfg:           cfg,
		retriever:     ppr.NewRetriever(graphStore, cfg.SubgraphHops, cfg.PPR),
		explorer:      drift.NewExplorer(graphStore, cfg.Drift),
		distiller:     distill.NewDistiller(cfg.Distill),
		routePolicy:   KeywordRoutePolicy{},
		dampingPolicy: DefaultDampingPolicy(),
		strategies:    defaultStrategies(),
	}
	o.entityTier = seed.NewEntityResolver(ai.NewLLMEntityExtractor(aiClient), graphStore, cfg.OverlapThreshold)
	o.structuralTier = seed.NewStructuralResolver(aiClient, graphStore, cfg.StructuralTopK)
	o.thematicTier = seed.NewThematicResolver(aiClient, graphStore, cfg.ThematicTopK)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the retrieval pipeline for one request and returns the
// evidence bundle. A degraded run returns normally with a partial bundle;
// only total failure (invalid request, storage outage before any evidence,
// expired deadline with nothing gathered) returns an error.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	if o.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.QueryTimeout)
		defer cancel()
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	result := &Result{ID: id, State: StateReceived}

	if strings.TrimSpace(req.QueryText) == "" {
		result.State = StateFailed
		return result, errors.New("query text must not be empty")
	}
	if req.TenantID == "" {
		result.State = StateFailed
		return result, errors.New("tenant id must not be empty")
	}

	profileName := req.WeightProfile
	if profileName == "" {
		profileName = o.cfg.DefaultProfile
	}
	profile, err := seed.ProfileByName(profileName)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	if err := profile.Validate(); err != nil {
		result.State = StateFailed
		return result, err
	}

	route := req.ForceRoute
	if route == "" {
		route = o.routePolicy.Classify(req.QueryText)
	} else if !ValidRoute(route) {
		result.State = StateFailed
		return result, fmt.Errorf("unknown route %q", route)
	}
	strategy := o.strategies[route]

	trace := NewTrace()
	tracer := Tracer(trace)
	if o.tracer != nil {
		tracer = MultiTracer{trace, o.tracer}
	}
	run := &runState{req: req, route: route, profile: profile, trace: trace}
	recordStage(tracer, StateReceived)
	logger.Debug("Query received", "id", id, "tenant", req.TenantID, "route", route, "profile", profile.Name)

	// Seed resolution.
	recordStage(tracer, StateSeedsResolving)
	result.State = StateSeedsResolving
	if err := o.resolveSeeds(ctx, strategy, run, tracer); err != nil {
		result.State = StateFailed
		result.Trace = trace.Snapshot()
		return result, err
	}
	if len(run.seeds) == 0 {
		logger.Info("No seeds found, completing with empty evidence", "id", id)
		result.State = StateCompleted
		result.Bundle = o.emptyBundle(run)
		result.Trace = trace.Snapshot()
		return result, nil
	}

	// Retrieval.
	recordStage(tracer, StateRetrieving)
	result.State = StateRetrieving
	if err := o.retrieve(ctx, strategy, run, tracer); err != nil {
		result.State = StateFailed
		result.Trace = trace.Snapshot()
		return result, err
	}

	// Distillation.
	recordStage(tracer, StateDistilling)
	result.State = StateDistilling
	bundle := o.distillBundle(run, tracer)

	if run.partial {
		result.State = StatePartialEvidence
	} else {
		result.State = StateCompleted
	}
	recordStage(tracer, result.State)
	result.Bundle = bundle
	result.Trace = trace.Snapshot()
	return result, nil
}

// resolveSeeds fans out the route's tiers, records them, and combines the
// survivors. Failing tiers are degraded individually; the stage fails only
// when every tier the route uses reported the graph unavailable.
func (o *Orchestrator) resolveSeeds(ctx context.Context, strategy RouteStrategy, run *runState, tracer Tracer) error {
	if o.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
		defer cancel()
	}

	useEntity, useStructural, useThematic := strategy.SeedTiers()
	resolver := &seed.Resolver{TierTimeout: o.cfg.TierTimeout}
	tiersUsed := 0
	if useEntity {
		resolver.Entity = o.entityTier
		tiersUsed++
	}
	if useStructural {
		resolver.Structural = o.structuralTier
		tiersUsed++
	}
	if useThematic {
		resolver.Thematic = o.thematicTier
		tiersUsed++
	}

	res := resolver.Resolve(ctx, run.req.TenantID, run.req.QueryText)

	unavailable := 0
	for i, tierErr := range res.Errors {
		if tierErr == nil {
			continue
		}
		logger.Warn("Seed tier failed", "tier", i+1, "err", tierErr)
		if errors.Is(tierErr, store.ErrGraphUnavailable) {
			unavailable++
		}
		run.partial = true
	}
	if tiersUsed > 0 && unavailable == tiersUsed {
		return fmt.Errorf("seed resolution: %w", store.ErrGraphUnavailable)
	}

	for i, candidates := range res.Tiers {
		ids := make([]string, len(candidates))
		for j, c := range candidates {
			ids[j] = c.NodeID
		}
		recordSeedCandidates(tracer, i+1, ids)
	}

	run.seeds = seed.Combine(run.profile, res.Tiers[0], res.Tiers[1], res.Tiers[2])
	return nil
}

// retrieve runs the route strategy under the stage timeout. A stage timeout
// or outage with evidence already gathered degrades the run; with nothing
// gathered it fails the query.
func (o *Orchestrator) retrieve(ctx context.Context, strategy RouteStrategy, run *runState, tracer Tracer) error {
	stageCtx := ctx
	if o.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
		defer cancel()
	}

	err := strategy.Retrieve(stageCtx, o, run)
	recordRankedNodes(tracer, rankedIDs(run.ranked))
	recordReasoningPaths(tracer, len(run.paths))

	if err == nil {
		return nil
	}

	hasEvidence := len(run.units) > 0 || len(run.paths) > 0
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		if !hasEvidence {
			return fmt.Errorf("%w: %v", ErrQueryTimeout, err)
		}
		logger.Warn("Retrieval stage timed out, keeping partial evidence", "route", run.route)
		run.partial = true
		return nil
	case errors.Is(err, store.ErrGraphUnavailable):
		if !hasEvidence {
			return err
		}
		logger.Warn("Graph unavailable mid-retrieval, keeping partial evidence", "route", run.route)
		run.partial = true
		return nil
	default:
		return err
	}
}

// rank combines the seed vector with the route's damping and runs the
// deterministic PageRank over the seed neighborhood.
func (o *Orchestrator) rank(ctx context.Context, run *runState) error {
	damping := o.dampingPolicy.Damping(run.route)
	ranked, sub, err := o.retriever.Retrieve(ctx, run.req.TenantID, run.seeds, damping)
	if err != nil {
		return err
	}
	run.ranked = ranked
	run.subgraph = sub
	return nil
}

// explore runs the bounded multi-hop search from the top-ranked nodes. The
// seed entities are the coverage targets: the search may stop early once
// reasoning paths connect them.
func (o *Orchestrator) explore(ctx context.Context, run *runState) error {
	paths, err := o.explorer.Explore(ctx, run.req.TenantID, run.ranked, run.seeds.NodeIDs())
	if err != nil {
		return err
	}
	run.paths = paths
	o.addPathEvidence(run)
	return nil
}

// gatherEntityEvidence fetches chunks and key-values from the sections the
// top-ranked entities appear in and turns them into evidence units.
func (o *Orchestrator) gatherEntityEvidence(ctx context.Context, run *runState) error {
	if len(run.ranked) == 0 {
		return nil
	}
	top := run.ranked
	if len(top) > o.cfg.EvidenceEntities {
		top = top[:o.cfg.EvidenceEntities]
	}
	ids := rankedIDs(top)

	chunks, err := o.store.ChunksForEntities(ctx, run.req.TenantID, ids, o.cfg.ChunksPerEntity)
	if err != nil {
		return err
	}
	if err := o.addChunkEvidence(ctx, run, chunks); err != nil {
		return err
	}

	kvs, err := o.store.KeyValuesForEntities(ctx, run.req.TenantID, ids)
	if err != nil {
		return err
	}
	sections, err := o.sectionsFor(ctx, run.req.TenantID, kvSectionIDs(kvs))
	if err != nil {
		return err
	}
	for _, kv := range kvs {
		run.units = append(run.units, distill.Unit{
			Citation: common.Citation{
				ID:         kv.ID,
				DocumentID: sections[kv.SectionID].DocumentID,
				SectionID:  kv.SectionID,
				SourceText: kv.Key + ": " + kv.Value,
			},
			Kind:        distill.KindKeyValue,
			Text:        kv.Key + ": " + kv.Value,
			SoleCarrier: true,
		})
	}
	return nil
}

// addChunkEvidence appends chunk units with section-resolved citations.
func (o *Orchestrator) addChunkEvidence(ctx context.Context, run *runState, chunks []common.TextChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	sectionIDs := make([]string, len(chunks))
	for i, c := range chunks {
		sectionIDs[i] = c.SectionID
	}
	sections, err := o.sectionsFor(ctx, run.req.TenantID, sectionIDs)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		run.units = append(run.units, distill.Unit{
			Citation: common.Citation{
				ID:         c.ID,
				DocumentID: sections[c.SectionID].DocumentID,
				SectionID:  c.SectionID,
				SourceText: c.Text,
			},
			Kind:       distill.KindChunk,
			Text:       c.Text,
			TokenCount: c.TokenCount,
		})
	}
	return nil
}

// addPathEvidence renders reasoning paths as textual units so the distiller
// can deduplicate overlapping path segments. Path units carry no citation of
// their own; the chunks backing each step are cited separately.
func (o *Orchestrator) addPathEvidence(run *runState) {
	names := make(map[string]string)
	if run.subgraph != nil {
		for _, e := range run.subgraph.Entities {
			names[e.ID] = e.Name
		}
	}
	for _, p := range run.paths {
		run.units = append(run.units, distill.Unit{
			Kind: distill.KindPath,
			Text: renderPath(p, names),
		})
	}
}

func renderPath(p drift.Path, names map[string]string) string {
	var b strings.Builder
	for i, nodeID := range p.Nodes {
		if i > 0 {
			b.WriteString(fmt.Sprintf(" -(%s)-> ", p.Edges[i-1].Kind))
		}
		if name, ok := names[nodeID]; ok && name != "" {
			b.WriteString(name)
		} else {
			b.WriteString(nodeID)
		}
	}
	return b.String()
}

// distillBundle runs the distiller and assembles the final bundle with a
// deduplicated citation list.
func (o *Orchestrator) distillBundle(run *runState, tracer Tracer) *EvidenceBundle {
	for _, u := range run.units {
		recordConsideredCitationIDs(tracer, u.Citation.ID)
	}

	units := o.distiller.Distill(run.units)

	citations := make([]common.Citation, 0, len(units))
	seenID := make(map[string]bool)
	seenText := make(map[string]bool)
	for _, u := range units {
		c := u.Citation
		if c.ID == "" || seenID[c.ID] || (c.SourceText != "" && seenText[c.SourceText]) {
			continue
		}
		seenID[c.ID] = true
		seenText[c.SourceText] = true
		citations = append(citations, c)
		recordUsedCitationIDs(tracer, c.ID)
	}
	sort.Slice(citations, func(i, j int) bool { return citations[i].ID < citations[j].ID })

	return &EvidenceBundle{
		Chunks:    units,
		Paths:     run.paths,
		Citations: citations,
		TenantID:  run.req.TenantID,
		RouteUsed: run.route,
		Partial:   run.partial,
		Empty:     len(units) == 0 && len(run.paths) == 0,
	}
}

func (o *Orchestrator) emptyBundle(run *runState) *EvidenceBundle {
	return &EvidenceBundle{
		Chunks:    []distill.Unit{},
		Paths:     []drift.Path{},
		Citations: []common.Citation{},
		TenantID:  run.req.TenantID,
		RouteUsed: run.route,
		Partial:   run.partial,
		Empty:     true,
	}
}

func (o *Orchestrator) sectionsFor(ctx context.Context, tenantID string, sectionIDs []string) (map[string]common.Section, error) {
	if len(sectionIDs) == 0 {
		return map[string]common.Section{}, nil
	}
	return o.store.SectionsByIDs(ctx, tenantID, sectionIDs)
}

func rankedIDs(ranked []ppr.RankedNode) []string {
	ids := make([]string, len(ranked))
	for i, n := range ranked {
		ids[i] = n.NodeID
	}
	return ids
}

func kvSectionIDs(kvs []common.KeyValue) []string {
	ids := make([]string, 0, len(kvs))
	seen := make(map[string]bool, len(kvs))
	for _, kv := range kvs {
		if !seen[kv.SectionID] {
			seen[kv.SectionID] = true
			ids = append(ids, kv.SectionID)
		}
	}
	return ids
}
