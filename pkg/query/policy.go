package query

import (
	"strings"

	"github.com/latticehq/lattice/internal/util"
)

// RoutePolicy classifies a query into a route when force_route is absent.
// Classification is a pluggable policy: the default keyword heuristic below
// is deliberately replaceable and not canonical.
type RoutePolicy interface {
	Classify(queryText string) Route
}

// DampingPolicy selects the PPR damping per route. Narrow fact lookups use a
// lower damping so mass concentrates near the seeds; broad thematic queries
// use a higher damping for more exploration.
type DampingPolicy interface {
	Damping(route Route) float64
}

// MapDampingPolicy looks the damping up per route with a shared fallback.
type MapDampingPolicy struct {
	ByRoute  map[Route]float64
	Fallback float64
}

func (p MapDampingPolicy) Damping(route Route) float64 {
	if d, ok := p.ByRoute[route]; ok && d > 0 && d < 1 {
		return d
	}
	if p.Fallback > 0 && p.Fallback < 1 {
		return p.Fallback
	}
	return 0.75
}

// DefaultDampingPolicy is the production tuning: local lookups stay
// concentrated, global exploration ranges wider.
func DefaultDampingPolicy() MapDampingPolicy {
	return MapDampingPolicy{
		ByRoute: map[Route]float64{
			RouteLocal:    0.55,
			RouteGlobal:   0.85,
			RouteMultiHop: 0.7,
			RouteUnified:  0.75,
		},
		Fallback: 0.75,
	}
}

var (
	multiHopMarkers = []string{"if ", "when ", "then ", "what happens", "leads to", "results in", "depends on", "caused by", "in case"}
	thematicMarkers = []string{"summarize", "summary", "overview", "overall", "themes", "main topics", "in general", "across all"}
)

// KeywordRoutePolicy is the default classification heuristic: conditional
// phrasing suggests chained inference, aggregate phrasing suggests thematic
// retrieval, very short queries fall back to plain vector search, and
// everything else is treated as an entity-neighborhood lookup.
type KeywordRoutePolicy struct{}

func (KeywordRoutePolicy) Classify(queryText string) Route {
	lower := strings.ToLower(queryText)

	for _, marker := range multiHopMarkers {
		if strings.Contains(lower, marker) {
			return RouteMultiHop
		}
	}
	for _, marker := range thematicMarkers {
		if strings.Contains(lower, marker) {
			return RouteGlobal
		}
	}
	if len(util.Tokenize(queryText)) < 3 {
		return RouteVector
	}
	return RouteLocal
}
