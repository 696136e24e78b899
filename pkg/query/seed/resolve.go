package seed

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// TierResolver is one of the three seeding strategies.
type TierResolver interface {
	Resolve(ctx context.Context, tenantID, queryText string) ([]Candidate, error)
}

// Result carries each tier's candidates and error, indexed by Tier-1..3 at
// positions 0..2. A tier that timed out or failed holds its error and no
// candidates; the other tiers are unaffected.
type Result struct {
	Tiers  [3][]Candidate
	Errors [3]error
}

// Empty reports whether no tier produced any candidate.
func (r Result) Empty() bool {
	for _, tier := range r.Tiers {
		if len(tier) > 0 {
			return false
		}
	}
	return true
}

// Resolver fans the query out to the three seed tiers concurrently. The tiers
// have no data dependency on each other; each runs under its own timeout so a
// slow tier cannot stall the stage.
type Resolver struct {
	Entity     TierResolver
	Structural TierResolver
	Thematic   TierResolver

	TierTimeout time.Duration
}

// Resolve runs all three tiers and waits for each to complete or time out.
// Per-tier failures are recorded, never propagated: a tier that fails
// contributes zero candidates.
func (r *Resolver) Resolve(ctx context.Context, tenantID, queryText string) Result {
	resolvers := [3]TierResolver{r.Entity, r.Structural, r.Thematic}

	var result Result
	g, ctx := errgroup.WithContext(ctx)
	for i, resolver := range resolvers {
		if resolver == nil {
			continue
		}
		g.Go(func() error {
			tierCtx := ctx
			if r.TierTimeout > 0 {
				var cancel context.CancelFunc
				tierCtx, cancel = context.WithTimeout(ctx, r.TierTimeout)
				defer cancel()
			}
			candidates, err := resolver.Resolve(tierCtx, tenantID, queryText)
			result.Tiers[i] = candidates
			result.Errors[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return result
}
