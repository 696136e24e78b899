package seed

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedTier struct {
	candidates []Candidate
	err        error
	delay      time.Duration
}

func (f fixedTier) Resolve(ctx context.Context, tenantID, queryText string) ([]Candidate, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.candidates, f.err
}

func TestResolverRunsAllTiers(t *testing.T) {
	r := &Resolver{
		Entity:     fixedTier{candidates: []Candidate{{NodeID: "e1", Tier: TierEntity, RawScore: 1}}},
		Structural: fixedTier{candidates: []Candidate{{NodeID: "e2", Tier: TierStructural, RawScore: 0.5}}},
		Thematic:   fixedTier{candidates: []Candidate{{NodeID: "e3", Tier: TierThematic, RawScore: 0.3}}},
	}

	res := r.Resolve(context.Background(), "t1", "query")
	if res.Empty() {
		t.Fatal("expected candidates from all tiers")
	}
	for i, want := range []string{"e1", "e2", "e3"} {
		if len(res.Tiers[i]) != 1 || res.Tiers[i][0].NodeID != want {
			t.Fatalf("tier %d: got %+v, want node %q", i+1, res.Tiers[i], want)
		}
		if res.Errors[i] != nil {
			t.Fatalf("tier %d: unexpected error %v", i+1, res.Errors[i])
		}
	}
}

func TestResolverIsolatesTierFailure(t *testing.T) {
	tierErr := errors.New("tier down")
	r := &Resolver{
		Entity:     fixedTier{err: tierErr},
		Structural: fixedTier{candidates: []Candidate{{NodeID: "e2", Tier: TierStructural, RawScore: 0.5}}},
	}

	res := r.Resolve(context.Background(), "t1", "query")
	if !errors.Is(res.Errors[0], tierErr) {
		t.Fatalf("expected tier-1 error recorded, got %v", res.Errors[0])
	}
	if len(res.Tiers[1]) != 1 {
		t.Fatalf("tier-2 must be unaffected, got %+v", res.Tiers[1])
	}
}

func TestResolverTierTimeout(t *testing.T) {
	r := &Resolver{
		Entity:      fixedTier{delay: time.Second, candidates: []Candidate{{NodeID: "slow"}}},
		Structural:  fixedTier{candidates: []Candidate{{NodeID: "e2", Tier: TierStructural, RawScore: 0.5}}},
		TierTimeout: 20 * time.Millisecond,
	}

	res := r.Resolve(context.Background(), "t1", "query")
	if !errors.Is(res.Errors[0], context.DeadlineExceeded) {
		t.Fatalf("expected deadline error for the slow tier, got %v", res.Errors[0])
	}
	if len(res.Tiers[0]) != 0 {
		t.Fatalf("timed-out tier must contribute nothing, got %+v", res.Tiers[0])
	}
	if len(res.Tiers[1]) != 1 {
		t.Fatalf("fast tier must be unaffected, got %+v", res.Tiers[1])
	}
}

func TestResultEmpty(t *testing.T) {
	var res Result
	if !res.Empty() {
		t.Fatal("zero result should be empty")
	}
	res.Tiers[2] = []Candidate{{NodeID: "e1"}}
	if res.Empty() {
		t.Fatal("result with candidates should not be empty")
	}
}

func TestResolverNilTiersSkipped(t *testing.T) {
	r := &Resolver{Structural: fixedTier{candidates: []Candidate{{NodeID: "e2"}}}}
	res := r.Resolve(context.Background(), "t1", "query")
	if res.Errors[0] != nil || res.Errors[2] != nil {
		t.Fatalf("nil tiers must not report errors: %+v", res.Errors)
	}
	if len(res.Tiers[1]) != 1 {
		t.Fatalf("configured tier missing: %+v", res.Tiers)
	}
}
