// Package seed resolves a natural-language query into a weighted distribution
// over graph nodes. Three independent tiers propose candidates (entity-name
// matching, structural vector search, thematic community matching); a combiner
// fuses them under a named weight profile into the seed vector consumed by the
// ranking stage.
package seed

import (
	"fmt"
	"math"
	"sort"
)

// Tier identifies which resolver produced a candidate.
type Tier int

const (
	TierEntity     Tier = 1
	TierStructural Tier = 2
	TierThematic   Tier = 3
)

// Candidate is a proposed seed node with a tier-local raw score. RawScore is
// normalized to [0,1] within the tier before combination.
type Candidate struct {
	NodeID   string
	Tier     Tier
	RawScore float64
	Source   string
}

// Vector maps node ids to combined seed weights. After combination the
// weights are in [0,1] and sum to 1.0.
type Vector map[string]float64

// Sum returns the total weight of the vector.
func (v Vector) Sum() float64 {
	var total float64
	for _, w := range v {
		total += w
	}
	return total
}

// Normalize scales the vector in place so its weights sum to 1.0. A zero or
// empty vector is left unchanged.
func (v Vector) Normalize() {
	total := v.Sum()
	if total == 0 {
		return
	}
	for id, w := range v {
		v[id] = w / total
	}
}

// NodeIDs returns the vector's node ids ordered by descending weight, ties
// broken by node id.
func (v Vector) NodeIDs() []string {
	ids := make([]string, 0, len(v))
	for id := range v {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if v[ids[i]] != v[ids[j]] {
			return v[ids[i]] > v[ids[j]]
		}
		return ids[i] < ids[j]
	})
	return ids
}

// weightTolerance bounds floating-point drift when validating that profile
// weights sum to 1.0.
const weightTolerance = 1e-6

// Profile is a named configuration of per-tier combination weights. The three
// weights must sum to 1.0.
type Profile struct {
	Name       string
	Entity     float64
	Structural float64
	Thematic   float64
}

var (
	ProfileBalanced = Profile{Name: "balanced", Entity: 0.4, Structural: 0.3, Thematic: 0.3}
	ProfileFact     = Profile{Name: "fact", Entity: 0.6, Structural: 0.3, Thematic: 0.1}
	ProfileThematic = Profile{Name: "thematic", Entity: 0.2, Structural: 0.3, Thematic: 0.5}
)

// ProfileByName resolves a profile name from a request or configuration.
// An empty name selects the balanced profile.
func ProfileByName(name string) (Profile, error) {
	switch name {
	case "", ProfileBalanced.Name:
		return ProfileBalanced, nil
	case ProfileFact.Name:
		return ProfileFact, nil
	case ProfileThematic.Name:
		return ProfileThematic, nil
	default:
		return Profile{}, fmt.Errorf("unknown weight profile %q", name)
	}
}

// Validate reports whether the profile weights are non-negative and sum
// to 1.0 within tolerance.
func (p Profile) Validate() error {
	if p.Entity < 0 || p.Structural < 0 || p.Thematic < 0 {
		return fmt.Errorf("weight profile %q has a negative weight", p.Name)
	}
	sum := p.Entity + p.Structural + p.Thematic
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("weight profile %q weights sum to %v, want 1.0", p.Name, sum)
	}
	return nil
}

// Weight returns the profile weight of the given tier.
func (p Profile) Weight(t Tier) float64 {
	switch t {
	case TierEntity:
		return p.Entity
	case TierStructural:
		return p.Structural
	case TierThematic:
		return p.Thematic
	}
	return 0
}

// normalizeTier scales raw scores to [0,1] within a single tier by dividing
// by the tier's maximum. Non-positive scores drop to 0.
func normalizeTier(candidates []Candidate) []Candidate {
	var max float64
	for _, c := range candidates {
		if c.RawScore > max {
			max = c.RawScore
		}
	}
	if max == 0 {
		return candidates
	}
	normalized := make([]Candidate, len(candidates))
	for i, c := range candidates {
		if c.RawScore < 0 {
			c.RawScore = 0
		}
		c.RawScore = c.RawScore / max
		normalized[i] = c
	}
	return normalized
}
