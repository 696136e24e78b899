package seed

// Combine fuses per-tier candidate lists into a single seed vector under the
// given profile. Raw scores are normalized to [0,1] within each tier first;
// each node's combined weight is the sum over tiers of tier weight times
// normalized score; the resulting vector is normalized to sum 1.0.
//
// An empty result means no tier produced any candidate; callers must
// short-circuit instead of ranking an empty seed set.
func Combine(profile Profile, tiers ...[]Candidate) Vector {
	vector := make(Vector)
	for _, candidates := range tiers {
		for _, c := range normalizeTier(candidates) {
			vector[c.NodeID] += profile.Weight(c.Tier) * c.RawScore
		}
	}

	// Tiers with zero profile weight can leave zero-weight components.
	for id, w := range vector {
		if w <= 0 {
			delete(vector, id)
		}
	}

	vector.Normalize()
	return vector
}
