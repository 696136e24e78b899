package query

import (
	"time"

	"github.com/latticehq/lattice/internal/util"
	"github.com/latticehq/lattice/pkg/query/distill"
	"github.com/latticehq/lattice/pkg/query/drift"
	"github.com/latticehq/lattice/pkg/query/ppr"
)

// Config carries every retrieval tunable. Nothing in the algorithm bodies is
// hard-coded; ConfigFromEnv builds the deployed values.
type Config struct {
	// DefaultProfile names the weight profile used when the request does
	// not pick one.
	DefaultProfile string

	// OverlapThreshold is the minimum token-overlap similarity for the
	// third level of the entity matching ladder.
	OverlapThreshold float64
	// StructuralTopK bounds the Tier-2 chunk vector search.
	StructuralTopK int
	// ThematicTopK bounds the Tier-3 community match.
	ThematicTopK int

	PPR          ppr.Config
	SubgraphHops int
	Drift        drift.Config
	Distill      distill.Config

	// EvidenceEntities bounds how many top-ranked entities contribute
	// chunks and key-values to the bundle.
	EvidenceEntities int
	// ChunksPerEntity bounds evidence chunks fetched per entity.
	ChunksPerEntity int

	TierTimeout  time.Duration
	StageTimeout time.Duration
	QueryTimeout time.Duration
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		DefaultProfile:   "balanced",
		OverlapThreshold: 0.5,
		StructuralTopK:   10,
		ThematicTopK:     3,
		PPR:              ppr.DefaultConfig,
		SubgraphHops:     2,
		Drift:            drift.DefaultConfig,
		Distill:          distill.DefaultConfig,
		EvidenceEntities: 12,
		ChunksPerEntity:  3,
		TierTimeout:      10 * time.Second,
		StageTimeout:     20 * time.Second,
		QueryTimeout:     60 * time.Second,
	}
}

// ConfigFromEnv reads the retrieval tuning from the environment, falling back
// to the built-in defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.DefaultProfile = util.GetEnvString("QUERY_WEIGHT_PROFILE", cfg.DefaultProfile)
	cfg.OverlapThreshold = util.GetEnvNumeric("QUERY_OVERLAP_THRESHOLD", 0) / 100
	if cfg.OverlapThreshold <= 0 || cfg.OverlapThreshold > 1 {
		cfg.OverlapThreshold = DefaultConfig().OverlapThreshold
	}
	cfg.StructuralTopK = int(util.GetEnvNumeric("QUERY_STRUCTURAL_TOP_K", cfg.StructuralTopK))
	cfg.ThematicTopK = int(util.GetEnvNumeric("QUERY_THEMATIC_TOP_K", cfg.ThematicTopK))

	cfg.PPR.MaxIterations = int(util.GetEnvNumeric("PPR_MAX_ITERATIONS", cfg.PPR.MaxIterations))
	if eps := util.GetEnvNumeric("PPR_EPSILON_EXP", 0); eps > 0 {
		cfg.PPR.Epsilon = 1
		for i := 0; i < int(eps); i++ {
			cfg.PPR.Epsilon /= 10
		}
	}
	cfg.SubgraphHops = int(util.GetEnvNumeric("PPR_SUBGRAPH_HOPS", cfg.SubgraphHops))

	cfg.Drift.BeamWidth = int(util.GetEnvNumeric("DRIFT_BEAM_WIDTH", cfg.Drift.BeamWidth))
	cfg.Drift.MaxHops = int(util.GetEnvNumeric("DRIFT_MAX_HOPS", cfg.Drift.MaxHops))
	cfg.Drift.StartNodes = int(util.GetEnvNumeric("DRIFT_START_NODES", cfg.Drift.StartNodes))

	cfg.Distill.MaxLabelLength = int(util.GetEnvNumeric("DISTILL_MAX_LABEL_LENGTH", cfg.Distill.MaxLabelLength))
	cfg.Distill.MaxHeadingLength = int(util.GetEnvNumeric("DISTILL_MAX_HEADING_LENGTH", cfg.Distill.MaxHeadingLength))
	if overlap := util.GetEnvNumeric("DISTILL_NEAR_DUP_PERCENT", 0); overlap > 0 {
		cfg.Distill.NearDupOverlap = overlap / 100
	}
	cfg.Distill.TokenBudget = int(util.GetEnvNumeric("DISTILL_TOKEN_BUDGET", cfg.Distill.TokenBudget))

	cfg.EvidenceEntities = int(util.GetEnvNumeric("QUERY_EVIDENCE_ENTITIES", cfg.EvidenceEntities))
	cfg.ChunksPerEntity = int(util.GetEnvNumeric("QUERY_CHUNKS_PER_ENTITY", cfg.ChunksPerEntity))

	cfg.TierTimeout = util.GetEnvDuration("QUERY_TIER_TIMEOUT_SEC", cfg.TierTimeout)
	cfg.StageTimeout = util.GetEnvDuration("QUERY_STAGE_TIMEOUT_SEC", cfg.StageTimeout)
	cfg.QueryTimeout = util.GetEnvDuration("QUERY_TIMEOUT_SEC", cfg.QueryTimeout)

	return cfg
}
