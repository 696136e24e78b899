package query

import "errors"

var (
	// ErrNoSeedsFound short-circuits a query when all three seed tiers
	// came back empty. The query still completes, with an explicit
	// empty-evidence marker.
	ErrNoSeedsFound = errors.New("no seeds found")

	// ErrStageTimeout marks a single stage that exceeded its budget. The
	// query proceeds with that stage's partial output.
	ErrStageTimeout = errors.New("stage timeout exceeded")

	// ErrQueryTimeout marks a query whose total deadline elapsed before
	// any usable evidence was gathered.
	ErrQueryTimeout = errors.New("query timeout exceeded")
)
