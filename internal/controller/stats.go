package controller

import "sync/atomic"

type counters struct {
	viewPasses          atomic.Int64
	sourcePasses        atomic.Int64
	coalescedOps        atomic.Int64
	rejectedOps         atomic.Int64
	discardedSource     atomic.Int64
	rebasedSource       atomic.Int64
	conflicts           atomic.Int64
	invariantViolations atomic.Int64
	saveFailures        atomic.Int64
	undos               atomic.Int64
	redos               atomic.Int64
}

// Stats is a snapshot of controller activity since New.
type Stats struct {
	ViewPasses          int64 `json:"view_passes"`
	SourcePasses        int64 `json:"source_passes"`
	AppliedOps          int64 `json:"applied_ops"`
	RejectedOps         int64 `json:"rejected_ops"`
	DiscardedSource     int64 `json:"discarded_source"`
	RebasedSource       int64 `json:"rebased_source"`
	Conflicts           int64 `json:"conflicts"`
	InvariantViolations int64 `json:"invariant_violations"`
	SaveFailures        int64 `json:"save_failures"`
	Undos               int64 `json:"undos"`
	Redos               int64 `json:"redos"`
}

// Stats returns the current activity counters.
func (c *Controller) Stats() Stats {
	return Stats{
		ViewPasses:          c.stats.viewPasses.Load(),
		SourcePasses:        c.stats.sourcePasses.Load(),
		AppliedOps:          c.stats.coalescedOps.Load(),
		RejectedOps:         c.stats.rejectedOps.Load(),
		DiscardedSource:     c.stats.discardedSource.Load(),
		RebasedSource:       c.stats.rebasedSource.Load(),
		Conflicts:           c.stats.conflicts.Load(),
		InvariantViolations: c.stats.invariantViolations.Load(),
		SaveFailures:        c.stats.saveFailures.Load(),
		Undos:               c.stats.undos.Load(),
		Redos:               c.stats.redos.Load(),
	}
}
