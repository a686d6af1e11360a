package orchestrator

import (
	"context"
)

// RunManualStatusCheck drives Stage 4 in manual mode (ignoring the daily
// check-delay timing) against every job in ScrapeRequested or
// StatusCheckInProgress. It is exposed separately from Run because an
// operator may want to force a poll sweep without running the whole
// pipeline. progress follows the manual-apply-phase sign convention during
// the apply phase (current below -1,000,000).
func (c *Core) RunManualStatusCheck(ctx context.Context, progress ProgressFunc) (*StatusCheckResult, error) {
	return c.CheckAllScrapedStatuses(ctx, progress)
}
