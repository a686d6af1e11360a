package sync

import (
	"time"

	"github.com/lcgerke/invoice-orchestrator/internal/billing"
	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

// schedule is BillingPeriodCalculator's output for one account, recomputed
// from the external feed's last-invoice date rather than trusted from the
// source view's own (drift-prone) arithmetic.
type schedule struct {
	cadence     billing.Cadence
	nextRun     time.Time
	rangeStart  time.Time
	rangeEnd    time.Time
	billingStat entity.BillingStatus
	runStat     entity.NextRunStatus
	daysUntil   int64
}

// computeSchedule recomputes an account's cadence and next-run window from
// the external view's median-days figure, its last invoice date, and
// today — the step AccountSync must perform for every row rather than
// trust the external view's own date arithmetic.
func computeSchedule(medianDays float64, lastInvoice *time.Time, invoiceCount int32, today time.Time) schedule {
	cadence := billing.ClassifyCadence(medianDays)

	anchor := billing.AnchorDayOfMonth(today)
	var nextRun time.Time
	hasHistory := lastInvoice != nil && invoiceCount > 0
	if hasHistory {
		anchor = billing.AnchorDayOfMonth(*lastInvoice)
		nextRun = billing.NextRunFromLastInvoice(*lastInvoice, today, cadence.PeriodType, anchor)
	} else {
		nextRun = billing.Step(today, cadence.PeriodType, anchor)
	}
	rangeStart, rangeEnd := billing.Window(nextRun, cadence.WindowBefore, cadence.WindowAfter)

	daysUntil := billing.DaysBetween(today, nextRun)
	billingStat := billing.HistoricalBillingStatus(daysUntil, cadence.PeriodDays, cadence.WindowBefore, hasHistory)
	runStat := billing.NextRunStatus(billingStat, daysUntil, cadence.PeriodDays, cadence.WindowBefore)

	return schedule{
		cadence:     cadence,
		nextRun:     nextRun,
		rangeStart:  rangeStart,
		rangeEnd:    rangeEnd,
		billingStat: billingStat,
		runStat:     runStat,
		daysUntil:   daysUntil,
	}
}
