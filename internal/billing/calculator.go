// Package billing provides pure functional calendar arithmetic for
// classifying account billing cadence and computing next-run windows,
// without side effects, database access, or external I/O.
package billing

import (
	"sort"
	"time"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

// cadenceBucket is one row of the median-inter-invoice-days classification
// table.
type cadenceBucket struct {
	minDays      int // inclusive, -1 means unbounded below
	maxDays      int // inclusive, -1 means unbounded above
	periodType   entity.PeriodType
	periodDays   int32
	windowBefore int32
	windowAfter  int32
}

// cadenceTable is checked in order; the first matching bucket wins. The
// final "otherwise" row from the classification table is defaultBucket,
// returned when nothing below matches: medians under 7 days, and
// fractional medians that fall between two buckets (e.g. 21.5).
var cadenceTable = []cadenceBucket{
	{7, 21, entity.PeriodBiWeekly, 14, 3, 3},
	{22, 45, entity.PeriodMonthly, 30, 5, 5},
	{46, 75, entity.PeriodBiMonthly, 60, 7, 7},
	{76, 135, entity.PeriodQuarterly, 90, 10, 10},
	{136, 270, entity.PeriodSemiAnnually, 180, 14, 14},
	{271, -1, entity.PeriodAnnually, 365, 21, 21},
}

var defaultBucket = cadenceBucket{periodType: entity.PeriodMonthly, periodDays: 30, windowBefore: 5, windowAfter: 5}

// MaxStepIterations bounds the safety loop in NextRunFromLastInvoice; a
// well-behaved feed never needs more than one step.
const MaxStepIterations = 120

// Cadence is the result of classifying a median inter-invoice day count.
type Cadence struct {
	PeriodType   entity.PeriodType
	PeriodDays   int32
	WindowBefore int32
	WindowAfter  int32
}

// MedianInterInvoiceDays computes the median of the day deltas between
// consecutive ordered invoice dates, excluding zero/negative deltas.
// Returns the spec default of 30 when fewer than two dates are given or
// no positive delta remains.
func MedianInterInvoiceDays(invoiceDates []time.Time) float64 {
	if len(invoiceDates) < 2 {
		return 30
	}
	sorted := make([]time.Time, len(invoiceDates))
	copy(sorted, invoiceDates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	deltas := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].Sub(sorted[i-1]).Hours() / 24
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 30
	}
	sort.Float64s(deltas)
	mid := len(deltas) / 2
	if len(deltas)%2 == 0 {
		return (deltas[mid-1] + deltas[mid]) / 2
	}
	return deltas[mid]
}

// ClassifyCadence maps a median inter-invoice day count onto a period
// type, its default period_days, and its default window. Inputs outside
// every bucket (below 7, or between two buckets' bounds) fall into the
// Monthly default.
func ClassifyCadence(medianDays float64) Cadence {
	for _, b := range cadenceTable {
		if medianDays < float64(b.minDays) {
			continue
		}
		if b.maxDays != -1 && medianDays > float64(b.maxDays) {
			continue
		}
		return Cadence{b.periodType, b.periodDays, b.windowBefore, b.windowAfter}
	}
	return Cadence{defaultBucket.periodType, defaultBucket.periodDays, defaultBucket.windowBefore, defaultBucket.windowAfter}
}

// WindowDefaultsForPeriod returns the classification table's window
// before/after day counts for periodType, used as AdvanceRule's fallback
// when a rule's stored window offsets are missing or implausible.
func WindowDefaultsForPeriod(periodType entity.PeriodType) (before, after int32) {
	for _, b := range cadenceTable {
		if b.periodType == periodType {
			return b.windowBefore, b.windowAfter
		}
	}
	return defaultBucket.windowBefore, defaultBucket.windowAfter
}

// AnchorDayOfMonth returns the day-of-month of d, clamped to 28 to avoid
// short-month drift across repeated month-based steps.
func AnchorDayOfMonth(d time.Time) int {
	day := d.Day()
	if day > 28 {
		return 28
	}
	return day
}

// clampToMonth returns the last valid day of the given year/month if day
// exceeds it, otherwise day unchanged.
func clampToMonth(year int, month time.Month, day int) int {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > lastDay {
		return lastDay
	}
	return day
}

// Step advances d by one cadence period for periodType, re-anchoring the
// resulting date's day-of-month to anchorDay (clamped again if the target
// month is shorter). Bi-Weekly steps by 14 plain days and ignores the
// anchor, matching the spec's day-based (not month-based) cadence.
func Step(d time.Time, periodType entity.PeriodType, anchorDay int) time.Time {
	d = d.UTC()
	switch periodType {
	case entity.PeriodBiWeekly:
		return d.AddDate(0, 0, 14)
	case entity.PeriodMonthly:
		return stepMonths(d, 1, anchorDay)
	case entity.PeriodBiMonthly:
		return stepMonths(d, 2, anchorDay)
	case entity.PeriodQuarterly:
		return stepMonths(d, 3, anchorDay)
	case entity.PeriodSemiAnnually:
		return stepMonths(d, 6, anchorDay)
	case entity.PeriodAnnually:
		return stepMonths(d, 12, anchorDay)
	default:
		return stepMonths(d, 1, anchorDay)
	}
}

func stepMonths(d time.Time, months int, anchorDay int) time.Time {
	// Step from the first of the target month to avoid overflow carrying
	// into the month after next when d.Day() > the target month's length.
	firstOfTarget := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := clampToMonth(firstOfTarget.Year(), firstOfTarget.Month(), anchorDay)
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

// Unstep reverses Step by stepping the same periodType backwards one
// period, used only by the round-trip property tests.
func Unstep(d time.Time, periodType entity.PeriodType, anchorDay int) time.Time {
	d = d.UTC()
	switch periodType {
	case entity.PeriodBiWeekly:
		return d.AddDate(0, 0, -14)
	default:
		months := periodMonths(periodType)
		firstOfTarget := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -months, 0)
		day := clampToMonth(firstOfTarget.Year(), firstOfTarget.Month(), anchorDay)
		return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
	}
}

func periodMonths(periodType entity.PeriodType) int {
	switch periodType {
	case entity.PeriodMonthly:
		return 1
	case entity.PeriodBiMonthly:
		return 2
	case entity.PeriodQuarterly:
		return 3
	case entity.PeriodSemiAnnually:
		return 6
	case entity.PeriodAnnually:
		return 12
	default:
		return 1
	}
}

// NextRunFromLastInvoice computes the next scheduled run on or after
// today by stepping from lastInvoice. The loop is capped at
// MaxStepIterations as a safety net against malformed cadences; a
// well-behaved feed never needs more than one step.
func NextRunFromLastInvoice(lastInvoice, today time.Time, periodType entity.PeriodType, anchorDay int) time.Time {
	next := Step(lastInvoice, periodType, anchorDay)
	for i := 0; i < MaxStepIterations && next.Before(today); i++ {
		next = Step(next, periodType, anchorDay)
	}
	return next
}

// Window computes the billing window around a next-run date given the
// before/after day offsets. Plain day arithmetic, no calendar stepping.
func Window(nextRun time.Time, windowBefore, windowAfter int32) (start, end time.Time) {
	start = nextRun.AddDate(0, 0, -int(windowBefore))
	end = nextRun.AddDate(0, 0, int(windowAfter))
	return start, end
}

// HistoricalBillingStatus derives the Account.historical_billing_status
// bucket from days-until-expected and the cadence's period_days/window.
// hasInvoiceHistory false (no expected_next_at) always yields Missing.
func HistoricalBillingStatus(daysUntilExpected int64, periodDays int32, windowBefore int32, hasInvoiceHistory bool) entity.BillingStatus {
	if !hasInvoiceHistory {
		return entity.StatusMissing
	}
	switch {
	case daysUntilExpected < -(int64(periodDays) * 2):
		return entity.StatusMissing
	case daysUntilExpected < -int64(windowBefore):
		return entity.StatusOverdue
	case daysUntilExpected < 0:
		return entity.StatusDueNow
	case daysUntilExpected <= int64(windowBefore):
		return entity.StatusDueSoon
	case daysUntilExpected <= 30:
		return entity.StatusUpcoming
	default:
		return entity.StatusFuture
	}
}

// NextRunStatus derives Account.next_run_status. It mirrors
// HistoricalBillingStatus when that status is Missing; otherwise it
// applies the same threshold table to days-until-next-run, bucketed into
// the next-run-specific names.
func NextRunStatus(historical entity.BillingStatus, daysUntilNextRun int64, periodDays int32, windowBefore int32) entity.NextRunStatus {
	if historical == entity.StatusMissing {
		return entity.NextRunMissing
	}
	switch {
	case daysUntilNextRun < -(int64(periodDays) * 2):
		return entity.NextRunMissing
	case daysUntilNextRun < -int64(windowBefore):
		return entity.NextRunRunNow
	case daysUntilNextRun < 0:
		return entity.NextRunRunNow
	case daysUntilNextRun <= int64(windowBefore):
		return entity.NextRunDueSoon
	case daysUntilNextRun <= 30:
		return entity.NextRunUpcoming
	default:
		return entity.NextRunFuture
	}
}

// DaysBetween returns the whole-day count from a to b (b-a), using UTC
// calendar dates truncated to midnight so DST-adjacent timestamps never
// shift the result by one, per the UTC-calendar-arithmetic design note.
func DaysBetween(a, b time.Time) int64 {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int64(bd.Sub(ad).Hours() / 24)
}
