package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifyCadence_MonthlySequence(t *testing.T) {
	dates := []time.Time{
		day(2024, 1, 1), day(2024, 1, 31), day(2024, 3, 2), day(2024, 4, 1),
	}
	median := MedianInterInvoiceDays(dates)
	cadence := ClassifyCadence(median)

	assert.Equal(t, entity.PeriodMonthly, cadence.PeriodType)
	assert.EqualValues(t, 30, cadence.PeriodDays)
	assert.EqualValues(t, 5, cadence.WindowBefore)
	assert.EqualValues(t, 5, cadence.WindowAfter)
}

func TestClassifyCadence_AllBuckets(t *testing.T) {
	cases := []struct {
		median     float64
		wantPeriod entity.PeriodType
	}{
		{14, entity.PeriodBiWeekly},
		{30, entity.PeriodMonthly},
		{60, entity.PeriodBiMonthly},
		{90, entity.PeriodQuarterly},
		{180, entity.PeriodSemiAnnually},
		{365, entity.PeriodAnnually},
	}
	for _, c := range cases {
		got := ClassifyCadence(c.median)
		assert.Equal(t, c.wantPeriod, got.PeriodType, "median=%v", c.median)
	}
}

func TestMedianInterInvoiceDays_FewerThanTwoDefaultsToThirty(t *testing.T) {
	assert.Equal(t, 30.0, MedianInterInvoiceDays(nil))
	assert.Equal(t, 30.0, MedianInterInvoiceDays([]time.Time{day(2024, 1, 1)}))
}

func TestMedianInterInvoiceDays_ExcludesNonPositiveDeltas(t *testing.T) {
	dates := []time.Time{day(2024, 1, 1), day(2024, 1, 1), day(2024, 1, 31)}
	// one zero delta excluded, one 30-day delta remains
	assert.Equal(t, 30.0, MedianInterInvoiceDays(dates))
}

// TestStep_JanuaryThirtyFirstAnchorsToTwentyEight covers testable property 8:
// an account whose last invoice falls on Jan 31 produces a February
// next-run on Feb 28/29, and subsequent months anchor to 28, never
// drifting back to 27.
func TestStep_JanuaryThirtyFirstAnchorsToTwentyEight(t *testing.T) {
	lastInvoice := day(2024, 1, 31)
	anchor := AnchorDayOfMonth(lastInvoice)
	require.Equal(t, 28, anchor)

	feb := Step(lastInvoice, entity.PeriodMonthly, anchor)
	assert.Equal(t, day(2024, 2, 28), feb) // 2024 is a leap year but anchor clamps to 28

	mar := Step(feb, entity.PeriodMonthly, anchor)
	assert.Equal(t, day(2024, 3, 28), mar)
}

func TestStep_NonLeapFebruary(t *testing.T) {
	jan := day(2023, 1, 31)
	anchor := AnchorDayOfMonth(jan)
	feb := Step(jan, entity.PeriodMonthly, anchor)
	assert.Equal(t, day(2023, 2, 28), feb)
}

func TestStep_BiWeeklyIgnoresAnchor(t *testing.T) {
	start := day(2024, 1, 1)
	next := Step(start, entity.PeriodBiWeekly, AnchorDayOfMonth(start))
	assert.Equal(t, day(2024, 1, 15), next)
}

// TestStepRoundTrip covers testable property 6: step then unstep N times
// returns within <=1 day of the original date.
func TestStepRoundTrip(t *testing.T) {
	periods := []entity.PeriodType{
		entity.PeriodBiWeekly, entity.PeriodMonthly, entity.PeriodBiMonthly,
		entity.PeriodQuarterly, entity.PeriodSemiAnnually, entity.PeriodAnnually,
	}
	start := day(2024, 3, 15)
	anchor := AnchorDayOfMonth(start)

	for _, p := range periods {
		d := start
		const n = 5
		for i := 0; i < n; i++ {
			d = Step(d, p, anchor)
		}
		for i := 0; i < n; i++ {
			d = Unstep(d, p, anchor)
		}
		diff := d.Sub(start)
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, 24*time.Hour, "period=%v drifted by %v", p, diff)
	}
}

func TestNextRunFromLastInvoice_SkipsPastDates(t *testing.T) {
	last := day(2023, 1, 15)
	today := day(2024, 6, 1)
	anchor := AnchorDayOfMonth(last)

	next := NextRunFromLastInvoice(last, today, entity.PeriodMonthly, anchor)
	assert.False(t, next.Before(today))
}

func TestWindow(t *testing.T) {
	next := day(2024, 2, 15)
	start, end := Window(next, 5, 5)
	assert.Equal(t, day(2024, 2, 10), start)
	assert.Equal(t, day(2024, 2, 20), end)
}

func TestHistoricalBillingStatus_Thresholds(t *testing.T) {
	assert.Equal(t, entity.StatusMissing, HistoricalBillingStatus(-61, 30, 5, true))
	assert.Equal(t, entity.StatusOverdue, HistoricalBillingStatus(-10, 30, 5, true))
	assert.Equal(t, entity.StatusDueNow, HistoricalBillingStatus(-1, 30, 5, true))
	assert.Equal(t, entity.StatusDueSoon, HistoricalBillingStatus(3, 30, 5, true))
	assert.Equal(t, entity.StatusUpcoming, HistoricalBillingStatus(20, 30, 5, true))
	assert.Equal(t, entity.StatusFuture, HistoricalBillingStatus(60, 30, 5, true))
	assert.Equal(t, entity.StatusMissing, HistoricalBillingStatus(0, 30, 5, false))
}

func TestDaysBetween(t *testing.T) {
	a := day(2024, 1, 1)
	b := day(2024, 1, 31)
	assert.EqualValues(t, 30, DaysBetween(a, b))
	assert.EqualValues(t, -30, DaysBetween(b, a))
}
