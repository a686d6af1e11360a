package orchestrator

import (
	"time"

	"github.com/lcgerke/invoice-orchestrator/internal/billing"
	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

// maxWindowOffsetDays bounds the sanity check on a rule's stored window
// offsets; anything beyond this is treated as implausible.
const maxWindowOffsetDays = 365

// AdvanceRule advances rule to its next cycle using the job's own
// next_run_at as the drift-free anchor, then mirrors the new schedule
// onto account. It never clears IsManuallyOverridden: the system cannot
// distinguish a date-only override from a cadence override, so the flag
// persists across advancement.
func AdvanceRule(rule *entity.AccountRule, account *entity.Account, job *entity.Job, today time.Time) {
	previousAnchor := job.NextRunAt
	anchorDay := billing.AnchorDayOfMonth(previousAnchor)
	newNextRun := billing.Step(previousAnchor, rule.PeriodType, anchorDay)

	wb, wa := windowOffsets(rule)

	newRangeStart := newNextRun.AddDate(0, 0, -wb)
	newRangeEnd := newNextRun.AddDate(0, 0, wa)

	rule.NextRunAt = &newNextRun
	rule.NextRangeStartAt = &newRangeStart
	rule.NextRangeEndAt = &newRangeEnd
	rule.ModifiedAt = entity.Now()

	account.NextRunAt = rule.NextRunAt
	account.NextRangeStartAt = rule.NextRangeStartAt
	account.NextRangeEndAt = rule.NextRangeEndAt
	account.PeriodType = rule.PeriodType
	account.DaysUntilNextRun = ptrInt64(billing.DaysBetween(today, newNextRun))
	account.NextRunStatus = billing.NextRunStatus(
		account.HistoricalBillingStatus,
		*account.DaysUntilNextRun,
		periodDaysOf(rule),
		int32(wb),
	)
	account.ModifiedAt = entity.Now()
}

// windowOffsets computes the window-before/after day counts to preserve
// across advancement, sanity-clamping to the rule's stored defaults (or
// the period-type default) when the current offsets are negative or
// implausibly large.
func windowOffsets(rule *entity.AccountRule) (before, after int) {
	defBefore, defAfter := billing.WindowDefaultsForPeriod(rule.PeriodType)
	wb := int(defBefore)
	wa := int(defAfter)
	if rule.WindowDaysBefore != nil {
		wb = int(*rule.WindowDaysBefore)
	}
	if rule.WindowDaysAfter != nil {
		wa = int(*rule.WindowDaysAfter)
	}

	if rule.NextRunAt != nil && rule.NextRangeStartAt != nil && rule.NextRangeEndAt != nil {
		computedBefore := int(billing.DaysBetween(*rule.NextRangeStartAt, *rule.NextRunAt))
		computedAfter := int(billing.DaysBetween(*rule.NextRunAt, *rule.NextRangeEndAt))
		if computedBefore >= 0 && computedBefore <= maxWindowOffsetDays {
			wb = computedBefore
		}
		if computedAfter >= 0 && computedAfter <= maxWindowOffsetDays {
			wa = computedAfter
		}
	}
	return wb, wa
}

func periodDaysOf(rule *entity.AccountRule) int32 {
	if rule.PeriodDays != nil {
		return *rule.PeriodDays
	}
	return 0
}

// AdvanceLastSuccessfulDownload applies the anti-creep rule: a late vendor
// response never pushes last_successful_download_date later than the
// calendar-expected date, but an early one is always accepted.
func AdvanceLastSuccessfulDownload(account *entity.Account, jobDate time.Time, periodType entity.PeriodType, anchorDay int) time.Time {
	if account.LastSuccessfulDownloadAt == nil {
		return jobDate
	}
	expected := billing.Step(*account.LastSuccessfulDownloadAt, periodType, anchorDay)
	if !jobDate.After(expected) {
		return jobDate
	}
	return expected
}

func ptrInt64(v int64) *int64 { return &v }
