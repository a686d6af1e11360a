package entity

import "errors"

// Domain-specific errors
var (
	ErrNoActiveRule        = errors.New("no active rule for account")
	ErrRuleMissingSchedule = errors.New("rule is missing next_run_at/range fields")
	ErrInvalidDateRange    = errors.New("invalid date range: end date must be after start date")
	ErrUnknownPeriodType   = errors.New("unknown period type")
	ErrJobAlreadyExists    = errors.New("job already exists for billing period")
	ErrRunAlreadyActive    = errors.New("an orchestration run is already active")
)

// ValidatePeriodType validates a period type string.
func ValidatePeriodType(period string) bool {
	switch PeriodType(period) {
	case PeriodBiWeekly, PeriodMonthly, PeriodBiMonthly, PeriodQuarterly, PeriodSemiAnnually, PeriodAnnually:
		return true
	default:
		return false
	}
}

// ValidateJobStatus validates a job status string.
func ValidateJobStatus(status string) bool {
	switch JobStatus(status) {
	case JobPending, JobCredentialCheckInProgress, JobCredentialVerified, JobCredentialFailed,
		JobScrapeInProgress, JobScrapeRequested, JobScrapeFailed, JobStatusCheckInProgress,
		JobNeedsReview, JobCompleted, JobNoInvoiceFound, JobCancelled, JobFailed:
		return true
	default:
		return false
	}
}

// ValidateExclusionType validates a blacklist exclusion type string.
func ValidateExclusionType(t string) bool {
	switch ExclusionType(t) {
	case ExclusionAll, ExclusionDownload, ExclusionRebill:
		return true
	default:
		return false
	}
}
