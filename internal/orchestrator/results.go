package orchestrator

import "github.com/google/uuid"

// JobCreationResult is Stage 1's result (§6 create_jobs).
type JobCreationResult struct {
	JobsCreated int
}

// CredentialVerificationResult is Stage 2's result (§6 verify_credentials).
type CredentialVerificationResult struct {
	Verified int
	Failed   int
}

// ScrapeResult is Stage 3's result (§6 process_scraping).
type ScrapeResult struct {
	Requested int
	Failed    int
	Completed int
}

// StatusCheckResult is Stage 4's result (§6 check_pending_statuses /
// check_all_scraped_statuses).
type StatusCheckResult struct {
	Checked   int
	Completed int
}

// BulkVerifyResult is the result of verifying every active account's
// credential independently of the job pipeline (§6
// verify_all_account_credentials).
type BulkVerifyResult struct {
	Verified int
	Failed   int
	Skipped  int
}

// SingleRebillResult is the result of firing (or cancelling) a rebill
// request for one account (§6 fire_rebill_for_account).
type SingleRebillResult struct {
	AccountID   uuid.UUID
	Enqueued    bool
	Cancelled   bool
	Skipped     bool
	ADRStatusID *int32
}
