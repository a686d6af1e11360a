package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/adr"
	"github.com/lcgerke/invoice-orchestrator/internal/billing"
	"github.com/lcgerke/invoice-orchestrator/internal/blacklist"
	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

const markChunkSize = 500

// capJobsForTestMode truncates jobs to TestModeMaxScrapingJobs when test
// mode is enabled, per the glossary's "caps the number of jobs processed
// per stage."
func capJobsForTestMode(jobs []*entity.Job, cfg Config) []*entity.Job {
	if cfg.TestModeEnabled && cfg.TestModeMaxScrapingJobs > 0 && len(jobs) > cfg.TestModeMaxScrapingJobs {
		return jobs[:cfg.TestModeMaxScrapingJobs]
	}
	return jobs
}

// createJobs is Stage 1: insert Pending jobs for due accounts that have a
// complete, enabled, non-blacklisted rule and no existing job for the
// rule's billing window.
func (c *Core) createJobs(ctx context.Context, filter *blacklist.Filter, today time.Time, progress ProgressFunc) (*JobCreationResult, error) {
	accounts, err := c.db.AccountRepository().ListDue(ctx, []entity.NextRunStatus{entity.NextRunRunNow, entity.NextRunDueSoon})
	if err != nil {
		return nil, fmt.Errorf("failed to list due accounts: %w", err)
	}

	type candidate struct {
		account *entity.Account
		rule    *entity.AccountRule
	}
	var candidates []candidate

	for _, account := range accounts {
		if filter.IsBlacklisted(account, entity.ExclusionDownload) {
			continue
		}
		rule, err := c.db.AccountRuleRepository().GetActiveByAccount(ctx, account.ID, entity.JobTypeDownloadInvoice)
		if err != nil {
			continue
		}
		if !rule.IsEnabled || !rule.HasCompleteSchedule() {
			continue
		}
		exists, err := c.db.JobRepository().ExistsForBillingPeriod(ctx, account.ID, *rule.NextRangeStartAt, *rule.NextRangeEndAt)
		if err != nil {
			return nil, fmt.Errorf("failed to check job existence for account %s: %w", account.ID, err)
		}
		if exists {
			continue
		}
		candidates = append(candidates, candidate{account: account, rule: rule})
	}

	if c.cfg.TestModeEnabled && c.cfg.TestModeMaxScrapingJobs > 0 && len(candidates) > c.cfg.TestModeMaxScrapingJobs {
		candidates = candidates[:c.cfg.TestModeMaxScrapingJobs]
	}

	jobs := make([]*entity.Job, len(candidates))
	for i, cand := range candidates {
		jobs[i] = &entity.Job{
			ID:                   uuid.New(),
			AccountID:            cand.account.ID,
			AccountRuleID:        &cand.rule.ID,
			CredentialID:         cand.account.CredentialID,
			PeriodType:           cand.rule.PeriodType,
			BillingPeriodStartAt: *cand.rule.NextRangeStartAt,
			BillingPeriodEndAt:   *cand.rule.NextRangeEndAt,
			NextRunAt:            *cand.rule.NextRunAt,
			NextRangeStartAt:     *cand.rule.NextRangeStartAt,
			NextRangeEndAt:       *cand.rule.NextRangeEndAt,
			Status:               entity.JobPending,
			IsMissing:            cand.account.HistoricalBillingStatus == entity.StatusMissing,
			RetryCount:           0,
			Audit: entity.Audit{
				CreatedAt:  entity.Now(),
				CreatedBy:  entity.SystemActor,
				ModifiedAt: entity.Now(),
				ModifiedBy: entity.SystemActor,
			},
		}
	}

	total := len(jobs)
	report := reportSetupPhase(progress, total)
	if err := flushInChunks(ctx, c.db, len(jobs), c.cfg.BatchSize, report, func(tx repository.Transaction, i int) error {
		return tx.JobRepository().Create(ctx, jobs[i])
	}); err != nil {
		return nil, err
	}

	return &JobCreationResult{JobsCreated: len(jobs)}, nil
}

// verifyCredentials is Stage 2: mark eligible jobs CredentialCheckInProgress,
// call AttemptLogin in bounded parallel, apply results.
func (c *Core) verifyCredentials(ctx context.Context, today time.Time, progress ProgressFunc) (*CredentialVerificationResult, error) {
	candidates, err := c.db.JobRepository().ListByStatus(ctx, []entity.JobStatus{entity.JobPending, entity.JobCredentialFailed})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for credential verification: %w", err)
	}
	lead := time.Duration(c.cfg.CredentialCheckLeadDays) * 24 * time.Hour
	var jobs []*entity.Job
	for _, j := range candidates {
		if !j.NextRunAt.After(today.Add(lead)) && j.RetryCount < int32(c.cfg.MaxRetries) {
			jobs = append(jobs, j)
		}
	}
	jobs = capJobsForTestMode(jobs, c.cfg)
	result := &CredentialVerificationResult{}
	if len(jobs) == 0 {
		return result, nil
	}
	total := len(jobs)

	executions := make([]*entity.JobExecution, len(jobs))
	for i, j := range jobs {
		j.Status = entity.JobCredentialCheckInProgress
		executions[i] = newExecution(j, entity.RequestTypeAttemptLogin)
	}
	if err := flushMarkPhase(ctx, c.db, jobs, executions, markChunkSize, progress, total); err != nil {
		return nil, err
	}

	results := make([]*adr.StatusResponse, len(jobs))
	errs := make([]error, len(jobs))
	calls := make([]remoteCall, len(jobs))
	for i := range jobs {
		i := i
		j := jobs[i]
		calls[i] = func(ctx context.Context) error {
			req := &adr.IngestRequest{
				ADRRequestTypeId:      int(entity.RequestTypeAttemptLogin),
				CredentialId:          int(j.CredentialID),
				JobId:                 jobIDToInt(j.ID),
				SourceApplicationName: c.cfg.SourceApplicationName,
				RecipientEmail:        c.cfg.RecipientEmail,
			}
			resp, err := c.adr.IngestAdrRequest(ctx, req)
			results[i] = resp
			errs[i] = err
			return err
		}
	}
	runBounded(ctx, c.cfg.MaxParallelRequests, calls)

	for i, j := range jobs {
		exec := executions[i]
		now := entity.Now()
		exec.EndAt = &now
		if errs[i] != nil {
			msg := truncateMsg(errs[i].Error(), 500)
			j.MarkCredentialFailed(msg)
			exec.IsError = true
			exec.ErrorMessage = &msg
			result.Failed++
			continue
		}
		j.MarkCredentialVerified(now)
		exec.IsSuccess = true
		exec.IsFinal = true
		if results[i] != nil {
			exec.ADRStatusID = intPtr(int32(results[i].StatusID))
			exec.ADRStatusDescription = &results[i].StatusDescription
		}
		result.Verified++
	}

	if err := flushApplyPhase(ctx, c.db, jobs, executions, c.cfg.BatchSize, progress, total, false); err != nil {
		return nil, err
	}
	return result, nil
}

// scrape is Stage 3: mark ScrapeInProgress, call DownloadInvoice, apply.
func (c *Core) scrape(ctx context.Context, today time.Time, progress ProgressFunc) (*ScrapeResult, error) {
	candidates, err := c.db.JobRepository().ListByStatus(ctx, []entity.JobStatus{entity.JobCredentialVerified})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for scrape: %w", err)
	}
	var jobs []*entity.Job
	for _, j := range candidates {
		if !today.Before(j.NextRunAt) {
			jobs = append(jobs, j)
		}
	}
	jobs = capJobsForTestMode(jobs, c.cfg)
	result := &ScrapeResult{}
	if len(jobs) == 0 {
		return result, nil
	}
	total := len(jobs)

	executions := make([]*entity.JobExecution, len(jobs))
	for i, j := range jobs {
		j.Status = entity.JobScrapeInProgress
		executions[i] = newExecution(j, entity.RequestTypeDownloadInvoice)
	}
	if err := flushMarkPhase(ctx, c.db, jobs, executions, markChunkSize, progress, total); err != nil {
		return nil, err
	}

	results := make([]*adr.StatusResponse, len(jobs))
	errs := make([]error, len(jobs))
	calls := make([]remoteCall, len(jobs))
	for i := range jobs {
		i := i
		j := jobs[i]
		calls[i] = func(ctx context.Context) error {
			req := &adr.IngestRequest{
				ADRRequestTypeId:      int(entity.RequestTypeDownloadInvoice),
				CredentialId:          int(j.CredentialID),
				JobId:                 jobIDToInt(j.ID),
				StartDate:             j.BillingPeriodStartAt.Format("2006-01-02"),
				EndDate:               j.BillingPeriodEndAt.Format("2006-01-02"),
				SourceApplicationName: c.cfg.SourceApplicationName,
				RecipientEmail:        c.cfg.RecipientEmail,
				IsLastAttempt:         !today.Before(j.NextRangeEndAt),
			}
			resp, err := c.adr.IngestAdrRequest(ctx, req)
			results[i] = resp
			errs[i] = err
			return err
		}
	}
	runBounded(ctx, c.cfg.MaxParallelRequests, calls)

	var rulesToAdvance []*entity.Job
	for i, j := range jobs {
		exec := executions[i]
		now := entity.Now()
		exec.EndAt = &now
		if errs[i] != nil {
			msg := truncateMsg(errs[i].Error(), 500)
			j.MarkScrapeFailed(msg)
			exec.IsError = true
			exec.ErrorMessage = &msg
			result.Failed++
			continue
		}
		resp := results[i]
		exec.IsSuccess = true
		if resp != nil {
			exec.ADRStatusID = intPtr(int32(resp.StatusID))
			exec.ADRStatusDescription = &resp.StatusDescription
			exec.IsFinal = resp.IsFinal
			if resp.IsFinal && resp.StatusID == adr.StatusDocumentRetrievalComplete {
				j.MarkCompleted(now)
				rulesToAdvance = append(rulesToAdvance, j)
				result.Completed++
			} else {
				j.Status = entity.JobScrapeRequested
				result.Requested++
			}
		} else {
			j.Status = entity.JobScrapeRequested
			result.Requested++
		}
	}

	if err := c.advanceRulesForJobs(ctx, rulesToAdvance, today); err != nil {
		return nil, err
	}

	if err := flushApplyPhase(ctx, c.db, jobs, executions, c.cfg.BatchSize, progress, total, false); err != nil {
		return nil, err
	}
	return result, nil
}

// statusCheck is Stage 4: poll ADR for jobs awaiting a final result and
// apply the status-mapping table, including the window-exhaustion rule.
func (c *Core) statusCheck(ctx context.Context, today time.Time, manual bool, progress ProgressFunc) (*StatusCheckResult, error) {
	var candidates []*entity.Job
	var err error
	if manual {
		candidates, err = c.db.JobRepository().ListByStatus(ctx, []entity.JobStatus{entity.JobScrapeRequested, entity.JobStatusCheckInProgress})
	} else {
		candidates, err = c.db.JobRepository().ListByStatus(ctx, []entity.JobStatus{entity.JobScrapeRequested, entity.JobCredentialCheckInProgress})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for status check: %w", err)
	}

	delay := time.Duration(c.cfg.DailyStatusCheckDelayDays) * 24 * time.Hour
	var jobs []*entity.Job
	var priorStatus []entity.JobStatus
	for _, j := range candidates {
		if !manual && j.LastStatusCheckAt != nil && j.LastStatusCheckAt.Add(delay).After(today) {
			continue
		}
		jobs = append(jobs, j)
		priorStatus = append(priorStatus, j.Status)
	}
	if capped := capJobsForTestMode(jobs, c.cfg); len(capped) != len(jobs) {
		priorStatus = priorStatus[:len(capped)]
		jobs = capped
	}
	result := &StatusCheckResult{}
	if len(jobs) == 0 {
		return result, nil
	}
	total := len(jobs)

	executions := make([]*entity.JobExecution, len(jobs))
	for i, j := range jobs {
		j.Status = entity.JobStatusCheckInProgress
		executions[i] = newExecution(j, entity.RequestTypeStatusCheck)
	}
	if err := flushMarkPhase(ctx, c.db, jobs, executions, markChunkSize, progress, total); err != nil {
		return nil, err
	}

	results := make([]*adr.StatusResponse, len(jobs))
	errs := make([]error, len(jobs))
	calls := make([]remoteCall, len(jobs))
	for i := range jobs {
		i := i
		j := jobs[i]
		calls[i] = func(ctx context.Context) error {
			jobIDInt := jobIDToInt(j.ID)
			resp, err := c.adr.GetRequestStatusByJobID(ctx, jobIDInt)
			results[i] = resp
			errs[i] = err
			return err
		}
	}
	runBounded(ctx, c.cfg.MaxParallelRequests, calls)

	var rulesToAdvance []*entity.Job
	for i, j := range jobs {
		exec := executions[i]
		now := entity.Now()
		exec.EndAt = &now
		j.LastStatusCheckAt = &now
		wasCredentialStream := priorStatus[i] == entity.JobCredentialCheckInProgress

		result.Checked++
		if errs[i] != nil {
			msg := truncateMsg(errs[i].Error(), 1000)
			j.LastStatusCheckResponse = &msg
			exec.IsError = true
			exec.ErrorMessage = &msg
			j.Status = priorStatus[i]
			continue
		}
		resp := results[i]
		if resp == nil {
			j.Status = priorStatus[i]
			continue
		}
		exec.ADRStatusID = intPtr(int32(resp.StatusID))
		exec.ADRStatusDescription = &resp.StatusDescription
		exec.IsFinal = resp.IsFinal
		exec.IsSuccess = !resp.IsError
		j.ADRStatusID = intPtr(int32(resp.StatusID))
		j.ADRStatusDescription = &resp.StatusDescription

		switch {
		case resp.StatusID == adr.StatusDocumentRetrievalComplete:
			j.MarkCompleted(now)
			rulesToAdvance = append(rulesToAdvance, j)
			result.Completed++
		case resp.StatusID == adr.StatusNeedsHumanReview:
			j.Status = entity.JobNeedsReview
		case resp.StatusID == adr.StatusLoginSucceeded && wasCredentialStream:
			j.MarkCredentialVerified(now)
		case adr.IsErrorStatus(resp.StatusID):
			msg := truncateMsg(resp.StatusDescription, 500)
			if wasCredentialStream {
				j.MarkCredentialFailed(msg)
			} else {
				j.Status = entity.JobFailed
				j.ErrorMessage = &msg
			}
		default:
			// in-flight or retryable: re-poll next cycle.
			if !resp.IsFinal && !wasCredentialStream && today.After(j.NextRangeEndAt) {
				// Window-exhaustion rule: a non-final scrape-stream job
				// whose window has passed leaves the active set without a
				// remote-reported final status.
				j.Status = entity.JobNoInvoiceFound
				j.ScrapingCompletedAt = &now
				rulesToAdvance = append(rulesToAdvance, j)
			} else if wasCredentialStream {
				j.Status = entity.JobCredentialCheckInProgress
			} else {
				j.Status = entity.JobScrapeRequested
			}
		}
	}

	if err := c.advanceRulesForJobs(ctx, rulesToAdvance, today); err != nil {
		return nil, err
	}

	if err := flushApplyPhase(ctx, c.db, jobs, executions, c.cfg.BatchSize, progress, total, manual); err != nil {
		return nil, err
	}
	return result, nil
}

// advanceRulesForJobs advances each job's rule and mirrors the result onto
// its account, reading and writing one rule and one account at a time
// through the non-transactional repositories, before the apply phase's
// batched flush.
func (c *Core) advanceRulesForJobs(ctx context.Context, jobs []*entity.Job, today time.Time) error {
	for _, j := range jobs {
		if j.AccountRuleID == nil {
			continue
		}
		rule, err := c.db.AccountRuleRepository().GetByID(ctx, *j.AccountRuleID)
		if err != nil {
			return fmt.Errorf("failed to load rule %s for advancement: %w", *j.AccountRuleID, err)
		}
		account, err := c.db.AccountRepository().GetByID(ctx, j.AccountID)
		if err != nil {
			return fmt.Errorf("failed to load account %s for rule advancement: %w", j.AccountID, err)
		}
		AdvanceRule(rule, account, j, today)

		anchorDay := billing.AnchorDayOfMonth(j.NextRunAt)
		newLSD := AdvanceLastSuccessfulDownload(account, j.NextRunAt, rule.PeriodType, anchorDay)
		account.LastSuccessfulDownloadAt = &newLSD

		if err := c.db.AccountRuleRepository().Update(ctx, rule); err != nil {
			return fmt.Errorf("failed to persist advanced rule: %w", err)
		}
		if err := c.db.AccountRepository().Update(ctx, account); err != nil {
			return fmt.Errorf("failed to persist advanced account: %w", err)
		}
	}
	return nil
}

func truncateMsg(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// jobIDToInt derives a stable int identifier from a Job's UUID for the
// GetRequestStatusByJobId path parameter, since ADR's contract is
// integer-keyed while internal Job ids are UUIDs.
func jobIDToInt(id uuid.UUID) int {
	var n int
	for _, b := range id {
		n = n*31 + int(b)
	}
	if n < 0 {
		n = -n
	}
	return n
}
