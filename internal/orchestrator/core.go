// Package orchestrator implements OrchestratorCore (C4): the bounded-
// parallelism, four-stage pipeline that drives due accounts through
// credential verification, document scraping, and status polling against
// the downstream ADR service, advancing each account's billing rule when
// its cycle completes.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/adr"
	"github.com/lcgerke/invoice-orchestrator/internal/blacklist"
	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// Config holds the tunables of §6's defaults table, all overridable from
// the persisted Configuration row.
type Config struct {
	BatchSize                 int
	MaxParallelRequests       int
	DailyStatusCheckDelayDays int
	ScrapeRetryDays           int
	CredentialCheckLeadDays   int
	MaxRetries                int
	TestModeEnabled           bool
	TestModeMaxScrapingJobs   int
	TestModeMaxRebillJobs     int
	EnableDetailedLogging     bool
	IsOrchestrationEnabled    bool
	SourceApplicationName     string
	RecipientEmail            string
}

// DefaultConfig matches §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:                 1000,
		MaxParallelRequests:       8,
		DailyStatusCheckDelayDays: 1,
		ScrapeRetryDays:           5,
		CredentialCheckLeadDays:   7,
		MaxRetries:                5,
		TestModeEnabled:           false,
		TestModeMaxScrapingJobs:   50,
		TestModeMaxRebillJobs:     50,
		EnableDetailedLogging:     false,
		IsOrchestrationEnabled:    true,
		SourceApplicationName:     "invoice-orchestrator",
		RecipientEmail:            "",
	}
}

// Core drives one OrchestrationRun at a time; concurrent invocations of
// Run are rejected by Queue (C7). The independently-callable stage methods
// below (CreateJobs, VerifyCredentials, ...) and the two account-scoped
// operations (VerifyAllAccountCredentials, FireRebillForAccount) are not
// queue-gated: they are standalone admin operations distinct from a full
// serialized pipeline pass.
type Core struct {
	db    repository.Database
	adr   *adr.Client
	queue *Queue
	cfg   Config
	log   *zap.SugaredLogger

	// rebillCount tracks rebill requests fired through FireRebillForAccount
	// for the lifetime of this Core, capped against TestModeMaxRebillJobs
	// when test mode is enabled.
	rebillCount int32
}

// NewCore builds a Core bound to db and adr, serialized through queue.
func NewCore(db repository.Database, adrClient *adr.Client, queue *Queue, cfg Config, log *zap.SugaredLogger) *Core {
	return &Core{db: db, adr: adrClient, queue: queue, cfg: cfg, log: log}
}

// Run executes one full pipeline pass: CreateJobs, VerifyCredentials,
// Scrape, StatusCheck, in strict sequence. It is the only entry point
// Queue-serialized callers should use. progress, if non-nil, receives
// (current, total) updates across the run; the setup phase of each stage
// reports a negative current whose magnitude is the count marked so far.
func (c *Core) Run(ctx context.Context, requestedBy string, progress ProgressFunc) (*entity.OrchestrationRun, error) {
	now := entity.Now()
	run := &entity.OrchestrationRun{
		ID:          uuid.New(),
		RequestID:   uuid.NewString(),
		RequestedBy: requestedBy,
		RequestedAt: now,
		StartedAt:   &now,
		Status:      entity.RunRunning,
	}
	if err := c.queue.TryStart(run); err != nil {
		return nil, err
	}
	defer c.queue.Finish()

	if !c.cfg.IsOrchestrationEnabled {
		run.Status = entity.RunInterrupted
		msg := "orchestration disabled by configuration"
		run.ErrorMessage = &msg
		completedAt := entity.Now()
		run.CompletedAt = &completedAt
		if err := c.db.OrchestrationRunRepository().Create(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to persist orchestration run: %w", err)
		}
		c.log.Infow("orchestration run skipped: disabled by configuration", "run_id", run.ID)
		return run, nil
	}

	if err := c.db.OrchestrationRunRepository().Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist orchestration run: %w", err)
	}

	today := entity.Now()
	filter := blacklist.Load(ctx, c.db.BlacklistRepository(), today, c.log)

	var stageErr error
	if created, err := c.createJobs(ctx, filter, today, progress); err == nil {
		run.Counters.JobsCreated = created.JobsCreated
	} else {
		stageErr = err
	}
	if stageErr == nil {
		if verified, err := c.verifyCredentials(ctx, today, progress); err == nil {
			run.Counters.CredentialsVerified = verified.Verified
			run.Counters.CredentialsFailed = verified.Failed
		} else {
			stageErr = err
		}
	}
	if stageErr == nil {
		if scraped, err := c.scrape(ctx, today, progress); err == nil {
			run.Counters.ScrapesRequested = scraped.Requested
			run.Counters.ScrapesFailed = scraped.Failed
			run.Counters.JobsCompleted += scraped.Completed
		} else {
			stageErr = err
		}
	}
	if stageErr == nil {
		if checked, err := c.statusCheck(ctx, today, false, progress); err == nil {
			run.Counters.StatusChecks = checked.Checked
			run.Counters.JobsCompleted += checked.Completed
		} else {
			stageErr = err
		}
	}

	completedAt := entity.Now()
	run.CompletedAt = &completedAt
	if stageErr != nil {
		run.Status = entity.RunFailed
		msg := stageErr.Error()
		run.ErrorMessage = &msg
		c.log.Errorw("orchestration run failed", "run_id", run.ID, "error", stageErr)
	} else {
		run.Status = entity.RunCompleted
		c.log.Infow("orchestration run completed",
			"run_id", run.ID,
			"jobs_created", run.Counters.JobsCreated,
			"credentials_verified", run.Counters.CredentialsVerified,
			"credentials_failed", run.Counters.CredentialsFailed,
			"scrapes_requested", run.Counters.ScrapesRequested,
			"scrapes_failed", run.Counters.ScrapesFailed,
			"status_checks", run.Counters.StatusChecks,
			"jobs_completed", run.Counters.JobsCompleted,
		)
	}
	if err := c.db.OrchestrationRunRepository().Update(ctx, run); err != nil {
		c.log.Errorw("failed to persist orchestration run completion", "run_id", run.ID, "error", err)
	}
	return run, stageErr
}

// CreateJobs runs Stage 1 independently of Run, for callers that want to
// probe or drive a single stage rather than the bundled pipeline.
func (c *Core) CreateJobs(ctx context.Context, progress ProgressFunc) (*JobCreationResult, error) {
	today := entity.Now()
	filter := blacklist.Load(ctx, c.db.BlacklistRepository(), today, c.log)
	return c.createJobs(ctx, filter, today, progress)
}

// VerifyCredentials runs Stage 2 independently of Run.
func (c *Core) VerifyCredentials(ctx context.Context, progress ProgressFunc) (*CredentialVerificationResult, error) {
	return c.verifyCredentials(ctx, entity.Now(), progress)
}

// ProcessScraping runs Stage 3 independently of Run.
func (c *Core) ProcessScraping(ctx context.Context, progress ProgressFunc) (*ScrapeResult, error) {
	return c.scrape(ctx, entity.Now(), progress)
}

// CheckPendingStatuses runs Stage 4 in its normal, delay-gated mode,
// independently of Run.
func (c *Core) CheckPendingStatuses(ctx context.Context, progress ProgressFunc) (*StatusCheckResult, error) {
	return c.statusCheck(ctx, entity.Now(), false, progress)
}

// CheckAllScrapedStatuses runs Stage 4 in manual mode, ignoring the daily
// check-delay timing, against every job awaiting a remote status. progress
// is reported under the manual-apply-phase sign convention (current below
// -1,000,000) during the apply phase, distinguishing it from an ordinary
// pipeline pass for callers watching a shared progress sink.
func (c *Core) CheckAllScrapedStatuses(ctx context.Context, progress ProgressFunc) (*StatusCheckResult, error) {
	return c.statusCheck(ctx, entity.Now(), true, progress)
}

// VerifyAllAccountCredentials checks AttemptLogin for every non-deleted
// account with an assigned credential, independently of the job pipeline's
// lead-time-gated Stage 2 selection. It is meant for an operator who wants
// to validate credentials ahead of a billing cycle rather than waiting for
// CredentialCheckLeadDays. Progress has no natural mark/apply split here,
// so it is reported as a plain increasing current against the final total
// once the candidate set is known.
func (c *Core) VerifyAllAccountCredentials(ctx context.Context, progress ProgressFunc) (*BulkVerifyResult, error) {
	var accounts []*entity.Account
	if err := c.db.AccountRepository().ForEachNotDeleted(ctx, func(a *entity.Account) error {
		if a.CredentialID != 0 {
			accounts = append(accounts, a)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to list accounts for bulk credential verification: %w", err)
	}

	result := &BulkVerifyResult{}
	if c.cfg.TestModeEnabled && c.cfg.TestModeMaxScrapingJobs > 0 && len(accounts) > c.cfg.TestModeMaxScrapingJobs {
		result.Skipped = len(accounts) - c.cfg.TestModeMaxScrapingJobs
		accounts = accounts[:c.cfg.TestModeMaxScrapingJobs]
	}
	if len(accounts) == 0 {
		return result, nil
	}
	total := len(accounts)

	var done int32
	errs := make([]error, len(accounts))
	calls := make([]remoteCall, len(accounts))
	for i := range accounts {
		i := i
		a := accounts[i]
		calls[i] = func(ctx context.Context) error {
			req := &adr.IngestRequest{
				ADRRequestTypeId:      int(entity.RequestTypeAttemptLogin),
				CredentialId:          int(a.CredentialID),
				SourceApplicationName: c.cfg.SourceApplicationName,
				RecipientEmail:        c.cfg.RecipientEmail,
			}
			_, err := c.adr.IngestAdrRequest(ctx, req)
			errs[i] = err
			if progress != nil {
				n := atomic.AddInt32(&done, 1)
				progress(int(n), total)
			}
			return err
		}
	}
	runBounded(ctx, c.cfg.MaxParallelRequests, calls)

	for _, err := range errs {
		if err != nil {
			result.Failed++
		} else {
			result.Verified++
		}
	}
	return result, nil
}

// FireRebillForAccount fires (or cancels) a rebill request for a single
// account. cancel=true short-circuits without contacting ADR. Rebill
// requests are capped per-process against TestModeMaxRebillJobs when test
// mode is enabled, and blocked by the blacklist's Rebill exclusion.
func (c *Core) FireRebillForAccount(ctx context.Context, accountID uuid.UUID, cancel bool) (*SingleRebillResult, error) {
	result := &SingleRebillResult{AccountID: accountID}

	account, err := c.db.AccountRepository().GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}

	if cancel {
		result.Cancelled = true
		return result, nil
	}

	today := entity.Now()
	filter := blacklist.Load(ctx, c.db.BlacklistRepository(), today, c.log)
	if filter.IsBlacklisted(account, entity.ExclusionRebill) {
		result.Skipped = true
		return result, nil
	}

	if c.cfg.TestModeEnabled && c.cfg.TestModeMaxRebillJobs > 0 {
		if atomic.LoadInt32(&c.rebillCount) >= int32(c.cfg.TestModeMaxRebillJobs) {
			result.Skipped = true
			return result, nil
		}
	}

	req := &adr.IngestRequest{
		ADRRequestTypeId:      int(entity.RequestTypeRebill),
		CredentialId:          int(account.CredentialID),
		SourceApplicationName: c.cfg.SourceApplicationName,
		RecipientEmail:        c.cfg.RecipientEmail,
	}
	resp, err := c.adr.IngestAdrRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to fire rebill request for account %s: %w", accountID, err)
	}

	atomic.AddInt32(&c.rebillCount, 1)
	result.Enqueued = true
	if resp != nil {
		result.ADRStatusID = intPtr(int32(resp.StatusID))
	}
	return result, nil
}

// newExecution starts a JobExecution row for job against requestType,
// the common first step of every stage's mark phase.
func newExecution(job *entity.Job, requestType entity.RequestType) *entity.JobExecution {
	return &entity.JobExecution{
		ID:          uuid.New(),
		JobID:       job.ID,
		RequestType: requestType,
		StartAt:     entity.Now(),
	}
}

func intPtr(i int32) *int32 { return &i }
