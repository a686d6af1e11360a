package entity

import (
	"time"

	"github.com/google/uuid"
)

// Type aliases for domain IDs and temporal types
type (
	ClientID    = uuid.UUID
	AccountID   = uuid.UUID
	RuleID      = uuid.UUID
	JobID       = uuid.UUID
	ExecutionID = uuid.UUID
	RunID       = uuid.UUID
	BlacklistID = uuid.UUID
	Date        = time.Time
)

// Now returns the current time in UTC. All timestamps in this system are
// stored and computed in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}

// Audit holds the fields shared by every persisted entity.
type Audit struct {
	CreatedAt  time.Time
	CreatedBy  string
	ModifiedAt time.Time
	ModifiedBy string
	IsDeleted  bool
}

// SystemActor is used as CreatedBy/ModifiedBy when a change originates from
// AccountSync rather than a human operator or the orchestrator.
const SystemActor = "System Created"

// Client is an internal tenant, keyed by the source system's external id.
type Client struct {
	ID               uuid.UUID
	ExternalClientID int32
	Name             string
	Code             string // derived from Name, <=50 chars
	IsActive         bool
	LastSyncedAt     *time.Time
	Audit
}

// PeriodType classifies an account's billing cadence.
type PeriodType string

const (
	PeriodBiWeekly     PeriodType = "Bi-Weekly"
	PeriodMonthly      PeriodType = "Monthly"
	PeriodBiMonthly    PeriodType = "Bi-Monthly"
	PeriodQuarterly    PeriodType = "Quarterly"
	PeriodSemiAnnually PeriodType = "Semi-Annually"
	PeriodAnnually     PeriodType = "Annually"
)

// BillingStatus buckets how soon/overdue a billing cycle is.
type BillingStatus string

const (
	StatusMissing  BillingStatus = "Missing"
	StatusOverdue  BillingStatus = "Overdue"
	StatusDueNow   BillingStatus = "Due Now"
	StatusDueSoon  BillingStatus = "Due Soon"
	StatusUpcoming BillingStatus = "Upcoming"
	StatusFuture   BillingStatus = "Future"
)

// NextRunStatus buckets how soon the next scheduled run is.
type NextRunStatus string

const (
	NextRunRunNow   NextRunStatus = "Run Now"
	NextRunDueSoon  NextRunStatus = "Due Soon"
	NextRunUpcoming NextRunStatus = "Upcoming"
	NextRunFuture   NextRunStatus = "Future"
	NextRunMissing  NextRunStatus = "Missing"
)

// Account is the scraping target. Its natural key is
// (VMAccountID, VMAccountNumber) and never mutates; a rename of
// VMAccountNumber creates a new row.
type Account struct {
	ID uuid.UUID

	// Natural key.
	VMAccountID     int64
	VMAccountNumber string

	// Identity.
	InterfaceAccountID string
	ClientID           uuid.UUID
	ClientName         string
	CredentialID       int32
	VendorCode         string
	PrimaryVendorCode  string
	MasterVendorCode   string

	// Historical/derived — never manually overridden, always written by C1/C3.
	MedianDays               *float64
	InvoiceCount             int32
	LastInvoiceAt            *time.Time
	ExpectedNextAt           *time.Time
	ExpectedRangeStartAt     *time.Time
	ExpectedRangeEndAt       *time.Time
	DaysUntilNextRun         *int64
	NextRunStatus            NextRunStatus
	HistoricalBillingStatus  BillingStatus
	LastSuccessfulDownloadAt *time.Time

	// Denormalized scheduling mirror — kept in sync with the active Rule.
	NextRunAt        *time.Time
	NextRangeStartAt *time.Time
	NextRangeEndAt   *time.Time
	PeriodType       PeriodType

	Audit
}

// JobTypeDownloadInvoice is the only job_type_id AccountRule currently
// models; rebill and other job types are out of scope.
const JobTypeDownloadInvoice = 2

// AccountRule is the per-account scheduling configuration: the single
// source of truth for "when to run next".
type AccountRule struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	JobTypeID int32

	PeriodType       PeriodType
	PeriodDays       *int32
	NextRunAt        *time.Time
	NextRangeStartAt *time.Time
	NextRangeEndAt   *time.Time
	WindowDaysBefore *int32
	WindowDaysAfter  *int32

	IsEnabled            bool
	IsManuallyOverridden bool

	Audit
}

// HasCompleteSchedule reports whether the rule carries all three date
// fields CreateJobs requires before it will consider the rule active.
func (r *AccountRule) HasCompleteSchedule() bool {
	return r.NextRunAt != nil && r.NextRangeStartAt != nil && r.NextRangeEndAt != nil
}

// JobStatus is the state machine driven by OrchestratorCore's four stages.
type JobStatus string

const (
	JobPending                   JobStatus = "Pending"
	JobCredentialCheckInProgress JobStatus = "CredentialCheckInProgress"
	JobCredentialVerified        JobStatus = "CredentialVerified"
	JobCredentialFailed          JobStatus = "CredentialFailed"
	JobScrapeInProgress          JobStatus = "ScrapeInProgress"
	JobScrapeRequested           JobStatus = "ScrapeRequested"
	JobScrapeFailed              JobStatus = "ScrapeFailed"
	JobStatusCheckInProgress     JobStatus = "StatusCheckInProgress"
	JobNeedsReview               JobStatus = "NeedsReview"
	JobCompleted                 JobStatus = "Completed"
	JobNoInvoiceFound            JobStatus = "NoInvoiceFound"
	JobCancelled                 JobStatus = "Cancelled"
	JobFailed                    JobStatus = "Failed"
)

// IsTerminal reports whether a job will never be selected by any stage
// again. Used to enforce the at-most-one-in-flight-per-window invariant.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobNoInvoiceFound, JobCancelled, JobFailed:
		return true
	default:
		return false
	}
}

// Job is one billing-window work item for one account. The triple
// (AccountID, BillingPeriodStartAt, BillingPeriodEndAt) is unique,
// enforced by an ExistsForBillingPeriod precheck before insert.
type Job struct {
	ID uuid.UUID

	AccountID     uuid.UUID
	AccountRuleID *uuid.UUID // nullable for legacy jobs
	CredentialID  int32
	PeriodType    PeriodType

	BillingPeriodStartAt time.Time
	BillingPeriodEndAt   time.Time

	NextRunAt        time.Time
	NextRangeStartAt time.Time
	NextRangeEndAt   time.Time

	Status JobStatus

	ADRStatusID          *int32
	ADRStatusDescription *string
	ADRIndexID           *string

	IsMissing  bool
	RetryCount int32

	CredentialVerifiedAt    *time.Time
	ScrapingCompletedAt     *time.Time
	ErrorMessage            *string
	LastStatusCheckResponse *string
	LastStatusCheckAt       *time.Time

	Audit
}

// RequestType identifies which ADR operation a JobExecution attempted.
type RequestType int32

const (
	RequestTypeAttemptLogin    RequestType = 1
	RequestTypeDownloadInvoice RequestType = 2
	RequestTypeRebill          RequestType = 3
	RequestTypeStatusCheck     RequestType = 4
)

// JobExecution is one remote-call attempt against the ADR service.
type JobExecution struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	RequestType RequestType

	StartAt time.Time
	EndAt   *time.Time

	HTTPStatus           *int
	ADRStatusID          *int32
	ADRStatusDescription *string
	ADRIndexID           *string

	IsSuccess bool
	IsError   bool
	IsFinal   bool

	ErrorMessage   *string
	APIResponse    *string
	RequestPayload *string
}

// RunStatus is the lifecycle of one OrchestrationRun.
type RunStatus string

const (
	RunQueued      RunStatus = "Queued"
	RunRunning     RunStatus = "Running"
	RunCompleted   RunStatus = "Completed"
	RunFailed      RunStatus = "Failed"
	RunInterrupted RunStatus = "Interrupted"
)

// StageCounters tallies per-stage work for one OrchestrationRun.
type StageCounters struct {
	JobsCreated         int
	CredentialsVerified int
	CredentialsFailed   int
	ScrapesRequested    int
	ScrapesFailed       int
	StatusChecks        int
	JobsCompleted       int
}

// OrchestrationRun is one invocation of OrchestratorCore.
type OrchestrationRun struct {
	ID uuid.UUID

	RequestID   string
	RequestedBy string
	RequestedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Status       RunStatus
	ErrorMessage *string

	Counters StageCounters
}

// ExclusionType is the scope a BlacklistEntry suppresses.
type ExclusionType string

const (
	ExclusionAll      ExclusionType = "All"
	ExclusionDownload ExclusionType = "Download"
	ExclusionRebill   ExclusionType = "Rebill"
)

// BlacklistEntry optionally matches on any of five account fields; it
// suppresses CreateJobs (Download or All) and FireRebillForAccount
// (Rebill or All) when matched. AccountSync does not consult it.
type BlacklistEntry struct {
	ID uuid.UUID

	PrimaryVendorCode *string
	MasterVendorCode  *string
	VMAccountID       *int64
	VMAccountNumber   *string
	CredentialID      *int32

	ExclusionType  ExclusionType
	EffectiveStart *time.Time
	EffectiveEnd   *time.Time
	IsActive       bool

	Audit
}

// Matches reports whether the entry applies to the given account for the
// given requested exclusion type (case-sensitive string equality, numeric
// equality, per spec).
func (b *BlacklistEntry) Matches(account *Account, requestedType ExclusionType) bool {
	if !b.IsActive {
		return false
	}
	if b.ExclusionType != ExclusionAll && b.ExclusionType != requestedType {
		return false
	}
	matched := false
	if b.PrimaryVendorCode != nil && *b.PrimaryVendorCode == account.PrimaryVendorCode {
		matched = true
	}
	if b.MasterVendorCode != nil && *b.MasterVendorCode == account.MasterVendorCode {
		matched = true
	}
	if b.VMAccountID != nil && *b.VMAccountID == account.VMAccountID {
		matched = true
	}
	if b.VMAccountNumber != nil && *b.VMAccountNumber == account.VMAccountNumber {
		matched = true
	}
	if b.CredentialID != nil && *b.CredentialID == account.CredentialID {
		matched = true
	}
	return matched
}

// EffectiveOn reports whether the entry is within its effective window on
// the given day (either bound may be unset, meaning unbounded).
func (b *BlacklistEntry) EffectiveOn(day time.Time) bool {
	if b.EffectiveStart != nil && day.Before(*b.EffectiveStart) {
		return false
	}
	if b.EffectiveEnd != nil && day.After(*b.EffectiveEnd) {
		return false
	}
	return true
}

// Configuration is the single-row operational knob set. Every field is
// optional and defaults per the configuration table.
type Configuration struct {
	ID uuid.UUID

	BatchSize                 *int
	MaxParallelRequests       *int
	DailyStatusCheckDelayDays *int
	ScrapeRetryDays           *int
	CredentialCheckLeadDays   *int
	MaxRetries                *int
	TestModeEnabled           *bool
	TestModeMaxScrapingJobs   *int
	TestModeMaxRebillJobs     *int
	EnableDetailedLogging     *bool
	IsOrchestrationEnabled    *bool
	GracePeriodMinutes        *int
	StartupDelaySeconds       *int

	Audit
}

// SoftDelete marks a Client as deleted by the given actor.
func (c *Client) SoftDelete(actor string) {
	c.IsDeleted = true
	c.ModifiedAt = Now()
	c.ModifiedBy = actor
}

// SoftDelete marks an Account as deleted by the given actor.
func (a *Account) SoftDelete(actor string) {
	a.IsDeleted = true
	a.ModifiedAt = Now()
	a.ModifiedBy = actor
}

// MarkCredentialVerified transitions a job on AttemptLogin success.
func (j *Job) MarkCredentialVerified(at time.Time) {
	j.Status = JobCredentialVerified
	j.CredentialVerifiedAt = &at
}

// MarkCredentialFailed transitions a job on AttemptLogin failure.
func (j *Job) MarkCredentialFailed(errMsg string) {
	j.Status = JobCredentialFailed
	j.RetryCount++
	j.ErrorMessage = &errMsg
}

// MarkCompleted transitions a job to its terminal success state.
func (j *Job) MarkCompleted(at time.Time) {
	j.Status = JobCompleted
	j.ScrapingCompletedAt = &at
}

// MarkScrapeFailed transitions a job on DownloadInvoice failure.
func (j *Job) MarkScrapeFailed(errMsg string) {
	j.Status = JobScrapeFailed
	j.RetryCount++
	j.ErrorMessage = &errMsg
}
