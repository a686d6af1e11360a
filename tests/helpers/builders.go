// Package helpers provides fluent builders for the entities of §3, so a
// test only sets the fields it cares about.
package helpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

// ClientBuilder builds Client entities with a fluent interface.
type ClientBuilder struct {
	c *entity.Client
}

// NewClientBuilder creates a ClientBuilder with sensible defaults.
func NewClientBuilder() *ClientBuilder {
	now := entity.Now()
	return &ClientBuilder{c: &entity.Client{
		ID:               uuid.New(),
		ExternalClientID: 1,
		Name:             "Test Client",
		Code:             "TEST-CLIENT",
		IsActive:         true,
		Audit: entity.Audit{
			CreatedAt:  now,
			CreatedBy:  entity.SystemActor,
			ModifiedAt: now,
			ModifiedBy: entity.SystemActor,
		},
	}}
}

func (b *ClientBuilder) WithID(id uuid.UUID) *ClientBuilder {
	b.c.ID = id
	return b
}

func (b *ClientBuilder) WithExternalClientID(id int32) *ClientBuilder {
	b.c.ExternalClientID = id
	return b
}

func (b *ClientBuilder) WithName(name string) *ClientBuilder {
	b.c.Name = name
	return b
}

func (b *ClientBuilder) WithCode(code string) *ClientBuilder {
	b.c.Code = code
	return b
}

func (b *ClientBuilder) WithActive(active bool) *ClientBuilder {
	b.c.IsActive = active
	return b
}

// Build returns the built Client.
func (b *ClientBuilder) Build() *entity.Client {
	return b.c
}

// AccountBuilder builds Account entities with a fluent interface.
type AccountBuilder struct {
	a *entity.Account
}

// NewAccountBuilder creates an AccountBuilder with sensible defaults.
func NewAccountBuilder() *AccountBuilder {
	now := entity.Now()
	return &AccountBuilder{a: &entity.Account{
		ID:                 uuid.New(),
		VMAccountID:        1000,
		VMAccountNumber:    "VM-1000",
		InterfaceAccountID: "IFACE-1000",
		CredentialID:       1,
		VendorCode:         "VEND",
		PrimaryVendorCode:  "VEND",
		MasterVendorCode:   "VEND",
		NextRunStatus:      entity.NextRunUpcoming,
		HistoricalBillingStatus: entity.StatusUpcoming,
		Audit: entity.Audit{
			CreatedAt:  now,
			CreatedBy:  entity.SystemActor,
			ModifiedAt: now,
			ModifiedBy: entity.SystemActor,
		},
	}}
}

func (b *AccountBuilder) WithID(id uuid.UUID) *AccountBuilder {
	b.a.ID = id
	return b
}

func (b *AccountBuilder) WithVMAccountID(id int64) *AccountBuilder {
	b.a.VMAccountID = id
	return b
}

func (b *AccountBuilder) WithVMAccountNumber(n string) *AccountBuilder {
	b.a.VMAccountNumber = n
	return b
}

func (b *AccountBuilder) WithClientID(id uuid.UUID) *AccountBuilder {
	b.a.ClientID = id
	return b
}

func (b *AccountBuilder) WithClientName(name string) *AccountBuilder {
	b.a.ClientName = name
	return b
}

func (b *AccountBuilder) WithNextRun(at, rangeStart, rangeEnd time.Time) *AccountBuilder {
	b.a.NextRunAt = &at
	b.a.NextRangeStartAt = &rangeStart
	b.a.NextRangeEndAt = &rangeEnd
	return b
}

func (b *AccountBuilder) WithPeriodType(pt entity.PeriodType) *AccountBuilder {
	b.a.PeriodType = pt
	return b
}

func (b *AccountBuilder) WithDeleted(deleted bool) *AccountBuilder {
	b.a.IsDeleted = deleted
	return b
}

// Build returns the built Account.
func (b *AccountBuilder) Build() *entity.Account {
	return b.a
}

// AccountRuleBuilder builds AccountRule entities with a fluent interface.
type AccountRuleBuilder struct {
	r *entity.AccountRule
}

// NewAccountRuleBuilder creates an AccountRuleBuilder with sensible
// defaults: an enabled, non-overridden monthly rule.
func NewAccountRuleBuilder() *AccountRuleBuilder {
	now := entity.Now()
	nextRun := now.AddDate(0, 1, 0)
	rangeStart := nextRun.AddDate(0, 0, -5)
	rangeEnd := nextRun.AddDate(0, 0, 5)
	periodDays := int32(30)
	windowBefore := int32(5)
	windowAfter := int32(5)
	return &AccountRuleBuilder{r: &entity.AccountRule{
		ID:               uuid.New(),
		JobTypeID:        entity.JobTypeDownloadInvoice,
		PeriodType:       entity.PeriodMonthly,
		PeriodDays:       &periodDays,
		NextRunAt:        &nextRun,
		NextRangeStartAt: &rangeStart,
		NextRangeEndAt:   &rangeEnd,
		WindowDaysBefore: &windowBefore,
		WindowDaysAfter:  &windowAfter,
		IsEnabled:        true,
		Audit: entity.Audit{
			CreatedAt:  now,
			CreatedBy:  entity.SystemActor,
			ModifiedAt: now,
			ModifiedBy: entity.SystemActor,
		},
	}}
}

func (b *AccountRuleBuilder) WithID(id uuid.UUID) *AccountRuleBuilder {
	b.r.ID = id
	return b
}

func (b *AccountRuleBuilder) WithAccountID(id uuid.UUID) *AccountRuleBuilder {
	b.r.AccountID = id
	return b
}

func (b *AccountRuleBuilder) WithManualOverride(overridden bool) *AccountRuleBuilder {
	b.r.IsManuallyOverridden = overridden
	return b
}

func (b *AccountRuleBuilder) WithEnabled(enabled bool) *AccountRuleBuilder {
	b.r.IsEnabled = enabled
	return b
}

func (b *AccountRuleBuilder) WithSchedule(nextRun, rangeStart, rangeEnd time.Time) *AccountRuleBuilder {
	b.r.NextRunAt = &nextRun
	b.r.NextRangeStartAt = &rangeStart
	b.r.NextRangeEndAt = &rangeEnd
	return b
}

// Build returns the built AccountRule.
func (b *AccountRuleBuilder) Build() *entity.AccountRule {
	return b.r
}

// JobBuilder builds Job entities with a fluent interface.
type JobBuilder struct {
	j *entity.Job
}

// NewJobBuilder creates a JobBuilder with sensible defaults: a Pending job
// with a 10-day window from five days before today to five days after.
func NewJobBuilder() *JobBuilder {
	now := entity.Now()
	return &JobBuilder{j: &entity.Job{
		ID:                   uuid.New(),
		PeriodType:           entity.PeriodMonthly,
		BillingPeriodStartAt: now.AddDate(0, -1, 0),
		BillingPeriodEndAt:   now,
		NextRunAt:            now,
		NextRangeStartAt:     now.AddDate(0, 0, -5),
		NextRangeEndAt:       now.AddDate(0, 0, 5),
		Status:               entity.JobPending,
		Audit: entity.Audit{
			CreatedAt:  now,
			CreatedBy:  entity.SystemActor,
			ModifiedAt: now,
			ModifiedBy: entity.SystemActor,
		},
	}}
}

func (b *JobBuilder) WithID(id uuid.UUID) *JobBuilder {
	b.j.ID = id
	return b
}

func (b *JobBuilder) WithAccountID(id uuid.UUID) *JobBuilder {
	b.j.AccountID = id
	return b
}

func (b *JobBuilder) WithAccountRuleID(id uuid.UUID) *JobBuilder {
	b.j.AccountRuleID = &id
	return b
}

func (b *JobBuilder) WithStatus(status entity.JobStatus) *JobBuilder {
	b.j.Status = status
	return b
}

func (b *JobBuilder) WithWindow(nextRun, rangeStart, rangeEnd time.Time) *JobBuilder {
	b.j.NextRunAt = nextRun
	b.j.NextRangeStartAt = rangeStart
	b.j.NextRangeEndAt = rangeEnd
	return b
}

func (b *JobBuilder) WithErrorMessage(msg string) *JobBuilder {
	b.j.ErrorMessage = &msg
	return b
}

// Build returns the built Job.
func (b *JobBuilder) Build() *entity.Job {
	return b.j
}

// OrchestrationRunBuilder builds OrchestrationRun entities with a fluent
// interface.
type OrchestrationRunBuilder struct {
	r *entity.OrchestrationRun
}

// NewOrchestrationRunBuilder creates an OrchestrationRunBuilder with
// sensible defaults: a just-started run requested by "scheduler".
func NewOrchestrationRunBuilder() *OrchestrationRunBuilder {
	now := entity.Now()
	return &OrchestrationRunBuilder{r: &entity.OrchestrationRun{
		ID:          uuid.New(),
		RequestID:   uuid.NewString(),
		RequestedBy: "scheduler",
		RequestedAt: now,
		StartedAt:   &now,
		Status:      entity.RunRunning,
	}}
}

func (b *OrchestrationRunBuilder) WithID(id uuid.UUID) *OrchestrationRunBuilder {
	b.r.ID = id
	return b
}

func (b *OrchestrationRunBuilder) WithRequestedBy(by string) *OrchestrationRunBuilder {
	b.r.RequestedBy = by
	return b
}

func (b *OrchestrationRunBuilder) WithStatus(status entity.RunStatus) *OrchestrationRunBuilder {
	b.r.Status = status
	return b
}

func (b *OrchestrationRunBuilder) WithStartedAt(at time.Time) *OrchestrationRunBuilder {
	b.r.StartedAt = &at
	return b
}

// Build returns the built OrchestrationRun.
func (b *OrchestrationRunBuilder) Build() *entity.OrchestrationRun {
	return b.r
}

// BlacklistEntryBuilder builds BlacklistEntry entities with a fluent
// interface.
type BlacklistEntryBuilder struct {
	e *entity.BlacklistEntry
}

// NewBlacklistEntryBuilder creates a BlacklistEntryBuilder with sensible
// defaults: an active, all-exclusion entry with no effective window.
func NewBlacklistEntryBuilder() *BlacklistEntryBuilder {
	now := entity.Now()
	return &BlacklistEntryBuilder{e: &entity.BlacklistEntry{
		ID:            uuid.New(),
		ExclusionType: entity.ExclusionAll,
		IsActive:      true,
		Audit: entity.Audit{
			CreatedAt:  now,
			CreatedBy:  entity.SystemActor,
			ModifiedAt: now,
			ModifiedBy: entity.SystemActor,
		},
	}}
}

func (b *BlacklistEntryBuilder) WithVMAccountID(id int64) *BlacklistEntryBuilder {
	b.e.VMAccountID = &id
	return b
}

func (b *BlacklistEntryBuilder) WithExclusionType(t entity.ExclusionType) *BlacklistEntryBuilder {
	b.e.ExclusionType = t
	return b
}

func (b *BlacklistEntryBuilder) WithActive(active bool) *BlacklistEntryBuilder {
	b.e.IsActive = active
	return b
}

func (b *BlacklistEntryBuilder) WithEffectiveWindow(start, end time.Time) *BlacklistEntryBuilder {
	b.e.EffectiveStart = &start
	b.e.EffectiveEnd = &end
	return b
}

// Build returns the built BlacklistEntry.
func (b *BlacklistEntryBuilder) Build() *entity.BlacklistEntry {
	return b.e
}
