package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
)

// Database provides access to all repositories.
type Database interface {
	// Transaction management
	BeginTx(ctx context.Context) (Transaction, error)

	// Repository accessors
	ClientRepository() ClientRepository
	AccountRepository() AccountRepository
	AccountRuleRepository() AccountRuleRepository
	JobRepository() JobRepository
	JobExecutionRepository() JobExecutionRepository
	OrchestrationRunRepository() OrchestrationRunRepository
	BlacklistRepository() BlacklistRepository
	ConfigurationRepository() ConfigurationRepository

	// Connection management
	Close() error
	Health(ctx context.Context) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error

	ClientRepository() ClientRepository
	AccountRepository() AccountRepository
	AccountRuleRepository() AccountRuleRepository
	JobRepository() JobRepository
	JobExecutionRepository() JobExecutionRepository
	OrchestrationRunRepository() OrchestrationRunRepository
	BlacklistRepository() BlacklistRepository
	ConfigurationRepository() ConfigurationRepository
}

// ClientRepository defines data access operations for internal tenants.
type ClientRepository interface {
	Create(ctx context.Context, client *entity.Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Client, error)
	GetByExternalID(ctx context.Context, externalClientID int32) (*entity.Client, error)
	Update(ctx context.Context, client *entity.Client) error
	Count(ctx context.Context) (int64, error)
}

// AccountRepository defines data access operations for scraping targets.
type AccountRepository interface {
	Create(ctx context.Context, account *entity.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)
	GetByNaturalKey(ctx context.Context, vmAccountID int64, vmAccountNumber string) (*entity.Account, error)
	// ListNotDeleted returns every non-deleted account as one slice. For
	// large installs use ForEachNotDeleted, which AccountSync uses to
	// build its existing-accounts map.
	ListNotDeleted(ctx context.Context) ([]*entity.Account, error)
	// ForEachNotDeleted invokes fn once per non-deleted account, row by
	// row, without materializing the full result set.
	ForEachNotDeleted(ctx context.Context, fn func(*entity.Account) error) error
	ListDue(ctx context.Context, statuses []entity.NextRunStatus) ([]*entity.Account, error)
	Update(ctx context.Context, account *entity.Account) error
	Count(ctx context.Context) (int64, error)
}

// AccountRuleRepository defines data access operations for scheduling
// rules.
type AccountRuleRepository interface {
	Create(ctx context.Context, rule *entity.AccountRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.AccountRule, error)
	GetActiveByAccount(ctx context.Context, accountID uuid.UUID, jobTypeID int32) (*entity.AccountRule, error)
	Update(ctx context.Context, rule *entity.AccountRule) error
	Count(ctx context.Context) (int64, error)
}

// JobRepository defines data access operations for billing-window work
// items.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ExistsForBillingPeriod(ctx context.Context, accountID uuid.UUID, periodStart, periodEnd time.Time) (bool, error)
	ListByStatus(ctx context.Context, statuses []entity.JobStatus) ([]*entity.Job, error)
	// ListStalePending returns jobs in Pending/CredentialCheckInProgress
	// whose window has expired, bounded by lookbackDays.
	ListStalePending(ctx context.Context, today time.Time, lookbackDays int) ([]*entity.Job, error)
	Update(ctx context.Context, job *entity.Job) error
	Count(ctx context.Context) (int64, error)
}

// JobExecutionRepository defines data access operations for remote-call
// attempts against the ADR service.
type JobExecutionRepository interface {
	Create(ctx context.Context, execution *entity.JobExecution) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.JobExecution, error)
	// ListAbandoned returns executions still Running past the given
	// cutoff, for StartupRecovery's first pass.
	ListAbandoned(ctx context.Context, cutoff time.Time) ([]*entity.JobExecution, error)
	Update(ctx context.Context, execution *entity.JobExecution) error
	Count(ctx context.Context) (int64, error)
}

// OrchestrationRunRepository defines data access operations for
// orchestrator invocations.
type OrchestrationRunRepository interface {
	Create(ctx context.Context, run *entity.OrchestrationRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.OrchestrationRun, error)
	// ListRunningStartedBefore returns runs still Running that started
	// before the given time, for StartupRecovery's second pass.
	ListRunningStartedBefore(ctx context.Context, cutoff time.Time) ([]*entity.OrchestrationRun, error)
	// HasRunningStartedAfter reports whether any run with StartedAt after
	// the given time is currently Running — the startup-recovery guard
	// against closing a legitimately active run.
	HasRunningStartedAfter(ctx context.Context, after time.Time) (bool, error)
	Update(ctx context.Context, run *entity.OrchestrationRun) error
	Count(ctx context.Context) (int64, error)
}

// BlacklistRepository defines data access operations for account
// exclusions.
type BlacklistRepository interface {
	Create(ctx context.Context, entry *entity.BlacklistEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.BlacklistEntry, error)
	ListActive(ctx context.Context, today time.Time) ([]*entity.BlacklistEntry, error)
	Update(ctx context.Context, entry *entity.BlacklistEntry) error
	Count(ctx context.Context) (int64, error)
}

// ConfigurationRepository defines data access operations for the single
// operational-knobs row.
type ConfigurationRepository interface {
	Get(ctx context.Context) (*entity.Configuration, error)
	Upsert(ctx context.Context, cfg *entity.Configuration) error
}

// NotFoundError represents a record not found error.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return "not found: " + e.ResourceType + " " + e.ResourceID
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	Field   string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}
