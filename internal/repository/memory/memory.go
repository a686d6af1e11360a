// Package memory provides an in-memory repository.Database implementation
// used by unit tests that exercise orchestration logic without a live
// Postgres instance.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// Store is a shared in-memory data set for all entity types, guarded by a
// single mutex since volumes in tests are small and concurrent correctness
// is not under test here.
type Store struct {
	mu sync.RWMutex

	clients           map[uuid.UUID]*entity.Client
	accounts          map[uuid.UUID]*entity.Account
	rules             map[uuid.UUID]*entity.AccountRule
	jobs              map[uuid.UUID]*entity.Job
	executions        map[uuid.UUID]*entity.JobExecution
	runs              map[uuid.UUID]*entity.OrchestrationRun
	blacklist         map[uuid.UUID]*entity.BlacklistEntry
	configuration     *entity.Configuration
}

// NewStore creates a new empty in-memory store.
func NewStore() *Store {
	return &Store{
		clients:    make(map[uuid.UUID]*entity.Client),
		accounts:   make(map[uuid.UUID]*entity.Account),
		rules:      make(map[uuid.UUID]*entity.AccountRule),
		jobs:       make(map[uuid.UUID]*entity.Job),
		executions: make(map[uuid.UUID]*entity.JobExecution),
		runs:       make(map[uuid.UUID]*entity.OrchestrationRun),
		blacklist:  make(map[uuid.UUID]*entity.BlacklistEntry),
	}
}

// Database wraps a Store to implement repository.Database.
type Database struct {
	store *Store
}

// NewDatabase creates a new in-memory repository.Database.
func NewDatabase() *Database {
	return &Database{store: NewStore()}
}

func (d *Database) ClientRepository() repository.ClientRepository { return &clientRepo{d.store} }
func (d *Database) AccountRepository() repository.AccountRepository {
	return &accountRepo{d.store}
}
func (d *Database) AccountRuleRepository() repository.AccountRuleRepository {
	return &ruleRepo{d.store}
}
func (d *Database) JobRepository() repository.JobRepository { return &jobRepo{d.store} }
func (d *Database) JobExecutionRepository() repository.JobExecutionRepository {
	return &executionRepo{d.store}
}
func (d *Database) OrchestrationRunRepository() repository.OrchestrationRunRepository {
	return &runRepo{d.store}
}
func (d *Database) BlacklistRepository() repository.BlacklistRepository {
	return &blacklistRepo{d.store}
}
func (d *Database) ConfigurationRepository() repository.ConfigurationRepository {
	return &configRepo{d.store}
}

func (d *Database) Close() error                         { return nil }
func (d *Database) Health(ctx context.Context) error      { return nil }
func (d *Database) BeginTx(ctx context.Context) (repository.Transaction, error) {
	return &memTx{d.store}, nil
}

// memTx is a no-op transaction: the in-memory store has no rollback log
// because tests exercise it single-threaded and synchronously.
type memTx struct{ store *Store }

func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

func (t *memTx) ClientRepository() repository.ClientRepository { return &clientRepo{t.store} }
func (t *memTx) AccountRepository() repository.AccountRepository {
	return &accountRepo{t.store}
}
func (t *memTx) AccountRuleRepository() repository.AccountRuleRepository {
	return &ruleRepo{t.store}
}
func (t *memTx) JobRepository() repository.JobRepository { return &jobRepo{t.store} }
func (t *memTx) JobExecutionRepository() repository.JobExecutionRepository {
	return &executionRepo{t.store}
}
func (t *memTx) OrchestrationRunRepository() repository.OrchestrationRunRepository {
	return &runRepo{t.store}
}
func (t *memTx) BlacklistRepository() repository.BlacklistRepository {
	return &blacklistRepo{t.store}
}
func (t *memTx) ConfigurationRepository() repository.ConfigurationRepository {
	return &configRepo{t.store}
}

// --- Client ---

type clientRepo struct{ s *Store }

func (r *clientRepo) Create(ctx context.Context, c *entity.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.s.clients[c.ID] = c
	return nil
}

func (r *clientRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Client", ResourceID: id.String()}
	}
	return c, nil
}

func (r *clientRepo) GetByExternalID(ctx context.Context, externalClientID int32) (*entity.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.clients {
		if c.ExternalClientID == externalClientID {
			return c, nil
		}
	}
	return nil, &repository.NotFoundError{ResourceType: "Client", ResourceID: "external"}
}

func (r *clientRepo) Update(ctx context.Context, c *entity.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[c.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "Client", ResourceID: c.ID.String()}
	}
	r.s.clients[c.ID] = c
	return nil
}

func (r *clientRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.clients)), nil
}

// --- Account ---

type accountRepo struct{ s *Store }

func (r *accountRepo) Create(ctx context.Context, a *entity.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.s.accounts[a.ID] = a
	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Account", ResourceID: id.String()}
	}
	return a, nil
}

func (r *accountRepo) GetByNaturalKey(ctx context.Context, vmAccountID int64, vmAccountNumber string) (*entity.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, a := range r.s.accounts {
		if a.VMAccountID == vmAccountID && a.VMAccountNumber == vmAccountNumber {
			return a, nil
		}
	}
	return nil, &repository.NotFoundError{ResourceType: "Account", ResourceID: vmAccountNumber}
}

func (r *accountRepo) ListNotDeleted(ctx context.Context) ([]*entity.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		if !a.IsDeleted {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *accountRepo) ForEachNotDeleted(ctx context.Context, fn func(*entity.Account) error) error {
	accounts, _ := r.ListNotDeleted(ctx)
	for _, a := range accounts {
		if err := fn(a); err != nil {
			return err
		}
	}
	return nil
}

func (r *accountRepo) ListDue(ctx context.Context, statuses []entity.NextRunStatus) ([]*entity.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := make(map[entity.NextRunStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]*entity.Account, 0)
	for _, a := range r.s.accounts {
		if a.IsDeleted {
			continue
		}
		if want[a.NextRunStatus] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *accountRepo) Update(ctx context.Context, a *entity.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.accounts[a.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "Account", ResourceID: a.ID.String()}
	}
	r.s.accounts[a.ID] = a
	return nil
}

func (r *accountRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.accounts)), nil
}

// --- AccountRule ---

type ruleRepo struct{ s *Store }

func (r *ruleRepo) Create(ctx context.Context, rule *entity.AccountRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	r.s.rules[rule.ID] = rule
	return nil
}

func (r *ruleRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.AccountRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "AccountRule", ResourceID: id.String()}
	}
	return rule, nil
}

func (r *ruleRepo) GetActiveByAccount(ctx context.Context, accountID uuid.UUID, jobTypeID int32) (*entity.AccountRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rule := range r.s.rules {
		if rule.AccountID == accountID && rule.JobTypeID == jobTypeID && rule.IsEnabled && !rule.IsDeleted {
			return rule, nil
		}
	}
	return nil, &repository.NotFoundError{ResourceType: "AccountRule", ResourceID: accountID.String()}
}

func (r *ruleRepo) Update(ctx context.Context, rule *entity.AccountRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rules[rule.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "AccountRule", ResourceID: rule.ID.String()}
	}
	r.s.rules[rule.ID] = rule
	return nil
}

func (r *ruleRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.rules)), nil
}

// --- Job ---

type jobRepo struct{ s *Store }

func (r *jobRepo) Create(ctx context.Context, j *entity.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	r.s.jobs[j.ID] = j
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "Job", ResourceID: id.String()}
	}
	return j, nil
}

func (r *jobRepo) ExistsForBillingPeriod(ctx context.Context, accountID uuid.UUID, periodStart, periodEnd time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, j := range r.s.jobs {
		if j.AccountID == accountID && j.BillingPeriodStartAt.Equal(periodStart) && j.BillingPeriodEndAt.Equal(periodEnd) {
			return true, nil
		}
	}
	return false, nil
}

func (r *jobRepo) ListByStatus(ctx context.Context, statuses []entity.JobStatus) ([]*entity.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := make(map[entity.JobStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]*entity.Job, 0)
	for _, j := range r.s.jobs {
		if want[j.Status] {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *jobRepo) ListStalePending(ctx context.Context, today time.Time, lookbackDays int) ([]*entity.Job, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	cutoff := today.AddDate(0, 0, -lookbackDays)
	out := make([]*entity.Job, 0)
	for _, j := range r.s.jobs {
		if j.Status != entity.JobPending && j.Status != entity.JobCredentialCheckInProgress {
			continue
		}
		if j.NextRangeEndAt.Before(today) && j.NextRangeEndAt.After(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (r *jobRepo) Update(ctx context.Context, j *entity.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.jobs[j.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "Job", ResourceID: j.ID.String()}
	}
	r.s.jobs[j.ID] = j
	return nil
}

func (r *jobRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.jobs)), nil
}

// --- JobExecution ---

type executionRepo struct{ s *Store }

func (r *executionRepo) Create(ctx context.Context, e *entity.JobExecution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.s.executions[e.ID] = e
	return nil
}

func (r *executionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.JobExecution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.executions[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "JobExecution", ResourceID: id.String()}
	}
	return e, nil
}

func (r *executionRepo) ListAbandoned(ctx context.Context, cutoff time.Time) ([]*entity.JobExecution, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.JobExecution, 0)
	for _, e := range r.s.executions {
		if e.EndAt == nil && e.StartAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *executionRepo) Update(ctx context.Context, e *entity.JobExecution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.executions[e.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "JobExecution", ResourceID: e.ID.String()}
	}
	r.s.executions[e.ID] = e
	return nil
}

func (r *executionRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.executions)), nil
}

// --- OrchestrationRun ---

type runRepo struct{ s *Store }

func (r *runRepo) Create(ctx context.Context, run *entity.OrchestrationRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	r.s.runs[run.ID] = run
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.OrchestrationRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	run, ok := r.s.runs[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "OrchestrationRun", ResourceID: id.String()}
	}
	return run, nil
}

func (r *runRepo) ListRunningStartedBefore(ctx context.Context, cutoff time.Time) ([]*entity.OrchestrationRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.OrchestrationRun, 0)
	for _, run := range r.s.runs {
		if run.Status == entity.RunRunning && run.StartedAt != nil && run.StartedAt.Before(cutoff) && run.CompletedAt == nil {
			out = append(out, run)
		}
	}
	return out, nil
}

func (r *runRepo) HasRunningStartedAfter(ctx context.Context, after time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, run := range r.s.runs {
		if run.Status == entity.RunRunning && run.StartedAt != nil && run.StartedAt.After(after) {
			return true, nil
		}
	}
	return false, nil
}

func (r *runRepo) Update(ctx context.Context, run *entity.OrchestrationRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.runs[run.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "OrchestrationRun", ResourceID: run.ID.String()}
	}
	r.s.runs[run.ID] = run
	return nil
}

func (r *runRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.runs)), nil
}

// --- BlacklistEntry ---

type blacklistRepo struct{ s *Store }

func (r *blacklistRepo) Create(ctx context.Context, e *entity.BlacklistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.s.blacklist[e.ID] = e
	return nil
}

func (r *blacklistRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.BlacklistEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.blacklist[id]
	if !ok {
		return nil, &repository.NotFoundError{ResourceType: "BlacklistEntry", ResourceID: id.String()}
	}
	return e, nil
}

func (r *blacklistRepo) ListActive(ctx context.Context, today time.Time) ([]*entity.BlacklistEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.BlacklistEntry, 0)
	for _, e := range r.s.blacklist {
		if e.IsActive && e.EffectiveOn(today) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *blacklistRepo) Update(ctx context.Context, e *entity.BlacklistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.blacklist[e.ID]; !ok {
		return &repository.NotFoundError{ResourceType: "BlacklistEntry", ResourceID: e.ID.String()}
	}
	r.s.blacklist[e.ID] = e
	return nil
}

func (r *blacklistRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.blacklist)), nil
}

// --- Configuration ---

type configRepo struct{ s *Store }

func (r *configRepo) Get(ctx context.Context) (*entity.Configuration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.configuration == nil {
		return nil, &repository.NotFoundError{ResourceType: "Configuration", ResourceID: "singleton"}
	}
	return r.s.configuration, nil
}

func (r *configRepo) Upsert(ctx context.Context, cfg *entity.Configuration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	r.s.configuration = cfg
	return nil
}
