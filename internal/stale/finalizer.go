// Package stale implements StalePendingFinalizer (C5): cancelling jobs
// whose billing window has passed without ever reaching a remote-reported
// terminal status, and advancing their rule so the account doesn't stall.
package stale

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/orchestrator"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// LookbackDays bounds ListStalePending's scan so it never walks the
// entire job history looking for windows that expired years ago.
const LookbackDays = 90

// Result summarizes one finalizer pass.
type Result struct {
	Cancelled int
}

// Finalizer cancels stale-pending jobs and advances their rules.
type Finalizer struct {
	db        repository.Database
	batchSize int
	log       *zap.SugaredLogger
}

// NewFinalizer builds a Finalizer flushing in batches of batchSize.
func NewFinalizer(db repository.Database, batchSize int, log *zap.SugaredLogger) *Finalizer {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Finalizer{db: db, batchSize: batchSize, log: log}
}

// Run selects jobs in Pending/CredentialCheckInProgress whose window end
// has passed, within a 90-day lookback, cancels each, and advances its
// rule. No remote calls are made.
func (f *Finalizer) Run(ctx context.Context, today time.Time) (*Result, error) {
	jobs, err := f.db.JobRepository().ListStalePending(ctx, today, LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return &Result{}, nil
	}

	for _, j := range jobs {
		msg := fmt.Sprintf("missed window ended %s", j.NextRangeEndAt.Format("2006-01-02"))
		j.Status = entity.JobCancelled
		j.ErrorMessage = &msg
		j.ModifiedAt = entity.Now()
		j.ModifiedBy = entity.SystemActor
	}

	if err := f.advanceRules(ctx, jobs, today); err != nil {
		return nil, err
	}

	if err := f.flush(ctx, jobs); err != nil {
		return nil, err
	}

	f.log.Infow("stale pending finalizer cancelled jobs", "count", len(jobs))
	return &Result{Cancelled: len(jobs)}, nil
}

func (f *Finalizer) advanceRules(ctx context.Context, jobs []*entity.Job, today time.Time) error {
	for _, j := range jobs {
		if j.AccountRuleID == nil {
			continue
		}
		rule, err := f.db.AccountRuleRepository().GetByID(ctx, *j.AccountRuleID)
		if err != nil {
			return fmt.Errorf("failed to load rule %s: %w", *j.AccountRuleID, err)
		}
		account, err := f.db.AccountRepository().GetByID(ctx, j.AccountID)
		if err != nil {
			return fmt.Errorf("failed to load account %s: %w", j.AccountID, err)
		}
		orchestrator.AdvanceRule(rule, account, j, today)
		if err := f.db.AccountRuleRepository().Update(ctx, rule); err != nil {
			return fmt.Errorf("failed to persist advanced rule %s: %w", rule.ID, err)
		}
		if err := f.db.AccountRepository().Update(ctx, account); err != nil {
			return fmt.Errorf("failed to persist advanced account %s: %w", account.ID, err)
		}
	}
	return nil
}

func (f *Finalizer) flush(ctx context.Context, jobs []*entity.Job) error {
	for start := 0; start < len(jobs); start += f.batchSize {
		end := start + f.batchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		tx, err := f.db.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin finalizer batch: %w", err)
		}
		for _, j := range jobs[start:end] {
			if err := tx.JobRepository().Update(ctx, j); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to cancel job %s: %w", j.ID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit finalizer batch: %w", err)
		}
	}
	return nil
}
