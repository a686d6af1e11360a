package orchestrator

import (
	"context"
	"fmt"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// flushInChunks commits n units of work through apply in groups of
// chunkSize, each group inside its own transaction, bounding transaction
// size the way the mark phase (sub-batches of 500) and apply phase
// (batch_size, default 1000) require. Suspension — and in practice,
// cancellation — is only observed at these chunk boundaries. report, if
// non-nil, is called with the cumulative count of items applied so far
// after each one.
func flushInChunks(ctx context.Context, db repository.Database, n, chunkSize int, report func(done int), apply func(tx repository.Transaction, i int) error) error {
	if chunkSize <= 0 {
		chunkSize = n
		if chunkSize == 0 {
			chunkSize = 1
		}
	}
	done := 0
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		tx, err := db.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin batch transaction: %w", err)
		}
		for i := start; i < end; i++ {
			if err := apply(tx, i); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to apply batch item %d: %w", i, err)
			}
			done++
			if report != nil {
				report(done)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit batch: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// flushJobCreate persists newly created jobs in chunks of chunkSize.
func flushJobCreate(ctx context.Context, db repository.Database, jobs []*entity.Job, chunkSize int) error {
	return flushInChunks(ctx, db, len(jobs), chunkSize, nil, func(tx repository.Transaction, i int) error {
		return tx.JobRepository().Create(ctx, jobs[i])
	})
}

// flushMarkPhase persists the mark-in-progress status transition and the
// newly created JobExecution row together, in sub-batches of chunkSize —
// the mark phase's 500-row default. It reports progress with a negative
// current whose magnitude is the count processed so far, per §6's setup-
// phase convention.
func flushMarkPhase(ctx context.Context, db repository.Database, jobs []*entity.Job, executions []*entity.JobExecution, chunkSize int, progress ProgressFunc, total int) error {
	return flushInChunks(ctx, db, len(jobs), chunkSize, reportSetupPhase(progress, total), func(tx repository.Transaction, i int) error {
		if err := tx.JobRepository().Update(ctx, jobs[i]); err != nil {
			return err
		}
		return tx.JobExecutionRepository().Create(ctx, executions[i])
	})
}

// flushApplyPhase persists the post-remote-call job and execution state in
// chunks of chunkSize — the apply phase's batch_size default. When manual
// is true (manual status-check sweep), progress is reported with current
// offset below -1,000,000 per §6's manual-apply-phase convention;
// otherwise current counts up from 0 in plain positive terms.
func flushApplyPhase(ctx context.Context, db repository.Database, jobs []*entity.Job, executions []*entity.JobExecution, chunkSize int, progress ProgressFunc, total int, manual bool) error {
	var report func(done int)
	if manual {
		report = reportManualApplyPhase(progress, total)
	} else {
		report = reportApplyPhase(progress, total)
	}
	return flushInChunks(ctx, db, len(jobs), chunkSize, report, func(tx repository.Transaction, i int) error {
		if err := tx.JobRepository().Update(ctx, jobs[i]); err != nil {
			return err
		}
		return tx.JobExecutionRepository().Update(ctx, executions[i])
	})
}
