// Package recovery implements StartupRecovery (C6): reconciling in-flight
// state left behind by a process that died mid-run, before OrchestrationQueue
// is allowed to accept new work.
package recovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/entity"
	"github.com/lcgerke/invoice-orchestrator/internal/notify"
	"github.com/lcgerke/invoice-orchestrator/internal/repository"
)

// Result summarizes one recovery pass.
type Result struct {
	ExecutionsFailed int
	RunsInterrupted  int
}

// Recovery runs the two-pass reconciliation once at process start.
type Recovery struct {
	db     repository.Database
	email  notify.EmailService
	log    *zap.SugaredLogger
}

// New builds a Recovery bound to db, notifying via email on interruption.
func New(db repository.Database, email notify.EmailService, log *zap.SugaredLogger) *Recovery {
	return &Recovery{db: db, email: email, log: log}
}

// Run executes both passes against appStart, the time this process began.
// grace bounds how long a Running JobExecution may go without an end_at
// before it's presumed abandoned.
func (r *Recovery) Run(ctx context.Context, appStart time.Time, grace time.Duration) (*Result, error) {
	result := &Result{}

	failed, err := r.failAbandonedExecutions(ctx, appStart, grace)
	if err != nil {
		return nil, err
	}
	result.ExecutionsFailed = failed

	interrupted, err := r.interruptStaleRuns(ctx, appStart)
	if err != nil {
		return nil, err
	}
	result.RunsInterrupted = interrupted

	return result, nil
}

// failAbandonedExecutions is pass 1: JobExecutions still Running with no
// end_at, started before appStart minus the grace window.
func (r *Recovery) failAbandonedExecutions(ctx context.Context, appStart time.Time, grace time.Duration) (int, error) {
	cutoff := appStart.Add(-grace)
	executions, err := r.db.JobExecutionRepository().ListAbandoned(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list abandoned job executions: %w", err)
	}
	if len(executions) == 0 {
		return 0, nil
	}

	now := entity.Now()
	msg := "app restarted while running"
	for _, e := range executions {
		e.EndAt = &now
		e.IsError = true
		e.ErrorMessage = &msg
		if err := r.db.JobExecutionRepository().Update(ctx, e); err != nil {
			return 0, fmt.Errorf("failed to fail abandoned execution %s: %w", e.ID, err)
		}
	}
	r.log.Warnw("startup recovery failed abandoned job executions", "count", len(executions))
	return len(executions), nil
}

// interruptStaleRuns is pass 2: OrchestrationRuns left Running from before
// appStart, guarded against a legitimately active in-process run that
// started after appStart.
func (r *Recovery) interruptStaleRuns(ctx context.Context, appStart time.Time) (int, error) {
	active, err := r.db.OrchestrationRunRepository().HasRunningStartedAfter(ctx, appStart)
	if err != nil {
		return 0, fmt.Errorf("failed to check for active orchestration run: %w", err)
	}
	if active {
		r.log.Infow("startup recovery skipped: a run started after process start is active")
		return 0, nil
	}

	runs, err := r.db.OrchestrationRunRepository().ListRunningStartedBefore(ctx, appStart)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale orchestration runs: %w", err)
	}
	if len(runs) == 0 {
		return 0, nil
	}

	now := entity.Now()
	msg := "interrupted by app restart"
	var mostRecent *entity.OrchestrationRun
	for _, run := range runs {
		run.Status = entity.RunInterrupted
		run.CompletedAt = &now
		run.ErrorMessage = &msg
		if err := r.db.OrchestrationRunRepository().Update(ctx, run); err != nil {
			return 0, fmt.Errorf("failed to interrupt orchestration run %s: %w", run.ID, err)
		}
		if mostRecent == nil || run.RequestedAt.After(mostRecent.RequestedAt) {
			mostRecent = run
		}
	}

	r.log.Warnw("startup recovery interrupted orchestration runs", "count", len(runs))
	if mostRecent != nil {
		subject := "Orchestration run interrupted by restart"
		body := fmt.Sprintf("Run %s (requested_by=%s, requested_at=%s) was interrupted by an application restart.",
			mostRecent.ID, mostRecent.RequestedBy, mostRecent.RequestedAt.Format(time.RFC3339))
		if err := r.email.Send(ctx, subject, body, nil); err != nil {
			r.log.Errorw("failed to send startup interruption notification", "error", err)
		}
	}
	return len(runs), nil
}
