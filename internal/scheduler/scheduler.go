// Package scheduler gives the batch pipeline's "periodically" cadence a
// concrete driver: a cron.Cron instance that enqueues account sync,
// orchestrator pipeline ticks, and stale-job finalization onto Asynq on a
// schedule, rather than requiring an operator (or an external cron daemon)
// to trigger each one by hand.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lcgerke/invoice-orchestrator/internal/job"
)

// Schedules are cron expressions (seconds omitted, standard 5-field) for
// each periodic tick. Actual dispatch is asynq's job; a missed tick because
// the process was down is not replayed — the next tick picks up where
// AccountSync/OrchestratorCore/StalePendingFinalizer's own idempotent
// reconciliation logic leaves off.
const (
	AccountSyncSchedule      = "0 2 * * *"    // daily at 02:00
	OrchestrationRunSchedule = "*/15 * * * *" // every 15 minutes
	StaleFinalizeSchedule    = "30 2 * * *"   // daily at 02:30, after account sync
)

// Driver owns a cron.Cron instance and the Asynq scheduler it dispatches
// through.
type Driver struct {
	cron *cron.Cron
	jobs *job.JobScheduler
	log  *zap.SugaredLogger
}

// NewDriver builds a Driver. Call Register to install the standard
// schedules, then Start to begin ticking.
func NewDriver(jobs *job.JobScheduler, log *zap.SugaredLogger) *Driver {
	return &Driver{
		cron: cron.New(),
		jobs: jobs,
		log:  log,
	}
}

// Register installs the three standard periodic ticks using the package's
// default cron expressions. It returns an error if any expression fails to
// parse, which would indicate a programming error rather than bad input.
func (d *Driver) Register() error {
	if _, err := d.cron.AddFunc(AccountSyncSchedule, d.triggerAccountSync); err != nil {
		return err
	}
	if _, err := d.cron.AddFunc(OrchestrationRunSchedule, d.triggerOrchestrationRun); err != nil {
		return err
	}
	if _, err := d.cron.AddFunc(StaleFinalizeSchedule, d.triggerStaleFinalize); err != nil {
		return err
	}
	return nil
}

// Start begins running registered schedules in the background.
func (d *Driver) Start() {
	d.cron.Start()
}

// Stop halts the cron scheduler, waiting for any running job to complete.
func (d *Driver) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
}

func (d *Driver) triggerAccountSync() {
	asOf := time.Now().UTC()
	if _, err := d.jobs.EnqueueAccountSync(context.Background(), asOf); err != nil {
		d.log.Errorw("failed to enqueue scheduled account sync", "error", err)
	}
}

func (d *Driver) triggerOrchestrationRun() {
	if _, err := d.jobs.EnqueueOrchestrationRun(context.Background(), "scheduler"); err != nil {
		d.log.Errorw("failed to enqueue scheduled orchestration run", "error", err)
	}
}

func (d *Driver) triggerStaleFinalize() {
	asOf := time.Now().UTC()
	if _, err := d.jobs.EnqueueStaleFinalize(context.Background(), asOf); err != nil {
		d.log.Errorw("failed to enqueue scheduled stale finalize", "error", err)
	}
}
